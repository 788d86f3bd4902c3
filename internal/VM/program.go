package VM

import (
	"maps"

	"github.com/sqlvibe/fnvm/internal/SATS"
	"github.com/sqlvibe/fnvm/internal/SF/util"
)

// Table is a read-only row source reachable from a program, e.g. the current
// transaction's view of one table.
type Table interface {
	Name() string
	Schema() SATS.ProductType
	Len() int
	Row(i int) []SATS.AlgebraicValue
}

// Env is the ambient state a call may reach through its ProgramRef.
type Env interface {
	Functions() *Registry
	Table(name string) (Table, bool)
	Var(name string) (SATS.AlgebraicValue, bool)
	Count(counter string, delta int64)
}

// ProgramVm is implemented by embedding environments. AsProgramRef lends a
// ProgramRef for exactly one call; Release ends the loan.
type ProgramVm interface {
	AsProgramRef() ProgramRef
	Release(ref ProgramRef)
}

// Borrow issues generation-stamped ProgramRefs. Embed it in a ProgramVm
// implementation; a ref is valid from Acquire until the matching Release.
type Borrow struct {
	gen uint64
}

// Acquire starts a loan of env.
func (b *Borrow) Acquire(env Env) ProgramRef {
	util.Assert(env != nil, "ProgramRef needs an env")
	b.gen++
	return ProgramRef{env: env, owner: b, gen: b.gen}
}

// Release ends the loan of ref. Releasing a ref that is not the current loan
// is a programming error.
func (b *Borrow) Release(ref ProgramRef) {
	util.Assert(ref.owner == b && ref.gen == b.gen, "release of a ProgramRef that is not the current loan")
	b.gen++
}

// ProgramRef is a non-owning view of a program, valid only for the call it
// was lent to. Every accessor asserts the loan is still current, so a
// callable that caches a ProgramRef fails loudly on its next use.
type ProgramRef struct {
	env   Env
	owner *Borrow
	gen   uint64
}

// Valid reports whether the loan behind r is still current.
func (r ProgramRef) Valid() bool {
	return r.owner != nil && r.owner.gen == r.gen
}

func (r ProgramRef) check() {
	util.Assert(r.Valid(), "ProgramRef used outside the call it was lent to")
}

func (r ProgramRef) Functions() *Registry {
	r.check()
	return r.env.Functions()
}

func (r ProgramRef) Table(name string) (Table, bool) {
	r.check()
	return r.env.Table(name)
}

func (r ProgramRef) Var(name string) (SATS.AlgebraicValue, bool) {
	r.check()
	return r.env.Var(name)
}

// Count adds delta to a per-program counter.
func (r ProgramRef) Count(counter string, delta int64) {
	r.check()
	r.env.Count(counter, delta)
}

// Program is the default ProgramVm: a registry, the tables and variables in
// scope, and counters. A Program belongs to one evaluator goroutine.
type Program struct {
	Borrow
	reg    *Registry
	tables map[string]Table
	vars   map[string]SATS.AlgebraicValue
	stats  map[string]int64
}

type ProgramOption func(*Program)

func WithTable(t Table) ProgramOption {
	return func(p *Program) { p.tables[t.Name()] = t }
}

func WithVar(name string, v SATS.AlgebraicValue) ProgramOption {
	return func(p *Program) { p.vars[name] = v }
}

func NewProgram(reg *Registry, opts ...ProgramOption) *Program {
	p := &Program{
		reg:    reg,
		tables: make(map[string]Table),
		vars:   make(map[string]SATS.AlgebraicValue),
		stats:  make(map[string]int64),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Program) AsProgramRef() ProgramRef {
	return p.Acquire(p)
}

func (p *Program) Functions() *Registry { return p.reg }

func (p *Program) Table(name string) (Table, bool) {
	t, ok := p.tables[name]
	return t, ok
}

func (p *Program) Var(name string) (SATS.AlgebraicValue, bool) {
	v, ok := p.vars[name]
	return v, ok
}

func (p *Program) Count(counter string, delta int64) {
	p.stats[counter] += delta
}

// SetVar binds or rebinds a program variable between evaluations.
func (p *Program) SetVar(name string, v SATS.AlgebraicValue) {
	p.vars[name] = v
}

// AddTable makes t reachable under its name.
func (p *Program) AddTable(t Table) {
	p.tables[t.Name()] = t
}

// Stats returns a copy of the program's counters.
func (p *Program) Stats() map[string]int64 {
	return maps.Clone(p.stats)
}
