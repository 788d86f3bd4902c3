package VM

import (
	"fmt"
	"strings"

	"github.com/sqlvibe/fnvm/internal/SATS"
	svdberr "github.com/sqlvibe/fnvm/internal/SF/errors"
	"github.com/sqlvibe/fnvm/internal/SF/util"
	"github.com/sqlvibe/fnvm/internal/log"
)

// Param is one formal parameter of a function.
type Param struct {
	Name string
	Kind SATS.AlgebraicType
}

func NewParam(name string, kind SATS.AlgebraicType) Param {
	return Param{Name: name, Kind: kind}
}

func (p Param) String() string {
	return p.Name + ": " + p.Kind.String()
}

// Connective marks the boolean connectives whose right operand the evaluator
// may skip.
type Connective uint8

const (
	NotConnective Connective = iota
	ConnectiveAnd
	ConnectiveOr
)

// FunDef is the static signature of a callable. A variadic FunDef accepts any
// number of trailing arguments of Variadic.Kind after its fixed Params.
type FunDef struct {
	Name       string
	Params     []Param
	Variadic   *Param
	Result     SATS.AlgebraicType
	Connective Connective
}

func NewFunDef(name string, params []Param, result SATS.AlgebraicType) FunDef {
	return FunDef{
		Name:   name,
		Params: append([]Param(nil), params...),
		Result: result,
	}
}

func NewVariadicFunDef(name string, params []Param, rest Param, result SATS.AlgebraicType) FunDef {
	def := NewFunDef(name, params, result)
	def.Variadic = &rest
	return def
}

// Arity returns the number of fixed parameters.
func (d FunDef) Arity() int { return len(d.Params) }

func (d FunDef) IsVariadic() bool { return d.Variadic != nil }

// AcceptsArity reports whether n arguments satisfy the signature.
func (d FunDef) AcceptsArity(n int) bool {
	if d.Variadic != nil {
		return n >= len(d.Params)
	}
	return n == len(d.Params)
}

// ParamType returns the declared type of argument i. The caller has already
// checked arity.
func (d FunDef) ParamType(i int) SATS.AlgebraicType {
	if i < len(d.Params) {
		return d.Params[i].Kind
	}
	util.Assert(d.Variadic != nil, "%s has no parameter %d", d.Name, i)
	return d.Variadic.Kind
}

// ParamName returns the declared name of argument i.
func (d FunDef) ParamName(i int) string {
	if i < len(d.Params) {
		return d.Params[i].Name
	}
	if d.Variadic != nil {
		return d.Variadic.Name
	}
	return ""
}

// Validate checks identifiers and parameter-name uniqueness.
func (d FunDef) Validate() error {
	if !isIdent(d.Name) {
		return svdberr.Errorf(svdberr.SVDB_SCHEMA_SIGNATURE, "invalid function name %q", d.Name)
	}
	if !d.Result.Complete() {
		return svdberr.Errorf(svdberr.SVDB_SCHEMA_SIGNATURE, "%s: result type %s has an array without element type", d.Name, d.Result)
	}
	seen := make(map[string]struct{}, len(d.Params)+1)
	all := d.Params
	if d.Variadic != nil {
		all = append(append([]Param(nil), d.Params...), *d.Variadic)
	}
	for _, p := range all {
		if !isIdent(p.Name) {
			return svdberr.Errorf(svdberr.SVDB_SCHEMA_SIGNATURE, "%s: invalid parameter name %q", d.Name, p.Name)
		}
		if !p.Kind.Complete() {
			return svdberr.Errorf(svdberr.SVDB_SCHEMA_SIGNATURE, "%s: parameter %s type %s has an array without element type", d.Name, p.Name, p.Kind)
		}
		if _, dup := seen[p.Name]; dup {
			return svdberr.Errorf(svdberr.SVDB_SCHEMA_SIGNATURE, "%s: duplicate parameter %q", d.Name, p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	if d.Connective != NotConnective {
		b := SATS.BoolType()
		if d.Variadic != nil || len(d.Params) != 2 || !d.Params[0].Kind.Equal(b) ||
			!d.Params[1].Kind.Equal(b) || !d.Result.Equal(b) {
			return svdberr.Errorf(svdberr.SVDB_SCHEMA_SIGNATURE, "%s: connectives must be (Bool, Bool) -> Bool", d.Name)
		}
	}
	return nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// Equal compares name, parameters and result.
func (d FunDef) Equal(o FunDef) bool {
	if d.Name != o.Name || len(d.Params) != len(o.Params) || !d.Result.Equal(o.Result) ||
		d.Connective != o.Connective || (d.Variadic == nil) != (o.Variadic == nil) {
		return false
	}
	for i := range d.Params {
		if d.Params[i].Name != o.Params[i].Name || !d.Params[i].Kind.Equal(o.Params[i].Kind) {
			return false
		}
	}
	if d.Variadic != nil {
		return d.Variadic.Name == o.Variadic.Name && d.Variadic.Kind.Equal(o.Variadic.Kind)
	}
	return true
}

// String renders the signature, e.g. "add(x: I64, y: I64) -> I64".
func (d FunDef) String() string {
	var sb strings.Builder
	sb.WriteString(d.Name)
	sb.WriteByte('(')
	for i, p := range d.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.String())
	}
	if d.Variadic != nil {
		if len(d.Params) > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("...")
		sb.WriteString(d.Variadic.String())
	}
	sb.WriteString(") -> ")
	sb.WriteString(d.Result.String())
	return sb.String()
}

// FunVM is the callable half of a registered function. Implementations must
// be safe to duplicate through CloneObject: the registry hands a clone to each
// evaluator that asks for one, so any mutable environment a callable carries
// must be copied there rather than shared.
type FunVM interface {
	Call(p ProgramRef, args Args) (Code, error)
	CloneObject() FunVM
}

// FunVMFunc adapts a plain function. Go closures are shared by reference, so
// CloneObject returns the same function; capture only immutable state.
type FunVMFunc func(p ProgramRef, args Args) (Code, error)

func (f FunVMFunc) Call(p ProgramRef, args Args) (Code, error) { return f(p, args) }

func (f FunVMFunc) CloneObject() FunVM { return f }

// Cloneable is a callable with a private environment S that is duplicated by
// Copy whenever the callable is cloned.
type Cloneable[S any] struct {
	State S
	Copy  func(S) S
	Fn    func(state S, p ProgramRef, args Args) (Code, error)
}

func NewCloneable[S any](state S, copyFn func(S) S, fn func(S, ProgramRef, Args) (Code, error)) *Cloneable[S] {
	return &Cloneable[S]{State: state, Copy: copyFn, Fn: fn}
}

func (c *Cloneable[S]) Call(p ProgramRef, args Args) (Code, error) {
	return c.Fn(c.State, p, args)
}

func (c *Cloneable[S]) CloneObject() FunVM {
	return &Cloneable[S]{State: c.Copy(c.State), Copy: c.Copy, Fn: c.Fn}
}

// FunVm is a registered function: its signature, its dense index and the
// callable behind it.
type FunVm struct {
	def FunDef
	idx FunctionId
	fun FunVM
}

func NewFunVm(def FunDef, idx FunctionId, fun FunVM) *FunVm {
	util.AssertNotNil(fun, "callable for "+def.Name)
	return &FunVm{def: def, idx: idx, fun: fun}
}

func (f *FunVm) Name() string { return f.def.Name }
func (f *FunVm) Index() FunctionId { return f.idx }
func (f *FunVm) Def() FunDef { return f.def }
func (f *FunVm) Callable() FunVM { return f.fun }

// Clone duplicates the function, cloning its callable.
func (f *FunVm) Clone() *FunVm {
	return &FunVm{def: f.def, idx: f.idx, fun: f.fun.CloneObject()}
}

func (f *FunVm) String() string {
	return fmt.Sprintf("fun %s(%d)", f.def.Name, f.idx)
}

// Call checks args against the signature, lends the callable a ProgramRef for
// the duration of the call and returns the callable's result. A panicking
// callable is reported as SVDB_INTERNAL instead of unwinding the evaluator.
func (f *FunVm) Call(p ProgramVm, args Args) (code Code, err error) {
	if err := CheckArgs(f.def, args); err != nil {
		return nil, err
	}
	ref := p.AsProgramRef()
	defer p.Release(ref)
	defer func() {
		if r := recover(); r != nil {
			log.Error("function panicked", "fn", f.def.Name, "panic", r)
			code, err = nil, svdberr.Errorf(svdberr.SVDB_INTERNAL, "%s panicked: %v", f.def.Name, r)
		}
	}()
	return f.fun.Call(ref, args)
}

// Lambda is a compiled function body: a signature plus a Code tree whose only
// free variables are the signature's parameters (CodeParam nodes).
type Lambda struct {
	Head FunDef
	Body Code
}

// NewLambda validates that body refers only to head's parameters and never
// to row columns.
func NewLambda(head FunDef, body Code) (Lambda, error) {
	if err := head.Validate(); err != nil {
		return Lambda{}, err
	}
	if head.IsVariadic() {
		return Lambda{}, svdberr.Errorf(svdberr.SVDB_SCHEMA_LAMBDA, "%s: lambdas cannot be variadic", head.Name)
	}
	if body == nil {
		return Lambda{}, svdberr.Errorf(svdberr.SVDB_SCHEMA_LAMBDA, "%s: empty body", head.Name)
	}
	var bad error
	Walk(body, func(c Code) bool {
		switch n := c.(type) {
		case nil:
			bad = svdberr.Errorf(svdberr.SVDB_SCHEMA_LAMBDA, "%s: nil node in body", head.Name)
		case CodeColumn:
			bad = svdberr.Errorf(svdberr.SVDB_SCHEMA_LAMBDA, "%s: body reads column %s", head.Name, n)
		case CodeParam:
			if n.Index < 0 || n.Index >= len(head.Params) {
				bad = svdberr.Errorf(svdberr.SVDB_SCHEMA_LAMBDA, "%s: parameter index %d out of range", head.Name, n.Index)
			} else if n.Name != "" && n.Name != head.Params[n.Index].Name {
				bad = svdberr.Errorf(svdberr.SVDB_SCHEMA_LAMBDA, "%s: parameter %d is %q, not %q",
					head.Name, n.Index, head.Params[n.Index].Name, n.Name)
			}
		}
		return bad == nil
	})
	if bad != nil {
		return Lambda{}, bad
	}
	return Lambda{Head: head, Body: body}, nil
}

// Callable returns a FunVM that answers each call with the body, its
// parameters bound to the call's arguments. The evaluator reduces that
// continuation further.
func (l Lambda) Callable() FunVM {
	body := l.Body
	return FunVMFunc(func(_ ProgramRef, args Args) (Code, error) {
		return Bind(body, args), nil
	})
}
