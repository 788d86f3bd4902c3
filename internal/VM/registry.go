package VM

import (
	"github.com/sqlvibe/fnvm/internal/SATS"
	svdberr "github.com/sqlvibe/fnvm/internal/SF/errors"
	"github.com/sqlvibe/fnvm/internal/log"
)

// Builder collects functions during the single-writer setup phase. Ids are
// dense and assigned in registration order; a rejected registration allocates
// nothing. Freeze ends the phase.
type Builder struct {
	funcs  []*FunVm
	byName map[string]FunctionId
	frozen bool
}

func NewBuilder() *Builder {
	return &Builder{byName: make(map[string]FunctionId)}
}

// Register adds a fixed-arity function.
func (b *Builder) Register(name string, params []Param, result SATS.AlgebraicType, fn FunVM) (FunctionId, error) {
	return b.RegisterDef(NewFunDef(name, params, result), fn)
}

// RegisterFunc is Register for a plain function value.
func (b *Builder) RegisterFunc(name string, params []Param, result SATS.AlgebraicType, fn func(ProgramRef, Args) (Code, error)) (FunctionId, error) {
	return b.Register(name, params, result, FunVMFunc(fn))
}

// RegisterDef adds a function with a prepared signature.
func (b *Builder) RegisterDef(def FunDef, fn FunVM) (FunctionId, error) {
	if b.frozen {
		return 0, svdberr.Errorf(svdberr.SVDB_MISUSE_FROZEN, "cannot register %s: registry is frozen", def.Name)
	}
	if fn == nil {
		return 0, svdberr.Errorf(svdberr.SVDB_SCHEMA_SIGNATURE, "%s: nil callable", def.Name)
	}
	if err := def.Validate(); err != nil {
		return 0, err
	}
	if id, dup := b.byName[def.Name]; dup {
		return 0, svdberr.Errorf(svdberr.SVDB_CONSTRAINT_UNIQUE, "function %s already registered as %d", def.Name, id)
	}
	id := FunctionId(len(b.funcs))
	b.funcs = append(b.funcs, NewFunVm(def, id, fn))
	b.byName[def.Name] = id
	log.Debug("registered function", "fn", def.String(), "id", id)
	return id, nil
}

// RegisterLambda adds a compiled function body. Calls inside the body must
// target functions registered before it, or the lambda itself.
func (b *Builder) RegisterLambda(l Lambda) (FunctionId, error) {
	next := FunctionId(len(b.funcs))
	var bad error
	Walk(l.Body, func(c Code) bool {
		if call, ok := c.(CodeCall); ok && call.Fn > next {
			bad = svdberr.Errorf(svdberr.SVDB_NOTFOUND_FUNCTION, "%s: body calls unknown function id %d", l.Head.Name, call.Fn)
		}
		return bad == nil
	})
	if bad != nil {
		return 0, bad
	}
	return b.RegisterDef(l.Head, l.Callable())
}

// Len returns the number of registered functions.
func (b *Builder) Len() int { return len(b.funcs) }

// ResolveByName lets setup code wire lambdas to functions registered so far.
func (b *Builder) ResolveByName(name string) (FunctionId, bool) {
	id, ok := b.byName[name]
	return id, ok
}

// Lookup resolves a name to a function registered so far.
func (b *Builder) Lookup(name string) (*FunVm, bool) {
	id, ok := b.byName[name]
	if !ok {
		return nil, false
	}
	return b.funcs[id], true
}

// Freeze ends the setup phase and returns the immutable snapshot. Further
// registrations fail with ErrRegistryFrozen.
func (b *Builder) Freeze() *Registry {
	b.frozen = true
	return &Registry{funcs: b.funcs, byName: b.byName}
}

// Registry is a frozen function table: one id-indexed table plus a name
// index built alongside it. It is never mutated, so any number of evaluator
// goroutines may read it without locking.
type Registry struct {
	funcs  []*FunVm
	byName map[string]FunctionId
}

// ResolveByName returns the id registered under name.
func (r *Registry) ResolveByName(name string) (FunctionId, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// ResolveByID returns the function with the given id.
func (r *Registry) ResolveByID(id FunctionId) (*FunVm, bool) {
	if int(id) >= len(r.funcs) {
		return nil, false
	}
	return r.funcs[id], true
}

// Lookup resolves a name straight to its function.
func (r *Registry) Lookup(name string) (*FunVm, bool) {
	id, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.funcs[id], true
}

func (r *Registry) Len() int { return len(r.funcs) }

// Defs returns every signature in id order.
func (r *Registry) Defs() []FunDef {
	defs := make([]FunDef, len(r.funcs))
	for i, f := range r.funcs {
		defs[i] = f.def
	}
	return defs
}

// Clone returns an independent registry with the same ids whose callables
// are duplicated through CloneObject. Evaluators running on different
// goroutines may each take a clone when callables carry private state.
func (r *Registry) Clone() *Registry {
	funcs := make([]*FunVm, len(r.funcs))
	for i, f := range r.funcs {
		funcs[i] = f.Clone()
	}
	return &Registry{funcs: funcs, byName: r.byName}
}
