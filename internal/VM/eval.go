package VM

import (
	"time"

	"github.com/sqlvibe/fnvm/internal/SATS"
	svdberr "github.com/sqlvibe/fnvm/internal/SF/errors"
	"github.com/sqlvibe/fnvm/internal/SF/util"
	"github.com/sqlvibe/fnvm/internal/log"
)

// DefaultReductionLimit bounds the number of nodes one Eval may reduce.
const DefaultReductionLimit = 1 << 20

// DefaultMaxDepth bounds how deeply one Eval may nest reductions. Lambda
// bodies are reduced on the Go stack, so a recursive lambda hits this long
// before it exhausts the reduction limit.
const DefaultMaxDepth = 10000

// Observer receives timing for every call and every top-level evaluation.
type Observer interface {
	ObserveCall(fn *FunVm, d time.Duration, err error)
	ObserveEval(d time.Duration, err error)
}

type Options struct {
	ReductionLimit int
	MaxDepth       int
	Observer       Observer
}

type EvalOption func(*Options)

func WithReductionLimit(n int) EvalOption {
	return func(o *Options) { o.ReductionLimit = n }
}

func WithMaxDepth(n int) EvalOption {
	return func(o *Options) { o.MaxDepth = n }
}

func WithObserver(obs Observer) EvalOption {
	return func(o *Options) { o.Observer = obs }
}

// EvalStats counts work done by an Evaluator across evaluations.
type EvalStats struct {
	Evals         int64
	Calls         int64
	Reductions    int64
	ShortCircuits int64
}

// splatPool holds argument buffers for calls with more than two arguments.
var splatPool = util.NewSlicePool[SATS.AlgebraicValue](8)

// Evaluator reduces Code trees against rows. It is not safe for concurrent
// use; run one Evaluator (and one Program) per goroutine over a shared
// Registry.
type Evaluator struct {
	reg   *Registry
	prog  ProgramVm
	opts  Options
	steps int
	depth int
	stats EvalStats
}

func NewEvaluator(reg *Registry, prog ProgramVm, opts ...EvalOption) *Evaluator {
	util.AssertNotNil(reg, "registry")
	util.AssertNotNil(prog, "program")
	o := Options{ReductionLimit: DefaultReductionLimit, MaxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ReductionLimit <= 0 {
		o.ReductionLimit = DefaultReductionLimit
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	return &Evaluator{reg: reg, prog: prog, opts: o}
}

// Stats returns the counters accumulated so far.
func (e *Evaluator) Stats() EvalStats { return e.stats }

// Eval reduces code against row to a final value. Every node either reduces
// to exactly one value or the evaluation fails with a typed error.
func (e *Evaluator) Eval(code Code, row []SATS.AlgebraicValue) (SATS.AlgebraicValue, error) {
	var start time.Time
	if e.opts.Observer != nil {
		start = time.Now()
	}
	e.steps, e.depth = 0, 0
	e.stats.Evals++
	v, err := e.reduce(code, row)
	if e.opts.Observer != nil {
		e.opts.Observer.ObserveEval(time.Since(start), err)
	}
	if err != nil {
		log.Debug("evaluation failed", "code", codeString(code), "err", err)
		return SATS.AlgebraicValue{}, err
	}
	return v, nil
}

// EvalBool evaluates a filter. A non-Bool result is a type mismatch.
func (e *Evaluator) EvalBool(code Code, row []SATS.AlgebraicValue) (bool, error) {
	v, err := e.Eval(code, row)
	if err != nil {
		return false, err
	}
	if v.Kind() != SATS.KindBool {
		return false, svdberr.Errorf(svdberr.SVDB_MISMATCH_TYPE, "filter %s returned %s, expected Bool", codeString(code), v.Type())
	}
	return v.Bool(), nil
}

func (e *Evaluator) reduce(code Code, row []SATS.AlgebraicValue) (SATS.AlgebraicValue, error) {
	e.steps++
	e.stats.Reductions++
	if e.steps > e.opts.ReductionLimit {
		return SATS.AlgebraicValue{}, svdberr.Errorf(svdberr.SVDB_TOOBIG_REDUCTION,
			"more than %d reductions", e.opts.ReductionLimit)
	}
	e.depth++
	defer func() { e.depth-- }()
	if e.depth > e.opts.MaxDepth {
		return SATS.AlgebraicValue{}, svdberr.Errorf(svdberr.SVDB_TOOBIG_REDUCTION,
			"expression nested deeper than %d", e.opts.MaxDepth)
	}

	switch c := code.(type) {
	case CodeValue:
		return c.V, nil
	case CodeColumn:
		if c.Index < 0 || c.Index >= len(row) {
			return SATS.AlgebraicValue{}, svdberr.Errorf(svdberr.SVDB_NOTFOUND_COLUMN,
				"column %s out of range for row of %d", c, len(row))
		}
		return row[c.Index], nil
	case CodeVar:
		ref := e.prog.AsProgramRef()
		v, ok := ref.Var(c.Name)
		e.prog.Release(ref)
		if !ok {
			return SATS.AlgebraicValue{}, svdberr.Errorf(svdberr.SVDB_NOTFOUND_VARIABLE, "unknown variable %q", c.Name)
		}
		return v, nil
	case CodeIf:
		cond, err := e.reduceBool(c.Cond, row, "if condition")
		if err != nil {
			return SATS.AlgebraicValue{}, err
		}
		if cond {
			return e.reduce(c.Then, row)
		}
		return e.reduce(c.Else, row)
	case CodeCall:
		return e.call(c, row)
	case CodeParam:
		return SATS.AlgebraicValue{}, svdberr.Errorf(svdberr.SVDB_SCHEMA_PLAN, "unbound parameter %s", c)
	case nil:
		return SATS.AlgebraicValue{}, svdberr.Errorf(svdberr.SVDB_SCHEMA_PLAN, "nil expression node")
	}
	return SATS.AlgebraicValue{}, svdberr.Errorf(svdberr.SVDB_SCHEMA_PLAN, "unsupported expression node %T", code)
}

func (e *Evaluator) reduceBool(code Code, row []SATS.AlgebraicValue, what string) (bool, error) {
	v, err := e.reduce(code, row)
	if err != nil {
		return false, err
	}
	if v.Kind() != SATS.KindBool {
		return false, svdberr.Errorf(svdberr.SVDB_MISMATCH_TYPE, "%s must be Bool, got %s", what, v.Type())
	}
	return v.Bool(), nil
}

// call evaluates the arguments left to right, shapes them for the callee and
// dispatches. Connectives skip their right operand when the left decides.
func (e *Evaluator) call(c CodeCall, row []SATS.AlgebraicValue) (SATS.AlgebraicValue, error) {
	fn, ok := e.reg.ResolveByID(c.Fn)
	if !ok {
		return SATS.AlgebraicValue{}, svdberr.Errorf(svdberr.SVDB_NOTFOUND_FUNCTION,
			"unknown function id %d in %s", c.Fn, c)
	}
	def := &fn.def
	if !def.AcceptsArity(len(c.Args)) {
		return SATS.AlgebraicValue{}, svdberr.Errorf(svdberr.SVDB_MISMATCH_ARITY,
			"%s called with %d arguments, declared %s", def.Name, len(c.Args), def)
	}

	if def.Connective != NotConnective {
		return e.connective(fn, c, row)
	}

	switch {
	case !def.IsVariadic() && len(c.Args) == 1:
		a, err := e.reduce(c.Args[0], row)
		if err != nil {
			return SATS.AlgebraicValue{}, err
		}
		return e.dispatch(fn, Unary(&a), row)
	case !def.IsVariadic() && len(c.Args) == 2:
		a, err := e.reduce(c.Args[0], row)
		if err != nil {
			return SATS.AlgebraicValue{}, err
		}
		b, err := e.reduce(c.Args[1], row)
		if err != nil {
			return SATS.AlgebraicValue{}, err
		}
		return e.dispatch(fn, Binary(&a, &b), row)
	}

	buf := splatPool.Get()
	defer splatPool.Put(buf)
	for _, arg := range c.Args {
		v, err := e.reduce(arg, row)
		if err != nil {
			return SATS.AlgebraicValue{}, err
		}
		*buf = append(*buf, v)
	}
	return e.dispatch(fn, Splat(*buf), row)
}

func (e *Evaluator) connective(fn *FunVm, c CodeCall, row []SATS.AlgebraicValue) (SATS.AlgebraicValue, error) {
	l, err := e.reduce(c.Args[0], row)
	if err != nil {
		return SATS.AlgebraicValue{}, err
	}
	if l.Kind() != SATS.KindBool {
		return SATS.AlgebraicValue{}, svdberr.Errorf(svdberr.SVDB_MISMATCH_TYPE,
			"%s: argument 0 expects Bool, got %s", fn.def.Name, l.Type())
	}
	if (fn.def.Connective == ConnectiveAnd && !l.Bool()) || (fn.def.Connective == ConnectiveOr && l.Bool()) {
		e.stats.ShortCircuits++
		return l, nil
	}
	r, err := e.reduce(c.Args[1], row)
	if err != nil {
		return SATS.AlgebraicValue{}, err
	}
	return e.dispatch(fn, Binary(&l, &r), row)
}

// dispatch invokes fn and reduces whatever Code it returns until a value
// remains, then checks the value against the declared result type.
func (e *Evaluator) dispatch(fn *FunVm, args Args, row []SATS.AlgebraicValue) (SATS.AlgebraicValue, error) {
	e.stats.Calls++
	var start time.Time
	if e.opts.Observer != nil {
		start = time.Now()
	}
	out, err := fn.Call(e.prog, args)
	if e.opts.Observer != nil {
		e.opts.Observer.ObserveCall(fn, time.Since(start), err)
	}
	if err != nil {
		if svdberr.ErrorCodeOf(err) == svdberr.SVDB_ERROR {
			err = svdberr.Wrap(svdberr.SVDB_ERROR, err, "%s", fn.def.Name)
		}
		return SATS.AlgebraicValue{}, err
	}
	if out == nil {
		return SATS.AlgebraicValue{}, svdberr.Errorf(svdberr.SVDB_INTERNAL, "%s returned no result", fn.def.Name)
	}

	v, ok := IsValue(out)
	if !ok {
		if v, err = e.reduce(out, row); err != nil {
			return SATS.AlgebraicValue{}, err
		}
	}
	if !v.HasType(fn.def.Result) {
		return SATS.AlgebraicValue{}, svdberr.Errorf(svdberr.SVDB_MISMATCH_TYPE,
			"%s returned %s, declared %s", fn.def.Name, v.Type(), fn.def.Result)
	}
	return v, nil
}
