package CG

import (
	"fmt"
	"strings"

	"github.com/sqlvibe/fnvm/internal/SATS"
	svdberr "github.com/sqlvibe/fnvm/internal/SF/errors"
	"github.com/sqlvibe/fnvm/internal/SF/util"
	"github.com/sqlvibe/fnvm/internal/VM"
)

// Catalog resolves function names. Both a frozen *VM.Registry and a
// *VM.Builder in its setup phase satisfy it.
type Catalog interface {
	Lookup(name string) (*VM.FunVm, bool)
}

// Compiler turns plans into VM code for one row schema.
type Compiler struct {
	funcs  Catalog
	schema SATS.ProductType
	cache  *PlanCache

	// lambda compilation only
	head   *VM.FunDef
	selfID VM.FunctionId
}

type Option func(*Compiler)

// WithCache memoizes CompileJSON. Entries are keyed by catalog, row schema
// and lambda head as well as plan text, so one cache may serve many
// compilers.
func WithCache(c *PlanCache) Option {
	return func(comp *Compiler) { comp.cache = c }
}

func NewCompiler(funcs Catalog, schema SATS.ProductType, opts ...Option) *Compiler {
	util.AssertNotNil(funcs, "function catalog")
	c := &Compiler{funcs: funcs, schema: schema}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile resolves a plan against reg and schema.
func Compile(reg *VM.Registry, schema SATS.ProductType, n *Node) (VM.Code, error) {
	return NewCompiler(reg, schema).Compile(n)
}

// CompileJSON decodes and compiles src.
func (c *Compiler) CompileJSON(src []byte) (VM.Code, error) {
	key := c.cacheKey(src)
	if c.cache != nil {
		if code, ok := c.cache.Get(key); ok {
			return code, nil
		}
	}
	n, err := Decode(src)
	if err != nil {
		return nil, err
	}
	code, err := c.Compile(n)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.Put(key, code)
	}
	return code, nil
}

// cacheKey qualifies the plan text with everything else that decides what
// it compiles to: column names resolve to indexes through the schema, and
// function names to ids through the catalog.
func (c *Compiler) cacheKey(src []byte) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%p\x00%s\x00", c.funcs, c.schema)
	if c.head != nil {
		fmt.Fprintf(&sb, "%s/%d", c.head, c.selfID)
	}
	sb.WriteByte(0)
	sb.Write(src)
	return sb.String()
}

// Compile resolves names, checks call arity, and checks argument types
// wherever the static type of the argument is known.
func (c *Compiler) Compile(n *Node) (VM.Code, error) {
	code, _, err := c.compile(n)
	return code, err
}

// compile returns the code for n and its static type; Any when unknown.
func (c *Compiler) compile(n *Node) (VM.Code, SATS.AlgebraicType, error) {
	if n == nil {
		return nil, SATS.AlgebraicType{}, svdberr.Errorf(svdberr.SVDB_SCHEMA_PLAN, "empty plan node")
	}
	kind, err := n.kind()
	if err != nil {
		return nil, SATS.AlgebraicType{}, err
	}

	switch kind {
	case "lit":
		v, err := n.literal()
		if err != nil {
			return nil, SATS.AlgebraicType{}, err
		}
		return VM.Lit(v), v.Type(), nil

	case "col":
		i, ok := c.schema.Index(n.Col)
		if !ok {
			return nil, SATS.AlgebraicType{}, svdberr.Errorf(svdberr.SVDB_NOTFOUND_COLUMN, "unknown column %q", n.Col)
		}
		return VM.Col(i, n.Col), c.schema.Fields[i].Type, nil

	case "var":
		return VM.Var(n.Var), SATS.AnyType(), nil

	case "param":
		return c.compileParam(n.Param)

	case "if":
		return c.compileIf(n.If)

	default:
		return c.compileCall(n)
	}
}

func (c *Compiler) compileParam(name string) (VM.Code, SATS.AlgebraicType, error) {
	if c.head == nil {
		return nil, SATS.AlgebraicType{}, svdberr.Errorf(svdberr.SVDB_SCHEMA_PLAN, "parameter %q outside a function body", name)
	}
	for i, p := range c.head.Params {
		if p.Name == name {
			return VM.Arg(i, name), p.Kind, nil
		}
	}
	return nil, SATS.AlgebraicType{}, svdberr.Errorf(svdberr.SVDB_SCHEMA_LAMBDA, "%s has no parameter %q", c.head.Name, name)
}

func (c *Compiler) compileIf(parts []*Node) (VM.Code, SATS.AlgebraicType, error) {
	if len(parts) != 3 {
		return nil, SATS.AlgebraicType{}, svdberr.Errorf(svdberr.SVDB_SCHEMA_PLAN, "if takes [cond, then, else], got %d nodes", len(parts))
	}
	cond, ct, err := c.compile(parts[0])
	if err != nil {
		return nil, SATS.AlgebraicType{}, err
	}
	if ct.Kind != SATS.KindAny && ct.Kind != SATS.KindBool {
		return nil, SATS.AlgebraicType{}, svdberr.Errorf(svdberr.SVDB_MISMATCH_TYPE, "if condition %s is %s, expected Bool", cond, ct)
	}
	then, tt, err := c.compile(parts[1])
	if err != nil {
		return nil, SATS.AlgebraicType{}, err
	}
	els, et, err := c.compile(parts[2])
	if err != nil {
		return nil, SATS.AlgebraicType{}, err
	}
	t := SATS.AnyType()
	if tt.Equal(et) {
		t = tt
	}
	return VM.If(cond, then, els), t, nil
}

func (c *Compiler) compileCall(n *Node) (VM.Code, SATS.AlgebraicType, error) {
	def, id, ok := c.resolve(n.Call)
	if !ok {
		return nil, SATS.AlgebraicType{}, svdberr.Errorf(svdberr.SVDB_NOTFOUND_FUNCTION, "unknown function %q", n.Call)
	}
	if !def.AcceptsArity(len(n.Args)) {
		return nil, SATS.AlgebraicType{}, svdberr.Errorf(svdberr.SVDB_MISMATCH_ARITY,
			"%s called with %d arguments, declared %s", def.Name, len(n.Args), def)
	}

	args := make([]VM.Code, len(n.Args))
	for i, a := range n.Args {
		code, t, err := c.compile(a)
		if err != nil {
			return nil, SATS.AlgebraicType{}, err
		}
		if want := def.ParamType(i); t.Kind != SATS.KindAny && !want.Accepts(t) {
			return nil, SATS.AlgebraicType{}, svdberr.Errorf(svdberr.SVDB_MISMATCH_TYPE,
				"%s: argument %d (%s) expects %s, got %s", def.Name, i, def.ParamName(i), want, t)
		}
		args[i] = code
	}
	return VM.CodeCall{Fn: id, Name: def.Name, Args: args}, def.Result, nil
}

// resolve looks name up in the catalog, falling back to the function being
// compiled so a body may call itself.
func (c *Compiler) resolve(name string) (VM.FunDef, VM.FunctionId, bool) {
	if f, ok := c.funcs.Lookup(name); ok {
		return f.Def(), f.Index(), true
	}
	if c.head != nil && c.head.Name == name {
		return *c.head, c.selfID, true
	}
	return VM.FunDef{}, 0, false
}
