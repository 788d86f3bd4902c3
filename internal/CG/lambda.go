package CG

import (
	"bytes"
	"encoding/json"

	"github.com/sqlvibe/fnvm/internal/SATS"
	svdberr "github.com/sqlvibe/fnvm/internal/SF/errors"
	"github.com/sqlvibe/fnvm/internal/VM"
)

// ParamDef is a declared parameter of a plan-defined function.
type ParamDef struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// FuncDef is a function defined by a plan body, e.g.
//
//	{"name": "double", "params": [{"name": "x", "type": "I64"}],
//	 "result": "I64", "body": {"call": "add", "args": [{"param": "x"}, {"param": "x"}]}}
type FuncDef struct {
	Name   string     `json:"name"`
	Params []ParamDef `json:"params"`
	Result string     `json:"result"`
	Body   *Node      `json:"body"`
}

// Head builds the signature of d.
func (d FuncDef) Head() (VM.FunDef, error) {
	params := make([]VM.Param, len(d.Params))
	for i, p := range d.Params {
		t, err := ParseType(p.Type)
		if err != nil {
			return VM.FunDef{}, err
		}
		params[i] = VM.NewParam(p.Name, t)
	}
	result, err := ParseType(d.Result)
	if err != nil {
		return VM.FunDef{}, err
	}
	return VM.NewFunDef(d.Name, params, result), nil
}

// DecodeFuncs parses a JSON array of function definitions.
func DecodeFuncs(data []byte) ([]FuncDef, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var defs []FuncDef
	if err := dec.Decode(&defs); err != nil {
		return nil, svdberr.Wrap(svdberr.SVDB_SCHEMA_PLAN, err, "decode function definitions")
	}
	return defs, nil
}

// CompileLambda compiles d's body against the functions registered in b so
// far (and d itself, for recursion) and registers the resulting lambda.
func CompileLambda(b *VM.Builder, d FuncDef) (VM.FunctionId, error) {
	head, err := d.Head()
	if err != nil {
		return 0, err
	}
	if err := head.Validate(); err != nil {
		return 0, err
	}
	c := NewCompiler(b, SATS.ProductType{})
	c.head = &head
	c.selfID = VM.FunctionId(b.Len())

	body, t, err := c.compile(d.Body)
	if err != nil {
		return 0, err
	}
	if t.Kind != SATS.KindAny && !head.Result.Accepts(t) {
		return 0, svdberr.Errorf(svdberr.SVDB_MISMATCH_TYPE, "function %s returns %s, body yields %s", d.Name, head.Result, t)
	}
	l, err := VM.NewLambda(head, body)
	if err != nil {
		return 0, err
	}
	return b.RegisterLambda(l)
}

// InstallFuncs compiles and registers defs in order; later definitions may
// call earlier ones.
func InstallFuncs(b *VM.Builder, defs []FuncDef) error {
	for _, d := range defs {
		if _, err := CompileLambda(b, d); err != nil {
			return err
		}
	}
	return nil
}
