// Package CG compiles JSON expression plans into VM code. Names are resolved
// against a function registry and a row schema once, at compile time, so the
// evaluator only ever sees dense function ids and column indexes.
package CG

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sqlvibe/fnvm/internal/SATS"
	svdberr "github.com/sqlvibe/fnvm/internal/SF/errors"
)

// Node is one plan node. Exactly one of Lit, Col, Var, Param, Call or If is
// set:
//
//	{"lit": 42}                      literal, type inferred
//	{"lit": "cafe", "type": "bytes"} literal of a declared type
//	{"col": "id"}                    column of the current row
//	{"var": "limit"}                 program variable
//	{"param": "x"}                   lambda parameter
//	{"call": "add", "args": [...]}   function call
//	{"if": [cond, then, else]}       conditional
type Node struct {
	Lit   json.RawMessage `json:"lit,omitempty"`
	Type  string          `json:"type,omitempty"`
	Col   string          `json:"col,omitempty"`
	Var   string          `json:"var,omitempty"`
	Param string          `json:"param,omitempty"`
	Call  string          `json:"call,omitempty"`
	Args  []*Node         `json:"args,omitempty"`
	If    []*Node         `json:"if,omitempty"`
}

// Decode parses a JSON plan. Unknown fields are rejected.
func Decode(data []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var n Node
	if err := dec.Decode(&n); err != nil {
		return nil, svdberr.Wrap(svdberr.SVDB_SCHEMA_PLAN, err, "decode plan")
	}
	return &n, nil
}

func (n *Node) kind() (string, error) {
	var kinds []string
	if len(n.Lit) > 0 {
		kinds = append(kinds, "lit")
	}
	if n.Col != "" {
		kinds = append(kinds, "col")
	}
	if n.Var != "" {
		kinds = append(kinds, "var")
	}
	if n.Param != "" {
		kinds = append(kinds, "param")
	}
	if n.Call != "" {
		kinds = append(kinds, "call")
	}
	if n.If != nil {
		kinds = append(kinds, "if")
	}
	if len(kinds) != 1 {
		return "", svdberr.Errorf(svdberr.SVDB_SCHEMA_PLAN, "plan node must have exactly one of lit, col, var, param, call, if; got %v", kinds)
	}
	if n.Args != nil && kinds[0] != "call" {
		return "", svdberr.Errorf(svdberr.SVDB_SCHEMA_PLAN, "args only apply to call nodes")
	}
	if n.Type != "" && kinds[0] != "lit" {
		return "", svdberr.Errorf(svdberr.SVDB_SCHEMA_PLAN, "type only applies to lit nodes")
	}
	return kinds[0], nil
}

// literal decodes a lit node into a value of its declared type, or of the
// inferred type when none is declared.
func (n *Node) literal() (SATS.AlgebraicValue, error) {
	t := SATS.AnyType()
	if n.Type != "" {
		var err error
		if t, err = ParseType(n.Type); err != nil {
			return SATS.AlgebraicValue{}, err
		}
	}
	dec := json.NewDecoder(bytes.NewReader(n.Lit))
	dec.UseNumber()
	var x interface{}
	if err := dec.Decode(&x); err != nil {
		return SATS.AlgebraicValue{}, svdberr.Wrap(svdberr.SVDB_SCHEMA_PLAN, err, "bad literal %s", n.Lit)
	}
	if t.Kind == SATS.KindF64 {
		// json.Number keeps integral literals integral; F64 wants the float.
		if num, ok := x.(json.Number); ok {
			f, err := num.Float64()
			if err != nil {
				return SATS.AlgebraicValue{}, svdberr.Wrap(svdberr.SVDB_MISMATCH_TYPE, err, "bad number %s", num)
			}
			return SATS.F64(f), nil
		}
	}
	return SATS.FromInterface(x, t)
}

// ParseType parses a type name: a scalar kind (I64, String, INTEGER, ...) or
// Array<T>.
func ParseType(name string) (SATS.AlgebraicType, error) {
	name = strings.TrimSpace(name)
	if inner, ok := strings.CutPrefix(name, "Array<"); ok {
		if elem, ok := strings.CutSuffix(inner, ">"); ok {
			t, err := ParseType(elem)
			if err != nil {
				return SATS.AlgebraicType{}, err
			}
			return SATS.ArrayOf(t), nil
		}
	}
	k, ok := SATS.ParseKind(name)
	if !ok {
		return SATS.AlgebraicType{}, svdberr.Errorf(svdberr.SVDB_SCHEMA_PLAN, "unknown type %q", name)
	}
	return SATS.Scalar(k), nil
}

func (n *Node) String() string {
	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(b)
}
