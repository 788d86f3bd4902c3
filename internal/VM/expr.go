package VM

import (
	"fmt"
	"strings"

	"github.com/sqlvibe/fnvm/internal/SATS"
)

// FunctionId is the dense registry index of a function.
type FunctionId uint32

// Code is a compiled expression node or the result of a call. A CodeValue is
// final; every other variant is reduced further by the Evaluator.
type Code interface {
	fmt.Stringer
	isCode()
}

// CodeValue is a fully reduced value.
type CodeValue struct {
	V SATS.AlgebraicValue
}

// CodeColumn reads column Index of the row being evaluated.
type CodeColumn struct {
	Index int
	Name  string
}

// CodeParam refers to parameter Index of the enclosing Lambda. It only
// appears in lambda bodies and is replaced by Bind before evaluation.
type CodeParam struct {
	Index int
	Name  string
}

// CodeVar reads a program variable through the ProgramRef.
type CodeVar struct {
	Name string
}

// CodeCall applies a registered function to argument subexpressions. Name is
// informational; dispatch uses Fn.
type CodeCall struct {
	Fn   FunctionId
	Name string
	Args []Code
}

// CodeIf reduces Cond, then only the taken branch.
type CodeIf struct {
	Cond, Then, Else Code
}

func (CodeValue) isCode()  {}
func (CodeColumn) isCode() {}
func (CodeParam) isCode()  {}
func (CodeVar) isCode()    {}
func (CodeCall) isCode()   {}
func (CodeIf) isCode()     {}

func Lit(v SATS.AlgebraicValue) Code { return CodeValue{V: v} }

func Col(index int, name string) Code { return CodeColumn{Index: index, Name: name} }

func Arg(index int, name string) Code { return CodeParam{Index: index, Name: name} }

func Var(name string) Code { return CodeVar{Name: name} }

func Call(fn FunctionId, args ...Code) Code { return CodeCall{Fn: fn, Args: args} }

func If(cond, then, els Code) Code { return CodeIf{Cond: cond, Then: then, Else: els} }

// IsValue reports whether c is final and returns its value.
func IsValue(c Code) (SATS.AlgebraicValue, bool) {
	if v, ok := c.(CodeValue); ok {
		return v.V, true
	}
	return SATS.AlgebraicValue{}, false
}

func (c CodeValue) String() string { return c.V.String() }

func (c CodeColumn) String() string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("$%d", c.Index)
}

func (c CodeParam) String() string {
	if c.Name != "" {
		return "@" + c.Name
	}
	return fmt.Sprintf("@%d", c.Index)
}

func (c CodeVar) String() string { return ":" + c.Name }

func (c CodeCall) String() string {
	var sb strings.Builder
	if c.Name != "" {
		sb.WriteString(c.Name)
	} else {
		fmt.Fprintf(&sb, "#%d", c.Fn)
	}
	sb.WriteByte('(')
	for i, a := range c.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(codeString(a))
	}
	sb.WriteByte(')')
	return sb.String()
}

func (c CodeIf) String() string {
	return fmt.Sprintf("if(%s, %s, %s)", codeString(c.Cond), codeString(c.Then), codeString(c.Else))
}

func codeString(c Code) string {
	if c == nil {
		return "<nil>"
	}
	return c.String()
}

// Walk visits c and its subexpressions in pre-order until fn returns false.
// Nil children are passed to fn but not descended into.
func Walk(c Code, fn func(Code) bool) bool {
	if !fn(c) {
		return false
	}
	switch n := c.(type) {
	case CodeCall:
		for _, a := range n.Args {
			if !Walk(a, fn) {
				return false
			}
		}
	case CodeIf:
		return Walk(n.Cond, fn) && Walk(n.Then, fn) && Walk(n.Else, fn)
	}
	return true
}

// Bind returns a copy of c with every CodeParam replaced by the matching
// argument value. Subtrees without parameters are shared, not copied.
func Bind(c Code, args Args) Code {
	out, _ := bind(c, args)
	return out
}

func bind(c Code, args Args) (Code, bool) {
	switch n := c.(type) {
	case CodeParam:
		if n.Index >= 0 && n.Index < args.Len() {
			return CodeValue{V: *args.At(n.Index)}, true
		}
	case CodeCall:
		var out []Code
		for i, a := range n.Args {
			b, changed := bind(a, args)
			if changed && out == nil {
				out = make([]Code, len(n.Args))
				copy(out, n.Args[:i])
			}
			if out != nil {
				out[i] = b
			}
		}
		if out != nil {
			return CodeCall{Fn: n.Fn, Name: n.Name, Args: out}, true
		}
	case CodeIf:
		cond, c1 := bind(n.Cond, args)
		then, c2 := bind(n.Then, args)
		els, c3 := bind(n.Else, args)
		if c1 || c2 || c3 {
			return CodeIf{Cond: cond, Then: then, Else: els}, true
		}
	}
	return c, false
}
