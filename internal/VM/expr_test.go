package VM

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlvibe/fnvm/internal/SATS"
)

func TestCode_String(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{i64(42), "42"},
		{str("x"), `"x"`},
		{Col(2, ""), "$2"},
		{Col(0, "id"), "id"},
		{Arg(1, ""), "@1"},
		{Arg(0, "x"), "@x"},
		{Var("limit"), ":limit"},
		{Call(3, i64(1), Col(0, "id")), "#3(1, id)"},
		{CodeCall{Fn: 0, Name: "add", Args: []Code{i64(1), i64(2)}}, "add(1, 2)"},
		{If(boolean(true), i64(1), nil), "if(true, 1, <nil>)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.code.String())
	}
}

func TestIsValue(t *testing.T) {
	v, ok := IsValue(i64(7))
	require.True(t, ok)
	assert.Equal(t, int64(7), v.I64())

	_, ok = IsValue(Col(0, "a"))
	assert.False(t, ok)
}

func TestWalk(t *testing.T) {
	code := Call(0, If(Var("c"), i64(1), Col(0, "a")), Call(1, Arg(0, "x")))

	var seen []string
	Walk(code, func(c Code) bool {
		seen = append(seen, c.String())
		return true
	})
	assert.Equal(t, []string{
		"#0(if(:c, 1, a), #1(@x))",
		"if(:c, 1, a)", ":c", "1", "a",
		"#1(@x)", "@x",
	}, seen)

	visits := 0
	complete := Walk(code, func(c Code) bool {
		visits++
		_, isIf := c.(CodeIf)
		return !isIf
	})
	assert.False(t, complete)
	assert.Equal(t, 2, visits)
}

func TestBind(t *testing.T) {
	shared := Call(5, i64(1), i64(2))
	body := Call(0, Arg(0, "x"), shared, If(Arg(1, "y"), Arg(0, "x"), i64(0)))

	x, y := SATS.I64(10), SATS.Bool(true)
	bound := Bind(body, Binary(&x, &y))
	assert.Equal(t, "#0(10, #5(1, 2), if(true, 10, 0))", bound.String())
	assert.Equal(t, "#0(@x, #5(1, 2), if(@y, @x, 0))", body.String(), "body is left untouched")

	call := bound.(CodeCall)
	assert.Equal(t, shared.(CodeCall).Args, call.Args[1].(CodeCall).Args)

	unchanged := Call(1, i64(3))
	assert.Equal(t, unchanged, Bind(unchanged, Nullary()))
}
