package VM

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlvibe/fnvm/internal/SATS"
	svdberr "github.com/sqlvibe/fnvm/internal/SF/errors"
)

func TestArgs_Shapes(t *testing.T) {
	a, b := SATS.I64(2), SATS.I64(3)

	u := Unary(&a)
	assert.Equal(t, ArgsUnary, u.Shape())
	assert.Equal(t, 1, u.Len())
	assert.Equal(t, "Unary(2)", u.String())

	bin := Binary(&a, &b)
	assert.Equal(t, 2, bin.Len())
	assert.Equal(t, int64(3), bin.At(1).I64())
	assert.Equal(t, "Binary(2, 3)", bin.String())

	sp := Splat([]SATS.AlgebraicValue{SATS.String("a"), SATS.String("b"), SATS.String("c")})
	assert.Equal(t, ArgsSplat, sp.Shape())
	assert.Equal(t, 3, sp.Len())
	assert.Equal(t, `Splat("a", "b", "c")`, sp.String())

	n := Nullary()
	assert.Equal(t, ArgsSplat, n.Shape())
	assert.Equal(t, 0, n.Len())
	assert.Equal(t, "Splat()", n.String())
}

func TestArgs_AtOutOfRangePanics(t *testing.T) {
	a := SATS.I64(1)
	assert.Panics(t, func() { Unary(&a).At(1) })
	assert.Panics(t, func() { Nullary().At(0) })
	assert.Panics(t, func() { Args{}.Len() })
}

func TestArgs_ValuesCopiesFixedShapes(t *testing.T) {
	a, b := SATS.I64(1), SATS.I64(2)
	vals := Binary(&a, &b).Values()
	vals[0] = SATS.I64(99)
	assert.Equal(t, int64(1), a.I64())

	buf := []SATS.AlgebraicValue{SATS.I64(1)}
	assert.Same(t, &buf[0], &Splat(buf).Values()[0], "splat values are borrowed")
}

func TestArgs_Compare(t *testing.T) {
	one, two, three := SATS.I64(1), SATS.I64(2), SATS.I64(3)
	tests := []struct {
		name string
		a, b Args
		want int
	}{
		{"same", Binary(&one, &two), Binary(&one, &two), 0},
		{"by shape", Unary(&three), Binary(&one, &one), -1},
		{"by element", Binary(&one, &three), Binary(&one, &two), 1},
		{"prefix", Splat([]SATS.AlgebraicValue{one}), Splat([]SATS.AlgebraicValue{one, two}), -1},
		{"empty", Nullary(), Nullary(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
			assert.Equal(t, -tt.want, tt.b.Compare(tt.a))
		})
	}
}

func TestShapeArgs(t *testing.T) {
	i := SATS.I64Type()
	unary := NewFunDef("is_even", []Param{NewParam("x", i)}, SATS.BoolType())
	binary := NewFunDef("add", []Param{NewParam("x", i), NewParam("y", i)}, i)
	ternary := NewFunDef("clamp", []Param{NewParam("x", i), NewParam("lo", i), NewParam("hi", i)}, i)
	variadic := NewVariadicFunDef("concat", nil, NewParam("args", SATS.StringType()), SATS.StringType())

	one := []SATS.AlgebraicValue{SATS.I64(1)}
	two := []SATS.AlgebraicValue{SATS.I64(1), SATS.I64(2)}
	three := []SATS.AlgebraicValue{SATS.I64(1), SATS.I64(2), SATS.I64(3)}

	assert.Equal(t, ArgsUnary, ShapeArgs(unary, one).Shape())
	assert.Equal(t, ArgsBinary, ShapeArgs(binary, two).Shape())
	assert.Equal(t, ArgsSplat, ShapeArgs(ternary, three).Shape())
	assert.Equal(t, ArgsSplat, ShapeArgs(variadic, two).Shape())
	assert.Equal(t, ArgsSplat, ShapeArgs(variadic, one).Shape())
}

func TestCheckArgs(t *testing.T) {
	concat := NewVariadicFunDef("concat", []Param{NewParam("head", SATS.StringType())}, NewParam("rest", SATS.StringType()), SATS.StringType())
	s, n := SATS.String("a"), SATS.I64(1)

	require.NoError(t, CheckArgs(concat, Splat([]SATS.AlgebraicValue{s})))
	require.ErrorIs(t, CheckArgs(concat, Unary(&s)), svdberr.ErrArityMismatch)
	require.NoError(t, CheckArgs(concat, Splat([]SATS.AlgebraicValue{s, s, s})))
	require.ErrorIs(t, CheckArgs(concat, Nullary()), svdberr.ErrArityMismatch)
	require.ErrorIs(t, CheckArgs(concat, Splat([]SATS.AlgebraicValue{s, n})), svdberr.ErrTypeMismatch)

	err := CheckArgs(concat, Nullary())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 1 arguments, got 0 (Splat)")

	anyDef := NewFunDef("id", []Param{NewParam("x", SATS.AnyType())}, SATS.AnyType())
	require.NoError(t, CheckArgs(anyDef, Unary(&n)))
	require.NoError(t, CheckArgs(anyDef, Unary(&s)))
}

func TestCheckArgs_Shape(t *testing.T) {
	a, b := SATS.I64(1), SATS.I64(2)
	unary := NewFunDef("is_even", []Param{NewParam("x", SATS.I64Type())}, SATS.BoolType())
	binary := NewFunDef("add", []Param{NewParam("x", SATS.I64Type()), NewParam("y", SATS.I64Type())}, SATS.I64Type())
	variadic := NewVariadicFunDef("concat", nil, NewParam("args", SATS.I64Type()), SATS.I64Type())

	tests := []struct {
		name string
		def  FunDef
		args Args
		ok   bool
	}{
		{"unary as unary", unary, Unary(&a), true},
		{"unary as splat of one", unary, Splat([]SATS.AlgebraicValue{a}), false},
		{"binary as binary", binary, Binary(&a, &b), true},
		{"binary as splat of two", binary, Splat([]SATS.AlgebraicValue{a, b}), false},
		{"variadic as splat of one", variadic, Splat([]SATS.AlgebraicValue{a}), true},
		{"variadic as splat of two", variadic, Splat([]SATS.AlgebraicValue{a, b}), true},
		{"variadic as unary", variadic, Unary(&a), false},
		{"variadic as binary", variadic, Binary(&a, &b), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckArgs(tt.def, tt.args)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, svdberr.ErrArityMismatch)
			}
		})
	}
}
