package VM

import (
	"cmp"
	"strings"

	"github.com/sqlvibe/fnvm/internal/SATS"
	svdberr "github.com/sqlvibe/fnvm/internal/SF/errors"
	"github.com/sqlvibe/fnvm/internal/SF/util"
)

// ArgsShape is the calling convention of one call.
type ArgsShape uint8

const (
	ArgsUnary ArgsShape = iota + 1
	ArgsBinary
	ArgsSplat
)

var argsShapeNames = [...]string{"", "Unary", "Binary", "Splat"}

func (s ArgsShape) String() string {
	if int(s) < len(argsShapeNames) && s != 0 {
		return argsShapeNames[s]
	}
	return "ArgsShape(?)"
}

// Args carries the live arguments of one call without allocating for the
// one- and two-argument cases. The values are borrowed from the caller and
// are only valid until the call returns: a callable that wants to keep one
// must copy it.
type Args struct {
	shape ArgsShape
	a, b  *SATS.AlgebraicValue
	splat []SATS.AlgebraicValue
}

func Unary(v *SATS.AlgebraicValue) Args {
	return Args{shape: ArgsUnary, a: v}
}

func Binary(a, b *SATS.AlgebraicValue) Args {
	return Args{shape: ArgsBinary, a: a, b: b}
}

func Splat(vs []SATS.AlgebraicValue) Args {
	return Args{shape: ArgsSplat, splat: vs}
}

// Nullary is the zero-argument call: an empty Splat.
func Nullary() Args {
	return Splat(nil)
}

func (a Args) Shape() ArgsShape { return a.shape }

// Len returns the arity the variant implies.
func (a Args) Len() int {
	switch a.shape {
	case ArgsUnary:
		return 1
	case ArgsBinary:
		return 2
	case ArgsSplat:
		return len(a.splat)
	}
	util.Assert(false, "Args used without a constructor")
	return 0
}

// At returns argument i. An index outside Len is a caller bug.
func (a Args) At(i int) *SATS.AlgebraicValue {
	util.Assert(i >= 0 && i < a.Len(), "argument index %d out of range for %s", i, a.shape)
	switch a.shape {
	case ArgsUnary:
		return a.a
	case ArgsBinary:
		if i == 0 {
			return a.a
		}
		return a.b
	}
	return &a.splat[i]
}

// Values returns the arguments as a slice. For Splat this is the borrowed
// slice itself; the other shapes copy.
func (a Args) Values() []SATS.AlgebraicValue {
	switch a.shape {
	case ArgsUnary:
		return []SATS.AlgebraicValue{*a.a}
	case ArgsBinary:
		return []SATS.AlgebraicValue{*a.a, *a.b}
	}
	return a.splat
}

// Compare orders Args by shape, then element-wise. Only diagnostics and tests
// use it.
func (a Args) Compare(o Args) int {
	if c := cmp.Compare(a.shape, o.shape); c != 0 {
		return c
	}
	n := min(a.Len(), o.Len())
	for i := 0; i < n; i++ {
		if c := SATS.Compare(*a.At(i), *o.At(i)); c != 0 {
			return c
		}
	}
	return cmp.Compare(a.Len(), o.Len())
}

func (a Args) String() string {
	var sb strings.Builder
	sb.WriteString(a.shape.String())
	sb.WriteByte('(')
	for i := 0; i < a.Len(); i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(a.At(i).String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// shapeFor is the convention a call of n arguments to def must use: Unary
// for one fixed parameter, Binary for two, Splat otherwise.
func shapeFor(def FunDef, n int) ArgsShape {
	if !def.IsVariadic() {
		switch n {
		case 1:
			return ArgsUnary
		case 2:
			return ArgsBinary
		}
	}
	return ArgsSplat
}

// ShapeArgs picks the calling convention for def. Variadic functions always
// get Splat. vals is borrowed by the result.
func ShapeArgs(def FunDef, vals []SATS.AlgebraicValue) Args {
	if def.AcceptsArity(len(vals)) {
		switch shapeFor(def, len(vals)) {
		case ArgsUnary:
			return Unary(&vals[0])
		case ArgsBinary:
			return Binary(&vals[0], &vals[1])
		}
	}
	return Splat(vals)
}

// CheckArgs fails with ErrArityMismatch when the arity args implies does not
// fit def or args is not in the shape ShapeArgs would pick, and with
// ErrTypeMismatch when an argument's runtime type disagrees with its declared
// parameter type. Nothing is coerced.
func CheckArgs(def FunDef, args Args) error {
	n := args.Len()
	if !def.AcceptsArity(n) {
		if def.IsVariadic() {
			return svdberr.Errorf(svdberr.SVDB_MISMATCH_ARITY,
				"%s expects at least %d arguments, got %d (%s)", def.Name, def.Arity(), n, args.shape)
		}
		return svdberr.Errorf(svdberr.SVDB_MISMATCH_ARITY,
			"%s expects %d arguments, got %d (%s)", def.Name, def.Arity(), n, args.shape)
	}
	if want := shapeFor(def, n); args.shape != want {
		return svdberr.Errorf(svdberr.SVDB_MISMATCH_ARITY,
			"%s takes %d arguments as %s, got %s", def.Name, n, want, args.shape)
	}
	for i := 0; i < n; i++ {
		v := args.At(i)
		if want := def.ParamType(i); !v.HasType(want) {
			return svdberr.Errorf(svdberr.SVDB_MISMATCH_TYPE,
				"%s: argument %d (%s) expects %s, got %s", def.Name, i, def.ParamName(i), want, v.Type())
		}
	}
	return nil
}
