// Package math implements the Math extension: floating-point functions over
// I64 and F64 arguments.
//
// Importing the package registers the extension:
//
//	import _ "github.com/sqlvibe/fnvm/ext/math"
package math

import (
	gomath "math"

	"github.com/sqlvibe/fnvm/ext"
	"github.com/sqlvibe/fnvm/internal/SATS"
	svdberr "github.com/sqlvibe/fnvm/internal/SF/errors"
	"github.com/sqlvibe/fnvm/internal/VM"
)

// MathExtension implements the Math extension.
type MathExtension struct{}

func (e *MathExtension) Name() string        { return "math" }
func (e *MathExtension) Description() string { return "Math extension" }

func (e *MathExtension) Functions() []string {
	names := make([]string, len(functions))
	for i, f := range functions {
		names[i] = f.name
	}
	return names
}

func (e *MathExtension) Install(b *VM.Builder) error {
	for _, f := range functions {
		if _, err := b.RegisterDef(f.def(), f.fn); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	ext.Register("math", &MathExtension{})
}

// ---------- helpers ----------

var (
	tNum = SATS.AnyType() // I64 or F64, checked on call
	tF64 = SATS.F64Type()
)

type mathFunc struct {
	name   string
	params []string
	result SATS.AlgebraicType
	fn     VM.FunVMFunc
}

func (f mathFunc) def() VM.FunDef {
	params := make([]VM.Param, len(f.params))
	for i, p := range f.params {
		params[i] = VM.NewParam(p, tNum)
	}
	return VM.NewFunDef(f.name, params, f.result)
}

func toFloat64Math(name string, v *SATS.AlgebraicValue) (float64, error) {
	switch v.Kind() {
	case SATS.KindI64:
		return float64(v.I64()), nil
	case SATS.KindF64:
		return v.F64(), nil
	}
	return 0, svdberr.Errorf(svdberr.SVDB_MISMATCH_TYPE, "%s expects a number, got %s", name, v.Type())
}

func domainError(name string, x float64) error {
	return svdberr.Errorf(svdberr.SVDB_RANGE, "%s: %v is outside the domain", name, x)
}

// unary builds a one-argument function defined where ok(x) holds.
func unary(name string, op func(float64) float64, ok func(float64) bool) mathFunc {
	return mathFunc{
		name:   name,
		params: []string{"x"},
		result: tF64,
		fn: func(_ VM.ProgramRef, args VM.Args) (VM.Code, error) {
			x, err := toFloat64Math(name, args.At(0))
			if err != nil {
				return nil, err
			}
			if ok != nil && !ok(x) {
				return nil, domainError(name, x)
			}
			return VM.Lit(SATS.F64(op(x))), nil
		},
	}
}

func positive(x float64) bool { return x > 0 }

// ---------- function implementations ----------

var functions = []mathFunc{
	{
		name:   "power",
		params: []string{"base", "exp"},
		result: tF64,
		fn: func(_ VM.ProgramRef, args VM.Args) (VM.Code, error) {
			base, err := toFloat64Math("power", args.At(0))
			if err != nil {
				return nil, err
			}
			exp, err := toFloat64Math("power", args.At(1))
			if err != nil {
				return nil, err
			}
			return VM.Lit(SATS.F64(gomath.Pow(base, exp))), nil
		},
	},
	unary("sqrt", gomath.Sqrt, func(x float64) bool { return x >= 0 }),
	unary("exp", gomath.Exp, nil),
	unary("ln", gomath.Log, positive),
	unary("log2", gomath.Log2, positive),
	unary("log10", gomath.Log10, positive),
	unary("floor", gomath.Floor, nil),
	unary("ceil", gomath.Ceil, nil),
	{
		name:   "sign",
		params: []string{"x"},
		result: SATS.I64Type(),
		fn: func(_ VM.ProgramRef, args VM.Args) (VM.Code, error) {
			x, err := toFloat64Math("sign", args.At(0))
			if err != nil {
				return nil, err
			}
			switch {
			case x > 0:
				return VM.Lit(SATS.I64(1)), nil
			case x < 0:
				return VM.Lit(SATS.I64(-1)), nil
			}
			return VM.Lit(SATS.I64(0)), nil
		},
	},
	{
		name:   "pi",
		result: tF64,
		fn: func(VM.ProgramRef, VM.Args) (VM.Code, error) {
			return VM.Lit(SATS.F64(gomath.Pi)), nil
		},
	},
	unary("to_f64", func(x float64) float64 { return x }, nil),
}
