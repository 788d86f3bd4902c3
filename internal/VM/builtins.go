package VM

import (
	"strings"

	"github.com/sqlvibe/fnvm/internal/SATS"
	svdberr "github.com/sqlvibe/fnvm/internal/SF/errors"
)

var (
	tBool   = SATS.BoolType()
	tI64    = SATS.I64Type()
	tString = SATS.StringType()
	tAny    = SATS.AnyType()
)

func value(v SATS.AlgebraicValue) (Code, error) { return CodeValue{V: v}, nil }

// builtin is one entry of the core function set.
type builtin struct {
	def FunDef
	fn  FunVMFunc
}

func i64Binary(name string, op func(a, b int64) (int64, error)) builtin {
	return builtin{
		def: NewFunDef(name, []Param{NewParam("x", tI64), NewParam("y", tI64)}, tI64),
		fn: func(_ ProgramRef, args Args) (Code, error) {
			n, err := op(args.At(0).I64(), args.At(1).I64())
			if err != nil {
				return nil, err
			}
			return value(SATS.I64(n))
		},
	}
}

func compare(name string, pred func(int) bool) builtin {
	return builtin{
		def: NewFunDef(name, []Param{NewParam("a", tAny), NewParam("b", tAny)}, tBool),
		fn: func(_ ProgramRef, args Args) (Code, error) {
			return value(SATS.Bool(pred(SATS.Compare(*args.At(0), *args.At(1)))))
		},
	}
}

func connective(name string, kind Connective, op func(a, b bool) bool) builtin {
	def := NewFunDef(name, []Param{NewParam("a", tBool), NewParam("b", tBool)}, tBool)
	def.Connective = kind
	return builtin{
		def: def,
		fn: func(_ ProgramRef, args Args) (Code, error) {
			return value(SATS.Bool(op(args.At(0).Bool(), args.At(1).Bool())))
		},
	}
}

func stringUnary(name string, op func(string) string) builtin {
	return builtin{
		def: NewFunDef(name, []Param{NewParam("s", tString)}, tString),
		fn: func(_ ProgramRef, args Args) (Code, error) {
			return value(SATS.String(op(args.At(0).Text())))
		},
	}
}

func divByZero(name string) error {
	return svdberr.Errorf(svdberr.SVDB_RANGE, "%s: division by zero", name)
}

func builtins() []builtin {
	return []builtin{
		i64Binary("add", func(a, b int64) (int64, error) { return a + b, nil }),
		i64Binary("sub", func(a, b int64) (int64, error) { return a - b, nil }),
		i64Binary("mul", func(a, b int64) (int64, error) { return a * b, nil }),
		i64Binary("div", func(a, b int64) (int64, error) {
			if b == 0 {
				return 0, divByZero("div")
			}
			return a / b, nil
		}),
		i64Binary("mod", func(a, b int64) (int64, error) {
			if b == 0 {
				return 0, divByZero("mod")
			}
			return a % b, nil
		}),
		{
			def: NewFunDef("neg", []Param{NewParam("x", tI64)}, tI64),
			fn: func(_ ProgramRef, args Args) (Code, error) {
				return value(SATS.I64(-args.At(0).I64()))
			},
		},

		compare("eq", func(c int) bool { return c == 0 }),
		compare("ne", func(c int) bool { return c != 0 }),
		compare("lt", func(c int) bool { return c < 0 }),
		compare("le", func(c int) bool { return c <= 0 }),
		compare("gt", func(c int) bool { return c > 0 }),
		compare("ge", func(c int) bool { return c >= 0 }),

		connective("and", ConnectiveAnd, func(a, b bool) bool { return a && b }),
		connective("or", ConnectiveOr, func(a, b bool) bool { return a || b }),
		{
			def: NewFunDef("not", []Param{NewParam("a", tBool)}, tBool),
			fn: func(_ ProgramRef, args Args) (Code, error) {
				return value(SATS.Bool(!args.At(0).Bool()))
			},
		},
		{
			def: NewFunDef("is_even", []Param{NewParam("x", tI64)}, tBool),
			fn: func(_ ProgramRef, args Args) (Code, error) {
				return value(SATS.Bool(args.At(0).I64()%2 == 0))
			},
		},

		{
			def: NewVariadicFunDef("concat", nil, NewParam("args", tString), tString),
			fn: func(_ ProgramRef, args Args) (Code, error) {
				var sb strings.Builder
				for i := 0; i < args.Len(); i++ {
					sb.WriteString(args.At(i).Text())
				}
				return value(SATS.String(sb.String()))
			},
		},
		{
			def: NewFunDef("length", []Param{NewParam("s", tString)}, tI64),
			fn: func(_ ProgramRef, args Args) (Code, error) {
				return value(SATS.I64(int64(len([]rune(args.At(0).Text())))))
			},
		},
		stringUnary("upper", strings.ToUpper),
		stringUnary("lower", strings.ToLower),

		{
			def: NewFunDef("count_rows", []Param{NewParam("table", tString)}, tI64),
			fn: func(p ProgramRef, args Args) (Code, error) {
				name := args.At(0).Text()
				t, ok := p.Table(name)
				if !ok {
					return nil, svdberr.Errorf(svdberr.SVDB_NOTFOUND, "count_rows: no table %q", name)
				}
				p.Count("tables_read", 1)
				return value(SATS.I64(int64(t.Len())))
			},
		},
		{
			def: NewFunDef("coalesce_var", []Param{NewParam("name", tString), NewParam("fallback", tAny)}, tAny),
			fn: func(p ProgramRef, args Args) (Code, error) {
				if v, ok := p.Var(args.At(0).Text()); ok {
					return value(v)
				}
				return value(*args.At(1))
			},
		},
	}
}

// InstallBuiltins registers the core function set into b: integer
// arithmetic, comparisons, boolean connectives, string helpers and
// functions that read program state.
func InstallBuiltins(b *Builder) error {
	for _, bi := range builtins() {
		if _, err := b.RegisterDef(bi.def, bi.fn); err != nil {
			return err
		}
	}
	return nil
}
