package VM

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlvibe/fnvm/internal/SATS"
	svdberr "github.com/sqlvibe/fnvm/internal/SF/errors"
)

func TestBuiltins(t *testing.T) {
	reg := builtinRegistry(t)
	users := &memTable{
		name:   "users",
		schema: SATS.NewProductType(SATS.ProductField{Name: "id", Type: SATS.I64Type()}),
		rows:   [][]SATS.AlgebraicValue{{SATS.I64(1)}, {SATS.I64(2)}, {SATS.I64(3)}},
	}

	tests := []struct {
		fn   string
		args []Code
		want SATS.AlgebraicValue
		code svdberr.ErrorCode
	}{
		{"add", []Code{i64(2), i64(3)}, SATS.I64(5), 0},
		{"sub", []Code{i64(2), i64(3)}, SATS.I64(-1), 0},
		{"mul", []Code{i64(4), i64(5)}, SATS.I64(20), 0},
		{"div", []Code{i64(7), i64(2)}, SATS.I64(3), 0},
		{"div", []Code{i64(7), i64(0)}, SATS.AlgebraicValue{}, svdberr.SVDB_RANGE},
		{"mod", []Code{i64(7), i64(2)}, SATS.I64(1), 0},
		{"mod", []Code{i64(7), i64(0)}, SATS.AlgebraicValue{}, svdberr.SVDB_RANGE},
		{"neg", []Code{i64(4)}, SATS.I64(-4), 0},

		{"eq", []Code{i64(1), i64(1)}, SATS.Bool(true), 0},
		{"eq", []Code{i64(1), Lit(SATS.F64(1))}, SATS.Bool(true), 0},
		{"ne", []Code{str("a"), str("b")}, SATS.Bool(true), 0},
		{"lt", []Code{str("a"), str("b")}, SATS.Bool(true), 0},
		{"le", []Code{i64(2), i64(2)}, SATS.Bool(true), 0},
		{"gt", []Code{i64(3), i64(2)}, SATS.Bool(true), 0},
		{"ge", []Code{i64(1), i64(2)}, SATS.Bool(false), 0},

		{"and", []Code{boolean(true), boolean(false)}, SATS.Bool(false), 0},
		{"or", []Code{boolean(false), boolean(true)}, SATS.Bool(true), 0},
		{"not", []Code{boolean(true)}, SATS.Bool(false), 0},
		{"is_even", []Code{i64(4)}, SATS.Bool(true), 0},
		{"is_even", []Code{i64(7)}, SATS.Bool(false), 0},

		{"concat", []Code{str("a"), str("b"), str("c")}, SATS.String("abc"), 0},
		{"concat", []Code{str("x")}, SATS.String("x"), 0},
		{"concat", []Code{str("x"), i64(1)}, SATS.AlgebraicValue{}, svdberr.SVDB_MISMATCH_TYPE},
		{"length", []Code{str("héllo")}, SATS.I64(5), 0},
		{"upper", []Code{str("abc")}, SATS.String("ABC"), 0},
		{"lower", []Code{str("ABC")}, SATS.String("abc"), 0},

		{"count_rows", []Code{str("users")}, SATS.I64(3), 0},
		{"count_rows", []Code{str("ghosts")}, SATS.AlgebraicValue{}, svdberr.SVDB_NOTFOUND},
		{"coalesce_var", []Code{str("limit"), i64(0)}, SATS.I64(10), 0},
		{"coalesce_var", []Code{str("unset"), str("dflt")}, SATS.String("dflt"), 0},
	}
	for _, tt := range tests {
		code := Call(mustID(t, reg, tt.fn), tt.args...)
		t.Run(code.String(), func(t *testing.T) {
			prog := NewProgram(reg, WithTable(users), WithVar("limit", SATS.I64(10)))
			got, err := NewEvaluator(reg, prog).Eval(code, nil)
			if tt.code != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.code, svdberr.ErrorCodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestBuiltins_CountRowsCountsTableReads(t *testing.T) {
	reg := builtinRegistry(t)
	prog := NewProgram(reg, WithTable(&memTable{name: "t"}))
	e := NewEvaluator(reg, prog)
	count := mustID(t, reg, "count_rows")

	for i := 0; i < 3; i++ {
		v, err := e.Eval(Call(count, str("t")), nil)
		require.NoError(t, err)
		assert.Equal(t, int64(0), v.I64())
	}
	assert.Equal(t, int64(3), prog.Stats()["tables_read"])
}

func TestInstallBuiltins_Twice(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, InstallBuiltins(b))
	n := b.Len()
	require.ErrorIs(t, InstallBuiltins(b), svdberr.ErrDuplicateName)
	assert.Equal(t, n, b.Len())
}
