package VM

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlvibe/fnvm/internal/SATS"
)

func TestProgramRef_ValidOnlyDuringLoan(t *testing.T) {
	prog := NewProgram(nil, WithVar("x", SATS.I64(1)))

	ref := prog.AsProgramRef()
	require.True(t, ref.Valid())
	v, ok := ref.Var("x")
	require.True(t, ok)
	assert.Equal(t, int64(1), v.I64())

	prog.Release(ref)
	assert.False(t, ref.Valid())
	assert.Panics(t, func() { ref.Var("x") })
	assert.Panics(t, func() { ref.Count("n", 1) })
	assert.Panics(t, func() { prog.Release(ref) }, "double release")
}

func TestProgramRef_StaleRefAfterNewLoan(t *testing.T) {
	prog := NewProgram(nil)
	first := prog.AsProgramRef()
	prog.Release(first)

	second := prog.AsProgramRef()
	assert.False(t, first.Valid())
	assert.True(t, second.Valid())
	assert.Panics(t, func() { prog.Release(first) })
	prog.Release(second)
}

func TestProgramRef_ZeroValueIsInvalid(t *testing.T) {
	var ref ProgramRef
	assert.False(t, ref.Valid())
	assert.Panics(t, func() { ref.Functions() })
}

func TestProgramRef_LeakedFromCallableFailsLoudly(t *testing.T) {
	var leaked ProgramRef
	b := NewBuilder()
	id, err := b.RegisterFunc("leak", nil, SATS.UnitType(), func(p ProgramRef, _ Args) (Code, error) {
		leaked = p
		return Lit(SATS.Unit()), nil
	})
	require.NoError(t, err)
	reg := b.Freeze()
	prog := NewProgram(reg, WithVar("secret", SATS.I64(7)))

	_, err = NewEvaluator(reg, prog).Eval(Call(id), nil)
	require.NoError(t, err)
	assert.False(t, leaked.Valid())
	assert.Panics(t, func() { leaked.Var("secret") })
}

func TestProgram_TablesVarsStats(t *testing.T) {
	users := &memTable{name: "users", rows: [][]SATS.AlgebraicValue{{SATS.I64(1)}, {SATS.I64(2)}}}
	prog := NewProgram(nil, WithTable(users))
	prog.AddTable(&memTable{name: "empty"})
	prog.SetVar("limit", SATS.I64(10))

	tab, ok := prog.Table("users")
	require.True(t, ok)
	assert.Equal(t, 2, tab.Len())
	_, ok = prog.Table("empty")
	assert.True(t, ok)
	_, ok = prog.Table("missing")
	assert.False(t, ok)

	v, ok := prog.Var("limit")
	require.True(t, ok)
	assert.Equal(t, int64(10), v.I64())

	prog.Count("rows", 2)
	prog.Count("rows", 3)
	stats := prog.Stats()
	assert.Equal(t, int64(5), stats["rows"])
	stats["rows"] = 0
	assert.Equal(t, int64(5), prog.Stats()["rows"])
}
