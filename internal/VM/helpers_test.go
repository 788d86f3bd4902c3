package VM

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sqlvibe/fnvm/internal/SATS"
)

func builtinRegistry(t *testing.T) *Registry {
	t.Helper()
	b := NewBuilder()
	require.NoError(t, InstallBuiltins(b))
	return b.Freeze()
}

func mustID(t *testing.T, r *Registry, name string) FunctionId {
	t.Helper()
	id, ok := r.ResolveByName(name)
	require.True(t, ok, "function %s not registered", name)
	return id
}

func i64(n int64) Code { return Lit(SATS.I64(n)) }
func str(s string) Code { return Lit(SATS.String(s)) }
func boolean(b bool) Code { return Lit(SATS.Bool(b)) }

// memTable is a minimal Table for tests.
type memTable struct {
	name   string
	schema SATS.ProductType
	rows   [][]SATS.AlgebraicValue
}

func (m *memTable) Name() string { return m.name }
func (m *memTable) Schema() SATS.ProductType { return m.schema }
func (m *memTable) Len() int { return len(m.rows) }
func (m *memTable) Row(i int) []SATS.AlgebraicValue { return m.rows[i] }
