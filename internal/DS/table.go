// Package DS holds the row sources the evaluator reads: in-memory tables and
// loaders that fill them from database/sql.
package DS

import (
	"slices"

	"github.com/sqlvibe/fnvm/internal/SATS"
	svdberr "github.com/sqlvibe/fnvm/internal/SF/errors"
	"github.com/sqlvibe/fnvm/internal/VM"
)

// MemTable is an append-only in-memory table. Rows are checked against the
// schema on insert, so readers never see a value of the wrong type.
type MemTable struct {
	name   string
	schema SATS.ProductType
	rows   [][]SATS.AlgebraicValue
}

func NewMemTable(name string, schema SATS.ProductType) *MemTable {
	return &MemTable{name: name, schema: schema}
}

func (t *MemTable) Name() string { return t.name }
func (t *MemTable) Schema() SATS.ProductType { return t.schema }
func (t *MemTable) Len() int { return len(t.rows) }

// Row returns row i. The slice is shared with the table and must not be
// modified.
func (t *MemTable) Row(i int) []SATS.AlgebraicValue { return t.rows[i] }

// Insert appends a copy of row.
func (t *MemTable) Insert(row []SATS.AlgebraicValue) error {
	if len(row) != t.schema.Len() {
		return svdberr.Errorf(svdberr.SVDB_MISMATCH_ARITY, "%s: row has %d columns, schema has %d",
			t.name, len(row), t.schema.Len())
	}
	for i, v := range row {
		f := t.schema.Fields[i]
		if !v.HasType(f.Type) {
			return svdberr.Errorf(svdberr.SVDB_MISMATCH_TYPE, "%s.%s expects %s, got %s",
				t.name, f.Name, f.Type, v.Type())
		}
	}
	t.rows = append(t.rows, slices.Clone(row))
	return nil
}

// InsertAll inserts rows in order and stops at the first bad row.
func (t *MemTable) InsertAll(rows ...[]SATS.AlgebraicValue) error {
	for _, r := range rows {
		if err := t.Insert(r); err != nil {
			return err
		}
	}
	return nil
}

// Column returns the index of the named column.
func (t *MemTable) Column(name string) (int, error) {
	i, ok := t.schema.Index(name)
	if !ok {
		return 0, svdberr.Errorf(svdberr.SVDB_NOTFOUND_COLUMN, "%s has no column %q", t.name, name)
	}
	return i, nil
}

var _ VM.Table = (*MemTable)(nil)
