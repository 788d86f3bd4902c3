package DS

import (
	"context"
	"database/sql"

	"github.com/sqlvibe/fnvm/internal/SATS"
	svdberr "github.com/sqlvibe/fnvm/internal/SF/errors"
	"github.com/sqlvibe/fnvm/internal/log"
)

// LoadSQL runs query on db and copies the result into a MemTable named name.
// Driver values are converted to the schema's column types; NULL or a value
// that does not fit its column is a type mismatch. An empty schema is derived
// from the result's declared column types.
func LoadSQL(ctx context.Context, db *sql.DB, name, query string, schema SATS.ProductType) (*MemTable, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, svdberr.Wrap(svdberr.SVDB_ERROR, err, "load %s", name)
	}
	defer rows.Close()

	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, svdberr.Wrap(svdberr.SVDB_ERROR, err, "load %s: column types", name)
	}
	if schema.Len() == 0 {
		schema = SchemaOf(cols)
	}
	if len(cols) != schema.Len() {
		return nil, svdberr.Errorf(svdberr.SVDB_SCHEMA, "load %s: query returns %d columns, schema has %d",
			name, len(cols), schema.Len())
	}

	t := NewMemTable(name, schema)
	raw := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, svdberr.Wrap(svdberr.SVDB_ERROR, err, "load %s: row %d", name, t.Len())
		}
		row := make([]SATS.AlgebraicValue, len(raw))
		for i, x := range raw {
			f := schema.Fields[i]
			if x == nil && f.Type.Kind != SATS.KindUnit {
				return nil, svdberr.Errorf(svdberr.SVDB_MISMATCH_TYPE, "load %s: row %d: %s is NULL",
					name, t.Len(), f.Name)
			}
			v, err := SATS.FromInterface(x, f.Type)
			if err != nil {
				return nil, svdberr.Wrap(svdberr.SVDB_MISMATCH_TYPE, err, "load %s: row %d column %s", name, t.Len(), f.Name)
			}
			row[i] = v
		}
		t.rows = append(t.rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, svdberr.Wrap(svdberr.SVDB_ERROR, err, "load %s", name)
	}
	log.Debug("loaded table", "table", name, "rows", t.Len(), "schema", schema.String())
	return t, nil
}

// SchemaOf maps declared SQL column types to a schema. Undeclared or unknown
// types become Any.
func SchemaOf(cols []*sql.ColumnType) SATS.ProductType {
	fields := make([]SATS.ProductField, len(cols))
	for i, c := range cols {
		t := SATS.AnyType()
		if k, ok := SATS.ParseKind(c.DatabaseTypeName()); ok {
			t = SATS.Scalar(k)
		}
		fields[i] = SATS.ProductField{Name: c.Name(), Type: t}
	}
	return SATS.NewProductType(fields...)
}
