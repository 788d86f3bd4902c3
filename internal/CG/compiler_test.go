package CG

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlvibe/fnvm/internal/SATS"
	svdberr "github.com/sqlvibe/fnvm/internal/SF/errors"
	"github.com/sqlvibe/fnvm/internal/VM"
)

func registry(t *testing.T) *VM.Registry {
	t.Helper()
	b := VM.NewBuilder()
	require.NoError(t, VM.InstallBuiltins(b))
	return b.Freeze()
}

func schema() SATS.ProductType {
	return SATS.NewProductType(
		SATS.ProductField{Name: "id", Type: SATS.I64Type()},
		SATS.ProductField{Name: "name", Type: SATS.StringType()},
	)
}

func compileString(t *testing.T, reg *VM.Registry, plan string) (VM.Code, error) {
	t.Helper()
	n, err := Decode([]byte(plan))
	if err != nil {
		return nil, err
	}
	return Compile(reg, schema(), n)
}

func TestCompile_Resolves(t *testing.T) {
	reg := registry(t)
	tests := []struct {
		plan string
		want string
	}{
		{`{"lit": 42}`, "42"},
		{`{"lit": null}`, "()"},
		{`{"lit": 2, "type": "F64"}`, "2"},
		{`{"lit": [1, 2]}`, "[1, 2]"},
		{`{"lit": "cafe", "type": "bytes"}`, "0x63616665"},
		{`{"col": "name"}`, "name"},
		{`{"var": "limit"}`, ":limit"},
		{`{"call": "add", "args": [{"col": "id"}, {"lit": 1}]}`, "add(id, 1)"},
		{`{"call": "concat", "args": [{"col": "name"}, {"lit": "!"}, {"lit": "?"}]}`, `concat(name, "!", "?")`},
		{`{"call": "add", "args": [{"var": "x"}, {"lit": 1}]}`, "add(:x, 1)"},
		{`{"if": [{"call": "gt", "args": [{"col": "id"}, {"lit": 1}]}, {"lit": "big"}, {"lit": "small"}]}`,
			`if(gt(id, 1), "big", "small")`},
	}
	for _, tt := range tests {
		t.Run(tt.plan, func(t *testing.T) {
			code, err := compileString(t, reg, tt.plan)
			require.NoError(t, err)
			assert.Equal(t, tt.want, code.String())
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	reg := registry(t)
	tests := []struct {
		plan string
		want error
	}{
		{`{"call": "nope"}`, svdberr.ErrUnknownFunction},
		{`{"col": "email"}`, svdberr.ErrUnknownColumn},
		{`{"call": "is_even", "args": [{"lit": 1}, {"lit": 2}]}`, svdberr.ErrArityMismatch},
		{`{"call": "add", "args": [{"lit": "x"}, {"lit": 1}]}`, svdberr.ErrTypeMismatch},
		{`{"call": "upper", "args": [{"col": "id"}]}`, svdberr.ErrTypeMismatch},
		{`{"if": [{"lit": 1}, {"lit": 2}, {"lit": 3}]}`, svdberr.ErrTypeMismatch},
		{`{"lit": "x", "type": "I64"}`, svdberr.ErrTypeMismatch},
		{`{"if": [{"lit": true}, {"lit": 2}]}`, svdberr.ErrInvalidPlan},
		{`{"col": "id", "var": "x"}`, svdberr.ErrInvalidPlan},
		{`{}`, svdberr.ErrInvalidPlan},
		{`{"col": "id", "args": []}`, svdberr.ErrInvalidPlan},
		{`{"col": "id", "type": "I64"}`, svdberr.ErrInvalidPlan},
		{`{"param": "x"}`, svdberr.ErrInvalidPlan},
		{`{"colum": "id"}`, svdberr.ErrInvalidPlan},
		{`{"lit": 1, "type": "Money"}`, svdberr.ErrInvalidPlan},
		{`{"call": "add", "args": [null, {"lit": 1}]}`, svdberr.ErrInvalidPlan},
	}
	for _, tt := range tests {
		t.Run(tt.plan, func(t *testing.T) {
			_, err := compileString(t, reg, tt.plan)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCompile_Evaluates(t *testing.T) {
	reg := registry(t)
	code, err := compileString(t, reg,
		`{"if": [{"call": "is_even", "args": [{"col": "id"}]},
		         {"call": "upper", "args": [{"col": "name"}]},
		         {"call": "concat", "args": [{"col": "name"}, {"lit": "?"}]}]}`)
	require.NoError(t, err)

	e := VM.NewEvaluator(reg, VM.NewProgram(reg))
	v, err := e.Eval(code, []SATS.AlgebraicValue{SATS.I64(2), SATS.String("ada")})
	require.NoError(t, err)
	assert.Equal(t, "ADA", v.Text())

	v, err = e.Eval(code, []SATS.AlgebraicValue{SATS.I64(3), SATS.String("bob")})
	require.NoError(t, err)
	assert.Equal(t, "bob?", v.Text())
}

func TestCompiler_CompileJSONUsesCache(t *testing.T) {
	reg := registry(t)
	cache := NewPlanCache(8)
	c := NewCompiler(reg, schema(), WithCache(cache))
	plan := []byte(`{"call": "neg", "args": [{"col": "id"}]}`)

	first, err := c.CompileJSON(plan)
	require.NoError(t, err)
	second, err := c.CompileJSON(plan)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), cache.Hits(c.cacheKey(plan)))

	_, err = c.CompileJSON([]byte(`{"call": "nope"}`))
	require.ErrorIs(t, err, svdberr.ErrUnknownFunction)
	assert.Equal(t, 1, cache.Len(), "failed compilations are not cached")
}

// The same plan text compiled against two schemas through one cache must
// resolve the column against each schema.
func TestCompiler_CacheKeyedBySchema(t *testing.T) {
	reg := registry(t)
	cache := NewPlanCache(8)
	ab := SATS.NewProductType(
		SATS.ProductField{Name: "a", Type: SATS.I64Type()},
		SATS.ProductField{Name: "b", Type: SATS.I64Type()},
	)
	b := SATS.NewProductType(SATS.ProductField{Name: "b", Type: SATS.I64Type()})
	plan := []byte(`{"col": "b"}`)

	code, err := NewCompiler(reg, ab, WithCache(cache)).CompileJSON(plan)
	require.NoError(t, err)
	assert.Equal(t, 1, code.(VM.CodeColumn).Index)

	code, err = NewCompiler(reg, b, WithCache(cache)).CompileJSON(plan)
	require.NoError(t, err)
	assert.Equal(t, 0, code.(VM.CodeColumn).Index)
	assert.Equal(t, 2, cache.Len())

	other := registry(t)
	_, err = NewCompiler(other, b, WithCache(cache)).CompileJSON(plan)
	require.NoError(t, err)
	assert.Equal(t, 3, cache.Len(), "each catalog gets its own entry")
}

func TestPlanCache_Limit(t *testing.T) {
	pc := NewPlanCache(2)
	pc.Put("a", VM.Lit(SATS.I64(1)))
	pc.Put("b", VM.Lit(SATS.I64(2)))
	pc.Put("a", VM.Lit(SATS.I64(3)))
	assert.Equal(t, 2, pc.Len(), "replacing an entry does not evict")

	pc.Put("c", VM.Lit(SATS.I64(4)))
	assert.Equal(t, 2, pc.Len())
	_, ok := pc.Get("c")
	assert.True(t, ok)

	pc.Invalidate()
	assert.Equal(t, 0, pc.Len())
	assert.Equal(t, int64(0), pc.Hits("c"))
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"I64", "I64", true},
		{"integer", "I64", true},
		{"Array<String>", "Array<String>", true},
		{"Array<Array<F64>>", "Array<Array<F64>>", true},
		{"Array<Money>", "", false},
		{"Product", "", false},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.in)
		if !tt.ok {
			require.ErrorIs(t, err, svdberr.ErrInvalidPlan, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got.String())
	}
}
