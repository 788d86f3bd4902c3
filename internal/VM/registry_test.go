package VM

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlvibe/fnvm/internal/SATS"
	svdberr "github.com/sqlvibe/fnvm/internal/SF/errors"
)

func constFn(v SATS.AlgebraicValue) func(ProgramRef, Args) (Code, error) {
	return func(ProgramRef, Args) (Code, error) { return Lit(v), nil }
}

func TestBuilder_DenseIDs(t *testing.T) {
	b := NewBuilder()
	for i, name := range []string{"a", "b", "c"} {
		id, err := b.RegisterFunc(name, nil, SATS.I64Type(), constFn(SATS.I64(int64(i))))
		require.NoError(t, err)
		assert.Equal(t, FunctionId(i), id)
	}
	assert.Equal(t, 3, b.Len())
}

func TestBuilder_DuplicateLeavesRegistryUnchanged(t *testing.T) {
	b := NewBuilder()
	first, err := b.Register("add", []Param{NewParam("x", SATS.I64Type()), NewParam("y", SATS.I64Type())}, SATS.I64Type(),
		FunVMFunc(constFn(SATS.I64(1))))
	require.NoError(t, err)

	_, err = b.RegisterFunc("add", nil, SATS.StringType(), constFn(SATS.String("other")))
	require.ErrorIs(t, err, svdberr.ErrDuplicateName)
	assert.Equal(t, 1, b.Len())

	next, err := b.RegisterFunc("sub", nil, SATS.I64Type(), constFn(SATS.I64(0)))
	require.NoError(t, err)
	assert.Equal(t, first+1, next, "a rejected registration allocates no id")

	reg := b.Freeze()
	f, ok := reg.Lookup("add")
	require.True(t, ok)
	assert.Equal(t, "add(x: I64, y: I64) -> I64", f.Def().String())
}

func TestBuilder_RejectsInvalid(t *testing.T) {
	b := NewBuilder()
	_, err := b.RegisterFunc("bad name", nil, SATS.UnitType(), constFn(SATS.Unit()))
	require.ErrorIs(t, err, svdberr.ErrInvalidSignature)

	_, err = b.Register("f", nil, SATS.UnitType(), nil)
	require.ErrorIs(t, err, svdberr.ErrInvalidSignature)
	assert.Equal(t, 0, b.Len())
}

func TestBuilder_RejectsArrayWithoutElement(t *testing.T) {
	b := NewBuilder()
	params := []Param{NewParam("xs", SATS.AlgebraicType{Kind: SATS.KindArray})}
	require.NotPanics(t, func() {
		_, err := b.RegisterFunc("first", params, SATS.AnyType(), constFn(SATS.Unit()))
		require.Error(t, err)
		assert.True(t, svdberr.IsErrorCode(err, svdberr.SVDB_SCHEMA_SIGNATURE))
		assert.Contains(t, err.Error(), "Array<?>")
	})
	assert.Equal(t, 0, b.Len())
}

func TestBuilder_FrozenRejectsRegistration(t *testing.T) {
	b := NewBuilder()
	_, err := b.RegisterFunc("a", nil, SATS.UnitType(), constFn(SATS.Unit()))
	require.NoError(t, err)
	reg := b.Freeze()

	_, err = b.RegisterFunc("b", nil, SATS.UnitType(), constFn(SATS.Unit()))
	require.ErrorIs(t, err, svdberr.ErrRegistryFrozen)
	assert.Equal(t, 1, reg.Len())
}

func TestBuilder_RegisterLambda(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, InstallBuiltins(b))
	add, _ := b.ResolveByName("add")

	head := NewFunDef("double", []Param{NewParam("x", SATS.I64Type())}, SATS.I64Type())
	l, err := NewLambda(head, Call(add, Arg(0, "x"), Arg(0, "x")))
	require.NoError(t, err)
	id, err := b.RegisterLambda(l)
	require.NoError(t, err)
	assert.Equal(t, FunctionId(b.Len()-1), id)

	ahead := NewFunDef("ahead", []Param{NewParam("x", SATS.I64Type())}, SATS.I64Type())
	l, err = NewLambda(ahead, Call(FunctionId(b.Len()+1), Arg(0, "x")))
	require.NoError(t, err)
	_, err = b.RegisterLambda(l)
	require.ErrorIs(t, err, svdberr.ErrUnknownFunction)
}

func TestRegistry_ResolveByNameAndIDAgree(t *testing.T) {
	reg := builtinRegistry(t)
	defs := reg.Defs()
	require.Equal(t, reg.Len(), len(defs))

	for i, def := range defs {
		id, ok := reg.ResolveByName(def.Name)
		require.True(t, ok, def.Name)
		assert.Equal(t, FunctionId(i), id)

		f, ok := reg.ResolveByID(id)
		require.True(t, ok)
		assert.Equal(t, id, f.Index())
		assert.True(t, f.Def().Equal(def))
	}
}

func TestRegistry_UnknownLookups(t *testing.T) {
	reg := builtinRegistry(t)
	_, ok := reg.ResolveByName("nope")
	assert.False(t, ok)
	_, ok = reg.ResolveByID(FunctionId(reg.Len()))
	assert.False(t, ok)
	_, ok = reg.Lookup("nope")
	assert.False(t, ok)
}

func TestRegistry_CloneIsIndependent(t *testing.T) {
	b := NewBuilder()
	counter := NewCloneable(new(int64),
		func(n *int64) *int64 {
			cp := *n
			return &cp
		},
		func(n *int64, _ ProgramRef, _ Args) (Code, error) {
			*n++
			return Lit(SATS.I64(*n)), nil
		})
	_, err := b.RegisterDef(NewFunDef("next", nil, SATS.I64Type()), counter)
	require.NoError(t, err)
	reg := b.Freeze()
	clone := reg.Clone()

	id := mustID(t, reg, "next")
	cloneID := mustID(t, clone, "next")
	assert.Equal(t, id, cloneID)

	e1 := NewEvaluator(reg, NewProgram(reg))
	e2 := NewEvaluator(clone, NewProgram(clone))
	for i := 0; i < 3; i++ {
		_, err := e1.Eval(Call(id), nil)
		require.NoError(t, err)
	}
	v, err := e2.Eval(Call(id), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.I64())
	assert.Equal(t, int64(3), *counter.State)
}

func TestRegistry_ConcurrentReaders(t *testing.T) {
	reg := builtinRegistry(t)
	add := mustID(t, reg, "add")

	var wg sync.WaitGroup
	errs := make([]error, 8)
	sums := make([]int64, 8)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			e := NewEvaluator(reg, NewProgram(reg))
			for i := 0; i < 200; i++ {
				v, err := e.Eval(Call(add, Col(0, "n"), i64(int64(w))), []SATS.AlgebraicValue{SATS.I64(int64(i))})
				if err != nil {
					errs[w] = err
					return
				}
				sums[w] += v.I64()
				if _, ok := reg.Lookup("concat"); !ok {
					errs[w] = svdberr.ErrUnknownFunction
					return
				}
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < 8; w++ {
		require.NoError(t, errs[w])
		assert.Equal(t, int64(199*200/2+200*w), sums[w])
	}
}
