package modelpb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

func TestTypes_DeclaredUnderPackage(t *testing.T) {
	types := Types()
	require.Len(t, types, 7)

	for _, mt := range types {
		assert.Equal(t, Package, string(mt.Descriptor().ParentFile().Package()))
	}
	assert.Equal(t, "fate.model.DataIOMeta", string(types[0].Descriptor().FullName()))
}

func TestType_Lookup(t *testing.T) {
	mt, ok := Type(LRModelParam)
	require.True(t, ok)
	assert.Equal(t, "fate.model.LRModelParam", string(mt.Descriptor().FullName()))

	_, ok = Type("Missing")
	assert.False(t, ok)
}

func TestNew_PanicsOnUnknown(t *testing.T) {
	assert.Panics(t, func() { New("Missing") })
}

func TestDefaultMessageSerializesEmpty(t *testing.T) {
	for _, mt := range Types() {
		b, err := proto.Marshal(mt.New().Interface())
		require.NoError(t, err)
		assert.Empty(t, b, string(mt.Descriptor().FullName()))
	}
}

func TestSetGet_RoundTrip(t *testing.T) {
	m := New(LRModelParam)
	require.NoError(t, Set(m, "iters", 12))
	require.NoError(t, Set(m, "weight", []float64{0.5, -1.25}))
	require.NoError(t, Set(m, "header", []string{"x0", "x1"}))
	require.NoError(t, Set(m, "is_converged", true))

	b, err := proto.Marshal(m)
	require.NoError(t, err)

	out := New(LRModelParam)
	require.NoError(t, proto.Unmarshal(b, out))
	assert.True(t, proto.Equal(m, out))
	assert.Equal(t, int32(12), int32(Get(out, "iters").Int()))
	assert.Equal(t, 2, Get(out, "weight").List().Len())
	assert.False(t, Get(out, "missing").IsValid())
}

func TestSet_ReplacesRepeated(t *testing.T) {
	m := New(FeatureSelectionParam)
	require.NoError(t, Set(m, "left_cols", []string{"a", "b", "c"}))
	require.NoError(t, Set(m, "left_cols", []string{"z"}))

	list := Get(m, "left_cols").List()
	require.Equal(t, 1, list.Len())
	assert.Equal(t, "z", list.Get(0).String())
}

func TestSet_Errors(t *testing.T) {
	m := New(LRModelMeta)

	assert.Error(t, Set(m, "nope", "x"))
	assert.Error(t, Set(m, "penalty", 3))
	assert.Error(t, Set(New(LRModelParam), "weight", []string{"not a double"}))
	assert.Error(t, Set(New(LRModelParam), "weight", map[string]float64{}))
	assert.Panics(t, func() { MustSet(m, "tol", "bad") })
}
