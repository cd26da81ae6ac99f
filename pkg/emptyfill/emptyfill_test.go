package emptyfill

import (
	"errors"
	"testing"

	"github.com/fystack/modelstore/pkg/modelpb"
	"github.com/fystack/modelstore/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func resolve(t *testing.T, name string) schema.Descriptor {
	t.Helper()
	desc, err := schema.Default().Resolve(name)
	require.NoError(t, err)
	return desc
}

func TestWrap(t *testing.T) {
	payload := []byte{0x08, 0x01}
	assert.Equal(t, payload, Wrap(payload))

	wrapped := Wrap(nil)
	assert.NotEmpty(t, wrapped)
	assert.True(t, IsMarker(wrapped))
	assert.True(t, IsMarker(Wrap([]byte{})))
	assert.False(t, IsMarker(payload))
}

func TestMarkerBytes_ReturnsCopy(t *testing.T) {
	b := MarkerBytes()
	b[0] ^= 0xff
	assert.False(t, IsMarker(b))
	assert.True(t, IsMarker(MarkerBytes()))
}

func TestUnwrap_RoundTripDefaultsForEveryRegisteredSchema(t *testing.T) {
	for _, name := range schema.Default().Names() {
		t.Run(name, func(t *testing.T) {
			desc := resolve(t, name)
			original := desc.New()

			raw, err := proto.Marshal(original)
			require.NoError(t, err)
			require.Empty(t, raw)

			attempt, err := Unwrap(Wrap(raw), desc)
			require.NoError(t, err)
			assert.Equal(t, TryMarkerFallback, attempt.Strategy)
			assert.True(t, proto.Equal(original, attempt.Message))
			assert.Empty(t, attempt.Message.ProtoReflect().GetUnknown())
		})
	}
}

func TestUnwrap_RoundTripPopulated(t *testing.T) {
	st, err := structpb.NewStruct(map[string]interface{}{"penalty": "L2", "tol": 0.0001})
	require.NoError(t, err)

	cases := []proto.Message{
		wrapperspb.String("set"),
		wrapperspb.Int64(-3),
		st,
		modelpb.MustSet(modelpb.New(modelpb.LRModelParam), "weight", []float64{0.25, 0.5}),
		modelpb.MustSet(modelpb.New(modelpb.FeatureSelectionParam), "left_cols", []string{"x0", "x3"}),
		modelpb.MustSet(modelpb.New(modelpb.LRModelMeta), "penalty", "L1"),
	}

	for _, original := range cases {
		name := schema.NameOf(original)
		t.Run(name, func(t *testing.T) {
			raw, err := proto.Marshal(original)
			require.NoError(t, err)
			require.NotEmpty(t, raw)

			attempt, err := Unwrap(Wrap(raw), resolve(t, name))
			require.NoError(t, err)
			assert.Equal(t, TryDirect, attempt.Strategy)
			assert.True(t, proto.Equal(original, attempt.Message))
		})
	}
}

func TestDirect_RejectsMarkerEvenWhenFieldOneIsAString(t *testing.T) {
	// StringValue declares field 1 as a string; the marker must not be read
	// into it.
	desc := resolve(t, "google.protobuf.StringValue")

	direct := Direct(MarkerBytes(), desc)
	assert.ErrorIs(t, direct.Err, ErrMarkerPayload)

	attempt, err := Unwrap(MarkerBytes(), desc)
	require.NoError(t, err)
	assert.Equal(t, "", attempt.Message.(*wrapperspb.StringValue).GetValue())
}

func TestUnwrap_ZeroLengthPayloadDecodesDirectly(t *testing.T) {
	attempt, err := Unwrap(nil, resolve(t, "fate.model.LRModelParam"))
	require.NoError(t, err)
	assert.Equal(t, TryDirect, attempt.Strategy)
}

func TestUnwrap_SurfacesDirectError(t *testing.T) {
	desc := resolve(t, "fate.model.LRModelParam")
	garbage := []byte{0xff, 0xff, 0xff}

	direct := Direct(garbage, desc)
	require.Error(t, direct.Err)

	_, err := Unwrap(garbage, desc)
	require.Error(t, err)

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "fate.model.LRModelParam", decodeErr.TypeName)
	assert.Equal(t, direct.Err.Error(), decodeErr.Err.Error())
	assert.NotErrorIs(t, err, ErrNotMarker)
}

func TestMarkerFallback_RequiresFlag(t *testing.T) {
	desc := resolve(t, "fate.model.DataIOMeta")

	attempt := MarkerFallback([]byte{}, desc)
	assert.ErrorIs(t, attempt.Err, ErrNotMarker)

	populated, err := proto.Marshal(wrapperspb.String("x"))
	require.NoError(t, err)
	attempt = MarkerFallback(populated, desc)
	assert.ErrorIs(t, attempt.Err, ErrNotMarker)
}

func TestStrategy_String(t *testing.T) {
	assert.Equal(t, "direct", TryDirect.String())
	assert.Equal(t, "marker_fallback", TryMarkerFallback.String())
	assert.Equal(t, "Strategy(9)", Strategy(9).String())
}
