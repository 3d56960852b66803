package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Victor-armando18/pricing-engine/internal/domain/money"
)

func TestEncodeSortsMapKeys(t *testing.T) {
	a, err := Encode(map[string]any{"b": "2", "a": "1", "c": "3"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"1","b":"2","c":"3"}`, string(a))
}

func TestEncodeIsOrderIndependentForMapsButNotArrays(t *testing.T) {
	m1 := map[string]any{"x": "1", "y": "2"}
	m2 := map[string]any{"y": "2", "x": "1"}
	e1, err := Encode(m1)
	require.NoError(t, err)
	e2, err := Encode(m2)
	require.NoError(t, err)
	assert.Equal(t, string(e1), string(e2))

	arr1 := []any{"1", "2"}
	arr2 := []any{"2", "1"}
	ea1, _ := Encode(arr1)
	ea2, _ := Encode(arr2)
	assert.NotEqual(t, string(ea1), string(ea2))
}

func TestEncodeRejectsFloats(t *testing.T) {
	_, err := Encode(map[string]any{"x": 1.5})
	assert.Error(t, err)
}

func TestEncodeRendersDecimalAsString(t *testing.T) {
	d := money.MustFromString("19.99")
	out, err := Encode(map[string]any{"price": d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":"19.99"}`, string(out))
}

type fakeCanonical struct{ n string }

func (f fakeCanonical) CanonicalValue() any { return map[string]any{"name": f.n} }

func TestEncodeExpandsCanonicalizer(t *testing.T) {
	out, err := Encode(fakeCanonical{n: "hi"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"hi"}`, string(out))
}
