package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromStringExpandsExponentialAndStripsNegativeZero(t *testing.T) {
	d, err := FromString("1.5E+2")
	require.NoError(t, err)
	assert.Equal(t, "150", d.String())

	z, err := FromString("-0.0")
	require.NoError(t, err)
	assert.False(t, z.IsNegative())
	assert.True(t, z.IsZero())
}

func TestRoundHalfAwayFromZero(t *testing.T) {
	cases := []struct {
		in, want string
		scale    Scale
	}{
		{"1.005", "1.01", Q2},
		{"-1.005", "-1.01", Q2},
		{"0.125", "0.13", Q2},
		{"2.00000005", "2.0000001", Q7},
		{"100.00", "100.00", Q2},
	}
	for _, tc := range cases {
		d, err := FromString(tc.in)
		require.NoError(t, err)
		got := d.Round(tc.scale).String()
		assert.Equal(t, tc.want, got, "round(%s, %d)", tc.in, tc.scale)
	}
}

func TestArithmetic(t *testing.T) {
	a := MustFromString("100.00")
	b := MustFromString("2")
	require.Equal(t, "200.00", a.Mul(b).String())
	require.Equal(t, "98.00", a.Sub(b).String())
	require.Equal(t, "102.00", a.Add(b).String())

	q, err := a.Quo(b)
	require.NoError(t, err)
	assert.Equal(t, "50.00", q.RoundQ2().String())

	_, err = a.Quo(Zero())
	assert.Error(t, err)
}

func TestJSONRoundTripIsStringNotFloat(t *testing.T) {
	d := MustFromString("19.99")
	b, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"19.99"`, string(b))

	var out Decimal
	require.NoError(t, out.UnmarshalJSON(b))
	assert.Equal(t, 0, out.Cmp(d))

	var bare Decimal
	require.NoError(t, bare.UnmarshalJSON([]byte("19.99")))
	assert.Equal(t, 0, bare.Cmp(d))
}

func TestSum(t *testing.T) {
	got := Sum(MustFromString("1.1"), MustFromString("2.2"), MustFromString("3.3"))
	assert.Equal(t, "6.6", got.String())
}
