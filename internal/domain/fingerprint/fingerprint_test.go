package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfIsDeterministicAcrossKeyOrder(t *testing.T) {
	f1, err := Of(map[string]any{"a": "1", "b": "2"})
	require.NoError(t, err)
	f2, err := Of(map[string]any{"b": "2", "a": "1"})
	require.NoError(t, err)
	assert.Equal(t, f1, f2)
	assert.Len(t, string(f1), 64)
}

func TestOfDiffersOnContentChange(t *testing.T) {
	f1, _ := Of(map[string]any{"a": "1"})
	f2, _ := Of(map[string]any{"a": "2"})
	assert.NotEqual(t, f1, f2)
}
