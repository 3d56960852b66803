package ruleeval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ctxFixture() *Context {
	return &Context{
		Proposal: map[string]any{"total": "500.00", "region": "EU"},
		Customer: map[string]any{"tier": "gold"},
		Computed: map[string]any{"taxableBase": "480.00"},
	}
}

func TestCompileAndEvalComparison(t *testing.T) {
	raw := map[string]any{">": []any{map[string]any{"var": "proposal.total"}, 100.0}}
	rule, err := Compile(raw)
	require.NoError(t, err)
	ok, err := rule.Eval(ctxFixture())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompileAndEvalLogicalShortCircuit(t *testing.T) {
	raw := map[string]any{"and": []any{
		map[string]any{"==": []any{map[string]any{"var": "customer.tier"}, "gold"}},
		map[string]any{">=": []any{map[string]any{"var": "proposal.total"}, "500"}},
	}}
	rule, err := Compile(raw)
	require.NoError(t, err)
	ok, err := rule.Eval(ctxFixture())
	require.NoError(t, err)
	assert.True(t, ok)

	rawOr := map[string]any{"or": []any{
		map[string]any{"==": []any{map[string]any{"var": "customer.tier"}, "platinum"}},
		map[string]any{"==": []any{map[string]any{"var": "customer.tier"}, "gold"}},
	}}
	orRule, err := Compile(rawOr)
	require.NoError(t, err)
	ok, err = orRule.Eval(ctxFixture())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMissingFieldNeverErrors(t *testing.T) {
	raw := map[string]any{"==": []any{map[string]any{"var": "proposal.nonexistent"}, "x"}}
	rule, err := Compile(raw)
	require.NoError(t, err)
	ok, err := rule.Eval(ctxFixture())
	require.NoError(t, err)
	assert.False(t, ok)

	rawOrdering := map[string]any{">": []any{map[string]any{"var": "proposal.nonexistent"}, 10.0}}
	rule2, err := Compile(rawOrdering)
	require.NoError(t, err)
	ok, err = rule2.Eval(ctxFixture())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompileRejectsDisallowedFieldRoot(t *testing.T) {
	raw := map[string]any{"==": []any{map[string]any{"var": "secret.key"}, "x"}}
	_, err := Compile(raw)
	require.Error(t, err)
}

func TestCompileRejectsNonBooleanRoot(t *testing.T) {
	_, err := Compile(map[string]any{"var": "proposal.total"})
	require.Error(t, err)

	_, err = Compile(true)
	require.Error(t, err)
}

func TestCompileRejectsExcessiveDepth(t *testing.T) {
	// Build a deeply nested "not" chain past MaxDepth.
	var raw any = map[string]any{"==": []any{map[string]any{"var": "proposal.total"}, "1"}}
	for i := 0; i < MaxDepth+2; i++ {
		raw = map[string]any{"not": []any{raw}}
	}
	_, err := Compile(raw)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "depth"))
}

func TestCompileRejectsTooManyDistinctFields(t *testing.T) {
	children := make([]any, 0, MaxDistinctFields+1)
	for i := 0; i < MaxDistinctFields+1; i++ {
		children = append(children, map[string]any{
			"==": []any{map[string]any{"var": "proposal.f" + itoa(i)}, "1"},
		})
	}
	raw := map[string]any{"or": children}
	_, err := Compile(raw)
	require.Error(t, err)
}

func itoa(i int) string {
	digits := "0123456789"
	if i == 0 {
		return "0"
	}
	var b []byte
	for i > 0 {
		b = append([]byte{digits[i%10]}, b...)
		i /= 10
	}
	return string(b)
}

func TestCacheCompilesOnceAndReusesForSameKey(t *testing.T) {
	c := NewCache()
	raw := map[string]any{">": []any{map[string]any{"var": "proposal.total"}, 1.0}}
	key := CacheKey{TenantID: "t1", ContentHash: "abc", Version: "v1"}

	r1, err := c.GetOrCompile(key, raw)
	require.NoError(t, err)
	r2, err := c.GetOrCompile(key, raw)
	require.NoError(t, err)
	assert.Same(t, r1, r2)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, 1, stats.Size)
}
