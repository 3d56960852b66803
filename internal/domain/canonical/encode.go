// Package canonical produces the byte-stable serialisation that every
// fingerprint, cache key, and idempotency key in the pipeline is computed
// over: mapping keys sorted, array order preserved, numbers rendered as
// decimal strings, never a bare float.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Value is the shape the canonical tree is built from: nil, bool, string,
// a decimal-string-rendering type (anything implementing
// encoding.TextMarshaler, e.g. money.Decimal), map[string]any, or []any.
// Domain types participate by implementing Canonicalizer rather than by
// being walked with reflection, so the set of fields that enter a
// fingerprint is always an explicit, auditable decision.
type Canonicalizer interface {
	// CanonicalValue returns a tree built only from the Value shapes above.
	CanonicalValue() any
}

// Encode renders v as canonical bytes. It is the only function whose
// output may ever be fed to a fingerprint.
func Encode(v any) ([]byte, error) {
	tree, err := normalize(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tree); err != nil {
		return nil, fmt.Errorf("canonical: encode: %w", err)
	}
	// json.Encoder.Encode appends a trailing newline; strip it so the
	// fingerprint is over exactly the rendered value.
	out := buf.Bytes()
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
	}
	return out, nil
}

// normalize walks v, expanding Canonicalizer implementations and rejecting
// float64/float32 anywhere in the tree — the only way a float could appear
// is a caller constructing the tree by hand instead of going through
// money.Decimal, which this guards against.
func normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case Canonicalizer:
		return normalize(t.CanonicalValue())
	case bool, string:
		return t, nil
	case float32, float64:
		return nil, fmt.Errorf("float value in canonical tree: %v", t)
	case map[string]any:
		out := make(map[string]any, len(t))
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			nv, err := normalize(t[k])
			if err != nil {
				return nil, err
			}
			out[k] = nv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			nv, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	case fmt.Stringer:
		return t.String(), nil
	default:
		return textMarshal(t)
	}
}

func textMarshal(v any) (any, error) {
	type textMarshaler interface {
		MarshalText() ([]byte, error)
	}
	if tm, ok := v.(textMarshaler); ok {
		b, err := tm.MarshalText()
		if err != nil {
			return nil, fmt.Errorf("marshal text: %w", err)
		}
		return string(b), nil
	}
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v), nil
	}
	return nil, fmt.Errorf("unsupported canonical value of type %T", v)
}
