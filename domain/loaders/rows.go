package loaders

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/archgraph-io/archgraph/domain/graph"
)

// Row field extraction. Graph rows arrive loosely typed; every entity
// mapper goes through these helpers so a malformed row surfaces as an
// ErrMalformedRow contract error instead of a silently zeroed field.

func rowString(r graph.Row, col string) (string, error) {
	v, ok := r[col]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: missing column %q", ErrMalformedRow, col)
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", fmt.Errorf("%w: column %q has type %T, want string", ErrMalformedRow, col, v)
	}
}

// rowStringOpt returns "" for a missing or NULL column.
func rowStringOpt(r graph.Row, col string) (string, error) {
	v, ok := r[col]
	if !ok || v == nil {
		return "", nil
	}
	return rowString(r, col)
}

func rowTime(r graph.Row, col string) (time.Time, error) {
	v, ok := r[col]
	if !ok || v == nil {
		return time.Time{}, fmt.Errorf("%w: missing column %q", ErrMalformedRow, col)
	}
	t, ok := v.(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: column %q has type %T, want time.Time", ErrMalformedRow, col, v)
	}
	return t, nil
}

func rowFloat(r graph.Row, col string) (float64, error) {
	v, ok := r[col]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: missing column %q", ErrMalformedRow, col)
	}
	switch f := v.(type) {
	case float64:
		return f, nil
	case float32:
		return float64(f), nil
	case int64:
		return float64(f), nil
	default:
		return 0, fmt.Errorf("%w: column %q has type %T, want float", ErrMalformedRow, col, v)
	}
}

// rowProps decodes a jsonb column into a map. Accepts raw JSON bytes from
// the driver or an already-decoded map (stub executors in tests).
func rowProps(r graph.Row, col string) (map[string]any, error) {
	v, ok := r[col]
	if !ok || v == nil {
		return map[string]any{}, nil
	}
	switch p := v.(type) {
	case map[string]any:
		return p, nil
	case []byte:
		var m map[string]any
		if err := json.Unmarshal(p, &m); err != nil {
			return nil, fmt.Errorf("%w: column %q is not valid JSON: %v", ErrMalformedRow, col, err)
		}
		return m, nil
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(p), &m); err != nil {
			return nil, fmt.Errorf("%w: column %q is not valid JSON: %v", ErrMalformedRow, col, err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: column %q has type %T, want jsonb", ErrMalformedRow, col, v)
	}
}

// rowStringList decodes a jsonb array column into strings. Non-string
// elements are skipped rather than rejected; list payloads are advisory.
func rowStringList(r graph.Row, col string) ([]string, error) {
	v, ok := r[col]
	if !ok || v == nil {
		return nil, nil
	}
	var raw []any
	switch p := v.(type) {
	case []any:
		raw = p
	case []string:
		return p, nil
	case []byte:
		if err := json.Unmarshal(p, &raw); err != nil {
			return nil, fmt.Errorf("%w: column %q is not a JSON array: %v", ErrMalformedRow, col, err)
		}
	case string:
		if err := json.Unmarshal([]byte(p), &raw); err != nil {
			return nil, fmt.Errorf("%w: column %q is not a JSON array: %v", ErrMalformedRow, col, err)
		}
	default:
		return nil, fmt.Errorf("%w: column %q has type %T, want array", ErrMalformedRow, col, v)
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// Property accessors for values inside a decoded properties map. These are
// lenient: entity attributes are schemaless, so absence is an empty value.

func propString(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

func propStringList(props map[string]any, key string) []string {
	raw, ok := props[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
