package scalars

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/99designs/gqlgen/graphql"
)

var (
	_ graphql.Marshaler   = JSON{}
	_ graphql.Unmarshaler = (*JSON)(nil)
)

// JSON is the free-form JSON object scalar.
type JSON map[string]any

func (j JSON) MarshalGQL(w io.Writer) {
	if j == nil {
		_, _ = io.WriteString(w, "null")
		return
	}
	b, err := json.Marshal(map[string]any(j))
	if err != nil {
		_, _ = io.WriteString(w, "null")
		return
	}
	_, _ = w.Write(b)
}

func (j *JSON) UnmarshalGQL(v any) error {
	switch v := v.(type) {
	case nil:
		*j = nil
		return nil
	case map[string]any:
		*j = v
		return nil
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return fmt.Errorf("JSON must be an object: %w", err)
		}
		*j = m
		return nil
	default:
		return fmt.Errorf("JSON must be an object, got %T", v)
	}
}

// Float returns the numeric member key, if present.
func (j JSON) Float(key string) (float64, bool) {
	switch v := j[key].(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
