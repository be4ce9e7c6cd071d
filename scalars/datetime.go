package scalars

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/99designs/gqlgen/graphql"
)

var (
	_ graphql.Marshaler   = DateTime{}
	_ graphql.Unmarshaler = (*DateTime)(nil)
)

// DateTime is the RFC 3339 DateTime scalar. The zero value encodes as null.
type DateTime struct {
	time.Time
}

func NewDateTime(t time.Time) DateTime {
	return DateTime{Time: t}
}

func (d DateTime) String() string {
	return d.UTC().Format(time.RFC3339Nano)
}

func (d DateTime) MarshalGQL(w io.Writer) {
	if d.IsZero() {
		_, _ = io.WriteString(w, "null")
		return
	}
	_, _ = io.WriteString(w, strconv.Quote(d.String()))
}

func (d *DateTime) UnmarshalGQL(v any) error {
	switch v := v.(type) {
	case nil:
		*d = DateTime{}
		return nil
	case string:
		return d.parse(v)
	case time.Time:
		d.Time = v
		return nil
	default:
		return fmt.Errorf("DateTime must be a string, got %T", v)
	}
}

func (d DateTime) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *DateTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = DateTime{}
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("DateTime must be a string: %w", err)
	}

	return d.parse(s)
}

func (d *DateTime) parse(s string) error {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("invalid DateTime %q: %w", s, err)
	}
	d.Time = t
	return nil
}
