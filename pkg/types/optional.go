package types

import (
	"bytes"
	"encoding/json"
)

// Optional distinguishes a JSON field that was omitted (Set false) from one
// that was sent as null (Set true, Value nil).
type Optional[T any] struct {
	Set   bool
	Value *T
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	if bytes.Equal(trimmed, []byte("null")) {
		o.Set = true
		o.Value = nil
		return nil
	}

	var parsed T
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return err
	}
	o.Set = true
	o.Value = &parsed
	return nil
}

// Some builds a present, non-null Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null builds a present Optional that clears the field.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}
