package model

import "encoding/json"

// Option holds a value that may be absent. Several raw signals have 0 as a
// legitimate value, so absence is tracked explicitly rather than with a
// sentinel number.
type Option[T any] struct {
	value   T
	present bool
}

// Some returns a present Option holding v.
func Some[T any](v T) Option[T] {
	return Option[T]{value: v, present: true}
}

// None returns an absent Option.
func None[T any]() Option[T] {
	return Option[T]{}
}

// Get returns the value and whether it is present.
func (o Option[T]) Get() (T, bool) {
	return o.value, o.present
}

// Present reports whether a value is set.
func (o Option[T]) Present() bool {
	return o.present
}

// OrElse returns the value if present, otherwise def.
func (o Option[T]) OrElse(def T) T {
	if o.present {
		return o.value
	}
	return def
}

// IsZero reports absence. It makes absent options disappear under the
// json "omitzero" tag option.
func (o Option[T]) IsZero() bool {
	return !o.present
}

// MarshalJSON encodes the value itself; absent options encode as null.
func (o Option[T]) MarshalJSON() ([]byte, error) {
	if !o.present {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON decodes null as absent and anything else as a present value.
func (o *Option[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = Option[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Option[T]{value: v, present: true}
	return nil
}
