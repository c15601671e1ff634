package domain

import "errors"

// ErrValidatorPanic wraps a panic raised inside a validator.
var ErrValidatorPanic = errors.New("validator panicked")

// Result is the structured output of a validator. The core only needs it
// to render as a JSON-serializable mapping.
type Result interface {
	ToMap() (map[string]any, error)
}

// MapResult is a Result that already is a mapping.
type MapResult map[string]any

// ToMap returns the mapping itself; a nil result renders as an empty object.
func (r MapResult) ToMap() (map[string]any, error) {
	if r == nil {
		return map[string]any{}, nil
	}
	return map[string]any(r), nil
}
