package layers

import (
	"errors"
	"fmt"
)

// ShapeMismatchError reports that a layer's declared shape disagrees with
// the shape its predecessor actually produces.
//
// Dimension names what disagreed: "input features", "channels", "rank"
// or "length". Expected is the value the layer declared (or requires),
// Actual is the value inferred from the chain.
type ShapeMismatchError struct {
	Layer     string
	Dimension string
	Expected  int
	Actual    int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch at layer %q: expected %s %d, got %d",
		e.Layer, e.Dimension, e.Expected, e.Actual)
}

// InvalidArgumentError reports a builder argument that can never describe
// a valid graph (non-positive sizes, empty or duplicate names).
type InvalidArgumentError struct {
	Argument string
	Value    interface{}
	Reason   string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s=%v: %s", e.Argument, e.Value, e.Reason)
}

// IsShapeMismatch reports whether err wraps a *ShapeMismatchError
func IsShapeMismatch(err error) bool {
	var sm *ShapeMismatchError
	return errors.As(err, &sm)
}

// IsInvalidArgument reports whether err wraps an *InvalidArgumentError
func IsInvalidArgument(err error) bool {
	var ia *InvalidArgumentError
	return errors.As(err, &ia)
}

func invalidArgument(argument string, value interface{}, format string, args ...interface{}) error {
	return &InvalidArgumentError{
		Argument: argument,
		Value:    value,
		Reason:   fmt.Sprintf(format, args...),
	}
}
