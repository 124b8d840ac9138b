package unet

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned when a Config cannot describe a network.
	ErrInvalidConfig = errors.New("invalid unet config")

	// ErrInvalidChannels is returned for non-positive channel counts or widths.
	ErrInvalidChannels = fmt.Errorf("%w: channel counts must be positive", ErrInvalidConfig)

	// ErrIncompatibleShape is returned when a tensor shape does not fit the network.
	ErrIncompatibleShape = errors.New("incompatible input shape")
)

// ShapeError describes a shape check failing at a named stage.
type ShapeError struct {
	Stage  string
	Got    []int64
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%v at %q: got %v: %v", ErrIncompatibleShape, e.Stage, e.Got, e.Reason)
}

// Unwrap makes errors.Is(err, ErrIncompatibleShape) hold.
func (e *ShapeError) Unwrap() error {
	return ErrIncompatibleShape
}

func shapeErrorf(stage string, got []int64, format string, args ...interface{}) *ShapeError {
	return &ShapeError{
		Stage:  stage,
		Got:    append([]int64(nil), got...),
		Reason: fmt.Sprintf(format, args...),
	}
}
