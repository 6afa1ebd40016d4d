package detector

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch is matched by every tensor rank or dimension error.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrLabelLookupMiss is matched when a class index has no label.
	ErrLabelLookupMiss = errors.New("label lookup miss")
)

// ShapeError describes an inconsistent score or box tensor.
type ShapeError struct {
	Op  string
	Msg string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, ErrShapeMismatch, e.Msg)
}

func (e *ShapeError) Unwrap() error { return ErrShapeMismatch }

func shapeErrorf(op, format string, args ...any) error {
	return &ShapeError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// LabelLookupError reports a class index that the label table cannot resolve.
type LabelLookupError struct {
	Index int
}

func (e *LabelLookupError) Error() string {
	return fmt.Sprintf("%s: no label for class index %d", ErrLabelLookupMiss, e.Index)
}

func (e *LabelLookupError) Unwrap() error { return ErrLabelLookupMiss }
