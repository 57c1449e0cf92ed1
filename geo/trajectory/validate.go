package trajectory

import (
	"errors"
	"fmt"

	"github.com/rotblauer/trajd/column"
)

var (
	ErrEmptyInput      = errors.New("empty input")
	ErrSizeMismatch    = errors.New("size mismatch")
	ErrUnsupportedType = errors.New("unsupported type")
	ErrTypeMismatch    = column.ErrTypeMismatch
	ErrNulls           = errors.New("null values not supported")
	ErrGroupOutOfRange = errors.New("trajectory out of range")
)

// Validate checks the inputs of Compute. No work is done on a batch which fails it.
// Nulls in the length column are not checked.
func Validate(x, y, ts, length, offset column.Column) error {
	for _, c := range []column.Column{x, y, ts, length, offset} {
		if err := c.Check(); err != nil {
			return err
		}
	}

	if x.Len() == 0 {
		return fmt.Errorf("%w: x is empty", ErrEmptyInput)
	}
	if ts.Len() == 0 {
		return fmt.Errorf("%w: timestamp is empty", ErrEmptyInput)
	}
	if length.Len() == 0 {
		return fmt.Errorf("%w: length is empty", ErrEmptyInput)
	}
	if x.Type != y.Type {
		return fmt.Errorf("%w: x is %s but y is %s", ErrTypeMismatch, x.Type, y.Type)
	}

	if x.Len() != y.Len() {
		return fmt.Errorf("%w: x and y must have the same length (%d != %d)", ErrSizeMismatch, x.Len(), y.Len())
	}
	if x.Len() != ts.Len() {
		return fmt.Errorf("%w: x and timestamp must have the same length (%d != %d)", ErrSizeMismatch, x.Len(), ts.Len())
	}
	if length.Len() != offset.Len() {
		return fmt.Errorf("%w: length and offset must have the same length (%d != %d)", ErrSizeMismatch, length.Len(), offset.Len())
	}

	if !ts.Type.IsTimestamp() {
		return fmt.Errorf("%w: timestamp must be a timestamp type, got %s", ErrUnsupportedType, ts.Type)
	}
	if length.Type != column.Int32 {
		return fmt.Errorf("%w: length must be int32, got %s", ErrUnsupportedType, length.Type)
	}
	if offset.Type != column.Int32 {
		return fmt.Errorf("%w: offset must be int32, got %s", ErrUnsupportedType, offset.Type)
	}

	for _, c := range []column.Column{x, y, ts, offset} {
		if c.NullCount > 0 {
			return fmt.Errorf("%w: %s has %d nulls", ErrNulls, c.Name, c.NullCount)
		}
	}

	if x.Len() < offset.Len() {
		return fmt.Errorf("%w: more trajectories than points (%d > %d)", ErrSizeMismatch, offset.Len(), x.Len())
	}

	return validateGroups(Groups{
		Length: length.Data.([]int32),
		Offset: offset.Data.([]int32),
	}, x.Len())
}

func validateGroups(groups Groups, points int) error {
	for g := range groups.Length {
		n, off := groups.Length[g], groups.Offset[g]
		if n < 0 || off < 0 {
			return fmt.Errorf("%w: trajectory %d has length %d, offset %d", ErrGroupOutOfRange, g, n, off)
		}
		if int(off)+int(n) > points {
			return fmt.Errorf("%w: trajectory %d spans [%d, %d) of %d points", ErrGroupOutOfRange, g, off, int(off)+int(n), points)
		}
	}
	return nil
}
