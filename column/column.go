// Package column is the minimal columnar model consumed by the trajectory
// reducer: a named, dtype-tagged slice of values.
package column

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnsupportedSlice = errors.New("unsupported column slice type")
	ErrTypeMismatch     = errors.New("column data does not match its dtype")
)

// Column is one typed column of a table.
// Data always holds a slice whose element type matches Type,
// eg. []float32 for Float32 or []EpochMillis for TimestampMilliseconds.
type Column struct {
	Name string
	Type DType
	Data any

	// NullCount is the number of missing entries, as reported upstream.
	// Columns built here never have nulls.
	NullCount int
}

// New wraps a slice as a Column, inferring its dtype.
func New(name string, data any) (Column, error) {
	d, err := dtypeOf(data)
	if err != nil {
		return Column{}, fmt.Errorf("column %q: %w", name, err)
	}
	return Column{Name: name, Type: d, Data: data}, nil
}

// Must is like New but panics on an unsupported slice type.
func Must(name string, data any) Column {
	c, err := New(name, data)
	if err != nil {
		panic(err)
	}
	return c
}

// Len returns the number of rows in the column.
func (c Column) Len() int {
	switch v := c.Data.(type) {
	case nil:
		return 0
	case []bool:
		return len(v)
	case []int8:
		return len(v)
	case []int16:
		return len(v)
	case []int32:
		return len(v)
	case []int64:
		return len(v)
	case []uint8:
		return len(v)
	case []uint16:
		return len(v)
	case []uint32:
		return len(v)
	case []uint64:
		return len(v)
	case []float32:
		return len(v)
	case []float64:
		return len(v)
	case []string:
		return len(v)
	case []EpochDays:
		return len(v)
	case []EpochSeconds:
		return len(v)
	case []EpochMillis:
		return len(v)
	case []EpochMicros:
		return len(v)
	case []EpochNanos:
		return len(v)
	case []time.Time:
		return len(v)
	case []DurationMillis:
		return len(v)
	}
	return 0
}

// Check verifies that Data holds the slice type that Type names.
func (c Column) Check() error {
	if c.Data == nil {
		return nil
	}
	d, err := dtypeOf(c.Data)
	if err != nil {
		return fmt.Errorf("column %q: %w", c.Name, err)
	}
	if d != c.Type {
		return fmt.Errorf("%w: column %q is tagged %s but holds %s", ErrTypeMismatch, c.Name, c.Type, d)
	}
	return nil
}

func (c Column) String() string {
	return fmt.Sprintf("%s(%s, n=%d)", c.Name, c.Type, c.Len())
}

func dtypeOf(data any) (DType, error) {
	switch data.(type) {
	case []bool:
		return Bool, nil
	case []int8:
		return Int8, nil
	case []int16:
		return Int16, nil
	case []int32:
		return Int32, nil
	case []int64:
		return Int64, nil
	case []uint8:
		return Uint8, nil
	case []uint16:
		return Uint16, nil
	case []uint32:
		return Uint32, nil
	case []uint64:
		return Uint64, nil
	case []float32:
		return Float32, nil
	case []float64:
		return Float64, nil
	case []string:
		return String, nil
	case []EpochDays:
		return TimestampDays, nil
	case []EpochSeconds:
		return TimestampSeconds, nil
	case []EpochMillis:
		return TimestampMilliseconds, nil
	case []EpochMicros:
		return TimestampMicroseconds, nil
	case []EpochNanos:
		return TimestampNanoseconds, nil
	case []time.Time:
		return Time, nil
	case []DurationMillis:
		return DurationMilliseconds, nil
	}
	return Invalid, fmt.Errorf("%w: %T", ErrUnsupportedSlice, data)
}

// Timestamps converts times into a timestamp column of the given dtype.
func Timestamps(name string, times []time.Time, unit DType) (Column, error) {
	if unit == Time {
		return New(name, times)
	}
	if !unit.IsTimestamp() {
		return Column{}, fmt.Errorf("column %q: %s is not a timestamp dtype", name, unit)
	}
	switch unit {
	case TimestampDays:
		out := make([]EpochDays, len(times))
		for i, t := range times {
			v, _ := Ticks(t, unit)
			out[i] = EpochDays(v)
		}
		return New(name, out)
	case TimestampSeconds:
		return New(name, convertTicks[EpochSeconds](times, unit))
	case TimestampMilliseconds:
		return New(name, convertTicks[EpochMillis](times, unit))
	case TimestampMicroseconds:
		return New(name, convertTicks[EpochMicros](times, unit))
	default:
		return New(name, convertTicks[EpochNanos](times, unit))
	}
}

func convertTicks[T ~int64](times []time.Time, unit DType) []T {
	out := make([]T, len(times))
	for i, t := range times {
		v, _ := Ticks(t, unit)
		out[i] = T(v)
	}
	return out
}

// TicksColumn wraps raw int64 ticks as a timestamp column of the given dtype.
// This is the shape timestamps take on the wire.
func TicksColumn(name string, ticks []int64, unit DType) (Column, error) {
	switch unit {
	case TimestampDays:
		out := make([]EpochDays, len(ticks))
		for i, v := range ticks {
			out[i] = EpochDays(v)
		}
		return New(name, out)
	case TimestampSeconds:
		return New(name, castTicks[EpochSeconds](ticks))
	case TimestampMilliseconds:
		return New(name, castTicks[EpochMillis](ticks))
	case TimestampMicroseconds:
		return New(name, castTicks[EpochMicros](ticks))
	case TimestampNanoseconds:
		return New(name, castTicks[EpochNanos](ticks))
	case Int64:
		return New(name, ticks)
	case DurationMilliseconds:
		return New(name, castTicks[DurationMillis](ticks))
	}
	return Column{}, fmt.Errorf("column %q: cannot hold ticks as %s", name, unit)
}

func castTicks[T ~int64](ticks []int64) []T {
	out := make([]T, len(ticks))
	for i, v := range ticks {
		out[i] = T(v)
	}
	return out
}

// Floats converts float64 values to a floating column of the given dtype.
func Floats(name string, values []float64, elem DType) (Column, error) {
	switch elem {
	case Float64:
		return New(name, values)
	case Float32:
		out := make([]float32, len(values))
		for i, v := range values {
			out[i] = float32(v)
		}
		return New(name, out)
	}
	return Column{}, fmt.Errorf("column %q: %s is not a floating dtype", name, elem)
}
