package trajectory

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rotblauer/trajd/column"
	"github.com/rotblauer/trajd/params"
)

// Reducer computes trajectory results from columns.
type Reducer struct {
	// Workers bounds parallelism; zero or less uses params.DefaultWorkers.
	Workers int
}

// Compute runs a Reducer with default parallelism.
func Compute(x, y, ts, length, offset column.Column) (*Result, error) {
	return (&Reducer{}).Compute(x, y, ts, length, offset)
}

// Compute validates the columns, selects the reduction for their coordinate
// and timestamp dtypes, and returns distance and speed for every trajectory.
// Validation and dtype errors fail the whole batch before any reduction runs.
func (r *Reducer) Compute(x, y, ts, length, offset column.Column) (*Result, error) {
	if err := Validate(x, y, ts, length, offset); err != nil {
		return nil, err
	}
	groups := Groups{
		Length: length.Data.([]int32),
		Offset: offset.Data.([]int32),
	}

	started := time.Now()
	var res *Result
	var err error
	switch x.Type {
	case column.Float32:
		res, err = withTimestamps[float32](r.workers(), x, y, ts, groups)
	case column.Float64:
		res, err = withTimestamps[float64](r.workers(), x, y, ts, groups)
	default:
		return nil, fmt.Errorf("%w: coordinates must be floating point, got %s", ErrUnsupportedType, x.Type)
	}
	if err != nil {
		return nil, err
	}

	slog.Debug("Reduced trajectories", "trajectories", groups.Len(), "points", x.Len(),
		"element", x.Type, "timestamp", ts.Type, "workers", r.workers(),
		"elapsed", time.Since(started).Round(time.Microsecond))
	return res, nil
}

func (r *Reducer) workers() int {
	if r == nil || r.Workers <= 0 {
		return params.DefaultWorkers
	}
	return r.Workers
}

func withTimestamps[F Float](workers int, x, y, ts column.Column, groups Groups) (*Result, error) {
	xs, ok := x.Data.([]F)
	if !ok {
		return nil, fmt.Errorf("%w: x holds %T", ErrTypeMismatch, x.Data)
	}
	ys, ok := y.Data.([]F)
	if !ok {
		return nil, fmt.Errorf("%w: y holds %T", ErrTypeMismatch, y.Data)
	}

	switch ts.Type {
	case column.TimestampDays:
		return run[F, column.EpochDays](workers, xs, ys, ts, groups)
	case column.TimestampSeconds:
		return run[F, column.EpochSeconds](workers, xs, ys, ts, groups)
	case column.TimestampMilliseconds:
		return run[F, column.EpochMillis](workers, xs, ys, ts, groups)
	case column.TimestampMicroseconds:
		return run[F, column.EpochMicros](workers, xs, ys, ts, groups)
	case column.TimestampNanoseconds:
		return run[F, column.EpochNanos](workers, xs, ys, ts, groups)
	case column.Time:
		return run[F, time.Time](workers, xs, ys, ts, groups)
	}
	return nil, fmt.Errorf("%w: timestamp must be a timestamp type, got %s", ErrUnsupportedType, ts.Type)
}

func run[F Float, T Temporal](workers int, x, y []F, ts column.Column, groups Groups) (*Result, error) {
	tv, ok := ts.Data.([]T)
	if !ok {
		return nil, fmt.Errorf("%w: timestamp holds %T", ErrTypeMismatch, ts.Data)
	}
	res := NewResult(groups.Len())
	Reduce(x, y, tv, groups, res.Distance, res.Speed, workers)
	return res, nil
}
