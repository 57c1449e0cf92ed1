package webd

import (
	"errors"
	"fmt"
	"time"

	"github.com/rotblauer/trajd/column"
	"github.com/rotblauer/trajd/geo/trajectory"
)

var errBadRequest = errors.New("bad request")

// computeRequest carries reducer columns as JSON.
// Time holds integer ticks of TimestampType; for "time" they are Unix nanoseconds.
// Offset may be omitted, in which case trajectories are laid out back to back.
type computeRequest struct {
	ElementType   string    `json:"element_type"`
	TimestampType string    `json:"timestamp_type"`
	IDs           []string  `json:"ids,omitempty"`
	X             []float64 `json:"x"`
	Y             []float64 `json:"y"`
	Time          []int64   `json:"time"`
	Length        []int32   `json:"length"`
	Offset        []int32   `json:"offset,omitempty"`
}

type computeResponse struct {
	BatchID   string                `json:"batch_id"`
	Distance  []float64             `json:"distance"`
	Speed     []float64             `json:"speed"`
	Status    []trajectory.Status   `json:"status"`
	Stats     trajectory.BatchStats `json:"stats"`
	Summaries []trajectory.Summary  `json:"-"`
}

func (req *computeRequest) groups() trajectory.Groups {
	if req.Offset == nil {
		return trajectory.GroupsFromLengths(req.Length)
	}
	return trajectory.Groups{Length: req.Length, Offset: req.Offset}
}

// columns builds reducer columns as requested, without judging the dtypes;
// that is the reducer's job.
func (req *computeRequest) columns() (x, y, ts, length, offset column.Column, err error) {
	elem := column.Float64
	if req.ElementType != "" {
		if elem, err = column.ParseDType(req.ElementType); err != nil {
			err = fmt.Errorf("%w: %v", errBadRequest, err)
			return
		}
	}
	if x, err = coordinates("x", req.X, elem); err != nil {
		return
	}
	if y, err = coordinates("y", req.Y, elem); err != nil {
		return
	}

	unit, err := column.ParseDType(req.TimestampType)
	if req.TimestampType == "" {
		unit, err = column.TimestampMilliseconds, nil
	}
	if err != nil {
		err = fmt.Errorf("%w: %v", errBadRequest, err)
		return
	}
	if unit == column.Time {
		times := make([]time.Time, len(req.Time))
		for i, v := range req.Time {
			times[i] = time.Unix(0, v).UTC()
		}
		ts = column.Must("time", times)
	} else if ts, err = column.TicksColumn("time", req.Time, unit); err != nil {
		err = fmt.Errorf("%w: %v", trajectory.ErrUnsupportedType, err)
		return
	}

	g := req.groups()
	length = column.Must("length", g.Length)
	offset = column.Must("offset", g.Offset)
	return
}

func coordinates(name string, values []float64, elem column.DType) (column.Column, error) {
	switch {
	case elem.IsFloating():
		return column.Floats(name, values, elem)
	case elem == column.Int64:
		out := make([]int64, len(values))
		for i, v := range values {
			out[i] = int64(v)
		}
		return column.Must(name, out), nil
	}
	return column.Column{}, fmt.Errorf("%w: coordinates must be floating point, got %s", trajectory.ErrUnsupportedType, elem)
}

func (s *WebDaemon) compute(req *computeRequest) (*computeResponse, error) {
	x, y, ts, length, offset, err := req.columns()
	if err != nil {
		return nil, err
	}
	res, err := s.reducer.Compute(x, y, ts, length, offset)
	if err != nil {
		return nil, err
	}
	out := &computeResponse{
		Distance:  res.Distance,
		Speed:     res.Speed,
		Status:    make([]trajectory.Status, res.Len()),
		Stats:     res.Stats(),
		Summaries: res.Summarize(req.IDs, req.groups()),
	}
	for g := range out.Status {
		out.Status[g] = res.Status(g)
	}
	return out, nil
}
