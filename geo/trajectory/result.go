package trajectory

import (
	"fmt"
	"strconv"

	"github.com/rotblauer/trajd/column"
)

// Result holds one distance (meters) and one speed (meters/second)
// per trajectory, in Groups order.
type Result struct {
	Distance []float64
	Speed    []float64
}

// NewResult allocates a result for n trajectories.
func NewResult(n int) *Result {
	return &Result{
		Distance: make([]float64, n),
		Speed:    make([]float64, n),
	}
}

func (r *Result) Len() int {
	return len(r.Distance)
}

// Status classifies trajectory g by its outputs.
// A computed distance is never negative, so the sentinels are unambiguous.
func (r *Result) Status(g int) Status {
	switch r.Distance[g] {
	case SentinelTooFewPoints:
		return StatusTooFewPoints
	case SentinelZeroDuration:
		return StatusZeroDuration
	}
	return StatusOK
}

// Columns pairs the outputs as a table.
func (r *Result) Columns() []column.Column {
	return []column.Column{
		column.Must("distance", r.Distance),
		column.Must("speed", r.Speed),
	}
}

// Summary is one trajectory's result row.
type Summary struct {
	Trajectory string  `json:"trajectory"`
	Points     int     `json:"points"`
	Distance   float64 `json:"distance"`
	Speed      float64 `json:"speed"`
	Status     Status  `json:"status"`
}

// Summarize zips the result with trajectory IDs and point counts.
// With nil ids, trajectories are named by their index.
func (r *Result) Summarize(ids []string, groups Groups) []Summary {
	out := make([]Summary, r.Len())
	for g := range out {
		id := strconv.Itoa(g)
		if g < len(ids) {
			id = ids[g]
		}
		points := 0
		if g < groups.Len() {
			points = int(groups.Length[g])
		}
		out[g] = Summary{
			Trajectory: id,
			Points:     points,
			Distance:   r.Distance[g],
			Speed:      r.Speed[g],
			Status:     r.Status(g),
		}
	}
	return out
}

// Status is the outcome of one trajectory's reduction.
type Status int

const (
	StatusOK Status = iota
	StatusTooFewPoints
	StatusZeroDuration
)

var statusNames = []string{"ok", "too_few_points", "zero_duration"}

func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", string(text))
}
