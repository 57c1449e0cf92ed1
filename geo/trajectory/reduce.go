package trajectory

import (
	"fmt"
	"math"
	"time"

	"github.com/rotblauer/trajd/column"
	"github.com/rotblauer/trajd/stream"
)

const (
	// SentinelTooFewPoints marks both outputs of a trajectory with fewer than two points.
	SentinelTooFewPoints = -2.0

	// SentinelZeroDuration marks both outputs of a trajectory whose first and last
	// timestamps are less than a millisecond apart.
	SentinelZeroDuration = -3.0
)

// Summed segment lengths are kilometers in the coordinate space.
const (
	metersPerUnit      = 1000.0
	metersPerUnitPerMs = 1_000_000.0 // km/ms -> m/s
)

// Float is the set of coordinate types.
type Float interface {
	~float32 | ~float64
}

// Temporal is the set of point-in-time types a timestamp column holds.
type Temporal interface {
	column.EpochDays | column.EpochSeconds | column.EpochMillis |
		column.EpochMicros | column.EpochNanos | time.Time
}

// elapsedFunc returns the milliseconds from ts[start] to ts[end], truncated toward zero.
type elapsedFunc func(start, end int) float64

// elapsedMillis counts in each type's own unit, so spans too long for a
// time.Duration still come out right.
func elapsedMillis[T Temporal](ts []T) elapsedFunc {
	switch v := any(ts).(type) {
	case []column.EpochDays:
		return func(start, end int) float64 { return v[end].MillisSince(v[start]) }
	case []column.EpochSeconds:
		return func(start, end int) float64 { return v[end].MillisSince(v[start]) }
	case []column.EpochMillis:
		return func(start, end int) float64 { return v[end].MillisSince(v[start]) }
	case []column.EpochMicros:
		return func(start, end int) float64 { return v[end].MillisSince(v[start]) }
	case []column.EpochNanos:
		return func(start, end int) float64 { return v[end].MillisSince(v[start]) }
	case []time.Time:
		return func(start, end int) float64 { return column.MillisBetween(v[start], v[end]) }
	}
	panic(fmt.Sprintf("trajectory: unhandled timestamp slice %T", ts))
}

// Reduce writes distance[g] and speed[g] for every trajectory g in groups,
// running up to workers trajectories at a time. It returns once all are written.
// Inputs are assumed valid (see Validate); distance and speed must have groups.Len() entries.
func Reduce[F Float, T Temporal](x, y []F, ts []T, groups Groups, distance, speed []float64, workers int) {
	elapsed := elapsedMillis(ts)
	stream.ParallelFor(groups.Len(), workers, func(lo, hi int) {
		for g := lo; g < hi; g++ {
			distance[g], speed[g] = reduceOne(x, y, elapsed, int(groups.Offset[g]), int(groups.Length[g]))
		}
	})
}

func reduceOne[F Float](x, y []F, elapsed elapsedFunc, idx, n int) (distance, speed float64) {
	if n < 2 {
		return SentinelTooFewPoints, SentinelTooFewPoints
	}
	end := idx + n - 1

	ms := elapsed(idx, end)
	if ms == 0 {
		return SentinelZeroDuration, SentinelZeroDuration
	}

	var sum F
	for i := idx; i < end; i++ {
		dx := x[i+1] - x[i]
		dy := y[i+1] - y[i]
		sum += F(math.Sqrt(float64(dx*dx + dy*dy)))
	}
	return float64(sum) * metersPerUnit, float64(sum) * metersPerUnitPerMs / ms
}
