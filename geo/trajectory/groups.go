// Package trajectory reduces trajectories, stored as flat point columns
// partitioned by a Groups table, to per-trajectory distance and speed.
//
// Coordinates are planar. Each trajectory is reduced independently,
// in parallel, and degenerate trajectories get sentinel outputs
// instead of errors (see SentinelTooFewPoints, SentinelZeroDuration).
package trajectory

// Groups partitions flat point columns into trajectories.
// Trajectory g is the half-open point range [Offset[g], Offset[g]+Length[g]).
// Ranges are expected not to overlap and to be in traversal order.
type Groups struct {
	Length []int32
	Offset []int32
}

// GroupsFromLengths lays trajectories out back to back,
// computing each offset as the sum of the lengths before it.
func GroupsFromLengths(lengths []int32) Groups {
	offsets := make([]int32, len(lengths))
	var next int32
	for g, n := range lengths {
		offsets[g] = next
		next += n
	}
	return Groups{Length: lengths, Offset: offsets}
}

// Len is the number of trajectories.
func (g Groups) Len() int {
	return len(g.Length)
}

// Span returns the first and one-past-last point indexes of trajectory i.
func (g Groups) Span(i int) (start, end int) {
	start = int(g.Offset[i])
	return start, start + int(g.Length[i])
}

// Points is the total number of points referenced by all trajectories.
func (g Groups) Points() int {
	n := 0
	for _, l := range g.Length {
		n += int(l)
	}
	return n
}
