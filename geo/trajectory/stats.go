package trajectory

import (
	"github.com/montanaflynn/stats"
)

// BatchStats describes a whole result at a glance.
// Distance and speed figures cover StatusOK trajectories only.
type BatchStats struct {
	Trajectories  int     `json:"trajectories"`
	OK            int     `json:"ok"`
	TooFewPoints  int     `json:"too_few_points"`
	ZeroDuration  int     `json:"zero_duration"`
	TotalDistance float64 `json:"total_distance"`
	MeanDistance  float64 `json:"mean_distance"`
	MeanSpeed     float64 `json:"mean_speed"`
	MedianSpeed   float64 `json:"median_speed"`
	MaxSpeed      float64 `json:"max_speed"`
}

func (r *Result) Stats() BatchStats {
	st := BatchStats{Trajectories: r.Len()}
	distances := make(stats.Float64Data, 0, r.Len())
	speeds := make(stats.Float64Data, 0, r.Len())
	for g := 0; g < r.Len(); g++ {
		switch r.Status(g) {
		case StatusTooFewPoints:
			st.TooFewPoints++
		case StatusZeroDuration:
			st.ZeroDuration++
		default:
			st.OK++
			distances = append(distances, r.Distance[g])
			speeds = append(speeds, r.Speed[g])
		}
	}
	if st.OK == 0 {
		return st
	}

	statsOr0 := func(fn func() (float64, error)) float64 {
		out, err := fn()
		if err != nil {
			return 0
		}
		return out
	}
	st.TotalDistance = statsOr0(distances.Sum)
	st.MeanDistance = statsOr0(distances.Mean)
	st.MeanSpeed = statsOr0(speeds.Mean)
	st.MedianSpeed = statsOr0(speeds.Median)
	st.MaxSpeed = statsOr0(speeds.Max)
	return st
}
