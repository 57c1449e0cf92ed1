package trackpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
)

var ErrMissingTime = errors.New("missing or zero 'time' field")

// TrackPoint is one timestamped planar sample of a trajectory.
type TrackPoint struct {
	Trajectory string    `json:"trajectory"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Time       time.Time `json:"time"`
}

// UnmarshalJSON is a custom unmarshaler for TrackPoint.
// It asserts that the Time field is a valid RFC3339 time.
// Legacy cat tracker records are accepted too: 'name' stands in for
// 'trajectory', and 'long', 'lat' for 'x', 'y'.
// A GeoJSON Feature will fail, since it has no flat time field.
func (tp *TrackPoint) UnmarshalJSON(data []byte) error {
	aux := struct {
		Trajectory *string  `json:"trajectory"`
		X          *float64 `json:"x"`
		Y          *float64 `json:"y"`
		Time       string   `json:"time"`

		Name string  `json:"name"`
		Lng  float64 `json:"long"`
		Lat  float64 `json:"lat"`
	}{}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Time == "" {
		return ErrMissingTime
	}
	t, err := time.Parse(time.RFC3339, aux.Time)
	if err != nil {
		return fmt.Errorf("trackpoint time: %w", err)
	}

	*tp = TrackPoint{Trajectory: aux.Name, X: aux.Lng, Y: aux.Lat, Time: t}
	if aux.Trajectory != nil {
		tp.Trajectory = *aux.Trajectory
	}
	if aux.X != nil {
		tp.X = *aux.X
	}
	if aux.Y != nil {
		tp.Y = *aux.Y
	}
	return nil
}

func (tp *TrackPoint) Point() orb.Point {
	return orb.Point{tp.X, tp.Y}
}

func (tp *TrackPoint) IsValid() bool {
	return tp != nil && !tp.Time.IsZero() &&
		!math.IsNaN(tp.X) && !math.IsNaN(tp.Y)
}

func (tp *TrackPoint) String() string {
	return fmt.Sprintf("%s (%g, %g) %s", tp.Trajectory, tp.X, tp.Y, tp.Time.Format(time.RFC3339Nano))
}

type TrackPoints []*TrackPoint
