package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/trajd/types/trackpoint"
)

var ErrNotPoint = errors.New("not a point")

// TrackPointToFeature converts a TrackPoint to a GeoJSON Point feature.
func TrackPointToFeature(tp *trackpoint.TrackPoint) *geojson.Feature {
	f := geojson.NewFeature(tp.Point())
	f.Properties = geojson.Properties{
		"Trajectory": tp.Trajectory,
		"Time":       tp.Time.Format(time.RFC3339Nano),
		"UnixTime":   tp.Time.Unix(),
	}
	return f
}

// FeatureToTrackPoint reads a TrackPoint from a Point feature.
// The trajectory is the 'Trajectory' property, or 'Name' for cat tracks.
// Time is read from 'Time' (RFC3339) and falls back to 'UnixTime' seconds.
func FeatureToTrackPoint(f *geojson.Feature) (*trackpoint.TrackPoint, error) {
	p, ok := f.Geometry.(orb.Point)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotPoint, f.Geometry)
	}
	tp := &trackpoint.TrackPoint{X: p.X(), Y: p.Y()}

	if v, ok := f.Properties["Trajectory"].(string); ok {
		tp.Trajectory = v
	} else if v, ok := f.Properties["Name"].(string); ok {
		tp.Trajectory = v
	}

	switch v := f.Properties["Time"].(type) {
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("feature time: %w", err)
		}
		tp.Time = t
	case nil:
		if unix, ok := f.Properties["UnixTime"].(float64); ok {
			tp.Time = time.Unix(int64(unix), 0).UTC()
		}
	}
	if tp.Time.IsZero() {
		return nil, trackpoint.ErrMissingTime
	}
	return tp, nil
}
