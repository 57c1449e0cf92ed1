package trackpoint

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

var trackpointJSONValid = `{"trajectory":"trip-7","x":12.5,"y":-3.25,"time":"2024-11-15T22:57:43.999Z"}`

func TestTrackPoint_UnmarshalJSON1(t *testing.T) {
	tp := &TrackPoint{}
	err := tp.UnmarshalJSON([]byte(trackpointJSONValid))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp.Trajectory != "trip-7" {
		t.Errorf("expected Trajectory to be 'trip-7', got %q", tp.Trajectory)
	}
	if tp.X != 12.5 || tp.Y != -3.25 {
		t.Errorf("expected (12.5, -3.25), got (%v, %v)", tp.X, tp.Y)
	}
	if tp.Time.String() != "2024-11-15 22:57:43.999 +0000 UTC" {
		t.Errorf("expected Time to be '2024-11-15 22:57:43.999 +0000 UTC', got %v", tp.Time)
	}
}

// Cat tracker records use name/long/lat.
var trackpointJSONLegacy = `{"heading":310.89,"speed":1.1,"uuid":"5D37B5DA-6E0B-41FE-8A72-2BB681D661DA","long":-93.259307861328125,"time":"2024-11-15T22:57:43.999Z","lat":44.985164642333984,"accuracy":4.28,"name":"Rye16"}`

func TestTrackPoint_UnmarshalJSONLegacy(t *testing.T) {
	tp := &TrackPoint{}
	if err := json.Unmarshal([]byte(trackpointJSONLegacy), tp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp.Trajectory != "Rye16" {
		t.Errorf("expected Trajectory to be 'Rye16', got %q", tp.Trajectory)
	}
	if tp.X != -93.259307861328125 {
		t.Errorf("expected X to be -93.259307861328125, got %v", tp.X)
	}
	if tp.Y != 44.985164642333984 {
		t.Errorf("expected Y to be 44.985164642333984, got %v", tp.Y)
	}
}

var featureGeoJSON = `{"type":"Feature","geometry":{"type":"Point","coordinates":[-111.6902967,45.5710024]},"properties":{"Name":"ia","Time":"2024-02-04T18:04:31.172Z","UnixTime":1707069871}}`

// TestTrackPoint_UnmarshalJSON2 tests the TrackPoint.UnmarshalJSON method
// will return an error when attempting to unmarshal a GeoJSON Feature.
func TestTrackPoint_UnmarshalJSON2(t *testing.T) {
	tp := &TrackPoint{}
	err := tp.UnmarshalJSON([]byte(featureGeoJSON))
	if !errors.Is(err, ErrMissingTime) {
		t.Fatalf("expected ErrMissingTime, got %v", err)
	}
}

func TestTrackPoint_RoundTrip(t *testing.T) {
	in := TrackPoint{
		Trajectory: "a",
		X:          1,
		Y:          2,
		Time:       time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.UTC),
	}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out TrackPoint
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if out.Trajectory != in.Trajectory || out.X != in.X || out.Y != in.Y || !out.Time.Equal(in.Time) {
		t.Errorf("got %v, want %v", &out, &in)
	}
}
