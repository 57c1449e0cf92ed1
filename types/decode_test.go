package types

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/rotblauer/trajd/types/trackpoint"
)

type decodeTestCase struct {
	name                 string
	input                []byte
	expectScanMessages   int
	expectDecodeMessages int
	expectError          error
}

var gf1 = `{"type":"Feature","properties":{"Trajectory":"moto-act3","Time":"2024-12-20T22:19:53.713Z","UnixTime":1734733193,"Speed":0.18},"geometry":{"type":"Point","coordinates":[-113.4733911,47.178916]}}`
var gf2 = `{"type":"Feature","properties":{"Name":"moto-act3","UnixTime":1734733194,"Speed":0.18},"geometry":{"type":"Point","coordinates":[-113.473419,47.1788913]},"bbox":[-113.473419,47.1788913,-113.473419,47.1788913]}`
var tp1 = `{"trajectory":"Rye16","x":-93.255531311035156,"y":44.988998413085938,"time":"2024-12-20T22:09:01.458Z"}`
var tp2 = `{"heading":-1,"speed":-1,"long":-93.255531311035156,"time":"2024-12-20T22:09:06.964Z","lat":44.988998413085938,"accuracy":3.79,"name":"Rye16"}`

var (
	empty_T = decodeTestCase{
		name:        "empty",
		input:       []byte{},
		expectError: io.EOF,
	}
	nil_T = decodeTestCase{
		name:        "nil",
		input:       nil,
		expectError: io.EOF,
	}
	malformed_T = decodeTestCase{
		name:        "malformed",
		input:       []byte("malformed"),
		expectError: &json.SyntaxError{},
	}
	featuresNDJSON_T = decodeTestCase{
		name:                 "featsNDJSON",
		expectScanMessages:   2,
		expectDecodeMessages: 2,
		input:                []byte(fmt.Sprintf("%s\n%s\n", gf1, gf2)),
	}
	featuresArrayIndented_T = decodeTestCase{
		name:                 "featsArrayIndented",
		expectScanMessages:   2,
		expectDecodeMessages: 2,
		input:                []byte(fmt.Sprintf("[\n\t%s,\n\t%s\n]\n", gf1, gf2)),
	}
	trackpointsNDJSON_T = decodeTestCase{
		name:                 "trackpointsNDJSON",
		expectScanMessages:   2,
		expectDecodeMessages: 2,
		input:                []byte(fmt.Sprintf("%s\n%s\n", tp1, tp2)),
	}
	trackpointsJSONCompact_T = decodeTestCase{
		name:                 "trackpointsJSONCompact",
		expectScanMessages:   2,
		expectDecodeMessages: 2,
		input:                []byte(fmt.Sprintf("[%s,%s]", tp1, tp2)),
	}
	featureCollection_T = decodeTestCase{
		name:                 "geojsonFeatureCollection",
		expectScanMessages:   1, // One object.
		expectDecodeMessages: 2,
		input: []byte(fmt.Sprintf(`{
	"type": "FeatureCollection",
	"features": [
		%s,
		%s
	]
}`, gf1, gf2)),
	}
	featureCollectionArray_T = decodeTestCase{
		name:                 "geojsonFeatureCollectionArray",
		expectScanMessages:   2,
		expectDecodeMessages: 4,
		input:                []byte(`[{"type": "FeatureCollection","features": [` + gf1 + "," + gf2 + `]},{"type":"FeatureCollection","features":[` + gf1 + "," + gf2 + `]}]`),
	}
	mixed_T = decodeTestCase{
		name:                 "mixed",
		expectScanMessages:   3,
		expectDecodeMessages: 3,
		input:                []byte(fmt.Sprintf("%s\n%s\n%s\n", tp1, gf1, tp2)),
	}
)

var allCases = []decodeTestCase{
	empty_T,
	nil_T,
	malformed_T,
	featuresNDJSON_T,
	featuresArrayIndented_T,
	trackpointsNDJSON_T,
	trackpointsJSONCompact_T,
	featureCollection_T,
	featureCollectionArray_T,
	mixed_T,
}

func checkDecodeError(t *testing.T, c decodeTestCase, err error) {
	t.Helper()
	if c.expectError != nil {
		if err == nil {
			t.Fatalf("wanted error: %v (got: nil)", c.expectError)
		}
		var serr *json.SyntaxError
		if errors.As(c.expectError, &serr) {
			if !errors.As(err, &serr) {
				t.Fatalf("returned error: %v", err)
			}
		} else if !errors.Is(err, c.expectError) {
			t.Fatalf("returned error: %v", err)
		}
		return
	}
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestScanMessages(t *testing.T) {
	for _, c := range allCases {
		t.Run(c.name, func(t *testing.T) {
			msgs := []json.RawMessage{}
			err := ScanJSONMessages(bytes.NewBuffer(c.input), func(message json.RawMessage) error {
				msgs = append(msgs, message)
				return nil
			})
			checkDecodeError(t, c, err)
			if c.expectError != nil {
				return
			}
			if len(msgs) != c.expectScanMessages {
				t.Errorf("returned %d messages, expected %d", len(msgs), c.expectScanMessages)
			}
		})
	}
}

func TestDecodingPointObject(t *testing.T) {
	for _, c := range allCases {
		t.Run(c.name, func(t *testing.T) {
			count := 0
			err := ScanJSONMessages(bytes.NewBuffer(c.input), func(message json.RawMessage) error {
				return DecodingJSONPointObject(message, func(tp *trackpoint.TrackPoint) error {
					if !tp.IsValid() {
						t.Errorf("invalid point: %v", tp)
					}
					if tp.Trajectory == "" {
						t.Errorf("no trajectory: %v", tp)
					}
					count++
					return nil
				})
			})
			checkDecodeError(t, c, err)
			if c.expectError != nil {
				return
			}
			if count != c.expectDecodeMessages {
				t.Fatalf("returned %d points, expected %d", count, c.expectDecodeMessages)
			}
		})
	}
}

func TestDecodeTrackPoints_Fields(t *testing.T) {
	tps, err := DecodeTrackPoints(bytes.NewBufferString(fmt.Sprintf("%s\n%s\n", gf1, gf2)))
	if err != nil {
		t.Fatal(err)
	}
	if len(tps) != 2 {
		t.Fatalf("got %d points", len(tps))
	}
	if tps[0].X != -113.4733911 || tps[0].Y != 47.178916 {
		t.Errorf("got (%v, %v)", tps[0].X, tps[0].Y)
	}
	if want := time.Date(2024, 12, 20, 22, 19, 53, 713_000_000, time.UTC); !tps[0].Time.Equal(want) {
		t.Errorf("got time %v, want %v", tps[0].Time, want)
	}
	// No Time property: UnixTime seconds.
	if want := time.Unix(1734733194, 0); !tps[1].Time.Equal(want) {
		t.Errorf("got time %v, want %v", tps[1].Time, want)
	}
}

func TestDecodingPointObject_Rejects(t *testing.T) {
	for name, msg := range map[string]string{
		"array":       `[1, 2]`,
		"line":        `{"type":"Feature","properties":{"Time":"2024-12-20T22:19:53Z"},"geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}}`,
		"no time":     `{"type":"Feature","properties":{"Trajectory":"a"},"geometry":{"type":"Point","coordinates":[0,0]}}`,
		"bad time":    `{"trajectory":"a","x":0,"y":0,"time":"yesterday"}`,
		"unsupported": `{"type":"Point","coordinates":[0,0]}`,
		"empty fc":    `{"type":"FeatureCollection"}`,
	} {
		t.Run(name, func(t *testing.T) {
			err := DecodingJSONPointObject([]byte(msg), func(tp *trackpoint.TrackPoint) error {
				t.Errorf("unexpected point %v", tp)
				return nil
			})
			if err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFeatureRoundTrip(t *testing.T) {
	in := &trackpoint.TrackPoint{
		Trajectory: "x",
		X:          3,
		Y:          4,
		Time:       time.Date(2024, 5, 6, 7, 8, 9, 10_000_000, time.UTC),
	}
	b, err := json.Marshal(TrackPointToFeature(in))
	if err != nil {
		t.Fatal(err)
	}
	got := []*trackpoint.TrackPoint{}
	err = DecodingJSONPointObject(b, func(tp *trackpoint.TrackPoint) error {
		got = append(got, tp)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Trajectory != in.Trajectory || got[0].Point() != in.Point() || !got[0].Time.Equal(in.Time) {
		t.Errorf("got %v, want %v", got, in)
	}
}

func TestStreamTrackPoints(t *testing.T) {
	ctx := context.Background()
	points, errs := StreamTrackPoints(ctx, bytes.NewBuffer(featureCollectionArray_T.input))
	n := 0
	for range points {
		n++
	}
	if err := <-errs; err != nil {
		t.Fatal(err)
	}
	if n != featureCollectionArray_T.expectDecodeMessages {
		t.Errorf("got %d points, want %d", n, featureCollectionArray_T.expectDecodeMessages)
	}

	points, errs = StreamTrackPoints(ctx, bytes.NewBufferString(tp1+"\n{\"x\":"))
	for range points {
	}
	if err := <-errs; err == nil {
		t.Error("expected error for truncated input")
	}

	// Empty input is an empty stream, not an error.
	points, errs = StreamTrackPoints(ctx, bytes.NewBuffer(nil))
	for range points {
		t.Error("unexpected point")
	}
	if err := <-errs; err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
