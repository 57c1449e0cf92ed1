package types

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/trajd/types/trackpoint"
	"github.com/tidwall/gjson"
)

// ScanJSONMessages reads a stream of JSON messages from an io.Reader,
// and calls onEach for each decoded message.
// If the stream is encoded as a JSON array, this function will attempt
// to call onEach for each element in the array.
// A GeoJSON FeatureCollection is a single object, and will be treated as such;
// use DecodingJSONPointObject to handle the 'features' within, in this case.
func ScanJSONMessages(body io.Reader, onEach func(message json.RawMessage) error) error {
	buf := bufio.NewReader(body)
	peek, err := buf.Peek(1)
	if err != nil {
		return err
	}
	t, err := json.NewDecoder(bytes.NewReader(peek)).Token()
	if err != nil {
		return err
	}
	dec := json.NewDecoder(buf)
	if t == json.Delim('[') {
		if _, err := dec.Token(); err != nil {
			return err
		}
	}
	for dec.More() {
		var msg json.RawMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("decode err: %w", err)
		}
		if err := onEach(msg); err != nil {
			return err
		}
	}
	return nil
}

// DecodingJSONPointObject recursively decodes a JSON message into TrackPoints.
// If the message is a FeatureCollection, it will call onEach for each feature.
// It assumes that the message is a single object, and will error if given an array.
func DecodingJSONPointObject(msg json.RawMessage, onEach func(tp *trackpoint.TrackPoint) error) error {
	parsed := gjson.ParseBytes(msg)

	if parsed.IsArray() {
		return errors.New("unexpected array, want point object")
	}

	// Only GeoJSON objects will have 'type' attribute;
	// flat track points will not.
	pType := parsed.Get("type")

	if !pType.Exists() {
		tp := &trackpoint.TrackPoint{}
		if err := json.Unmarshal([]byte(parsed.Raw), tp); err != nil {
			return err
		}
		return onEach(tp)
	}

	switch pType.String() {
	case "FeatureCollection":
		feats := parsed.Get("features")
		if !feats.Exists() {
			return errors.New("no 'features' attribute present in feature collection")
		}
		for _, f := range feats.Array() {
			if err := DecodingJSONPointObject([]byte(f.Raw), onEach); err != nil {
				return err
			}
		}
		return nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(msg)
		if err != nil {
			return err
		}
		tp, err := FeatureToTrackPoint(f)
		if err != nil {
			return err
		}
		return onEach(tp)
	}
	return fmt.Errorf("unsupported object type %q", pType.String())
}

// DecodeTrackPoints scans and decodes every point in r.
func DecodeTrackPoints(r io.Reader) (trackpoint.TrackPoints, error) {
	out := trackpoint.TrackPoints{}
	err := ScanJSONMessages(r, func(message json.RawMessage) error {
		return DecodingJSONPointObject(message, func(tp *trackpoint.TrackPoint) error {
			out = append(out, tp)
			return nil
		})
	})
	return out, err
}

// StreamTrackPoints decodes points from r onto a channel.
// The error channel receives at most one error and is closed when the stream is done.
func StreamTrackPoints(ctx context.Context, r io.Reader) (<-chan *trackpoint.TrackPoint, <-chan error) {
	out := make(chan *trackpoint.TrackPoint)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		err := ScanJSONMessages(r, func(message json.RawMessage) error {
			return DecodingJSONPointObject(message, func(tp *trackpoint.TrackPoint) error {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case out <- tp:
					return nil
				}
			})
		})
		if err != nil && !errors.Is(err, io.EOF) {
			errs <- err
		}
	}()
	return out, errs
}
