package influxdb

import (
	"errors"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rotblauer/trajd/geo/trajectory"
	"github.com/rotblauer/trajd/params"
)

var ErrNotConfigured = errors.New("influxdb not configured")

// SummaryPoint is the measurement point of one trajectory's result.
func SummaryPoint(batchID string, s trajectory.Summary, at time.Time) *write.Point {
	return influxdb2.NewPointWithMeasurement(params.InfluxMeasurement).
		SetTime(at).
		AddTag("batch", batchID).
		AddTag("trajectory", s.Trajectory).
		AddTag("status", s.Status.String()).
		AddField("distance", s.Distance).
		AddField("speed", s.Speed).
		AddField("points", s.Points)
}

// ExportSummaries posts summaries to an InfluxDB Write API.
// The Write API will buffer and flush.
// The last error encountered is returned.
func ExportSummaries(cfg params.InfluxConfig, batchID string, summaries []trajectory.Summary, at time.Time) error {
	if !cfg.Enabled() {
		return ErrNotConfigured
	}
	opts := influxdb2.DefaultOptions()
	opts.SetPrecision(time.Millisecond)
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	// Errors must be drained, or the writer will block.
	// https://github.com/influxdata/influxdb-client-go?tab=readme-ov-file#reading-async-errors
	errorsCh := writeAPI.Errors()
	var err error
	wait := sync.WaitGroup{}
	wait.Add(1)
	go func() {
		defer wait.Done()
		for e := range errorsCh {
			if e != nil {
				err = e
			}
		}
	}()

	for _, s := range summaries {
		writeAPI.WritePoint(SummaryPoint(batchID, s, at))
	}
	writeAPI.Flush()
	client.Close()
	wait.Wait()
	return err
}
