// Package parquetz reads points from and writes results to parquet files.
package parquetz

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/rotblauer/trajd/geo/trajectory"
	"github.com/rotblauer/trajd/types/trackpoint"
)

const readBatchSize = 4096

// PointRow is the parquet schema of point inputs.
type PointRow struct {
	Trajectory string    `parquet:"trajectory,dict"`
	X          float64   `parquet:"x"`
	Y          float64   `parquet:"y"`
	Time       time.Time `parquet:"time,timestamp(millisecond)"`
}

// SummaryRow is the parquet schema of result outputs.
type SummaryRow struct {
	Batch      string  `parquet:"batch,dict"`
	Trajectory string  `parquet:"trajectory"`
	Points     int32   `parquet:"points"`
	Distance   float64 `parquet:"distance"`
	Speed      float64 `parquet:"speed"`
	Status     string  `parquet:"status,dict"`
}

// ReadTrackPoints calls onEach for every row of a points file.
func ReadTrackPoints(r io.ReaderAt, onEach func(tp *trackpoint.TrackPoint) error) error {
	pr := parquet.NewGenericReader[PointRow](r)
	defer pr.Close()

	rows := make([]PointRow, readBatchSize)
	for {
		n, err := pr.Read(rows)
		for _, row := range rows[:n] {
			if err := onEach(&trackpoint.TrackPoint{
				Trajectory: row.Trajectory,
				X:          row.X,
				Y:          row.Y,
				Time:       row.Time.UTC(),
			}); err != nil {
				return err
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// StreamTrackPoints is ReadTrackPoints onto a channel.
// The error channel receives at most one error and is closed when the stream is done.
func StreamTrackPoints(ctx context.Context, r io.ReaderAt) (<-chan *trackpoint.TrackPoint, <-chan error) {
	out := make(chan *trackpoint.TrackPoint)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		err := ReadTrackPoints(r, func(tp *trackpoint.TrackPoint) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- tp:
				return nil
			}
		})
		if err != nil {
			errs <- err
		}
	}()
	return out, errs
}

// WriteTrackPoints writes points as PointRows.
func WriteTrackPoints(w io.Writer, points trackpoint.TrackPoints) error {
	rows := make([]PointRow, len(points))
	for i, tp := range points {
		rows[i] = PointRow{Trajectory: tp.Trajectory, X: tp.X, Y: tp.Y, Time: tp.Time}
	}
	return writeRows(w, rows)
}

// WriteSummaries writes one SummaryRow per trajectory of a batch.
func WriteSummaries(w io.Writer, batchID string, summaries []trajectory.Summary) error {
	rows := make([]SummaryRow, len(summaries))
	for i, s := range summaries {
		rows[i] = SummaryRow{
			Batch:      batchID,
			Trajectory: s.Trajectory,
			Points:     int32(s.Points),
			Distance:   s.Distance,
			Speed:      s.Speed,
			Status:     s.Status.String(),
		}
	}
	return writeRows(w, rows)
}

func writeRows[T any](w io.Writer, rows []T) error {
	pw := parquet.NewGenericWriter[T](w)
	if _, err := pw.Write(rows); err != nil {
		return err
	}
	return pw.Close()
}

// ReadSummaries reads back a file written by WriteSummaries.
func ReadSummaries(r io.ReaderAt) ([]SummaryRow, error) {
	pr := parquet.NewGenericReader[SummaryRow](r)
	defer pr.Close()
	rows := make([]SummaryRow, pr.NumRows())
	n, err := pr.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return rows[:n], nil
}
