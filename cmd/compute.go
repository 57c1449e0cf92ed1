/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rotblauer/trajd/batch"
	"github.com/rotblauer/trajd/column"
	"github.com/rotblauer/trajd/common"
	"github.com/rotblauer/trajd/geo/trajectory"
	"github.com/rotblauer/trajd/metrics/influxdb"
	"github.com/rotblauer/trajd/params"
	"github.com/rotblauer/trajd/parquetz"
	"github.com/rotblauer/trajd/resultdb"
	"github.com/rotblauer/trajd/stream"
	"github.com/rotblauer/trajd/trajz"
	"github.com/rotblauer/trajd/types"
	"github.com/rotblauer/trajd/types/trackpoint"
	"github.com/spf13/cobra"
)

var errUnknownFormat = errors.New("unknown format")

var (
	optFormat    string
	optElement   string
	optTimestamp string
	optWorkersN  int
	optSort      bool
	optDedupe    bool
	optOut       string
	optOutput    string
	optStore     bool
	optInflux    bool
)

// computeCmd represents the compute command
var computeCmd = &cobra.Command{
	Use:   "compute [file|-|s3://bucket/key]",
	Short: "Compute distance and speed per trajectory",
	Long: `Reads points, groups them by trajectory, and reduces each trajectory
to its distance (meters) and average speed (meters/second).

Input defaults to stdin. Files ending in .gz are decompressed, and s3:// objects are downloaded.
Input points are JSON lines, JSON arrays, or GeoJSON features:

  {"trajectory":"a","x":-93.2,"y":44.9,"time":"2024-12-20T22:00:00Z"}

Path length is summed in coordinate units, read as kilometers.

Examples:

  trajd compute points.ndjson.gz
  cat points.ndjson | trajd compute --element float32 --timestamp us --out ndjson
  trajd compute --format parquet s3://bucket/points.parquet --store --influx
`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		source := "-"
		if len(args) > 0 {
			source = args[0]
		}
		cfg, err := computeConfigFromFlags()
		if err != nil {
			log.Fatalln(err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		interrupt := common.Interrupted()
		go func() {
			select {
			case sig := <-interrupt:
				slog.Warn("Received signal", "signal", sig)
				cancel()
			case <-ctx.Done():
			}
		}()

		if _, err := runCompute(ctx, source, cfg); err != nil {
			log.Fatalln(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(computeCmd)

	defaults := params.DefaultComputeConfig()
	flags := computeCmd.Flags()
	flags.StringVar(&optFormat, "format", defaults.Format, "Input format: ndjson or parquet")
	flags.StringVar(&optElement, "element", defaults.ElementType.String(), "Coordinate type: float64 or float32")
	flags.StringVar(&optTimestamp, "timestamp", "ms", "Timestamp unit: days, s, ms, us, ns or time")
	flags.IntVar(&optWorkersN, "workers", defaults.Workers, "Number of reducer workers")
	flags.BoolVar(&optSort, "sort", defaults.SortByTime, "Sort each trajectory's points by time")
	flags.BoolVar(&optDedupe, "dedupe", defaults.Dedupe, "Drop duplicate points")
	flags.StringVar(&optOut, "out", defaults.Output, "Output: table, ndjson or parquet")
	flags.StringVarP(&optOutput, "output", "o", defaults.OutputPath, "Output file, - is stdout")
	flags.BoolVar(&optStore, "store", defaults.Store, "Save the batch in the datadir results store")
	flags.BoolVar(&optInflux, "influx", defaults.Influx, "Export the batch to InfluxDB (INFLUXDB_* env)")
}

func computeConfigFromFlags() (*params.ComputeConfig, error) {
	cfg := params.DefaultComputeConfig()
	elem, err := column.ParseDType(optElement)
	if err != nil {
		return nil, err
	}
	ts, err := column.ParseTimestampUnit(optTimestamp)
	if err != nil {
		return nil, err
	}
	cfg.Format = optFormat
	cfg.ElementType = elem
	cfg.TimestampType = ts
	cfg.Workers = optWorkersN
	cfg.SortByTime = optSort
	cfg.Dedupe = optDedupe
	cfg.Output = optOut
	cfg.OutputPath = optOutput
	cfg.Store = optStore
	cfg.Influx = optInflux
	return cfg, nil
}

// runCompute reads, reduces and reports one batch.
// It returns the batch ID.
func runCompute(ctx context.Context, source string, cfg *params.ComputeConfig) (string, error) {
	started := time.Now()
	bt, err := readBatch(ctx, source, cfg)
	if err != nil {
		return "", err
	}

	reducer := &trajectory.Reducer{Workers: cfg.Workers}
	res, sums, err := bt.Compute(reducer, cfg.ElementType, cfg.TimestampType)
	if err != nil {
		return "", err
	}
	stats := res.Stats()
	batchID := resultdb.NewBatchID()
	slog.Info("Computed batch", "batch", batchID,
		"trajectories", stats.Trajectories, "ok", stats.OK,
		"too_few_points", stats.TooFewPoints, "zero_duration", stats.ZeroDuration,
		"elapsed", time.Since(started).Round(time.Millisecond))

	if err := writeSummaries(cfg, batchID, sums); err != nil {
		return batchID, err
	}

	if cfg.Store {
		db, err := resultdb.OpenDatadir(params.DatadirRoot, false)
		if err != nil {
			return batchID, err
		}
		err = db.PutBatch(resultdb.Meta{
			BatchID:      batchID,
			Created:      time.Now().UTC(),
			Source:       source,
			Trajectories: stats.Trajectories,
			Points:       bt.Points(),
			Stats:        stats,
		}, sums)
		if cerr := db.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return batchID, err
		}
		slog.Info("Stored batch", "batch", batchID, "db", db.Path())
	}

	if cfg.Influx {
		if err := influxdb.ExportSummaries(params.DefaultInfluxConfig(), batchID, sums, time.Now()); err != nil {
			return batchID, err
		}
		slog.Info("Exported batch to InfluxDB", "batch", batchID)
	}
	return batchID, nil
}

func readBatch(ctx context.Context, source string, cfg *params.ComputeConfig) (*batch.Batch, error) {
	rc, err := trajz.Open(ctx, source)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var points <-chan *trackpoint.TrackPoint
	var errs <-chan error
	switch cfg.Format {
	case "ndjson", "json", "geojson":
		points, errs = types.StreamTrackPoints(ctx, rc)
	case "parquet":
		// Parquet needs random access.
		b, err := io.ReadAll(rc)
		if err != nil {
			return nil, err
		}
		points, errs = parquetz.StreamTrackPoints(ctx, bytes.NewReader(b))
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownFormat, cfg.Format)
	}

	meter := stream.NewMeter(source, cfg.MeterInterval)
	defer meter.Stop()

	bt, err := batch.Collect(ctx, batch.Valid(ctx, points), cfg.BuilderConfig, meter)
	if err != nil {
		return nil, err
	}
	if err := <-errs; err != nil {
		return nil, err
	}
	meter.Log()
	return bt, nil
}

func writeSummaries(cfg *params.ComputeConfig, batchID string, sums []trajectory.Summary) error {
	w, err := trajz.Create(cfg.OutputPath)
	if err != nil {
		return err
	}
	switch cfg.Output {
	case "table":
		err = writeTable(w, sums)
	case "ndjson":
		enc := json.NewEncoder(w)
		for _, s := range sums {
			if err = enc.Encode(s); err != nil {
				break
			}
		}
	case "parquet":
		err = parquetz.WriteSummaries(w, batchID, sums)
	default:
		err = fmt.Errorf("%w: %q", errUnknownFormat, cfg.Output)
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	return err
}

func writeTable(w io.Writer, sums []trajectory.Summary) error {
	table := tablewriter.NewWriter(w)
	table.Header("Trajectory", "Points", "Distance (m)", "Speed (m/s)", "Status")
	for _, s := range sums {
		err := table.Append([]string{
			s.Trajectory,
			strconv.Itoa(s.Points),
			common.FixedString(s.Distance, 2),
			common.FixedString(s.Speed, 3),
			s.Status.String(),
		})
		if err != nil {
			return err
		}
	}
	return table.Render()
}
