package params

import (
	"time"

	"github.com/rotblauer/trajd/column"
)

// ComputeConfig configures one batch computation, from ingest to output.
type ComputeConfig struct {
	BuilderConfig

	// Format of the input: ndjson (also geojson, json arrays) or parquet.
	Format string

	// ElementType is the coordinate dtype the reducer runs in.
	ElementType column.DType

	// TimestampType is the timestamp dtype the reducer runs in.
	TimestampType column.DType

	// Workers is the reducer parallelism. Zero means DefaultWorkers.
	Workers int

	// Output renders results: table, ndjson or parquet.
	Output string

	// OutputPath is where to write results; "-" or empty is stdout.
	OutputPath string

	// Store persists the batch in the datadir results store.
	Store bool

	// Influx exports the batch to InfluxDB.
	Influx bool

	// MeterInterval is how often read throughput is logged.
	MeterInterval time.Duration
}

type BuilderConfig struct {
	// SortByTime stable-sorts each trajectory's points by time.
	SortByTime bool

	// Dedupe drops exact duplicate points.
	Dedupe bool

	// DedupeCacheSize is the LRU size used when Dedupe is on.
	DedupeCacheSize int
}

func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		SortByTime:      true,
		Dedupe:          false,
		DedupeCacheSize: 10_000,
	}
}

func DefaultComputeConfig() *ComputeConfig {
	return &ComputeConfig{
		BuilderConfig: DefaultBuilderConfig(),
		Format:        "ndjson",
		ElementType:   column.Float64,
		TimestampType: column.TimestampMilliseconds,
		Workers:       DefaultWorkers,
		Output:        "table",
		OutputPath:    "-",
		MeterInterval: 5 * time.Second,
	}
}
