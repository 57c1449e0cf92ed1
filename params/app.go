package params

import (
	"compress/gzip"
	"path/filepath"
	"runtime"

	"github.com/mitchellh/go-homedir"
)

const (
	ResultsDBName  = "results.db"
	ConfigFileName = ".trajd"
	EnvPrefix      = "TRAJD"
	DefaultDirName = ".trajd"
)

var DefaultDatadirRoot = func() string {
	home, err := homedir.Dir()
	if err != nil {
		panic(err)
	}
	return filepath.Join(home, DefaultDirName)
}()

// DatadirRoot is where result stores live.
// It is reassigned by the --datadir flag.
var DatadirRoot = DefaultDatadirRoot

// DefaultWorkers is the reducer's parallelism when unconfigured.
var DefaultWorkers = runtime.NumCPU()

const DefaultGZipCompressionLevel = gzip.BestCompression
