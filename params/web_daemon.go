package params

import "time"

type WebDaemonConfig struct {
	ListenerConfig
	DataDir string

	// Workers is the reducer parallelism per request.
	Workers int

	// CacheSize is the number of computed batches kept for repeat requests.
	CacheSize int

	// LastTTL is how long the last batch summary is served from /last.
	LastTTL time.Duration

	// MaxBodyBytes limits request bodies.
	MaxBodyBytes int64

	// Store persists computed batches in the DataDir results store.
	Store bool
}

func DefaultWebListenerConfig() ListenerConfig {
	return ListenerConfig{
		Network: "tcp",
		Address: "localhost:3000",
	}
}

func DefaultWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		DataDir:        DatadirRoot,
		ListenerConfig: DefaultWebListenerConfig(),
		Workers:        DefaultWorkers,
		CacheSize:      256,
		LastTTL:        24 * time.Hour,
		MaxBodyBytes:   256 << 20,
	}
}

func DefaultTestWebDaemonConfig() *WebDaemonConfig {
	d := DefaultWebDaemonConfig()
	d.DataDir = ""
	d.ListenerConfig = ListenerConfig{
		Network: "tcp",
		Address: "localhost:3333",
	}
	d.Workers = 2
	d.CacheSize = 8
	return d
}
