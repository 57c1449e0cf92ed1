package webd

import (
	"testing"

	"github.com/rotblauer/trajd/params"
)

// newTestWebDaemon creates a WebDaemon for testing.
// With store, batches persist in a temporary datadir.
func newTestWebDaemon(t *testing.T, store bool) *WebDaemon {
	t.Helper()
	config := params.DefaultTestWebDaemonConfig()
	if store {
		config.DataDir = t.TempDir()
		config.Store = true
	}
	d, err := NewWebDaemon(config)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = d.melodyInstance.Close()
		if err := d.Close(); err != nil {
			t.Error(err)
		}
	})
	return d
}
