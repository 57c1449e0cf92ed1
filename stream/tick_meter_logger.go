package stream

import (
	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/rotblauer/trajd/common"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Meter logs read throughput (points and bytes) on a ticker.
type Meter struct {
	name     string
	interval time.Duration
	started  time.Time
	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once

	labelMu sync.Mutex
	label   time.Time // any value, eg. point time

	nn         atomic.Uint64
	reg        metrics.Registry
	count      metrics.Counter
	size       metrics.Counter
	countMeter metrics.Meter
	sizeMeter  metrics.Meter
}

// NewMeter starts a meter which logs every interval until stopped.
// A zero interval never logs, but still counts.
func NewMeter(name string, interval time.Duration) *Meter {
	// Enable metrics package.
	// Won't work without this global setting.
	metrics.Enabled = true

	m := &Meter{
		name:       name,
		interval:   interval,
		started:    time.Now(),
		done:       make(chan struct{}),
		reg:        metrics.NewRegistry(),
		count:      metrics.NewCounter(),
		size:       metrics.NewCounter(),
		countMeter: metrics.NewMeter(),
		sizeMeter:  metrics.NewMeter(),
	}
	for name, metric := range map[string]interface{}{
		"count.count": m.count,
		"size.count":  m.size,
		"point.meter": m.countMeter,
		"size.meter":  m.sizeMeter,
	} {
		if err := m.reg.Register(name, metric); err != nil {
			panic(err)
		}
	}
	if interval > 0 {
		m.ticker = time.NewTicker(interval)
		go m.run()
	}
	return m
}

// Mark counts one point of the given encoded size.
func (m *Meter) Mark(label time.Time, size int) {
	m.labelMu.Lock()
	m.label = label
	m.labelMu.Unlock()
	m.nn.Add(1)
	m.count.Inc(1)
	m.size.Inc(int64(size))
	m.countMeter.Mark(1)
	m.sizeMeter.Mark(int64(size))
}

// Count returns the number of points marked.
func (m *Meter) Count() uint64 {
	return m.nn.Load()
}

// Started is when the meter began counting.
func (m *Meter) Started() time.Time {
	return m.started
}

func (m *Meter) run() {
	for {
		select {
		case <-m.done:
			return
		case <-m.ticker.C:
			m.Log()
		}
	}
}

// Log writes one throughput line.
func (m *Meter) Log() {
	countSnap := m.countMeter.Snapshot()
	sizeSnap := m.sizeMeter.Snapshot()

	m.labelMu.Lock()
	label := m.label
	m.labelMu.Unlock()

	slog.Info("Read points", "meter", m.name,
		"n", humanize.Comma(countSnap.Count()),
		"read.last", label.Format(time.DateTime),
		"pps", common.DecimalToFixed(countSnap.Rate1(), 0),
		"bps", humanize.Bytes(uint64(sizeSnap.Rate1())),
		"total.bytes", humanize.Bytes(uint64(sizeSnap.Count())),
		"running", time.Since(m.started).Round(time.Second))
}

func (m *Meter) Stop() {
	if m == nil {
		return
	}
	m.stopOnce.Do(func() {
		close(m.done)
		if m.ticker != nil {
			m.ticker.Stop()
		}
		m.countMeter.Stop()
		m.sizeMeter.Stop()
	})
}
