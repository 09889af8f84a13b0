package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/atikulmunna/lognorm/internal/metrics"
	"github.com/atikulmunna/lognorm/internal/model"
)

const epsWindow = 5 * time.Second

// Stats holds a point-in-time snapshot of aggregated metrics.
type Stats struct {
	Uptime       string           `json:"uptime"`
	TotalEvents  int64            `json:"total_events"`
	Unparsed     int64            `json:"unparsed"`
	EPS          float64          `json:"eps"`
	LevelCounts  map[string]int64 `json:"level_counts"`
	FormatCounts map[string]int64 `json:"format_counts"`
	DroppedLogs  int64            `json:"dropped_logs"`
	Sources      int              `json:"sources"`
}

// Aggregator consumes normalized entries and keeps running counts.
type Aggregator struct {
	mu           sync.RWMutex
	startTime    time.Time
	now          func() time.Time
	totalEvents  int64
	unparsed     int64
	levelCounts  map[string]int64
	formatCounts map[string]int64
	sources      map[string]struct{}
	window       []time.Time // record times for the EPS calculation
	dropped      func() int64
	metrics      *metrics.ParseMetrics
	entries      <-chan model.LogEntry
}

// New creates an Aggregator reading from entries. entries may be nil when
// the caller feeds Record directly. droppedFn and m are optional.
func New(entries <-chan model.LogEntry, droppedFn func() int64, m *metrics.ParseMetrics) *Aggregator {
	return &Aggregator{
		startTime:    time.Now(),
		now:          time.Now,
		levelCounts:  make(map[string]int64),
		formatCounts: make(map[string]int64),
		sources:      make(map[string]struct{}),
		dropped:      droppedFn,
		metrics:      m,
		entries:      entries,
	}
}

// Snapshot returns the current metrics.
func (a *Aggregator) Snapshot() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	levels := make(map[string]int64, len(a.levelCounts))
	for k, v := range a.levelCounts {
		levels[k] = v
	}
	formats := make(map[string]int64, len(a.formatCounts))
	for k, v := range a.formatCounts {
		formats[k] = v
	}

	cutoff := a.now().Add(-epsWindow)
	var recent int
	for _, t := range a.window {
		if t.After(cutoff) {
			recent++
		}
	}

	var dropped int64
	if a.dropped != nil {
		dropped = a.dropped()
	}

	return Stats{
		Uptime:       a.now().Sub(a.startTime).Truncate(time.Second).String(),
		TotalEvents:  a.totalEvents,
		Unparsed:     a.unparsed,
		EPS:          float64(recent) / epsWindow.Seconds(),
		LevelCounts:  levels,
		FormatCounts: formats,
		DroppedLogs:  dropped,
		Sources:      len(a.sources),
	}
}

// Start consumes entries until the context is cancelled or the channel is
// closed.
func (a *Aggregator) Start(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-a.entries:
			if !ok {
				return
			}
			a.Record(entry)
		case <-ticker.C:
			a.prune()
		}
	}
}

// Record adds an entry to the metrics.
func (a *Aggregator) Record(entry model.LogEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalEvents++
	a.window = append(a.window, a.now())
	if entry.Source != "" {
		a.sources[entry.Source] = struct{}{}
	}

	if !entry.Parsed {
		a.unparsed++
		if a.metrics != nil {
			a.metrics.UnparsedTotal.Inc()
		}
		return
	}

	a.levelCounts[entry.Level()]++
	a.formatCounts[entry.Format]++
	if a.metrics != nil {
		a.metrics.EntriesTotal.WithLabelValues(entry.Format).Inc()
		a.metrics.LevelsTotal.WithLabelValues(entry.Level()).Inc()
	}
}

// prune removes record times older than the EPS window.
func (a *Aggregator) prune() {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := a.now().Add(-epsWindow)
	i := 0
	for _, t := range a.window {
		if t.After(cutoff) {
			a.window[i] = t
			i++
		}
	}
	a.window = a.window[:i]
}
