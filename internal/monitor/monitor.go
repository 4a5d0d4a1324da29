// Package monitor ties the pipeline together: once per polling tick it
// discovers terminal windows, fingerprints each one, feeds the tracker, and
// sends the corrective keystroke sequence to windows that have gone quiet.
// The tick is single-threaded; each window is processed to completion before
// the next, so the component caches and the tracker map see no concurrent
// access from the loop.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dbbuilder/termkeep/internal/config"
	"github.com/dbbuilder/termkeep/internal/discover"
	"github.com/dbbuilder/termkeep/internal/extract"
	"github.com/dbbuilder/termkeep/internal/inject"
	"github.com/dbbuilder/termkeep/internal/logging"
	"github.com/dbbuilder/termkeep/internal/track"
	"github.com/dbbuilder/termkeep/internal/winsys"
)

var log = logging.ForComponent(logging.CompMonitor)

// Status is the aggregate statistics snapshot across every component.
type Status struct {
	Time     time.Time      `json:"time"`
	Ticks    int64          `json:"ticks"`
	Interval time.Duration  `json:"polling_interval"`
	Discover discover.Stats `json:"discover"`
	Extract  extract.Stats  `json:"extract"`
	Track    track.Stats    `json:"track"`
	Inject   inject.Stats   `json:"inject"`
}

// TickResult summarizes one loop pass.
type TickResult struct {
	Discovered int
	Observed   int
	Injected   int
	Failures   int
	Removed    int
	Elapsed    time.Duration
}

// Monitor runs the activity-monitoring pipeline.
type Monitor struct {
	discoverer *discover.Discoverer
	extractor  *extract.Extractor
	tracker    *track.Tracker
	injector   *inject.Injector
	sinks      []Sink

	// mu guards the fields below: ApplySettings runs on the config
	// watcher's goroutine and Snapshot on web handler goroutines, while
	// the loop itself stays single-threaded.
	mu              sync.Mutex
	interval        time.Duration
	metricsInterval time.Duration
	ticks           int64
	lastMetrics     time.Time
}

// New assembles a monitor from its components. Sinks receive every event
// the loop emits; nil sinks are skipped.
func New(sys winsys.System, settings *config.Settings, sinks ...Sink) *Monitor {
	m := &Monitor{
		discoverer: discover.New(sys, discoverConfig(settings)),
		extractor:  extract.New(sys, extractConfig(settings)),
		tracker:    track.New(trackConfig(settings)),
		injector:   inject.New(sys, injectConfig(settings)),
	}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	m.interval = settings.PollingInterval()
	m.metricsInterval = time.Duration(settings.Advanced.MetricsIntervalSeconds) * time.Second
	m.lastMetrics = time.Now()
	return m
}

func discoverConfig(s *config.Settings) discover.Config {
	return discover.Config{
		TargetProcesses:     s.TargetProcesses,
		ExcludeTitles:       s.Exclusions.WindowTitles,
		ExcludeCommandLines: s.Exclusions.CommandLines,
		MaxWindows:          s.Advanced.MaxWindows,
	}
}

func extractConfig(s *config.Settings) extract.Config {
	return extract.Config{
		OperationTimeout: s.OperationTimeout(),
		Sampling:         s.Advanced.UseHashSampling,
		SampleSize:       s.Advanced.HashSampleSize,
	}
}

func trackConfig(s *config.Settings) track.Config {
	return track.Config{
		MaxWindows:       s.Advanced.MaxWindows,
		DefaultThreshold: s.InactivityThreshold(),
		Thresholds:       s.ThresholdOverrides(),
	}
}

func injectConfig(s *config.Settings) inject.Config {
	return inject.Config{
		DefaultKeys:      s.KeysToSend,
		Overrides:        s.KeyOverrides(),
		RetryAttempts:    s.Advanced.RetryAttempts,
		RetryDelay:       s.RetryDelay(),
		OperationTimeout: s.OperationTimeout(),
		RatePerSec:       s.Advanced.InjectRatePerSecond,
		Burst:            s.Advanced.InjectBurst,
	}
}

// ApplySettings hot-applies a reloaded configuration. Existing tracked
// windows keep their original thresholds; everything else takes effect on
// the next tick.
func (m *Monitor) ApplySettings(s *config.Settings) {
	m.discoverer.UpdateConfig(discoverConfig(s))
	m.extractor.UpdateConfig(extractConfig(s))
	m.tracker.UpdateConfig(trackConfig(s))
	m.injector.UpdateConfig(injectConfig(s))
	m.mu.Lock()
	m.interval = s.PollingInterval()
	m.metricsInterval = time.Duration(s.Advanced.MetricsIntervalSeconds) * time.Second
	interval := m.interval
	m.mu.Unlock()
	log.Info("settings applied",
		slog.Duration("polling_interval", interval),
		slog.Duration("inactivity_threshold", s.InactivityThreshold()))
}

// Tracker exposes the tracked-window table for the status surfaces.
func (m *Monitor) Tracker() *track.Tracker { return m.tracker }

// Extractor exposes the fingerprinter for the doctor diagnostics.
func (m *Monitor) Extractor() *extract.Extractor { return m.extractor }

// Injector exposes the keystroke sender for the doctor diagnostics.
func (m *Monitor) Injector() *inject.Injector { return m.injector }

func (m *Monitor) emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	for _, s := range m.sinks {
		s.Emit(ev)
	}
}

// Tick runs one full pass: discover, per-window extract/observe/maybe
// inject, then reconcile.
func (m *Monitor) Tick(ctx context.Context) TickResult {
	start := time.Now()
	m.mu.Lock()
	m.ticks++
	m.mu.Unlock()

	windows := m.discoverer.Discover()
	active := make(map[winsys.Handle]struct{}, len(windows))
	res := TickResult{Discovered: len(windows)}

	for h, info := range windows {
		if ctx.Err() != nil {
			break
		}
		active[h] = struct{}{}

		content, ok := m.extractor.Extract(ctx, h)
		if !ok {
			continue
		}

		obs, err := m.tracker.Observe(h, content, info.ProcessName)
		if err != nil {
			// Capacity rejection: not tracked this tick, retried once
			// reconciliation frees a slot.
			logging.Aggregate(logging.CompMonitor, "window_limit",
				slog.String("process", info.ProcessName))
			m.emit(Event{Kind: EventWindowLimit, Handle: h,
				Process: info.ProcessName, Detail: err.Error()})
			continue
		}
		res.Observed++

		if obs.IsNew {
			log.Info("new window tracked",
				slog.Uint64("handle", uint64(h)),
				slog.String("process", info.ProcessName),
				slog.String("title", info.Title))
			m.emit(Event{Kind: EventNewWindow, Handle: h,
				Process: info.ProcessName, Title: info.Title})
			continue
		}

		if obs.Inactive {
			if m.injector.Send(ctx, h, info.ProcessName) {
				m.tracker.ResetTimer(h)
				res.Injected++
				log.Info("inactivity action taken",
					slog.Uint64("handle", uint64(h)),
					slog.String("process", info.ProcessName),
					slog.Duration("inactive_for", obs.InactiveFor))
				m.emit(Event{Kind: EventActionTaken, Handle: h,
					Process: info.ProcessName, Title: info.Title,
					Duration: obs.InactiveFor})
			} else {
				// Leave the window inactive; next tick retries.
				res.Failures++
				m.emit(Event{Kind: EventSendFailure, Handle: h,
					Process: info.ProcessName, Title: info.Title,
					Duration: obs.InactiveFor})
			}
		}
	}

	res.Removed = len(m.tracker.Reconcile(active))
	res.Elapsed = time.Since(start)
	return res
}

// Run executes the loop until ctx is canceled. Sleep is the remainder of
// the polling interval after the tick's own cost; an overrun past 2x the
// interval warns but housekeeping never skips.
func (m *Monitor) Run(ctx context.Context) error {
	m.mu.Lock()
	startInterval := m.interval
	m.mu.Unlock()
	log.Info("monitor started", slog.Duration("polling_interval", startInterval))
	defer m.shutdown()

	for {
		res := m.Tick(ctx)
		m.mu.Lock()
		interval := m.interval
		m.mu.Unlock()
		if res.Elapsed > 2*interval {
			log.Warn("tick overran polling interval",
				slog.Duration("elapsed", res.Elapsed),
				slog.Duration("interval", interval))
			m.emit(Event{Kind: EventTickOverrun, Duration: res.Elapsed})
		}
		m.maybeSnapshot()

		sleep := interval - res.Elapsed
		if sleep < 0 {
			sleep = 0
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// maybeSnapshot logs and publishes a statistics snapshot every metrics
// interval, and sweeps the connection caches while it is at it.
func (m *Monitor) maybeSnapshot() {
	m.mu.Lock()
	due := m.metricsInterval > 0 && time.Since(m.lastMetrics) >= m.metricsInterval
	if due {
		m.lastMetrics = time.Now()
	}
	m.mu.Unlock()
	if !due {
		return
	}
	m.extractor.SweepCache()
	m.injector.SweepCache()

	st := m.Snapshot()
	log.Info("statistics",
		slog.Int64("ticks", st.Ticks),
		slog.Int("tracked", st.Track.Tracked),
		slog.Int64("inactivity_flags", st.Track.InactivityFlags),
		slog.Int64("sends_ok", st.Inject.Successes),
		slog.Int64("sends_failed", st.Inject.Failures))
	m.emit(Event{Kind: EventStats, Detail: "periodic statistics snapshot"})
}

// Snapshot returns the aggregate statistics across all components.
func (m *Monitor) Snapshot() Status {
	m.mu.Lock()
	ticks := m.ticks
	interval := m.interval
	m.mu.Unlock()
	return Status{
		Time:     time.Now(),
		Ticks:    ticks,
		Interval: interval,
		Discover: m.discoverer.Statistics(),
		Extract:  m.extractor.Statistics(),
		Track:    m.tracker.Statistics(),
		Inject:   m.injector.Statistics(),
	}
}

// shutdown logs final statistics and releases cached connections.
func (m *Monitor) shutdown() {
	st := m.Snapshot()
	log.Info("monitor stopped",
		slog.Int64("ticks", st.Ticks),
		slog.Int64("windows_tracked", st.Track.TotalTracked),
		slog.Int64("actions", st.Inject.Successes))
	m.extractor.Close()
	m.injector.Close()
	m.tracker.Clear()
}
