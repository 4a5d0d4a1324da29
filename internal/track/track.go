// Package track owns the per-window inactivity state machine. A window is
// active while its content fingerprint keeps changing and becomes inactive
// once the fingerprint has held still for its threshold. The tracker holds
// the only copy of per-window state; the monitoring loop feeds it
// observations and reconciles it against each tick's discovery results.
package track

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dbbuilder/termkeep/internal/logging"
	"github.com/dbbuilder/termkeep/internal/winsys"
)

var log = logging.ForComponent(logging.CompTrack)

// ErrCapacity is returned when a new window cannot be tracked because the
// map is at its configured cap. Existing state is never evicted to make
// room; the window is simply not tracked until capacity frees up.
var ErrCapacity = errors.New("tracked window limit reached")

// WindowState is the tracker's record for one window handle.
type WindowState struct {
	Handle      winsys.Handle  `json:"handle"`
	ProcessName string         `json:"process_name"`
	Fingerprint string         `json:"-"`
	LastChange  time.Time      `json:"last_change"`
	Created     time.Time      `json:"created"`
	Threshold   time.Duration  `json:"threshold"`
	ChangeCount int64          `json:"change_count"`
	LastAction  *time.Time     `json:"last_action,omitempty"`
	Active      bool           `json:"active"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Observation is the outcome of feeding one window's content to the tracker.
type Observation struct {
	IsNew       bool
	Changed     bool
	Inactive    bool
	InactiveFor time.Duration
}

// Config sets tracker-wide policy.
type Config struct {
	// MaxWindows caps the number of tracked handles.
	MaxWindows int
	// DefaultThreshold applies when a process has no override.
	DefaultThreshold time.Duration
	// Thresholds maps process names (exact match) to threshold overrides.
	Thresholds map[string]time.Duration
}

// Stats is a snapshot of tracker counters.
type Stats struct {
	Tracked         int           `json:"tracked"`
	TotalTracked    int64         `json:"total_tracked"`
	TotalChanges    int64         `json:"total_changes"`
	InactivityFlags int64         `json:"inactivity_flags"`
	Rejected        int64         `json:"capacity_rejections"`
	Removed         int64         `json:"removed"`
	AvgLifetime     time.Duration `json:"avg_lifetime"`
	Uptime          time.Duration `json:"uptime"`
}

// Tracker maps window handles to their inactivity state.
type Tracker struct {
	mu               sync.Mutex
	windows          map[winsys.Handle]*WindowState
	maxWindows       int
	defaultThreshold time.Duration
	thresholds       map[string]time.Duration

	started         time.Time
	totalTracked    int64
	totalChanges    int64
	inactivityFlags int64
	rejected        int64
	removed         int64
	avgLifetime     time.Duration // incremental running average over removed windows

	now func() time.Time // swapped in tests
}

// New creates a tracker.
func New(cfg Config) *Tracker {
	if cfg.MaxWindows <= 0 {
		cfg.MaxWindows = 50
	}
	if cfg.DefaultThreshold <= 0 {
		cfg.DefaultThreshold = 30 * time.Second
	}
	return &Tracker{
		windows:          make(map[winsys.Handle]*WindowState),
		maxWindows:       cfg.MaxWindows,
		defaultThreshold: cfg.DefaultThreshold,
		thresholds:       cfg.Thresholds,
		started:          time.Now(),
		now:              time.Now,
	}
}

// thresholdFor resolves the effective threshold for a process name.
func (t *Tracker) thresholdFor(process string) time.Duration {
	if d, ok := t.thresholds[process]; ok {
		return d
	}
	return t.defaultThreshold
}

// Observe feeds one window's current content into the state machine and
// reports its activity status. A new handle past the cap returns
// ErrCapacity without touching existing state.
func (t *Tracker) Observe(h winsys.Handle, content, process string) (Observation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	fp := Fingerprint(content)

	state, ok := t.windows[h]
	if !ok {
		if len(t.windows) >= t.maxWindows {
			t.rejected++
			return Observation{}, fmt.Errorf("%w (%d)", ErrCapacity, t.maxWindows)
		}
		t.windows[h] = &WindowState{
			Handle:      h,
			ProcessName: process,
			Fingerprint: fp,
			LastChange:  now,
			Created:     now,
			Threshold:   t.thresholdFor(process),
			ChangeCount: 1,
			Active:      true,
			Metadata:    make(map[string]any),
		}
		t.totalTracked++
		t.totalChanges++
		return Observation{IsNew: true, Changed: true}, nil
	}

	if fp != state.Fingerprint {
		state.Fingerprint = fp
		state.LastChange = now
		state.ChangeCount++
		state.Active = true
		t.totalChanges++
		return Observation{Changed: true}, nil
	}

	inactiveFor := now.Sub(state.LastChange)
	inactive := inactiveFor >= state.Threshold
	if inactive && state.Active {
		state.Active = false
		t.inactivityFlags++
	}
	return Observation{Inactive: inactive, InactiveFor: inactiveFor}, nil
}

// ResetTimer re-arms a window after a corrective action: the content did not
// change, but the injected keys count as fresh activity.
func (t *Tracker) ResetTimer(h winsys.Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.windows[h]
	if !ok {
		return false
	}
	now := t.now()
	state.LastChange = now
	state.LastAction = &now
	state.Active = true
	return true
}

// Reconcile drops tracked state for handles absent from the latest discovery
// pass and returns the handles removed. Each removal feeds the running
// window-lifetime average.
func (t *Tracker) Reconcile(active map[winsys.Handle]struct{}) []winsys.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	var gone []winsys.Handle
	now := t.now()
	for h, state := range t.windows {
		if _, ok := active[h]; ok {
			continue
		}
		lifetime := now.Sub(state.Created)
		t.removed++
		t.avgLifetime += (lifetime - t.avgLifetime) / time.Duration(t.removed)
		delete(t.windows, h)
		gone = append(gone, h)
		log.Debug("window reconciled away",
			slog.Uint64("handle", uint64(h)),
			slog.String("process", state.ProcessName),
			slog.Duration("lifetime", lifetime))
	}
	return gone
}

// SetThreshold overrides one tracked window's threshold in place.
func (t *Tracker) SetThreshold(h winsys.Handle, d time.Duration) bool {
	if d <= 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.windows[h]
	if ok {
		state.Threshold = d
	}
	return ok
}

// UpdateMetadata merges key/value pairs into a window's metadata map.
func (t *Tracker) UpdateMetadata(h winsys.Handle, meta map[string]any) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.windows[h]
	if !ok {
		return false
	}
	for k, v := range meta {
		state.Metadata[k] = v
	}
	return true
}

// UpdateConfig applies new thresholds for windows tracked from now on;
// existing windows keep the threshold they were created with.
func (t *Tracker) UpdateConfig(cfg Config) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cfg.MaxWindows > 0 {
		t.maxWindows = cfg.MaxWindows
	}
	if cfg.DefaultThreshold > 0 {
		t.defaultThreshold = cfg.DefaultThreshold
	}
	if cfg.Thresholds != nil {
		t.thresholds = cfg.Thresholds
	}
}

// WindowDetails returns a copy of one window's state.
func (t *Tracker) WindowDetails(h winsys.Handle) (WindowState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.windows[h]
	if !ok {
		return WindowState{}, false
	}
	return t.copyState(state), true
}

// Windows returns a copy of every tracked window's state.
func (t *Tracker) Windows() []WindowState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]WindowState, 0, len(t.windows))
	for _, state := range t.windows {
		out = append(out, t.copyState(state))
	}
	return out
}

// InactiveWindows returns the tracked windows currently past their
// threshold.
func (t *Tracker) InactiveWindows() []WindowState {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	var out []WindowState
	for _, state := range t.windows {
		if now.Sub(state.LastChange) >= state.Threshold {
			out = append(out, t.copyState(state))
		}
	}
	return out
}

func (t *Tracker) copyState(state *WindowState) WindowState {
	c := *state
	c.Metadata = make(map[string]any, len(state.Metadata))
	for k, v := range state.Metadata {
		c.Metadata[k] = v
	}
	if state.LastAction != nil {
		action := *state.LastAction
		c.LastAction = &action
	}
	return c
}

// Statistics returns a snapshot of tracker counters.
func (t *Tracker) Statistics() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{
		Tracked:         len(t.windows),
		TotalTracked:    t.totalTracked,
		TotalChanges:    t.totalChanges,
		InactivityFlags: t.inactivityFlags,
		Rejected:        t.rejected,
		Removed:         t.removed,
		AvgLifetime:     t.avgLifetime,
		Uptime:          time.Since(t.started),
	}
}

// Clear drops all tracked state. Used on shutdown.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.windows = make(map[winsys.Handle]*WindowState)
}
