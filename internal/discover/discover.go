// Package discover enumerates OS windows and filters them down to the
// terminal windows worth monitoring: owned by a target process, big enough
// to be a real terminal, carrying the window class its process family is
// expected to have, and not matching any exclusion rule.
package discover

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/dbbuilder/termkeep/internal/logging"
	"github.com/dbbuilder/termkeep/internal/winsys"
)

var log = logging.ForComponent(logging.CompDiscover)

// Size floor below which a window is a popup or notification, not a
// terminal.
const (
	minWidth  = 100
	minHeight = 50
)

// expectedClasses maps process families to the window classes their real
// terminal windows carry. A target process with an entry here is rejected
// when its window's class is not listed; processes without an entry skip
// class validation.
var expectedClasses = map[string][]string{
	"windowsterminal.exe": {"CASCADIA_HOSTING_WINDOW_CLASS"},
	"cmd.exe":             {"ConsoleWindowClass"},
	"powershell.exe":      {"ConsoleWindowClass"},
}

// Config controls discovery filtering.
type Config struct {
	// TargetProcesses are the executable names to monitor (case-insensitive).
	TargetProcesses []string
	// ExcludeTitles drops windows whose title contains any substring
	// (case-insensitive).
	ExcludeTitles []string
	// ExcludeCommandLines drops windows whose command line contains any
	// substring (case-insensitive).
	ExcludeCommandLines []string
	// MaxWindows caps the result; enumeration stops once it is reached.
	MaxWindows int
}

// Stats is a snapshot of discovery counters.
type Stats struct {
	Enumerations int64            `json:"enumerations"`
	EnumFailures int64            `json:"enum_failures"`
	Discovered   int64            `json:"discovered"`
	Truncations  int64            `json:"truncations"`
	ByProcess    map[string]int64 `json:"by_process"`
}

// Discoverer finds monitorable terminal windows.
type Discoverer struct {
	sys winsys.System

	mu       sync.Mutex
	targets  map[string]bool
	exTitles []string
	exCmds   []string
	max      int
	stats    Stats
}

// New creates a discoverer over the given window system.
func New(sys winsys.System, cfg Config) *Discoverer {
	d := &Discoverer{sys: sys}
	d.stats.ByProcess = make(map[string]int64)
	d.apply(cfg)
	return d
}

func (d *Discoverer) apply(cfg Config) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.targets = make(map[string]bool, len(cfg.TargetProcesses))
	for _, p := range cfg.TargetProcesses {
		d.targets[strings.ToLower(p)] = true
	}
	d.exTitles = lowered(cfg.ExcludeTitles)
	d.exCmds = lowered(cfg.ExcludeCommandLines)
	d.max = cfg.MaxWindows
	if d.max <= 0 {
		d.max = 50
	}
}

func lowered(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, strings.ToLower(s))
		}
	}
	return out
}

// UpdateConfig applies new filter settings to the next Discover call.
func (d *Discoverer) UpdateConfig(cfg Config) { d.apply(cfg) }

// Discover returns the current set of monitorable windows keyed by handle.
// Enumeration failure logs and returns an empty map so the loop retries next
// tick; individual window lookup failures skip just that window.
func (d *Discoverer) Discover() map[winsys.Handle]winsys.WindowInfo {
	d.mu.Lock()
	d.stats.Enumerations++
	limit := d.max
	d.mu.Unlock()

	result := make(map[winsys.Handle]winsys.WindowInfo)
	handles, err := d.sys.Enumerate()
	if err != nil {
		d.mu.Lock()
		d.stats.EnumFailures++
		d.mu.Unlock()
		log.Error("window enumeration failed", slog.String("error", err.Error()))
		return result
	}

	truncated := false
	for _, h := range handles {
		if len(result) >= limit {
			truncated = true
			break
		}
		info, ok := d.sys.Info(h)
		if !ok {
			continue
		}
		if !d.accept(info) {
			continue
		}
		result[h] = info
	}

	d.mu.Lock()
	d.stats.Discovered += int64(len(result))
	for _, info := range result {
		d.stats.ByProcess[strings.ToLower(info.ProcessName)]++
	}
	if truncated {
		d.stats.Truncations++
	}
	d.mu.Unlock()

	if truncated {
		log.Warn("window cap reached, enumeration truncated",
			slog.Int("max_windows", limit))
	}
	return result
}

// accept applies the filter chain to one window.
func (d *Discoverer) accept(info winsys.WindowInfo) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	proc := strings.ToLower(info.ProcessName)
	if !d.targets[proc] {
		return false
	}
	if !info.Visible || !info.Enabled {
		return false
	}
	if info.Rect.Width() < minWidth || info.Rect.Height() < minHeight {
		logging.Aggregate(logging.CompDiscover, "rejected_too_small",
			slog.String("process", info.ProcessName))
		return false
	}
	if classes, ok := expectedClasses[proc]; ok && !classMatches(info.Class, classes) {
		logging.Aggregate(logging.CompDiscover, "rejected_wrong_class",
			slog.String("process", info.ProcessName),
			slog.String("class", info.Class))
		return false
	}

	title := strings.ToLower(info.Title)
	for _, ex := range d.exTitles {
		if strings.Contains(title, ex) {
			return false
		}
	}
	cmd := strings.ToLower(info.CommandLine)
	if cmd != "" {
		for _, ex := range d.exCmds {
			if strings.Contains(cmd, ex) {
				return false
			}
		}
	}
	return true
}

func classMatches(class string, expected []string) bool {
	for _, want := range expected {
		if class == want {
			return true
		}
	}
	return false
}

// Statistics returns a snapshot of discovery counters.
func (d *Discoverer) Statistics() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	s.ByProcess = make(map[string]int64, len(d.stats.ByProcess))
	for k, v := range d.stats.ByProcess {
		s.ByProcess[k] = v
	}
	return s
}
