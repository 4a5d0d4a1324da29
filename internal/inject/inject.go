// Package inject delivers keystroke sequences to target windows with retry,
// connection caching, and a global rate limit. A send either fully succeeds
// or reports false after exhausting its attempts; the monitoring loop leaves
// the window inactive on failure so the next tick retries the action.
package inject

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dbbuilder/termkeep/internal/conncache"
	"github.com/dbbuilder/termkeep/internal/logging"
	"github.com/dbbuilder/termkeep/internal/winsys"
)

var log = logging.ForComponent(logging.CompInject)

// Config controls injection behavior. Zero values get defaults from New.
type Config struct {
	// DefaultKeys is the sequence sent when a process has no override.
	DefaultKeys string
	// Overrides maps process names (exact match) to sequence overrides.
	Overrides map[string]string
	// RetryAttempts is the number of retries after the first attempt.
	RetryAttempts int
	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration
	// OperationTimeout bounds connection establishment and existence checks.
	OperationTimeout time.Duration
	// RatePerSec caps sustained sends across all windows; Burst allows
	// short clusters. Defaults 1/sec, burst 3.
	RatePerSec float64
	Burst      int
}

// Stats is a snapshot of injection counters.
type Stats struct {
	Attempts   int64           `json:"attempts"`
	Successes  int64           `json:"successes"`
	Failures   int64           `json:"failures"`
	Retries    int64           `json:"retries"`
	AvgLatency time.Duration   `json:"avg_latency"`
	Cache      conncache.Stats `json:"cache"`
}

// Injector sends keystroke sequences to windows.
type Injector struct {
	sys     winsys.System
	cache   *conncache.Cache
	limiter *rate.Limiter

	mu          sync.Mutex
	defaultKeys string
	overrides   map[string]string
	retries     int
	retryDelay  time.Duration
	timeout     time.Duration
	stats       Stats

	sleep func(time.Duration) // swapped in tests
}

// New creates an injector over the given window system.
func New(sys winsys.System, cfg Config) *Injector {
	if cfg.DefaultKeys == "" {
		cfg.DefaultKeys = "continue{ENTER}"
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 5 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 3
	}
	inj := &Injector{
		sys:         sys,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		defaultKeys: cfg.DefaultKeys,
		overrides:   cfg.Overrides,
		retries:     cfg.RetryAttempts,
		retryDelay:  cfg.RetryDelay,
		timeout:     cfg.OperationTimeout,
		sleep:       time.Sleep,
	}
	inj.cache = conncache.New(inj.dial)
	return inj
}

func (inj *Injector) dial(ctx context.Context, h winsys.Handle) (winsys.Conn, error) {
	inj.mu.Lock()
	timeout := inj.timeout
	inj.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return inj.sys.Connect(ctx, h)
}

// SequenceFor resolves the keystroke sequence for a process name.
func (inj *Injector) SequenceFor(process string) string {
	inj.mu.Lock()
	defer inj.mu.Unlock()
	if seq, ok := inj.overrides[process]; ok && seq != "" {
		return seq
	}
	return inj.defaultKeys
}

// Send delivers the process's keystroke sequence to the window. Returns true
// only when an attempt fully succeeds; every failed attempt evicts the
// cached connection so the retry reconnects.
func (inj *Injector) Send(ctx context.Context, h winsys.Handle, process string) bool {
	return inj.SendSequence(ctx, h, process, inj.SequenceFor(process))
}

// SendSequence delivers an explicit sequence, bypassing override resolution.
// The doctor and test paths use it directly.
func (inj *Injector) SendSequence(ctx context.Context, h winsys.Handle, process, seq string) bool {
	start := time.Now()
	inj.mu.Lock()
	retries := inj.retries
	delay := inj.retryDelay
	timeout := inj.timeout
	inj.stats.Attempts++
	inj.mu.Unlock()

	if err := inj.limiter.Wait(ctx); err != nil {
		inj.recordResult(false, time.Since(start))
		return false
	}

	tokens := ParseSequence(seq)
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			inj.mu.Lock()
			inj.stats.Retries++
			inj.mu.Unlock()
			log.Debug("retrying keystroke send",
				slog.Uint64("handle", uint64(h)),
				slog.Int("attempt", attempt))
			inj.sleep(delay)
		}
		if err := inj.attempt(ctx, h, tokens, timeout); err != nil {
			lastErr = err
			inj.cache.Evict(h)
			continue
		}
		elapsed := time.Since(start)
		inj.recordResult(true, elapsed)
		log.Info("keystrokes sent",
			slog.Uint64("handle", uint64(h)),
			slog.String("process", process),
			slog.String("sequence", seq),
			slog.Duration("elapsed", elapsed))
		return true
	}

	inj.recordResult(false, time.Since(start))
	log.Warn("keystroke send failed",
		slog.Uint64("handle", uint64(h)),
		slog.String("process", process),
		slog.Int("attempts", retries+1),
		slog.String("error", errString(lastErr)))
	return false
}

// attempt performs one full delivery: connect, existence check, best-effort
// focus, send.
func (inj *Injector) attempt(ctx context.Context, h winsys.Handle, tokens []winsys.KeyToken, timeout time.Duration) error {
	conn, err := inj.cache.Get(ctx, h)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if !conn.Exists(timeout) {
		return fmt.Errorf("window %#x no longer exists", uintptr(h))
	}
	if err := conn.Focus(); err != nil {
		// Some targets accept posted input without focus.
		log.Debug("focus failed, sending anyway",
			slog.Uint64("handle", uint64(h)),
			slog.String("error", err.Error()))
	} else {
		inj.sleep(100 * time.Millisecond) // let focus settle
	}
	if err := conn.SendKeys(tokens); err != nil {
		return fmt.Errorf("send keys: %w", err)
	}
	return nil
}

func (inj *Injector) recordResult(success bool, elapsed time.Duration) {
	inj.mu.Lock()
	defer inj.mu.Unlock()
	if success {
		inj.stats.Successes++
	} else {
		inj.stats.Failures++
	}
	n := inj.stats.Successes + inj.stats.Failures
	inj.stats.AvgLatency += (elapsed - inj.stats.AvgLatency) / time.Duration(n)
}

// UpdateConfig applies new sequence and retry settings to future sends.
func (inj *Injector) UpdateConfig(cfg Config) {
	inj.mu.Lock()
	defer inj.mu.Unlock()
	if cfg.DefaultKeys != "" {
		inj.defaultKeys = cfg.DefaultKeys
	}
	if cfg.Overrides != nil {
		inj.overrides = cfg.Overrides
	}
	if cfg.RetryAttempts >= 0 {
		inj.retries = cfg.RetryAttempts
	}
	if cfg.RetryDelay > 0 {
		inj.retryDelay = cfg.RetryDelay
	}
	if cfg.OperationTimeout > 0 {
		inj.timeout = cfg.OperationTimeout
	}
}

// SweepCache drops expired cached connections.
func (inj *Injector) SweepCache() int { return inj.cache.Sweep() }

// Statistics returns a snapshot of injection counters.
func (inj *Injector) Statistics() Stats {
	inj.mu.Lock()
	defer inj.mu.Unlock()
	s := inj.stats
	s.Cache = inj.cache.Stats()
	return s
}

// Close releases all cached connections.
func (inj *Injector) Close() { inj.cache.Purge() }

func errString(err error) string {
	if err == nil {
		return "no attempt succeeded"
	}
	return err.Error()
}
