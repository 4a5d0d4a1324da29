// Package extract reads visible text out of terminal windows and reduces it
// to comparable content for the activity tracker. Extraction never fails
// loudly: every miss is a "skip this window this tick" signal, reported as a
// false ok and logged at debug level.
package extract

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dbbuilder/termkeep/internal/conncache"
	"github.com/dbbuilder/termkeep/internal/logging"
	"github.com/dbbuilder/termkeep/internal/winsys"
)

var log = logging.ForComponent(logging.CompExtract)

// Config controls extraction behavior. Zero values get defaults from New.
type Config struct {
	// OperationTimeout bounds connection establishment per window.
	OperationTimeout time.Duration
	// Sampling keeps only the tail of long content before fingerprinting.
	Sampling bool
	// SampleSize is the tail length in characters; 0 means full content.
	SampleSize int
}

// Stats is a snapshot of extractor counters.
type Stats struct {
	Attempts   int64            `json:"attempts"`
	Successes  int64            `json:"successes"`
	Failures   int64            `json:"failures"`
	Slow       int64            `json:"slow_extractions"`
	ByStrategy map[string]int64 `json:"by_strategy"`
	Cache      conncache.Stats  `json:"cache"`
}

// Extractor pulls content from windows through a cached automation
// connection, trying each strategy in priority order.
type Extractor struct {
	sys        winsys.System
	cache      *conncache.Cache
	strategies []strategy

	mu         sync.Mutex
	timeout    time.Duration
	sampling   bool
	sampleSize int
	stats      Stats
}

// New creates an extractor over the given window system.
func New(sys winsys.System, cfg Config) *Extractor {
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 5 * time.Second
	}
	e := &Extractor{
		sys:        sys,
		strategies: orderedStrategies(),
		timeout:    cfg.OperationTimeout,
		sampling:   cfg.Sampling,
		sampleSize: cfg.SampleSize,
	}
	e.stats.ByStrategy = make(map[string]int64)
	e.cache = conncache.New(e.dial)
	return e
}

func (e *Extractor) dial(ctx context.Context, h winsys.Handle) (winsys.Conn, error) {
	e.mu.Lock()
	timeout := e.timeout
	e.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return e.sys.Connect(ctx, h)
}

// Extract reads the window's visible text. ok is false when the connection
// cannot be established or every strategy comes up empty; the caller skips
// the window for this tick.
func (e *Extractor) Extract(ctx context.Context, h winsys.Handle) (string, bool) {
	start := time.Now()
	e.mu.Lock()
	e.stats.Attempts++
	e.mu.Unlock()

	conn, err := e.cache.Get(ctx, h)
	if err != nil {
		logging.Aggregate(logging.CompExtract, "connect_failed",
			slog.String("error", err.Error()))
		e.recordFailure()
		return "", false
	}

	for _, s := range e.strategies {
		raw, ok := s.Read(conn)
		if !ok {
			continue
		}
		content := e.normalize(raw)
		elapsed := time.Since(start)
		e.mu.Lock()
		e.stats.Successes++
		e.stats.ByStrategy[s.Name()]++
		if elapsed > time.Second {
			e.stats.Slow++
		}
		e.mu.Unlock()
		if elapsed > time.Second {
			log.Debug("slow extraction",
				slog.Uint64("handle", uint64(h)),
				slog.Duration("elapsed", elapsed))
		}
		return content, true
	}

	// Nothing readable: evict so the next tick reconnects rather than
	// trusting a possibly wedged connection.
	e.cache.Evict(h)
	logging.Aggregate(logging.CompExtract, "all_strategies_failed")
	e.recordFailure()
	return "", false
}

func (e *Extractor) normalize(raw string) string {
	e.mu.Lock()
	sampleSize := 0
	if e.sampling {
		sampleSize = e.sampleSize
	}
	e.mu.Unlock()
	return Normalize(raw, sampleSize)
}

func (e *Extractor) recordFailure() {
	e.mu.Lock()
	e.stats.Failures++
	e.mu.Unlock()
}

// StrategyResult is one entry of a Diagnose report.
type StrategyResult struct {
	Strategy string `json:"strategy"`
	OK       bool   `json:"ok"`
	Length   int    `json:"length"`
	Preview  string `json:"preview,omitempty"`
}

// Diagnose runs every strategy against the window and reports what each one
// sees. Used by the doctor command.
func (e *Extractor) Diagnose(ctx context.Context, h winsys.Handle) ([]StrategyResult, error) {
	conn, err := e.cache.Get(ctx, h)
	if err != nil {
		return nil, err
	}
	results := make([]StrategyResult, 0, len(e.strategies))
	for _, s := range e.strategies {
		raw, ok := s.Read(conn)
		r := StrategyResult{Strategy: s.Name(), OK: ok}
		if ok {
			content := e.normalize(raw)
			r.Length = len(content)
			if len(content) > 100 {
				content = content[:100] + "..."
			}
			r.Preview = content
		}
		results = append(results, r)
	}
	return results, nil
}

// UpdateConfig applies new extraction settings; live on the next Extract.
func (e *Extractor) UpdateConfig(cfg Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cfg.OperationTimeout > 0 {
		e.timeout = cfg.OperationTimeout
	}
	e.sampling = cfg.Sampling
	if cfg.SampleSize >= 0 {
		e.sampleSize = cfg.SampleSize
	}
}

// SweepCache drops expired cached connections.
func (e *Extractor) SweepCache() int { return e.cache.Sweep() }

// Statistics returns a snapshot of the extractor counters.
func (e *Extractor) Statistics() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.ByStrategy = make(map[string]int64, len(e.stats.ByStrategy))
	for k, v := range e.stats.ByStrategy {
		s.ByStrategy[k] = v
	}
	s.Cache = e.cache.Stats()
	return s
}

// Close releases all cached connections.
func (e *Extractor) Close() { e.cache.Purge() }
