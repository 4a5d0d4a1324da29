// Package conncache provides a TTL-bounded cache of automation connections
// keyed by window handle. The fingerprint extractor and the keystroke
// injector each own one instance; the staleness and eviction policy lives
// here so it is not written twice.
package conncache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dbbuilder/termkeep/internal/winsys"
)

// TTL is how long a cached connection is trusted without revalidation.
const TTL = 30 * time.Second

// Dial establishes a new connection to a window, bounded by ctx.
type Dial func(ctx context.Context, h winsys.Handle) (winsys.Conn, error)

// Stats is a snapshot of cache effectiveness counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
}

type entry struct {
	conn    winsys.Conn
	created time.Time
}

// Cache maps window handles to live connections with a fixed TTL. An entry
// past its TTL is revalidated with a cheap existence probe before reuse; a
// failed probe evicts it and a fresh connection is dialed. Concurrent dials
// for the same handle are collapsed through singleflight.
type Cache struct {
	ttl          time.Duration
	probeTimeout time.Duration
	dial         Dial
	group        singleflight.Group

	mu      sync.Mutex
	entries map[winsys.Handle]*entry
	stats   Stats

	now func() time.Time // swapped in tests
}

// New creates a cache with the standard 30 second TTL.
func New(dial Dial) *Cache {
	return &Cache{
		ttl:          TTL,
		probeTimeout: time.Second,
		dial:         dial,
		entries:      make(map[winsys.Handle]*entry),
		now:          time.Now,
	}
}

// Get returns a connection for the handle, reusing a cached one when it is
// fresh or still probes alive, otherwise dialing anew.
func (c *Cache) Get(ctx context.Context, h winsys.Handle) (winsys.Conn, error) {
	c.mu.Lock()
	if e, ok := c.entries[h]; ok {
		if c.now().Sub(e.created) < c.ttl {
			c.stats.Hits++
			conn := e.conn
			c.mu.Unlock()
			return conn, nil
		}
		// Past TTL: keep it only if the window still answers.
		if e.conn.Exists(c.probeTimeout) {
			e.created = c.now()
			c.stats.Hits++
			conn := e.conn
			c.mu.Unlock()
			return conn, nil
		}
		e.conn.Close()
		delete(c.entries, h)
		c.stats.Evictions++
	}
	c.stats.Misses++
	c.mu.Unlock()

	key := fmt.Sprintf("%#x", uintptr(h))
	v, err, _ := c.group.Do(key, func() (any, error) {
		conn, err := c.dial(ctx, h)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if old, ok := c.entries[h]; ok {
			old.conn.Close()
		}
		c.entries[h] = &entry{conn: conn, created: c.now()}
		c.mu.Unlock()
		return conn, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(winsys.Conn), nil
}

// Evict drops the handle's entry, closing its connection. Called after any
// operation failure so the next attempt reconnects.
func (c *Cache) Evict(h winsys.Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[h]; ok {
		e.conn.Close()
		delete(c.entries, h)
		c.stats.Evictions++
	}
}

// Sweep removes all entries past the TTL and returns how many were dropped.
// The monitor calls this periodically so connections to long-idle windows do
// not pile up.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	dropped := 0
	for h, e := range c.entries {
		if c.now().Sub(e.created) >= c.ttl {
			e.conn.Close()
			delete(c.entries, h)
			c.stats.Evictions++
			dropped++
		}
	}
	return dropped
}

// Purge closes and drops every entry. Called on shutdown.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for h, e := range c.entries {
		e.conn.Close()
		delete(c.entries, h)
	}
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = len(c.entries)
	return s
}
