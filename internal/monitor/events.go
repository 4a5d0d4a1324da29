package monitor

import (
	"sync"
	"time"

	"github.com/dbbuilder/termkeep/internal/winsys"
)

// EventKind labels the monitor events surfaced for observability.
type EventKind string

const (
	EventNewWindow   EventKind = "new_window"
	EventActionTaken EventKind = "action_taken"
	EventSendFailure EventKind = "send_failure"
	EventWindowLimit EventKind = "window_limit"
	EventTickOverrun EventKind = "tick_overrun"
	EventStats       EventKind = "stats_snapshot"
)

// Event is one monitor occurrence, published to every configured sink.
type Event struct {
	Kind     EventKind     `json:"kind"`
	Time     time.Time     `json:"time"`
	Handle   winsys.Handle `json:"handle,omitempty"`
	Process  string        `json:"process,omitempty"`
	Title    string        `json:"title,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Detail   string        `json:"detail,omitempty"`
}

// Sink receives monitor events. Emit must not block; slow consumers drop.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Emit(ev Event) { f(ev) }

// Broadcaster fans events out to dynamic subscribers (the websocket event
// stream). Each subscriber gets a buffered channel; a full buffer drops the
// event for that subscriber rather than stalling the monitor loop.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of future events and a cancel func that must
// be called when the subscriber goes away.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Event, 64)
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

// Emit delivers the event to every subscriber, dropping on full buffers.
func (b *Broadcaster) Emit(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
