// Package progress carries pipeline progress events from one run to at
// most one subscriber.
package progress

import (
	"sync"
	"sync/atomic"

	"github.com/sells-group/market-intel/internal/model"
)

// Subscriber receives events. Calls are serialized.
type Subscriber func(model.ProgressEvent)

// Emitter is a run-scoped progress slot. A nil *Emitter is valid and
// drops everything.
type Emitter struct {
	mu     sync.Mutex
	sub    Subscriber
	closed bool
}

// New creates an open Emitter with no subscriber.
func New() *Emitter {
	return &Emitter{}
}

// Subscribe replaces the current subscriber. It is ignored after Close.
func (e *Emitter) Subscribe(fn Subscriber) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.sub = fn
	}
}

// Emit delivers ev to the subscriber if there is one. Events emitted with
// no subscriber or after Close are dropped.
func (e *Emitter) Emit(ev model.ProgressEvent) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.sub == nil {
		return
	}
	e.sub(ev)
}

// Close detaches the subscriber. Later Emit and Subscribe calls are no-ops.
func (e *Emitter) Close() {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.sub = nil
}

// Sink adapts a Subscriber to a buffered channel. Sends never block: an
// event arriving while the buffer is full is dropped and counted.
type Sink struct {
	ch      chan model.ProgressEvent
	mu      sync.Mutex
	closed  bool
	dropped atomic.Int64
}

// Channel creates a Sink with the given buffer size.
func Channel(buf int) *Sink {
	if buf < 0 {
		buf = 0
	}
	return &Sink{ch: make(chan model.ProgressEvent, buf)}
}

// Send offers ev to the channel.
func (s *Sink) Send(ev model.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
	default:
		s.dropped.Add(1)
	}
}

// C returns the receive side.
func (s *Sink) C() <-chan model.ProgressEvent { return s.ch }

// Dropped reports how many events were discarded on a full buffer.
func (s *Sink) Dropped() int64 { return s.dropped.Load() }

// Close closes the channel. It is safe to call more than once.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
