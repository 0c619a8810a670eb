// Package memstore provides an in-process clustering substrate.
//
// It implements the same contracts as store/natsstore (named locks and
// totally ordered topics) entirely in memory. Several services sharing
// one Substrate behave like a cluster of controller instances, which makes
// the package useful for tests and single-node deployments.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kmntree/onos/types"
)

// Common errors for memstore operations.
var (
	ErrClosed              = errors.New("substrate is closed")
	ErrNotHeld             = errors.New("unlock of unheld lock")
	ErrUnknownRegistration = errors.New("unknown subscription registration")
)

const dispatchBuffer = 256

// Substrate is an in-process implementation of types.Substrate.
//
// Locks and topics are created on first use and shared by name: every handle
// returned for the same name refers to the same underlying primitive.
type Substrate struct {
	mu     sync.Mutex
	locks  map[string]*memLock
	topics map[string]*memTopic
	closed bool
}

// Compile-time assertion that Substrate implements types.Substrate.
var _ types.Substrate = (*Substrate)(nil)

// New creates an empty in-process substrate.
func New() *Substrate {
	return &Substrate{
		locks:  make(map[string]*memLock),
		topics: make(map[string]*memTopic),
	}
}

// NamedLock returns the process-wide lock with the given name, creating it on
// first use.
func (s *Substrate) NamedLock(_ context.Context, name string) (types.NamedLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	l, ok := s.locks[name]
	if !ok {
		l = &memLock{sem: make(chan struct{}, 1)}
		s.locks[name] = l
	}

	return l, nil
}

// OrderedTopic returns the process-wide ordered topic with the given name,
// creating it (and its dispatcher goroutine) on first use.
func (s *Substrate) OrderedTopic(_ context.Context, name string) (types.OrderedTopic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	t, ok := s.topics[name]
	if !ok {
		t = newMemTopic()
		s.topics[name] = t
	}

	return t, nil
}

// Close shuts down every topic dispatcher. Lock handles already returned keep
// working; subsequent handle requests fail with ErrClosed.
func (s *Substrate) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()

		return
	}
	s.closed = true
	topics := make([]*memTopic, 0, len(s.topics))
	for _, t := range s.topics {
		topics = append(topics, t)
	}
	s.mu.Unlock()

	for _, t := range topics {
		t.close()
	}
}

// memLock is a context-aware binary semaphore shared by name.
type memLock struct {
	sem chan struct{}
}

// LockInterruptibly blocks until the lock is held or ctx is cancelled.
func (l *memLock) LockInterruptibly(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unlock releases the lock.
func (l *memLock) Unlock(_ context.Context) error {
	select {
	case <-l.sem:
		return nil
	default:
		return ErrNotHeld
	}
}

// subscriber is one registered handler with its insertion sequence.
type subscriber struct {
	seq     int
	handler types.MessageHandler
}

// memTopic delivers published messages to all subscribers in one total order.
//
// A single dispatcher goroutine per topic drains the publish queue and
// invokes every subscriber sequentially in registration order, so all
// subscribers, the publisher included, observe the same sequence.
type memTopic struct {
	mu      sync.Mutex
	subs    map[string]*subscriber
	nextSeq int
	nextID  int
	queue   chan []byte
	done    chan struct{}
	closed  bool
}

func newMemTopic() *memTopic {
	t := &memTopic{
		subs:  make(map[string]*subscriber),
		queue: make(chan []byte, dispatchBuffer),
		done:  make(chan struct{}),
	}
	go t.dispatch()

	return t
}

// Publish enqueues data for asynchronous totally ordered delivery.
func (t *memTopic) Publish(ctx context.Context, data []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()

		return ErrClosed
	}
	t.mu.Unlock()

	msg := make([]byte, len(data))
	copy(msg, data)

	select {
	case t.queue <- msg:
		return nil
	case <-t.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a handler and returns its registration ID.
func (t *memTopic) Subscribe(_ context.Context, handler types.MessageHandler) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return "", ErrClosed
	}

	t.nextID++
	t.nextSeq++
	id := fmt.Sprintf("mem-sub-%d", t.nextID)
	t.subs[id] = &subscriber{seq: t.nextSeq, handler: handler}

	return id, nil
}

// Unsubscribe removes a previously registered handler.
func (t *memTopic) Unsubscribe(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.subs[id]; !ok {
		return ErrUnknownRegistration
	}
	delete(t.subs, id)

	return nil
}

// dispatch is the per-topic delivery goroutine.
func (t *memTopic) dispatch() {
	for {
		select {
		case <-t.done:
			return
		case msg := <-t.queue:
			for _, handler := range t.snapshot() {
				handler(msg)
			}
		}
	}
}

// snapshot returns the current handlers in registration order.
func (t *memTopic) snapshot() []types.MessageHandler {
	t.mu.Lock()
	defer t.mu.Unlock()

	ordered := make([]*subscriber, 0, len(t.subs))
	for _, sub := range t.subs {
		ordered = append(ordered, sub)
	}
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j-1].seq > ordered[j].seq; j-- {
			ordered[j-1], ordered[j] = ordered[j], ordered[j-1]
		}
	}

	handlers := make([]types.MessageHandler, len(ordered))
	for i, sub := range ordered {
		handlers[i] = sub.handler
	}

	return handlers
}

func (t *memTopic) close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()

		return
	}
	t.closed = true
	t.mu.Unlock()

	close(t.done)
}
