package natsstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/kmntree/onos/internal/backoff"
	"github.com/kmntree/onos/types"
)

// Common errors for lock operations.
var (
	ErrNotHeld = errors.New("unlock of unheld lock")
)

// lock is a lease-based named lock on a JetStream KV entry.
//
// Acquisition uses the atomic Create operation; while held, a keepalive
// goroutine renews the lease with revision-checked Updates at a third of the
// TTL. Release deletes the entry with a revision check so a successor's
// lease is never destroyed by a stale holder.
type lock struct {
	kv     jetstream.KeyValue
	key    string
	holder string
	ttl    time.Duration
	logger types.Logger

	mu         sync.Mutex
	held       bool
	revision   uint64
	keepCancel context.CancelFunc
	keepDone   chan struct{}
}

// Compile-time assertion that lock implements NamedLock.
var _ types.NamedLock = (*lock)(nil)

// LockInterruptibly blocks until the lease is acquired or ctx is cancelled.
//
// Contention is handled by watching the key for the current holder's release
// (or TTL expiry) and re-attempting the atomic Create with jittered backoff.
func (l *lock) LockInterruptibly(ctx context.Context) error {
	var delay time.Duration

	for {
		revision, err := l.kv.Create(ctx, l.key, []byte(l.holder))
		if err == nil {
			l.startKeepalive(revision)

			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(err, jetstream.ErrKeyExists) {
			l.logger.Warn("lock acquisition attempt failed", "key", l.key, "error", err)
		}

		if err := l.awaitRelease(ctx); err != nil {
			return err
		}

		// Brief jittered delay so competing waiters do not stampede the
		// Create after every release.
		delay = backoff.Jitter(delay, 10*time.Millisecond, 2.0, l.ttl/4, nil)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// awaitRelease blocks until the current lease disappears, ctx is cancelled,
// or one TTL elapses (the fallback for missed watch events).
func (l *lock) awaitRelease(ctx context.Context) error {
	watcher, err := l.kv.Watch(ctx, l.key)
	if err != nil {
		// Watch unavailable; fall back to a timed retry.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.ttl / 2):
			return nil
		}
	}
	defer func() {
		_ = watcher.Stop()
	}()

	fallback := time.NewTimer(l.ttl)
	defer fallback.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-fallback.C:
			return nil
		case entry, ok := <-watcher.Updates():
			if !ok {
				return nil
			}
			if entry == nil {
				// Initial replay done. If the key is already gone the
				// release happened before the watch started.
				if _, err := l.kv.Get(ctx, l.key); errors.Is(err, jetstream.ErrKeyNotFound) {
					return nil
				}

				continue
			}
			op := entry.Operation()
			if op == jetstream.KeyValueDelete || op == jetstream.KeyValuePurge {
				return nil
			}
		}
	}
}

// startKeepalive records the held lease and launches its renewal goroutine.
func (l *lock) startKeepalive(revision uint64) {
	keepCtx, cancel := context.WithCancel(context.Background())

	l.mu.Lock()
	l.held = true
	l.revision = revision
	l.keepCancel = cancel
	l.keepDone = make(chan struct{})
	done := l.keepDone
	l.mu.Unlock()

	go l.keepalive(keepCtx, done)
}

// keepalive renews the lease until cancelled or the lease is lost.
//
// A lost lease is logged and renewal stops; the holder keeps believing it
// owns the lock until the leadership election resolves the collision over
// the broadcast topic, the same path a healed partition takes.
func (l *lock) keepalive(ctx context.Context, done chan struct{}) {
	defer close(done)

	interval := l.ttl / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.mu.Lock()
			revision := l.revision
			l.mu.Unlock()

			opCtx, cancel := context.WithTimeout(ctx, interval)
			newRevision, err := l.kv.Update(opCtx, l.key, []byte(l.holder), revision)
			cancel()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Warn("lock lease lost", "key", l.key, "error", err)

				return
			}

			l.mu.Lock()
			l.revision = newRevision
			l.mu.Unlock()
		}
	}
}

// Unlock stops the keepalive and deletes the lease entry.
func (l *lock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	if !l.held {
		l.mu.Unlock()

		return ErrNotHeld
	}
	l.held = false
	cancel := l.keepCancel
	done := l.keepDone
	l.mu.Unlock()

	cancel()
	<-done

	l.mu.Lock()
	revision := l.revision
	l.mu.Unlock()

	err := l.kv.Delete(ctx, l.key, jetstream.LastRevision(revision))
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		// A failed revision check means the lease already expired and may
		// have a new owner; that owner's lease must not be destroyed.
		l.logger.Warn("failed to delete lock lease", "key", l.key, "error", err)

		return nil
	}

	return nil
}
