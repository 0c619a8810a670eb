package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kmntree/onos/types"
)

// Step-down reasons reported to metrics.
const (
	reasonCollision = "collision"
	reasonWithdraw  = "withdraw"
)

// Common errors for engine operations.
var (
	ErrAlreadyStarted = errors.New("engine already started")
	ErrShutdown       = errors.New("engine is shut down")
)

// Config carries the collaborators and tuning for one election engine.
type Config struct {
	// TopicName is the election domain this engine drives.
	TopicName string

	// LocalNode identifies this controller instance.
	LocalNode types.ControllerNode

	// Lock is the cluster-wide mutex for the topic.
	Lock types.NamedLock

	// Topic is the cluster-wide ordered broadcast topic.
	Topic types.OrderedTopic

	// Codec serializes events for broadcast.
	Codec types.EventCodec

	// Sink receives events for local dispatch.
	Sink func(event types.LeadershipEvent)

	// Logger for engine diagnostics.
	Logger types.Logger

	// Metrics collector for election metrics.
	Metrics types.MetricsCollector

	// PeriodicInterval is the heartbeat and staleness-check cadence.
	PeriodicInterval time.Duration

	// RemoteTimeout is how long a remote leader may stay silent before it is
	// evicted locally. Must be at least twice PeriodicInterval.
	RemoteTimeout time.Duration

	// PublishTimeout bounds a single broadcast publish.
	PublishTimeout time.Duration

	// UnlockTimeout bounds the lock release during step-down and shutdown.
	UnlockTimeout time.Duration
}

// Engine drives the election for a single topic.
//
// Two long-running goroutines do the work: the election loop blocks on the
// named lock and holds it until cancelled, and the periodic loop advertises
// leadership or expires a stale remote leader. The substrate invokes the
// broadcast handler on its own goroutine. All state mutation happens under
// the engine monitor; the current leader is additionally mirrored in an
// atomic pointer for non-blocking reads.
//
// Cancelling the current hold context is the only step-down signal. A
// cancellation produces exactly one LEADER_BOOTED broadcast for the local
// node, one unlock, and re-entry into the election.
type Engine struct {
	cfg Config

	mu                   sync.Mutex // the engine monitor
	leaderRef            atomic.Pointer[types.ControllerNode]
	lastLeadershipUpdate time.Time
	holdCancel           context.CancelFunc

	isShutdown atomic.Bool
	started    bool
	subID      string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an engine for the given topic. Start must be called before the
// engine participates in the election.
func New(cfg Config) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// TopicName returns the election topic this engine drives.
func (e *Engine) TopicName() string {
	return e.cfg.TopicName
}

// Leader returns a snapshot of the currently believed leader, or nil when no
// leader is known. The read is lock-free and best-effort.
func (e *Engine) Leader() *types.ControllerNode {
	return e.leaderRef.Load()
}

// Start subscribes to the broadcast topic and launches the election and
// periodic goroutines.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return ErrAlreadyStarted
	}
	if e.isShutdown.Load() {
		return ErrShutdown
	}

	subID, err := e.cfg.Topic.Subscribe(ctx, e.onMessage)
	if err != nil {
		return err
	}
	e.subID = subID
	e.started = true

	e.wg.Add(2)
	go e.electionLoop()
	go e.periodicLoop()

	e.cfg.Logger.Info("leader election started", "topic", e.cfg.TopicName, "node", e.cfg.LocalNode.ID)

	return nil
}

// Stop ends local participation in the election.
//
// It sets the shutdown flag, unsubscribes from the broadcast topic, cancels
// both worker goroutines, and waits for them to exit. If the local node leads
// the topic, the cancellation makes the election loop publish LEADER_BOOTED
// and release the lock before returning. After Stop returns no further local
// dispatch or remote publish occurs from this engine.
func (e *Engine) Stop() {
	if !e.isShutdown.CompareAndSwap(false, true) {
		return
	}

	e.mu.Lock()
	started := e.started
	subID := e.subID
	if cur := e.leaderRef.Load(); cur != nil && cur.ID == e.cfg.LocalNode.ID {
		e.cfg.Metrics.RecordStepDown(e.cfg.TopicName, reasonWithdraw)
	}
	e.mu.Unlock()

	if !started {
		e.cancel()

		return
	}

	if err := e.cfg.Topic.Unsubscribe(subID); err != nil {
		e.cfg.Logger.Warn("failed to unsubscribe from leadership topic",
			"topic", e.cfg.TopicName, "error", err)
	}

	// Cancel both workers explicitly. The periodic loop watches the engine
	// context, so no heartbeat can be published after Stop returns.
	e.cancel()
	e.wg.Wait()

	e.cfg.Logger.Info("leader election stopped", "topic", e.cfg.TopicName, "node", e.cfg.LocalNode.ID)
}

// electionLoop acquires the named lock, announces leadership, and holds the
// lock until the hold context is cancelled, then steps down and re-enters
// the election.
func (e *Engine) electionLoop() {
	defer e.wg.Done()

	for !e.isShutdown.Load() {
		holdCtx, cancel := context.WithCancel(e.ctx)
		e.mu.Lock()
		e.holdCancel = cancel
		e.mu.Unlock()

		e.cfg.Logger.Debug("running for leadership", "topic", e.cfg.TopicName)
		if err := e.cfg.Lock.LockInterruptibly(holdCtx); err != nil {
			cancel()
			if !errors.Is(err, context.Canceled) && e.ctx.Err() == nil {
				// Substrate failure rather than a step-down or shutdown
				// signal. Wait one tick before retrying the election.
				select {
				case <-e.ctx.Done():
				case <-time.After(e.cfg.PeriodicInterval):
				}
			}

			continue
		}

		e.mu.Lock()
		e.setLeader(&e.cfg.LocalNode)
		elected := types.NewLeadershipEvent(types.LeaderElected, e.leadership(e.cfg.LocalNode))
		e.post(elected)
		e.publish(elected)
		e.mu.Unlock()

		e.cfg.Metrics.RecordElected(e.cfg.TopicName)
		e.cfg.Logger.Info("leader elected", "topic", e.cfg.TopicName, "node", e.cfg.LocalNode.ID)

		// Hold the lock until asked to step down or shut down.
		<-holdCtx.Done()

		e.mu.Lock()
		if cur := e.leaderRef.Load(); cur != nil && cur.ID == e.cfg.LocalNode.ID {
			e.setLeader(nil)
		}
		booted := types.NewLeadershipEvent(types.LeaderBooted, e.leadership(e.cfg.LocalNode))
		e.post(booted)
		e.publish(booted)

		unlockCtx, unlockCancel := context.WithTimeout(context.Background(), e.cfg.UnlockTimeout)
		if err := e.cfg.Lock.Unlock(unlockCtx); err != nil {
			e.cfg.Logger.Warn("failed to release leadership lock",
				"topic", e.cfg.TopicName, "error", err)
		}
		unlockCancel()
		e.mu.Unlock()

		e.cfg.Logger.Info("leadership released", "topic", e.cfg.TopicName, "node", e.cfg.LocalNode.ID)
		cancel()
	}
}

// periodicLoop advertises leadership while the local node leads, and expires
// a remote leader that has gone silent past the remote timeout.
func (e *Engine) periodicLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.PeriodicInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
		}
		if e.isShutdown.Load() {
			return
		}

		e.mu.Lock()
		cur := e.leaderRef.Load()
		switch {
		case cur == nil:
			// No leader known; nothing to advertise or expire.
		case cur.ID == e.cfg.LocalNode.ID:
			reelected := types.NewLeadershipEvent(types.LeaderReelected, e.leadership(e.cfg.LocalNode))
			e.publish(reelected)
		case time.Since(e.lastLeadershipUpdate) > e.cfg.RemoteTimeout:
			// The remote leader went silent. This eviction reflects a local
			// belief, not a cluster fact, so it is dispatched locally only.
			booted := types.NewLeadershipEvent(types.LeaderBooted, e.leadership(*cur))
			e.post(booted)
			e.setLeader(nil)
			e.cfg.Metrics.RecordRemoteExpired(e.cfg.TopicName)
			e.cfg.Logger.Info("stale remote leader expired",
				"topic", e.cfg.TopicName, "leader", cur.ID)
		}
		e.mu.Unlock()
	}
}

// onMessage handles one broadcast message delivered by the substrate.
func (e *Engine) onMessage(data []byte) {
	event, err := e.cfg.Codec.Decode(data)
	if err != nil {
		e.cfg.Logger.Warn("dropping undecodable leadership event",
			"topic", e.cfg.TopicName, "error", err)

		return
	}

	if event.Subject.Topic != e.cfg.TopicName {
		return // Not our topic: ignore
	}
	if event.Subject.Leader.ID == e.cfg.LocalNode.ID {
		return // My own message: ignore
	}

	e.cfg.Logger.Debug("leadership event received",
		"topic", e.cfg.TopicName, "type", event.Type.String(), "leader", event.Subject.Leader.ID)

	e.mu.Lock()
	defer e.mu.Unlock()

	switch event.Type {
	case types.LeaderElected, types.LeaderReelected:
		cur := e.leaderRef.Load()
		if cur != nil && cur.ID == e.cfg.LocalNode.ID {
			// Another cluster side also holds the lock. Give up leadership by
			// cancelling the hold; the election loop will publish
			// LEADER_BOOTED, unlock, and run again.
			if e.holdCancel != nil {
				e.holdCancel()
			}
			e.cfg.Metrics.RecordStepDown(e.cfg.TopicName, reasonCollision)
			e.cfg.Logger.Warn("leadership collision detected, stepping down",
				"topic", e.cfg.TopicName, "other", event.Subject.Leader.ID)
		} else {
			leader := event.Subject.Leader
			e.setLeader(&leader)
			e.lastLeadershipUpdate = time.Now()
		}
		e.post(event)
	case types.LeaderBooted:
		if cur := e.leaderRef.Load(); cur != nil && cur.ID == event.Subject.Leader.ID {
			e.setLeader(nil)
		}
		e.post(event)
	}
}

// setLeader updates the leader snapshot and the leading gauge.
// Callers must hold the engine monitor.
func (e *Engine) setLeader(node *types.ControllerNode) {
	if node == nil {
		e.leaderRef.Store(nil)
		e.cfg.Metrics.SetLeading(e.cfg.TopicName, false)

		return
	}

	leader := *node
	e.leaderRef.Store(&leader)
	e.cfg.Metrics.SetLeading(e.cfg.TopicName, leader.ID == e.cfg.LocalNode.ID)
}

// leadership builds the Leadership subject for an event about the given node.
func (e *Engine) leadership(node types.ControllerNode) types.Leadership {
	return types.Leadership{
		Topic:  e.cfg.TopicName,
		Leader: node,
		Epoch:  0,
	}
}

// post dispatches the event to local listeners via the sink.
func (e *Engine) post(event types.LeadershipEvent) {
	e.cfg.Sink(event)
}

// publish broadcasts the event to all peers. Failures are logged and
// absorbed; the periodic heartbeat or a later election cycle repairs the
// cluster view.
func (e *Engine) publish(event types.LeadershipEvent) {
	data, err := e.cfg.Codec.Encode(event)
	if err != nil {
		e.cfg.Logger.Error("failed to encode leadership event",
			"topic", e.cfg.TopicName, "type", event.Type.String(), "error", err)

		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.PublishTimeout)
	defer cancel()

	err = e.cfg.Topic.Publish(ctx, data)
	if event.Type == types.LeaderReelected {
		e.cfg.Metrics.RecordHeartbeat(e.cfg.TopicName, err == nil)
	}
	if err != nil {
		e.cfg.Logger.Warn("failed to publish leadership event",
			"topic", e.cfg.TopicName, "type", event.Type.String(), "error", err)
	}
}
