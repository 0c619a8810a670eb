package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kmntree/onos/codec"
	"github.com/kmntree/onos/internal/logging"
	"github.com/kmntree/onos/internal/metrics"
	"github.com/kmntree/onos/types"
)

const (
	testInterval = 30 * time.Millisecond
	testTimeout  = 90 * time.Millisecond
	waitTimeout  = 2 * time.Second
)

var (
	nodeA = types.ControllerNode{ID: "node-A", Addr: "10.0.0.1:6653"}
	nodeB = types.ControllerNode{ID: "node-B", Addr: "10.0.0.2:6653"}
)

// fakeLock is a process-local semaphore honoring context cancellation.
type fakeLock struct {
	sem chan struct{}
}

func newFakeLock() *fakeLock {
	return &fakeLock{sem: make(chan struct{}, 1)}
}

func (l *fakeLock) LockInterruptibly(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *fakeLock) Unlock(_ context.Context) error {
	select {
	case <-l.sem:
		return nil
	default:
		return fmt.Errorf("unlock of unheld lock")
	}
}

// tryAcquire reports whether the lock is currently free, acquiring it if so.
func (l *fakeLock) tryAcquire() bool {
	select {
	case l.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// fakeTopic records publishes and lets tests inject deliveries.
type fakeTopic struct {
	mu        sync.Mutex
	handlers  map[string]types.MessageHandler
	published [][]byte
	nextID    int
}

func newFakeTopic() *fakeTopic {
	return &fakeTopic{handlers: make(map[string]types.MessageHandler)}
}

func (t *fakeTopic) Publish(_ context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.published = append(t.published, data)

	return nil
}

func (t *fakeTopic) Subscribe(_ context.Context, handler types.MessageHandler) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := fmt.Sprintf("sub-%d", t.nextID)
	t.handlers[id] = handler

	return id, nil
}

func (t *fakeTopic) Unsubscribe(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.handlers, id)

	return nil
}

// deliver pushes a raw message to every subscribed handler, as the substrate
// would on message arrival.
func (t *fakeTopic) deliver(data []byte) {
	t.mu.Lock()
	handlers := make([]types.MessageHandler, 0, len(t.handlers))
	for _, h := range t.handlers {
		handlers = append(handlers, h)
	}
	t.mu.Unlock()

	for _, h := range handlers {
		h(data)
	}
}

// deliverEvent encodes and delivers a leadership event.
func (t *fakeTopic) deliverEvent(tb testing.TB, event types.LeadershipEvent) {
	tb.Helper()
	data, err := codec.JSON().Encode(event)
	require.NoError(tb, err)
	t.deliver(data)
}

// publishedEvents decodes everything published so far.
func (t *fakeTopic) publishedEvents(tb testing.TB) []types.LeadershipEvent {
	tb.Helper()
	t.mu.Lock()
	defer t.mu.Unlock()

	events := make([]types.LeadershipEvent, 0, len(t.published))
	for _, data := range t.published {
		ev, err := codec.JSON().Decode(data)
		require.NoError(tb, err)
		events = append(events, ev)
	}

	return events
}

func (t *fakeTopic) publishedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.published)
}

type engineFixture struct {
	engine *Engine
	lock   *fakeLock
	topic  *fakeTopic
	sink   chan types.LeadershipEvent
}

func newFixture(t *testing.T) *engineFixture {
	t.Helper()

	lock := newFakeLock()
	topic := newFakeTopic()
	sink := make(chan types.LeadershipEvent, 64)

	eng := New(Config{
		TopicName:        "sdn",
		LocalNode:        nodeA,
		Lock:             lock,
		Topic:            topic,
		Codec:            codec.JSON(),
		Sink:             func(ev types.LeadershipEvent) { sink <- ev },
		Logger:           logging.NewSlogDefault(),
		Metrics:          metrics.NewNop(),
		PeriodicInterval: testInterval,
		RemoteTimeout:    testTimeout,
		PublishTimeout:   time.Second,
		UnlockTimeout:    time.Second,
	})
	t.Cleanup(eng.Stop)

	return &engineFixture{engine: eng, lock: lock, topic: topic, sink: sink}
}

func waitEvent(t *testing.T, sink <-chan types.LeadershipEvent, want types.EventType) types.LeadershipEvent {
	t.Helper()

	deadline := time.After(waitTimeout)
	for {
		select {
		case ev := <-sink:
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func requireNoEvent(t *testing.T, sink <-chan types.LeadershipEvent, within time.Duration) {
	t.Helper()

	select {
	case ev := <-sink:
		t.Fatalf("unexpected event %s for %s", ev.Type, ev.Subject.Leader.ID)
	case <-time.After(within):
	}
}

func TestEngineSoloElection(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(t.Context()))

	ev := waitEvent(t, f.sink, types.LeaderElected)
	require.Equal(t, "sdn", ev.Subject.Topic)
	require.Equal(t, nodeA, ev.Subject.Leader)
	require.Zero(t, ev.Subject.Epoch)

	leader := f.engine.Leader()
	require.NotNil(t, leader)
	require.Equal(t, nodeA, *leader)
}

func TestEngineHeartbeatsWhileLeading(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(t.Context()))
	waitEvent(t, f.sink, types.LeaderElected)

	require.Eventually(t, func() bool {
		reelected := 0
		for _, ev := range f.topic.publishedEvents(t) {
			if ev.Type == types.LeaderReelected && ev.Subject.Leader == nodeA {
				reelected++
			}
		}

		return reelected >= 2
	}, waitTimeout, testInterval/3)

	// Heartbeats are advertised to peers only, never posted locally.
	requireNoEvent(t, f.sink, 2*testInterval)
}

func TestEngineStartTwice(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(t.Context()))
	require.ErrorIs(t, f.engine.Start(t.Context()), ErrAlreadyStarted)
}

func TestEngineStopPublishesBootedAndUnlocks(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(t.Context()))
	waitEvent(t, f.sink, types.LeaderElected)

	f.engine.Stop()

	booted := waitEvent(t, f.sink, types.LeaderBooted)
	require.Equal(t, nodeA, booted.Subject.Leader)
	require.Nil(t, f.engine.Leader())

	events := f.topic.publishedEvents(t)
	require.Equal(t, types.LeaderBooted, events[len(events)-1].Type)

	// The lock must be free for a peer to take over.
	require.True(t, f.lock.tryAcquire())

	// No publish may occur after Stop returns.
	count := f.topic.publishedCount()
	time.Sleep(3 * testInterval)
	require.Equal(t, count, f.topic.publishedCount())
}

func TestEngineStopIsIdempotent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(t.Context()))
	waitEvent(t, f.sink, types.LeaderElected)

	f.engine.Stop()
	f.engine.Stop()
}

func TestEngineTracksRemoteLeader(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.lock.tryAcquire()) // keep the local node out of office
	require.NoError(t, f.engine.Start(t.Context()))

	f.topic.deliverEvent(t, types.NewLeadershipEvent(types.LeaderElected, types.Leadership{
		Topic:  "sdn",
		Leader: nodeB,
	}))

	ev := waitEvent(t, f.sink, types.LeaderElected)
	require.Equal(t, nodeB, ev.Subject.Leader)

	leader := f.engine.Leader()
	require.NotNil(t, leader)
	require.Equal(t, nodeB, *leader)
}

func TestEngineExpiresStaleRemoteLeader(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.lock.tryAcquire())
	require.NoError(t, f.engine.Start(t.Context()))

	f.topic.deliverEvent(t, types.NewLeadershipEvent(types.LeaderElected, types.Leadership{
		Topic:  "sdn",
		Leader: nodeB,
	}))
	waitEvent(t, f.sink, types.LeaderElected)

	// Silence on the broadcast topic beyond the remote timeout.
	booted := waitEvent(t, f.sink, types.LeaderBooted)
	require.Equal(t, nodeB, booted.Subject.Leader)
	require.Nil(t, f.engine.Leader())

	// The eviction is a local belief: nothing is broadcast.
	require.Zero(t, f.topic.publishedCount())
}

func TestEngineRemoteHeartbeatDefersExpiry(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.lock.tryAcquire())
	require.NoError(t, f.engine.Start(t.Context()))

	f.topic.deliverEvent(t, types.NewLeadershipEvent(types.LeaderElected, types.Leadership{
		Topic:  "sdn",
		Leader: nodeB,
	}))
	waitEvent(t, f.sink, types.LeaderElected)

	// Keep node-B fresh for several timeout windows.
	stop := time.After(3 * testTimeout)
feeding:
	for {
		select {
		case <-stop:
			break feeding
		case <-time.After(testInterval):
			f.topic.deliverEvent(t, types.NewLeadershipEvent(types.LeaderReelected, types.Leadership{
				Topic:  "sdn",
				Leader: nodeB,
			}))
		}
	}

	leader := f.engine.Leader()
	require.NotNil(t, leader)
	require.Equal(t, nodeB, *leader)
}

func TestEngineSplitBrainStepDown(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(t.Context()))
	waitEvent(t, f.sink, types.LeaderElected)

	// A healed partition reveals another leader.
	f.topic.deliverEvent(t, types.NewLeadershipEvent(types.LeaderReelected, types.Leadership{
		Topic:  "sdn",
		Leader: nodeB,
	}))

	booted := waitEvent(t, f.sink, types.LeaderBooted)
	require.Equal(t, nodeA, booted.Subject.Leader)

	require.Eventually(t, func() bool {
		for _, ev := range f.topic.publishedEvents(t) {
			if ev.Type == types.LeaderBooted && ev.Subject.Leader == nodeA {
				return true
			}
		}

		return false
	}, waitTimeout, testInterval/3)

	// The lock was free again, so the engine re-enters the election and wins.
	reelected := waitEvent(t, f.sink, types.LeaderElected)
	require.Equal(t, nodeA, reelected.Subject.Leader)
}

func TestEngineFiltersOwnMessages(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(t.Context()))
	waitEvent(t, f.sink, types.LeaderElected)

	// The substrate redelivers the local node's own heartbeat.
	f.topic.deliverEvent(t, types.NewLeadershipEvent(types.LeaderReelected, types.Leadership{
		Topic:  "sdn",
		Leader: nodeA,
	}))

	requireNoEvent(t, f.sink, 2*testInterval)

	leader := f.engine.Leader()
	require.NotNil(t, leader)
	require.Equal(t, nodeA, *leader)
}

func TestEngineFiltersForeignTopics(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.lock.tryAcquire())
	require.NoError(t, f.engine.Start(t.Context()))

	f.topic.deliverEvent(t, types.NewLeadershipEvent(types.LeaderElected, types.Leadership{
		Topic:  "ipv6",
		Leader: nodeB,
	}))

	requireNoEvent(t, f.sink, 2*testInterval)
	require.Nil(t, f.engine.Leader())
}

func TestEngineDropsUndecodableMessages(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.lock.tryAcquire())
	require.NoError(t, f.engine.Start(t.Context()))

	require.NotPanics(t, func() {
		f.topic.deliver([]byte("garbage"))
	})

	requireNoEvent(t, f.sink, 2*testInterval)
	require.Nil(t, f.engine.Leader())
}

func TestEngineBootedClearsRemoteLeader(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.lock.tryAcquire())
	require.NoError(t, f.engine.Start(t.Context()))

	f.topic.deliverEvent(t, types.NewLeadershipEvent(types.LeaderElected, types.Leadership{
		Topic:  "sdn",
		Leader: nodeB,
	}))
	waitEvent(t, f.sink, types.LeaderElected)

	f.topic.deliverEvent(t, types.NewLeadershipEvent(types.LeaderBooted, types.Leadership{
		Topic:  "sdn",
		Leader: nodeB,
	}))

	booted := waitEvent(t, f.sink, types.LeaderBooted)
	require.Equal(t, nodeB, booted.Subject.Leader)
	require.Nil(t, f.engine.Leader())
}

func TestEngineBootedForOtherNodeKeepsLeader(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.lock.tryAcquire())
	require.NoError(t, f.engine.Start(t.Context()))

	f.topic.deliverEvent(t, types.NewLeadershipEvent(types.LeaderElected, types.Leadership{
		Topic:  "sdn",
		Leader: nodeB,
	}))
	waitEvent(t, f.sink, types.LeaderElected)

	other := types.ControllerNode{ID: "node-C"}
	f.topic.deliverEvent(t, types.NewLeadershipEvent(types.LeaderBooted, types.Leadership{
		Topic:  "sdn",
		Leader: other,
	}))
	waitEvent(t, f.sink, types.LeaderBooted)

	leader := f.engine.Leader()
	require.NotNil(t, leader)
	require.Equal(t, nodeB, *leader)
}
