package onos

import (
	"context"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/kmntree/onos/codec"
	"github.com/kmntree/onos/internal/engine"
	"github.com/kmntree/onos/internal/logging"
	"github.com/kmntree/onos/internal/metrics"
	"github.com/kmntree/onos/internal/registry"
	"github.com/kmntree/onos/types"
)

// LeadershipService coordinates per-topic leader elections across the cluster.
//
// The election is eventually consistent: if the clustering substrate
// partitions and later heals, there can be a short window until the leaders
// on each side discover each other. When that happens the losing leader
// releases the lock and runs for election again.
//
// Each election combines the substrate's strongly consistent named lock with
// a globally ordered broadcast topic. The lock decides leadership; the
// broadcast advertises it, reveals multi-leader collisions after a healed
// partition, and informs listeners who currently leads.
//
// Thread safety: all public methods are safe for concurrent use.
//
// Lifecycle:
//   - Create with NewLeadershipService()
//   - Call Start() to capture the local node identity
//   - RunForLeadership() per topic; Withdraw() to leave an election
//   - Call Stop() for teardown of every local election
type LeadershipService struct {
	cfg       Config
	substrate types.Substrate
	cluster   types.ClusterService
	codec     types.EventCodec
	logger    types.Logger
	metrics   types.MetricsCollector

	topics   *xsync.Map[string, *engine.Engine]
	registry *registry.Registry

	localNode types.ControllerNode
	started   atomic.Bool
}

// NewLeadershipService creates a leadership service on the given substrate.
//
// Parameters:
//   - cfg: Election timing configuration (defaults are applied in place)
//   - substrate: Clustering substrate supplying named locks and ordered topics
//   - cluster: Cluster service exposing the local node identity
//   - opts: Optional codec, logger, and metrics
//
// Returns a concrete *LeadershipService following the "accept interfaces,
// return structs" principle.
//
// Example:
//
//	cfg := onos.DefaultConfig()
//	cluster := types.StaticCluster{Node: types.ControllerNode{ID: "node-1"}}
//	svc, err := onos.NewLeadershipService(&cfg, substrate, cluster)
func NewLeadershipService(cfg *Config, substrate types.Substrate, cluster types.ClusterService, opts ...Option) (*LeadershipService, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if substrate == nil {
		return nil, ErrSubstrateRequired
	}
	if cluster == nil {
		return nil, ErrClusterServiceRequired
	}

	SetDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &serviceOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.codec == nil {
		options.codec = codec.JSON()
	}
	if options.logger == nil {
		options.logger = logging.NewSlogDefault()
	}
	if options.metrics == nil {
		options.metrics = metrics.NewNop()
	}

	return &LeadershipService{
		cfg:       *cfg,
		substrate: substrate,
		cluster:   cluster,
		codec:     options.codec,
		logger:    options.logger,
		metrics:   options.metrics,
		topics:    xsync.NewMap[string, *engine.Engine](),
		registry:  registry.New(options.logger, options.metrics),
	}, nil
}

// Start activates the service: it captures the local node identity and makes
// the election operations available.
func (s *LeadershipService) Start(_ context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	s.localNode = s.cluster.LocalNode()
	s.logger.Info("leadership service started", "node", s.localNode.ID)

	return nil
}

// Stop deactivates the service, stopping every local election and draining
// the topic map. Engines that currently lead publish LEADER_BOOTED and
// release their locks before Stop returns.
func (s *LeadershipService) Stop(_ context.Context) error {
	if !s.started.CompareAndSwap(true, false) {
		return ErrNotStarted
	}

	s.topics.Range(func(topic string, _ *engine.Engine) bool {
		if eng, ok := s.topics.LoadAndDelete(topic); ok {
			eng.Stop()
		}

		return true
	})

	s.logger.Info("leadership service stopped", "node", s.localNode.ID)

	return nil
}

// GetLeader returns a non-blocking snapshot of the believed leader for the
// topic, or nil when the topic is unknown or currently has no leader.
func (s *LeadershipService) GetLeader(topic string) *types.ControllerNode {
	eng, ok := s.topics.Load(topic)
	if !ok {
		return nil
	}

	return eng.Leader()
}

// RunForLeadership begins (asynchronously) running for leadership of the
// given topic. The first call per topic wins; repeated calls are no-ops.
func (s *LeadershipService) RunForLeadership(ctx context.Context, topic string) error {
	if topic == "" {
		return ErrTopicNameRequired
	}
	if !s.started.Load() {
		return ErrNotStarted
	}
	if _, ok := s.topics.Load(topic); ok {
		return nil // already running for this topic
	}

	lock, err := s.substrate.NamedLock(ctx, lockName(topic))
	if err != nil {
		return err
	}
	broadcast, err := s.substrate.OrderedTopic(ctx, topicName(topic))
	if err != nil {
		return err
	}

	eng := engine.New(engine.Config{
		TopicName:        topic,
		LocalNode:        s.localNode,
		Lock:             lock,
		Topic:            broadcast,
		Codec:            s.codec,
		Sink:             s.registry.Post,
		Logger:           s.logger,
		Metrics:          s.metrics,
		PeriodicInterval: s.cfg.PeriodicInterval,
		RemoteTimeout:    s.cfg.RemoteTimeout,
		PublishTimeout:   s.cfg.PublishTimeout,
		UnlockTimeout:    s.cfg.UnlockTimeout,
	})

	if _, loaded := s.topics.LoadOrStore(topic, eng); loaded {
		return nil // lost the insertion race; the winner's engine runs
	}

	if err := eng.Start(ctx); err != nil {
		s.topics.Delete(topic)

		return err
	}

	return nil
}

// Withdraw ends local participation in the topic's election. Withdrawing
// from an unknown topic is a no-op.
func (s *LeadershipService) Withdraw(_ context.Context, topic string) error {
	if topic == "" {
		return ErrTopicNameRequired
	}

	if eng, ok := s.topics.LoadAndDelete(topic); ok {
		eng.Stop()
	}

	return nil
}

// LeaderBoard would return the cluster-wide leadership view; it is not
// supported by this service and always returns ErrLeaderBoardUnsupported.
func (s *LeadershipService) LeaderBoard() (map[string]types.Leadership, error) {
	return nil, ErrLeaderBoardUnsupported
}

// AddListener registers a leadership event listener. Idempotent.
func (s *LeadershipService) AddListener(listener types.LeadershipEventListener) {
	s.registry.Add(listener)
}

// RemoveListener unregisters a leadership event listener. Idempotent.
func (s *LeadershipService) RemoveListener(listener types.LeadershipEventListener) {
	s.registry.Remove(listener)
}

// lockName derives the substrate lock name for a topic.
func lockName(topic string) string {
	return "LeadershipService/" + topic + "/lock"
}

// topicName derives the substrate broadcast topic name for a topic.
func topicName(topic string) string {
	return "LeadershipService/" + topic + "/topic"
}
