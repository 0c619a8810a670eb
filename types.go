package onos

import "github.com/kmntree/onos/types"

// Re-export types from the types subpackage.
//
// This file provides a stable public API for the library's core types and
// interfaces. It uses type aliases to re-export definitions from the `types`
// subpackage, which contains the actual implementations.
//
// This pattern solves the "import cycle" problem by allowing internal
// packages to depend on `types` without depending on the root `onos` package,
// while still providing a convenient `onos.Leadership`, `onos.Logger`, etc.
// for users.
type (
	NodeID          = types.NodeID
	ControllerNode  = types.ControllerNode
	Leadership      = types.Leadership
	LeadershipEvent = types.LeadershipEvent
	EventType       = types.EventType
)

// Re-export interfaces from the types subpackage for convenience.
type (
	LeadershipEventListener = types.LeadershipEventListener
	EventCodec              = types.EventCodec
	NamedLock               = types.NamedLock
	OrderedTopic            = types.OrderedTopic
	Substrate               = types.Substrate
	ClusterService          = types.ClusterService
	MetricsCollector        = types.MetricsCollector
	Logger                  = types.Logger
)

// Re-export event type constants from the types subpackage.
const (
	LeaderElected   = types.LeaderElected
	LeaderReelected = types.LeaderReelected
	LeaderBooted    = types.LeaderBooted
)
