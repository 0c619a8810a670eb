// Package types provides core type definitions and interfaces for the
// leadership election library.
//
// This package contains shared types that are used across multiple packages.
// By keeping these types in a separate package, we avoid import cycles between
// the root onos package and its internal implementations.
//
// Key types:
//   - NodeID / ControllerNode: cluster node identity
//   - Leadership / LeadershipEvent: election state and its change events
//   - NamedLock / OrderedTopic / Substrate: clustering substrate contracts
//   - Logger: structured logging interface
//   - MetricsCollector: metrics recording interface
package types
