package types

import "github.com/zeebo/xxh3"

// NodeID is the opaque identifier of a controller instance.
//
// Values are comparable with == and produce a stable 64-bit hash suitable
// for sharding or consistent placement.
type NodeID string

// Hash returns a stable 64-bit hash of the node ID.
//
// The hash is deterministic across processes and restarts, so it can be
// used for placement decisions that must agree cluster-wide.
func (id NodeID) Hash() uint64 {
	return xxh3.HashString(string(id))
}

// String returns the node ID as a plain string.
func (id NodeID) String() string {
	return string(id)
}

// ControllerNode identifies one controller instance in the cluster.
//
// Addr is opaque to the election core; it is carried so listeners can reach
// the leader without a separate membership lookup.
type ControllerNode struct {
	ID   NodeID `json:"id"`
	Addr string `json:"addr,omitempty"`
}
