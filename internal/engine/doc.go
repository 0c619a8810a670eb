// Package engine implements the per-topic leader election state machine.
//
// Each engine combines two substrate primitives: a strongly consistent named
// lock and a best-effort totally ordered broadcast topic. The lock decides who
// leads; the broadcast advertises the decision, detects multi-leader
// collisions after a partition heals, and lets peers expire a silent leader.
//
// The election is eventually consistent: during a partition each side may
// believe it leads, and once broadcast connectivity returns the collision is
// resolved by the losing side stepping down and re-entering the election.
package engine
