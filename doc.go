// Package onos provides distributed, per-topic leader election for clustered
// controllers.
//
// Applications register interest in leading a named topic; the service
// coordinates with peer controller instances so that at most one instance is
// recognized as leader per topic in the steady state, and emits events as
// leadership changes.
//
// # Quick Start
//
//	import (
//	    "github.com/kmntree/onos"
//	    "github.com/kmntree/onos/store/natsstore"
//	    "github.com/kmntree/onos/types"
//	)
//
//	substrate, _ := natsstore.New(ctx, natsConn, natsstore.DefaultConfig())
//	cluster := types.StaticCluster{Node: types.ControllerNode{ID: "node-1"}}
//
//	cfg := onos.DefaultConfig()
//	svc, _ := onos.NewLeadershipService(&cfg, substrate, cluster)
//
//	if err := svc.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Stop(context.Background())
//
//	svc.AddListener(myListener)
//	svc.RunForLeadership(ctx, "sdn")
//
// # How It Works
//
// Each topic election combines two substrate primitives:
//
//   - A strongly consistent named lock. Holding it makes a node the leader.
//   - A globally ordered broadcast topic. The leader advertises itself on it
//     every periodic interval (LEADER_REELECTED heartbeats); followers track
//     the advertisements and evict a leader that goes silent past the remote
//     timeout.
//
// The combination yields eventually consistent single-leader semantics: if
// the substrate partitions, each side may elect its own leader, and once the
// partition heals the broadcast reveals the collision and the losing side
// steps down and runs again.
//
// # Events
//
// Listeners receive LEADER_ELECTED when a node wins an election,
// LEADER_REELECTED heartbeats from remote leaders, and LEADER_BOOTED when a
// leader steps down, is evicted as stale, or withdraws.
package onos
