package types

import "context"

// MessageHandler consumes one message delivered on an ordered topic.
//
// Handlers are invoked serially, in the total order established by the
// substrate, on a substrate-owned goroutine.
type MessageHandler func(data []byte)

// NamedLock is a cluster-wide mutex addressed by a string name.
//
// The lock is strongly consistent: at most one holder exists globally under
// non-partitioned operation. During a partition each side may independently
// acquire it; callers are responsible for reconciling once the partition
// heals (the election engine does this via the ordered broadcast).
type NamedLock interface {
	// LockInterruptibly blocks until the lock is held or ctx is cancelled.
	// Cancellation returns ctx.Err() and leaves the lock unheld.
	LockInterruptibly(ctx context.Context) error

	// Unlock releases the lock. Calling Unlock without holding the lock
	// is an error.
	Unlock(ctx context.Context) error
}

// OrderedTopic is a cluster-wide publish/subscribe topic of opaque bytes with
// a single total order observed by every subscriber.
//
// Delivery is asynchronous and best-effort, and includes the publisher's own
// messages; subscribers that do not want them must filter.
type OrderedTopic interface {
	// Publish broadcasts data to all subscribers cluster-wide.
	Publish(ctx context.Context, data []byte) error

	// Subscribe registers a handler and returns a registration ID.
	// The handler is invoked serially per subscription.
	Subscribe(ctx context.Context, handler MessageHandler) (string, error)

	// Unsubscribe removes a previously registered handler.
	Unsubscribe(id string) error
}

// Substrate supplies the two clustering primitives the election engine
// consumes, addressed by string names derived from the topic.
//
// Implementations can use:
//   - NATS JetStream (built-in, store/natsstore)
//   - In-process primitives for tests and single-node use (store/memstore)
//   - External coordination services
type Substrate interface {
	// NamedLock returns a handle to the cluster-wide lock with the given name.
	NamedLock(ctx context.Context, name string) (NamedLock, error)

	// OrderedTopic returns a handle to the globally ordered topic with the
	// given name.
	OrderedTopic(ctx context.Context, name string) (OrderedTopic, error)
}

// ClusterService exposes the identity of the local controller instance.
type ClusterService interface {
	// LocalNode returns the node descriptor of this controller instance.
	LocalNode() ControllerNode
}

// StaticCluster is a ClusterService with a fixed local node.
type StaticCluster struct {
	Node ControllerNode
}

// LocalNode returns the configured node.
func (c StaticCluster) LocalNode() ControllerNode {
	return c.Node
}
