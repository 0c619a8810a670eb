package types

// MetricsCollector defines methods for recording election metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods are called from internal goroutines and must be thread-safe.
type MetricsCollector interface {
	// RecordElected records that the local node won the election for a topic.
	RecordElected(topic string)

	// RecordStepDown records that the local node gave up leadership.
	//
	// Parameters:
	//   - topic: Election topic
	//   - reason: Step-down reason ("collision", "withdraw")
	RecordStepDown(topic, reason string)

	// RecordHeartbeat records one periodic leader advertisement attempt.
	RecordHeartbeat(topic string, success bool)

	// RecordRemoteExpired records the local eviction of a stale remote leader.
	RecordRemoteExpired(topic string)

	// SetLeading sets the per-topic leading gauge for the local node.
	SetLeading(topic string, leading bool)

	// RecordListenerFault records a panicking event listener.
	RecordListenerFault()
}
