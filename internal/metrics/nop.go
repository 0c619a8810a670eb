// Package metrics provides MetricsCollector implementations.
package metrics

import "github.com/kmntree/onos/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external metrics
// collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// RecordElected discards the election metric.
func (n *NopMetrics) RecordElected(_ /* topic */ string) {
	// No-op
}

// RecordStepDown discards the step-down metric.
func (n *NopMetrics) RecordStepDown(_ /* topic */, _ /* reason */ string) {
	// No-op
}

// RecordHeartbeat discards the heartbeat metric.
func (n *NopMetrics) RecordHeartbeat(_ /* topic */ string, _ /* success */ bool) {
	// No-op
}

// RecordRemoteExpired discards the remote expiration metric.
func (n *NopMetrics) RecordRemoteExpired(_ /* topic */ string) {
	// No-op
}

// SetLeading discards the leading gauge update.
func (n *NopMetrics) SetLeading(_ /* topic */ string, _ /* leading */ bool) {
	// No-op
}

// RecordListenerFault discards the listener fault counter.
func (n *NopMetrics) RecordListenerFault() {
	// No-op
}
