package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheus(reg, "onostest")

	c.RecordElected("sdn")
	c.RecordElected("sdn")
	c.RecordStepDown("sdn", "collision")
	c.RecordHeartbeat("sdn", true)
	c.RecordHeartbeat("sdn", false)
	c.RecordRemoteExpired("sdn")
	c.SetLeading("sdn", true)
	c.RecordListenerFault()

	require.Equal(t, 2.0, testutil.ToFloat64(c.electionsWon.WithLabelValues("sdn")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.stepDowns.WithLabelValues("sdn", "collision")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.heartbeats.WithLabelValues("sdn", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.heartbeats.WithLabelValues("sdn", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.remoteExpired.WithLabelValues("sdn")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.leadingGauge.WithLabelValues("sdn")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.listenerFaults))

	c.SetLeading("sdn", false)
	require.Equal(t, 0.0, testutil.ToFloat64(c.leadingGauge.WithLabelValues("sdn")))
}

func TestPrometheusCollectorDefaults(t *testing.T) {
	c := NewPrometheus(prometheus.NewRegistry(), "")
	require.Equal(t, "onos", c.namespace)
}
