package onos

// Option configures a LeadershipService with optional dependencies.
type Option func(*serviceOptions)

// serviceOptions holds optional LeadershipService configuration.
type serviceOptions struct {
	codec   EventCodec
	logger  Logger
	metrics MetricsCollector
}

// WithCodec sets the event codec used on the broadcast topic.
//
// All peers in the cluster must use the same codec. Defaults to codec.JSON().
//
// Example:
//
//	svc, err := onos.NewLeadershipService(&cfg, substrate, cluster,
//	    onos.WithCodec(myCodec))
func WithCodec(c EventCodec) Option {
	return func(o *serviceOptions) {
		o.codec = c
	}
}

// WithLogger sets a logger.
//
// Defaults to a slog-backed logger writing to the process default handler.
//
// Example:
//
//	logger := zap.NewExample().Sugar()
//	svc, err := onos.NewLeadershipService(&cfg, substrate, cluster,
//	    onos.WithLogger(logger))
func WithLogger(logger Logger) Option {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// WithMetrics sets a metrics collector.
//
// Defaults to a no-op collector.
//
// Example:
//
//	collector := metrics.NewPrometheus(nil, "onos")
//	svc, err := onos.NewLeadershipService(&cfg, substrate, cluster,
//	    onos.WithMetrics(collector))
func WithMetrics(collector MetricsCollector) Option {
	return func(o *serviceOptions) {
		o.metrics = collector
	}
}
