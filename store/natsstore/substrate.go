package natsstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/nats-io/nuid"

	"github.com/kmntree/onos/internal/logging"
	"github.com/kmntree/onos/types"
)

// Common errors for substrate operations.
var (
	ErrConnRequired = errors.New("NATS connection is required")
)

const provisionRetries = 3

// Config configures the NATS substrate.
type Config struct {
	// LockBucket is the KV bucket holding every named lock lease.
	LockBucket string `yaml:"lockBucket"`

	// LockTTL is the lease duration. A crashed holder blocks its successors
	// for at most this long. The keepalive renews at a third of the TTL.
	// Recommended: 10 seconds.
	LockTTL time.Duration `yaml:"lockTtl"`

	// StreamPrefix prefixes every broadcast stream name and subject.
	StreamPrefix string `yaml:"streamPrefix"`

	// StreamMaxAge bounds how long broadcast messages are retained. Only new
	// messages are delivered to subscribers, so retention is purely a
	// debugging aid.
	StreamMaxAge time.Duration `yaml:"streamMaxAge"`

	// Replicas is the JetStream replication factor for the bucket and the
	// streams. Use 3 on a clustered JetStream deployment.
	Replicas int `yaml:"replicas"`
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		LockBucket:   "onos-leadership-locks",
		LockTTL:      10 * time.Second,
		StreamPrefix: "onos-leadership",
		StreamMaxAge: 5 * time.Minute,
		Replicas:     1,
	}
}

// Option configures the substrate.
type Option func(*Substrate)

// WithLogger sets the logger used for lease and delivery diagnostics.
func WithLogger(logger types.Logger) Option {
	return func(s *Substrate) {
		s.logger = logger
	}
}

// Substrate implements types.Substrate on NATS JetStream.
type Substrate struct {
	js       jetstream.JetStream
	kv       jetstream.KeyValue
	cfg      Config
	logger   types.Logger
	holderID string
}

// Compile-time assertion that Substrate implements types.Substrate.
var _ types.Substrate = (*Substrate)(nil)

// New creates a substrate on the given NATS connection, provisioning the
// lock bucket if it does not exist yet.
//
// Parameters:
//   - ctx: Context for provisioning
//   - nc: NATS connection with JetStream enabled
//   - cfg: Substrate configuration (zero fields take defaults)
//   - opts: Optional logger
//
// Example:
//
//	nc, _ := nats.Connect(nats.DefaultURL)
//	substrate, err := natsstore.New(ctx, nc, natsstore.DefaultConfig())
func New(ctx context.Context, nc *nats.Conn, cfg Config, opts ...Option) (*Substrate, error) {
	if nc == nil {
		return nil, ErrConnRequired
	}

	defaults := DefaultConfig()
	if cfg.LockBucket == "" {
		cfg.LockBucket = defaults.LockBucket
	}
	if cfg.LockTTL == 0 {
		cfg.LockTTL = defaults.LockTTL
	}
	if cfg.StreamPrefix == "" {
		cfg.StreamPrefix = defaults.StreamPrefix
	}
	if cfg.StreamMaxAge == 0 {
		cfg.StreamMaxAge = defaults.StreamMaxAge
	}
	if cfg.Replicas == 0 {
		cfg.Replicas = defaults.Replicas
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	s := &Substrate{
		js:       js,
		cfg:      cfg,
		logger:   logging.NewSlogDefault(),
		holderID: nuid.Next(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.kv, err = ensureKVBucket(ctx, js, jetstream.KeyValueConfig{
		Bucket:      cfg.LockBucket,
		Description: "Leadership election lock leases",
		TTL:         cfg.LockTTL,
		Storage:     jetstream.FileStorage,
		Replicas:    cfg.Replicas,
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}

// HolderID returns the substrate's per-process lock holder identity.
func (s *Substrate) HolderID() string {
	return s.holderID
}

// NamedLock returns a handle to the cluster-wide lock with the given name.
func (s *Substrate) NamedLock(_ context.Context, name string) (types.NamedLock, error) {
	return &lock{
		kv:     s.kv,
		key:    sanitizeKey(name),
		holder: s.holderID,
		ttl:    s.cfg.LockTTL,
		logger: s.logger,
	}, nil
}

// OrderedTopic returns a handle to the globally ordered topic with the given
// name, provisioning its stream if needed.
func (s *Substrate) OrderedTopic(ctx context.Context, name string) (types.OrderedTopic, error) {
	token := sanitizeToken(name)
	streamName := s.cfg.StreamPrefix + "-" + token
	subject := s.cfg.StreamPrefix + "." + token

	stream, err := s.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        streamName,
		Description: "Leadership election broadcast topic",
		Subjects:    []string{subject},
		Retention:   jetstream.LimitsPolicy,
		Storage:     jetstream.FileStorage,
		MaxAge:      s.cfg.StreamMaxAge,
		Replicas:    s.cfg.Replicas,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to provision stream %s: %w", streamName, err)
	}

	return &topic{
		js:      s.js,
		stream:  stream,
		subject: subject,
		logger:  s.logger,
		subs:    make(map[string]jetstream.ConsumeContext),
	}, nil
}

// ensureKVBucket creates or opens a KV bucket, retrying with backoff so
// concurrent controllers can race to provision the same bucket safely.
func ensureKVBucket(ctx context.Context, js jetstream.JetStream, config jetstream.KeyValueConfig) (jetstream.KeyValue, error) {
	var lastErr error

	for attempt := 0; attempt < provisionRetries; attempt++ {
		kv, err := js.CreateKeyValue(ctx, config)
		if err == nil {
			return kv, nil
		}

		if errors.Is(err, jetstream.ErrBucketExists) {
			kv, err := js.KeyValue(ctx, config.Bucket)
			if err == nil {
				return kv, nil
			}
			lastErr = fmt.Errorf("bucket exists but failed to open: %w", err)
		} else {
			lastErr = err
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("context cancelled during KV bucket creation: %w", ctx.Err())
		}

		if attempt < provisionRetries-1 {
			delay := time.Duration(1<<uint(attempt)) * 10 * time.Millisecond //nolint:gosec // attempt is bounded
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return nil, fmt.Errorf("failed to create/open KV bucket %s after %d attempts: %w",
		config.Bucket, provisionRetries, lastErr)
}

// sanitizeKey maps a substrate name to a valid KV key.
func sanitizeKey(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '/' || r == '=' || r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}

// sanitizeToken maps a substrate name to a single valid subject token, also
// usable inside a stream name.
func sanitizeToken(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
