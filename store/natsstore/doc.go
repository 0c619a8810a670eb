// Package natsstore implements the clustering substrate on NATS JetStream.
//
// Named locks are lease-based entries in a JetStream KV bucket: acquisition
// is an atomic Create, the hold is maintained by a keepalive goroutine doing
// revision-checked Updates, and release is a revision-checked Delete. The
// bucket TTL bounds how long a crashed holder can block its successors.
//
// Ordered topics are JetStream streams consumed through ordered consumers,
// which gives every subscriber the same total order of messages, including
// the publisher's own.
//
// A lost lease (e.g. after a long GC pause or connectivity gap) is logged but
// not surfaced to the lock holder; the leadership election treats the
// resulting double-holder the same way it treats a healed partition and
// resolves it over the broadcast topic.
package natsstore
