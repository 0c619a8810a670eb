// Package testing provides test helpers for NATS-backed substrate tests.
//
// The helpers run an embedded NATS server with JetStream enabled, so
// substrate tests need no external processes or containers.
package testing
