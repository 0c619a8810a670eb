// Package codec provides EventCodec implementations for serializing
// leadership events onto the cluster broadcast topic.
//
// All peers in a cluster must use the same codec. The default JSON codec is
// self-describing and debuggable on the wire; deployments with tighter
// bandwidth constraints can plug in their own types.EventCodec.
package codec
