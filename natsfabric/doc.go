// Package natsfabric implements the fabric contract on NATS JetStream
// key-value buckets.
//
// # Topic Mapping
//
// Each root table becomes one KV bucket named after the table. Logical
// slash paths inside the table become dotted bucket keys, so the
// namespace hierarchy lands in subject tokens:
//
//	XNav / targets/7/tx   ->  bucket "XNav", key "targets.7.tx"
//	XNav / offsetPoint/x  ->  bucket "XNav", key "offsetPoint.x"
//
// Payloads are JSON. Go's shortest-form float encoding round-trips
// every finite float64 bit-exactly, so numeric topics survive the trip
// unchanged.
//
// # Lifecycle
//
// Tables, subscriptions, and publications may all be created before
// Start; they activate once Start succeeds. Start itself never fails
// on an unreachable server: the NATS layer keeps dialing per its
// reconnect settings, and each table keeps retrying bucket
// provisioning until it comes up. A robot that boots before its
// coprocessor therefore converges without intervention, serving
// defaults in the meantime. WaitReady blocks until every table is
// live, for tests and tools that need determinism.
//
// # Data Paths
//
// One bucket-wide watcher per table folds every update into a
// latest-value cache and fires per-key listeners on the watch
// goroutine. Subscription reads hit the cache, so a topic bound after
// its value arrived still observes it.
//
// Writes are fire-and-forget: Set enqueues into a per-table ring
// drained by a single writer goroutine, preserving per-key order.
// When the ring overflows the oldest pending write is evicted, which
// favors fresh control values over stale ones. Put failures are
// logged and counted, never surfaced to the caller.
package natsfabric
