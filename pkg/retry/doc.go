// Package retry provides simple exponential backoff retry logic for transient failures.
//
// # Overview
//
// A minimal retry mechanism for the operations in this repository that
// can fail transiently: fabric connection, KV bucket provisioning, and
// tool startup against a server that is not up yet.
//
// # Configuration Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s delay (normal operations)
//   - Quick(): 10 attempts, 50ms-1s delay (startup paths)
//   - Persistent(): 30 attempts, 200ms-10s delay (critical resources)
//
// # Usage
//
// Bucket provisioning with a result:
//
//	kv, err := retry.DoWithResult(ctx, retry.Quick(), func() (jetstream.KeyValue, error) {
//	    return js.KeyValue(ctx, bucket)
//	})
//
// Marking an error so the loop stops immediately:
//
//	return retry.NonRetryable(err)
//
// # Design
//
// Intentionally minimal: no circuit breakers, no metrics, no error
// classification beyond the NonRetryable mark. Callers that want
// class-aware retries combine this package with errors.IsTransient at
// the call site. All operations respect context cancellation, both
// between attempts and during backoff sleeps.
package retry
