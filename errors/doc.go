// Package errors provides standardized error handling for this
// repository: classification into transient/invalid/fatal, sentinel
// errors for common conditions, and wrapping helpers that produce a
// uniform "component.method: action failed: <cause>" message shape.
//
// # Classification
//
// Errors are partitioned into three classes:
//
//   - Transient: temporary conditions (connection not yet up, fabric
//     unavailable). Safe to retry; pkg/retry consults this class.
//   - Invalid: misuse or bad input (publishing before Start, malformed
//     configuration). Retrying cannot help.
//   - Fatal: unrecoverable states (using a closed connection).
//
// Classify defaults unknown errors to transient so retry loops keep
// trying failures they cannot interpret.
//
// # Wrapping
//
// Wrap and its classified variants add a standard prefix while keeping
// the cause reachable through errors.Is/As:
//
//	if err := kv.Put(ctx, key, data); err != nil {
//	    return errors.WrapTransient(err, "natsfabric", "flush", "kv put")
//	}
//
// # Sentinels
//
// The sentinel variables (ErrNotStarted, ErrAlreadyStarted, ErrClosed,
// ErrNoConnection, ErrInvalidConfig) are the conditions this
// repository raises itself; bindings pass third-party errors through
// wrapped, not translated.
package errors
