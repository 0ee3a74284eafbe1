// Package fabric abstracts the topic-based key-value pub/sub transport
// that carries XNav values between the vision coprocessor and robot
// clients. A binding supplies connections, hierarchical tables, and
// raw byte subscriptions/publications; the typed layer in this package
// adds encoding and default substitution on top.
//
// Two bindings exist in this repository: natsfabric (NATS JetStream
// KV) and fabric/fabrictest (in-memory, for unit tests).
package fabric

import (
	"context"
	"strings"
	"time"
)

// Value is the set of wire types a topic may carry.
type Value interface {
	~bool | ~int64 | ~float64 | ~string | ~[]int64 | ~[]float64
}

// ConnInfo describes one live peer connection.
type ConnInfo struct {
	RemoteAddr string
	RTT        time.Duration
}

// Conn is a single connection to the fabric.
//
// Tables, subscriptions, and publications may be created before Start;
// bindings activate them when Start succeeds. This lets a client lay
// out its whole namespace and then bring the transport up.
type Conn interface {
	// Table resolves the named root table. Idempotent: equal names
	// yield the same table.
	Table(name string) Table

	// SetServer directs the connection at addr. Effective only before
	// Start; empty leaves server selection to the binding.
	SetServer(addr string)

	// Start begins the client role under the given identity.
	Start(ctx context.Context, identity string) error

	// Connections reports live peers. Empty means not connected.
	Connections() []ConnInfo

	// Close stops delivery and releases the connection. In-flight
	// update callbacks complete before Close returns.
	Close(ctx context.Context) error
}

// Table is one scope of the namespace.
type Table interface {
	// Name is the full slash-joined path of this scope.
	Name() string

	// Subtable resolves a child scope. The name may itself contain
	// slashes ("targets/7").
	Subtable(name string) Table

	// Subscribe opens the subscription for key. Idempotent per key:
	// repeated calls return the same underlying subscription.
	Subscribe(key string) (Subscription, error)

	// Publisher opens a publication handle for key.
	Publisher(key string) (Publication, error)
}

// Subscription is the untyped view of one topic's feed.
type Subscription interface {
	// Load returns the latest payload; false when nothing has ever
	// arrived.
	Load() ([]byte, bool)

	// OnUpdate registers fn for every delivery on this topic. fn runs
	// on the binding's listener goroutine and must not block.
	OnUpdate(fn func(data []byte))

	// Close detaches this handle's listeners. The binding may keep the
	// underlying watch alive for other holders.
	Close() error
}

// Publication is the untyped write handle for one topic.
type Publication interface {
	// Set enqueues a write. Per-key order is preserved; delivery is
	// fire-and-forget.
	Set(data []byte) error

	Close() error
}

// Join builds a slash path from parts, skipping empty segments.
func Join(parts ...string) string {
	segs := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			segs = append(segs, p)
		}
	}
	return strings.Join(segs, "/")
}

// Split breaks a slash path into its segments.
func Split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
