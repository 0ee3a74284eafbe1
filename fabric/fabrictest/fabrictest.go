// Package fabrictest provides an in-memory fabric binding for unit
// tests. Deliveries are synchronous, publications are captured per
// key, and subscription creation is counted so tests can assert that
// repeated binds reuse existing subscriptions.
package fabrictest

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/realaaravdas/Limelight3-XNav/fabric"
)

var (
	_ fabric.Conn  = (*Conn)(nil)
	_ fabric.Table = (*Table)(nil)
)

// Conn is an in-memory fabric.Conn.
type Conn struct {
	mu         sync.Mutex
	tables     map[string]*Table
	peers      []fabric.ConnInfo
	peersSet   bool
	server     string
	identity   string
	started    bool
	closed     bool
	startCalls int

	subCreates atomic.Int64
}

// NewConn returns an empty in-memory connection.
func NewConn() *Conn {
	return &Conn{tables: make(map[string]*Table)}
}

// Table implements fabric.Conn.
func (c *Conn) Table(name string) fabric.Table {
	return c.table(name)
}

func (c *Conn) table(path string) *Table {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[path]
	if !ok {
		t = &Table{
			conn:   c,
			path:   path,
			values: make(map[string][]byte),
			subs:   make(map[string]*subEntry),
			pubs:   make(map[string][][]byte),
		}
		c.tables[path] = t
	}
	return t
}

// SetServer implements fabric.Conn.
func (c *Conn) SetServer(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.server = addr
}

// Start implements fabric.Conn. Unless SetPeers was called first, one
// synthetic peer appears so liveness reads true after Start.
func (c *Conn) Start(_ context.Context, identity string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startCalls++
	c.started = true
	c.identity = identity
	if !c.peersSet {
		c.peers = []fabric.ConnInfo{{RemoteAddr: "mem://local"}}
	}
	return nil
}

// Connections implements fabric.Conn.
func (c *Conn) Connections() []fabric.ConnInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started || c.closed {
		return nil
	}
	out := make([]fabric.ConnInfo, len(c.peers))
	copy(out, c.peers)
	return out
}

// Close implements fabric.Conn.
func (c *Conn) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.peers = nil
	return nil
}

// SetPeers overrides the reported peer list. Call with no arguments to
// simulate a connection with no live peers.
func (c *Conn) SetPeers(peers ...fabric.ConnInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peersSet = true
	c.peers = peers
}

// StartedWith reports the server and identity the connection was
// started with.
func (c *Conn) StartedWith() (server, identity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.server, c.identity
}

// StartCalls reports how many times Start ran.
func (c *Conn) StartCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startCalls
}

// SubscriptionCount reports how many distinct subscriptions have been
// created across all tables.
func (c *Conn) SubscriptionCount() int64 {
	return c.subCreates.Load()
}

func (c *Conn) resolve(path string) (*Table, string) {
	segs := fabric.Split(path)
	if len(segs) == 0 {
		return c.table(""), ""
	}
	key := segs[len(segs)-1]
	return c.table(strings.Join(segs[:len(segs)-1], "/")), key
}

// Table is an in-memory fabric.Table.
type Table struct {
	conn *Conn
	path string

	mu     sync.Mutex
	values map[string][]byte
	subs   map[string]*subEntry
	pubs   map[string][][]byte
}

// Name implements fabric.Table.
func (t *Table) Name() string {
	return t.path
}

// Subtable implements fabric.Table.
func (t *Table) Subtable(name string) fabric.Table {
	return t.conn.table(fabric.Join(t.path, name))
}

// Subscribe implements fabric.Table. Repeated calls for the same key
// share the same underlying subscription; only the first call counts
// toward SubscriptionCount.
func (t *Table) Subscribe(key string) (fabric.Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.subs[key]
	if !ok {
		e = &subEntry{}
		t.subs[key] = e
		t.conn.subCreates.Add(1)
	}
	return &subscription{table: t, key: key, entry: e}, nil
}

// Publisher implements fabric.Table.
func (t *Table) Publisher(key string) (fabric.Publication, error) {
	return &publication{table: t, key: key}, nil
}

// put stores data as the latest value for key, optionally records it
// in the publication history, and fires listeners synchronously.
func (t *Table) put(key string, data []byte, record bool) {
	cp := append([]byte(nil), data...)
	t.mu.Lock()
	t.values[key] = cp
	if record {
		t.pubs[key] = append(t.pubs[key], cp)
	}
	var fns []func([]byte)
	if e, ok := t.subs[key]; ok {
		for _, l := range e.listeners {
			fns = append(fns, l.fn)
		}
	}
	t.mu.Unlock()
	for _, fn := range fns {
		fn(cp)
	}
}

func (t *Table) history(key string) [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.pubs[key]))
	copy(out, t.pubs[key])
	return out
}

// subEntry is the shared per-key listener record; handles tag their
// listeners so Close detaches only their own.
type subEntry struct {
	// guarded by table.mu
	listeners []listener
}

type listener struct {
	owner *subscription
	fn    func([]byte)
}

type subscription struct {
	table *Table
	key   string
	entry *subEntry
}

func (s *subscription) Load() ([]byte, bool) {
	s.table.mu.Lock()
	defer s.table.mu.Unlock()
	data, ok := s.table.values[s.key]
	return data, ok
}

func (s *subscription) OnUpdate(fn func([]byte)) {
	s.table.mu.Lock()
	defer s.table.mu.Unlock()
	s.entry.listeners = append(s.entry.listeners, listener{owner: s, fn: fn})
}

func (s *subscription) Close() error {
	s.table.mu.Lock()
	defer s.table.mu.Unlock()
	kept := s.entry.listeners[:0]
	for _, l := range s.entry.listeners {
		if l.owner != s {
			kept = append(kept, l)
		}
	}
	s.entry.listeners = kept
	return nil
}

type publication struct {
	table *Table
	key   string
}

// Set records the publication and loops it back to subscribers, the
// way a shared fabric makes a client's own writes visible to it.
func (p *publication) Set(data []byte) error {
	p.table.put(p.key, data, true)
	return nil
}

func (p *publication) Close() error {
	return nil
}

// Put publishes a typed value at the slash path rooted at the table
// name, e.g. Put(t, conn, "XNav/targets/7/tx", 3.2). The last segment
// is the key; everything before it names the table. Listeners fire
// synchronously before Put returns.
func Put[T fabric.Value](t testing.TB, c *Conn, path string, v T) {
	t.Helper()
	data, err := fabric.Encode(v)
	require.NoError(t, err)
	table, key := c.resolve(path)
	table.put(key, data, false)
}

// Published returns every value published on path through a
// Publication handle, oldest first.
func Published[T fabric.Value](t testing.TB, c *Conn, path string) []T {
	t.Helper()
	table, key := c.resolve(path)
	raw := table.history(key)
	out := make([]T, 0, len(raw))
	for _, data := range raw {
		var def T
		out = append(out, fabric.Decode(data, def))
	}
	return out
}

// Raw returns the latest raw payload stored at path, if any.
func Raw(t testing.TB, c *Conn, path string) ([]byte, bool) {
	t.Helper()
	table, key := c.resolve(path)
	table.mu.Lock()
	defer table.mu.Unlock()
	data, ok := table.values[key]
	return data, ok
}
