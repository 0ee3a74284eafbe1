package natsfabric

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/realaaravdas/Limelight3-XNav/errors"
	"github.com/realaaravdas/Limelight3-XNav/fabric"
	"github.com/realaaravdas/Limelight3-XNav/pkg/buffer"
	"github.com/realaaravdas/Limelight3-XNav/pkg/retry"
)

var errInvalidKey = stderrors.New("invalid topic key")

// Table owns one KV bucket: a single bucket-wide watcher feeding a
// latest-value cache, and a single writer goroutine draining the
// pending-put ring. Subscriptions read the cache, so topics bound
// after values arrived still see them.
type Table struct {
	conn   *Conn
	bucket string

	// closed once the bucket exists and its watcher is running
	activeCh chan struct{}
	writeQ   *buffer.Ring[write]

	mu    sync.Mutex
	kv    jetstream.KeyValue
	cache map[string][]byte
	subs  map[string]*subEntry
}

type write struct {
	key  string
	data []byte
}

func newTable(c *Conn, bucket string) *Table {
	t := &Table{
		conn:     c,
		bucket:   bucket,
		activeCh: make(chan struct{}),
		cache:    make(map[string][]byte),
		subs:     make(map[string]*subEntry),
	}
	t.writeQ = buffer.NewRing(c.writeQueueSize, buffer.WithDropHandler(func(w write) {
		c.metrics.droppedWrite()
		c.log.Debugf("write queue full, dropped %s/%s", bucket, w.key)
	}))
	return t
}

func (t *Table) rootView() fabric.Table {
	return view{table: t}
}

// activate provisions the bucket and runs the watcher until the
// connection stops. The retry schedule cycles indefinitely so a table
// bound before the server is reachable comes up on its own.
func (t *Table) activate(ctx context.Context) {
	defer t.conn.wg.Done()

	var kv jetstream.KeyValue
	for {
		var err error
		kv, err = retry.DoWithResult(ctx, t.conn.bucketRetry, func() (jetstream.KeyValue, error) {
			return t.ensureBucket(ctx)
		})
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return
		}
		t.conn.log.Errorf("bucket %s not reachable yet: %v", t.bucket, err)
	}

	t.mu.Lock()
	t.kv = kv
	t.mu.Unlock()
	close(t.activeCh)
	t.conn.log.Printf("bucket %s active", t.bucket)

	t.conn.wg.Add(1)
	go t.writeLoop(ctx)

	t.watchLoop(ctx)
}

// ensureBucket resolves the bucket, creating it when missing. Losing
// the create race to another client is fine, the bucket just exists.
func (t *Table) ensureBucket(ctx context.Context) (jetstream.KeyValue, error) {
	js := t.conn.jetstream()

	kv, err := js.KeyValue(ctx, t.bucket)
	if err == nil {
		return kv, nil
	}
	if !stderrors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, err
	}

	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      t.bucket,
		Description: "xnav topic table",
		History:     1,
	})
	if err == nil {
		return kv, nil
	}
	if stderrors.Is(err, jetstream.ErrBucketExists) {
		return js.KeyValue(ctx, t.bucket)
	}
	return nil, err
}

func (t *Table) watchLoop(ctx context.Context) {
	for ctx.Err() == nil {
		if err := t.watch(ctx); err != nil && ctx.Err() == nil {
			t.conn.log.Errorf("watch %s interrupted, restarting: %v", t.bucket, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

func (t *Table) watch(ctx context.Context) error {
	t.mu.Lock()
	kv := t.kv
	t.mu.Unlock()

	watcher, err := kv.WatchAll(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Stop() }()

	// Entries before the nil marker replay existing bucket state; they
	// warm the cache but are not fresh publications, so listeners stay
	// quiet until the marker. Each (re)watch replays again, gated again.
	live := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case entry, ok := <-watcher.Updates():
			if !ok {
				return stderrors.New("update channel closed")
			}
			if entry == nil {
				live = true
				continue
			}
			t.dispatch(entry, live)
		}
	}
}

// dispatch folds one watch entry into the cache and, when notify is
// set, fires listeners. Deletes clear the cached value without
// notifying; readers fall back to their defaults.
func (t *Table) dispatch(entry jetstream.KeyValueEntry, notify bool) {
	key := entry.Key()

	switch entry.Operation() {
	case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
		t.mu.Lock()
		delete(t.cache, key)
		t.mu.Unlock()
		return
	}

	data := entry.Value()
	t.mu.Lock()
	t.cache[key] = data
	var fns []func([]byte)
	if notify {
		if e, ok := t.subs[key]; ok {
			for _, l := range e.listeners {
				fns = append(fns, l.fn)
			}
		}
	}
	t.mu.Unlock()

	t.conn.metrics.delivery()
	for _, fn := range fns {
		fn(data)
	}
}

func (t *Table) writeLoop(ctx context.Context) {
	defer t.conn.wg.Done()
	for {
		w, ok := t.writeQ.PopWait()
		if !ok {
			return
		}
		t.put(ctx, w)
	}
}

// put performs one KV put. Writes survive connection shutdown
// cancellation so the queue can flush during Close, bounded per put.
func (t *Table) put(ctx context.Context, w write) {
	t.mu.Lock()
	kv := t.kv
	t.mu.Unlock()

	putCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.conn.putTimeout)
	defer cancel()

	start := time.Now()
	if _, err := kv.Put(putCtx, w.key, w.data); err != nil {
		t.conn.metrics.putError()
		t.conn.log.Errorf("put %s/%s: %v", t.bucket, w.key, err)
		return
	}
	t.conn.metrics.put(time.Since(start))
}

// subscribe returns a fresh handle over the shared per-key entry. The
// entry (and with it the metrics count) is created once per key.
func (t *Table) subscribe(key string) *subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.subs[key]
	if !ok {
		e = &subEntry{}
		t.subs[key] = e
		t.conn.metrics.subscriptionAdded()
	}
	return &subscription{table: t, key: key, entry: e}
}

// kvKey maps a logical slash path onto a dotted bucket key, so the
// namespace hierarchy lands in subject tokens (targets/7/tx becomes
// targets.7.tx).
func kvKey(prefix, key string) (string, error) {
	path := fabric.Join(prefix, key)
	segs := fabric.Split(path)
	if len(segs) == 0 {
		return "", fmt.Errorf("%w: empty path", errInvalidKey)
	}
	for _, seg := range segs {
		for _, r := range seg {
			if !validKeyRune(r) {
				return "", fmt.Errorf("%w: %q", errInvalidKey, path)
			}
		}
	}
	return strings.Join(segs, "."), nil
}

func validKeyRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-', r == '_', r == '=':
		return true
	}
	return false
}

var _ fabric.Table = view{}

// view is a prefix window onto a Table. Subtables share the bucket,
// the watcher, and the write queue of their root.
type view struct {
	table  *Table
	prefix string
}

// Name implements fabric.Table.
func (v view) Name() string {
	return fabric.Join(v.table.bucket, v.prefix)
}

// Subtable implements fabric.Table.
func (v view) Subtable(name string) fabric.Table {
	return view{table: v.table, prefix: fabric.Join(v.prefix, name)}
}

// Subscribe implements fabric.Table. Repeated calls for one key share
// the underlying subscription.
func (v view) Subscribe(key string) (fabric.Subscription, error) {
	k, err := kvKey(v.prefix, key)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Table", "Subscribe", "map key")
	}
	return v.table.subscribe(k), nil
}

// Publisher implements fabric.Table.
func (v view) Publisher(key string) (fabric.Publication, error) {
	k, err := kvKey(v.prefix, key)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Table", "Publisher", "map key")
	}
	return &publication{table: v.table, key: k}, nil
}

// subEntry is the shared per-key dispatch record. Every handle for a
// key attaches its listeners here, tagged with the owning handle so a
// Close detaches only its own.
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

// Load implements fabric.Subscription, reading the latest cached value
// for the key.
func (s *subscription) Load() ([]byte, bool) {
	s.table.mu.Lock()
	defer s.table.mu.Unlock()
	data, ok := s.table.cache[s.key]
	return data, ok
}

// OnUpdate implements fabric.Subscription. fn runs on the table's
// watch goroutine.
func (s *subscription) OnUpdate(fn func(data []byte)) {
	s.table.mu.Lock()
	defer s.table.mu.Unlock()
	s.entry.listeners = append(s.entry.listeners, listener{owner: s, fn: fn})
}

// Close implements fabric.Subscription. It detaches this handle's
// listeners; other handles for the key keep theirs, and the bucket
// watcher stays up for the cache.
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

// Set implements fabric.Publication. The write is queued even before
// Start and flushed once the bucket is live; per-key order is kept and
// overflow evicts the oldest pending write.
func (p *publication) Set(data []byte) error {
	cp := append([]byte(nil), data...)
	if !p.table.writeQ.Push(write{key: p.key, data: cp}) {
		return errors.WrapFatal(errors.ErrClosed, "Publication", "Set", "enqueue write")
	}
	return nil
}

// Close implements fabric.Publication.
func (p *publication) Close() error {
	return nil
}
