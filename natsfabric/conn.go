package natsfabric

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/realaaravdas/Limelight3-XNav/errors"
	"github.com/realaaravdas/Limelight3-XNav/fabric"
	"github.com/realaaravdas/Limelight3-XNav/pkg/retry"
)

// ConnectionStatus represents the state of the fabric connection.
type ConnectionStatus int32

// Possible connection statuses.
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusClosed
)

// String returns the string representation of ConnectionStatus.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var _ fabric.Conn = (*Conn)(nil)

// Conn is a fabric.Conn over one NATS connection. Each root table maps
// to a JetStream KV bucket; logical slash paths map to dotted bucket
// keys (targets/7/tx -> targets.7.tx).
//
// Tables, subscriptions, and publications created before Start are
// activated when Start succeeds. If the server is unreachable at
// Start, the NATS layer keeps dialing in the background and bucket
// activation keeps retrying, so a robot booting before its coprocessor
// converges without intervention.
type Conn struct {
	// configuration, settled before Start
	server         string
	connectTimeout time.Duration
	reconnectWait  time.Duration
	maxReconnects  int
	writeQueueSize int
	putTimeout     time.Duration
	bucketRetry    retry.Config
	metricsReg     prometheus.Registerer

	log     Logger
	metrics *metrics

	mu       sync.Mutex
	nc       *nats.Conn
	js       jetstream.JetStream
	tables   map[string]*Table
	identity string
	started  bool
	closed   bool
	runCtx   context.Context
	runStop  context.CancelFunc

	wg     sync.WaitGroup
	status atomic.Int32
}

// New returns an unstarted connection. Configure it with options, then
// Start it under a client identity.
func New(opts ...Option) *Conn {
	c := &Conn{
		connectTimeout: 5 * time.Second,
		reconnectWait:  2 * time.Second,
		maxReconnects:  -1,
		writeQueueSize: 256,
		putTimeout:     2 * time.Second,
		bucketRetry:    retry.Quick(),
		log:            defaultLogger(),
		tables:         make(map[string]*Table),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.metrics = newMetrics(c.metricsReg)
	return c
}

// SetServer implements fabric.Conn. Effective only before Start.
func (c *Conn) SetServer(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started && addr != "" {
		c.server = addr
	}
}

// Table implements fabric.Conn. The returned table is backed by the KV
// bucket of the same name, activated at (or after) Start.
func (c *Conn) Table(name string) fabric.Table {
	c.mu.Lock()
	t, ok := c.tables[name]
	if !ok {
		t = newTable(c, name)
		c.tables[name] = t
		if c.started && !c.closed {
			c.wg.Add(1)
			go t.activate(c.runCtx)
		}
	}
	c.mu.Unlock()
	return t.rootView()
}

// Start implements fabric.Conn. It dials the configured server (NATS
// default URL when unset), builds the JetStream context, and activates
// every table created so far. Unreachable servers do not fail Start:
// the connection keeps dialing per its reconnect settings.
func (c *Conn) Start(ctx context.Context, identity string) error {
	if err := ctx.Err(); err != nil {
		return errors.WrapTransient(err, "Conn", "Start", "context check")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.WrapFatal(errors.ErrClosed, "Conn", "Start", "start client")
	}
	if c.started {
		c.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Conn", "Start", "start client")
	}
	url := c.server
	if url == "" {
		url = nats.DefaultURL
	}
	c.identity = identity
	c.mu.Unlock()

	c.setStatus(StatusConnecting)
	nc, err := nats.Connect(url, c.natsOptions(identity)...)
	if err != nil {
		c.setStatus(StatusDisconnected)
		return errors.WrapTransient(err, "Conn", "Start", "connect to "+url)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		c.setStatus(StatusDisconnected)
		return errors.WrapFatal(err, "Conn", "Start", "jetstream context")
	}

	runCtx, stop := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		stop()
		nc.Close()
		return errors.WrapFatal(errors.ErrClosed, "Conn", "Start", "start client")
	}
	c.nc = nc
	c.js = js
	c.runCtx = runCtx
	c.runStop = stop
	c.started = true
	tables := make([]*Table, 0, len(c.tables))
	for _, t := range c.tables {
		tables = append(tables, t)
	}
	c.wg.Add(len(tables))
	c.mu.Unlock()

	if nc.IsConnected() {
		c.setStatus(StatusConnected)
	}
	for _, t := range tables {
		go t.activate(runCtx)
	}

	c.log.Printf("fabric client %q started (server %s)", identity, url)
	return nil
}

// Connections implements fabric.Conn. NATS is a single-server client,
// so the list holds zero or one entries.
func (c *Conn) Connections() []fabric.ConnInfo {
	c.mu.Lock()
	nc := c.nc
	c.mu.Unlock()

	if nc == nil || !nc.IsConnected() {
		return nil
	}
	info := fabric.ConnInfo{RemoteAddr: nc.ConnectedUrl()}
	if rtt, err := nc.RTT(); err == nil {
		info.RTT = rtt
	}
	return []fabric.ConnInfo{info}
}

// Status returns the current connection status.
func (c *Conn) Status() ConnectionStatus {
	return ConnectionStatus(c.status.Load())
}

// WaitReady blocks until every table created so far is active and the
// server connection is up, or ctx expires. Mostly useful in tests and
// tools; the client library works through defaults while unready.
func (c *Conn) WaitReady(ctx context.Context) error {
	c.mu.Lock()
	started := c.started
	nc := c.nc
	tables := make([]*Table, 0, len(c.tables))
	for _, t := range c.tables {
		tables = append(tables, t)
	}
	c.mu.Unlock()

	if !started {
		return errors.WrapInvalid(errors.ErrNotStarted, "Conn", "WaitReady", "wait")
	}
	for nc != nil && !nc.IsConnected() {
		select {
		case <-ctx.Done():
			return errors.WrapTransient(ctx.Err(), "Conn", "WaitReady", "server connection")
		case <-time.After(10 * time.Millisecond):
		}
	}
	for _, t := range tables {
		select {
		case <-t.activeCh:
		case <-ctx.Done():
			return errors.WrapTransient(ctx.Err(), "Conn", "WaitReady", "bucket "+t.bucket)
		}
	}
	return nil
}

// Close implements fabric.Conn. Queued writes are flushed (bounded per
// put), watchers stop after in-flight deliveries complete, then the
// NATS connection drains. Close is idempotent.
func (c *Conn) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	nc := c.nc
	stop := c.runStop
	tables := make([]*Table, 0, len(c.tables))
	for _, t := range c.tables {
		tables = append(tables, t)
	}
	c.mu.Unlock()

	for _, t := range tables {
		t.writeQ.Close()
	}
	if stop != nil {
		stop()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		c.log.Errorf("close: workers still busy after %v", ctx.Err())
	}

	if nc != nil {
		if err := nc.Drain(); err != nil {
			nc.Close()
		}
	}
	c.setStatus(StatusClosed)
	c.log.Printf("fabric connection closed")
	return nil
}

func (c *Conn) setStatus(s ConnectionStatus) {
	c.status.Store(int32(s))
	c.metrics.setConnected(s == StatusConnected)
}

func (c *Conn) jetstream() jetstream.JetStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.js
}

func (c *Conn) natsOptions(identity string) []nats.Option {
	return []nats.Option{
		nats.Name(identity),
		nats.Timeout(c.connectTimeout),
		nats.ReconnectWait(c.reconnectWait),
		nats.MaxReconnects(c.maxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.ConnectHandler(func(nc *nats.Conn) {
			c.setStatus(StatusConnected)
			c.log.Printf("connected to %s", nc.ConnectedUrl())
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.setStatus(StatusConnected)
			c.metrics.reconnect()
			c.log.Printf("reconnected to %s", nc.ConnectedUrl())
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.setStatus(StatusReconnecting)
			if err != nil {
				c.log.Errorf("disconnected: %v", err)
			}
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if c.Status() != StatusClosed {
				c.setStatus(StatusDisconnected)
			}
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			c.log.Errorf("async error: %v", err)
		}),
	}
}
