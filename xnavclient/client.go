package xnavclient

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/realaaravdas/Limelight3-XNav/errors"
	"github.com/realaaravdas/Limelight3-XNav/fabric"
	"github.com/realaaravdas/Limelight3-XNav/natsfabric"
	"github.com/realaaravdas/Limelight3-XNav/topics"
)

// Option configures a Client.
type Option func(*Client)

// WithTable overrides the root table name (default "XNav"). It must
// match the table the coprocessor publishes under.
func WithTable(name string) Option {
	return func(c *Client) {
		c.table = name
	}
}

// WithConn injects a fabric connection instead of the default NATS
// binding. The connection may be shared with other clients; Close
// leaves an injected connection running.
func WithConn(conn fabric.Conn) Option {
	return func(c *Client) {
		c.conn = conn
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log.With("component", "xnavclient")
		}
	}
}

// Client is the robot-side facade over the XNav topic namespace. All
// queries are reads of in-memory subscriber caches and return declared
// defaults until data arrives; they never fail and never block on I/O.
// Input setters are fire-and-forget.
//
// Queries and setters are safe from any goroutine, including before
// Init, where they observe defaults.
type Client struct {
	table string
	log   *slog.Logger

	initMu   sync.Mutex
	conn     fabric.Conn
	ownsConn bool
	inited   bool
	closed   bool

	reg atomic.Pointer[registry]

	cbMu  sync.Mutex
	onNew func([]TagResult)
}

// New builds an uninitialized client. Call Init before expecting live
// data; queries on an uninitialized client return defaults.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		table: topics.DefaultTable,
		log:   slog.Default().With("component", "xnavclient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.table == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Client", "New", "resolve table name")
	}
	return c, nil
}

// Init binds the namespace and starts the transport under the XNavLib
// identity. A non-empty server directs the transport at that address;
// empty leaves server selection to the transport. Init is idempotent;
// repeated calls after a success return nil.
//
// Init returns promptly even when the server is unreachable: the
// default binding keeps connecting in the background and queries serve
// defaults until data flows. Bind faults surface unchanged.
func (c *Client) Init(ctx context.Context, server string) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.closed {
		return errors.WrapFatal(errors.ErrClosed, "Client", "Init", "initialize")
	}
	if c.inited {
		return nil
	}
	if c.conn == nil {
		c.conn = natsfabric.New(natsfabric.WithLogger(natsfabric.NewSlogLogger(c.log)))
		c.ownsConn = true
	}

	reg, err := newRegistry(c.conn, c.conn.Table(c.table), c.log)
	if err != nil {
		return err
	}
	// The registry and the tagIds hook go in before Start so a frame
	// landing while the transport comes up already reaches OnNewTargets.
	c.reg.Store(reg)
	reg.root.tagIDs.OnUpdate(func([]int64) {
		c.notifyNewTargets()
	})
	if server != "" {
		c.conn.SetServer(server)
	}
	// A connection shared across clients is started by the first one;
	// later Inits just observe it running.
	if err := c.conn.Start(ctx, topics.ClientIdentity); err != nil &&
		!stderrors.Is(err, errors.ErrAlreadyStarted) {
		c.reg.Store(nil)
		reg.close()
		return err
	}

	c.inited = true
	c.log.Info("client initialized", "table", c.table, "identity", topics.ClientIdentity)
	return nil
}

// Close releases the client's subscriptions and publications. A
// connection owned by the client shuts down; an injected one keeps
// running for its other users. Close is idempotent.
func (c *Client) Close(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	if reg := c.reg.Load(); reg != nil {
		reg.close()
		c.reg.Store(nil)
	}
	c.cbMu.Lock()
	c.onNew = nil
	c.cbMu.Unlock()

	if c.conn != nil && c.ownsConn {
		return c.conn.Close(ctx)
	}
	return nil
}

func (c *Client) registry() *registry {
	return c.reg.Load()
}

// HasTarget reports whether the coprocessor currently sees any tag.
func (c *Client) HasTarget() bool {
	reg := c.registry()
	if reg == nil {
		return false
	}
	return reg.root.hasTarget.Get()
}

// NumTargets returns the current detection count.
func (c *Client) NumTargets() int {
	reg := c.registry()
	if reg == nil {
		return 0
	}
	return int(reg.root.numTargets.Get())
}

// TagIDs returns the currently visible tag ids in publication order.
func (c *Client) TagIDs() []int {
	reg := c.registry()
	if reg == nil {
		return nil
	}
	ids := reg.tagIDList()
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}

// PrimaryTarget returns the detection the coprocessor designated as
// primary, or the default record (id -1) when there is none.
func (c *Client) PrimaryTarget() TagResult {
	reg := c.registry()
	if reg == nil {
		return defaultTagResult()
	}
	return reg.assembleTag(reg.root.primaryTagID.Get())
}

// Target returns the detection for id. The second result is false when
// id is not in the current tagIds list, even if the tag was visible on
// an earlier frame; the record is then the default (id -1).
func (c *Client) Target(id int) (TagResult, bool) {
	reg := c.registry()
	if reg == nil || !reg.hasTag(int64(id)) {
		return defaultTagResult(), false
	}
	return reg.assembleTag(int64(id)), true
}

// AllTargets returns one record per visible tag, in tagIds order.
func (c *Client) AllTargets() []TagResult {
	reg := c.registry()
	if reg == nil {
		return nil
	}
	return reg.allTargets()
}

// RobotPose returns the latest field-centric pose estimate.
func (c *Client) RobotPose() RobotPose {
	reg := c.registry()
	if reg == nil {
		return RobotPose{}
	}
	return reg.assembleRobotPose()
}

// OffsetPoint returns the configured offset-point solution.
func (c *Client) OffsetPoint() OffsetPoint {
	reg := c.registry()
	if reg == nil {
		return OffsetPoint{TagID: topics.NoTagID}
	}
	return reg.assembleOffsetPoint()
}

// Status returns the coprocessor telemetry snapshot.
func (c *Client) Status() SystemStatus {
	reg := c.registry()
	if reg == nil {
		return SystemStatus{Status: topics.StatusUnknown}
	}
	return SystemStatus{
		Status:     reg.root.status.Get(),
		FPS:        reg.root.fps.Get(),
		LatencyMs:  reg.root.latencyMs.Get(),
		NumTargets: int(reg.root.numTargets.Get()),
		Connected:  len(reg.conn.Connections()) > 0,
	}
}

// IsConnected reports whether the transport has at least one live peer
// at the moment of the call.
func (c *Client) IsConnected() bool {
	reg := c.registry()
	if reg == nil {
		return false
	}
	return len(reg.conn.Connections()) > 0
}

// SetTurretAngle publishes the turret angle in degrees, positive CCW
// viewed from above.
func (c *Client) SetTurretAngle(deg float64) {
	reg := c.registry()
	if reg == nil {
		return
	}
	if err := reg.input.turretAngle.Set(deg); err != nil {
		c.log.Debug("turretAngle publish failed", "error", err)
	}
}

// SetTurretEnabled publishes the turret-compensation enable flag.
func (c *Client) SetTurretEnabled(on bool) {
	reg := c.registry()
	if reg == nil {
		return
	}
	if err := reg.input.turretEnabled.Set(on); err != nil {
		c.log.Debug("turretEnabled publish failed", "error", err)
	}
}

// SetMatchMode publishes the match performance mode flag.
func (c *Client) SetMatchMode(on bool) {
	reg := c.registry()
	if reg == nil {
		return
	}
	if err := reg.input.matchMode.Set(on); err != nil {
		c.log.Debug("matchMode publish failed", "error", err)
	}
}

// OnNewTargets registers fn, invoked with the current AllTargets
// snapshot every time the coprocessor publishes a fresh tagIds list.
// Registering replaces any previous callback; nil unregisters. fn runs
// on the transport listener goroutine and must not block; its
// invocation is the library's only cross-field consistency boundary.
func (c *Client) OnNewTargets(fn func([]TagResult)) {
	c.cbMu.Lock()
	c.onNew = fn
	c.cbMu.Unlock()
}

func (c *Client) notifyNewTargets() {
	c.cbMu.Lock()
	fn := c.onNew
	c.cbMu.Unlock()
	if fn == nil {
		return
	}
	// A delivery racing Close may observe the released registry; the
	// callback then sees an empty snapshot, which callers already
	// handle as "nothing visible".
	fn(c.AllTargets())
}
