package xnavclient

import (
	"io"
	"log/slog"
	"sync"

	"github.com/realaaravdas/Limelight3-XNav/fabric"
	"github.com/realaaravdas/Limelight3-XNav/topics"
)

// registry owns every live subscription and publication of one client:
// the eagerly bound root, offsetPoint/, and input/ scopes, plus the
// lazily grown per-tag cache. Per-tag sets are kept for the client's
// lifetime; tag id space is small and eviction would pull subscribers
// out from under concurrent readers.
type registry struct {
	conn  fabric.Conn
	table fabric.Table
	log   *slog.Logger

	root   rootSubs
	offset offsetSubs
	input  inputPubs

	mu      sync.Mutex
	tags    map[int64]*tagSubs
	closers []io.Closer
}

type rootSubs struct {
	hasTarget    *fabric.Subscriber[bool]
	numTargets   *fabric.Subscriber[int64]
	primaryTagID *fabric.Subscriber[int64]
	status       *fabric.Subscriber[string]
	fps          *fabric.Subscriber[float64]
	latencyMs    *fabric.Subscriber[float64]
	robotPose    *fabric.Subscriber[[]float64]
	tagIDs       *fabric.Subscriber[[]int64]
}

type offsetSubs struct {
	valid          *fabric.Subscriber[bool]
	tagID          *fabric.Subscriber[int64]
	x              *fabric.Subscriber[float64]
	y              *fabric.Subscriber[float64]
	z              *fabric.Subscriber[float64]
	directDistance *fabric.Subscriber[float64]
	tx             *fabric.Subscriber[float64]
	ty             *fabric.Subscriber[float64]
}

type inputPubs struct {
	turretAngle   *fabric.Publisher[float64]
	turretEnabled *fabric.Publisher[bool]
	matchMode     *fabric.Publisher[bool]
}

// tagSubs is the nine-subscriber bundle rooted at targets/<id>/.
type tagSubs struct {
	tx       *fabric.Subscriber[float64]
	ty       *fabric.Subscriber[float64]
	x        *fabric.Subscriber[float64]
	y        *fabric.Subscriber[float64]
	z        *fabric.Subscriber[float64]
	distance *fabric.Subscriber[float64]
	yaw      *fabric.Subscriber[float64]
	pitch    *fabric.Subscriber[float64]
	roll     *fabric.Subscriber[float64]
}

// binder accumulates bind results so a scope can be wired in one
// expression per field. The first failure sticks; later binds are
// skipped.
type binder struct {
	err     error
	closers []io.Closer
}

func bindSub[T fabric.Value](b *binder, t fabric.Table, e topics.Entry[T]) *fabric.Subscriber[T] {
	if b.err != nil {
		return nil
	}
	s, err := e.Subscribe(t)
	if err != nil {
		b.err = err
		return nil
	}
	b.closers = append(b.closers, s)
	return s
}

func bindPub[T fabric.Value](b *binder, t fabric.Table, e topics.Entry[T]) *fabric.Publisher[T] {
	if b.err != nil {
		return nil
	}
	p, err := e.Publish(t)
	if err != nil {
		b.err = err
		return nil
	}
	b.closers = append(b.closers, p)
	return p
}

func (b *binder) closeAll() {
	for _, c := range b.closers {
		_ = c.Close()
	}
}

// newRegistry binds the root, offsetPoint/, and input/ scopes on
// table. Bind faults surface unchanged; a partial bind is rolled back.
func newRegistry(conn fabric.Conn, table fabric.Table, log *slog.Logger) (*registry, error) {
	b := &binder{}
	offsetTable := table.Subtable(topics.OffsetScope)
	inputTable := table.Subtable(topics.InputScope)

	r := &registry{
		conn:  conn,
		table: table,
		log:   log,
		tags:  make(map[int64]*tagSubs),
		root: rootSubs{
			hasTarget:    bindSub(b, table, topics.HasTarget),
			numTargets:   bindSub(b, table, topics.NumTargets),
			primaryTagID: bindSub(b, table, topics.PrimaryTagID),
			status:       bindSub(b, table, topics.Status),
			fps:          bindSub(b, table, topics.FPS),
			latencyMs:    bindSub(b, table, topics.LatencyMs),
			robotPose:    bindSub(b, table, topics.RobotPose),
			tagIDs:       bindSub(b, table, topics.TagIDs),
		},
		offset: offsetSubs{
			valid:          bindSub(b, offsetTable, topics.OffsetValid),
			tagID:          bindSub(b, offsetTable, topics.OffsetTagID),
			x:              bindSub(b, offsetTable, topics.OffsetX),
			y:              bindSub(b, offsetTable, topics.OffsetY),
			z:              bindSub(b, offsetTable, topics.OffsetZ),
			directDistance: bindSub(b, offsetTable, topics.OffsetDirectDistance),
			tx:             bindSub(b, offsetTable, topics.OffsetTx),
			ty:             bindSub(b, offsetTable, topics.OffsetTy),
		},
		input: inputPubs{
			turretAngle:   bindPub(b, inputTable, topics.TurretAngle),
			turretEnabled: bindPub(b, inputTable, topics.TurretEnabled),
			matchMode:     bindPub(b, inputTable, topics.MatchMode),
		},
	}
	if b.err != nil {
		b.closeAll()
		return nil, b.err
	}
	r.closers = b.closers
	return r, nil
}

// tagSubs returns the subscriber set for id, building it on first
// observation. Safe for concurrent queries.
func (r *registry) tagSubs(id int64) (*tagSubs, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts, ok := r.tags[id]
	if ok {
		return ts, nil
	}

	scope := r.table.Subtable(topics.TagScope(id))
	b := &binder{}
	ts = &tagSubs{
		tx:       bindSub(b, scope, topics.TargetTx),
		ty:       bindSub(b, scope, topics.TargetTy),
		x:        bindSub(b, scope, topics.TargetX),
		y:        bindSub(b, scope, topics.TargetY),
		z:        bindSub(b, scope, topics.TargetZ),
		distance: bindSub(b, scope, topics.TargetDistance),
		yaw:      bindSub(b, scope, topics.TargetYaw),
		pitch:    bindSub(b, scope, topics.TargetPitch),
		roll:     bindSub(b, scope, topics.TargetRoll),
	}
	if b.err != nil {
		b.closeAll()
		return nil, b.err
	}
	r.tags[id] = ts
	r.closers = append(r.closers, b.closers...)
	return ts, nil
}

// close releases every subscription and publication this registry
// bound. The fabric connection itself is left alone.
func (r *registry) close() {
	r.mu.Lock()
	closers := r.closers
	r.closers = nil
	r.mu.Unlock()
	for _, c := range closers {
		_ = c.Close()
	}
}
