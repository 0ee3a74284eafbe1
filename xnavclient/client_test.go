package xnavclient

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realaaravdas/Limelight3-XNav/errors"
	"github.com/realaaravdas/Limelight3-XNav/fabric"
	"github.com/realaaravdas/Limelight3-XNav/fabric/fabrictest"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T) (*Client, *fabrictest.Conn) {
	t.Helper()
	conn := fabrictest.NewConn()
	client, err := New(WithConn(conn), WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, client.Init(context.Background(), "nats://10.0.0.2:4222"))
	return client, conn
}

func TestNew_RejectsEmptyTable(t *testing.T) {
	_, err := New(WithTable(""))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestInit_Idempotent(t *testing.T) {
	client, conn := newTestClient(t)

	require.NoError(t, client.Init(context.Background(), "nats://10.0.0.2:4222"))
	require.NoError(t, client.Init(context.Background(), ""))

	assert.Equal(t, 1, conn.StartCalls())
	server, identity := conn.StartedWith()
	assert.Equal(t, "nats://10.0.0.2:4222", server)
	assert.Equal(t, "XNavLib", identity)
}

// Queries on a client that was never initialized observe the declared
// defaults and do not panic.
func TestQueries_BeforeInit(t *testing.T) {
	client, err := New(WithLogger(quietLogger()))
	require.NoError(t, err)

	assert.False(t, client.HasTarget())
	assert.Equal(t, 0, client.NumTargets())
	assert.Empty(t, client.TagIDs())
	assert.Equal(t, TagResult{ID: -1}, client.PrimaryTarget())
	got, ok := client.Target(7)
	assert.False(t, ok)
	assert.Equal(t, TagResult{ID: -1}, got)
	assert.Empty(t, client.AllTargets())
	assert.Equal(t, RobotPose{}, client.RobotPose())
	assert.Equal(t, OffsetPoint{TagID: -1}, client.OffsetPoint())
	assert.Equal(t, SystemStatus{Status: "unknown"}, client.Status())
	assert.False(t, client.IsConnected())

	// setters are silent no-ops
	client.SetTurretAngle(12.5)
	client.SetTurretEnabled(true)
	client.SetMatchMode(true)
}

// Queries immediately after Init, with no traffic yet, observe the
// same defaults except for connectivity.
func TestQueries_NoTrafficAfterInit(t *testing.T) {
	client, _ := newTestClient(t)

	assert.False(t, client.HasTarget())
	assert.Equal(t, 0, client.NumTargets())
	assert.Empty(t, client.TagIDs())
	assert.Equal(t, TagResult{ID: -1}, client.PrimaryTarget())
	assert.Equal(t, RobotPose{}, client.RobotPose())
	assert.Equal(t, OffsetPoint{TagID: -1}, client.OffsetPoint())
	assert.Equal(t, SystemStatus{Status: "unknown", Connected: true}, client.Status())
	assert.True(t, client.IsConnected())
}

func TestPrimaryTarget_SingleTag(t *testing.T) {
	client, conn := newTestClient(t)

	fabrictest.Put(t, conn, "XNav/hasTarget", true)
	fabrictest.Put(t, conn, "XNav/numTargets", int64(1))
	fabrictest.Put(t, conn, "XNav/tagIds", []int64{7})
	fabrictest.Put(t, conn, "XNav/primaryTagId", int64(7))
	fabrictest.Put(t, conn, "XNav/targets/7/tx", 3.2)
	fabrictest.Put(t, conn, "XNav/targets/7/ty", -1.1)
	fabrictest.Put(t, conn, "XNav/targets/7/x", 0.0)
	fabrictest.Put(t, conn, "XNav/targets/7/y", 0.0)
	fabrictest.Put(t, conn, "XNav/targets/7/z", 2.5)
	fabrictest.Put(t, conn, "XNav/targets/7/distance", 2.5)
	fabrictest.Put(t, conn, "XNav/targets/7/yaw", 0.4)
	fabrictest.Put(t, conn, "XNav/targets/7/pitch", 0.0)
	fabrictest.Put(t, conn, "XNav/targets/7/roll", 0.0)

	assert.True(t, client.HasTarget())
	assert.Equal(t, 1, client.NumTargets())
	assert.Equal(t, []int{7}, client.TagIDs())

	want := TagResult{ID: 7, Tx: 3.2, Ty: -1.1, Z: 2.5, Distance: 2.5, Yaw: 0.4}
	assert.Equal(t, want, client.PrimaryTarget())

	got, ok := client.Target(7)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

// When no tag is designated primary, the default record comes back
// even while detections are visible.
func TestPrimaryTarget_NoneDesignated(t *testing.T) {
	client, conn := newTestClient(t)

	fabrictest.Put(t, conn, "XNav/tagIds", []int64{4})
	fabrictest.Put(t, conn, "XNav/primaryTagId", int64(-1))

	assert.Equal(t, TagResult{ID: -1}, client.PrimaryTarget())
}

func TestTarget_MembershipMiss(t *testing.T) {
	client, conn := newTestClient(t)

	fabrictest.Put(t, conn, "XNav/tagIds", []int64{7})

	got, ok := client.Target(3)
	assert.False(t, ok)
	assert.Equal(t, TagResult{ID: -1}, got)
}

// A tag that slipped out of the current frame reads as missing even
// though its cached scalars are still present.
func TestTarget_StaleTagNotVisible(t *testing.T) {
	client, conn := newTestClient(t)

	fabrictest.Put(t, conn, "XNav/tagIds", []int64{7})
	fabrictest.Put(t, conn, "XNav/targets/7/tx", 3.2)
	_, ok := client.Target(7)
	require.True(t, ok)

	fabrictest.Put(t, conn, "XNav/tagIds", []int64{2})
	_, ok = client.Target(7)
	assert.False(t, ok)

	// the tag coming back into view reads its retained subscribers
	fabrictest.Put(t, conn, "XNav/tagIds", []int64{7, 2})
	got, ok := client.Target(7)
	require.True(t, ok)
	assert.Equal(t, 3.2, got.Tx)
}

func TestAllTargets_OrderFollowsTagIDs(t *testing.T) {
	client, conn := newTestClient(t)

	fabrictest.Put(t, conn, "XNav/tagIds", []int64{12, 3, 7})
	fabrictest.Put(t, conn, "XNav/targets/3/distance", 1.5)

	all := client.AllTargets()
	require.Len(t, all, 3)
	assert.Equal(t, []int{12, 3, 7}, []int{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, 1.5, all[1].Distance)
}

func TestRobotPose_Valid(t *testing.T) {
	client, conn := newTestClient(t)

	fabrictest.Put(t, conn, "XNav/robotPose", []float64{1.0, 2.0, 0.0, 0.0, 0.0, 90.0})

	want := RobotPose{X: 1.0, Y: 2.0, YawDeg: 90.0, Valid: true}
	assert.Equal(t, want, client.RobotPose())
}

func TestRobotPose_ShortSequence(t *testing.T) {
	client, conn := newTestClient(t)

	fabrictest.Put(t, conn, "XNav/robotPose", []float64{1.0, 2.0, 0.0})

	assert.Equal(t, RobotPose{}, client.RobotPose())
}

// Elements past the sixth are ignored rather than rejected.
func TestRobotPose_ExtraElements(t *testing.T) {
	client, conn := newTestClient(t)

	fabrictest.Put(t, conn, "XNav/robotPose", []float64{1, 2, 3, 4, 5, 6, 99, 99})

	want := RobotPose{X: 1, Y: 2, Z: 3, Roll: 4, Pitch: 5, YawDeg: 6, Valid: true}
	assert.Equal(t, want, client.RobotPose())
}

func TestOffsetPoint_Invalid(t *testing.T) {
	client, conn := newTestClient(t)

	fabrictest.Put(t, conn, "XNav/offsetPoint/valid", false)

	got := client.OffsetPoint()
	assert.False(t, got.Valid)
	assert.Equal(t, -1, got.TagID)
}

// Numeric fields are copied from the feed even when the point is
// flagged invalid.
func TestOffsetPoint_CopiedAsPublished(t *testing.T) {
	client, conn := newTestClient(t)

	fabrictest.Put(t, conn, "XNav/offsetPoint/valid", false)
	fabrictest.Put(t, conn, "XNav/offsetPoint/tag_id", int64(5))
	fabrictest.Put(t, conn, "XNav/offsetPoint/x", 0.25)
	fabrictest.Put(t, conn, "XNav/offsetPoint/directDistance", 3.75)

	got := client.OffsetPoint()
	assert.False(t, got.Valid)
	assert.Equal(t, 5, got.TagID)
	assert.Equal(t, 0.25, got.X)
	assert.Equal(t, 3.75, got.DirectDistance)
}

func TestStatus_Snapshot(t *testing.T) {
	client, conn := newTestClient(t)

	fabrictest.Put(t, conn, "XNav/status", "running")
	fabrictest.Put(t, conn, "XNav/fps", 29.7)
	fabrictest.Put(t, conn, "XNav/latencyMs", 23.4)
	fabrictest.Put(t, conn, "XNav/numTargets", int64(2))

	want := SystemStatus{
		Status:     "running",
		FPS:        29.7,
		LatencyMs:  23.4,
		NumTargets: 2,
		Connected:  true,
	}
	assert.Equal(t, want, client.Status())
}

func TestIsConnected_TracksPeers(t *testing.T) {
	client, conn := newTestClient(t)
	assert.True(t, client.IsConnected())

	conn.SetPeers()
	assert.False(t, client.IsConnected())
	assert.False(t, client.Status().Connected)

	conn.SetPeers(fabric.ConnInfo{RemoteAddr: "mem://local"})
	assert.True(t, client.IsConnected())
}

func TestSetters_Publish(t *testing.T) {
	client, conn := newTestClient(t)

	client.SetTurretAngle(45.0)
	client.SetTurretEnabled(true)
	client.SetMatchMode(false)

	assert.Equal(t, []float64{45.0}, fabrictest.Published[float64](t, conn, "XNav/input/turretAngle"))
	assert.Equal(t, []bool{true}, fabrictest.Published[bool](t, conn, "XNav/input/turretEnabled"))
	assert.Equal(t, []bool{false}, fabrictest.Published[bool](t, conn, "XNav/input/matchMode"))
}

// The published angle survives the wire bit-for-bit, including values
// with no short decimal form.
func TestSetTurretAngle_BitExact(t *testing.T) {
	client, conn := newTestClient(t)

	angle := 0.1 + 0.2 // 0.30000000000000004
	client.SetTurretAngle(angle)

	got := fabrictest.Published[float64](t, conn, "XNav/input/turretAngle")
	require.Len(t, got, 1)
	assert.Equal(t, math.Float64bits(angle), math.Float64bits(got[0]))
}

func TestOnNewTargets_DeliversSnapshot(t *testing.T) {
	client, conn := newTestClient(t)

	var got [][]TagResult
	client.OnNewTargets(func(targets []TagResult) {
		got = append(got, targets)
	})

	fabrictest.Put(t, conn, "XNav/targets/7/distance", 2.5)
	require.Empty(t, got, "per-tag traffic alone does not notify")

	fabrictest.Put(t, conn, "XNav/tagIds", []int64{7})
	require.Len(t, got, 1)
	require.Len(t, got[0], 1)
	assert.Equal(t, 7, got[0][0].ID)
	assert.Equal(t, 2.5, got[0][0].Distance)
}

// A callback registered before Init is live as soon as the transport
// starts delivering.
func TestOnNewTargets_RegisteredBeforeInit(t *testing.T) {
	conn := fabrictest.NewConn()
	client, err := New(WithConn(conn), WithLogger(quietLogger()))
	require.NoError(t, err)

	var calls int
	client.OnNewTargets(func([]TagResult) { calls++ })

	require.NoError(t, client.Init(context.Background(), ""))
	fabrictest.Put(t, conn, "XNav/tagIds", []int64{7})
	assert.Equal(t, 1, calls)
}

func TestOnNewTargets_ReplaceAndUnregister(t *testing.T) {
	client, conn := newTestClient(t)

	var first, second int
	client.OnNewTargets(func([]TagResult) { first++ })
	fabrictest.Put(t, conn, "XNav/tagIds", []int64{1})
	require.Equal(t, 1, first)

	client.OnNewTargets(func([]TagResult) { second++ })
	fabrictest.Put(t, conn, "XNav/tagIds", []int64{1, 2})
	assert.Equal(t, 1, first, "replaced callback no longer fires")
	assert.Equal(t, 1, second)

	client.OnNewTargets(nil)
	fabrictest.Put(t, conn, "XNav/tagIds", []int64{3})
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
}

func TestClose_InjectedConnKeptRunning(t *testing.T) {
	client, conn := newTestClient(t)

	require.NoError(t, client.Close(context.Background()))
	require.NoError(t, client.Close(context.Background()))

	assert.NotEmpty(t, conn.Connections(), "shared transport keeps running")
	assert.False(t, client.IsConnected(), "closed client reads defaults")
	assert.Equal(t, SystemStatus{Status: "unknown"}, client.Status())

	err := client.Init(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

// After Close, new-target deliveries no longer reach the callback.
func TestClose_DetachesCallback(t *testing.T) {
	client, conn := newTestClient(t)

	var calls int
	client.OnNewTargets(func([]TagResult) { calls++ })
	fabrictest.Put(t, conn, "XNav/tagIds", []int64{1})
	require.Equal(t, 1, calls)

	require.NoError(t, client.Close(context.Background()))
	fabrictest.Put(t, conn, "XNav/tagIds", []int64{2})
	assert.Equal(t, 1, calls)
}
