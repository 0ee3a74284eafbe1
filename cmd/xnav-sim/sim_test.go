package main

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realaaravdas/Limelight3-XNav/fabric/fabrictest"
	"github.com/realaaravdas/Limelight3-XNav/topics"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// noiseless zeroes the stochastic knobs so geometry asserts exactly.
func noiseless(scene Scene) Scene {
	scene.NoiseDeg = 0
	scene.NoiseM = 0
	scene.PoseDropout = 0
	return scene
}

func newTestSimulator(t *testing.T, scene Scene) (*simulator, *fabrictest.Conn) {
	t.Helper()
	conn := fabrictest.NewConn()
	sim, err := newSimulator(conn.Table(topics.DefaultTable), scene, quietLogger(), 1)
	require.NoError(t, err)
	return sim, conn
}

// Test world-to-camera projection for the cardinal cases.
func TestToCameraFrame(t *testing.T) {
	// Camera at origin facing +x, target dead ahead and above.
	x, y, z := toCameraFrame(3, 0, 1, 0, 0, 0.5, 0)
	assert.InDelta(t, 0.0, x, 1e-9)
	assert.InDelta(t, -0.5, y, 1e-9) // up is negative y
	assert.InDelta(t, 3.0, z, 1e-9)

	// Target to the camera's left (world +y while facing +x).
	x, _, z = toCameraFrame(2, 1, 0.5, 0, 0, 0.5, 0)
	assert.InDelta(t, -1.0, x, 1e-9)
	assert.InDelta(t, 2.0, z, 1e-9)

	// After a quarter turn the same lateral offset lands on the right.
	x, _, z = toCameraFrame(1, 2, 0.5, 0, 0, 0.5, math.Pi/2)
	assert.InDelta(t, 1.0, x, 1e-9)
	assert.InDelta(t, 2.0, z, 1e-9)
}

// Test angle wrapping to (-180, 180].
func TestNormDeg(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{180, 180},
		{-180, 180},
		{190, -170},
		{-190, 170},
		{360, 0},
		{540, 180},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, normDeg(tt.in), 1e-9, "normDeg(%v)", tt.in)
	}
}

// Test observation geometry for a tag straight ahead of the camera.
func TestObserve_Geometry(t *testing.T) {
	sim, _ := newTestSimulator(t, noiseless(defaultScene()))

	tag := SceneTag{ID: 7, X: 4, Y: 0, Z: 1.5, Facing: 180}
	obs, ok := sim.observe(tag, 0, 0, 0.5, 0)
	require.True(t, ok)

	assert.InDelta(t, 0.0, obs.tx, 1e-9)
	assert.InDelta(t, deg(math.Atan2(1, 4)), obs.ty, 1e-9) // above center
	assert.InDelta(t, math.Sqrt(17), obs.distance, 1e-9)
	assert.InDelta(t, 0.0, obs.yaw, 1e-9) // tag faces the camera square on
}

// Test tags behind the camera, outside the FOV, or out of range are
// culled.
func TestObserve_Culls(t *testing.T) {
	sim, _ := newTestSimulator(t, noiseless(defaultScene()))

	_, ok := sim.observe(SceneTag{ID: 1, X: -2, Y: 0, Z: 1}, 0, 0, 0.5, 0)
	assert.False(t, ok, "behind the camera")

	// tx of roughly -72 degrees against a 70 degree FOV.
	_, ok = sim.observe(SceneTag{ID: 2, X: 1, Y: 3, Z: 0.5}, 0, 0, 0.5, 0)
	assert.False(t, ok, "outside the field of view")

	_, ok = sim.observe(SceneTag{ID: 3, X: 20, Y: 0, Z: 0.5}, 0, 0, 0.5, 0)
	assert.False(t, ok, "out of range")
}

// Test the closest visible tag is designated primary.
func TestCompute_PrimaryIsClosest(t *testing.T) {
	scene := noiseless(Scene{
		Tags: []SceneTag{
			{ID: 3, X: 6, Y: 0, Z: 1, Facing: 180},
			{ID: 7, X: 3, Y: 0, Z: 1, Facing: 180},
		},
		Orbit:  Orbit{Radius: 0.001, Period: Duration(10 * time.Second)},
		Camera: Camera{Height: 0.5, FOVDeg: 70, Range: 10},
	})
	sim, _ := newTestSimulator(t, scene)

	f := sim.compute(0, 30)
	require.Len(t, f.obs, 2)
	assert.Equal(t, int64(7), f.primary)
	require.Len(t, f.pose, topics.RobotPoseLen)
	assert.Greater(t, f.fps, 0.0)
}

// Test a dropout of 1 suppresses the pose every frame.
func TestCompute_PoseDropout(t *testing.T) {
	scene := noiseless(defaultScene())
	scene.PoseDropout = 1
	sim, _ := newTestSimulator(t, scene)

	for range 20 {
		assert.Nil(t, sim.compute(time.Second, 30).pose)
	}
}

// Test one populated frame lands on the wire with the coprocessor's
// topic layout.
func TestPublishFrame_SingleTag(t *testing.T) {
	sim, conn := newTestSimulator(t, noiseless(defaultScene()))

	f := frame{
		obs: []observation{{
			id: 7, tx: 3.2, ty: -1.1, x: 0.2, y: -0.1, z: 2.5,
			distance: 2.51, yaw: 0.4, pitch: 0.1, roll: -0.2,
		}},
		primary: 7,
		pose:    []float64{1.5, 2.5, 0, 0, 0, 12},
		offset:  &offsetObs{tagID: 7, x: 0.3, y: -0.2, z: 2.4, direct: 2.43, tx: 7.1, ty: -4.7},
		fps:     30.2,
		latency: 16.4,
	}
	sim.publishFrame(f)

	assert.Equal(t, []bool{true}, fabrictest.Published[bool](t, conn, "XNav/hasTarget"))
	assert.Equal(t, []int64{1}, fabrictest.Published[int64](t, conn, "XNav/numTargets"))
	assert.Equal(t, [][]int64{{7}}, fabrictest.Published[[]int64](t, conn, "XNav/tagIds"))
	assert.Equal(t, []int64{7}, fabrictest.Published[int64](t, conn, "XNav/primaryTagId"))
	assert.Equal(t, []float64{3.2}, fabrictest.Published[float64](t, conn, "XNav/targets/7/tx"))
	assert.Equal(t, []float64{2.51}, fabrictest.Published[float64](t, conn, "XNav/targets/7/distance"))
	assert.Equal(t, [][]float64{{1.5, 2.5, 0, 0, 0, 12}}, fabrictest.Published[[]float64](t, conn, "XNav/robotPose"))
	assert.Equal(t, []bool{true}, fabrictest.Published[bool](t, conn, "XNav/offsetPoint/valid"))
	assert.Equal(t, []int64{7}, fabrictest.Published[int64](t, conn, "XNav/offsetPoint/tag_id"))
	assert.Equal(t, []float64{2.43}, fabrictest.Published[float64](t, conn, "XNav/offsetPoint/directDistance"))

	// The tag that was not observed publishes nothing.
	assert.Empty(t, fabrictest.Published[float64](t, conn, "XNav/targets/3/tx"))
}

// Test an empty frame publishes defaults: no targets, a zeroed pose,
// and only the offset valid flag.
func TestPublishFrame_Empty(t *testing.T) {
	sim, conn := newTestSimulator(t, noiseless(defaultScene()))

	sim.publishFrame(frame{primary: topics.NoTagID, fps: 29.8, latency: 15})

	assert.Equal(t, []bool{false}, fabrictest.Published[bool](t, conn, "XNav/hasTarget"))
	assert.Equal(t, []int64{0}, fabrictest.Published[int64](t, conn, "XNav/numTargets"))
	assert.Equal(t, [][]int64{{}}, fabrictest.Published[[]int64](t, conn, "XNav/tagIds"))
	assert.Equal(t, []int64{-1}, fabrictest.Published[int64](t, conn, "XNav/primaryTagId"))
	assert.Equal(t, [][]float64{{0, 0, 0, 0, 0, 0}}, fabrictest.Published[[]float64](t, conn, "XNav/robotPose"))
	assert.Equal(t, []bool{false}, fabrictest.Published[bool](t, conn, "XNav/offsetPoint/valid"))
	assert.Empty(t, fabrictest.Published[float64](t, conn, "XNav/offsetPoint/x"))
}

// Test the status topic moves starting -> running once a clean frame
// goes out, and stays put on later clean frames.
func TestStatusLifecycle(t *testing.T) {
	sim, conn := newTestSimulator(t, noiseless(defaultScene()))

	sim.setStatus(topics.StatusStarting)
	sim.publishFrame(frame{primary: topics.NoTagID})
	sim.accountFrame()

	assert.Equal(t, []string{"starting", "running"},
		fabrictest.Published[string](t, conn, "XNav/status"))

	sim.publishFrame(frame{primary: topics.NoTagID})
	sim.accountFrame()
	assert.Equal(t, []string{"starting", "running"},
		fabrictest.Published[string](t, conn, "XNav/status"))
}

// Test construction binds the three input readback subscriptions and a
// publisher bundle per scene tag.
func TestNewSimulator_Bindings(t *testing.T) {
	sim, conn := newTestSimulator(t, defaultScene())

	assert.EqualValues(t, 3, conn.SubscriptionCount())
	assert.Len(t, sim.tags, 2)
}
