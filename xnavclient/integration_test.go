package xnavclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realaaravdas/Limelight3-XNav/fabric"
	"github.com/realaaravdas/Limelight3-XNav/natsfabric"
	"github.com/realaaravdas/Limelight3-XNav/topics"
)

func publish[T fabric.Value](t *testing.T, table fabric.Table, e topics.Entry[T], v T) {
	t.Helper()
	p, err := e.Publish(table)
	require.NoError(t, err)
	require.NoError(t, p.Set(v))
}

// Test the full client against a real server, with a second connection
// playing the coprocessor.
func TestIntegration_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ts := natsfabric.NewTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	coproc := ts.NewConn()
	require.NoError(t, coproc.Start(context.Background(), topics.CoprocessorIdentity))
	table := coproc.Table(topics.DefaultTable)
	require.NoError(t, coproc.WaitReady(ctx))

	conn := ts.NewConn()
	client, err := New(WithConn(conn), WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, client.Init(context.Background(), ""))
	require.NoError(t, conn.WaitReady(ctx))

	t.Run("liveness", func(t *testing.T) {
		assert.True(t, client.IsConnected())
	})

	t.Run("primary target", func(t *testing.T) {
		tag := table.Subtable(topics.TagScope(7))
		publish(t, tag, topics.TargetTx, 3.2)
		publish(t, tag, topics.TargetTy, -1.1)
		publish(t, tag, topics.TargetZ, 2.5)
		publish(t, tag, topics.TargetDistance, 2.5)
		publish(t, tag, topics.TargetYaw, 0.4)
		publish(t, table, topics.HasTarget, true)
		publish(t, table, topics.NumTargets, int64(1))
		publish(t, table, topics.TagIDs, []int64{7})
		publish(t, table, topics.PrimaryTagID, int64(7))

		want := TagResult{ID: 7, Tx: 3.2, Ty: -1.1, Z: 2.5, Distance: 2.5, Yaw: 0.4}
		require.Eventually(t, func() bool {
			return client.HasTarget() && client.PrimaryTarget() == want
		}, 15*time.Second, 50*time.Millisecond)

		got, ok := client.Target(7)
		require.True(t, ok)
		assert.Equal(t, want, got)
		_, ok = client.Target(3)
		assert.False(t, ok)
	})

	t.Run("robot pose", func(t *testing.T) {
		publish(t, table, topics.RobotPose, []float64{1.0, 2.0, 0.0, 0.0, 0.0, 90.0})

		want := RobotPose{X: 1.0, Y: 2.0, YawDeg: 90.0, Valid: true}
		require.Eventually(t, func() bool {
			return client.RobotPose() == want
		}, 15*time.Second, 50*time.Millisecond)
	})

	t.Run("new targets callback", func(t *testing.T) {
		snapshots := make(chan []TagResult, 16)
		client.OnNewTargets(func(targets []TagResult) { snapshots <- targets })
		defer client.OnNewTargets(nil)

		publish(t, table, topics.TagIDs, []int64{7, 9})

		select {
		case got := <-snapshots:
			require.Len(t, got, 2)
			assert.Equal(t, 7, got[0].ID)
			assert.Equal(t, 9, got[1].ID)
		case <-time.After(15 * time.Second):
			t.Fatal("callback never fired")
		}
	})

	t.Run("control inputs", func(t *testing.T) {
		input := table.Subtable(topics.InputScope)
		angle, err := topics.TurretAngle.Subscribe(input)
		require.NoError(t, err)
		enabled, err := topics.TurretEnabled.Subscribe(input)
		require.NoError(t, err)

		client.SetTurretAngle(45.0)
		client.SetTurretEnabled(true)

		require.Eventually(t, func() bool {
			return angle.Get() == 45.0 && enabled.Get()
		}, 15*time.Second, 50*time.Millisecond)
	})

	t.Run("status", func(t *testing.T) {
		publish(t, table, topics.Status, topics.StatusRunning)
		publish(t, table, topics.FPS, 30.0)

		require.Eventually(t, func() bool {
			st := client.Status()
			return st.Status == topics.StatusRunning && st.FPS == 30.0 && st.Connected
		}, 15*time.Second, 50*time.Millisecond)
	})

	require.NoError(t, client.Close(context.Background()))
}
