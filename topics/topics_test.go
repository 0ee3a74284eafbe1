package topics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realaaravdas/Limelight3-XNav/fabric/fabrictest"
)

func TestDeclaredDefaults(t *testing.T) {
	assert.False(t, HasTarget.Default)
	assert.Equal(t, int64(0), NumTargets.Default)
	assert.Equal(t, int64(NoTagID), PrimaryTagID.Default)
	assert.Equal(t, StatusUnknown, Status.Default)
	assert.Zero(t, FPS.Default)
	assert.Zero(t, LatencyMs.Default)
	assert.Empty(t, RobotPose.Default)
	assert.Empty(t, TagIDs.Default)

	assert.False(t, OffsetValid.Default)
	assert.Equal(t, int64(NoTagID), OffsetTagID.Default)
}

func TestTagScope(t *testing.T) {
	assert.Equal(t, "targets/0", TagScope(0))
	assert.Equal(t, "targets/7", TagScope(7))
	assert.Equal(t, "targets/583", TagScope(583))
}

// Entries must bind to the paths the coprocessor publishes under.
func TestEntryPaths(t *testing.T) {
	conn := fabrictest.NewConn()
	root := conn.Table(DefaultTable)

	sub, err := TargetTx.Subscribe(root.Subtable(TagScope(7)))
	require.NoError(t, err)
	fabrictest.Put(t, conn, "XNav/targets/7/tx", 3.2)
	assert.Equal(t, 3.2, sub.Get())

	status, err := Status.Subscribe(root)
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, status.Get(), "default before traffic")
	fabrictest.Put(t, conn, "XNav/status", StatusRunning)
	assert.Equal(t, StatusRunning, status.Get())

	pub, err := TurretAngle.Publish(root.Subtable(InputScope))
	require.NoError(t, err)
	require.NoError(t, pub.Set(45.0))
	assert.Equal(t, []float64{45.0}, fabrictest.Published[float64](t, conn, "XNav/input/turretAngle"))
}
