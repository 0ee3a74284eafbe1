package natsfabric

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realaaravdas/Limelight3-XNav/errors"
)

// unreachable is a port nothing listens on. Connects against it fail
// fast, which exercises the retry-in-background path without a server.
const unreachable = "nats://127.0.0.1:1"

func testConn(opts ...Option) *Conn {
	base := []Option{
		WithServer(unreachable),
		WithConnectTimeout(200 * time.Millisecond),
		WithReconnectWait(50 * time.Millisecond),
		WithMaxReconnects(2),
	}
	return New(append(base, opts...)...)
}

// Test defaults applied by New
func TestNew_Defaults(t *testing.T) {
	c := New()

	assert.Equal(t, 5*time.Second, c.connectTimeout)
	assert.Equal(t, 2*time.Second, c.reconnectWait)
	assert.Equal(t, -1, c.maxReconnects)
	assert.Equal(t, 256, c.writeQueueSize)
	assert.Equal(t, 2*time.Second, c.putTimeout)
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.Nil(t, c.metrics)
	assert.Empty(t, c.Connections())
}

func TestConnectionStatus_String(t *testing.T) {
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "connecting", StatusConnecting.String())
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "reconnecting", StatusReconnecting.String())
	assert.Equal(t, "closed", StatusClosed.String())
	assert.Equal(t, "unknown", ConnectionStatus(99).String())
}

// Test that SetServer only takes effect before Start
func TestSetServer_BeforeStartOnly(t *testing.T) {
	c := testConn()
	c.SetServer("nats://10.0.0.2:4222")
	assert.Equal(t, "nats://10.0.0.2:4222", c.server)

	c.SetServer("")
	assert.Equal(t, "nats://10.0.0.2:4222", c.server, "empty address is ignored")

	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
	c.SetServer("nats://10.0.0.3:4222")
	assert.Equal(t, "nats://10.0.0.2:4222", c.server, "address is frozen after Start")
}

// Test the lifecycle against an unreachable server: Start succeeds and
// the connection keeps dialing in the background.
func TestStart_UnreachableServer(t *testing.T) {
	c := testConn()
	defer c.Close(context.Background())

	require.NoError(t, c.Start(context.Background(), "XNavLib"))
	assert.NotEqual(t, StatusConnected, c.Status())
	assert.Empty(t, c.Connections())

	err := c.Start(context.Background(), "XNavLib")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err = c.WaitReady(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestWaitReady_BeforeStart(t *testing.T) {
	c := testConn()
	err := c.WaitReady(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestClose_Idempotent(t *testing.T) {
	c := testConn()
	require.NoError(t, c.Start(context.Background(), "XNavLib"))

	require.NoError(t, c.Close(context.Background()))
	assert.Equal(t, StatusClosed, c.Status())
	require.NoError(t, c.Close(context.Background()))
}

func TestClose_BeforeStart(t *testing.T) {
	c := testConn()
	c.Table("XNav")

	require.NoError(t, c.Close(context.Background()))
	assert.Equal(t, StatusClosed, c.Status())

	err := c.Start(context.Background(), "XNavLib")
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

// Test that tables resolve idempotently and views share their root
func TestTable_Idempotent(t *testing.T) {
	c := testConn()
	a := c.Table("XNav")
	b := c.Table("XNav")

	assert.Equal(t, a, b)
	assert.Len(t, c.tables, 1)

	c.Table("other")
	assert.Len(t, c.tables, 2)
}

// Test that writes queue before Start and fail only after Close
func TestPublication_QueuesBeforeStart(t *testing.T) {
	c := testConn()
	pub, err := c.Table("XNav").Publisher("hasTarget")
	require.NoError(t, err)

	require.NoError(t, pub.Set([]byte("true")))
	require.NoError(t, pub.Set([]byte("false")))
	assert.Equal(t, 2, c.tables["XNav"].writeQ.Len())

	require.NoError(t, c.Close(context.Background()))
	err = pub.Set([]byte("true"))
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestSubscription_EmptyBeforeDelivery(t *testing.T) {
	c := testConn()
	sub, err := c.Table("XNav").Subscribe("status")
	require.NoError(t, err)

	data, ok := sub.Load()
	assert.False(t, ok)
	assert.Nil(t, data)
}
