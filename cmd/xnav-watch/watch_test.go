package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realaaravdas/Limelight3-XNav/fabric/fabrictest"
	"github.com/realaaravdas/Limelight3-XNav/xnavclient"
)

func newTestClient(t *testing.T) (*xnavclient.Client, *fabrictest.Conn) {
	t.Helper()
	conn := fabrictest.NewConn()
	client, err := xnavclient.New(xnavclient.WithConn(conn))
	require.NoError(t, err)
	require.NoError(t, client.Init(context.Background(), ""))
	return client, conn
}

// Test a snapshot before any traffic prints the default view.
func TestPrintSnapshot_Defaults(t *testing.T) {
	client, _ := newTestClient(t)

	var buf bytes.Buffer
	printSnapshot(&buf, client)

	out := buf.String()
	assert.Contains(t, out, "status=unknown")
	assert.Contains(t, out, "pose    (invalid)")
	assert.Contains(t, out, "offset  (invalid)")
	assert.Contains(t, out, "no targets")
}

// Test a populated snapshot renders the target table with the primary
// marked.
func TestPrintSnapshot_Targets(t *testing.T) {
	client, conn := newTestClient(t)

	fabrictest.Put(t, conn, "XNav/status", "running")
	fabrictest.Put(t, conn, "XNav/tagIds", []int64{7, 3})
	fabrictest.Put(t, conn, "XNav/primaryTagId", int64(7))
	fabrictest.Put(t, conn, "XNav/targets/7/tx", 3.2)
	fabrictest.Put(t, conn, "XNav/targets/3/tx", -4.7)
	fabrictest.Put(t, conn, "XNav/robotPose", []float64{1.5, 2.5, 0, 0, 0, 12})

	var buf bytes.Buffer
	printSnapshot(&buf, client)

	out := buf.String()
	assert.Contains(t, out, "status=running")
	assert.Contains(t, out, "targets=0") // numTargets was never published
	assert.Contains(t, out, "yaw=12.0")
	assert.Contains(t, out, "7*")
	assert.Contains(t, out, "3.20")
	assert.Contains(t, out, "-4.70")
}

// Test interval mode stops after the configured count.
func TestWatch_IntervalCount(t *testing.T) {
	client, _ := newTestClient(t)

	cfg := &CLIConfig{Interval: time.Millisecond, Count: 3}
	var buf bytes.Buffer
	require.NoError(t, watch(context.Background(), client, cfg, &buf))

	assert.Equal(t, 3, bytes.Count(buf.Bytes(), []byte("connected=")))
}

// Test follow mode prints on new-targets deliveries.
func TestWatch_Follow(t *testing.T) {
	client, conn := newTestClient(t)

	cfg := &CLIConfig{Interval: time.Second, Follow: true, Count: 1}
	var buf bytes.Buffer
	done := make(chan error, 1)
	go func() { done <- watch(context.Background(), client, cfg, &buf) }()

	require.Eventually(t, func() bool {
		fabrictest.Put(t, conn, "XNav/tagIds", []int64{7})
		select {
		case err := <-done:
			require.NoError(t, err)
			return true
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	assert.Contains(t, buf.String(), "connected=")
}

// Test cancellation unblocks both modes.
func TestWatch_Cancel(t *testing.T) {
	client, _ := newTestClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	require.NoError(t, watch(ctx, client, &CLIConfig{Interval: time.Hour}, &buf))
	require.NoError(t, watch(ctx, client, &CLIConfig{Interval: time.Hour, Follow: true}, &buf))
}
