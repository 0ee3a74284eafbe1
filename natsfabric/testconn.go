package natsfabric

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/realaaravdas/Limelight3-XNav/pkg/retry"
)

// TestServer runs a JetStream-enabled NATS server in a container for
// integration tests.
type TestServer struct {
	container testcontainers.Container
	URL       string

	mu      sync.Mutex
	conns   []*Conn
	cleanup func()
}

// testServerConfig holds configuration for the test server
type testServerConfig struct {
	natsVersion  string
	startTimeout time.Duration
	buckets      []string
}

// TestOption configures the test server
type TestOption func(*testServerConfig)

// WithTestNATSVersion overrides the NATS server image version
func WithTestNATSVersion(version string) TestOption {
	return func(cfg *testServerConfig) {
		cfg.natsVersion = version
	}
}

// WithTestStartTimeout sets the container startup timeout
func WithTestStartTimeout(timeout time.Duration) TestOption {
	return func(cfg *testServerConfig) {
		cfg.startTimeout = timeout
	}
}

// WithBuckets pre-creates KV buckets before any client connects, for
// tests that exercise binding against an already-provisioned table
func WithBuckets(buckets ...string) TestOption {
	return func(cfg *testServerConfig) {
		cfg.buckets = append(cfg.buckets, buckets...)
	}
}

// NewSharedTestServer starts a NATS container for use in TestMain.
// Unlike NewTestServer, this doesn't require testing.TB and returns
// errors; call Terminate when done.
func NewSharedTestServer(opts ...TestOption) (*TestServer, error) {
	cfg := &testServerConfig{
		natsVersion:  "2.11.7-alpine",
		startTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	ctx := context.Background()

	// KV needs JetStream, so the server always runs with --js
	req := testcontainers.ContainerRequest{
		Image:        "nats:" + cfg.natsVersion,
		ExposedPorts: []string{"4222/tcp", "8222/tcp"},
		Cmd:          []string{"--port", "4222", "--http_port", "8222", "--js"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("4222/tcp"),
			wait.ForHTTP("/").WithPort("8222/tcp").WithStartupTimeout(cfg.startTimeout),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start NATS container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "4222")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}

	ts := &TestServer{
		container: container,
		URL:       fmt.Sprintf("nats://%s:%s", host, port.Port()),
	}
	ts.cleanup = func() {
		ts.closeConns()
		_ = container.Terminate(context.Background()) // Best effort test cleanup
	}

	if len(cfg.buckets) > 0 {
		if err := ts.createBuckets(ctx, cfg.buckets); err != nil {
			ts.cleanup()
			return nil, fmt.Errorf("failed to pre-create buckets: %w", err)
		}
	}

	return ts, nil
}

// NewTestServer starts a NATS container and registers cleanup with t.
// Accepts testing.TB so it works with both *testing.T and *testing.B.
func NewTestServer(t testing.TB, opts ...TestOption) *TestServer {
	t.Helper()

	ts, err := NewSharedTestServer(opts...)
	if err != nil {
		t.Fatalf("Failed to start NATS test server: %v", err)
	}
	t.Cleanup(ts.Terminate)
	return ts
}

// NewConn returns an unstarted Conn aimed at this server. Extra
// options append after the test defaults, so callers can override
// them. The server closes every conn it handed out at cleanup.
func (ts *TestServer) NewConn(opts ...Option) *Conn {
	base := []Option{
		WithServer(ts.URL),
		WithConnectTimeout(5 * time.Second),
		WithBucketRetry(retry.Quick()),
	}
	c := New(append(base, opts...)...)

	ts.mu.Lock()
	ts.conns = append(ts.conns, c)
	ts.mu.Unlock()
	return c
}

// Terminate stops every conn handed out and the container (usually
// handled by t.Cleanup).
func (ts *TestServer) Terminate() {
	ts.mu.Lock()
	cleanup := ts.cleanup
	ts.cleanup = nil
	ts.mu.Unlock()
	if cleanup != nil {
		cleanup()
	}
}

func (ts *TestServer) closeConns() {
	ts.mu.Lock()
	conns := ts.conns
	ts.conns = nil
	ts.mu.Unlock()

	for _, c := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = c.Close(ctx) // Best effort test cleanup
		cancel()
	}
}

// createBuckets provisions KV buckets over a short-lived raw
// connection.
func (ts *TestServer) createBuckets(ctx context.Context, buckets []string) error {
	nc, err := nats.Connect(ts.URL, nats.Timeout(5*time.Second))
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to build JetStream context: %w", err)
	}
	for _, bucket := range buckets {
		_, err := js.CreateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: bucket})
		if err != nil {
			return fmt.Errorf("failed to create KV bucket %s: %w", bucket, err)
		}
	}
	return nil
}
