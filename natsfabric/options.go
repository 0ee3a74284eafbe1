package natsfabric

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/realaaravdas/Limelight3-XNav/pkg/retry"
)

// Logger is the minimal logging interface this package needs. Hosts
// that embed the binding can bring their own; the default logs
// through slog.
type Logger interface {
	Printf(format string, v ...any)
	Errorf(format string, v ...any)
	Debugf(format string, v ...any)
}

type slogLogger struct {
	log *slog.Logger
}

func (l slogLogger) Printf(format string, v ...any) {
	l.log.Info(fmt.Sprintf(format, v...))
}

func (l slogLogger) Errorf(format string, v ...any) {
	l.log.Error(fmt.Sprintf(format, v...))
}

func (l slogLogger) Debugf(format string, v ...any) {
	l.log.Debug(fmt.Sprintf(format, v...))
}

// NewSlogLogger adapts a slog.Logger to this package's Logger.
func NewSlogLogger(log *slog.Logger) Logger {
	return slogLogger{log: log}
}

func defaultLogger() Logger {
	return slogLogger{log: slog.Default().With("component", "natsfabric")}
}

// Option configures a Conn.
type Option func(*Conn)

// WithServer sets the server URL. SetServer before Start overrides it;
// empty falls back to the NATS default URL.
func WithServer(url string) Option {
	return func(c *Conn) {
		c.server = url
	}
}

// WithLogger replaces the default slog-backed logger.
func WithLogger(log Logger) Option {
	return func(c *Conn) {
		if log != nil {
			c.log = log
		}
	}
}

// WithConnectTimeout bounds each connection attempt. Default 5s.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Conn) {
		if d > 0 {
			c.connectTimeout = d
		}
	}
}

// WithReconnectWait sets the delay between reconnect attempts.
// Default 2s.
func WithReconnectWait(d time.Duration) Option {
	return func(c *Conn) {
		if d > 0 {
			c.reconnectWait = d
		}
	}
}

// WithMaxReconnects caps reconnect attempts. Negative means unlimited,
// which is the default: a robot-side client must outlast coprocessor
// restarts.
func WithMaxReconnects(n int) Option {
	return func(c *Conn) {
		c.maxReconnects = n
	}
}

// WithWriteQueueSize sets the per-table pending-write ring capacity.
// Default 256; overflow evicts the oldest write.
func WithWriteQueueSize(n int) Option {
	return func(c *Conn) {
		if n > 0 {
			c.writeQueueSize = n
		}
	}
}

// WithPutTimeout bounds each KV put. Default 2s.
func WithPutTimeout(d time.Duration) Option {
	return func(c *Conn) {
		if d > 0 {
			c.putTimeout = d
		}
	}
}

// WithBucketRetry sets the schedule for bucket provisioning attempts.
// Default retry.Quick(). The binding keeps cycling the schedule until
// the bucket is reachable or the connection closes.
func WithBucketRetry(cfg retry.Config) Option {
	return func(c *Conn) {
		c.bucketRetry = cfg
	}
}

// WithMetricsRegistry enables Prometheus metrics on reg. Nil (the
// default) disables metrics.
func WithMetricsRegistry(reg prometheus.Registerer) Option {
	return func(c *Conn) {
		c.metricsReg = reg
	}
}
