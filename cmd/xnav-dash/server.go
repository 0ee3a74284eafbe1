package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/realaaravdas/Limelight3-XNav/xnavclient"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 75 * time.Second
	writeWait    = 10 * time.Second
)

// Envelope wraps every WebSocket push with type discrimination.
// Types: "snapshot" for new-targets deliveries and the connect seed,
// "status" for the periodic tick. Both carry the full document.
type Envelope struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Timestamp int64           `json:"timestamp"` // Unix milliseconds
	Payload   json.RawMessage `json:"payload"`
}

// snapshotDoc is the REST and WebSocket payload: everything a
// dashboard renders in one document.
type snapshotDoc struct {
	Status        xnavclient.SystemStatus `json:"status"`
	RobotPose     xnavclient.RobotPose    `json:"robotPose"`
	OffsetPoint   xnavclient.OffsetPoint  `json:"offsetPoint"`
	PrimaryTarget xnavclient.TagResult    `json:"primaryTarget"`
	Targets       []xnavclient.TagResult  `json:"targets"`
}

type serverConfig struct {
	Addr         string
	PushInterval time.Duration
}

// Server bridges the xnavclient snapshot onto HTTP and WebSocket, and
// forwards dashboard control inputs onto the facade setters.
type Server struct {
	client *xnavclient.Client
	log    *slog.Logger
	cfg    serverConfig

	httpServer *http.Server
	listenAddr string
	upgrader   websocket.Upgrader

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]*wsClient

	shutdown chan struct{}
	wg       sync.WaitGroup

	metrics *dashMetrics
}

// wsClient is one connected dashboard. writeMu serializes writes:
// gorilla/websocket does not allow concurrent writers on a
// connection.
type wsClient struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	lastPong  atomic.Value // time.Time
	closed    atomic.Bool
	closeOnce sync.Once
}

func (c *wsClient) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

func newServer(client *xnavclient.Client, log *slog.Logger, registry *prometheus.Registry, cfg serverConfig) *Server {
	s := &Server{
		client: client,
		log:    log.With("component", "dash"),
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboards are served from other origins during development.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients:  make(map[*websocket.Conn]*wsClient),
		shutdown: make(chan struct{}),
		metrics:  newDashMetrics(registry),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/matchmode", s.handleMatchMode)
	mux.HandleFunc("POST /api/turret", s.handleTurret)
	mux.HandleFunc("GET /ws", s.handleWS)
	if registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start claims the listener synchronously, so an occupied port fails
// here rather than in the background, then serves and pushes until
// Stop.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.listenAddr = ln.Addr().String()

	s.wg.Add(2)
	go s.serve(ln)
	go s.push(ctx)
	return nil
}

// Addr reports the bound listen address once Start succeeded.
func (s *Server) Addr() string {
	return s.listenAddr
}

func (s *Server) serve(ln net.Listener) {
	defer s.wg.Done()
	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		s.log.Error("http server failed", "error", err)
	}
}

// Stop shuts the HTTP server down, detaches from the client, and
// closes every WebSocket. Call once.
func (s *Server) Stop(ctx context.Context) error {
	close(s.shutdown)
	s.client.OnNewTargets(nil)

	err := s.httpServer.Shutdown(ctx)

	// Shutdown does not cover hijacked connections; closing them here
	// unblocks the read loops.
	for _, c := range s.clientSnapshot() {
		s.removeClient(c, "server_shutdown")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("goroutines still busy at shutdown deadline")
	}

	return err
}

// push drives the WebSocket side: a full snapshot when the coprocessor
// delivers a new target list, the periodic status tick, and ping
// liveness.
func (s *Server) push(ctx context.Context) {
	defer s.wg.Done()

	// Deliveries land on the fabric listener goroutine; coalesce them
	// into this one so a slow dashboard never blocks the transport.
	notify := make(chan struct{}, 1)
	s.client.OnNewTargets(func([]xnavclient.TagResult) {
		select {
		case notify <- struct{}{}:
		default:
		}
	})

	ticker := time.NewTicker(s.cfg.PushInterval)
	defer ticker.Stop()
	pinger := time.NewTicker(pingInterval)
	defer pinger.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		case <-notify:
			s.broadcast("snapshot")
		case <-ticker.C:
			s.broadcast("status")
		case <-pinger.C:
			s.pingClients()
		}
	}
}

func (s *Server) snapshot() snapshotDoc {
	return snapshotDoc{
		Status:        s.client.Status(),
		RobotPose:     s.client.RobotPose(),
		OffsetPoint:   s.client.OffsetPoint(),
		PrimaryTarget: s.client.PrimaryTarget(),
		Targets:       s.client.AllTargets(),
	}
}

// envelope builds one wire-ready push of the given type.
func (s *Server) envelope(typ string) ([]byte, error) {
	doc, err := json.Marshal(s.snapshot())
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Type:      typ,
		ID:        uuid.NewString(),
		Timestamp: time.Now().UnixMilli(),
		Payload:   doc,
	})
}

// broadcast pushes one envelope to every connected dashboard, dropping
// clients whose writes fail.
func (s *Server) broadcast(typ string) {
	clients := s.clientSnapshot()
	if len(clients) == 0 {
		return
	}

	data, err := s.envelope(typ)
	if err != nil {
		s.log.Error("envelope marshal failed", "error", err)
		return
	}

	for _, c := range clients {
		if err := c.write(websocket.TextMessage, data); err != nil {
			s.metrics.pushError()
			s.removeClient(c, "write_failed")
			continue
		}
		s.metrics.pushed(typ)
	}
}

// pingClients drops dashboards that stopped answering pings.
func (s *Server) pingClients() {
	stale := time.Now().Add(-2 * pingInterval)
	for _, c := range s.clientSnapshot() {
		if last, ok := c.lastPong.Load().(time.Time); ok && last.Before(stale) {
			s.removeClient(c, "stale")
			continue
		}
		if err := c.write(websocket.PingMessage, nil); err != nil {
			s.removeClient(c, "ping_failed")
		}
	}
}

func (s *Server) clientSnapshot() []*wsClient {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	out := make([]*wsClient, 0, len(s.clients))
	for _, c := range s.clients {
		if !c.closed.Load() {
			out = append(out, c)
		}
	}
	return out
}

func (s *Server) removeClient(c *wsClient, reason string) {
	c.closeOnce.Do(func() {
		c.closed.Store(true)

		s.clientsMu.Lock()
		delete(s.clients, c.conn)
		count := len(s.clients)
		s.clientsMu.Unlock()

		_ = c.conn.Close()
		s.metrics.clientCount(count)
		s.log.Info("dashboard disconnected", "reason", reason, "clients", count)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.snapshot())
}

// handleMatchMode forwards the match performance mode flag to the
// coprocessor.
func (s *Server) handleMatchMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	s.client.SetMatchMode(req.Enabled)
	s.metrics.control("matchMode")
	s.log.Info("match mode set", "enabled", req.Enabled)
	s.writeJSON(w, map[string]any{"ok": true, "match_mode": req.Enabled})
}

// handleTurret forwards turret control inputs. Fields are optional so
// a frontend can set the angle and the compensation flag independently;
// a body carrying neither is rejected.
func (s *Server) handleTurret(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Angle   *float64 `json:"angle"`
		Enabled *bool    `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Angle == nil && req.Enabled == nil {
		http.Error(w, "body must carry angle or enabled", http.StatusBadRequest)
		return
	}

	resp := map[string]any{"ok": true}
	if req.Angle != nil {
		s.client.SetTurretAngle(*req.Angle)
		s.metrics.control("turretAngle")
		resp["angle"] = *req.Angle
	}
	if req.Enabled != nil {
		s.client.SetTurretEnabled(*req.Enabled)
		s.metrics.control("turretEnabled")
		resp["enabled"] = *req.Enabled
	}
	s.log.Info("turret input set", "angle", req.Angle, "enabled", req.Enabled)
	s.writeJSON(w, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("response write failed", "error", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &wsClient{conn: conn}
	c.lastPong.Store(time.Now())
	conn.SetPongHandler(func(string) error {
		c.lastPong.Store(time.Now())
		return nil
	})

	s.clientsMu.Lock()
	s.clients[conn] = c
	count := len(s.clients)
	s.clientsMu.Unlock()
	s.metrics.clientCount(count)
	s.log.Info("dashboard connected", "remote", r.RemoteAddr, "clients", count)

	// Seed the new client so it renders before the first delivery.
	if data, err := s.envelope("snapshot"); err == nil {
		if err := c.write(websocket.TextMessage, data); err != nil {
			s.removeClient(c, "write_failed")
			return
		}
	}

	s.wg.Add(1)
	go s.readLoop(c)
}

// readLoop drains the client. Dashboards do not send data, but the
// reader is what surfaces pongs and close frames.
func (s *Server) readLoop(c *wsClient) {
	defer s.wg.Done()
	defer s.removeClient(c, "closed")

	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

type dashMetrics struct {
	clientsConnected prometheus.Gauge
	pushes           *prometheus.CounterVec
	pushErrors       prometheus.Counter
	controls         *prometheus.CounterVec
}

// newDashMetrics registers bridge metrics, or returns nil when metrics
// are disabled; methods on a nil receiver are no-ops.
func newDashMetrics(reg prometheus.Registerer) *dashMetrics {
	if reg == nil {
		return nil
	}

	m := &dashMetrics{
		clientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "xnav",
			Subsystem: "dash",
			Name:      "clients_connected",
			Help:      "Currently connected WebSocket clients.",
		}),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xnav",
			Subsystem: "dash",
			Name:      "pushes_total",
			Help:      "WebSocket envelopes pushed, by type.",
		}, []string{"type"}),
		pushErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xnav",
			Subsystem: "dash",
			Name:      "push_errors_total",
			Help:      "Failed WebSocket writes.",
		}),
		controls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xnav",
			Subsystem: "dash",
			Name:      "controls_total",
			Help:      "Control inputs forwarded to the coprocessor, by input.",
		}, []string{"input"}),
	}

	reg.MustRegister(m.clientsConnected, m.pushes, m.pushErrors, m.controls)
	return m
}

func (m *dashMetrics) clientCount(n int) {
	if m == nil {
		return
	}
	m.clientsConnected.Set(float64(n))
}

func (m *dashMetrics) pushed(typ string) {
	if m == nil {
		return
	}
	m.pushes.WithLabelValues(typ).Inc()
}

func (m *dashMetrics) pushError() {
	if m == nil {
		return
	}
	m.pushErrors.Inc()
}

func (m *dashMetrics) control(input string) {
	if m == nil {
		return
	}
	m.controls.WithLabelValues(input).Inc()
}
