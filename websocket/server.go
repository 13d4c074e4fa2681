// Package websocket streams a fluid scene to browsers and receives pointer
// and obstacle updates from them.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/esimov/flip-fluid/config"
	fluid "github.com/esimov/flip-fluid/fluid-solver"
	"github.com/esimov/flip-fluid/scene"
)

const (
	writeWait       = 5 * time.Second
	sendBuffer      = 4
	shutdownTimeout = 5 * time.Second
)

// Message types sent by clients.
const (
	MsgPointer   = "pointer"
	MsgObstacles = "obstacles"
	MsgReset     = "reset"
)

// Frame is the state broadcast to every client after each step.
// Positions are x,y pairs and colours r,g,b triples in [0,1].
type Frame struct {
	Step      int       `json:"step"`
	Time      float64   `json:"time"`
	Width     float64   `json:"width"`
	Height    float64   `json:"height"`
	Count     int       `json:"count"`
	Radius    float64   `json:"radius"`
	Positions []float32 `json:"positions"`
	Colors    []float32 `json:"colors"`
}

// Obstacle is a circle in domain coordinates.
type Obstacle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// Message is an input event sent by a client.
type Message struct {
	Type      string     `json:"type"`
	X         float64    `json:"x"`
	Y         float64    `json:"y"`
	Down      bool       `json:"down"`
	Obstacles []Obstacle `json:"obstacles,omitempty"`
}

// A server application calls the Upgrade method from an HTTP request handler to initiate a connection
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Server owns the scene. Only the simulation loop touches it; client
// input reaches the loop through a channel.
type Server struct {
	scene  *scene.Scene
	cfg    config.ServerConfig
	logger *slog.Logger

	input chan Message

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewServer prepares a server streaming sc.
func NewServer(sc *scene.Scene, cfg config.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		scene:   sc,
		cfg:     cfg,
		logger:  logger,
		input:   make(chan Message, 64),
		clients: make(map[*client]struct{}),
	}
}

// Handler serves the static client files under the configured prefix and
// the websocket endpoint on /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.cfg.Prefix, http.StripPrefix(s.cfg.Prefix, http.FileServer(http.Dir(s.cfg.Root))))
	mux.HandleFunc("/ws", s.wsHandler)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("request", "remote", r.RemoteAddr, "method", r.Method, "url", r.URL.String())
		mux.ServeHTTP(w, r)
	})
}

// Run listens on the configured address and simulates until ctx is
// cancelled, then shuts the listener down.
func (s *Server) Run(ctx context.Context) error {
	root, err := filepath.Abs(s.cfg.Root)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}
	s.cfg.Root = root

	srv := &http.Server{
		Addr:    s.cfg.Address,
		Handler: s.Handler(),
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("serving", "root", s.cfg.Root, "prefix", s.cfg.Prefix, "address", s.cfg.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	loopCtx, cancel := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	go func() {
		s.Loop(loopCtx)
		close(loopDone)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errc:
		runErr = fmt.Errorf("listening: %w", err)
	}
	cancel()
	<-loopDone

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("shutting down: %w", err)
	}
	s.closeClients()
	return runErr
}

// Loop steps the scene at the configured rate, applies client input and
// broadcasts a frame after every step until ctx is cancelled.
func (s *Server) Loop(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.FPS))
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.input:
			if err := s.apply(msg); err != nil {
				s.logger.Warn("dropping message", "type", msg.Type, "err", err)
			}
		case now := <-ticker.C:
			s.scene.Step(now.Sub(last).Seconds())
			last = now
			s.broadcast(s.frame())
		}
	}
}

// apply runs on the simulation loop.
func (s *Server) apply(msg Message) error {
	switch msg.Type {
	case MsgPointer:
		s.scene.SetPointer(msg.X, msg.Y, msg.Down)
	case MsgObstacles:
		obstacles := make([]fluid.Obstacle, 0, len(msg.Obstacles))
		for _, o := range msg.Obstacles {
			if o.Radius < 0 {
				return fmt.Errorf("negative obstacle radius %g", o.Radius)
			}
			obstacles = append(obstacles, fluid.Obstacle{X: o.X, Y: o.Y, Radius: o.Radius})
		}
		s.scene.SetObstacles(obstacles)
	case MsgReset:
		return s.scene.Reset()
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
	return nil
}

func (s *Server) frame() Frame {
	fs := s.scene.Solver()
	pos, col := fs.Positions(), fs.Colors()
	f := Frame{
		Step:      s.scene.Steps(),
		Time:      s.scene.Time(),
		Width:     float64(fs.NumX()) * fs.Spacing(),
		Height:    float64(fs.NumY()) * fs.Spacing(),
		Count:     fs.NumParticles(),
		Radius:    fs.ParticleRadius(),
		Positions: make([]float32, len(pos)),
		Colors:    make([]float32, len(col)),
	}
	for i, v := range pos {
		f.Positions[i] = float32(v)
	}
	for i, v := range col {
		f.Colors[i] = float32(v)
	}
	return f
}

// broadcast queues the frame on every client. Clients that fall behind
// skip frames.
func (s *Server) broadcast(f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		s.logger.Error("encoding frame", "err", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (s *Server) register(c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()
	s.logger.Info("client connected", "remote", c.conn.RemoteAddr().String(), "clients", n)
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
}

// wsHandler defines the websocket connection endpoint
func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	// Upgrade the http connection to a WebSocket connection
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if _, ok := err.(websocket.HandshakeError); !ok {
			s.logger.Warn("upgrade failed", "err", err)
		}
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	s.register(c)
	go s.writeSocket(c)
	go s.readSocket(c)
}

// readSocket listen for new messages being sent to the websocket
func (s *Server) readSocket(c *client) {
	defer s.unregister(c)

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("read failed", "err", err)
			}
			return
		}
		select {
		case s.input <- msg:
		default:
			s.logger.Warn("input queue full, dropping message", "type", msg.Type)
		}
	}
}

// writeSocket sends queued frames until the client is unregistered.
func (s *Server) writeSocket(c *client) {
	defer c.conn.Close()

	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.logger.Debug("write failed", "err", err)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
