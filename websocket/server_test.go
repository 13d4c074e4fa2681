package websocket

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/esimov/flip-fluid/config"
	"github.com/esimov/flip-fluid/scene"
)

func newServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Fluid.Width = 40
	cfg.Fluid.Height = 30
	cfg.Fluid.MaxParticles = 300
	cfg.Server.FPS = 60
	cfg.Server.Root = t.TempDir()
	sc, err := scene.New(cfg)
	if err != nil {
		t.Fatalf("scene.New: %v", err)
	}
	return NewServer(sc, cfg.Server, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestApply(t *testing.T) {
	s := newServer(t)

	if err := s.apply(Message{Type: MsgPointer, X: 3, Y: 4, Down: true}); err != nil {
		t.Fatalf("pointer: %v", err)
	}
	if x, y, down, active := s.scene.Pointer(); x != 3 || y != 4 || !down || !active {
		t.Errorf("pointer = (%v, %v) down=%v active=%v", x, y, down, active)
	}

	obstacles := Message{Type: MsgObstacles, Obstacles: []Obstacle{{X: 1, Y: 2, Radius: 3}, {X: 4, Y: 5, Radius: 6}}}
	if err := s.apply(obstacles); err != nil {
		t.Fatalf("obstacles: %v", err)
	}
	if got := s.scene.Obstacles(); len(got) != 2 || got[1].Radius != 6 {
		t.Errorf("obstacles = %+v", got)
	}

	if err := s.apply(Message{Type: MsgObstacles, Obstacles: []Obstacle{{Radius: -1}}}); err == nil {
		t.Error("negative radius accepted")
	}
	if err := s.apply(Message{Type: "explode"}); err == nil {
		t.Error("unknown message type accepted")
	}

	s.scene.Step(0.01)
	if err := s.apply(Message{Type: MsgReset}); err != nil || s.scene.Steps() != 0 {
		t.Errorf("reset: err %v, steps %d", err, s.scene.Steps())
	}
}

func TestFrame(t *testing.T) {
	s := newServer(t)
	fs := s.scene.Solver()

	f := s.frame()

	if f.Count != fs.NumParticles() || len(f.Positions) != 2*f.Count || len(f.Colors) != 3*f.Count {
		t.Fatalf("frame sizes: count %d, %d positions, %d colours", f.Count, len(f.Positions), len(f.Colors))
	}
	x, y := fs.Position(0)
	if f.Positions[0] != float32(x) || f.Positions[1] != float32(y) {
		t.Errorf("first position = (%v, %v), want (%v, %v)", f.Positions[0], f.Positions[1], x, y)
	}
}

func TestStaticFiles(t *testing.T) {
	s := newServer(t)
	if err := os.WriteFile(filepath.Join(s.cfg.Root, "app.js"), []byte("<canvas>"), 0644); err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/app.js")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "<canvas>" {
		t.Errorf("GET /app.js = %d %q", resp.StatusCode, body)
	}
}

func TestStreamAndInput(t *testing.T) {
	s := newServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		s.Loop(ctx)
		close(loopDone)
	}()
	defer func() {
		cancel()
		<-loopDone
	}()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var f Frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("reading frame: %v", err)
	}
	if f.Count == 0 || len(f.Positions) != 2*f.Count || f.Step < 1 {
		t.Errorf("first frame: step %d, count %d, %d positions", f.Step, f.Count, len(f.Positions))
	}

	// Ask for a reset and wait until a frame shows the step counter restarted.
	for i := 0; i < 3; i++ {
		if err := conn.WriteJSON(Message{Type: MsgReset}); err != nil {
			t.Fatalf("writing message: %v", err)
		}
	}
	prev := f.Step
	for {
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("reading frame: %v", err)
		}
		if f.Step <= prev {
			break
		}
		prev = f.Step
	}
}
