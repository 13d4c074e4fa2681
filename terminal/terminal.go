// Package terminal renders a fluid scene as coloured ASCII art and feeds
// mouse input back into it.
package terminal

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/nsf/termbox-go"

	"github.com/esimov/flip-fluid/config"
	fluid "github.com/esimov/flip-fluid/fluid-solver"
	"github.com/esimov/flip-fluid/scene"
)

// Views selectable from the keyboard.
const (
	ViewParticles = "particles"
	ViewDensity   = "density"
	ViewPressure  = "pressure"
)

// ramp maps the number of particles in a terminal cell to a glyph.
var ramp = []rune(".:-=+*#%@")

const statusRows = 1

type Terminal struct {
	scene  *scene.Scene
	fps    int
	view   string
	paused bool
	logger *slog.Logger

	backbuf  []termbox.Cell
	counts   []int
	bbw, bbh int
}

// New prepares a renderer for sc. The terminal itself is only touched by Render.
func New(sc *scene.Scene, cfg config.TerminalConfig, logger *slog.Logger) *Terminal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Terminal{
		scene:  sc,
		fps:    cfg.FPS,
		view:   cfg.View,
		logger: logger,
	}
}

// Render takes over the terminal and runs the simulation until Esc is
// pressed or ctx is cancelled.
func (t *Terminal) Render(ctx context.Context) error {
	if err := termbox.Init(); err != nil {
		return fmt.Errorf("initializing terminal: %w", err)
	}
	termbox.SetInputMode(termbox.InputEsc | termbox.InputMouse)
	termbox.SetOutputMode(termbox.Output256)
	t.reallocBackBuffer(termbox.Size())

	// The poller never blocks on send, so it always returns to PollEvent
	// where Interrupt can reach it.
	events := make(chan termbox.Event, 32)
	go func() {
		for {
			ev := termbox.PollEvent()
			if ev.Type == termbox.EventInterrupt {
				return
			}
			select {
			case events <- ev:
			default:
			}
		}
	}()
	defer func() {
		termbox.Interrupt()
		termbox.Close()
	}()

	ticker := time.NewTicker(time.Second / time.Duration(t.fps))
	defer ticker.Stop()
	last := time.Now()

	t.logger.Info("terminal started", "width", t.bbw, "height", t.bbh, "view", t.view)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			quit, err := t.handle(ev)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
		case now := <-ticker.C:
			if !t.paused {
				t.scene.Step(now.Sub(last).Seconds())
			}
			last = now
			t.draw()
			t.flush()
		}
	}
}

func (t *Terminal) handle(ev termbox.Event) (quit bool, err error) {
	switch ev.Type {
	case termbox.EventKey:
		switch {
		case ev.Key == termbox.KeyEsc || ev.Ch == 'q':
			return true, nil
		case ev.Key == termbox.KeySpace:
			t.paused = !t.paused
			t.logger.Debug("pause toggled", "paused", t.paused)
		case ev.Ch == 'g':
			t.toggleView(ViewDensity)
		case ev.Ch == 'p':
			t.toggleView(ViewPressure)
		case ev.Ch == 'r':
			if err := t.scene.Reset(); err != nil {
				return false, err
			}
			t.logger.Info("scene reset")
		}
	case termbox.EventMouse:
		x, y := t.unproject(ev.MouseX, ev.MouseY)
		switch ev.Key {
		case termbox.MouseLeft:
			t.scene.SetPointer(x, y, true)
		case termbox.MouseRelease:
			t.scene.SetPointer(x, y, false)
		}
		t.logger.Debug("mouse", "x", ev.MouseX, "y", ev.MouseY)
	case termbox.EventResize:
		t.reallocBackBuffer(ev.Width, ev.Height)
	case termbox.EventError:
		return false, fmt.Errorf("terminal event: %w", ev.Err)
	}
	return false, nil
}

func (t *Terminal) toggleView(v string) {
	if t.view == v {
		t.view = ViewParticles
	} else {
		t.view = v
	}
	t.logger.Debug("view changed", "view", t.view)
}

func (t *Terminal) reallocBackBuffer(w, h int) {
	t.bbw, t.bbh = w, h
	t.backbuf = make([]termbox.Cell, w*h)
	t.counts = make([]int, w*h)
}

func (t *Terminal) flush() {
	copy(termbox.CellBuffer(), t.backbuf)
	termbox.Flush()
}

// rows returns the height of the area the fluid is drawn into.
func (t *Terminal) rows() int {
	return t.bbh - statusRows
}

func (t *Terminal) domain() (w, h float64) {
	fs := t.scene.Solver()
	return float64(fs.NumX()) * fs.Spacing(), float64(fs.NumY()) * fs.Spacing()
}

// project maps a domain position to a terminal cell below the status line.
func (t *Terminal) project(x, y float64) (cx, cy int, ok bool) {
	w, h := t.domain()
	rows := t.rows()
	if rows <= 0 || t.bbw <= 0 {
		return 0, 0, false
	}
	cx = int(math.Floor(x / w * float64(t.bbw)))
	cy = rows - 1 - int(math.Floor(y/h*float64(rows)))
	if cx < 0 || cx >= t.bbw || cy < 0 || cy >= rows {
		return 0, 0, false
	}
	return cx, cy + statusRows, true
}

// unproject maps a terminal cell to the domain position at its centre.
func (t *Terminal) unproject(cx, cy int) (x, y float64) {
	w, h := t.domain()
	rows := t.rows()
	if rows <= 0 || t.bbw <= 0 {
		return 0, 0
	}
	x = (float64(cx) + 0.5) / float64(t.bbw) * w
	y = (float64(rows-(cy-statusRows)) - 0.5) / float64(rows) * h
	return x, y
}

// draw renders the current view and the status line into the back buffer.
func (t *Terminal) draw() {
	for i := range t.backbuf {
		t.backbuf[i] = termbox.Cell{Ch: ' ', Fg: termbox.ColorDefault, Bg: termbox.ColorDefault}
		t.counts[i] = 0
	}
	switch t.view {
	case ViewDensity:
		t.drawCells(func(fs *fluid.Solver, c int) (r, g, b float64) {
			colors := fs.CellColors()
			return colors[3*c], colors[3*c+1], colors[3*c+2]
		})
	case ViewPressure:
		maxP := 0.0
		for _, p := range t.scene.Solver().Pressure() {
			maxP = math.Max(maxP, p)
		}
		t.drawCells(func(fs *fluid.Solver, c int) (r, g, b float64) {
			if fs.CellType(c/fs.NumY(), c%fs.NumY()) != fluid.FluidCell {
				return 0, 0, 0
			}
			return fluid.SciColor(fs.Pressure()[c], 0, maxP)
		})
	default:
		t.drawParticles()
	}
	t.drawStatus()
}

func (t *Terminal) drawParticles() {
	fs := t.scene.Solver()
	pos, col := fs.Positions(), fs.Colors()
	for i := 0; i < fs.NumParticles(); i++ {
		cx, cy, ok := t.project(pos[2*i], pos[2*i+1])
		if !ok {
			continue
		}
		c := cy*t.bbw + cx
		t.counts[c]++
		n := min(t.counts[c], len(ramp)) - 1
		t.backbuf[c] = termbox.Cell{
			Ch: ramp[n],
			Fg: rgbTo256(col[3*i], col[3*i+1], col[3*i+2]),
			Bg: termbox.ColorDefault,
		}
	}
}

func (t *Terminal) drawCells(color func(fs *fluid.Solver, c int) (r, g, b float64)) {
	fs := t.scene.Solver()
	h := fs.Spacing()
	for cy := statusRows; cy < t.bbh; cy++ {
		for cx := 0; cx < t.bbw; cx++ {
			x, y := t.unproject(cx, cy)
			i := clampInt(int(x/h), 0, fs.NumX()-1)
			j := clampInt(int(y/h), 0, fs.NumY()-1)
			r, g, b := color(fs, i*fs.NumY()+j)
			t.backbuf[cy*t.bbw+cx] = termbox.Cell{Ch: ' ', Fg: termbox.ColorDefault, Bg: rgbTo256(r, g, b)}
		}
	}
}

func (t *Terminal) drawStatus() {
	status := fmt.Sprintf(" step %d  t=%.2fs  particles %d  view %s", t.scene.Steps(),
		t.scene.Time(), t.scene.Solver().NumParticles(), t.view)
	if t.paused {
		status += "  [paused]"
	}
	for i, r := range []rune(status) {
		if i >= t.bbw {
			break
		}
		t.backbuf[i] = termbox.Cell{Ch: r, Fg: termbox.ColorWhite | termbox.AttrBold, Bg: termbox.ColorDefault}
	}
}

// rgbTo256 maps a colour with components in [0,1] onto the 6x6x6 cube
// of the xterm 256 colour palette.
func rgbTo256(r, g, b float64) termbox.Attribute {
	level := func(v float64) int {
		return clampInt(int(math.Round(v*5)), 0, 5)
	}
	idx := 16 + 36*level(r) + 6*level(g) + level(b)
	// In Output256 mode attribute n selects palette entry n-1.
	return termbox.Attribute(idx + 1)
}

func clampInt(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
