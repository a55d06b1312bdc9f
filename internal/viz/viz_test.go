package viz

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kr1s0404/fmm/internal/body"
	"github.com/kr1s0404/fmm/internal/compute"
	"github.com/kr1s0404/fmm/internal/experiment"
	"github.com/kr1s0404/fmm/internal/integrators"
	"github.com/kr1s0404/fmm/internal/physics"
	"github.com/kr1s0404/fmm/internal/render"
	"github.com/kr1s0404/fmm/internal/sim"
)

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func pair() *body.Store {
	s := body.NewStore(2)
	s.Set(0, r3.Vec{X: -1}, r3.Vec{Y: -0.5}, 1)
	s.Set(1, r3.Vec{X: 1}, r3.Vec{Y: 0.5}, 1)
	return s
}

func newPairModel(frames int) Model {
	g := physics.NewGravity()
	s := sim.New(compute.NewEvaluator(compute.NewDirect(g, 1), nil), integrators.NewSymplecticEuler(), g)
	return NewModel("binary_system", s, pair(), sim.Config{Dt: 0.01, Frames: frames, ValidateState: true}, g)
}

func send(m Model, msgs ...tea.Msg) Model {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestCanvasSetAndUnset(t *testing.T) {
	c := NewCanvas(2, 1)
	if c.PixelWidth() != 4 || c.PixelHeight() != 4 {
		t.Fatalf("unexpected pixel size %dx%d", c.PixelWidth(), c.PixelHeight())
	}

	c.Set(0, 0)
	c.Set(3, 3)
	if c.Grid[0][0] != 0x2801 || c.Grid[0][1] != 0x2880 {
		t.Errorf("unexpected cells %U %U", c.Grid[0][0], c.Grid[0][1])
	}
	if !c.Lit(3, 3) || c.Lit(2, 3) {
		t.Error("Lit disagrees with Set")
	}

	c.Set(-1, 0)
	c.Set(100, 100)
	if c.Lit(-1, 0) || c.Lit(100, 100) {
		t.Error("out of range dots should be ignored")
	}

	c.Unset(0, 0)
	if c.Grid[0][0] != 0x2800 {
		t.Errorf("unset left %U", c.Grid[0][0])
	}

	c.Clear()
	if strings.Trim(c.String(), "⠀") != "" {
		t.Errorf("clear left dots: %q", c.String())
	}
}

func TestCanvasDotAndLine(t *testing.T) {
	c := NewCanvas(4, 2)
	c.Dot(2, 2, true)
	for _, p := range [][2]int{{2, 2}, {3, 2}, {2, 3}, {3, 3}} {
		if !c.Lit(p[0], p[1]) {
			t.Errorf("heavy dot missing %v", p)
		}
	}

	c.Clear()
	c.DrawLine(0, 0, 7, 7)
	for i := 0; i <= 7; i++ {
		if !c.Lit(i, i) {
			t.Errorf("diagonal missing (%d, %d)", i, i)
		}
	}
	if got := strings.Count(c.String(), "\n"); got != 1 {
		t.Errorf("expected 2 rows, got %d line breaks", got+1)
	}
}

func TestCameraProject(t *testing.T) {
	cam := NewCamera()
	cam.Extent = 2

	x, y, ok := cam.Project(r3.Vec{}, 160, 96)
	if !ok || x != 80 || y != 48 {
		t.Errorf("origin projected to (%d, %d, %v)", x, y, ok)
	}

	// y grows downwards on screen
	_, y, _ = cam.Project(r3.Vec{Y: 1}, 160, 96)
	if y != 24 {
		t.Errorf("expected y 24, got %d", y)
	}

	if _, _, ok := cam.Project(r3.Vec{X: 10}, 160, 96); ok {
		t.Error("point far outside should not be visible")
	}

	cam.ZoomBy(0.1)
	if _, _, ok := cam.Project(r3.Vec{X: 10}, 160, 96); !ok {
		t.Error("zooming out should bring the point into view")
	}
}

func TestCameraRotate(t *testing.T) {
	cam := NewCamera()
	cam.Rotate(0, 0, math.Pi/2)

	got := cam.Transform(r3.Vec{X: 1})
	if r3.Norm(r3.Sub(got, r3.Vec{Y: 1})) > 1e-12 {
		t.Errorf("rotating x by 90 degrees about z gave %v", got)
	}

	cam.Reset()
	if got := cam.Transform(r3.Vec{X: 1, Y: 2, Z: 3}); got != (r3.Vec{X: 1, Y: 2, Z: 3}) {
		t.Errorf("reset camera should not rotate, got %v", got)
	}
}

func TestCameraFit(t *testing.T) {
	cam := NewCamera()
	cam.Fit(pair())
	if cam.Extent != 1 {
		t.Errorf("expected extent 1, got %v", cam.Extent)
	}

	cam.Fit(body.NewStore(3))
	if cam.Extent != 1 {
		t.Errorf("empty scene should keep the old extent, got %v", cam.Extent)
	}
}

func TestSparkline(t *testing.T) {
	got := string(Sparkline([]float64{0, 1, 2, 3, 4, 5, 6, 7}, 8))
	if got != "▁▂▃▄▅▆▇█" {
		t.Errorf("unexpected sparkline %q", got)
	}
	if got := Sparkline([]float64{1, 2, 3, 4}, 2); len(got) != 2 {
		t.Errorf("expected 2 samples, got %d", len(got))
	}
	if Sparkline(nil, 5) != nil {
		t.Error("empty input should give no runes")
	}
}

func TestGradientTextKeepsRunes(t *testing.T) {
	if GradientText("", "#000000", "#ffffff") != "" {
		t.Error("empty text should stay empty")
	}
	out := GradientText("N-BODY", "#000000", "not a color")
	for _, r := range "N-BODY" {
		if !strings.ContainsRune(out, r) {
			t.Errorf("rune %q lost in %q", r, out)
		}
	}
}

func TestNextThemeCycles(t *testing.T) {
	defer SetTheme(CurrentTheme.Name)

	SetTheme(Themes[len(Themes)-1].Name)
	NextTheme()
	if CurrentTheme.Name != Themes[0].Name {
		t.Errorf("expected wrap to %s, got %s", Themes[0].Name, CurrentTheme.Name)
	}
	if GetTheme("missing").Name != ThemeDeepSpace.Name {
		t.Error("unknown theme should fall back to deep_space")
	}
}

func TestModelStepsUntilFrames(t *testing.T) {
	m := newPairModel(3)
	initial := m.state.Pos[0]

	m = send(m, TickMsg{}, TickMsg{}, TickMsg{}, TickMsg{})
	if m.Frame() != 3 {
		t.Errorf("expected 3 frames, got %d", m.Frame())
	}
	if m.Running() {
		t.Error("model should pause after the last frame")
	}
	if math.Abs(m.Time()-0.03) > 1e-12 {
		t.Errorf("expected t 0.03, got %v", m.Time())
	}
	if len(m.EnergyHistory()) != 4 {
		t.Errorf("expected initial energy plus 3 frames, got %d", len(m.EnergyHistory()))
	}
	if m.state.Pos[0] == initial {
		t.Error("bodies did not move")
	}
	if m.initial.Pos[0] != initial {
		t.Error("stepping modified the initial scene")
	}
}

func TestModelPauseAndReset(t *testing.T) {
	m := newPairModel(0)
	m = send(m, TickMsg{}, key(" "), TickMsg{}, TickMsg{})
	if m.Frame() != 1 || m.Running() {
		t.Errorf("pause ignored: frame %d running %v", m.Frame(), m.Running())
	}

	m = send(m, key("r"))
	if m.Frame() != 0 || !m.Running() || m.state.Pos[0] != m.initial.Pos[0] {
		t.Error("reset did not restore the initial state")
	}
}

func TestModelScrub(t *testing.T) {
	m := newPairModel(0)
	m = send(m, TickMsg{}, TickMsg{}, TickMsg{})

	m = send(m, key("["))
	if m.Running() || m.playHead != 2 {
		t.Fatalf("rewind should pause on the previous snapshot, head %d", m.playHead)
	}
	if !strings.Contains(m.View(), "REPLAY PAUSED (frame 2)") {
		t.Error("view does not show the replay")
	}

	m = send(m, key("]"), key("]"))
	if m.playHead != -1 {
		t.Errorf("forward past the end should return to live, head %d", m.playHead)
	}
	if m.Frame() != 3 {
		t.Errorf("scrubbing changed the live frame to %d", m.Frame())
	}
}

func TestModelCameraKeys(t *testing.T) {
	m := newPairModel(0)
	m = send(m, key("z"), key("+"))
	if m.Camera().RotZ != rotateStep || m.Camera().Zoom != zoomStep {
		t.Errorf("camera keys ignored: %+v", m.Camera())
	}
	m = send(m, key("f"))
	if m.Camera().RotZ != 0 || m.Camera().Zoom != 1 {
		t.Errorf("fit should reset the camera: %+v", m.Camera())
	}
}

func TestModelHaltsOnNonFiniteForces(t *testing.T) {
	m := newPairModel(0)
	m.state.Pos[1] = r3.Vec{X: math.NaN()}
	m = send(m, TickMsg{})
	if m.Err() == nil || m.Running() {
		t.Fatal("expected the model to halt")
	}
	if !strings.Contains(m.View(), "HALTED") {
		t.Error("view does not show the failure")
	}
}

func TestModelRecording(t *testing.T) {
	out := filepath.Join(t.TempDir(), "watch")
	cfg := render.Config{Width: 64, Height: 48, FPS: 10, MaxScale: 1, Output: out, Codec: "png"}
	m := newPairModel(0).WithRecording(cfg, zerolog.Nop())

	m = send(m, key("g"), TickMsg{}, TickMsg{}, key("g"))
	entries, err := os.ReadDir(out + "_png")
	if err != nil {
		t.Fatalf("no frames written: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 frames, got %d", len(entries))
	}
	if !strings.Contains(m.notice, "saved 2 frames") {
		t.Errorf("unexpected notice %q", m.notice)
	}
}

func TestMenuStartsWatch(t *testing.T) {
	base := experiment.Config{
		Bodies: 20, Dt: 0.01, Integrator: "symplectic", Mode: "direct", Workers: 1,
		G: physics.DefaultG, Softening: physics.DefaultSoftening,
	}
	reg := experiment.NewRegistry()
	var m tea.Model = NewMenu(base, reg, zerolog.Nop())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	menu := m.(Menu)
	if menu.Stage() != stageConfig || menu.Config().Scene != reg.ListScenes()[1] {
		t.Fatalf("expected config page for %s, got stage %d scene %s", reg.ListScenes()[1], menu.Stage(), menu.Config().Scene)
	}

	m, _ = m.Update(key("l"))
	if got := m.(Menu).Config().Bodies; got != 22 {
		t.Errorf("expected 22 bodies after nudge, got %d", got)
	}

	m, cmd := m.Update(key("s"))
	if m.(Menu).Stage() != stageWatch || cmd == nil {
		t.Fatalf("expected watch to start, err %v", m.(Menu).err)
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.(Menu).Stage() != stageConfig {
		t.Error("esc should leave the watch")
	}
}

func TestMenuRejectsBadSetup(t *testing.T) {
	base := experiment.Config{Bodies: 10, Dt: 0.01, Integrator: "leapfrog", Mode: "direct"}
	m := NewMenu(base, experiment.NewRegistry(), zerolog.Nop())
	m.cfg.Scene = "random"
	m.stage = stageConfig

	next, _ := m.Update(key("s"))
	if next.(Menu).Stage() != stageConfig || next.(Menu).err == nil {
		t.Error("unknown integrator should keep the config page with an error")
	}
}
