package viz

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kr1s0404/fmm/internal/body"
	"github.com/kr1s0404/fmm/internal/dynamo"
	"github.com/kr1s0404/fmm/internal/export"
	"github.com/kr1s0404/fmm/internal/physics"
	"github.com/kr1s0404/fmm/internal/render"
	"github.com/kr1s0404/fmm/internal/sim"
)

const (
	canvasCols = 80
	canvasRows = 24

	// positions kept across all snapshots
	historyBudget   = 2_000_000
	historyCapacity = 600

	// energy is O(n^2) per frame
	maxEnergyBodies = 5000

	trailBodies = 8
	trailLength = 120
	rotateStep  = 0.1
	zoomStep    = 1.1
	tickRate    = time.Second / 30
)

var (
	canvasStyle = lipgloss.NewStyle().Padding(1, 2)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(45)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type TickMsg time.Time

// Snapshot stores positions at a specific time for replay.
type Snapshot struct {
	Pos    []r3.Vec
	Frame  int
	Time   float64
	Energy float64
}

// Model steps a simulation once per tick and draws it.
type Model struct {
	title   string
	sim     *sim.Simulator
	cfg     sim.Config
	gravity physics.Gravity

	initial *body.Store
	state   *body.Store
	frame   int
	t       float64
	e0      float64

	canvas     *Canvas
	camera     *Camera
	heavy      float64
	trails     [][]r3.Vec
	showTrails bool

	running       bool
	done          bool
	err           error
	energyHistory []float64
	history       []Snapshot
	capacity      int
	playHead      int
	showHelp      bool

	record    render.Config
	recorder  *export.Lazy
	projector *render.Projector
	recorded  int
	notice    string
	log       zerolog.Logger
}

// NewModel prepares st for interactive stepping. st is cloned so reset can
// restore it. cfg.Frames > 0 pauses the run after that many frames.
func NewModel(title string, s *sim.Simulator, st *body.Store, cfg sim.Config, g physics.Gravity) Model {
	m := Model{
		title:      title,
		sim:        s,
		cfg:        cfg,
		gravity:    g,
		initial:    st.Clone(),
		state:      st.Clone(),
		canvas:     NewCanvas(canvasCols, canvasRows),
		camera:     NewCamera(),
		showTrails: true,
		running:    true,
		playHead:   -1,
		capacity:   historyCapacity,
		record:     render.DefaultConfig(title),
		log:        zerolog.Nop(),
	}
	if n := st.Len(); n > 0 {
		m.heavy = 4 * st.TotalMass() / float64(n)
		m.capacity = max(10, min(historyCapacity, historyBudget/n))
	}
	m.record.Codec = "gif"
	m.reset()
	return m
}

// WithRecording sets where G writes frames.
func (m Model) WithRecording(cfg render.Config, log zerolog.Logger) Model {
	m.record = cfg
	m.log = log
	return m
}

func (m Model) Frame() int               { return m.frame }
func (m Model) Time() float64            { return m.t }
func (m Model) Running() bool            { return m.running }
func (m Model) Err() error               { return m.err }
func (m Model) EnergyHistory() []float64 { return m.energyHistory }
func (m Model) Camera() *Camera          { return m.camera }

func tick() tea.Cmd {
	return tea.Tick(tickRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles input events and steps the simulation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.stopRecording()
			return m, tea.Quit
		case " ":
			if !m.done {
				m.running = !m.running
			}
		case "r":
			m.stopRecording()
			m.reset()
		case "[":
			m.scrub(-1)
		case "]":
			m.scrub(1)
		case "g":
			if m.recorder != nil {
				m.stopRecording()
			} else {
				m.startRecording()
			}
		case "?":
			m.showHelp = !m.showHelp
		case "t":
			NextTheme()
		case "p":
			m.showTrails = !m.showTrails
		case "x":
			m.camera.Rotate(rotateStep, 0, 0)
		case "X":
			m.camera.Rotate(-rotateStep, 0, 0)
		case "y":
			m.camera.Rotate(0, rotateStep, 0)
		case "Y":
			m.camera.Rotate(0, -rotateStep, 0)
		case "z":
			m.camera.Rotate(0, 0, rotateStep)
		case "Z":
			m.camera.Rotate(0, 0, -rotateStep)
		case "+", "=":
			m.camera.ZoomBy(zoomStep)
		case "-", "_":
			m.camera.ZoomBy(1 / zoomStep)
		case "f":
			m.camera.Reset()
			m.camera.Fit(m.state)
		}
	case TickMsg:
		if m.running {
			if m.playHead == -1 {
				m.step()
			} else {
				m.playHead++
				if m.playHead >= len(m.history) {
					m.playHead = -1
				}
			}
		}
		return m, tick()
	}
	return m, nil
}

// step advances the simulation by one frame.
func (m *Model) step() {
	if m.cfg.Frames > 0 && m.frame >= m.cfg.Frames {
		m.running, m.done = false, true
		return
	}
	if err := m.sim.Step(m.state, m.cfg); err != nil {
		m.err = err
		m.running = false
		m.done = errors.Is(err, dynamo.ErrNumericInstability)
		return
	}
	m.frame++
	m.t += m.cfg.Dt
	m.capture()
	m.writeFrame()
}

func (m *Model) capture() {
	energy := math.NaN()
	if m.state.Len() <= maxEnergyBodies {
		energy = m.gravity.Energy(m.state)
		m.energyHistory = append(m.energyHistory, energy)
		if len(m.energyHistory) > m.capacity {
			m.energyHistory = m.energyHistory[1:]
		}
	}

	pos := make([]r3.Vec, len(m.state.Pos))
	copy(pos, m.state.Pos)
	m.history = append(m.history, Snapshot{Pos: pos, Frame: m.frame, Time: m.t, Energy: energy})
	if len(m.history) > m.capacity {
		m.history = m.history[1:]
	}

	for i := range m.trails {
		m.trails[i] = append(m.trails[i], m.state.Pos[i])
		if len(m.trails[i]) > trailLength {
			m.trails[i] = m.trails[i][1:]
		}
	}
}

// scrub changes the playback position in history.
func (m *Model) scrub(dir int) {
	if m.playHead == -1 {
		if len(m.history) == 0 {
			return
		}
		m.playHead = len(m.history) - 1
		m.running = false
	}
	m.playHead += dir
	if m.playHead < 0 {
		m.playHead = 0
	}
	if m.playHead >= len(m.history) {
		m.playHead = -1
	}
}

// reset restores the initial bodies and clears all history.
func (m *Model) reset() {
	m.state = m.initial.Clone()
	m.frame, m.t = 0, 0
	m.err = nil
	m.done = false
	m.running = true
	m.playHead = -1
	m.energyHistory = m.energyHistory[:0]
	m.history = m.history[:0]
	m.trails = make([][]r3.Vec, min(trailBodies, m.state.Len()))
	m.e0 = math.NaN()
	if m.state.Len() <= maxEnergyBodies {
		m.e0 = m.gravity.Energy(m.state)
	}
	m.camera.Reset()
	m.camera.Fit(m.state)
	m.capture()
}

func (m *Model) startRecording() {
	m.projector = render.NewProjector(m.record)
	m.recorder = export.NewLazy(export.NewFileSink(), m.record, m.log)
	m.recorded = 0
	m.notice = "recording to " + m.recorder.Path()
}

func (m *Model) writeFrame() {
	if m.recorder == nil {
		return
	}
	frame := m.projector.Render(m.state, m.recorded)
	err := m.recorder.WriteFrame(frame)
	m.projector.Release(frame)
	if err != nil {
		m.notice = err.Error()
		if m.recorder.Disabled() {
			m.recorder, m.projector = nil, nil
		}
		return
	}
	m.recorded++
}

func (m *Model) stopRecording() {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.Close(); err != nil {
		m.notice = err.Error()
	} else if m.recorded > 0 {
		m.notice = fmt.Sprintf("saved %d frames to %s", m.recorded, m.recorder.Path())
	}
	m.recorder, m.projector = nil, nil
}

// positions returns what is on screen: the live bodies or a replayed
// snapshot.
func (m *Model) positions() ([]r3.Vec, Snapshot, bool) {
	if m.playHead >= 0 && m.playHead < len(m.history) {
		snap := m.history[m.playHead]
		return snap.Pos, snap, true
	}
	return m.state.Pos, Snapshot{}, false
}

func (m *Model) draw() {
	m.canvas.Clear()
	w, h := m.canvas.PixelWidth(), m.canvas.PixelHeight()

	if m.showTrails {
		for _, trail := range m.trails {
			for i := 1; i < len(trail); i++ {
				x0, y0, ok0 := m.camera.Project(trail[i-1], w, h)
				x1, y1, ok1 := m.camera.Project(trail[i], w, h)
				if ok0 && ok1 {
					m.canvas.DrawLine(x0, y0, x1, y1)
				}
			}
		}
	}

	pos, _, _ := m.positions()
	for i, p := range pos {
		if x, y, ok := m.camera.Project(p, w, h); ok {
			m.canvas.Dot(x, y, m.state.Mass[i] > m.heavy)
		}
	}
}

func (m Model) status() string {
	_, snap, replay := m.positions()
	switch {
	case m.err != nil:
		return lipgloss.NewStyle().Foreground(CurrentTheme.Error).Bold(true).Render("HALTED: " + m.err.Error())
	case replay && m.running:
		return StatusPaused.Render(fmt.Sprintf("REPLAYING (frame %d)", snap.Frame))
	case replay:
		return StatusPaused.Render(fmt.Sprintf("REPLAY PAUSED (frame %d)", snap.Frame))
	case m.done:
		return StatusRunning.Render("DONE")
	case !m.running:
		return StatusPaused.Render("PAUSED")
	case m.recorder != nil:
		return StatusRecording.Render("● REC")
	}
	return StatusRunning.Render("RUNNING")
}

func (m Model) stat(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value) + "\n"
}

// View renders the TUI interface.
func (m Model) View() string {
	m.draw()
	canvasView := canvasStyle.Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(GradientText(strings.ToUpper(m.title), CurrentTheme.Primary, CurrentTheme.Secondary) + "\n")
	s.WriteString(m.status() + "\n\n")

	energies := m.energyHistory
	if len(energies) > 1 {
		chart := asciigraph.Plot(energies, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Energy"))
		s.WriteString(graphStyle.Render(chart) + "\n\n")
	}

	frame, t, energy := m.frame, m.t, math.NaN()
	if len(energies) > 0 {
		energy = energies[len(energies)-1]
	}
	if _, snap, replay := m.positions(); replay {
		frame, t, energy = snap.Frame, snap.Time, snap.Energy
	}

	if m.cfg.Frames > 0 {
		s.WriteString(m.stat("Frame", fmt.Sprintf("%d / %d", frame, m.cfg.Frames)))
		s.WriteString(ProgressBar(float64(frame)/float64(m.cfg.Frames), 30) + "\n")
	} else {
		s.WriteString(m.stat("Frame", fmt.Sprintf("%d", frame)))
	}
	s.WriteString(m.stat("Time", fmt.Sprintf("%.3f", t)))
	s.WriteString(m.stat("Bodies", fmt.Sprintf("%d", m.state.Len())))
	s.WriteString(m.stat("Mode", m.cfg.Mode.String()))
	if math.IsNaN(energy) {
		s.WriteString(m.stat("Energy", "n/a"))
	} else {
		s.WriteString(m.stat("Energy", fmt.Sprintf("%.4f", energy)))
		if m.e0 != 0 && !math.IsNaN(m.e0) {
			s.WriteString(m.stat("Drift", fmt.Sprintf("%.2e", math.Abs(energy-m.e0)/math.Abs(m.e0))))
		}
	}
	s.WriteString(m.stat("Zoom", fmt.Sprintf("%.2fx", m.camera.Zoom)))
	if m.notice != "" {
		s.WriteString("\n" + KeyHint.Render(m.notice) + "\n")
	}

	s.WriteString("\n" + Separator(38) + "\n")
	s.WriteString(helpStyle.Render("SP:Pause R:Reset Q:Quit\nT:Theme  G:Record ?:Help\n[ ]:Time-Travel xyz:Rotate +-:Zoom"))
	statsView := statsStyle.Render(s.String())
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsView)
	if m.showHelp {
		return `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume simulation  ║
║  R        - Reset simulation         ║
║  Q        - Quit                     ║
║  [        - Rewind (time travel)     ║
║  ]        - Forward (time travel)    ║
║  x/y/z    - Rotate view (shift: back)║
║  + / -    - Zoom in / out            ║
║  F        - Fit view to bodies       ║
║  P        - Toggle trails            ║
║  G        - Toggle recording         ║
║  T        - Cycle themes             ║
║  ?        - Toggle this help         ║
╚══════════════════════════════════════╝
` + "\n\n" + mainView
	}
	return mainView
}

// RunWatch runs m full screen until the user quits.
func RunWatch(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
