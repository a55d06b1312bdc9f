package viz

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/kr1s0404/fmm/internal/experiment"
)

var (
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ffff")).Bold(true)
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Bold(true)
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff88ff"))
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#555566"))
	idleDesc     = lipgloss.NewStyle().Foreground(lipgloss.Color("#444455"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#00aaaa")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4757"))
	subtitleRule = Subtle.Render("─────────────────────────")
)

var sceneInfo = map[string]string{
	"random":        "uniform cloud",
	"spiral_galaxy": "disc around a heavy core",
	"binary_system": "two stars and debris",
	"solar_system":  "sun and planets",
}

const (
	stageMenu = iota
	stageConfig
	stageWatch
)

// params edited on the config page, in display order
var menuParams = []string{"bodies", "dt", "frames", "seed", "theta"}

// Menu picks a scene and its parameters, then hands over to a Model.
type Menu struct {
	stage   int
	cursor  int
	scenes  []string
	base    experiment.Config
	cfg     experiment.Config
	param   int
	editing bool
	editBuf string
	err     error
	reg     *experiment.Registry
	log     zerolog.Logger
	watch   Model
}

func NewMenu(base experiment.Config, reg *experiment.Registry, log zerolog.Logger) Menu {
	return Menu{
		stage:  stageMenu,
		scenes: reg.ListScenes(),
		base:   base,
		cfg:    base,
		reg:    reg,
		log:    log,
	}
}

// Prepare sets up cfg and wraps the resulting simulator in a Model that
// runs until the user stops it.
func Prepare(cfg experiment.Config, reg *experiment.Registry, log zerolog.Logger) (Model, error) {
	exp := experiment.New(cfg)
	if err := exp.Setup(reg, log); err != nil {
		return Model{}, err
	}
	simCfg := exp.SimConfig()
	simCfg.RecordEnergy = false
	return NewModel(cfg.Scene, exp.GetSimulator(), exp.Scene(), simCfg, cfg.Gravity()), nil
}

func (m Menu) Stage() int                { return m.stage }
func (m Menu) Config() experiment.Config { return m.cfg }

func (m Menu) Init() tea.Cmd { return nil }

func (m Menu) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.stage == stageWatch {
		if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
			m.watch.stopRecording()
			m.stage = stageConfig
			return m, nil
		}
		next, cmd := m.watch.Update(msg)
		m.watch = next.(Model)
		return m, cmd
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch m.stage {
	case stageMenu:
		return m.menuKey(key)
	case stageConfig:
		return m.configKey(key)
	}
	return m, nil
}

func (m Menu) menuKey(msg tea.KeyMsg) (Menu, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.scenes)-1 {
			m.cursor++
		}
	case "enter", " ":
		m.cfg = m.base
		m.cfg.Scene = m.scenes[m.cursor]
		m.stage, m.param, m.err = stageConfig, 0, nil
	}
	return m, nil
}

func (m Menu) configKey(msg tea.KeyMsg) (Menu, tea.Cmd) {
	if m.editing {
		switch msg.String() {
		case "enter":
			m.err = m.set(menuParams[m.param], m.editBuf)
			m.editing, m.editBuf = false, ""
		case "esc":
			m.editing, m.editBuf = false, ""
		case "backspace":
			if len(m.editBuf) > 0 {
				m.editBuf = m.editBuf[:len(m.editBuf)-1]
			}
		default:
			if s := msg.String(); len(s) == 1 && strings.ContainsAny(s, "0123456789.-e") {
				m.editBuf += s
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "esc":
		m.stage = stageMenu
	case "up", "k":
		if m.param > 0 {
			m.param--
		}
	case "down", "j":
		if m.param < len(menuParams)-1 {
			m.param++
		}
	case "enter", " ":
		m.editing, m.editBuf = true, m.value(menuParams[m.param])
	case "left", "h":
		m.nudge(menuParams[m.param], -1)
	case "right", "l":
		m.nudge(menuParams[m.param], 1)
	case "a":
		if m.cfg.Mode == "accelerated" {
			m.cfg.Mode = "direct"
		} else {
			m.cfg.Mode = "accelerated"
		}
	case "s":
		return m.start()
	}
	return m, nil
}

func (m *Menu) value(name string) string {
	switch name {
	case "bodies":
		return strconv.Itoa(m.cfg.Bodies)
	case "dt":
		return strconv.FormatFloat(m.cfg.Dt, 'g', -1, 64)
	case "frames":
		return strconv.Itoa(m.cfg.Frames)
	case "seed":
		return strconv.FormatInt(m.cfg.Seed, 10)
	case "theta":
		return strconv.FormatFloat(m.cfg.Theta, 'g', -1, 64)
	}
	return ""
}

func (m *Menu) set(name, raw string) error {
	var err error
	switch name {
	case "bodies":
		m.cfg.Bodies, err = strconv.Atoi(raw)
	case "dt":
		m.cfg.Dt, err = strconv.ParseFloat(raw, 64)
	case "frames":
		m.cfg.Frames, err = strconv.Atoi(raw)
	case "seed":
		m.cfg.Seed, err = strconv.ParseInt(raw, 10, 64)
	case "theta":
		m.cfg.Theta, err = strconv.ParseFloat(raw, 64)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// nudge steps a parameter up or down. Counts move by a tenth, floats by
// a factor of two.
func (m *Menu) nudge(name string, dir int) {
	switch name {
	case "bodies":
		m.cfg.Bodies = max(1, m.cfg.Bodies+dir*max(1, m.cfg.Bodies/10))
	case "frames":
		m.cfg.Frames = max(0, m.cfg.Frames+dir*max(10, m.cfg.Frames/10))
	case "seed":
		m.cfg.Seed += int64(dir)
	case "dt":
		m.cfg.Dt = scaleBy(m.cfg.Dt, dir, 1e-3)
	case "theta":
		m.cfg.Theta = scaleBy(m.cfg.Theta, dir, 0.1)
	}
}

func scaleBy(v float64, dir int, fallback float64) float64 {
	if v <= 0 {
		return fallback
	}
	if dir > 0 {
		return v * 2
	}
	return v / 2
}

func (m Menu) start() (Menu, tea.Cmd) {
	watch, err := Prepare(m.cfg, m.reg, m.log)
	if err != nil {
		m.err = err
		return m, nil
	}
	m.watch = watch
	m.stage, m.err = stageWatch, nil
	return m, m.watch.Init()
}

func (m Menu) View() string {
	switch m.stage {
	case stageMenu:
		return m.viewMenu()
	case stageConfig:
		return m.viewConfig()
	case stageWatch:
		return m.watch.View()
	}
	return ""
}

func hints(pairs ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		b.WriteString(keyStyle.Render(pairs[i]) + idleStyle.Render(" "+pairs[i+1]+"  "))
	}
	return b.String()
}

func (m Menu) viewMenu() string {
	var b strings.Builder
	b.WriteString("\n\n    " + GradientText("N-BODY", CurrentTheme.Primary, CurrentTheme.Accent) + "\n    " +
		Subtle.Render("gravity simulation") + "\n    " + subtitleRule + "\n\n")
	for i, name := range m.scenes {
		desc := sceneInfo[name]
		if i == m.cursor {
			b.WriteString(fmt.Sprintf("    %s %s  %s\n", cursorStyle.Render("▸"), activeStyle.Render(fmt.Sprintf("%-16s", name)), accentStyle.Render(desc)))
		} else {
			b.WriteString(fmt.Sprintf("    %s  %s\n", idleStyle.Render(fmt.Sprintf("  %-16s", name)), idleDesc.Render(desc)))
		}
	}
	b.WriteString("\n    " + hints("j/k", "navigate", "enter", "select", "q", "quit") + "\n")
	return b.String()
}

func (m Menu) viewConfig() string {
	var b strings.Builder
	b.WriteString("\n\n    " + GradientText(strings.ToUpper(m.cfg.Scene), CurrentTheme.Primary, CurrentTheme.Accent) + "\n    " +
		Subtle.Render(sceneInfo[m.cfg.Scene]) + "\n    " + subtitleRule + "\n\n")
	for i, name := range menuParams {
		val := fmt.Sprintf("%10s", m.value(name))
		if m.editing && i == m.param {
			val = fmt.Sprintf("%10s", m.editBuf+"_")
		}
		if i == m.param {
			b.WriteString(fmt.Sprintf("    %s %s %s\n", cursorStyle.Render("▸"), activeStyle.Render(fmt.Sprintf("%-10s", name)), accentStyle.Bold(true).Render(val)))
		} else {
			b.WriteString(fmt.Sprintf("    %s %s\n", idleStyle.Render(fmt.Sprintf("  %-10s", name)), idleDesc.Render(val)))
		}
	}
	mode := m.cfg.Mode
	if mode == "" {
		mode = "direct"
	}
	b.WriteString(fmt.Sprintf("\n    %s %s\n", idleStyle.Render(fmt.Sprintf("  %-10s", "mode")), accentStyle.Render(mode+" ("+m.cfg.Backend+")")))
	if m.err != nil {
		b.WriteString("\n    " + errorStyle.Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n    " + hints("j/k", "select", "h/l", "adjust", "a", "mode", "s", "start", "esc", "back") + "\n")
	return b.String()
}

// RunInteractive opens the scene menu with base as the starting
// parameters.
func RunInteractive(base experiment.Config, reg *experiment.Registry, log zerolog.Logger) error {
	_, err := tea.NewProgram(NewMenu(base, reg, log), tea.WithAltScreen()).Run()
	return err
}
