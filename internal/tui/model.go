// Package tui is a terminal front-end for the block server.
//
// The selection page lists the task's blocks with the outcome of each
// run. Choosing one starts it; while it runs, every tick hands the server
// a terminal surface and renders what the actions drew. Frames cannot be
// shown in a terminal, so they are drawn as labelled boxes.
//
// The model is single-threaded like any bubbletea model. The server and
// surface are only touched from Update.
package tui

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/cogtask/internal/server"
)

// tickMsg drives the render loop.
type tickMsg struct{}

var (
	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).MarginBottom(1)
	descriptionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).MarginBottom(1)
	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	successStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failureStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	interruptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	buttonStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 2).
			Width(24)
	selectedStyle = buttonStyle.BorderForeground(lipgloss.Color("12")).Bold(true)
	frameStyle    = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
)

// Model is the bubbletea model of a task session.
type Model struct {
	srv      *server.Server
	textures *Textures
	surface  *surface
	period   time.Duration
	perRow   int

	cursor  int
	last    int
	width   int
	height  int
	message string
	err     error
}

// NewModel returns a model driving srv. textures must be the allocator
// the server's resources were loaded with.
func NewModel(srv *server.Server, textures *Textures) Model {
	cfg := srv.Task().ResolvedConfig()
	return Model{
		srv:      srv,
		textures: textures,
		surface:  &surface{},
		period:   cfg.TickPeriod(),
		perRow:   cfg.BlocksPerRow,
		last:     -1,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.period, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.srv.Close()
			return m, tea.Quit
		}
		if m.srv.Busy() {
			if k, ok := keyOf(msg); ok {
				m.surface.press(k)
			}
			return m, nil
		}
		return m.handleSelectionKeys(msg)

	case tickMsg:
		m.surface.begin()
		if err := m.srv.Show(m.surface); err != nil {
			slog.Warn("render error", "error", err)
			m.err = err
		}
		if m.last >= 0 && !m.srv.Busy() {
			m.message = m.srv.Progress(m.last).String()
			m.last = -1
		}
		return m, m.tick()
	}
	return m, nil
}

func (m Model) handleSelectionKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(m.srv.Task().Blocks)
	switch msg.String() {
	case "q":
		m.srv.Close()
		return m, tea.Quit
	case "left", "h":
		if m.cursor > 0 {
			m.cursor--
		}
	case "right", "l":
		if m.cursor < n-1 {
			m.cursor++
		}
	case "up", "k":
		if m.cursor-m.perRow >= 0 {
			m.cursor -= m.perRow
		}
	case "down", "j":
		if m.cursor+m.perRow < n {
			m.cursor += m.perRow
		}
	case "enter", " ":
		if err := m.srv.StartBlock(m.cursor); err != nil {
			m.message = err.Error()
			return m, nil
		}
		m.last = m.cursor
		m.message = ""
		m.err = nil
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	switch m.srv.Page() {
	case server.PageLoading:
		return statusStyle.Render("Loading resources...")
	case server.PageBlock:
		return m.viewBlock()
	default:
		return m.viewSelection()
	}
}

func (m Model) viewSelection() string {
	t := m.srv.Task()

	var b strings.Builder
	b.WriteString(titleStyle.Render(t.Title()))
	b.WriteString("\n")
	b.WriteString(descriptionStyle.Render(strings.TrimSpace(t.Description)))
	b.WriteString("\n")

	var rows []string
	var row []string
	for i, label := range t.Labels() {
		style := buttonStyle
		if i == m.cursor {
			style = selectedStyle
		}
		row = append(row, style.Render(label+"\n"+progressLabel(m.srv.Progress(i))))
		if len(row) == m.perRow {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	b.WriteString(lipgloss.JoinVertical(lipgloss.Left, rows...))
	b.WriteString("\n")

	if m.message != "" {
		b.WriteString("\n")
		b.WriteString(m.message)
		b.WriteString("\n")
	}
	b.WriteString(statusStyle.Render("\n←/→/↑/↓ select • enter start • q quit"))
	return b.String()
}

func (m Model) viewBlock() string {
	var parts []string
	for _, img := range m.surface.images {
		label := fmt.Sprintf("%s\n%.0fx%.0f ×%.2g",
			m.textures.Name(img.frame.Texture), img.frame.Width, img.frame.Height, img.scale)
		parts = append(parts, frameStyle.Render(label))
	}
	parts = append(parts, m.surface.texts...)

	body := lipgloss.JoinVertical(lipgloss.Center, parts...)
	if m.width > 0 && m.height > 0 {
		body = lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, body)
	}
	return body + "\n" + statusStyle.Render(m.statusLine())
}

func (m Model) statusLine() string {
	key := m.srv.Task().Block(m.srv.Active()).ResolvedConfig().InterruptKey
	line := fmt.Sprintf("run %s • press %s twice to interrupt", m.srv.RunID(), key)
	if m.err != nil {
		line += " • " + m.err.Error()
	}
	return line
}

func progressLabel(p server.Progress) string {
	switch p.Kind {
	case server.ProgressSuccess:
		return successStyle.Render("done")
	case server.ProgressInterrupt:
		return interruptStyle.Render("interrupted")
	case server.ProgressFailure:
		return failureStyle.Render("failed")
	case server.ProgressCleanupError:
		return failureStyle.Render("clean-up failed")
	default:
		return statusStyle.Render("not run")
	}
}

// Run starts a full-screen session for srv and blocks until the user
// quits. A non-negative start selects and starts that block right away.
func Run(srv *server.Server, textures *Textures, start int) error {
	m := NewModel(srv, textures)
	if start >= 0 {
		if err := srv.StartBlock(start); err != nil {
			return err
		}
		m.cursor, m.last = start, start
	}

	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
