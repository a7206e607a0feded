package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/productdevbook/whichport/internal/listener"
	"github.com/productdevbook/whichport/internal/output"
	"github.com/productdevbook/whichport/internal/query"
	"github.com/productdevbook/whichport/internal/scanner"
	"github.com/sahilm/fuzzy"
)

var (
	baseStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

var columns = []table.Column{
	{Title: "PORT", Width: 6},
	{Title: "PID", Width: 8},
	{Title: "COMMAND", Width: 18},
	{Title: "USER", Width: 10},
	{Title: "ENDPOINTS", Width: 30},
	{Title: "ROLE", Width: 36},
}

type tuiModel struct {
	listeners    []listener.Listener
	notListening []uint16
	meta         scanner.Metadata
	table        table.Model
	filter       textinput.Model
	filtering    bool
	height       int
}

// Run shows a query result in a browsable table until the user quits. The
// data is a snapshot: nothing is re-collected while the table is open.
func Run(res *query.Result) error {
	_, err := tea.NewProgram(newModel(res), tea.WithAltScreen()).Run()
	return err
}

func newModel(res *query.Result) tuiModel {
	m := tuiModel{meta: res.Meta}

	switch res.Mode {
	case query.ModeAll:
		m.listeners = res.Listeners
	default:
		for _, r := range res.Ports {
			if !r.Listening {
				m.notListening = append(m.notListening, r.Port)
			}
			m.listeners = append(m.listeners, r.Listeners...)
		}
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows(m.listeners)),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)
	m.table = t

	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "filter by port, command, user, endpoint or role"
	ti.CharLimit = 64
	m.filter = ti

	return m
}

func (m tuiModel) Init() tea.Cmd {
	return nil
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		if h := msg.Height - 8; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil

	case tea.KeyMsg:
		if m.filtering {
			switch msg.String() {
			case "esc":
				m.filtering = false
				m.filter.SetValue("")
				m.filter.Blur()
				m.table.Focus()
				m.applyFilter()
				return m, nil
			case "enter":
				m.filtering = false
				m.filter.Blur()
				m.table.Focus()
				return m, nil
			}
			m.filter, cmd = m.filter.Update(msg)
			m.applyFilter()
			return m, cmd
		}

		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "/":
			m.filtering = true
			m.table.Blur()
			cmd = m.filter.Focus()
			return m, cmd
		}
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *tuiModel) applyFilter() {
	m.table.SetRows(rows(filterListeners(m.listeners, m.filter.Value())))
	m.table.GotoTop()
}

func (m tuiModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("whichport"))
	b.WriteString(statusStyle.Render(fmt.Sprintf("  source %s, collected %s",
		m.meta.Source, time.Unix(m.meta.Timestamp, 0).Format("15:04:05"))))
	b.WriteString("\n")

	b.WriteString(baseStyle.Render(m.table.View()))
	b.WriteString("\n")

	for _, p := range m.notListening {
		b.WriteString(warnStyle.Render(fmt.Sprintf("port %d: not listening", p)))
		b.WriteString("\n")
	}
	if n := len(m.meta.Errors); n > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("%d source(s) failed before %s", n, m.meta.Source)))
		b.WriteString("\n")
	}

	if m.filtering || m.filter.Value() != "" {
		b.WriteString(m.filter.View())
		b.WriteString("\n")
	}
	b.WriteString(statusStyle.Render("↑/↓ move • / filter • esc clear • q quit"))

	return b.String()
}

func rows(listeners []listener.Listener) []table.Row {
	out := make([]table.Row, 0, len(listeners))
	for _, l := range listeners {
		out = append(out, table.Row{
			fmt.Sprint(l.Port),
			l.PID.String(),
			output.Sanitize(l.Command),
			output.Sanitize(l.User),
			output.Sanitize(strings.Join(l.Endpoints, ", ")),
			fmt.Sprintf("%s (%s)", l.Role.Description, l.Role.Confidence),
		})
	}
	return out
}

// listenerSource lets fuzzy search one line per listener
type listenerSource []listener.Listener

func (s listenerSource) String(i int) string {
	l := s[i]
	return fmt.Sprintf("%d %s %s %s %s", l.Port, l.Command, l.User, strings.Join(l.Endpoints, " "), l.Role.Description)
}

func (s listenerSource) Len() int {
	return len(s)
}

// filterListeners returns the listeners matching pattern, best match first
func filterListeners(listeners []listener.Listener, pattern string) []listener.Listener {
	if strings.TrimSpace(pattern) == "" {
		return listeners
	}

	matches := fuzzy.FindFrom(pattern, listenerSource(listeners))
	out := make([]listener.Listener, 0, len(matches))
	for _, match := range matches {
		out = append(out, listeners[match.Index])
	}
	return out
}
