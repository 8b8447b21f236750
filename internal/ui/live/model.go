package live

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const recentRows = 64

// Model renders a live console view of the dispatch loop.
type Model struct {
	state        State
	table        table.Model
	events       <-chan Event
	tickInterval time.Duration
	startedAt    time.Time
	now          time.Time
	noColor      bool
}

// Options configures the live UI model.
type Options struct {
	Total        int
	NoColor      bool
	TickInterval time.Duration
}

// NewModel constructs a live UI model for an event stream.
func NewModel(events <-chan Event, opts Options) Model {
	tickInterval := opts.TickInterval
	if tickInterval <= 0 {
		tickInterval = 200 * time.Millisecond
	}
	t := table.New(
		table.WithColumns(defaultColumns()),
		table.WithRows([]table.Row{}),
		table.WithFocused(false),
	)
	t.SetStyles(tableStyles(opts.NoColor))
	return Model{
		state:        State{Total: opts.Total},
		table:        t,
		events:       events,
		tickInterval: tickInterval,
		startedAt:    time.Now(),
		now:          time.Now(),
		noColor:      opts.NoColor,
	}
}

// Init starts ticking and waits for the first event.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), tick(m.tickInterval))
}

// Update consumes UI events and timer ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetWidth(typed.Width)
		m.table.SetHeight(maxInt(typed.Height-4, 1))
		return m, nil
	case eventMsg:
		if typed.closed {
			return m, tea.Quit
		}
		m = m.applyEvent(typed.event)
		return m, waitForEvent(m.events)
	case tickMsg:
		m.now = time.Time(typed)
		return m, tick(m.tickInterval)
	case tea.KeyMsg:
		if typed.String() == "ctrl+c" || typed.String() == "q" {
			return m, tea.Quit
		}
	}
	return m, nil
}

// View renders the live UI.
func (m Model) View() string {
	header := renderHeader(m.state, m.now.Sub(m.startedAt), m.noColor)
	tableView := m.table.View()
	footer := renderFooter(m.noColor)
	return lipgloss.JoinVertical(lipgloss.Left, header, tableView, footer)
}

// applyEvent folds an event into the counters and the recent table.
func (m Model) applyEvent(ev Event) Model {
	m.state = applyToState(m.state, ev)
	row := rowForEvent(ev)
	if row == nil {
		return m
	}
	rows := append([]table.Row{row}, m.table.Rows()...)
	if len(rows) > recentRows {
		rows = rows[:recentRows]
	}
	m.table.SetRows(rows)
	return m
}

// rowForEvent renders a table row for completion events.
func rowForEvent(ev Event) table.Row {
	switch ev.Kind {
	case EventSuccess:
		detail := ""
		if ev.ActualCost >= 0 {
			detail = fmt.Sprintf("cost %d", ev.ActualCost)
		}
		return table.Row{fmt.Sprintf("%d", ev.ID), "ok", fmt.Sprintf("%d", ev.Attempt), detail}
	case EventRetry:
		return table.Row{fmt.Sprintf("%d", ev.ID), "retry", fmt.Sprintf("%d", ev.Attempt), ev.Reason}
	case EventFailure:
		return table.Row{fmt.Sprintf("%d", ev.ID), "failed", fmt.Sprintf("%d", ev.Attempt), ev.Reason}
	default:
		return nil
	}
}

// eventMsg wraps a UI event for Bubble Tea.
type eventMsg struct {
	event  Event
	closed bool
}

// tickMsg carries a clock tick for elapsed-time updates.
type tickMsg time.Time

// waitForEvent blocks until a UI event is available.
func waitForEvent(events <-chan Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventMsg{closed: true}
		}
		return eventMsg{event: ev}
	}
}

// tick schedules the next timer tick.
func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
