package live

import (
	"io"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"parareq/pkg/dispatch"
)

// Controller runs the live UI and implements dispatch.Observer.
type Controller struct {
	events    chan Event
	program   *tea.Program
	done      chan struct{}
	closeOnce sync.Once
}

// Start launches a live UI controller that writes to stdout.
func Start(stdout io.Writer, opts Options) *Controller {
	if stdout == nil {
		stdout = os.Stdout
	}
	events := make(chan Event, 1024)
	model := NewModel(events, opts)
	program := tea.NewProgram(model, tea.WithOutput(stdout), tea.WithAltScreen())
	controller := &Controller{
		events:  events,
		program: program,
		done:    make(chan struct{}),
	}
	go func() {
		_, _ = program.Run()
		close(controller.done)
	}()
	return controller
}

// Close signals the UI to stop.
func (c *Controller) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.events)
	})
}

// Wait blocks until the UI has exited.
func (c *Controller) Wait() {
	if c == nil {
		return
	}
	<-c.done
}

// OnAdmit forwards launched attempts to the UI.
func (c *Controller) OnAdmit(rec *dispatch.Record) {
	c.send(Event{Kind: EventAdmit, ID: rec.ID, Attempt: rec.Attempt})
}

// OnSuccess forwards completed requests to the UI.
func (c *Controller) OnSuccess(rec *dispatch.Record, actualCost int64) {
	c.send(Event{Kind: EventSuccess, ID: rec.ID, Attempt: rec.Attempt, ActualCost: actualCost})
}

// OnRetry forwards re-queued attempts to the UI.
func (c *Controller) OnRetry(rec *dispatch.Record, reason string, notBefore time.Time) {
	c.send(Event{Kind: EventRetry, ID: rec.ID, Attempt: rec.Attempt, Reason: reason, NotBefore: notBefore})
}

// OnFailure forwards terminal failures to the UI.
func (c *Controller) OnFailure(rec *dispatch.Record, reason string, exhausted bool) {
	c.send(Event{Kind: EventFailure, ID: rec.ID, Attempt: rec.Attempt, Reason: reason})
}

// send enqueues an event without blocking the dispatch loop.
func (c *Controller) send(event Event) {
	if c == nil {
		return
	}
	select {
	case c.events <- event:
	default:
	}
}
