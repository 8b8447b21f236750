package live

import "time"

// EventKind labels a dispatch lifecycle event shown in the UI.
type EventKind int

const (
	// EventAdmit marks a launched attempt.
	EventAdmit EventKind = iota
	// EventSuccess marks a completed request.
	EventSuccess
	// EventRetry marks a re-queued attempt.
	EventRetry
	// EventFailure marks a terminal failure.
	EventFailure
)

// Event is one UI update from the dispatch loop.
type Event struct {
	Kind       EventKind
	ID         uint64
	Attempt    int
	Reason     string
	NotBefore  time.Time
	ActualCost int64
}

// State aggregates events into the counters the header renders.
type State struct {
	Started   int
	InFlight  int
	Succeeded int
	Failed    int
	Retried   int
	Total     int
}

// applyToState folds one event into the counters.
func applyToState(s State, ev Event) State {
	switch ev.Kind {
	case EventAdmit:
		if ev.Attempt == 1 {
			s.Started++
		}
		s.InFlight++
	case EventSuccess:
		s.InFlight--
		s.Succeeded++
	case EventRetry:
		s.InFlight--
		s.Retried++
	case EventFailure:
		s.InFlight--
		s.Failed++
	}
	return s
}
