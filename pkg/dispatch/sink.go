package dispatch

import "encoding/json"

// Status labels a terminal result.
type Status string

const (
	// StatusSucceeded marks a request that completed with a response.
	StatusSucceeded Status = "succeeded"
	// StatusFailed marks a request that exhausted retries or failed
	// permanently.
	StatusFailed Status = "failed"
)

// ResultRecord is the terminal outcome written exactly once per record.
type ResultRecord struct {
	ID       uint64
	Status   Status
	Request  json.RawMessage
	Response json.RawMessage
	Errors   []string
	Metadata json.RawMessage
	Attempts int
}

// Sink durably records one outcome per record ID. A Write error is
// fatal to the run: continuing would risk silently losing results.
type Sink interface {
	Write(ResultRecord) error
}

// MultiSink fans a write out to several sinks, stopping at the first
// error.
type MultiSink []Sink

// Write forwards the record to every sink in order.
func (m MultiSink) Write(rec ResultRecord) error {
	for _, s := range m {
		if err := s.Write(rec); err != nil {
			return err
		}
	}
	return nil
}
