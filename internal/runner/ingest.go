package runner

import (
	"fmt"

	"parareq/internal/request"
	"parareq/internal/tokens"
	"parareq/pkg/dispatch"
)

// buildRecords estimates the cost of each ingested request and builds
// dispatch records. Requests whose estimate can never fit the cost
// ceiling, or whose payload defeats estimation, are structurally
// permanent failures: they get a failed result immediately and are
// never dispatched.
func buildRecords(requests []request.Request, estimator *tokens.Estimator, maxCost float64, maxAttempts int, sink dispatch.Sink) ([]*dispatch.Record, int, error) {
	records := make([]*dispatch.Record, 0, len(requests))
	rejected := 0
	for _, req := range requests {
		cost, err := estimator.Estimate(req.Payload)
		if err == nil && float64(cost) > maxCost {
			err = fmt.Errorf("estimated cost %d exceeds the tokens_per_minute ceiling %.0f", cost, maxCost)
		}
		if err != nil {
			rejected++
			writeErr := sink.Write(dispatch.ResultRecord{
				ID:       req.ID,
				Status:   dispatch.StatusFailed,
				Request:  req.Payload,
				Errors:   []string{err.Error()},
				Metadata: req.Metadata,
			})
			if writeErr != nil {
				return nil, rejected, writeErr
			}
			continue
		}
		records = append(records, &dispatch.Record{
			ID:            req.ID,
			Payload:       req.Payload,
			Metadata:      req.Metadata,
			EstimatedCost: cost,
			MaxAttempts:   maxAttempts,
		})
	}
	return records, rejected, nil
}
