package tokens

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// defaultMaxTokens matches the provider default completion length
	// assumed when a request does not set max_tokens.
	defaultMaxTokens = 15
	// messageOverhead accounts for the per-message chat framing tokens.
	messageOverhead = 4
	// replyPriming accounts for the assistant priming of every reply.
	replyPriming = 2
)

// SupportedEndpoint reports whether cost estimation is implemented for
// the endpoint.
func SupportedEndpoint(endpoint string) bool {
	return strings.HasSuffix(endpoint, "completions") || endpoint == "embeddings"
}

// Estimator computes the pessimistic token cost of a request payload
// before the call is made.
type Estimator struct {
	endpoint string
	encode   func(string) int
}

// NewEstimator builds an Estimator for an endpoint using the named
// tiktoken encoding. When the encoding cannot be loaded the estimator
// falls back to a byte-length heuristic rather than failing the run.
func NewEstimator(endpoint, encodingName string) (*Estimator, error) {
	if !SupportedEndpoint(endpoint) {
		return nil, fmt.Errorf("unsupported API endpoint %q", endpoint)
	}
	return &Estimator{endpoint: endpoint, encode: encoderFor(encodingName)}, nil
}

// Estimate returns the token cost of one request payload.
func (e *Estimator) Estimate(payload json.RawMessage) (uint64, error) {
	var body struct {
		MaxTokens *int             `json:"max_tokens"`
		N         *int             `json:"n"`
		Messages  []map[string]any `json:"messages"`
		Prompt    any              `json:"prompt"`
		Input     any              `json:"input"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return 0, fmt.Errorf("decode request: %w", err)
	}

	if e.endpoint == "embeddings" {
		count, err := e.countValue(body.Input, "input")
		if err != nil {
			return 0, err
		}
		return uint64(count), nil
	}

	// Completion requests reserve prompt plus n * max_tokens output.
	maxTokens := defaultMaxTokens
	if body.MaxTokens != nil {
		maxTokens = *body.MaxTokens
	}
	n := 1
	if body.N != nil {
		n = *body.N
	}
	completionTokens := n * maxTokens

	if strings.HasPrefix(e.endpoint, "chat/") {
		total := replyPriming
		for _, message := range body.Messages {
			total += messageOverhead
			for key, value := range message {
				total += e.countAny(value)
				if key == "name" {
					// With a name present the role token is omitted.
					total--
				}
			}
		}
		return uint64(total + completionTokens), nil
	}

	switch prompt := body.Prompt.(type) {
	case string:
		return uint64(e.encode(prompt) + completionTokens), nil
	case []any:
		total := 0
		for _, p := range prompt {
			total += e.countAny(p)
		}
		return uint64(total + completionTokens*len(prompt)), nil
	default:
		return 0, fmt.Errorf("expected string or list of strings for \"prompt\" field")
	}
}

// countValue counts tokens in a string or list-of-strings field.
func (e *Estimator) countValue(value any, field string) (int, error) {
	switch typed := value.(type) {
	case string:
		return e.encode(typed), nil
	case []any:
		total := 0
		for _, item := range typed {
			total += e.countAny(item)
		}
		return total, nil
	default:
		return 0, fmt.Errorf("expected string or list of strings for %q field", field)
	}
}

// countAny counts tokens for a value of unknown shape, re-encoding
// non-strings as JSON text.
func (e *Estimator) countAny(value any) int {
	if s, ok := value.(string); ok {
		return e.encode(s)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return 0
	}
	return e.encode(string(raw))
}

// encoderFor loads the tiktoken encoding, falling back to a heuristic.
func encoderFor(name string) func(string) int {
	encoding, err := tiktoken.GetEncoding(name)
	if err != nil {
		return approxTokens
	}
	return func(s string) int {
		return len(encoding.Encode(s, nil, nil))
	}
}

// approxTokens assumes roughly four bytes per token.
func approxTokens(s string) int {
	if s == "" {
		return 0
	}
	return len(s)/4 + 1
}
