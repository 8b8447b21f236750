package caller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"parareq/pkg/dispatch"
)

// HTTPDoer abstracts the HTTP client used for API calls.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPCaller posts request payloads to an OpenAI-compatible endpoint
// and classifies failures for the dispatcher.
type HTTPCaller struct {
	URL    string
	APIKey string
	Client HTTPDoer
}

// New constructs an HTTPCaller with explicit settings.
func New(requestURL, apiKey string, client HTTPDoer) (*HTTPCaller, error) {
	if strings.TrimSpace(requestURL) == "" {
		return nil, fmt.Errorf("request URL is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPCaller{URL: requestURL, APIKey: apiKey, Client: client}, nil
}

// apiError is the provider's embedded error object.
type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// apiUsage carries the provider-reported token usage.
type apiUsage struct {
	TotalTokens int64 `json:"total_tokens"`
}

// Invoke performs one API call. Errors carry a classification hint;
// the actual token usage is extracted from the response when present.
func (c *HTTPCaller) Invoke(ctx context.Context, payload json.RawMessage) (dispatch.CallResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return dispatch.CallResult{}, &dispatch.CallError{Class: dispatch.ClassClient, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return dispatch.CallResult{}, &dispatch.CallError{Class: dispatch.ClassTransport, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return dispatch.CallResult{}, &dispatch.CallError{Class: dispatch.ClassTransport, Err: fmt.Errorf("read response: %w", err)}
	}

	if class, ok := classifyStatus(resp.StatusCode); ok {
		return dispatch.CallResult{}, &dispatch.CallError{
			Class: class,
			Err:   fmt.Errorf("status %d: %s", resp.StatusCode, trimBody(body)),
		}
	}

	var envelope struct {
		Error *apiError `json:"error"`
		Usage *apiUsage `json:"usage"`
	}
	// An undecodable body still counts as a response; usage is simply
	// unknown.
	_ = json.Unmarshal(body, &envelope)

	if envelope.Error != nil {
		class := dispatch.ClassServer
		if strings.Contains(envelope.Error.Message, "Rate limit") {
			class = dispatch.ClassRateLimited
		}
		return dispatch.CallResult{}, &dispatch.CallError{
			Class: class,
			Err:   fmt.Errorf("api error: %s", envelope.Error.Message),
		}
	}

	actual := dispatch.CostUnknown
	if envelope.Usage != nil && envelope.Usage.TotalTokens > 0 {
		actual = envelope.Usage.TotalTokens
	}
	return dispatch.CallResult{Body: body, ActualCost: actual}, nil
}

// classifyStatus maps a non-2xx HTTP status to an error class.
func classifyStatus(status int) (dispatch.ErrorClass, bool) {
	switch {
	case status >= 200 && status < 300:
		return "", false
	case status == http.StatusTooManyRequests:
		return dispatch.ClassRateLimited, true
	case status >= 500:
		return dispatch.ClassServer, true
	default:
		return dispatch.ClassClient, true
	}
}

// trimBody shortens a response body for error messages.
func trimBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > 512 {
		return text[:512] + "..."
	}
	return text
}
