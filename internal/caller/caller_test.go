package caller

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"parareq/internal/testutil"
	"parareq/pkg/dispatch"
)

func newTestCaller(t *testing.T, handler http.HandlerFunc) (*HTTPCaller, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c, err := New(server.URL, "test-key", server.Client())
	if err != nil {
		t.Fatalf("new caller: %v", err)
	}
	return c, server
}

func classOf(t *testing.T, err error) dispatch.ErrorClass {
	t.Helper()
	var callErr *dispatch.CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("expected a CallError, got %v", err)
	}
	return callErr.Class
}

func TestInvokeSuccessExtractsUsage(t *testing.T) {
	c, _ := newTestCaller(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("unexpected content type %q", got)
		}
		w.Write([]byte(`{"data":[],"usage":{"total_tokens":17}}`))
	})

	res, err := c.Invoke(testutil.Context(t, 0), json.RawMessage(`{"input":"hi"}`))
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if res.ActualCost != 17 {
		t.Fatalf("expected actual cost 17, got %d", res.ActualCost)
	}
	if !strings.Contains(string(res.Body), `"usage"`) {
		t.Fatalf("expected raw body to be preserved, got %s", res.Body)
	}
}

func TestInvokeSuccessWithoutUsage(t *testing.T) {
	c, _ := newTestCaller(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	})

	res, err := c.Invoke(testutil.Context(t, 0), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if res.ActualCost != dispatch.CostUnknown {
		t.Fatalf("expected cost unknown, got %d", res.ActualCost)
	}
}

func TestInvokeClassifiesStatusCodes(t *testing.T) {
	cases := []struct {
		status int
		want   dispatch.ErrorClass
	}{
		{http.StatusTooManyRequests, dispatch.ClassRateLimited},
		{http.StatusInternalServerError, dispatch.ClassServer},
		{http.StatusBadGateway, dispatch.ClassServer},
		{http.StatusBadRequest, dispatch.ClassClient},
		{http.StatusUnauthorized, dispatch.ClassClient},
	}
	for _, tc := range cases {
		status := tc.status
		c, _ := newTestCaller(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			w.Write([]byte(`{"error":{"message":"nope"}}`))
		})
		_, err := c.Invoke(testutil.Context(t, 0), json.RawMessage(`{}`))
		if got := classOf(t, err); got != tc.want {
			t.Fatalf("status %d: expected class %s, got %s", tc.status, tc.want, got)
		}
	}
}

func TestInvokeEmbeddedRateLimitError(t *testing.T) {
	c, _ := newTestCaller(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"Rate limit reached for requests"}}`))
	})

	_, err := c.Invoke(testutil.Context(t, 0), json.RawMessage(`{}`))
	if got := classOf(t, err); got != dispatch.ClassRateLimited {
		t.Fatalf("expected rate_limited for embedded rate limit error, got %s", got)
	}
}

func TestInvokeEmbeddedServerError(t *testing.T) {
	c, _ := newTestCaller(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"The server is overloaded"}}`))
	})

	_, err := c.Invoke(testutil.Context(t, 0), json.RawMessage(`{}`))
	if got := classOf(t, err); got != dispatch.ClassServer {
		t.Fatalf("expected server class, got %s", got)
	}
}

func TestInvokeNetworkErrorIsTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c, err := New(url, "test-key", nil)
	if err != nil {
		t.Fatalf("new caller: %v", err)
	}
	_, err = c.Invoke(testutil.Context(t, 0), json.RawMessage(`{}`))
	if got := classOf(t, err); got != dispatch.ClassTransport {
		t.Fatalf("expected transport class for refused connection, got %s", got)
	}
}

func TestNewRequiresURLAndKey(t *testing.T) {
	if _, err := New("", "key", nil); err == nil {
		t.Fatalf("expected error for missing URL")
	}
	if _, err := New("https://api.openai.com/v1/embeddings", "", nil); err == nil {
		t.Fatalf("expected error for missing API key")
	}
}
