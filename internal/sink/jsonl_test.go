package sink

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"parareq/pkg/dispatch"
)

func newTestSink(t *testing.T) (*JSONL, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.jsonl")
	s, err := NewJSONL(path)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read results: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestWriteSuccessLineShape(t *testing.T) {
	s, path := newTestSink(t)
	err := s.Write(dispatch.ResultRecord{
		ID:       1,
		Status:   dispatch.StatusSucceeded,
		Request:  json.RawMessage(`{"input":"a"}`),
		Response: json.RawMessage(`{"data":[]}`),
		Metadata: json.RawMessage(`{"row_id":7}`),
	})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	var parts []json.RawMessage
	if err := json.Unmarshal([]byte(lines[0]), &parts); err != nil {
		t.Fatalf("line is not a JSON array: %v", err)
	}
	if len(parts) != 3 {
		t.Fatalf("expected [request, response, metadata], got %d elements", len(parts))
	}
	if string(parts[0]) != `{"input":"a"}` || string(parts[1]) != `{"data":[]}` || string(parts[2]) != `{"row_id":7}` {
		t.Fatalf("unexpected line contents: %s", lines[0])
	}
}

func TestWriteFailureLineCarriesErrors(t *testing.T) {
	s, path := newTestSink(t)
	err := s.Write(dispatch.ResultRecord{
		ID:      1,
		Status:  dispatch.StatusFailed,
		Request: json.RawMessage(`{"input":"a"}`),
		Errors:  []string{"server: boom", "server: boom again"},
	})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	lines := readLines(t, path)
	var parts []json.RawMessage
	if err := json.Unmarshal([]byte(lines[0]), &parts); err != nil {
		t.Fatalf("line is not a JSON array: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("expected [request, errors], got %d elements", len(parts))
	}
	var errs []string
	if err := json.Unmarshal(parts[1], &errs); err != nil {
		t.Fatalf("errors element is not a string list: %v", err)
	}
	if len(errs) != 2 {
		t.Fatalf("expected 2 error reasons, got %v", errs)
	}
}

func TestWriteRefusesDuplicateID(t *testing.T) {
	s, _ := newTestSink(t)
	rec := dispatch.ResultRecord{ID: 1, Status: dispatch.StatusSucceeded, Request: json.RawMessage(`{}`)}
	if err := s.Write(rec); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := s.Write(rec); err == nil {
		t.Fatalf("expected duplicate write to be refused")
	}
}

func TestNewJSONLRefusesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.jsonl")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	if _, err := NewJSONL(path); err == nil {
		t.Fatalf("expected creation over an existing file to fail")
	}
}

func TestNonduplicatePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.jsonl")

	if got := NonduplicatePath(path); got != path {
		t.Fatalf("expected free path unchanged, got %s", got)
	}

	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	first := NonduplicatePath(path)
	if first != filepath.Join(dir, "results_1.jsonl") {
		t.Fatalf("expected results_1.jsonl, got %s", first)
	}

	if err := os.WriteFile(first, nil, 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	if got := NonduplicatePath(path); got != filepath.Join(dir, "results_2.jsonl") {
		t.Fatalf("expected results_2.jsonl, got %s", got)
	}
}

func TestMarkWithErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.jsonl")
	if err := os.WriteFile(path, []byte("line\n"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	renamed, err := MarkWithErrors(path)
	if err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	if renamed != filepath.Join(dir, "results_with_errors.jsonl") {
		t.Fatalf("unexpected renamed path %s", renamed)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("old path still exists")
	}
	if _, err := os.Stat(renamed); err != nil {
		t.Fatalf("renamed file missing: %v", err)
	}
}
