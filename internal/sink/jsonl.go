package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"parareq/pkg/dispatch"
)

// JSONL appends one result line per record, fsynced before Write
// returns so a crash never loses an acknowledged result. Each line is
// an array: [request, response, metadata?] on success,
// [request, [errors...], metadata?] on failure.
type JSONL struct {
	mu   sync.Mutex
	file *os.File
	path string
	seen map[uint64]struct{}
}

// NewJSONL creates the results file, refusing to overwrite an existing
// one.
func NewJSONL(path string) (*JSONL, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create results file: %w", err)
	}
	return &JSONL{file: file, path: path, seen: map[uint64]struct{}{}}, nil
}

// Path returns the results file path.
func (s *JSONL) Path() string {
	return s.path
}

// Write appends one result line and syncs it to disk. Writing the same
// ID twice is refused.
func (s *JSONL) Write(rec dispatch.ResultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[rec.ID]; dup {
		return fmt.Errorf("duplicate result for id %d", rec.ID)
	}
	data, err := json.Marshal(resultLine(rec))
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if _, err := s.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync results file: %w", err)
	}
	s.seen[rec.ID] = struct{}{}
	return nil
}

// Close closes the underlying file.
func (s *JSONL) Close() error {
	return s.file.Close()
}

// resultLine builds the array-shaped result line.
func resultLine(rec dispatch.ResultRecord) []any {
	var second any
	if rec.Status == dispatch.StatusSucceeded {
		second = rec.Response
	} else if rec.Errors != nil {
		second = rec.Errors
	} else {
		second = []string{}
	}
	parts := []any{rec.Request, second}
	if len(rec.Metadata) > 0 {
		parts = append(parts, rec.Metadata)
	}
	return parts
}

// NonduplicatePath returns path unchanged when free, otherwise the
// first name_1, name_2, ... variant that does not exist yet.
func NonduplicatePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// MarkWithErrors renames a closed results file so failed runs are
// visible at a glance. Returns the new path.
func MarkWithErrors(path string) (string, error) {
	var renamed string
	if strings.HasSuffix(path, ".jsonl") {
		renamed = strings.TrimSuffix(path, ".jsonl") + "_with_errors.jsonl"
	} else {
		renamed = path + "_with_errors"
	}
	if err := os.Rename(path, renamed); err != nil {
		return "", fmt.Errorf("rename results file: %w", err)
	}
	return renamed, nil
}
