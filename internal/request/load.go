package request

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// maxLineBytes bounds a single request line; oversized prompts are
// expected, binary blobs are not.
const maxLineBytes = 16 * 1024 * 1024

// Request is one ingested request line: the payload sent to the API and
// the metadata echoed into the result.
type Request struct {
	ID       uint64
	Payload  json.RawMessage
	Metadata json.RawMessage
}

// LoadFile reads a JSONL requests file.
func LoadFile(path string) ([]Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open requests file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads one JSON object per line, splits out the optional metadata
// field and assigns sequential IDs starting at 1. Blank lines are
// skipped.
func Load(r io.Reader) ([]Request, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var out []Request
	var id uint64
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		payload, metadata, err := splitMetadata(line)
		if err != nil {
			return nil, fmt.Errorf("requests line %d: %w", lineNo, err)
		}
		id++
		out = append(out, Request{ID: id, Payload: payload, Metadata: metadata})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read requests: %w", err)
	}
	return out, nil
}

// splitMetadata removes the metadata field from a request object so it
// is not sent to the API.
func splitMetadata(line []byte) (json.RawMessage, json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return nil, nil, fmt.Errorf("parse request: %w", err)
	}
	metadata, ok := fields["metadata"]
	if !ok {
		return append(json.RawMessage(nil), line...), nil, nil
	}
	delete(fields, "metadata")
	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, nil, fmt.Errorf("rebuild request: %w", err)
	}
	return payload, metadata, nil
}
