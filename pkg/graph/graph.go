package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/orbit/pkg/core/snapshot"
	"github.com/matzehuels/orbit/pkg/errors"
)

// =============================================================================
// Graph Serialization API
// =============================================================================

// MarshalGraph converts a snapshot to indented JSON bytes.
func MarshalGraph(s *snapshot.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeGraphTo(s, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteGraphFile writes a snapshot to a JSON file.
// The file is created with 0644 permissions.
func WriteGraphFile(s *snapshot.Snapshot, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return writeGraphTo(s, f)
}

// WriteGraph writes a snapshot as JSON to an io.Writer.
func WriteGraph(s *snapshot.Snapshot, w io.Writer) error {
	return writeGraphTo(s, w)
}

// ReadGraphFile reads a JSON file and returns the decoded snapshot.
func ReadGraphFile(path string) (*snapshot.Snapshot, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return readGraphFrom(f)
}

// ReadGraph decodes a JSON graph from an io.Reader into a snapshot.
// Malformed JSON is an INVALID_FORMAT error; anomalies inside a well-formed
// document are counted in Stats.
func ReadGraph(r io.Reader) (*snapshot.Snapshot, Stats, error) {
	return readGraphFrom(r)
}

// UnmarshalGraph decodes JSON bytes into the wire type without converting.
func UnmarshalGraph(data []byte) (Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return Graph{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode graph")
	}
	return g, nil
}

// =============================================================================
// Internal Implementation
// =============================================================================

func writeGraphTo(s *snapshot.Snapshot, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(FromSnapshot(s)); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

func readGraphFrom(r io.Reader) (*snapshot.Snapshot, Stats, error) {
	var data Graph
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, Stats{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode graph")
	}
	s, st := ToSnapshot(data)
	return s, st, nil
}
