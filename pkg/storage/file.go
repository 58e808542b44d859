package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/matzehuels/orbit/pkg/errors"
	"github.com/matzehuels/orbit/pkg/graph"
)

const fileExt = ".json"

// FileStore keeps each snapshot as <dir>/<name>.json.
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// Path returns the store directory.
func (s *FileStore) Path() string { return s.baseDir }

func (s *FileStore) snapshotPath(name string) string {
	return filepath.Join(s.baseDir, name+fileExt)
}

func (s *FileStore) Put(ctx context.Context, name string, g graph.Graph) error {
	if err := errors.ValidateSnapshotName(name); err != nil {
		return err
	}
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tmp := s.snapshotPath(name) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write snapshot file: %w", err)
	}
	if err := os.Rename(tmp, s.snapshotPath(name)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write snapshot file: %w", err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, name string) (graph.Graph, error) {
	if err := errors.ValidateSnapshotName(name); err != nil {
		return graph.Graph{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.snapshotPath(name))
	if os.IsNotExist(err) {
		return graph.Graph{}, notFound(name)
	}
	if err != nil {
		return graph.Graph{}, fmt.Errorf("read snapshot file: %w", err)
	}
	return graph.UnmarshalGraph(data)
}

// List reads every snapshot file to count nodes and edges. Unreadable files
// are skipped.
func (s *FileStore) List(ctx context.Context) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read snapshot dir: %w", err)
	}
	out := []Info{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != fileExt {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(e.Name(), fileExt)
		fi, err := e.Info()
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, e.Name()))
		if err != nil {
			continue
		}
		var counts struct {
			Nodes []json.RawMessage `json:"nodes"`
			Links []json.RawMessage `json:"links"`
		}
		if json.Unmarshal(data, &counts) != nil {
			continue
		}
		out = append(out, Info{Name: name, Nodes: len(counts.Nodes), Edges: len(counts.Links), UpdatedAt: fi.ModTime()})
	}
	slices.SortFunc(out, func(a, b Info) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *FileStore) Delete(ctx context.Context, name string) error {
	if err := errors.ValidateSnapshotName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.snapshotPath(name))
	if os.IsNotExist(err) {
		return notFound(name)
	}
	if err != nil {
		return fmt.Errorf("remove snapshot file: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

var _ Store = (*FileStore)(nil)
