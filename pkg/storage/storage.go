// Package storage persists author graph snapshots by name.
//
// Two backends implement [Store]:
//   - [FileStore]: one JSON file per snapshot in a directory, for the CLI
//   - [MongoStore]: a MongoDB collection, for the HTTP server
//
// Names are validated with [errors.ValidateSnapshotName] since they double
// as file names and document ids. Missing snapshots are reported with
// [errors.ErrCodeSnapshotNotFound].
package storage

import (
	"context"
	"time"

	"github.com/matzehuels/orbit/pkg/core/snapshot"
	"github.com/matzehuels/orbit/pkg/errors"
	"github.com/matzehuels/orbit/pkg/graph"
)

// Store is a named snapshot store.
type Store interface {
	// Put creates or replaces a snapshot.
	Put(ctx context.Context, name string, g graph.Graph) error

	// Get returns a stored snapshot.
	Get(ctx context.Context, name string) (graph.Graph, error)

	// List returns every stored snapshot sorted by name. An empty store
	// yields an empty, non-nil slice.
	List(ctx context.Context) ([]Info, error)

	// Delete removes a snapshot.
	Delete(ctx context.Context, name string) error

	Close() error
}

// Info describes a stored snapshot without its content.
type Info struct {
	Name      string    `json:"name" bson:"_id"`
	Nodes     int       `json:"nodes" bson:"nodes"`
	Edges     int       `json:"edges" bson:"edges"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

// Load fetches a snapshot and converts it for layout.
func Load(ctx context.Context, s Store, name string) (*snapshot.Snapshot, graph.Stats, error) {
	g, err := s.Get(ctx, name)
	if err != nil {
		return nil, graph.Stats{}, err
	}
	snap, st := graph.ToSnapshot(g)
	return snap, st, nil
}

func notFound(name string) error {
	return errors.New(errors.ErrCodeSnapshotNotFound, "snapshot %q not found", name)
}
