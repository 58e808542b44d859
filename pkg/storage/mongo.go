package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/orbit/pkg/errors"
	"github.com/matzehuels/orbit/pkg/graph"
)

// MongoConfig holds the MongoDB connection settings.
type MongoConfig struct {
	URI        string        `toml:"uri"`
	Database   string        `toml:"database"`
	Collection string        `toml:"collection"`
	Timeout    time.Duration `toml:"timeout"`
}

// DefaultMongoConfig returns settings for a local MongoDB.
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		URI:        "mongodb://localhost:27017",
		Database:   "orbit",
		Collection: "snapshots",
		Timeout:    10 * time.Second,
	}
}

// document is the stored form. The graph is embedded as a sub-document so
// List can project it away.
type document struct {
	Name      string      `bson:"_id"`
	Nodes     int         `bson:"nodes"`
	Edges     int         `bson:"edges"`
	UpdatedAt time.Time   `bson:"updated_at"`
	Graph     graph.Graph `bson:"graph"`
}

// MongoStore keeps snapshots in one collection keyed by name.
type MongoStore struct {
	client  *mongo.Client
	coll    *mongo.Collection
	timeout time.Duration
	logger  *log.Logger
}

// NewMongoStore connects and pings the server.
func NewMongoStore(ctx context.Context, cfg MongoConfig, logger *log.Logger) (*MongoStore, error) {
	def := DefaultMongoConfig()
	if cfg.URI == "" {
		cfg.URI = def.URI
	}
	if cfg.Database == "" {
		cfg.Database = def.Database
	}
	if cfg.Collection == "" {
		cfg.Collection = def.Collection
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if logger == nil {
		logger = log.Default()
	}

	cctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	opts := options.Client().ApplyURI(cfg.URI).SetServerSelectionTimeout(cfg.Timeout)
	client, err := mongo.Connect(cctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	logger.Info("snapshot store connected", "database", cfg.Database, "collection", cfg.Collection)
	return &MongoStore{
		client:  client,
		coll:    client.Database(cfg.Database).Collection(cfg.Collection),
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

func (s *MongoStore) Put(ctx context.Context, name string, g graph.Graph) error {
	if err := errors.ValidateSnapshotName(name); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc := document{
		Name:      name,
		Nodes:     len(g.Nodes),
		Edges:     len(g.Links),
		UpdatedAt: time.Now().UTC(),
		Graph:     g,
	}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": name}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("store snapshot %s: %w", name, err)
	}
	s.logger.Debug("snapshot stored", "name", name, "nodes", doc.Nodes, "edges", doc.Edges)
	return nil
}

func (s *MongoStore) Get(ctx context.Context, name string) (graph.Graph, error) {
	if err := errors.ValidateSnapshotName(name); err != nil {
		return graph.Graph{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var doc document
	err := s.coll.FindOne(ctx, bson.M{"_id": name}).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return graph.Graph{}, notFound(name)
	}
	if err != nil {
		return graph.Graph{}, fmt.Errorf("load snapshot %s: %w", name, err)
	}
	return doc.Graph, nil
}

func (s *MongoStore) List(ctx context.Context) ([]Info, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := options.Find().
		SetProjection(bson.M{"graph": 0}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	out := []Info{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return out, nil
}

func (s *MongoStore) Delete(ctx context.Context, name string) error {
	if err := errors.ValidateSnapshotName(name); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": name})
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", name, err)
	}
	if res.DeletedCount == 0 {
		return notFound(name)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
