package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vsporte/fhm-matches/internal/match"
)

// LatestID is the _id of the single mirrored document
const LatestID = "latest"

// MongoConfig locates the mirror collection
type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
	Username   string `yaml:"username"`
	Password   string `yaml:"-"`
	AuthSource string `yaml:"auth_source"`
}

// Enabled reports whether a mirror is configured
func (c MongoConfig) Enabled() bool {
	return c.URI != ""
}

// MongoMirror keeps the latest snapshot in one document, replaced on every save.
type MongoMirror struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoMirror connects and pings the server.
func NewMongoMirror(ctx context.Context, cfg MongoConfig) (*MongoMirror, error) {
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.Username != "" {
		opts.SetAuth(options.Credential{
			Username:   cfg.Username,
			Password:   cfg.Password,
			AuthSource: cfg.AuthSource,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cli, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := cli.Ping(ctx, nil); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	db, coll := cfg.Database, cfg.Collection
	if db == "" {
		db = "fhm"
	}
	if coll == "" {
		coll = "snapshots"
	}

	return &MongoMirror{
		client: cli,
		coll:   cli.Database(db).Collection(coll),
	}, nil
}

// Put upserts the snapshot as the "latest" document
func (m *MongoMirror) Put(ctx context.Context, snap *match.Snapshot) error {
	doc, err := mirrorDocument(snap)
	if err != nil {
		return err
	}

	_, err = m.coll.ReplaceOne(ctx,
		bson.M{"_id": LatestID},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("replacing mirror document: %w", err)
	}
	return nil
}

func (m *MongoMirror) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// mirrorDocument stores the snapshot in its JSON shape so both copies read the same.
func mirrorDocument(snap *match.Snapshot) (bson.M, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}

	var doc bson.M
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	doc["_id"] = LatestID
	doc["last_update"] = snap.LastUpdate
	return doc, nil
}
