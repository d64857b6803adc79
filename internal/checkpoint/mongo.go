package checkpoint

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	defaultCheckpointCollection = "orchestrator_checkpoints"
	defaultMongoOpTimeout       = 5 * time.Second
)

// checkpointDocument is the on-disk shape stored in Mongo, namespaced by
// thread id (spec.md §6 "Keys are namespaced by thread id").
type checkpointDocument struct {
	ThreadID  string    `bson:"thread_id"`
	Doc       []byte    `bson:"doc"`
	ExpiresAt time.Time `bson:"expires_at,omitempty"`
	SavedAt   time.Time `bson:"saved_at"`
}

// MongoBackend is the durable Checkpointer backend, a thin wrapper over a
// single collection, grounded on the teacher's features/run/mongo and
// features/memory/mongo Store/Client pairing.
type MongoBackend struct {
	client     *mongodriver.Client
	collection *mongodriver.Collection
	timeout    time.Duration
}

// MongoOptions configures the Mongo-backed checkpoint backend.
type MongoOptions struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// NewMongoBackend builds a MongoBackend, ensuring the thread_id index
// exists (mirrors the teacher's ensureIndexes call in New).
func NewMongoBackend(ctx context.Context, opts MongoOptions) (*MongoBackend, error) {
	if opts.Client == nil {
		return nil, errors.New("checkpoint: mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("checkpoint: database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCheckpointCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultMongoOpTimeout
	}
	coll := opts.Client.Database(opts.Database).Collection(collName)

	idxCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := coll.Indexes().CreateOne(idxCtx, mongodriver.IndexModel{
		Keys:    bson.D{{Key: "thread_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, err
	}

	return &MongoBackend{client: opts.Client, collection: coll, timeout: timeout}, nil
}

func (b *MongoBackend) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, b.timeout)
}

func (b *MongoBackend) Put(ctx context.Context, threadID string, doc []byte, ttl time.Duration) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	record := checkpointDocument{ThreadID: threadID, Doc: doc, SavedAt: now}
	if ttl > 0 {
		record.ExpiresAt = now.Add(ttl)
	}
	filter := bson.M{"thread_id": threadID}
	update := bson.M{"$set": record}
	_, err := b.collection.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	return err
}

func (b *MongoBackend) Get(ctx context.Context, threadID string) ([]byte, bool, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	var record checkpointDocument
	err := b.collection.FindOne(ctx, bson.M{"thread_id": threadID}).Decode(&record)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !record.ExpiresAt.IsZero() && time.Now().After(record.ExpiresAt) {
		return nil, false, nil
	}
	return record.Doc, true, nil
}

func (b *MongoBackend) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return b.client.Ping(ctx, readpref.Primary())
}

func (b *MongoBackend) Kind() string { return "mongo" }
