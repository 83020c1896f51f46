package mongodb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/RyanW02/waterledger/pkg/digest"
	"github.com/RyanW02/waterledger/pkg/offchain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const RecordCollectionName = "records"

const (
	KeyId        = "_id"
	KeyCreatedAt = "created_at"
	KeyDigest    = "digest"
)

type recordCollection struct {
	collection *mongo.Collection
}

var _ mongoCollection = (*recordCollection)(nil)

// Canonical form and payload are stored as strings so that they round-trip byte for byte.
type recordDocument struct {
	Id        int64     `bson:"_id"`
	CreatedAt time.Time `bson:"created_at"`
	Canonical string    `bson:"canonical"`
	Digest    string    `bson:"digest"`
	Payload   string    `bson:"payload"`
}

func newRecordCollection(db *mongo.Database) *recordCollection {
	return &recordCollection{
		collection: db.Collection(RecordCollectionName),
	}
}

func (c *recordCollection) InitSchema(ctx context.Context) error {
	_, err := c.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.M{KeyDigest: 1},
		},
		{
			Keys: bson.M{KeyCreatedAt: -1},
		},
	})

	return err
}

func (c *recordCollection) insert(ctx context.Context, record offchain.Record) error {
	_, err := c.collection.InsertOne(ctx, recordDocument{
		Id:        int64(record.Id),
		CreatedAt: record.CreatedAt,
		Canonical: string(record.Canonical),
		Digest:    record.Digest.String(),
		Payload:   string(record.Payload),
	})

	return err
}

func (c *recordCollection) get(ctx context.Context, id offchain.RecordId) (offchain.Record, error) {
	var document recordDocument
	if err := c.collection.FindOne(ctx, bson.D{{Key: KeyId, Value: int64(id)}}).Decode(&document); err != nil {
		return offchain.Record{}, err
	}

	parsed, err := digest.Parse(document.Digest)
	if err != nil {
		return offchain.Record{}, err
	}

	return offchain.Record{
		Id:        offchain.RecordId(document.Id),
		CreatedAt: document.CreatedAt.UTC(),
		Canonical: []byte(document.Canonical),
		Digest:    parsed,
		Payload:   json.RawMessage(document.Payload),
	}, nil
}

func (c *recordCollection) count(ctx context.Context) (int64, error) {
	return c.collection.EstimatedDocumentCount(ctx, options.EstimatedDocumentCount())
}
