package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CounterCollectionName = "counters"

const counterRecords = "records"

type counterCollection struct {
	collection *mongo.Collection
}

var _ mongoCollection = (*counterCollection)(nil)

type counterDocument struct {
	Name string `bson:"_id"`
	Seq  int64  `bson:"seq"`
}

func newCounterCollection(db *mongo.Database) *counterCollection {
	return &counterCollection{
		collection: db.Collection(CounterCollectionName),
	}
}

// InitSchema seeds the record counter, leaving it untouched if it already exists.
func (c *counterCollection) InitSchema(ctx context.Context) error {
	_, err := c.collection.UpdateOne(
		ctx,
		bson.D{{Key: "_id", Value: counterRecords}},
		bson.D{{Key: "$setOnInsert", Value: bson.D{{Key: "seq", Value: int64(0)}}}},
		options.Update().SetUpsert(true),
	)

	return err
}

// increment atomically bumps the named counter and returns the new value. The first value is 1.
func (c *counterCollection) increment(ctx context.Context, name string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter counterDocument
	if err := c.collection.FindOneAndUpdate(
		ctx,
		bson.D{{Key: "_id", Value: name}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: int64(1)}}}},
		opts,
	).Decode(&counter); err != nil {
		return 0, err
	}

	return counter.Seq, nil
}
