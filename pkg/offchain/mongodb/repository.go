package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/RyanW02/waterledger/pkg/offchain"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type MongoRepository struct {
	logger   *zap.Logger
	database *mongo.Database
	records  *recordCollection
	counters *counterCollection
}

var _ offchain.Repository = (*MongoRepository)(nil)

type mongoCollection interface {
	InitSchema(ctx context.Context) error
}

func NewMongoRepository(logger *zap.Logger, db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		logger:   logger,
		database: db,
		records:  newRecordCollection(db),
		counters: newCounterCollection(db),
	}
}

func (m *MongoRepository) InitSchema(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	cols := []mongoCollection{m.records, m.counters}
	for _, col := range cols {
		col := col
		group.Go(func() error {
			return col.InitSchema(ctx)
		})
	}

	return group.Wait()
}

func (m *MongoRepository) NextId(ctx context.Context) (offchain.RecordId, error) {
	seq, err := m.counters.increment(ctx, counterRecords)
	if err != nil {
		return 0, err
	}

	return offchain.RecordId(seq), nil
}

func (m *MongoRepository) Insert(ctx context.Context, record offchain.Record) error {
	err := m.records.insert(ctx, record)
	if mongo.IsDuplicateKeyError(err) {
		m.logger.Warn("Record id already in use", zap.Uint64("id", uint64(record.Id)))
		return offchain.ErrDuplicateId
	}

	return err
}

func (m *MongoRepository) Get(ctx context.Context, id offchain.RecordId) (offchain.Record, bool, error) {
	record, err := m.records.get(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return offchain.Record{}, false, nil
		}

		return offchain.Record{}, false, err
	}

	return record, true, nil
}

func (m *MongoRepository) Count(ctx context.Context) (int64, error) {
	return m.records.count(ctx)
}

func (m *MongoRepository) TestConnection(ctx context.Context) error {
	ctx, cancelFunc := context.WithTimeout(ctx, time.Second*10)
	defer cancelFunc()

	return m.database.Client().Ping(ctx, nil)
}

func (m *MongoRepository) Close(ctx context.Context) error {
	return m.database.Client().Disconnect(ctx)
}
