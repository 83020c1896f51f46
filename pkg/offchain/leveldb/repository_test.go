package leveldb

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/RyanW02/waterledger/pkg/digest"
	"github.com/RyanW02/waterledger/pkg/offchain"
	"github.com/stretchr/testify/suite"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

type RepositorySuite struct {
	suite.Suite
	tmpDir     string
	db         *leveldb.DB
	repository *Repository
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (suite *RepositorySuite) SetupSuite() {
	tmpDir, err := os.MkdirTemp("", "offchain_leveldb_test")
	suite.Require().NoError(err)

	suite.tmpDir = tmpDir

	suite.db, err = leveldb.OpenFile(tmpDir, &opt.Options{
		Compression:  opt.NoCompression,
		NoWriteMerge: true,
	})
	suite.Require().NoError(err)

	suite.repository = &Repository{db: suite.db}
}

func (suite *RepositorySuite) TearDownTest() {
	// Clear the database after each test
	iter := suite.db.NewIterator(nil, nil)
	for iter.Next() {
		suite.Require().NoError(suite.db.Delete(iter.Key(), nil))
	}
	iter.Release()
}

func (suite *RepositorySuite) TearDownSuite() {
	suite.Assert().NoError(suite.repository.Close(context.Background()))
	suite.Assert().NoError(os.RemoveAll(suite.tmpDir))
}

func (suite *RepositorySuite) TestIdsStartAtOne() {
	for expected := offchain.RecordId(1); expected <= 5; expected++ {
		id, err := suite.repository.NextId(context.Background())
		suite.Require().NoError(err)
		suite.Require().Equal(expected, id)
	}
}

func (suite *RepositorySuite) TestConcurrentIdsUnique() {
	const workers = 20

	var wg sync.WaitGroup
	ids := make(chan offchain.RecordId, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			id, err := suite.repository.NextId(context.Background())
			suite.Assert().NoError(err)
			ids <- id
		}()
	}

	wg.Wait()
	close(ids)

	seen := make(map[offchain.RecordId]struct{})
	for id := range ids {
		_, duplicate := seen[id]
		suite.Require().Falsef(duplicate, "id %d allocated twice", id)
		seen[id] = struct{}{}
	}

	suite.Require().Len(seen, workers)
	for id := offchain.RecordId(1); id <= workers; id++ {
		suite.Require().Contains(seen, id)
	}
}

func (suite *RepositorySuite) TestInsertAndGet() {
	ctx := context.Background()

	canonical := []byte(`{"a":1,"b":2}`)
	record := offchain.Record{
		Id:        1,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		Canonical: canonical,
		Digest:    digest.Sum(canonical),
		Payload:   json.RawMessage(`{"b":2,"a":1}`),
	}

	suite.Require().NoError(suite.repository.Insert(ctx, record))

	stored, ok, err := suite.repository.Get(ctx, 1)
	suite.Require().NoError(err)
	suite.Require().True(ok)
	suite.Require().Equal(record.Id, stored.Id)
	suite.Require().True(record.CreatedAt.Equal(stored.CreatedAt))
	suite.Require().Equal(record.Canonical, stored.Canonical)
	suite.Require().Equal(record.Digest, stored.Digest)
	suite.Require().Equal(record.Payload, stored.Payload)

	count, err := suite.repository.Count(ctx)
	suite.Require().NoError(err)
	suite.Require().Equal(int64(1), count)
}

func (suite *RepositorySuite) TestInsertDuplicate() {
	ctx := context.Background()

	record := offchain.Record{Id: 7, Canonical: []byte(`[]`), Payload: json.RawMessage(`[]`)}
	suite.Require().NoError(suite.repository.Insert(ctx, record))
	suite.Require().ErrorIs(suite.repository.Insert(ctx, record), offchain.ErrDuplicateId)
}

func (suite *RepositorySuite) TestGetMissing() {
	_, ok, err := suite.repository.Get(context.Background(), 42)
	suite.Require().NoError(err)
	suite.Require().False(ok)
}

func (suite *RepositorySuite) TestConnection() {
	suite.Require().NoError(suite.repository.TestConnection(context.Background()))
}
