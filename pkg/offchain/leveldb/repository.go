package leveldb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/RyanW02/waterledger/internal/utils"
	"github.com/RyanW02/waterledger/pkg/digest"
	"github.com/RyanW02/waterledger/pkg/offchain"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

type Repository struct {
	db *leveldb.DB
}

const (
	keyRecordIdCounter = "id_counter_records"
	keyPrefixRecords   = "records_"
)

// Enforce interface constraints at compile time
var _ offchain.Repository = (*Repository)(nil)

type storedRecord struct {
	CreatedAt time.Time     `json:"created_at"`
	Canonical string        `json:"canonical"`
	Digest    digest.Digest `json:"digest"`
	Payload   string        `json:"payload"`
}

func Open(path string) (*Repository, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		NoWriteMerge: true,
	})
	if err != nil {
		return nil, err
	}

	return &Repository{db: db}, nil
}

// OpenMemory opens a repository backed by in-memory storage. Nothing is persisted once it is closed.
func OpenMemory() (*Repository, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *Repository) TestConnection(ctx context.Context) error {
	_, err := r.db.GetProperty("leveldb.stats")
	return err
}

func (r *Repository) NextId(ctx context.Context) (offchain.RecordId, error) {
	var id uint64
	if err := r.withTransaction(func(tx *leveldb.Transaction) error {
		counterBytes, err := tx.Get([]byte(keyRecordIdCounter), nil)
		if err == nil {
			if len(counterBytes) != 8 {
				return fmt.Errorf("invalid counter length: %d", len(counterBytes))
			}

			id = utils.BytesToUint64(counterBytes)
		} else if !errors.Is(err, leveldb.ErrNotFound) {
			return err
		}

		id++

		return tx.Put([]byte(keyRecordIdCounter), utils.Uint64ToBytes(id), nil)
	}); err != nil {
		return 0, err
	}

	return offchain.RecordId(id), nil
}

func (r *Repository) Insert(ctx context.Context, record offchain.Record) error {
	encoded, err := json.Marshal(storedRecord{
		CreatedAt: record.CreatedAt,
		Canonical: string(record.Canonical),
		Digest:    record.Digest,
		Payload:   string(record.Payload),
	})
	if err != nil {
		return err
	}

	key := recordKey(record.Id)

	return r.withTransaction(func(tx *leveldb.Transaction) error {
		exists, err := tx.Has(key, nil)
		if err != nil {
			return err
		}

		if exists {
			return offchain.ErrDuplicateId
		}

		return tx.Put(key, encoded, nil)
	})
}

func (r *Repository) Get(ctx context.Context, id offchain.RecordId) (offchain.Record, bool, error) {
	value, err := r.db.Get(recordKey(id), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return offchain.Record{}, false, nil
		}

		return offchain.Record{}, false, err
	}

	var stored storedRecord
	if err := json.Unmarshal(value, &stored); err != nil {
		return offchain.Record{}, false, err
	}

	return offchain.Record{
		Id:        id,
		CreatedAt: stored.CreatedAt,
		Canonical: []byte(stored.Canonical),
		Digest:    stored.Digest,
		Payload:   json.RawMessage(stored.Payload),
	}, true, nil
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	it := r.db.NewIterator(util.BytesPrefix([]byte(keyPrefixRecords)), nil)
	defer it.Release()

	var count int64
	for it.Next() {
		count++
	}

	return count, it.Error()
}

func (r *Repository) withTransaction(f func(tx *leveldb.Transaction) error) error {
	tx, err := r.db.OpenTransaction()
	if err != nil {
		return err
	}

	defer tx.Discard()

	if err := f(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// Big-endian ids keep records in id order under the prefix.
func recordKey(id offchain.RecordId) []byte {
	return append([]byte(keyPrefixRecords), utils.Uint64ToBytes(uint64(id))...)
}
