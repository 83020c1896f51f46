package offchain

import (
	"context"
	"fmt"
	"time"

	"github.com/RyanW02/waterledger/pkg/canonical"
	"github.com/RyanW02/waterledger/pkg/digest"
	"go.uber.org/zap"
)

type Store struct {
	logger      *zap.Logger
	repository  Repository
	locatorBase string
}

func NewStore(logger *zap.Logger, repository Repository, locatorBase string) *Store {
	if locatorBase == "" {
		locatorBase = DefaultLocatorBase
	}

	return &Store{
		logger:      logger,
		repository:  repository,
		locatorBase: locatorBase,
	}
}

// Put canonicalizes and hashes the payload, then persists it under a freshly allocated id. Nothing is written
// if the payload cannot be canonicalized.
func (s *Store) Put(ctx context.Context, payload canonical.Value) (Record, Locator, error) {
	if payload == nil || (payload.Kind() != canonical.KindObject && payload.Kind() != canonical.KindArray) {
		return Record{}, "", fmt.Errorf("%w: payload must be a JSON object or array", ErrEncoding)
	}

	canonicalForm, err := canonical.Canonicalize(payload)
	if err != nil {
		return Record{}, "", err
	}

	asReceived, err := canonical.Marshal(payload)
	if err != nil {
		return Record{}, "", err
	}

	id, err := s.repository.NextId(ctx)
	if err != nil {
		s.logger.Error("Failed to allocate record id", zap.Error(err))
		return Record{}, "", fmt.Errorf("%w: %w", ErrStorage, err)
	}

	record := Record{
		Id:        id,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		Canonical: canonicalForm,
		Digest:    digest.Sum(canonicalForm),
		Payload:   asReceived,
	}

	if err := s.repository.Insert(ctx, record); err != nil {
		s.logger.Error("Failed to store record", zap.Uint64("id", uint64(id)), zap.Error(err))
		return Record{}, "", fmt.Errorf("%w: %w", ErrStorage, err)
	}

	s.logger.Debug("Stored record", zap.Uint64("id", uint64(id)), zap.Stringer("digest", record.Digest))

	return record, s.Locator(id), nil
}

// PutJSON parses a raw JSON document and stores it.
func (s *Store) PutJSON(ctx context.Context, data []byte) (Record, Locator, error) {
	payload, err := canonical.Parse(data)
	if err != nil {
		return Record{}, "", err
	}

	return s.Put(ctx, payload)
}

func (s *Store) Get(ctx context.Context, id RecordId) (Record, error) {
	record, ok, err := s.repository.Get(ctx, id)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if !ok {
		return Record{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	return record, nil
}

// Resolve fetches the record a locator references.
func (s *Store) Resolve(ctx context.Context, locator string) (Record, error) {
	id, err := ParseLocator(locator)
	if err != nil {
		return Record{}, err
	}

	return s.Get(ctx, id)
}

func (s *Store) Locator(id RecordId) Locator {
	return FormatLocator(s.locatorBase, id)
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	count, err := s.repository.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	return count, nil
}

func (s *Store) TestConnection(ctx context.Context) error {
	if err := s.repository.TestConnection(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	return nil
}
