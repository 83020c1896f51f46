package offchain

import "context"

// Repository persists records. Implementations must allocate ids atomically, and NextId must commit the
// allocation on its own: an id is never handed out twice, even if the following Insert fails.
type Repository interface {
	NextId(ctx context.Context) (RecordId, error)
	// Insert stores a record under its id, failing with ErrDuplicateId if the id is taken.
	Insert(ctx context.Context, record Record) error
	Get(ctx context.Context, id RecordId) (Record, bool, error)
	Count(ctx context.Context) (int64, error)
	TestConnection(ctx context.Context) error
	Close(ctx context.Context) error
}
