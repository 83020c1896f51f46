package offchain

import (
	"encoding/json"
	"time"

	"github.com/RyanW02/waterledger/pkg/digest"
)

type RecordId uint64

// Record is an immutable off-chain payload. Digest is the hash of Canonical, and Canonical is the canonical form
// of Payload, at the time the record was created.
type Record struct {
	Id        RecordId
	CreatedAt time.Time
	Canonical []byte
	Digest    digest.Digest
	Payload   json.RawMessage
}

type recordJSON struct {
	Id        RecordId        `json:"id"`
	CreatedAt time.Time       `json:"createdAt"`
	Canonical string          `json:"canonical"`
	Digest    digest.Digest   `json:"digest"`
	Payload   json.RawMessage `json:"payload"`
}

// MarshalJSON encodes the canonical form as a string, so that it can be hashed by clients byte for byte.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		Id:        r.Id,
		CreatedAt: r.CreatedAt,
		Canonical: string(r.Canonical),
		Digest:    r.Digest,
		Payload:   r.Payload,
	})
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var aux recordJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	r.Id = aux.Id
	r.CreatedAt = aux.CreatedAt
	r.Canonical = []byte(aux.Canonical)
	r.Digest = aux.Digest
	r.Payload = aux.Payload
	return nil
}
