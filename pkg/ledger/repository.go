package ledger

import (
	"github.com/RyanW02/waterledger/pkg/proof"
	"github.com/RyanW02/waterledger/pkg/types/audit"
)

// Repository holds ledger state. It performs no validation of its own: the ledger checks every precondition
// before the first write, and serializes all writers.
type Repository interface {
	Initialized() (bool, error)
	SetInitialized() error

	HasRole(role audit.Role, principal audit.Principal) (bool, error)
	SetRole(role audit.Role, principal audit.Principal, granted bool) error
	RoleCount(role audit.Role) (uint64, error)

	GetDevice(id audit.DeviceId) (audit.Device, bool, error)
	StoreDevice(device audit.Device) error

	EventCount() (uint64, error)
	GetEvent(id audit.EventId) (audit.AuditEvent, bool, error)
	EventIdAt(index uint64) (audit.EventId, bool, error)
	// AppendEvent stores the event at position EventCount().
	AppendEvent(event audit.AuditEvent) error

	HasNonce(principal audit.Principal, nonce string) (bool, error)
	StoreNonce(principal audit.Principal, nonce string) error

	Hash() ([]byte, error)
	Save() ([]byte, int64, error)
}

// ProvingRepository is a Repository that can prove its query results against its root hash.
type ProvingRepository interface {
	Repository
	GetEventWithProof(id audit.EventId) (proof.ItemWithProof[audit.AuditEvent], error)
	GetDeviceWithProof(id audit.DeviceId) (proof.ItemWithProof[audit.Device], error)
}
