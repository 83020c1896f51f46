package ledger

import (
	"encoding/json"

	"github.com/RyanW02/waterledger/internal/utils"
	"github.com/RyanW02/waterledger/pkg/types/audit"
)

// MemoryRepository keeps ledger state in process. Events live in an arena: an ordered slice plus an index from
// event id to position, always updated together. The state hash is a running hash chain over every mutation.
type MemoryRepository struct {
	initialized bool
	roles       map[audit.Role]map[audit.Principal]struct{}
	devices     map[audit.DeviceId]audit.Device
	events      []audit.AuditEvent
	positions   map[audit.EventId]int
	nonces      map[string]struct{}

	hash    []byte
	version int64
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	roles := make(map[audit.Role]map[audit.Principal]struct{})
	for _, role := range audit.Roles() {
		roles[role] = make(map[audit.Principal]struct{})
	}

	return &MemoryRepository{
		roles:     roles,
		devices:   make(map[audit.DeviceId]audit.Device),
		positions: make(map[audit.EventId]int),
		nonces:    make(map[string]struct{}),
		hash:      utils.Sha256Sum(),
	}
}

func (r *MemoryRepository) Initialized() (bool, error) {
	return r.initialized, nil
}

func (r *MemoryRepository) SetInitialized() error {
	r.initialized = true
	r.chain("initialized", nil)
	return nil
}

func (r *MemoryRepository) HasRole(role audit.Role, principal audit.Principal) (bool, error) {
	_, ok := r.roles[role][principal]
	return ok, nil
}

func (r *MemoryRepository) SetRole(role audit.Role, principal audit.Principal, granted bool) error {
	holders, ok := r.roles[role]
	if !ok {
		return ErrUnknownRole
	}

	if granted {
		holders[principal] = struct{}{}
		r.chain("grant", []byte(role.String()+"/"+principal.String()))
	} else {
		delete(holders, principal)
		r.chain("revoke", []byte(role.String()+"/"+principal.String()))
	}

	return nil
}

func (r *MemoryRepository) RoleCount(role audit.Role) (uint64, error) {
	return uint64(len(r.roles[role])), nil
}

func (r *MemoryRepository) GetDevice(id audit.DeviceId) (audit.Device, bool, error) {
	device, ok := r.devices[id]
	return device, ok, nil
}

func (r *MemoryRepository) StoreDevice(device audit.Device) error {
	marshalled, err := json.Marshal(device)
	if err != nil {
		return err
	}

	r.devices[device.DeviceId] = device
	r.chain("device", marshalled)
	return nil
}

func (r *MemoryRepository) EventCount() (uint64, error) {
	return uint64(len(r.events)), nil
}

func (r *MemoryRepository) GetEvent(id audit.EventId) (audit.AuditEvent, bool, error) {
	position, ok := r.positions[id]
	if !ok {
		return audit.AuditEvent{}, false, nil
	}

	return r.events[position], true, nil
}

func (r *MemoryRepository) EventIdAt(index uint64) (audit.EventId, bool, error) {
	if index >= uint64(len(r.events)) {
		return 0, false, nil
	}

	return r.events[index].EventId, true, nil
}

func (r *MemoryRepository) AppendEvent(event audit.AuditEvent) error {
	marshalled, err := json.Marshal(event)
	if err != nil {
		return err
	}

	r.positions[event.EventId] = len(r.events)
	r.events = append(r.events, event)
	r.chain("event", marshalled)
	return nil
}

func (r *MemoryRepository) HasNonce(principal audit.Principal, nonce string) (bool, error) {
	_, ok := r.nonces[principal.String()+"/"+nonce]
	return ok, nil
}

func (r *MemoryRepository) StoreNonce(principal audit.Principal, nonce string) error {
	key := principal.String() + "/" + nonce
	r.nonces[key] = struct{}{}
	r.chain("nonce", []byte(key))
	return nil
}

func (r *MemoryRepository) Hash() ([]byte, error) {
	return r.hash, nil
}

func (r *MemoryRepository) Save() ([]byte, int64, error) {
	r.version++
	return r.hash, r.version, nil
}

func (r *MemoryRepository) chain(kind string, data []byte) {
	r.hash = utils.Sha256Sum(r.hash, []byte(kind), data)
}
