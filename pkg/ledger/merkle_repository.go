package ledger

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/RyanW02/waterledger/internal/utils"
	"github.com/RyanW02/waterledger/pkg/proof"
	"github.com/RyanW02/waterledger/pkg/types/audit"
	"github.com/cosmos/iavl"
)

// MerkleRepository keeps ledger state in an IAVL tree, so that every query result can be proven against the
// app hash.
type MerkleRepository struct {
	tree *iavl.MutableTree
	mu   sync.Mutex
}

const (
	metaPrefix      = "meta/"
	rolePrefix      = "role/"
	roleCountPrefix = "rolecount/"
	devicePrefix    = "device/"
	eventPrefix     = "event/"
	positionPrefix  = "position/"
	noncePrefix     = "nonce/"

	keyInitialized = metaPrefix + "initialized"
	keyEventCount  = metaPrefix + "event_count"
)

var (
	flagSet   = []byte{1}
	flagUnset = []byte{0}
)

var _ ProvingRepository = (*MerkleRepository)(nil)

func NewMerkleRepository(tree *iavl.MutableTree) *MerkleRepository {
	return &MerkleRepository{
		tree: tree,
	}
}

// EventKey is the tree key an event is stored under. Big-endian ids keep events in id order.
func EventKey(id audit.EventId) []byte {
	return append([]byte(eventPrefix), utils.Uint64ToBytes(uint64(id))...)
}

func DeviceKey(id audit.DeviceId) []byte {
	return []byte(devicePrefix + id.String())
}

// Revoked roles keep their key with an unset flag, since the tree only ever grows.
func roleKey(role audit.Role, principal audit.Principal) []byte {
	return []byte(rolePrefix + role.String() + "/" + principal.String())
}

func roleCountKey(role audit.Role) []byte {
	return []byte(roleCountPrefix + role.String())
}

func positionKey(index uint64) []byte {
	return append([]byte(positionPrefix), utils.Uint64ToBytes(index)...)
}

// Principals are fixed length hex, so the key cannot be ambiguous.
func nonceKey(principal audit.Principal, nonce string) []byte {
	return []byte(noncePrefix + principal.String() + "/" + nonce)
}

func (r *MerkleRepository) LoadLatest() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.tree.Load()
}

func (r *MerkleRepository) LoadVersion(version int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.tree.LoadVersion(version)
	return err
}

// Rollback discards every change since the last save.
func (r *MerkleRepository) Rollback() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tree.Rollback()
}

func (r *MerkleRepository) Hash() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.tree.Hash()
}

func (r *MerkleRepository) Save() ([]byte, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.tree.SaveVersion()
}

func (r *MerkleRepository) Version() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.tree.Version()
}

func (r *MerkleRepository) Initialized() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.tree.Has([]byte(keyInitialized))
}

func (r *MerkleRepository) SetInitialized() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.tree.Set([]byte(keyInitialized), flagSet)
	return err
}

func (r *MerkleRepository) HasNonce(principal audit.Principal, nonce string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.tree.Has(nonceKey(principal, nonce))
}

func (r *MerkleRepository) StoreNonce(principal audit.Principal, nonce string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.tree.Set(nonceKey(principal, nonce), flagSet)
	return err
}

func (r *MerkleRepository) HasRole(role audit.Role, principal audit.Principal) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	value, err := r.tree.Get(roleKey(role, principal))
	if err != nil {
		return false, err
	}

	return len(value) == 1 && value[0] == flagSet[0], nil
}

func (r *MerkleRepository) SetRole(role audit.Role, principal audit.Principal, granted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := roleKey(role, principal)

	current, err := r.tree.Get(key)
	if err != nil {
		return err
	}

	held := len(current) == 1 && current[0] == flagSet[0]
	if held == granted {
		return nil
	}

	count, err := r.getUint64(roleCountKey(role))
	if err != nil {
		return err
	}

	flag := flagUnset
	if granted {
		flag = flagSet
		count++
	} else {
		count--
	}

	if _, err := r.tree.Set(key, flag); err != nil {
		return err
	}

	_, err = r.tree.Set(roleCountKey(role), utils.Uint64ToBytes(count))
	return err
}

func (r *MerkleRepository) RoleCount(role audit.Role) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.getUint64(roleCountKey(role))
}

func (r *MerkleRepository) GetDevice(id audit.DeviceId) (audit.Device, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return getJSON[audit.Device](r.tree, DeviceKey(id))
}

func (r *MerkleRepository) StoreDevice(device audit.Device) error {
	marshalled, err := json.Marshal(device)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err = r.tree.Set(DeviceKey(device.DeviceId), marshalled)
	return err
}

func (r *MerkleRepository) EventCount() (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.getUint64([]byte(keyEventCount))
}

func (r *MerkleRepository) GetEvent(id audit.EventId) (audit.AuditEvent, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return getJSON[audit.AuditEvent](r.tree, EventKey(id))
}

func (r *MerkleRepository) EventIdAt(index uint64) (audit.EventId, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	value, err := r.tree.Get(positionKey(index))
	if err != nil {
		return 0, false, err
	}

	if value == nil {
		return 0, false, nil
	}

	return audit.EventId(utils.BytesToUint64(value)), true, nil
}

func (r *MerkleRepository) AppendEvent(event audit.AuditEvent) error {
	marshalled, err := json.Marshal(event)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	count, err := r.getUint64([]byte(keyEventCount))
	if err != nil {
		return err
	}

	if _, err := r.tree.Set(EventKey(event.EventId), marshalled); err != nil {
		return err
	}

	if _, err := r.tree.Set(positionKey(count), utils.Uint64ToBytes(uint64(event.EventId))); err != nil {
		return err
	}

	_, err = r.tree.Set([]byte(keyEventCount), utils.Uint64ToBytes(count+1))
	return err
}

func (r *MerkleRepository) GetEventWithProof(id audit.EventId) (proof.ItemWithProof[audit.AuditEvent], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return getWithProof[audit.AuditEvent](r.tree, EventKey(id))
}

func (r *MerkleRepository) GetDeviceWithProof(id audit.DeviceId) (proof.ItemWithProof[audit.Device], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return getWithProof[audit.Device](r.tree, DeviceKey(id))
}

// Must hold the lock. A missing key reads as zero.
func (r *MerkleRepository) getUint64(key []byte) (uint64, error) {
	value, err := r.tree.Get(key)
	if err != nil {
		return 0, err
	}

	if value == nil {
		return 0, nil
	}

	if len(value) != 8 {
		return 0, errors.New("corrupt counter: expected 8 bytes")
	}

	return utils.BytesToUint64(value), nil
}

func getJSON[T any](tree *iavl.MutableTree, key []byte) (T, bool, error) {
	var item T

	value, err := tree.Get(key)
	if err != nil {
		return item, false, err
	}

	if value == nil {
		return item, false, nil
	}

	if err := json.Unmarshal(value, &item); err != nil {
		return item, false, err
	}

	return item, true, nil
}

func getWithProof[T any](tree *iavl.MutableTree, key []byte) (proof.ItemWithProof[T], error) {
	index, value, err := tree.GetWithIndex(key)
	if err != nil {
		return proof.ItemWithProof[T]{}, err
	}

	proofOp, err := proof.ProofOpForTree(tree, key)
	if err != nil {
		return proof.ItemWithProof[T]{}, err
	}

	// Item not found
	if value == nil {
		return proof.ItemWithProof[T]{
			Index:   index,
			Height:  proof.GetProofHeight(tree),
			ProofOp: proofOp,
		}, nil
	}

	var item T
	if err := json.Unmarshal(value, &item); err != nil {
		return proof.ItemWithProof[T]{}, err
	}

	return proof.ItemWithProof[T]{
		Item:    &item,
		Index:   index,
		Height:  proof.GetProofHeight(tree),
		ProofOp: proofOp,
		Value:   value,
	}, nil
}
