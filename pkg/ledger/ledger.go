package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/RyanW02/waterledger/pkg/digest"
	"github.com/RyanW02/waterledger/pkg/proof"
	"github.com/RyanW02/waterledger/pkg/types/audit"
	"go.uber.org/zap"
)

// Ledger is the append-only audit trail. Writers are exclusive and every write is fully validated before the
// repository is touched, so a failed operation changes nothing. Readers share the lock and always observe a
// complete prior state.
type Ledger struct {
	mu         sync.RWMutex
	logger     *zap.Logger
	repository Repository
	blockTime  time.Time
}

// Anchor is the caller supplied part of an AuditEvent. Digest is raw bytes so that a wrong length can be
// reported instead of silently truncated.
type Anchor struct {
	DeviceId  audit.DeviceId
	EventType audit.EventType
	Timestamp int64
	Digest    []byte
	Locator   string
}

func New(logger *zap.Logger, repository Repository) *Ledger {
	return &Ledger{
		logger:     logger,
		repository: repository,
	}
}

// SetBlockTime fixes the time recorded on newly registered devices. Under consensus this must be the block
// time, so that every node writes identical state.
func (l *Ledger) SetBlockTime(t time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.blockTime = t.UTC()
}

// Initialize seeds the admin role. It may only be called once.
func (l *Ledger) Initialize(admins ...audit.Principal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	initialized, err := l.repository.Initialized()
	if err != nil {
		return err
	}

	if initialized {
		return ErrAlreadyInitialized
	}

	if len(admins) == 0 {
		return ErrNoAdmins
	}

	for _, admin := range admins {
		if admin == "" {
			return ErrInvalidPrincipal
		}
	}

	for _, admin := range admins {
		if err := l.repository.SetRole(audit.RoleAdmin, admin, true); err != nil {
			return err
		}
	}

	if err := l.repository.SetInitialized(); err != nil {
		return err
	}

	l.logger.Info("Ledger initialized", zap.Int("admins", len(admins)))
	return nil
}

func (l *Ledger) GrantRole(role audit.Role, principal audit.Principal, caller audit.Principal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.authorize(caller, audit.RoleAdmin); err != nil {
		return err
	}

	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}

	if principal == "" {
		return ErrInvalidPrincipal
	}

	held, err := l.repository.HasRole(role, principal)
	if err != nil {
		return err
	}

	// Already held
	if held {
		return nil
	}

	if err := l.repository.SetRole(role, principal, true); err != nil {
		return err
	}

	l.logger.Info("Role granted", zap.Stringer("role", role), zap.Stringer("principal", principal), zap.Stringer("caller", caller))
	return nil
}

func (l *Ledger) RevokeRole(role audit.Role, principal audit.Principal, caller audit.Principal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.authorize(caller, audit.RoleAdmin); err != nil {
		return err
	}

	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}

	held, err := l.repository.HasRole(role, principal)
	if err != nil {
		return err
	}

	// Nothing to revoke
	if !held {
		return nil
	}

	if role == audit.RoleAdmin {
		admins, err := l.repository.RoleCount(audit.RoleAdmin)
		if err != nil {
			return err
		}

		if admins <= 1 {
			return ErrLastAdmin
		}
	}

	if err := l.repository.SetRole(role, principal, false); err != nil {
		return err
	}

	l.logger.Info("Role revoked", zap.Stringer("role", role), zap.Stringer("principal", principal), zap.Stringer("caller", caller))
	return nil
}

// HasRole reports whether principal was granted exactly role.
func (l *Ledger) HasRole(role audit.Role, principal audit.Principal) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !role.Valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}

	return l.repository.HasRole(role, principal)
}

func (l *Ledger) RegisterDevice(deviceId audit.DeviceId, label, zone string, caller audit.Principal) (audit.Device, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.authorize(caller, audit.RoleAdmin); err != nil {
		return audit.Device{}, err
	}

	if deviceId == "" {
		return audit.Device{}, ErrInvalidDevice
	}

	_, exists, err := l.repository.GetDevice(deviceId)
	if err != nil {
		return audit.Device{}, err
	}

	if exists {
		return audit.Device{}, fmt.Errorf("%w: %s", ErrConflict, deviceId)
	}

	device := audit.Device{
		DeviceId:     deviceId,
		Label:        label,
		Zone:         zone,
		RegisteredBy: caller,
		RegisteredAt: l.now(),
	}

	if err := l.repository.StoreDevice(device); err != nil {
		return audit.Device{}, err
	}

	l.logger.Info("Device registered", zap.Stringer("device_id", deviceId), zap.String("zone", zone))
	return device, nil
}

func (l *Ledger) GetDevice(deviceId audit.DeviceId) (audit.Device, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	device, ok, err := l.repository.GetDevice(deviceId)
	if err != nil {
		return audit.Device{}, err
	}

	if !ok {
		return audit.Device{}, fmt.Errorf("%w: device %s", ErrNotFound, deviceId)
	}

	return device, nil
}

// AnchorEvent appends a new event with the next sequential id. Neither the digest nor the locator are checked
// against the off-chain store.
func (l *Ledger) AnchorEvent(anchor Anchor, caller audit.Principal) (audit.EventId, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.authorize(caller, audit.RoleOperator); err != nil {
		return 0, err
	}

	if _, ok, err := l.repository.GetDevice(anchor.DeviceId); err != nil {
		return 0, err
	} else if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownDevice, anchor.DeviceId)
	}

	if !anchor.EventType.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidEventType, anchor.EventType)
	}

	committed, err := digest.FromBytes(anchor.Digest)
	if err != nil {
		return 0, fmt.Errorf("%w: got %d bytes", ErrInvalidDigest, len(anchor.Digest))
	}

	count, err := l.repository.EventCount()
	if err != nil {
		return 0, err
	}

	event := audit.AuditEvent{
		EventId:     audit.FirstEventId + audit.EventId(count),
		DeviceId:    anchor.DeviceId,
		EventType:   anchor.EventType,
		Timestamp:   anchor.Timestamp,
		Digest:      committed,
		Locator:     anchor.Locator,
		SubmittedBy: caller,
	}

	if err := l.repository.AppendEvent(event); err != nil {
		return 0, err
	}

	l.logger.Debug(
		"Event anchored",
		zap.Stringer("event_id", event.EventId),
		zap.Stringer("device_id", event.DeviceId),
		zap.Stringer("event_type", event.EventType),
		zap.Stringer("digest", event.Digest),
	)

	return event.EventId, nil
}

func (l *Ledger) TotalEvents() (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.repository.EventCount()
}

// EventIdAt returns the id of the event at append position index, counting from 0.
func (l *Ledger) EventIdAt(index uint64) (audit.EventId, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	id, ok, err := l.repository.EventIdAt(index)
	if err != nil {
		return 0, err
	}

	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrOutOfRange, index)
	}

	return id, nil
}

func (l *Ledger) GetEvent(eventId audit.EventId) (audit.AuditEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	event, ok, err := l.repository.GetEvent(eventId)
	if err != nil {
		return audit.AuditEvent{}, err
	}

	if !ok {
		return audit.AuditEvent{}, fmt.Errorf("%w: event %d", ErrNotFound, eventId)
	}

	return event, nil
}

func (l *Ledger) GetEventWithProof(eventId audit.EventId) (proof.ItemWithProof[audit.AuditEvent], error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	proving, ok := l.repository.(ProvingRepository)
	if !ok {
		return proof.ItemWithProof[audit.AuditEvent]{}, ErrProofsUnsupported
	}

	return proving.GetEventWithProof(eventId)
}

func (l *Ledger) GetDeviceWithProof(deviceId audit.DeviceId) (proof.ItemWithProof[audit.Device], error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	proving, ok := l.repository.(ProvingRepository)
	if !ok {
		return proof.ItemWithProof[audit.Device]{}, ErrProofsUnsupported
	}

	return proving.GetDeviceWithProof(deviceId)
}

// NonceUsed reports whether a transaction from caller carrying nonce has already been applied.
func (l *Ledger) NonceUsed(caller audit.Principal, nonce string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.repository.HasNonce(caller, nonce)
}

// ConsumeNonce marks nonce as used by caller. A nonce can only be consumed once per principal.
func (l *Ledger) ConsumeNonce(caller audit.Principal, nonce string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	used, err := l.repository.HasNonce(caller, nonce)
	if err != nil {
		return err
	}

	if used {
		return fmt.Errorf("%w: %s", ErrReplayed, nonce)
	}

	return l.repository.StoreNonce(caller, nonce)
}

// Hash returns the hash of the current working state.
func (l *Ledger) Hash() ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.repository.Hash()
}

// Commit persists the working state, returning its hash and version.
func (l *Ledger) Commit() ([]byte, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.repository.Save()
}

// Must hold the lock.
func (l *Ledger) now() time.Time {
	if l.blockTime.IsZero() {
		return time.Now().UTC()
	}

	return l.blockTime
}
