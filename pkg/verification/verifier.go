package verification

import (
	"context"

	"github.com/RyanW02/waterledger/pkg/canonical"
	"github.com/RyanW02/waterledger/pkg/digest"
	"github.com/RyanW02/waterledger/pkg/ledger"
	"github.com/RyanW02/waterledger/pkg/offchain"
	"github.com/RyanW02/waterledger/pkg/types/audit"
	"go.uber.org/zap"
)

// EventSource reads anchored events, either from an in-process ledger or from a ledger node.
type EventSource interface {
	GetEvent(ctx context.Context, eventId audit.EventId) (audit.AuditEvent, error)
}

// RecordSource reads off-chain records.
type RecordSource interface {
	Get(ctx context.Context, id offchain.RecordId) (offchain.Record, error)
}

// Result of verifying an anchored event. Ok is false when the off-chain payload no longer matches the
// committed digest; that is a successful verification, not an error.
type Result struct {
	EventId         audit.EventId     `json:"eventId"`
	RecordId        offchain.RecordId `json:"recordId"`
	Locator         string            `json:"locator"`
	Ok              bool              `json:"ok"`
	ComputedDigest  digest.Digest     `json:"computedDigest"`
	CommittedDigest digest.Digest     `json:"committedDigest"`
}

type CompareResult struct {
	Id             offchain.RecordId `json:"id"`
	Ok             bool              `json:"ok"`
	ComputedDigest digest.Digest     `json:"computedDigest"`
	SuppliedDigest digest.Digest     `json:"suppliedDigest"`
}

// Verifier is read-only and holds no locks. The ledger read and the store read are independent.
type Verifier struct {
	logger  *zap.Logger
	events  EventSource
	records RecordSource
}

func NewVerifier(logger *zap.Logger, events EventSource, records RecordSource) *Verifier {
	return &Verifier{
		logger:  logger,
		events:  events,
		records: records,
	}
}

// Verify recomputes the digest of the record an event references and compares it with the committed digest.
func (v *Verifier) Verify(ctx context.Context, eventId audit.EventId) (Result, error) {
	event, err := v.events.GetEvent(ctx, eventId)
	if err != nil {
		return Result{}, err
	}

	recordId, err := offchain.ParseLocator(event.Locator)
	if err != nil {
		return Result{}, err
	}

	record, err := v.records.Get(ctx, recordId)
	if err != nil {
		return Result{}, err
	}

	computed := Recompute(record)
	ok := computed.Equal(event.Digest)

	if !ok {
		v.logger.Warn(
			"Digest mismatch",
			zap.Stringer("event_id", eventId),
			zap.Uint64("record_id", uint64(recordId)),
			zap.Stringer("computed", computed),
			zap.Stringer("committed", event.Digest),
		)
	}

	return Result{
		EventId:         eventId,
		RecordId:        recordId,
		Locator:         event.Locator,
		Ok:              ok,
		ComputedDigest:  computed,
		CommittedDigest: event.Digest,
	}, nil
}

// Compare recomputes the digest of a record and compares it with a digest supplied by the caller.
func (v *Verifier) Compare(ctx context.Context, recordId offchain.RecordId, supplied digest.Digest) (CompareResult, error) {
	record, err := v.records.Get(ctx, recordId)
	if err != nil {
		return CompareResult{}, err
	}

	computed := Recompute(record)

	return CompareResult{
		Id:             recordId,
		Ok:             computed.Equal(supplied),
		ComputedDigest: computed,
		SuppliedDigest: supplied,
	}, nil
}

// Recompute hashes the canonical form of the stored payload, never trusting the stored digest. A payload that
// no longer parses is hashed as raw bytes, which cannot match any canonical digest.
func Recompute(record offchain.Record) digest.Digest {
	payload, err := canonical.Parse(record.Payload)
	if err != nil {
		return digest.Sum(record.Payload)
	}

	canonicalForm, err := canonical.Canonicalize(payload)
	if err != nil {
		return digest.Sum(record.Payload)
	}

	return digest.Sum(canonicalForm)
}

// Local adapts an in-process ledger to an EventSource.
func Local(l *ledger.Ledger) EventSource {
	return localSource{ledger: l}
}

type localSource struct {
	ledger *ledger.Ledger
}

func (s localSource) GetEvent(_ context.Context, eventId audit.EventId) (audit.AuditEvent, error) {
	return s.ledger.GetEvent(eventId)
}
