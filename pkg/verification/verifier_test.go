package verification

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/RyanW02/waterledger/pkg/canonical"
	"github.com/RyanW02/waterledger/pkg/digest"
	"github.com/RyanW02/waterledger/pkg/ledger"
	"github.com/RyanW02/waterledger/pkg/offchain"
	"github.com/RyanW02/waterledger/pkg/offchain/leveldb"
	"github.com/RyanW02/waterledger/pkg/types/audit"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	admin    audit.Principal = "admin"
	operator audit.Principal = "P"
	device   audit.DeviceId  = "DEV-PS-003"
)

type fixture struct {
	ledger     *ledger.Ledger
	repository *leveldb.Repository
	store      *offchain.Store
	verifier   *Verifier
}

func newFixture(t *testing.T) fixture {
	repository, err := leveldb.OpenMemory()
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, repository.Close(context.Background()))
	})

	l := ledger.New(zap.NewNop(), ledger.NewMemoryRepository())
	require.NoError(t, l.Initialize(admin))

	store := offchain.NewStore(zap.NewNop(), repository, "")

	return fixture{
		ledger:     l,
		repository: repository,
		store:      store,
		verifier:   NewVerifier(zap.NewNop(), Local(l), store),
	}
}

// putAndAnchor runs the full submission flow and returns the anchored event id.
func (f fixture) putAndAnchor(t *testing.T, payload string) (audit.EventId, offchain.Record) {
	record, locator, err := f.store.PutJSON(context.Background(), []byte(payload))
	require.NoError(t, err)

	eventId, err := f.ledger.AnchorEvent(ledger.Anchor{
		DeviceId:  device,
		EventType: audit.EventTypeAlarm,
		Timestamp: 1700000000,
		Digest:    record.Digest.Bytes(),
		Locator:   locator.String(),
	}, operator)
	require.NoError(t, err)

	return eventId, record
}

func TestEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.RegisterDevice(device, "Pump station 3", "north", admin)
	require.NoError(t, err)
	require.NoError(t, f.ledger.GrantRole(audit.RoleOperator, operator, admin))

	eventId, record := f.putAndAnchor(t, `{"pressure_bar":3.1,"flow_m3h":88}`)
	require.Equal(t, offchain.RecordId(1), record.Id)
	require.Equal(t, audit.EventId(1), eventId)

	expected := digest.Sum([]byte(`{"flow_m3h":88,"pressure_bar":3.1}`))
	require.Equal(t, expected, record.Digest)

	result, err := f.verifier.Verify(ctx, eventId)
	require.NoError(t, err)
	require.True(t, result.Ok)
	require.Equal(t, expected, result.ComputedDigest)
	require.Equal(t, expected, result.CommittedDigest)
	require.Equal(t, offchain.RecordId(1), result.RecordId)

	// Idempotent
	again, err := f.verifier.Verify(ctx, eventId)
	require.NoError(t, err)
	require.Equal(t, result, again)
}

func TestTamperDetection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.RegisterDevice(device, "Pump station 3", "north", admin)
	require.NoError(t, err)

	record, locator, err := f.store.PutJSON(ctx, []byte(`{"pressure_bar":3.1,"flow_m3h":88}`))
	require.NoError(t, err)

	// A corrupted copy keeps the original stored digest but carries different payload bytes
	tamperedId, err := f.repository.NextId(ctx)
	require.NoError(t, err)

	tampered := record
	tampered.Id = tamperedId
	tampered.Payload = json.RawMessage(`{"pressure_bar":9.9,"flow_m3h":88}`)
	require.NoError(t, f.repository.Insert(ctx, tampered))

	eventId, err := f.ledger.AnchorEvent(ledger.Anchor{
		DeviceId:  device,
		EventType: audit.EventTypeTelemetryAnchor,
		Digest:    record.Digest.Bytes(),
		Locator:   offchain.FormatLocator(offchain.DefaultLocatorBase, tamperedId).String(),
	}, admin)
	require.NoError(t, err)

	result, err := f.verifier.Verify(ctx, eventId)
	require.NoError(t, err)
	require.False(t, result.Ok)
	require.Equal(t, record.Digest, result.CommittedDigest)
	require.NotEqual(t, result.CommittedDigest, result.ComputedDigest)

	// The untouched original still verifies
	originalEvent, err := f.ledger.AnchorEvent(ledger.Anchor{
		DeviceId:  device,
		EventType: audit.EventTypeTelemetryAnchor,
		Digest:    record.Digest.Bytes(),
		Locator:   locator.String(),
	}, admin)
	require.NoError(t, err)

	result, err = f.verifier.Verify(ctx, originalEvent)
	require.NoError(t, err)
	require.True(t, result.Ok)
}

func TestUnparseablePayloadDiverges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.RegisterDevice(device, "Pump station 3", "north", admin)
	require.NoError(t, err)

	require.NoError(t, f.repository.Insert(ctx, offchain.Record{
		Id:      5,
		Payload: json.RawMessage(`{"truncated":`),
		Digest:  digest.Sum([]byte(`{}`)),
	}))

	eventId, err := f.ledger.AnchorEvent(ledger.Anchor{
		DeviceId:  device,
		EventType: audit.EventTypeMaintenance,
		Digest:    digest.Sum([]byte(`{}`)).Bytes(),
		Locator:   "offchain://water-audit/events/5",
	}, admin)
	require.NoError(t, err)

	result, err := f.verifier.Verify(ctx, eventId)
	require.NoError(t, err)
	require.False(t, result.Ok)
	require.Equal(t, digest.Sum([]byte(`{"truncated":`)), result.ComputedDigest)
}

func TestVerifyErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.verifier.Verify(ctx, 1)
	require.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = f.ledger.RegisterDevice(device, "Pump station 3", "north", admin)
	require.NoError(t, err)

	badLocator, err := f.ledger.AnchorEvent(ledger.Anchor{
		DeviceId:  device,
		EventType: audit.EventTypeAlarm,
		Digest:    make([]byte, digest.Size),
		Locator:   "ipfs://QmSomething",
	}, admin)
	require.NoError(t, err)

	_, err = f.verifier.Verify(ctx, badLocator)
	require.ErrorIs(t, err, offchain.ErrLocatorFormat)

	missingRecord, err := f.ledger.AnchorEvent(ledger.Anchor{
		DeviceId:  device,
		EventType: audit.EventTypeAlarm,
		Digest:    make([]byte, digest.Size),
		Locator:   "offchain://water-audit/events/404",
	}, admin)
	require.NoError(t, err)

	_, err = f.verifier.Verify(ctx, missingRecord)
	require.ErrorIs(t, err, offchain.ErrNotFound)
}

func TestCompare(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, _, err := f.store.Put(ctx, canonical.Object{
		{Key: "b", Value: canonical.Number(1)},
		{Key: "a", Value: canonical.Number(2)},
	})
	require.NoError(t, err)

	supplied, err := digest.Parse(record.Digest.String())
	require.NoError(t, err)

	result, err := f.verifier.Compare(ctx, record.Id, supplied)
	require.NoError(t, err)
	require.True(t, result.Ok)
	require.Equal(t, record.Id, result.Id)

	result, err = f.verifier.Compare(ctx, record.Id, digest.Sum([]byte("other")))
	require.NoError(t, err)
	require.False(t, result.Ok)
	require.Equal(t, record.Digest, result.ComputedDigest)

	_, err = f.verifier.Compare(ctx, 99, supplied)
	require.ErrorIs(t, err, offchain.ErrNotFound)
}
