package ledger

import (
	"testing"

	"github.com/RyanW02/waterledger/pkg/digest"
	"github.com/RyanW02/waterledger/pkg/proof"
	"github.com/RyanW02/waterledger/pkg/types/audit"
	dbm "github.com/cometbft/cometbft-db"
	"github.com/cosmos/iavl"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMerkleLedger(t *testing.T, db dbm.DB) (*Ledger, *MerkleRepository) {
	tree, err := iavl.NewMutableTree(db, 100, true)
	require.NoErrorf(t, err, "error creating tree")

	repository := NewMerkleRepository(tree)
	_, err = repository.LoadLatest()
	require.NoError(t, err)

	return New(zap.NewNop(), repository), repository
}

func TestMerkleReload(t *testing.T) {
	db := dbm.NewMemDB()
	ledger, _ := newMerkleLedger(t, db)

	require.NoError(t, ledger.Initialize(admin))
	_, err := ledger.RegisterDevice(device, "Pump station 3", "north", admin)
	require.NoError(t, err)

	id, err := ledger.AnchorEvent(Anchor{
		DeviceId:  device,
		EventType: audit.EventTypeTelemetryAnchor,
		Digest:    digest.Sum([]byte("a")).Bytes(),
		Locator:   "offchain://water-audit/events/1",
	}, admin)
	require.NoError(t, err)

	hash, _, err := ledger.Commit()
	require.NoError(t, err)

	reloaded, _ := newMerkleLedger(t, db)

	reloadedHash, err := reloaded.Hash()
	require.NoError(t, err)
	require.Equal(t, hash, reloadedHash)

	event, err := reloaded.GetEvent(id)
	require.NoError(t, err)
	require.Equal(t, device, event.DeviceId)

	require.ErrorIs(t, reloaded.Initialize(admin), ErrAlreadyInitialized)
}

func TestMerkleNoncesSurviveReload(t *testing.T) {
	db := dbm.NewMemDB()
	ledger, _ := newMerkleLedger(t, db)

	require.NoError(t, ledger.Initialize(admin))
	require.NoError(t, ledger.ConsumeNonce(operator, "n-1"))

	_, _, err := ledger.Commit()
	require.NoError(t, err)

	reloaded, _ := newMerkleLedger(t, db)

	used, err := reloaded.NonceUsed(operator, "n-1")
	require.NoError(t, err)
	require.True(t, used)
	require.ErrorIs(t, reloaded.ConsumeNonce(operator, "n-1"), ErrReplayed)
}

func TestMerkleRollback(t *testing.T) {
	ledger, repository := newMerkleLedger(t, dbm.NewMemDB())

	require.NoError(t, ledger.Initialize(admin))
	_, _, err := ledger.Commit()
	require.NoError(t, err)

	_, err = ledger.RegisterDevice(device, "Pump station 3", "north", admin)
	require.NoError(t, err)

	repository.Rollback()

	_, err = ledger.GetDevice(device)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMerkleProofs(t *testing.T) {
	ledger, _ := newMerkleLedger(t, dbm.NewMemDB())

	require.NoError(t, ledger.Initialize(admin))
	_, err := ledger.RegisterDevice(device, "Pump station 3", "north", admin)
	require.NoError(t, err)

	id, err := ledger.AnchorEvent(Anchor{
		DeviceId:  device,
		EventType: audit.EventTypeControlAction,
		Digest:    digest.Sum([]byte("a")).Bytes(),
		Locator:   "offchain://water-audit/events/1",
	}, admin)
	require.NoError(t, err)

	_, _, err = ledger.Commit()
	require.NoError(t, err)

	eventProof, err := ledger.GetEventWithProof(id)
	require.NoError(t, err)
	require.NotNil(t, eventProof.Item)
	require.Equal(t, id, eventProof.Item.EventId)
	require.Equal(t, EventKey(id), eventProof.ProofOp.Key)
	require.NoError(t, proof.ValidateProofOps(eventProof.ProofOps(), eventProof.Value))

	deviceProof, err := ledger.GetDeviceWithProof(device)
	require.NoError(t, err)
	require.NotNil(t, deviceProof.Item)
	require.NoError(t, proof.ValidateProofOps(deviceProof.ProofOps(), deviceProof.Value))

	missing, err := ledger.GetEventWithProof(id + 1)
	require.NoError(t, err)
	require.Nil(t, missing.Item)
	require.NoError(t, proof.ValidateProofOps(missing.ProofOps(), nil))
}

func TestMemoryRepositoryHasNoProofs(t *testing.T) {
	ledger := New(zap.NewNop(), NewMemoryRepository())

	_, err := ledger.GetEventWithProof(1)
	require.ErrorIs(t, err, ErrProofsUnsupported)

	_, err = ledger.GetDeviceWithProof(device)
	require.ErrorIs(t, err, ErrProofsUnsupported)
}
