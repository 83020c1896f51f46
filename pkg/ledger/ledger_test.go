package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/RyanW02/waterledger/internal/utils"
	"github.com/RyanW02/waterledger/pkg/digest"
	"github.com/RyanW02/waterledger/pkg/types/audit"
	dbm "github.com/cometbft/cometbft-db"
	"github.com/cosmos/iavl"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

const (
	admin    audit.Principal = "admin"
	operator audit.Principal = "operator"
	outsider audit.Principal = "outsider"

	device audit.DeviceId = "DEV-PS-003"
)

type LedgerSuite struct {
	suite.Suite
	newRepository func() Repository
	ledger        *Ledger
}

func TestMemoryLedger(t *testing.T) {
	suite.Run(t, &LedgerSuite{
		newRepository: func() Repository { return NewMemoryRepository() },
	})
}

func TestMerkleLedger(t *testing.T) {
	suite.Run(t, &LedgerSuite{
		newRepository: func() Repository {
			return NewMerkleRepository(utils.Must(iavl.NewMutableTree(dbm.NewMemDB(), 100, true)))
		},
	})
}

func (suite *LedgerSuite) SetupTest() {
	suite.ledger = New(zap.NewNop(), suite.newRepository())
	suite.Require().NoError(suite.ledger.Initialize(admin))
}

func (suite *LedgerSuite) anchor(deviceId audit.DeviceId, payload string) Anchor {
	return Anchor{
		DeviceId:  deviceId,
		EventType: audit.EventTypeTelemetryAnchor,
		Timestamp: 1700000000,
		Digest:    digest.Sum([]byte(payload)).Bytes(),
		Locator:   "offchain://water-audit/events/1",
	}
}

func (suite *LedgerSuite) registerDevice() {
	_, err := suite.ledger.RegisterDevice(device, "Pump station 3", "north", admin)
	suite.Require().NoError(err)
}

func (suite *LedgerSuite) TestInitializeOnce() {
	suite.Require().ErrorIs(suite.ledger.Initialize(outsider), ErrAlreadyInitialized)

	held, err := suite.ledger.HasRole(audit.RoleAdmin, outsider)
	suite.Require().NoError(err)
	suite.Require().False(held)
}

func (suite *LedgerSuite) TestInitializeValidation() {
	fresh := New(zap.NewNop(), suite.newRepository())
	suite.Require().ErrorIs(fresh.Initialize(), ErrNoAdmins)
	suite.Require().ErrorIs(fresh.Initialize(admin, ""), ErrInvalidPrincipal)

	// Nothing was written by the failed attempt
	held, err := fresh.HasRole(audit.RoleAdmin, admin)
	suite.Require().NoError(err)
	suite.Require().False(held)

	suite.Require().NoError(fresh.Initialize(admin))
}

func (suite *LedgerSuite) TestAuthorizationEnforcement() {
	suite.registerDevice()

	_, err := suite.ledger.AnchorEvent(suite.anchor(device, "a"), operator)
	suite.Require().ErrorIs(err, ErrUnauthorized)

	_, err = suite.ledger.RegisterDevice("DEV-2", "label", "zone", operator)
	suite.Require().ErrorIs(err, ErrUnauthorized)

	suite.Require().NoError(suite.ledger.GrantRole(audit.RoleOperator, operator, admin))

	id, err := suite.ledger.AnchorEvent(suite.anchor(device, "a"), operator)
	suite.Require().NoError(err)
	suite.Require().Equal(audit.FirstEventId, id)

	// Operators may anchor but not administer
	_, err = suite.ledger.RegisterDevice("DEV-2", "label", "zone", operator)
	suite.Require().ErrorIs(err, ErrUnauthorized)
	suite.Require().ErrorIs(suite.ledger.GrantRole(audit.RoleOperator, outsider, operator), ErrUnauthorized)
}

func (suite *LedgerSuite) TestAdminMayAnchor() {
	suite.registerDevice()

	id, err := suite.ledger.AnchorEvent(suite.anchor(device, "a"), admin)
	suite.Require().NoError(err)
	suite.Require().Equal(audit.EventId(1), id)

	event, err := suite.ledger.GetEvent(id)
	suite.Require().NoError(err)
	suite.Require().Equal(admin, event.SubmittedBy)
}

func (suite *LedgerSuite) TestGrantRole() {
	suite.Require().NoError(suite.ledger.GrantRole(audit.RoleOperator, operator, admin))

	held, err := suite.ledger.HasRole(audit.RoleOperator, operator)
	suite.Require().NoError(err)
	suite.Require().True(held)

	hash, err := suite.ledger.Hash()
	suite.Require().NoError(err)

	// Idempotent
	suite.Require().NoError(suite.ledger.GrantRole(audit.RoleOperator, operator, admin))

	after, err := suite.ledger.Hash()
	suite.Require().NoError(err)
	suite.Require().Equal(hash, after)

	suite.Require().ErrorIs(suite.ledger.GrantRole("AUDITOR", operator, admin), ErrUnknownRole)
	suite.Require().ErrorIs(suite.ledger.GrantRole(audit.RoleOperator, "", admin), ErrInvalidPrincipal)
	suite.Require().ErrorIs(suite.ledger.GrantRole(audit.RoleOperator, operator, ""), ErrUnauthorized)

	_, err = suite.ledger.HasRole("AUDITOR", operator)
	suite.Require().ErrorIs(err, ErrUnknownRole)
}

func (suite *LedgerSuite) TestRevokeRole() {
	suite.registerDevice()
	suite.Require().NoError(suite.ledger.GrantRole(audit.RoleOperator, operator, admin))
	suite.Require().NoError(suite.ledger.RevokeRole(audit.RoleOperator, operator, admin))

	_, err := suite.ledger.AnchorEvent(suite.anchor(device, "a"), operator)
	suite.Require().ErrorIs(err, ErrUnauthorized)

	// Revoking a role that is not held is a no-op
	suite.Require().NoError(suite.ledger.RevokeRole(audit.RoleOperator, outsider, admin))
	suite.Require().ErrorIs(suite.ledger.RevokeRole(audit.RoleOperator, operator, operator), ErrUnauthorized)
}

func (suite *LedgerSuite) TestRevokeLastAdmin() {
	suite.Require().ErrorIs(suite.ledger.RevokeRole(audit.RoleAdmin, admin, admin), ErrLastAdmin)

	suite.Require().NoError(suite.ledger.GrantRole(audit.RoleAdmin, outsider, admin))
	suite.Require().NoError(suite.ledger.RevokeRole(audit.RoleAdmin, admin, outsider))

	held, err := suite.ledger.HasRole(audit.RoleAdmin, admin)
	suite.Require().NoError(err)
	suite.Require().False(held)

	suite.Require().ErrorIs(suite.ledger.RevokeRole(audit.RoleAdmin, outsider, outsider), ErrLastAdmin)
	suite.Require().ErrorIs(suite.ledger.GrantRole(audit.RoleOperator, operator, admin), ErrUnauthorized)
}

func (suite *LedgerSuite) TestRegisterDevice() {
	blockTime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	suite.ledger.SetBlockTime(blockTime)

	registered, err := suite.ledger.RegisterDevice(device, "Pump station 3", "north", admin)
	suite.Require().NoError(err)
	suite.Require().Equal(blockTime, registered.RegisteredAt)

	fetched, err := suite.ledger.GetDevice(device)
	suite.Require().NoError(err)
	suite.Require().Equal(device, fetched.DeviceId)
	suite.Require().Equal("Pump station 3", fetched.Label)
	suite.Require().Equal("north", fetched.Zone)
	suite.Require().Equal(admin, fetched.RegisteredBy)
	suite.Require().True(blockTime.Equal(fetched.RegisteredAt))

	_, err = suite.ledger.RegisterDevice(device, "other", "south", admin)
	suite.Require().ErrorIs(err, ErrConflict)

	// The original entry is untouched
	fetched, err = suite.ledger.GetDevice(device)
	suite.Require().NoError(err)
	suite.Require().Equal("north", fetched.Zone)

	_, err = suite.ledger.RegisterDevice("", "label", "zone", admin)
	suite.Require().ErrorIs(err, ErrInvalidDevice)

	_, err = suite.ledger.GetDevice("DEV-UNKNOWN")
	suite.Require().ErrorIs(err, ErrNotFound)
}

func (suite *LedgerSuite) TestAnchorValidationOrder() {
	suite.registerDevice()
	suite.Require().NoError(suite.ledger.GrantRole(audit.RoleOperator, operator, admin))

	invalid := Anchor{DeviceId: "DEV-UNKNOWN", EventType: 9, Digest: []byte{1, 2, 3}}

	_, err := suite.ledger.AnchorEvent(invalid, outsider)
	suite.Require().ErrorIs(err, ErrUnauthorized)

	_, err = suite.ledger.AnchorEvent(invalid, operator)
	suite.Require().ErrorIs(err, ErrUnknownDevice)

	invalid.DeviceId = device
	_, err = suite.ledger.AnchorEvent(invalid, operator)
	suite.Require().ErrorIs(err, ErrInvalidEventType)

	invalid.EventType = audit.EventTypeMaintenance
	_, err = suite.ledger.AnchorEvent(invalid, operator)
	suite.Require().ErrorIs(err, ErrInvalidDigest)

	invalid.Digest = make([]byte, 33)
	_, err = suite.ledger.AnchorEvent(invalid, operator)
	suite.Require().ErrorIs(err, ErrInvalidDigest)

	invalid.EventType = 0
	invalid.Digest = make([]byte, 32)
	_, err = suite.ledger.AnchorEvent(invalid, operator)
	suite.Require().ErrorIs(err, ErrInvalidEventType)

	count, err := suite.ledger.TotalEvents()
	suite.Require().NoError(err)
	suite.Require().Zero(count)
}

func (suite *LedgerSuite) TestUnknownDeviceLeavesStateUnchanged() {
	suite.registerDevice()

	_, err := suite.ledger.AnchorEvent(suite.anchor(device, "a"), admin)
	suite.Require().NoError(err)

	before, err := suite.ledger.Hash()
	suite.Require().NoError(err)

	_, err = suite.ledger.AnchorEvent(suite.anchor("DEV-UNKNOWN", "b"), admin)
	suite.Require().ErrorIs(err, ErrUnknownDevice)

	count, err := suite.ledger.TotalEvents()
	suite.Require().NoError(err)
	suite.Require().Equal(uint64(1), count)

	after, err := suite.ledger.Hash()
	suite.Require().NoError(err)
	suite.Require().Equal(before, after)
}

func (suite *LedgerSuite) TestGaplessIds() {
	suite.registerDevice()
	suite.Require().NoError(suite.ledger.GrantRole(audit.RoleOperator, operator, admin))

	const n = 25

	succeeded := 0
	for i := 0; i < n*2; i++ {
		var err error
		switch i % 4 {
		case 1:
			_, err = suite.ledger.AnchorEvent(suite.anchor("DEV-UNKNOWN", "x"), operator)
			suite.Require().ErrorIs(err, ErrUnknownDevice)
		case 3:
			_, err = suite.ledger.AnchorEvent(suite.anchor(device, "x"), outsider)
			suite.Require().ErrorIs(err, ErrUnauthorized)
		default:
			_, err = suite.ledger.AnchorEvent(suite.anchor(device, string(rune('a'+i))), operator)
			suite.Require().NoError(err)
			succeeded++
		}
	}

	count, err := suite.ledger.TotalEvents()
	suite.Require().NoError(err)
	suite.Require().Equal(uint64(succeeded), count)

	for i := uint64(0); i < count; i++ {
		id, err := suite.ledger.EventIdAt(i)
		suite.Require().NoError(err)
		suite.Require().Equal(audit.FirstEventId+audit.EventId(i), id)

		event, err := suite.ledger.GetEvent(id)
		suite.Require().NoError(err)
		suite.Require().Equal(id, event.EventId)
	}

	_, err = suite.ledger.EventIdAt(count)
	suite.Require().ErrorIs(err, ErrOutOfRange)

	_, err = suite.ledger.GetEvent(audit.EventId(count + 1))
	suite.Require().ErrorIs(err, ErrNotFound)

	_, err = suite.ledger.GetEvent(0)
	suite.Require().ErrorIs(err, ErrNotFound)
}

func (suite *LedgerSuite) TestEventFields() {
	suite.registerDevice()

	anchor := Anchor{
		DeviceId:  device,
		EventType: audit.EventTypeAlarm,
		Timestamp: 1700000123,
		Digest:    digest.Sum([]byte("payload")).Bytes(),
		Locator:   "offchain://water-audit/events/7",
	}

	id, err := suite.ledger.AnchorEvent(anchor, admin)
	suite.Require().NoError(err)

	event, err := suite.ledger.GetEvent(id)
	suite.Require().NoError(err)
	suite.Require().Equal(audit.AuditEvent{
		EventId:     id,
		DeviceId:    device,
		EventType:   audit.EventTypeAlarm,
		Timestamp:   1700000123,
		Digest:      digest.Sum([]byte("payload")),
		Locator:     "offchain://water-audit/events/7",
		SubmittedBy: admin,
	}, event)
}

func (suite *LedgerSuite) TestConcurrentAnchors() {
	suite.registerDevice()
	suite.Require().NoError(suite.ledger.GrantRole(audit.RoleOperator, operator, admin))

	const writers = 8
	const perWriter = 10

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for i := 0; i < perWriter; i++ {
				_, err := suite.ledger.AnchorEvent(suite.anchor(device, "concurrent"), operator)
				suite.Assert().NoError(err)
			}
		}()

		// Readers run alongside the writers and must always see complete events
		wg.Add(1)
		go func() {
			defer wg.Done()

			for i := 0; i < perWriter; i++ {
				count, err := suite.ledger.TotalEvents()
				suite.Assert().NoError(err)

				if count == 0 {
					continue
				}

				id, err := suite.ledger.EventIdAt(count - 1)
				suite.Assert().NoError(err)

				event, err := suite.ledger.GetEvent(id)
				suite.Assert().NoError(err)
				suite.Assert().Equal(id, event.EventId)
				suite.Assert().Equal(device, event.DeviceId)
			}
		}()
	}

	wg.Wait()

	count, err := suite.ledger.TotalEvents()
	suite.Require().NoError(err)
	suite.Require().Equal(uint64(writers*perWriter), count)

	seen := make(map[audit.EventId]struct{})
	for i := uint64(0); i < count; i++ {
		id, err := suite.ledger.EventIdAt(i)
		suite.Require().NoError(err)
		suite.Require().Equal(audit.FirstEventId+audit.EventId(i), id)
		seen[id] = struct{}{}
	}
	suite.Require().Len(seen, writers*perWriter)
}

func (suite *LedgerSuite) TestCommit() {
	suite.registerDevice()

	hash, version, err := suite.ledger.Commit()
	suite.Require().NoError(err)
	suite.Require().Equal(int64(1), version)
	suite.Require().NotEmpty(hash)

	_, err = suite.ledger.AnchorEvent(suite.anchor(device, "a"), admin)
	suite.Require().NoError(err)

	next, version, err := suite.ledger.Commit()
	suite.Require().NoError(err)
	suite.Require().Equal(int64(2), version)
	suite.Require().NotEqual(hash, next)
}

func (suite *LedgerSuite) TestNonces() {
	used, err := suite.ledger.NonceUsed(operator, "n-1")
	suite.Require().NoError(err)
	suite.Require().False(used)

	before, err := suite.ledger.Hash()
	suite.Require().NoError(err)

	suite.Require().NoError(suite.ledger.ConsumeNonce(operator, "n-1"))
	suite.Require().ErrorIs(suite.ledger.ConsumeNonce(operator, "n-1"), ErrReplayed)

	used, err = suite.ledger.NonceUsed(operator, "n-1")
	suite.Require().NoError(err)
	suite.Require().True(used)

	// Nonces are scoped to the principal
	used, err = suite.ledger.NonceUsed(admin, "n-1")
	suite.Require().NoError(err)
	suite.Require().False(used)
	suite.Require().NoError(suite.ledger.ConsumeNonce(admin, "n-1"))

	after, err := suite.ledger.Hash()
	suite.Require().NoError(err)
	suite.Require().NotEqual(before, after)
}
