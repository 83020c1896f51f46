package auditapp

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/RyanW02/waterledger/pkg/ledger"
	"github.com/RyanW02/waterledger/pkg/multiplexer"
	"github.com/RyanW02/waterledger/pkg/types/audit"
	"github.com/RyanW02/waterledger/pkg/types/rpc"
	dbm "github.com/cometbft/cometbft-db"
	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/cosmos/iavl"
	"go.uber.org/zap"
)

// AuditApp runs the audit ledger as a multiplexed CometBFT application. Every mutation is a signed transaction,
// and the caller of a ledger operation is the principal that signed it.
type AuditApp struct {
	Ledger *ledger.Ledger

	logger        *zap.Logger
	repository    *ledger.MerkleRepository
	versionNumber int64
}

var _ multiplexer.MultiplexedApp = (*AuditApp)(nil)

const treeCacheSize = 1000

var ErrInvalidGenesis = errors.New("invalid audit genesis state")

func NewAuditApp(logger *zap.Logger, db dbm.DB) (*AuditApp, error) {
	tree, err := iavl.NewMutableTree(db, treeCacheSize, false)
	if err != nil {
		return nil, err
	}

	repository := ledger.NewMerkleRepository(tree)

	// Load data
	versionNumber, err := repository.LoadLatest()
	if err != nil {
		return nil, err
	}

	logger = logger.With(zap.String("module", audit.AppName))

	return &AuditApp{
		Ledger:        ledger.New(logger, repository),
		logger:        logger,
		repository:    repository,
		versionNumber: versionNumber,
	}, nil
}

func (app *AuditApp) Name() string {
	return audit.AppName
}

func (app *AuditApp) Info(ctx context.Context, req *abci.RequestInfo) any {
	appHash, err := app.Ledger.Hash()
	if err != nil {
		app.logger.Warn("Got error getting hash of AuditApp", zap.Error(err))
		return multiplexer.NewErrorResponse(audit.CodeUnknownError, audit.Codespace, err)
	}

	count, err := app.Ledger.TotalEvents()
	if err != nil {
		app.logger.Warn("Got error getting event count of AuditApp", zap.Error(err))
		return multiplexer.NewErrorResponse(audit.CodeUnknownError, audit.Codespace, err)
	}

	return map[string]any{
		"version":  app.versionNumber,
		"app_hash": hex.EncodeToString(appHash),
		"events":   count,
	}
}

// InitChain seeds the admin role from the genesis app_state.
func (app *AuditApp) InitChain(ctx context.Context, req *abci.RequestInitChain) ([]byte, error) {
	var genesis audit.Genesis
	if len(req.AppStateBytes) > 0 {
		if err := json.Unmarshal(req.AppStateBytes, &genesis); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidGenesis, err)
		}
	}

	for _, admin := range genesis.Admins {
		if !admin.Valid() {
			return nil, fmt.Errorf("%w: admin %q is not an ed25519 public key", ErrInvalidGenesis, admin)
		}
	}

	if err := app.Ledger.Initialize(genesis.Admins...); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGenesis, err)
	}

	app.logger.Info("Seeded admins from genesis", zap.Int("admins", len(genesis.Admins)))

	return app.Ledger.Hash()
}

func (app *AuditApp) Commit(ctx context.Context) ([]byte, error) {
	hash, versionNumber, err := app.Ledger.Commit()
	if err != nil {
		return nil, err
	}

	app.versionNumber = versionNumber
	return hash, nil
}

// decode checks the signature on a request. The signer is the caller of the resulting ledger operation.
func (app *AuditApp) decode(data json.RawMessage) (rpc.SignedPayload, *multiplexer.ErrorResponse) {
	var payload rpc.SignedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		app.logger.Warn("Got error decoding AuditApp request rpc", zap.Error(err))
		return rpc.SignedPayload{}, multiplexer.NewErrorResponse(audit.CodeMalformedRequest, audit.Codespace, err)
	}

	valid, err := payload.Verify()
	if err != nil {
		app.logger.Warn(
			"Got error validating AuditApp request signature",
			zap.Error(err),
			zap.Stringer("requester", payload.Principal),
		)
		return rpc.SignedPayload{}, multiplexer.NewErrorResponse(audit.CodeInvalidSignature, audit.Codespace, err)
	}

	if !valid {
		app.logger.Warn("Got invalid AuditApp request signature", zap.Stringer("requester", payload.Principal))
		return rpc.SignedPayload{}, multiplexer.NewErrorResponse(audit.CodeInvalidSignature, audit.Codespace, nil)
	}

	if err := payload.ValidateNonce(); err != nil {
		return rpc.SignedPayload{}, multiplexer.NewErrorResponse(audit.CodeMalformedRequest, audit.Codespace, err)
	}

	return payload, nil
}
