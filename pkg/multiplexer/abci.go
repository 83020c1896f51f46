package multiplexer

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/RyanW02/waterledger/pkg/types/rpc"
	dbm "github.com/cometbft/cometbft-db"
	"github.com/cometbft/cometbft/abci/types"
	"github.com/cometbft/cometbft/version"
	"go.uber.org/zap"
)

const AppVersion = 1

var _ types.Application = (*MultiplexedApplication)(nil)

// MultiplexedApplication routes every transaction and query to a sub-application by the app name carried in the
// rpc.MuxedRequest envelope.
type MultiplexedApplication struct {
	types.BaseApplication

	logger       *zap.Logger
	apps         map[string]MultiplexedApp
	state        State
	RetainBlocks int64 // blocks to retain after commit (via ResponseCommit.RetainHeight)
}

func NewApplication(logger *zap.Logger, db dbm.DB, apps ...MultiplexedApp) (*MultiplexedApplication, error) {
	state, err := loadState(db)
	if err != nil {
		return nil, fmt.Errorf("failed to load multiplexer state: %w", err)
	}

	appMap := make(map[string]MultiplexedApp)
	for _, app := range apps {
		if _, ok := appMap[app.Name()]; ok {
			return nil, fmt.Errorf("duplicate app name %q", app.Name())
		}

		appMap[app.Name()] = app
	}

	return &MultiplexedApplication{
		logger: logger.With(zap.String("module", "multiplexer")),
		apps:   appMap,
		state:  state,
	}, nil
}

func (app *MultiplexedApplication) Info(ctx context.Context, req *types.RequestInfo) (*types.ResponseInfo, error) {
	data := make(map[string]any)
	for name, subApp := range app.apps {
		data[name] = subApp.Info(ctx, req)
	}

	marshalled, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	res := &types.ResponseInfo{
		Data:            string(marshalled),
		Version:         version.ABCIVersion,
		AppVersion:      AppVersion,
		LastBlockHeight: app.state.Height,
	}

	// CometBFT expects an empty hash before the first block
	if app.state.Height > 0 {
		res.LastBlockAppHash = app.state.GenerateAppHash()
	}

	return res, nil
}

func (app *MultiplexedApplication) InitChain(ctx context.Context, req *types.RequestInitChain) (*types.ResponseInitChain, error) {
	for _, subApp := range app.apps {
		appHash, err := subApp.InitChain(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to run InitChain for app %s: %w", subApp.Name(), err)
		}

		app.state.AppHashes[subApp.Name()] = appHash
	}

	return &types.ResponseInitChain{
		AppHash: app.state.GenerateAppHash(),
	}, nil
}

func (app *MultiplexedApplication) Query(ctx context.Context, req *types.RequestQuery) (*types.ResponseQuery, error) {
	var decoded rpc.MuxedRequest
	if err := json.Unmarshal(req.Data, &decoded); err != nil {
		app.logger.Warn("Error decoding Query request", zap.Error(err))
		return NewErrorResponse(CodeEncodingError, Codespace, errors.New("error decoding request")).IntoQueryResponse(), nil
	}

	subApp, ok := app.apps[decoded.App]
	if !ok {
		app.logger.Warn(
			"Got Query request with unknown app name",
			zap.String("supplied_name", decoded.App),
		)
		return NewErrorResponse(CodeUnknownApp, Codespace, errors.New("unknown app name")).IntoQueryResponse(), nil
	}

	return subApp.Query(ctx, req)
}

func (app *MultiplexedApplication) CheckTx(ctx context.Context, req *types.RequestCheckTx) (*types.ResponseCheckTx, error) {
	var decoded rpc.MuxedRequest
	if err := json.Unmarshal(req.Tx, &decoded); err != nil {
		app.logger.Warn("Error decoding CheckTx request", zap.Error(err))
		return NewErrorResponse(CodeEncodingError, Codespace, errors.New("error decoding request")).IntoCheckTxResponse(), nil
	}

	subApp, ok := app.apps[decoded.App]
	if !ok {
		app.logger.Warn(
			"Got CheckTx request with unknown app name",
			zap.String("supplied_name", decoded.App),
		)
		return NewErrorResponse(CodeUnknownApp, Codespace, errors.New("unknown app name")).IntoCheckTxResponse(), nil
	}

	return subApp.CheckTx(ctx, req, decoded.Data)
}

func (app *MultiplexedApplication) FinalizeBlock(ctx context.Context, req *types.RequestFinalizeBlock) (*types.ResponseFinalizeBlock, error) {
	results := make([]*types.ExecTxResult, len(req.Txs))

	for i, tx := range req.Txs {
		var decoded rpc.MuxedRequest
		if err := json.Unmarshal(tx, &decoded); err != nil {
			results[i] = &types.ExecTxResult{Code: CodeEncodingError, Codespace: Codespace}
			app.logger.Warn("Error decoding FinalizeBlock request", zap.Error(err))
			continue
		}

		subApp, ok := app.apps[decoded.App]
		if !ok {
			results[i] = &types.ExecTxResult{Code: CodeUnknownApp, Codespace: Codespace}
			app.logger.Warn(
				"Got FinalizeBlock request with unknown app name",
				zap.String("supplied_name", decoded.App),
			)
			continue
		}

		res := subApp.FinalizeBlock(ctx, req, decoded.Data)
		if res.AppHash != nil {
			app.state.AppHashes[subApp.Name()] = res.AppHash
		}

		results[i] = &res.TxResult

		app.logger.Debug(
			"Ran FinalizeBlock for app",
			zap.String("app", subApp.Name()),
			zap.Uint32("code", res.TxResult.Code),
			zap.String("app_hash", hex.EncodeToString(res.AppHash)),
		)
	}

	app.state.Height = req.Height

	res := &types.ResponseFinalizeBlock{
		TxResults: results,
		AppHash:   app.state.GenerateAppHash(),
	}

	app.logger.Info(
		"Finalized block",
		zap.Int64("height", req.Height),
		zap.Int("txs", len(req.Txs)),
		zap.String("app_hash", hex.EncodeToString(res.AppHash)),
	)

	return res, nil
}

func (app *MultiplexedApplication) Commit(ctx context.Context, commit *types.RequestCommit) (*types.ResponseCommit, error) {
	for _, subApp := range app.apps {
		hash, err := subApp.Commit(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to commit app %s: %w", subApp.Name(), err)
		}

		app.logger.Debug("Committed app", zap.String("app", subApp.Name()), zap.String("hash", hex.EncodeToString(hash)))
	}

	if err := saveState(app.state); err != nil {
		return nil, fmt.Errorf("failed to save multiplexer state: %w", err)
	}

	resp := &types.ResponseCommit{}
	if app.RetainBlocks > 0 && app.state.Height >= app.RetainBlocks {
		resp.RetainHeight = app.state.Height - app.RetainBlocks + 1
	}

	return resp, nil
}
