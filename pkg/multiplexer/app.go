package multiplexer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cometbft/cometbft/abci/types"
)

// MultiplexedApp is a sub-application sharing one CometBFT chain. State changes are applied to a working copy in
// FinalizeBlock and persisted by Commit.
type MultiplexedApp interface {
	Name() string
	Info(ctx context.Context, req *types.RequestInfo) any
	InitChain(ctx context.Context, req *types.RequestInitChain) ([]byte, error)
	CheckTx(ctx context.Context, req *types.RequestCheckTx, data json.RawMessage) (*types.ResponseCheckTx, error)
	FinalizeBlock(ctx context.Context, req *types.RequestFinalizeBlock, data json.RawMessage) FinalizeBlockResponse
	Query(ctx context.Context, req *types.RequestQuery) (*types.ResponseQuery, error)
	Commit(ctx context.Context) ([]byte, error)
}

type FinalizeBlockResponse struct {
	TxResult types.ExecTxResult
	AppHash  []byte
}

type ErrorResponse struct {
	Code      uint32 `json:"code"`
	Codespace string `json:"codespace"`
	Log       string `json:"log"`
}

func NewErrorResponse(code uint32, codespace string, err error) *ErrorResponse {
	var log string
	if err != nil {
		log = err.Error()
	}

	return &ErrorResponse{
		Code:      code,
		Codespace: codespace,
		Log:       log,
	}
}

func (e ErrorResponse) Error() string {
	return fmt.Sprintf("[%s %d] %s", e.Codespace, e.Code, e.Log)
}

// IntoFinalizeBlockResponse leaves AppHash nil, so the multiplexer keeps the previous hash of the app.
func (e ErrorResponse) IntoFinalizeBlockResponse() FinalizeBlockResponse {
	return FinalizeBlockResponse{
		TxResult: types.ExecTxResult{
			Code:      e.Code,
			Codespace: e.Codespace,
			Log:       e.Log,
		},
	}
}

func (e ErrorResponse) IntoCheckTxResponse() *types.ResponseCheckTx {
	return &types.ResponseCheckTx{
		Code:      e.Code,
		Log:       e.Log,
		Codespace: e.Codespace,
	}
}

func (e ErrorResponse) IntoQueryResponse() *types.ResponseQuery {
	return &types.ResponseQuery{
		Code:      e.Code,
		Log:       e.Log,
		Codespace: e.Codespace,
	}
}
