package blockchain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	rpctypes "github.com/cometbft/cometbft/rpc/jsonrpc/types"
	"github.com/cometbft/cometbft/types"
)

// CheckTxError is returned when a node refuses to add a transaction to its mempool.
type CheckTxError struct {
	Code      uint32
	Codespace string
	Log       string
}

func (e *CheckTxError) Error() string {
	return fmt.Sprintf("transaction rejected: code %s:%d, log: %s", e.Codespace, e.Code, e.Log)
}

// BroadcastAndPoll submits tx and waits until it has been included in a block.
func BroadcastAndPoll(ctx context.Context, node Node, tx types.Tx, retryFrequency time.Duration, timeout time.Duration) (*coretypes.ResultTx, error) {
	res, err := node.BroadcastTxSync(ctx, tx)
	if err != nil {
		return nil, err
	}

	if res.Code != 0 {
		return nil, &CheckTxError{Code: res.Code, Codespace: res.Codespace, Log: res.Log}
	}

	ctx, cancelFunc := context.WithTimeout(ctx, timeout)
	defer cancelFunc()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryFrequency):
			res, err := node.Tx(ctx, res.Hash, false)
			if err != nil {
				if isNotFound(err) {
					continue
				}

				return nil, err
			}

			return res, nil
		}
	}
}

func isNotFound(err error) bool {
	var rpcError *rpctypes.RPCError
	return errors.As(err, &rpcError) && strings.Contains(rpcError.Data, "not found")
}
