package blockchain

import (
	"context"
	"errors"

	"github.com/cometbft/cometbft/libs/bytes"
	"github.com/cometbft/cometbft/libs/service"
	rpcclient "github.com/cometbft/cometbft/rpc/client"
	"github.com/cometbft/cometbft/rpc/client/http"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/cometbft/cometbft/types"
)

// Node is the part of the CometBFT RPC API the client uses. *http.HTTP implements it.
type Node interface {
	ABCIInfo(ctx context.Context) (*coretypes.ResultABCIInfo, error)
	ABCIQueryWithOptions(ctx context.Context, path string, data bytes.HexBytes, opts rpcclient.ABCIQueryOptions) (*coretypes.ResultABCIQuery, error)
	BroadcastTxSync(ctx context.Context, tx types.Tx) (*coretypes.ResultBroadcastTx, error)
	Tx(ctx context.Context, hash []byte, prove bool) (*coretypes.ResultTx, error)
}

var _ Node = (*http.HTTP)(nil)

// Dial creates an RPC client for every node address. No connection is made until the first request.
func Dial(addresses []string) ([]Node, error) {
	nodes := make([]Node, 0, len(addresses))
	for _, address := range addresses {
		client, err := http.New(address, "/websocket")
		if err != nil {
			return nil, err
		}

		nodes = append(nodes, client)
	}

	return nodes, nil
}

func stopNode(node Node) error {
	stoppable, ok := node.(interface{ Stop() error })
	if !ok {
		return nil
	}

	// The websocket is only started by subscriptions, which are not used
	if err := stoppable.Stop(); err != nil && !errors.Is(err, service.ErrNotStarted) {
		return err
	}

	return nil
}
