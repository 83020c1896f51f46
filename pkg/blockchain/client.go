package blockchain

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"time"

	"github.com/RyanW02/waterledger/pkg/auditapp"
	"github.com/RyanW02/waterledger/pkg/pool"
	"github.com/RyanW02/waterledger/pkg/types/audit"
	"github.com/RyanW02/waterledger/pkg/types/rpc"
	abci "github.com/cometbft/cometbft/abci/types"
	rpcclient "github.com/cometbft/cometbft/rpc/client"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Client talks to a set of ledger nodes, balancing requests over the nodes that are alive. Reads are checked
// against the merkle proof returned with them. Writes are signed with the client key, whose principal is the
// caller the ledger authorizes.
type Client struct {
	logger *zap.Logger
	pool   *pool.Pool[Node]
	key    ed25519.PrivateKey
	config Config
}

type Config struct {
	RequestTimeout time.Duration
	PollFrequency  time.Duration
	PollTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		RequestTimeout: 5 * time.Second,
		PollFrequency:  200 * time.Millisecond,
		PollTimeout:    15 * time.Second,
	}
}

var (
	ErrABCIQueryFailed  = errors.New("ABCI query failed")
	ErrTxFailed         = errors.New("transaction failed")
	ErrReadOnly         = errors.New("client has no signing key")
	ErrProofKeyMismatch = errors.New("proof does not cover the requested key")
)

var queryOptions = rpcclient.ABCIQueryOptions{
	Height: 0,
	Prove:  true,
}

// NewClient creates a client over nodes. key may be nil for a read-only client.
func NewClient(logger *zap.Logger, nodes []Node, key ed25519.PrivateKey, config Config) *Client {
	return &Client{
		logger: logger.With(zap.String("module", "blockchain")),
		pool: pool.New[Node](nodes, pool.Config[Node]{
			LivenessValidThreshold: 10 * time.Second,
			DeadConnCheckInterval:  15 * time.Second,
			TestFunc: func(node Node) bool {
				ctx, cancelFunc := context.WithTimeout(context.Background(), config.RequestTimeout)
				defer cancelFunc()

				_, err := node.ABCIInfo(ctx)
				return err == nil
			},
			DestructorFunc: stopNode,
		}),
		key:    key,
		config: config,
	}
}

func (c *Client) Close() error {
	return c.pool.Close()
}

// Principal is the caller identity of transactions sent by this client.
func (c *Client) Principal() audit.Principal {
	if c.key == nil {
		return ""
	}

	return audit.PrincipalFromKey(c.key.Public().(ed25519.PublicKey))
}

func (c *Client) query(ctx context.Context, path string) (abci.ResponseQuery, error) {
	node, err := c.pool.Get()
	if err != nil {
		return abci.ResponseQuery{}, err
	}

	ctx, cancelFunc := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancelFunc()

	// Create data payload to route to the correct sub-app
	data, err := json.Marshal(rpc.MuxedRequest{App: audit.AppName})
	if err != nil {
		return abci.ResponseQuery{}, err
	}

	res, err := node.ABCIQueryWithOptions(ctx, path, data, queryOptions)
	if err != nil {
		return abci.ResponseQuery{}, err
	}

	if res.Response.Code != audit.CodeOk {
		return res.Response, resultError(ErrABCIQueryFailed, res.Response.Codespace, res.Response.Code, res.Response.Log)
	}

	return res.Response, nil
}

func (c *Client) queryJSON(ctx context.Context, path string, v any) error {
	res, err := c.query(ctx, path)
	if err != nil {
		return err
	}

	return json.Unmarshal(res.Value, v)
}

// broadcast signs and submits a request, then decodes the result data into v once the tx is in a block.
func (c *Client) broadcast(ctx context.Context, requestType rpc.RequestType, payload, v any) error {
	if c.key == nil {
		return ErrReadOnly
	}

	tx, err := rpc.NewBuilder().Data(requestType, payload).Signed(c.key).Marshal()
	if err != nil {
		return err
	}

	node, err := c.pool.Get()
	if err != nil {
		return err
	}

	res, err := BroadcastAndPoll(ctx, node, tx, c.config.PollFrequency, c.config.PollTimeout)
	if err != nil {
		var checkErr *CheckTxError
		if errors.As(err, &checkErr) {
			return resultError(ErrTxFailed, checkErr.Codespace, checkErr.Code, checkErr.Log)
		}

		return err
	}

	if res.TxResult.Code != audit.CodeOk {
		return resultError(ErrTxFailed, res.TxResult.Codespace, res.TxResult.Code, res.TxResult.Log)
	}

	c.logger.Debug(
		"Transaction committed",
		zap.String("type", string(requestType)),
		zap.Int64("height", res.Height),
		zap.Stringer("hash", res.Hash),
	)

	if v == nil {
		return nil
	}

	return json.Unmarshal(res.TxResult.Data, v)
}

// resultError maps an audit result code back to the ledger error it was produced from, so that callers can
// use errors.Is the same way as with an in-process ledger.
func resultError(fallback error, codespace string, code uint32, log string) error {
	if codespace == audit.Codespace {
		if sentinel := auditapp.ErrorForCode(code); sentinel != nil {
			return errors.Wrapf(sentinel, "%s", log)
		}
	}

	return errors.Wrapf(fallback, "code: %s:%d, log: %s", codespace, code, log)
}
