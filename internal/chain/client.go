package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

type Config struct {
	RPCURL  string
	ChainID int64
}

// Client owns the process-wide RPC connection. It is constructed once in main
// and handed to the components that need it; connections are not assumed
// durable, so liveness is re-verified and the dial retried on each use.
type Client struct {
	cfg  Config
	mu   sync.Mutex
	conn *ethclient.Client
}

func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg}
}

func (c *Client) ChainID() *big.Int { return big.NewInt(c.cfg.ChainID) }

// acquire returns a live connection, re-dialing if the previous one went bad.
func (c *Client) acquire(ctx context.Context) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.RPCURL == "" {
		return nil, fmt.Errorf("%w: rpc endpoint not configured", ErrChainUnavailable)
	}
	if c.conn != nil {
		if _, err := c.conn.ChainID(ctx); err == nil {
			return c.conn, nil
		}
		c.conn.Close()
		c.conn = nil
	}
	conn, err := ethclient.DialContext(ctx, c.cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrChainUnavailable, c.cfg.RPCURL, err)
	}
	if _, err := conn.ChainID(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrChainUnavailable, err)
	}
	c.conn = conn
	return conn, nil
}

// Ping verifies the endpoint is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.acquire(ctx)
	return err
}

func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	conn, err := c.acquire(ctx)
	if err != nil {
		return 0, err
	}
	return conn.PendingNonceAt(ctx, account)
}

func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	conn, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	return conn.SuggestGasPrice(ctx)
}

func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	conn, err := c.acquire(ctx)
	if err != nil {
		return 0, err
	}
	return conn.EstimateGas(ctx, msg)
}

func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	conn, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	return conn.CallContract(ctx, msg, blockNumber)
}

func (c *Client) SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error {
	conn, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	return conn.SendTransaction(ctx, tx)
}

func (c *Client) TransactionByHash(ctx context.Context, txHash common.Hash) (*gethtypes.Transaction, bool, error) {
	conn, err := c.acquire(ctx)
	if err != nil {
		return nil, false, err
	}
	return conn.TransactionByHash(ctx, txHash)
}

func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	conn, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	return conn.TransactionReceipt(ctx, txHash)
}

func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error) {
	conn, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	return conn.HeaderByNumber(ctx, number)
}

func (c *Client) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	conn, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	return conn.BalanceAt(ctx, account, blockNumber)
}

var _ Backend = (*Client)(nil)
