package backend

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"github.com/asgardex/asgardex-mobile-sub001/internal/chain"
)

const erc20BalanceOfABI = `[{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

var erc20ABI = mustParseABI(erc20BalanceOfABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid ABI: %v", err))
	}
	return parsed
}

// evmCaller is the subset of ethclient.Client used for balance reads.
type evmCaller interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

// EVMBackend implements Backend over an EVM JSON-RPC endpoint using ethclient.
// Native balances come from eth_getBalance, ERC-20 balances from balanceOf.
type EVMBackend struct {
	rpcURL  string
	opts    Options
	limiter *rate.Limiter

	mu      sync.Mutex
	client  evmCaller
	chainID *big.Int
}

// NewEVMBackend creates a new EVM backend. The node is dialed on first use.
func NewEVMBackend(rpcURL string, opts Options) *EVMBackend {
	e := &EVMBackend{rpcURL: rpcURL, opts: opts}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return e
}

// Type returns TypeEVM.
func (e *EVMBackend) Type() Type {
	return TypeEVM
}

// Connect dials the node and reads its chain id.
func (e *EVMBackend) Connect(ctx context.Context) error {
	client, err := e.dial(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.timeout())
	defer cancel()
	id, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	e.mu.Lock()
	e.chainID = id
	e.mu.Unlock()
	return nil
}

// dial returns the shared client, dialing it if needed.
func (e *EVMBackend) dial(ctx context.Context) (evmCaller, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client != nil {
		return e.client, nil
	}
	client, err := ethclient.DialContext(ctx, e.rpcURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	e.client = client
	return client, nil
}

// Close closes the RPC client.
func (e *EVMBackend) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		e.client.Close()
		e.client = nil
	}
	e.chainID = nil
	return nil
}

// IsConnected returns true once the chain id has been read.
func (e *EVMBackend) IsConnected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chainID != nil
}

// ChainID returns the chain id read by Connect, or nil.
func (e *EVMBackend) ChainID() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.chainID == nil {
		return nil
	}
	return new(big.Int).Set(e.chainID)
}

// Balances reads the native balance and each ERC-20 balance at the latest block.
func (e *EVMBackend) Balances(ctx context.Context, address string, assets []chain.Asset, _ BalanceType) ([]Balance, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid EVM address: %s", address)
	}
	account := common.HexToAddress(address)

	client, err := e.dial(ctx)
	if err != nil {
		return nil, err
	}

	out := zeroBalances(assets)
	for i, a := range assets {
		if err := e.wait(ctx); err != nil {
			return nil, err
		}
		var amount *big.Int
		if a.IsNative() {
			amount, err = e.nativeBalance(ctx, client, account)
		} else {
			amount, err = e.tokenBalance(ctx, client, a, account)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a, err)
		}
		out[i].Amount = amount
	}
	return out, nil
}

func (e *EVMBackend) wait(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	return e.limiter.Wait(ctx)
}

func (e *EVMBackend) nativeBalance(ctx context.Context, client evmCaller, account common.Address) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.timeout())
	defer cancel()
	return client.BalanceAt(ctx, account, nil)
}

func (e *EVMBackend) tokenBalance(ctx context.Context, client evmCaller, a chain.Asset, account common.Address) (*big.Int, error) {
	if !common.IsHexAddress(a.Contract) {
		return nil, fmt.Errorf("%w: contract %q", ErrUnsupportedAsset, a.Contract)
	}
	data, err := erc20ABI.Pack("balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf: %w", err)
	}
	contract := common.HexToAddress(a.Contract)

	ctx, cancel := context.WithTimeout(ctx, e.opts.timeout())
	defer cancel()
	result, err := client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	// Calls to an address without code return empty data.
	if len(result) == 0 {
		return new(big.Int), nil
	}

	values, err := erc20ABI.Unpack("balanceOf", result)
	if err != nil || len(values) != 1 {
		return nil, fmt.Errorf("%w: balanceOf", ErrInvalidResponse)
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: balanceOf type %T", ErrInvalidResponse, values[0])
	}
	return amount, nil
}

// Ensure EVMBackend implements Backend
var _ Backend = (*EVMBackend)(nil)
