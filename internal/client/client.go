// Package client decides, per chain, which client the daemon uses right now:
// the authenticated client backed by the unlocked keystore, or the read-only
// client when a standalone ledger session is active.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/asgardex/asgardex-mobile-sub001/internal/backend"
	"github.com/asgardex/asgardex-mobile-sub001/internal/chain"
	"github.com/asgardex/asgardex-mobile-sub001/internal/stream"
	"github.com/asgardex/asgardex-mobile-sub001/internal/wallet"
	"github.com/asgardex/asgardex-mobile-sub001/pkg/logging"
)

var (
	ErrReadOnly  = errors.New("read-only client cannot derive addresses")
	ErrNoBackend = errors.New("no backend configured")
)

// Flavor tells an authenticated client from a read-only one.
type Flavor string

const (
	FlavorAuthenticated Flavor = "authenticated"
	FlavorReadOnly      Flavor = "read-only"
)

// CreationError is a client that could not be built.
type CreationError struct {
	Chain  chain.Chain
	Flavor Flavor
	Err    error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("create %s %s client: %v", e.Flavor, e.Chain, e.Err)
}

func (e *CreationError) Unwrap() error {
	return e.Err
}

// Deriver derives keystore addresses.
type Deriver interface {
	DeriveAddress(c chain.Chain, hd chain.HDMode, account, index uint32) (wallet.WalletAddress, error)
}

// Keystore is the keystore as seen by the authenticated client.
type Keystore interface {
	Deriver
	Observable() stream.Observable[wallet.State]
}

var _ Keystore = (*wallet.Service)(nil)

// Chain is a client for one chain. Every client reads balances through the
// chain's backend; only an authenticated client derives addresses.
type Chain struct {
	chain    chain.Chain
	network  chain.Network
	backend  backend.Backend
	deriver  Deriver
	walletID string
}

// NewChain creates a client. A nil deriver makes a read-only client.
func NewChain(c chain.Chain, network chain.Network, b backend.Backend, d Deriver, walletID string) *Chain {
	return &Chain{chain: c, network: network, backend: b, deriver: d, walletID: walletID}
}

// Chain returns the client's chain.
func (c *Chain) Chain() chain.Chain { return c.chain }

// Network returns the client's network.
func (c *Chain) Network() chain.Network { return c.network }

// WalletID returns the keystore the client was created for. It is empty for
// read-only clients.
func (c *Chain) WalletID() string { return c.walletID }

// ReadOnly reports whether the client lacks key access.
func (c *Chain) ReadOnly() bool { return c.deriver == nil }

// Address derives the keystore address at the given position.
func (c *Chain) Address(hd chain.HDMode, account, index uint32) (wallet.WalletAddress, error) {
	if c.deriver == nil {
		return wallet.WalletAddress{}, ErrReadOnly
	}
	return c.deriver.DeriveAddress(c.chain, hd, account, index)
}

// Balances reads the balances of address for assets.
func (c *Chain) Balances(ctx context.Context, address string, assets []chain.Asset, bt backend.BalanceType) ([]backend.Balance, error) {
	return c.backend.Balances(ctx, address, assets, bt)
}

// Authenticated derives the authenticated client of chain c from the keystore
// state. It is NotStarted while the keystore is not unlocked. The same client
// is kept while the same keystore stays unlocked.
func Authenticated(c chain.Chain, network chain.Network, ks Keystore, backends *backend.Registry) (*stream.Cell[stream.Result[*Chain]], func()) {
	var (
		mu     sync.Mutex
		cached *Chain
		log    = logging.GetDefault().Component("client").With("chain", c)
	)
	create := func(st wallet.State) stream.Result[*Chain] {
		mu.Lock()
		defer mu.Unlock()

		if !st.IsUnlocked() || st.Selected == nil {
			cached = nil
			return stream.NotStarted[*Chain]()
		}
		if cached != nil && cached.walletID == st.Selected.ID {
			return stream.Ok(cached)
		}

		b, ok := backends.Get(c)
		if !ok {
			cached = nil
			log.Warn("Cannot create authenticated client", "error", ErrNoBackend)
			return stream.Fail[*Chain](&CreationError{Chain: c, Flavor: FlavorAuthenticated, Err: ErrNoBackend})
		}
		cached = NewChain(c, network, b, ks, st.Selected.ID)
		log.Debug("Authenticated client created", "wallet", st.Selected.ID)
		return stream.Ok(cached)
	}
	return stream.Map(ks.Observable(), create, stream.WithEqual(stream.ResultEqual[*Chain]))
}

// ReadOnly builds the read-only client of chain c. It needs no secret and
// never changes.
func ReadOnly(c chain.Chain, network chain.Network, backends *backend.Registry) *stream.Cell[stream.Result[*Chain]] {
	b, ok := backends.Get(c)
	if !ok {
		return stream.NewCell(stream.Fail[*Chain](&CreationError{Chain: c, Flavor: FlavorReadOnly, Err: ErrNoBackend}))
	}
	return stream.NewCell(stream.Ok(NewChain(c, network, b, nil, "")))
}
