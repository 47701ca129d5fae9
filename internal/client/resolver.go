package client

import (
	"github.com/asgardex/asgardex-mobile-sub001/internal/backend"
	"github.com/asgardex/asgardex-mobile-sub001/internal/chain"
	"github.com/asgardex/asgardex-mobile-sub001/internal/session"
	"github.com/asgardex/asgardex-mobile-sub001/internal/stream"
	"github.com/asgardex/asgardex-mobile-sub001/internal/wallet"
	"github.com/asgardex/asgardex-mobile-sub001/pkg/logging"
)

// Active is the client to use right now. Valid is false when no client is
// available.
type Active[C comparable] struct {
	Client C
	Flavor Flavor
	Valid  bool
}

// Pick chooses between an authenticated and a read-only client. The
// authenticated client always wins; the read-only client is used only in
// standalone ledger mode.
func Pick[C comparable](auth, readOnly stream.Result[C], st session.State) Active[C] {
	if auth.IsSuccess() {
		return Active[C]{Client: auth.Value, Flavor: FlavorAuthenticated, Valid: true}
	}
	if session.IsStandaloneLedger(st) && readOnly.IsSuccess() {
		return Active[C]{Client: readOnly.Value, Flavor: FlavorReadOnly, Valid: true}
	}
	return Active[C]{}
}

// Resolve keeps the active client current. It is recomputed whenever any
// input changes; a recomputation that yields the same client is not
// published.
func Resolve[C comparable](auth, readOnly stream.Observable[stream.Result[C]], sess stream.Observable[session.State]) (*stream.Cell[Active[C]], func()) {
	return stream.Combine3(auth, readOnly, sess, Pick[C], stream.Distinct[Active[C]]())
}

// AddressClient is a client that can derive keystore addresses.
type AddressClient interface {
	comparable
	Address(hd chain.HDMode, account, index uint32) (wallet.WalletAddress, error)
}

// ResolvedAddress is the wallet address of a chain. Valid is false when no
// address is known.
type ResolvedAddress struct {
	Address wallet.WalletAddress
	Valid   bool
}

// ResolveAddress keeps the wallet address of chain c current: the standalone
// ledger address when the ledger is connected to c, otherwise the first
// keystore address (account 0, index 0) of the authenticated client.
func ResolveAddress[C AddressClient](c chain.Chain, auth stream.Observable[stream.Result[C]], sess stream.Observable[session.State]) (*stream.Cell[ResolvedAddress], func()) {
	log := logging.GetDefault().Component("client").With("chain", c)
	resolve := func(a stream.Result[C], st session.State) ResolvedAddress {
		if addr, ok := session.LedgerAddress(st); ok && addr.Chain == c {
			return ResolvedAddress{Address: addr, Valid: true}
		}
		if !a.IsSuccess() {
			return ResolvedAddress{}
		}
		addr, err := a.Value.Address(chain.DefaultHDMode(c), 0, 0)
		if err != nil {
			log.Debug("Cannot derive keystore address", "error", err)
			return ResolvedAddress{}
		}
		return ResolvedAddress{Address: addr, Valid: true}
	}
	return stream.Combine2(auth, sess, resolve, stream.Distinct[ResolvedAddress]())
}

// ChainClients bundles the client cells of one chain.
type ChainClients struct {
	Chain         chain.Chain
	Authenticated *stream.Cell[stream.Result[*Chain]]
	ReadOnly      *stream.Cell[stream.Result[*Chain]]
	Active        *stream.Cell[Active[*Chain]]
	Address       *stream.Cell[ResolvedAddress]

	stops []func()
}

// NewChainClients wires the client cells of chain c.
func NewChainClients(c chain.Chain, network chain.Network, ks Keystore, backends *backend.Registry, sess stream.Observable[session.State]) *ChainClients {
	auth, stopAuth := Authenticated(c, network, ks, backends)
	ro := ReadOnly(c, network, backends)
	active, stopActive := Resolve[*Chain](auth, ro, sess)
	address, stopAddress := ResolveAddress[*Chain](c, auth, sess)
	return &ChainClients{
		Chain:         c,
		Authenticated: auth,
		ReadOnly:      ro,
		Active:        active,
		Address:       address,
		stops:         []func(){stopAddress, stopActive, stopAuth},
	}
}

// Close detaches all cells from their inputs.
func (cc *ChainClients) Close() {
	for _, stop := range cc.stops {
		stop()
	}
	cc.stops = nil
}

// NewAll wires the client cells of every chain.
func NewAll(chains []chain.Chain, network chain.Network, ks Keystore, backends *backend.Registry, sess stream.Observable[session.State]) map[chain.Chain]*ChainClients {
	out := make(map[chain.Chain]*ChainClients, len(chains))
	for _, c := range chains {
		out[c] = NewChainClients(c, network, ks, backends, sess)
	}
	return out
}
