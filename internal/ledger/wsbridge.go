package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/asgardex/asgardex-mobile-sub001/internal/chain"
	"github.com/asgardex/asgardex-mobile-sub001/internal/wallet"
	"github.com/asgardex/asgardex-mobile-sub001/pkg/logging"
)

const methodGetAddress = "getAddress"

// bridgeRequest is a call sent to the device bridge.
type bridgeRequest struct {
	ID     string         `json:"id"`
	Method string         `json:"method"`
	Params AddressRequest `json:"params"`
}

// bridgeResponse is the bridge's answer to one call.
type bridgeResponse struct {
	ID     string `json:"id"`
	Result *struct {
		Address       string       `json:"address"`
		WalletAccount uint32       `json:"walletAccount"`
		WalletIndex   uint32       `json:"walletIndex"`
		HDMode        chain.HDMode `json:"hdMode"`
	} `json:"result,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// WSBridgeConfig configures a WSBridge.
type WSBridgeConfig struct {
	// URL is the bridge endpoint, e.g. ws://127.0.0.1:21325/ledger.
	URL string

	// RequestTimeout bounds one call when ctx carries no earlier deadline.
	// Zero means 30s.
	RequestTimeout time.Duration

	// Dialer overrides websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// WSBridge talks JSON over a WebSocket to the device bridge process. The
// connection is dialed on first use and redialed after a transport error.
// Calls are serialized: the device handles one request at a time.
type WSBridge struct {
	url     string
	timeout time.Duration
	dialer  *websocket.Dialer
	log     *logging.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSBridge creates a bridge client. No connection is made until the first call.
func NewWSBridge(cfg WSBridgeConfig) *WSBridge {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &WSBridge{
		url:     cfg.URL,
		timeout: timeout,
		dialer:  dialer,
		log:     logging.GetDefault().Component("bridge"),
	}
}

// GetAddress asks the device for an address.
func (b *WSBridge) GetAddress(ctx context.Context, req AddressRequest) (wallet.WalletAddress, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	conn, err := b.connLocked(ctx)
	if err != nil {
		return wallet.WalletAddress{}, err
	}

	id := uuid.NewString()
	deadline, _ := ctx.Deadline()
	conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(bridgeRequest{ID: id, Method: methodGetAddress, Params: req}); err != nil {
		b.dropLocked()
		return wallet.WalletAddress{}, b.transportError(ctx, err)
	}

	// Unblock the read as soon as ctx ends.
	conn.SetReadDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		var resp bridgeResponse
		if err := conn.ReadJSON(&resp); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				// The frame was consumed; the connection is still usable.
				return wallet.WalletAddress{}, fmt.Errorf("malformed bridge response: %w", err)
			}
			b.dropLocked()
			return wallet.WalletAddress{}, b.transportError(ctx, err)
		}
		if resp.ID != id {
			// Late answer to a call that already timed out.
			b.log.Debug("Ignoring stale bridge response", "id", resp.ID)
			continue
		}
		if resp.Error != nil {
			return wallet.WalletAddress{}, resp.Error
		}
		if resp.Result == nil || resp.Result.Address == "" {
			return wallet.WalletAddress{}, errEmptyAddress
		}

		hd := req.HDMode
		if resp.Result.HDMode != "" {
			hd = resp.Result.HDMode
		}
		return wallet.WalletAddress{
			Address:       resp.Result.Address,
			Chain:         req.Chain,
			WalletAccount: resp.Result.WalletAccount,
			WalletIndex:   resp.Result.WalletIndex,
			HDMode:        hd,
			Type:          wallet.TypeLedger,
		}, nil
	}
}

func (b *WSBridge) connLocked(ctx context.Context) (*websocket.Conn, error) {
	if b.conn != nil {
		return b.conn, nil
	}
	conn, _, err := b.dialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return nil, &Error{ID: ErrorNoDevice, Msg: fmt.Sprintf("bridge unreachable: %v", err)}
	}
	b.log.Debug("Connected to device bridge", "url", b.url)
	b.conn = conn
	return conn, nil
}

func (b *WSBridge) dropLocked() {
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
}

// transportError reports ctx expiry as a device timeout.
func (b *WSBridge) transportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return &Error{ID: ErrorTimeout, Msg: ctx.Err().Error()}
	}
	return fmt.Errorf("bridge transport: %w", err)
}

// Close drops the bridge connection.
func (b *WSBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropLocked()
	return nil
}

var _ Bridge = (*WSBridge)(nil)
