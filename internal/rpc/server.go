// Package rpc provides the JSON-RPC 2.0 server and WebSocket event hub of the
// asgardex daemon.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/asgardex/asgardex-mobile-sub001/internal/balances"
	"github.com/asgardex/asgardex-mobile-sub001/internal/chain"
	"github.com/asgardex/asgardex-mobile-sub001/internal/client"
	"github.com/asgardex/asgardex-mobile-sub001/internal/ledger"
	"github.com/asgardex/asgardex-mobile-sub001/internal/metrics"
	"github.com/asgardex/asgardex-mobile-sub001/internal/session"
	"github.com/asgardex/asgardex-mobile-sub001/internal/storage"
	"github.com/asgardex/asgardex-mobile-sub001/internal/wallet"
	"github.com/asgardex/asgardex-mobile-sub001/pkg/logging"
)

// Server is a JSON-RPC 2.0 server.
type Server struct {
	network  chain.Network
	store    *storage.Storage
	wallet   *wallet.Service
	ledger   *ledger.Standalone
	session  *session.Manager
	clients  map[chain.Chain]*client.ChainClients
	balances *balances.Registry
	metrics  *metrics.Metrics
	log      *logging.Logger
	wsHub    *WSHub
	started  time.Time

	server   *http.Server
	listener net.Listener

	// ctx bounds work started by a request that outlives it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	unsubs []func()

	handlers map[string]Handler
	mu       sync.RWMutex
}

// Config wires the server to the session core. Store and Metrics are
// optional.
type Config struct {
	Network  chain.Network
	Store    *storage.Storage
	Wallet   *wallet.Service
	Ledger   *ledger.Standalone
	Session  *session.Manager
	Clients  map[chain.Chain]*client.ChainClients
	Balances *balances.Registry
	Metrics  *metrics.Metrics
}

// Handler is a JSON-RPC method handler.
type Handler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id,omitempty"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Standard error codes.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// Application error codes.
const (
	DeviceError      = -32001 // hardware wallet call failed; data is the ledger error
	TransitionDenied = -32002 // session mode switch refused
	WalletLocked     = -32003
)

var errServiceMissing = errors.New("service not initialized")

// invalidParams wraps a parameter decoding or validation failure.
func invalidParams(format string, args ...interface{}) *Error {
	return &Error{Code: InvalidParams, Message: fmt.Sprintf(format, args...)}
}

// decodeParams unmarshals params into v. Missing params leave v untouched.
func decodeParams(params json.RawMessage, v interface{}) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return invalidParams("invalid params: %v", err)
	}
	return nil
}

// NewServer creates a new JSON-RPC server and starts its event hub.
func NewServer(cfg Config) *Server {
	network := cfg.Network
	if network == "" {
		network = chain.Mainnet
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		network:  network,
		store:    cfg.Store,
		wallet:   cfg.Wallet,
		ledger:   cfg.Ledger,
		session:  cfg.Session,
		clients:  cfg.Clients,
		balances: cfg.Balances,
		metrics:  cfg.Metrics,
		log:      logging.GetDefault().Component("rpc"),
		wsHub:    NewWSHub(cfg.Metrics),
		started:  time.Now(),
		ctx:      ctx,
		cancel:   cancel,
		handlers: make(map[string]Handler),
	}

	s.registerHandlers()

	go s.wsHub.Run()
	s.watch()

	return s
}

// registerHandlers registers all JSON-RPC method handlers.
func (s *Server) registerHandlers() {
	// Daemon methods
	s.handlers["daemon_info"] = s.daemonInfo
	s.handlers["daemon_status"] = s.daemonStatus

	// Keystore methods
	s.handlers["wallet_status"] = s.walletStatus
	s.handlers["wallet_generate"] = s.walletGenerate
	s.handlers["wallet_validateMnemonic"] = s.walletValidateMnemonic
	s.handlers["wallet_create"] = s.walletCreate
	s.handlers["wallet_unlock"] = s.walletUnlock
	s.handlers["wallet_lock"] = s.walletLock
	s.handlers["wallet_list"] = s.walletList
	s.handlers["wallet_select"] = s.walletSelect
	s.handlers["wallet_rename"] = s.walletRename
	s.handlers["wallet_remove"] = s.walletRemove
	s.handlers["wallet_getAddress"] = s.walletGetAddress
	s.handlers["wallet_supportedChains"] = s.walletSupportedChains

	// Standalone ledger methods
	s.handlers["ledger_state"] = s.ledgerState
	s.handlers["ledger_selectChain"] = s.ledgerSelectChain
	s.handlers["ledger_setHDMode"] = s.ledgerSetHDMode
	s.handlers["ledger_setWalletParams"] = s.ledgerSetWalletParams
	s.handlers["ledger_startDetection"] = s.ledgerStartDetection
	s.handlers["ledger_reset"] = s.ledgerReset
	s.handlers["ledger_connect"] = s.ledgerConnect
	s.handlers["ledger_disconnect"] = s.ledgerDisconnect
	s.handlers["ledger_getAddress"] = s.ledgerGetAddress

	// Session methods
	s.handlers["session_state"] = s.sessionState
	s.handlers["session_useKeystore"] = s.sessionUseKeystore
	s.handlers["session_useStandaloneLedger"] = s.sessionUseStandaloneLedger

	// Address and balance methods
	s.handlers["address_get"] = s.addressGet
	s.handlers["address_list"] = s.addressList
	s.handlers["balances_get"] = s.balancesGet
	s.handlers["balances_refreshAll"] = s.balancesRefreshAll
	s.handlers["balances_snapshot"] = s.balancesSnapshot
	s.handlers["balances_reload"] = s.balancesReload
	s.handlers["balances_byAddress"] = s.balancesByAddress

	// User token methods
	s.handlers["tokens_list"] = s.tokensList
	s.handlers["tokens_add"] = s.tokensAdd
	s.handlers["tokens_remove"] = s.tokensRemove
}

// Handler returns the HTTP handler serving JSON-RPC, WebSocket events and
// metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /", s.handleRPC)
	mux.HandleFunc("POST /{$}", s.handleRPC)
	mux.HandleFunc("OPTIONS /", s.handleCORS)
	mux.HandleFunc("OPTIONS /{$}", s.handleCORS)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /ws/", s.handleWS)
	mux.Handle("GET /metrics", s.metrics.Handler())
	return corsMiddleware(mux)
}

// Start starts the RPC server.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	// Device calls wait for the user to confirm on the ledger.
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("RPC server error", "error", err)
		}
	}()

	s.log.Info("RPC server started", "addr", listener.Addr().String(), "ws", "ws://"+listener.Addr().String()+"/ws")
	return nil
}

// Addr returns the listen address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop stops the RPC server, cancels background work and closes the event
// hub.
func (s *Server) Stop() error {
	var err error
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = s.server.Shutdown(ctx)
	}

	s.mu.Lock()
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}

	s.cancel()
	s.wg.Wait()
	s.wsHub.Stop()
	return err
}

// goBackground runs fn in the background until the server stops.
func (s *Server) goBackground(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
}

// handleRPC handles incoming JSON-RPC requests.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, nil, ParseError, "Parse error", nil)
		return
	}

	if req.JSONRPC != "2.0" {
		s.writeError(w, req.ID, InvalidRequest, "Invalid Request", nil)
		return
	}

	s.mu.RLock()
	handler, ok := s.handlers[req.Method]
	s.mu.RUnlock()

	if !ok {
		s.writeError(w, req.ID, MethodNotFound, "Method not found", req.Method)
		return
	}

	result, err := handler(r.Context(), req.Params)
	if err != nil {
		e := toRPCError(err)
		s.log.Debug("RPC call failed", "method", req.Method, "code", e.Code, "error", err)
		s.writeError(w, req.ID, e.Code, e.Message, e.Data)
		return
	}

	s.writeResult(w, req.ID, result)
}

// toRPCError maps a handler error to its JSON-RPC error.
func toRPCError(err error) *Error {
	var (
		rpcErr *Error
		devErr *ledger.Error
		trErr  *session.TransitionError
	)
	switch {
	case errors.As(err, &rpcErr):
		return rpcErr
	case errors.As(err, &devErr):
		return &Error{Code: DeviceError, Message: err.Error(), Data: devErr}
	case errors.As(err, &trErr):
		return &Error{Code: TransitionDenied, Message: err.Error(), Data: map[string]string{
			"from": string(trErr.From),
			"to":   string(trErr.To),
		}}
	case errors.Is(err, wallet.ErrWalletLocked), errors.Is(err, balances.ErrNoClient), errors.Is(err, client.ErrReadOnly):
		return &Error{Code: WalletLocked, Message: err.Error()}
	case errors.Is(err, wallet.ErrInvalidMnemonic), errors.Is(err, wallet.ErrInvalidName):
		return &Error{Code: InvalidParams, Message: err.Error()}
	}
	return &Error{Code: InternalError, Message: err.Error()}
}

// writeResult writes a successful response.
func (s *Server) writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, id interface{}, code int, message string, data interface{}) {
	resp := Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// WSHub returns the WebSocket hub.
func (s *Server) WSHub() *WSHub {
	return s.wsHub
}

// handleCORS handles CORS preflight requests.
func (s *Server) handleCORS(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// corsMiddleware adds CORS headers to all responses.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The UI runs as a separate local process with its own origin.
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
