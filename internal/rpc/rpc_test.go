package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/asgardex/asgardex-mobile-sub001/internal/backend"
	"github.com/asgardex/asgardex-mobile-sub001/internal/balances"
	"github.com/asgardex/asgardex-mobile-sub001/internal/chain"
	"github.com/asgardex/asgardex-mobile-sub001/internal/client"
	"github.com/asgardex/asgardex-mobile-sub001/internal/ledger"
	"github.com/asgardex/asgardex-mobile-sub001/internal/metrics"
	"github.com/asgardex/asgardex-mobile-sub001/internal/session"
	"github.com/asgardex/asgardex-mobile-sub001/internal/storage"
	"github.com/asgardex/asgardex-mobile-sub001/internal/wallet"
)

const (
	testPassword = "TestPassword123!"
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
)

// testBackend reports 1000 base units of every asset and counts the reads.
type testBackend struct {
	reads atomic.Int64
}

func (*testBackend) Type() backend.Type                { return backend.TypeMempool }
func (*testBackend) Connect(ctx context.Context) error { return nil }
func (*testBackend) Close() error                      { return nil }
func (*testBackend) IsConnected() bool                 { return true }

func (b *testBackend) Balances(ctx context.Context, address string, assets []chain.Asset, bt backend.BalanceType) ([]backend.Balance, error) {
	b.reads.Add(1)
	out := make([]backend.Balance, len(assets))
	for i, a := range assets {
		out[i] = backend.Balance{Asset: a, Amount: big.NewInt(1000)}
	}
	return out, nil
}

// testBridge answers every device call with "ledger-<CHAIN>".
func testBridge(ctx context.Context, req ledger.AddressRequest) (wallet.WalletAddress, error) {
	return wallet.WalletAddress{
		Address:       "ledger-" + string(req.Chain),
		WalletAccount: req.WalletAccount,
		WalletIndex:   req.WalletIndex,
	}, nil
}

type testEnv struct {
	srv      *Server
	ts       *httptest.Server
	wallet   *wallet.Service
	ledger   *ledger.Standalone
	session  *session.Manager
	store    *storage.Storage
	backends map[chain.Chain]*testBackend
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := storage.New(&storage.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	m := metrics.New()
	svc, err := wallet.NewService(&wallet.ServiceConfig{Store: store, Network: chain.Mainnet})
	if err != nil {
		t.Fatalf("wallet.NewService() error = %v", err)
	}
	standalone, err := ledger.NewStandalone(ledger.Config{
		Bridge:        ledger.BridgeFunc(testBridge),
		Network:       chain.Mainnet,
		MaxAttempts:   3,
		RetryInterval: 10 * time.Millisecond,
		Timeout:       5 * time.Second,
		Metrics:       m,
	})
	if err != nil {
		t.Fatalf("ledger.NewStandalone() error = %v", err)
	}
	mgr := session.NewManager(svc, standalone, m)
	t.Cleanup(mgr.Close)

	backends := backend.NewRegistry()
	chains := []chain.Chain{chain.BTC, chain.ETH}
	testBackends := make(map[chain.Chain]*testBackend, len(chains))
	for _, c := range chains {
		testBackends[c] = &testBackend{}
		backends.Register(c, testBackends[c])
	}
	clients := client.NewAll(chains, chain.Mainnet, svc, backends, mgr.Observable())
	t.Cleanup(func() {
		for _, cc := range clients {
			cc.Close()
		}
	})

	reg := balances.NewRegistry(2)
	for _, c := range chains {
		agg := balances.NewAggregator(balances.Config{
			Chain:   c,
			Network: chain.Mainnet,
			Active:  clients[c].Active,
			Session: mgr.Observable(),
			Tokens:  store,
			Metrics: m,
		})
		reg.Register(agg)
		t.Cleanup(agg.Wait)
	}

	srv := NewServer(Config{
		Network:  chain.Mainnet,
		Store:    store,
		Wallet:   svc,
		Ledger:   standalone,
		Session:  mgr,
		Clients:  clients,
		Balances: reg,
		Metrics:  m,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Stop()
	})

	return &testEnv{srv: srv, ts: ts, wallet: svc, ledger: standalone, session: mgr, store: store, backends: testBackends}
}

// watchBalances starts the live keystore and ledger balance pipelines the
// daemon runs, until the test ends.
func (e *testEnv) watchBalances(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	e.srv.balances.Watch(ctx, balances.Params{WalletType: wallet.TypeKeystore})
	e.srv.balances.Watch(ctx, balances.Params{WalletType: wallet.TypeLedger})
}

type rpcResult struct {
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

func (e *testEnv) call(t *testing.T, method string, params interface{}) rpcResult {
	t.Helper()
	req := map[string]interface{}{"jsonrpc": "2.0", "method": method, "id": 1}
	if params != nil {
		req["params"] = params
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(e.ts.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", method, err)
	}
	defer resp.Body.Close()

	var out rpcResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s response: %v", method, err)
	}
	return out
}

// mustCall fails the test on an RPC error and decodes the result into v.
func (e *testEnv) mustCall(t *testing.T, method string, params, v interface{}) {
	t.Helper()
	res := e.call(t, method, params)
	if res.Error != nil {
		t.Fatalf("%s error = %d %s", method, res.Error.Code, res.Error.Message)
	}
	if v != nil {
		if err := json.Unmarshal(res.Result, v); err != nil {
			t.Fatalf("decode %s result: %v", method, err)
		}
	}
}

// callError fails the test unless the call returns code.
func (e *testEnv) callError(t *testing.T, method string, params interface{}, code int) *Error {
	t.Helper()
	res := e.call(t, method, params)
	if res.Error == nil {
		t.Fatalf("%s succeeded, want error %d", method, code)
	}
	if res.Error.Code != code {
		t.Fatalf("%s error code = %d (%s), want %d", method, res.Error.Code, res.Error.Message, code)
	}
	return res.Error
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRequest(t *testing.T) {
	tests := []struct {
		name    string
		request *Request
	}{
		{
			name: "valid request with string id",
			request: &Request{
				JSONRPC: "2.0",
				Method:  "test_method",
				ID:      "123",
			},
		},
		{
			name: "valid request with nil id (notification)",
			request: &Request{
				JSONRPC: "2.0",
				Method:  "test_method",
			},
		},
		{
			name: "valid request with params",
			request: &Request{
				JSONRPC: "2.0",
				Method:  "test_method",
				Params:  json.RawMessage(`{"key":"value"}`),
				ID:      1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.request)
			if err != nil {
				t.Fatalf("failed to marshal request: %v", err)
			}

			var parsed Request
			if err := json.Unmarshal(data, &parsed); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if parsed.Method != tt.request.Method {
				t.Errorf("Method = %s, want %s", parsed.Method, tt.request.Method)
			}
			if string(parsed.Params) != string(tt.request.Params) {
				t.Errorf("Params = %s, want %s", parsed.Params, tt.request.Params)
			}
		})
	}
}

func TestErrorCodes(t *testing.T) {
	codes := map[string]int{
		"ParseError":       ParseError,
		"InvalidRequest":   InvalidRequest,
		"MethodNotFound":   MethodNotFound,
		"InvalidParams":    InvalidParams,
		"InternalError":    InternalError,
		"DeviceError":      DeviceError,
		"TransitionDenied": TransitionDenied,
		"WalletLocked":     WalletLocked,
	}
	seen := make(map[int]string)
	for name, code := range codes {
		if other, ok := seen[code]; ok {
			t.Errorf("%s and %s share code %d", name, other, code)
		}
		seen[code] = name
	}
}

func TestToRPCError(t *testing.T) {
	devErr := &ledger.Error{ID: ledger.ErrorWrongApp, Msg: "open the Bitcoin app"}

	tests := []struct {
		name string
		err  error
		code int
	}{
		{"rpc error kept", invalidParams("chain is required"), InvalidParams},
		{"device error", fmt.Errorf("connect: %w", devErr), DeviceError},
		{"transition refused", &session.TransitionError{From: session.ModeKeystore, To: session.ModeStandaloneLedger, Err: session.ErrKeystoreUnlocked}, TransitionDenied},
		{"wallet locked", fmt.Errorf("derive: %w", wallet.ErrWalletLocked), WalletLocked},
		{"no client", balances.ErrNoClient, WalletLocked},
		{"invalid mnemonic", wallet.ErrInvalidMnemonic, InvalidParams},
		{"anything else", errors.New("boom"), InternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toRPCError(tt.err)
			if got.Code != tt.code {
				t.Errorf("Code = %d, want %d", got.Code, tt.code)
			}
			if got.Message == "" {
				t.Error("Message is empty")
			}
		})
	}

	if got := toRPCError(devErr); got.Data != devErr {
		t.Errorf("device error Data = %v, want the ledger error", got.Data)
	}
}

func TestHTTPMethodCheck(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.ts.URL + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET / status = %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}

func TestParseError(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Post(env.ts.URL, "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var res rpcResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Error == nil || res.Error.Code != ParseError {
		t.Errorf("error = %+v, want code %d", res.Error, ParseError)
	}
}

func TestInvalidVersionAndUnknownMethod(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Post(env.ts.URL, "application/json", strings.NewReader(`{"jsonrpc":"1.0","method":"daemon_info","id":1}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	var res rpcResult
	json.NewDecoder(resp.Body).Decode(&res)
	resp.Body.Close()
	if res.Error == nil || res.Error.Code != InvalidRequest {
		t.Errorf("jsonrpc 1.0 error = %+v, want code %d", res.Error, InvalidRequest)
	}

	rpcErr := env.callError(t, "orders_list", nil, MethodNotFound)
	if rpcErr.Data != "orders_list" {
		t.Errorf("Data = %v, want the method name", rpcErr.Data)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req, _ := http.NewRequest(http.MethodOptions, env.ts.URL+"/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), "asgardex_session_mode") {
		t.Error("metrics output lacks asgardex_session_mode")
	}
}

func TestDaemonInfoAndStatus(t *testing.T) {
	env := newTestEnv(t)

	var info DaemonInfoResult
	env.mustCall(t, "daemon_info", nil, &info)
	if info.Version != Version {
		t.Errorf("Version = %s, want %s", info.Version, Version)
	}
	if info.Network != chain.Mainnet {
		t.Errorf("Network = %s, want mainnet", info.Network)
	}
	if len(info.Chains) != len(chain.Supported()) {
		t.Errorf("Chains = %v", info.Chains)
	}

	var status DaemonStatusResult
	env.mustCall(t, "daemon_status", nil, &status)
	if !status.Running {
		t.Error("Running should be true")
	}
	if status.SessionMode != session.ModeEmpty {
		t.Errorf("SessionMode = %s, want %s", status.SessionMode, session.ModeEmpty)
	}
	if status.KeystoreStatus != wallet.StatusEmpty {
		t.Errorf("KeystoreStatus = %s, want empty", status.KeystoreStatus)
	}
}

func TestWebSocketHub(t *testing.T) {
	hub := NewWSHub(nil)
	go hub.Run()

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
	hub.Broadcast(EventSessionState, map[string]string{"mode": "empty"})

	hub.Stop()
	// A second Stop is a no-op.
	hub.Stop()
}

func TestWSSubscription(t *testing.T) {
	c := &WSClient{subscriptions: make(map[EventType]bool)}

	if !c.subscribed(EventLedgerState) {
		t.Error("a client without subscriptions should receive everything")
	}

	c.handleSubscription(&WSSubscription{Action: "subscribe", Events: []string{"balances_changed"}})
	if c.subscribed(EventLedgerState) {
		t.Error("ledger_state should be filtered")
	}
	if !c.subscribed(EventBalancesChanged) {
		t.Error("balances_changed should be delivered")
	}

	c.handleSubscription(&WSSubscription{Action: "unsubscribe", Events: []string{"balances_changed"}})
	if !c.subscribed(EventLedgerState) {
		t.Error("after unsubscribing everything the client should receive all events")
	}
}

type wsMessage struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dialWS(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return msg
}

func TestWebSocketSnapshotAndDetection(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env)

	for _, want := range []EventType{EventSessionState, EventKeystoreState, EventLedgerState} {
		if got := readEvent(t, conn); got.Type != want {
			t.Fatalf("snapshot event = %s, want %s", got.Type, want)
		}
	}
	waitFor(t, "client registration", func() bool { return env.srv.WSHub().ClientCount() == 1 })

	env.mustCall(t, "session_useStandaloneLedger", nil, nil)
	env.mustCall(t, "ledger_selectChain", LedgerChainParams{Chain: "btc"}, nil)

	var started map[string]interface{}
	env.mustCall(t, "ledger_startDetection", nil, &started)
	if started["chain"] != "BTC" {
		t.Errorf("started chain = %v, want BTC", started["chain"])
	}

	// The address event is published from inside detection, so it may
	// arrive on either side of detection_finished.
	var (
		ev     *DetectionFinishedEvent
		addrEv *AddressChangedEvent
	)
	for ev == nil || addrEv == nil {
		msg := readEvent(t, conn)
		switch msg.Type {
		case EventDetectionFinished:
			ev = new(DetectionFinishedEvent)
			if err := json.Unmarshal(msg.Data, ev); err != nil {
				t.Fatalf("decode detection event: %v", err)
			}
		case EventAddressChanged:
			var a AddressChangedEvent
			if err := json.Unmarshal(msg.Data, &a); err != nil {
				t.Fatalf("decode address event: %v", err)
			}
			if a.Chain == chain.BTC {
				addrEv = &a
			}
		}
	}
	if ev.Chain != chain.BTC || ev.Address != "ledger-BTC" || ev.Error != "" {
		t.Errorf("detection event = %+v", *ev)
	}
	if addrEv.Address == nil || addrEv.Address.Address != "ledger-BTC" || addrEv.Address.Type != wallet.TypeLedger {
		t.Errorf("address event = %+v", *addrEv)
	}
}

func TestWebSocketSubscriptionFilter(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env)
	for i := 0; i < 3; i++ {
		readEvent(t, conn)
	}

	if err := conn.WriteJSON(WSSubscription{Action: "subscribe", Events: []string{string(EventSessionState)}}); err != nil {
		t.Fatalf("write subscription: %v", err)
	}
	hub := env.srv.WSHub()
	waitFor(t, "subscription", func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		for c := range hub.clients {
			return !c.subscribed(EventLedgerState)
		}
		return false
	})

	// ledger_state is filtered; the session switch comes through.
	env.mustCall(t, "ledger_selectChain", LedgerChainParams{Chain: "ETH"}, nil)
	env.mustCall(t, "session_useStandaloneLedger", nil, nil)

	msg := readEvent(t, conn)
	if msg.Type != EventSessionState {
		t.Fatalf("event = %s, want %s", msg.Type, EventSessionState)
	}
	var st map[string]interface{}
	if err := json.Unmarshal(msg.Data, &st); err != nil {
		t.Fatalf("decode session event: %v", err)
	}
	if st["mode"] != ledger.Mode {
		t.Errorf("mode = %v, want %s", st["mode"], ledger.Mode)
	}
}

func TestStopClosesWebSocketClients(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env)
	for i := 0; i < 3; i++ {
		readEvent(t, conn)
	}

	if err := env.srv.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) || strings.Contains(err.Error(), "EOF") || strings.Contains(err.Error(), "closed") {
				return
			}
			t.Fatalf("read error = %v, want the connection closed", err)
		}
	}
}
