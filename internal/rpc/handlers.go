package rpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/asgardex/asgardex-mobile-sub001/internal/chain"
	"github.com/asgardex/asgardex-mobile-sub001/internal/session"
	"github.com/asgardex/asgardex-mobile-sub001/internal/wallet"
)

// Version of the daemon
const Version = "0.1.0-dev"

// ========================================
// Daemon handlers
// ========================================

// DaemonInfoResult is the response for daemon_info.
type DaemonInfoResult struct {
	Version string        `json:"version"`
	Network chain.Network `json:"network"`
	Uptime  string        `json:"uptime"`
	DataDir string        `json:"data_dir,omitempty"`
	Chains  []chain.Chain `json:"chains"`
}

func (s *Server) daemonInfo(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var dataDir string
	if s.store != nil {
		dataDir = s.store.Path()
	}
	return &DaemonInfoResult{
		Version: Version,
		Network: s.network,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		DataDir: dataDir,
		Chains:  chain.Supported(),
	}, nil
}

// DaemonStatusResult is the response for daemon_status.
type DaemonStatusResult struct {
	Running        bool          `json:"running"`
	SessionMode    session.Mode  `json:"session_mode"`
	KeystoreStatus wallet.Status `json:"keystore_status"`
	LedgerPhase    string        `json:"ledger_phase,omitempty"`
	Uptime         string        `json:"uptime"`
	WSClients      int           `json:"ws_clients"`
}

func (s *Server) daemonStatus(ctx context.Context, params json.RawMessage) (interface{}, error) {
	result := &DaemonStatusResult{
		Running:   true,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		WSClients: s.wsHub.ClientCount(),
	}
	if s.session != nil {
		result.SessionMode = s.session.State().Mode()
	}
	if s.wallet != nil {
		result.KeystoreStatus = s.wallet.State().Status
	}
	if s.session != nil && s.session.IsStandalone() && s.ledger != nil {
		result.LedgerPhase = string(s.ledger.State().Phase)
	}
	return result, nil
}
