package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/asgardex/asgardex-mobile-sub001/internal/chain"
	"github.com/asgardex/asgardex-mobile-sub001/internal/ledger"
)

// ========================================
// Standalone ledger handlers
// ========================================

func (s *Server) ledgerState(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.ledger == nil {
		return nil, fmt.Errorf("ledger %w", errServiceMissing)
	}
	return s.ledger.State(), nil
}

// LedgerChainParams is the parameters for ledger_selectChain and
// ledger_disconnect.
type LedgerChainParams struct {
	Chain string `json:"chain"`
}

func (p LedgerChainParams) parse() (chain.Chain, error) {
	if p.Chain == "" {
		return "", invalidParams("chain is required")
	}
	c, err := chain.Parse(p.Chain)
	if err != nil {
		return "", invalidParams("%v", err)
	}
	return c, nil
}

func (s *Server) ledgerSelectChain(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.ledger == nil {
		return nil, fmt.Errorf("ledger %w", errServiceMissing)
	}

	var p LedgerChainParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	c, err := p.parse()
	if err != nil {
		return nil, err
	}

	if err := s.ledger.SetSelectedChainForDetection(c); err != nil {
		return nil, invalidParams("%v", err)
	}
	return s.ledger.State(), nil
}

// LedgerHDModeParams is the parameters for ledger_setHDMode.
type LedgerHDModeParams struct {
	HDMode string `json:"hdMode"`
}

func (s *Server) ledgerSetHDMode(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.ledger == nil {
		return nil, fmt.Errorf("ledger %w", errServiceMissing)
	}

	var p LedgerHDModeParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	hd, err := chain.ParseHDMode(p.HDMode)
	if err != nil {
		return nil, invalidParams("%v", err)
	}

	s.ledger.SetDetectionHDMode(hd)
	return s.ledger.State(), nil
}

// LedgerWalletParams is the parameters for ledger_setWalletParams.
type LedgerWalletParams struct {
	Account uint32 `json:"account"`
	Index   uint32 `json:"index"`
}

func (s *Server) ledgerSetWalletParams(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.ledger == nil {
		return nil, fmt.Errorf("ledger %w", errServiceMissing)
	}

	var p LedgerWalletParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	if err := s.ledger.SetDetectionWalletParams(p.Account, p.Index); err != nil {
		return nil, invalidParams("%v", err)
	}
	return s.ledger.State(), nil
}

// ledgerStartDetection starts detection in the background and returns at
// once. Progress is published as ledger_state events and the outcome as a
// detection_finished event.
func (s *Server) ledgerStartDetection(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.ledger == nil {
		return nil, fmt.Errorf("ledger %w", errServiceMissing)
	}

	selected := s.ledger.State().SelectedChainForDetection
	if selected == "" {
		return nil, invalidParams("%v", ledger.ErrNoChainSelected)
	}

	s.goBackground(func(ctx context.Context) {
		c, err := s.ledger.StartDetection(ctx)
		ev := DetectionFinishedEvent{Chain: c}
		if err != nil {
			ev.Chain = selected
			ev.Error = err.Error()
			var devErr *ledger.Error
			if errors.As(err, &devErr) {
				ev.Device = devErr
			}
		} else if addr := s.ledger.State().Address; addr != nil {
			ev.Address = addr.Address
		}
		s.wsHub.Broadcast(EventDetectionFinished, ev)
	})

	return map[string]interface{}{
		"started": true,
		"chain":   selected,
	}, nil
}

func (s *Server) ledgerReset(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.ledger == nil {
		return nil, fmt.Errorf("ledger %w", errServiceMissing)
	}
	s.ledger.ResetToChainSelection()
	return s.ledger.State(), nil
}

func (s *Server) ledgerConnect(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.ledger == nil {
		return nil, fmt.Errorf("ledger %w", errServiceMissing)
	}

	var p AddressParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	c, hd, err := p.parse()
	if err != nil {
		return nil, err
	}

	addr, err := s.ledger.ConnectLedgerChain(ctx, c, hd, p.Account, p.Index)
	if err != nil {
		return nil, err
	}
	return addr, nil
}

func (s *Server) ledgerDisconnect(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.ledger == nil {
		return nil, fmt.Errorf("ledger %w", errServiceMissing)
	}

	var p LedgerChainParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	c, err := p.parse()
	if err != nil {
		return nil, err
	}

	s.ledger.DisconnectLedgerChain(c)
	return s.ledger.State(), nil
}

func (s *Server) ledgerGetAddress(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.ledger == nil {
		return nil, fmt.Errorf("ledger %w", errServiceMissing)
	}

	var p AddressParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	c, hd, err := p.parse()
	if err != nil {
		return nil, err
	}

	addr, err := s.ledger.GetAddressWithoutStateChange(ctx, c, hd, p.Account, p.Index)
	if err != nil {
		return nil, err
	}
	return addr, nil
}

// ========================================
// Session handlers
// ========================================

func (s *Server) sessionState(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.session == nil {
		return nil, fmt.Errorf("session %w", errServiceMissing)
	}
	return s.session.State(), nil
}

func (s *Server) sessionUseKeystore(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.session == nil {
		return nil, fmt.Errorf("session %w", errServiceMissing)
	}
	s.session.SwitchToKeystoreMode()
	return s.session.State(), nil
}

// SessionStandaloneParams is the parameters for session_useStandaloneLedger.
type SessionStandaloneParams struct {
	// AutoLock locks an unlocked keystore instead of refusing the switch.
	AutoLock bool `json:"autoLock"`
}

func (s *Server) sessionUseStandaloneLedger(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.session == nil {
		return nil, fmt.Errorf("session %w", errServiceMissing)
	}

	var p SessionStandaloneParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	if err := s.session.SwitchToStandaloneLedgerMode(p.AutoLock); err != nil {
		return nil, err
	}
	return s.session.State(), nil
}
