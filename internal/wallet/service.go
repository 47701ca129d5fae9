package wallet

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/asgardex/asgardex-mobile-sub001/internal/chain"
	"github.com/asgardex/asgardex-mobile-sub001/internal/storage"
	"github.com/asgardex/asgardex-mobile-sub001/internal/stream"
	"github.com/asgardex/asgardex-mobile-sub001/pkg/logging"
)

var (
	ErrWalletLocked    = errors.New("wallet is locked")
	ErrNoWallet        = errors.New("no keystore wallet")
	ErrWrongPassword   = errors.New("failed to decrypt seed (wrong password?)")
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	ErrInvalidName     = errors.New("wallet name must be 1-64 characters")
)

const maxNameLength = 64

// Store is the persistence the keystore needs. *storage.Storage implements it.
type Store interface {
	SaveKeystoreWallet(w *storage.KeystoreWallet) error
	GetKeystoreWallet(id string) (*storage.KeystoreWallet, error)
	ListKeystoreWallets() ([]*storage.KeystoreWallet, error)
	RenameKeystoreWallet(id, name string) error
	DeleteKeystoreWallet(id string) error
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
	DeleteSetting(key string) error
}

// Service is the keystore session. It owns the keystore state and is the
// only component that mutates it.
type Service struct {
	store   Store
	network chain.Network
	log     *logging.Logger
	state   *stream.Cell[State]

	mu       sync.Mutex
	wallet   *Wallet
	wallets  []Info
	selected *Info
}

// ServiceConfig holds configuration for the wallet service.
type ServiceConfig struct {
	Store   Store
	Network chain.Network
}

// NewService creates the keystore session from persisted wallets. It starts
// Locked when a wallet exists and Empty otherwise.
func NewService(cfg *ServiceConfig) (*Service, error) {
	if cfg == nil || cfg.Store == nil {
		return nil, fmt.Errorf("wallet service requires a store")
	}

	network := cfg.Network
	if network == "" {
		network = chain.Mainnet
	}

	s := &Service{
		store:   cfg.Store,
		network: network,
		log:     logging.GetDefault().Component("keystore"),
	}

	if err := s.reload(); err != nil {
		return nil, err
	}
	s.state = stream.NewCell(s.snapshotLocked(), stream.WithEqual(State.Equal))
	return s, nil
}

// reload reads the wallet list and selection from the store.
func (s *Service) reload() error {
	records, err := s.store.ListKeystoreWallets()
	if err != nil {
		return fmt.Errorf("failed to load keystore wallets: %w", err)
	}
	s.wallets = make([]Info, 0, len(records))
	for _, r := range records {
		s.wallets = append(s.wallets, Info{ID: r.ID, Name: r.Name})
	}

	selectedID, err := s.store.GetSetting(storage.SettingSelectedKeystore)
	if err != nil {
		return err
	}
	s.selected = nil
	for i := range s.wallets {
		if s.wallets[i].ID == selectedID {
			info := s.wallets[i]
			s.selected = &info
		}
	}
	if s.selected == nil && len(s.wallets) > 0 {
		info := s.wallets[0]
		s.selected = &info
	}
	return nil
}

func (s *Service) snapshotLocked() State {
	st := State{
		Status:  StatusEmpty,
		Wallets: append([]Info(nil), s.wallets...),
	}
	if s.selected != nil {
		info := *s.selected
		st.Selected = &info
	}
	switch {
	case s.wallet != nil:
		st.Status = StatusUnlocked
	case len(s.wallets) > 0:
		st.Status = StatusLocked
	}
	return st
}

// publish recomputes the observable state from the authoritative fields.
// It must be called without s.mu held.
func (s *Service) publish() {
	s.state.Update(func(State) State {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.snapshotLocked()
	})
}

// State returns the current keystore state.
func (s *Service) State() State {
	return s.state.Get()
}

// Subscribe observes keystore state changes, starting with the current state.
func (s *Service) Subscribe(fn func(State)) func() {
	return s.state.Subscribe(fn)
}

// Observable exposes the state as a stream.
func (s *Service) Observable() stream.Observable[State] {
	return s.state
}

// Network returns the wallet network.
func (s *Service) Network() chain.Network {
	return s.network
}

// GenerateMnemonic generates a new 24-word mnemonic.
func (s *Service) GenerateMnemonic() (string, error) {
	return GenerateMnemonic()
}

// ValidateMnemonic checks if a mnemonic is valid.
func (s *Service) ValidateMnemonic(mnemonic string) bool {
	return ValidateMnemonic(mnemonic)
}

// IsUnlocked returns true if a wallet is loaded.
func (s *Service) IsUnlocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wallet != nil
}

// HasWallet returns true if at least one keystore exists.
func (s *Service) HasWallet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.wallets) > 0
}

// ListWallets returns the stored keystores.
func (s *Service) ListWallets() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Info(nil), s.wallets...)
}

// CreateWallet stores a new keystore from a mnemonic, selects it and leaves it unlocked.
func (s *Service) CreateWallet(name, mnemonic, password string) (Info, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return Info{}, ErrInvalidName
	}
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !ValidateMnemonic(mnemonic) {
		return Info{}, ErrInvalidMnemonic
	}
	if err := ValidatePassword(password); err != nil {
		return Info{}, fmt.Errorf("weak password: %w", err)
	}

	w, err := NewFromMnemonic(mnemonic, s.network)
	if err != nil {
		return Info{}, fmt.Errorf("failed to create wallet: %w", err)
	}

	encrypted, err := EncryptMnemonic(mnemonic, password)
	if err != nil {
		w.Close()
		return Info{}, fmt.Errorf("failed to encrypt seed: %w", err)
	}
	doc, err := encrypted.Marshal()
	if err != nil {
		w.Close()
		return Info{}, err
	}

	info := Info{ID: uuid.NewString(), Name: name}

	s.mu.Lock()
	err = s.store.SaveKeystoreWallet(&storage.KeystoreWallet{ID: info.ID, Name: info.Name, Seed: doc})
	if err == nil {
		err = s.store.SetSetting(storage.SettingSelectedKeystore, info.ID)
	}
	if err != nil {
		s.mu.Unlock()
		w.Close()
		return Info{}, fmt.Errorf("failed to save wallet: %w", err)
	}
	if s.wallet != nil {
		s.wallet.Close()
	}
	s.wallet = w
	s.wallets = append(s.wallets, info)
	selected := info
	s.selected = &selected
	s.mu.Unlock()

	s.log.Info("Keystore created", "id", info.ID, "name", info.Name)
	s.publish()
	return info, nil
}

// Unlock decrypts the selected keystore.
func (s *Service) Unlock(password string) error {
	s.mu.Lock()
	if s.selected == nil {
		s.mu.Unlock()
		return ErrNoWallet
	}
	id := s.selected.ID
	s.mu.Unlock()

	record, err := s.store.GetKeystoreWallet(id)
	if err != nil {
		return fmt.Errorf("failed to load keystore: %w", err)
	}
	encrypted, err := UnmarshalEncryptedSeed(record.Seed)
	if err != nil {
		return err
	}
	mnemonic, err := DecryptMnemonic(encrypted, password)
	if err != nil {
		return err
	}
	w, err := NewFromMnemonic(mnemonic, s.network)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	s.mu.Lock()
	if s.selected == nil || s.selected.ID != id {
		// Selection changed while decrypting.
		s.mu.Unlock()
		w.Close()
		return fmt.Errorf("keystore %s is no longer selected", id)
	}
	if s.wallet != nil {
		s.wallet.Close()
	}
	s.wallet = w
	s.mu.Unlock()

	s.log.Info("Keystore unlocked", "id", id)
	s.publish()
	return nil
}

// Lock clears the unlocked wallet from memory. Locking a locked keystore is a no-op.
func (s *Service) Lock() {
	s.mu.Lock()
	if s.wallet == nil {
		s.mu.Unlock()
		return
	}
	s.wallet.Close()
	s.wallet = nil
	s.mu.Unlock()

	s.log.Info("Keystore locked")
	s.publish()
}

// SelectWallet makes another keystore current. The keystore ends up locked.
func (s *Service) SelectWallet(id string) error {
	s.mu.Lock()
	var found *Info
	for i := range s.wallets {
		if s.wallets[i].ID == id {
			info := s.wallets[i]
			found = &info
		}
	}
	if found == nil {
		s.mu.Unlock()
		return storage.ErrKeystoreNotFound
	}
	if err := s.store.SetSetting(storage.SettingSelectedKeystore, id); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.wallet != nil && (s.selected == nil || s.selected.ID != id) {
		s.wallet.Close()
		s.wallet = nil
	}
	s.selected = found
	s.mu.Unlock()

	s.publish()
	return nil
}

// RenameWallet changes a keystore's name.
func (s *Service) RenameWallet(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return ErrInvalidName
	}

	s.mu.Lock()
	if err := s.store.RenameKeystoreWallet(id, name); err != nil {
		s.mu.Unlock()
		return err
	}
	for i := range s.wallets {
		if s.wallets[i].ID == id {
			s.wallets[i].Name = name
		}
	}
	if s.selected != nil && s.selected.ID == id {
		s.selected = &Info{ID: id, Name: name}
	}
	s.mu.Unlock()

	s.publish()
	return nil
}

// RemoveWallet deletes a keystore. Removing the selected keystore locks the
// session and selects the next remaining one; removing the last one leaves
// the keystore Empty.
func (s *Service) RemoveWallet(id string) error {
	s.mu.Lock()
	if err := s.store.DeleteKeystoreWallet(id); err != nil {
		s.mu.Unlock()
		return err
	}
	kept := s.wallets[:0]
	for _, info := range s.wallets {
		if info.ID != id {
			kept = append(kept, info)
		}
	}
	s.wallets = kept

	var err error
	if s.selected != nil && s.selected.ID == id {
		if s.wallet != nil {
			s.wallet.Close()
			s.wallet = nil
		}
		s.selected = nil
		if len(s.wallets) > 0 {
			next := s.wallets[0]
			s.selected = &next
			err = s.store.SetSetting(storage.SettingSelectedKeystore, next.ID)
		} else {
			err = s.store.DeleteSetting(storage.SettingSelectedKeystore)
		}
	}
	s.mu.Unlock()

	s.log.Info("Keystore removed", "id", id)
	s.publish()
	return err
}

// DeriveAddress derives a keystore address. Requires the keystore to be unlocked.
func (s *Service) DeriveAddress(c chain.Chain, hd chain.HDMode, account, index uint32) (WalletAddress, error) {
	s.mu.Lock()
	w := s.wallet
	s.mu.Unlock()
	if w == nil {
		return WalletAddress{}, ErrWalletLocked
	}

	if hd == "" {
		hd = chain.DefaultHDMode(c)
	}
	addr, err := w.DeriveAddress(c, hd, account, index)
	if err != nil {
		return WalletAddress{}, err
	}
	return WalletAddress{
		Address:       addr,
		Chain:         c,
		WalletAccount: account,
		WalletIndex:   index,
		HDMode:        hd,
		Type:          TypeKeystore,
	}, nil
}
