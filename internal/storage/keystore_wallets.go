package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrKeystoreNotFound  = errors.New("keystore wallet not found")
	ErrKeystoreNameTaken = errors.New("keystore wallet name already in use")
)

// KeystoreWallet is a persisted keystore. Seed is the encrypted seed document.
type KeystoreWallet struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Seed      []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SaveKeystoreWallet inserts a new keystore wallet.
func (s *Storage) SaveKeystoreWallet(w *KeystoreWallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO keystore_wallets (id, name, seed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, w.ID, w.Name, string(w.Seed), w.CreatedAt.Unix(), w.UpdatedAt.Unix())
	if err != nil {
		if isUniqueViolation(err, "keystore_wallets.name") {
			return ErrKeystoreNameTaken
		}
		return fmt.Errorf("failed to save keystore wallet: %w", err)
	}
	return nil
}

// GetKeystoreWallet returns a keystore wallet by ID.
func (s *Storage) GetKeystoreWallet(id string) (*KeystoreWallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var w KeystoreWallet
	var seed string
	var createdAt, updatedAt int64
	err := s.db.QueryRow(`
		SELECT id, name, seed, created_at, updated_at FROM keystore_wallets WHERE id = ?
	`, id).Scan(&w.ID, &w.Name, &seed, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrKeystoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get keystore wallet: %w", err)
	}

	w.Seed = []byte(seed)
	w.CreatedAt = time.Unix(createdAt, 0)
	w.UpdatedAt = time.Unix(updatedAt, 0)
	return &w, nil
}

// ListKeystoreWallets returns all keystore wallets (without seeds), oldest first.
func (s *Storage) ListKeystoreWallets() ([]*KeystoreWallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, name, created_at, updated_at FROM keystore_wallets ORDER BY created_at, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list keystore wallets: %w", err)
	}
	defer rows.Close()

	var wallets []*KeystoreWallet
	for rows.Next() {
		var w KeystoreWallet
		var createdAt, updatedAt int64
		if err := rows.Scan(&w.ID, &w.Name, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		w.CreatedAt = time.Unix(createdAt, 0)
		w.UpdatedAt = time.Unix(updatedAt, 0)
		wallets = append(wallets, &w)
	}
	return wallets, rows.Err()
}

// RenameKeystoreWallet changes a wallet's display name.
func (s *Storage) RenameKeystoreWallet(id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		"UPDATE keystore_wallets SET name = ?, updated_at = ? WHERE id = ?",
		name, time.Now().Unix(), id,
	)
	if err != nil {
		if isUniqueViolation(err, "keystore_wallets.name") {
			return ErrKeystoreNameTaken
		}
		return fmt.Errorf("failed to rename keystore wallet: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrKeystoreNotFound
	}
	return nil
}

// DeleteKeystoreWallet removes a keystore wallet.
func (s *Storage) DeleteKeystoreWallet(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM keystore_wallets WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete keystore wallet: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrKeystoreNotFound
	}
	return nil
}

// KeystoreWalletCount returns the number of stored keystore wallets.
func (s *Storage) KeystoreWalletCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM keystore_wallets").Scan(&count)
	return count, err
}

func isUniqueViolation(err error, column string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}
