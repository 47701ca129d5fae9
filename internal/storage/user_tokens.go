package storage

import (
	"fmt"
	"time"
)

// UserToken is a token the user added for balance reads.
type UserToken struct {
	Chain    string    `json:"chain"`
	Network  string    `json:"network"`
	Symbol   string    `json:"symbol"`
	Contract string    `json:"contract"`
	Decimals uint8     `json:"decimals"`
	AddedAt  time.Time `json:"added_at"`
}

// AddUserToken stores a user token. Re-adding a contract updates its symbol
// and decimals.
func (s *Storage) AddUserToken(t *UserToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.AddedAt.IsZero() {
		t.AddedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO user_tokens (chain, network, symbol, contract, decimals, added_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chain, network, contract) DO UPDATE SET
			symbol = excluded.symbol,
			decimals = excluded.decimals
	`, t.Chain, t.Network, t.Symbol, t.Contract, t.Decimals, t.AddedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to add user token: %w", err)
	}
	return nil
}

// RemoveUserToken deletes a user token.
func (s *Storage) RemoveUserToken(chain, network, contract string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"DELETE FROM user_tokens WHERE chain = ? AND network = ? AND contract = ?",
		chain, network, contract,
	)
	return err
}

// UserTokens returns the user tokens of one chain, in insertion order.
func (s *Storage) UserTokens(chain, network string) ([]*UserToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT chain, network, symbol, contract, decimals, added_at
		FROM user_tokens WHERE chain = ? AND network = ? ORDER BY added_at, contract
	`, chain, network)
	if err != nil {
		return nil, fmt.Errorf("failed to list user tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*UserToken
	for rows.Next() {
		var t UserToken
		var addedAt int64
		if err := rows.Scan(&t.Chain, &t.Network, &t.Symbol, &t.Contract, &t.Decimals, &addedAt); err != nil {
			return nil, err
		}
		t.AddedAt = time.Unix(addedAt, 0)
		tokens = append(tokens, &t)
	}
	return tokens, rows.Err()
}
