package client

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// WalletKind tags which wallet integration produced a session.
type WalletKind string

// WalletKindXaman is the only wallet integration currently supported.
const WalletKindXaman WalletKind = "xaman"

// Session is the locally known connected identity. The session token is held
// in memory only; the durable record carries just the address and wallet
// kind.
type Session struct {
	Address    string
	WalletKind WalletKind
	Token      string
}

// sessionRecord is the durable on-disk format.
type sessionRecord struct {
	WalletAddress string `json:"walletAddress"`
	WalletKind    string `json:"walletKind"`
}

// SessionStore is the durable cache of the connected wallet. It is written
// only after signature verification succeeds; callers hand it verified data
// or nothing.
type SessionStore struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	current *Session
}

// NewSessionStore opens (or initializes) a session store backed by the given
// file path. An existing record is loaded; a missing or corrupt file yields
// an empty store.
func NewSessionStore(path string, logger *slog.Logger) (*SessionStore, error) {
	if path == "" {
		return nil, fmt.Errorf("session store path is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	s := &SessionStore{path: path, logger: logger}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read session store: %w", err)
		}
		return s, nil
	}

	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil || rec.WalletAddress == "" {
		// A corrupt record is treated as disconnected rather than fatal.
		logger.Warn("ignoring unreadable session record", "path", path)
		return s, nil
	}

	s.current = &Session{
		Address:    rec.WalletAddress,
		WalletKind: WalletKind(rec.WalletKind),
	}
	logger.Debug("session restored", "address", rec.WalletAddress)
	return s, nil
}

// Connect persists the verified address and updates in-memory state. The
// token is kept in memory for the lifetime of this store only.
func (s *SessionStore) Connect(address, token string) error {
	if address == "" {
		return fmt.Errorf("address is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := sessionRecord{
		WalletAddress: address,
		WalletKind:    string(WalletKindXaman),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// Write-then-rename so a crash never leaves a half-written record.
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	s.current = &Session{
		Address:    address,
		WalletKind: WalletKindXaman,
		Token:      token,
	}
	s.logger.Info("wallet session connected", "address", address)
	return nil
}

// Disconnect clears durable storage and in-memory state unconditionally. It
// never fails: a missing file is already disconnected.
func (s *SessionStore) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = nil
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove session record", "error", err)
	}
	s.logger.Info("wallet session disconnected")
}

// Current returns a copy of the connected session, or nil when disconnected.
func (s *SessionStore) Current() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil
	}
	copied := *s.current
	return &copied
}
