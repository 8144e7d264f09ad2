package config

import (
	"fmt"
	"log/slog"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name in the OS keychain
	KeyringService = "PipeHealth"

	// KeyringPostgresDSNItem is the key for the Postgres connection string
	KeyringPostgresDSNItem = "postgres-dsn"
)

// KeyringManager handles secure credential storage in OS keychain
type KeyringManager struct {
	logger *slog.Logger
}

// NewKeyringManager creates a new keyring manager
func NewKeyringManager() *KeyringManager {
	return &KeyringManager{
		logger: slog.Default().With("component", "keyring"),
	}
}

// SavePostgresDSN stores the connection string in the OS keychain so it never
// lands in a config file.
// - macOS: Keychain Access.app
// - Windows: Credential Manager
// - Linux: Secret Service (requires libsecret)
func (km *KeyringManager) SavePostgresDSN(dsn string) error {
	if dsn == "" {
		return fmt.Errorf("dsn cannot be empty")
	}

	if err := keyring.Set(KeyringService, KeyringPostgresDSNItem, dsn); err != nil {
		km.logger.Error("failed to save dsn to keychain", "error", err)
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}

	km.logger.Info("postgres dsn saved to keychain", "service", KeyringService)
	return nil
}

// GetPostgresDSN retrieves the connection string from the OS keychain
func (km *KeyringManager) GetPostgresDSN() (string, error) {
	dsn, err := keyring.Get(KeyringService, KeyringPostgresDSNItem)
	if err == keyring.ErrNotFound {
		// Not an error - just not set yet
		return "", nil
	}
	if err != nil {
		km.logger.Error("failed to get dsn from keychain", "error", err)
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}

	return dsn, nil
}

// DeletePostgresDSN removes the connection string from the OS keychain
func (km *KeyringManager) DeletePostgresDSN() error {
	err := keyring.Delete(KeyringService, KeyringPostgresDSNItem)
	if err == keyring.ErrNotFound {
		// Already deleted, not an error
		return nil
	}
	if err != nil {
		km.logger.Error("failed to delete dsn from keychain", "error", err)
		return fmt.Errorf("failed to delete from OS keychain: %w", err)
	}

	km.logger.Info("postgres dsn deleted from keychain")
	return nil
}

// IsAvailable checks if OS keychain is available.
// Returns false on headless systems (CI/CD) where keychain isn't available.
func (km *KeyringManager) IsAvailable() bool {
	_, err := keyring.Get(KeyringService, "test-availability")

	if err == keyring.ErrNotFound {
		return true
	}
	if err != nil {
		km.logger.Debug("keychain not available", "error", err)
		return false
	}
	return true
}

// MaskSecret masks a secret for display.
// Shows first 7 chars and last 4 chars: "postgre...cme1"
func MaskSecret(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	if len(secret) < 12 {
		return "***"
	}
	return fmt.Sprintf("%s...%s", secret[:7], secret[len(secret)-4:])
}
