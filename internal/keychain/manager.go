// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain provides centralized, thread-safe keychain operations for querycraft.
// This module manages all interactions with the OS keychain/credential store,
// providing a unified interface for storing and retrieving the two secrets the CLI
// needs: the database DSN and the LLM API key.
//
// The package supports macOS Keychain, Windows Credential Manager and the Linux
// Secret Service, with pass(1) as a fallback where the native store is missing.
package keychain

import (
	"errors"
	"runtime"
	"sync"

	"github.com/99designs/keyring"
)

// Global keychain manager instance
var (
	globalManager *Manager
	globalError   error
	mu            sync.Mutex
)

// Manager provides centralized, thread-safe operations for the OS keychain.
type Manager struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "querycraft"

// Keys used for storing secrets in the OS keychain.
const (
	KeyDBDSN     = "db_dsn"
	KeyLLMAPIKey = "llm_api_key"
)

// ErrNotFound is returned when a key has never been stored.
var ErrNotFound = errors.New("secret not found in keychain")

// NewManager creates a new keychain manager with the OS keyring initialized.
func NewManager() (*Manager, error) {
	ring, err := openRing()
	if err != nil {
		return nil, err
	}
	return &Manager{ring: ring}, nil
}

// NewManagerWithRing wraps an already opened keyring, e.g. keyring.NewArrayKeyring in tests.
func NewManagerWithRing(ring keyring.Keyring) *Manager {
	return &Manager{ring: ring}
}

// GetManager returns the global keychain manager instance.
// If not initialized, it will be created on first call.
// If initialization fails, it will retry on subsequent calls.
func GetManager() (*Manager, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalManager != nil {
		return globalManager, nil
	}

	globalManager, globalError = NewManager()
	if globalError != nil {
		return nil, globalError
	}

	return globalManager, nil
}

// openRing opens the OS keyring using native platform backends only.
// There is deliberately no encrypted-file fallback.
func openRing() (keyring.Keyring, error) {
	var allowedBackends []keyring.BackendType
	switch runtime.GOOS {
	case "darwin":
		allowedBackends = []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		allowedBackends = []keyring.BackendType{keyring.WinCredBackend}
	case "linux", "freebsd", "openbsd":
		allowedBackends = []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.PassBackend}
	default:
		return nil, errors.New("secure storage not supported on this OS")
	}

	cfg := keyring.Config{
		ServiceName:              ServiceName,
		AllowedBackends:          allowedBackends,
		PassPrefix:               ServiceName,
		KeychainTrustApplication: true,
		LibSecretCollectionName:  ServiceName,
	}

	// Hint prefixes where supported to minimize namespace collisions
	if runtime.GOOS == "windows" {
		cfg.WinCredPrefix = ServiceName
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		if runtime.GOOS == "linux" {
			return nil, errors.New("no secret store available; install gnome-keyring or pass, or set QUERYCRAFT_DSN / QUERYCRAFT_LLM_API_KEY instead")
		}
		return nil, err
	}

	return ring, nil
}

func (m *Manager) set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ring.Set(keyring.Item{Key: key, Data: []byte(value), Label: ServiceName + " " + key})
}

func (m *Manager) get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, err := m.ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	if len(it.Data) == 0 {
		return "", ErrNotFound
	}
	return string(it.Data), nil
}

func (m *Manager) remove(keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		_ = m.ring.Remove(k)
	}
}

// SaveDBDSN stores the database DSN in the keychain.
// This method is thread-safe.
func (m *Manager) SaveDBDSN(dsn string) error { return m.set(KeyDBDSN, dsn) }

// LoadDBDSN retrieves the database DSN from the keychain.
// This method is thread-safe.
func (m *Manager) LoadDBDSN() (string, error) { return m.get(KeyDBDSN) }

// ClearDB removes DB-related secrets from the keychain.
func (m *Manager) ClearDB() error {
	m.remove(KeyDBDSN)
	return nil
}

// SaveLLMAPIKey stores the API key of the SQL generation endpoint.
func (m *Manager) SaveLLMAPIKey(key string) error { return m.set(KeyLLMAPIKey, key) }

// LoadLLMAPIKey retrieves the API key of the SQL generation endpoint.
func (m *Manager) LoadLLMAPIKey() (string, error) { return m.get(KeyLLMAPIKey) }

// ClearLLM removes the stored API key.
func (m *Manager) ClearLLM() error {
	m.remove(KeyLLMAPIKey)
	return nil
}

// ClearAll removes all secrets from the keychain.
// This method is thread-safe and should be used with caution.
func (m *Manager) ClearAll() error {
	m.remove(KeyDBDSN, KeyLLMAPIKey)
	return nil
}
