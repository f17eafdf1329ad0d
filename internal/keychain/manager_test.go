// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package keychain

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
)

func TestManagerRoundTrip(t *testing.T) {
	m := NewManagerWithRing(keyring.NewArrayKeyring(nil))

	if _, err := m.LoadDBDSN(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LoadDBDSN() on empty ring error = %v, want ErrNotFound", err)
	}

	if err := m.SaveDBDSN("postgres://reader:pw@localhost:5432/shop"); err != nil {
		t.Fatalf("SaveDBDSN() error = %v", err)
	}
	if err := m.SaveLLMAPIKey("sk-test-123456789"); err != nil {
		t.Fatalf("SaveLLMAPIKey() error = %v", err)
	}

	dsn, err := m.LoadDBDSN()
	if err != nil || dsn != "postgres://reader:pw@localhost:5432/shop" {
		t.Errorf("LoadDBDSN() = %q, %v", dsn, err)
	}
	key, err := m.LoadLLMAPIKey()
	if err != nil || key != "sk-test-123456789" {
		t.Errorf("LoadLLMAPIKey() = %q, %v", key, err)
	}

	if err := m.ClearLLM(); err != nil {
		t.Fatalf("ClearLLM() error = %v", err)
	}
	if _, err := m.LoadLLMAPIKey(); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadLLMAPIKey() after clear error = %v", err)
	}
	if _, err := m.LoadDBDSN(); err != nil {
		t.Errorf("ClearLLM() must not touch the DSN: %v", err)
	}

	_ = m.ClearAll()
	if _, err := m.LoadDBDSN(); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadDBDSN() after ClearAll error = %v", err)
	}
}
