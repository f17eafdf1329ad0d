// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package xdg provides helpers to resolve XDG Base Directory paths for querycraft.
// It follows the XDG Base Directory conventions for determining appropriate
// locations for configuration files, query history and other application-specific
// directories on Unix-like systems.
//
// The package handles fallback to traditional locations when XDG environment
// variables are not set and ensures proper permissions for directories that may
// hold connection settings.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "querycraft"

// ConfigDir returns the XDG config directory for querycraft.
// The directory is created with private permissions (0700) if missing.
// It falls back to ~/.config/querycraft when XDG_CONFIG_HOME is unset.
func ConfigDir() (string, error) {
	return resolve("XDG_CONFIG_HOME", ".config")
}

// DataDir returns the XDG data directory for querycraft, where the query
// history database lives. It falls back to ~/.local/share/querycraft.
func DataDir() (string, error) {
	return resolve("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func resolve(envVar, homeFallback string) (string, error) {
	base := os.Getenv(envVar)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, homeFallback)
	}
	dir := filepath.Join(base, appName)
	if err := os.MkdirAll(dir, 0o700); err != nil { // private dir
		return "", err
	}
	return dir, nil
}
