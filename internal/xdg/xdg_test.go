// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package xdg

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDirsHonorEnvironment(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name   string
		envVar string
		fn     func() (string, error)
	}{
		{"config", "XDG_CONFIG_HOME", ConfigDir},
		{"data", "XDG_DATA_HOME", DataDir},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := filepath.Join(base, tt.name)
			t.Setenv(tt.envVar, root)

			dir, err := tt.fn()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if want := filepath.Join(root, "querycraft"); dir != want {
				t.Errorf("dir = %q, want %q", dir, want)
			}
			info, err := os.Stat(dir)
			if err != nil {
				t.Fatalf("dir not created: %v", err)
			}
			if perm := info.Mode().Perm(); perm != 0o700 {
				t.Errorf("perm = %o, want 700", perm)
			}
		})
	}
}
