// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import "testing"

func TestSQLiteResolver(t *testing.T) {
	resolver := NewSQLiteResolver()

	tests := []struct {
		name        string
		dsn         string
		wantPath    string
		want        string
		expectError bool
	}{
		{name: "absolute path", dsn: "sqlite:///var/lib/querycraft/shop.db", wantPath: "/var/lib/querycraft/shop.db", want: "file:/var/lib/querycraft/shop.db"},
		{name: "relative path", dsn: "sqlite://shop.db", wantPath: "shop.db", want: "file:shop.db"},
		{name: "opaque form", dsn: "sqlite:data/shop.db", wantPath: "data/shop.db", want: "file:data/shop.db"},
		{name: "file uri with params", dsn: "file:shop.db?cache=shared", wantPath: "shop.db", want: "file:shop.db?cache=shared"},
		{name: "in memory", dsn: "sqlite::memory:", wantPath: ":memory:", want: "file::memory:"},
		{name: "missing path", dsn: "sqlite://", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := resolver.Parse(tt.dsn)
			if tt.expectError {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if info.Database != tt.wantPath {
				t.Errorf("path = %q, want %q", info.Database, tt.wantPath)
			}
			got, err := resolver.Normalize(info)
			if err != nil {
				t.Fatalf("normalize failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Normalize() = %q, want %q", got, tt.want)
			}
		})
	}

	if err := resolver.Validate("file:shop.db?mode=rwc"); err == nil {
		t.Error("mode=rwc must be rejected")
	}
}
