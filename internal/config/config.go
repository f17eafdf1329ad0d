// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package config loads and stores CLI configuration in the XDG config dir.
// Only non-secret settings are kept in the file; the DSN and the LLM API key come
// from the environment or the OS keychain and are never written back.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"querycraft/cli/internal/xdg"
)

// Config holds CLI and server settings.
type Config struct {
	LogLevel   string           `json:"log_level"`
	LogFormat  string           `json:"log_format"`
	DB         DBConfig         `json:"db"`
	Server     ServerConfig     `json:"server"`
	Query      QueryConfig      `json:"query"`
	Generation GenerationConfig `json:"generation"`
	Schema     SchemaConfig     `json:"schema"`
	History    HistoryConfig    `json:"history"`
}

// DBConfig holds database connection settings.
type DBConfig struct {
	DSN              string   `json:"-"`
	MaxConns         int      `json:"max_conns"`
	StatementTimeout Duration `json:"statement_timeout"`
}

// ServerConfig holds listener settings for `querycraft serve`.
type ServerConfig struct {
	HTTPAddr       string   `json:"http_addr"`
	GRPCAddr       string   `json:"grpc_addr"`
	RequestTimeout Duration `json:"request_timeout"`
	AllowOrigins   []string `json:"allow_origins"`
}

// QueryConfig bounds the result size.
type QueryConfig struct {
	DefaultMaxRows int `json:"default_max_rows"`
	MaxRowsCap     int `json:"max_rows_cap"`
}

// GenerationConfig selects and configures the SQL generation backend.
type GenerationConfig struct {
	Backend    string `json:"backend"` // "http" or "grpc"
	BaseURL    string `json:"base_url"`
	Model      string `json:"model"`
	APIKey     string `json:"-"`
	GRPCTarget string `json:"grpc_target"`
	// GRPCInsecure disables TLS towards GRPCTarget.
	GRPCInsecure bool     `json:"grpc_insecure"`
	Timeout      Duration `json:"timeout"`
	MaxRetries   int      `json:"max_retries"`
	CacheTTL     Duration `json:"cache_ttl"`
}

// SchemaConfig selects where the schema description comes from.
// Introspect wins over File; with neither the embedded default is used.
type SchemaConfig struct {
	File       string `json:"file"`
	Watch      bool   `json:"watch"`
	Introspect bool   `json:"introspect"`
}

// HistoryConfig controls the local query history store.
type HistoryConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// Duration is a time.Duration that marshals as a string such as "5s".
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// Bare numbers are taken as seconds.
		var n float64
		if err2 := json.Unmarshal(b, &n); err2 != nil {
			return fmt.Errorf("duration must be a string like \"5s\": %w", err)
		}
		*d = Duration(n * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		DB: DBConfig{
			MaxConns:         10,
			StatementTimeout: Duration(10 * time.Second),
		},
		Server: ServerConfig{
			HTTPAddr:       ":8000",
			GRPCAddr:       "",
			RequestTimeout: Duration(60 * time.Second),
			AllowOrigins:   []string{"*"},
		},
		Query: QueryConfig{
			DefaultMaxRows: 200,
			MaxRowsCap:     1000,
		},
		Generation: GenerationConfig{
			Backend:    "http",
			BaseURL:    "https://api.openai.com/v1",
			Model:      "gpt-4o-mini",
			Timeout:    Duration(30 * time.Second),
			MaxRetries: 0,
			CacheTTL:   Duration(10 * time.Minute),
		},
		History: HistoryConfig{Enabled: true},
	}
}

// Path returns the path to the config file.
func Path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads configuration from the default path; a missing file yields defaults.
// Environment overrides are applied on top.
func Load() (Config, error) {
	p, err := Path()
	if err != nil {
		return Default(), err
	}
	return LoadFile(p)
}

// LoadFile reads configuration from p; a missing file yields defaults.
func LoadFile(p string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(p)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return c, err
	}
	if err == nil {
		if err := json.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("parse %s: %w", p, err)
		}
	}
	c.ApplyEnv(os.Getenv)
	return c, nil
}

// ApplyEnv overrides settings from environment variables. getenv is os.Getenv
// outside of tests.
func (c *Config) ApplyEnv(getenv func(string) string) {
	first := func(keys ...string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				return v
			}
		}
		return ""
	}

	if v := first("QUERYCRAFT_DSN", "DATABASE_URL"); v != "" {
		c.DB.DSN = v
	}
	if v := first("QUERYCRAFT_LLM_API_KEY", "OPENAI_API_KEY"); v != "" {
		c.Generation.APIKey = v
	}
	if v := first("QUERYCRAFT_LLM_BASE_URL"); v != "" {
		c.Generation.BaseURL = v
	}
	if v := first("QUERYCRAFT_LLM_MODEL"); v != "" {
		c.Generation.Model = v
	}
	if v := first("QUERYCRAFT_LLM_BACKEND"); v != "" {
		c.Generation.Backend = v
	}
	if v := first("QUERYCRAFT_LLM_GRPC_TARGET"); v != "" {
		c.Generation.GRPCTarget = v
	}
	if v := first("QUERYCRAFT_HTTP_ADDR"); v != "" {
		c.Server.HTTPAddr = v
	}
	if v := first("QUERYCRAFT_GRPC_ADDR"); v != "" {
		c.Server.GRPCAddr = v
	}
	if v := first("QUERYCRAFT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := first("QUERYCRAFT_MAX_ROWS_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Query.MaxRowsCap = n
		}
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Query.MaxRowsCap < 1 {
		errs = append(errs, errors.New("query.max_rows_cap must be at least 1"))
	}
	if c.Query.DefaultMaxRows < 1 {
		errs = append(errs, errors.New("query.default_max_rows must be at least 1"))
	}
	if c.Query.DefaultMaxRows > c.Query.MaxRowsCap {
		errs = append(errs, fmt.Errorf("query.default_max_rows (%d) exceeds query.max_rows_cap (%d)", c.Query.DefaultMaxRows, c.Query.MaxRowsCap))
	}
	if c.DB.StatementTimeout.D() <= 0 {
		errs = append(errs, errors.New("db.statement_timeout must be positive"))
	}
	if c.DB.MaxConns < 1 {
		errs = append(errs, errors.New("db.max_conns must be at least 1"))
	}
	if c.Generation.Timeout.D() <= 0 {
		errs = append(errs, errors.New("generation.timeout must be positive"))
	}
	if c.Generation.MaxRetries < 0 {
		errs = append(errs, errors.New("generation.max_retries must not be negative"))
	}
	switch c.Generation.Backend {
	case "http", "grpc":
	default:
		errs = append(errs, fmt.Errorf("generation.backend %q is not one of http, grpc", c.Generation.Backend))
	}
	return errors.Join(errs...)
}

// Save writes configuration with 0600 permissions.
func Save(c Config) error {
	p, err := Path()
	if err != nil {
		return err
	}
	return SaveFile(p, c)
}

// SaveFile writes configuration to p with 0600 permissions.
func SaveFile(p string, c Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o600)
}
