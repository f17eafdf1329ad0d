// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"querycraft/cli/internal/generator"
	"querycraft/cli/internal/history"
	"querycraft/cli/internal/keychain"
	"querycraft/cli/internal/pipeline"
	"querycraft/cli/internal/schema"
	"querycraft/cli/internal/sqlexec"
	"querycraft/cli/internal/xdg"
)

// secretSource says where a secret was found, for dbinfo and error messages.
type secretSource string

const (
	sourceEnv      secretSource = "environment"
	sourceKeychain secretSource = "OS keychain"
)

var (
	errNoDSN    = errors.New("no database connection configured; run 'querycraft connect' or set QUERYCRAFT_DSN")
	errNoAPIKey = errors.New("no SQL generation API key configured; run 'querycraft login' or set QUERYCRAFT_LLM_API_KEY")
)

// resolveDSN returns the DSN from the environment, falling back to the keychain.
func resolveDSN() (string, secretSource, error) {
	if strings.TrimSpace(cfg.DB.DSN) != "" {
		return cfg.DB.DSN, sourceEnv, nil
	}
	km, err := keychain.GetManager()
	if err != nil {
		return "", "", errNoDSN
	}
	v, err := km.LoadDBDSN()
	if err != nil || strings.TrimSpace(v) == "" {
		return "", "", errNoDSN
	}
	return v, sourceKeychain, nil
}

// resolveAPIKey returns the generation API key. A missing key is only an error
// for the http backend against a remote endpoint; local model servers often
// take none.
func resolveAPIKey() (string, error) {
	if strings.TrimSpace(cfg.Generation.APIKey) != "" {
		return cfg.Generation.APIKey, nil
	}
	if km, err := keychain.GetManager(); err == nil {
		if v, err := km.LoadLLMAPIKey(); err == nil {
			return v, nil
		}
	}
	if cfg.Generation.Backend == "http" && !isLocalURL(cfg.Generation.BaseURL) {
		return "", errNoAPIKey
	}
	return "", nil
}

func isLocalURL(u string) bool {
	for _, p := range []string{"http://localhost", "http://127.0.0.1", "http://[::1]"} {
		if strings.HasPrefix(u, p) {
			return true
		}
	}
	return false
}

func openDatabase(ctx context.Context, skipPing bool) (*sqlexec.DB, error) {
	raw, _, err := resolveDSN()
	if err != nil {
		return nil, err
	}
	return sqlexec.Open(ctx, raw, sqlexec.PoolOptions{MaxConns: cfg.DB.MaxConns, SkipPing: skipPing})
}

// buildGenerator returns the configured backend wrapped in the result cache,
// plus a function releasing its resources.
func buildGenerator() (generator.Generator, func(), error) {
	key, err := resolveAPIKey()
	if err != nil {
		return nil, nil, err
	}

	var (
		gen     generator.Generator
		release = func() {}
	)
	switch cfg.Generation.Backend {
	case "grpc":
		if cfg.Generation.GRPCTarget == "" {
			return nil, nil, errors.New("generation.grpc_target is required for the grpc backend")
		}
		g, err := generator.DialGRPC(generator.GRPCConfig{
			Target:   cfg.Generation.GRPCTarget,
			APIKey:   key,
			Insecure: cfg.Generation.GRPCInsecure,
		})
		if err != nil {
			return nil, nil, err
		}
		gen, release = g, func() { g.Close() }
	default:
		gen = generator.NewHTTP(generator.HTTPConfig{
			BaseURL:    cfg.Generation.BaseURL,
			Model:      cfg.Generation.Model,
			APIKey:     key,
			Timeout:    cfg.Generation.Timeout.D(),
			MaxRetries: cfg.Generation.MaxRetries,
		}, logger)
	}

	if ttl := cfg.Generation.CacheTTL.D(); ttl > 0 {
		gen = generator.NewCached(gen, ttl)
	}
	return gen, release, nil
}

// buildSchema picks the schema provider. The returned job is non-nil when the
// provider needs a background goroutine (the file watcher).
func buildSchema(db *sqlexec.DB) (schema.Provider, func(context.Context) error, func(), error) {
	noop := func() {}
	switch {
	case cfg.Schema.Introspect:
		if db == nil {
			return nil, nil, nil, errors.New("schema.introspect needs a database connection")
		}
		return sqlexec.NewSchemaInspector(db, logger), nil, noop, nil
	case cfg.Schema.File != "" && cfg.Schema.Watch:
		w, err := schema.NewWatcher(cfg.Schema.File, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		return w, w.Run, func() { w.Close() }, nil
	case cfg.Schema.File != "":
		if _, err := schema.LoadFile(cfg.Schema.File); err != nil {
			return nil, nil, nil, err
		}
		return schema.File(cfg.Schema.File), nil, noop, nil
	default:
		return schema.Default(), nil, noop, nil
	}
}

// openHistory opens the history store when enabled; (nil, nil) otherwise.
func openHistory() (*history.Store, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	path := cfg.History.Path
	if path == "" {
		dir, err := xdg.DataDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "history")
	}
	return history.Open(path, logger)
}

func limits() pipeline.Limits {
	return pipeline.Limits{DefaultMaxRows: cfg.Query.DefaultMaxRows, MaxRowsCap: cfg.Query.MaxRowsCap}
}

// app bundles everything a command needs to run the pipeline.
type app struct {
	db       *sqlexec.DB
	schema   schema.Provider
	history  *history.Store
	pipeline *pipeline.Pipeline
	jobs     []func(context.Context) error
	closers  []func()
}

type appOptions struct {
	history bool
	// lazyDB starts without checking the database is reachable.
	lazyDB bool
}

// newApp wires the pipeline from the loaded configuration. Callers must Close it.
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	db, err := openDatabase(ctx, opts.lazyDB)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	gen, release, err := buildGenerator()
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, release)

	provider, job, closeSchema, err := buildSchema(db)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	a.schema = provider
	a.closers = append(a.closers, closeSchema)
	if job != nil {
		a.jobs = append(a.jobs, job)
	}

	var recorder pipeline.Recorder
	if opts.history {
		store, err := openHistory()
		if err != nil {
			// History is optional; a locked store must not block queries.
			logger.Warn("query history disabled", logger.Args("error", err.Error()))
		} else if store != nil {
			a.history = store
			recorder = store
			a.closers = append(a.closers, func() { store.Close() })
		}
	}

	a.pipeline = pipeline.New(pipeline.Config{
		Generator: gen,
		Schema:    provider,
		Executor:  sqlexec.New(db, cfg.DB.StatementTimeout.D(), logger),
		Limits:    limits(),
		Timeout:   cfg.Server.RequestTimeout.D(),
		Logger:    logger,
		Recorder:  recorder,
	})
	ok = true
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
