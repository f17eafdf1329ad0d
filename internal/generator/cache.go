// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package generator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// Cached memoizes successful generations of another Generator. Failures are
// never cached.
type Cached struct {
	next  Generator
	cache *cache.Cache
}

// NewCached wraps next with a cache whose entries live for ttl.
func NewCached(next Generator, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *Cached) Generate(ctx context.Context, question, language, schema string) (string, error) {
	key := cacheKey(question, language, schema)
	if cached, found := c.cache.Get(key); found {
		return cached.(string), nil
	}

	out, err := c.next.Generate(ctx, question, language, schema)
	if err != nil {
		return "", err
	}
	c.cache.SetDefault(key, out)
	return out, nil
}

// Flush drops every cached generation, e.g. after the schema changed.
func (c *Cached) Flush() { c.cache.Flush() }

// Len returns the number of cached generations.
func (c *Cached) Len() int { return c.cache.ItemCount() }

func cacheKey(question, language, schema string) string {
	sum := sha256.Sum256([]byte(schema))
	return "sql:" + strings.ToLower(language) + ":" + hex.EncodeToString(sum[:8]) + ":" + strings.TrimSpace(question)
}
