// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/EbramTawfik/mcp-evals/internal/config"
)

// closeGrace is how long CloseAll waits for each server process to exit
// after SIGTERM before force-killing it.
const closeGrace = 5 * time.Second

// ConfigKey derives the canonical cache key for a server configuration: the
// resolved transport, path, url, and each arg joined with pipes. Fields left
// unset key the same as empty strings; callers must populate configurations
// consistently for deduplication to hold.
func ConfigKey(cfg config.ServerConfig) string {
	parts := make([]string, 0, 3+len(cfg.Args))
	parts = append(parts, string(ResolveTransportKind(cfg)), cfg.Path, cfg.URL)
	parts = append(parts, cfg.Args...)
	return strings.Join(parts, "|")
}

// dialFunc creates a live client for a server configuration, returning the
// process backing the connection when there is one.
type dialFunc func(ctx context.Context, cfg config.ServerConfig) (ToolClient, ProcessHandle, error)

// cacheEntry is one live (or failed) connection. ready closes once the dial
// has completed either way; waiters read the other fields only after that.
type cacheEntry struct {
	key     string
	ready   chan struct{}
	client  ToolClient
	process ProcessHandle
	err     error
}

// Cache deduplicates live server connections across concurrent evaluations:
// at most one process and one protocol client per configuration key for the
// lifetime of a run. The cache owns teardown of everything it created.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	dial    dialFunc
	logger  *slog.Logger
}

// CacheConfig configures a connection cache.
type CacheConfig struct {
	// Builder creates transport handles (optional).
	Builder *TransportBuilder

	// Timeout is the default per-call timeout handed to clients (optional).
	Timeout time.Duration

	// Logger is used for structured logging (optional).
	Logger *slog.Logger

	// dial overrides connection creation; tests use this to count dials.
	dial dialFunc
}

// NewCache creates a connection cache.
func NewCache(cfg CacheConfig) *Cache {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dial := cfg.dial
	if dial == nil {
		builder := cfg.Builder
		if builder == nil {
			builder = &TransportBuilder{Logger: logger}
		}
		dial = func(ctx context.Context, spec config.ServerConfig) (ToolClient, ProcessHandle, error) {
			return dialServer(ctx, builder, spec, cfg.Timeout)
		}
	}

	return &Cache{
		entries: make(map[string]*cacheEntry),
		dial:    dial,
		logger:  logger,
	}
}

// dialServer resolves the transport, builds the handle (launching a server
// process when the configuration calls for it), and connects a protocol
// client over it.
func dialServer(ctx context.Context, builder *TransportBuilder, spec config.ServerConfig, timeout time.Duration) (ToolClient, ProcessHandle, error) {
	kind := ResolveTransportKind(spec)

	handle, err := builder.Create(ctx, kind, spec)
	if err != nil {
		return nil, nil, err
	}

	client, err := NewClient(ctx, ClientConfig{Handle: handle, Timeout: timeout})
	if err != nil {
		// Don't leak a half-connected launch.
		if handle.Process != nil {
			_ = handle.Process.Stop(closeGrace)
		}
		return nil, nil, err
	}

	proc := handle.Process
	if proc == nil {
		proc = client.Process()
	}
	return client, proc, nil
}

// GetOrCreateClient returns the live client for a configuration, dialing on
// first use. Concurrent callers for the same key share one dial: the first
// caller inserts the entry and dials while the rest wait on it. Dial errors
// are cached for the remainder of the run; a configuration that failed to
// start stays failed. An entry whose backing process has exited is discarded
// and redialed once.
func (c *Cache) GetOrCreateClient(ctx context.Context, cfg config.ServerConfig) (ToolClient, error) {
	return c.getOrCreate(ctx, cfg, true)
}

func (c *Cache) getOrCreate(ctx context.Context, cfg config.ServerConfig, retryStale bool) (ToolClient, error) {
	key := ConfigKey(cfg)

	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		entry = &cacheEntry{key: key, ready: make(chan struct{})}
		c.entries[key] = entry
		c.mu.Unlock()

		entry.client, entry.process, entry.err = c.dial(ctx, cfg)
		close(entry.ready)

		if entry.err != nil {
			c.logger.Error("server connection failed", "key", key, "error", entry.err)
			return nil, entry.err
		}
		c.logger.Debug("server connection established", "key", key)
		return entry.client, nil
	}
	c.mu.Unlock()

	select {
	case <-entry.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if entry.err != nil {
		return nil, entry.err
	}

	// A dead backing process means the entry is stale: drop it and dial
	// fresh, once.
	if retryStale && entry.process != nil && entry.process.Exited() {
		c.mu.Lock()
		if c.entries[key] == entry {
			delete(c.entries, key)
		}
		c.mu.Unlock()

		c.logger.Warn("cached server process exited, reconnecting", "key", key)
		_ = entry.client.Close()
		return c.getOrCreate(ctx, cfg, false)
	}

	return entry.client, nil
}

// CloseAll disposes every cached client and stops every backing process
// concurrently, waiting up to closeGrace per process for a clean exit.
// Disposal errors are logged, never propagated. Idempotent: the cache is
// empty after the first call and later calls are no-ops. Invoked exactly
// once per run, after all evaluations complete; per-evaluation teardown
// would defeat the cross-prompt reuse the cache exists for.
func (c *Cache) CloseAll() {
	c.mu.Lock()
	entries := make([]*cacheEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		entries = append(entries, entry)
	}
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()

	var wg sync.WaitGroup
	for _, entry := range entries {
		wg.Add(1)
		go func(e *cacheEntry) {
			defer wg.Done()

			// Entries still dialing are waited out before disposal.
			<-e.ready

			if e.client != nil {
				if err := e.client.Close(); err != nil {
					c.logger.Warn("failed to close server client", "key", e.key, "error", err)
				}
			}
			if e.process != nil {
				if err := e.process.Stop(closeGrace); err != nil {
					c.logger.Warn("failed to stop server process", "key", e.key, "error", err)
				}
			}
		}(entry)
	}
	wg.Wait()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
