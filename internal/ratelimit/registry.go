package ratelimit

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultRegistrySize = 10_000

// Registry hands out one Limiter per storage key, all built from the same
// template config. It keeps at most size limiters; an evicted limiter is
// rebuilt from storage on next use. It is safe for concurrent use; building a
// limiter for a new key never blocks lookups of cached ones.
type Registry struct {
	storage  Storage
	template Config
	opts     []Option
	cache    *lru.Cache[string, *Limiter]
}

// NewRegistry creates a registry. The template's StorageKey is ignored.
func NewRegistry(storage Storage, template Config, size int, opts ...Option) (*Registry, error) {
	if storage == nil {
		return nil, ErrStorageRequired
	}

	if _, err := template.Normalize(); err != nil {
		return nil, err
	}

	if size <= 0 {
		size = DefaultRegistrySize
	}

	cache, err := lru.New[string, *Limiter](size)
	if err != nil {
		return nil, err
	}

	return &Registry{
		storage:  storage,
		template: template,
		opts:     opts,
		cache:    cache,
	}, nil
}

// Limiter returns the limiter for key, creating it on first use. When two
// callers build the same key concurrently, the first one cached wins.
func (r *Registry) Limiter(ctx context.Context, key string) (*Limiter, error) {
	if l, ok := r.cache.Get(key); ok {
		return l, nil
	}

	cfg := r.template
	cfg.StorageKey = key

	l, err := NewLimiter(ctx, r.storage, cfg, r.opts...)
	if err != nil {
		return nil, err
	}

	if previous, ok, _ := r.cache.PeekOrAdd(key, l); ok {
		return previous, nil
	}

	return l, nil
}

// Len returns the number of cached limiters.
func (r *Registry) Len() int {
	return r.cache.Len()
}
