package providers

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// ErrNotFound is returned for keys with no registered provider
var ErrNotFound = errors.New("provider not found")

// ProviderInfo contains a registered provider and its description.
type ProviderInfo struct {
	Key         string
	Description string
	Provider    FeedProvider
}

// ProviderRegistry manages registered feed providers.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[string]*ProviderInfo
}

// NewProviderRegistry creates a new provider registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]*ProviderInfo),
	}
}

// Register adds a provider under its metadata key.
func (r *ProviderRegistry) Register(p FeedProvider, description string) error {
	key := p.Metadata().Key
	if key == "" {
		return errors.New("provider has an empty key")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[key]; exists {
		return fmt.Errorf("provider %s is already registered", key)
	}

	r.providers[key] = &ProviderInfo{Key: key, Description: description, Provider: p}
	slog.Debug("Registered provider", "key", key, "kind", p.Metadata().Kind)
	return nil
}

// Get retrieves a provider by key.
func (r *ProviderRegistry) Get(key string) (*ProviderInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, exists := r.providers[key]
	if !exists {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}

	return info, nil
}

// List returns all registered keys in sorted order.
func (r *ProviderRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.providers))
	for key := range r.providers {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	return keys
}

// Len returns the number of registered providers
func (r *ProviderRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}
