package session

import (
	"github.com/Carmen-Shannon/oxy-frame/engine/shared_registry"
)

// SessionBuilderOption is a functional option for configuring a Session.
// Use the With* functions to create options that are applied directly to the session instance.
type SessionBuilderOption func(s *session)

// WithCacheCapacity bounds the session's vertex array and framebuffer caches. Shared sessions inherit it.
// Values <= 0 keep resource_cache.DefaultCapacity.
//
// Parameters:
//   - capacity: maximum entries per store
//
// Returns:
//   - SessionBuilderOption: option function to apply
func WithCacheCapacity(capacity int) SessionBuilderOption {
	return func(s *session) {
		s.cacheCapacity = capacity
	}
}

// WithRegistryOptions configures the shared registry created for a root session's object space.
//
// Parameters:
//   - options: registry options
//
// Returns:
//   - SessionBuilderOption: option function to apply
func WithRegistryOptions(options ...shared_registry.RegistryBuilderOption) SessionBuilderOption {
	return func(s *session) {
		s.registryOptions = append(s.registryOptions, options...)
	}
}
