package shared_registry

const (
	// DefaultMaxWorkers caps the broadcast worker pool.
	DefaultMaxWorkers = 4

	// DefaultParallelThreshold is the member count above which broadcasts are fanned out to workers.
	// Smaller groups are purged inline since a cache scan is cheaper than a task hand-off.
	DefaultParallelThreshold = 4
)

// RegistryBuilderOption is a functional option for configuring a Registry.
type RegistryBuilderOption func(r *sharedRegistry)

// WithBroadcastWorkers sets the number of goroutines used to fan out invalidation broadcasts.
// Values <= 0 are treated as 1.
//
// Parameters:
//   - n: worker count
//
// Returns:
//   - RegistryBuilderOption: option function to apply
func WithBroadcastWorkers(n int) RegistryBuilderOption {
	return func(r *sharedRegistry) {
		r.workers = max(n, 1)
	}
}

// WithParallelThreshold sets the member count above which broadcasts use the worker pool.
//
// Parameters:
//   - n: member count threshold, 0 to always fan out
//
// Returns:
//   - RegistryBuilderOption: option function to apply
func WithParallelThreshold(n int) RegistryBuilderOption {
	return func(r *sharedRegistry) {
		r.parallelThreshold = max(n, 0)
	}
}
