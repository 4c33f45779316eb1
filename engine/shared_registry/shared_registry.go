package shared_registry

import (
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/resource_cache"
)

// Registry is the set of resource caches of every context sharing one object space.
// Membership changes and invalidation broadcasts may race freely: the member list has its own lock,
// held only while it is read or mutated, and each cache locks itself during invalidation.
type Registry interface {
	// AddContext allocates an empty cache for a new context, registers it and returns it.
	//
	// Parameters:
	//   - options: functional options for the new cache
	//
	// Returns:
	//   - resource_cache.ResourceCache: the registered cache
	AddContext(options ...resource_cache.ResourceCacheBuilderOption) resource_cache.ResourceCache

	// RemoveContext deregisters a cache. The cache itself is left untouched. Unknown caches are ignored.
	//
	// Parameters:
	//   - cache: the cache returned by AddContext
	RemoveContext(cache resource_cache.ResourceCache)

	// BroadcastInvalidate applies InvalidateHandle to every registered cache and returns once all of
	// them are purged, so the name may be released to the driver afterwards.
	//
	// Parameters:
	//   - name: the destroyed object name
	//   - isRenderbuffer: true if name is a renderbuffer
	BroadcastInvalidate(name uint32, isRenderbuffer bool)

	// Len returns the number of registered caches.
	//
	// Returns:
	//   - int: member count
	Len() int

	// Close stops the broadcast workers. Later broadcasts run on the calling goroutine.
	Close()
}

// sharedRegistry implements Registry. Broadcasts over more than parallelThreshold caches are fanned out
// across a worker pool with a WaitGroup barrier.
type sharedRegistry struct {
	mu      sync.Mutex
	members []resource_cache.ResourceCache
	taskID  int

	// poolMu keeps Close from stopping the pool while a fan-out is waiting on it.
	poolMu            sync.RWMutex
	closed            bool
	pool              worker.DynamicWorkerPool
	workers           int
	parallelThreshold int
}

var _ Registry = &sharedRegistry{}

// New creates an empty Registry with the specified options.
//
// Parameters:
//   - options: functional options to configure the registry
//
// Returns:
//   - Registry: the registry
func New(options ...RegistryBuilderOption) Registry {
	r := &sharedRegistry{
		workers:           min(runtime.NumCPU(), DefaultMaxWorkers),
		parallelThreshold: DefaultParallelThreshold,
	}
	for _, opt := range options {
		opt(r)
	}
	// Queue size accommodates a broadcast across every context of a large sharing group.
	r.pool = worker.NewDynamicWorkerPool(r.workers, 64, 1*time.Second)
	return r
}

func (r *sharedRegistry) AddContext(options ...resource_cache.ResourceCacheBuilderOption) resource_cache.ResourceCache {
	c := resource_cache.New(options...)

	r.mu.Lock()
	r.members = append(r.members, c)
	n := len(r.members)
	r.mu.Unlock()

	common.Logger().Debug("context cache registered", "members", n)
	return c
}

func (r *sharedRegistry) RemoveContext(cache resource_cache.ResourceCache) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := slices.Index(r.members, cache); i >= 0 {
		r.members = slices.Delete(r.members, i, i+1)
	}
}

func (r *sharedRegistry) BroadcastInvalidate(name uint32, isRenderbuffer bool) {
	r.mu.Lock()
	members := slices.Clone(r.members)
	firstID := r.taskID
	r.taskID += len(members)
	r.mu.Unlock()

	r.poolMu.RLock()
	defer r.poolMu.RUnlock()

	if r.closed || len(members) <= r.parallelThreshold {
		for _, c := range members {
			c.InvalidateHandle(name, isRenderbuffer)
		}
		return
	}

	// pool.Wait() blocks until workers idle out, so a WaitGroup provides the per-broadcast barrier.
	var wg sync.WaitGroup
	wg.Add(len(members))
	for i, c := range members {
		r.pool.SubmitTask(worker.Task{
			ID: firstID + i,
			Do: func() (any, error) {
				defer wg.Done()
				c.InvalidateHandle(name, isRenderbuffer)
				return nil, nil
			},
		})
	}
	wg.Wait()
}

func (r *sharedRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func (r *sharedRegistry) Close() {
	r.poolMu.Lock()
	defer r.poolMu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.pool.Stop()
}
