package CG

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sqlvibe/fnvm/internal/VM"
)

// PlanCache is a thread-safe cache of compiled plans. Compiler keys it by
// plan text qualified with the catalog and row schema.
// Compiled code is immutable, so one entry may be evaluated by any number of
// evaluators at once.
type PlanCache struct {
	mu    sync.RWMutex
	data  map[string]*cachedPlan
	limit int
}

type cachedPlan struct {
	code      VM.Code
	createdAt time.Time
	hits      int64 // updated atomically
}

// NewPlanCache creates a PlanCache that holds at most limit entries.
// A zero or negative limit disables eviction.
func NewPlanCache(limit int) *PlanCache {
	return &PlanCache{
		data:  make(map[string]*cachedPlan),
		limit: limit,
	}
}

// Get returns the cached code for plan and counts the hit.
func (pc *PlanCache) Get(plan string) (VM.Code, bool) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	if p, ok := pc.data[plan]; ok {
		atomic.AddInt64(&p.hits, 1)
		return p.code, true
	}
	return nil, false
}

// Put stores code under plan. When the cache is full the oldest entry is
// evicted.
func (pc *PlanCache) Put(plan string, code VM.Code) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if _, ok := pc.data[plan]; !ok && pc.limit > 0 && len(pc.data) >= pc.limit {
		pc.evictOldest()
	}
	pc.data[plan] = &cachedPlan{
		code:      code,
		createdAt: time.Now(),
	}
}

// Hits returns how often plan was served from the cache.
func (pc *PlanCache) Hits(plan string) int64 {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	if p, ok := pc.data[plan]; ok {
		return atomic.LoadInt64(&p.hits)
	}
	return 0
}

func (pc *PlanCache) Len() int {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return len(pc.data)
}

// Invalidate removes all entries, e.g. after the registry they were compiled
// against is replaced.
func (pc *PlanCache) Invalidate() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.data = make(map[string]*cachedPlan)
}

// evictOldest removes the entry with the earliest createdAt.
// Caller must hold mu.Lock().
func (pc *PlanCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	first := true
	for k, v := range pc.data {
		if first || v.createdAt.Before(oldestTime) {
			oldestKey = k
			oldestTime = v.createdAt
			first = false
		}
	}
	if !first {
		delete(pc.data, oldestKey)
	}
}
