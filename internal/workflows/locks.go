package workflows

import (
	"sync"

	"github.com/google/uuid"
)

// workflowLocks serializes mutations per workflow. Atomicity is required at
// single-workflow granularity only, so each workflow gets its own mutex and
// operations on distinct workflows never contend. Entries are never evicted;
// a mutex per live workflow id is a negligible footprint for this service.
type workflowLocks struct {
	mu sync.Map
}

// Lock acquires the mutex for the given workflow and returns its unlock func.
func (l *workflowLocks) Lock(id uuid.UUID) func() {
	v, _ := l.mu.LoadOrStore(id, &sync.Mutex{})
	m := v.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}
