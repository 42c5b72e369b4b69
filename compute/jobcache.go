package compute

import (
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/ruteri/verifiable-backends/interfaces"
)

// defaultJobTTL bounds how long a synchronous provider's cached
// responses stay addressable through the async job contract.
const defaultJobTTL = time.Hour

// cachedJob is the completed response of a synchronous provider,
// retained so Status, Result and Cancel can answer without a second
// network round trip.
type cachedJob struct {
	status interfaces.JobStatus
	result *interfaces.Result
	stored time.Time
}

// jobCache maps generated job identifiers to cached provider
// responses with a bounded TTL. It is safe for concurrent use.
type jobCache struct {
	mu   sync.Mutex
	jobs map[string]*cachedJob
	ttl  time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

func newJobCache(ttl time.Duration) *jobCache {
	if ttl <= 0 {
		ttl = defaultJobTTL
	}
	return &jobCache{
		jobs: make(map[string]*cachedJob),
		ttl:  ttl,
	}
}

func (c *jobCache) put(jobID string, job *cachedJob) {
	job.stored = time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked()
	c.jobs[jobID] = job
}

func (c *jobCache) get(jobID string) (*cachedJob, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.jobs[jobID]
	if !ok || time.Since(job.stored) > c.ttl {
		if ok {
			delete(c.jobs, jobID)
		}
		c.misses.Inc()
		return nil, false
	}
	c.hits.Inc()
	return job, true
}

// sweepLocked drops expired entries. Called with the lock held on
// every put, which bounds the map without a janitor goroutine.
func (c *jobCache) sweepLocked() {
	cutoff := time.Now().Add(-c.ttl)
	for id, job := range c.jobs {
		if job.stored.Before(cutoff) {
			delete(c.jobs, id)
		}
	}
}
