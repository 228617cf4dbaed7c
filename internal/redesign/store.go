package redesign

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/koios/arqia/pkg/models"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Store is the registry of in-flight jobs. It is the only state shared
// between concurrent operations.
type Store interface {
	Put(ctx context.Context, job models.Job) error
	// Get returns ErrJobNotFound for unknown ids.
	Get(ctx context.Context, id string) (models.Job, error)
	// Update atomically applies fn to the stored job. When fn returns an
	// error nothing is written and that error is returned.
	Update(ctx context.Context, id string, fn func(*models.Job) error) (models.Job, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps jobs in a mutex guarded map.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]models.Job
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]models.Job)}
}

func (s *MemoryStore) Put(ctx context.Context, job models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return models.Job{}, &Error{Kind: KindNotFound, JobID: id}
	}
	return job, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, fn func(*models.Job) error) (models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return models.Job{}, &Error{Kind: KindNotFound, JobID: id}
	}
	if err := fn(&job); err != nil {
		return job, err
	}
	s.jobs[id] = job
	return job, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

// Len returns the number of tracked jobs.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Sweep removes jobs not updated since cutoff and returns how many were removed.
func (s *MemoryStore) Sweep(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, job := range s.jobs {
		if job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// StartJanitor schedules a periodic sweep of abandoned jobs older than ttl.
// The returned scheduler must be stopped by the caller.
func StartJanitor(store *MemoryStore, spec string, ttl time.Duration, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if n := store.Sweep(time.Now().Add(-ttl)); n > 0 {
			logger.Info("Swept abandoned jobs", zap.Int("count", n))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid janitor schedule %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}
