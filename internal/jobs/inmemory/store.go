package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/finpath/goalengine/internal/jobs"
)

// Store is an in-memory jobs.JobStore. Safe for concurrent use; state is
// lost on restart.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.EvaluateTransactionJob
	ids  []string // insertion order, for stable listings
}

// NewStore creates a new in-memory job store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*jobs.EvaluateTransactionJob),
	}
}

// SaveJob implements jobs.JobStore.
func (s *Store) SaveJob(ctx context.Context, job *jobs.EvaluateTransactionJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.JobID]; !exists {
		s.ids = append(s.ids, job.JobID)
	}
	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy
	return nil
}

// GetJob implements jobs.JobStore.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.EvaluateTransactionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs implements jobs.JobStore.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.EvaluateTransactionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*jobs.EvaluateTransactionJob
	for _, id := range s.ids {
		job := s.jobs[id]
		if filter.UserID != "" && job.Transaction.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		jobCopy := *job
		out = append(out, &jobCopy)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}
