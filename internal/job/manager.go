package job

import (
	"sync"

	"github.com/google/uuid"

	cserr "github.com/codescout-dev/codescout/internal/errors"
)

// Job is one claimed processing run.
type Job struct {
	// ID uniquely identifies this run.
	ID string

	// RepositoryID is the claimed repository.
	RepositoryID int64

	// Progress is the run's live progress tracker.
	Progress *Progress
}

// Manager enforces one active run per repository. Claims are atomic:
// a second claim while a run is live fails with ErrAlreadyProcessing
// instead of queuing.
type Manager struct {
	mu     sync.Mutex
	active map[int64]*Job
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{active: make(map[int64]*Job)}
}

// Claim reserves a repository for processing. Fails with
// ErrAlreadyProcessing when a run is already live for it.
func (m *Manager) Claim(repositoryID int64) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, busy := m.active[repositoryID]; busy {
		return nil, cserr.ErrAlreadyProcessing
	}

	job := &Job{
		ID:           uuid.NewString(),
		RepositoryID: repositoryID,
	}
	job.Progress = NewProgress(repositoryID, job.ID)
	m.active[repositoryID] = job
	return job, nil
}

// Release frees the repository's claim. Safe to call once per claim;
// releasing an unclaimed repository is a no-op.
func (m *Manager) Release(job *Job) {
	if job == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// Only the claim holder may release; a newer job keeps its claim.
	if current, ok := m.active[job.RepositoryID]; ok && current.ID == job.ID {
		delete(m.active, job.RepositoryID)
	}
}

// Active returns the live job for a repository, or nil.
func (m *Manager) Active(repositoryID int64) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[repositoryID]
}

// ActiveCount returns the number of live runs.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}
