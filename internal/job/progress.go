// Package job tracks processing runs: one atomic claim per repository
// and thread-safe progress visible to status queries while a run is live.
package job

import (
	"sync"
	"time"
)

// Phase is a processing run's lifecycle phase.
type Phase string

const (
	PhasePending     Phase = "pending"
	PhaseDiscovering Phase = "discovering"
	PhaseParsing     Phase = "parsing"
	PhaseIndexing    Phase = "indexing"
	PhaseFinalizing  Phase = "finalizing"
	PhaseCompleted   Phase = "completed"
	PhaseFailed      Phase = "failed"
)

// Terminal reports whether the phase ends the run.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// phaseWeight maps each phase onto its slice of the 0-100 progress range.
// Parsing dominates wall time, so it gets the bulk.
var phaseWeight = map[Phase]struct{ base, span float64 }{
	PhasePending:     {0, 0},
	PhaseDiscovering: {0, 10},
	PhaseParsing:     {10, 70},
	PhaseIndexing:    {80, 15},
	PhaseFinalizing:  {95, 5},
	PhaseCompleted:   {100, 0},
	PhaseFailed:      {100, 0},
}

// Snapshot is an immutable view of a run's progress.
type Snapshot struct {
	RepositoryID int64  `json:"repository_id"`
	JobID        string `json:"job_id"`
	Status       string `json:"status"`
	Message      string `json:"message,omitempty"`

	// ProcessingProgress is the overall completion in percent (0-100).
	ProcessingProgress float64 `json:"processing_progress"`

	FilesTotal     int  `json:"files_total"`
	FilesProcessed int  `json:"files_processed"`
	Truncated      bool `json:"truncated,omitempty"`

	ElapsedSeconds int `json:"elapsed_seconds"`
}

// Progress tracks one run's state. All methods are safe for concurrent
// use; readers get point-in-time snapshots.
type Progress struct {
	mu sync.RWMutex

	repositoryID   int64
	jobID          string
	phase          Phase
	message        string
	filesTotal     int
	filesProcessed int
	truncated      bool
	startTime      time.Time
}

// NewProgress creates a tracker starting in the pending phase.
func NewProgress(repositoryID int64, jobID string) *Progress {
	return &Progress{
		repositoryID: repositoryID,
		jobID:        jobID,
		phase:        PhasePending,
		startTime:    time.Now(),
	}
}

// SetPhase advances the run to a new phase.
func (p *Progress) SetPhase(phase Phase) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phase = phase
}

// SetTotals records the discovered file count and the truncation flag.
func (p *Progress) SetTotals(total int, truncated bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filesTotal = total
	p.truncated = truncated
}

// UpdateProcessed sets the processed-file counter. Counters only move
// forward; a stale update never regresses visible progress.
func (p *Progress) UpdateProcessed(processed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if processed > p.filesProcessed {
		p.filesProcessed = processed
	}
}

// Finish moves the run to a terminal phase with its outcome message.
func (p *Progress) Finish(phase Phase, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phase = phase
	p.message = message
}

// Phase returns the current phase.
func (p *Progress) Phase() Phase {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.phase
}

// Snapshot returns an immutable copy of the current state.
func (p *Progress) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return Snapshot{
		RepositoryID:       p.repositoryID,
		JobID:              p.jobID,
		Status:             string(p.phase),
		Message:            p.message,
		ProcessingProgress: p.percent(),
		FilesTotal:         p.filesTotal,
		FilesProcessed:     p.filesProcessed,
		Truncated:          p.truncated,
		ElapsedSeconds:     int(time.Since(p.startTime).Seconds()),
	}
}

// percent maps phase plus intra-phase completion to 0-100.
// Callers must hold at least a read lock.
func (p *Progress) percent() float64 {
	w := phaseWeight[p.phase]
	if w.span == 0 || p.filesTotal == 0 {
		return w.base
	}
	frac := float64(p.filesProcessed) / float64(p.filesTotal)
	if frac > 1 {
		frac = 1
	}
	return w.base + w.span*frac
}
