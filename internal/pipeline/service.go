package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/codescout-dev/codescout/internal/config"
	cserr "github.com/codescout-dev/codescout/internal/errors"
	"github.com/codescout-dev/codescout/internal/index"
	"github.com/codescout-dev/codescout/internal/job"
	"github.com/codescout-dev/codescout/internal/source"
	"github.com/codescout-dev/codescout/internal/store"
)

// Service is the entry point for repository processing. It owns the job
// manager, bounds concurrent runs to the configured worker count, and
// answers status and search queries.
type Service struct {
	cfg       *config.Config
	store     store.Store
	idx       index.SearchIndex
	publisher *index.Publisher
	manager   *job.Manager
	orch      *Orchestrator
	logger    *slog.Logger

	group *errgroup.Group

	// pending covers the gap between accepting a run and handing it to
	// the bounded group, so Wait cannot miss a just-accepted run.
	pending sync.WaitGroup

	runCtx  context.Context
	cancel  context.CancelFunc
	closeMu sync.Mutex
	closed  bool
}

// NewService wires a service from configuration and an opened store and
// search index.
func NewService(cfg *config.Config, st store.Store, idx index.SearchIndex, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	publisher := index.NewPublisher(idx, index.PublisherOptions{
		BatchSize:   cfg.Index.BatchSize,
		MaxAttempts: cfg.Index.MaxAttempts,
		Logger:      logger,
	})
	resolver := source.NewResolver(cfg.Source.CloneDir, cfg.Source.DefaultBranch, source.Options{
		MaxFileSize: cfg.Performance.MaxFileSize,
	})

	runCtx, cancel := context.WithCancel(context.Background())
	group := &errgroup.Group{}
	group.SetLimit(cfg.Performance.Workers)

	return &Service{
		cfg:       cfg,
		store:     st,
		idx:       idx,
		publisher: publisher,
		manager:   job.NewManager(),
		orch:      NewOrchestrator(cfg, st, resolver, publisher, logger),
		logger:    logger,
		group:     group,
		runCtx:    runCtx,
		cancel:    cancel,
	}
}

// ProcessOptions configures one processing request.
type ProcessOptions struct {
	// Branch overrides the repository's default branch.
	Branch string

	// Force reprocesses every file, ignoring recorded fingerprints.
	Force bool
}

// ProcessRepository registers the repository, claims it, and starts a
// background run. It returns the claimed job immediately; fails with
// ErrAlreadyProcessing when a run for the location is already live.
// When all workers are busy, the run waits for a slot while keeping its
// claim, so the caller still sees it as processing.
func (s *Service) ProcessRepository(ctx context.Context, location string, opts ProcessOptions) (*job.Job, error) {
	repo, claimed, err := s.register(ctx, location, opts)
	if err != nil {
		return nil, err
	}

	s.pending.Add(1)
	go func() {
		// group.Go blocks while all workers are busy; the claim is
		// already held, so callers see the run as processing meanwhile.
		defer s.pending.Done()
		s.group.Go(func() error {
			defer s.manager.Release(claimed)
			if err := s.orch.Run(s.runCtx, repo, claimed.Progress, opts.Force); err != nil {
				s.logger.Error("background run failed",
					slog.String("location", location),
					slog.String("error", err.Error()))
			}
			return nil
		})
	}()

	return claimed, nil
}

// ProcessRepositorySync registers, claims, and runs to completion on the
// calling goroutine. Used by the CLI where the caller wants the outcome.
func (s *Service) ProcessRepositorySync(ctx context.Context, location string, opts ProcessOptions) (*job.Job, error) {
	repo, claimed, err := s.register(ctx, location, opts)
	if err != nil {
		return nil, err
	}
	defer s.manager.Release(claimed)

	if err := s.orch.Run(ctx, repo, claimed.Progress, opts.Force); err != nil {
		return claimed, err
	}
	return claimed, nil
}

// register upserts the repository record and claims it for processing.
func (s *Service) register(ctx context.Context, location string, opts ProcessOptions) (*store.Repository, *job.Job, error) {
	branch := opts.Branch
	if branch == "" {
		branch = s.cfg.Source.DefaultBranch
	}

	repo, err := s.store.UpsertRepository(ctx, location, RepositoryName(location), branch)
	if err != nil {
		return nil, nil, err
	}

	claimed, err := s.manager.Claim(repo.ID)
	if err != nil {
		return nil, nil, err
	}

	if err := s.store.UpdateRepositoryStatus(ctx, repo.ID, store.StatusPending, ""); err != nil {
		s.manager.Release(claimed)
		return nil, nil, err
	}
	claimed.Progress.SetPhase(job.PhasePending)
	return repo, claimed, nil
}

// StatusPayload is the processing status answer for one repository.
type StatusPayload struct {
	RepositoryID   int64  `json:"repository_id"`
	RepositoryName string `json:"repository_name"`
	Status         string `json:"status"`
	Message        string `json:"message,omitempty"`

	// ProcessingProgress is overall completion in percent (0-100).
	ProcessingProgress float64 `json:"processing_progress"`

	FilesTotal     int  `json:"files_total"`
	FilesProcessed int  `json:"files_processed"`
	Truncated      bool `json:"truncated,omitempty"`

	// IndexReady reports whether the search index holds a usable snapshot.
	IndexReady bool `json:"index_ready"`

	// ToolReady reports whether search queries can be served for the
	// repository: a run has finished its indexing phase at some point.
	ToolReady bool `json:"tool_ready"`
}

// Status answers the processing status for a registered location.
// A live run's in-memory progress wins over the persisted record.
func (s *Service) Status(ctx context.Context, location string) (*StatusPayload, error) {
	repo, err := s.store.GetRepositoryByLocation(ctx, location)
	if err != nil {
		return nil, err
	}

	if active := s.manager.Active(repo.ID); active != nil {
		snap := active.Progress.Snapshot()
		return &StatusPayload{
			RepositoryID:       repo.ID,
			RepositoryName:     repo.Name,
			Status:             snap.Status,
			Message:            snap.Message,
			ProcessingProgress: snap.ProcessingProgress,
			FilesTotal:         snap.FilesTotal,
			FilesProcessed:     snap.FilesProcessed,
			Truncated:          snap.Truncated,
			IndexReady:         repo.IndexReady,
			ToolReady:          false,
		}, nil
	}

	progress := 0.0
	if repo.Status == store.StatusCompleted || repo.Status == store.StatusFailed {
		progress = 100.0
	}
	return &StatusPayload{
		RepositoryID:       repo.ID,
		RepositoryName:     repo.Name,
		Status:             repo.Status,
		Message:            repo.Message,
		ProcessingProgress: progress,
		FilesTotal:         repo.TotalFiles,
		FilesProcessed:     repo.ProcessedFiles,
		Truncated:          repo.Truncated,
		IndexReady:         repo.IndexReady,
		ToolReady:          repo.ToolReady,
	}, nil
}

// ListRepositories returns all registered repositories.
func (s *Service) ListRepositories(ctx context.Context) ([]*store.Repository, error) {
	return s.store.ListRepositories(ctx)
}

// Search queries the search index.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]*index.Hit, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.idx.Search(ctx, query, limit)
}

// DeleteRepository retracts everything the repository published and
// removes it from the store. Fails with ErrAlreadyProcessing while a run
// is live.
func (s *Service) DeleteRepository(ctx context.Context, location string) error {
	repo, err := s.store.GetRepositoryByLocation(ctx, location)
	if err != nil {
		return err
	}
	if s.manager.Active(repo.ID) != nil {
		return cserr.ErrAlreadyProcessing
	}

	ids, err := s.store.ListRepositoryObjectIDs(ctx, repo.ID)
	if err != nil {
		return err
	}
	// The summary record is not file-backed; retract it explicitly.
	ids = append(ids, repositoryObjectID(repo.ID))
	report, err := s.publisher.Retract(ctx, ids)
	if err != nil {
		return err
	}
	if report.Failed() {
		// Keep the records; deleting them now would strand the stale
		// documents with nothing left to retry the retraction.
		return cserr.New(cserr.ErrCodeIndexBatchFailure,
			fmt.Sprintf("%d retraction batches failed, repository kept for retry", report.FailedBatches), nil)
	}
	return s.store.DeleteRepository(ctx, repo.ID)
}

// Wait blocks until all started background runs finish.
func (s *Service) Wait() {
	s.pending.Wait()
	_ = s.group.Wait()
}

// Close cancels live runs, waits for them, and releases the index.
// The store is owned by the caller and stays open.
func (s *Service) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	s.cancel()
	s.pending.Wait()
	_ = s.group.Wait()
	return s.idx.Close()
}
