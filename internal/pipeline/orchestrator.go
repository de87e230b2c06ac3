// Package pipeline runs repository processing end to end: discover the
// source files, parse and extract entities, publish documents to the
// search index, and reconcile stored state.
//
// A run moves through pending, discovering, parsing, indexing and
// finalizing before landing on completed or failed. Only source fetch
// failures are fatal; per-file and per-batch problems are absorbed into
// run counters so a mostly-good repository still completes.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/codescout-dev/codescout/internal/config"
	"github.com/codescout-dev/codescout/internal/entity"
	cserr "github.com/codescout-dev/codescout/internal/errors"
	"github.com/codescout-dev/codescout/internal/fingerprint"
	"github.com/codescout-dev/codescout/internal/index"
	"github.com/codescout-dev/codescout/internal/job"
	"github.com/codescout-dev/codescout/internal/lang"
	"github.com/codescout-dev/codescout/internal/source"
	"github.com/codescout-dev/codescout/internal/store"
)

// Orchestrator executes one processing run at a time. It is stateless
// between runs; all durable state lives in the store and the index.
type Orchestrator struct {
	cfg       *config.Config
	store     store.Store
	resolver  *source.Resolver
	registry  *lang.Registry
	publisher *index.Publisher
	logger    *slog.Logger
}

// NewOrchestrator assembles an orchestrator from its collaborators.
func NewOrchestrator(cfg *config.Config, st store.Store, resolver *source.Resolver, publisher *index.Publisher, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:       cfg,
		store:     st,
		resolver:  resolver,
		registry:  lang.DefaultRegistry(),
		publisher: publisher,
		logger:    logger,
	}
}

// runCounters accumulate per-file outcomes across a run.
type runCounters struct {
	indexed       int
	skipped       int
	unsupported   int
	parseFailures int
	failedBatches int
	retracted     int
	truncated     bool

	// confirmed counts index operations acknowledged by the backend.
	// Index readiness requires at least one confirmed batch.
	confirmed int
}

// summary renders the terminal message for the run.
func (c *runCounters) summary(total int) string {
	msg := fmt.Sprintf("processed %d files: %d indexed, %d skipped, %d unsupported, %d parse failures",
		total, c.indexed, c.skipped, c.unsupported, c.parseFailures)
	if c.retracted > 0 {
		msg += fmt.Sprintf(", %d records retracted", c.retracted)
	}
	if c.failedBatches > 0 {
		msg += fmt.Sprintf(", %d index batches failed", c.failedBatches)
	}
	if c.truncated {
		msg += fmt.Sprintf(", truncated at %d files", total)
	}
	return msg
}

// fileOutcome carries a parsed file's results into the indexing phase.
type fileOutcome struct {
	record   *store.CodeFile
	docs     []*index.Document
	entities []*store.CodeEntity

	// staleIDs are previously recorded identifiers no longer produced by
	// the file. They are retracted before the new documents go live.
	staleIDs []string
}

// Run processes one repository snapshot.
func (o *Orchestrator) Run(ctx context.Context, repo *store.Repository, progress *job.Progress, force bool) error {
	logger := o.logger.With(
		slog.Int64("repository_id", repo.ID),
		slog.String("repository", repo.Name))
	started := time.Now()

	files, counters, err := o.discover(ctx, repo, progress)
	if err != nil {
		return o.fail(repo.ID, progress, logger, err)
	}

	outcomes, seen, err := o.parse(ctx, repo, progress, files, counters, force)
	if err != nil {
		return o.fail(repo.ID, progress, logger, err)
	}

	if err := o.publish(ctx, repo, progress, outcomes, counters); err != nil {
		return o.fail(repo.ID, progress, logger, err)
	}

	if err := o.finalize(ctx, repo, progress, seen, counters); err != nil {
		return o.fail(repo.ID, progress, logger, err)
	}

	message := counters.summary(len(files))
	progress.Finish(job.PhaseCompleted, message)
	o.persistTerminal(repo.ID, store.StatusCompleted, message)
	logger.Info("processing completed",
		slog.String("summary", message),
		slog.Duration("elapsed", time.Since(started)))
	return nil
}

// discover fetches the repository snapshot and applies the file ceiling.
func (o *Orchestrator) discover(ctx context.Context, repo *store.Repository, progress *job.Progress) ([]source.File, *runCounters, error) {
	o.setPhase(ctx, repo.ID, progress, job.PhaseDiscovering)

	src, err := o.resolver.Resolve(repo.Location, repo.Branch)
	if err != nil {
		return nil, nil, err
	}

	fetchCtx := ctx
	if o.cfg.Source.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, o.cfg.Source.FetchTimeout)
		defer cancel()
	}

	files, err := src.Files(fetchCtx)
	if err != nil {
		return nil, nil, err
	}

	counters := &runCounters{}
	if max := o.cfg.Performance.MaxFiles; max > 0 && len(files) > max {
		files = files[:max]
		counters.truncated = true
	}

	progress.SetTotals(len(files), counters.truncated)
	if err := o.store.UpdateRepositoryProgress(ctx, repo.ID, len(files), 0, counters.truncated); err != nil {
		return nil, nil, err
	}
	return files, counters, nil
}

// parse walks the snapshot, skipping unchanged files by fingerprint and
// absorbing per-file parse failures.
func (o *Orchestrator) parse(ctx context.Context, repo *store.Repository, progress *job.Progress, files []source.File, counters *runCounters, force bool) ([]*fileOutcome, map[string]bool, error) {
	o.setPhase(ctx, repo.ID, progress, job.PhaseParsing)

	parser := lang.NewParserWithRegistry(o.registry)
	defer parser.Close()
	extractor := entity.NewExtractorWithRegistry(o.registry)

	var outcomes []*fileOutcome
	seen := make(map[string]bool, len(files))

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, nil, cserr.New(cserr.ErrCodeRunCancelled, "processing cancelled", err)
		}
		seen[file.Path] = true

		outcome := o.processFile(ctx, repo, parser, extractor, file, counters, force)
		if outcome != nil {
			outcomes = append(outcomes, outcome)
		}

		progress.UpdateProcessed(i + 1)
		if err := o.store.UpdateRepositoryProgress(ctx, repo.ID, len(files), i+1, counters.truncated); err != nil {
			return nil, nil, err
		}
	}
	return outcomes, seen, nil
}

// processFile parses one file and prepares its index documents.
// A nil return means the file produced no indexing work (unchanged,
// unsupported, or unparseable).
func (o *Orchestrator) processFile(ctx context.Context, repo *store.Repository, parser *lang.Parser, extractor *entity.Extractor, file source.File, counters *runCounters, force bool) *fileOutcome {
	logger := o.logger.With(
		slog.Int64("repository_id", repo.ID),
		slog.String("path", file.Path))

	language, supported := o.registry.Detect(file.Path, file.Content)
	if !supported {
		counters.unsupported++
		logger.Debug("skipping unsupported file", slog.String("language", language))
		return nil
	}

	existing, err := o.store.GetFile(ctx, repo.ID, file.Path)
	if err != nil && cserr.CodeOf(err) != cserr.ErrCodeNotFound {
		logger.Warn("failed to load file record", slog.String("error", err.Error()))
		existing = nil
	}

	if !force && existing != nil && existing.Analyzed &&
		fingerprint.Matches(file.Content, existing.Fingerprint) {
		counters.skipped++
		return nil
	}

	parseCtx := ctx
	if o.cfg.Performance.ParseTimeout > 0 {
		var cancel context.CancelFunc
		parseCtx, cancel = context.WithTimeout(ctx, o.cfg.Performance.ParseTimeout)
		defer cancel()
	}

	tree, err := parser.Parse(parseCtx, file.Content, language)
	if err != nil {
		counters.parseFailures++
		logger.Warn("parse failed, continuing", slog.String("error", err.Error()))
		return nil
	}

	entities := extractor.Extract(tree)
	docs := buildDocuments(repo, file.Path, language, entities)

	newIDs := make(map[string]bool, len(docs))
	records := make([]*store.CodeEntity, 0, len(docs))
	for _, doc := range docs {
		newIDs[doc.ObjectID] = true
		records = append(records, &store.CodeEntity{
			ObjectID:  doc.ObjectID,
			Kind:      doc.EntityType,
			Name:      doc.EntityName,
			StartLine: doc.LineNumber,
		})
	}

	var staleIDs []string
	if existing != nil {
		oldIDs, err := o.store.ListFileObjectIDs(ctx, existing.ID)
		if err != nil {
			logger.Warn("failed to load recorded identifiers", slog.String("error", err.Error()))
		}
		for _, id := range oldIDs {
			if !newIDs[id] {
				staleIDs = append(staleIDs, id)
			}
		}
	}

	return &fileOutcome{
		record: &store.CodeFile{
			RepositoryID: repo.ID,
			Path:         file.Path,
			Fingerprint:  fingerprint.Of(file.Content),
			Language:     language,
			LineCount:    countLines(file.Content),
			EntityCount:  len(entities),
		},
		docs:     docs,
		entities: records,
		staleIDs: staleIDs,
	}
}

// publish retracts stale identifiers, submits the new documents, and
// persists per-file state. Files caught in failed batches stay marked
// unanalyzed so the next run republishes them.
func (o *Orchestrator) publish(ctx context.Context, repo *store.Repository, progress *job.Progress, outcomes []*fileOutcome, counters *runCounters) error {
	o.setPhase(ctx, repo.ID, progress, job.PhaseIndexing)

	var stale []string
	var docs []*index.Document
	for _, outcome := range outcomes {
		stale = append(stale, outcome.staleIDs...)
		docs = append(docs, outcome.docs...)
	}

	retractReport, err := o.publisher.Retract(ctx, stale)
	if err != nil {
		return cserr.New(cserr.ErrCodeRunCancelled, "processing cancelled", err)
	}
	counters.retracted += retractReport.Retracted
	counters.failedBatches += retractReport.FailedBatches
	counters.confirmed += retractReport.Retracted

	publishReport, err := o.publisher.Publish(ctx, docs)
	if err != nil {
		return cserr.New(cserr.ErrCodeRunCancelled, "processing cancelled", err)
	}
	counters.failedBatches += publishReport.FailedBatches
	counters.confirmed += publishReport.Published

	failedPaths := make(map[string]bool, len(publishReport.FailedPaths))
	for _, path := range publishReport.FailedPaths {
		failedPaths[path] = true
	}
	failedRetractions := make(map[string]bool, len(retractReport.FailedIDs))
	for _, id := range retractReport.FailedIDs {
		failedRetractions[id] = true
	}

	for _, outcome := range outcomes {
		retractionLost := false
		for _, id := range outcome.staleIDs {
			if failedRetractions[id] {
				retractionLost = true
				break
			}
		}

		outcome.record.Analyzed = !failedPaths[outcome.record.Path] && !retractionLost
		if outcome.record.Analyzed {
			counters.indexed++
		}
		if err := o.store.UpsertFile(ctx, outcome.record); err != nil {
			return err
		}
		if retractionLost {
			// Keep the old recorded identifiers. The file is unanalyzed,
			// so the next run recomputes the same stale set and retries
			// the retraction.
			continue
		}
		if err := o.store.ReplaceEntities(ctx, outcome.record.ID, outcome.entities); err != nil {
			return err
		}
	}
	return nil
}

// orphanFile is a stored file that vanished from the snapshot, paired
// with the identifiers it published.
type orphanFile struct {
	file *store.CodeFile
	ids  []string
}

// finalize retracts records of files that vanished from the snapshot
// and persists the repository's readiness flags.
func (o *Orchestrator) finalize(ctx context.Context, repo *store.Repository, progress *job.Progress, seen map[string]bool, counters *runCounters) error {
	o.setPhase(ctx, repo.ID, progress, job.PhaseFinalizing)

	stored, err := o.store.ListFiles(ctx, repo.ID)
	if err != nil {
		return err
	}

	var orphanIDs []string
	var orphans []orphanFile
	for _, file := range stored {
		if seen[file.Path] {
			continue
		}
		ids, err := o.store.ListFileObjectIDs(ctx, file.ID)
		if err != nil {
			return err
		}
		orphanIDs = append(orphanIDs, ids...)
		orphans = append(orphans, orphanFile{file: file, ids: ids})
	}

	failedRetractions := map[string]bool{}
	if len(orphanIDs) > 0 {
		report, err := o.publisher.Retract(ctx, orphanIDs)
		if err != nil {
			return cserr.New(cserr.ErrCodeRunCancelled, "processing cancelled", err)
		}
		counters.retracted += report.Retracted
		counters.failedBatches += report.FailedBatches
		counters.confirmed += report.Retracted
		for _, id := range report.FailedIDs {
			failedRetractions[id] = true
		}
	}
	for _, orphan := range orphans {
		retractionLost := false
		for _, id := range orphan.ids {
			if failedRetractions[id] {
				retractionLost = true
				break
			}
		}
		if retractionLost {
			// The row survives so the next run sees the orphan again and
			// retries the retraction.
			continue
		}
		if err := o.store.DeleteFile(ctx, orphan.file.ID); err != nil {
			return err
		}
	}

	// One summary record per repository rides alongside the entity
	// records; search clients use it to list indexed repositories.
	report, err := o.publisher.Publish(ctx, []*index.Document{repositoryDocument(repo)})
	if err != nil {
		return cserr.New(cserr.ErrCodeRunCancelled, "processing cancelled", err)
	}
	counters.failedBatches += report.FailedBatches
	counters.confirmed += report.Published

	// Index readiness requires at least one confirmed batch; tool
	// readiness follows from reaching finalizing at all, partial batch
	// failures included.
	return o.store.SetRepositoryReady(ctx, repo.ID, counters.confirmed > 0, true)
}

// repositoryObjectID is the index identifier of a repository's summary
// record.
func repositoryObjectID(repoID int64) string {
	return fmt.Sprintf("repo_%d", repoID)
}

// repositoryDocument builds the per-repository summary record.
func repositoryDocument(repo *store.Repository) *index.Document {
	return &index.Document{
		ObjectID:       repositoryObjectID(repo.ID),
		Title:          repo.Name,
		Content:        fmt.Sprintf("Repository %s at %s (branch %s)", repo.Name, repo.Location, repo.Branch),
		EntityType:     "repository",
		EntityName:     repo.Name,
		RepositoryID:   repo.ID,
		RepositoryName: repo.Name,
		Tags:           []string{"repository"},
	}
}

// setPhase advances both the live progress and the persisted status.
func (o *Orchestrator) setPhase(ctx context.Context, repoID int64, progress *job.Progress, phase job.Phase) {
	progress.SetPhase(phase)
	if err := o.store.UpdateRepositoryStatus(ctx, repoID, string(phase), ""); err != nil {
		o.logger.Warn("failed to persist phase",
			slog.Int64("repository_id", repoID),
			slog.String("phase", string(phase)),
			slog.String("error", err.Error()))
	}
}

// fail lands the run on the failed status with the error as message.
func (o *Orchestrator) fail(repoID int64, progress *job.Progress, logger *slog.Logger, err error) error {
	message := err.Error()
	progress.Finish(job.PhaseFailed, message)
	o.persistTerminal(repoID, store.StatusFailed, message)
	logger.Error("processing failed", slog.String("error", message))
	return err
}

// persistTerminal writes the terminal status with a fresh context so a
// cancelled run context cannot lose the outcome.
func (o *Orchestrator) persistTerminal(repoID int64, status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.store.UpdateRepositoryStatus(ctx, repoID, status, message); err != nil {
		o.logger.Warn("failed to persist terminal status",
			slog.Int64("repository_id", repoID),
			slog.String("error", err.Error()))
	}
}

// countLines counts the lines of a file; a missing trailing newline
// still counts its last line.
func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := bytes.Count(content, []byte{'\n'})
	if content[len(content)-1] != '\n' {
		n++
	}
	return n
}

// buildDocuments turns a file's entities into index documents.
func buildDocuments(repo *store.Repository, path, language string, entities []*entity.Entity) []*index.Document {
	docs := make([]*index.Document, 0, len(entities))
	for _, e := range entities {
		docs = append(docs, &index.Document{
			ObjectID:       entity.ObjectID(repo.ID, path, e.Kind, e.Name, e.StartLine),
			Title:          fmt.Sprintf("%s: %s", e.Kind, e.Name),
			Content:        e.Content,
			EntityType:     string(e.Kind),
			EntityName:     e.Name,
			Language:       language,
			FilePath:       path,
			LineNumber:     e.StartLine,
			EndLine:        e.EndLine,
			Signature:      e.Signature,
			RepositoryID:   repo.ID,
			RepositoryName: repo.Name,
			Tags:           []string{string(e.Kind), language},
			Keywords:       e.Parameters,
		})
	}
	return docs
}

// RepositoryName derives a display name from a repository location.
func RepositoryName(location string) string {
	trimmed := strings.TrimSuffix(strings.TrimRight(location, "/"), ".git")
	trimmed = strings.TrimPrefix(trimmed, "file://")
	name := filepath.Base(trimmed)
	if idx := strings.LastIndex(name, ":"); idx != -1 {
		name = name[idx+1:]
	}
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "repository"
	}
	return name
}
