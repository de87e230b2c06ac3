package index

import (
	"context"
	"log/slog"
	"sort"
	"time"

	cserr "github.com/codescout-dev/codescout/internal/errors"
)

// Publisher submits documents to a SearchIndex in bounded batches with
// per-batch retry. A batch that exhausts its attempts is reported and
// skipped; later batches still go out, so one bad batch never sinks a
// whole run.
type Publisher struct {
	index       SearchIndex
	batchSize   int
	retryConfig cserr.RetryConfig
	logger      *slog.Logger
}

// PublisherOptions configures a Publisher.
type PublisherOptions struct {
	// BatchSize caps the number of operations per batch submission.
	BatchSize int

	// MaxAttempts is the total submission attempts per batch.
	MaxAttempts int

	// Logger receives per-batch outcomes. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewPublisher creates a publisher over idx.
func NewPublisher(idx SearchIndex, opts PublisherOptions) *Publisher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	retry := cserr.DefaultRetryConfig()
	retry.MaxRetries = opts.MaxAttempts - 1

	return &Publisher{
		index:       idx,
		batchSize:   opts.BatchSize,
		retryConfig: retry,
		logger:      opts.Logger,
	}
}

// Report summarizes a publish or retract pass.
type Report struct {
	// Published is the number of documents confirmed saved.
	Published int

	// Retracted is the number of identifiers confirmed deleted.
	Retracted int

	// FailedBatches counts batches that exhausted their retry budget.
	FailedBatches int

	// FailedPaths lists the file paths whose documents were in failed
	// batches, deduplicated and sorted. Their files must be republished
	// on the next run.
	FailedPaths []string

	// FailedIDs lists the identifiers whose retraction batch was lost.
	// Their recorded rows must survive so a later run retries the
	// retraction; otherwise the stale documents linger forever.
	FailedIDs []string
}

// Failed reports whether any batch was lost.
func (r *Report) Failed() bool {
	return r.FailedBatches > 0
}

// Publish submits docs in batches. In-batch duplicates by ObjectID
// collapse to the last occurrence, matching the hosted index's
// last-write-wins upsert semantics.
func (p *Publisher) Publish(ctx context.Context, docs []*Document) (*Report, error) {
	report := &Report{}
	failedPaths := map[string]bool{}

	for start := 0; start < len(docs); start += p.batchSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		end := start + p.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := dedupeByObjectID(docs[start:end])

		started := time.Now()
		err := cserr.Retry(ctx, p.retryConfig, func() error {
			return p.index.SaveObjects(ctx, batch)
		})
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.FailedBatches++
			for _, doc := range batch {
				failedPaths[doc.FilePath] = true
			}
			p.logger.Error("index batch failed",
				slog.Int("batch_size", len(batch)),
				slog.String("error", err.Error()))
			continue
		}

		report.Published += len(batch)
		p.logger.Debug("index batch published",
			slog.Int("batch_size", len(batch)),
			slog.Duration("elapsed", time.Since(started)))
	}

	report.FailedPaths = sortedKeys(failedPaths)
	return report, nil
}

// Retract deletes identifiers in batches with the same retry policy.
func (p *Publisher) Retract(ctx context.Context, objectIDs []string) (*Report, error) {
	report := &Report{}

	for start := 0; start < len(objectIDs); start += p.batchSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		end := start + p.batchSize
		if end > len(objectIDs) {
			end = len(objectIDs)
		}
		batch := objectIDs[start:end]

		err := cserr.Retry(ctx, p.retryConfig, func() error {
			return p.index.DeleteObjects(ctx, batch)
		})
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.FailedBatches++
			report.FailedIDs = append(report.FailedIDs, batch...)
			p.logger.Error("retraction batch failed",
				slog.Int("batch_size", len(batch)),
				slog.String("error", err.Error()))
			continue
		}
		report.Retracted += len(batch)
	}

	return report, nil
}

// dedupeByObjectID collapses duplicate identifiers to the last
// occurrence, preserving first-seen order.
func dedupeByObjectID(docs []*Document) []*Document {
	seen := make(map[string]int, len(docs))
	out := make([]*Document, 0, len(docs))
	for _, doc := range docs {
		if pos, ok := seen[doc.ObjectID]; ok {
			out[pos] = doc
			continue
		}
		seen[doc.ObjectID] = len(out)
		out = append(out, doc)
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
