package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codescout-dev/codescout/internal/config"
	cserr "github.com/codescout-dev/codescout/internal/errors"
)

// RemoteIndex implements SearchIndex against a hosted search service
// speaking the Algolia-style REST protocol: batched writes through
// POST /1/indexes/<name>/batch and queries through
// POST /1/indexes/<name>/query.
type RemoteIndex struct {
	endpoint  string
	appID     string
	apiKey    string
	indexName string
	client    *http.Client
}

// NewRemoteIndex creates a client for the configured hosted index.
func NewRemoteIndex(cfg config.IndexConfig) *RemoteIndex {
	timeout := cfg.BatchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteIndex{
		endpoint:  strings.TrimSuffix(cfg.Endpoint, "/"),
		appID:     cfg.AppID,
		apiKey:    cfg.APIKey,
		indexName: cfg.IndexName,
		client:    &http.Client{Timeout: timeout},
	}
}

// batchRequest is one operation inside a batch submission.
type batchRequest struct {
	Action string `json:"action"`
	Body   any    `json:"body"`
}

// batchPayload is the wire shape of a batch submission.
type batchPayload struct {
	Requests []batchRequest `json:"requests"`
}

// SaveObjects upserts documents by ObjectID in a single batch call.
func (r *RemoteIndex) SaveObjects(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}
	requests := make([]batchRequest, 0, len(docs))
	for _, doc := range docs {
		requests = append(requests, batchRequest{Action: "updateObject", Body: doc})
	}
	return r.submitBatch(ctx, requests)
}

// DeleteObjects removes records by ObjectID in a single batch call.
// The hosted service treats unknown identifiers as no-ops.
func (r *RemoteIndex) DeleteObjects(ctx context.Context, objectIDs []string) error {
	if len(objectIDs) == 0 {
		return nil
	}
	requests := make([]batchRequest, 0, len(objectIDs))
	for _, id := range objectIDs {
		requests = append(requests, batchRequest{
			Action: "deleteObject",
			Body:   map[string]string{"objectID": id},
		})
	}
	return r.submitBatch(ctx, requests)
}

// submitBatch posts one batch to the service. Server-side (5xx) and
// transport failures come back retryable; client-side rejections (4xx)
// do not, since resubmitting the same payload cannot succeed.
func (r *RemoteIndex) submitBatch(ctx context.Context, requests []batchRequest) error {
	body, err := json.Marshal(batchPayload{Requests: requests})
	if err != nil {
		return cserr.New(cserr.ErrCodeIndexBatchFailure, "failed to encode batch", err)
	}

	resp, err := r.post(ctx, fmt.Sprintf("/1/indexes/%s/batch", url.PathEscape(r.indexName)), body)
	if err != nil {
		return cserr.New(cserr.ErrCodeIndexBatchFailure, "batch submission failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail := readErrorBody(resp.Body)
	perr := cserr.New(cserr.ErrCodeIndexBatchFailure,
		fmt.Sprintf("batch rejected with status %d", resp.StatusCode), nil).
		WithDetail("status", fmt.Sprintf("%d", resp.StatusCode)).
		WithDetail("response", detail)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		perr.Retryable = false
	}
	return perr
}

// queryPayload is the wire shape of a search call.
type queryPayload struct {
	Query       string `json:"query"`
	HitsPerPage int    `json:"hitsPerPage"`
}

// queryResponse is the subset of the search response the client reads.
type queryResponse struct {
	Hits []*Document `json:"hits"`
}

// Search queries the hosted index.
func (r *RemoteIndex) Search(ctx context.Context, query string, limit int) ([]*Hit, error) {
	body, err := json.Marshal(queryPayload{Query: query, HitsPerPage: limit})
	if err != nil {
		return nil, cserr.New(cserr.ErrCodeIndexUnavailable, "failed to encode query", err)
	}

	resp, err := r.post(ctx, fmt.Sprintf("/1/indexes/%s/query", url.PathEscape(r.indexName)), body)
	if err != nil {
		return nil, cserr.New(cserr.ErrCodeIndexUnavailable, "search request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, cserr.New(cserr.ErrCodeIndexUnavailable,
			fmt.Sprintf("search rejected with status %d", resp.StatusCode), nil).
			WithDetail("response", readErrorBody(resp.Body))
	}

	var parsed queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, cserr.New(cserr.ErrCodeIndexUnavailable, "failed to decode search response", err)
	}

	hits := make([]*Hit, 0, len(parsed.Hits))
	for _, doc := range parsed.Hits {
		hits = append(hits, &Hit{Document: doc})
	}
	return hits, nil
}

// post issues an authenticated JSON POST to the service.
func (r *RemoteIndex) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Algolia-Application-Id", r.appID)
	req.Header.Set("X-Algolia-API-Key", r.apiKey)
	return r.client.Do(req)
}

// readErrorBody captures a bounded slice of an error response for logs.
func readErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 512))
	return strings.TrimSpace(string(data))
}

// Close is a no-op; the HTTP client holds no persistent resources.
func (r *RemoteIndex) Close() error {
	return nil
}
