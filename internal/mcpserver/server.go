// Package mcpserver exposes the processing pipeline over the Model
// Context Protocol: AI clients trigger repository processing, poll its
// status, and search the published entities.
package mcpserver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	cserr "github.com/codescout-dev/codescout/internal/errors"
	"github.com/codescout-dev/codescout/internal/pipeline"
	"github.com/codescout-dev/codescout/pkg/version"
)

// Server is the MCP facade over the pipeline service.
type Server struct {
	service *pipeline.Service
	logger  *slog.Logger
	mcp     *mcp.Server
}

// NewServer creates the MCP server and registers its tools.
func NewServer(service *pipeline.Service, logger *slog.Logger) (*Server, error) {
	if service == nil {
		return nil, errors.New("pipeline service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		service: service,
		logger:  logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "CodeScout",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Run serves MCP over stdio until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server starting", slog.String("transport", "stdio"))
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// registerTools registers the tool surface.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "process_repository",
		Description: "Start processing a repository: fetch it, extract code entities, and publish them to the search index. Returns immediately; poll processing_status for progress. Fails if the repository is already being processed.",
	}, s.handleProcessRepository)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "processing_status",
		Description: "Report the processing status of a registered repository: current phase, progress percentage, and whether search is ready to use.",
	}, s.handleProcessingStatus)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_code",
		Description: "Search the indexed code entities (functions, classes, methods, imports) across processed repositories. Returns matching entities with their file locations and signatures.",
	}, s.handleSearchCode)

	s.logger.Debug("mcp tools registered", slog.Int("count", 3))
}

// ProcessInput are the arguments of the process_repository tool.
type ProcessInput struct {
	Location string `json:"location" jsonschema:"repository location: a git URL or a local directory path"`
	Branch   string `json:"branch,omitempty" jsonschema:"branch to process; defaults to the configured default branch"`
	Force    bool   `json:"force,omitempty" jsonschema:"reprocess all files even when their content is unchanged"`
}

// ProcessOutput is the process_repository tool result.
type ProcessOutput struct {
	RepositoryID int64  `json:"repository_id"`
	JobID        string `json:"job_id"`
	Status       string `json:"status"`
	Message      string `json:"message,omitempty"`
}

func (s *Server) handleProcessRepository(ctx context.Context, _ *mcp.CallToolRequest, input ProcessInput) (
	*mcp.CallToolResult, ProcessOutput, error,
) {
	if input.Location == "" {
		return nil, ProcessOutput{}, errors.New("location parameter is required")
	}

	claimed, err := s.service.ProcessRepository(ctx, input.Location, pipeline.ProcessOptions{
		Branch: input.Branch,
		Force:  input.Force,
	})
	if err != nil {
		if cserr.CodeOf(err) == cserr.ErrCodeAlreadyProcessing {
			return nil, ProcessOutput{}, errors.New("repository is already being processed; poll processing_status")
		}
		return nil, ProcessOutput{}, err
	}

	s.logger.Info("processing started",
		slog.String("location", input.Location),
		slog.String("job_id", claimed.ID))

	return nil, ProcessOutput{
		RepositoryID: claimed.RepositoryID,
		JobID:        claimed.ID,
		Status:       string(claimed.Progress.Phase()),
		Message:      "processing started",
	}, nil
}

// StatusInput are the arguments of the processing_status tool.
type StatusInput struct {
	Location string `json:"location" jsonschema:"repository location used when processing was started"`
}

func (s *Server) handleProcessingStatus(ctx context.Context, _ *mcp.CallToolRequest, input StatusInput) (
	*mcp.CallToolResult, pipeline.StatusPayload, error,
) {
	if input.Location == "" {
		return nil, pipeline.StatusPayload{}, errors.New("location parameter is required")
	}

	status, err := s.service.Status(ctx, input.Location)
	if err != nil {
		if cserr.CodeOf(err) == cserr.ErrCodeNotFound {
			return nil, pipeline.StatusPayload{}, errors.New("repository is not registered; call process_repository first")
		}
		return nil, pipeline.StatusPayload{}, err
	}
	return nil, *status, nil
}

// SearchInput are the arguments of the search_code tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"search terms: entity names, signature fragments, or code content"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
}

// SearchResult is one entity match.
type SearchResult struct {
	ObjectID       string  `json:"object_id"`
	Title          string  `json:"title"`
	EntityType     string  `json:"entity_type"`
	EntityName     string  `json:"entity_name"`
	Language       string  `json:"language"`
	FilePath       string  `json:"file_path"`
	LineNumber     int     `json:"line_number"`
	Signature      string  `json:"signature,omitempty"`
	RepositoryName string  `json:"repository_name"`
	Score          float64 `json:"score,omitempty"`
}

// SearchOutput is the search_code tool result.
type SearchOutput struct {
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
}

func (s *Server) handleSearchCode(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult, SearchOutput, error,
) {
	if input.Query == "" {
		return nil, SearchOutput{}, errors.New("query parameter is required")
	}

	hits, err := s.service.Search(ctx, input.Query, input.Limit)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{Results: make([]SearchResult, 0, len(hits))}
	for _, hit := range hits {
		doc := hit.Document
		output.Results = append(output.Results, SearchResult{
			ObjectID:       doc.ObjectID,
			Title:          doc.Title,
			EntityType:     doc.EntityType,
			EntityName:     doc.EntityName,
			Language:       doc.Language,
			FilePath:       doc.FilePath,
			LineNumber:     doc.LineNumber,
			Signature:      doc.Signature,
			RepositoryName: doc.RepositoryName,
			Score:          hit.Score,
		})
	}
	output.Total = len(output.Results)
	return nil, output, nil
}
