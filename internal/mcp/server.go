package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/diagrag/internal/diagnosis"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Runner runs one diagnostic session.
type Runner interface {
	Run(ctx context.Context, symptoms string, opts diagnosis.SessionOptions) *diagnosis.Result
}

// Searcher returns reranked candidate diseases for a query.
type Searcher interface {
	Candidates(ctx context.Context, query string, topK int) ([]diagnosis.Candidate, error)
}

// Server wraps an MCP server that exposes the diagnostic tools.
type Server struct {
	runner   Runner
	searcher Searcher
	graph    diagnosis.GraphLookup
	mcp      *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(runner Runner, searcher Searcher, graph diagnosis.GraphLookup) *Server {
	s := &Server{
		runner:   runner,
		searcher: searcher,
		graph:    graph,
	}

	s.mcp = server.NewMCPServer(
		"diagrag",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(diagnoseTool, s.handleDiagnose)
	s.mcp.AddTool(searchDiseasesTool, s.handleSearchDiseases)
	s.mcp.AddTool(getDiseaseTool, s.handleGetDisease)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
