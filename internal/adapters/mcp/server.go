// Package mcpadapter exposes read-only case exploration as MCP tools.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/lite-ingest/internal/core/artifact"
	"github.com/kirillkom/lite-ingest/internal/core/domain"
	"github.com/kirillkom/lite-ingest/internal/core/ports"
)

const (
	serverName          = "lite-ingest"
	serverVersion       = "1.0.0"
	artifactTypesURI    = "lite://artifact-types"
	defaultLogLimit     = 20
	defaultCaseLimit    = 50
	jsonMIMEType        = "application/json"
	caseIDArgumentDescr = "Case ID as returned by list_cases"
)

type Server struct {
	cases    ports.CaseService
	explorer ports.CaseExplorer
	registry *artifact.Registry
}

func NewServer(cases ports.CaseService, explorer ports.CaseExplorer, registry *artifact.Registry) *Server {
	return &Server{cases: cases, explorer: explorer, registry: registry}
}

// MCP registers the tools and resources on a fresh mcp-go server.
func (s *Server) MCP() *server.MCPServer {
	srv := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithResourceCapabilities(false, false),
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)

	srv.AddResource(
		mcp.NewResource(
			artifactTypesURI,
			"Artifact types",
			mcp.WithResourceDescription("Recognized artifact types with their tables and field filters"),
			mcp.WithMIMEType(jsonMIMEType),
		),
		s.handleArtifactTypes,
	)

	srv.AddTool(
		mcp.NewTool(
			"list_cases",
			mcp.WithDescription("List investigation cases, newest first."),
			mcp.WithString("status", mcp.Description("Filter by status: active, inactive or closed")),
			mcp.WithString("search", mcp.Description("Substring match on name, case number or investigator")),
			mcp.WithNumber("limit", mcp.Description("Max number of cases (default 50)")),
		),
		s.handleListCases,
	)
	srv.AddTool(
		mcp.NewTool(
			"list_tables",
			mcp.WithDescription("List the artifact tables of a case with row counts and columns."),
			mcp.WithString("case_id", mcp.Required(), mcp.Description(caseIDArgumentDescr)),
		),
		s.handleListTables,
	)
	srv.AddTool(
		mcp.NewTool(
			"query_case",
			mcp.WithDescription("Run a read-only SELECT inside the case namespace. Table names need no schema prefix."),
			mcp.WithString("case_id", mcp.Required(), mcp.Description(caseIDArgumentDescr)),
			mcp.WithString("sql", mcp.Required(), mcp.Description("A single SELECT or WITH statement")),
		),
		s.handleQueryCase,
	)
	srv.AddTool(
		mcp.NewTool(
			"ingestion_logs",
			mcp.WithDescription("Show recent ingestion attempts for a case."),
			mcp.WithString("case_id", mcp.Required(), mcp.Description(caseIDArgumentDescr)),
			mcp.WithNumber("limit", mcp.Description("Max number of entries (default 20)")),
		),
		s.handleIngestionLogs,
	)

	return srv
}

// Run serves the tools over stdio until the client disconnects.
func Run(s *Server) error {
	slog.Info("mcp_server_starting", "transport", "stdio")
	return server.ServeStdio(s.MCP())
}

func (s *Server) handleArtifactTypes(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	payload, err := json.MarshalIndent(s.registry.Specs(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode artifact types: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: jsonMIMEType,
			Text:     string(payload),
		},
	}, nil
}

func (s *Server) handleListCases(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	status, _ := args["status"].(string)
	search, _ := args["search"].(string)

	filter := domain.CaseFilter{
		Status: domain.CaseStatus(status),
		Search: search,
		Limit:  intArg(args, "limit", defaultCaseLimit),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("unknown status %q", status)), nil
	}

	cases, err := s.cases.List(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list cases failed: %v", err)), nil
	}
	if len(cases) == 0 {
		return mcp.NewToolResultText("No cases found."), nil
	}
	return jsonResult(cases)
}

func (s *Server) handleListTables(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	caseID, ok := request.GetArguments()["case_id"].(string)
	if !ok || caseID == "" {
		return mcp.NewToolResultError("case_id argument required"), nil
	}

	tables, err := s.explorer.Tables(ctx, caseID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list tables failed: %v", err)), nil
	}
	if len(tables) == 0 {
		return mcp.NewToolResultText("No tables yet. Ingest artifacts into the case first."), nil
	}
	return jsonResult(tables)
}

func (s *Server) handleQueryCase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	caseID, ok := args["case_id"].(string)
	if !ok || caseID == "" {
		return mcp.NewToolResultError("case_id argument required"), nil
	}
	query, ok := args["sql"].(string)
	if !ok || query == "" {
		return mcp.NewToolResultError("sql argument required"), nil
	}

	rows, err := s.explorer.Query(ctx, caseID, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return jsonResult(rows)
}

func (s *Server) handleIngestionLogs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	caseID, ok := args["case_id"].(string)
	if !ok || caseID == "" {
		return mcp.NewToolResultError("case_id argument required"), nil
	}

	logs, err := s.cases.IngestionLogs(ctx, caseID, intArg(args, "limit", defaultLogLimit))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ingestion logs failed: %v", err)), nil
	}
	if len(logs) == 0 {
		return mcp.NewToolResultText("No ingestion attempts recorded."), nil
	}
	return jsonResult(logs)
}

// intArg reads a JSON number argument; MCP clients send numbers as float64.
func intArg(args map[string]any, name string, fallback int) int {
	v, ok := args[name].(float64)
	if !ok || v <= 0 {
		return fallback
	}
	return int(v)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}
