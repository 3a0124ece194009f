// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes refscan tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/refscan/internal/apperr"
	"github.com/starford/refscan/internal/scanservice"
)

const reportFormatURI = "refscan://report-format"

// Server wraps the MCP server with refscan tools.
type Server struct {
	mcp *server.MCPServer
	svc *scanservice.Service
}

// New creates a new MCP server with all refscan tools registered.
func New(svc *scanservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"refscan",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("scan_tree",
		mcp.WithDescription("Scan the project tree for missing module imports and asset files. "+
			"Returns the JSON report; see get_report_format for its fields."),
	), s.scanTree)

	s.mcp.AddTool(mcp.NewTool("list_missing_modules",
		mcp.WithDescription("List import targets that could not be resolved in the latest scan, "+
			"with the files that import them."),
	), s.listMissingModules)

	s.mcp.AddTool(mcp.NewTool("list_missing_assets",
		mcp.WithDescription("List missing asset files from the latest scan, grouped by category."),
		mcp.WithString("category",
			mcp.Description("Optional category filter"),
			mcp.Enum("image", "style", "font")),
	), s.listMissingAssets)

	s.mcp.AddTool(mcp.NewTool("list_missing_references",
		mcp.WithDescription("List every unresolved reference of the latest scan with its file, "+
			"line and raw text. Unlike list_missing_modules, nothing is de-duplicated."),
		mcp.WithString("kind",
			mcp.Description("Optional kind filter"),
			mcp.Enum("import", "asset")),
	), s.listMissingReferences)

	s.mcp.AddTool(mcp.NewTool("find_importers",
		mcp.WithDescription("Find every file that references a normalized target path "+
			"(e.g. src/components/Header), with line numbers and resolution status."),
		mcp.WithString("target", mcp.Required(), mcp.Description("Normalized target path")),
	), s.findImporters)

	s.mcp.AddTool(mcp.NewTool("search_references",
		mcp.WithDescription("Search references whose target or raw text contains the query."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Substring to search for")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 20)")),
	), s.searchReferences)

	s.mcp.AddTool(mcp.NewTool("get_report_format",
		mcp.WithDescription("Returns the report format and resolution rules. "+
			"Call this before interpreting scan output."),
	), s.getReportFormat)

	s.mcp.AddResource(
		mcp.NewResource(reportFormatURI, "Report Format",
			mcp.WithResourceDescription("Fields of the missing-files report and how references are resolved."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readReportFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func errResult(err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNoReport) {
		return mcp.NewToolResultError("no scan has completed yet; call scan_tree first")
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) scanTree(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := s.svc.Rescan(ctx)
	if err != nil {
		return errResult(err), nil
	}
	return jsonResult(out.Report)
}

func (s *Server) listMissingModules(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mods, err := s.svc.MissingModules()
	if err != nil {
		return errResult(err), nil
	}
	if len(mods) == 0 {
		return mcp.NewToolResultText("no missing modules"), nil
	}
	return jsonResult(mods)
}

func (s *Server) listMissingAssets(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	assets, err := s.svc.MissingAssets(req.GetString("category", ""))
	if err != nil {
		return errResult(err), nil
	}
	if len(assets) == 0 {
		return mcp.NewToolResultText("no missing assets"), nil
	}
	return jsonResult(assets)
}

func (s *Server) listMissingReferences(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rows, err := s.svc.Missing(req.GetString("kind", ""))
	if err != nil {
		return errResult(err), nil
	}
	if len(rows) == 0 {
		return mcp.NewToolResultText("no missing references"), nil
	}
	return jsonResult(rows)
}

func (s *Server) findImporters(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target, err := req.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rows, err := s.svc.Importers(target)
	if err != nil {
		return errResult(err), nil
	}
	if len(rows) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("no references to %s", target)), nil
	}
	return jsonResult(rows)
}

func (s *Server) searchReferences(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rows, err := s.svc.Search(query, req.GetInt("limit", 20))
	if err != nil {
		return errResult(err), nil
	}
	if len(rows) == 0 {
		return mcp.NewToolResultText("no matches"), nil
	}
	return jsonResult(rows)
}

func (s *Server) getReportFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ReportFormatContract), nil
}

func (s *Server) readReportFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      reportFormatURI,
			MIMEType: "text/markdown",
			Text:     ReportFormatContract,
		},
	}, nil
}
