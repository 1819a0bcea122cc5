// Package mcpadapter exposes the compliance engine as MCP tools over stdio.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
	"github.com/kirillkom/trade-compliance-engine/internal/core/ports"
)

const (
	serverName    = "trade-compliance-engine"
	serverVersion = "1.0.0"
)

type Services struct {
	Analyzer     ports.DocumentAnalyzer
	Cases        ports.CaseService
	Associations ports.AssociationService
}

type Tools struct {
	svc    Services
	logger *slog.Logger
}

func NewTools(svc Services, logger *slog.Logger) *Tools {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tools{svc: svc, logger: logger}
}

// NewServer registers every tool on a fresh MCP server.
func NewServer(tools *Tools) *server.MCPServer {
	s := server.NewMCPServer(serverName, serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.AddTool(mcp.NewTool("analyze_document",
		mcp.WithDescription("Classify a trade document from its extracted text, extract its fields and store the record."),
		mcp.WithString("filename", mcp.Required(), mcp.Description("Original file name; its tokens contribute to classification.")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Plain text content of the document.")),
		mcp.WithArray("known_internal_ids",
			mcp.Description("Identifiers that mark a document as internal to the company."),
			mcp.WithStringItems(),
		),
	), tools.AnalyzeDocument)

	s.AddTool(mcp.NewTool("aggregate_cases",
		mcp.WithDescription("Group external documents into new case files by importer. Without ids the unassigned pool is used."),
		mcp.WithArray("document_ids", mcp.Description("Document record ids to aggregate."), mcp.WithStringItems()),
	), tools.AggregateCases)

	s.AddTool(mcp.NewTool("validate_case",
		mcp.WithDescription("Cross-validate the invoice against the transport document of a case file."),
		mcp.WithString("case_id", mcp.Required(), mcp.Description("Case file id.")),
	), tools.ValidateCase)

	s.AddTool(mcp.NewTool("suggest_cases",
		mcp.WithDescription("Rank existing case files as homes for an unassigned document."),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document record id.")),
	), tools.SuggestCases)

	s.AddTool(mcp.NewTool("associate_document",
		mcp.WithDescription("Vet and, when approved, attach a document to a case file."),
		mcp.WithString("case_id", mcp.Required(), mcp.Description("Target case file id.")),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document record id.")),
	), tools.AssociateDocument)

	return s
}

func (t *Tools) AnalyzeDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename, err := req.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ids := req.GetStringSlice("known_internal_ids", nil)

	record, err := t.svc.Analyzer.Analyze(ctx, filename, text, ids)
	if err != nil {
		return t.toolError("analyze_document", err), nil
	}
	return jsonResult(record)
}

func (t *Tools) AggregateCases(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cases, err := t.svc.Cases.BuildCases(ctx, req.GetStringSlice("document_ids", nil))
	if err != nil {
		return t.toolError("aggregate_cases", err), nil
	}
	return jsonResult(map[string]any{"cases": cases})
}

func (t *Tools) ValidateCase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	caseID, err := req.RequireString("case_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := t.svc.Cases.ValidateCase(ctx, caseID)
	if err != nil {
		return t.toolError("validate_case", err), nil
	}
	return jsonResult(result)
}

func (t *Tools) SuggestCases(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	documentID, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	suggestions, err := t.svc.Associations.Suggest(ctx, documentID)
	if err != nil {
		return t.toolError("suggest_cases", err), nil
	}
	return jsonResult(map[string]any{"suggestions": suggestions})
}

func (t *Tools) AssociateDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	caseID, err := req.RequireString("case_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	documentID, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, updated, err := t.svc.Associations.Associate(ctx, caseID, documentID)
	if err != nil {
		return t.toolError("associate_document", err), nil
	}
	return jsonResult(map[string]any{"result": result, "case": updated})
}

// toolError reports domain failures as tool errors so the client model sees
// them. Untyped failures are logged and summarized.
func (t *Tools) toolError(tool string, err error) *mcp.CallToolResult {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrDocumentNotFound),
		domain.IsKind(err, domain.ErrCaseNotFound),
		domain.IsKind(err, domain.ErrConflict):
		return mcp.NewToolResultError(err.Error())
	case domain.IsKind(err, domain.ErrTemporary):
		return mcp.NewToolResultError("temporarily unavailable, retry later")
	default:
		t.logger.Error("mcp_tool_failed", "tool", tool, "error", err.Error())
		return mcp.NewToolResultError(fmt.Sprintf("%s failed", tool))
	}
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
