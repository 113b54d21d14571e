// Package mcp provides the stdio MCP server exposing note tools to agents.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/go-ports/notevault/internal/buildinfo"
	"github.com/go-ports/notevault/internal/models"
	"github.com/go-ports/notevault/internal/redaction"
	"github.com/go-ports/notevault/internal/service"
)

const searchDescription = `Search the user's notes. Every whitespace-separated term must appear in the title or content (case-insensitive). An empty query lists the most recently edited notes.`

const createDescription = `Create a new note. Use this when the user asks you to write something down for later.`

const updateDescription = `Update an existing note. Only the fields you pass are changed; omitted fields keep their current value.`

const deleteDescription = `Delete a note permanently. There is no undo, so only call this when the user explicitly asks.`

const getDescription = `Fetch a single note with its full content.`

const similarDescription = `List notes related to a given note, using embeddings when configured and title keywords otherwise.`

// contentPreview is the rune limit for content in search results.
const contentPreview = 200

// NewServer creates and registers all note tools on a new MCP server.
// It is intentionally separate from Serve so that tests and other callers can
// obtain a fully configured server without committing to the stdio transport.
func NewServer(svc *service.Service) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("notevault", buildinfo.Version)
	registerTools(s, svc)
	return s
}

// Serve starts the stdio MCP server over the notes home, blocking until stdin
// closes.
func Serve(_ context.Context, home string) error {
	svc, err := service.New(home)
	if err != nil {
		return fmt.Errorf("mcp: init service: %w", err)
	}
	defer svc.Close()

	return serve(svc, func(s *mcpserver.MCPServer) error { return mcpserver.ServeStdio(s) })
}

// serve runs the server until run returns, then embeds the notes written in
// the last moments of the session before the service is closed.
func serve(svc *service.Service, run func(*mcpserver.MCPServer) error) error {
	err := run(NewServer(svc))
	svc.FlushEmbeddings()
	return err
}

func registerTools(s *mcpserver.MCPServer, svc *service.Service) {
	colors := append([]string{"none"}, models.Palette...)

	s.AddTool(mcp.NewTool("note_search",
		mcp.WithDescription(searchDescription),
		mcp.WithString("query",
			mcp.Description("Search terms. Empty returns recent notes."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default from config, 20)."),
		),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleSearch(ctx, svc, req)
	})

	s.AddTool(mcp.NewTool("note_get",
		mcp.WithDescription(getDescription),
		mcp.WithString("id",
			mcp.Description("Note id or unique id prefix."),
			mcp.Required(),
		),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGet(ctx, svc, req)
	})

	s.AddTool(mcp.NewTool("note_create",
		mcp.WithDescription(createDescription),
		mcp.WithString("title", mcp.Description("Note title.")),
		mcp.WithString("content", mcp.Description("Note body (markdown).")),
		mcp.WithString("color",
			mcp.Description("Card color."),
			mcp.Enum(colors...),
		),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleCreate(ctx, svc, req)
	})

	s.AddTool(mcp.NewTool("note_update",
		mcp.WithDescription(updateDescription),
		mcp.WithString("id",
			mcp.Description("Note id or unique id prefix."),
			mcp.Required(),
		),
		mcp.WithString("title", mcp.Description("New title.")),
		mcp.WithString("content", mcp.Description("New body; replaces the old one.")),
		mcp.WithString("color",
			mcp.Description("New card color."),
			mcp.Enum(colors...),
		),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleUpdate(ctx, svc, req)
	})

	s.AddTool(mcp.NewTool("note_delete",
		mcp.WithDescription(deleteDescription),
		mcp.WithString("id",
			mcp.Description("Note id or unique id prefix."),
			mcp.Required(),
		),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleDelete(ctx, svc, req)
	})

	s.AddTool(mcp.NewTool("note_similar",
		mcp.WithDescription(similarDescription),
		mcp.WithString("id",
			mcp.Description("Note id or unique id prefix."),
			mcp.Required(),
		),
		mcp.WithNumber("limit", mcp.Description("Max results (default 5).")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleSimilar(ctx, svc, req)
	})
}

// ---------------------------------------------------------------------------
// Tool handlers
// ---------------------------------------------------------------------------

func handleSearch(ctx context.Context, svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", svc.Config.Search.Limit)
	if limit < 0 {
		limit = 0
	}
	notes, err := svc.Search(ctx, req.GetString("query", ""), limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	r := svc.Redactor()
	out := make([]map[string]any, 0, len(notes))
	for i := range notes {
		n := r.Note(notes[i])
		out = append(out, map[string]any{
			"id":      n.ID,
			"title":   n.Title,
			"preview": truncate(n.Content, contentPreview),
			"color":   n.Color,
			"updated": formatDate(n.UpdatedAt),
		})
	}
	return jsonResult(out)
}

func handleGet(ctx context.Context, svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, errResult := lookup(ctx, svc, req)
	if errResult != nil {
		return errResult, nil
	}
	return jsonResult(noteJSON(svc.Redactor(), n))
}

func handleCreate(ctx context.Context, svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, err := svc.Create(ctx, models.NoteFields{
		Title:   req.GetString("title", ""),
		Content: req.GetString("content", ""),
		Color:   req.GetString("color", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"id":     n.ID,
		"action": "created",
	})
}

func handleUpdate(ctx context.Context, svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, errResult := lookup(ctx, svc, req)
	if errResult != nil {
		return errResult, nil
	}

	in := models.UpdateInput{
		ID:      n.ID,
		Title:   req.GetString("title", n.Title),
		Content: req.GetString("content", n.Content),
		Color:   req.GetString("color", n.Color),
	}
	res, err := svc.Update(ctx, in)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"id":       res.Note.ID,
		"action":   "updated",
		"revision": res.Note.Revision,
		"saved_at": res.SavedAt.Format(time.RFC3339),
	})
}

func handleDelete(ctx context.Context, svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, errResult := lookup(ctx, svc, req)
	if errResult != nil {
		return errResult, nil
	}
	if err := svc.Delete(ctx, n.ID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"id":     n.ID,
		"action": "deleted",
	})
}

func handleSimilar(ctx context.Context, svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, errResult := lookup(ctx, svc, req)
	if errResult != nil {
		return errResult, nil
	}
	limit := req.GetInt("limit", 5)
	results, err := svc.Similar(ctx, n.ID, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	r := svc.Redactor()
	out := make([]map[string]any, 0, len(results))
	for _, res := range results {
		out = append(out, map[string]any{
			"id":     res.Note.ID,
			"title":  r.Text(res.Note.Title),
			"score":  roundTwo(res.Score),
			"source": res.Source,
		})
	}
	return jsonResult(out)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// lookup resolves the "id" argument to a note. On failure it returns a tool
// error result instead.
func lookup(ctx context.Context, svc *service.Service, req mcp.CallToolRequest) (*models.Note, *mcp.CallToolResult) {
	prefix := strings.TrimSpace(req.GetString("id", ""))
	if prefix == "" {
		return nil, mcp.NewToolResultError("id is required")
	}
	id, err := svc.Resolve(ctx, prefix)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, mcp.NewToolResultError(fmt.Sprintf("no note with id %q", prefix))
		}
		return nil, mcp.NewToolResultError(err.Error())
	}
	n, err := svc.Get(ctx, id)
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	return n, nil
}

func noteJSON(r *redaction.Redactor, n *models.Note) map[string]any {
	clean := r.Note(*n)
	return map[string]any{
		"id":       clean.ID,
		"title":    clean.Title,
		"content":  clean.Content,
		"color":    clean.Color,
		"revision": clean.Revision,
		"created":  clean.CreatedAt.UTC().Format(time.RFC3339),
		"updated":  clean.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen]) + "…"
	}
	return s
}

// formatDate renders t as "Jan 02" in local time.
func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("Jan 02")
}

// roundTwo rounds f to 2 decimal places.
func roundTwo(f float64) float64 {
	return math.Round(f*100) / 100
}
