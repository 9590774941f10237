// Package mcp exposes the interpretation pipeline over the Model Context
// Protocol, so assistants can turn free-form Russian text into calendar
// events through tool calls. Supports the stdio transport.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sergeylevashov/schedy/internal/pipeline"
)

// ServerConfig holds the MCP server dependencies.
type ServerConfig struct {
	Pipeline *pipeline.Pipeline
	Version  string
}

// NewServer creates an MCP server with the schedy tools registered.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"Schedy",
		ver,
		server.WithToolCapabilities(false),
	)

	registerInterpretTool(s, cfg.Pipeline)
	registerCreateEventTool(s, cfg.Pipeline)
	registerUpcomingEventsTool(s, cfg.Pipeline)

	return s
}

// ServeStdio runs the server over stdin/stdout until the client hangs up.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func registerInterpretTool(s *server.MCPServer, pl *pipeline.Pipeline) {
	tool := mcp.NewTool("schedy_interpret",
		mcp.WithDescription("Interpret a Russian scheduling request: detect the intent (add/delete/move/check), extract entities (person, time, date, event, location), resolve dates and times, and build an event draft. Does not touch the calendar."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The request text in Russian, e.g. 'Поставь встречу с Кириллом на завтра в 10 утра'"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil || strings.TrimSpace(text) == "" {
			return mcp.NewToolResultError("text is required"), nil
		}

		result := pl.Interpret(ctx, text)
		data, _ := json.MarshalIndent(result, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerCreateEventTool(s *server.MCPServer, pl *pipeline.Pipeline) {
	tool := mcp.NewTool("schedy_create_event",
		mcp.WithDescription("Interpret a Russian scheduling request and, when it is an add-event request, create the event in the configured calendar. Returns the interpretation plus the created event."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The request text in Russian"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil || strings.TrimSpace(text) == "" {
			return mcp.NewToolResultError("text is required"), nil
		}

		result := pl.InterpretAndCreate(ctx, text)
		data, _ := json.MarshalIndent(result, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerUpcomingEventsTool(s *server.MCPServer, pl *pipeline.Pipeline) {
	tool := mcp.NewTool("schedy_upcoming_events",
		mcp.WithDescription("List upcoming events from the configured calendar."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("days",
			mcp.Description("How many days ahead to list (default: 7)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		days := 7
		if v, ok := req.GetArguments()["days"].(float64); ok && int(v) > 0 {
			days = int(v)
		}

		events, err := pl.GetUpcomingEvents(ctx, days)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing events: %v", err)), nil
		}
		data, _ := json.MarshalIndent(events, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}
