// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/hylla/kalend/internal/adapters/server/common"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the calendar tools.
func NewHandler(cfg Config, calendar common.CalendarService) (*Handler, error) {
	if calendar == nil {
		return nil, fmt.Errorf("calendar service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerLayoutTool(mcpSrv, calendar)
	registerTaskTools(mcpSrv, calendar)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "kalend"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerLayoutTool registers the `kalend.week_layout` tool.
func registerLayoutTool(srv *mcpserver.MCPServer, calendar common.CalendarService) {
	srv.AddTool(
		mcp.NewTool(
			"kalend.week_layout",
			mcp.WithDescription("Return the laned week layout for a personal, team, or project scope."),
			mcp.WithString("actor_id", mcp.Description("Acting user (defaults to the server identity)")),
			mcp.WithString("date", mcp.Description("Any day inside the week, YYYY-MM-DD (defaults to today)")),
			mcp.WithString("mode", mcp.Description("Calendar scope"), mcp.Enum("personal", "team", "project")),
			mcp.WithString("team_id", mcp.Description("Team identifier, required in team mode")),
			mcp.WithString("project_id", mcp.Description("Project identifier, required in project mode")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			out, err := calendar.WeekLayout(ctx, common.WeekLayoutRequest{
				ActorID:   req.GetString("actor_id", ""),
				Date:      req.GetString("date", ""),
				Mode:      req.GetString("mode", ""),
				TeamID:    req.GetString("team_id", ""),
				ProjectID: req.GetString("project_id", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(out)
			if err != nil {
				return nil, fmt.Errorf("encode week_layout result: %w", err)
			}
			return result, nil
		},
	)
}

// registerTaskTools registers task list, move, and create tools.
func registerTaskTools(srv *mcpserver.MCPServer, calendar common.CalendarService) {
	srv.AddTool(
		mcp.NewTool(
			"kalend.list_tasks",
			mcp.WithDescription("List tasks, optionally filtered by user, project, team, and date range."),
			mcp.WithString("user_id", mcp.Description("Only tasks created by or assigned to this user")),
			mcp.WithString("project_id", mcp.Description("Project identifier")),
			mcp.WithString("team_id", mcp.Description("Team identifier")),
			mcp.WithString("start_date", mcp.Description("Only tasks ending on or after this day")),
			mcp.WithString("end_date", mcp.Description("Only tasks starting on or before this day")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			tasks, err := calendar.ListTasks(ctx, common.ListTasksRequest{
				UserID:    req.GetString("user_id", ""),
				ProjectID: req.GetString("project_id", ""),
				TeamID:    req.GetString("team_id", ""),
				StartDate: req.GetString("start_date", ""),
				EndDate:   req.GetString("end_date", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"tasks": tasks,
			})
			if err != nil {
				return nil, fmt.Errorf("encode list_tasks result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"kalend.move_task",
			mcp.WithDescription("Shift one task by a whole number of days, subject to the project's collaboration policy."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
			mcp.WithNumber("days", mcp.Required(), mcp.Description("Day offset, negative moves earlier")),
			mcp.WithString("actor_id", mcp.Description("Acting user (defaults to the server identity)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			days, err := req.RequireInt("days")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			task, err := calendar.MoveTask(ctx, common.MoveTaskRequest{
				ActorID: req.GetString("actor_id", ""),
				TaskID:  taskID,
				Days:    days,
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(task)
			if err != nil {
				return nil, fmt.Errorf("encode move_task result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"kalend.create_task",
			mcp.WithDescription("Create a dated task in a project the actor may change."),
			mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
			mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier")),
			mcp.WithString("start_date", mcp.Required(), mcp.Description("First day, YYYY-MM-DD")),
			mcp.WithString("end_date", mcp.Description("Last day, YYYY-MM-DD (defaults to start_date)")),
			mcp.WithString("time", mcp.Description("Optional HH:MM time of day")),
			mcp.WithString("type", mcp.Description("Task type"), mcp.Enum("task", "meeting", "deadline", "milestone", "reminder")),
			mcp.WithString("description", mcp.Description("Optional markdown description")),
			mcp.WithArray("assignee_ids", mcp.Description("Optional assignee user ids"), mcp.WithStringItems()),
			mcp.WithString("actor_id", mcp.Description("Acting user (defaults to the server identity)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			title, err := req.RequireString("title")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			projectID, err := req.RequireString("project_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			startDate, err := req.RequireString("start_date")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			task, err := calendar.CreateTask(ctx, common.CreateTaskRequest{
				ActorID:     req.GetString("actor_id", ""),
				Title:       title,
				Description: req.GetString("description", ""),
				StartDate:   startDate,
				EndDate:     req.GetString("end_date", ""),
				Time:        req.GetString("time", ""),
				Type:        req.GetString("type", ""),
				ProjectID:   projectID,
				AssigneeIDs: req.GetStringSlice("assignee_ids", nil),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(task)
			if err != nil {
				return nil, fmt.Errorf("encode create_task result: %w", err)
			}
			return result, nil
		},
	)
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrPermissionDenied):
		return mcp.NewToolResultError("permission_denied: " + err.Error())
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, common.ErrUnavailable):
		return mcp.NewToolResultError("unavailable: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
