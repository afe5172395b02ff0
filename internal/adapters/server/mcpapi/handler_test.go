package mcpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hylla/kalend/internal/adapters/server/common"
)

// stubCalendar provides deterministic calendar responses for MCP tool tests.
type stubCalendar struct {
	layout     common.WeekLayout
	tasks      []common.TaskView
	task       common.TaskView
	err        error
	lastLayout common.WeekLayoutRequest
	lastList   common.ListTasksRequest
	lastMove   common.MoveTaskRequest
	lastCreate common.CreateTaskRequest
}

func (s *stubCalendar) WeekLayout(_ context.Context, req common.WeekLayoutRequest) (common.WeekLayout, error) {
	s.lastLayout = req
	return s.layout, s.err
}

func (s *stubCalendar) ListTasks(_ context.Context, req common.ListTasksRequest) ([]common.TaskView, error) {
	s.lastList = req
	if s.err != nil {
		return nil, s.err
	}
	return append([]common.TaskView(nil), s.tasks...), nil
}

func (s *stubCalendar) MoveTask(_ context.Context, req common.MoveTaskRequest) (common.TaskView, error) {
	s.lastMove = req
	return s.task, s.err
}

func (s *stubCalendar) CreateTask(_ context.Context, req common.CreateTaskRequest) (common.TaskView, error) {
	s.lastCreate = req
	return s.task, s.err
}

// jsonRPCResponse models minimal JSON-RPC response fields used in MCP adapter tests.
type jsonRPCResponse struct {
	ID     float64        `json:"id"`
	Result map[string]any `json:"result"`
}

// callToolRequest constructs one deterministic tools/call JSON-RPC request payload.
func callToolRequest(id int, toolName string, arguments map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": arguments,
		},
	}
}

// toolResultText decodes the first text entry from one tool-call result payload.
func toolResultText(t *testing.T, result map[string]any) string {
	t.Helper()
	contentRaw, ok := result["content"].([]any)
	if !ok || len(contentRaw) == 0 {
		t.Fatalf("content missing in tool result: %#v", result)
	}
	first, ok := contentRaw[0].(map[string]any)
	if !ok {
		t.Fatalf("first content entry has unexpected type: %#v", contentRaw[0])
	}
	text, ok := first["text"].(string)
	if !ok {
		t.Fatalf("content text missing in tool result: %#v", first)
	}
	return text
}

// toolResultStructured decodes structuredContent as one map for stable assertions.
func toolResultStructured(t *testing.T, result map[string]any) map[string]any {
	t.Helper()
	structured, ok := result["structuredContent"].(map[string]any)
	if !ok {
		t.Fatalf("structuredContent missing in tool result: %#v", result)
	}
	return structured
}

// postJSONRPC sends one JSON-RPC payload and decodes the response body.
func postJSONRPC(t *testing.T, client *http.Client, url string, payload any) (*http.Response, jsonRPCResponse) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	var decoded jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return resp, decoded
}

// initializeRequest builds a deterministic MCP initialize request payload.
func initializeRequest() map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
			"clientInfo": map[string]any{
				"name":    "kalend-test",
				"version": "1.0.0",
			},
		},
	}
}

func newTestServer(t *testing.T, calendar common.CalendarService) *httptest.Server {
	t.Helper()
	handler, err := NewHandler(Config{}, calendar)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	return server
}

func TestNewHandlerRequiresCalendar(t *testing.T) {
	if _, err := NewHandler(Config{}, nil); err == nil {
		t.Fatal("expected error without calendar service")
	}
}

func TestHandlerUsesStatelessTransport(t *testing.T) {
	handler, err := NewHandler(Config{}, &stubCalendar{})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	defer server.Close()

	resp, decoded := postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if decoded.ID != 1 {
		t.Fatalf("id = %v, want 1", decoded.ID)
	}
	if got := resp.Header.Get("Mcp-Session-Id"); got != "" {
		t.Fatalf("Mcp-Session-Id header = %q, want empty (stateless transport)", got)
	}
}

func TestHandlerRegistersCalendarTools(t *testing.T) {
	server := newTestServer(t, &stubCalendar{})
	_, toolsResp := postJSONRPC(t, server.Client(), server.URL, map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
	})
	toolsRaw, ok := toolsResp.Result["tools"].([]any)
	if !ok {
		t.Fatalf("tools list payload missing tools: %#v", toolsResp.Result)
	}
	toolNames := make([]string, 0, len(toolsRaw))
	for _, toolRaw := range toolsRaw {
		toolMap, ok := toolRaw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := toolMap["name"].(string)
		toolNames = append(toolNames, name)
	}
	for _, required := range []string{"kalend.week_layout", "kalend.list_tasks", "kalend.move_task", "kalend.create_task"} {
		if !slices.Contains(toolNames, required) {
			t.Fatalf("tool list missing %q: %#v", required, toolNames)
		}
	}
}

func TestHandlerWeekLayoutToolCall(t *testing.T) {
	calendar := &stubCalendar{layout: common.WeekLayout{Mode: "project", ProjectID: "p1", Start: "2026-03-02", End: "2026-03-08"}}
	server := newTestServer(t, calendar)

	_, resp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "kalend.week_layout", map[string]any{
		"mode":       "project",
		"project_id": "p1",
		"date":       "2026-03-04",
		"actor_id":   "bob",
	}))
	structured := toolResultStructured(t, resp.Result)
	if structured["start"] != "2026-03-02" || structured["project_id"] != "p1" {
		t.Fatalf("unexpected structured layout %#v", structured)
	}
	want := common.WeekLayoutRequest{ActorID: "bob", Date: "2026-03-04", Mode: "project", ProjectID: "p1"}
	if calendar.lastLayout != want {
		t.Fatalf("request = %#v, want %#v", calendar.lastLayout, want)
	}
}

func TestHandlerMoveTaskToolCall(t *testing.T) {
	calendar := &stubCalendar{task: common.TaskView{ID: "t1", StartDate: "2026-03-01"}}
	server := newTestServer(t, calendar)

	_, resp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "kalend.move_task", map[string]any{
		"task_id": "t1",
		"days":    -2,
	}))
	structured := toolResultStructured(t, resp.Result)
	if structured["id"] != "t1" {
		t.Fatalf("unexpected structured task %#v", structured)
	}
	if calendar.lastMove.TaskID != "t1" || calendar.lastMove.Days != -2 {
		t.Fatalf("unexpected move request %#v", calendar.lastMove)
	}

	_, missing := postJSONRPC(t, server.Client(), server.URL, callToolRequest(4, "kalend.move_task", map[string]any{"days": 1}))
	if isError, _ := missing.Result["isError"].(bool); !isError {
		t.Fatalf("isError = %v, want true", missing.Result["isError"])
	}
	if got := toolResultText(t, missing.Result); !strings.Contains(got, "task_id") {
		t.Fatalf("error text = %q, want task_id message", got)
	}
}

func TestHandlerCreateAndListToolCalls(t *testing.T) {
	calendar := &stubCalendar{
		task:  common.TaskView{ID: "t9", Title: "Retro"},
		tasks: []common.TaskView{{ID: "t1"}, {ID: "t9"}},
	}
	server := newTestServer(t, calendar)

	_, created := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "kalend.create_task", map[string]any{
		"title":        "Retro",
		"project_id":   "p1",
		"start_date":   "2026-03-06",
		"assignee_ids": []string{"bob", "carol"},
	}))
	if structured := toolResultStructured(t, created.Result); structured["id"] != "t9" {
		t.Fatalf("unexpected created task %#v", structured)
	}
	if !slices.Equal(calendar.lastCreate.AssigneeIDs, []string{"bob", "carol"}) || calendar.lastCreate.ProjectID != "p1" {
		t.Fatalf("unexpected create request %#v", calendar.lastCreate)
	}

	_, listed := postJSONRPC(t, server.Client(), server.URL, callToolRequest(4, "kalend.list_tasks", map[string]any{"user_id": "bob"}))
	tasks, ok := toolResultStructured(t, listed.Result)["tasks"].([]any)
	if !ok || len(tasks) != 2 {
		t.Fatalf("tasks = %#v, want two rows", tasks)
	}
	if calendar.lastList.UserID != "bob" {
		t.Fatalf("user_id = %q, want bob", calendar.lastList.UserID)
	}
}

func TestHandlerMapsServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		prefix string
	}{
		{fmt.Errorf("move task: %w", common.ErrPermissionDenied), "permission_denied:"},
		{fmt.Errorf("task: %w", common.ErrNotFound), "not_found:"},
		{common.ErrInvalidRequest, "invalid_request:"},
		{common.ErrUnavailable, "unavailable:"},
	}
	for i, tc := range cases {
		server := newTestServer(t, &stubCalendar{err: tc.err})
		_, resp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(10+i, "kalend.move_task", map[string]any{
			"task_id": "t1",
			"days":    1,
		}))
		if isError, _ := resp.Result["isError"].(bool); !isError {
			t.Fatalf("isError = %v, want true for %v", resp.Result["isError"], tc.err)
		}
		if got := toolResultText(t, resp.Result); !strings.HasPrefix(got, tc.prefix) {
			t.Fatalf("error text = %q, want prefix %q", got, tc.prefix)
		}
	}
}
