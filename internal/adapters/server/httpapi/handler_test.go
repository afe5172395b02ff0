package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hylla/kalend/internal/adapters/server/common"
)

// stubCalendar provides deterministic calendar responses for handler tests.
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

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var env ErrorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return env.Error
}

func TestHandlerWeekLayout(t *testing.T) {
	calendar := &stubCalendar{layout: common.WeekLayout{Mode: "team", Start: "2026-03-02", End: "2026-03-08"}}
	handler := NewHandler(calendar)

	req := httptest.NewRequest(http.MethodGet, "/layout/week?date=2026-03-04&mode=team&team_id=t1", nil)
	req.Header.Set(ActorHeader, "bob")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var got common.WeekLayout
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.Start != "2026-03-02" {
		t.Fatalf("start = %q, want 2026-03-02", got.Start)
	}
	want := common.WeekLayoutRequest{ActorID: "bob", Date: "2026-03-04", Mode: "team", TeamID: "t1"}
	if calendar.lastLayout != want {
		t.Fatalf("request = %#v, want %#v", calendar.lastLayout, want)
	}
}

func TestHandlerMoveTask(t *testing.T) {
	calendar := &stubCalendar{task: common.TaskView{ID: "t1", StartDate: "2026-03-05"}}
	handler := NewHandler(calendar)

	req := httptest.NewRequest(http.MethodPost, "/tasks/t1/move?actor_id=alice", strings.NewReader(`{"days":2}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if calendar.lastMove != (common.MoveTaskRequest{ActorID: "alice", TaskID: "t1", Days: 2}) {
		t.Fatalf("unexpected move request %#v", calendar.lastMove)
	}

	bad := httptest.NewRequest(http.MethodPost, "/tasks/t1/move", strings.NewReader(`{"days":2,"extra":true}`))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, bad)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d for unknown fields", rec.Code, http.StatusBadRequest)
	}
}

func TestHandlerCreateAndListTasks(t *testing.T) {
	calendar := &stubCalendar{
		task:  common.TaskView{ID: "t9", Title: "Retro"},
		tasks: []common.TaskView{{ID: "t1"}, {ID: "t2"}},
	}
	handler := NewHandler(calendar)

	body := `{"title":"Retro","start_date":"2026-03-06","project_id":"p1","type":"meeting"}`
	req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(body))
	req.Header.Set(ActorHeader, "bob")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if calendar.lastCreate.ActorID != "bob" || calendar.lastCreate.Title != "Retro" || calendar.lastCreate.ProjectID != "p1" {
		t.Fatalf("unexpected create request %#v", calendar.lastCreate)
	}

	req = httptest.NewRequest(http.MethodGet, "/tasks?user_id=bob&start_date=2026-03-01", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var got struct {
		Tasks []common.TaskView `json:"tasks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got.Tasks) != 2 || calendar.lastList.UserID != "bob" || calendar.lastList.StartDate != "2026-03-01" {
		t.Fatalf("unexpected list result %#v request %#v", got.Tasks, calendar.lastList)
	}
}

func TestHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"permission", fmt.Errorf("move task: %w", common.ErrPermissionDenied), http.StatusForbidden, "permission_denied"},
		{"not found", fmt.Errorf("task: %w", common.ErrNotFound), http.StatusNotFound, "not_found"},
		{"invalid", common.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"},
		{"unavailable", common.ErrUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewHandler(&stubCalendar{err: tc.err})
			req := httptest.NewRequest(http.MethodGet, "/layout/week", nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			if got := decodeError(t, rec); got.Code != tc.code {
				t.Fatalf("code = %q, want %q", got.Code, tc.code)
			}
		})
	}
}

func TestHandlerRouting(t *testing.T) {
	handler := NewHandler(&stubCalendar{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/layout/week", nil))
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != http.MethodGet {
		t.Fatalf("status = %d allow = %q", rec.Code, rec.Header().Get("Allow"))
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks/t1/move", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/tasks", nil))
	if got := rec.Header().Get("Allow"); rec.Code != http.StatusMethodNotAllowed || got != "GET, POST" {
		t.Fatalf("status = %d allow = %q, want 405 GET, POST", rec.Code, got)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	rec = httptest.NewRecorder()
	NewHandler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/layout/week", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
