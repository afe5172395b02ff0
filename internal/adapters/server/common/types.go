// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrPermissionDenied reports a mutation rejected by the collaboration policy.
var ErrPermissionDenied = errors.New("permission denied")

// ErrUnavailable reports that the backing store could not be reached.
var ErrUnavailable = errors.New("backend unavailable")

// WeekLayoutRequest selects one week and one calendar scope.
type WeekLayoutRequest struct {
	ActorID   string
	Date      string
	Mode      string
	TeamID    string
	ProjectID string
}

// BlockView is one laned task segment inside a day cell.
type BlockView struct {
	TaskID            string `json:"task_id"`
	Title             string `json:"title"`
	Type              string `json:"type"`
	ProjectID         string `json:"project_id"`
	Lane              int    `json:"lane"`
	Start             string `json:"start"`
	Span              int    `json:"span"`
	StartsBlock       bool   `json:"starts_block"`
	ContinuesFromPrev bool   `json:"continues_from_prev"`
	ContinuesToNext   bool   `json:"continues_to_next"`
}

// DayView lists the blocks anchored on one day.
type DayView struct {
	Date   string      `json:"date"`
	Blocks []BlockView `json:"blocks"`
}

// RowView is one laned week row; UserID is set for team rows.
type RowView struct {
	UserID    string    `json:"user_id,omitempty"`
	Start     string    `json:"start"`
	End       string    `json:"end"`
	LaneCount int       `json:"lane_count"`
	Days      []DayView `json:"days"`
}

// WeekLayout is the projected week returned to HTTP and MCP callers.
type WeekLayout struct {
	Mode      string    `json:"mode"`
	TeamID    string    `json:"team_id,omitempty"`
	ProjectID string    `json:"project_id,omitempty"`
	Start     string    `json:"start"`
	End       string    `json:"end"`
	Rows      []RowView `json:"rows"`
}

// TaskView is the transport shape of one task.
type TaskView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	StartDate   string    `json:"start_date"`
	EndDate     string    `json:"end_date"`
	Time        string    `json:"time,omitempty"`
	Type        string    `json:"type"`
	ProjectID   string    `json:"project_id"`
	TeamID      string    `json:"team_id,omitempty"`
	CreatorID   string    `json:"creator_id"`
	AssigneeIDs []string  `json:"assignee_ids"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListTasksRequest filters tasks; empty fields are unconstrained.
type ListTasksRequest struct {
	UserID    string
	ProjectID string
	TeamID    string
	StartDate string
	EndDate   string
}

// MoveTaskRequest shifts one task by a whole number of days.
type MoveTaskRequest struct {
	ActorID string
	TaskID  string
	Days    int
}

// CreateTaskRequest stores transport input for task creation.
type CreateTaskRequest struct {
	ActorID     string   `json:"-"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date,omitempty"`
	Time        string   `json:"time,omitempty"`
	Type        string   `json:"type,omitempty"`
	ProjectID   string   `json:"project_id"`
	AssigneeIDs []string `json:"assignee_ids,omitempty"`
}

// CalendarService is the calendar surface shared by HTTP and MCP adapters.
type CalendarService interface {
	WeekLayout(context.Context, WeekLayoutRequest) (WeekLayout, error)
	ListTasks(context.Context, ListTasksRequest) ([]TaskView, error)
	MoveTask(context.Context, MoveTaskRequest) (TaskView, error)
	CreateTask(context.Context, CreateTaskRequest) (TaskView, error)
}
