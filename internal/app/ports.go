package app

import (
	"context"

	"github.com/hylla/kalend/internal/domain"
)

// Remote is the persistence port the store mutates through.
type Remote interface {
	ListTasks(context.Context, TaskFilter) ([]domain.Task, error)
	CreateTask(context.Context, TaskFields) (domain.Task, error)
	UpdateTask(context.Context, string, TaskPatch) (domain.Task, error)
	DeleteTask(context.Context, string) error

	ListProjects(context.Context) ([]domain.Project, error)
	CreateProject(context.Context, ProjectFields) (domain.Project, error)
	UpdateProject(context.Context, string, ProjectPatch) (domain.Project, error)
	DeleteProject(context.Context, string) error

	ListTeams(context.Context) ([]domain.Team, error)
	CreateTeam(context.Context, TeamFields) (domain.Team, error)
	UpdateTeam(context.Context, string, TeamPatch) (domain.Team, error)
	DeleteTeam(context.Context, string) error

	ListUsers(context.Context) ([]domain.User, error)
}

// TaskFilter narrows ListTasks; zero fields are unconstrained.
type TaskFilter struct {
	UserID    string
	ProjectID string
	TeamID    string
	StartDate domain.Date
	EndDate   domain.Date
}

// Matches reports whether task satisfies the filter.
func (f TaskFilter) Matches(task domain.Task) bool {
	if f.UserID != "" && !task.InvolvesUser(f.UserID) {
		return false
	}
	if f.ProjectID != "" && task.ProjectID != f.ProjectID {
		return false
	}
	if f.TeamID != "" && task.TeamID != f.TeamID {
		return false
	}
	if !f.StartDate.IsZero() && task.EndDate.Before(f.StartDate) {
		return false
	}
	if !f.EndDate.IsZero() && task.StartDate.After(f.EndDate) {
		return false
	}
	return true
}

// TaskFields holds the values for a new task; the remote assigns the id.
type TaskFields struct {
	Title       string
	Description string
	StartDate   domain.Date
	EndDate     domain.Date
	Time        string
	Type        domain.TaskType
	ProjectID   string
	TeamID      string
	CreatorID   string
	AssigneeIDs []string
}

// TaskPatch holds optional task updates; nil fields are left untouched.
type TaskPatch struct {
	Title       *string
	Description *string
	StartDate   *domain.Date
	EndDate     *domain.Date
	Time        *string
	Type        *domain.TaskType
	ProjectID   *string
	TeamID      *string
	AssigneeIDs *[]string
}

// Apply returns task with the patch applied and validated.
func (p TaskPatch) Apply(task domain.Task) (domain.Task, error) {
	out := task.Clone()
	start, end := out.StartDate, out.EndDate
	if p.StartDate != nil {
		start = *p.StartDate
	}
	if p.EndDate != nil {
		end = *p.EndDate
	}
	if err := out.Reschedule(start, end, out.UpdatedAt); err != nil {
		return domain.Task{}, err
	}
	title, description, clock, taskType := out.Title, out.Description, out.Time, out.Type
	if p.Title != nil {
		title = *p.Title
	}
	if p.Description != nil {
		description = *p.Description
	}
	if p.Time != nil {
		clock = *p.Time
	}
	if p.Type != nil {
		taskType = *p.Type
	}
	if err := out.UpdateDetails(title, description, clock, taskType, out.UpdatedAt); err != nil {
		return domain.Task{}, err
	}
	if p.ProjectID != nil {
		out.ProjectID = *p.ProjectID
	}
	if p.TeamID != nil {
		out.TeamID = *p.TeamID
	}
	if p.AssigneeIDs != nil {
		out.AssigneeIDs = domain.NormalizeIDs(*p.AssigneeIDs)
	}
	return out, nil
}

// MoveProject reports whether the patch changes the owning project.
func (p TaskPatch) MoveProject(task domain.Task) bool {
	return p.ProjectID != nil && *p.ProjectID != task.ProjectID
}

// ReschedulePatch builds a patch that only replaces the date range.
func ReschedulePatch(start, end domain.Date) TaskPatch {
	return TaskPatch{StartDate: &start, EndDate: &end}
}

// ProjectFields holds the values for a new project.
type ProjectFields struct {
	Name        string
	Description string
	CreatorID   string
	TeamID      string
	Policy      domain.CollaborationPolicy
	MemberIDs   []string
}

// ProjectPatch holds optional project updates.
type ProjectPatch struct {
	Name        *string
	Description *string
	Policy      *domain.CollaborationPolicy
	TeamID      *string
	MemberIDs   *[]string
}

// TeamFields holds the values for a new team.
type TeamFields struct {
	Name      string
	CreatorID string
	MemberIDs []string
}

// TeamPatch holds optional team updates.
type TeamPatch struct {
	Name      *string
	MemberIDs *[]string
}
