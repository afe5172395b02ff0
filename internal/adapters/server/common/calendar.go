package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/kalend/internal/app"
	"github.com/hylla/kalend/internal/domain"
	"github.com/hylla/kalend/internal/layout"
)

// CalendarConfig holds per-request store settings for StoreAdapter.
type CalendarConfig struct {
	ActorID          string
	WeekStart        time.Weekday
	ReconcileTimeout time.Duration
	Logger           app.Logger
	Clock            app.Clock
}

// StoreAdapter maps transport contracts onto a freshly loaded app.Store per request.
type StoreAdapter struct {
	remote app.Remote
	cfg    CalendarConfig
}

// NewStoreAdapter builds one common adapter over a persistence backend.
func NewStoreAdapter(remote app.Remote, cfg CalendarConfig) *StoreAdapter {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &StoreAdapter{remote: remote, cfg: cfg}
}

// WeekLayout loads the requested scope and projects its week.
func (a *StoreAdapter) WeekLayout(ctx context.Context, in WeekLayoutRequest) (WeekLayout, error) {
	if a == nil || a.remote == nil {
		return WeekLayout{}, fmt.Errorf("calendar adapter is not configured: %w", ErrUnavailable)
	}
	anchor, err := a.parseDay(in.Date)
	if err != nil {
		return WeekLayout{}, err
	}
	nav, err := parseNavigation(in.Mode, in.TeamID, in.ProjectID)
	if err != nil {
		return WeekLayout{}, err
	}

	store, err := a.open(ctx, in.ActorID, anchor, nav)
	if err != nil {
		return WeekLayout{}, err
	}
	switch nav.Mode {
	case app.ModeTeam:
		if !hasTeam(store, nav.TeamID) {
			return WeekLayout{}, fmt.Errorf("team %q: %w", nav.TeamID, ErrNotFound)
		}
	case app.ModeProject:
		if _, ok := store.Project(nav.ProjectID); !ok {
			return WeekLayout{}, fmt.Errorf("project %q: %w", nav.ProjectID, ErrNotFound)
		}
	}

	out := WeekLayout{
		Mode:      string(nav.Mode),
		TeamID:    nav.TeamID,
		ProjectID: nav.ProjectID,
	}
	if nav.Mode == app.ModeTeam {
		for _, row := range store.TeamLayout() {
			out.Rows = append(out.Rows, rowView(row.UserID, row.Row))
		}
	} else {
		out.Rows = []RowView{rowView("", store.WeekLayout())}
	}
	if len(out.Rows) > 0 {
		out.Start, out.End = out.Rows[0].Start, out.Rows[0].End
	} else {
		start := anchor.StartOfWeek(a.cfg.WeekStart)
		out.Start, out.End = start.String(), start.AddDays(6).String()
		out.Rows = []RowView{}
	}
	return out, nil
}

// ListTasks lists tasks matching the request filter.
func (a *StoreAdapter) ListTasks(ctx context.Context, in ListTasksRequest) ([]TaskView, error) {
	if a == nil || a.remote == nil {
		return nil, fmt.Errorf("calendar adapter is not configured: %w", ErrUnavailable)
	}
	filter := app.TaskFilter{
		UserID:    strings.TrimSpace(in.UserID),
		ProjectID: strings.TrimSpace(in.ProjectID),
		TeamID:    strings.TrimSpace(in.TeamID),
	}
	var err error
	if filter.StartDate, err = parseOptionalDay("start_date", in.StartDate); err != nil {
		return nil, err
	}
	if filter.EndDate, err = parseOptionalDay("end_date", in.EndDate); err != nil {
		return nil, err
	}
	if !filter.StartDate.IsZero() && !filter.EndDate.IsZero() && filter.EndDate.Before(filter.StartDate) {
		return nil, fmt.Errorf("end_date before start_date: %w", ErrInvalidRequest)
	}

	tasks, err := a.remote.ListTasks(ctx, filter)
	if err != nil {
		return nil, mapAppError("list tasks", err)
	}
	out := make([]TaskView, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, taskView(task))
	}
	return out, nil
}

// MoveTask shifts one task by whole days through the permission gate.
func (a *StoreAdapter) MoveTask(ctx context.Context, in MoveTaskRequest) (TaskView, error) {
	if a == nil || a.remote == nil {
		return TaskView{}, fmt.Errorf("calendar adapter is not configured: %w", ErrUnavailable)
	}
	taskID := strings.TrimSpace(in.TaskID)
	if taskID == "" {
		return TaskView{}, fmt.Errorf("task_id is required: %w", ErrInvalidRequest)
	}

	// An empty project scope loads every task.
	store, err := a.open(ctx, in.ActorID, domain.DateOf(a.cfg.Clock()), app.Navigation{Mode: app.ModeProject})
	if err != nil {
		return TaskView{}, err
	}
	defer store.Wait()

	task, ok := store.Task(taskID)
	if !ok {
		return TaskView{}, fmt.Errorf("task %q: %w", taskID, ErrNotFound)
	}
	if in.Days == 0 {
		return taskView(task), nil
	}
	shifted := task.Shifted(in.Days)
	updated, err := store.UpdateTask(app.WithActor(ctx, store.Actor().ID), taskID, app.ReschedulePatch(shifted.StartDate, shifted.EndDate))
	if err != nil {
		return TaskView{}, mapAppError("move task", err)
	}
	return taskView(updated), nil
}

// CreateTask creates one task through the permission gate.
func (a *StoreAdapter) CreateTask(ctx context.Context, in CreateTaskRequest) (TaskView, error) {
	if a == nil || a.remote == nil {
		return TaskView{}, fmt.Errorf("calendar adapter is not configured: %w", ErrUnavailable)
	}
	start, err := parseOptionalDay("start_date", in.StartDate)
	if err != nil {
		return TaskView{}, err
	}
	if start.IsZero() {
		return TaskView{}, fmt.Errorf("start_date is required: %w", ErrInvalidRequest)
	}
	if strings.TrimSpace(in.ProjectID) == "" {
		return TaskView{}, fmt.Errorf("project_id is required: %w", ErrInvalidRequest)
	}
	end, err := parseOptionalDay("end_date", in.EndDate)
	if err != nil {
		return TaskView{}, err
	}
	if end.IsZero() {
		end = start
	}

	store, err := a.open(ctx, in.ActorID, start, app.Navigation{Mode: app.ModePersonal})
	if err != nil {
		return TaskView{}, err
	}
	defer store.Wait()

	task, err := store.AddTask(ctx, app.TaskFields{
		Title:       in.Title,
		Description: in.Description,
		StartDate:   start,
		EndDate:     end,
		Time:        in.Time,
		Type:        domain.TaskType(in.Type),
		ProjectID:   strings.TrimSpace(in.ProjectID),
		AssigneeIDs: in.AssigneeIDs,
	})
	if err != nil {
		return TaskView{}, mapAppError("create task", err)
	}
	return taskView(task), nil
}

// open builds and loads one request-scoped store.
func (a *StoreAdapter) open(ctx context.Context, actorID string, anchor domain.Date, nav app.Navigation) (*app.Store, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		actorID = a.cfg.ActorID
	}
	store := app.NewStore(a.remote, app.StoreConfig{
		ActorID:          actorID,
		WeekStart:        a.cfg.WeekStart,
		View:             app.ViewWeek,
		Anchor:           anchor,
		ReconcileTimeout: a.cfg.ReconcileTimeout,
		Logger:           a.cfg.Logger,
		Clock:            a.cfg.Clock,
	})
	store.SetNavigation(nav)
	if err := store.Load(ctx); err != nil {
		return nil, mapAppError("load calendar", err)
	}
	return store, nil
}

// parseDay parses an optional request date, defaulting to today.
func (a *StoreAdapter) parseDay(raw string) (domain.Date, error) {
	day, err := parseOptionalDay("date", raw)
	if err != nil {
		return domain.Date{}, err
	}
	if day.IsZero() {
		day = domain.DateOf(a.cfg.Clock())
	}
	return day, nil
}

func parseOptionalDay(field, raw string) (domain.Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.Date{}, nil
	}
	day, err := domain.ParseDate(raw)
	if err != nil {
		return domain.Date{}, fmt.Errorf("%s %q: %w", field, raw, errors.Join(ErrInvalidRequest, err))
	}
	return day, nil
}

// parseNavigation validates mode and its required scope id.
func parseNavigation(mode, teamID, projectID string) (app.Navigation, error) {
	nav := app.Navigation{
		Mode:      app.Mode(strings.ToLower(strings.TrimSpace(mode))),
		TeamID:    strings.TrimSpace(teamID),
		ProjectID: strings.TrimSpace(projectID),
	}
	switch nav.Mode {
	case "", app.ModePersonal:
		return app.Navigation{Mode: app.ModePersonal}, nil
	case app.ModeTeam:
		if nav.TeamID == "" {
			return app.Navigation{}, fmt.Errorf("team_id is required in team mode: %w", ErrInvalidRequest)
		}
		return app.Navigation{Mode: app.ModeTeam, TeamID: nav.TeamID}, nil
	case app.ModeProject:
		if nav.ProjectID == "" {
			return app.Navigation{}, fmt.Errorf("project_id is required in project mode: %w", ErrInvalidRequest)
		}
		return app.Navigation{Mode: app.ModeProject, ProjectID: nav.ProjectID}, nil
	default:
		return app.Navigation{}, fmt.Errorf("unsupported mode %q: %w", mode, ErrInvalidRequest)
	}
}

func hasTeam(store *app.Store, teamID string) bool {
	for _, team := range store.Teams() {
		if team.ID == teamID {
			return true
		}
	}
	return false
}

// rowView converts one laned row into its transport shape.
func rowView(userID string, row layout.Row) RowView {
	out := RowView{
		UserID:    userID,
		Start:     row.Start.String(),
		End:       row.End().String(),
		LaneCount: row.LaneCount,
		Days:      make([]DayView, 0, row.Days),
	}
	for i := range row.Days {
		day := DayView{Date: row.Day(i).String(), Blocks: []BlockView{}}
		if i < len(row.Cells) {
			for _, block := range row.Cells[i] {
				day.Blocks = append(day.Blocks, BlockView{
					TaskID:            block.Task.ID,
					Title:             block.Task.Title,
					Type:              string(block.Task.Type),
					ProjectID:         block.Task.ProjectID,
					Lane:              block.Lane,
					Start:             block.Start.String(),
					Span:              block.Span,
					StartsBlock:       block.StartsBlock,
					ContinuesFromPrev: block.ContinuesFromPrev,
					ContinuesToNext:   block.ContinuesToNext,
				})
			}
		}
		out.Days = append(out.Days, day)
	}
	return out
}

func taskView(task domain.Task) TaskView {
	assignees := task.AssigneeIDs
	if assignees == nil {
		assignees = []string{}
	}
	return TaskView{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		StartDate:   task.StartDate.String(),
		EndDate:     task.EndDate.String(),
		Time:        task.Time,
		Type:        string(task.Type),
		ProjectID:   task.ProjectID,
		TeamID:      task.TeamID,
		CreatorID:   task.CreatorID,
		AssigneeIDs: assignees,
		UpdatedAt:   task.UpdatedAt,
	}
}

// mapAppError classifies app and domain failures into transport sentinels.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrPermissionDenied):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrPermissionDenied, err))
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrInvalidDate),
		errors.Is(err, domain.ErrInvalidDateRange),
		errors.Is(err, domain.ErrInvalidTime),
		errors.Is(err, domain.ErrInvalidTaskType),
		errors.Is(err, domain.ErrInvalidPolicy):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	case errors.Is(err, app.ErrRemote):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrUnavailable, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}

var _ CalendarService = (*StoreAdapter)(nil)
