package domain

import (
	"slices"
	"strings"
	"time"
)

// TaskType identifies the calendar rendering family of a task.
type TaskType string

// TaskType values.
const (
	TaskTypeTask      TaskType = "task"
	TaskTypeMeeting   TaskType = "meeting"
	TaskTypeDeadline  TaskType = "deadline"
	TaskTypeMilestone TaskType = "milestone"
	TaskTypeReminder  TaskType = "reminder"
)

var validTaskTypes = []TaskType{
	TaskTypeTask,
	TaskTypeMeeting,
	TaskTypeDeadline,
	TaskTypeMilestone,
	TaskTypeReminder,
}

// Task is one dated calendar entry owned by a project.
type Task struct {
	ID          string
	Title       string
	Description string
	StartDate   Date
	EndDate     Date
	// Time is an optional HH:MM display hint and never takes part in overlap math.
	Time        string
	Type        TaskType
	ProjectID   string
	TeamID      string
	CreatorID   string
	AssigneeIDs []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskInput holds constructor values for NewTask.
type TaskInput struct {
	ID          string
	Title       string
	Description string
	StartDate   Date
	EndDate     Date
	Time        string
	Type        TaskType
	ProjectID   string
	TeamID      string
	CreatorID   string
	AssigneeIDs []string
}

// NewTask validates input and builds a task.
func NewTask(in TaskInput, now time.Time) (Task, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Title = strings.TrimSpace(in.Title)
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	in.CreatorID = strings.TrimSpace(in.CreatorID)

	if in.ID == "" || in.ProjectID == "" || in.CreatorID == "" {
		return Task{}, ErrInvalidID
	}
	if in.Title == "" {
		return Task{}, ErrInvalidTitle
	}
	if err := validateRange(in.StartDate, in.EndDate); err != nil {
		return Task{}, err
	}
	taskType, err := NormalizeTaskType(in.Type)
	if err != nil {
		return Task{}, err
	}
	clock, err := normalizeTimeOfDay(in.Time)
	if err != nil {
		return Task{}, err
	}

	return Task{
		ID:          in.ID,
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Time:        clock,
		Type:        taskType,
		ProjectID:   in.ProjectID,
		TeamID:      strings.TrimSpace(in.TeamID),
		CreatorID:   in.CreatorID,
		AssigneeIDs: NormalizeIDs(in.AssigneeIDs),
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	t.AssigneeIDs = slices.Clone(t.AssigneeIDs)
	return t
}

// Overlaps reports whether two closed day ranges share at least one day.
func (t Task) Overlaps(other Task) bool {
	return !t.StartDate.After(other.EndDate) && !other.StartDate.After(t.EndDate)
}

// Covers reports whether day lies inside the task's closed range.
func (t Task) Covers(day Date) bool {
	return !day.Before(t.StartDate) && !day.After(t.EndDate)
}

// DurationDays returns the inclusive number of days the task spans.
func (t Task) DurationDays() int {
	return DaysBetween(t.StartDate, t.EndDate) + 1
}

// InvolvesUser reports whether the user created or is assigned to the task.
func (t Task) InvolvesUser(userID string) bool {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false
	}
	return t.CreatorID == userID || slices.Contains(t.AssigneeIDs, userID)
}

// Shifted returns a copy of the task with both dates moved by days.
func (t Task) Shifted(days int) Task {
	out := t.Clone()
	out.StartDate = t.StartDate.AddDays(days)
	out.EndDate = t.EndDate.AddDays(days)
	return out
}

// Reschedule replaces the task's date range.
func (t *Task) Reschedule(start, end Date, now time.Time) error {
	if err := validateRange(start, end); err != nil {
		return err
	}
	t.StartDate = start
	t.EndDate = end
	t.UpdatedAt = now.UTC()
	return nil
}

// UpdateDetails updates the descriptive fields of the task.
func (t *Task) UpdateDetails(title, description, clock string, taskType TaskType, now time.Time) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrInvalidTitle
	}
	normalizedType, err := NormalizeTaskType(taskType)
	if err != nil {
		return err
	}
	normalizedClock, err := normalizeTimeOfDay(clock)
	if err != nil {
		return err
	}
	t.Title = title
	t.Description = strings.TrimSpace(description)
	t.Time = normalizedClock
	t.Type = normalizedType
	t.UpdatedAt = now.UTC()
	return nil
}

// NormalizeTaskType canonicalizes a task type; empty defaults to TaskTypeTask.
func NormalizeTaskType(raw TaskType) (TaskType, error) {
	taskType := TaskType(strings.TrimSpace(strings.ToLower(string(raw))))
	if taskType == "" {
		return TaskTypeTask, nil
	}
	if !slices.Contains(validTaskTypes, taskType) {
		return "", ErrInvalidTaskType
	}
	return taskType, nil
}

// TaskTypes returns the supported task types in display order.
func TaskTypes() []TaskType {
	return slices.Clone(validTaskTypes)
}

// NormalizeIDs trims, deduplicates and sorts identifier lists.
func NormalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := map[string]struct{}{}
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// validateRange enforces start <= end on non-zero dates.
func validateRange(start, end Date) error {
	if start.IsZero() || end.IsZero() {
		return ErrInvalidDate
	}
	if end.Before(start) {
		return ErrInvalidDateRange
	}
	return nil
}

// normalizeTimeOfDay validates an optional HH:MM display time.
func normalizeTimeOfDay(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	parsed, err := time.Parse("15:04", raw)
	if err != nil {
		return "", ErrInvalidTime
	}
	return parsed.Format("15:04"), nil
}
