package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hylla/kalend/internal/domain"
)

var errRemoteDown = errors.New("remote unavailable")

type fakeRemote struct {
	mu       sync.Mutex
	now      time.Time
	nextID   int
	tasks    map[string]domain.Task
	projects map[string]domain.Project
	teams    map[string]domain.Team
	users    []domain.User
	calls    map[string]int

	updateTaskErr error
	listTasksErr  error
	listTeamsErr  error
	// beforeUpdate runs ahead of UpdateTask, outside the fake's lock.
	beforeUpdate func()
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		now:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		tasks:    map[string]domain.Task{},
		projects: map[string]domain.Project{},
		teams:    map[string]domain.Team{},
		calls:    map[string]int{},
	}
}

func (f *fakeRemote) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRemote) record(op string) {
	f.calls[op]++
}

func (f *fakeRemote) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeRemote) ListTasks(_ context.Context, filter TaskFilter) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListTasks")
	if f.listTasksErr != nil {
		return nil, f.listTasksErr
	}
	out := make([]domain.Task, 0, len(f.tasks))
	for _, task := range f.tasks {
		if filter.Matches(task) {
			out = append(out, task.Clone())
		}
	}
	return out, nil
}

func (f *fakeRemote) CreateTask(_ context.Context, fields TaskFields) (domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateTask")
	task, err := domain.NewTask(domain.TaskInput{
		ID:          f.id("task"),
		Title:       fields.Title,
		Description: fields.Description,
		StartDate:   fields.StartDate,
		EndDate:     fields.EndDate,
		Time:        fields.Time,
		Type:        fields.Type,
		ProjectID:   fields.ProjectID,
		TeamID:      fields.TeamID,
		CreatorID:   fields.CreatorID,
		AssigneeIDs: fields.AssigneeIDs,
	}, f.now)
	if err != nil {
		return domain.Task{}, err
	}
	f.tasks[task.ID] = task
	if project, ok := f.projects[task.ProjectID]; ok {
		project.AddMembers(append([]string{task.CreatorID}, task.AssigneeIDs...)...)
		f.projects[project.ID] = project
	}
	return task.Clone(), nil
}

func (f *fakeRemote) UpdateTask(_ context.Context, id string, patch TaskPatch) (domain.Task, error) {
	if f.beforeUpdate != nil {
		f.beforeUpdate()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateTask")
	if f.updateTaskErr != nil {
		return domain.Task{}, f.updateTaskErr
	}
	task, ok := f.tasks[id]
	if !ok {
		return domain.Task{}, ErrNotFound
	}
	updated, err := patch.Apply(task)
	if err != nil {
		return domain.Task{}, err
	}
	updated.UpdatedAt = f.now
	f.tasks[id] = updated
	return updated.Clone(), nil
}

func (f *fakeRemote) DeleteTask(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteTask")
	if _, ok := f.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeRemote) ListProjects(context.Context) ([]domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListProjects")
	out := make([]domain.Project, 0, len(f.projects))
	for _, p := range f.projects {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (f *fakeRemote) CreateProject(_ context.Context, fields ProjectFields) (domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateProject")
	project, err := domain.NewProject(f.id("project"), fields.Name, fields.CreatorID, fields.Policy, f.now)
	if err != nil {
		return domain.Project{}, err
	}
	project.TeamID = fields.TeamID
	project.AddMembers(fields.MemberIDs...)
	f.projects[project.ID] = project
	return project.Clone(), nil
}

func (f *fakeRemote) UpdateProject(_ context.Context, id string, patch ProjectPatch) (domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateProject")
	project, ok := f.projects[id]
	if !ok {
		return domain.Project{}, ErrNotFound
	}
	if patch.Name != nil {
		project.Name = *patch.Name
	}
	if patch.Policy != nil {
		project.Policy = *patch.Policy
	}
	f.projects[id] = project
	return project.Clone(), nil
}

func (f *fakeRemote) DeleteProject(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteProject")
	delete(f.projects, id)
	for taskID, task := range f.tasks {
		if task.ProjectID == id {
			delete(f.tasks, taskID)
		}
	}
	return nil
}

func (f *fakeRemote) ListTeams(context.Context) ([]domain.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListTeams")
	if f.listTeamsErr != nil {
		return nil, f.listTeamsErr
	}
	out := make([]domain.Team, 0, len(f.teams))
	for _, t := range f.teams {
		out = append(out, t.Clone())
	}
	return out, nil
}

func (f *fakeRemote) CreateTeam(_ context.Context, fields TeamFields) (domain.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateTeam")
	team, err := domain.NewTeam(f.id("team"), fields.Name, fields.CreatorID, fields.MemberIDs, f.now)
	if err != nil {
		return domain.Team{}, err
	}
	f.teams[team.ID] = team
	return team.Clone(), nil
}

func (f *fakeRemote) UpdateTeam(_ context.Context, id string, patch TeamPatch) (domain.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateTeam")
	team, ok := f.teams[id]
	if !ok {
		return domain.Team{}, ErrNotFound
	}
	if patch.Name != nil {
		team.Name = *patch.Name
	}
	if patch.MemberIDs != nil {
		team.MemberIDs = domain.NormalizeIDs(*patch.MemberIDs)
	}
	f.teams[id] = team
	return team.Clone(), nil
}

func (f *fakeRemote) DeleteTeam(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteTeam")
	delete(f.teams, id)
	return nil
}

func (f *fakeRemote) ListUsers(context.Context) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListUsers")
	return slices.Clone(f.users), nil
}

// seedTask stores a task directly in the fake.
func (f *fakeRemote) seedTask(task domain.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[task.ID] = task
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// phaseRecorder collects mutation phases from any goroutine.
type phaseRecorder struct {
	mu     sync.Mutex
	events []MutationEvent
}

func (r *phaseRecorder) observe(ev MutationEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *phaseRecorder) phases() []MutationPhase {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MutationPhase, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Phase)
	}
	return out
}
