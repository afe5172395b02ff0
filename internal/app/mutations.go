package app

import (
	"context"
	"fmt"
	"slices"

	"github.com/hylla/kalend/internal/domain"
)

// runMutation drives one gated remote mutation through its lifecycle.
// On success commit runs under the store lock before background reconciliation starts.
func runMutation[T any](
	ctx context.Context,
	m *mutation,
	gate func() error,
	op string,
	call func(context.Context) (T, error),
	commit func(T),
	scope reconcileScope,
	after func(T) func(),
) (T, error) {
	var zero T
	s := m.store
	if err := gate(); err != nil {
		phase := PhaseFailed
		if isPermissionDenied(err) {
			phase = PhaseDenied
		}
		m.enter(phase, err)
		return zero, err
	}
	m.enter(PhasePermissionChecked, nil)

	m.enter(PhaseInFlight, nil)
	out, err := call(ctx)
	if err != nil {
		err = remoteErr(op, err)
		m.enter(PhaseFailed, err)
		return zero, err
	}

	s.mu.Lock()
	commit(out)
	s.mu.Unlock()
	m.enter(PhaseCommitted, nil)

	var finish func()
	if after != nil {
		finish = after(out)
	}
	s.reconcile(ctx, m, scope, finish)
	return out, nil
}

// AddTask creates a task in a project the actor may change.
func (s *Store) AddTask(ctx context.Context, fields TaskFields) (domain.Task, error) {
	m := s.beginMutation(ActionCreate, ResourceTask, "")
	actor := s.actorFor(ctx)
	if fields.CreatorID == "" {
		fields.CreatorID = actor.ID
	}
	gate := func() error {
		project, err := s.projectFor(fields.ProjectID)
		if err != nil {
			return err
		}
		if err := Authorize(actor, ActionCreate, TaskResource(project)); err != nil {
			return err
		}
		return validateTaskFields(fields, s.clock)
	}
	return runMutation(ctx, m, gate, "create task",
		func(ctx context.Context) (domain.Task, error) { return s.remote.CreateTask(ctx, fields) },
		func(task domain.Task) { s.tasks[task.ID] = task },
		reconcileAll,
		nil,
	)
}

// UpdateTask applies patch to a task the actor may change.
func (s *Store) UpdateTask(ctx context.Context, id string, patch TaskPatch) (domain.Task, error) {
	return s.updateTask(ctx, id, patch, nil)
}

// updateTask runs UpdateTask and calls settled once the follow-up refresh has settled.
// settled is never called when the update fails.
func (s *Store) updateTask(ctx context.Context, id string, patch TaskPatch, settled func()) (domain.Task, error) {
	m := s.beginMutation(ActionUpdate, ResourceTask, id)
	m.settled = settled
	actor := s.actorFor(ctx)
	var (
		before     domain.Task
		wasInScope bool
	)
	gate := func() error {
		s.mu.Lock()
		task, ok := s.tasks[id]
		wasInScope = ok && s.inScopeLocked(task)
		s.mu.Unlock()
		if !ok {
			return fmt.Errorf("task %q: %w", id, ErrNotFound)
		}
		before = task.Clone()
		project, err := s.projectFor(task.ProjectID)
		if err != nil {
			return err
		}
		if err := Authorize(actor, ActionUpdate, TaskResource(project)); err != nil {
			return err
		}
		if patch.MoveProject(task) {
			target, err := s.projectFor(*patch.ProjectID)
			if err != nil {
				return err
			}
			if err := Authorize(actor, ActionUpdate, TaskResource(target)); err != nil {
				return err
			}
		}
		_, err = patch.Apply(task)
		return err
	}
	return runMutation(ctx, m, gate, "update task",
		func(ctx context.Context) (domain.Task, error) { return s.remote.UpdateTask(ctx, id, patch) },
		func(task domain.Task) { s.tasks[task.ID] = task },
		updateScope(patch),
		func(updated domain.Task) func() {
			s.mu.Lock()
			leaves := wasInScope && !s.inScopeLocked(updated)
			s.mu.Unlock()
			if !leaves {
				return nil
			}
			return func() {
				s.logger.Info("task left current view", "task_id", updated.ID, "project_id", updated.ProjectID, "previous_project_id", before.ProjectID)
				s.pushNotice(NoticeInfo, fmt.Sprintf("%q moved out of this view", updated.Title))
			}
		},
	)
}

// DeleteTask removes a task the actor may change.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	m := s.beginMutation(ActionDelete, ResourceTask, id)
	actor := s.actorFor(ctx)
	gate := func() error {
		task, ok := s.committedTask(id)
		if !ok {
			return fmt.Errorf("task %q: %w", id, ErrNotFound)
		}
		project, err := s.projectFor(task.ProjectID)
		if err != nil {
			return err
		}
		return Authorize(actor, ActionDelete, TaskResource(project))
	}
	_, err := runMutation(ctx, m, gate, "delete task",
		func(ctx context.Context) (struct{}, error) { return struct{}{}, s.remote.DeleteTask(ctx, id) },
		func(struct{}) {
			delete(s.tasks, id)
			delete(s.overrides, id)
		},
		reconcileTasks,
		nil,
	)
	return err
}

// AddProject creates a project owned by the actor.
func (s *Store) AddProject(ctx context.Context, fields ProjectFields) (domain.Project, error) {
	m := s.beginMutation(ActionCreate, ResourceProject, "")
	actor := s.actorFor(ctx)
	if fields.CreatorID == "" {
		fields.CreatorID = actor.ID
	}
	gate := func() error {
		if err := Authorize(actor, ActionCreate, Resource{Kind: ResourceProject}); err != nil {
			return err
		}
		_, err := domain.NewProject("pending", fields.Name, fields.CreatorID, fields.Policy, s.clock())
		return err
	}
	return runMutation(ctx, m, gate, "create project",
		func(ctx context.Context) (domain.Project, error) { return s.remote.CreateProject(ctx, fields) },
		func(p domain.Project) { s.projects[p.ID] = p },
		reconcileProjects|reconcileTeams,
		nil,
	)
}

// UpdateProject applies patch to a project the actor created.
func (s *Store) UpdateProject(ctx context.Context, id string, patch ProjectPatch) (domain.Project, error) {
	m := s.beginMutation(ActionUpdate, ResourceProject, id)
	actor := s.actorFor(ctx)
	gate := func() error {
		project, err := s.projectFor(id)
		if err != nil {
			return err
		}
		return Authorize(actor, ActionUpdate, Resource{Kind: ResourceProject, CreatorID: project.CreatorID})
	}
	return runMutation(ctx, m, gate, "update project",
		func(ctx context.Context) (domain.Project, error) { return s.remote.UpdateProject(ctx, id, patch) },
		func(p domain.Project) { s.projects[p.ID] = p },
		reconcileProjects|reconcileTasks,
		nil,
	)
}

// DeleteProject removes a project the actor created along with its local tasks.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	m := s.beginMutation(ActionDelete, ResourceProject, id)
	actor := s.actorFor(ctx)
	gate := func() error {
		project, err := s.projectFor(id)
		if err != nil {
			return err
		}
		return Authorize(actor, ActionDelete, Resource{Kind: ResourceProject, CreatorID: project.CreatorID})
	}
	_, err := runMutation(ctx, m, gate, "delete project",
		func(ctx context.Context) (struct{}, error) { return struct{}{}, s.remote.DeleteProject(ctx, id) },
		func(struct{}) {
			delete(s.projects, id)
			for taskID, task := range s.tasks {
				if task.ProjectID == id {
					delete(s.tasks, taskID)
				}
			}
		},
		reconcileProjects|reconcileTasks,
		nil,
	)
	return err
}

// AddTeam creates a team owned by the actor.
func (s *Store) AddTeam(ctx context.Context, fields TeamFields) (domain.Team, error) {
	m := s.beginMutation(ActionCreate, ResourceTeam, "")
	actor := s.actorFor(ctx)
	if fields.CreatorID == "" {
		fields.CreatorID = actor.ID
	}
	gate := func() error {
		if err := Authorize(actor, ActionCreate, Resource{Kind: ResourceTeam}); err != nil {
			return err
		}
		_, err := domain.NewTeam("pending", fields.Name, fields.CreatorID, fields.MemberIDs, s.clock())
		return err
	}
	return runMutation(ctx, m, gate, "create team",
		func(ctx context.Context) (domain.Team, error) { return s.remote.CreateTeam(ctx, fields) },
		func(t domain.Team) { s.teams[t.ID] = t },
		reconcileTeams,
		nil,
	)
}

// UpdateTeam applies patch to a team the actor created.
func (s *Store) UpdateTeam(ctx context.Context, id string, patch TeamPatch) (domain.Team, error) {
	m := s.beginMutation(ActionUpdate, ResourceTeam, id)
	actor := s.actorFor(ctx)
	gate := func() error {
		team, err := s.teamFor(id)
		if err != nil {
			return err
		}
		return Authorize(actor, ActionUpdate, Resource{Kind: ResourceTeam, CreatorID: team.CreatorID})
	}
	return runMutation(ctx, m, gate, "update team",
		func(ctx context.Context) (domain.Team, error) { return s.remote.UpdateTeam(ctx, id, patch) },
		func(t domain.Team) { s.teams[t.ID] = t },
		reconcileTeams|reconcileTasks,
		nil,
	)
}

// DeleteTeam removes a team the actor created.
func (s *Store) DeleteTeam(ctx context.Context, id string) error {
	m := s.beginMutation(ActionDelete, ResourceTeam, id)
	actor := s.actorFor(ctx)
	gate := func() error {
		team, err := s.teamFor(id)
		if err != nil {
			return err
		}
		return Authorize(actor, ActionDelete, Resource{Kind: ResourceTeam, CreatorID: team.CreatorID})
	}
	_, err := runMutation(ctx, m, gate, "delete team",
		func(ctx context.Context) (struct{}, error) { return struct{}{}, s.remote.DeleteTeam(ctx, id) },
		func(struct{}) { delete(s.teams, id) },
		reconcileAll,
		nil,
	)
	return err
}

func (s *Store) committedTask(id string) (domain.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	return task.Clone(), ok
}

func (s *Store) projectFor(id string) (domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	project, ok := s.projects[id]
	if !ok {
		return domain.Project{}, fmt.Errorf("project %q: %w", id, ErrNotFound)
	}
	return project.Clone(), nil
}

func (s *Store) teamFor(id string) (domain.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	team, ok := s.teams[id]
	if !ok {
		return domain.Team{}, fmt.Errorf("team %q: %w", id, ErrNotFound)
	}
	return team.Clone(), nil
}

// updateScope refreshes membership slices only when the patch can enroll users.
func updateScope(patch TaskPatch) reconcileScope {
	if patch.AssigneeIDs != nil || patch.ProjectID != nil || patch.TeamID != nil {
		return reconcileAll
	}
	return reconcileTasks
}

func validateTaskFields(fields TaskFields, clock Clock) error {
	_, err := domain.NewTask(domain.TaskInput{
		ID:          "pending",
		Title:       fields.Title,
		Description: fields.Description,
		StartDate:   fields.StartDate,
		EndDate:     fields.EndDate,
		Time:        fields.Time,
		Type:        fields.Type,
		ProjectID:   fields.ProjectID,
		TeamID:      fields.TeamID,
		CreatorID:   fields.CreatorID,
		AssigneeIDs: slices.Clone(fields.AssigneeIDs),
	}, clock())
	return err
}
