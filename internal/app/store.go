package app

import (
	"cmp"
	"context"
	"io"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sourcegraph/conc"

	"github.com/hylla/kalend/internal/domain"
	"github.com/hylla/kalend/internal/layout"
)

// Mode selects which slice of tasks the calendar shows.
type Mode string

// Mode values.
const (
	ModePersonal Mode = "personal"
	ModeTeam     Mode = "team"
	ModeProject  Mode = "project"
)

// View selects the calendar granularity.
type View string

// View values.
const (
	ViewMonth View = "month"
	ViewWeek  View = "week"
	ViewDay   View = "day"
)

// ParseView maps user input onto a view; empty defaults to ViewWeek.
func ParseView(raw string) (View, bool) {
	switch View(raw) {
	case "":
		return ViewWeek, true
	case ViewMonth, ViewWeek, ViewDay:
		return View(raw), true
	default:
		return "", false
	}
}

// Navigation identifies the scope the calendar is showing.
type Navigation struct {
	Mode      Mode
	TeamID    string
	ProjectID string
}

// DateRange is a closed range of days.
type DateRange struct {
	Start domain.Date
	End   domain.Date
}

// Days returns the inclusive number of days in the range.
func (r DateRange) Days() int {
	return domain.DaysBetween(r.Start, r.End) + 1
}

// Logger is the structured logger the store writes to.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Info(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}

// Clock returns the current time.
type Clock func() time.Time

// StoreConfig holds configuration for store.
type StoreConfig struct {
	ActorID          string
	WeekStart        time.Weekday
	View             View
	Anchor           domain.Date
	GestureTimeout   time.Duration
	ReconcileTimeout time.Duration
	Logger           Logger
	Observer         MutationObserver
	Clock            Clock
}

// Default timeouts.
const (
	DefaultGestureTimeout   = 30 * time.Second
	DefaultReconcileTimeout = 10 * time.Second
)

// Store is the single state container shared by every calendar view.
type Store struct {
	remote           Remote
	logger           Logger
	observer         MutationObserver
	clock            Clock
	gestureTimeout   time.Duration
	reconcileTimeout time.Duration

	background conc.WaitGroup

	mu        sync.Mutex
	actorID   string
	tasks     map[string]domain.Task
	projects  map[string]domain.Project
	teams     map[string]domain.Team
	users     map[string]domain.User
	overrides map[string]domain.Task
	nav       Navigation
	anchor    domain.Date
	view      View
	weekStart time.Weekday
	notices   []Notice

	create *DragCreate
	move   *DragMove
}

// NewStore constructs a new value for this package.
func NewStore(remote Remote, cfg StoreConfig) *Store {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	if cfg.GestureTimeout <= 0 {
		cfg.GestureTimeout = DefaultGestureTimeout
	}
	if cfg.ReconcileTimeout <= 0 {
		cfg.ReconcileTimeout = DefaultReconcileTimeout
	}
	if view, ok := ParseView(string(cfg.View)); ok {
		cfg.View = view
	} else {
		cfg.View = ViewWeek
	}
	if cfg.Anchor.IsZero() {
		cfg.Anchor = domain.DateOf(cfg.Clock())
	}

	s := &Store{
		remote:           remote,
		logger:           cfg.Logger,
		observer:         cfg.Observer,
		clock:            cfg.Clock,
		gestureTimeout:   cfg.GestureTimeout,
		reconcileTimeout: cfg.ReconcileTimeout,
		actorID:          cfg.ActorID,
		tasks:            map[string]domain.Task{},
		projects:         map[string]domain.Project{},
		teams:            map[string]domain.Team{},
		users:            map[string]domain.User{},
		overrides:        map[string]domain.Task{},
		nav:              Navigation{Mode: ModePersonal},
		anchor:           cfg.Anchor,
		view:             cfg.View,
		weekStart:        cfg.WeekStart,
	}
	s.create = newDragCreate(s.clock, s.gestureTimeout)
	s.move = newDragMove(s)
	return s
}

// CreateGesture returns the drag-to-create machine.
func (s *Store) CreateGesture() *DragCreate {
	return s.create
}

// MoveGesture returns the drag-to-move machine.
func (s *Store) MoveGesture() *DragMove {
	return s.move
}

// Wait blocks until background reconciliations finish.
func (s *Store) Wait() {
	s.background.Wait()
}

// Load fetches users, teams, projects and the scoped task list.
func (s *Store) Load(ctx context.Context) error {
	users, err := s.remote.ListUsers(ctx)
	if err != nil {
		return remoteErr("load users", err)
	}
	s.mu.Lock()
	s.users = indexBy(users, func(u domain.User) string { return u.ID })
	s.mu.Unlock()

	if err := s.RefreshTeams(ctx); err != nil {
		return err
	}
	if err := s.RefreshProjects(ctx); err != nil {
		return err
	}
	return s.RefreshTasks(ctx)
}

// RefreshTasks replaces the committed task layer with the remote's scoped list.
// Pending overrides are kept and keep winning until their gesture ends.
func (s *Store) RefreshTasks(ctx context.Context) error {
	s.mu.Lock()
	filter := s.scopeFilterLocked()
	s.mu.Unlock()

	tasks, err := s.remote.ListTasks(ctx, filter)
	if err != nil {
		return remoteErr("load tasks", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// A navigation change while the fetch was in flight makes this result stale.
	if s.scopeFilterLocked() != filter {
		return nil
	}
	s.tasks = indexBy(tasks, func(t domain.Task) string { return t.ID })
	return nil
}

// RefreshProjects replaces the project collection.
func (s *Store) RefreshProjects(ctx context.Context) error {
	projects, err := s.remote.ListProjects(ctx)
	if err != nil {
		return remoteErr("load projects", err)
	}
	s.mu.Lock()
	s.projects = indexBy(projects, func(p domain.Project) string { return p.ID })
	s.mu.Unlock()
	return nil
}

// RefreshTeams replaces the team collection.
func (s *Store) RefreshTeams(ctx context.Context) error {
	teams, err := s.remote.ListTeams(ctx)
	if err != nil {
		return remoteErr("load teams", err)
	}
	s.mu.Lock()
	s.teams = indexBy(teams, func(t domain.Team) string { return t.ID })
	s.mu.Unlock()
	return nil
}

// Tasks returns the effective task list: committed tasks with pending overrides applied.
func (s *Store) Tasks() []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.effectiveTasksLocked()
}

// ScopedTasks returns the effective tasks that belong to the current navigation scope.
func (s *Store) ScopedTasks() []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scopedTasksLocked()
}

// Task returns one effective task.
func (s *Store) Task(id string) (domain.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.effectiveTaskLocked(id)
}

// Projects returns the project collection ordered by name.
func (s *Store) Projects() []domain.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p.Clone())
	}
	slices.SortFunc(out, func(a, b domain.Project) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// Project returns one project.
func (s *Store) Project(id string) (domain.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	return p.Clone(), ok
}

// Teams returns the team collection ordered by name.
func (s *Store) Teams() []domain.Team {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Team, 0, len(s.teams))
	for _, t := range s.teams {
		out = append(out, t.Clone())
	}
	slices.SortFunc(out, func(a, b domain.Team) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// Users returns the user collection ordered by id.
func (s *Store) Users() []domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Collect(maps.Values(s.users))
	slices.SortFunc(out, func(a, b domain.User) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Actor returns the store's acting user.
func (s *Store) Actor() domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userLocked(s.actorID)
}

// SetActor changes the store's acting user.
func (s *Store) SetActor(userID string) {
	s.mu.Lock()
	s.actorID = userID
	s.mu.Unlock()
}

// Navigation returns the current scope.
func (s *Store) Navigation() Navigation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav
}

// SetNavigation changes the scope; callers refresh tasks afterwards.
func (s *Store) SetNavigation(nav Navigation) {
	if nav.Mode == "" {
		nav.Mode = ModePersonal
	}
	s.mu.Lock()
	s.nav = nav
	s.mu.Unlock()
}

// Anchor returns the date the visible range is built around.
func (s *Store) Anchor() domain.Date {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.anchor
}

// SetAnchor moves the visible range to contain day.
func (s *Store) SetAnchor(day domain.Date) {
	if day.IsZero() {
		return
	}
	s.mu.Lock()
	s.anchor = day
	s.mu.Unlock()
}

// View returns the current calendar view.
func (s *Store) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// SetView changes the calendar view; unknown views are ignored.
func (s *Store) SetView(view View) {
	if _, ok := ParseView(string(view)); !ok || view == "" {
		return
	}
	s.mu.Lock()
	s.view = view
	s.mu.Unlock()
}

// WeekStart returns the first weekday of calendar rows.
func (s *Store) WeekStart() time.Weekday {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.weekStart
}

// Navigate moves the anchor by n view lengths.
func (s *Store) Navigate(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.view {
	case ViewDay:
		s.anchor = s.anchor.AddDays(n)
	case ViewMonth:
		s.anchor = domain.DateOf(s.anchor.StartOfMonth().Time().AddDate(0, n, 0))
	default:
		s.anchor = s.anchor.AddDays(7 * n)
	}
}

// VisibleRange returns the days the current view shows.
func (s *Store) VisibleRange() DateRange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visibleRangeLocked()
}

// WeekLayout projects the scoped tasks onto the week containing the anchor.
func (s *Store) WeekLayout() layout.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := s.anchor.StartOfWeek(s.weekStart)
	return layout.WeekRow(s.scopedTasksLocked(), start, 7)
}

// DayLayout projects the scoped tasks onto the anchor day.
func (s *Store) DayLayout() layout.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return layout.WeekRow(s.scopedTasksLocked(), s.anchor, 1)
}

// MonthLayout projects the scoped tasks onto the month containing the anchor.
func (s *Store) MonthLayout() layout.Month {
	s.mu.Lock()
	defer s.mu.Unlock()
	return layout.MonthGrid(s.scopedTasksLocked(), s.anchor, s.weekStart)
}

// TeamLayout projects one row per team member over the anchor week.
// Outside team mode it returns the actor's own row.
func (s *Store) TeamLayout() []layout.UserRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := s.anchor.StartOfWeek(s.weekStart)
	userIDs := []string{s.actorID}
	if s.nav.Mode == ModeTeam {
		if team, ok := s.teams[s.nav.TeamID]; ok {
			userIDs = team.MemberIDs
		}
	}
	return layout.UserRows(s.scopedTasksLocked(), userIDs, start, 7)
}

func (s *Store) visibleRangeLocked() DateRange {
	switch s.view {
	case ViewDay:
		return DateRange{Start: s.anchor, End: s.anchor}
	case ViewMonth:
		grid := layout.MonthGrid(nil, s.anchor, s.weekStart)
		return DateRange{Start: grid.Rows[0].Start, End: grid.Rows[len(grid.Rows)-1].End()}
	default:
		start := s.anchor.StartOfWeek(s.weekStart)
		return DateRange{Start: start, End: start.AddDays(6)}
	}
}

// scopeFilterLocked returns the remote filter for the current navigation.
func (s *Store) scopeFilterLocked() TaskFilter {
	switch s.nav.Mode {
	case ModeTeam:
		return TaskFilter{TeamID: s.nav.TeamID}
	case ModeProject:
		return TaskFilter{ProjectID: s.nav.ProjectID}
	default:
		return TaskFilter{UserID: s.actorID}
	}
}

func (s *Store) inScopeLocked(task domain.Task) bool {
	return s.scopeFilterLocked().Matches(task)
}

func (s *Store) effectiveTaskLocked(id string) (domain.Task, bool) {
	if task, ok := s.overrides[id]; ok {
		return task.Clone(), true
	}
	task, ok := s.tasks[id]
	return task.Clone(), ok
}

func (s *Store) effectiveTasksLocked() []domain.Task {
	merged := maps.Clone(s.tasks)
	maps.Copy(merged, s.overrides)
	out := make([]domain.Task, 0, len(merged))
	for _, task := range merged {
		out = append(out, task.Clone())
	}
	slices.SortFunc(out, func(a, b domain.Task) int {
		return cmp.Or(a.StartDate.Compare(b.StartDate), a.EndDate.Compare(b.EndDate), cmp.Compare(a.ID, b.ID))
	})
	return out
}

func (s *Store) scopedTasksLocked() []domain.Task {
	all := s.effectiveTasksLocked()
	out := all[:0]
	for _, task := range all {
		// An overridden task stays visible while its gesture is active.
		if _, moving := s.overrides[task.ID]; moving || s.inScopeLocked(task) {
			out = append(out, task)
		}
	}
	return out
}

// userLocked resolves a user id; unknown ids resolve to a non-admin user.
func (s *Store) userLocked(userID string) domain.User {
	if user, ok := s.users[userID]; ok {
		return user
	}
	return domain.User{ID: userID, Name: userID}
}

// actorFor resolves the acting user from ctx, falling back to the store actor.
func (s *Store) actorFor(ctx context.Context) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := ActorFromContext(ctx)
	if !ok {
		userID = s.actorID
	}
	return s.userLocked(userID)
}

func indexBy[T any](items []T, key func(T) string) map[string]T {
	out := make(map[string]T, len(items))
	for _, item := range items {
		out[key(item)] = item
	}
	return out
}
