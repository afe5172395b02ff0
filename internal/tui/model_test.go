package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/hylla/kalend/internal/adapters/storage/sqlite"
	"github.com/hylla/kalend/internal/app"
	"github.com/hylla/kalend/internal/domain"
)

// Column x positions at width 96: gutter 12, columns 12 wide.
const (
	testWidth  = 96
	testHeight = 40
)

func colX(col int) int {
	return gutterWidth + col*12 + 1
}

type tuiFixture struct {
	repo    *sqlite.Repository
	team    domain.Team
	open    domain.Project
	locked  domain.Project
	kickoff domain.Task
	freeze  domain.Task
}

// failingRemote rejects task updates and delegates everything else.
type failingRemote struct {
	*sqlite.Repository
	err error
}

func (f failingRemote) UpdateTask(context.Context, string, app.TaskPatch) (domain.Task, error) {
	return domain.Task{}, f.err
}

func mustDay(t *testing.T, raw string) domain.Date {
	t.Helper()
	d, err := domain.ParseDate(raw)
	if err != nil {
		t.Fatalf("ParseDate(%q) error = %v", raw, err)
	}
	return d
}

func newTUIFixture(t *testing.T) tuiFixture {
	t.Helper()
	ctx := context.Background()
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	for _, u := range []domain.User{{ID: "alice", Name: "Alice"}, {ID: "bob", Name: "Bob"}} {
		if err := repo.UpsertUser(ctx, u); err != nil {
			t.Fatalf("UpsertUser() error = %v", err)
		}
	}
	team, err := repo.CreateTeam(ctx, app.TeamFields{Name: "Platform", CreatorID: "alice", MemberIDs: []string{"bob"}})
	if err != nil {
		t.Fatalf("CreateTeam() error = %v", err)
	}
	open, err := repo.CreateProject(ctx, app.ProjectFields{Name: "Open", CreatorID: "alice", TeamID: team.ID, MemberIDs: []string{"bob"}})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	locked, err := repo.CreateProject(ctx, app.ProjectFields{Name: "Locked", CreatorID: "alice", TeamID: team.ID, Policy: domain.PolicyCreatorOnly})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	kickoff, err := repo.CreateTask(ctx, app.TaskFields{
		Title: "Kickoff", Description: "**ship** the plan",
		StartDate: mustDay(t, "2026-03-02"), EndDate: mustDay(t, "2026-03-04"),
		ProjectID: open.ID, CreatorID: "alice",
	})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	freeze, err := repo.CreateTask(ctx, app.TaskFields{
		Title: "Freeze", StartDate: mustDay(t, "2026-03-03"), EndDate: mustDay(t, "2026-03-03"),
		Type: domain.TaskTypeDeadline, ProjectID: locked.ID, CreatorID: "alice", AssigneeIDs: []string{"bob"},
	})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	return tuiFixture{repo: repo, team: team, open: open, locked: locked, kickoff: kickoff, freeze: freeze}
}

func newTestStore(t *testing.T, remote app.Remote, actorID string) *app.Store {
	t.Helper()
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	store := app.NewStore(remote, app.StoreConfig{
		ActorID:   actorID,
		WeekStart: time.Monday,
		Clock:     func() time.Time { return now },
	})
	t.Cleanup(store.Wait)
	return store
}

func loadReadyModel(t *testing.T, m Model) Model {
	t.Helper()
	m.clock = func() time.Time { return time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) }
	return applyMsg(t, applyCmd(t, m, m.Init()), tea.WindowSizeMsg{Width: testWidth, Height: testHeight})
}

func applyMsg(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	updated, cmd := m.Update(msg)
	out, ok := updated.(Model)
	if !ok {
		t.Fatalf("expected Model, got %T", updated)
	}
	return applyCmd(t, out, cmd)
}

func applyCmd(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	out := m
	currentCmd := cmd
	for i := 0; i < 6 && currentCmd != nil; i++ {
		msg := currentCmd()
		updated, nextCmd := out.Update(msg)
		casted, ok := updated.(Model)
		if !ok {
			t.Fatalf("expected Model, got %T", updated)
		}
		out = casted
		currentCmd = nextCmd
	}
	return out
}

// update applies msg without running the returned command.
func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	out, ok := updated.(Model)
	if !ok {
		t.Fatalf("expected Model, got %T", updated)
	}
	return out, cmd
}

func keyRune(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func click(x, y int) tea.MouseClickMsg {
	return tea.MouseClickMsg{X: x, Y: y, Button: tea.MouseLeft}
}

func motion(x, y int) tea.MouseMotionMsg {
	return tea.MouseMotionMsg{X: x, Y: y, Button: tea.MouseLeft}
}

func release(x, y int) tea.MouseReleaseMsg {
	return tea.MouseReleaseMsg{X: x, Y: y, Button: tea.MouseLeft}
}

func TestModelLoadsWeekGrid(t *testing.T) {
	fx := newTUIFixture(t)
	m := loadReadyModel(t, NewModel(newTestStore(t, fx.repo, "alice")))
	if m.err != nil {
		t.Fatalf("load error = %v", m.err)
	}
	rows := m.gridRows()
	if len(rows) != 1 || rows[0].height() != 2 {
		t.Fatalf("unexpected personal rows %#v", rows)
	}
	lines := m.renderRow(rows[0])
	if !strings.Contains(lines[0], "Kickoff") || !strings.Contains(lines[1], "Freeze") {
		t.Fatalf("unexpected rendered lanes %q", lines)
	}
	if header := m.renderDayHeader(rows); !strings.Contains(header, "Mon 02") || !strings.Contains(header, "Sun 08") {
		t.Fatalf("unexpected day header %q", header)
	}
	v := m.View()
	if v.Content == nil || v.MouseMode != tea.MouseModeCellMotion || !v.AltScreen {
		t.Fatal("expected calendar view with mouse enabled")
	}
}

func TestModelCellHitTesting(t *testing.T) {
	fx := newTUIFixture(t)
	m := loadReadyModel(t, NewModel(newTestStore(t, fx.repo, "alice")))

	cell, ok := m.cellAt(colX(1), gridTop)
	if !ok || cell.day.String() != "2026-03-03" || cell.lane != 0 || cell.taskID != fx.kickoff.ID {
		t.Fatalf("unexpected kickoff cell %#v ok=%t", cell, ok)
	}
	cell, ok = m.cellAt(colX(1), gridTop+1)
	if !ok || cell.lane != 1 || cell.taskID != fx.freeze.ID {
		t.Fatalf("unexpected freeze cell %#v ok=%t", cell, ok)
	}
	cell, ok = m.cellAt(colX(5), gridTop)
	if !ok || cell.taskID != "" || cell.day.String() != "2026-03-07" {
		t.Fatalf("unexpected empty cell %#v ok=%t", cell, ok)
	}
	for _, pos := range [][2]int{{2, gridTop}, {colX(1), 0}, {colX(7), gridTop}, {colX(1), gridTop + 2}} {
		if _, ok := m.cellAt(pos[0], pos[1]); ok {
			t.Fatalf("expected no cell at %v", pos)
		}
	}
}

func TestModelDragCreatePromptsAndAddsTask(t *testing.T) {
	fx := newTUIFixture(t)
	store := newTestStore(t, fx.repo, "alice")
	m := loadReadyModel(t, NewModel(store, WithDefaultProject(fx.open.ID)))

	m = applyMsg(t, m, click(colX(6), gridTop))
	m = applyMsg(t, m, motion(colX(5), gridTop))
	sel, ok := store.CreateGesture().Selection()
	if !ok || sel.Start.String() != "2026-03-07" || sel.End.String() != "2026-03-08" {
		t.Fatalf("unexpected live selection %#v ok=%t", sel, ok)
	}

	m, _ = update(t, m, release(colX(5), gridTop))
	if m.mode != modeTitlePrompt || store.CreateGesture().Active() {
		t.Fatalf("expected title prompt after release, mode=%d", m.mode)
	}
	m, _ = update(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.mode != modeTitlePrompt || m.status != "title required" {
		t.Fatalf("expected empty title to be refused, status=%q", m.status)
	}
	for _, r := range "Retro" {
		m, _ = update(t, m, keyRune(r))
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.mode != modeNone || m.statusIsErr {
		t.Fatalf("expected prompt to close cleanly, status=%q", m.status)
	}
	store.Wait()

	created, ok := store.Task(m.selectedTaskID)
	if !ok || created.Title != "Retro" || created.ProjectID != fx.open.ID {
		t.Fatalf("unexpected created task %#v ok=%t", created, ok)
	}
	if created.StartDate.String() != "2026-03-07" || created.EndDate.String() != "2026-03-08" {
		t.Fatalf("unexpected created range %s..%s", created.StartDate, created.EndDate)
	}
	stored, err := fx.repo.ListTasks(context.Background(), app.TaskFilter{ProjectID: fx.open.ID})
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected created task to persist, got %d tasks", len(stored))
	}
}

func TestModelDragCreateReleaseOffGridCancels(t *testing.T) {
	fx := newTUIFixture(t)
	store := newTestStore(t, fx.repo, "alice")
	m := loadReadyModel(t, NewModel(store))

	m = applyMsg(t, m, click(colX(6), gridTop))
	m = applyMsg(t, m, motion(colX(5), gridTop))
	m, cmd := update(t, m, release(0, 0))
	if m.mode != modeNone || cmd != nil {
		t.Fatalf("expected no prompt after off-grid release, mode=%d", m.mode)
	}
	if store.CreateGesture().Active() {
		t.Fatal("expected selection to be cancelled")
	}
	if len(store.Tasks()) != 2 {
		t.Fatalf("expected no task to be created, got %d", len(store.Tasks()))
	}
}

func TestModelPromptEscapeCancels(t *testing.T) {
	fx := newTUIFixture(t)
	store := newTestStore(t, fx.repo, "alice")
	m := loadReadyModel(t, NewModel(store))

	m = applyMsg(t, m, click(colX(5), gridTop))
	m, _ = update(t, m, release(colX(5), gridTop))
	m, _ = update(t, m, keyRune('x'))
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.mode != modeNone || m.titleInput.Value() != "" {
		t.Fatalf("expected prompt to reset, mode=%d value=%q", m.mode, m.titleInput.Value())
	}
	if len(store.Tasks()) != 2 {
		t.Fatalf("expected no task to be created, got %d", len(store.Tasks()))
	}
}

func TestModelDragMoveCommitsShift(t *testing.T) {
	fx := newTUIFixture(t)
	store := newTestStore(t, fx.repo, "alice")
	m := loadReadyModel(t, NewModel(store))

	m = applyMsg(t, m, click(colX(0), gridTop))
	if !store.MoveGesture().Active() || m.selectedTaskID != fx.kickoff.ID {
		t.Fatalf("expected move gesture on kickoff, status=%q", m.status)
	}
	m = applyMsg(t, m, motion(colX(2), gridTop))
	if store.PendingOverrides() != 1 {
		t.Fatalf("expected one pending override, got %d", store.PendingOverrides())
	}
	if preview, _ := store.Task(fx.kickoff.ID); preview.StartDate.String() != "2026-03-04" {
		t.Fatalf("expected preview to follow pointer, got %s", preview.StartDate)
	}

	m = applyMsg(t, m, release(colX(2), gridTop))
	store.Wait()
	if store.MoveGesture().Active() || store.PendingOverrides() != 0 {
		t.Fatal("expected gesture to finish without overrides")
	}
	moved, err := fx.repo.ListTasks(context.Background(), app.TaskFilter{ProjectID: fx.open.ID})
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(moved) != 1 || moved[0].StartDate.String() != "2026-03-04" || moved[0].EndDate.String() != "2026-03-06" {
		t.Fatalf("unexpected persisted task %#v", moved)
	}
	if !strings.Contains(m.status, "Moved Kickoff") {
		t.Fatalf("expected success notice in status, got %q", m.status)
	}
}

func TestModelClickWithoutDragSelectsTask(t *testing.T) {
	fx := newTUIFixture(t)
	store := newTestStore(t, fx.repo, "alice")
	m := loadReadyModel(t, NewModel(store))

	m = applyMsg(t, m, click(colX(1), gridTop+1))
	m = applyMsg(t, m, release(colX(1), gridTop+1))
	if store.MoveGesture().Active() || m.selectedTaskID != fx.freeze.ID {
		t.Fatalf("expected plain click to select freeze, got %q", m.selectedTaskID)
	}
	if m.status != "selected Freeze" {
		t.Fatalf("unexpected status %q", m.status)
	}
}

func TestModelDragMoveDeniedByPolicy(t *testing.T) {
	fx := newTUIFixture(t)
	store := newTestStore(t, fx.repo, "bob")
	m := loadReadyModel(t, NewModel(store))

	// Bob only sees the creator-only deadline he is assigned to.
	m = applyMsg(t, m, click(colX(1), gridTop))
	if store.MoveGesture().Active() {
		t.Fatal("expected move gesture to be refused")
	}
	if !m.statusIsErr || !strings.Contains(m.status, "Locked") {
		t.Fatalf("expected permission message naming the project, got %q", m.status)
	}
}

func TestModelDragMoveRollsBackOnFailure(t *testing.T) {
	fx := newTUIFixture(t)
	remote := failingRemote{Repository: fx.repo, err: errors.New("disk full")}
	store := newTestStore(t, remote, "alice")
	m := loadReadyModel(t, NewModel(store))

	m = applyMsg(t, m, click(colX(0), gridTop))
	m = applyMsg(t, m, motion(colX(1), gridTop))
	m = applyMsg(t, m, release(colX(1), gridTop))
	if !m.statusIsErr || !strings.Contains(m.status, "Could not move Kickoff") {
		t.Fatalf("expected rollback notice, got %q", m.status)
	}
	task, ok := store.Task(fx.kickoff.ID)
	if !ok || task.StartDate.String() != "2026-03-02" || store.PendingOverrides() != 0 {
		t.Fatalf("expected kickoff to roll back, got %#v", task)
	}
}

func TestModelTeamModeScopesSelection(t *testing.T) {
	fx := newTUIFixture(t)
	store := newTestStore(t, fx.repo, "alice")
	m := loadReadyModel(t, NewModel(store))

	m = applyMsg(t, m, keyRune('m'))
	if nav := store.Navigation(); nav.Mode != app.ModeTeam || nav.TeamID != fx.team.ID {
		t.Fatalf("unexpected navigation %#v", nav)
	}
	rows := m.gridRows()
	if len(rows) != 2 || rows[0].userID != "alice" || rows[1].userID != "bob" || rows[1].label != "Bob" {
		t.Fatalf("unexpected team rows %#v", rows)
	}
	bobY := gridTop + rows[0].height()

	m = applyMsg(t, m, click(colX(4), bobY))
	m = applyMsg(t, m, motion(colX(5), gridTop))
	sel, ok := store.CreateGesture().Selection()
	if !ok || sel.ScopeUserID != "bob" || sel.End.String() != "2026-03-06" {
		t.Fatalf("expected motion on another row to be ignored, got %#v", sel)
	}
	m = applyMsg(t, m, motion(colX(5), bobY))
	if sel, _ = store.CreateGesture().Selection(); sel.End.String() != "2026-03-07" {
		t.Fatalf("expected selection to extend on bob's row, got %#v", sel)
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if store.CreateGesture().Active() {
		t.Fatal("expected escape to cancel the selection")
	}
}

func TestModelModeCycleAndScopes(t *testing.T) {
	fx := newTUIFixture(t)
	store := newTestStore(t, fx.repo, "alice")
	m := loadReadyModel(t, NewModel(store))

	m = applyMsg(t, m, keyRune('m'))
	m = applyMsg(t, m, keyRune('m'))
	nav := store.Navigation()
	if nav.Mode != app.ModeProject || nav.ProjectID != fx.locked.ID {
		t.Fatalf("expected first project by name, got %#v", nav)
	}
	m = applyMsg(t, m, keyRune('s'))
	if nav = store.Navigation(); nav.ProjectID != fx.open.ID {
		t.Fatalf("expected next project, got %#v", nav)
	}
	if ids := visibleTaskIDs(m.gridRows()); len(ids) != 1 || ids[0] != fx.kickoff.ID {
		t.Fatalf("unexpected project tasks %#v", ids)
	}
	if got := m.targetProjectID(); got != fx.open.ID {
		t.Fatalf("targetProjectID() = %q, want current project", got)
	}
	m = applyMsg(t, m, keyRune('m'))
	if nav = store.Navigation(); nav.Mode != app.ModePersonal {
		t.Fatalf("expected cycle back to personal, got %#v", nav)
	}
}

func TestModelWeekNavigationAndQuit(t *testing.T) {
	fx := newTUIFixture(t)
	store := newTestStore(t, fx.repo, "alice")
	m := loadReadyModel(t, NewModel(store))

	m = applyMsg(t, m, keyRune('l'))
	if got := store.VisibleRange().Start.String(); got != "2026-03-09" {
		t.Fatalf("expected next week, got %s", got)
	}
	if ids := visibleTaskIDs(m.gridRows()); len(ids) != 0 {
		t.Fatalf("expected empty next week, got %#v", ids)
	}
	m = applyMsg(t, m, tea.MouseWheelMsg{Button: tea.MouseWheelUp})
	m = applyMsg(t, m, tea.MouseWheelMsg{Button: tea.MouseWheelUp})
	if got := store.VisibleRange().Start.String(); got != "2026-02-23" {
		t.Fatalf("expected wheel to page back, got %s", got)
	}
	m = applyMsg(t, m, keyRune('t'))
	if got := store.VisibleRange().Start.String(); got != "2026-03-02" {
		t.Fatalf("expected today to return to current week, got %s", got)
	}
	m = applyMsg(t, m, keyRune('?'))
	if !m.help.ShowAll {
		t.Fatal("expected full help")
	}

	_, cmd := update(t, m, keyRune('q'))
	if cmd == nil {
		t.Fatal("expected quit cmd")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected quit message")
	}
}

func TestModelDetailsPane(t *testing.T) {
	fx := newTUIFixture(t)
	m := loadReadyModel(t, NewModel(newTestStore(t, fx.repo, "alice"), WithShowDetails(true)))
	if got := m.renderDetails(); !strings.Contains(got, "select a task") {
		t.Fatalf("expected selection hint, got %q", got)
	}

	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyTab})
	if m.selectedTaskID != fx.kickoff.ID {
		t.Fatalf("expected tab to select kickoff, got %q", m.selectedTaskID)
	}
	details := m.renderDetails()
	for _, want := range []string{"Kickoff", "2026-03-02 .. 2026-03-04", "project: Open", "ship"} {
		if !strings.Contains(details, want) {
			t.Fatalf("expected details to contain %q, got %q", want, details)
		}
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyTab})
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyTab})
	if m.selectedTaskID != fx.kickoff.ID {
		t.Fatalf("expected selection to wrap, got %q", m.selectedTaskID)
	}
	m = applyMsg(t, m, keyRune('i'))
	if m.showDetails {
		t.Fatal("expected details toggle to close the pane")
	}
}

func TestModelLoadErrorView(t *testing.T) {
	fx := newTUIFixture(t)
	store := newTestStore(t, fx.repo, "alice")
	m := NewModel(store)
	m = applyMsg(t, m, loadedMsg{err: context.DeadlineExceeded})
	if !errors.Is(m.err, context.DeadlineExceeded) {
		t.Fatalf("expected load error to be kept, got %v", m.err)
	}
	if v := m.View(); v.Content == nil {
		t.Fatal("expected error view content")
	}
}

func TestModelStoreEventsDrainNotices(t *testing.T) {
	fx := newTUIFixture(t)
	events := make(chan app.MutationEvent, 1)
	store := newTestStore(t, fx.repo, "alice")
	m := NewModel(store, WithEvents(events))
	m, cmd := update(t, m, m.loadData())
	if cmd == nil || !m.listening {
		t.Fatal("expected model to start listening for store events")
	}
	events <- app.MutationEvent{Phase: app.PhaseSettled}
	msg := cmd()
	if ev, ok := msg.(storeEventMsg); !ok || ev.event.Phase != app.PhaseSettled {
		t.Fatalf("unexpected event message %#v", msg)
	}
	close(events)
	if got := m.waitForEvent(); got != nil {
		t.Fatalf("expected nil after close, got %#v", got)
	}
}
