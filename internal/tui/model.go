// Package tui renders the terminal calendar and drives drag gestures from mouse input.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"

	"github.com/hylla/kalend/internal/app"
	"github.com/hylla/kalend/internal/domain"
)

// inputMode identifies which interaction owns key input.
type inputMode int

const (
	modeNone inputMode = iota
	modeTitlePrompt
)

// Model is the bubbletea model for the calendar.
type Model struct {
	store *app.Store
	ctx   context.Context
	clock func() time.Time

	ready  bool
	width  int
	height int
	err    error

	status      string
	statusIsErr bool

	help help.Model
	keys keyMap

	mode       inputMode
	titleInput textinput.Model
	pending    app.Selection

	defaultProjectID string
	teamIndex        int
	projectIndex     int

	selectedTaskID string
	showDetails    bool
	markdown       *markdownRenderer

	events    <-chan app.MutationEvent
	listening bool
}

// loadedMsg reports the result of a store load or refresh.
type loadedMsg struct {
	err error
}

// actionMsg carries the outcome of one store mutation.
type actionMsg struct {
	err         error
	status      string
	focusTaskID string
}

// storeEventMsg carries one mutation lifecycle event from the store observer.
type storeEventMsg struct {
	event app.MutationEvent
}

// NewModel constructs a new value for this package.
func NewModel(store *app.Store, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	titleInput := textinput.New()
	titleInput.Prompt = "title: "
	titleInput.Placeholder = "what is happening on these days?"
	titleInput.CharLimit = 120
	m := Model{
		store:      store,
		ctx:        context.Background(),
		clock:      time.Now,
		status:     "loading...",
		help:       h,
		keys:       newKeyMap(),
		titleInput: titleInput,
		markdown:   newMarkdownRenderer("dark"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	store.SetView(app.ViewWeek)
	return m
}

// Init handles init.
func (m Model) Init() tea.Cmd {
	return m.loadData
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		m.help.SetWidth(max(0, msg.Width-2))
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		if m.status == "" || m.status == "loading..." {
			m.setStatus("ready")
		}
		m.retainSelection()
		m.drainNotices()
		if m.events != nil && !m.listening {
			m.listening = true
			return m, m.waitForEvent
		}
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.setError(msg.err)
		} else if msg.status != "" {
			m.setStatus(msg.status)
		}
		if msg.focusTaskID != "" {
			m.selectedTaskID = msg.focusTaskID
		}
		m.drainNotices()
		return m, nil

	case storeEventMsg:
		if msg.event.Phase.Terminal() {
			m.retainSelection()
			m.drainNotices()
		}
		return m, m.waitForEvent

	case tea.KeyPressMsg:
		if m.mode == modeTitlePrompt {
			return m.handlePromptKey(msg)
		}
		return m.handleNormalModeKey(msg)

	case tea.MouseWheelMsg:
		return m.handleMouseWheel(msg)

	case tea.MouseClickMsg:
		return m.handleMouseClick(msg)

	case tea.MouseMotionMsg:
		return m.handleMouseMotion(msg)

	case tea.MouseReleaseMsg:
		return m.handleMouseRelease(msg)

	default:
		return m, nil
	}
}

// loadData loads users, teams, projects and tasks.
func (m Model) loadData() tea.Msg {
	return loadedMsg{err: m.store.Load(m.ctx)}
}

// refreshTasks refetches the scoped task list.
func (m Model) refreshTasks() tea.Msg {
	return loadedMsg{err: m.store.RefreshTasks(m.ctx)}
}

// waitForEvent blocks for the next store event.
func (m Model) waitForEvent() tea.Msg {
	ev, ok := <-m.events
	if !ok {
		return nil
	}
	return storeEventMsg{event: ev}
}

// handleNormalModeKey handles normal mode key.
func (m Model) handleNormalModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.cancel):
		switch {
		case m.store.MoveGesture().Active():
			m.store.MoveGesture().Abort()
			m.setStatus("move cancelled")
		case m.store.CreateGesture().Active():
			m.store.CreateGesture().Cancel()
			m.setStatus("selection cancelled")
		case m.help.ShowAll:
			m.help.ShowAll = false
		case m.showDetails:
			m.showDetails = false
		}
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.setStatus("reloading...")
		return m, m.loadData
	case key.Matches(msg, m.keys.prevWeek):
		m.store.Navigate(-1)
		m.retainSelection()
		return m, nil
	case key.Matches(msg, m.keys.nextWeek):
		m.store.Navigate(1)
		m.retainSelection()
		return m, nil
	case key.Matches(msg, m.keys.today):
		m.store.SetAnchor(domain.DateOf(m.clock()))
		m.retainSelection()
		return m, nil
	case key.Matches(msg, m.keys.cycleMode):
		m.cycleMode()
		return m, m.refreshTasks
	case key.Matches(msg, m.keys.nextScope):
		if !m.nextScope() {
			return m, nil
		}
		return m, m.refreshTasks
	case key.Matches(msg, m.keys.nextTask):
		m.stepSelection(1)
		return m, nil
	case key.Matches(msg, m.keys.prevTask):
		m.stepSelection(-1)
		return m, nil
	case key.Matches(msg, m.keys.details):
		m.showDetails = !m.showDetails
		return m, nil
	default:
		return m, nil
	}
}

// handlePromptKey routes keys to the new task title prompt.
func (m Model) handlePromptKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closePrompt()
		m.setStatus("new task cancelled")
		return m, nil
	case "enter":
		title := strings.TrimSpace(m.titleInput.Value())
		if title == "" {
			m.setStatus("title required")
			return m, nil
		}
		fields, err := m.newTaskFields(title)
		if err != nil {
			m.closePrompt()
			m.setError(err)
			return m, nil
		}
		m.closePrompt()
		m.setStatus("saving...")
		return m, m.createTask(fields)
	}
	var cmd tea.Cmd
	m.titleInput, cmd = m.titleInput.Update(msg)
	return m, cmd
}

// handleMouseWheel pages weeks with the wheel.
func (m Model) handleMouseWheel(msg tea.MouseWheelMsg) (tea.Model, tea.Cmd) {
	if m.mode != modeNone || m.gestureActive() {
		return m, nil
	}
	switch msg.Button {
	case tea.MouseWheelUp:
		m.store.Navigate(-1)
	case tea.MouseWheelDown:
		m.store.Navigate(1)
	}
	return m, nil
}

// handleMouseClick starts a move on a task block or a selection on an empty cell.
func (m Model) handleMouseClick(msg tea.MouseClickMsg) (tea.Model, tea.Cmd) {
	if m.help.ShowAll || m.mode != modeNone || msg.Button != tea.MouseLeft {
		return m, nil
	}
	cell, ok := m.cellAt(msg.X, msg.Y)
	if !ok {
		return m, nil
	}
	if cell.taskID != "" {
		m.selectedTaskID = cell.taskID
		if err := m.store.MoveGesture().Begin(m.ctx, cell.taskID, cell.day); err != nil {
			m.setError(err)
			return m, nil
		}
		task, _ := m.store.Task(cell.taskID)
		m.setStatus("moving " + task.Title)
		return m, nil
	}
	scope := ""
	if m.store.Navigation().Mode == app.ModeTeam {
		scope = cell.userID
	}
	m.store.CreateGesture().Begin(cell.day, scope)
	m.setStatus("selecting " + cell.day.String())
	return m, nil
}

// handleMouseMotion follows the pointer while a gesture is active.
func (m Model) handleMouseMotion(msg tea.MouseMotionMsg) (tea.Model, tea.Cmd) {
	cell, ok := m.cellAt(msg.X, msg.Y)
	if !ok {
		return m, nil
	}
	m.trackPointer(cell)
	return m, nil
}

// handleMouseRelease ends the active gesture.
func (m Model) handleMouseRelease(msg tea.MouseReleaseMsg) (tea.Model, tea.Cmd) {
	cell, onGrid := m.cellAt(msg.X, msg.Y)
	if onGrid {
		m.trackPointer(cell)
	}
	move := m.store.MoveGesture()
	if move.Active() {
		state := move.State()
		if state.DayOffset == 0 {
			// A click without a drag only selects the task.
			if err := move.End(m.ctx); err != nil {
				m.setError(err)
				return m, nil
			}
			m.setStatus("selected " + state.Task.Title)
			return m, nil
		}
		m.setStatus("moving...")
		return m, m.endMove(state.Task.ID)
	}
	create := m.store.CreateGesture()
	if !onGrid {
		if create.Active() {
			create.Cancel()
			m.setStatus("selection cancelled")
		}
		return m, nil
	}
	sel, ok := create.Commit()
	if !ok {
		return m, nil
	}
	return m, m.openPrompt(sel)
}

// trackPointer feeds the cell under the pointer into the active gesture.
func (m *Model) trackPointer(cell gridCell) {
	switch {
	case m.store.MoveGesture().Active():
		if m.store.MoveGesture().Update(cell.day) {
			m.setStatus(fmt.Sprintf("moving by %+d days", m.store.MoveGesture().State().DayOffset))
		}
	case m.store.CreateGesture().Active():
		if m.store.CreateGesture().Extend(cell.day, cell.userID) {
			if sel, ok := m.store.CreateGesture().Selection(); ok {
				m.setStatus(fmt.Sprintf("selecting %s .. %s (%d days)", sel.Start, sel.End, sel.Days()))
			}
		}
	}
}

// endMove commits the drag-move through the store.
func (m Model) endMove(taskID string) tea.Cmd {
	ctx, store := m.ctx, m.store
	return func() tea.Msg {
		if err := store.MoveGesture().End(ctx); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{focusTaskID: taskID}
	}
}

// createTask adds a task through the store.
func (m Model) createTask(fields app.TaskFields) tea.Cmd {
	ctx, store := m.ctx, m.store
	return func() tea.Msg {
		task, err := store.AddTask(ctx, fields)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "created " + task.Title, focusTaskID: task.ID}
	}
}

// openPrompt asks for the title of a task covering sel.
func (m *Model) openPrompt(sel app.Selection) tea.Cmd {
	m.mode = modeTitlePrompt
	m.pending = sel
	m.titleInput.SetValue("")
	m.setStatus(fmt.Sprintf("new task %s .. %s", sel.Start, sel.End))
	return m.titleInput.Focus()
}

// closePrompt leaves the title prompt.
func (m *Model) closePrompt() {
	m.mode = modeNone
	m.pending = app.Selection{}
	m.titleInput.Blur()
	m.titleInput.SetValue("")
}

// newTaskFields builds the fields for a task titled title over the pending selection.
func (m Model) newTaskFields(title string) (app.TaskFields, error) {
	projectID := m.targetProjectID()
	if projectID == "" {
		return app.TaskFields{}, errors.New("no project accepts new tasks from you")
	}
	nav := m.store.Navigation()
	fields := app.TaskFields{
		Title:     title,
		StartDate: m.pending.Start,
		EndDate:   m.pending.End,
		ProjectID: projectID,
	}
	if nav.Mode == app.ModeTeam {
		fields.TeamID = nav.TeamID
	}
	if m.pending.ScopeUserID != "" {
		fields.AssigneeIDs = []string{m.pending.ScopeUserID}
	}
	return fields, nil
}

// targetProjectID picks the project a new task lands in.
func (m Model) targetProjectID() string {
	nav := m.store.Navigation()
	if nav.Mode == app.ModeProject && nav.ProjectID != "" {
		return nav.ProjectID
	}
	if _, ok := m.store.Project(m.defaultProjectID); ok {
		return m.defaultProjectID
	}
	actor := m.store.Actor()
	for _, project := range m.store.Projects() {
		if app.CanMutate(actor, app.ActionCreate, app.TaskResource(project)) {
			return project.ID
		}
	}
	return ""
}

// cycleMode steps personal -> team -> project -> personal, skipping empty collections.
func (m *Model) cycleMode() {
	nav := m.store.Navigation()
	teams, projects := m.store.Teams(), m.store.Projects()
	next := app.Navigation{Mode: app.ModePersonal}
	switch nav.Mode {
	case app.ModePersonal:
		if len(teams) > 0 {
			next = app.Navigation{Mode: app.ModeTeam, TeamID: teams[clamp(m.teamIndex, 0, len(teams)-1)].ID}
		} else if len(projects) > 0 {
			next = app.Navigation{Mode: app.ModeProject, ProjectID: projects[clamp(m.projectIndex, 0, len(projects)-1)].ID}
		}
	case app.ModeTeam:
		if len(projects) > 0 {
			next = app.Navigation{Mode: app.ModeProject, ProjectID: projects[clamp(m.projectIndex, 0, len(projects)-1)].ID}
		}
	}
	m.store.SetNavigation(next)
	m.setStatus(m.scopeLabel())
}

// nextScope moves to the next team or project inside the current mode.
func (m *Model) nextScope() bool {
	nav := m.store.Navigation()
	switch nav.Mode {
	case app.ModeTeam:
		teams := m.store.Teams()
		if len(teams) == 0 {
			return false
		}
		m.teamIndex = (m.teamIndex + 1) % len(teams)
		m.store.SetNavigation(app.Navigation{Mode: app.ModeTeam, TeamID: teams[m.teamIndex].ID})
	case app.ModeProject:
		projects := m.store.Projects()
		if len(projects) == 0 {
			return false
		}
		m.projectIndex = (m.projectIndex + 1) % len(projects)
		m.store.SetNavigation(app.Navigation{Mode: app.ModeProject, ProjectID: projects[m.projectIndex].ID})
	default:
		return false
	}
	m.setStatus(m.scopeLabel())
	return true
}

// stepSelection moves the selected task through the visible tasks.
func (m *Model) stepSelection(delta int) {
	ids := visibleTaskIDs(m.gridRows())
	if len(ids) == 0 {
		m.selectedTaskID = ""
		return
	}
	idx := -1
	for i, id := range ids {
		if id == m.selectedTaskID {
			idx = i
			break
		}
	}
	switch {
	case idx < 0 && delta < 0:
		idx = len(ids) - 1
	case idx < 0:
		idx = 0
	default:
		idx = (idx + delta + len(ids)) % len(ids)
	}
	m.selectedTaskID = ids[idx]
}

// retainSelection clears the selected task once it leaves the visible grid.
func (m *Model) retainSelection() {
	if m.selectedTaskID == "" {
		return
	}
	for _, id := range visibleTaskIDs(m.gridRows()) {
		if id == m.selectedTaskID {
			return
		}
	}
	m.selectedTaskID = ""
}

// drainNotices shows the newest queued store notice.
func (m *Model) drainNotices() {
	notices := m.store.Notices()
	if len(notices) == 0 {
		return
	}
	last := notices[len(notices)-1]
	m.status = last.Message
	m.statusIsErr = last.Level == app.NoticeError
}

// gestureActive reports whether either drag machine is running.
func (m Model) gestureActive() bool {
	return m.store.MoveGesture().Active() || m.store.CreateGesture().Active()
}

func (m *Model) setStatus(status string) {
	m.status = status
	m.statusIsErr = false
}

func (m *Model) setError(err error) {
	m.status = err.Error()
	m.statusIsErr = true
}

// scopeLabel names the current navigation scope.
func (m Model) scopeLabel() string {
	nav := m.store.Navigation()
	switch nav.Mode {
	case app.ModeTeam:
		for _, team := range m.store.Teams() {
			if team.ID == nav.TeamID {
				return "team " + team.Name
			}
		}
		return "team"
	case app.ModeProject:
		if project, ok := m.store.Project(nav.ProjectID); ok {
			return "project " + project.Name
		}
		return "all projects"
	default:
		return "my calendar"
	}
}

// clamp clamps v into [minV, maxV].
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}
