package tui

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/hylla/kalend/internal/domain"
)

var (
	accentColor = lipgloss.Color("62")
	mutedColor  = lipgloss.Color("241")
	dimColor    = lipgloss.Color("239")

	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	headerStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	todayStyle     = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	gutterStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	blockStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("24"))
	selectedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255")).Background(accentColor)
	draggingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("232")).Background(lipgloss.Color("214"))
	selectionStyle = lipgloss.NewStyle().Foreground(accentColor)
	statusStyle    = lipgloss.NewStyle().Foreground(dimColor)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// View handles view.
func (m Model) View() tea.View {
	if m.err != nil {
		return newView("error: " + m.err.Error() + "\n\npress r to retry • q quit\n")
	}
	if !m.ready {
		return newView("loading...")
	}

	rows := m.gridRows()
	sections := []string{m.renderTitle(), m.renderDayHeader(rows)}
	for _, gr := range rows {
		sections = append(sections, m.renderRow(gr)...)
	}
	if m.showDetails {
		if details := m.renderDetails(); details != "" {
			sections = append(sections, "", details)
		}
	}
	if m.mode == modeTitlePrompt {
		sections = append(sections, "", m.titleInput.View())
	}
	content := strings.Join(sections, "\n")

	status := statusStyle.Render(m.status)
	if m.statusIsErr {
		status = errorStyle.Render(m.status)
	}
	helpLine := lipgloss.NewStyle().
		Foreground(mutedColor).
		BorderTop(true).
		BorderForeground(dimColor).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(m.help.View(m.keys))
	footer := status + "\n" + helpLine
	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(footer)))
	}
	return newView(content + "\n" + footer)
}

func newView(content string) tea.View {
	v := tea.NewView(content)
	v.MouseMode = tea.MouseModeCellMotion
	v.AltScreen = true
	return v
}

// renderTitle renders the scope and the visible range.
func (m Model) renderTitle() string {
	visible := m.store.VisibleRange()
	title := fmt.Sprintf("kalend · %s · %s .. %s", m.scopeLabel(), visible.Start, visible.End)
	if n := m.store.PendingOverrides(); n > 0 {
		title += fmt.Sprintf(" · %d pending", n)
	}
	return titleStyle.Render(title)
}

// renderDayHeader renders the weekday labels above the columns.
func (m Model) renderDayHeader(rows []gridRow) string {
	if len(rows) == 0 {
		return ""
	}
	today := domain.DateOf(m.clock())
	width := m.colWidth()
	var b strings.Builder
	b.WriteString(strings.Repeat(" ", gutterWidth))
	for i := range weekDays {
		day := rows[0].row.Day(i)
		label := padRight(day.Time().Format("Mon 02"), width)
		if day.Equal(today) {
			b.WriteString(todayStyle.Render(label))
			continue
		}
		b.WriteString(headerStyle.Render(label))
	}
	return b.String()
}

// renderRow renders one line per lane of gr.
func (m Model) renderRow(gr gridRow) []string {
	width := m.colWidth()
	movingID := ""
	if state := m.store.MoveGesture().State(); state.Active {
		movingID = state.Task.ID
	}
	sel, selecting := m.store.CreateGesture().Selection()
	if selecting && sel.ScopeUserID != "" && sel.ScopeUserID != gr.userID {
		selecting = false
	}

	lines := make([]string, 0, gr.height())
	for lane := range gr.height() {
		var b strings.Builder
		label := ""
		if lane == 0 {
			label = gr.label
		}
		b.WriteString(gutterStyle.Render(padRight(label, gutterWidth)))
		for col := 0; col < weekDays; {
			day := gr.row.Day(col)
			block, ok := blockAt(gr.row, lane, day)
			if !ok {
				cell := strings.Repeat(" ", width)
				if selecting && sel.Contains(day) {
					cell = selectionStyle.Render(strings.Repeat("░", width-1) + " ")
				}
				b.WriteString(cell)
				col++
				continue
			}
			span := min(block.Span, weekDays-col)
			text := padRight(" "+blockLabel(block), span*width-1)
			style := blockStyle
			switch block.Task.ID {
			case movingID:
				style = draggingStyle
			case m.selectedTaskID:
				style = selectedStyle
			}
			b.WriteString(style.Render(text))
			b.WriteString(" ")
			col += span
		}
		lines = append(lines, b.String())
	}
	return lines
}

// renderDetails renders the selected task with its markdown description.
func (m Model) renderDetails() string {
	if m.selectedTaskID == "" {
		return statusStyle.Render("select a task with tab or a click to see details")
	}
	task, ok := m.store.Task(m.selectedTaskID)
	if !ok {
		return ""
	}
	lines := []string{titleStyle.Render(task.Title)}
	when := fmt.Sprintf("%s .. %s", task.StartDate, task.EndDate)
	if task.StartDate.Equal(task.EndDate) {
		when = task.StartDate.String()
	}
	if task.Time != "" {
		when += " at " + task.Time
	}
	lines = append(lines, headerStyle.Render(fmt.Sprintf("%s · %s", task.Type, when)))
	if project, ok := m.store.Project(task.ProjectID); ok {
		lines = append(lines, headerStyle.Render("project: "+project.Name+" ("+policyLabel(project.Policy)+")"))
	}
	if len(task.AssigneeIDs) > 0 {
		lines = append(lines, headerStyle.Render("assignees: "+strings.Join(task.AssigneeIDs, ", ")))
	}
	if description := m.markdown.render(task.Description, max(0, m.width-4)); description != "" {
		lines = append(lines, "", description)
	}
	return strings.Join(lines, "\n")
}

func policyLabel(policy domain.CollaborationPolicy) string {
	if policy == domain.PolicyCreatorOnly {
		return "creator only"
	}
	return "all members"
}

var _ tea.Model = Model{}
