package tui

import (
	"strings"

	"github.com/hylla/kalend/internal/app"
	"github.com/hylla/kalend/internal/domain"
	"github.com/hylla/kalend/internal/layout"
)

// Grid geometry. The first gridTop lines hold the title and the day header.
const (
	gridTop      = 2
	gutterWidth  = 12
	minColWidth  = 8
	defaultWidth = 96
	weekDays     = 7
)

// gridRow is one rendered row of the calendar; userID is set in team mode.
type gridRow struct {
	userID string
	label  string
	row    layout.Row
}

// height returns the number of terminal lines the row occupies.
func (r gridRow) height() int {
	return max(1, r.row.LaneCount)
}

// gridCell is the calendar position under a pointer.
type gridCell struct {
	rowIndex int
	userID   string
	day      domain.Date
	lane     int
	taskID   string
}

// gridRows projects the store onto the rows the view renders.
func (m Model) gridRows() []gridRow {
	nav := m.store.Navigation()
	if nav.Mode != app.ModeTeam {
		return []gridRow{{label: m.rowLabel(nav), row: m.store.WeekLayout()}}
	}
	names := map[string]string{}
	for _, user := range m.store.Users() {
		names[user.ID] = user.Name
	}
	userRows := m.store.TeamLayout()
	out := make([]gridRow, 0, len(userRows))
	for _, ur := range userRows {
		label := names[ur.UserID]
		if label == "" {
			label = ur.UserID
		}
		out = append(out, gridRow{userID: ur.UserID, label: label, row: ur.Row})
	}
	return out
}

func (m Model) rowLabel(nav app.Navigation) string {
	if nav.Mode == app.ModeProject {
		if project, ok := m.store.Project(nav.ProjectID); ok {
			return project.Name
		}
		return "all"
	}
	return "mine"
}

// colWidth returns the width of one day column.
func (m Model) colWidth() int {
	width := m.width
	if width <= 0 {
		width = defaultWidth
	}
	return max(minColWidth, (width-gutterWidth)/weekDays)
}

// cellAt maps terminal coordinates onto a grid cell.
func (m Model) cellAt(x, y int) (gridCell, bool) {
	if y < gridTop || x < gutterWidth {
		return gridCell{}, false
	}
	col := (x - gutterWidth) / m.colWidth()
	if col >= weekDays {
		return gridCell{}, false
	}
	line := y - gridTop
	for idx, gr := range m.gridRows() {
		if line >= gr.height() {
			line -= gr.height()
			continue
		}
		cell := gridCell{rowIndex: idx, userID: gr.userID, day: gr.row.Day(col), lane: line}
		if block, ok := blockAt(gr.row, line, cell.day); ok {
			cell.taskID = block.Task.ID
		}
		return cell, true
	}
	return gridCell{}, false
}

// blockAt finds the block drawn in lane on day.
func blockAt(row layout.Row, lane int, day domain.Date) (layout.Block, bool) {
	for _, block := range row.Blocks() {
		if block.Lane != lane || day.Before(block.Start) {
			continue
		}
		if day.Before(block.Start.AddDays(block.Span)) {
			return block, true
		}
	}
	return layout.Block{}, false
}

// visibleTaskIDs lists task ids in row, day and lane order without repeats.
func visibleTaskIDs(rows []gridRow) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, gr := range rows {
		for _, block := range gr.row.Blocks() {
			if _, ok := seen[block.Task.ID]; ok {
				continue
			}
			seen[block.Task.ID] = struct{}{}
			out = append(out, block.Task.ID)
		}
	}
	return out
}

// blockLabel renders a block's caption, marking carried-over edges.
func blockLabel(block layout.Block) string {
	var b strings.Builder
	if block.ContinuesFromPrev {
		b.WriteString("‹")
	}
	if block.Task.Time != "" && block.StartsBlock {
		b.WriteString(block.Task.Time)
		b.WriteString(" ")
	}
	b.WriteString(block.Task.Title)
	if block.ContinuesToNext {
		b.WriteString(" ›")
	}
	return b.String()
}

// truncate shortens s to at most width runes.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= width {
		return s
	}
	if width == 1 {
		return string(rs[:1])
	}
	return string(rs[:width-1]) + "…"
}

// padRight truncates or pads s to exactly width runes.
func padRight(s string, width int) string {
	s = truncate(s, width)
	if n := len([]rune(s)); n < width {
		s += strings.Repeat(" ", width-n)
	}
	return s
}

// fitLines pads or cuts content to exactly maxLines lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		lines = lines[:maxLines]
	case len(lines) < maxLines:
		lines = append(lines, make([]string, maxLines-len(lines))...)
	}
	return strings.Join(lines, "\n")
}
