package layout

import (
	"slices"
	"time"

	"github.com/hylla/kalend/internal/domain"
)

// Block is one visual segment of a task inside a rendered row.
type Block struct {
	Task domain.Task
	Lane int
	// Start is the first row day the block occupies.
	Start domain.Date
	// Span is the number of row days the block occupies, clamped to the row end.
	Span int
	// StartsBlock is true when Start is the task's own start date.
	StartsBlock       bool
	ContinuesFromPrev bool
	ContinuesToNext   bool
}

// Row is a contiguous run of days with lanes assigned across the whole run.
type Row struct {
	Start     domain.Date
	Days      int
	Cells     [][]Block
	LaneCount int
}

// Day returns the i-th day of the row.
func (r Row) Day(i int) domain.Date {
	return r.Start.AddDays(i)
}

// End returns the last day of the row.
func (r Row) End() domain.Date {
	return r.Start.AddDays(r.Days - 1)
}

// Blocks returns every block of the row in day order.
func (r Row) Blocks() []Block {
	out := make([]Block, 0)
	for _, cell := range r.Cells {
		out = append(out, cell...)
	}
	return out
}

// UserRow is one user's row inside a team view.
type UserRow struct {
	UserID string
	Row
}

// Month is a month rendered as week rows.
type Month struct {
	First domain.Date
	Rows  []Row
}

// DayCell returns the blocks anchored on day within the row starting at rowStart.
// A task is anchored on its own start day, or on the first row day when it began earlier.
func DayCell(laned []LanedTask, day, rowStart domain.Date, days int) []Block {
	rowEnd := rowStart.AddDays(days - 1)
	out := make([]Block, 0)
	for _, lt := range laned {
		task := lt.Task
		if !task.Covers(day) {
			continue
		}
		startsHere := task.StartDate.Equal(day)
		carriedIn := day.Equal(rowStart) && task.StartDate.Before(rowStart)
		if !startsHere && !carriedIn {
			continue
		}
		blockEnd := domain.MinDate(task.EndDate, rowEnd)
		out = append(out, Block{
			Task:              task,
			Lane:              lt.Lane,
			Start:             day,
			Span:              domain.DaysBetween(day, blockEnd) + 1,
			StartsBlock:       startsHere,
			ContinuesFromPrev: carriedIn,
			ContinuesToNext:   task.EndDate.After(rowEnd),
		})
	}
	slices.SortFunc(out, func(a, b Block) int { return a.Lane - b.Lane })
	return out
}

// WeekRow lays out the tasks intersecting [rowStart, rowStart+days).
func WeekRow(tasks []domain.Task, rowStart domain.Date, days int) Row {
	if days < 1 {
		days = 1
	}
	rowEnd := rowStart.AddDays(days - 1)
	window := domain.Task{StartDate: rowStart, EndDate: rowEnd}
	inRow := make([]domain.Task, 0, len(tasks))
	for _, task := range tasks {
		if task.Overlaps(window) {
			inRow = append(inRow, task)
		}
	}
	laned := AssignLanes(inRow)
	row := Row{
		Start:     rowStart,
		Days:      days,
		Cells:     make([][]Block, days),
		LaneCount: LaneCount(laned),
	}
	for i := range days {
		row.Cells[i] = DayCell(laned, rowStart.AddDays(i), rowStart, days)
	}
	return row
}

// MonthGrid lays out month as week rows beginning on weekStart; lanes are assigned per row.
func MonthGrid(tasks []domain.Task, month domain.Date, weekStart time.Weekday) Month {
	first := month.StartOfMonth()
	last := first.Time().AddDate(0, 1, -1)
	lastDay := domain.DateOf(last)
	out := Month{First: first}
	for rowStart := first.StartOfWeek(weekStart); !rowStart.After(lastDay); rowStart = rowStart.AddDays(7) {
		out.Rows = append(out.Rows, WeekRow(tasks, rowStart, 7))
	}
	return out
}

// UserRows lays out one row per user from the tasks that user created or is assigned to.
func UserRows(tasks []domain.Task, userIDs []string, rowStart domain.Date, days int) []UserRow {
	out := make([]UserRow, 0, len(userIDs))
	for _, userID := range userIDs {
		mine := make([]domain.Task, 0)
		for _, task := range tasks {
			if task.InvolvesUser(userID) {
				mine = append(mine, task)
			}
		}
		out = append(out, UserRow{UserID: userID, Row: WeekRow(mine, rowStart, days)})
	}
	return out
}
