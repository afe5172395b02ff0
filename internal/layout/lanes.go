// Package layout packs dated tasks into non-conflicting lanes and projects them onto calendar grids.
package layout

import (
	"cmp"
	"slices"

	"github.com/hylla/kalend/internal/domain"
)

// LanedTask pairs a task with its assigned lane.
type LanedTask struct {
	Task domain.Task
	Lane int
}

// AssignLanes places each task in the lowest lane holding no overlapping task.
// Tasks are ordered by start date, then end date, then id, so the result does not depend on input order.
func AssignLanes(tasks []domain.Task) []LanedTask {
	if len(tasks) == 0 {
		return []LanedTask{}
	}
	ordered := slices.Clone(tasks)
	slices.SortFunc(ordered, compareTasks)

	// laneEnds[i] is the latest end date placed in lane i. Because tasks arrive by
	// start date, a lane is free for a task exactly when its latest end precedes the start.
	laneEnds := make([]domain.Date, 0, 4)
	out := make([]LanedTask, 0, len(ordered))
	for _, task := range ordered {
		lane := -1
		for i, end := range laneEnds {
			if end.Before(task.StartDate) {
				lane = i
				break
			}
		}
		if lane < 0 {
			lane = len(laneEnds)
			laneEnds = append(laneEnds, task.EndDate)
		} else {
			laneEnds[lane] = task.EndDate
		}
		out = append(out, LanedTask{Task: task, Lane: lane})
	}
	return out
}

// LaneCount returns the number of lanes used by laned.
func LaneCount(laned []LanedTask) int {
	count := 0
	for _, lt := range laned {
		count = max(count, lt.Lane+1)
	}
	return count
}

// LaneIndex maps task ids to lanes.
func LaneIndex(laned []LanedTask) map[string]int {
	out := make(map[string]int, len(laned))
	for _, lt := range laned {
		out[lt.Task.ID] = lt.Lane
	}
	return out
}

// MaxConcurrency returns the largest number of tasks active on any single day.
func MaxConcurrency(tasks []domain.Task) int {
	type edge struct {
		day   domain.Date
		delta int
	}
	edges := make([]edge, 0, len(tasks)*2)
	for _, task := range tasks {
		edges = append(edges, edge{day: task.StartDate, delta: 1})
		edges = append(edges, edge{day: task.EndDate.AddDays(1), delta: -1})
	}
	slices.SortFunc(edges, func(a, b edge) int {
		if c := a.day.Compare(b.day); c != 0 {
			return c
		}
		return cmp.Compare(a.delta, b.delta)
	})
	active, peak := 0, 0
	for _, e := range edges {
		active += e.delta
		peak = max(peak, active)
	}
	return peak
}

func compareTasks(a, b domain.Task) int {
	if c := a.StartDate.Compare(b.StartDate); c != 0 {
		return c
	}
	if c := a.EndDate.Compare(b.EndDate); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
