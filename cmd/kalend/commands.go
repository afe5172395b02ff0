package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/hylla/kalend/internal/adapters/server/common"
	"github.com/hylla/kalend/internal/app"
	"github.com/hylla/kalend/internal/domain"
)

// newWeekCmd prints one laned week for the chosen scope.
func newWeekCmd(opts *cliOptions) *cobra.Command {
	var (
		date      string
		teamID    string
		projectID string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "week",
		Short: "Print the laned layout of one week",
		Example: strings.TrimSpace(`
  kalend week --date 2026-03-04
  kalend week --team <team-id> --json
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if teamID != "" && projectID != "" {
				return fmt.Errorf("--team and --project are mutually exclusive: %w", common.ErrInvalidRequest)
			}
			return withRuntime(cmd, opts, "week", func(env *runtimeEnv) error {
				req := common.WeekLayoutRequest{ActorID: env.actorID, Date: date}
				switch {
				case teamID != "":
					req.Mode, req.TeamID = string(app.ModeTeam), teamID
				case projectID != "":
					req.Mode, req.ProjectID = string(app.ModeProject), projectID
				}
				week, err := env.calendar().WeekLayout(cmd.Context(), req)
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(week)
				}
				writeWeek(cmd.OutOrStdout(), week)
				return nil
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&date, "date", "", "any day inside the week (YYYY-MM-DD, default today)")
	flags.StringVar(&teamID, "team", "", "show one row per team member")
	flags.StringVar(&projectID, "project", "", "show one project's tasks")
	flags.BoolVar(&asJSON, "json", false, "print the layout as JSON")
	return cmd
}

// writeWeek renders a week layout as one table per row.
func writeWeek(w io.Writer, week common.WeekLayout) {
	_, _ = fmt.Fprintf(w, "%s week %s .. %s\n", week.Mode, week.Start, week.End)
	for _, row := range week.Rows {
		if row.UserID != "" {
			_, _ = fmt.Fprintf(w, "\n%s (%d lanes)\n", row.UserID, row.LaneCount)
		}
		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		tw.SetStyle(table.StyleLight)
		tw.AppendHeader(table.Row{"Day", "Lane", "Task", "Type", "Days", "Carry"})
		for _, day := range row.Days {
			for _, block := range day.Blocks {
				tw.AppendRow(table.Row{day.Date, block.Lane, block.Title, block.Type, block.Span, carryMarks(block)})
			}
		}
		if tw.Length() == 0 {
			_, _ = fmt.Fprintln(w, "  (no tasks)")
			continue
		}
		tw.Render()
	}
}

// carryMarks shows whether a block continues from or into a neighbouring week.
func carryMarks(block common.BlockView) string {
	switch {
	case block.ContinuesFromPrev && block.ContinuesToNext:
		return "< >"
	case block.ContinuesFromPrev:
		return "<"
	case block.ContinuesToNext:
		return ">"
	default:
		return ""
	}
}

// newSeedCmd fills an empty database with a demo team.
func newSeedCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create demo users, a team, projects and tasks around this week",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, "seed", func(env *runtimeEnv) error {
				summary, err := seedDemo(cmd, env, time.Now())
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), summary)
				return nil
			})
		},
	}
}

// seedDemo writes demo data unless projects already exist.
func seedDemo(cmd *cobra.Command, env *runtimeEnv, now time.Time) (string, error) {
	ctx := cmd.Context()
	repo := env.repo
	existing, err := repo.ListProjects(ctx)
	if err != nil {
		return "", fmt.Errorf("list projects: %w", err)
	}
	if len(existing) > 0 {
		return fmt.Sprintf("seed skipped: %d projects already exist", len(existing)), nil
	}

	for _, user := range []domain.User{{ID: "alice", Name: "Alice"}, {ID: "bob", Name: "Bob"}} {
		if err := repo.UpsertUser(ctx, user); err != nil {
			return "", fmt.Errorf("seed user %q: %w", user.ID, err)
		}
	}
	actor := env.actorID
	team, err := repo.CreateTeam(ctx, app.TeamFields{
		Name:      "Platform",
		CreatorID: actor,
		MemberIDs: []string{actor, "alice", "bob"},
	})
	if err != nil {
		return "", fmt.Errorf("seed team: %w", err)
	}
	roadmap, err := repo.CreateProject(ctx, app.ProjectFields{
		Name:        "Roadmap",
		Description: "Shared planning board",
		CreatorID:   actor,
		TeamID:      team.ID,
		Policy:      domain.PolicyAllMembers,
		MemberIDs:   []string{actor, "alice", "bob"},
	})
	if err != nil {
		return "", fmt.Errorf("seed project: %w", err)
	}
	release, err := repo.CreateProject(ctx, app.ProjectFields{
		Name:        "Release",
		Description: "Only the release owner reschedules",
		CreatorID:   "alice",
		TeamID:      team.ID,
		Policy:      domain.PolicyCreatorOnly,
		MemberIDs:   []string{"alice", actor},
	})
	if err != nil {
		return "", fmt.Errorf("seed project: %w", err)
	}

	week := domain.DateOf(now).StartOfWeek(env.weekStart)
	tasks := []app.TaskFields{
		{Title: "Planning", Description: "**Agenda** in the team doc", StartDate: week, EndDate: week.AddDays(1), Time: "09:30", Type: domain.TaskTypeMeeting, ProjectID: roadmap.ID, TeamID: team.ID, CreatorID: actor, AssigneeIDs: []string{actor, "alice", "bob"}},
		{Title: "API design", StartDate: week.AddDays(1), EndDate: week.AddDays(3), Type: domain.TaskTypeTask, ProjectID: roadmap.ID, TeamID: team.ID, CreatorID: "bob", AssigneeIDs: []string{"bob", actor}},
		{Title: "Code freeze", StartDate: week.AddDays(4), EndDate: week.AddDays(4), Type: domain.TaskTypeDeadline, ProjectID: release.ID, TeamID: team.ID, CreatorID: "alice", AssigneeIDs: []string{"alice", actor}},
		{Title: "Release train", StartDate: week.AddDays(5), EndDate: week.AddDays(9), Type: domain.TaskTypeMilestone, ProjectID: release.ID, TeamID: team.ID, CreatorID: "alice", AssigneeIDs: []string{"alice"}},
		{Title: "Retro", StartDate: week.AddDays(4), EndDate: week.AddDays(4), Time: "16:00", Type: domain.TaskTypeReminder, ProjectID: roadmap.ID, TeamID: team.ID, CreatorID: actor, AssigneeIDs: []string{actor}},
	}
	for _, fields := range tasks {
		if _, err := repo.CreateTask(ctx, fields); err != nil {
			return "", fmt.Errorf("seed task %q: %w", fields.Title, err)
		}
	}
	env.logger.Info("seeded demo data", "team_id", team.ID, "tasks", len(tasks))
	return fmt.Sprintf("seeded team %s (%s) with 2 projects and %d tasks", team.Name, team.ID, len(tasks)), nil
}
