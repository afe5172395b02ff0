package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/hylla/kalend/internal/app"
	"github.com/hylla/kalend/internal/domain"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// dsnPragmas are applied by the driver to every pooled connection.
const dsnPragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// Repository persists users, teams, projects and tasks and implements app.Remote.
type Repository struct {
	db    *sql.DB
	idGen func() string
	clock func() time.Time
}

// Open opens (and migrates) a file-backed database.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	return openDSN(path + "?" + dsnPragmas)
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	return openDSN("file:kalend-" + uuid.NewString() + "?mode=memory&cache=shared&" + dsnPragmas)
}

func openDSN(dsn string) (*Repository, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers and keeps shared-cache memory databases alive.
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db, idGen: uuid.NewString, clock: time.Now}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate creates the schema when missing.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			admin INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS teams (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			creator_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS team_members (
			team_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			PRIMARY KEY(team_id, user_id),
			FOREIGN KEY(team_id) REFERENCES teams(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			creator_id TEXT NOT NULL,
			team_id TEXT NOT NULL DEFAULT '',
			policy TEXT NOT NULL DEFAULT 'ALL_MEMBERS',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS project_members (
			project_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			PRIMARY KEY(project_id, user_id),
			FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			time_of_day TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL DEFAULT 'task',
			project_id TEXT NOT NULL,
			team_id TEXT NOT NULL DEFAULT '',
			creator_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS task_assignees (
			task_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			PRIMARY KEY(task_id, user_id),
			FOREIGN KEY(task_id) REFERENCES tasks(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_range ON tasks(start_date, end_date);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_team ON tasks(team_id);`,
		`CREATE INDEX IF NOT EXISTS idx_task_assignees_user ON task_assignees(user_id);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// UpsertUser creates or replaces a user.
func (r *Repository) UpsertUser(ctx context.Context, u domain.User) error {
	user, err := domain.NewUser(u.ID, u.Name, u.Admin)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users(id, name, admin) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, admin = excluded.admin
	`, user.ID, user.Name, boolInt(user.Admin))
	return err
}

// ListUsers lists users ordered by id.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, admin FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.User{}
	for rows.Next() {
		var (
			u     domain.User
			admin int
		)
		if err := rows.Scan(&u.ID, &u.Name, &admin); err != nil {
			return nil, err
		}
		u.Admin = admin != 0
		out = append(out, u)
	}
	return out, rows.Err()
}

// ListTasks lists tasks matching filter ordered by start date, end date and id.
func (r *Repository) ListTasks(ctx context.Context, filter app.TaskFilter) ([]domain.Task, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != "" {
		where = append(where, `(creator_id = ? OR id IN (SELECT task_id FROM task_assignees WHERE user_id = ?))`)
		args = append(args, filter.UserID, filter.UserID)
	}
	if filter.ProjectID != "" {
		where = append(where, `project_id = ?`)
		args = append(args, filter.ProjectID)
	}
	if filter.TeamID != "" {
		where = append(where, `team_id = ?`)
		args = append(args, filter.TeamID)
	}
	if !filter.StartDate.IsZero() {
		where = append(where, `end_date >= ?`)
		args = append(args, filter.StartDate.String())
	}
	if !filter.EndDate.IsZero() {
		where = append(where, `start_date <= ?`)
		args = append(args, filter.EndDate.String())
	}
	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY start_date ASC, end_date ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := []domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, task)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(out))
	for _, task := range out {
		ids = append(ids, task.ID)
	}
	assignees, err := loadMembers(ctx, r.db, `SELECT task_id, user_id FROM task_assignees WHERE task_id IN (%s) ORDER BY user_id ASC`, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].AssigneeIDs = nonNil(assignees[out[i].ID])
	}
	return out, nil
}

// CreateTask stores a new task and enrolls its creator and assignees in the owning project and team.
func (r *Repository) CreateTask(ctx context.Context, fields app.TaskFields) (task domain.Task, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	project, err := getProjectByID(ctx, tx, fields.ProjectID)
	if err != nil {
		return domain.Task{}, fmt.Errorf("project %q: %w", fields.ProjectID, err)
	}
	teamID := fields.TeamID
	if strings.TrimSpace(teamID) == "" {
		teamID = project.TeamID
	}
	task, err = domain.NewTask(domain.TaskInput{
		ID:          r.idGen(),
		Title:       fields.Title,
		Description: fields.Description,
		StartDate:   fields.StartDate,
		EndDate:     fields.EndDate,
		Time:        fields.Time,
		Type:        fields.Type,
		ProjectID:   project.ID,
		TeamID:      teamID,
		CreatorID:   fields.CreatorID,
		AssigneeIDs: fields.AssigneeIDs,
	}, r.clock())
	if err != nil {
		return domain.Task{}, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks(id, title, description, start_date, end_date, time_of_day, type, project_id, team_id, creator_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		task.ID,
		task.Title,
		task.Description,
		task.StartDate.String(),
		task.EndDate.String(),
		task.Time,
		string(task.Type),
		task.ProjectID,
		task.TeamID,
		task.CreatorID,
		ts(task.CreatedAt),
		ts(task.UpdatedAt),
	)
	if err != nil {
		return domain.Task{}, err
	}
	if err = replaceMembers(ctx, tx, "task_assignees", "task_id", task.ID, task.AssigneeIDs); err != nil {
		return domain.Task{}, err
	}
	if err = enroll(ctx, tx, task); err != nil {
		return domain.Task{}, err
	}
	err = tx.Commit()
	return task, err
}

// UpdateTask applies patch to a stored task.
func (r *Repository) UpdateTask(ctx context.Context, id string, patch app.TaskPatch) (task domain.Task, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	prev, err := getTaskByID(ctx, tx, id)
	if err != nil {
		return domain.Task{}, err
	}
	if patch.MoveProject(prev) {
		if _, err = getProjectByID(ctx, tx, *patch.ProjectID); err != nil {
			return domain.Task{}, fmt.Errorf("project %q: %w", *patch.ProjectID, err)
		}
	}
	task, err = patch.Apply(prev)
	if err != nil {
		return domain.Task{}, err
	}
	task.UpdatedAt = r.clock().UTC()

	res, err := tx.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, start_date = ?, end_date = ?, time_of_day = ?, type = ?, project_id = ?, team_id = ?, updated_at = ?
		WHERE id = ?
	`,
		task.Title,
		task.Description,
		task.StartDate.String(),
		task.EndDate.String(),
		task.Time,
		string(task.Type),
		task.ProjectID,
		task.TeamID,
		ts(task.UpdatedAt),
		task.ID,
	)
	if err != nil {
		return domain.Task{}, err
	}
	if err = translateNoRows(res); err != nil {
		return domain.Task{}, err
	}
	if patch.AssigneeIDs != nil {
		if err = replaceMembers(ctx, tx, "task_assignees", "task_id", task.ID, task.AssigneeIDs); err != nil {
			return domain.Task{}, err
		}
	}
	if err = enroll(ctx, tx, task); err != nil {
		return domain.Task{}, err
	}
	err = tx.Commit()
	return task, err
}

// DeleteTask deletes a task.
func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// ListProjects lists projects ordered by name.
func (r *Repository) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	out := []domain.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(out))
	for _, p := range out {
		ids = append(ids, p.ID)
	}
	members, err := loadMembers(ctx, r.db, `SELECT project_id, user_id FROM project_members WHERE project_id IN (%s) ORDER BY user_id ASC`, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].MemberIDs = nonNil(members[out[i].ID])
	}
	return out, nil
}

// CreateProject stores a new project with its creator enrolled.
func (r *Repository) CreateProject(ctx context.Context, fields app.ProjectFields) (project domain.Project, err error) {
	project, err = domain.NewProject(r.idGen(), fields.Name, fields.CreatorID, fields.Policy, r.clock())
	if err != nil {
		return domain.Project{}, err
	}
	if err := project.UpdateDetails(project.Name, fields.Description, project.Policy, project.UpdatedAt); err != nil {
		return domain.Project{}, err
	}
	project.TeamID = strings.TrimSpace(fields.TeamID)
	project.AddMembers(fields.MemberIDs...)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects(id, name, description, creator_id, team_id, policy, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		project.ID,
		project.Name,
		project.Description,
		project.CreatorID,
		project.TeamID,
		string(project.Policy),
		ts(project.CreatedAt),
		ts(project.UpdatedAt),
	)
	if err != nil {
		return domain.Project{}, err
	}
	if err = replaceMembers(ctx, tx, "project_members", "project_id", project.ID, project.MemberIDs); err != nil {
		return domain.Project{}, err
	}
	err = tx.Commit()
	return project, err
}

// UpdateProject applies patch to a stored project.
func (r *Repository) UpdateProject(ctx context.Context, id string, patch app.ProjectPatch) (project domain.Project, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	project, err = getProjectByID(ctx, tx, id)
	if err != nil {
		return domain.Project{}, err
	}
	name, description, policy := project.Name, project.Description, project.Policy
	if patch.Name != nil {
		name = *patch.Name
	}
	if patch.Description != nil {
		description = *patch.Description
	}
	if patch.Policy != nil {
		policy = *patch.Policy
	}
	if err = project.UpdateDetails(name, description, policy, r.clock()); err != nil {
		return domain.Project{}, err
	}
	if patch.TeamID != nil {
		project.TeamID = strings.TrimSpace(*patch.TeamID)
	}
	if patch.MemberIDs != nil {
		project.MemberIDs = nil
		project.AddMembers(append([]string{project.CreatorID}, *patch.MemberIDs...)...)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE projects SET name = ?, description = ?, team_id = ?, policy = ?, updated_at = ? WHERE id = ?
	`, project.Name, project.Description, project.TeamID, string(project.Policy), ts(project.UpdatedAt), project.ID)
	if err != nil {
		return domain.Project{}, err
	}
	if patch.MemberIDs != nil {
		if err = replaceMembers(ctx, tx, "project_members", "project_id", project.ID, project.MemberIDs); err != nil {
			return domain.Project{}, err
		}
	}
	err = tx.Commit()
	return project, err
}

// DeleteProject deletes a project and its tasks.
func (r *Repository) DeleteProject(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM tasks WHERE project_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err = translateNoRows(res); err != nil {
		return err
	}
	return tx.Commit()
}

// ListTeams lists teams ordered by name.
func (r *Repository) ListTeams(ctx context.Context) ([]domain.Team, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, creator_id, created_at, updated_at FROM teams ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	out := []domain.Team{}
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(out))
	for _, t := range out {
		ids = append(ids, t.ID)
	}
	members, err := loadMembers(ctx, r.db, `SELECT team_id, user_id FROM team_members WHERE team_id IN (%s) ORDER BY user_id ASC`, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].MemberIDs = nonNil(members[out[i].ID])
	}
	return out, nil
}

// CreateTeam stores a new team.
func (r *Repository) CreateTeam(ctx context.Context, fields app.TeamFields) (team domain.Team, err error) {
	team, err = domain.NewTeam(r.idGen(), fields.Name, fields.CreatorID, fields.MemberIDs, r.clock())
	if err != nil {
		return domain.Team{}, err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Team{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO teams(id, name, creator_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
	`, team.ID, team.Name, team.CreatorID, ts(team.CreatedAt), ts(team.UpdatedAt))
	if err != nil {
		return domain.Team{}, err
	}
	if err = replaceMembers(ctx, tx, "team_members", "team_id", team.ID, team.MemberIDs); err != nil {
		return domain.Team{}, err
	}
	err = tx.Commit()
	return team, err
}

// UpdateTeam applies patch to a stored team.
func (r *Repository) UpdateTeam(ctx context.Context, id string, patch app.TeamPatch) (team domain.Team, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Team{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	team, err = getTeamByID(ctx, tx, id)
	if err != nil {
		return domain.Team{}, err
	}
	name := team.Name
	if patch.Name != nil {
		name = *patch.Name
	}
	if err = team.Rename(name, r.clock()); err != nil {
		return domain.Team{}, err
	}
	if patch.MemberIDs != nil {
		team.MemberIDs = nil
		team.AddMembers(append([]string{team.CreatorID}, *patch.MemberIDs...)...)
		if err = replaceMembers(ctx, tx, "team_members", "team_id", team.ID, team.MemberIDs); err != nil {
			return domain.Team{}, err
		}
	}
	_, err = tx.ExecContext(ctx, `UPDATE teams SET name = ?, updated_at = ? WHERE id = ?`, team.Name, ts(team.UpdatedAt), team.ID)
	if err != nil {
		return domain.Team{}, err
	}
	err = tx.Commit()
	return team, err
}

// DeleteTeam deletes a team and detaches its projects and tasks.
func (r *Repository) DeleteTeam(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx, `DELETE FROM teams WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err = translateNoRows(res); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE projects SET team_id = '' WHERE team_id = ?`, id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE tasks SET team_id = '' WHERE team_id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

var _ app.Remote = (*Repository)(nil)

// taskColumns lists the scanTask column order.
const taskColumns = `id, title, description, start_date, end_date, time_of_day, type, project_id, team_id, creator_id, created_at, updated_at`

// projectColumns lists the scanProject column order.
const projectColumns = `id, name, description, creator_id, team_id, policy, created_at, updated_at`

// queryer represents read access shared by DB and Tx implementations.
type queryer interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// execerContext represents a write-only DB contract used by DB and Tx implementations.
type execerContext interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

// getTaskByID returns one task with its assignees.
func getTaskByID(ctx context.Context, q queryer, id string) (domain.Task, error) {
	task, err := scanTask(q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if err != nil {
		return domain.Task{}, err
	}
	assignees, err := loadMembers(ctx, q, `SELECT task_id, user_id FROM task_assignees WHERE task_id IN (%s) ORDER BY user_id ASC`, []string{id})
	if err != nil {
		return domain.Task{}, err
	}
	task.AssigneeIDs = nonNil(assignees[id])
	return task, nil
}

// getProjectByID returns one project with its members.
func getProjectByID(ctx context.Context, q queryer, id string) (domain.Project, error) {
	project, err := scanProject(q.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if err != nil {
		return domain.Project{}, err
	}
	members, err := loadMembers(ctx, q, `SELECT project_id, user_id FROM project_members WHERE project_id IN (%s) ORDER BY user_id ASC`, []string{id})
	if err != nil {
		return domain.Project{}, err
	}
	project.MemberIDs = nonNil(members[id])
	return project, nil
}

// getTeamByID returns one team with its members.
func getTeamByID(ctx context.Context, q queryer, id string) (domain.Team, error) {
	team, err := scanTeam(q.QueryRowContext(ctx, `SELECT id, name, creator_id, created_at, updated_at FROM teams WHERE id = ?`, id))
	if err != nil {
		return domain.Team{}, err
	}
	members, err := loadMembers(ctx, q, `SELECT team_id, user_id FROM team_members WHERE team_id IN (%s) ORDER BY user_id ASC`, []string{id})
	if err != nil {
		return domain.Team{}, err
	}
	team.MemberIDs = nonNil(members[id])
	return team, nil
}

// loadMembers runs a two-column (owner, user) query with an IN placeholder list and groups by owner.
func loadMembers(ctx context.Context, q queryer, queryFmt string, ownerIDs []string) (map[string][]string, error) {
	out := map[string][]string{}
	if len(ownerIDs) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ownerIDs)), ",")
	args := make([]any, 0, len(ownerIDs))
	for _, id := range ownerIDs {
		args = append(args, id)
	}
	rows, err := q.QueryContext(ctx, fmt.Sprintf(queryFmt, placeholders), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var owner, user string
		if err := rows.Scan(&owner, &user); err != nil {
			return nil, err
		}
		out[owner] = append(out[owner], user)
	}
	return out, rows.Err()
}

// replaceMembers rewrites one owner's membership rows in a join table.
func replaceMembers(ctx context.Context, execer execerContext, table, ownerColumn, ownerID string, userIDs []string) error {
	if _, err := execer.ExecContext(ctx, `DELETE FROM `+table+` WHERE `+ownerColumn+` = ?`, ownerID); err != nil {
		return err
	}
	return addMembers(ctx, execer, table, ownerColumn, ownerID, userIDs)
}

// addMembers inserts membership rows, ignoring existing ones.
func addMembers(ctx context.Context, execer execerContext, table, ownerColumn, ownerID string, userIDs []string) error {
	for _, userID := range domain.NormalizeIDs(userIDs) {
		if _, err := execer.ExecContext(ctx, `INSERT OR IGNORE INTO `+table+`(`+ownerColumn+`, user_id) VALUES (?, ?)`, ownerID, userID); err != nil {
			return err
		}
	}
	return nil
}

// enroll adds a task's creator and assignees to its project and team.
func enroll(ctx context.Context, execer execerContext, task domain.Task) error {
	users := append([]string{task.CreatorID}, task.AssigneeIDs...)
	if err := addMembers(ctx, execer, "project_members", "project_id", task.ProjectID, users); err != nil {
		return fmt.Errorf("enroll project members: %w", err)
	}
	if task.TeamID == "" {
		return nil
	}
	for _, userID := range domain.NormalizeIDs(users) {
		_, err := execer.ExecContext(ctx, `
			INSERT OR IGNORE INTO team_members(team_id, user_id)
			SELECT ?, ? WHERE EXISTS (SELECT 1 FROM teams WHERE id = ?)
		`, task.TeamID, userID, task.TeamID)
		if err != nil {
			return fmt.Errorf("enroll team members: %w", err)
		}
	}
	return nil
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

// scanTask decodes one taskColumns row.
func scanTask(s scanner) (domain.Task, error) {
	var (
		t          domain.Task
		startRaw   string
		endRaw     string
		typeRaw    string
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&startRaw,
		&endRaw,
		&t.Time,
		&typeRaw,
		&t.ProjectID,
		&t.TeamID,
		&t.CreatorID,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Task{}, app.ErrNotFound
		}
		return domain.Task{}, err
	}
	var err error
	if t.StartDate, err = domain.ParseDate(startRaw); err != nil {
		return domain.Task{}, fmt.Errorf("decode start_date: %w", err)
	}
	if t.EndDate, err = domain.ParseDate(endRaw); err != nil {
		return domain.Task{}, fmt.Errorf("decode end_date: %w", err)
	}
	if t.Type, err = domain.NormalizeTaskType(domain.TaskType(typeRaw)); err != nil {
		return domain.Task{}, fmt.Errorf("decode type %q: %w", typeRaw, err)
	}
	t.CreatedAt = parseTS(createdRaw)
	t.UpdatedAt = parseTS(updatedRaw)
	t.AssigneeIDs = []string{}
	return t, nil
}

// scanProject decodes one projectColumns row.
func scanProject(s scanner) (domain.Project, error) {
	var (
		p          domain.Project
		policyRaw  string
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&p.ID, &p.Name, &p.Description, &p.CreatorID, &p.TeamID, &policyRaw, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Project{}, app.ErrNotFound
		}
		return domain.Project{}, err
	}
	policy, err := domain.ParseCollaborationPolicy(policyRaw)
	if err != nil {
		return domain.Project{}, fmt.Errorf("decode policy %q: %w", policyRaw, err)
	}
	p.Policy = policy
	p.CreatedAt = parseTS(createdRaw)
	p.UpdatedAt = parseTS(updatedRaw)
	return p, nil
}

// scanTeam decodes one team row.
func scanTeam(s scanner) (domain.Team, error) {
	var (
		t          domain.Team
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&t.ID, &t.Name, &t.CreatorID, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Team{}, app.ErrNotFound
		}
		return domain.Team{}, err
	}
	t.CreatedAt = parseTS(createdRaw)
	t.UpdatedAt = parseTS(updatedRaw)
	return t, nil
}

// translateNoRows maps a zero-row write to app.ErrNotFound.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// ts formats a timestamp for storage.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses a stored timestamp.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return slices.Clip(ids)
}
