package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"github.com/hylla/kalend/internal/adapters/server"
	"github.com/hylla/kalend/internal/adapters/server/common"
	"github.com/hylla/kalend/internal/adapters/storage/sqlite"
	"github.com/hylla/kalend/internal/app"
	"github.com/hylla/kalend/internal/config"
	"github.com/hylla/kalend/internal/domain"
	"github.com/hylla/kalend/internal/platform"
	"github.com/hylla/kalend/internal/tui"
)

// version stores a package-level helper value.
var version = "dev"

// program represents program data used by this package.
type program interface {
	Run() (tea.Model, error)
}

// programFactory stores a package-level helper value.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveRunner starts the HTTP and MCP server; tests replace it.
var serveRunner = server.Run

// main handles main.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// run runs the requested command flow.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	env, err := loadEnv()
	if err != nil {
		return err
	}
	root := newRootCmd(env)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return fang.Execute(ctx, root, fang.WithVersion(version))
}

// envOverrides are the KALEND_* environment variables; flags win over them.
type envOverrides struct {
	ConfigPath string `envconfig:"CONFIG"`
	DBPath     string `envconfig:"DB_PATH"`
	AppName    string `envconfig:"APP_NAME"`
	DevMode    string `envconfig:"DEV_MODE"`
}

// loadEnv reads envOverrides from the process environment.
func loadEnv() (envOverrides, error) {
	var env envOverrides
	if err := envconfig.Process("kalend", &env); err != nil {
		return envOverrides{}, fmt.Errorf("load environment: %w", err)
	}
	return env, nil
}

// cliOptions holds the persistent flags shared by every command.
type cliOptions struct {
	env        envOverrides
	configPath string
	dbPath     string
	appName    string
	devMode    bool
	actorID    string
}

// newRootCmd builds the command tree.
func newRootCmd(env envOverrides) *cobra.Command {
	opts := &cliOptions{env: env, appName: platform.DefaultAppName, devMode: version == "dev"}
	if dev, ok := parseBool(env.DevMode); ok {
		opts.devMode = dev
	}
	if appName := strings.TrimSpace(env.AppName); appName != "" {
		opts.appName = appName
	}

	cmd := &cobra.Command{
		Use:          "kalend",
		Short:        "Shared team calendar with drag-to-create and drag-to-move",
		Version:      version,
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Open the terminal calendar
  kalend

  # Print this week's laned layout for a team
  kalend week --team <team-id>

  # Serve HTTP and MCP on the configured bind address
  kalend serve
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, "tui", func(env *runtimeEnv) error {
				return runTUI(cmd.Context(), env)
			})
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&opts.appName, "app", opts.appName, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", opts.devMode, "use dev mode paths (<app>-dev)")
	flags.StringVar(&opts.actorID, "as", "", "act as this user id instead of identity.user_id")

	cmd.AddCommand(
		newWeekCmd(opts),
		newSeedCmd(opts),
		newServeCmd(opts),
		newPathsCmd(opts),
	)
	return cmd
}

// newPathsCmd prints the resolved runtime paths.
func newPathsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data and database paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := opts.paths()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(out, "log_dir: %s\n", paths.LogDir)
			return nil
		},
	}
}

// newServeCmd serves the HTTP API and MCP tools.
func newServeCmd(opts *cliOptions) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the calendar over HTTP and MCP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, "serve", func(env *runtimeEnv) error {
				cfg := env.cfg.Server
				if strings.TrimSpace(bind) != "" {
					cfg.HTTPBind = bind
				}
				return serveRunner(cmd.Context(), server.Config{
					HTTPBind:      cfg.HTTPBind,
					APIEndpoint:   cfg.APIEndpoint,
					MCPEndpoint:   cfg.MCPEndpoint,
					ServerName:    opts.appName,
					ServerVersion: version,
					CORSOrigins:   cfg.CORSOrigins,
				}, server.Dependencies{
					Calendar: env.calendar(),
					Logger:   env.logger,
				})
			})
		},
	}
	cmd.Flags().StringVar(&bind, "http", "", "override server.http_bind")
	return cmd
}

// withRuntime opens the runtime environment, runs fn and closes everything.
func withRuntime(cmd *cobra.Command, opts *cliOptions, command string, fn func(*runtimeEnv) error) error {
	env, err := openRuntime(cmd.Context(), *opts, cmd.ErrOrStderr(), command)
	if err != nil {
		return err
	}
	defer env.Close()

	env.logger.Info("command flow start", "command", command)
	if err := fn(env); err != nil {
		env.logger.Error("command flow failed", "command", command, "err", err)
		return err
	}
	env.logger.Info("command flow complete", "command", command)
	return nil
}

// runtimeEnv holds the resolved configuration and open resources for one command.
type runtimeEnv struct {
	cfg       config.Config
	actorID   string
	weekStart time.Weekday
	logger    *runtimeLogger
	repo      *sqlite.Repository
}

// paths resolves platform paths for the current options.
func (o cliOptions) paths() (platform.Paths, error) {
	return platform.DefaultPathsWithOptions(platform.Options{AppName: o.appName, DevMode: o.devMode})
}

// openRuntime resolves configuration, logging and storage.
func openRuntime(ctx context.Context, opts cliOptions, stderr io.Writer, command string) (*runtimeEnv, error) {
	paths, err := opts.paths()
	if err != nil {
		return nil, err
	}
	configPath := strings.TrimSpace(opts.configPath)
	if configPath == "" {
		if envPath := strings.TrimSpace(opts.env.ConfigPath); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	dbPath := strings.TrimSpace(opts.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(opts.env.DBPath); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}
	weekStart, err := cfg.WeekStart()
	if err != nil {
		return nil, err
	}

	logger, err := newRuntimeLogger(stderr, opts.appName, opts.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	if command == "tui" {
		// The alt screen owns the terminal while the calendar runs.
		logger.SetConsoleEnabled(false)
	}
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		_ = logger.Close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	logger.Info("sqlite repository ready", "db_path", cfg.Database.Path)

	actorID := strings.TrimSpace(opts.actorID)
	if actorID == "" {
		actorID = cfg.Identity.UserID
	}
	env := &runtimeEnv{cfg: cfg, actorID: actorID, weekStart: weekStart, logger: logger, repo: repo}
	if err := env.ensureActor(ctx); err != nil {
		env.Close()
		return nil, err
	}
	return env, nil
}

// ensureActor registers the acting user on first use.
func (e *runtimeEnv) ensureActor(ctx context.Context) error {
	users, err := e.repo.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	for _, user := range users {
		if user.ID == e.actorID {
			return nil
		}
	}
	name := ""
	if e.actorID == e.cfg.Identity.UserID {
		name = e.cfg.Identity.DisplayName
	}
	if err := e.repo.UpsertUser(ctx, domain.User{ID: e.actorID, Name: name}); err != nil {
		return fmt.Errorf("register user %q: %w", e.actorID, err)
	}
	e.logger.Info("registered acting user", "user_id", e.actorID)
	return nil
}

// newStore builds a store over the repository for the acting user.
func (e *runtimeEnv) newStore(observer app.MutationObserver) *app.Store {
	view, _ := app.ParseView(strings.ToLower(strings.TrimSpace(e.cfg.Calendar.DefaultView)))
	return app.NewStore(e.repo, app.StoreConfig{
		ActorID:          e.actorID,
		WeekStart:        e.weekStart,
		View:             view,
		GestureTimeout:   e.cfg.Gestures.Timeout.Std(),
		ReconcileTimeout: e.cfg.Reconcile.Timeout.Std(),
		Logger:           e.logger,
		Observer:         observer,
	})
}

// calendar builds the transport calendar service.
func (e *runtimeEnv) calendar() *common.StoreAdapter {
	return common.NewStoreAdapter(e.repo, common.CalendarConfig{
		ActorID:          e.actorID,
		WeekStart:        e.weekStart,
		ReconcileTimeout: e.cfg.Reconcile.Timeout.Std(),
		Logger:           e.logger,
	})
}

// Close releases the repository and log sinks.
func (e *runtimeEnv) Close() {
	if err := e.repo.Close(); err != nil {
		e.logger.Warn("sqlite close failed", "db_path", e.cfg.Database.Path, "err", err)
	}
	_ = e.logger.Close()
}

// runTUI runs the terminal calendar until the user quits.
func runTUI(ctx context.Context, env *runtimeEnv) error {
	observer, events := tui.EventFeed(64)
	store := env.newStore(observer)
	defer store.Wait()

	keys := env.cfg.Keys
	m := tui.NewModel(store,
		tui.WithContext(ctx),
		tui.WithEvents(events),
		tui.WithKeyConfig(tui.KeyConfig{
			PrevWeek:  keys.PrevWeek,
			NextWeek:  keys.NextWeek,
			Today:     keys.Today,
			CycleMode: keys.CycleMode,
			NextScope: keys.NextScope,
			Details:   keys.Details,
			Reload:    keys.Reload,
		}),
	)
	env.logger.Info("starting tui program loop", "actor_id", env.actorID)
	if _, err := programFactory(m).Run(); err != nil {
		return fmt.Errorf("run tui program: %w", err)
	}
	return nil
}

// parseBool reads an optional boolean; blank or malformed values report ok=false.
func parseBool(raw string) (value bool, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
