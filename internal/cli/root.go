package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"pagecraft/internal/format"
	"pagecraft/internal/logging"
	"pagecraft/internal/move"
	"pagecraft/internal/mutate"
	"pagecraft/internal/store"

	"github.com/spf13/cobra"
)

type App struct {
	ConfigDir  string
	Driver     string
	Dir        string
	DSN        string
	LogLevel   string
	PrettyJSON bool
	Format     string

	cfg    *store.Config
	logger *logging.Logger
}

// Execute runs the pagecraft root command against os.Args.
func Execute() error {
	return execute(&App{}, nil, nil, nil)
}

// execute runs a root command bound to app. args, stdout and stderr default to the
// process values when nil. Cobra skips post-run hooks when RunE fails, so the logger
// is released here instead.
func execute(app *App, args []string, stdout, stderr io.Writer) error {
	defer app.close()
	cmd := newRootCmd(app)
	if args != nil {
		cmd.SetArgs(args)
	}
	if stdout != nil {
		cmd.SetOut(stdout)
	}
	if stderr != nil {
		cmd.SetErr(stderr)
	}
	return cmd.Execute()
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "pagecraft",
		Short:        "Reorder menus, page sections and widgets from the command line",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Register a container and add two items
  pagecraft containers add menu:main menu1 --label "Main menu"
  pagecraft items add menu:main --container menu1 --payload '{"label":"Home"}'

  # Drag A onto B with a 45px rightward offset (nests A under B)
  pagecraft items move menu:main A --over B --offset 45

  # Interactive editor
  pagecraft tui menu:main
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.init()
	}

	cmd.PersistentFlags().StringVar(&app.ConfigDir, "config", envOr("PAGECRAFT_CONFIG_DIR", ""), "Config directory (default ~/.pagecraft)")
	cmd.PersistentFlags().StringVar(&app.Driver, "store", "", "Store driver (sqlite|postgres|surrealdb|memory); overrides config")
	cmd.PersistentFlags().StringVar(&app.Dir, "dir", "", "SQLite data directory; overrides config")
	cmd.PersistentFlags().StringVar(&app.DSN, "dsn", "", "Postgres DSN; overrides config")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "", "Log level (debug|info|warn|error); overrides config")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("PAGECRAFT_FORMAT", "json"), "Output format (json|yaml)")

	cmd.AddCommand(newContainersCmd(app))
	cmd.AddCommand(newItemsCmd(app))
	cmd.AddCommand(newDoctorCmd(app))
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newEventsCmd(app))
	cmd.AddCommand(newTUICmd(app))

	return cmd
}

// init resolves config in precedence order: flags, then PAGECRAFT_* env, then
// config.yaml, then defaults.
func (app *App) init() error {
	dir := strings.TrimSpace(app.ConfigDir)
	if dir == "" {
		d, err := store.ConfigDir()
		if err != nil {
			return err
		}
		dir = d
	}
	cfg, err := store.LoadConfigAt(dir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if app.Driver != "" {
		cfg.Store.Driver = app.Driver
	}
	if app.Dir != "" {
		cfg.Store.Dir = app.Dir
	}
	if app.DSN != "" {
		cfg.Store.DSN = app.DSN
	}
	if app.LogLevel != "" {
		cfg.Log.Level = app.LogLevel
	}
	app.cfg = cfg

	lg, err := logging.New().
		FromWriter(os.Stderr).
		FromPath(cfg.Log.File).
		Level(cfg.Log.Level).
		Console(cfg.Log.Console).
		Make()
	if err != nil {
		return err
	}
	app.logger = lg
	return nil
}

func (app *App) close() {
	if app.logger == nil {
		return
	}
	if err := app.logger.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "close log:", err)
	}
	app.logger = nil
}

func (app *App) openStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, app.cfg.Store)
	if err != nil {
		return nil, err
	}
	app.logger.Debug().Str("driver", app.cfg.Store.Driver).Msg("store opened")
	return st, nil
}

func (app *App) interpreter() move.Interpreter {
	return move.Interpreter{Threshold: app.cfg.Engine.NestThreshold, MaxDepth: app.cfg.Engine.MaxDepth}
}

// openCoordinator opens the store and loads familyID. The caller closes the store.
func (app *App) openCoordinator(ctx context.Context, familyID string, metrics *mutate.Metrics) (*mutate.Coordinator, store.Store, error) {
	if strings.TrimSpace(familyID) == "" {
		return nil, nil, fmt.Errorf("family id required")
	}
	st, err := app.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	c, err := mutate.Open(ctx, st, familyID, mutate.Options{
		Interpreter: app.interpreter(),
		Logger:      &app.logger.Logger,
		Metrics:     metrics,
	})
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return c, st, nil
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
