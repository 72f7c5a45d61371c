package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tgienger/taskboard/internal/api"
	"github.com/tgienger/taskboard/internal/board"
	"github.com/tgienger/taskboard/internal/config"
	"github.com/tgienger/taskboard/internal/db"
	"github.com/tgienger/taskboard/internal/logging"
	"github.com/tgienger/taskboard/internal/session"
	"github.com/tgienger/taskboard/internal/ui"
)

// Version information set via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath string
	apiURL     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "taskboard",
	Short: "Terminal client for the team task board",
	Long: `taskboard is a terminal client for a shared kanban board.
Sign in, filter tasks, drag cards between columns and discuss them in comments.`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         runBoard,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/taskboard/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "backend base URL, overrides api.url")
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}

// tokenFunc adapts a func to api.TokenSource
type tokenFunc func() string

func (f tokenFunc) Token() string { return f() }

// runtime is everything a command needs, wired in dependency order
type runtime struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *db.DB
	client *api.Client
	store  *session.Store
	close  func()
}

func setup() (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.API.URL = apiURL
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}

	database, err := db.New(cfg.Data.Dir)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	var store *session.Store
	client, err := api.New(api.Options{
		BaseURL: cfg.API.URL,
		Timeout: cfg.API.Timeout,
		Tokens:  tokenFunc(func() string { return store.Token() }),
		Logger:  logger.Named("api"),
	})
	if err != nil {
		database.Close()
		closeLog()
		return nil, err
	}
	store = session.New(database, client, logger.Named("session"))
	client.OnUnauthorized(store.Expire)

	if _, err := store.Restore(); err != nil {
		logger.Warn("could not restore session", zap.Error(err))
	}

	return &runtime{
		cfg:    cfg,
		logger: logger,
		db:     database,
		client: client,
		store:  store,
		close: func() {
			database.Close()
			closeLog()
		},
	}, nil
}

func runBoard(cmd *cobra.Command, _ []string) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.close()
	rt.logger.Info("starting taskboard", zap.String("version", version), zap.String("api_url", rt.cfg.API.URL))

	events := ui.NewEvents(rt.logger)
	rt.store.Subscribe(events.SessionChanged)
	ctrl := board.NewController(rt.client, events, rt.logger.Named("board"))
	detail := board.NewDetail(ctrl, rt.client, events, rt.logger.Named("detail"))

	app := ui.NewApp(cmd.Context(), ui.Deps{
		Session: rt.store,
		Board:   ctrl,
		Detail:  detail,
		Events:  events,
		Logger:  rt.logger.Named("ui"),
	})
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseAllMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run application: %w", err)
	}
	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.close()

	rt.store.Logout()
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
	return nil
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.close()

	out := cmd.OutOrStdout()
	sess, ok := rt.store.Current()
	if !ok {
		fmt.Fprintln(out, "Not signed in")
		return nil
	}
	fmt.Fprintf(out, "%s <%s>\n", sess.User.DisplayName(), sess.User.Email)
	if exp, ok := session.ExpiresAt(sess.Token); ok {
		state := "expires"
		if time.Now().After(exp) {
			state = "expired"
		}
		fmt.Fprintf(out, "Token %s %s\n", state, exp.Local().Format(time.RFC1123))
	}
	return nil
}
