// Package cli wires the ghsync command line: the interactive TUI on the root
// command and one-shot subcommands for scripting against the same backend.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/h0rv/ghsync/internal/api"
	"github.com/h0rv/ghsync/internal/auth"
	"github.com/h0rv/ghsync/internal/catalog"
	"github.com/h0rv/ghsync/internal/config"
	"github.com/h0rv/ghsync/internal/dashboard"
	"github.com/h0rv/ghsync/internal/domain"
	"github.com/h0rv/ghsync/internal/logging"
	"github.com/h0rv/ghsync/internal/prefs"
	"github.com/h0rv/ghsync/internal/session"
	"github.com/h0rv/ghsync/internal/syncer"
	"github.com/h0rv/ghsync/internal/tui"
	"github.com/h0rv/ghsync/internal/viewer"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

// openURL is swapped out in tests.
var openURL = browser.OpenURL

type configKey struct{}

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	var (
		cfgFile        string
		collectionFlag string
	)

	rootCmd := &cobra.Command{
		Use:   "ghsync",
		Short: "Terminal dashboard for a GitHub-integration backend",
		Long: `ghsync is a terminal client for a backend that mirrors GitHub data
(organizations, repositories, commits, issues, pull requests, users).

Run without a subcommand for the interactive dashboard and data grid.
The subcommands expose the same operations for scripting.

Authentication:
  The backend owns the GitHub OAuth flow and identifies you by a session
  cookie. Run 'ghsync login' once, or set GHSYNC_SESSION.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, collectionFlag)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/ghsync/config.yaml)")
	pf.String("base-url", "", "backend API base URL")
	pf.String("session", "", "backend session cookie value")
	pf.String("prefs-path", "", "preference store file")
	pf.Int("page-size", 0, "rows per page")
	pf.String("timezone", "", "IANA time zone timestamps are shown in")
	pf.String("log-level", "", "log level (debug|info|warn|error)")
	pf.String("log-format", "", "log format (text|json)")
	pf.BoolP("verbose", "v", false, "log at the configured level instead of warn (subcommands only)")
	pf.String("output", string(formatTable), "output format (table|json|csv|markdown)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json", "csv", "markdown"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.Flags().StringVar(&collectionFlag, "collection", "", "open this collection straight after login")

	rootCmd.AddCommand(
		newStatusCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newCollectionsCmd(),
		newSchemaCmd(),
		newRowsCmd(),
		newExportCmd(),
		newStatsCmd(),
		newSearchCmd(),
		newSyncCmd(),
		newSyncStatusCmd(),
		newPrefsCmd(),
	)
	return rootCmd
}

// Execute runs the root command and reports errors on stderr.
func Execute(ctx context.Context) error {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// configFrom returns the config loaded by PersistentPreRunE.
func configFrom(cmd *cobra.Command) (*config.Config, error) {
	if cfg, ok := cmd.Context().Value(configKey{}).(*config.Config); ok {
		return cfg, nil
	}
	return config.Load("", nil)
}

// runtime holds the services one command invocation needs.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	prefs   *prefs.Store
	client  *api.Client
	format  outputFormat
	closers []io.Closer
}

// newRuntime builds the logger, preference store and API client. interactive
// sends logs to the log file, since the TUI owns the terminal.
func newRuntime(cmd *cobra.Command, interactive bool) (*runtime, error) {
	cfg, err := configFrom(cmd)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg}

	if interactive {
		logger, closer, err := logging.NewFile(cfg.LogFile, cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return nil, err
		}
		rt.logger = logger
		rt.closers = append(rt.closers, closer)
	} else {
		level := "warn"
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			level = cfg.LogLevel
		}
		rt.logger = logging.New(cmd.ErrOrStderr(), level, cfg.LogFormat)

		out, _ := cmd.Flags().GetString("output")
		if rt.format, err = parseOutputFormat(out); err != nil {
			return nil, err
		}
	}

	store, err := prefs.Open(cfg.PrefsPath, rt.logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.prefs = store
	rt.closers = append(rt.closers, store)

	value, source, err := auth.Resolve(
		&auth.StaticProvider{Value: cfg.Session},
		&auth.StoredProvider{Store: store},
	)
	if err != nil {
		rt.logger.Debug("no session configured", "error", err)
	} else {
		rt.logger.Debug("session resolved", "source", source)
	}

	rt.client, err = api.New(api.Options{
		BaseURL:    cfg.BaseURL,
		CookieName: cfg.SessionCookieName,
		Session:    auth.NormalizeCookie(cfg.SessionCookieName, value),
		Timeout:    cfg.HTTPTimeout,
		Logger:     rt.logger,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// Close releases everything the runtime opened, newest first.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		_ = rt.closers[i].Close()
	}
	rt.closers = nil
}

func (rt *runtime) formatter() viewer.Formatter {
	return viewer.Formatter{Loc: rt.cfg.Location()}
}

func (rt *runtime) registry() *viewer.Registry {
	return viewer.NewRegistry(rt.client, rt.logger)
}

func (rt *runtime) tracker() *session.Tracker {
	return session.New(rt.client, rt.logger)
}

func (rt *runtime) catalog() *catalog.Catalog {
	return catalog.New(rt.client, rt.logger)
}

// runTUI runs the interactive program until the user quits.
func runTUI(cmd *cobra.Command, collection string) error {
	rt, err := newRuntime(cmd, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	registry := rt.registry()
	s := syncer.New(rt.client, rt.logger)

	app := tui.NewAppModel(tui.Services{
		Client:     rt.client,
		Tracker:    rt.tracker(),
		Catalog:    rt.catalog(),
		Viewer:     viewer.New(registry, rt.cfg.PageSize),
		Syncer:     s,
		Dashboard:  dashboard.NewLoader(registry, rt.client, rt.logger),
		Prefs:      rt.prefs,
		Deleter:    rt.client,
		Formatter:  rt.formatter(),
		Logger:     rt.logger,
		AuthURL:    rt.cfg.OAuthStartURL(),
		CookieName: rt.cfg.SessionCookieName,
		PageSize:   rt.cfg.PageSize,
	}, ctx, collection)
	defer app.Close()

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	s.OnNotify(func(n syncer.Notification) { p.Send(tui.NotifyMsg{Notification: n}) })
	s.OnRefetch(func(kinds ...domain.EntityKind) { p.Send(tui.RefetchMsg{Kinds: kinds}) })

	rt.logger.Info("starting tui", "base_url", rt.cfg.BaseURL, "config", rt.cfg.FileUsed)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("program error: %w", err)
	}
	return nil
}
