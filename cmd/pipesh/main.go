package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/caffix/pipesh"
	"github.com/caffix/pipesh/cache"
	"github.com/caffix/pipesh/commands"
	"github.com/caffix/pipesh/config"
	"github.com/caffix/pipesh/shell"
	"github.com/caffix/pipesh/tracker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	cfgFile string
	verbose bool

	settings = config.New()
	cfg      *config.Config
	logger   *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pipesh",
	Short: "A pipe-oriented shell over an issue tracker",
	Long: `pipesh composes small commands into pipelines over an issue tracker.

  search --project WEB --status open | grep -i login | print
  read WEB-1 WEB-2 | set assignee alice | print --history

Run without arguments to start the interactive shell. Standard input that is
not a terminal is read line by line.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(settings, cfgFile); err != nil {
			return err
		}

		zc := zap.NewProductionConfig()
		level, _ := cfg.Level()
		if verbose {
			level = zapcore.DebugLevel
		}
		zc.Level = zap.NewAtomicLevelAt(level)
		if logger, err = zc.Build(); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withShell(cmd.Context(), func(ctx context.Context, sh *shell.Shell) error {
			if shell.Interactive() {
				return sh.RunTerminal(ctx)
			}
			return sh.Run(ctx, os.Stdin)
		})
	},
}

var execCmd = &cobra.Command{
	Use:   "exec LINE...",
	Short: "Execute one line and exit",
	Long: `Joins the arguments into one line and executes its statements. The first
failure stops the line and sets a non-zero exit status.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return withShell(ctx, func(ctx context.Context, sh *shell.Shell) error {
			return sh.Exec(ctx, strings.Join(args, " "))
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Load users and issues from a YAML file into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		return withStore(cmd.Context(), func(s *tracker.Store) error {
			return s.Import(cmd.Context(), f)
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [FILE]",
	Short: "Write the users and issues of the store as YAML",
	Long:  `Writes to FILE, or to standard output when FILE is omitted.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) == 1 {
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}

		return withStore(cmd.Context(), func(s *tracker.Store) error {
			return s.Export(cmd.Context(), out)
		})
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default $HOME/.pipesh.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.String("database", "", "path of the SQLite tracker store")
	flags.Int("batch-size", 0, "number of issues fetched per request")
	flags.String("user", "", "author recorded for comments and changes")

	_ = settings.BindPFlag(config.KeyDatabase, flags.Lookup("database"))
	_ = settings.BindPFlag(config.KeyBatchSize, flags.Lookup("batch-size"))
	_ = settings.BindPFlag(config.KeyUser, flags.Lookup("user"))

	rootCmd.AddCommand(execCmd, importCmd, exportCmd)
}

func withStore(ctx context.Context, fn func(*tracker.Store) error) error {
	s, err := tracker.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer s.Close()

	return fn(s)
}

func withShell(ctx context.Context, fn func(context.Context, *shell.Shell) error) error {
	return withStore(ctx, func(s *tracker.Store) error {
		metrics := prometheus.NewRegistry()
		users, err := commands.NewUserCache(s, cache.WithMetrics(metrics, "users"))
		if err != nil {
			return err
		}
		defer logMetrics(metrics)

		reg, err := commands.NewRegistry(commands.Options{
			BatchSize: cfg.BatchSize,
			User:      cfg.User,
			Users:     users,
		})
		if err != nil {
			return err
		}

		env := &pipesh.Env{
			Stdout:  os.Stdout,
			Stderr:  os.Stderr,
			Tracker: s,
			Logger:  logger,
		}
		sh := shell.New(reg, env,
			shell.WithLogger(logger),
			shell.WithPrompt(cfg.Prompt),
			shell.WithHistory(cfg.History),
		)
		return fn(ctx, sh)
	})
}

// logMetrics writes the collected metrics to the debug log.
func logMetrics(reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		logger.Debug("failed to gather metrics", zap.Error(err))
		return
	}

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			}
			logger.Debug("metric", zap.String("name", mf.GetName()), zap.Float64("value", value))
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
