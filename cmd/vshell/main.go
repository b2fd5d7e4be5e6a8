package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sameehj/vshell/pkg/adapter"
	"github.com/sameehj/vshell/pkg/audit"
	"github.com/sameehj/vshell/pkg/config"
	"github.com/sameehj/vshell/pkg/runtime/logging"
	"github.com/sameehj/vshell/pkg/session"
	"github.com/sameehj/vshell/pkg/shell"
	"github.com/sameehj/vshell/pkg/version"
	"github.com/sameehj/vshell/pkg/vfs"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type rootFlags struct {
	config    string
	logLevel  string
	logFormat string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "vshell",
		Short:         "Sandboxed shell emulator with an audit trail",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd, flags)
		},
	}
	root.PersistentFlags().StringVar(&flags.config, "config", "", "config file (default: $VSHELL_CONFIG or ./config.toml)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "override log format (json, text)")

	root.AddCommand(runCmd(flags))
	root.AddCommand(execCmd(flags))
	root.AddCommand(extractCmd(flags))
	root.AddCommand(logCmd(flags))
	root.AddCommand(versionCmd())
	return root
}

func runCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start an interactive session (the default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd, flags)
		},
	}
}

func execCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <command>...",
		Short: "Run command lines non-interactively in a fresh session",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			failed := 0
			for _, line := range args {
				res := env.shell.Execute(line)
				adapter.WriteResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), res)
				if res.IsError() {
					failed++
				}
				if res.Exit {
					break
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d command(s) failed", failed)
			}
			return nil
		},
	}
}

func extractCmd(flags *rootFlags) *cobra.Command {
	var archive, dest string
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Materialize the sandbox from its archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if archive == "" || dest == "" {
				cfg, err := loadConfig(flags)
				if err != nil {
					return err
				}
				if archive == "" {
					archive = cfg.Paths.FSArchive
				}
				if dest == "" {
					dest = cfg.Paths.SandboxDir
				}
			}
			root, err := vfs.Extract(archive, dest)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), root)
			return nil
		},
	}
	cmd.Flags().StringVar(&archive, "archive", "", "tar archive (.tar, .tar.gz, .tar.zst, .tar.lz4)")
	cmd.Flags().StringVar(&dest, "dest", "", "sandbox directory to (re)create")
	return cmd
}

func logCmd(flags *rootFlags) *cobra.Command {
	var file string
	cmd := &cobra.Command{Use: "log", Short: "Inspect the audit log"}
	cmd.PersistentFlags().StringVar(&file, "file", "", "audit log path (default: paths.log_file from config)")

	logPath := func() (string, error) {
		if file != "" {
			return file, nil
		}
		cfg, err := loadConfig(flags)
		if err != nil {
			return "", err
		}
		return cfg.Paths.LogFile, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print every recorded command",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := logPath()
			if err != nil {
				return err
			}
			recs, err := audit.Load(path)
			if err != nil {
				return err
			}
			for _, rec := range recs {
				printRecord(cmd.OutOrStdout(), rec)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "follow",
		Short: "Print commands as they are recorded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := logPath()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			follower := audit.NewFollower(path)
			follower.SetLogger(logging.New(flags.logLevel, flags.logFormat, cmd.ErrOrStderr()))
			if err := follower.Start(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			out := cmd.OutOrStdout()
			err = follower.Run(ctx, func(rec audit.Record) { printRecord(out, rec) })
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	})
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func runInteractive(cmd *cobra.Command, flags *rootFlags) error {
	env, err := setup(flags, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	exited, err := adapter.RunScript(env.shell, env.cfg.Paths.StartupScript, out, errOut)
	if err != nil {
		env.logger.Warn("startup_script_failed", "path", env.cfg.Paths.StartupScript, "error", err)
	}
	if exited {
		return nil
	}

	in := cmd.InOrStdin()
	cli := adapter.NewCLIAdapter(env.shell, in, out, errOut)
	cli.SetShowPrompt(isTerminal(in))
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	err = cli.Start(ctx)
	env.logger.Info("session_ended", "session", env.shell.Session().ID.String(), "commands", len(env.shell.Session().History()))
	return err
}

type sessionEnv struct {
	cfg    *config.Config
	logger *slog.Logger
	shell  *shell.Shell
}

// setup loads config, materializes the sandbox and opens a session. Its
// errors are the fatal startup categories.
func setup(flags *rootFlags, logOut io.Writer) (*sessionEnv, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, logOut)

	manager := vfs.NewManager(cfg.Paths.FSArchive, cfg.Paths.SandboxDir)
	root, err := manager.Ensure()
	if err != nil {
		return nil, err
	}

	sh, err := shell.StartSession(shell.Options{
		Identity: session.Identity{User: cfg.User.Name, Host: cfg.System.Hostname},
		Root:     root,
		Audit:    audit.New(cfg.Paths.LogFile),
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("session_started",
		"session", sh.Session().ID.String(),
		"user", cfg.User.Name,
		"host", cfg.System.Hostname,
		"root", root,
		"audit_log", cfg.Paths.LogFile,
	)
	return &sessionEnv{cfg: cfg, logger: logger, shell: sh}, nil
}

func loadConfig(flags *rootFlags) (*config.Config, error) {
	path := flags.config
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.LogFormat = flags.logFormat
	}
	return cfg, nil
}

func printRecord(w io.Writer, rec audit.Record) {
	fmt.Fprintf(w, "%s %s@%s: %s\n", rec.Time.Format(audit.TimeLayout), rec.User, rec.Host, rec.Command)
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
