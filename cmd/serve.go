package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/freshly/tuberdash/internal/config"
	"github.com/freshly/tuberdash/internal/daemon"
	"github.com/freshly/tuberdash/internal/devserver"
)

var (
	flagServeAddr     string
	flagServeData     string
	flagServePrefix   string
	flagServeToken    string
	flagServeLoginURL string
	flagServeSeed     bool
	flagServeDaemon   bool
)

// servePaths locates the daemon pid and log files. Tests point it elsewhere.
var servePaths = daemon.Default

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local tuber admin GraphQL server backed by a JSON file",
	Long: `Serve the tuber admin GraphQL API from a JSON file, for working on the
dashboard without a cluster. Point the dashboard at it with

  tuberdash --host http://127.0.0.1:3001

An empty data file is seeded with demo apps unless --seed=false.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationStderrLog: "true"},
	RunE:        runServe,
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background dev server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		err := servePaths().Stop()
		if errors.Is(err, daemon.ErrNotRunning) {
			fmt.Fprintln(cmd.OutOrStdout(), "Dev server is not running.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Dev server stopped.")
		return nil
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background dev server is running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := servePaths()
		if pid, running := paths.Running(); running {
			fmt.Fprintf(cmd.OutOrStdout(), "Dev server is running (PID %d), logging to %s\n", pid, paths.Log())
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Dev server is not running.")
		return nil
	},
}

var serveEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Install the dev server as a per-user service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := daemon.EnableService(serveArgs()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Installed %s service.\n", daemon.ServiceName)
		return nil
	},
}

var serveDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Remove the dev server service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := daemon.DisableService(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s service.\n", daemon.ServiceName)
		return nil
	},
}

func init() {
	pf := serveCmd.PersistentFlags()
	pf.StringVar(&flagServeAddr, "addr", devserver.DefaultAddr, "listen address")
	pf.StringVar(&flagServeData, "data", "", "JSON data file (default ~/.tuberdash/"+config.ServeDataFile+")")
	pf.StringVar(&flagServePrefix, "prefix", config.DefaultPrefix, "route prefix of the GraphQL endpoint")
	pf.StringVar(&flagServeToken, "token", "", "require this token on every request")
	pf.StringVar(&flagServeLoginURL, "login-url", "", "URL sent in the auth redirect header when the token is wrong")
	pf.BoolVar(&flagServeSeed, "seed", true, "seed demo apps into an empty data file")
	serveCmd.Flags().BoolVarP(&flagServeDaemon, "daemon", "d", false, "run in the background")

	serveCmd.AddCommand(serveStopCmd)
	serveCmd.AddCommand(serveStatusCmd)
	serveCmd.AddCommand(serveEnableCmd)
	serveCmd.AddCommand(serveDisableCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// The detached child runs the server directly.
	if os.Getenv(config.EnvServeDaemon) == "1" || !flagServeDaemon {
		return runServeForeground(cmd.Context())
	}
	return startServeDaemon(cmd)
}

func serveDataPath() string {
	if flagServeData != "" {
		return flagServeData
	}
	return filepath.Join(config.ConfigDirPath(), config.ServeDataFile)
}

// newDevServer loads the data file, seeds it when asked and builds the server.
func newDevServer(logger *slog.Logger) (*devserver.Server, error) {
	store := devserver.NewStore(serveDataPath())
	if err := store.Load(); err != nil {
		return nil, err
	}
	if flagServeSeed && store.Empty() {
		if err := store.Seed(devserver.DemoData()); err != nil {
			return nil, fmt.Errorf("seed %s: %w", store.Path(), err)
		}
		logger.Info("seeded demo data", "path", store.Path())
	}
	return devserver.NewServer(store, devserver.Options{
		Addr:     flagServeAddr,
		Prefix:   flagServePrefix,
		Token:    flagServeToken,
		LoginURL: flagServeLoginURL,
		Version:  Version,
		Logger:   logger,
	})
}

func runServeForeground(ctx context.Context) error {
	logger := slog.Default()
	srv, err := newDevServer(logger)
	if err != nil {
		return err
	}

	paths := servePaths()
	if err := paths.WritePid(os.Getpid()); err != nil {
		logger.Warn("could not write pid file", "error", err)
	}
	defer paths.RemovePid()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down dev server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func startServeDaemon(cmd *cobra.Command) error {
	paths := servePaths()
	if pid, running := paths.Running(); running {
		fmt.Fprintf(cmd.OutOrStdout(), "Dev server already running (PID %d).\n", pid)
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("cannot determine executable path: %w", err)
	}
	if err := os.MkdirAll(paths.Dir, 0755); err != nil {
		return err
	}
	logFile, err := os.OpenFile(paths.Log(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("cannot open log file: %w", err)
	}
	defer logFile.Close()

	child := exec.Command(exe, append([]string{"serve"}, serveArgs()...)...)
	child.Env = append(os.Environ(), config.EnvServeDaemon+"=1")
	child.Stdout = logFile
	child.Stderr = logFile
	child.SysProcAttr = daemon.SysProcAttr()
	if err := child.Start(); err != nil {
		return fmt.Errorf("failed to start dev server: %w", err)
	}
	if err := paths.WritePid(child.Process.Pid); err != nil {
		slog.Warn("could not write pid file", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := devserver.WaitForReady(ctx, "http://"+flagServeAddr, flagServePrefix); err != nil {
		return fmt.Errorf("dev server started but did not become ready, see %s: %w", paths.Log(), err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Dev server started in background (PID %d) on http://%s\n", child.Process.Pid, flagServeAddr)
	return nil
}

// serveArgs rebuilds the serve flags for the detached child and the
// installed service.
func serveArgs() []string {
	args := []string{
		"--addr", flagServeAddr,
		"--data", serveDataPath(),
		"--prefix", flagServePrefix,
	}
	if flagServeToken != "" {
		args = append(args, "--token", flagServeToken)
	}
	if flagServeLoginURL != "" {
		args = append(args, "--login-url", flagServeLoginURL)
	}
	if !flagServeSeed {
		args = append(args, "--seed=false")
	}
	return args
}
