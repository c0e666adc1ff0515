package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/atotto/clipboard"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/freshly/tuberdash/internal/api"
	"github.com/freshly/tuberdash/internal/config"
	"github.com/freshly/tuberdash/internal/logging"
	"github.com/freshly/tuberdash/tui"
)

var Version = "0.4.0"

// Global flags.
var (
	flagCluster string
	flagHost    string
	flagToken   string
	flagDebug   bool
	flagYes     bool
)

// logCloser is the open log file, closed when Execute returns.
var logCloser io.Closer

// runDashboard and runCollectionEditor start the TUIs. Tests replace them.
var (
	runDashboard        = tui.Run
	runCollectionEditor = tui.RunCollection
)

// openURL opens a login page in the browser. Tests replace it.
var openURL = browser.OpenURL

// annotationStderrLog marks commands that log to stderr instead of the log file.
const annotationStderrLog = "stderr-log"

var rootCmd = &cobra.Command{
	Use:   "tuberdash [app]",
	Short: "Terminal dashboard and CLI for the tuber admin API",
	Long: `Browse and edit tuber apps from the terminal.

Without arguments the interactive dashboard starts on the app list. Passing an
app name opens that app directly.`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeAppNames,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
	RunE:              runRoot,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagCluster, "cluster", "c", "", "cluster from the config file to talk to")
	pf.StringVar(&flagHost, "host", "", "admin server URL, overrides the cluster ("+config.EnvGraphqlHost+")")
	pf.StringVar(&flagToken, "token", "", "API token ("+config.EnvToken+")")
	pf.BoolVar(&flagDebug, "debug", false, "log debug records ("+config.EnvDebug+")")
	pf.BoolVarP(&flagYes, "yes", "y", false, "skip confirmation prompts")
	_ = rootCmd.RegisterFlagCompletionFunc("cluster", completeClusterNames)

	rootCmd.AddCommand(appsCmd)
	rootCmd.AddCommand(varsCmd)
	rootCmd.AddCommand(envCmd)
	rootCmd.AddCommand(exclusionsCmd)
	rootCmd.AddCommand(reviewAppsCmd)
	rootCmd.AddCommand(clusterCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(upgradeCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
}

// Execute runs the root command.
func Execute() error {
	defer closeLog()
	err := rootCmd.Execute()
	if isCancelled(err) {
		return nil
	}
	if url, ok := api.AuthRedirect(err); ok {
		announceLogin(rootCmd.ErrOrStderr(), url)
		return fmt.Errorf("authentication required")
	}
	return err
}

func closeLog() {
	if logCloser != nil {
		logCloser.Close()
		logCloser = nil
	}
}

func setupLogging(cmd *cobra.Command, args []string) error {
	debug := config.DebugEnabled(flagDebug)
	if logsToStderr(cmd) {
		logging.InitStderr(debug)
		return nil
	}
	closeLog()
	_, closer, err := logging.InitFile(config.LogPath(), debug)
	if err != nil {
		// The dashboard is still usable without a log file.
		slog.SetDefault(logging.Discard())
		return nil
	}
	logCloser = closer
	return nil
}

func logsToStderr(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if _, ok := c.Annotations[annotationStderrLog]; ok {
			return true
		}
	}
	return false
}

func runRoot(cmd *cobra.Command, args []string) error {
	client, s, err := newClient()
	if err != nil {
		return err
	}
	var app string
	if len(args) > 0 {
		app = args[0]
	}
	slog.Info("starting dashboard", "cluster", s.Cluster, "endpoint", s.Endpoint, "app", app)
	return runDashboard(client, s.Cluster, app)
}

// newClient resolves the connection settings from flags, environment and
// the config file.
func newClient() (*api.Client, config.Settings, error) {
	s, err := config.Resolve(config.DefaultStore(), config.Overrides{
		Cluster: flagCluster,
		Host:    flagHost,
		Token:   flagToken,
		Debug:   flagDebug,
	})
	if err != nil {
		return nil, config.Settings{}, err
	}
	client := api.New(api.Options{
		Endpoint: s.Endpoint,
		Token:    s.Token,
		Timeout:  s.Timeout,
		Logger:   slog.Default(),
	})
	return client, s, nil
}

// announceLogin tells the operator where to authenticate, copies the URL to
// the clipboard and tries to open it.
func announceLogin(w io.Writer, url string) {
	fmt.Fprintln(w, "Authentication required. Log in at:")
	fmt.Fprintf(w, "\n  %s\n\n", url)
	if err := clipboard.WriteAll(url); err == nil {
		fmt.Fprintln(w, "The URL has been copied to your clipboard.")
	}
	if err := openURL(url); err != nil {
		slog.Debug("could not open browser", "error", err)
	}
}

// isCancelled reports whether err means the operator backed out.
func isCancelled(err error) bool {
	return errors.Is(err, tui.ErrCancelled) || errors.Is(err, errAborted)
}

func completeAppNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	client, _, err := newClient()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	apps, err := client.Apps(cmd.Context())
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	names := make([]string, 0, len(apps))
	for _, a := range apps {
		names = append(names, a.Name)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

func completeClusterNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return config.DefaultStore().ClusterNames(), cobra.ShellCompDirectiveNoFileComp
}
