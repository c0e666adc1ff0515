package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshly/tuberdash/internal/api"
	"github.com/freshly/tuberdash/internal/config"
	"github.com/freshly/tuberdash/internal/devserver"
	"github.com/freshly/tuberdash/internal/logging"
	"github.com/freshly/tuberdash/tui"
)

func setTestHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	for _, name := range []string{config.EnvGraphqlHost, config.EnvPrefix, config.EnvToken, config.EnvDebug, config.EnvServeDaemon} {
		t.Setenv(name, "")
	}
	config.ResetDefaultStore()
	t.Cleanup(func() { config.ResetDefaultStore() })
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	origOpen := openURL
	openURL = func(string) error { return nil }
	t.Cleanup(func() { openURL = origOpen })
	return dir
}

// startDevServer seeds a dev server with the demo data and points the CLI
// at it through the environment.
func startDevServer(t *testing.T, opts devserver.Options) *devserver.Store {
	t.Helper()
	setTestHome(t)
	store := devserver.NewStore("")
	require.NoError(t, store.Seed(devserver.DemoData()))
	opts.Logger = logging.Discard()
	srv, err := devserver.NewServer(store, opts)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Setenv(config.EnvGraphqlHost, ts.URL)
	return store
}

func resetFlags(c *cobra.Command) {
	for _, fs := range []*pflag.FlagSet{c.Flags(), c.PersistentFlags()} {
		fs.VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the CLI with args and returns everything written to stdout
// and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})
	err := Execute()
	return out.String(), err
}

type fakePrompter struct {
	confirmAnswer bool
	answers       []string
	err           error
	prompts       []string
}

func (f *fakePrompter) confirm(prompt string) (bool, error) {
	f.prompts = append(f.prompts, prompt)
	return f.confirmAnswer, f.err
}

func (f *fakePrompter) next(prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.answers) == 0 {
		return "", nil
	}
	a := f.answers[0]
	f.answers = f.answers[1:]
	return a, nil
}

func (f *fakePrompter) required(prompt string) (string, error)       { return f.next(prompt) }
func (f *fakePrompter) optionalSecret(prompt string) (string, error) { return f.next(prompt) }

func usePrompter(t *testing.T, p *fakePrompter) {
	t.Helper()
	orig := newPrompter
	newPrompter = func(_ io.Reader, _ io.Writer) prompter { return p }
	t.Cleanup(func() { newPrompter = orig })
}

func TestVersionCommand(t *testing.T) {
	setTestHome(t)
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "tuberdash "+Version)
}

func TestRunCompletion(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			var out bytes.Buffer
			completionCmd.SetOut(&out)
			t.Cleanup(func() { completionCmd.SetOut(nil) })

			require.NoError(t, runCompletion(completionCmd, []string{shell}))
			assert.Contains(t, out.String(), "tuberdash")
		})
	}

	assert.Error(t, runCompletion(completionCmd, []string{"tcsh"}))
}

func TestCompletionRejectsUnknownShell(t *testing.T) {
	setTestHome(t)
	_, err := execute(t, "", "completion", "tcsh")
	assert.Error(t, err)
}

func TestRootStartsDashboard(t *testing.T) {
	startDevServer(t, devserver.Options{})

	var gotApp string
	orig := runDashboard
	runDashboard = func(b tui.Backend, cluster, app string) error {
		gotApp = app
		return nil
	}
	t.Cleanup(func() { runDashboard = orig })

	_, err := execute(t, "", "storefront")
	require.NoError(t, err)
	assert.Equal(t, "storefront", gotApp)
}

func TestRootCancelledIsNotAnError(t *testing.T) {
	startDevServer(t, devserver.Options{})

	orig := runDashboard
	runDashboard = func(tui.Backend, string, string) error { return tui.ErrCancelled }
	t.Cleanup(func() { runDashboard = orig })

	_, err := execute(t, "")
	assert.NoError(t, err)
}

func TestRootWithoutCluster(t *testing.T) {
	setTestHome(t)
	_, err := execute(t, "", "apps", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no cluster configured")
}

func TestAuthRedirectAnnouncesLogin(t *testing.T) {
	startDevServer(t, devserver.Options{Token: "secret", LoginURL: "https://login.example.com/tuber"})

	var opened string
	openURL = func(url string) error {
		opened = url
		return nil
	}

	out, err := execute(t, "", "apps", "list")
	require.Error(t, err)
	assert.Equal(t, "authentication required", err.Error())
	assert.Contains(t, out, "https://login.example.com/tuber")
	assert.Equal(t, "https://login.example.com/tuber", opened)
}

func TestTokenFlagAuthenticates(t *testing.T) {
	startDevServer(t, devserver.Options{Token: "secret"})

	out, err := execute(t, "", "--token", "secret", "apps", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "storefront")
}

func TestUnknownClusterFlag(t *testing.T) {
	startDevServer(t, devserver.Options{})
	_, err := execute(t, "", "--cluster", "nope", "apps", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `cluster "nope" not found`)
}

func TestFlagsDoNotLeakIntoCompletion(t *testing.T) {
	t.Run("unknown cluster", func(t *testing.T) {
		startDevServer(t, devserver.Options{})
		_, err := execute(t, "", "--cluster", "nope", "apps", "list")
		require.Error(t, err)
	})
	t.Run("completion", func(t *testing.T) {
		startDevServer(t, devserver.Options{})
		assert.Empty(t, flagCluster)
		c := &cobra.Command{}
		c.SetContext(context.Background())
		names, _ := completeAppNames(c, nil, "")
		assert.Equal(t, []string{"billing", "storefront"}, names)
	})
}

func TestIsCancelled(t *testing.T) {
	assert.True(t, isCancelled(tui.ErrCancelled))
	assert.True(t, isCancelled(errAborted))
	assert.True(t, isCancelled(errors.Join(errors.New("x"), errAborted)))
	assert.False(t, isCancelled(&api.StatusError{Code: 500}))
	assert.False(t, isCancelled(nil))
}

func TestConfirmActionWithoutTerminal(t *testing.T) {
	setTestHome(t)
	err := confirmAction(strings.NewReader(""), &bytes.Buffer{}, "Delete %s?", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
}

func TestConfirmActionAnswers(t *testing.T) {
	p := &fakePrompter{confirmAnswer: true}
	usePrompter(t, p)
	require.NoError(t, confirmAction(nil, nil, "Delete %s?", "replicas"))
	assert.Equal(t, []string{"Delete replicas?"}, p.prompts)

	p.confirmAnswer = false
	assert.ErrorIs(t, confirmAction(nil, nil, "Delete?"), errAborted)
}

func TestCompleteClusterNames(t *testing.T) {
	setTestHome(t)
	store := config.DefaultStore()
	require.NoError(t, store.SetCluster("staging", &config.Cluster{URL: "https://staging.example.com"}))
	require.NoError(t, store.SetCluster("prod", &config.Cluster{URL: "https://prod.example.com"}))

	names, directive := completeClusterNames(nil, nil, "")
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)
	assert.Equal(t, []string{"prod", "staging"}, names)
}

func TestCompleteAppNames(t *testing.T) {
	startDevServer(t, devserver.Options{})
	c := &cobra.Command{}
	c.SetContext(context.Background())
	names, _ := completeAppNames(c, nil, "")
	assert.Equal(t, []string{"billing", "storefront"}, names)

	names, _ = completeAppNames(c, []string{"storefront"}, "")
	assert.Empty(t, names)
}
