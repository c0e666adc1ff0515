package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshly/tuberdash/internal/devserver"
	"github.com/freshly/tuberdash/internal/model"
	"github.com/freshly/tuberdash/tui"
)

func tupleMap(ts []*model.Tuple) map[string]string {
	m := make(map[string]string, len(ts))
	for _, t := range ts {
		m[t.Key] = t.Value
	}
	return m
}

func TestVarsListSorted(t *testing.T) {
	startDevServer(t, devserver.Options{})

	out, err := execute(t, "", "vars", "list", "storefront")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "cpu"))
	assert.True(t, strings.HasPrefix(lines[2], "replicas"))

	out, err = execute(t, "", "vars", "list", "storefront", "--jq", ".[0].key")
	require.NoError(t, err)
	assert.Equal(t, "cpu\n", out)
}

func TestVarsSetAndUnset(t *testing.T) {
	store := startDevServer(t, devserver.Options{})

	out, err := execute(t, "", "vars", "set", "storefront", "memory", "1Gi")
	require.NoError(t, err)
	assert.Contains(t, out, "Set var memory on storefront")
	rec, _ := store.App("storefront")
	assert.Equal(t, "1Gi", tupleMap(rec.Vars)["memory"])

	_, err = execute(t, "", "vars", "set", "storefront", "replicas", "5")
	require.NoError(t, err)
	rec, _ = store.App("storefront")
	assert.Equal(t, "5", tupleMap(rec.Vars)["replicas"])
	assert.Len(t, rec.Vars, 3)

	_, err = execute(t, "", "vars", "unset", "storefront", "memory")
	require.Error(t, err, "unset needs confirmation")

	_, err = execute(t, "", "-y", "vars", "unset", "storefront", "memory")
	require.NoError(t, err)
	rec, _ = store.App("storefront")
	assert.NotContains(t, tupleMap(rec.Vars), "memory")
}

func TestVarsSetRequiresKeyAndValue(t *testing.T) {
	startDevServer(t, devserver.Options{})
	_, err := execute(t, "", "vars", "set", "storefront", " ", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key and value are required")
}

func TestVarsUnsetDeclined(t *testing.T) {
	store := startDevServer(t, devserver.Options{})
	p := &fakePrompter{confirmAnswer: false}
	usePrompter(t, p)

	_, err := execute(t, "", "vars", "unset", "storefront", "cpu")
	require.NoError(t, err)
	assert.Equal(t, []string{"Delete var 'cpu' from storefront?"}, p.prompts)
	rec, _ := store.App("storefront")
	assert.Contains(t, tupleMap(rec.Vars), "cpu")
}

func TestReviewAppVars(t *testing.T) {
	store := startDevServer(t, devserver.Options{})

	out, err := execute(t, "", "vars", "list", "storefront", "--review-apps")
	require.NoError(t, err)
	assert.Contains(t, out, "replicas")
	assert.NotContains(t, out, "cpu")

	_, err = execute(t, "", "vars", "set", "--review-apps", "storefront", "cpu", "100m")
	require.NoError(t, err)
	rec, _ := store.App("storefront")
	assert.Equal(t, "100m", tupleMap(rec.ReviewAppsConfig.Vars)["cpu"])
	assert.Equal(t, "500m", tupleMap(rec.Vars)["cpu"], "app vars untouched")

	// The flag does not leak into the next run.
	out, err = execute(t, "", "vars", "list", "storefront")
	require.NoError(t, err)
	assert.Contains(t, out, "500m")
}

func TestEnvCommands(t *testing.T) {
	store := startDevServer(t, devserver.Options{})

	out, err := execute(t, "", "env", "list", "storefront")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "DATABASE_URL"))

	_, err = execute(t, "", "env", "set", "storefront", "LOG_LEVEL", "debug")
	require.NoError(t, err)
	rec, _ := store.App("storefront")
	assert.Equal(t, "debug", tupleMap(rec.Env)["LOG_LEVEL"])

	_, err = execute(t, "", "--yes", "env", "unset", "storefront", "LOG_LEVEL")
	require.NoError(t, err)
	rec, _ = store.App("storefront")
	assert.NotContains(t, tupleMap(rec.Env), "LOG_LEVEL")

	_, err = execute(t, "", "env", "list", "storefront", "--review-apps")
	assert.Error(t, err, "env has no review-app counterpart")
}

func TestExclusionsCommands(t *testing.T) {
	store := startDevServer(t, devserver.Options{})

	out, err := execute(t, "", "exclusions", "list", "storefront")
	require.NoError(t, err)
	assert.Contains(t, out, "storefront-canary")

	_, err = execute(t, "", "exclusions", "add", "storefront", "storefront-cron", "CronJob")
	require.NoError(t, err)
	rec, _ := store.App("storefront")
	assert.Len(t, rec.ExcludedResources, 2)

	_, err = execute(t, "", "--yes", "exclusions", "remove", "storefront", "storefront-cron", "CronJob")
	require.NoError(t, err)
	rec, _ = store.App("storefront")
	assert.Len(t, rec.ExcludedResources, 1)

	out, err = execute(t, "", "exclusions", "list", "--review-apps", "storefront")
	require.NoError(t, err)
	assert.Contains(t, out, "storefront-worker")
	assert.NotContains(t, out, "storefront-canary")

	_, err = execute(t, "", "--yes", "exclusions", "remove", "--review-apps", "storefront", "storefront-worker", "Deployment")
	require.NoError(t, err)
	rec, _ = store.App("storefront")
	assert.Empty(t, rec.ReviewAppsConfig.ExcludedResources)
}

func TestEmptyCollectionListing(t *testing.T) {
	startDevServer(t, devserver.Options{})
	out, err := execute(t, "", "exclusions", "list", "billing")
	require.NoError(t, err)
	assert.Equal(t, "  (none)\n", out)
}

func TestEditCommandsOpenTheRightEditor(t *testing.T) {
	startDevServer(t, devserver.Options{})

	var gotApp string
	var gotKind tui.CollectionKind
	orig := runCollectionEditor
	runCollectionEditor = func(b tui.Backend, app string, kind tui.CollectionKind) error {
		gotApp, gotKind = app, kind
		return nil
	}
	t.Cleanup(func() { runCollectionEditor = orig })

	tests := []struct {
		args []string
		want tui.CollectionKind
	}{
		{[]string{"vars", "edit", "storefront"}, tui.KindVars},
		{[]string{"vars", "edit", "--review-apps", "storefront"}, tui.KindRacVars},
		{[]string{"env", "edit", "storefront"}, tui.KindEnv},
		{[]string{"exclusions", "edit", "storefront"}, tui.KindExclusions},
		{[]string{"exclusions", "edit", "--review-apps", "storefront"}, tui.KindRacExclusions},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			gotApp, gotKind = "", -1
			_, err := execute(t, "", tt.args...)
			require.NoError(t, err)
			assert.Equal(t, "storefront", gotApp)
			assert.Equal(t, tt.want, gotKind)
		})
	}
}
