package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshly/tuberdash/internal/api"
	"github.com/freshly/tuberdash/internal/model"
)

func loadedDetail(t *testing.T, fb *fakeBackend, name string) detailModel {
	t.Helper()
	m := newDetailModel(fb, name)
	loaded, ok := findMsg[detailLoadedMsg](collect(t, m.fetch()))
	require.True(t, ok)
	m, _ = m.update(loaded)
	require.True(t, m.loaded)
	return m
}

func TestDetailLoadsCollections(t *testing.T) {
	m := loadedDetail(t, newFakeBackend(storefront()), "storefront")

	assert.Equal(t, []string{"cpu", "replicas"}, rowKeys(m.sections[KindVars]))
	assert.Len(t, m.sections[KindExclusions].editor.Rows(), 1)
	assert.Equal(t, paneVars, m.focusedPane())
	assert.False(t, m.envLoaded)

	view := m.view(120, 40)
	assert.Contains(t, view, "storefront")
	assert.Contains(t, view, "collapsed • o to load")
}

func TestDetailEnvLoadsOnExpand(t *testing.T) {
	fb := newFakeBackend(storefront())
	fb.env["storefront"] = []*model.Tuple{{Key: "RAILS_ENV", Value: "production"}}
	m := loadedDetail(t, fb, "storefront")

	m, _ = m.update(keyTab)
	require.Equal(t, paneEnv, m.focusedPane())
	assert.Nil(t, m.focusedSection(), "env is not editable before it is loaded")

	m, cmd := m.update(keyRunes("o"))
	require.True(t, m.envExpanded)
	loaded, ok := findMsg[detailLoadedMsg](collect(t, cmd))
	require.True(t, ok)
	assert.True(t, loaded.withEnv)

	m, _ = m.update(loaded)
	assert.True(t, m.envLoaded)
	require.NotNil(t, m.focusedSection())
	assert.Equal(t, []string{"RAILS_ENV"}, rowKeys(m.sections[KindEnv]))
}

func TestDetailRefreshesAfterCollectionChange(t *testing.T) {
	fb := newFakeBackend(storefront())
	m := loadedDetail(t, fb, "storefront")

	m, _ = m.update(keyRunes("d"))
	m, cmd := m.update(keyRunes("y"))
	res, ok := findMsg[rowResultMsg](collect(t, cmd))
	require.True(t, ok)

	m, cmd = m.update(res)
	changed, ok := findMsg[collectionChangedMsg](collect(t, cmd))
	require.True(t, ok)

	m, cmd = m.update(changed)
	assert.True(t, m.loading)
	loaded, ok := findMsg[detailLoadedMsg](collect(t, cmd))
	require.True(t, ok)

	m, _ = m.update(loaded)
	assert.Equal(t, []string{"replicas"}, rowKeys(m.sections[KindVars]))
	assert.Equal(t, []string{"unsetAppVar cpu"}, fb.Calls())
}

// staleDetail is a fetch result that left the server before any mutation.
func staleDetail() detailLoadedMsg {
	return detailLoadedMsg{
		name:   "storefront",
		detail: &api.AppDetail{App: storefront(), Cluster: &model.ClusterInfo{Name: "dev", Region: "local"}},
	}
}

// deleteVar deletes the var under the cursor and returns its mutation result.
func deleteVar(t *testing.T, m detailModel) (detailModel, rowResultMsg) {
	t.Helper()
	m, _ = m.update(keyRunes("d"))
	m, cmd := m.update(keyRunes("y"))
	res, ok := findMsg[rowResultMsg](collect(t, cmd))
	require.True(t, ok)
	return m, res
}

func changedAfter(t *testing.T, m detailModel, res rowResultMsg) (detailModel, collectionChangedMsg) {
	t.Helper()
	m, cmd := m.update(res)
	changed, ok := findMsg[collectionChangedMsg](collect(t, cmd))
	require.True(t, ok)
	return m, changed
}

func TestDetailRefetchesWhenChangeLandsDuringFetch(t *testing.T) {
	fb := newFakeBackend(storefront())
	m := loadedDetail(t, fb, "storefront")

	m, _ = m.update(keyRunes("r"))
	require.True(t, m.loading)

	m, res := deleteVar(t, m)
	m, changed := changedAfter(t, m, res)
	m, cmd := m.update(changed)
	assert.Nil(t, collect(t, cmd), "no second fetch while one is in flight")
	assert.True(t, m.refetch)

	m, cmd = m.update(staleDetail())
	assert.True(t, m.loading)
	assert.Equal(t, []string{"replicas"}, rowKeys(m.sections[KindVars]), "the older result is not applied")
	loaded, ok := findMsg[detailLoadedMsg](collect(t, cmd))
	require.True(t, ok, "the deferred fetch goes out")

	m, _ = m.update(loaded)
	assert.False(t, m.loading)
	assert.False(t, m.refetch)
	assert.Equal(t, []string{"replicas"}, rowKeys(m.sections[KindVars]))
	assert.Equal(t, []string{"unsetAppVar cpu"}, fb.Calls())
}

func TestDetailBackToBackChanges(t *testing.T) {
	fb := newFakeBackend(storefront())
	m := loadedDetail(t, fb, "storefront")

	m, first := deleteVar(t, m)
	m, _ = m.update(keyRunes("j"))
	m, second := deleteVar(t, m)
	assert.Equal(t, []string{"unsetAppVar cpu", "unsetAppVar replicas"}, fb.Calls())

	m, changed := changedAfter(t, m, first)
	m, fetch := m.update(changed)
	require.True(t, m.loading)

	m, changed = changedAfter(t, m, second)
	m, cmd := m.update(changed)
	assert.Nil(t, collect(t, cmd))

	loaded, ok := findMsg[detailLoadedMsg](collect(t, fetch))
	require.True(t, ok)
	m, cmd = m.update(loaded)
	require.True(t, m.loading, "the second change gets its own fetch")

	loaded, ok = findMsg[detailLoadedMsg](collect(t, cmd))
	require.True(t, ok)
	m, _ = m.update(loaded)
	assert.False(t, m.loading)
	assert.Empty(t, rowKeys(m.sections[KindVars]))
}

func TestDetailActionReloadWaitsForFetch(t *testing.T) {
	fb := newFakeBackend(storefront())
	m := loadedDetail(t, fb, "storefront")

	m, _ = m.update(keyRunes("r"))
	m, cmd := m.update(detailReloadMsg{name: "storefront"})
	assert.Nil(t, collect(t, cmd))
	assert.True(t, m.refetch)

	_, cmd = m.update(detailReloadMsg{name: "billing"})
	assert.Nil(t, cmd)
}

func TestDetailActionsNeedConfirmation(t *testing.T) {
	fb := newFakeBackend(storefront())
	m := loadedDetail(t, fb, "storefront")

	m, _ = m.update(keyRunes("p"))
	assert.Contains(t, m.view(120, 40), "Pause storefront? (y/n)")

	m, _ = m.update(keyRunes("n"))
	assert.False(t, m.confirm.busy())
	assert.Empty(t, fb.Calls())

	m, _ = m.update(keyRunes("p"))
	m, cmd := m.update(keyRunes("y"))
	done, ok := findMsg[actionDoneMsg](collect(t, cmd))
	require.True(t, ok)
	require.NoError(t, done.err)

	m, cmd = m.update(done)
	assert.Equal(t, []string{"setPaused storefront"}, fb.Calls())
	assert.Contains(t, m.view(120, 40), "✓ Pause storefront done")

	reload, ok := findMsg[detailReloadMsg](collect(t, cmd))
	require.True(t, ok, "a finished action reloads the app")
	m, cmd = m.update(reload)
	assert.True(t, m.loading)
	loaded, ok := findMsg[detailLoadedMsg](collect(t, cmd))
	require.True(t, ok)
	m, _ = m.update(loaded)
	assert.True(t, m.detail.App.Paused)
}

func TestDetailDestroyOnlyForReviewApps(t *testing.T) {
	fb := newFakeBackend(storefront(), &model.TuberApp{
		Name:          "storefront-feature-x",
		ReviewApp:     true,
		SourceAppName: "storefront",
		Branch:        "feature/x",
	})

	m := loadedDetail(t, fb, "storefront")
	m, _ = m.update(keyRunes("X"))
	assert.False(t, m.confirm.busy())

	ra := loadedDetail(t, fb, "storefront-feature-x")
	assert.Len(t, ra.panes(), 3)
	ra, _ = ra.update(keyRunes("X"))
	ra, cmd := ra.update(keyRunes("y"))
	done, ok := findMsg[actionDoneMsg](collect(t, cmd))
	require.True(t, ok)

	_, cmd = ra.update(done)
	back, ok := findMsg[switchToDetailMsg](collect(t, cmd))
	require.True(t, ok)
	assert.Equal(t, "storefront", back.name)
	assert.Equal(t, []string{"destroyApp storefront-feature-x"}, fb.Calls())
}

func TestDetailCreateReviewApp(t *testing.T) {
	fb := newFakeBackend(storefront())
	m := loadedDetail(t, fb, "storefront")

	m.setFocus(int(paneReviewApps))
	require.Equal(t, paneReviewApps, m.focusedPane())

	m, _ = m.update(keyRunes("c"))
	require.True(t, m.creating)
	m, _ = m.update(keyRunes("feature-y"))
	m, _ = m.update(keyEnter)
	assert.False(t, m.creating)
	require.True(t, m.confirm.busy())

	m, cmd := m.update(keyRunes("y"))
	_, ok := findMsg[actionDoneMsg](collect(t, cmd))
	require.True(t, ok)
	assert.Equal(t, []string{"createReviewApp storefront feature-y"}, fb.Calls())
}

func TestDetailUnknownApp(t *testing.T) {
	fb := newFakeBackend()
	m := newDetailModel(fb, "ghost")
	loaded, ok := findMsg[detailLoadedMsg](collect(t, m.fetch()))
	require.True(t, ok)

	m, _ = m.update(loaded)
	require.Error(t, m.err)
	assert.Contains(t, m.view(100, 30), "could not find app")

	_, cmd := m.update(keyEsc)
	_, ok = findMsg[switchToAppsMsg](collect(t, cmd))
	assert.True(t, ok)
}
