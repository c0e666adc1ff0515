package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshly/tuberdash/internal/api"
	"github.com/freshly/tuberdash/internal/collection"
)

func loadedCollection(t *testing.T, fb *fakeBackend, kind CollectionKind) collectionModel {
	t.Helper()
	m := newCollectionModel(fb, kind, "storefront")
	m.focused = true
	d, err := fb.Detail(context.Background(), "storefront", kind == KindEnv)
	require.NoError(t, err)
	m.sync(itemsFor(kind, d))
	return m
}

// submit feeds the result of the mutation started by cmd back into m.
func submit(t *testing.T, m collectionModel, cmd tea.Cmd) (collectionModel, []tea.Msg) {
	t.Helper()
	res, ok := findMsg[rowResultMsg](collect(t, cmd))
	require.True(t, ok, "expected a mutation to be dispatched")
	m, next := m.update(res)
	return m, collect(t, next)
}

func rowKeys(m collectionModel) []string {
	var out []string
	for _, r := range m.editor.Rows() {
		out = append(out, r.Key)
	}
	return out
}

func TestCollectionRowsSortedByKey(t *testing.T) {
	m := loadedCollection(t, newFakeBackend(storefront()), KindVars)
	assert.Equal(t, []string{"cpu", "replicas"}, rowKeys(m))

	view := m.view()
	assert.Less(t, strings.Index(view, "cpu"), strings.Index(view, "replicas"))
}

func TestCollectionAddRow(t *testing.T) {
	fb := newFakeBackend(storefront())
	m := loadedCollection(t, fb, KindVars)

	m, _ = m.update(keyRunes("a"))
	require.Equal(t, collection.NewRowID, m.active)
	assert.True(t, m.capturing())

	m, _ = m.update(keyRunes("DATABASE_URL"))
	m, _ = m.update(keyEnter) // advances to the value field
	assert.Equal(t, 1, m.field)
	m, _ = m.update(keyRunes("postgres://db"))
	m, cmd := m.update(keyEnter)
	require.NotNil(t, cmd)
	assert.True(t, m.editor.NewRow().Loading())
	assert.Contains(t, m.view(), "saving…")

	m, msgs := submit(t, m, cmd)
	assert.Equal(t, []string{"setAppVar DATABASE_URL=postgres://db"}, fb.Calls())
	assert.Nil(t, m.editor.NewRow())

	changed, ok := findMsg[collectionChangedMsg](msgs)
	require.True(t, ok, "a successful add should ask for a refresh")
	assert.Equal(t, m.id, changed.editor)

	d, err := fb.Detail(context.Background(), "storefront", false)
	require.NoError(t, err)
	m.sync(itemsFor(KindVars, d))
	assert.Equal(t, []string{"DATABASE_URL", "cpu", "replicas"}, rowKeys(m))
}

func TestCollectionAddRequiresKeyAndValue(t *testing.T) {
	fb := newFakeBackend(storefront())
	m := loadedCollection(t, fb, KindVars)

	m, _ = m.update(keyRunes("a"))
	m, _ = m.update(keyRunes("ONLY_KEY"))
	m, _ = m.update(keyTab)
	m, cmd := m.update(keyEnter)

	assert.Nil(t, collect(t, cmd))
	assert.Empty(t, fb.Calls())
	assert.Contains(t, m.view(), "key and value are required")
	assert.Equal(t, collection.NewRowID, m.active, "inputs stay open on a validation error")
}

func TestCollectionEditRow(t *testing.T) {
	fb := newFakeBackend(storefront())
	m := loadedCollection(t, fb, KindVars)
	m.cursor = 1 // replicas

	m, _ = m.update(keyRunes("e"))
	require.Equal(t, "replicas", m.active)
	assert.Equal(t, "3", m.valInput.Value())

	m.valInput.SetValue("5")
	m, cmd := m.update(keyEnter)
	m, msgs := submit(t, m, cmd)

	assert.Equal(t, []string{"setAppVar replicas=5"}, fb.Calls())
	r, _ := m.editor.Row("replicas")
	assert.Equal(t, collection.Viewing, r.Phase)
	assert.Equal(t, "5", r.Value)
	_, ok := findMsg[collectionChangedMsg](msgs)
	assert.True(t, ok)
}

func TestCollectionCancelRestoresValue(t *testing.T) {
	fb := newFakeBackend(storefront())
	m := loadedCollection(t, fb, KindVars)

	m, _ = m.update(keyRunes("e"))
	m, _ = m.update(keyRunes("xyz"))
	assert.Equal(t, "500mxyz", m.valInput.Value())

	m, _ = m.update(keyEsc)
	assert.Empty(t, m.active)
	r, _ := m.editor.Row("cpu")
	assert.Equal(t, collection.Viewing, r.Phase)
	assert.Equal(t, "500m", r.Draft)
	assert.Empty(t, fb.Calls())

	m, _ = m.update(keyRunes("e"))
	assert.Equal(t, "500m", m.valInput.Value(), "reopening starts from the saved value")
}

func TestCollectionDeleteNeedsConfirmation(t *testing.T) {
	fb := newFakeBackend(storefront())
	m := loadedCollection(t, fb, KindVars)

	m, _ = m.update(keyRunes("d"))
	assert.True(t, m.capturing())
	assert.Contains(t, m.view(), "Delete 'cpu'? (y/n)")

	m, cmd := m.update(keyRunes("n"))
	assert.Nil(t, cmd)
	r, _ := m.editor.Row("cpu")
	assert.Equal(t, collection.Viewing, r.Phase)
	assert.Empty(t, fb.Calls())

	m, _ = m.update(keyRunes("d"))
	m, cmd = m.update(keyRunes("y"))
	m, msgs := submit(t, m, cmd)

	assert.Equal(t, []string{"unsetAppVar cpu"}, fb.Calls())
	assert.Equal(t, []string{"replicas"}, rowKeys(m))
	_, ok := findMsg[collectionChangedMsg](msgs)
	assert.True(t, ok)
}

func TestCollectionLoadingRowIgnoresInput(t *testing.T) {
	fb := newFakeBackend(storefront())
	m := loadedCollection(t, fb, KindVars)

	m, _ = m.update(keyRunes("e"))
	m.valInput.SetValue("1")
	m, cmd := m.update(keyEnter)
	require.NotNil(t, cmd)

	r, _ := m.editor.Row("cpu")
	require.True(t, r.Loading())

	for _, k := range []string{"e", "d", "y"} {
		var extra tea.Cmd
		m, extra = m.update(keyRunes(k))
		assert.Nil(t, collect(t, extra), "key %q should not dispatch while saving", k)
		assert.Equal(t, collection.Submitting, r.Phase)
	}
	assert.Empty(t, m.active)

	m, _ = submit(t, m, cmd)
	assert.Equal(t, []string{"setAppVar cpu=1"}, fb.Calls())
}

func TestCollectionBusyRowExplainsRefusal(t *testing.T) {
	fb := newFakeBackend(storefront())
	m := loadedCollection(t, fb, KindVars)

	m, _ = m.update(keyRunes("e"))
	m.valInput.SetValue("1")
	m, cmd := m.update(keyEnter)
	require.NotNil(t, cmd)

	m, _ = m.update(keyRunes("d"))
	assert.Contains(t, m.view(), "still saving this entry")
	r, _ := m.editor.Row("cpu")
	assert.Equal(t, collection.Submitting, r.Phase)

	m, _ = submit(t, m, cmd)
	m, _ = m.update(keyRunes("j"))
	assert.NotContains(t, m.view(), "still saving")
}

func TestCollectionFailureKeepsDraft(t *testing.T) {
	fb := newFakeBackend(storefront())
	fb.failNext = errors.New("graphql: value rejected by admission policy")
	m := loadedCollection(t, fb, KindVars)

	m, _ = m.update(keyRunes("e"))
	m.valInput.SetValue("64Gi")
	m, cmd := m.update(keyEnter)
	m, msgs := submit(t, m, cmd)

	_, refreshed := findMsg[collectionChangedMsg](msgs)
	assert.False(t, refreshed)

	r, _ := m.editor.Row("cpu")
	assert.Equal(t, collection.Editing, r.Phase)
	assert.Equal(t, "64Gi", r.Draft)
	assert.Equal(t, "500m", r.Value)
	assert.Contains(t, m.view(), "✗ value rejected by admission policy")

	m, _ = m.update(keyRunes("e"))
	assert.Equal(t, "cpu", m.active)
	assert.Equal(t, "64Gi", m.valInput.Value())
}

func TestCollectionAuthRedirect(t *testing.T) {
	fb := newFakeBackend(storefront())
	fb.failNext = &api.AuthRedirectError{URL: "https://login.example.com"}
	m := loadedCollection(t, fb, KindVars)

	m, _ = m.update(keyRunes("d"))
	m, cmd := m.update(keyRunes("y"))
	_, msgs := submit(t, m, cmd)

	redirect, ok := findMsg[authRedirectMsg](msgs)
	require.True(t, ok)
	assert.Equal(t, "https://login.example.com", redirect.url)
}

func TestResourceRowsAreNotEditable(t *testing.T) {
	fb := newFakeBackend(storefront())
	m := loadedCollection(t, fb, KindExclusions)

	m, cmd := m.update(keyRunes("e"))
	assert.Nil(t, cmd)
	assert.Empty(t, m.active)
	assert.Contains(t, m.view(), "can't be edited in place")
	assert.NotContains(t, m.help(), "edit")

	m, _ = m.update(keyRunes("a"))
	m, _ = m.update(keyRunes("storefront-worker"))
	m, _ = m.update(keyEnter)
	m, _ = m.update(keyRunes("Deployment"))
	m, cmd = m.update(keyEnter)
	_, _ = submit(t, m, cmd)
	assert.Equal(t, []string{"setExcludedResource storefront-worker/Deployment"}, fb.Calls())
}

func TestCollectionIgnoresOtherEditorsResults(t *testing.T) {
	fb := newFakeBackend(storefront())
	m := loadedCollection(t, fb, KindVars)

	m, _ = m.update(keyRunes("d"))
	m, cmd := m.update(keyRunes("y"))
	res, ok := findMsg[rowResultMsg](collect(t, cmd))
	require.True(t, ok)

	other := loadedCollection(t, fb, KindRacVars)
	other, next := other.update(res)
	assert.Nil(t, next)
	assert.Empty(t, rowKeys(other))

	r, _ := m.editor.Row("cpu")
	assert.True(t, r.Loading(), "result for this editor is still outstanding")
}
