package devserver

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshly/tuberdash/internal/model"
)

func TestStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data.json")
	s := NewStore(path)
	require.NoError(t, s.Load())
	assert.True(t, s.Empty())

	require.NoError(t, s.Seed(DemoData()))
	_, err := os.Stat(path)
	require.NoError(t, err)

	other := NewStore(path)
	require.NoError(t, other.Load())
	assert.Equal(t, "dev", other.Cluster().Name)
	assert.Len(t, other.Apps(), 2)
}

func TestStoreReturnsCopies(t *testing.T) {
	s := NewStore("")
	require.NoError(t, s.Seed(DemoData()))

	rec, err := s.App("storefront")
	require.NoError(t, err)
	rec.Vars[0].Value = "changed"

	again, _ := s.App("storefront")
	assert.Equal(t, "3", again.Vars[0].Value)
}

func TestStoreUpdateRollsBackOnError(t *testing.T) {
	s := NewStore("")
	require.NoError(t, s.Seed(DemoData()))

	_, err := s.Update("billing", func(rec *AppRecord) error {
		rec.Paused = false
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	rec, _ := s.App("billing")
	assert.True(t, rec.Paused)
}

func TestStoreKeepsStateWhenSaveFails(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "devserver.json"))
	require.NoError(t, s.Seed(DemoData()))

	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	s.path = filepath.Join(blocker, "devserver.json")

	_, err := s.Update("billing", func(rec *AppRecord) error {
		rec.Paused = false
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not save changes")
	rec, err := s.App("billing")
	require.NoError(t, err)
	assert.True(t, rec.Paused)

	require.Error(t, s.Create(&AppRecord{TuberApp: model.TuberApp{Name: "extra"}}))
	_, err = s.App("extra")
	assert.ErrorIs(t, err, ErrNotFound)

	require.Error(t, s.Delete("storefront"))
	_, err = s.App("storefront")
	assert.NoError(t, err)
}

func TestStoreCreateDelete(t *testing.T) {
	s := NewStore("")
	require.NoError(t, s.Seed(&Data{}))

	require.NoError(t, s.Create(&AppRecord{TuberApp: model.TuberApp{Name: "a"}}))
	assert.EqualError(t, s.Create(&AppRecord{TuberApp: model.TuberApp{Name: "a"}}), `app "a" already exists`)
	assert.EqualError(t, s.Create(&AppRecord{}), "app name required")

	require.NoError(t, s.Delete("a"))
	assert.ErrorIs(t, s.Delete("a"), ErrNotFound)
}

func TestStoreReloadsExternalEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	s := NewStore(path)
	require.NoError(t, s.Seed(DemoData()))

	edited := `{"cluster":{"name":"edited","region":"x","reviewAppsEnabled":false},"apps":[]}`
	require.NoError(t, os.WriteFile(path, []byte(edited), 0644))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.Equal(t, "edited", s.Cluster().Name)
	assert.True(t, s.Empty())
}
