package tui

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/freshly/tuberdash/internal/api"
	"github.com/freshly/tuberdash/internal/model"
)

// fakeBackend is an in-memory Backend. Mutations are recorded, and app var
// changes are applied so a following Detail sees them.
type fakeBackend struct {
	mu       sync.Mutex
	apps     map[string]*model.TuberApp
	env      map[string][]*model.Tuple
	calls    []string
	failNext error
}

func newFakeBackend(apps ...*model.TuberApp) *fakeBackend {
	f := &fakeBackend{apps: map[string]*model.TuberApp{}, env: map[string][]*model.Tuple{}}
	for _, a := range apps {
		f.apps[a.Name] = a
	}
	return f
}

func (f *fakeBackend) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if err := f.failNext; err != nil {
		f.failNext = nil
		return err
	}
	return nil
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) Apps(context.Context) ([]*model.TuberApp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.TuberApp, 0, len(f.apps))
	for _, a := range f.apps {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeBackend) Detail(_ context.Context, name string, withEnv bool) (*api.AppDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[name]
	if !ok {
		return nil, errors.New("graphql: could not find app")
	}
	d := &api.AppDetail{App: app, Cluster: &model.ClusterInfo{Name: "dev", Region: "local"}}
	if withEnv {
		d.Env = f.env[name]
	}
	return d, nil
}

func (f *fakeBackend) SetPaused(_ context.Context, name string, paused bool) error {
	if err := f.record("setPaused " + name); err != nil {
		return err
	}
	f.mu.Lock()
	f.apps[name].Paused = paused
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) Deploy(_ context.Context, name, _ string) error {
	return f.record("deploy " + name)
}

func (f *fakeBackend) Rollback(_ context.Context, name string) error {
	return f.record("rollback " + name)
}

func (f *fakeBackend) DestroyApp(_ context.Context, name string) error {
	return f.record("destroyApp " + name)
}

func (f *fakeBackend) CreateReviewApp(_ context.Context, name, branch string) (string, error) {
	return name + "-" + branch, f.record("createReviewApp " + name + " " + branch)
}

func (f *fakeBackend) SetRacEnabled(_ context.Context, name string, _ bool) error {
	return f.record("setRacEnabled " + name)
}

func (f *fakeBackend) SetTuple(_ context.Context, coll api.TupleCollection, in model.SetTupleInput) error {
	if err := f.record("set" + string(coll) + " " + in.Key + "=" + in.Value); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if coll != api.AppVars {
		return nil
	}
	app := f.apps[in.Name]
	for _, t := range app.Vars {
		if t.Key == in.Key {
			t.Value = in.Value
			return nil
		}
	}
	app.Vars = append(app.Vars, &model.Tuple{Key: in.Key, Value: in.Value})
	return nil
}

func (f *fakeBackend) UnsetTuple(_ context.Context, coll api.TupleCollection, in model.SetTupleInput) error {
	if err := f.record("unset" + string(coll) + " " + in.Key); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if coll != api.AppVars {
		return nil
	}
	app := f.apps[in.Name]
	vars := app.Vars[:0]
	for _, t := range app.Vars {
		if t.Key != in.Key {
			vars = append(vars, t)
		}
	}
	app.Vars = vars
	return nil
}

func (f *fakeBackend) SetResource(_ context.Context, coll api.ResourceCollection, in model.SetResourceInput) error {
	return f.record("set" + string(coll) + " " + in.Name + "/" + in.Kind)
}

func (f *fakeBackend) UnsetResource(_ context.Context, coll api.ResourceCollection, in model.SetResourceInput) error {
	return f.record("unset" + string(coll) + " " + in.Name + "/" + in.Kind)
}

// Key helpers.

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
)

// collect runs cmd and returns every message it produces, expanding
// batches. Commands that don't finish promptly (ticks, blinks on a timer)
// are skipped.
func collect(t *testing.T, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	if cmd == nil {
		return nil
	}
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()

	var msg tea.Msg
	select {
	case msg = <-done:
	case <-time.After(200 * time.Millisecond):
		return nil
	}

	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(t, c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

// findMsg returns the first message of type T.
func findMsg[T any](msgs []tea.Msg) (T, bool) {
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func storefront() *model.TuberApp {
	return &model.TuberApp{
		Name:     "storefront",
		ImageTag: "v42",
		Vars: []*model.Tuple{
			{Key: "replicas", Value: "3"},
			{Key: "cpu", Value: "500m"},
		},
		ExcludedResources: []*model.Resource{{Name: "storefront-canary", Kind: "Deployment"}},
		ReviewAppsConfig:  &model.ReviewAppsConfig{Enabled: true},
	}
}
