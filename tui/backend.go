package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/freshly/tuberdash/internal/api"
	"github.com/freshly/tuberdash/internal/collection"
	"github.com/freshly/tuberdash/internal/model"
)

// ErrCancelled is returned by standalone flows the operator backed out of.
var ErrCancelled = errors.New("cancelled")

// Backend is the part of *api.Client the dashboard uses.
type Backend interface {
	Apps(ctx context.Context) ([]*model.TuberApp, error)
	Detail(ctx context.Context, name string, withEnv bool) (*api.AppDetail, error)
	SetPaused(ctx context.Context, name string, paused bool) error
	Deploy(ctx context.Context, name, tag string) error
	Rollback(ctx context.Context, name string) error
	DestroyApp(ctx context.Context, name string) error
	CreateReviewApp(ctx context.Context, name, branch string) (string, error)
	SetRacEnabled(ctx context.Context, name string, enabled bool) error
	SetTuple(ctx context.Context, coll api.TupleCollection, input model.SetTupleInput) error
	UnsetTuple(ctx context.Context, coll api.TupleCollection, input model.SetTupleInput) error
	SetResource(ctx context.Context, coll api.ResourceCollection, input model.SetResourceInput) error
	UnsetResource(ctx context.Context, coll api.ResourceCollection, input model.SetResourceInput) error
}

// CollectionKind selects one editable collection of an app.
type CollectionKind int

const (
	KindVars CollectionKind = iota
	KindEnv
	KindExclusions
	KindRacVars
	KindRacExclusions
)

func (k CollectionKind) String() string {
	switch k {
	case KindVars:
		return "Vars"
	case KindEnv:
		return "Environment"
	case KindExclusions:
		return "Excluded Resources"
	case KindRacVars:
		return "Review App Vars"
	case KindRacExclusions:
		return "Review App Exclusions"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// newEditor builds the collection editor for kind, wired to b.
func newEditor(b Backend, kind CollectionKind, app string) *collection.Editor {
	switch kind {
	case KindEnv:
		set, unset := tupleOps(b, api.AppEnv)
		return collection.New(collection.TupleVariant(kind.String()), app, set, unset)
	case KindExclusions:
		set, unset := resourceOps(b, api.ExcludedResources)
		return collection.New(collection.ResourceVariant(kind.String()), app, set, unset)
	case KindRacVars:
		set, unset := tupleOps(b, api.RacVars)
		return collection.New(collection.TupleVariant(kind.String()), app, set, unset)
	case KindRacExclusions:
		set, unset := resourceOps(b, api.RacExclusions)
		return collection.New(collection.ResourceVariant(kind.String()), app, set, unset)
	default:
		set, unset := tupleOps(b, api.AppVars)
		return collection.New(collection.TupleVariant(kind.String()), app, set, unset)
	}
}

// itemsFor extracts the items of kind from a detail result.
func itemsFor(kind CollectionKind, d *api.AppDetail) []collection.Item {
	if d == nil || d.App == nil {
		return nil
	}
	rac := d.App.ReviewAppsConfig
	if rac == nil {
		rac = &model.ReviewAppsConfig{}
	}
	switch kind {
	case KindEnv:
		return tupleItems(d.Env)
	case KindExclusions:
		return resourceItems(d.App.ExcludedResources)
	case KindRacVars:
		return tupleItems(rac.Vars)
	case KindRacExclusions:
		return resourceItems(rac.ExcludedResources)
	default:
		return tupleItems(d.App.Vars)
	}
}

func tupleItems(ts []*model.Tuple) []collection.Item {
	items := make([]collection.Item, 0, len(ts))
	for _, t := range ts {
		items = append(items, collection.Item{Key: t.Key, Value: t.Value})
	}
	return items
}

func resourceItems(rs []*model.Resource) []collection.Item {
	items := make([]collection.Item, 0, len(rs))
	for _, r := range rs {
		items = append(items, collection.Item{Key: r.Name, Value: r.Kind})
	}
	return items
}

func tupleOps(b Backend, coll api.TupleCollection) (set, unset collection.Operation) {
	set = func(ctx context.Context, in collection.Input) error {
		return operationError(b.SetTuple(ctx, coll, model.SetTupleInput{Name: in.OwnerID, Key: in.Key, Value: in.Value}))
	}
	unset = func(ctx context.Context, in collection.Input) error {
		return operationError(b.UnsetTuple(ctx, coll, model.SetTupleInput{Name: in.OwnerID, Key: in.Key, Value: in.Value}))
	}
	return set, unset
}

func resourceOps(b Backend, coll api.ResourceCollection) (set, unset collection.Operation) {
	set = func(ctx context.Context, in collection.Input) error {
		return operationError(b.SetResource(ctx, coll, model.SetResourceInput{AppName: in.OwnerID, Name: in.Key, Kind: in.Value}))
	}
	unset = func(ctx context.Context, in collection.Input) error {
		return operationError(b.UnsetResource(ctx, coll, model.SetResourceInput{AppName: in.OwnerID, Name: in.Key, Kind: in.Value}))
	}
	return set, unset
}

// displayError keeps the cause for errors.As while reading as the message
// the server sent.
type displayError struct {
	err error
}

func (e *displayError) Error() string { return api.Message(e.err) }
func (e *displayError) Unwrap() error { return e.err }

func operationError(err error) error {
	if err == nil {
		return nil
	}
	return &displayError{err: err}
}
