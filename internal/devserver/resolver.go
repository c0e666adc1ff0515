package devserver

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/freshly/tuberdash/internal/model"
)

// Resolver answers the schema in schema.graphql from a Store.
type Resolver struct {
	store  *Store
	logger *slog.Logger
}

func view(rec *AppRecord) *model.TuberApp {
	app := rec.TuberApp
	if app.ReviewAppsConfig == nil {
		app.ReviewAppsConfig = &model.ReviewAppsConfig{}
	}
	return &app
}

func (r *Resolver) update(op, name string, fn func(*AppRecord) error) (*model.TuberApp, error) {
	rec, err := r.store.Update(name, fn)
	if err != nil {
		r.logger.Debug("mutation rejected", "op", op, "app", name, "error", err)
		return nil, err
	}
	r.logger.Info("app updated", "op", op, "app", name)
	return view(rec), nil
}

// --- queries ---

func (r *Resolver) GetApps() []*model.TuberApp {
	var apps []*model.TuberApp
	for _, rec := range r.store.Apps() {
		if !rec.ReviewApp {
			apps = append(apps, view(rec))
		}
	}
	return apps
}

func (r *Resolver) GetApp(args struct{ Name string }) (*model.TuberApp, error) {
	rec, err := r.store.App(args.Name)
	if err != nil {
		return nil, err
	}
	app := view(rec)
	for _, other := range r.store.Apps() {
		if other.ReviewApp && other.SourceAppName == app.Name {
			app.ReviewApps = append(app.ReviewApps, view(other))
		}
	}
	return app, nil
}

func (r *Resolver) GetAppEnv(args struct{ Name string }) ([]*model.Tuple, error) {
	rec, err := r.store.App(args.Name)
	if err != nil {
		return nil, err
	}
	return rec.Env, nil
}

func (r *Resolver) GetClusterInfo() *model.ClusterInfo {
	info := r.store.Cluster()
	return &info
}

// --- app mutations ---

func (r *Resolver) UpdateApp(args struct{ Input model.AppInput }) (*model.TuberApp, error) {
	in := args.Input
	return r.update("updateApp", in.Name, func(rec *AppRecord) error {
		if in.ImageTag != nil {
			rec.ImageTag = *in.ImageTag
		}
		if in.Paused != nil {
			rec.Paused = *in.Paused
		}
		return nil
	})
}

func (r *Resolver) Deploy(args struct{ Input model.AppInput }) (*model.TuberApp, error) {
	in := args.Input
	return r.update("deploy", in.Name, func(rec *AppRecord) error {
		if in.ImageTag == nil || *in.ImageTag == rec.ImageTag {
			return nil
		}
		if *in.ImageTag == "" {
			return fmt.Errorf("couldn't find image for the tag: empty tag")
		}
		rec.PreviousImageTag = rec.ImageTag
		rec.ImageTag = *in.ImageTag
		return nil
	})
}

func (r *Resolver) Rollback(args struct{ Input model.AppInput }) (*model.TuberApp, error) {
	return r.update("rollback", args.Input.Name, func(rec *AppRecord) error {
		if rec.PreviousImageTag == "" {
			return fmt.Errorf("no previous successful release found")
		}
		rec.ImageTag, rec.PreviousImageTag = rec.PreviousImageTag, rec.ImageTag
		return nil
	})
}

func (r *Resolver) DestroyApp(args struct{ Input model.AppInput }) (*model.TuberApp, error) {
	name := args.Input.Name
	rec, err := r.store.App(name)
	if err != nil {
		return nil, err
	}
	if !rec.ReviewApp {
		return nil, fmt.Errorf("%s is not a review app", name)
	}
	if err := r.store.Delete(name); err != nil {
		return nil, err
	}
	r.logger.Info("review app destroyed", "app", name)
	return &model.TuberApp{Name: name}, nil
}

func (r *Resolver) CreateReviewApp(args struct{ Input model.CreateReviewAppInput }) (*model.TuberApp, error) {
	in := args.Input
	if strings.TrimSpace(in.BranchName) == "" {
		return nil, fmt.Errorf("branch name required")
	}
	if !r.store.Cluster().ReviewAppsEnabled {
		return nil, fmt.Errorf("review apps are not enabled on this cluster")
	}
	source, err := r.store.App(in.Name)
	if err != nil {
		return nil, err
	}
	if source.ReviewApp {
		return nil, fmt.Errorf("cannot create a review app from review app %s", source.Name)
	}
	rac := source.ReviewAppsConfig
	if rac == nil || !rac.Enabled {
		return nil, fmt.Errorf("review apps are not enabled for %s", source.Name)
	}

	name := ReviewAppName(source.Name, in.BranchName)
	if _, err := r.store.App(name); err == nil {
		return nil, fmt.Errorf("review app already exists")
	}

	vars := cloneTuples(source.Vars)
	for _, t := range rac.Vars {
		vars = upsertTuple(vars, t.Key, t.Value)
	}
	rec := &AppRecord{
		TuberApp: model.TuberApp{
			Name:              name,
			ImageTag:          branchImageTag(source.ImageTag, in.BranchName),
			SlackChannel:      source.SlackChannel,
			GithubRepo:        source.GithubRepo,
			CloudSourceRepo:   source.CloudSourceRepo,
			ReviewApp:         true,
			SourceAppName:     source.Name,
			Branch:            in.BranchName,
			Vars:              vars,
			ExcludedResources: cloneResources(rac.ExcludedResources),
		},
		Env: cloneTuples(source.Env),
	}
	if err := r.store.Create(rec); err != nil {
		return nil, err
	}
	r.logger.Info("review app created", "app", source.Name, "review_app", name, "branch", in.BranchName)
	return view(rec), nil
}

func (r *Resolver) SetGithubRepo(args struct{ Input model.AppInput }) (*model.TuberApp, error) {
	in := args.Input
	return r.update("setGithubRepo", in.Name, func(rec *AppRecord) error {
		if in.GithubRepo == nil {
			return fmt.Errorf("githubRepo required for setGithubRepo")
		}
		rec.GithubRepo = *in.GithubRepo
		return nil
	})
}

func (r *Resolver) SetSlackChannel(args struct{ Input model.AppInput }) (*model.TuberApp, error) {
	in := args.Input
	return r.update("setSlackChannel", in.Name, func(rec *AppRecord) error {
		if in.SlackChannel == nil {
			return fmt.Errorf("slackChannel required for setSlackChannel")
		}
		rec.SlackChannel = *in.SlackChannel
		return nil
	})
}

func (r *Resolver) SetCloudSourceRepo(args struct{ Input model.AppInput }) (*model.TuberApp, error) {
	in := args.Input
	return r.update("setCloudSourceRepo", in.Name, func(rec *AppRecord) error {
		if in.CloudSourceRepo == nil {
			return fmt.Errorf("cloudSourceRepo required for setCloudSourceRepo")
		}
		rec.CloudSourceRepo = *in.CloudSourceRepo
		return nil
	})
}

// --- collections ---

func (r *Resolver) SetAppVar(args struct{ Input model.SetTupleInput }) (*model.TuberApp, error) {
	in := args.Input
	return r.update("setAppVar", in.Name, func(rec *AppRecord) error {
		if in.Key == "" {
			return fmt.Errorf("key required for setAppVar")
		}
		rec.Vars = upsertTuple(rec.Vars, in.Key, in.Value)
		return nil
	})
}

func (r *Resolver) UnsetAppVar(args struct{ Input model.SetTupleInput }) (*model.TuberApp, error) {
	in := args.Input
	return r.update("unsetAppVar", in.Name, func(rec *AppRecord) error {
		rec.Vars = removeTuple(rec.Vars, in.Key)
		return nil
	})
}

func (r *Resolver) SetAppEnv(args struct{ Input model.SetTupleInput }) (*model.TuberApp, error) {
	in := args.Input
	return r.update("setAppEnv", in.Name, func(rec *AppRecord) error {
		if in.Key == "" {
			return fmt.Errorf("key required for setAppEnv")
		}
		rec.Env = upsertTuple(rec.Env, in.Key, in.Value)
		return nil
	})
}

func (r *Resolver) UnsetAppEnv(args struct{ Input model.SetTupleInput }) (*model.TuberApp, error) {
	in := args.Input
	return r.update("unsetAppEnv", in.Name, func(rec *AppRecord) error {
		rec.Env = removeTuple(rec.Env, in.Key)
		return nil
	})
}

func (r *Resolver) SetExcludedResource(args struct{ Input model.SetResourceInput }) (*model.TuberApp, error) {
	in := args.Input
	return r.update("setExcludedResource", in.AppName, func(rec *AppRecord) error {
		if err := requireResource("setExcludedResource", in); err != nil {
			return err
		}
		rec.ExcludedResources = addResource(rec.ExcludedResources, in.Name, in.Kind)
		return nil
	})
}

func (r *Resolver) UnsetExcludedResource(args struct{ Input model.SetResourceInput }) (*model.TuberApp, error) {
	in := args.Input
	return r.update("unsetExcludedResource", in.AppName, func(rec *AppRecord) error {
		rec.ExcludedResources = removeResource(rec.ExcludedResources, in.Name, in.Kind)
		return nil
	})
}

func (r *Resolver) SetRacEnabled(args struct{ Input model.SetRacEnabledInput }) (*model.TuberApp, error) {
	in := args.Input
	return r.update("setRacEnabled", in.Name, func(rec *AppRecord) error {
		racOf(rec).Enabled = in.Enabled
		return nil
	})
}

func (r *Resolver) SetRacVar(args struct{ Input model.SetTupleInput }) (*model.TuberApp, error) {
	in := args.Input
	return r.update("setRacVar", in.Name, func(rec *AppRecord) error {
		if in.Key == "" {
			return fmt.Errorf("key required for setRacVar")
		}
		if in.Value == "" {
			return fmt.Errorf("value required for setRacVar")
		}
		rac := racOf(rec)
		rac.Vars = upsertTuple(rac.Vars, in.Key, in.Value)
		return nil
	})
}

func (r *Resolver) UnsetRacVar(args struct{ Input model.SetTupleInput }) (*model.TuberApp, error) {
	in := args.Input
	return r.update("unsetRacVar", in.Name, func(rec *AppRecord) error {
		if in.Key == "" {
			return fmt.Errorf("key required for unsetRacVar")
		}
		rac := racOf(rec)
		rac.Vars = removeTuple(rac.Vars, in.Key)
		return nil
	})
}

func (r *Resolver) SetRacExclusion(args struct{ Input model.SetResourceInput }) (*model.TuberApp, error) {
	in := args.Input
	return r.update("setRacExclusion", in.AppName, func(rec *AppRecord) error {
		if err := requireResource("setRacExclusion", in); err != nil {
			return err
		}
		rac := racOf(rec)
		rac.ExcludedResources = addResource(rac.ExcludedResources, in.Name, in.Kind)
		return nil
	})
}

func (r *Resolver) UnsetRacExclusion(args struct{ Input model.SetResourceInput }) (*model.TuberApp, error) {
	in := args.Input
	return r.update("unsetRacExclusion", in.AppName, func(rec *AppRecord) error {
		if err := requireResource("unsetRacExclusion", in); err != nil {
			return err
		}
		rac := racOf(rec)
		rac.ExcludedResources = removeResource(rac.ExcludedResources, in.Name, in.Kind)
		return nil
	})
}

// --- helpers ---

func racOf(rec *AppRecord) *model.ReviewAppsConfig {
	if rec.ReviewAppsConfig == nil {
		rec.ReviewAppsConfig = &model.ReviewAppsConfig{}
	}
	return rec.ReviewAppsConfig
}

func requireResource(op string, in model.SetResourceInput) error {
	if in.Name == "" {
		return fmt.Errorf("resource name required for %s", op)
	}
	if in.Kind == "" {
		return fmt.Errorf("resource kind required for %s", op)
	}
	return nil
}

// upsertTuple sets key to value, appending when key is new.
func upsertTuple(list []*model.Tuple, key, value string) []*model.Tuple {
	for _, t := range list {
		if t.Key == key {
			t.Value = value
			return list
		}
	}
	return append(list, &model.Tuple{Key: key, Value: value})
}

func removeTuple(list []*model.Tuple, key string) []*model.Tuple {
	out := list[:0:0]
	for _, t := range list {
		if t.Key != key {
			out = append(out, t)
		}
	}
	return out
}

// addResource appends name/kind unless an entry matching both,
// case-insensitively, is already there.
func addResource(list []*model.Resource, name, kind string) []*model.Resource {
	for _, r := range list {
		if strings.EqualFold(r.Name, name) && strings.EqualFold(r.Kind, kind) {
			return list
		}
	}
	return append(list, &model.Resource{Name: name, Kind: kind})
}

func removeResource(list []*model.Resource, name, kind string) []*model.Resource {
	out := list[:0:0]
	for _, r := range list {
		if !(strings.EqualFold(r.Name, name) && strings.EqualFold(r.Kind, kind)) {
			out = append(out, r)
		}
	}
	return out
}

// ReviewAppName derives the review app name from its source app and branch.
func ReviewAppName(app, branch string) string {
	return app + "-" + slug(branch)
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, c := range strings.ToLower(s) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// branchImageTag swaps the tag of image for the branch slug.
func branchImageTag(image, branch string) string {
	repo := image
	if i := strings.LastIndex(image, ":"); i > strings.LastIndex(image, "/") {
		repo = image[:i]
	}
	if repo == "" {
		return ""
	}
	return repo + ":" + slug(branch)
}
