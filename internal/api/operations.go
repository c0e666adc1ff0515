package api

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/freshly/tuberdash/internal/model"
)

const tupleFields = `key value`

const resourceFields = `name kind`

const summaryFields = `
	name
	imageTag
	paused
	reviewApp
	sourceAppName
`

const detailFields = `
	name
	imageTag
	paused
	slackChannel
	githubRepo
	cloudSourceRepo
	reviewApp
	sourceAppName
	branch
	vars { ` + tupleFields + ` }
	excludedResources { ` + resourceFields + ` }
	reviewAppsConfig {
		enabled
		vars { ` + tupleFields + ` }
		excludedResources { ` + resourceFields + ` }
	}
	reviewApps { name branch imageTag paused }
`

// Apps lists the non-review apps.
func (c *Client) Apps(ctx context.Context) ([]*model.TuberApp, error) {
	var resp struct {
		GetApps []*model.TuberApp `json:"getApps"`
	}
	doc := `query GetApps { getApps {` + summaryFields + `} }`
	if err := c.run(ctx, "getApps", doc, nil, &resp); err != nil {
		return nil, err
	}
	return resp.GetApps, nil
}

// App fetches one app with its collections and review apps.
func (c *Client) App(ctx context.Context, name string) (*model.TuberApp, error) {
	var resp struct {
		GetApp *model.TuberApp `json:"getApp"`
	}
	doc := `query GetApp($name: String!) { getApp(name: $name) {` + detailFields + `} }`
	if err := c.run(ctx, "getApp", doc, map[string]any{"name": name}, &resp); err != nil {
		return nil, err
	}
	if resp.GetApp == nil {
		return nil, fmt.Errorf("could not find app %q", name)
	}
	return resp.GetApp, nil
}

// AppEnv fetches the rendered environment of an app.
func (c *Client) AppEnv(ctx context.Context, name string) ([]*model.Tuple, error) {
	var resp struct {
		GetAppEnv []*model.Tuple `json:"getAppEnv"`
	}
	doc := `query GetAppEnv($name: String!) { getAppEnv(name: $name) { ` + tupleFields + ` } }`
	if err := c.run(ctx, "getAppEnv", doc, map[string]any{"name": name}, &resp); err != nil {
		return nil, err
	}
	return resp.GetAppEnv, nil
}

// ClusterInfo describes the cluster behind the endpoint.
func (c *Client) ClusterInfo(ctx context.Context) (*model.ClusterInfo, error) {
	var resp struct {
		GetClusterInfo *model.ClusterInfo `json:"getClusterInfo"`
	}
	doc := `query GetClusterInfo { getClusterInfo { name region reviewAppsEnabled } }`
	if err := c.run(ctx, "getClusterInfo", doc, nil, &resp); err != nil {
		return nil, err
	}
	if resp.GetClusterInfo == nil {
		return &model.ClusterInfo{}, nil
	}
	return resp.GetClusterInfo, nil
}

// AppDetail is everything the detail view needs in one round.
type AppDetail struct {
	App     *model.TuberApp    `json:"app"`
	Cluster *model.ClusterInfo `json:"cluster"`
	Env     []*model.Tuple     `json:"env,omitempty"`
}

// Detail fetches the app and cluster info concurrently. The environment is
// only fetched when withEnv is set.
func (c *Client) Detail(ctx context.Context, name string, withEnv bool) (*AppDetail, error) {
	var d AppDetail
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		app, err := c.App(ctx, name)
		d.App = app
		return err
	})
	g.Go(func() error {
		info, err := c.ClusterInfo(ctx)
		d.Cluster = info
		return err
	})
	if withEnv {
		g.Go(func() error {
			env, err := c.AppEnv(ctx, name)
			d.Env = env
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &d, nil
}

// mutate runs a single-input mutation and discards the returned app.
func (c *Client) mutate(ctx context.Context, op, inputType string, input any) error {
	doc := fmt.Sprintf("mutation($input: %s!) { %s(input: $input) { name } }", inputType, op)
	var resp map[string]any
	return c.run(ctx, op, doc, map[string]any{"input": input}, &resp)
}

// UpdateApp applies the non-nil fields of input.
func (c *Client) UpdateApp(ctx context.Context, input model.AppInput) error {
	return c.mutate(ctx, "updateApp", "AppInput", input)
}

// SetPaused pauses or resumes deploys of an app.
func (c *Client) SetPaused(ctx context.Context, name string, paused bool) error {
	return c.UpdateApp(ctx, model.AppInput{Name: name, Paused: &paused})
}

// SetImageTag changes the tag an app deploys from.
func (c *Client) SetImageTag(ctx context.Context, name, tag string) error {
	return c.UpdateApp(ctx, model.AppInput{Name: name, ImageTag: &tag})
}

// Deploy redeploys an app, optionally from a different tag.
func (c *Client) Deploy(ctx context.Context, name, tag string) error {
	input := model.AppInput{Name: name}
	if tag != "" {
		input.ImageTag = &tag
	}
	return c.mutate(ctx, "deploy", "AppInput", input)
}

func (c *Client) Rollback(ctx context.Context, name string) error {
	return c.mutate(ctx, "rollback", "AppInput", model.AppInput{Name: name})
}

// DestroyApp tears down a review app.
func (c *Client) DestroyApp(ctx context.Context, name string) error {
	return c.mutate(ctx, "destroyApp", "AppInput", model.AppInput{Name: name})
}

// CreateReviewApp creates a review app of name from branch and returns the
// new app's name.
func (c *Client) CreateReviewApp(ctx context.Context, name, branch string) (string, error) {
	var resp struct {
		CreateReviewApp struct {
			Name string `json:"name"`
		} `json:"createReviewApp"`
	}
	doc := `mutation($input: CreateReviewAppInput!) { createReviewApp(input: $input) { name } }`
	input := model.CreateReviewAppInput{Name: name, BranchName: branch}
	if err := c.run(ctx, "createReviewApp", doc, map[string]any{"input": input}, &resp); err != nil {
		return "", err
	}
	return resp.CreateReviewApp.Name, nil
}

// SetRacEnabled toggles review app creation for an app.
func (c *Client) SetRacEnabled(ctx context.Context, name string, enabled bool) error {
	return c.mutate(ctx, "setRacEnabled", "SetRacEnabledInput", model.SetRacEnabledInput{Name: name, Enabled: enabled})
}

func (c *Client) SetGithubRepo(ctx context.Context, name, repo string) error {
	return c.mutate(ctx, "setGithubRepo", "AppInput", model.AppInput{Name: name, GithubRepo: &repo})
}

func (c *Client) SetSlackChannel(ctx context.Context, name, channel string) error {
	return c.mutate(ctx, "setSlackChannel", "AppInput", model.AppInput{Name: name, SlackChannel: &channel})
}

func (c *Client) SetCloudSourceRepo(ctx context.Context, name, repo string) error {
	return c.mutate(ctx, "setCloudSourceRepo", "AppInput", model.AppInput{Name: name, CloudSourceRepo: &repo})
}

// TupleCollection names a key/value collection of an app. The set and
// unset mutations are derived from it.
type TupleCollection string

const (
	AppVars TupleCollection = "AppVar"
	AppEnv  TupleCollection = "AppEnv"
	RacVars TupleCollection = "RacVar"
)

// SetTuple upserts input.Key in the collection.
func (c *Client) SetTuple(ctx context.Context, coll TupleCollection, input model.SetTupleInput) error {
	return c.mutate(ctx, "set"+string(coll), "SetTupleInput", input)
}

// UnsetTuple removes input.Key from the collection.
func (c *Client) UnsetTuple(ctx context.Context, coll TupleCollection, input model.SetTupleInput) error {
	return c.mutate(ctx, "unset"+string(coll), "SetTupleInput", input)
}

// ResourceCollection names a resource exclusion list of an app.
type ResourceCollection string

const (
	ExcludedResources ResourceCollection = "ExcludedResource"
	RacExclusions     ResourceCollection = "RacExclusion"
)

func (c *Client) SetResource(ctx context.Context, coll ResourceCollection, input model.SetResourceInput) error {
	return c.mutate(ctx, "set"+string(coll), "SetResourceInput", input)
}

func (c *Client) UnsetResource(ctx context.Context, coll ResourceCollection, input model.SetResourceInput) error {
	return c.mutate(ctx, "unset"+string(coll), "SetResourceInput", input)
}
