package model

// Tuple is a single key/value configuration entry.
type Tuple struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Resource identifies a cluster object by name and kind.
type Resource struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// ReviewAppsConfig holds the defaults review apps are created with.
type ReviewAppsConfig struct {
	Enabled           bool        `json:"enabled"`
	Vars              []*Tuple    `json:"vars"`
	ExcludedResources []*Resource `json:"excludedResources"`
}

// TuberApp is an application managed by tuber.
type TuberApp struct {
	Name              string            `json:"name"`
	ImageTag          string            `json:"imageTag"`
	Paused            bool              `json:"paused"`
	SlackChannel      string            `json:"slackChannel"`
	GithubRepo        string            `json:"githubRepo"`
	CloudSourceRepo   string            `json:"cloudSourceRepo"`
	ReviewApp         bool              `json:"reviewApp"`
	SourceAppName     string            `json:"sourceAppName"`
	Branch            string            `json:"branch"`
	Vars              []*Tuple          `json:"vars"`
	ExcludedResources []*Resource       `json:"excludedResources"`
	ReviewAppsConfig  *ReviewAppsConfig `json:"reviewAppsConfig"`
	ReviewApps        []*TuberApp       `json:"reviewApps"`
}

// ClusterInfo describes the cluster the admin server runs in.
type ClusterInfo struct {
	Name              string `json:"name"`
	Region            string `json:"region"`
	ReviewAppsEnabled bool   `json:"reviewAppsEnabled"`
}

// AppInput is the generic app mutation input. Nil fields are left unchanged.
type AppInput struct {
	Name            string  `json:"name"`
	ImageTag        *string `json:"imageTag,omitempty"`
	Paused          *bool   `json:"paused,omitempty"`
	GithubRepo      *string `json:"githubRepo,omitempty"`
	SlackChannel    *string `json:"slackChannel,omitempty"`
	CloudSourceRepo *string `json:"cloudSourceRepo,omitempty"`
}

// SetTupleInput targets one tuple of the named app.
type SetTupleInput struct {
	Name  string `json:"name"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SetResourceInput targets one resource reference of the named app.
type SetResourceInput struct {
	AppName string `json:"appName"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
}

// SetRacEnabledInput toggles review apps for the named app.
type SetRacEnabledInput struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// CreateReviewAppInput creates a review app of Name from BranchName.
type CreateReviewAppInput struct {
	Name       string `json:"name"`
	BranchName string `json:"branchName"`
}
