package devserver

import "github.com/freshly/tuberdash/internal/model"

// DemoData is what `tuberdash serve --seed` starts from.
func DemoData() *Data {
	return &Data{
		Cluster: model.ClusterInfo{Name: "dev", Region: "local", ReviewAppsEnabled: true},
		Apps: []*AppRecord{
			{
				TuberApp: model.TuberApp{
					Name:            "storefront",
					ImageTag:        "gcr.io/freshly/storefront:main",
					SlackChannel:    "#storefront-deploys",
					GithubRepo:      "freshly/storefront",
					CloudSourceRepo: "github_freshly_storefront",
					Vars: []*model.Tuple{
						{Key: "replicas", Value: "3"},
						{Key: "cpu", Value: "500m"},
					},
					ExcludedResources: []*model.Resource{
						{Name: "storefront-canary", Kind: "Deployment"},
					},
					ReviewAppsConfig: &model.ReviewAppsConfig{
						Enabled: true,
						Vars:    []*model.Tuple{{Key: "replicas", Value: "1"}},
						ExcludedResources: []*model.Resource{
							{Name: "storefront-worker", Kind: "Deployment"},
						},
					},
				},
				Env: []*model.Tuple{
					{Key: "RAILS_ENV", Value: "production"},
					{Key: "DATABASE_URL", Value: "postgres://storefront@db/storefront"},
				},
				PreviousImageTag: "gcr.io/freshly/storefront:v41",
			},
			{
				TuberApp: model.TuberApp{
					Name:     "billing",
					ImageTag: "gcr.io/freshly/billing:main",
					Paused:   true,
					Vars:     []*model.Tuple{{Key: "replicas", Value: "2"}},
				},
				Env: []*model.Tuple{{Key: "STRIPE_MODE", Value: "test"}},
			},
		},
	}
}
