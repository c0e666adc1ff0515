package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/freshly/tuberdash/internal/api"
	"github.com/freshly/tuberdash/internal/model"
	"github.com/freshly/tuberdash/tui"
)

// tupleGroup describes a key/value collection command group. The rac
// fields are set when the collection has a review-app counterpart
// reachable through --review-apps.
type tupleGroup struct {
	use, noun string
	coll      api.TupleCollection
	kind      tui.CollectionKind
	fetch     func(ctx context.Context, c *api.Client, app string) ([]*model.Tuple, error)

	racColl  api.TupleCollection
	racKind  tui.CollectionKind
	racFetch func(ctx context.Context, c *api.Client, app string) ([]*model.Tuple, error)
}

var varsCmd = newTupleCmd(tupleGroup{
	use:  "vars",
	noun: "var",
	coll: api.AppVars,
	kind: tui.KindVars,
	fetch: func(ctx context.Context, c *api.Client, app string) ([]*model.Tuple, error) {
		a, err := c.App(ctx, app)
		if err != nil {
			return nil, err
		}
		return a.Vars, nil
	},
	racColl: api.RacVars,
	racKind: tui.KindRacVars,
	racFetch: func(ctx context.Context, c *api.Client, app string) ([]*model.Tuple, error) {
		a, err := c.App(ctx, app)
		if err != nil {
			return nil, err
		}
		if a.ReviewAppsConfig == nil {
			return nil, nil
		}
		return a.ReviewAppsConfig.Vars, nil
	},
})

var envCmd = newTupleCmd(tupleGroup{
	use:  "env",
	noun: "environment variable",
	coll: api.AppEnv,
	kind: tui.KindEnv,
	fetch: func(ctx context.Context, c *api.Client, app string) ([]*model.Tuple, error) {
		return c.AppEnv(ctx, app)
	},
})

func newTupleCmd(g tupleGroup) *cobra.Command {
	var reviewApps bool
	hasRac := g.racFetch != nil

	pick := func() (api.TupleCollection, tui.CollectionKind, func(context.Context, *api.Client, string) ([]*model.Tuple, error)) {
		if reviewApps {
			return g.racColl, g.racKind, g.racFetch
		}
		return g.coll, g.kind, g.fetch
	}

	group := &cobra.Command{
		Use:   g.use,
		Short: fmt.Sprintf("List and edit an app's %ss", g.noun),
	}
	if hasRac {
		group.PersistentFlags().BoolVar(&reviewApps, "review-apps", false, "target the review-app defaults instead")
	}

	list := &cobra.Command{
		Use:               "list <app>",
		Short:             fmt.Sprintf("List %ss sorted by key", g.noun),
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeAppNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient()
			if err != nil {
				return err
			}
			_, _, fetch := pick()
			tuples, err := fetch(cmd.Context(), client, args[0])
			if err != nil {
				return err
			}
			tuples = sortedTuples(tuples)
			if wantJSON() {
				return printJSON(cmd.OutOrStdout(), tuples)
			}
			return printTuples(cmd.OutOrStdout(), tuples)
		},
	}
	addOutputFlags(list)

	set := &cobra.Command{
		Use:               "set <app> <key> <value>",
		Short:             fmt.Sprintf("Add or update a %s", g.noun),
		Args:              cobra.ExactArgs(3),
		ValidArgsFunction: completeAppNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, key, value := args[0], strings.TrimSpace(args[1]), strings.TrimSpace(args[2])
			if key == "" || value == "" {
				return fmt.Errorf("key and value are required")
			}
			client, _, err := newClient()
			if err != nil {
				return err
			}
			coll, _, _ := pick()
			if err := client.SetTuple(cmd.Context(), coll, model.SetTupleInput{Name: app, Key: key, Value: value}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s %s on %s\n", g.noun, key, app)
			return nil
		},
	}

	unset := &cobra.Command{
		Use:               "unset <app> <key>",
		Short:             fmt.Sprintf("Remove a %s", g.noun),
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeAppNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, key := args[0], args[1]
			client, _, err := newClient()
			if err != nil {
				return err
			}
			if err := confirmAction(cmd.InOrStdin(), cmd.OutOrStdout(), "Delete %s '%s' from %s?", g.noun, key, app); err != nil {
				return err
			}
			coll, _, _ := pick()
			if err := client.UnsetTuple(cmd.Context(), coll, model.SetTupleInput{Name: app, Key: key}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s %s from %s\n", g.noun, key, app)
			return nil
		},
	}

	edit := &cobra.Command{
		Use:               "edit <app>",
		Short:             fmt.Sprintf("Edit %ss interactively", g.noun),
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeAppNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient()
			if err != nil {
				return err
			}
			_, kind, _ := pick()
			return runCollectionEditor(client, args[0], kind)
		},
	}

	group.AddCommand(list, set, unset, edit)
	return group
}

var (
	flagExclusionsReviewApps bool
)

var exclusionsCmd = &cobra.Command{
	Use:   "exclusions",
	Short: "List and edit the resources excluded from an app's deploys",
}

var exclusionsListCmd = &cobra.Command{
	Use:               "list <app>",
	Short:             "List excluded resources",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeAppNames,
	RunE:              runExclusionsList,
}

var exclusionsAddCmd = &cobra.Command{
	Use:               "add <app> <name> <kind>",
	Short:             "Exclude a resource",
	Args:              cobra.ExactArgs(3),
	ValidArgsFunction: completeAppNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		return changeExclusion(cmd, args, false)
	},
}

var exclusionsRemoveCmd = &cobra.Command{
	Use:               "remove <app> <name> <kind>",
	Short:             "Stop excluding a resource",
	Args:              cobra.ExactArgs(3),
	ValidArgsFunction: completeAppNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		return changeExclusion(cmd, args, true)
	},
}

var exclusionsEditCmd = &cobra.Command{
	Use:               "edit <app>",
	Short:             "Edit excluded resources interactively",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeAppNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient()
		if err != nil {
			return err
		}
		kind := tui.KindExclusions
		if flagExclusionsReviewApps {
			kind = tui.KindRacExclusions
		}
		return runCollectionEditor(client, args[0], kind)
	},
}

func init() {
	exclusionsCmd.PersistentFlags().BoolVar(&flagExclusionsReviewApps, "review-apps", false, "target the review-app defaults instead")
	addOutputFlags(exclusionsListCmd)
	exclusionsCmd.AddCommand(exclusionsListCmd)
	exclusionsCmd.AddCommand(exclusionsAddCmd)
	exclusionsCmd.AddCommand(exclusionsRemoveCmd)
	exclusionsCmd.AddCommand(exclusionsEditCmd)
}

func runExclusionsList(cmd *cobra.Command, args []string) error {
	client, _, err := newClient()
	if err != nil {
		return err
	}
	app, err := client.App(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	resources := app.ExcludedResources
	if flagExclusionsReviewApps {
		resources = nil
		if app.ReviewAppsConfig != nil {
			resources = app.ReviewAppsConfig.ExcludedResources
		}
	}
	resources = sortedResources(resources)
	if wantJSON() {
		return printJSON(cmd.OutOrStdout(), resources)
	}
	return printResources(cmd.OutOrStdout(), resources)
}

func changeExclusion(cmd *cobra.Command, args []string, remove bool) error {
	app, name, kind := args[0], strings.TrimSpace(args[1]), strings.TrimSpace(args[2])
	if name == "" || kind == "" {
		return fmt.Errorf("name and kind are required")
	}
	client, _, err := newClient()
	if err != nil {
		return err
	}
	coll := api.ExcludedResources
	if flagExclusionsReviewApps {
		coll = api.RacExclusions
	}
	input := model.SetResourceInput{AppName: app, Name: name, Kind: kind}

	if !remove {
		if err := client.SetResource(cmd.Context(), coll, input); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Excluded %s %s from %s\n", kind, name, app)
		return nil
	}

	if err := confirmAction(cmd.InOrStdin(), cmd.OutOrStdout(), "Stop excluding %s %s from %s?", kind, name, app); err != nil {
		return err
	}
	if err := client.UnsetResource(cmd.Context(), coll, input); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s is no longer excluded from %s\n", kind, name, app)
	return nil
}

func sortedTuples(ts []*model.Tuple) []*model.Tuple {
	out := append([]*model.Tuple{}, ts...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func sortedResources(rs []*model.Resource) []*model.Resource {
	out := append([]*model.Resource{}, rs...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

func printTuples(w io.Writer, ts []*model.Tuple) error {
	if len(ts) == 0 {
		fmt.Fprintln(w, "  (none)")
		return nil
	}
	t := newTable(w, "KEY", "VALUE")
	for _, tuple := range sortedTuples(ts) {
		t.row(tuple.Key, tuple.Value)
	}
	return t.flush()
}

func printResources(w io.Writer, rs []*model.Resource) error {
	if len(rs) == 0 {
		fmt.Fprintln(w, "  (none)")
		return nil
	}
	t := newTable(w, "NAME", "KIND")
	for _, r := range sortedResources(rs) {
		t.row(r.Name, r.Kind)
	}
	return t.flush()
}
