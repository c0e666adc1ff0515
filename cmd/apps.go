package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/freshly/tuberdash/internal/api"
)

var (
	flagDeployTag string
	flagShowEnv   bool
)

var appsCmd = &cobra.Command{
	Use:     "apps",
	Aliases: []string{"app"},
	Short:   "List and manage apps",
}

var appsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List apps",
	Args:  cobra.NoArgs,
	RunE:  runAppsList,
}

var appsShowCmd = &cobra.Command{
	Use:               "show <app>",
	Short:             "Show an app and its collections",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeAppNames,
	RunE:              runAppsShow,
}

var appsPauseCmd = &cobra.Command{
	Use:               "pause <app>",
	Short:             "Pause deployments of an app",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeAppNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPaused(cmd, args[0], true)
	},
}

var appsResumeCmd = &cobra.Command{
	Use:               "resume <app>",
	Short:             "Resume deployments of an app",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeAppNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPaused(cmd, args[0], false)
	},
}

var appsDeployCmd = &cobra.Command{
	Use:               "deploy <app>",
	Short:             "Deploy an app, optionally at a new image tag",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeAppNames,
	RunE:              runAppsDeploy,
}

var appsRollbackCmd = &cobra.Command{
	Use:               "rollback <app>",
	Short:             "Roll an app back to its previous release",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeAppNames,
	RunE:              runAppsRollback,
}

var appsSetImageTagCmd = &cobra.Command{
	Use:               "set-image-tag <app> <tag>",
	Short:             "Change the image tag without deploying",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeAppNames,
	RunE:              runAppsSetImageTag,
}

var appsSetCmd = &cobra.Command{
	Use:   "set <github|slack|cloudsource> <app> <value>",
	Short: "Set an app's GitHub repo, Slack channel or Cloud Source repo",
	Args:  cobra.ExactArgs(3),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return []string{"github", "slack", "cloudsource"}, cobra.ShellCompDirectiveNoFileComp
		}
		return completeAppNames(cmd, args[1:], toComplete)
	},
	RunE: runAppsSet,
}

func init() {
	addOutputFlags(appsListCmd)
	addOutputFlags(appsShowCmd)
	appsShowCmd.Flags().BoolVar(&flagShowEnv, "env", false, "include environment variables")
	appsDeployCmd.Flags().StringVar(&flagDeployTag, "tag", "", "image tag to deploy")

	appsCmd.AddCommand(appsListCmd)
	appsCmd.AddCommand(appsShowCmd)
	appsCmd.AddCommand(appsPauseCmd)
	appsCmd.AddCommand(appsResumeCmd)
	appsCmd.AddCommand(appsDeployCmd)
	appsCmd.AddCommand(appsRollbackCmd)
	appsCmd.AddCommand(appsSetImageTagCmd)
	appsCmd.AddCommand(appsSetCmd)
}

func runAppsList(cmd *cobra.Command, args []string) error {
	client, _, err := newClient()
	if err != nil {
		return err
	}
	apps, err := client.Apps(cmd.Context())
	if err != nil {
		return err
	}
	if wantJSON() {
		return printJSON(cmd.OutOrStdout(), apps)
	}

	t := newTable(cmd.OutOrStdout(), "NAME", "IMAGE TAG", "PAUSED")
	for _, a := range apps {
		t.row(a.Name, orDash(a.ImageTag), strconv.FormatBool(a.Paused))
	}
	return t.flush()
}

func runAppsShow(cmd *cobra.Command, args []string) error {
	client, _, err := newClient()
	if err != nil {
		return err
	}
	d, err := client.Detail(cmd.Context(), args[0], flagShowEnv)
	if err != nil {
		return err
	}
	if wantJSON() {
		return printJSON(cmd.OutOrStdout(), d)
	}

	w := cmd.OutOrStdout()
	app := d.App
	field := func(label, value string) {
		fmt.Fprintf(w, "%-18s %s\n", label+":", orDash(value))
	}
	field("Name", app.Name)
	field("Image tag", app.ImageTag)
	field("Paused", strconv.FormatBool(app.Paused))
	if app.ReviewApp {
		field("Source app", app.SourceAppName)
		field("Branch", app.Branch)
	}
	field("Slack channel", app.SlackChannel)
	field("GitHub repo", app.GithubRepo)
	field("Cloud source repo", app.CloudSourceRepo)
	if d.Cluster != nil {
		field("Cluster", d.Cluster.Name+" ("+d.Cluster.Region+")")
	}

	fmt.Fprintln(w, "\nVars:")
	if err := printTuples(w, app.Vars); err != nil {
		return err
	}
	if flagShowEnv {
		fmt.Fprintln(w, "\nEnvironment:")
		if err := printTuples(w, d.Env); err != nil {
			return err
		}
	}
	fmt.Fprintln(w, "\nExcluded resources:")
	if err := printResources(w, app.ExcludedResources); err != nil {
		return err
	}

	if app.ReviewApp {
		return nil
	}
	enabled := app.ReviewAppsConfig != nil && app.ReviewAppsConfig.Enabled
	fmt.Fprintf(w, "\nReview apps (enabled: %t):\n", enabled)
	if len(app.ReviewApps) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, ra := range app.ReviewApps {
		fmt.Fprintf(w, "  %s  %s  %s\n", ra.Name, orDash(ra.Branch), orDash(ra.ImageTag))
	}
	return nil
}

func setPaused(cmd *cobra.Command, name string, paused bool) error {
	client, _, err := newClient()
	if err != nil {
		return err
	}
	if err := client.SetPaused(cmd.Context(), name, paused); err != nil {
		return err
	}
	state := "resumed"
	if paused {
		state = "paused"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", name, state)
	return nil
}

func runAppsDeploy(cmd *cobra.Command, args []string) error {
	client, _, err := newClient()
	if err != nil {
		return err
	}
	name := args[0]
	if err := client.Deploy(cmd.Context(), name, flagDeployTag); err != nil {
		return err
	}
	if flagDeployTag != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Deploying %s at %s\n", name, flagDeployTag)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Deploying %s\n", name)
	}
	return nil
}

func runAppsRollback(cmd *cobra.Command, args []string) error {
	client, _, err := newClient()
	if err != nil {
		return err
	}
	name := args[0]
	if err := confirmAction(cmd.InOrStdin(), cmd.OutOrStdout(), "Roll back %s to its previous release?", name); err != nil {
		return err
	}
	if err := client.Rollback(cmd.Context(), name); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %s\n", name)
	return nil
}

func runAppsSetImageTag(cmd *cobra.Command, args []string) error {
	client, _, err := newClient()
	if err != nil {
		return err
	}
	name, tag := args[0], args[1]
	if err := client.SetImageTag(cmd.Context(), name, tag); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s image tag set to %s\n", name, tag)
	return nil
}

func runAppsSet(cmd *cobra.Command, args []string) error {
	field, name, value := strings.ToLower(args[0]), args[1], args[2]

	var set func(*api.Client) error
	var label string
	switch field {
	case "github":
		label = "GitHub repo"
		set = func(c *api.Client) error { return c.SetGithubRepo(cmd.Context(), name, value) }
	case "slack":
		label = "Slack channel"
		set = func(c *api.Client) error { return c.SetSlackChannel(cmd.Context(), name, value) }
	case "cloudsource":
		label = "Cloud Source repo"
		set = func(c *api.Client) error { return c.SetCloudSourceRepo(cmd.Context(), name, value) }
	default:
		return fmt.Errorf("unknown field %q, expected github, slack or cloudsource", args[0])
	}

	client, _, err := newClient()
	if err != nil {
		return err
	}
	if err := set(client); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s set to %s\n", name, label, value)
	return nil
}
