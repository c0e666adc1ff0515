package cmd

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/spf13/cobra"
)

var reviewAppsCmd = &cobra.Command{
	Use:     "review-apps",
	Aliases: []string{"ra"},
	Short:   "Create, list and destroy review apps",
}

var reviewAppsListCmd = &cobra.Command{
	Use:               "list <app>",
	Short:             "List the review apps of an app",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeAppNames,
	RunE:              runReviewAppsList,
}

var reviewAppsCreateCmd = &cobra.Command{
	Use:   "create <app> [branch]",
	Short: "Create a review app from a branch",
	Long: `Create a review app of <app> from [branch].

When no branch is given the branch checked out in the current git
repository is used.`,
	Args:              cobra.RangeArgs(1, 2),
	ValidArgsFunction: completeAppNames,
	RunE:              runReviewAppsCreate,
}

var reviewAppsDestroyCmd = &cobra.Command{
	Use:   "destroy <review-app>",
	Short: "Destroy a review app",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewAppsDestroy,
}

var reviewAppsEnableCmd = &cobra.Command{
	Use:               "enable <app>",
	Short:             "Allow review apps to be created for an app",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeAppNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setReviewAppsEnabled(cmd, args[0], true)
	},
}

var reviewAppsDisableCmd = &cobra.Command{
	Use:               "disable <app>",
	Short:             "Stop review apps from being created for an app",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeAppNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setReviewAppsEnabled(cmd, args[0], false)
	},
}

// gitDir is where the current branch is looked up. Tests point it elsewhere.
var gitDir = "."

func init() {
	addOutputFlags(reviewAppsListCmd)

	reviewAppsCmd.AddCommand(reviewAppsListCmd)
	reviewAppsCmd.AddCommand(reviewAppsCreateCmd)
	reviewAppsCmd.AddCommand(reviewAppsDestroyCmd)
	reviewAppsCmd.AddCommand(reviewAppsEnableCmd)
	reviewAppsCmd.AddCommand(reviewAppsDisableCmd)
}

func runReviewAppsList(cmd *cobra.Command, args []string) error {
	client, _, err := newClient()
	if err != nil {
		return err
	}
	app, err := client.App(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if wantJSON() {
		return printJSON(cmd.OutOrStdout(), app.ReviewApps)
	}
	if len(app.ReviewApps) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%s has no review apps\n", app.Name)
		return nil
	}
	t := newTable(cmd.OutOrStdout(), "NAME", "BRANCH", "IMAGE TAG")
	for _, ra := range app.ReviewApps {
		t.row(ra.Name, orDash(ra.Branch), orDash(ra.ImageTag))
	}
	return t.flush()
}

func runReviewAppsCreate(cmd *cobra.Command, args []string) error {
	name := args[0]
	var branch string
	if len(args) > 1 {
		branch = args[1]
	} else {
		b, err := currentBranch(gitDir)
		if err != nil {
			return err
		}
		branch = b
	}

	client, _, err := newClient()
	if err != nil {
		return err
	}
	created, err := client.CreateReviewApp(cmd.Context(), name, branch)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created review app %s from %s\n", created, branch)
	return nil
}

func runReviewAppsDestroy(cmd *cobra.Command, args []string) error {
	name := args[0]
	client, _, err := newClient()
	if err != nil {
		return err
	}
	app, err := client.App(cmd.Context(), name)
	if err != nil {
		return err
	}
	if !app.ReviewApp {
		return fmt.Errorf("%s is not a review app", name)
	}
	if err := confirmAction(cmd.InOrStdin(), cmd.OutOrStdout(), "Destroy review app %s?", name); err != nil {
		return err
	}
	if err := client.DestroyApp(cmd.Context(), name); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Destroyed %s\n", name)
	return nil
}

func setReviewAppsEnabled(cmd *cobra.Command, name string, enabled bool) error {
	client, _, err := newClient()
	if err != nil {
		return err
	}
	if err := client.SetRacEnabled(cmd.Context(), name, enabled); err != nil {
		return err
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Review apps %s for %s\n", state, name)
	return nil
}

// currentBranch returns the branch checked out in the repository that
// contains dir.
func currentBranch(dir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return "", fmt.Errorf("not inside a git repository, pass the branch explicitly")
	}
	if err != nil {
		return "", fmt.Errorf("open git repository: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("read HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", fmt.Errorf("HEAD is detached, pass the branch explicitly")
	}
	return head.Name().Short(), nil
}
