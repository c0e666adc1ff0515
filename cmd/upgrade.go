package cmd

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

const releaseRepo = "freshly/tuberdash"

var upgradeCmd = &cobra.Command{
	Use:   "upgrade [version]",
	Short: "Upgrade tuberdash to the latest or a specific release",
	Long: `Replace the running binary with a release from GitHub.

Examples:
  tuberdash upgrade          # latest release
  tuberdash upgrade 0.5.1    # exact release`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUpgrade,
}

func runUpgrade(cmd *cobra.Command, args []string) error {
	cv, err := semver.NewVersion(Version)
	if err != nil || cv.Prerelease() == "dev" {
		return fmt.Errorf("cannot self-update a development version")
	}
	current := cv.String()

	var target *semver.Version
	if len(args) > 0 {
		target, err = semver.NewVersion(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
	}

	ctx := context.Background()
	if cmd != nil && cmd.Context() != nil {
		ctx = cmd.Context()
	}
	repo := selfupdate.ParseSlug(releaseRepo)

	var (
		release *selfupdate.Release
		found   bool
	)
	if target != nil {
		if target.Equal(cv) {
			fmt.Fprintf(cmd.OutOrStdout(), "Already at version %s\n", current)
			return nil
		}
		release, found, err = selfupdate.DetectVersion(ctx, repo, target.String())
	} else {
		release, found, err = selfupdate.DetectLatest(ctx, repo)
	}
	if err != nil {
		return fmt.Errorf("look up releases: %w", err)
	}
	if !found {
		return fmt.Errorf("no release of %s found for this platform", releaseRepo)
	}

	out := cmd.OutOrStdout()
	if target == nil && release.LessOrEqual(current) {
		fmt.Fprintf(out, "Already at the latest version %s\n", current)
		return nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("cannot determine executable path: %w", err)
	}
	fmt.Fprintf(out, "Upgrading %s -> %s\n", current, release.Version())
	if err := selfupdate.UpdateTo(ctx, release.AssetURL, release.AssetName, exe); err != nil {
		return fmt.Errorf("install %s: %w", release.Version(), err)
	}
	fmt.Fprintf(out, "Upgraded to %s\n", release.Version())
	return nil
}
