package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/freshly/tuberdash/internal/config"
	"github.com/freshly/tuberdash/tui"
)

var (
	flagClusterURL     string
	flagClusterPrefix  string
	flagClusterToken   string
	flagClusterTimeout time.Duration
)

// selectCluster picks a cluster interactively. Tests replace it.
var selectCluster = tui.RunSelectCluster

var clusterCmd = &cobra.Command{
	Use:     "cluster",
	Aliases: []string{"clusters"},
	Short:   "Manage the tuber admin servers in the config file",
}

var clusterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured clusters",
	Args:  cobra.NoArgs,
	RunE:  runClusterList,
}

var clusterAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or update a cluster",
	Long: `Add or update a cluster.

Without --url the URL and token are asked for interactively. The first
cluster added becomes the current one.`,
	Args: cobra.ExactArgs(1),
	RunE: runClusterAdd,
}

var clusterUseCmd = &cobra.Command{
	Use:               "use [name]",
	Short:             "Switch the current cluster",
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeClusterNames,
	RunE:              runClusterUse,
}

var clusterRemoveCmd = &cobra.Command{
	Use:               "remove <name>",
	Aliases:           []string{"rm"},
	Short:             "Remove a cluster",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeClusterNames,
	RunE:              runClusterRemove,
}

func init() {
	clusterAddCmd.Flags().StringVar(&flagClusterURL, "url", "", "admin server URL, e.g. https://tuber.example.com")
	clusterAddCmd.Flags().StringVar(&flagClusterPrefix, "prefix", "", "route prefix (default "+config.DefaultPrefix+")")
	clusterAddCmd.Flags().StringVar(&flagClusterToken, "token", "", "API token")
	clusterAddCmd.Flags().DurationVar(&flagClusterTimeout, "timeout", 0, "request timeout (default "+config.DefaultTimeout.String()+")")
	addOutputFlags(clusterListCmd)

	clusterCmd.AddCommand(clusterListCmd)
	clusterCmd.AddCommand(clusterAddCmd)
	clusterCmd.AddCommand(clusterUseCmd)
	clusterCmd.AddCommand(clusterRemoveCmd)
}

type clusterEntry struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Endpoint string `json:"endpoint"`
	Current  bool   `json:"current"`
}

func runClusterList(cmd *cobra.Command, args []string) error {
	store := config.DefaultStore()
	current := store.CurrentName()

	var entries []clusterEntry
	for _, name := range store.ClusterNames() {
		c := store.Cluster(name)
		if c == nil {
			continue
		}
		entries = append(entries, clusterEntry{
			Name:     name,
			URL:      c.URL,
			Endpoint: config.Endpoint(c.URL, c.Prefix),
			Current:  name == current,
		})
	}

	if wantJSON() {
		if entries == nil {
			entries = []clusterEntry{}
		}
		return printJSON(cmd.OutOrStdout(), entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No clusters configured. Add one with 'tuberdash cluster add'.")
		return nil
	}
	t := newTable(cmd.OutOrStdout(), "", "NAME", "ENDPOINT")
	for _, e := range entries {
		marker := ""
		if e.Current {
			marker = "*"
		}
		t.row(marker, e.Name, e.Endpoint)
	}
	return t.flush()
}

func runClusterAdd(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	store := config.DefaultStore()

	c := &config.Cluster{
		URL:     strings.TrimSpace(flagClusterURL),
		Prefix:  strings.TrimSpace(flagClusterPrefix),
		Token:   flagClusterToken,
		Timeout: flagClusterTimeout,
	}
	if c.URL == "" {
		p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
		url, err := p.required("Admin server URL for " + name)
		if err != nil {
			if errors.Is(err, errNotInteractive) {
				return fmt.Errorf("--url is required when not running in a terminal")
			}
			return err
		}
		c.URL = url
		if c.Token == "" {
			token, err := p.optionalSecret("API token (leave empty for none)")
			if err != nil {
				return err
			}
			c.Token = token
		}
	}
	if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return fmt.Errorf("url %q must start with http:// or https://", c.URL)
	}

	existed := store.Cluster(name) != nil
	if err := store.SetCluster(name, c); err != nil {
		return err
	}
	verb := "Added"
	if existed {
		verb = "Updated"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s cluster %s (%s)\n", verb, name, config.Endpoint(c.URL, c.Prefix))
	if store.CurrentName() == name {
		fmt.Fprintf(cmd.OutOrStdout(), "Current cluster is %s\n", name)
	}
	return nil
}

func runClusterUse(cmd *cobra.Command, args []string) error {
	store := config.DefaultStore()
	var name string
	if len(args) > 0 {
		name = args[0]
	} else {
		picked, err := selectCluster(store.ClusterNames(), store.CurrentName())
		if err != nil {
			return err
		}
		name = picked
	}
	if err := store.UseCluster(name); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Current cluster is %s\n", name)
	return nil
}

func runClusterRemove(cmd *cobra.Command, args []string) error {
	name := args[0]
	store := config.DefaultStore()
	if store.Cluster(name) == nil {
		return fmt.Errorf("cluster %q not found", name)
	}
	if err := confirmAction(cmd.InOrStdin(), cmd.OutOrStdout(), "Remove cluster %s?", name); err != nil {
		return err
	}
	if err := store.DeleteCluster(name); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed cluster %s\n", name)
	return nil
}
