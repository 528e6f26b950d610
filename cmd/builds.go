package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/trackless/cred1/internal/model"
	"github.com/trackless/cred1/internal/store"
)

var buildsCmd = &cobra.Command{
	Use:   "builds",
	Short: "Inspect dataset build history",
	Long:  "Commands for listing and viewing recorded dataset builds.",
}

// -- builds list --

var buildsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dataset builds",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		builds, err := st.ListBuilds(ctx, store.BuildFilter{
			Status: model.BuildStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "builds list")
		}

		if len(builds) == 0 {
			fmt.Fprintln(os.Stderr, "No builds found.")
			return nil
		}

		formatBuildsList(os.Stdout, builds)
		return nil
	},
}

// -- builds show --

var buildsShowCmd = &cobra.Command{
	Use:   "show <build-id>",
	Short: "Show full details of a build",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		build, err := st.GetBuild(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "builds show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(build)
	},
}

func init() {
	buildsListCmd.Flags().String("status", "", "filter by build status (queued, running, complete, failed)")
	buildsListCmd.Flags().Int("limit", 50, "max number of builds to display")

	buildsCmd.AddCommand(buildsListCmd)
	buildsCmd.AddCommand(buildsShowCmd)
	rootCmd.AddCommand(buildsCmd)
}

// formatBuildsList writes a tabular list of builds to w.
func formatBuildsList(out io.Writer, builds []model.Build) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tREF_DATE\tDOMAINS\tOVERLAP\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t------\t--------\t-------\t-------\t-------\t--------")

	for _, b := range builds {
		domains, overlap := "", ""
		if b.Result != nil {
			domains = fmt.Sprintf("%d", b.Result.Domains)
			overlap = fmt.Sprintf("%d", b.Result.OverlapCount)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(b.ID),
			b.Status,
			b.ReferenceDate,
			domains,
			overlap,
			b.CreatedAt.Format("2006-01-02 15:04"),
			b.UpdatedAt.Sub(b.CreatedAt).Round(time.Second).String(),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
