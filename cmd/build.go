package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Download both source lists, merge, score, and write the dataset",
	Long: "Fetches the OpenSources and Iffy lists, merges them into one record per\n" +
		"domain, scores on category alone, and writes the merged intermediate plus\n" +
		"both published outputs. Run 'enrich' afterwards to add external signals.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.builder.Build(ctx, env.refDate.Format("2006-01-02"))
		if err != nil {
			return eris.Wrap(err, "build")
		}

		zap.L().Info("build complete",
			zap.Int("domains", result.Domains),
			zap.Int("overlap", result.OverlapCount),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}
