package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trackless/cred1/internal/pipeline"
)

// scoreCmd is a shortcut for `enrich --step score`: rescore whatever signals
// the merged intermediate already carries and rewrite the outputs.
var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Recompute all composite scores and rewrite the outputs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.builder.Enrich(ctx, pipeline.StepScore, 0, env.refDate.Format("2006-01-02"))
		if err != nil {
			return eris.Wrap(err, "score")
		}

		zap.L().Info("score complete", zap.Int("domains", result.Domains))

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)
}
