package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trackless/cred1/internal/pipeline"
)

var (
	enrichStep  string
	enrichLimit int
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich the merged dataset with external signals and rescore",
	Long: "Loads the merged intermediate produced by 'build', runs the selected\n" +
		"enrichment step (or all of them), recomputes every composite score, and\n" +
		"rewrites both published outputs.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if !validStep(enrichStep) {
			return eris.Errorf("unknown step %q (want tranco, rdap, factcheck, safebrowsing, score, or all)", enrichStep)
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		limit := enrichLimit
		if limit == 0 {
			limit = env.limit
		}

		result, err := env.builder.Enrich(ctx, enrichStep, limit, env.refDate.Format("2006-01-02"))
		if err != nil {
			return eris.Wrap(err, "enrich")
		}

		zap.L().Info("enrich complete",
			zap.String("step", enrichStep),
			zap.Int("domains", result.Domains),
			zap.Int("ranks", result.EnrichedRanks),
			zap.Int("ages", result.EnrichedAges),
			zap.Int("flagged", result.Flagged),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func validStep(step string) bool {
	switch step {
	case pipeline.StepTranco, pipeline.StepRDAP, pipeline.StepFactcheck,
		pipeline.StepSafeBrowsing, pipeline.StepScore, pipeline.StepAll:
		return true
	}
	return false
}

func init() {
	enrichCmd.Flags().StringVar(&enrichStep, "step", pipeline.StepAll, "enrichment step to run (tranco, rdap, factcheck, safebrowsing, score, all)")
	enrichCmd.Flags().IntVar(&enrichLimit, "limit", 0, "max domains to enrich per step, 0 for config default")
	rootCmd.AddCommand(enrichCmd)
}
