package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bioforge/trialdossier/internal/application/disease"
)

func newDiseaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disease <name>",
		Short: "Build the disease-centric dossier for one condition",
		Long: "Fetches interventional trials for the condition, extracts and resolves drug\n" +
			"mentions from intervention text, annotates each drug with targets, mechanism,\n" +
			"modality, and approval status, and writes one CSV row per (trial, drug, target).",
		Example: "  trialdossier disease \"asthma\"\n" +
			"  trialdossier disease \"chronic myeloid leukemia\" --output-dir ./out",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := getCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg, logger := cliCtx.Config, cliCtx.Logger

			rt, err := buildRuntime(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			svc, err := disease.NewService(
				rt.trials, rt.fetcher, rt.normalizer, rt.loader, rt.canon, rt.metrics,
				disease.Options{
					Concurrency:      cfg.Pipeline.Concurrency,
					TrialLimit:       cfg.Pipeline.TrialLimit,
					PartialThreshold: cfg.Resolver.PartialThreshold,
					MaxCandidates:    cfg.Resolver.MaxCandidates,
				},
				logger,
			)
			if err != nil {
				return err
			}

			result, err := svc.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			path, err := rt.writer.WriteDiseaseDossier(result.Condition, result.Rows)
			if err != nil {
				return err
			}
			rt.finishRun(cmd.Context(), "disease", result.Condition, path, len(result.Rows))

			fmt.Fprintf(cmd.OutOrStdout(),
				"Disease dossier for %q: %d trials, %d mentions (%d resolved), %d rows\nWritten to %s\n",
				result.Condition, result.Trials, result.Mentions, result.Resolved, len(result.Rows), path)
			return nil
		},
	}
}
