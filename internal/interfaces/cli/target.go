package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bioforge/trialdossier/internal/application/target"
)

func newTargetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "target <symbol|chembl-id>",
		Short: "Build the target-centric dossier for one gene symbol or ChEMBL target ID",
		Long: "Expands the target into the drugs acting on it, annotates each with mechanism,\n" +
			"modality, indications, and approval status, matches registry trials per\n" +
			"(drug, indication), and writes one CSV row per combination.",
		Example: "  trialdossier target TUBB4B\n" +
			"  trialdossier target CHEMBL1862",
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

			svc, err := target.NewService(
				rt.trials, rt.fetcher, rt.chembl, rt.metrics,
				target.Options{
					Concurrency:      cfg.Pipeline.Concurrency,
					TrialLimit:       cfg.Pipeline.TrialLimit,
					PartialThreshold: cfg.Resolver.PartialThreshold,
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

			path, err := rt.writer.WriteTargetDossier(result.Symbol, result.Rows)
			if err != nil {
				return err
			}
			rt.finishRun(cmd.Context(), "target", result.Symbol, path, len(result.Rows))

			fmt.Fprintf(cmd.OutOrStdout(),
				"Target dossier for %s (%s): %d drugs, %d rows\nWritten to %s\n",
				result.Symbol, result.TargetID, result.Drugs, len(result.Rows), path)
			return nil
		},
	}
}
