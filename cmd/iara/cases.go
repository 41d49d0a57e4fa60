package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"iara/internal/storage"
	"iara/internal/util"
)

func newCasesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cases",
		Short: "Inspect, export and process cases",
	}
	cmd.AddCommand(newCasesListCmd(), newCasesShowCmd(), newCasesExportCmd(), newCasesProcessCmd())
	return cmd
}

func newCasesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every case with attachment and response counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()
			list, err := env.cases.ListAllCases(cmd.Context(), env.admin())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tOWNER\tSTATUS\tFILES\tRESPONSES\tTITLE")
			for _, c := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n", c.ID, c.OwnerID, c.Status, c.AttachmentCount, c.ResponseCount, util.DisplaySnippet(c.Title, 48))
			}
			return tw.Flush()
		},
	}
}

func newCasesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <caseId>",
		Short: "Print a case with attachments and responses as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()
			detail, err := env.cases.GetCase(cmd.Context(), env.admin(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(detail)
		},
	}
}

func newCasesExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <caseId>",
		Short: "Write a case with its processing history to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()
			detail, err := env.cases.GetCase(cmd.Context(), env.admin(), args[0])
			if err != nil {
				return err
			}
			logs, err := storage.NewProcessingLogRepo(env.db).List(cmd.Context(), storage.LogFilter{CaseID: detail.ID})
			if err != nil {
				return err
			}
			if out == "" {
				out = "case-" + detail.ID + ".json"
			}
			if err := util.WriteJSONAtomic(out, map[string]any{"case": detail, "processing_logs": logs}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported case=%s path=%s\n", detail.ID, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default case-<id>.json)")
	return cmd
}

func newCasesProcessCmd() *cobra.Command {
	var prompt string
	cmd := &cobra.Command{
		Use:   "process <caseId>",
		Short: "Run AI analysis for a pending case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()
			res, err := env.cases.ProcessCase(cmd.Context(), env.admin(), args[0], prompt)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "case=%s status=%s model=%s confidence=%.2f elapsed_ms=%d\n",
				res.CaseID, res.Status, res.ModelUsed, res.Confidence, res.ProcessingTimeMS)
			return nil
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "", "Instructions for this run (default: ai.default_prompt setting)")
	return cmd
}
