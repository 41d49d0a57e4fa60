package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"iara/internal/providers"
	"iara/internal/storage"
	"iara/internal/util"
)

func newLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Export AI processing logs",
	}
	var out, caseID, status string
	var limit int
	export := &cobra.Command{
		Use:   "export",
		Short: "Write processing logs as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()
			logs, err := storage.NewProcessingLogRepo(env.db).List(cmd.Context(), storage.LogFilter{CaseID: caseID, Status: status, Limit: limit})
			if err != nil {
				return err
			}
			rows := make([]any, 0, len(logs))
			for _, l := range logs {
				rows = append(rows, l)
			}
			if err := util.WriteJSONLinesAtomic(out, rows); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported logs=%d path=%s\n", len(rows), out)
			return nil
		},
	}
	export.Flags().StringVarP(&out, "out", "o", "processing-logs.jsonl", "Output file")
	export.Flags().StringVar(&caseID, "case", "", "Only logs of this case")
	export.Flags().StringVar(&status, "status", "", "Only logs with this status")
	export.Flags().IntVar(&limit, "limit", 1000, "Maximum rows")
	cmd.AddCommand(export)
	return cmd
}

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and change system settings",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List all settings",
			RunE: func(cmd *cobra.Command, args []string) error {
				env, err := openEnv(cmd.Context())
				if err != nil {
					return err
				}
				defer env.Close()
				list, err := storage.NewSettingsRepo(env.db).List(cmd.Context())
				if err != nil {
					return err
				}
				for _, s := range list {
					fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", s.Key, s.Value)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print one setting",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				env, err := openEnv(cmd.Context())
				if err != nil {
					return err
				}
				defer env.Close()
				v, err := storage.NewSettingsRepo(env.db).Get(cmd.Context(), args[0])
				if errors.Is(err, storage.ErrNotFound) {
					return fmt.Errorf("setting %q is not set", args[0])
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Create or replace a setting (e.g. " + storage.SettingDefaultPrompt + ")",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				env, err := openEnv(cmd.Context())
				if err != nil {
					return err
				}
				defer env.Close()
				if err := storage.NewSettingsRepo(env.db).Set(cmd.Context(), args[0], args[1], time.Now().UTC()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s updated\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

func newTestAICmd() *cobra.Command {
	var req providers.ProbeRequest
	cmd := &cobra.Command{
		Use:   "test-ai",
		Short: "Send a tiny prompt to a provider and report latency",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()
			res, err := env.providers.Probe(cmd.Context(), req)
			if err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("provider %s failed after %dms: %s", res.Provider, res.LatencyMS, res.Error)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "provider=%s model=%s latency_ms=%d reply=%q\n", res.Provider, res.Model, res.LatencyMS, res.Reply)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Provider, "provider", "openai", "openai, anthropic, openrouter, deepseek or groq")
	cmd.Flags().StringVar(&req.APIKey, "key", "", "API key (default: the configured key)")
	cmd.Flags().StringVar(&req.Model, "model", "", "Model override")
	return cmd
}
