package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"iara/internal/approvals"
	"iara/internal/util"
)

func newApprovalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approvals",
		Short: "List and decide registration approvals",
	}
	cmd.AddCommand(newApprovalsListCmd(), newDecideCmd(approvals.ActionApprove), newDecideCmd(approvals.ActionReject))
	return cmd
}

func newApprovalsListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List approvals, optionally filtered by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()
			list, err := env.approvals.List(cmd.Context(), env.admin(), status)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "USER\tEMAIL\tNAME\tSTATUS\tREQUESTED")
			for _, a := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.UserID, a.Email, util.DisplaySnippet(a.DisplayName, 32), a.Status, a.CreatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "pending, approved or rejected")
	return cmd
}

func newDecideCmd(action string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <userId>",
		Short: "Mark a pending registration as " + action + "d",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()
			a, err := env.approvals.Decide(cmd.Context(), env.admin(), args[0], action)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user=%s status=%s\n", a.UserID, a.Status)
			return nil
		},
	}
}
