package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "List your past searches",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	historyLimit  int
	historyOffset int

	historyRmCmd = &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete one history entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := current.requestContext(cmd.Context())
			defer cancel()
			if err := current.client.DeleteHistoryEntry(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), success("✓"), "deleted")
			return nil
		},
	}

	historyClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Delete all history entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := current.requestContext(cmd.Context())
			defer cancel()
			if err := current.client.ClearHistory(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), success("✓"), "history cleared")
			return nil
		},
	}
)

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "entries per page")
	historyCmd.Flags().IntVar(&historyOffset, "offset", 0, "entries to skip")
	historyCmd.AddCommand(historyRmCmd, historyClearCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := current.requestContext(cmd.Context())
	defer cancel()

	list, err := current.client.History(ctx, historyLimit, historyOffset)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if list.Total == 0 {
		fmt.Fprintln(out, faint("no searches yet"))
		return nil
	}
	for _, e := range list.History {
		fmt.Fprintf(out, "%s  %s %s\n", faint(e.CreatedAt), bold(e.Query), faint(fmt.Sprintf("(%d results) %s", e.ResultCount, e.ID)))
	}
	if shown := historyOffset + len(list.History); shown < list.Total {
		fmt.Fprintln(out, faint(fmt.Sprintf("… %d more, use --offset %d", list.Total-shown, shown)))
	}
	return nil
}
