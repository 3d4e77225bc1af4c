package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"curator/internal/state"
	"curator/internal/textutil"
)

func newItemsCommand(cctx *commandContext) *cobra.Command {
	var onlyFailed bool

	cmd := &cobra.Command{
		Use:   "items",
		Short: "List tracked items and their progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := state.Open(cfg.Paths.StateFile)
			if err != nil {
				return err
			}

			snapshot := store.Snapshot()
			rows := make([][]string, 0, len(snapshot))
			for _, id := range store.AllIDs() {
				item := snapshot[id]
				if onlyFailed && item.ErrorMessage == "" {
					continue
				}
				status := item.Progress.Label()
				if item.Processed() {
					status = "done"
				}
				rows = append(rows, []string{
					item.ID,
					textutil.Truncate(item.Title, 40),
					status,
					item.CategoryPath,
					textutil.Truncate(item.ErrorMessage, 48),
				})
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no items")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "TITLE", "PROGRESS", "CATEGORY", "ERROR"},
				rows,
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&onlyFailed, "failed", false, "Only show items with a recorded error")
	return cmd
}
