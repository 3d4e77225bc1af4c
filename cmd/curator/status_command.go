package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"curator/internal/preflight"
	"curator/internal/state"
)

func newStatusCommand(cctx *commandContext) *cobra.Command {
	var withChecks bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pipeline state and environment health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := state.Open(cfg.Paths.StateFile)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			snapshot := store.Snapshot()
			var processed, failed, pending int
			perPhase := make(map[state.Phase]int)
			for _, item := range snapshot {
				switch {
				case item.ErrorMessage != "":
					failed++
				case item.Processed():
					processed++
				default:
					pending++
				}
				perPhase[item.Progress]++
			}

			fmt.Fprintf(out, "Items: %d total, %d processed, %d pending, %d failed\n\n",
				len(snapshot), processed, pending, failed)

			rows := make([][]string, 0, len(state.Phases())+1)
			phases := append([]state.Phase{state.PhaseNone}, state.Phases()...)
			for _, phase := range phases {
				if count := perPhase[phase]; count > 0 {
					rows = append(rows, []string{phase.Label(), fmt.Sprintf("%d", count)})
				}
			}
			if len(rows) > 0 {
				fmt.Fprintln(out, renderTable(
					[]string{"FURTHEST PHASE", "ITEMS"},
					rows,
					alignLeft, alignRight,
				))
			}

			if withChecks {
				fmt.Fprintln(out, renderPreflight(preflight.RunAll(cmd.Context(), cfg)))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&withChecks, "checks", false, "Also run environment preflight checks")
	return cmd
}
