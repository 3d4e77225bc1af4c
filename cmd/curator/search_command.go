package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"curator/internal/kbindex"
	"curator/internal/logging"
)

func newSearchCommand(cctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed knowledge base entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}
			index, err := kbindex.Open(cfg.Paths.IndexFile, logging.NewNop())
			if err != nil {
				return err
			}
			defer index.Close()

			results, err := index.Search(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "no matches")
				return nil
			}

			rows := make([][]string, 0, len(results))
			for _, entry := range results {
				rows = append(rows, []string{entry.Title, entry.CategoryPath, entry.ArtifactPath})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"TITLE", "CATEGORY", "ENTRY"},
				rows,
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of results")
	return cmd
}
