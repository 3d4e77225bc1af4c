package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"curator/internal/config"
	"curator/internal/fetch"
	"curator/internal/gitsync"
	"curator/internal/interpret"
	"curator/internal/kb"
	"curator/internal/kbindex"
	"curator/internal/llm"
	"curator/internal/logging"
	"curator/internal/pipeline"
	"curator/internal/preflight"
	"curator/internal/runlock"
	"curator/internal/state"
)

func newRunCommand(cctx *commandContext) *cobra.Command {
	var (
		forcePhases []string
		skipPhases  []string
		onlyPhase   string
		skipFetch   bool
		skipChecks  bool
		quietEvents bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process all pending items through the pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}

			prefs := pipeline.Preferences{SkipFetch: skipFetch}
			for _, name := range forcePhases {
				if err := prefs.SetForce(name); err != nil {
					return err
				}
			}
			for _, name := range skipPhases {
				if err := prefs.SetSkip(name); err != nil {
					return err
				}
			}
			if onlyPhase != "" {
				if err := prefs.SetOnly(onlyPhase); err != nil {
					return err
				}
			}

			return runPipeline(cmd.Context(), cmd.OutOrStdout(), cfg, prefs, !skipChecks, !quietEvents)
		},
	}

	cmd.Flags().StringSliceVar(&forcePhases, "force", nil, "Re-run the named phase even for items that completed it")
	cmd.Flags().StringSliceVar(&skipPhases, "skip", nil, "Skip the named phase for this run")
	cmd.Flags().StringVar(&onlyPhase, "only", "", "Run a single phase and nothing else")
	cmd.Flags().BoolVar(&skipFetch, "skip-fetch", false, "Skip bookmark discovery")
	cmd.Flags().BoolVar(&skipChecks, "no-preflight", false, "Skip preflight checks")
	cmd.Flags().BoolVar(&quietEvents, "quiet", false, "Suppress per-item progress output")
	return cmd
}

func runPipeline(ctx context.Context, out io.Writer, cfg *config.Config, prefs pipeline.Preferences, checks, showProgress bool) error {
	lock, err := runlock.Acquire(filepath.Join(cfg.Paths.LogDir, "curator.lock"))
	if err != nil {
		return err
	}
	defer lock.Release()

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	if checks {
		results := preflight.RunAll(ctx, cfg)
		if !preflight.AllPassed(results) {
			fmt.Fprintln(out, renderPreflight(results))
			return errors.New("preflight checks failed")
		}
	}

	store, err := state.Open(cfg.Paths.StateFile)
	if err != nil {
		return err
	}

	index, err := kbindex.Open(cfg.Paths.IndexFile, logger)
	if err != nil {
		return err
	}
	defer index.Close()

	client := llm.NewClient(cfg.LLM)
	fetcher := fetch.New(cfg, logger)
	interp := interpret.New(client, logger)
	generator := kb.NewGenerator(cfg.Paths.KnowledgeBaseDir, logger)
	syncer := gitsync.New(cfg, logger)

	phases := pipeline.PhaseSet{
		Cache:      fetcher.CachePost,
		Media:      interp.DescribeMedia,
		Categorize: interp.Categorize,
		Generate:   generator.Generate,
		Index:      index.IndexEntry,
		Sync:       syncer.Sync,
	}
	finalize := func(ctx context.Context, items map[string]*state.ItemState) error {
		if err := generator.RenderRootIndex(ctx, items); err != nil {
			return err
		}
		return syncer.CommitIndex(ctx)
	}

	opts := []pipeline.Option{pipeline.WithFinalize(finalize)}
	if cfg.Fetch.BookmarksFile != "" {
		opts = append(opts, pipeline.WithFetch(fetcher.Discover))
	}
	orch := pipeline.New(cfg, store, logger, phases, opts...)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})
	defer close(done)
	go handleStopSignals(orch, cancel, out, done)

	if showProgress {
		events, unsubscribe := orch.Subscribe()
		defer unsubscribe()
		go printProgress(out, events)
	}

	summary, err := orch.Run(runCtx, prefs)
	if summary != nil {
		printSummary(out, summary)
	}
	return err
}

// handleStopSignals turns the first interrupt into a graceful stop at the
// next batch boundary and the second into a hard cancel.
func handleStopSignals(orch *pipeline.Orchestrator, cancel context.CancelFunc, out io.Writer, done <-chan struct{}) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		fmt.Fprintln(out, "stop requested; finishing in-flight items (interrupt again to abort)")
		orch.RequestStop()
	case <-done:
		return
	}
	select {
	case <-sigCh:
		cancel()
	case <-done:
	}
}

func printProgress(out io.Writer, events <-chan pipeline.Event) {
	for event := range events {
		if event.ItemID == "" || event.TotalInBatch == 0 {
			continue
		}
		line := fmt.Sprintf("[%d/%d] %s: %d/%d %s",
			event.PhaseIndex+1, event.TotalPhases, event.Phase,
			event.ProcessedInBatch, event.TotalInBatch, event.ItemID)
		if event.ETAKnown {
			line += " eta=" + formatDuration(event.ETA)
		}
		fmt.Fprintln(out, line)
	}
}

func printSummary(out io.Writer, summary *pipeline.Summary) {
	fmt.Fprintf(out, "\nRun %s: %s in %s (%d phase executions",
		summary.RunID, summary.Status, formatDuration(summary.Duration), summary.Executions)
	if summary.Discovered > 0 {
		fmt.Fprintf(out, ", %d new items", summary.Discovered)
	}
	fmt.Fprintln(out, ")")
	if summary.FetchError != "" {
		fmt.Fprintf(out, "bookmark discovery failed: %s\n", summary.FetchError)
	}
	if len(summary.Failures) == 0 {
		return
	}

	rows := make([][]string, 0, len(summary.Failures))
	for _, failure := range summary.Failures {
		rows = append(rows, []string{failure.ItemID, failure.Phase.String(), failure.Message})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ITEM", "PHASE", "ERROR"},
		rows,
	))
}

func renderPreflight(results []preflight.Result) string {
	rows := make([][]string, 0, len(results))
	for _, result := range results {
		status := "FAIL"
		if result.Passed {
			status = "ok"
		}
		rows = append(rows, []string{result.Name, status, result.Detail})
	}
	return renderTable(
		[]string{"CHECK", "STATUS", "DETAIL"},
		rows,
	)
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return d.Round(time.Second).String()
}
