package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/Lumos-Labs-HQ/flashseed/internal/apperrors"
	"github.com/Lumos-Labs-HQ/flashseed/internal/config"
	"github.com/Lumos-Labs-HQ/flashseed/internal/executor"
	"github.com/Lumos-Labs-HQ/flashseed/internal/export"
	"github.com/Lumos-Labs-HQ/flashseed/internal/generator"
	"github.com/Lumos-Labs-HQ/flashseed/internal/planner"
	"github.com/Lumos-Labs-HQ/flashseed/internal/schema"
	"github.com/Lumos-Labs-HQ/flashseed/internal/seeder"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:     "generate",
	Aliases: []string{"gen"},
	Short:   "Generate the dataset",
	Long: `
Generate every selected table and write it to the configured output.

Output modes:
  preview   print the first preview_row_target rows of each table
  csv       one <table>.csv per table under output.csv_dir
  sqlite    create the tables and insert the rows into the configured database
  all       csv and sqlite

Runs record their progress in the run ledger. Re-running the same project
with the same seed, mode and tables resumes from the ledger.

Examples:
  flashseed generate
  flashseed generate --output csv --rows customers=10000
  flashseed generate --mode multi_process_local --workers 4
  flashseed generate --no-ledger --seed 7`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		applyTableFlags(cmd, cfg)
		applyExecutionFlags(cmd, cfg)

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if err := cfg.EnsureDirectories(); err != nil {
			return fmt.Errorf("failed to create directories: %w", err)
		}

		p, err := loadProject(cmd, cfg)
		if err != nil {
			return err
		}

		sinks, closeSinks, err := buildSinks(cfg)
		if err != nil {
			return err
		}
		defer closeSinks()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		failParts, _ := cmd.Flags().GetStringSlice("fail-partition")
		stopFile, _ := cmd.Flags().GetString("stop-file")

		color.Cyan("🌱 Generating '%s' (seed %d, %s)", p.Name, p.Seed, cfg.Execution.Mode)
		start := time.Now()
		result, err := executor.Run(ctx, p, executor.Options{
			Profile:        cfg.Profile,
			Config:         cfg.Execution,
			Registry:       generator.Default(),
			Observer:       renderEvent,
			Cancel:         stopFileExists(stopFile),
			FailPartitions: failParts,
			Sinks:          sinks,
		})
		if err != nil {
			if errors.Is(err, apperrors.ErrCancelled) {
				color.Yellow("⏹️  Run cancelled; finished partitions are kept in %s", cfg.Execution.LedgerPath)
			}
			if result != nil {
				printFailures(result.Failures)
			}
			return err
		}

		printFailures(result.Failures)
		if cfg.Profile.OutputMode == planner.OutputPreview {
			printPreview(p, result.Data, cfg.Profile.PreviewRowTarget)
		}
		printWritten(result.Written)

		color.Green("✅ Generated %s rows in %s", humanize.Comma(int64(result.TotalRows)), time.Since(start).Round(time.Millisecond))
		if result.FallbackUsed {
			color.Yellow("⚠️  Finished in single_process fallback mode")
		}
		return nil
	},
}

func applyExecutionFlags(cmd *cobra.Command, cfg *config.Config) {
	if mode, _ := cmd.Flags().GetString("mode"); mode != "" {
		cfg.Execution.Mode = mode
	}
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		cfg.Execution.WorkerCount = workers
		cfg.Execution.MaxInflightChunks = max(cfg.Execution.MaxInflightChunks, workers)
		cfg.Execution.IPCQueueSize = max(cfg.Execution.IPCQueueSize, cfg.Execution.MaxInflightChunks)
	}
	if output, _ := cmd.Flags().GetString("output"); output != "" {
		cfg.Profile.OutputMode = output
	}
	if noLedger, _ := cmd.Flags().GetBool("no-ledger"); noLedger {
		cfg.Execution.LedgerPath = ""
	}
	if fresh, _ := cmd.Flags().GetBool("fresh"); fresh && cfg.Execution.LedgerPath != "" {
		os.Remove(cfg.Execution.LedgerPath)
	}
}

func buildSinks(cfg *config.Config) ([]executor.RowSink, func(), error) {
	var sinks []executor.RowSink
	closeFn := func() {}

	mode := cfg.Profile.OutputMode
	if mode == planner.OutputCSV || mode == planner.OutputAll {
		sinks = append(sinks, export.NewCSVSink(cfg.Output.CSVDir, cfg.Profile.CSVBufferRows))
	}
	if mode == planner.OutputSQLite || mode == planner.OutputAll {
		dbURL, err := cfg.GetDatabaseURL()
		if err != nil {
			return nil, closeFn, err
		}
		db, dialect, err := export.OpenDB(cfg.Database.Provider, dbURL)
		if err != nil {
			return nil, closeFn, err
		}
		closeFn = func() { db.Close() }
		sinks = append(sinks, export.NewSQLSink(db, dialect, cfg.Profile.BatchSize))
	}
	return sinks, closeFn, nil
}

func stopFileExists(path string) func() bool {
	if path == "" {
		return nil
	}
	return func() bool {
		_, err := os.Stat(path)
		return err == nil
	}
}

func renderEvent(ev executor.Event) {
	switch ev.Type {
	case executor.EventStarted:
		color.Cyan("▶️  %s (%d already done, %s rows planned)", ev.Message, ev.Done, humanize.Comma(int64(ev.TotalRows)))
	case executor.EventProgress:
		fmt.Printf("   [%d/%d] %s  worker %d  %s rows\n", ev.Done, ev.Total, ev.PartitionID, ev.WorkerID,
			humanize.Comma(int64(ev.RowsProcessed)))
	case executor.EventPartitionFailed:
		if ev.Action == "retry" {
			color.Yellow("🔁 %s failed on worker %d, retry %d: %s", ev.PartitionID, ev.WorkerID, ev.RetryCount, ev.Message)
		} else {
			color.Red("❌ %s failed after %d retries: %s", ev.PartitionID, ev.RetryCount, ev.Message)
		}
	case executor.EventFallback:
		color.Yellow("⚠️  %s", ev.Message)
	case executor.EventTableDone:
		fmt.Printf("   📄 %s: %s rows written (%s)\n", ev.Table, humanize.Comma(int64(ev.RowsProcessed)), ev.Message)
	case executor.EventCancelled:
		color.Yellow("⏹️  %s", ev.Message)
	case executor.EventRunDone:
		color.Green("🏁 %s", ev.Message)
	}
}

func printFailures(failures []executor.PartitionFailure) {
	if len(failures) == 0 {
		return
	}
	color.Red("\nFailed partitions:")
	for _, f := range failures {
		fmt.Printf("   %s (retries %d, %s): %s\n", f.PartitionID, f.RetryCount, f.Action, f.Error)
	}
}

func printWritten(written map[string]map[string]int) {
	names := make([]string, 0, len(written))
	for name := range written {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		total := 0
		for _, n := range written[name] {
			total += n
		}
		fmt.Printf("   %s: %s rows in %d tables\n", name, humanize.Comma(int64(total)), len(written[name]))
	}
}

func printPreview(p *schema.Project, data *seeder.GeneratedData, limit int) {
	if data == nil {
		return
	}
	for _, name := range data.Order {
		t, _ := p.Table(name)
		rows := data.Rows[name]
		shown := rows
		if limit > 0 && len(shown) > limit {
			shown = shown[:limit]
		}

		color.New(color.Bold).Printf("\n%s (%d of %s rows)\n", name, len(shown), humanize.Comma(int64(len(rows))))
		cols := t.ColumnNames()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, strings.Join(cols, "\t"))
		for _, r := range shown {
			cells := make([]string, len(cols))
			for i, col := range cols {
				cells[i] = export.FormatValue(r[col])
			}
			fmt.Fprintln(w, strings.Join(cells, "\t"))
		}
		w.Flush()
	}
	fmt.Println()
}

func init() {
	rootCmd.AddCommand(generateCmd)
	addProfileFlags(generateCmd)
	generateCmd.Flags().String("mode", "", "Execution mode: single_process or multi_process_local")
	generateCmd.Flags().Int("workers", 0, "Worker count (multi_process_local)")
	generateCmd.Flags().StringP("output", "o", "", "Output mode: preview, csv, sqlite or all")
	generateCmd.Flags().Bool("no-ledger", false, "Do not record or resume from the run ledger")
	generateCmd.Flags().Bool("fresh", false, "Discard the existing run ledger before starting")
	generateCmd.Flags().StringSlice("fail-partition", nil, "Partition ids whose first attempt fails (for testing retry and fallback)")
	generateCmd.Flags().String("stop-file", "", "Cancel the run once this file exists")
}
