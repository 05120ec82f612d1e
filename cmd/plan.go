package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Lumos-Labs-HQ/flashseed/internal/planner"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type planReport struct {
	Chunks     []planner.ChunkEntry    `json:"chunks"`
	Partitions []planner.Partition     `json:"partitions"`
	Estimates  []planner.TableEstimate `json:"estimates"`
	Summary    planner.EstimateSummary `json:"summary"`
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the chunk plan, partitions and workload estimate",
	Long: `Plan a run without generating any rows. Prints how many rows each table
gets, how the tables split into chunks and stages, which worker each
partition is assigned to and a rough memory, size and time estimate.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		applyTableFlags(cmd, cfg)

		p, err := loadProject(cmd, cfg)
		if err != nil {
			return err
		}

		chunks, err := planner.BuildChunkPlan(p, cfg.Profile)
		if err != nil {
			return err
		}
		estimates, err := planner.EstimateWorkload(p, cfg.Profile)
		if err != nil {
			return err
		}
		workers := cfg.Execution.WorkerCount
		if w, _ := cmd.Flags().GetInt("workers"); w > 0 {
			workers = w
		}
		parts := planner.BuildPartitionPlan(p.Seed, chunks, workers)

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(planReport{
				Chunks:     chunks,
				Partitions: parts,
				Estimates:  estimates,
				Summary:    planner.SummarizeEstimates(estimates),
			})
		}

		printPlan(chunks, parts, estimates)
		return nil
	},
}

func printPlan(chunks []planner.ChunkEntry, parts []planner.Partition, estimates []planner.TableEstimate) {
	bold := color.New(color.Bold)
	summary := planner.SummarizeChunks(chunks)

	bold.Println("📋 Chunk plan")
	fmt.Printf("   %d tables, %d chunks, %d stages, %s rows\n\n",
		summary.Tables, summary.Chunks, summary.MaxStage, humanize.Comma(int64(summary.TotalRows)))

	fmt.Printf("   %-40s %-8s %-6s %-24s\n", "PARTITION", "WORKER", "STAGE", "ROWS")
	for _, part := range parts {
		fmt.Printf("   %-40s %-8d %-6d %s..%s\n", part.ID, part.AssignedWorker, part.Stage,
			humanize.Comma(int64(part.StartRow)), humanize.Comma(int64(part.EndRow)))
	}
	fmt.Println()

	bold.Println("📊 Workload estimate")
	fmt.Printf("   %-24s %12s %10s %10s %8s  %s\n", "TABLE", "ROWS", "MEMORY", "WRITE", "TIME", "RISK")
	for _, e := range estimates {
		fmt.Printf("   %-24s %12s %10s %10s %7.1fs  %s\n", e.Table, humanize.Comma(int64(e.Rows)),
			humanize.IBytes(mib(e.MemoryMB)), humanize.IBytes(mib(e.WriteMB)), e.Seconds, riskColor(e.Risk))
		if e.Recommendation != "" {
			color.New(color.FgHiBlack).Printf("   %-24s %s\n", "", e.Recommendation)
		}
	}

	total := planner.SummarizeEstimates(estimates)
	fmt.Printf("\n   Total: %s rows, ~%s in memory, ~%s written, ~%.1fs, risk %s\n",
		humanize.Comma(int64(total.TotalRows)), humanize.IBytes(mib(total.TotalMemoryMB)),
		humanize.IBytes(mib(total.TotalWriteMB)), total.TotalSeconds, riskColor(total.HighestRisk))
}

func mib(v float64) uint64 {
	return uint64(v * 1024 * 1024)
}

func riskColor(risk string) string {
	switch risk {
	case planner.RiskHigh:
		return color.RedString(risk)
	case planner.RiskMedium:
		return color.YellowString(risk)
	default:
		return color.GreenString(risk)
	}
}

func init() {
	rootCmd.AddCommand(planCmd)
	addProfileFlags(planCmd)
	planCmd.Flags().Int("workers", 0, "Worker count for partition assignment (default from config)")
	planCmd.Flags().Bool("json", false, "Print the plan as JSON")
}
