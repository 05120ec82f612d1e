package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/Lumos-Labs-HQ/flashseed/internal/ledger"
	"github.com/Lumos-Labs-HQ/flashseed/internal/planner"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Show or reset the run ledger",
	Long: `Show the status of every partition recorded in the run ledger, or
delete the ledger with --reset so the next run starts fresh.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path := cfg.Execution.LedgerPath
		if flag, _ := cmd.Flags().GetString("path"); flag != "" {
			path = flag
		}

		if reset, _ := cmd.Flags().GetBool("reset"); reset {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to delete run ledger: %w", err)
			}
			color.Green("✅ Run ledger %s removed", path)
			return nil
		}

		led, err := ledger.Load(path)
		if errors.Is(err, os.ErrNotExist) {
			color.Yellow("No run ledger at %s", path)
			return nil
		}
		if err != nil {
			return err
		}

		onlyFailed, _ := cmd.Flags().GetBool("failed")
		printLedger(led, onlyFailed)
		return nil
	},
}

func printLedger(led *ledger.Ledger, onlyFailed bool) {
	bold := color.New(color.Bold)
	bold.Printf("📒 Run %s\n", led.RunID)
	fmt.Printf("   Project: %s (seed %d)\n", led.ProjectName, led.ProjectSeed)
	fmt.Printf("   Mode:    %s, %d workers\n", led.Mode, led.WorkerCount)
	fmt.Printf("   Tables:  %v\n", led.SelectedTables)
	fmt.Printf("   Updated: %s\n", humanize.Time(led.UpdatedAt))

	counts := led.Counts()
	fmt.Printf("   Status:  %s done, %s pending, %s running, %s failed\n\n",
		color.GreenString("%d", counts[planner.StatusDone]),
		color.CyanString("%d", counts[planner.StatusPending]),
		color.YellowString("%d", counts[planner.StatusRunning]),
		color.RedString("%d", counts[planner.StatusFailed]))

	for _, id := range led.IDs() {
		e := led.Partitions[id]
		if onlyFailed && e.Status != planner.StatusFailed {
			continue
		}
		line := fmt.Sprintf("   %-40s %-8s retries %d", id, e.Status, e.RetryCount)
		if e.Error != "" {
			line += "  " + e.Error
		}
		switch e.Status {
		case planner.StatusDone:
			color.Green("%s", line)
		case planner.StatusFailed:
			color.Red("%s", line)
		default:
			fmt.Println(line)
		}
	}
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.Flags().String("path", "", "Ledger file (default from execution.ledger_path)")
	ledgerCmd.Flags().Bool("failed", false, "Only list failed partitions")
	ledgerCmd.Flags().Bool("reset", false, "Delete the run ledger")
}
