package cmd

import (
	"os"

	"github.com/Lumos-Labs-HQ/flashseed/internal/executor"
	"github.com/spf13/cobra"
)

// workerCmd is started by the multi_process_local engine. It reads one
// task from stdin and writes its result to stdout.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Run one partition task (internal)",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return executor.ServeWorker(os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
