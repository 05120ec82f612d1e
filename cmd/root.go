package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	Version = "0.4.0"
)

func showBanner() {
	greenColor := color.New(color.FgGreen, color.Bold)

	banner := []string{
		"╔════════════════════════════════════════════════════╗",
		"║                                                    ║",
		"║                 ⚡  F L A S H S E E D  ⚡           ║",
		"║                                                    ║",
		"║     Deterministic relational test data, fast.      ║",
		"║                                                    ║",
		"╚════════════════════════════════════════════════════╝",
	}

	for _, line := range banner {
		greenColor.Println(line)
	}

	fmt.Print("                  ")
	color.New(color.FgCyan, color.Bold).Print("Version: ")
	color.New(color.FgYellow, color.Bold).Printf("%s\n", Version)
}

var rootCmd = &cobra.Command{
	Use:   "flashseed",
	Short: "Generate synthetic relational datasets from a schema",
	Long: `
FlashSeed generates deterministic synthetic data for a set of related
tables. The same schema and seed always produce the same rows.

Features:
- Foreign keys with per-parent child cardinality
- Business keys with SCD type 1 and type 2 history
- Chunked, partitioned runs across local worker processes
- Resumable runs through a JSON run ledger
- Output to CSV, SQLite, PostgreSQL or MySQL`,

	SilenceUsage: true,

	Run: func(cmd *cobra.Command, args []string) {
		showVersion, _ := cmd.Flags().GetBool("version")
		if showVersion {
			fmt.Printf("FlashSeed CLI version %s\n", Version)
			os.Exit(0)
		}

		if len(args) == 0 {
			showBanner()
			fmt.Println()
			cmd.Help()
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./flashseed.config.json)")
	rootCmd.PersistentFlags().String("schema", "", "schema file, overrides schema_path from the config")

	rootCmd.Flags().BoolP("version", "v", false, "Show CLI version")
}

func initConfig() {
	if err := godotenv.Load(); err != nil {
		godotenv.Load(".env")
		godotenv.Load(".env.local")
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("json")
		viper.SetConfigName("flashseed.config")
	}

	viper.SetEnvPrefix("FLASHSEED")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		// fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
