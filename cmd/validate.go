package cmd

import (
	"fmt"

	"github.com/Lumos-Labs-HQ/flashseed/internal/generator"
	"github.com/Lumos-Labs-HQ/flashseed/internal/seeder"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the schema",
	Long: `Validate the schema structure, foreign keys, business keys, SCD settings
and generator parameters, then resolve the table and column orders.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		p, err := loadProject(cmd, cfg)
		if err != nil {
			return err
		}

		if err := seeder.Validate(p, generator.Default()); err != nil {
			color.Red("❌ %v", err)
			return fmt.Errorf("schema is invalid")
		}

		order, err := seeder.TableOrder(p, nil)
		if err != nil {
			return err
		}

		color.Green("✅ Schema '%s' is valid", p.Name)
		fmt.Printf("   Tables: %d\n", len(p.Tables))
		fmt.Printf("   Seed:   %d\n", p.Seed)
		fmt.Printf("   Order:  %v\n", order)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Int64("seed", 0, "Override the project seed")
}
