package cmd

import (
	"fmt"

	"github.com/Lumos-Labs-HQ/flashseed/internal/config"
	"github.com/Lumos-Labs-HQ/flashseed/internal/schema"
	"github.com/spf13/cobra"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadProject(cmd *cobra.Command, cfg *config.Config) (*schema.Project, error) {
	path := cfg.SchemaPath
	if flag, _ := cmd.Flags().GetString("schema"); flag != "" {
		path = flag
	}

	p, err := schema.LoadProject(path)
	if err != nil {
		return nil, err
	}
	if seed, _ := cmd.Flags().GetInt64("seed"); cmd.Flags().Changed("seed") {
		p.Seed = seed
	}
	return p, nil
}

// applyTableFlags narrows the profile to --tables and --rows when given.
func applyTableFlags(cmd *cobra.Command, cfg *config.Config) {
	if tables, _ := cmd.Flags().GetStringSlice("tables"); len(tables) > 0 {
		cfg.Profile.TargetTables = tables
	}
	rows, _ := cmd.Flags().GetStringToInt("rows")
	if len(rows) == 0 {
		return
	}
	if cfg.Profile.RowOverrides == nil {
		cfg.Profile.RowOverrides = make(map[string]int, len(rows))
	}
	for table, n := range rows {
		cfg.Profile.RowOverrides[table] = n
	}
}

func addProfileFlags(cmd *cobra.Command) {
	cmd.Flags().Int64("seed", 0, "Override the project seed")
	cmd.Flags().StringSlice("tables", nil, "Only generate these tables and their parents")
	cmd.Flags().StringToInt("rows", nil, "Row count overrides, e.g. --rows customers=1000,orders=5000")
}
