package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Lumos-Labs-HQ/flashseed/internal/config"
	"github.com/Lumos-Labs-HQ/flashseed/template"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	sqliteFlag     bool
	postgresqlFlag bool
	mysqlFlag      bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new FlashSeed project",
	Long:  `Create flashseed.config.json, an example schema and the output directories in the current directory.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbType := template.SQLite
		flagCount := 0

		if sqliteFlag {
			dbType = template.SQLite
			flagCount++
		}
		if postgresqlFlag {
			dbType = template.PostgreSQL
			flagCount++
		}
		if mysqlFlag {
			dbType = template.MySQL
			flagCount++
		}

		if flagCount > 1 {
			return fmt.Errorf("please specify only one database type (--sqlite, --postgresql, or --mysql)")
		}

		return initializeProject(dbType)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&sqliteFlag, "sqlite", false, "Write generated rows to a SQLite file (default)")
	initCmd.Flags().BoolVar(&postgresqlFlag, "postgresql", false, "Write generated rows to PostgreSQL")
	initCmd.Flags().BoolVar(&mysqlFlag, "mysql", false, "Write generated rows to MySQL")
}

func initializeProject(dbType template.DatabaseType) error {
	if _, err := os.Stat(config.FileName); err == nil {
		color.Yellow("⚠️  %s already exists, nothing to do", config.FileName)
		return nil
	}

	tmpl := template.NewProjectTemplate(dbType)

	for _, dir := range tmpl.GetDirectoryStructure() {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	cfg := config.Default()
	cfg.Database.Provider = tmpl.Provider()
	if dbType != template.SQLite {
		cfg.Database.Path = ""
	}
	if err := cfg.Write(config.FileName); err != nil {
		return err
	}

	if _, err := os.Stat(cfg.SchemaPath); os.IsNotExist(err) {
		cwd, _ := os.Getwd()
		if err := os.WriteFile(cfg.SchemaPath, []byte(tmpl.GetSchema(filepath.Base(cwd))), 0644); err != nil {
			return fmt.Errorf("failed to write schema: %w", err)
		}
	}

	if env := tmpl.GetEnvTemplate(); env != "" {
		if _, err := os.Stat(".env"); os.IsNotExist(err) {
			if err := os.WriteFile(".env", []byte(env), 0644); err != nil {
				return fmt.Errorf("failed to write .env: %w", err)
			}
		}
	}

	color.Green("✅ FlashSeed project initialized")
	fmt.Printf("   Config: %s\n", config.FileName)
	fmt.Printf("   Schema: %s\n", cfg.SchemaPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("   flashseed validate")
	fmt.Println("   flashseed plan")
	fmt.Println("   flashseed generate --output csv")
	return nil
}
