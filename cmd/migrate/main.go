// Command migrate manages the CodeSherpa database schema.
//
// Usage:
//
//	migrate up              # Apply all pending migrations
//	migrate down            # Roll back the last migration
//	migrate down --all      # Roll back every migration
//	migrate version         # Show the current migration version
//	migrate to N            # Migrate to version N
//	migrate force N         # Force version N (fix a dirty state)
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"codesherpa/internal/database"
	"codesherpa/internal/logging"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var databaseURL string

var rootCmd = &cobra.Command{
	Use:          "migrate",
	Short:        "Manage the CodeSherpa database schema",
	SilenceUsage: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: withRunner(func(r *database.MigrationRunner, args []string) error {
		return r.Up()
	}),
}

var downAll bool

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the last migration",
	RunE: withRunner(func(r *database.MigrationRunner, args []string) error {
		if downAll {
			return r.Down()
		}
		return r.Steps(-1)
	}),
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the current migration version",
	RunE: withRunner(func(r *database.MigrationRunner, args []string) error {
		status, err := r.Version()
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(out))
		return nil
	}),
}

var toCmd = &cobra.Command{
	Use:   "to VERSION",
	Short: "Migrate up or down to a specific version",
	Args:  cobra.ExactArgs(1),
	RunE: withRunner(func(r *database.MigrationRunner, args []string) error {
		version, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version number: %s", args[0])
		}
		return r.To(uint(version))
	}),
}

var forceCmd = &cobra.Command{
	Use:   "force VERSION",
	Short: "Set the version without running migrations",
	Args:  cobra.ExactArgs(1),
	RunE: withRunner(func(r *database.MigrationRunner, args []string) error {
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version number: %s", args[0])
		}
		return r.Force(version)
	}),
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "database URL (defaults to $DATABASE_URL)")
	downCmd.Flags().BoolVar(&downAll, "all", false, "roll back every migration")
	rootCmd.AddCommand(upCmd, downCmd, versionCmd, toCmd, forceCmd)
}

func withRunner(fn func(*database.MigrationRunner, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		url := databaseURL
		if url == "" {
			url = os.Getenv("DATABASE_URL")
		}
		if url == "" {
			url = "sqlite://./codesherpa.db"
		}

		runner, err := database.NewMigrationRunner(&database.MigrationConfig{DatabaseURL: url})
		if err != nil {
			return err
		}
		defer runner.Close()

		logging.L().Info("running migration command",
			zap.String("command", cmd.Name()),
			zap.String("dialect", runner.Dialect()),
		)
		return fn(runner, args)
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		logging.L().Debug("no .env file found, using environment variables")
	}
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
