// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teradata-labs/spool/pkg/observability"
	"github.com/teradata-labs/spool/pkg/storage/postgres"
)

var migrateDownSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the PostgreSQL schema",
	Long:  `Apply, roll back, and inspect Spool's schema migrations.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Run:   runMigrateUp,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back applied migrations",
	Long: `Roll back the most recent migrations.

Rolling back drops the tables those migrations created, including their
data. Use --steps to roll back more than one migration.`,
	Run: runMigrateDown,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show schema version and pending migrations",
	Run:   runMigrateStatus,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)

	migrateDownCmd.Flags().IntVar(&migrateDownSteps, "steps", 1, "number of migrations to roll back")
}

// openBackend connects to PostgreSQL for the migrate subcommands.
func openBackend(ctx context.Context) *postgres.Backend {
	backend, err := postgres.NewBackend(ctx, config.PGConfig(), observability.NewNoOpTracer())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to postgres: %v\n", err)
		os.Exit(1)
	}
	return backend
}

func runMigrateUp(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	backend := openBackend(ctx)
	defer backend.Close()

	pending, err := backend.Migrator().PendingMigrations(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error checking migrations: %v\n", err)
		os.Exit(1)
	}
	if len(pending) == 0 {
		fmt.Println("Schema is up to date.")
		return
	}

	if err := backend.Migrate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error applying migrations: %v\n", err)
		os.Exit(1)
	}

	version, err := backend.Migrator().CurrentVersion(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading schema version: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Applied %d migration(s), schema at version %d\n", len(pending), version)
}

func runMigrateDown(cmd *cobra.Command, args []string) {
	if migrateDownSteps < 1 {
		fmt.Fprintf(os.Stderr, "Error: --steps must be at least 1\n")
		os.Exit(1)
	}

	ctx := context.Background()
	backend := openBackend(ctx)
	defer backend.Close()

	version, err := backend.Migrator().CurrentVersion(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading schema version: %v\n", err)
		os.Exit(1)
	}
	if version == 0 {
		fmt.Println("No migrations applied, nothing to roll back.")
		return
	}

	fmt.Printf("Rolling back %d migration(s) from version %d drops their tables and data.\n", migrateDownSteps, version)
	fmt.Print("Continue? (y/N): ")
	var response string
	_, _ = fmt.Scanln(&response)
	if response != "y" && response != "Y" {
		fmt.Println("Aborted.")
		return
	}

	if err := backend.Migrator().MigrateDown(ctx, migrateDownSteps); err != nil {
		fmt.Fprintf(os.Stderr, "Error rolling back migrations: %v\n", err)
		os.Exit(1)
	}

	version, err = backend.Migrator().CurrentVersion(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading schema version: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Rolled back, schema at version %d\n", version)
}

func runMigrateStatus(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	backend := openBackend(ctx)
	defer backend.Close()

	version, err := backend.Migrator().CurrentVersion(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading schema version: %v\n", err)
		os.Exit(1)
	}
	pending, err := backend.Migrator().PendingMigrations(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error checking migrations: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Schema version: %d\n", version)
	if len(pending) == 0 {
		fmt.Println("Pending migrations: none")
		return
	}
	fmt.Printf("Pending migrations: %d\n", len(pending))
	for _, m := range pending {
		fmt.Printf("  %d: %s\n", m.Version, m.Description)
	}
}
