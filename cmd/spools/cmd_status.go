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
	"encoding/json"
	"fmt"
	stdlog "log"
	"os"

	"github.com/spf13/cobra"

	"github.com/teradata-labs/spool/internal/log"
	"github.com/teradata-labs/spool/pkg/observability"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the learning engine status",
	Long: `Print a snapshot of the learning engine as JSON: queue depth by state,
per-task-type activity, pattern and insight aggregates, analysis coverage,
and a health classification.`,
	Run: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	// Logs go to stderr; stdout carries only the status JSON.
	logger, err := log.Configure(config.Logging.Level, config.Logging.Format, config.Logging.File)
	if err != nil {
		stdlog.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	comps, err := buildComponents(ctx, config, logger, observability.NewNoOpTracer())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing: %v\n", err)
		os.Exit(1)
	}
	defer comps.backend.Close()

	status, err := comps.pipeline.Status(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading status: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding status: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
