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

var toolArgs string

var toolCmd = &cobra.Command{
	Use:   "tool [name]",
	Short: "Execute a single tool call",
	Long: `Execute one tool call against the Spool store and print the result as JSON.

Available tools:
  store_memory              Store a memory with its embedding
  search_memories           Semantic search over stored memories
  get_projects              List known projects
  get_project_sessions      List sessions for a project
  get_insights              List synthesized insights
  get_coding_patterns       List mined coding patterns
  record_pattern_outcome    Record a pattern's real-world outcome
  trigger_outcome_analysis  Enqueue analysis for a project event
  get_learning_status       Report the learning engine snapshot

Arguments are passed as a JSON object:
  spools tool store_memory --args '{"project_name":"api","content":"prefer pgx over database/sql"}'
  spools tool search_memories --args '{"query":"connection pooling"}'`,
	Args: cobra.ExactArgs(1),
	Run:  runTool,
}

func init() {
	rootCmd.AddCommand(toolCmd)
	toolCmd.Flags().StringVar(&toolArgs, "args", "{}", "tool arguments as a JSON object")
}

func runTool(cmd *cobra.Command, args []string) {
	toolName := args[0]

	var params map[string]interface{}
	if err := json.Unmarshal([]byte(toolArgs), &params); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing --args: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr; stdout carries only the result JSON.
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

	result := comps.registry.Execute(ctx, toolName, params)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding result: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	if !result.Success {
		comps.backend.Close()
		os.Exit(1)
	}
}
