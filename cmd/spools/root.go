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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teradata-labs/spool/internal/version"
)

var (
	cfgFile string
	config  *Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:     "spools",
	Short:   "Spool Server - Persistent developer memory with pattern learning",
	Long:    `Spool Server (spools) stores project-scoped developer memories in PostgreSQL with pgvector semantic search, and runs the background learning engine that mines coding patterns, meta insights, and outcome correlations from them.`,
	Version: version.Get(),
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $SPOOL_DATA_DIR/spool.yaml)")

	// Database flags
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string (overrides host/port/name fields)")
	rootCmd.PersistentFlags().String("db-host", "localhost", "PostgreSQL host")
	rootCmd.PersistentFlags().Int("db-port", 5432, "PostgreSQL port")
	rootCmd.PersistentFlags().String("db-name", "spool", "PostgreSQL database name")
	rootCmd.PersistentFlags().String("db-user", "spool", "PostgreSQL user")
	rootCmd.PersistentFlags().String("db-schema", "public", "PostgreSQL schema")

	// Embedding flags
	rootCmd.PersistentFlags().String("embedding-model", "", "embedding model name (default: registry default)")
	rootCmd.PersistentFlags().String("embedding-endpoint", "http://localhost:11434", "Ollama endpoint for local embeddings")

	// LLM flags
	rootCmd.PersistentFlags().Bool("llm", true, "enable LLM-augmented analysis (use --llm=false for rule-based only)")
	rootCmd.PersistentFlags().String("llm-provider", "ollama", "LLM provider (ollama, anthropic, bedrock)")
	rootCmd.PersistentFlags().String("llm-model", "", "LLM model override")
	rootCmd.PersistentFlags().String("anthropic-key", "", "Anthropic API key (or use keyring/env)")
	rootCmd.PersistentFlags().String("ollama-endpoint", "http://localhost:11434", "Ollama endpoint for LLM analysis")

	// Logging flags
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (console, json)")

	// Bind flags to viper
	_ = viper.BindPFlag("database.url", rootCmd.PersistentFlags().Lookup("database-url"))
	_ = viper.BindPFlag("database.host", rootCmd.PersistentFlags().Lookup("db-host"))
	_ = viper.BindPFlag("database.port", rootCmd.PersistentFlags().Lookup("db-port"))
	_ = viper.BindPFlag("database.name", rootCmd.PersistentFlags().Lookup("db-name"))
	_ = viper.BindPFlag("database.user", rootCmd.PersistentFlags().Lookup("db-user"))
	_ = viper.BindPFlag("database.schema", rootCmd.PersistentFlags().Lookup("db-schema"))

	_ = viper.BindPFlag("embedding.default_model", rootCmd.PersistentFlags().Lookup("embedding-model"))
	_ = viper.BindPFlag("embedding.ollama_endpoint", rootCmd.PersistentFlags().Lookup("embedding-endpoint"))

	_ = viper.BindPFlag("llm.enabled", rootCmd.PersistentFlags().Lookup("llm"))
	_ = viper.BindPFlag("llm.provider", rootCmd.PersistentFlags().Lookup("llm-provider"))
	_ = viper.BindPFlag("llm.model", rootCmd.PersistentFlags().Lookup("llm-model"))
	_ = viper.BindPFlag("llm.anthropic_api_key", rootCmd.PersistentFlags().Lookup("anthropic-key"))
	_ = viper.BindPFlag("llm.ollama_endpoint", rootCmd.PersistentFlags().Lookup("ollama-endpoint"))

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	var err error
	config, err = LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
}
