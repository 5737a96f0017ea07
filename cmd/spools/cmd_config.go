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
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	spoolconfig "github.com/teradata-labs/spool/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage Spool Server configuration",
	Long:  `Manage configuration files and secrets for Spool Server.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate example configuration file",
	Long:  `Generate an example spool.yaml configuration file in ~/.spool/`,
	Run:   runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the current configuration",
	Long:  `Validate the configuration merged from all sources (flags, file, environment, keyring).`,
	Run:   runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration (merged from all sources).`,
	Run:   runConfigShow,
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key [key-name]",
	Short: "Save a secret to the system keyring",
	Long: `Save a secret to the system keyring securely.

The secret will be stored in your system's secure credential storage
(Keychain on macOS, Credential Manager on Windows, Secret Service on Linux).

Run 'spools config list-keys' to see available key names.`,
	Args: cobra.ExactArgs(1),
	Run:  runConfigSetKey,
}

var configGetKeyCmd = &cobra.Command{
	Use:   "get-key [key-name]",
	Short: "Retrieve a secret from the system keyring",
	Long:  `Retrieve a secret from the system keyring (for verification).`,
	Args:  cobra.ExactArgs(1),
	Run:   runConfigGetKey,
}

var configDeleteKeyCmd = &cobra.Command{
	Use:   "delete-key [key-name]",
	Short: "Delete a secret from the system keyring",
	Long:  `Remove a secret from the system keyring.`,
	Args:  cobra.ExactArgs(1),
	Run:   runConfigDeleteKey,
}

var configListKeysCmd = &cobra.Command{
	Use:   "list-keys",
	Short: "List available secret keys",
	Long:  `List all available secret keys that can be stored in the keyring.`,
	Run:   runConfigListKeys,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetKeyCmd)
	configCmd.AddCommand(configGetKeyCmd)
	configCmd.AddCommand(configDeleteKeyCmd)
	configCmd.AddCommand(configListKeysCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	configDir := spoolconfig.GetSpoolDataDir()
	configPath := filepath.Join(configDir, DefaultConfigFileName+".yaml")

	if err := os.MkdirAll(configDir, 0750); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating config directory: %v\n", err)
		os.Exit(1)
	}

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config file already exists: %s\n", configPath)
		fmt.Print("Overwrite? (y/N): ")
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return
		}
	}

	if err := os.WriteFile(configPath, []byte(GenerateExampleConfig()), 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing config file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Config file created: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Create the database and save its connection string:")
	fmt.Println("   createdb spool")
	fmt.Println("   spools config set-key database_url")
	fmt.Println("2. Ensure Ollama is serving the embedding model:")
	fmt.Println("   ollama serve")
	fmt.Println("   ollama pull nomic-embed-text")
	fmt.Println("3. Apply the schema and start the daemon:")
	fmt.Println("   spools migrate up")
	fmt.Println("   spools serve")
	fmt.Println()
	fmt.Println("For Anthropic or Bedrock analysis, set llm.provider in the config and")
	fmt.Println("save credentials with 'spools config set-key' (see 'spools config list-keys').")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Configuration valid")
}

func runConfigSetKey(cmd *cobra.Command, args []string) {
	keyName := args[0]

	// Validate key name using extensible mapping
	availableKeys := ListAvailableSecretKeys()
	validKeys := make(map[string]bool)
	for _, k := range availableKeys {
		validKeys[k] = true
	}

	if !validKeys[keyName] {
		fmt.Fprintf(os.Stderr, "Invalid key name: %s\n", keyName)
		fmt.Fprintf(os.Stderr, "Available keys:\n")
		for _, k := range availableKeys {
			fmt.Fprintf(os.Stderr, "  - %s\n", k)
		}
		os.Exit(1)
	}

	// Read secret from stdin (without echo)
	fmt.Printf("Enter %s (input hidden): ", keyName)
	secretBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println() // New line after hidden input
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}

	secret := string(secretBytes)
	if secret == "" {
		fmt.Fprintf(os.Stderr, "Secret cannot be empty\n")
		os.Exit(1)
	}

	if err := SaveSecretToKeyring(keyName, secret); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving to keyring: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Saved %s to system keyring\n", keyName)
}

func runConfigGetKey(cmd *cobra.Command, args []string) {
	keyName := args[0]

	secret, err := GetSecretFromKeyring(keyName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error retrieving key: %v\n", err)
		fmt.Fprintf(os.Stderr, "Key not found in keyring. Set it with: spools config set-key %s\n", keyName)
		os.Exit(1)
	}

	// Show partially masked
	masked := maskSecret(secret)
	fmt.Printf("%s: %s\n", keyName, masked)
}

func runConfigDeleteKey(cmd *cobra.Command, args []string) {
	keyName := args[0]

	if err := DeleteSecretFromKeyring(keyName); err != nil {
		fmt.Fprintf(os.Stderr, "Error deleting key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Deleted %s from system keyring\n", keyName)
}

func runConfigShow(cmd *cobra.Command, args []string) {
	fmt.Println("Current Configuration:")
	fmt.Println("======================")
	fmt.Println()

	fmt.Println("Server:")
	fmt.Printf("  Worker Interval: %ds\n", config.Server.WorkerIntervalSeconds)
	fmt.Printf("  Worker Batch Size: %d\n", config.Server.WorkerBatchSize)
	fmt.Printf("  Status Interval: %ds\n", config.Server.StatusIntervalSeconds)
	fmt.Println()

	fmt.Println("Database:")
	if config.Database.URL != "" {
		fmt.Printf("  URL: %s\n", maskSecret(config.Database.URL))
	} else {
		fmt.Printf("  Host: %s:%d\n", config.Database.Host, config.Database.Port)
		fmt.Printf("  Name: %s\n", config.Database.Name)
		fmt.Printf("  User: %s\n", config.Database.User)
		if config.Database.Password != "" {
			fmt.Printf("  Password: %s\n", maskSecret(config.Database.Password))
		} else {
			fmt.Printf("  Password: (not set)\n")
		}
		fmt.Printf("  SSL Mode: %s\n", config.Database.SSLMode)
	}
	fmt.Printf("  Schema: %s\n", config.Database.Schema)
	fmt.Printf("  Auto Migrate: %t\n", config.Database.AutoMigrate)
	fmt.Println()

	fmt.Println("Embedding:")
	if config.Embedding.DefaultModel != "" {
		fmt.Printf("  Default Model: %s\n", config.Embedding.DefaultModel)
	} else {
		fmt.Printf("  Default Model: (registry default)\n")
	}
	fmt.Printf("  Ollama Endpoint: %s\n", config.Embedding.OllamaEndpoint)
	fmt.Printf("  Cache Size: %d\n", config.Embedding.CacheSize)
	fmt.Printf("  Bedrock Models: %t\n", config.Embedding.EnableBedrock)
	fmt.Println()

	fmt.Println("LLM:")
	fmt.Printf("  Enabled: %t\n", config.LLM.Enabled)
	if config.LLM.Enabled {
		fmt.Printf("  Provider: %s\n", config.LLM.Provider)
		switch config.LLM.Provider {
		case "anthropic":
			if config.LLM.AnthropicAPIKey != "" {
				fmt.Printf("  API Key: %s\n", maskSecret(config.LLM.AnthropicAPIKey))
			} else {
				fmt.Printf("  API Key: (not set)\n")
			}
		case "ollama":
			fmt.Printf("  Endpoint: %s\n", config.LLM.OllamaEndpoint)
		case "bedrock":
			fmt.Printf("  Region: %s\n", config.LLM.BedrockRegion)
			if config.LLM.BedrockProfile != "" {
				fmt.Printf("  Profile: %s\n", config.LLM.BedrockProfile)
			}
			if config.LLM.BedrockAccessKeyID != "" {
				fmt.Printf("  Access Key: %s\n", maskSecret(config.LLM.BedrockAccessKeyID))
			}
		}
		if config.LLM.Model != "" {
			fmt.Printf("  Model: %s\n", config.LLM.Model)
		}
		fmt.Printf("  Timeout: %ds\n", config.LLM.TimeoutSeconds)
	}
	fmt.Println()

	fmt.Println("Learning:")
	fmt.Printf("  Real-Time Enabled: %t\n", config.Learning.RealTime.Enabled)
	fmt.Printf("  Batch Size: %d\n", config.Learning.RealTime.BatchSize)
	fmt.Printf("  Trigger Threshold: %d\n", config.Learning.RealTime.TriggerThreshold)
	fmt.Printf("  Min Confidence: %.2f\n", config.Learning.RealTime.MinConfidence)
	fmt.Printf("  Scheduled Enabled: %t\n", config.Learning.Scheduled.Enabled)
	taskTypes := make([]string, 0, len(config.Learning.Scheduled.Intervals))
	for taskType := range config.Learning.Scheduled.Intervals {
		taskTypes = append(taskTypes, taskType)
	}
	sort.Strings(taskTypes)
	for _, taskType := range taskTypes {
		fmt.Printf("    %s: %q\n", taskType, config.Learning.Scheduled.Intervals[taskType])
	}
	fmt.Println()

	fmt.Println("Logging:")
	fmt.Printf("  Level: %s\n", config.Logging.Level)
	fmt.Printf("  Format: %s\n", config.Logging.Format)
	if config.Logging.File != "" {
		fmt.Printf("  File: %s\n", config.Logging.File)
	}
}

func runConfigListKeys(cmd *cobra.Command, args []string) {
	keys := ListAvailableSecretKeys()
	fmt.Println("Available secret keys:")
	fmt.Println("======================")
	for _, key := range keys {
		fmt.Printf("  - %s\n", key)
	}
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  spools config set-key <key-name>")
	fmt.Println("  spools config get-key <key-name>")
	fmt.Println("  spools config delete-key <key-name>")
}

// maskSecret masks a secret for display.
func maskSecret(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
