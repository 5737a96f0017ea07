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
	stdlog "log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/teradata-labs/spool/internal/log"
	"github.com/teradata-labs/spool/pkg/embedding"
	"github.com/teradata-labs/spool/pkg/learning"
	"github.com/teradata-labs/spool/pkg/llm"
	"github.com/teradata-labs/spool/pkg/llm/factory"
	"github.com/teradata-labs/spool/pkg/memory"
	"github.com/teradata-labs/spool/pkg/observability"
	"github.com/teradata-labs/spool/pkg/storage/postgres"
	"github.com/teradata-labs/spool/pkg/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Spool learning daemon",
	Long: `Start the Spool Server daemon.

The daemon will:
- Connect to PostgreSQL and apply pending migrations (unless disabled)
- Initialize the embedding client and optional LLM analyzer
- Seed the recurring analysis schedule into the task queue
- Process queued learning tasks on the configured worker interval

Press Ctrl+C to gracefully shutdown.`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// components is the wired Spool stack shared by the serve, tool, and status
// commands. The caller owns Backend.Close.
type components struct {
	backend  *postgres.Backend
	embedder *embedding.Client
	analyzer *llm.Client // nil when llm.enabled=false
	pipeline *learning.Pipeline
	registry *tools.Registry
}

// buildComponents wires storage, embedding, analysis, and the learning
// pipeline from the loaded config.
func buildComponents(ctx context.Context, config *Config, logger *zap.Logger, tracer observability.Tracer) (*components, error) {
	backend, err := postgres.NewBackend(ctx, config.PGConfig(), tracer)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	logger.Info("PostgreSQL connected",
		zap.String("host", config.Database.Host),
		zap.String("database", config.Database.Name),
		zap.String("schema", config.Database.Schema))

	embedder, err := buildEmbedder(config, tracer)
	if err != nil {
		backend.Close()
		return nil, err
	}
	defaultModel, err := embedder.ResolveModel("")
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("no usable embedding model: %w", err)
	}
	logger.Info("Embedding client initialized",
		zap.String("default_model", defaultModel.Name),
		zap.Int("dimensions", defaultModel.Dimensions),
		zap.String("provider", defaultModel.Provider))

	var analyzer *llm.Client
	if config.LLM.Enabled {
		provider, err := factory.NewProvider(config.FactoryConfig())
		if err != nil {
			backend.Close()
			return nil, fmt.Errorf("failed to create LLM provider: %w", err)
		}
		analyzer, err = llm.NewClient(llm.Config{
			Provider:     provider,
			DurableCache: backend.AnalysisCache(),
			CacheSize:    config.LLM.CacheSize,
			Timeout:      time.Duration(config.LLM.TimeoutSeconds) * time.Second,
			Logger:       logger.Named("llm"),
			Tracer:       tracer,
		})
		if err != nil {
			backend.Close()
			return nil, fmt.Errorf("failed to create LLM analyzer: %w", err)
		}
		logger.Info("LLM analyzer enabled",
			zap.String("provider", config.LLM.Provider),
			zap.String("model", provider.Model()))
	} else {
		logger.Info("LLM analysis disabled, learning runs rule-based only")
	}

	deps := learning.Deps{
		Memories: backend.Memories(),
		Patterns: backend.Patterns(),
		Insights: backend.Insights(),
		Outcomes: backend.Outcomes(),
		Queue:    backend.Queue(),
		Embedder: embedder,
		Logger:   logger.Named("learning"),
		Tracer:   tracer,
	}
	// A typed nil would defeat the pipeline's interface nil check.
	if analyzer != nil {
		deps.Analyzer = analyzer
	}
	pipeline, err := learning.NewPipeline(config.LearningConfig(), deps)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("failed to create learning pipeline: %w", err)
	}

	registry := tools.NewRegistry(logger.Named("tools"), tracer)
	registry.Register(tools.NewStoreMemoryTool(backend.Memories(), embedder, pipeline))
	registry.Register(tools.NewSearchMemoriesTool(backend.Memories(), embedder))
	registry.Register(tools.NewGetProjectsTool(backend.Memories()))
	registry.Register(tools.NewGetProjectSessionsTool(backend.Memories()))
	registry.Register(tools.NewGetInsightsTool(backend.Insights()))
	registry.Register(tools.NewGetCodingPatternsTool(backend.Patterns()))
	registry.Register(tools.NewRecordOutcomeTool(backend.Memories(), backend.Patterns(), pipeline.Correlator()))
	registry.Register(tools.NewTriggerAnalysisTool(backend.Memories(), pipeline.Correlator()))
	registry.Register(tools.NewLearningStatusTool(pipeline))

	return &components{
		backend:  backend,
		embedder: embedder,
		analyzer: analyzer,
		pipeline: pipeline,
		registry: registry,
	}, nil
}

// buildEmbedder assembles the model registry and provider adapters. Bedrock
// Titan models stay unavailable unless embedding.enable_bedrock is set.
func buildEmbedder(config *Config, tracer observability.Tracer) (*embedding.Client, error) {
	registry := embedding.DefaultRegistry()
	if config.Embedding.DefaultModel != "" {
		if _, ok := registry.Lookup(config.Embedding.DefaultModel); !ok {
			return nil, fmt.Errorf("unknown embedding model %q (known: nomic-embed-text, mxbai-embed-large, amazon.titan-embed-text-v2:0)", config.Embedding.DefaultModel)
		}
		for _, m := range registry.Models() {
			m.Default = m.Name == config.Embedding.DefaultModel
			registry.Add(m)
		}
	}

	providers := []embedding.Provider{
		embedding.NewOllamaProvider(config.Embedding.OllamaEndpoint),
	}
	if config.Embedding.EnableBedrock {
		bedrockProvider, err := embedding.NewBedrockProvider(embedding.BedrockConfig{
			Region:          config.LLM.BedrockRegion,
			AccessKeyID:     config.LLM.BedrockAccessKeyID,
			SecretAccessKey: config.LLM.BedrockSecretAccessKey,
			SessionToken:    config.LLM.BedrockSessionToken,
			Profile:         config.LLM.BedrockProfile,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Bedrock embedding provider: %w", err)
		}
		providers = append(providers, bedrockProvider)
		for _, m := range registry.Models() {
			if m.Provider == "bedrock" {
				registry.SetAvailable(m.Name, true)
			}
		}
	}

	return embedding.NewClient(embedding.Options{
		Registry:  registry,
		Providers: providers,
		CacheSize: config.Embedding.CacheSize,
		Tracer:    tracer,
	})
}

func runServe(cmd *cobra.Command, args []string) {
	if err := config.Validate(); err != nil {
		stdlog.Fatalf("Configuration validation failed: %v", err)
	}

	logger, err := log.Configure(config.Logging.Level, config.Logging.Format, config.Logging.File)
	if err != nil {
		stdlog.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting Spool Server", zap.String("version", rootCmd.Version))

	// Show actual config file used (not just the --config flag)
	configFileUsed := viper.ConfigFileUsed()
	if configFileUsed != "" {
		logger.Info("Config file loaded", zap.String("path", configFileUsed))
	} else {
		logger.Info("No config file found", zap.String("searched", "$SPOOL_DATA_DIR/spool.yaml, ./spool.yaml, /etc/spool/spool.yaml"))
		logger.Info("Using defaults + environment variables")
	}

	tracer := observability.NewNoOpTracer()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	comps, err := buildComponents(ctx, config, logger, tracer)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}

	if config.Database.AutoMigrate {
		if err := comps.backend.Migrate(ctx); err != nil {
			logger.Fatal("Failed to apply migrations", zap.Error(err))
		}
		version, err := comps.backend.Migrator().CurrentVersion(ctx)
		if err != nil {
			logger.Warn("Failed to read schema version", zap.Error(err))
		} else {
			logger.Info("Schema migrations applied", zap.Int("version", version))
		}
	} else {
		pending, err := comps.backend.Migrator().PendingMigrations(ctx)
		if err != nil {
			logger.Warn("Failed to check pending migrations", zap.Error(err))
		} else if len(pending) > 0 {
			logger.Warn("Schema has pending migrations (auto_migrate disabled)",
				zap.Int("pending", len(pending)))
		}
	}

	// Seed the recurring analyses so the queue always has the next run of
	// each scheduled task type.
	if err := comps.pipeline.InitScheduled(ctx); err != nil {
		logger.Fatal("Failed to seed scheduled tasks", zap.Error(err))
	}

	workerInterval := time.Duration(config.Server.WorkerIntervalSeconds) * time.Second
	logger.Info("Learning worker starting",
		zap.Duration("interval", workerInterval),
		zap.Int("batch_size", config.Server.WorkerBatchSize),
		zap.Int("tools", comps.registry.Count()))

	var wg sync.WaitGroup

	// First pass picks up tasks that came due while the daemon was down.
	if processed, err := comps.pipeline.ProcessQueue(ctx, config.Server.WorkerBatchSize); err != nil {
		logger.Warn("Initial queue pass failed", zap.Error(err))
	} else if processed > 0 {
		logger.Info("Initial queue pass complete", zap.Int("processed", processed))
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(workerInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				processed, err := comps.pipeline.ProcessQueue(ctx, config.Server.WorkerBatchSize)
				if err != nil {
					logger.Warn("Queue pass failed", zap.Error(err))
					continue
				}
				if processed > 0 {
					logger.Info("Queue pass complete", zap.Int("processed", processed))
				}
			}
		}
	}()

	if config.Server.StatusIntervalSeconds > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(time.Duration(config.Server.StatusIntervalSeconds) * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					status, err := comps.pipeline.Status(ctx)
					if err != nil {
						logger.Warn("Status check failed", zap.Error(err))
						continue
					}
					logger.Info("Learning engine status",
						zap.String("health", status.Health),
						zap.Int("pending", status.Queue[memory.StatusPending]),
						zap.Int("processing", status.Queue[memory.StatusProcessing]),
						zap.Int("completed_last_day", status.CompletedLastDay),
						zap.Int("failed_last_day", status.FailedLastDay),
						zap.Float64("coverage_percent", status.Coverage.Percent))
				}
			}
		}()
	}

	logger.Info("Ready to learn")

	// Handle graceful shutdown
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	<-sigch
	logger.Info("Shutting down gracefully... (press Ctrl+C again to force)")

	// Listen for second Ctrl+C (force shutdown)
	go func() {
		<-sigch
		logger.Warn("Force shutdown requested")
		os.Exit(1)
	}()

	cancel()

	// Wait for in-flight queue passes with a timeout. Interrupted tasks are
	// retried by the queue on the next run.
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("Workers stopped")
	case <-time.After(10 * time.Second):
		logger.Warn("Worker stop timeout after 10s, forcing shutdown")
	}

	comps.backend.Close()
	logger.Info("Shutdown complete")
}
