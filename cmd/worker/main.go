// Package main is the worker entry point.
package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	temporalactivity "go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"

	"github.com/tinkerloft/refinery/internal/activity"
	"github.com/tinkerloft/refinery/internal/artifact"
	internalclient "github.com/tinkerloft/refinery/internal/client"
	"github.com/tinkerloft/refinery/internal/codemetrics"
	"github.com/tinkerloft/refinery/internal/composition"
	"github.com/tinkerloft/refinery/internal/continuation"
	"github.com/tinkerloft/refinery/internal/discovery"
	"github.com/tinkerloft/refinery/internal/generator"
	"github.com/tinkerloft/refinery/internal/journal"
	"github.com/tinkerloft/refinery/internal/logging"
	"github.com/tinkerloft/refinery/internal/metrics"
	"github.com/tinkerloft/refinery/internal/pipeline"
	"github.com/tinkerloft/refinery/internal/quality"
	"github.com/tinkerloft/refinery/internal/version"
	"github.com/tinkerloft/refinery/internal/workflow"
)

func main() {
	// Validate configuration at startup
	configMode := activity.ConfigModeWarn
	if os.Getenv("REQUIRE_CONFIG") == "true" {
		configMode = activity.ConfigModeRequire
	}
	if err := activity.CheckConfig(configMode); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	// Get Temporal address
	temporalAddr := os.Getenv("TEMPORAL_ADDRESS")
	if temporalAddr == "" {
		temporalAddr = "localhost:7233"
	}

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort: temporalAddr,
		Logger:   logging.NewSlogAdapter(logger),
	})
	if err != nil {
		log.Fatalf("Failed to connect to Temporal: %v", err)
	}
	defer c.Close()

	log.Printf("Connected to Temporal at %s", temporalAddr)
	log.Printf("Task queue: %s", internalclient.TaskQueue)

	home := refineryHome()
	store := artifact.NewFSStore(filepath.Join(home, activity.DefaultArtifactsDirName))
	history := journal.NewStore(filepath.Join(home, activity.DefaultJournalDirName))

	modelType := os.Getenv("REFINERY_MODEL")
	if modelType == "" {
		modelType = activity.DefaultGenerationModel
	}

	// Create activities
	engineActivities := activity.NewEngineActivities(
		discovery.NewEngine(logger),
		composition.NewEngine(logger),
		quality.NewAssessor(logger),
		continuation.NewEngine(logger),
		generator.NewAnthropic(modelType, logger),
		store,
		pipeline.New(store, logger),
		version.NewManager(history),
		codemetrics.NewTracker(),
	)
	slackActivities := activity.NewSlackActivities()

	// Prometheus metrics, exposed on a sidecar listener
	registry := prometheus.NewRegistry()
	m := metrics.New()
	if err := metrics.RegisterWith(registry, m); err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}
	go serveMetrics(registry)

	// Create worker
	w := worker.New(c, internalclient.TaskQueue, worker.Options{
		Interceptors: []interceptor.WorkerInterceptor{metrics.NewInterceptor(m)},
	})

	// Register workflows
	w.RegisterWorkflow(workflow.Continuation)
	w.RegisterWorkflow(workflow.EnhancementCycle)

	// Register activities with explicit names to match workflow constants
	w.RegisterActivityWithOptions(engineActivities.DiscoverOpportunities, temporalactivity.RegisterOptions{Name: activity.ActivityDiscoverOpportunities})
	w.RegisterActivityWithOptions(engineActivities.ComposeOpportunities, temporalactivity.RegisterOptions{Name: activity.ActivityComposeOpportunities})
	w.RegisterActivityWithOptions(engineActivities.GenerateSolution, temporalactivity.RegisterOptions{Name: activity.ActivityGenerateSolution})
	w.RegisterActivityWithOptions(engineActivities.AssessSolution, temporalactivity.RegisterOptions{Name: activity.ActivityAssessSolution})
	w.RegisterActivityWithOptions(engineActivities.NextVersion, temporalactivity.RegisterOptions{Name: activity.ActivityNextVersion})
	w.RegisterActivityWithOptions(engineActivities.RecordEnhancement, temporalactivity.RegisterOptions{Name: activity.ActivityRecordEnhancement})
	w.RegisterActivityWithOptions(engineActivities.ExecuteEnhancement, temporalactivity.RegisterOptions{Name: activity.ActivityExecuteEnhancement})
	w.RegisterActivityWithOptions(engineActivities.MeasureImpact, temporalactivity.RegisterOptions{Name: activity.ActivityMeasureImpact})
	w.RegisterActivityWithOptions(engineActivities.DecideContinuation, temporalactivity.RegisterOptions{Name: activity.ActivityDecideContinuation})
	w.RegisterActivityWithOptions(engineActivities.GenerateContinuation, temporalactivity.RegisterOptions{Name: activity.ActivityGenerateContinuation})
	w.RegisterActivityWithOptions(engineActivities.RecordContinuationResult, temporalactivity.RegisterOptions{Name: activity.ActivityRecordContinuationResult})
	w.RegisterActivityWithOptions(engineActivities.EngineStatus, temporalactivity.RegisterOptions{Name: activity.ActivityEngineStatus})
	w.RegisterActivityWithOptions(slackActivities.NotifySlack, temporalactivity.RegisterOptions{Name: activity.ActivityNotifySlack})

	log.Println("Worker started. Press Ctrl+C to stop.")

	// Run worker - Temporal's InterruptCh handles graceful shutdown
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("Worker failed: %v", err)
	}

	log.Println("Worker stopped")
}

// refineryHome resolves the state directory, REFINERY_HOME overrides the
// default of ~/.refinery.
func refineryHome() string {
	if home := os.Getenv("REFINERY_HOME"); home != "" {
		return home
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return activity.DefaultHomeDirName
	}
	return filepath.Join(userHome, activity.DefaultHomeDirName)
}

func serveMetrics(registry *prometheus.Registry) {
	addr := os.Getenv("METRICS_ADDR")
	if addr == "" {
		addr = ":9091"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("metrics listener failed: %v", err)
	}
}
