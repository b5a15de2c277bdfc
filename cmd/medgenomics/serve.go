package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof" // profiling endpoints under /debug/pprof
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/secureai/medgenomics/pkg/config"
	"github.com/secureai/medgenomics/pkg/events"
	"github.com/secureai/medgenomics/pkg/health"
	"github.com/secureai/medgenomics/pkg/intake"
	"github.com/secureai/medgenomics/pkg/metrics"
	"github.com/secureai/medgenomics/pkg/pipeline"
	"github.com/secureai/medgenomics/pkg/registry"
	"github.com/secureai/medgenomics/pkg/retention"
	"github.com/secureai/medgenomics/pkg/scanner"
	"github.com/secureai/medgenomics/pkg/store"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the intake service",
	Long: `Run the intake HTTP API, the scanning pipeline's worker pool, the
metrics collector, and the retention sweeper as one process.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "Path to a YAML config file (defaults to built-in defaults)")
	serveCmd.Flags().String("addr", "127.0.0.1:8090", "Intake API listen address")
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Metrics/health listen address")
	serveCmd.Flags().Bool("enable-pprof", false, "Enable pprof profiling endpoints on the metrics server")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	addr, _ := cmd.Flags().GetString("addr")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	pprofEnabled, _ := cmd.Flags().GetBool("enable-pprof")

	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %v", err)
		}
		cfg = loaded
	}
	if cfg.ServerSecret == "" {
		cfg.ServerSecret = os.Getenv("MEDGENOMICS_SERVER_SECRET")
	}
	if cfg.ServerSecret == "" {
		return fmt.Errorf("server_secret must be set (config file's server_secret or MEDGENOMICS_SERVER_SECRET)")
	}

	fmt.Println("Starting medgenomics intake service...")
	fmt.Printf("  Data directory: %s\n", cfg.DataDir)
	fmt.Printf("  Workers: %d, queue depth: %d\n", cfg.Workers, cfg.QueueDepth)

	st, err := store.Open(cfg.DataDir, []byte(cfg.ServerSecret))
	if err != nil {
		return fmt.Errorf("failed to open object store: %v", err)
	}
	defer st.Close()
	fmt.Println("✓ Object store opened")

	var model *scanner.Model
	modelLoaded := false
	if cfg.ModelPath != "" {
		m, err := scanner.LoadModel(cfg.ModelPath)
		if err != nil {
			fmt.Printf("  AML model not loaded (%v), AML stage will skip\n", err)
		} else {
			model = m
			modelLoaded = true
			fmt.Println("✓ AML model loaded")
		}
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	reg := registry.New(broker)

	exec := pipeline.NewExecutor(cfg, reg, st, model, nil)
	exec.Start()
	defer exec.Stop()
	fmt.Println("✓ Pipeline worker pool started")

	surface := intake.New(cfg, reg, exec, st)

	sweeper := retention.New(reg, st, broker, time.Duration(cfg.RetentionSeconds)*time.Second, time.Minute)
	sweeper.Start()
	defer sweeper.Stop()
	fmt.Println("✓ Retention sweeper started")

	collector := metrics.NewCollector(reg)
	collector.Start()
	defer collector.Stop()
	fmt.Println("✓ Metrics collector started")

	metrics.SetVersion(Version)
	metrics.RegisterComponent("store", true, "object store opened")
	metrics.RegisterComponent("metadb", true, "metadata index opened")
	metrics.RegisterComponent("model", modelLoaded, modelStatusMessage(modelLoaded))

	startHealthProbes(cfg, func() bool { return modelLoaded })

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	if pprofEnabled {
		mux.Handle("/debug/pprof/", http.DefaultServeMux)
	}

	metricsServer := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()
	fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", metricsAddr)
	fmt.Printf("  - Health check: http://%s/health\n", metricsAddr)
	fmt.Printf("  - Readiness:    http://%s/ready\n", metricsAddr)
	fmt.Printf("  - Liveness:     http://%s/live\n", metricsAddr)

	apiMux := http.NewServeMux()
	newAPIServer(surface).routes(apiMux)
	apiServer := &http.Server{Addr: addr, Handler: apiMux}
	errCh := make(chan error, 1)
	go func() {
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("API server error: %v", err)
		}
	}()
	fmt.Printf("✓ Intake API listening on http://%s\n", addr)
	fmt.Println()
	fmt.Println("medgenomics is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "\n%v\n", err)
	}

	_ = apiServer.Close()
	_ = metricsServer.Close()

	fmt.Println("✓ Shutdown complete")
	return nil
}

func modelStatusMessage(loaded bool) string {
	if loaded {
		return "loaded"
	}
	return "not configured, AML stage runs in skip mode"
}

// startHealthProbes registers periodic readiness probes and republishes
// their results through the metrics component registry.
func startHealthProbes(cfg config.Config, modelLoaded func() bool) {
	writable := health.NewStoreWritableChecker(filepath.Join(cfg.DataDir, "blobs"))
	metadb := health.NewMetaDBOpenableChecker(filepath.Join(cfg.DataDir, "meta.db"))
	model := health.NewModelLoadedChecker(modelLoaded)

	go func() {
		ctx := context.Background()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			storeRes := writable.Check(ctx)
			metrics.UpdateComponent("store", storeRes.Healthy, storeRes.Message)

			metadbRes := metadb.Check(ctx)
			metrics.UpdateComponent("metadb", metadbRes.Healthy, metadbRes.Message)

			modelRes := model.Check(ctx)
			metrics.UpdateComponent("model", modelRes.Healthy, modelRes.Message)
		}
	}()
}
