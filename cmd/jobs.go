package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/davidschrooten/catalog-search-sync/config"
	"github.com/davidschrooten/catalog-search-sync/internal/api"
)

// jobsCmd runs the scheduler with its status HTTP server
var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Run the synchronization scheduler",
	Long: `Run the background job scheduler. Incremental sync runs every five minutes
by default, full sync runs daily and weekly, and one full sync is triggered
eagerly at startup. A small HTTP server exposes health, status and manual
trigger endpoints.`,
	RunE: runJobs,
}

func init() {
	rootCmd.AddCommand(jobsCmd)

	jobsCmd.Flags().String("host", "0.0.0.0", "Host to bind the status server to")
	jobsCmd.Flags().Int("port", 8080, "Port to bind the status server to")

	viper.BindPFlag("server.host", jobsCmd.Flags().Lookup("host"))
	viper.BindPFlag("server.port", jobsCmd.Flags().Lookup("port"))
}

func runJobs(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	svcs, err := buildServices(cfg)
	if err != nil {
		return err
	}
	defer svcs.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SkipIfStillRunning guarantees at most one concurrent instance per job,
	// which the synchronizer itself does not guard against
	scheduler := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	addJob := func(name, spec string, run func(context.Context) error) error {
		_, err := scheduler.AddFunc(spec, func() {
			if err := run(ctx); err != nil {
				log.Printf("Job %s failed: %v", name, err)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule %s (%q): %w", name, spec, err)
		}
		log.Printf("Scheduled %s: %s", name, spec)
		return nil
	}

	incremental := func(ctx context.Context) error {
		_, err := svcs.syncer.IncrementalSync(ctx)
		return err
	}
	full := func(ctx context.Context) error {
		_, err := svcs.syncer.FullSync(ctx)
		return err
	}

	if err := addJob("incremental-sync", cfg.Sync.IncrementalCron, incremental); err != nil {
		return err
	}
	if err := addJob("full-sync-daily", cfg.Sync.FullDailyCron, full); err != nil {
		return err
	}
	if err := addJob("full-sync-weekly", cfg.Sync.FullWeeklyCron, full); err != nil {
		return err
	}

	scheduler.Start()
	defer func() {
		<-scheduler.Stop().Done()
	}()

	// Eager full sync on startup, off the scheduler's goroutines
	go func() {
		log.Println("Triggering initial full sync")
		if err := full(ctx); err != nil {
			log.Printf("Initial full sync failed: %v", err)
		}
	}()

	// Setup HTTP server
	apiServer := api.NewServer(svcs.syncer, svcs.watermarks)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting status server on %s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Status server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")

	// Cancel context to stop in-flight runs
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		return err
	}

	log.Println("Scheduler exited")
	return nil
}
