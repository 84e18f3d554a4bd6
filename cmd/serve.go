package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/class-attendance/internal/capture"
	"github.com/kozaktomas/class-attendance/internal/match"
	"github.com/kozaktomas/class-attendance/internal/session"
	"github.com/kozaktomas/class-attendance/internal/web"
	"github.com/kozaktomas/class-attendance/internal/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance web server",
	Long: `Start the attendance web server.
The API serves the present view, roster management with enrollment,
absence reconciliation, CSV export and a live detection feed (SSE).
With --watch-dir the detection loop runs alongside the server and
publishes its notices to the feed.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().String("watch-dir", "", "Directory of camera frames to process while serving")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Printf("Connecting to PostgreSQL database...\n")
	b, err := connectBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.pool.Close()

	ledger, classifier, err := buildLedger(ctx, cfg, b)
	if err != nil {
		return err
	}
	locator, extractor := buildCaptureStack(cfg)
	feed := handlers.NewFeed()
	watchDir := mustGetString(cmd, "watch-dir")

	// The detection loop and the enrollment API share one candidate
	// index, so students enrolled while serving are matched right away.
	var index *match.Index
	if watchDir != "" {
		index = match.NewIndex()
	}

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(web.Deps{
		Ledger:     ledger,
		Classifier: classifier,
		Roster:     b.roster,
		Store:      b.attendance,
		Searcher:   b.roster,
		Thresholds: cfg.Match.Thresholds(),
		Locator:    locator,
		Extractor:  extractor,
		Index:      index,
		Feed:       feed,
	}, host, port)

	if watchDir != "" {
		runner := &session.Runner{
			Source:     capture.NewFolderSource(watchDir),
			Locator:    locator,
			Extractor:  extractor,
			Roster:     b.roster,
			Ledger:     ledger,
			Thresholds: cfg.Match.Thresholds(),
			Notifier:   feed,
			Index:      index,
		}
		go func() {
			if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
				fmt.Printf("Detection loop stopped: %v\n", err)
			}
		}()
		fmt.Printf("Watching %s for camera frames\n", watchDir)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting attendance API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
