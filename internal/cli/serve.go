package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mrcode/glucose-share/internal/app"
	"github.com/mrcode/glucose-share/internal/notifications"
	"github.com/mrcode/glucose-share/internal/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	serveHost   string
	servePort   int
	serveStatic string
	serveWatch  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP proxy",
	Long: `Starts a blocking HTTP server exposing the latest Dexcom reading.

Endpoints:
  GET  /api/glucose             latest reading
  GET  /api/graph?hours=2       readings for the last hours
  GET  /api/glucose/badge.png   badge image
  POST /api/alexa               Alexa skill endpoint
  GET  /health                  health check

Examples:
  glucose-share serve
  glucose-share serve --port 8080 --static ./public
  glucose-share serve --watch`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host address to bind to (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config and PORT)")
	serveCmd.Flags().StringVar(&serveStatic, "static", "", "Directory of static files to serve")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Also poll in the background and raise desktop alerts")
}

func runServe(cmd *cobra.Command, args []string) error {
	settings, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("host") {
		settings.Server.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		settings.Server.Port = servePort
	}
	if cmd.Flags().Changed("static") {
		settings.Server.StaticDir = serveStatic
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	client, err := newClient(settings, logger)
	if err != nil {
		return err
	}

	var watcher *app.Watcher
	cfg := server.Config{
		Host:        settings.Server.Host,
		Port:        settings.Server.Port,
		StaticDir:   settings.Server.StaticDir,
		Version:     Version,
		FormatValue: settings.FormatValue,
	}
	if serveWatch {
		interval := time.Duration(settings.RefreshInterval) * time.Second
		watcher = app.NewWatcher(client, notifications.NewManager(settings, nil), interval, logger)
		cfg.Watcher = watcher
	}

	srv, err := server.NewServer(cfg, client, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Bind before announcing so a busy port fails here
	if err := srv.Listen(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Glucose Share %s listening on %s\n", Version, srv.Address())
	fmt.Fprintf(cmd.ErrOrStderr(), "   Region: %s  Unit: %s\n", client.Region(), settings.Unit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})
	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
