package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jward/pennyone/internal/logging"
	"github.com/jward/pennyone/internal/relay"
	"github.com/jward/pennyone/internal/server"
)

var (
	flagAddr    string
	flagToken   string
	flagNoWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve [path]",
	Short: "Serve the matrix, telemetry and live relay",
	Long:  "Scans the project, then serves the HTTP API and WebSocket relay. File changes are re-analyzed and broadcast to observers until interrupted.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().StringVar(&flagToken, "token", "", "bearer token (default: random per run)")
	serveCmd.Flags().BoolVar(&flagNoWatch, "no-watch", false, "disable the file watcher")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := openEngine(args)
	if err != nil {
		return outputError("serve", err)
	}
	defer engine.Close()
	cfg := engine.Config()
	logger := logging.New(cfg.Logging, os.Stderr)

	if _, err := engine.Scan(ctx); err != nil && engine.Graph() == nil {
		return outputError("serve", fmt.Errorf("initial scan: %w", err))
	}

	hub := relay.NewHub(relay.WithHubLogger(logger))
	if !flagNoWatch {
		live := relay.NewLive(engine, hub, engine.ProjectID(), relay.WithLiveLogger(logger))
		w, err := relay.NewWatcher(engine.Root(), engine.Crawler(), live.Handler(ctx), cfg.Relay.Debounce, logger)
		if err != nil {
			return outputError("serve", fmt.Errorf("creating watcher: %w", err))
		}
		if err := w.Start(ctx); err != nil {
			return outputError("serve", fmt.Errorf("starting watcher: %w", err))
		}
		defer w.Stop()
	}

	srv := server.New(engine, hub, server.WithToken(flagToken), server.WithLogger(logger))
	addr := flagAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	fmt.Fprintf(os.Stderr, "Serving %s on http://%s (project %q)\n", engine.Root(), addr, engine.ProjectID())
	fmt.Fprintf(os.Stderr, "Token: %s\n", srv.Token())

	if err := srv.Run(ctx, addr); err != nil && ctx.Err() == nil {
		return outputError("serve", err)
	}
	return nil
}
