// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/pubmed-assistant/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat server",
	Long: `Serve starts the HTTP API. Create a session with POST /api/v1/sessions and
send messages to POST /api/v1/sessions/{id}/messages; answers stream back as
server-sent events. Sessions, their history and the articles they found are
kept in SQLite so they survive a restart.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(a.chatService(), a.fetcher, a.store, a.model,
		a.cfg.Agent, a.cfg.Server, a.log)

	ctx, stop := signal.NotifyContext(a.withLogger(context.Background()), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.model.Ping(ctx); err != nil {
		a.log.Warn("model server not reachable; requests will fail until it is",
			zap.String("model", a.model.Model()), zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	a.log.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		a.log.Error("error during shutdown", zap.Error(err))
		return err
	}
	a.log.Info("server stopped gracefully")
	return <-errCh
}

func init() {
	serveCmd.Flags().String("host", "", "listen host (default 127.0.0.1)")
	serveCmd.Flags().Int("port", 0, "listen port (default 8000)")
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))

	rootCmd.AddCommand(serveCmd)
}
