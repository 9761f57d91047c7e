package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperjump/tutor/internal/server"
	"github.com/hyperjump/tutor/internal/watcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// serveWarm loads the index in the background at startup instead of on first request
	serveWarm bool
	// serveWatch overrides corpus.watch
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API. The embedding model and index are loaded on the first request
(or right away with --warm); when no snapshot exists the index is rebuilt from the
first corpus directory that holds documents.

Examples:
  tutor serve
  tutor serve --warm --watch`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveWarm, "warm", false, "Load the index in the background at startup")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Ingest documents added to the corpus directories (overrides corpus.watch)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize components", zap.Error(err))
		return err
	}
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if serveWarm {
		go func() {
			if _, err := components.Manager.EnsureReady(ctx); err != nil {
				logger.Warn("warm start failed; will retry on first request", zap.Error(err))
			}
		}()
	}

	var watchSvc *watcher.Watcher
	if cfg.Corpus.Watch || serveWatch {
		watchSvc = watcher.New(
			cfg.Corpus.CandidateDirs,
			cfg.Corpus.Extensions,
			watcher.IngestBatch(ctx, components.Ingestor, components.Manager, logger),
			watcher.WithLogger(logger),
		)
		if err := watchSvc.Start(ctx); err != nil {
			logger.Error("failed to start watcher", zap.Error(err))
			return err
		}
		defer watchSvc.Stop()
		logger.Info("watching corpus directories", zap.Strings("dirs", watchSvc.Directories()))
	}

	srv := server.NewServer(
		components.Answers,
		components.Assistant,
		components.Retriever,
		components.Ingestor,
		components.Manager,
		components.Sessions,
		components.Catalog,
		cfg,
		logger,
	)
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-serveErr:
		if err != nil {
			logger.Error("server failed", zap.Error(err))
			return err
		}
	}

	logger.Info("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Stop(shutdownCtx)
}
