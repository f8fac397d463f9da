package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tunearr/tunearr/internal/config"
	"github.com/tunearr/tunearr/internal/database"
	"github.com/tunearr/tunearr/internal/dedup"
	"github.com/tunearr/tunearr/internal/downloader"
	"github.com/tunearr/tunearr/internal/extractor"
	internalhttp "github.com/tunearr/tunearr/internal/http"
	"github.com/tunearr/tunearr/internal/http/handlers"
	"github.com/tunearr/tunearr/internal/monitor"
	"github.com/tunearr/tunearr/internal/observability"
	"github.com/tunearr/tunearr/internal/repository"
	"github.com/tunearr/tunearr/internal/version"
	"github.com/tunearr/tunearr/pkg/httpclient"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tunearr server",
	Long: `Start the tunearr HTTP server and playlist monitor.

The server provides:
- REST API for managing playlists and downloads
- Scheduled playlist scans with automatic downloads
- Health check endpoint and OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("database", "tunearr.db", "Database file path")
	serveCmd.Flags().String("download-dir", "downloads", "Directory for completed MP3 files")

	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("database.dsn", serveCmd.Flags().Lookup("database"))
	viper.BindPFlag("storage.download_dir", serveCmd.Flags().Lookup("download-dir"))
}

func runServe(cmd *cobra.Command, args []string) error {
	// initConfig has already primed the global viper with defaults, the
	// config file, and TUNEARR_ env vars; bound flags layer on top.
	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("unmarshaling configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating configuration: %w", err)
	}

	logger := observability.NewLogger(cfg.Logging)
	observability.SetDefault(logger)

	logger.Info("starting tunearr",
		slog.String("version", version.Short()),
		slog.String("download_dir", cfg.Storage.DownloadDir),
	)

	if err := os.MkdirAll(cfg.Storage.DownloadDir, 0o755); err != nil {
		return fmt.Errorf("creating download directory: %w", err)
	}

	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	playlistRepo := repository.NewPlaylistRepository(db.DB)
	videoRepo := repository.NewVideoRepository(db.DB)

	// Cover-art fetches go through the resilient client so a flaky image
	// CDN cannot stall downloads.
	artClientCfg := httpclient.DefaultConfig()
	artClientCfg.Logger = logger
	artClient := httpclient.New(artClientCfg)

	ytdlp := extractor.NewYtDlp(cfg.Extractor, logger)
	tagger := extractor.NewTagger(artClient, logger)
	index := dedup.NewIndex(videoRepo, logger)

	executor := downloader.NewExecutor(ytdlp, tagger, index, videoRepo,
		cfg.Storage.DownloadDir, cfg.Monitor, logger)
	reconciler := monitor.NewReconciler(playlistRepo, videoRepo, ytdlp, executor, logger)
	scheduler := monitor.NewScheduler(reconciler, cfg.Monitor, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Monitor.ValidateOnStartup {
		if report, err := reconciler.ValidateDownloads(ctx); err != nil {
			logger.Warn("startup validation failed", slog.String("error", err.Error()))
		} else if report.FixedCount > 0 {
			logger.Info("startup validation queued re-downloads",
				slog.Int("fixed", report.FixedCount),
			)
		}
	}

	server := internalhttp.NewServer(internalhttp.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		CORSOrigins:     cfg.Server.CORSOrigins,
	}, logger, version.Version)

	api := server.API()
	handlers.NewStatusHandler(scheduler, playlistRepo, videoRepo,
		cfg.Monitor.CheckInterval.String(), cfg.Storage.DownloadDir, logger).Register(api)
	handlers.NewPlaylistHandler(playlistRepo, videoRepo, ytdlp, scheduler, logger).Register(api)
	handlers.NewDownloadsHandler(videoRepo, reconciler, logger).Register(api)
	handlers.NewHealthHandler(scheduler).Register(api)

	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer scheduler.Stop()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("running server: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}
