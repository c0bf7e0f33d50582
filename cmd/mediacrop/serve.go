package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/heimdex/mediacrop/internal/api"
	"github.com/heimdex/mediacrop/internal/config"
	"github.com/heimdex/mediacrop/internal/db"
	"github.com/heimdex/mediacrop/internal/editor"
	"github.com/heimdex/mediacrop/internal/engine"
	"github.com/heimdex/mediacrop/internal/handle"
	"github.com/heimdex/mediacrop/internal/history"
	"github.com/heimdex/mediacrop/internal/logging"
	"github.com/heimdex/mediacrop/internal/playback"
	"github.com/heimdex/mediacrop/internal/scratch"
	"github.com/heimdex/mediacrop/internal/ui"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	headless bool
	open     bool
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local editor agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.headless, "headless", false, "Run without the system tray")
	cmd.Flags().BoolVar(&opts.open, "open", false, "Open the editor in a browser once started")
	return cmd
}

func runServe(parent context.Context, cc *commandContext, opts serveOptions, stdout io.Writer) error {
	startTime := time.Now()

	cfg, err := cc.ensureConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cc.logLevel(cfg.LogLevel()))
	logger.Info("starting mediacrop",
		"version", config.Version,
		"data_dir", logging.SanitizePath(cfg.DataDir()),
		"config", cfg.Source(),
	)

	scr, err := scratch.Open(cfg.ScratchDir(), logger)
	if err != nil {
		return fmt.Errorf("failed to open scratch dir: %w", err)
	}
	defer func() {
		if err := scr.Close(); err != nil {
			logger.Error("failed to clean scratch dir", "error", err)
		}
	}()

	database, err := db.New(cfg.HistoryPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	hist := history.NewLog(history.NewRepository(database.Conn()), logger)
	registry := handle.NewRegistry(logging.WithComponent(logger, "handles"))

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	ffmpeg := engine.NewFFmpeg(engine.Config{
		BinaryPath:  cfg.FFmpegPath(),
		WorkDir:     scr.Engine(),
		InitTimeout: cfg.EngineInitTimeout(),
		Logger:      logging.WithComponent(logger, "engine"),
	})
	go func() {
		if err := ffmpeg.Initialize(ctx); err != nil {
			logger.Error("processing engine unavailable, export disabled", "error", err)
			return
		}
		logger.Info("processing engine ready", "version", ffmpeg.Version())
	}()

	var prober engine.Prober
	if fp, err := engine.NewFFprobe(cfg.FFprobePath()); err != nil {
		logger.Warn("ffprobe unavailable, media metadata disabled", "error", err)
	} else {
		prober = fp
	}

	store := editor.NewStore(ctx, editor.Deps{
		Registry:  registry,
		Engine:    ffmpeg,
		Log:       hist,
		OutputDir: scr.Exports(),
		Logger:    logger,
	})

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", cfg.Port()))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		Store:          store,
		Registry:       registry,
		Engine:         ffmpeg,
		Prober:         prober,
		MediaServer:    playback.NewServer(logger),
		History:        hist,
		UploadDir:      scr.Uploads(),
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Logger:         logger,
		StartTime:      startTime,
		Version:        config.Version,
	})

	editorURL := "http://" + ln.Addr().String() + "/"
	printBanner(stdout, editorURL, cfg)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- apiServer.Start(ln)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	quitCh := make(chan struct{})
	quit := func() {
		select {
		case <-quitCh:
		default:
			close(quitCh)
		}
	}

	openEditor := func() error {
		return ui.OpenBrowser(editorURL)
	}

	if opts.headless || cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Logger: logger,
			Status: func() ui.Status {
				es := api.EngineStatus(ffmpeg)
				return ui.Status{
					EngineState:    es.State,
					EngineError:    es.Error,
					Sessions:       store.Len(),
					ExportsRunning: store.Exporting(),
				}
			},
			OnOpenEditor: openEditor,
			OnQuit:       quit,
		})
		go tray.Run()
	}

	if opts.open {
		if err := openEditor(); err != nil {
			logger.Warn("failed to open browser", "error", err)
		}
	}

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case <-quitCh:
	case <-parent.Done():
	case runErr = <-serveErr:
		if runErr != nil {
			logger.Error("HTTP server error", "error", runErr)
		}
	}

	logger.Info("initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	store.Close()
	cancel()

	stats := registry.Stats()
	logger.Info("shutdown complete",
		"handles_allocated", stats.Allocated,
		"handles_released", stats.Released,
		"handles_live", stats.Live,
	)
	return runErr
}

func printBanner(w io.Writer, editorURL string, cfg config.Config) {
	p := newPainter(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, p.title(fmt.Sprintf("MEDIACROP v%s", config.Version)))
	fmt.Fprintf(w, "  Editor:     %s\n", p.ok(editorURL))
	fmt.Fprintf(w, "  Data dir:   %s\n", logging.SanitizePath(cfg.DataDir()))
	fmt.Fprintf(w, "  Max upload: %s\n", humanizeBytes(cfg.MaxUploadBytes()))
	fmt.Fprintln(w)
}
