package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hikevindiaz/voicebridge/cmd/voicebridge/internal/config"
	"github.com/hikevindiaz/voicebridge/pkg/audio"
	"github.com/hikevindiaz/voicebridge/pkg/bridge"
	"github.com/hikevindiaz/voicebridge/pkg/elevenlabs"
	"github.com/hikevindiaz/voicebridge/pkg/mediastream"
	"github.com/hikevindiaz/voicebridge/pkg/realtime"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the voice session bridge server",
	Long: `Run the voice session bridge server.

The server exposes three HTTP surfaces on one listener:

  /media            telephony media stream WebSocket endpoint
  /admin/sessions   live session listing and forced hangup
  /healthz          liveness probe`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(serveConfigPath)
		if err != nil {
			return err
		}
		return runServe(cmd.Context(), cfg)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "f", "config.yaml", "config file path")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context, cfg *config.Config) error {
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	var modelOpts []realtime.Option
	if cfg.Model.URL != "" {
		modelOpts = append(modelOpts, realtime.WithURL(cfg.Model.URL))
	}
	modelClient := realtime.NewClient(cfg.Model.APIKey, modelOpts...)

	var tts *elevenlabs.Client
	if cfg.TTS.APIKey != "" {
		var ttsOpts []elevenlabs.Option
		if cfg.TTS.BaseURL != "" {
			ttsOpts = append(ttsOpts, elevenlabs.WithBaseURL(cfg.TTS.BaseURL))
		}
		tts = elevenlabs.NewClient(cfg.TTS.APIKey, ttsOpts...)
	} else {
		logger.Warn("no TTS key configured, fallback synthesis disabled")
	}

	var sink *bridge.WebhookEmitter
	if cfg.TranscriptURL != "" {
		sink = bridge.NewWebhookEmitter(cfg.TranscriptURL)
	}

	var emitter bridge.TranscriptEmitter
	var outbox *bridge.Outbox
	switch {
	case cfg.OutboxDir != "":
		outbox, err = bridge.NewOutbox(bridge.OutboxOptions{Dir: cfg.OutboxDir})
		if err != nil {
			return err
		}
		defer outbox.Close()
		emitter = outbox
		if sink == nil {
			logger.Warn("outbox configured without transcript_url, an external process must drain it")
		}
	case sink != nil:
		emitter = sink
	}

	modelOutput := audio.ULaw8K
	if cfg.Model.OutputFormat == "pcm16" {
		modelOutput = audio.PCM16x24K
	}

	mediaServer := mediastream.NewServer(mediastream.ServerConfig{Logger: logger})
	b := bridge.NewBridge(bridge.BridgeConfig{
		Server:         mediaServer,
		Resolver:       bridge.NewHTTPResolver(cfg.ResolverURL),
		Model:          modelClient,
		TTS:            tts,
		DefaultVoiceID: cfg.TTS.DefaultVoice,
		ModelOutput:    modelOutput,
		Emitter:        emitter,
		Logger:         logger,
	})

	mux := http.NewServeMux()
	mux.Handle("/media", mediaServer)
	mux.Handle("/admin/", bridge.AdminHandler(b.Registry()))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})

	httpServer := &http.Server{Addr: cfg.Listen, Handler: mux}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if outbox != nil && sink != nil {
		go drainOutbox(ctx, outbox, sink, logger)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("listening", "addr", cfg.Listen)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		errCh <- b.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := b.Shutdown(shutdownCtx); err != nil {
		logger.Warn("bridge shutdown", "error", err)
	}
	if outbox != nil && sink != nil {
		if _, err := outbox.Drain(shutdownCtx, sink); err != nil {
			logger.Warn("final outbox drain", "error", err)
		}
	}
	return httpServer.Shutdown(shutdownCtx)
}

// drainOutbox periodically delivers spooled transcript turns to the
// platform. Turns that fail to deliver stay queued for the next pass.
func drainOutbox(ctx context.Context, outbox *bridge.Outbox, sink bridge.TranscriptEmitter, logger *slog.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := outbox.Drain(ctx, sink)
			if err != nil {
				logger.Warn("outbox drain", "error", err, "delivered", n)
			} else if n > 0 {
				logger.Debug("outbox drained", "delivered", n)
			}
		}
	}
}
