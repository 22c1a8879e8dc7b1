package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yuanwm/soulnote/internal/api"
	"github.com/yuanwm/soulnote/internal/asr"
	"github.com/yuanwm/soulnote/internal/chat"
	"github.com/yuanwm/soulnote/internal/config"
	"github.com/yuanwm/soulnote/internal/parser"
	"github.com/yuanwm/soulnote/internal/pipeline"
	"github.com/yuanwm/soulnote/internal/storage"
	"github.com/yuanwm/soulnote/internal/zhipu"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the soulnote server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		mcpEnabled, _ := cmd.Flags().GetBool("mcp")
		return runServer(mcpEnabled)
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also expose the MCP surface over stdio")
}

func runServer(mcpEnabled bool) error {
	fmt.Fprintf(os.Stderr, "soulnote version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.Log.Level),
	})))

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}

	// Build the ingestion and conversational paths on one provider client.
	client := zhipu.New(zhipu.Config{
		APIKey:   cfg.Zhipu.APIKey,
		ChatURL:  cfg.Zhipu.ChatURL,
		ASRURL:   cfg.Zhipu.ASRURL,
		Model:    cfg.Zhipu.Model,
		ASRModel: cfg.Zhipu.ASRModel,
	})
	transcriber := asr.New(client)
	extractor := parser.New(client)
	ingestor := pipeline.NewIngestor(transcriber, extractor, store, cfg.Ingest.MaxAudioBytes)
	responder := chat.NewResponder(client, store)

	handler := api.NewHandler(api.Deps{
		Ingestor:      ingestor,
		Responder:     responder,
		Store:         store,
		MaxAudioBytes: cfg.Ingest.MaxAudioBytes,
		Version:       version,
		DataDir:       cfg.Storage.DataDir,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "soulnote listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if mcpEnabled {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Ingestor:  ingestor,
			Responder: responder,
			Store:     store,
			Recent:    store,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		g.Go(func() error {
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("mcp stdio server: %w", err)
			}
			return nil
		})
		slog.Info("MCP server started (stdio transport)")
	}

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func logLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
