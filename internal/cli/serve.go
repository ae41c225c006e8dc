package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"ragchat/internal/adapter/index"
	"ragchat/internal/server"
	"ragchat/internal/session"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve conversations over HTTP",
	Long: `Start the HTTP API. Each conversation is a session created with
POST /api/v1/sessions; questions are posted to /api/v1/sessions/:id/ask.

After re-running 'ragchat ingest', POST /api/v1/index/reload switches the
server to the new index without a restart.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	rt, err := loadRuntime(cmd.Context(), cfg, GetRootDir())
	if err != nil {
		return err
	}
	defer rt.Close()

	if !rt.pipeline.Ready() {
		slog.Warn("API key not configured, questions will be rejected",
			"llm_env", cfg.LLM.APIKeyEnv, "embedding_env", cfg.Embedding.APIKeyEnv)
	}

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	srv := server.New(rt.pipeline, session.NewManager(), rt.holder, server.Options{
		RequestTimeout: time.Duration(cfg.Server.RequestTimeoutSecs) * time.Second,
		Logger:         slog.Default(),
		Reload: func(ctx context.Context) (*index.Index, error) {
			idx, _, err := rt.indexUC.Load(ctx, cfg.Ingest.Snapshot)
			return idx, err
		},
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(addr)
	}()

	fmt.Printf("Serving %d documents on %s\n", rt.holder.Current().Len(), addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
