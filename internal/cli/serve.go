package cli

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

	"sage/internal/auth"
	"sage/internal/facts"
	"sage/internal/fusion"
	httpapi "sage/internal/http"
	"sage/internal/llm"
	"sage/internal/nlp"
	"sage/internal/retrieval"
	"sage/internal/service"
	"sage/internal/vectorstore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the websocket query API",
	Long: `Start the HTTP server exposing the streaming query protocol on
/ws/sage and a health probe on /health. The server ensures the history
and fact collections exist at startup; run "sage index" separately to
populate the document collection.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		return fmt.Errorf("failed to connect to vector store: %w", err)
	}

	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.EmbeddingModelName, cfg.VectorSize)
	chat := llm.NewClient(cfg.LLMBaseURL, cfg.LLMModelName, cfg.LLMTimeout)
	parser := nlp.NewClient(cfg.ParserBaseURL)

	retriever := retrieval.NewStore(store, embedder, retrieval.Config{
		DocsCollection:    cfg.DocsCollection,
		HistoryCollection: cfg.HistoryCollection,
		FactsCollection:   cfg.FactsCollection,
		VectorSize:        cfg.VectorSize,
		HnswM:             cfg.HNSWM,
		HnswEF:            cfg.HNSWEF,
	})
	if err := retriever.EnsureCollections(ctx); err != nil {
		return fmt.Errorf("failed to ensure collections: %w", err)
	}

	sources := fusion.DefaultSources()
	if cfg.SourcesFile != "" {
		if sources, err = fusion.LoadSources(cfg.SourcesFile); err != nil {
			return fmt.Errorf("failed to load sources table: %w", err)
		}
	}
	engine := fusion.NewEngine(parser, retriever, fusion.MockFetcher{}, sources)

	queries := service.NewQueryService(engine, retriever, chat, facts.NewExtractor(parser))

	users, err := auth.Open(cfg.AuthDBPath)
	if err != nil {
		return fmt.Errorf("failed to open user store: %w", err)
	}
	defer users.Close()

	srv := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: httpapi.NewRouter(&httpapi.Deps{Auth: users, Queries: queries}),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server listening", "port", cfg.APIPort, "model", cfg.LLMModelName)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
