package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"sage/internal/corpus"
	"sage/internal/indexer"
	"sage/internal/llm"
	"sage/internal/nlp"
	"sage/internal/vectorstore"
	"sage/internal/watch"
)

var watchCorpus bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Synchronize the document collection with the corpus directory",
	Long: `Scan CORPUS_DIR for Markdown and PDF documents and bring the vector
store in line with what is on disk: new and modified files are chunked,
scored, embedded and upserted; vanished files have their chunks removed.
Unchanged files are skipped using the saved index state.

With --watch the command keeps running and re-synchronizes whenever
files under the corpus directory change.`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVarP(&watchCorpus, "watch", "w", false, "keep watching the corpus and re-index on changes")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		return fmt.Errorf("failed to connect to vector store: %w", err)
	}

	cache, err := corpus.OpenCache(cfg.CacheFile())
	if err != nil {
		return fmt.Errorf("failed to open conversion cache: %w", err)
	}
	defer cache.Close()

	parser := nlp.NewClient(cfg.ParserBaseURL)
	sync := indexer.NewSynchronizer(
		store,
		llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.EmbeddingModelName, cfg.VectorSize),
		corpus.NewScanner(),
		corpus.NewConverter(cache),
		indexer.NewChunker(),
		indexer.NewScorer(parser),
		indexer.SyncConfig{
			CorpusDir:  cfg.CorpusDir,
			StateFile:  cfg.StateFile(),
			Collection: cfg.DocsCollection,
			VectorSize: cfg.VectorSize,
			HnswM:      cfg.HNSWM,
		},
	)

	var bar *progressbar.ProgressBar
	sync.Progress = func(processed, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("indexing"),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
			)
		}
		_ = bar.Set(processed)
	}

	if err := syncOnce(ctx, sync); err != nil {
		return err
	}

	if !watchCorpus {
		return nil
	}

	watcher := watch.New(cfg.CorpusDir, watch.DefaultDebounce, func(ctx context.Context) error {
		bar = nil
		return syncOnce(ctx, sync)
	})
	return watcher.Run(ctx)
}

func syncOnce(ctx context.Context, sync *indexer.Synchronizer) error {
	result, err := sync.Sync(ctx)
	if err != nil {
		return fmt.Errorf("index sync failed: %w", err)
	}

	fmt.Printf("scanned %d files: %d processed, %d deleted\n",
		result.FilesScanned, result.FilesProcessed, result.FilesDeleted)
	if result.ChunksUpserted > 0 {
		fmt.Printf("upserted %d chunks (avg %.0f chars, min %d, max %d)\n",
			result.ChunksUpserted, result.Stats.AvgSize(), result.Stats.MinSize, result.Stats.MaxSize)
	}
	if result.FailedBatches > 0 {
		fmt.Printf("warning: %d batches failed and were skipped\n", result.FailedBatches)
	}
	return nil
}
