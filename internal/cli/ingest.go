package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"ragchat/config"
	"ragchat/internal/adapter/index"
	"ragchat/internal/adapter/source"
	"ragchat/internal/adapter/store"
	"ragchat/internal/domain"
	"ragchat/internal/usecase"
)

var ingestSnapshot string

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Build the vector index from JSONL documents",
	Long: `Embed every document found under path (a directory or a single file) and
store the resulting index in .ragchat/index.db within the data directory.

Each JSONL line is a record of the form {"text": "...", "source": "..."}.
Malformed lines are skipped with a warning. Any embedding failure aborts the
build and leaves the previous index untouched.

Examples:
  ragchat ingest                      # Files matching ingest.includes in the data dir
  ragchat ingest train_data.jsonl     # A single file`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestSnapshot, "snapshot", "", "snapshot name (default from config)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	dir := GetRootDir()
	path := dir
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}

	cfg := GetConfig()
	name := cfg.Ingest.Snapshot
	if ingestSnapshot != "" {
		name = ingestSnapshot
	}

	emb, _, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	if emb == nil {
		fmt.Println("Please paste your OpenAI key to use: set " + cfg.Embedding.APIKeyEnv + " in the environment or in .env")
		return fmt.Errorf("embedding: %w", domain.ErrCredentialMissing)
	}

	metric, err := index.ParseMetric(cfg.Retrieve.Metric)
	if err != nil {
		return err
	}

	if err := config.EnsureDataDir(dir); err != nil {
		return fmt.Errorf("failed to create .ragchat directory: %w", err)
	}

	dbPath := config.IndexDBPath(dir)
	st, err := store.NewBoltStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open index store: %w", err)
	}
	defer st.Close()

	migrationResult, err := st.CheckMigration(cfg)
	if err != nil {
		return fmt.Errorf("failed to check migration: %w", err)
	}
	rebuild := migrationResult.NeedsRebuild
	if rebuild {
		fmt.Printf("Index rebuild required: %s\n", migrationResult.Reason)
		fmt.Println("Existing snapshots will be replaced once the new index is built.")
	} else if migrationResult.NeedsMigration {
		fmt.Printf("Running schema migration: %s\n", migrationResult.Reason)
	}

	src := source.NewJSONLSource(path, cfg.Ingest.Includes, cfg.Ingest.Excludes)
	indexUC := usecase.NewIndexUseCase(st, emb, metric, cfg.Ingest.BatchSize, nil)

	fmt.Printf("Scanning %s...\n", path)

	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	var startTime time.Time

	progress := func(done, total int) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}

		bar.Set(done)

		if done > 0 && done < total {
			elapsed := time.Since(startTime)
			rate := float64(done) / elapsed.Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-done)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Embedding[reset] ETA: %s", formatDuration(eta)))
			}
		}
	}

	build := indexUC.Build
	if rebuild {
		build = indexUC.Rebuild
	}
	_, result, err := build(cmd.Context(), src, name, progress)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	if err := st.Migrate(cfg); err != nil {
		return fmt.Errorf("failed to update schema info: %w", err)
	}

	fmt.Printf("\nIngest complete:\n")
	fmt.Printf("  Documents:  %d\n", result.Documents)
	fmt.Printf("  Dimension:  %d\n", result.Dimension)
	fmt.Printf("  Metric:     %s\n", metric)
	fmt.Printf("  Model:      %s (%s)\n", emb.ModelName(), cfg.Embedding.Provider)
	fmt.Printf("  Snapshot:   %s (%d bytes)\n", result.Snapshot, result.Size)
	fmt.Printf("  Took:       %s\n", formatDuration(result.Duration))
	fmt.Printf("\nIndex stored at: %s\n", dbPath)
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
