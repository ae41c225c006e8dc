package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"ragchat/config"
	"ragchat/internal/adapter/embedding"
	"ragchat/internal/adapter/index"
	"ragchat/internal/adapter/store"
	"ragchat/internal/port"
	"ragchat/internal/usecase"
)

// evalCase is one line of the eval file: a question and the source of the
// passage that should answer it.
type evalCase struct {
	Question string `json:"question"`
	Source   string `json:"source"`
}

func main() {
	dir := flag.String("dir", ".", "data directory holding .ragchat/index.db")
	evalPath := flag.String("eval", "", "JSONL file of {\"question\", \"source\"} lines")
	topK := flag.Int("k", 4, "number of results per question")
	verbose := flag.Bool("v", false, "print every question")
	flag.Parse()

	if *evalPath == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir ./data -eval eval.jsonl [-k 4]")
		fmt.Println("\nReports, over every eval question:")
		fmt.Println("  hit@k  share of questions whose expected source is retrieved")
		fmt.Println("  MRR    mean reciprocal rank of the expected source")
		os.Exit(1)
	}

	_ = godotenv.Load(*dir + "/.env")

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	cases, err := readCases(*evalPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading eval file: %v\n", err)
		os.Exit(1)
	}
	if len(cases) == 0 {
		fmt.Fprintln(os.Stderr, "Eval file has no cases")
		os.Exit(1)
	}

	st, err := store.NewBoltStore(config.IndexDBPath(*dir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening index: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	embedder, err := setupEmbedding(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedding not available: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	metric, err := index.ParseMetric(cfg.Retrieve.Metric)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	idx, info, err := usecase.NewIndexUseCase(st, embedder, metric, cfg.Ingest.BatchSize, nil).Load(ctx, cfg.Ingest.Snapshot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading index: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Documents: %d\n", idx.Len())
	fmt.Printf("Model:     %s (%s)\n", info.Model, cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d, metric %s\n", idx.Dimension(), idx.Metric())
	fmt.Printf("Questions: %d, k=%d\n", len(cases), *topK)
	fmt.Println(strings.Repeat("-", 70))

	questions := make([]string, len(cases))
	for i, c := range cases {
		questions[i] = c.Question
	}
	vectors, err := embedder.Embed(ctx, questions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedding error: %v\n", err)
		os.Exit(1)
	}

	hits := 0
	rrSum := 0.0
	topScore := 0.0
	for i, c := range cases {
		results, err := idx.Query(vectors[i], *topK)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
			os.Exit(1)
		}

		rank := 0
		for j, r := range results {
			if r.Document.SourceID == c.Source {
				rank = j + 1
				break
			}
		}
		if rank > 0 {
			hits++
			rrSum += 1 / float64(rank)
		}
		if len(results) > 0 {
			topScore += results[0].Score
		}

		if *verbose {
			mark := "MISS"
			if rank > 0 {
				mark = fmt.Sprintf("@%d", rank)
			}
			fmt.Printf("[%-4s] %s\n", mark, c.Question)
		}
	}

	n := float64(len(cases))
	hitRate := float64(hits) / n
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  hit@%d:              %.3f (%d/%d)\n", *topK, hitRate, hits, len(cases))
	fmt.Printf("  MRR:                %.3f\n", rrSum/n)
	fmt.Printf("  Mean top-1 score:   %.3f\n", topScore/n)

	if hitRate > 0.8 {
		fmt.Println("  Status: GOOD - retrieval finds the expected passages")
	} else if hitRate > 0.5 {
		fmt.Println("  Status: OK - consider a larger k or a better embedding model")
	} else {
		fmt.Println("  Status: POOR - may need better embeddings or re-ingesting")
	}
}

func readCases(path string) ([]evalCase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cases []evalCase
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var c evalCase
		if err := json.Unmarshal([]byte(text), &c); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if c.Question == "" {
			return nil, fmt.Errorf("line %d: missing question", line)
		}
		cases = append(cases, c)
	}
	return cases, scanner.Err()
}

func setupEmbedding(cfg *config.Config) (port.Embedder, error) {
	ec := cfg.Embedding
	if ec.Provider == "hash" || ec.Provider == "mock" {
		return embedding.NewHashEmbedder(ec.Dimension), nil
	}
	return embedding.NewProviderEmbedder(ec.Provider, embedding.Config{
		APIKey:            ec.APIKey(),
		Model:             ec.Model,
		BaseURL:           ec.BaseURL,
		Dimension:         ec.Dimension,
		Timeout:           ec.Timeout(),
		RequestsPerSecond: ec.RequestsPerSecond,
	})
}
