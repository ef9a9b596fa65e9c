package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/calebmt/groundwork/internal/models"
	"github.com/calebmt/groundwork/internal/types"
	"github.com/calebmt/groundwork/pkg/chunker"
	cfgPkg "github.com/calebmt/groundwork/pkg/config"
	"github.com/calebmt/groundwork/pkg/embedder"
	"github.com/calebmt/groundwork/pkg/llm"
	"github.com/calebmt/groundwork/pkg/loader"
	"github.com/calebmt/groundwork/pkg/pipeline"
	"github.com/calebmt/groundwork/server"
)

type Options struct {
	DocsDir   string
	IndexMode string
	Backend   string
	TopK      int
	Threshold float64
	Serve     string
	Eval      string
}

func main() {
	// Load .env if present (for API keys)
	_ = godotenv.Load()

	cfg, opts := parseFlags()

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config error: %v", e)
		}
		os.Exit(1)
	}

	if err := run(cfg, opts); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() (*cfgPkg.Config, Options) {
	var opts Options
	var configPath string

	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&opts.DocsDir, "docs", "", "Document directory to (re)index before chatting")
	flag.StringVar(&opts.IndexMode, "mode", "", "Index mode (subdirectory of the index dir, e.g. assignment or custom)")
	flag.StringVar(&opts.Backend, "backend", "", "Answer backend: ollama or openai")
	flag.IntVar(&opts.TopK, "top-k", 0, "Number of chunks to retrieve per query")
	flag.Float64Var(&opts.Threshold, "threshold", 0, "Minimum similarity for retrieved chunks")
	flag.StringVar(&opts.Serve, "serve", "", "Serve the WebSocket API on this address instead of the chat loop")
	flag.StringVar(&opts.Eval, "eval", "", "Run the evaluation question set and write a CSV report to this path")
	flag.Parse()

	cfg, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	// Flags override the config file
	if opts.IndexMode != "" {
		cfg.Index.Mode = opts.IndexMode
	}
	if opts.Backend != "" {
		cfg.LLM.Backend = opts.Backend
	}
	if opts.TopK > 0 {
		cfg.Retrieval.TopK = opts.TopK
	}
	if opts.Threshold > 0 {
		cfg.Retrieval.MinSimilarity = float32(opts.Threshold)
	}

	return cfg, opts
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(cfg *cfgPkg.Config, opts Options) error {
	ctx := context.Background()

	spinner := getSpinner("Connecting to embedding model...")
	emb, err := embedder.NewWithConfig(ctx, embedder.EmbedderConfig{
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		BatchSize: cfg.Embedding.BatchSize,
		RateLimit: cfg.Embedding.RateLimit,
	})
	spinner.Finish()
	fmt.Println()
	if err != nil {
		return fmt.Errorf("embedder unavailable, cannot start: %w", err)
	}
	color.Green("✓ Embedding model %s ready (%d dimensions)", emb.Model(), emb.Dimension())

	ck := chunker.NewWithConfig(chunker.ChunkerConfig{
		MaxChars:     cfg.Chunker.MaxChars,
		OverlapLines: cfg.Chunker.OverlapLines,
		MinLineChars: cfg.Chunker.MinLineChars,
	})
	builder := pipeline.NewBuilder(loader.New(), &ck, emb)

	pipe := pipeline.NewWithConfig(emb, pipeline.PipelineConfig{
		TopK:          cfg.Retrieval.TopK,
		MinSimilarity: cfg.Retrieval.MinSimilarity,
		HistoryTurns:  cfg.Retrieval.HistoryTurns,
	})

	indexDir := filepath.Join(cfg.Index.Dir, cfg.Index.Mode)

	if opts.DocsDir != "" {
		color.Blue("\nIndexing documents from %s", opts.DocsDir)
		bar := getProgressBar(-1, "Embedding chunks...")
		stats, err := pipe.Rebuild(ctx, builder, opts.DocsDir, indexDir, func(stage string, done, total int) {
			if stage == "embed" {
				bar.ChangeMax(total)
				bar.Set(done)
			}
		})
		bar.Finish()
		fmt.Println()
		if err != nil {
			return fmt.Errorf("index build failed: %w", err)
		}
		color.Green("✓ Indexed %d documents into %d chunks (saved to %s)", stats.Documents, stats.Chunks, indexDir)
	} else {
		if err := pipe.LoadIndex(indexDir); err != nil {
			color.Yellow("No usable index in %s (%v)", indexDir, err)
			color.Yellow("Run again with -docs <dir> to build one; answers will fall back until then.")
		} else {
			color.Green("✓ Loaded index from %s", indexDir)
		}
	}

	gen, err := llm.NewWithConfig(llm.GeneratorConfig{
		Backend:     cfg.LLM.Backend,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize answer backend: %w", err)
	}

	if opts.Eval != "" {
		return runEval(ctx, pipe, gen, opts.Eval)
	}

	if opts.Serve != "" {
		srv := server.New(pipe, gen, builder, server.Config{
			CustomIndexDir: filepath.Join(cfg.Index.Dir, "custom"),
		})
		return srv.ListenAndServe(opts.Serve)
	}

	return chatLoop(ctx, pipe, gen)
}

func chatLoop(ctx context.Context, pipe *pipeline.Pipeline, gen types.Generator) error {
	color.Cyan("\nAsk questions about the indexed documents (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	var history []models.ChatTurn

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if strings.EqualFold(query, "exit") {
			break
		}

		spinner := getSpinner("Thinking...")
		answer := pipe.Run(ctx, query, history, gen)
		spinner.Finish()
		fmt.Println()

		assistantPrompt("Assistant: %s\n", answer.Answer)
		for _, src := range answer.Sources {
			color.Blue("  source: %s (%.0f%% match)", src.Source, src.Score*100)
		}

		history = append(history,
			models.ChatTurn{Role: "user", Content: query},
			models.ChatTurn{Role: "assistant", Content: answer.Answer},
		)
	}

	return scanner.Err()
}

// evalQuestions is the fixed question set used to sanity-check a built
// corpus index.
var evalQuestions = []string{
	"What is the price of the Premier package?",
	"What is the zero-tolerance policy?",
	"How does the escrow payment model work?",
	"Compare steel brands in Essential vs Pinnacle.",
	"Does Indecimal provide home financing?",
	"What is the structural warranty period?",
	"Who handles the project monitoring?",
	"What happens in the 'Design & Finalisation' stage?",
}

func runEval(ctx context.Context, pipe *pipeline.Pipeline, gen types.Generator, outPath string) error {
	color.Blue("Running evaluation over %d questions", len(evalQuestions))

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"Question", "Answer_Length", "Latency_Seconds", "Top_Confidence", "Sources_Retrieved"}); err != nil {
		return err
	}

	for _, q := range evalQuestions {
		color.Blue("  %s", q)

		start := time.Now()
		answer := pipe.Run(ctx, q, nil, gen)
		latency := time.Since(start).Seconds()

		topScore := float32(0)
		if len(answer.Sources) > 0 {
			topScore = answer.Sources[0].Score
		}

		if err := w.Write([]string{
			q,
			strconv.Itoa(len(answer.Answer)),
			strconv.FormatFloat(latency, 'f', 4, 64),
			strconv.FormatFloat(float64(topScore), 'f', 4, 32),
			strconv.Itoa(len(answer.Sources)),
		}); err != nil {
			return err
		}
	}

	color.Green("✓ Report saved to %s", outPath)
	return nil
}
