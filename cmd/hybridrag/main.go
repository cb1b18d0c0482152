// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/hybridrag"
	"github.com/poiesic/hybridrag/config"
	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/fusion"
	"github.com/poiesic/hybridrag/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "hybridrag",
		Usage: "Hybrid BM25 and vector retrieval over a reference corpus",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
				EnvVars: []string{"HYBRIDRAG_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "Data directory holding the vector store and snapshot",
				EnvVars: []string{"HYBRIDRAG_DIR"},
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Serve Prometheus metrics on this address (for example :9090)",
				EnvVars: []string{"HYBRIDRAG_METRICS_ADDR"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Replace the corpus with a text file or a .jsonl record file",
				ArgsUsage: "<file>",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Words per chunk for text files",
					},
					&cli.IntFlag{
						Name:  "overlap",
						Usage: "Words shared by consecutive chunks",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search the corpus",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: append(searchFlags(),
					&cli.Float64Flag{
						Name:  "lexical-weight",
						Usage: "Weight of the lexical score in hybrid mode",
					},
					&cli.Float64Flag{
						Name:  "vector-weight",
						Usage: "Weight of the vector score in hybrid mode",
					},
				),
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from retrieved passages",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: append(searchFlags(),
					&cli.StringFlag{
						Name:  "context",
						Usage: "Additional context passed to the answer generator",
					},
				),
			},
			{
				Name:   "stats",
				Usage:  "Show corpus statistics",
				Action: statsCommand,
			},
			{
				Name:      "bootstrap",
				Usage:     "Ingest a file only when the corpus is empty",
				ArgsUsage: "<file>",
				Action:    bootstrapCommand,
			},
			{
				Name:   "reembed",
				Usage:  "Rebuild the vector collection from the saved documents",
				Action: reembedCommand,
			},
			{
				Name:   "repl",
				Usage:  "Interactive search loop",
				Action: replCommand,
				Flags:  searchFlags(),
			},
		},
	}
}

func searchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "mode",
			Aliases: []string{"m"},
			Usage:   "Search mode (lexical, vector, hybrid); defaults to the configured mode",
		},
		&cli.IntFlag{
			Name:    "top-k",
			Aliases: []string{"k"},
			Usage:   "Number of results; defaults to the configured top_k",
		},
	}
}

// loadConfig reads the config file and applies global flag overrides.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return config.Config{}, err
	}
	if c.IsSet("dir") {
		cfg.Dir = c.String("dir")
	}
	if c.IsSet("metrics-addr") {
		cfg.Metrics.Addr = c.String("metrics-addr")
	}
	if !c.IsSet("log-level") {
		if err := applyLogLevel(cfg.Logging.Level); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}

// withRetriever opens a retriever for cfg, runs fn and closes it.
func withRetriever(c *cli.Context, cfg config.Config, fn func(ctx context.Context, r *hybridrag.Retriever) error) error {
	if cfg.Metrics.Addr != "" {
		shutdown, err := serveMetrics(cfg.Metrics.Addr)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	r, err := hybridrag.NewRetriever(&cfg)
	if err != nil {
		return fmt.Errorf("failed to open retriever: %w", err)
	}
	defer r.Close()

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, r)
}

func serveMetrics(addr string) (func(), error) {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "addr", addr, "err", err)
		}
	}()
	slog.Info("serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func requireArg(c *cli.Context, name string) (string, error) {
	arg := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if arg == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return arg, nil
}

func ingestCommand(c *cli.Context) error {
	path, err := requireArg(c, "file")
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("chunk-size") {
		cfg.Chunking.Size = c.Int("chunk-size")
	}
	if c.IsSet("overlap") {
		cfg.Chunking.Overlap = c.Int("overlap")
	}

	return withRetriever(c, cfg, func(ctx context.Context, r *hybridrag.Retriever) error {
		report, err := r.IngestFile(ctx, path)
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}

		w := c.App.Writer
		fmt.Fprintf(w, "Ingested %d documents from %s\n", report.Documents, path)
		if report.Degraded() {
			fmt.Fprintf(w, "Warning: %d of %d vector batches failed; lexical search is unaffected. Run reembed to repair.\n",
				report.FailedBatches, report.Batches)
		}
		return nil
	})
}

// searchOptions resolves the mode and top-k flags against the config.
func searchOptions(c *cli.Context, cfg config.Config) (core.SearchMode, int) {
	mode := cfg.Search.Mode
	if c.IsSet("mode") {
		mode = c.String("mode")
	}
	topK := cfg.Search.TopK
	if c.IsSet("top-k") {
		topK = c.Int("top-k")
	}
	return core.ParseSearchMode(mode), topK
}

func searchCommand(c *cli.Context) error {
	query, err := requireArg(c, "query")
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	mode, topK := searchOptions(c, cfg)
	weights := fusion.Weights{Lexical: cfg.Search.LexicalWeight, Vector: cfg.Search.VectorWeight}
	if c.IsSet("lexical-weight") {
		weights.Lexical = c.Float64("lexical-weight")
	}
	if c.IsSet("vector-weight") {
		weights.Vector = c.Float64("vector-weight")
	}

	return withRetriever(c, cfg, func(ctx context.Context, r *hybridrag.Retriever) error {
		result, err := r.SearchDetailed(ctx, query, mode, topK, weights)
		if err != nil {
			return err
		}
		if result.Degraded() {
			fmt.Fprintf(c.App.ErrWriter, "Warning: vector search unavailable (%v); results use lexical evidence only\n", result.VectorErr)
		}
		printHits(c.App.Writer, result.Hits)
		return nil
	})
}

func askCommand(c *cli.Context) error {
	question, err := requireArg(c, "question")
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	cfg.AI.Enabled = true
	mode, topK := searchOptions(c, cfg)

	return withRetriever(c, cfg, func(ctx context.Context, r *hybridrag.Retriever) error {
		answer, err := r.Ask(ctx, question, mode, topK, c.String("context"))
		if err != nil {
			return err
		}

		w := c.App.Writer
		fmt.Fprintln(w, answer.Text)
		if len(answer.Hits) > 0 {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Sources:")
			for _, hit := range answer.Hits {
				fmt.Fprintf(w, "  - %s (%s)\n", hitTitle(hit), hit.Document.Source)
			}
		}
		return nil
	})
}

func statsCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	return withRetriever(c, cfg, func(ctx context.Context, r *hybridrag.Retriever) error {
		printStats(c.App.Writer, r.Stats(ctx))
		return nil
	})
}

func bootstrapCommand(c *cli.Context) error {
	path, err := requireArg(c, "file")
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	return withRetriever(c, cfg, func(ctx context.Context, r *hybridrag.Retriever) error {
		if err := r.Bootstrap(ctx, path); err != nil {
			return err
		}
		printStats(c.App.Writer, r.Stats(ctx))
		return nil
	})
}

func reembedCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	return withRetriever(c, cfg, func(ctx context.Context, r *hybridrag.Retriever) error {
		fmt.Fprintf(c.App.ErrWriter, "Data directory: %s\n", cfg.Dir)
		fmt.Fprintf(c.App.ErrWriter, "Embedding provider: %s\n\n", cfg.Embedding.Provider)
		if err := r.Reembed(ctx, c.App.ErrWriter); err != nil {
			return fmt.Errorf("reembedding failed: %w", err)
		}
		return nil
	})
}

func replCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	mode, topK := searchOptions(c, cfg)

	return withRetriever(c, cfg, func(ctx context.Context, r *hybridrag.Retriever) error {
		return runREPL(ctx, r, c.App.Reader, c.App.Writer, mode, topK)
	})
}

// runREPL reads queries from in until EOF or "exit". "stats" prints corpus
// statistics; anything else is searched.
func runREPL(ctx context.Context, r *hybridrag.Retriever, in io.Reader, out io.Writer, mode core.SearchMode, topK int) error {
	fmt.Fprintf(out, "hybridrag %s search, top %d. Type 'stats' or 'exit'.\n", mode, topK)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "stats":
			printStats(out, r.Stats(ctx))
			continue
		}

		hits, err := r.Search(ctx, line, mode, topK)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		printHits(out, hits)

		if err := ctx.Err(); err != nil {
			return nil
		}
	}
}

func printStats(w io.Writer, stats hybridrag.Stats) {
	fmt.Fprintf(w, "Documents: %d\n", stats.DocumentCount)
	if stats.VectorErr != nil {
		fmt.Fprintf(w, "Vectors:   unavailable (%v)\n", stats.VectorErr)
	} else {
		fmt.Fprintf(w, "Vectors:   %d\n", stats.VectorCount)
	}
	fmt.Fprintf(w, "Storage:   %s\n", stats.StorageLocation)
}

func printHits(w io.Writer, hits []core.Hit) {
	if len(hits) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}
	for i, hit := range hits {
		fmt.Fprintf(w, "%d. %s [%s %.4f] (%s)\n", i+1, hitTitle(hit), hit.Kind, hit.Score, hit.Document.Source)
		fmt.Fprintf(w, "   %s\n", preview(hit.Document.Content, 200))
	}
}

func hitTitle(hit core.Hit) string {
	if hit.Document.Title != "" {
		return hit.Document.Title
	}
	return fmt.Sprintf("%s %d", hit.Document.Type, hit.Document.ID)
}

// preview returns at most n runes of s, marking truncation with "...".
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func setupLogger(c *cli.Context) error {
	return applyLogLevel(c.String("log-level"))
}

func applyLogLevel(levelStr string) error {
	// Map string to slog.Level
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
