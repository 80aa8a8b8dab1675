package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fabfab/heraklion-chatbot/api"
	"github.com/fabfab/heraklion-chatbot/chat"
	"github.com/fabfab/heraklion-chatbot/config"
	"github.com/fabfab/heraklion-chatbot/embeddings"
	"github.com/fabfab/heraklion-chatbot/index"
	"github.com/fabfab/heraklion-chatbot/ingestion"
	"github.com/fabfab/heraklion-chatbot/llm"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger setup: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		serveCmd(cfg, logger, args)
	case "ask":
		askCmd(cfg, logger, args)
	case "chunks":
		chunksCmd(cfg, logger, args)
	case "help":
		printUsage()
	default:
		logger.Error("unknown command", zap.String("command", cmd))
		printUsage()
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// pipeline holds everything a question needs, built from one config.
type pipeline struct {
	chunks  []ingestion.Chunk
	cache   *index.Cache
	service *chat.Service
}

func newPipeline(cfg config.Config, logger *zap.Logger) (*pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	chunks, err := loadChunks(cfg, logger)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%s: %w", cfg.CorpusPath, index.ErrEmptyCorpus)
	}

	template, err := chat.LoadPromptTemplate(cfg.Prompt.TemplateFile)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	buildOpts := index.BuildOptions{
		BatchSize:   cfg.Embeddings.BatchSize,
		Concurrency: cfg.Embeddings.Concurrency,
	}
	cache := index.NewCache(func(ctx context.Context) (*index.Index, error) {
		return index.Build(ctx, chunks, embedder, buildOpts)
	}, cfg.Index.BuildTimeout, logger.Named("index"))

	svc := chat.NewService(chat.NewMemoryVectorStore(cache), embedder, llmClient, logger.Named("chat"), chat.Options{
		TopK:              cfg.Retrieval.TopK,
		Template:          template,
		CompletionTimeout: cfg.LLM.Timeout,
		Tokens:            newTokenCounter(cfg.LLM.Model, logger),
	})

	return &pipeline{chunks: chunks, cache: cache, service: svc}, nil
}

// newTokenCounter returns a loaded counter when debug logging is on, and nil
// otherwise or when the encoding cannot be fetched.
func newTokenCounter(model string, logger *zap.Logger) *llm.TokenCounter {
	if !logger.Core().Enabled(zap.DebugLevel) {
		return nil
	}
	tokens := llm.NewTokenCounter(model)
	if err := tokens.Load(); err != nil {
		logger.Warn("prompt token counting disabled", zap.Error(err))
		return nil
	}
	return tokens
}

func loadChunks(cfg config.Config, logger *zap.Logger) ([]ingestion.Chunk, error) {
	splitter, err := ingestion.NewSplitter(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}

	corpus, err := ingestion.LoadCorpus(cfg.CorpusPath)
	if err != nil {
		return nil, err
	}

	chunks := splitter.SplitCorpus(corpus)
	logger.Info("corpus loaded",
		zap.String("path", corpus.Path),
		zap.String("format", string(corpus.Format)),
		zap.Int("characters", corpus.Len()),
		zap.Int("chunks", len(chunks)),
	)
	return chunks, nil
}

func serveCmd(cfg config.Config, logger *zap.Logger, args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	port := flags.Int("port", cfg.Port, "HTTP listen port")
	if err := flags.Parse(args); err != nil {
		logger.Fatal("parse serve flags", zap.Error(err))
	}
	cfg.Port = *port

	p, err := newPipeline(cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(cfg.Port)),
		Handler:           api.New(p.service, p.cache, logger.Named("api")).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("chatbot running", zap.Int("port", cfg.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown", zap.Error(err))
		}
	}
}

func askCmd(cfg config.Config, logger *zap.Logger, args []string) {
	flags := flag.NewFlagSet("ask", flag.ExitOnError)
	question := flags.String("question", "", "question to ask about the corpus")
	showSources := flags.Bool("sources", true, "print the retrieved chunks")
	if err := flags.Parse(args); err != nil {
		logger.Fatal("parse ask flags", zap.Error(err))
	}

	if strings.TrimSpace(*question) == "" {
		fmt.Print("Enter your question: ")
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			*question = scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			logger.Fatal("read question", zap.Error(err))
		}
	}

	p, err := newPipeline(cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	resp, err := p.service.Answer(ctx, *question)
	if err != nil {
		logger.Fatal("answer failed", zap.Error(err))
	}

	fmt.Println(resp.Answer)
	if *showSources && len(resp.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for idx, source := range resp.Sources {
			fmt.Printf("%d. [%d:%d] score %.3f\n", idx+1, source.Start, source.End, source.Score)
			fmt.Printf("   %s\n", strings.ReplaceAll(source.Snippet, "\n", " "))
		}
	}
}

func chunksCmd(cfg config.Config, logger *zap.Logger, args []string) {
	flags := flag.NewFlagSet("chunks", flag.ExitOnError)
	verbose := flags.Bool("v", false, "print every chunk")
	if err := flags.Parse(args); err != nil {
		logger.Fatal("parse chunks flags", zap.Error(err))
	}

	if err := cfg.Chunking.Validate(); err != nil {
		logger.Fatal("invalid chunking", zap.Error(err))
	}

	corpus, err := ingestion.LoadCorpus(cfg.CorpusPath)
	if err != nil {
		logger.Fatal("load corpus", zap.Error(err))
	}
	splitter, err := ingestion.NewSplitter(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		logger.Fatal("splitter setup", zap.Error(err))
	}
	chunks := splitter.SplitCorpus(corpus)

	longest, shortest := 0, 0
	for i, c := range chunks {
		if c.Len() > longest {
			longest = c.Len()
		}
		if i == 0 || c.Len() < shortest {
			shortest = c.Len()
		}
		if *verbose {
			fmt.Printf("#%d %s [%d:%d] overlap=%d\n%s\n\n", c.Index, c.ID, c.Start, c.End, c.Overlap, c.Text)
		}
	}

	coverage := "ok"
	if ingestion.Reassemble(chunks) != corpus.Text {
		coverage = "MISMATCH"
	}

	fmt.Printf("corpus:   %s (%s, %d characters)\n", corpus.Path, corpus.Format, corpus.Len())
	fmt.Printf("chunking: size=%d overlap=%d\n", cfg.Chunking.Size, cfg.Chunking.Overlap)
	fmt.Printf("chunks:   %d (shortest %d, longest %d)\n", len(chunks), shortest, longest)
	fmt.Printf("coverage: %s\n", coverage)
	if coverage != "ok" {
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: heraklion-chatbot [command] [options]")
	fmt.Println("Commands:")
	fmt.Println("  serve    Start the HTTP server (default; requires OPENAI_API_KEY)")
	fmt.Println("  ask      Answer a single question from the command line")
	fmt.Println("  chunks   Show how the corpus is split, without calling the provider")
}
