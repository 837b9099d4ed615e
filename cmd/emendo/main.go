// Package main is the Emendo CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/emendo/emendo/internal/chunker"
	"github.com/emendo/emendo/internal/config"
	"github.com/emendo/emendo/internal/embedding"
	"github.com/emendo/emendo/internal/enhance"
	"github.com/emendo/emendo/internal/extract"
	"github.com/emendo/emendo/internal/keyword"
	"github.com/emendo/emendo/internal/knowledge"
	"github.com/emendo/emendo/internal/llm"
	"github.com/emendo/emendo/internal/progress"
	"github.com/emendo/emendo/internal/retrieval"
	"github.com/emendo/emendo/internal/server"
	"github.com/emendo/emendo/internal/storage"
	"github.com/emendo/emendo/internal/watcher"
	"github.com/emendo/emendo/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/emendo/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "emendo server" from the project dir uses the project's config (including debug).
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "correct":
		runCorrect()
	case "ingest":
		runIngest()
	case "models":
		runModels()
	case "version", "--version", "-v":
		fmt.Printf("emendo version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (LLM calls, chunk processing, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	components.Tasks.StartSweeper(sweepCtx)

	if len(cfg.Watch.Directories) > 0 {
		ing := components.Ingestor
		textExtractor := components.TextExtractor
		store := components.Storage
		watchSvc := watcher.New(
			cfg.Watch.Directories,
			cfg.Watch.Extensions,
			cfg.Watch.RecursiveOrDefault(),
			func(path string) {
				if err := ingestFile(context.Background(), textExtractor, ing, path); err != nil {
					logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
				}
			},
			func(path string) {
				docID := fileDocID(path)
				if docID == "" {
					return
				}
				if err := store.DeleteChunksByDocumentID(context.Background(), docID); err != nil {
					logger.Warn("watch remove failed", zap.String("path", path), zap.Error(err))
				}
			},
			logger,
		)
		watchCtx, watchCancel := context.WithCancel(context.Background())
		defer watchCancel()
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
		watchSvc.SyncExistingFiles()
	}

	srv := server.NewServer(
		components.Enhancer,
		components.Extractor,
		components.Storage,
		components.Tasks,
		components.KeywordIndex,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runCorrect() {
	fs := flag.NewFlagSet("correct", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	model := fs.String("model", "", "model name (default from config)")
	docType := fs.String("type", "", "document type: generic, business, academic, technical, legal, literary, italian-literary")
	prompt := fs.String("prompt", "", "custom prompt; %s is replaced with the text")
	output := fs.String("output", "", "output file (default: stdout)")
	noChunking := fs.Bool("no-chunking", false, "disable chunked processing")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	text, err := readCorrectInput(fs.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read input: %v\n", err)
		os.Exit(1)
	}

	client := llm.NewOpenAIClient(cfg.LLM.BaseURL, cfg.LLM.APIKey,
		time.Duration(cfg.LLM.TimeoutSeconds)*time.Second)
	ch := chunker.New(cfg.Chunking.MaxChunkSize, cfg.Chunking.MinChunkSize,
		cfg.Chunking.EnabledOrDefault())
	enhancer := enhance.NewEnhancer(client, ch, cfg.LLM.MaxWorkers, logger)

	modelName := *model
	if modelName == "" {
		modelName = cfg.LLM.DefaultModel
	}
	var chunking *bool
	if *noChunking {
		f := false
		chunking = &f
	}
	result, err := enhancer.Enhance(context.Background(), enhance.Request{
		Text:         text,
		Model:        modelName,
		Prompt:       *prompt,
		DocumentType: *docType,
		Chunking:     chunking,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Correction failed: %v\n", err)
		os.Exit(1)
	}

	if *output != "" {
		if err := os.WriteFile(*output, []byte(result.Text), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Corrected text written to %s\n", *output)
		return
	}
	fmt.Println(result.Text)
}

// readCorrectInput reads the text to correct: from the file argument when
// given, from stdin otherwise.
func readCorrectInput(args []string) (string, error) {
	if len(args) > 0 {
		path := args[0]
		ext := strings.ToLower(filepath.Ext(path))
		if extract.Supported(ext) && ext != ".txt" && ext != "" {
			return extract.NewExtractor().Extract(path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: emendo ingest [flags] <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	if info.IsDir() {
		n := 0
		err := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			if !extensionMatches(p, cfg.Watch.Extensions) {
				return nil
			}
			if ingErr := ingestFile(ctx, components.TextExtractor, components.Ingestor, p); ingErr != nil {
				fmt.Fprintf(os.Stderr, "Skipping %s: %v\n", p, ingErr)
				return nil
			}
			n++
			return nil
		})
		if err != nil {
			fmt.Printf("Ingesting directory failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Ingested %d file(s) from %s\n", n, path)
		return
	}
	if err := ingestFile(ctx, components.TextExtractor, components.Ingestor, path); err != nil {
		fmt.Printf("Ingest failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Document ingested: %s\n", fileDocID(path))
}

func runModels() {
	fs := flag.NewFlagSet("models", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	defaultModel := "llama3"
	if err == nil {
		defaultModel = cfg.LLM.DefaultModel
	}
	for _, m := range llm.AvailableModels() {
		if m == defaultModel {
			fmt.Printf("%s (default)\n", m)
			continue
		}
		fmt.Println(m)
	}
}

// ingestFile extracts text from path and feeds it into the knowledge base.
func ingestFile(ctx context.Context, te *extract.Extractor, ing *knowledge.Ingestor, path string) error {
	content, err := te.Extract(path)
	if err != nil {
		return fmt.Errorf("extract %s: %w", path, err)
	}
	if strings.TrimSpace(content) == "" {
		return nil
	}
	docID := fileDocID(path)
	return ing.ProcessDocument(ctx, docID, filepath.Base(path), content)
}

// fileDocID derives the knowledge-base document id for a file on disk, using
// the base filename and current size. Empty when the file cannot be stat'ed.
func fileDocID(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return knowledge.DocumentID(filepath.Base(path), int(info.Size()))
}

func extensionMatches(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range extensions {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// Components holds initialized services.
type Components struct {
	Storage       storage.Storage
	Embedder      embedding.Embedder
	KeywordIndex  keyword.SnippetIndex
	Tasks         *progress.Store
	Enhancer      *enhance.Enhancer
	Extractor     *knowledge.Extractor
	Ingestor      *knowledge.Ingestor
	TextExtractor *extract.Extractor
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.SnippetIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize snippet index: %w", err)
	}

	client := llm.NewOpenAIClient(cfg.LLM.BaseURL, cfg.LLM.APIKey,
		time.Duration(cfg.LLM.TimeoutSeconds)*time.Second)

	embedder := embedding.NewRemoteEmbedder(embedding.RemoteConfig{
		BaseURL:    cfg.LLM.BaseURL,
		APIKey:     cfg.LLM.APIKey,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		CacheSize:  cfg.Embedding.CacheSize,
	}, logger)

	ch := chunker.New(cfg.Chunking.MaxChunkSize, cfg.Chunking.MinChunkSize,
		cfg.Chunking.EnabledOrDefault())
	tasks := progress.NewStore(time.Duration(cfg.Tasks.TTLMinutes)*time.Minute, logger)
	enhancer := enhance.NewEnhancer(client, ch, cfg.LLM.MaxWorkers, logger)

	ingestor := knowledge.NewIngestor(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap,
		embedder, store, logger)

	var retrievalEngine *retrieval.Engine
	if cfg.Retrieval.EnabledOrDefault() {
		retrievalEngine = retrieval.NewEngine(embedder, store, cfg.Retrieval.SimilarityThreshold, logger)
	}

	extractor := knowledge.NewExtractor(knowledge.Deps{
		Client:    client,
		Chunker:   ch,
		Store:     store,
		Tasks:     tasks,
		Retrieval: retrievalEngine,
		Ingestor:  ingestor,
		Index:     keywordIndex,
		Logger:    logger,
	}, knowledge.Config{
		MaxSegmentSize:   cfg.Extraction.MaxSegmentSize,
		MaxContextChunks: cfg.Retrieval.MaxContextChunks,
		MaxWorkers:       cfg.LLM.MaxWorkers,
	})

	return &Components{
		Storage:       store,
		Embedder:      embedder,
		KeywordIndex:  keywordIndex,
		Tasks:         tasks,
		Enhancer:      enhancer,
		Extractor:     extractor,
		Ingestor:      ingestor,
		TextExtractor: extract.NewExtractor(),
	}, nil
}

func printUsage() {
	os.Stdout.WriteString(`emendo - LLM-driven OCR correction and knowledge extraction

Usage:
  emendo server [flags]            Start the HTTP server
  emendo correct [flags] [file]    Correct OCR text (file argument or stdin)
  emendo ingest [flags] <path>     Feed a file or directory into the knowledge base
  emendo models [flags]            List known model names
  emendo version                   Show version
  emendo help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/emendo/config.yaml)
  --debug            Enable debug logging (LLM calls, chunk processing, etc.)

Correct Flags:
  --config string    Config file path
  --model string     Model name (default from config)
  --type string      Document type: generic, business, academic, technical, legal, literary, italian-literary
  --prompt string    Custom prompt; %s is replaced with the text
  --output string    Output file (default: stdout)
  --no-chunking      Disable chunked processing

Ingest Flags:
  --config string    Config file path

Examples:
  emendo server
  emendo correct scan.txt
  emendo correct --type legal --model mistral contract.pdf
  cat page.txt | emendo correct
  emendo ingest ./archive
  emendo models` + "\n")
}
