// Package main is the bunko CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/bunko/internal/cli"
	"github.com/hyperjump/bunko/internal/config"
	"github.com/hyperjump/bunko/internal/embedding"
	"github.com/hyperjump/bunko/internal/ingest"
	"github.com/hyperjump/bunko/internal/ledger"
	"github.com/hyperjump/bunko/internal/models"
	"github.com/hyperjump/bunko/internal/query"
	"github.com/hyperjump/bunko/internal/server"
	"github.com/hyperjump/bunko/internal/storage"
	"github.com/hyperjump/bunko/internal/store"
	"github.com/hyperjump/bunko/internal/vector"
	"github.com/hyperjump/bunko/internal/watcher"
	"github.com/hyperjump/bunko/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/bunko/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, a config.yaml in the
// current directory takes precedence, and a missing default file yields the built-in
// defaults. Returns the config and the path it was loaded from ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				cfg, err := config.Load(fallback)
				if err != nil {
					return nil, "", err
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "add":
		runAdd()
	case "query":
		runQuery()
	case "delete":
		runDelete()
	case "list":
		runList()
	case "status":
		runStatus()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("bunko version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// setup loads config, builds a logger and opens every component for a local command.
func setup(configPath string, debug, serverMode bool) (*config.Config, string, *zap.Logger, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || debug
	var logger *zap.Logger
	if serverMode {
		logger, err = utils.NewLogger(debugMode)
	} else {
		logger, err = utils.NewCLILogger(debugMode)
	}
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		fatalf("Failed to initialize: %v", err)
	}
	return cfg, resolved, logger, components
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger, components := setup(*configPath, *debug, true)
	defer logger.Sync()
	defer components.Close()
	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("store_dir", cfg.Store.Dir),
		zap.Bool("debug", cfg.Debug || *debug),
	)

	watchSvc := watcher.New(
		cfg.Watch.Directories,
		cfg.Ingest.Extensions,
		cfg.Watch.RecursiveOrDefault(),
		components.Ingestor,
		watcher.WithLogger(logger),
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	go watchSvc.SyncExistingFiles()

	opts := []server.Option{server.WithWatch(watchSvc)}
	if resolvedConfigPath != "" {
		opts = append(opts, server.WithConfigPath(resolvedConfigPath))
	}
	srv := server.NewServer(components.Store, components.Ingestor, components.Retriever, cfg, logger, opts...)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	watchSvc.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runAdd() {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	title := fs.String("title", "", "document title (default: file name)")
	id := fs.String("id", "", "document id (default: random UUID; ignored for directories)")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: bunko add [flags] <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	_, _, logger, components := setup(*configPath, *debug, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	info, err := os.Stat(path)
	if err != nil {
		fatalf("Failed to stat path: %v", err)
	}
	if info.IsDir() {
		n, err := components.Ingestor.IngestDirectory(ctx, path)
		if err != nil {
			fatalf("Ingesting directory failed: %v", err)
		}
		fmt.Printf("Ingested %d file(s) from %s\n", n, path)
		return
	}
	res, err := components.Ingestor.IngestFile(ctx, path, ingest.Options{DocID: *id, Title: *title})
	if err != nil {
		fatalf("Ingesting failed: %v", err)
	}
	fmt.Printf("Document added: %s (%d page(s), %d chunk(s))\n", res.DocID, res.Pages, res.Chunks)
}

// argsReorder moves flags that follow positional arguments to the front, since the
// flag package stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// buildQuery joins all positional args with spaces so multi-word queries work
// with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// parseDocIDs splits a comma-separated --doc value, dropping blanks.
func parseDocIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

func printQueryUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: bunko query [flags] <text>\n\n")
	fmt.Fprintf(fs.Output(), "Text is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  bunko query notice period for termination
  bunko query --k 3 --doc lease-2024,lease-2023 "pet policy"
  bunko query --server "" --output json deposit    # read the store directly
`)
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read the store directly)")
	k := fs.Int("k", 0, "number of results (default from config)")
	docs := fs.String("doc", "", "comma-separated document ids to search (default: all)")
	outputFormat := fs.String("output", "text", "output format: text, compact or json")
	showContext := fs.Bool("context", false, "print the formatted context block instead of results")
	fs.Usage = func() { printQueryUsage(fs) }
	_ = fs.Parse(argsReorder(os.Args[2:]))

	text := buildQuery(fs.Args())
	if text == "" {
		printQueryUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	req := &models.QueryRequest{Query: text, K: *k, DocIDs: parseDocIDs(*docs)}

	var response *models.QueryResponse
	if *serverURL != "" {
		response, err = queryViaHTTP(*serverURL, req)
		if err != nil {
			fatalf("Query failed: %v", err)
		}
	} else {
		cfg, _, logger, components := setup(*configPath, false, false)
		defer logger.Sync()
		defer components.Close()
		if err := req.ValidateLimits(cfg.Search.DefaultK, cfg.Search.MaxK); err != nil {
			fatalf("Invalid query: %v", err)
		}
		res, err := components.Retriever.Retrieve(context.Background(), req.Query, req.K, req.DocIDs)
		if err != nil {
			fatalf("Query failed: %v", err)
		}
		response = res.Response
	}

	if *showContext {
		fmt.Print(response.Context)
		return
	}
	if err := cli.WriteQueryResults(os.Stdout, response, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func queryViaHTTP(serverURL string, req *models.QueryRequest) (*models.QueryResponse, error) {
	var response models.QueryResponse
	if err := doJSON(http.MethodPost, serverURL+"/api/v1/query", req, http.StatusOK, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// doJSON sends body (if any) as JSON and decodes the response into out (if any).
// A status other than want is returned as an error carrying the response body.
func doJSON(method, endpoint string, body interface{}, want int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "", "server URL (empty = modify the store directly)")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: bunko delete [flags] <document-id>")
		os.Exit(1)
	}
	docID := fs.Arg(0)

	if *serverURL != "" {
		if err := doJSON(http.MethodDelete, *serverURL+"/api/v1/documents/"+url.PathEscape(docID), nil, http.StatusOK, nil); err != nil {
			fatalf("Deletion failed: %v", err)
		}
	} else {
		_, _, logger, components := setup(*configPath, false, false)
		defer logger.Sync()
		defer components.Close()
		if err := components.Store.RemoveDocument(context.Background(), docID); err != nil {
			fatalf("Deletion failed: %v", err)
		}
	}
	fmt.Printf("Document deleted: %s\n", docID)
}

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "", "server URL (empty = read the store directly)")
	_ = fs.Parse(os.Args[2:])

	var ids []string
	if *serverURL != "" {
		var out struct {
			Documents []string `json:"documents"`
		}
		if err := doJSON(http.MethodGet, *serverURL+"/api/v1/documents", nil, http.StatusOK, &out); err != nil {
			fatalf("List failed: %v", err)
		}
		ids = out.Documents
	} else {
		_, _, logger, components := setup(*configPath, false, false)
		defer logger.Sync()
		defer components.Close()
		ids = components.Store.ListDocuments()
	}
	for _, id := range ids {
		fmt.Println(id)
	}
}

// statusResponse is the part of GET /api/v1/status the CLI prints.
type statusResponse struct {
	Documents      int   `json:"documents"`
	Searchable     int   `json:"searchable"`
	Chunks         int   `json:"chunks"`
	Rows           int   `json:"rows"`
	DiskUsageBytes int64 `json:"disk_usage_bytes"`
	Config         struct {
		StoreDir      string `json:"store_dir"`
		LedgerBackend string `json:"ledger_backend"`
		IndexType     string `json:"index_type"`
	} `json:"config"`
}

func (r *statusResponse) toCLI() *cli.Status {
	return &cli.Status{
		StoreDir:       r.Config.StoreDir,
		Documents:      r.Documents,
		Searchable:     r.Searchable,
		Chunks:         r.Chunks,
		Rows:           r.Rows,
		IndexType:      r.Config.IndexType,
		LedgerBackend:  r.Config.LedgerBackend,
		DiskUsageBytes: r.DiskUsageBytes,
	}
}

// localStatus summarizes an open store.
func localStatus(cfg *config.Config, st *store.Store) *cli.Status {
	stats := st.Stats()
	status := &cli.Status{
		StoreDir:      cfg.Store.Dir,
		Documents:     stats.Documents,
		Searchable:    stats.Searchable,
		Chunks:        stats.Chunks,
		Rows:          stats.Rows,
		IndexType:     stats.IndexType,
		LedgerBackend: cfg.Store.LedgerBackend,
	}
	if usage, err := storage.StoreUsage(cfg.Store.Dir, cfg.Store.LedgerPath(), store.IndexExt); err == nil {
		status.DiskUsageBytes = usage.Total
	}
	return status
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "", "server URL (empty = read the store directly)")
	outputFormat := fs.String("output", "text", "output format: text, compact or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	var status *cli.Status
	if *serverURL != "" {
		var res statusResponse
		if err := doJSON(http.MethodGet, *serverURL+"/api/v1/status", nil, http.StatusOK, &res); err != nil {
			fatalf("Status failed: %v", err)
		}
		status = res.toCLI()
	} else {
		cfg, _, logger, components := setup(*configPath, false, false)
		defer logger.Sync()
		defer components.Close()
		status = localStatus(cfg, components.Store)
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: bunko watch <add|remove|list> [path]")
		fmt.Println("  bunko watch add <path>     Add directory to watch")
		fmt.Println("  bunko watch remove <path>  Remove directory from watch")
		fmt.Println("  bunko watch list           List watched directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	_ = fs.Parse(argsReorder(os.Args[3:]))
	endpoint := *serverURL + "/api/v1/watch/directories"

	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fatalf("Usage: bunko watch add <path>")
		}
		path, _ := filepath.Abs(fs.Arg(0))
		body := map[string]interface{}{"path": path, "sync": true}
		if err := doJSON(http.MethodPost, endpoint, body, http.StatusCreated, nil); err != nil {
			fatalf("Add failed: %v", err)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fatalf("Usage: bunko watch remove <path>")
		}
		path, _ := filepath.Abs(fs.Arg(0))
		if err := doJSON(http.MethodDelete, endpoint+"?path="+url.QueryEscape(path), nil, http.StatusOK, nil); err != nil {
			fatalf("Remove failed: %v", err)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := doJSON(http.MethodGet, endpoint, nil, http.StatusOK, &out); err != nil {
			fatalf("List failed: %v", err)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fatalf("Unknown watch subcommand: %s", sub)
	}
}

// Components holds initialized services.
type Components struct {
	Store     *store.Store
	Embedder  embedding.Embedder
	Ingestor  *ingest.Ingestor
	Retriever *query.Retriever
}

// Close releases the store (and its ledger) and the embedder.
func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	indexType := vector.IndexType(cfg.Store.IndexType)
	if indexType == vector.IndexTypeFAISS && !vector.IsFAISSAvailable() {
		logger.Warn("FAISS not available in this build, using flat index")
		indexType = vector.IndexTypeFlat
	}

	led, err := ledger.New(cfg.Store.LedgerBackend, cfg.Store.LedgerPath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ledger: %w", err)
	}
	st, err := store.Open(cfg.Store.Dir,
		store.WithLedger(led),
		store.WithIndexType(indexType),
		store.WithParallelism(cfg.Search.Parallelism),
		store.WithLogger(logger),
	)
	if err != nil {
		_ = led.Close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	logger.Info("store opened",
		zap.String("dir", cfg.Store.Dir),
		zap.String("ledger", cfg.Store.LedgerBackend),
		zap.String("index_type", string(indexType)),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.Int("documents", len(st.ListDocuments())),
	)

	splitter := ingest.NewSplitter(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	in := ingest.New(st, embedder, splitter,
		ingest.WithLogger(logger),
		ingest.WithExtensions(cfg.Ingest.Extensions),
	)
	return &Components{
		Store:     st,
		Embedder:  embedder,
		Ingestor:  in,
		Retriever: query.NewRetriever(st, embedder),
	}, nil
}

func printUsage() {
	fmt.Println(`bunko - document-partitioned vector store

Usage:
  bunko server [flags]              Start the HTTP server and inbox watcher
  bunko add [flags] <file|dir>      Ingest a file or every supported file in a directory
  bunko query [flags] <text>        Retrieve the chunks nearest to a text query
  bunko delete [flags] <id>         Remove a document
  bunko list [flags]                List document ids
  bunko status [flags]              Show store status
  bunko watch <add|remove|list>     Manage watched directories of a running server
  bunko version                     Show version
  bunko help                        Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/bunko/config.yaml,
                     or ./config.yaml when present)

Server Flags:
  --debug            Enable debug logging

Add Flags:
  --title string     Document title (default: file name)
  --id string        Document id (default: random UUID)

Query Flags:
  --server string    Server URL (default: http://localhost:8080). Use --server "" to read the store directly.
  --k int            Number of results (default from config)
  --doc string       Comma-separated document ids to restrict the search to
  --output string    Output format: text, compact or json (default: text)
  --context          Print the formatted context block

Delete/List/Status Flags:
  --server string    Server URL (default: direct store access)
  --output string    Status output format: text, compact or json

Environment:
  A .env file in the working directory is loaded at startup. The OpenAI provider reads
  its API key from the variable named by embedding.api_key_env (default OPENAI_API_KEY).

Examples:
  bunko server
  bunko add --title "Lease 2024" lease.pdf
  bunko add ~/inbox
  bunko query "notice period"
  bunko query --output json --k 3 deposit
  bunko delete file-3f2a9c
  bunko status --output json
  bunko watch add /path/to/docs`)
}
