// Package ingest turns files and text into document partitions: extract pages,
// split them into chunks, embed every chunk and hand the result to the store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/bunko/internal/embedding"
	"github.com/hyperjump/bunko/internal/extract"
	"github.com/hyperjump/bunko/internal/fileid"
	"github.com/hyperjump/bunko/internal/models"
	"github.com/hyperjump/bunko/internal/store"
)

// Metadata keys recorded for file-backed documents, used to skip unchanged files.
const (
	MetaSourceMtime = "source_mtime"
	MetaSourceSize  = "source_size"
)

// ErrUnsupportedExtension is returned when a file's extension is not in the allowed list.
var ErrUnsupportedExtension = errors.New("file extension not allowed")

// Options describe the document being ingested. Empty fields get defaults:
// a random UUID for DocID and the file name (or DocID) for Title.
type Options struct {
	DocID  string
	Title  string
	Source string
}

// Result summarizes an ingested document.
type Result struct {
	DocID   string `json:"doc_id"`
	Title   string `json:"title"`
	Pages   int    `json:"pages"`
	Chunks  int    `json:"chunks"`
	Skipped bool   `json:"skipped,omitempty"`
}

// Ingestor builds document partitions and writes them to a store.
type Ingestor struct {
	store      *store.Store
	embedder   embedding.Embedder
	splitter   *Splitter
	extractor  *extract.Extractor
	extensions []string
	logger     *zap.Logger
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(in *Ingestor) {
		if l != nil {
			in.logger = l
		}
	}
}

// WithExtensions restricts IngestFile and IngestDirectory to the given extensions (with dot).
func WithExtensions(exts []string) Option {
	return func(in *Ingestor) { in.extensions = exts }
}

// New returns an Ingestor writing to s.
func New(s *store.Store, embedder embedding.Embedder, splitter *Splitter, opts ...Option) *Ingestor {
	in := &Ingestor{
		store:     s,
		embedder:  embedder,
		splitter:  splitter,
		extractor: extract.NewExtractor(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// IngestText stores text as a single-page document.
func (in *Ingestor) IngestText(ctx context.Context, text string, opts Options) (*Result, error) {
	return in.IngestPages(ctx, []extract.Page{{Number: 1, Text: text}}, opts, nil)
}

// IngestPages splits every page, embeds all chunks in one batch and adds the document.
// Each chunk carries doc_id, title, page, chunk_id and source metadata plus any extra keys.
func (in *Ingestor) IngestPages(ctx context.Context, pages []extract.Page, opts Options, extra map[string]interface{}) (*Result, error) {
	if opts.DocID == "" {
		opts.DocID = uuid.New().String()
	}
	if err := store.ValidateDocID(opts.DocID); err != nil {
		return nil, err
	}
	if opts.Title == "" {
		opts.Title = opts.DocID
	}

	var chunks []models.Chunk
	for _, page := range pages {
		for _, text := range in.splitter.Split(Normalize(page.Text)) {
			meta := map[string]interface{}{
				models.MetaDocID:   opts.DocID,
				models.MetaTitle:   opts.Title,
				models.MetaPage:    page.Number,
				models.MetaChunkID: len(chunks),
			}
			if opts.Source != "" {
				meta[models.MetaSource] = opts.Source
			}
			for k, v := range extra {
				meta[k] = v
			}
			chunks = append(chunks, models.Chunk{Content: text, Metadata: meta})
		}
	}

	var vectors [][]float32
	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}
		var err error
		vectors, err = in.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings: %w", err)
		}
	}
	if err := in.store.AddDocument(ctx, opts.DocID, chunks, vectors); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}
	in.logger.Debug("document ingested",
		zap.String("doc_id", opts.DocID), zap.Int("pages", len(pages)), zap.Int("chunks", len(chunks)))
	return &Result{DocID: opts.DocID, Title: opts.Title, Pages: len(pages), Chunks: len(chunks)}, nil
}

// IngestFile extracts and ingests the file at path. Title defaults to the file name
// and Source to the absolute path.
func (in *Ingestor) IngestFile(ctx context.Context, path string, opts Options) (*Result, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	if err := in.checkExtension(absPath); err != nil {
		return nil, err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}
	pages, err := in.extractor.ExtractPages(absPath)
	if err != nil {
		return nil, fmt.Errorf("extract content: %w", err)
	}
	if opts.Title == "" {
		opts.Title = filepath.Base(absPath)
	}
	if opts.Source == "" {
		opts.Source = absPath
	}
	return in.IngestPages(ctx, pages, opts, nil)
}

// SyncFile ingests a file under its path-derived ID (fileid.FileDocID), skipping it
// when the stored copy has the same modification time and size.
func (in *Ingestor) SyncFile(ctx context.Context, path string) (*Result, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	if err := in.checkExtension(absPath); err != nil {
		return nil, err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}
	docID := fileid.FileDocID(absPath)
	mtime := strconv.FormatInt(info.ModTime().UnixNano(), 10)
	size := strconv.FormatInt(info.Size(), 10)
	if in.unchanged(docID, mtime, size) {
		in.logger.Debug("skipping unchanged file", zap.String("path", absPath))
		return &Result{DocID: docID, Title: filepath.Base(absPath), Skipped: true}, nil
	}
	pages, err := in.extractor.ExtractPages(absPath)
	if err != nil {
		return nil, fmt.Errorf("extract content: %w", err)
	}
	extra := map[string]interface{}{MetaSourceMtime: mtime, MetaSourceSize: size}
	return in.IngestPages(ctx, pages, Options{DocID: docID, Title: filepath.Base(absPath), Source: absPath}, extra)
}

// unchanged reports whether docID's first chunk records the given mtime and size.
// Documents without chunks are always re-ingested.
func (in *Ingestor) unchanged(docID, mtime, size string) bool {
	if !in.store.Searchable(docID) {
		return false
	}
	chunks, ok := in.store.Chunks(docID)
	if !ok || len(chunks) == 0 {
		return false
	}
	meta := chunks[0].Metadata
	return meta[MetaSourceMtime] == mtime && meta[MetaSourceSize] == size
}

// IngestDirectory walks dir recursively and syncs every regular file with an allowed
// extension. Returns the number of files ingested or already up to date.
func (in *Ingestor) IngestDirectory(ctx context.Context, dir string) (int, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}
	n := 0
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || in.checkExtension(path) != nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		// Resolve symlinks so only regular files are ingested
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		if _, err := in.SyncFile(ctx, path); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		n++
		return nil
	})
	return n, err
}

// RemoveFile removes the document ingested from path by SyncFile.
func (in *Ingestor) RemoveFile(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	return in.store.RemoveDocument(ctx, fileid.FileDocID(absPath))
}

func (in *Ingestor) checkExtension(path string) error {
	if len(in.extensions) == 0 {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, a := range in.extensions {
		if strings.ToLower(a) == ext {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedExtension, ext)
}
