package codegraph

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"codegraph/internal/pylang"
	"codegraph/internal/resolve"
	"codegraph/internal/store"
)

// Engine orchestrates the build pipeline: file discovery, extraction,
// merge, and resolution, with query access over the result.
type Engine struct {
	store *store.Store
	cfg   *Config
	log   *slog.Logger

	// useParallel enables the worker-pool extraction pipeline.
	useParallel bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig supplies a discovery configuration. Default is
// DefaultConfig rooted at the current directory.
func WithConfig(cfg *Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithLogger sets a logger for engine-level warnings during a build.
// The default discards everything; build problems are always recorded
// as diagnostics regardless of the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithParallel controls parallel extraction. When true (default), Build
// uses a worker pool for parsing and extraction, with a single writer
// committing batches to SQLite in path order. Set to false for serial
// mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// New creates an Engine backed by a SQLite database at dbPath.
// Use ":memory:" for an ephemeral build.
func New(dbPath string, opts ...Option) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("codegraph: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("codegraph: migrate: %w", err)
	}

	e := &Engine{
		store:       s,
		cfg:         DefaultConfig(),
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		useParallel: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.cfg.Validate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("codegraph: %w", err)
	}
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Query returns a new QueryBuilder wrapping the Store.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store}
}

// workItem is one file moving through the pipeline. The batch collects
// the extraction output; status carries the parse outcome to the commit
// phase.
type workItem struct {
	src     sourceFile
	fileID  int64
	content []byte
	batch   *store.BatchedStore
	status  string
}

// Build produces a complete graph snapshot:
//
//	Phase A (serial):   discover files, read contents, write file records.
//	Phase B (parallel): parse and extract into per-file batches.
//	Phase C (serial):   commit batches in path order, then resolve.
//
// The store is reset first. Identical inputs produce identical output,
// including diagnostic order, because every serial phase processes files
// in lexicographic path order.
func (e *Engine) Build(ctx context.Context) error {
	if err := e.store.Reset(); err != nil {
		return fmt.Errorf("codegraph: reset: %w", err)
	}

	files, err := discoverFiles(e.cfg)
	if err != nil {
		return fmt.Errorf("codegraph: discover: %w", err)
	}

	items, err := e.prepareFiles(files)
	if err != nil {
		return err
	}

	if e.useParallel {
		err = e.extractParallel(ctx, items)
	} else {
		err = e.extractSerial(ctx, items)
	}
	if err != nil {
		return err
	}

	// Phase C: items are already in path order from discovery.
	for _, item := range items {
		if item.batch == nil {
			continue // read failure, nothing extracted
		}
		if err := e.store.CommitBatch(item.batch, item.src.relPath); err != nil {
			return fmt.Errorf("codegraph: commit %s: %w", item.src.relPath, err)
		}
		if item.status != store.FileOK {
			if err := e.store.UpdateFileStatus(item.fileID, item.status); err != nil {
				return fmt.Errorf("codegraph: %w", err)
			}
		}
	}

	if err := resolve.Run(e.store); err != nil {
		return fmt.Errorf("codegraph: %w", err)
	}
	return nil
}

// prepareFiles is Phase A: read each discovered file and write its file
// record. Unreadable files still get a record (status read-error) and a
// diagnostic, so the build never aborts on one bad file.
func (e *Engine) prepareFiles(files []sourceFile) ([]*workItem, error) {
	seenModule := map[string]string{}
	var items []*workItem
	for _, src := range files {
		if prev, ok := seenModule[src.module]; ok {
			e.log.Warn("module collision, file skipped",
				"module", src.module, "path", src.relPath, "kept", prev)
			if err := e.diagnose(store.SeverityWarning, store.CategoryResolution, src.relPath,
				"module %s already provided by %s; file skipped", src.module, prev); err != nil {
				return nil, err
			}
			continue
		}
		seenModule[src.module] = src.relPath

		content, readErr := os.ReadFile(src.absPath)
		f := &store.File{
			Path:        src.relPath,
			Module:      src.module,
			Language:    pylang.Language,
			Status:      store.FileOK,
			LastIndexed: time.Now().UTC(),
		}
		if readErr != nil {
			f.Status = store.FileReadError
		} else {
			f.Hash = fmt.Sprintf("%x", sha256.Sum256(content))
		}
		fileID, err := e.store.InsertFile(f)
		if err != nil {
			return nil, fmt.Errorf("codegraph: insert file %s: %w", src.relPath, err)
		}
		if readErr != nil {
			e.log.Warn("cannot read file", "path", src.relPath, "error", readErr)
			if err := e.diagnose(store.SeverityError, store.CategoryRead, src.relPath,
				"cannot read file: %v", readErr); err != nil {
				return nil, err
			}
			items = append(items, &workItem{src: src, fileID: fileID, status: store.FileReadError})
			continue
		}
		items = append(items, &workItem{
			src:     src,
			fileID:  fileID,
			content: content,
			status:  store.FileOK,
		})
	}
	return items, nil
}

// extractSerial is the single-goroutine Phase B.
func (e *Engine) extractSerial(ctx context.Context, items []*workItem) error {
	for _, item := range items {
		if item.status == store.FileReadError {
			continue
		}
		if err := extractItem(ctx, item); err != nil {
			return fmt.Errorf("codegraph: extract %s: %w", item.src.relPath, err)
		}
	}
	return nil
}

// extractItem parses one file and runs extraction into its batch. Syntax
// errors are tolerated: they become diagnostics and the definitions that
// did parse are kept.
func extractItem(ctx context.Context, item *workItem) error {
	item.batch = store.NewBatchedStore()

	tree, syntaxDiags, err := pylang.Parse(ctx, item.content)
	if err != nil {
		item.status = store.FileSyntaxError
		_, derr := item.batch.InsertDiagnostic(&store.Diagnostic{
			Severity: store.SeverityError,
			Category: store.CategorySyntax,
			Path:     item.src.relPath,
			Message:  err.Error(),
		})
		return derr
	}
	defer tree.Close()

	if len(syntaxDiags) > 0 {
		item.status = store.FileSyntaxError
		for _, sd := range syntaxDiags {
			if _, err := item.batch.InsertDiagnostic(&store.Diagnostic{
				Severity: store.SeverityError,
				Category: store.CategorySyntax,
				Path:     item.src.relPath,
				Line:     sd.Line,
				Col:      sd.Col,
				Message:  sd.Message,
			}); err != nil {
				return err
			}
		}
	}

	f := &store.File{ID: item.fileID, Path: item.src.relPath, Module: item.src.module}
	return pylang.ExtractFile(item.batch, f, item.content, tree)
}

// diagnose writes one diagnostic directly to the store with the next
// sequence number. Only the serial phases use it.
func (e *Engine) diagnose(severity, category, path string, format string, args ...any) error {
	seq, err := e.store.NextDiagnosticSeq()
	if err != nil {
		return err
	}
	_, err = e.store.InsertDiagnostic(&store.Diagnostic{
		Seq:      seq,
		Severity: severity,
		Category: category,
		Path:     path,
		Message:  fmt.Sprintf(format, args...),
	})
	return err
}
