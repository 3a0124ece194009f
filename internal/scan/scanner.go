// Package scan runs the extraction, resolution and aggregation pipeline over
// a source tree.
package scan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/refscan/internal/extract"
	"github.com/starford/refscan/internal/models"
	"github.com/starford/refscan/internal/report"
	"github.com/starford/refscan/internal/resolve"
	"github.com/starford/refscan/internal/storage"
)

// Cache stores extracted references per file, keyed by content checksum.
type Cache interface {
	CachedReferences(path, checksum string) ([]models.Reference, bool, error)
	StoreReferences(path, checksum string, refs []models.Reference) error
	PruneFiles(keep map[string]struct{}) error
}

// Outcome is everything one run produced.
type Outcome struct {
	Report     *report.Report
	Results    []resolve.Result
	References []models.Reference
	Files      int
	Duration   time.Duration
}

// Scanner wires the pipeline stages together.
type Scanner struct {
	store      storage.Provider
	extractor  *extract.Extractor
	resolver   *resolve.Resolver
	classifier *resolve.Classifier
	sourceRoot string

	stats   *resolve.CachedExister
	cache   Cache
	logger  *slog.Logger
	workers int
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithCache enables the checksum-keyed reference cache.
func WithCache(c Cache) Option {
	return func(s *Scanner) { s.cache = c }
}

// WithStatCache makes the scanner purge the resolver's stat cache before
// every run.
func WithStatCache(c *resolve.CachedExister) Option {
	return func(s *Scanner) { s.stats = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// WithWorkers bounds parallel file extraction. Values below one use GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(s *Scanner) { s.workers = n }
}

// New creates a Scanner over the files under sourceRoot.
func New(store storage.Provider, ext *extract.Extractor, res *resolve.Resolver, cls *resolve.Classifier, sourceRoot string, opts ...Option) *Scanner {
	s := &Scanner{
		store:      store,
		extractor:  ext,
		resolver:   res,
		classifier: cls,
		sourceRoot: sourceRoot,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers < 1 {
		s.workers = runtime.GOMAXPROCS(0)
	}
	return s
}

// Run scans the tree once. Files that cannot be read are logged, listed in
// the report and otherwise skipped; a source root that cannot be listed
// fails the run.
func (s *Scanner) Run(ctx context.Context) (*Outcome, error) {
	start := time.Now()

	files, err := s.store.List(s.sourceRoot)
	if err != nil {
		return nil, fmt.Errorf("scan: list source root: %w", err)
	}

	refs, unreadable, err := s.extractAll(ctx, files)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		keep := make(map[string]struct{}, len(files))
		for _, f := range files {
			keep[f.Path] = struct{}{}
		}
		if err := s.cache.PruneFiles(keep); err != nil {
			s.logger.Warn("scan: prune cache failed", slog.String("error", err.Error()))
		}
	}

	if s.stats != nil {
		s.stats.Purge()
	}
	results := make([]resolve.Result, 0, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results = append(results, s.resolver.Resolve(ref))
	}

	rep, err := report.Aggregate(results, s.classifier, unreadable)
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		Report:     rep,
		Results:    results,
		References: refs,
		Files:      len(files),
		Duration:   time.Since(start),
	}
	s.logger.Info("scan: completed",
		slog.Int("files", out.Files),
		slog.Int("references", rep.TotalReferences),
		slog.Int("missing_modules", rep.MissingModules),
		slog.Int("missing_assets", rep.MissingAssets),
		slog.Duration("duration", out.Duration))
	return out, nil
}

// extractAll reads and extracts every file in parallel. It returns only after
// every file is done, with references in file order.
func (s *Scanner) extractAll(ctx context.Context, files []models.SourceFile) ([]models.Reference, []string, error) {
	perFile := make([][]models.Reference, len(files))
	failed := make([]bool, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			refs, err := s.extractFile(f.Path)
			if err != nil {
				s.logger.Warn("scan: read failed", slog.String("path", f.Path), slog.String("error", err.Error()))
				failed[i] = true
				return nil
			}
			perFile[i] = refs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("scan: extract: %w", err)
	}

	var refs []models.Reference
	var unreadable []string
	for i, f := range files {
		if failed[i] {
			unreadable = append(unreadable, f.Path)
			continue
		}
		refs = append(refs, perFile[i]...)
	}
	return refs, unreadable, nil
}

func (s *Scanner) extractFile(path string) ([]models.Reference, error) {
	data, err := s.store.Read(path)
	if err != nil {
		return nil, err
	}
	if s.cache == nil {
		return s.extractor.Extract(path, data), nil
	}

	sum := Checksum(data) + "/" + s.extractor.Fingerprint()
	if refs, ok, err := s.cache.CachedReferences(path, sum); err != nil {
		s.logger.Warn("scan: cache lookup failed", slog.String("path", path), slog.String("error", err.Error()))
	} else if ok {
		return refs, nil
	}

	refs := s.extractor.Extract(path, data)
	if err := s.cache.StoreReferences(path, sum, refs); err != nil {
		s.logger.Warn("scan: cache store failed", slog.String("path", path), slog.String("error", err.Error()))
	} else {
		s.logger.Debug("scan: extracted", slog.String("path", path), slog.Int("references", len(refs)))
	}
	return refs, nil
}

// Checksum returns the hex-encoded SHA-256 digest of data.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
