// Package scanservice runs scans on demand and answers queries about the
// latest completed one.
package scanservice

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/starford/refscan/internal/apperr"
	"github.com/starford/refscan/internal/index"
	"github.com/starford/refscan/internal/models"
	"github.com/starford/refscan/internal/report"
	"github.com/starford/refscan/internal/resolve"
	"github.com/starford/refscan/internal/scan"
	"github.com/starford/refscan/internal/storage"
)

// MissingModule is one unresolvable import target with its importers.
type MissingModule struct {
	Target     string   `json:"target"`
	ImportedIn []string `json:"imported_in"`
}

// Runner is the part of scan.Scanner the service needs.
type Runner interface {
	Run(ctx context.Context) (*scan.Outcome, error)
}

// Service coordinates scans, the report file and the result index.
type Service struct {
	runner     Runner
	idx        index.ReferenceIndex
	reportPath string
	logger     *slog.Logger
	onStart    func()
	onScan     func(*scan.Outcome, error)

	runMu   sync.Mutex
	mu      sync.RWMutex
	latest  *scan.Outcome
	indexed bool
}

// Option configures a Service.
type Option func(*Service)

// WithIndex records every run's results in idx for importer and search queries.
func WithIndex(idx index.ReferenceIndex) Option {
	return func(s *Service) { s.idx = idx }
}

// WithReportPath writes the JSON report to the absolute path after every run.
func WithReportPath(p string) Option {
	return func(s *Service) { s.reportPath = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithStartHook registers fn to be called before every run.
func WithStartHook(fn func()) Option {
	return func(s *Service) { s.onStart = fn }
}

// WithScanHook registers fn to be called after every run, successful or not.
func WithScanHook(fn func(*scan.Outcome, error)) Option {
	return func(s *Service) { s.onScan = fn }
}

// New creates a new scan service.
func New(runner Runner, opts ...Option) *Service {
	s := &Service{runner: runner, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rescan runs one scan, persists its report and results, and makes it the
// latest. Concurrent calls are serialized.
func (s *Service) Rescan(ctx context.Context) (*scan.Outcome, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.onStart != nil {
		s.onStart()
	}
	out, err := s.rescan(ctx)
	if s.onScan != nil {
		s.onScan(out, err)
	}
	return out, err
}

func (s *Service) rescan(ctx context.Context) (*scan.Outcome, error) {
	out, err := s.runner.Run(ctx)
	if err != nil {
		return nil, err
	}

	if s.reportPath != "" {
		data, err := report.Marshal(out.Report)
		if err != nil {
			return nil, err
		}
		if err := storage.WriteFileAtomic(s.reportPath, data); err != nil {
			return nil, fmt.Errorf("report: write %s: %w", s.reportPath, err)
		}
	}

	indexed := false
	if s.idx != nil {
		if err := s.idx.ReplaceResults(out.Results); err != nil {
			s.logger.Warn("scanservice: record results failed", slog.String("error", err.Error()))
		} else {
			indexed = true
		}
	}

	s.mu.Lock()
	s.latest = out
	s.indexed = indexed
	s.mu.Unlock()
	return out, nil
}

// Latest returns the most recent successful run.
func (s *Service) Latest() (*scan.Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, apperr.ErrNoReport
	}
	return s.latest, nil
}

// queryIndex returns the index when it holds the results of the latest run.
func (s *Service) queryIndex() index.ReferenceIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.indexed {
		return s.idx
	}
	return nil
}

// Report returns the latest report.
func (s *Service) Report() (*report.Report, error) {
	out, err := s.Latest()
	if err != nil {
		return nil, err
	}
	return out.Report, nil
}

// MissingModules lists missing import targets, sorted, with their importers.
func (s *Service) MissingModules() ([]MissingModule, error) {
	rep, err := s.Report()
	if err != nil {
		return nil, err
	}
	paths := rep.ModulePaths()
	items := make([]MissingModule, 0, len(paths))
	for _, p := range paths {
		items = append(items, MissingModule{Target: p, ImportedIn: rep.MissingFilesDetail[p]})
	}
	return items, nil
}

// MissingAssets returns missing asset paths per category. An empty category
// returns all of them; anything else must name a known category.
func (s *Service) MissingAssets(category string) (map[string][]string, error) {
	if category != "" && !models.Category(category).Valid() {
		return nil, fmt.Errorf("%w: %q", apperr.ErrUnknownCategory, category)
	}
	rep, err := s.Report()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string)
	for cat, paths := range rep.MissingAssetsDetail {
		if category == "" || cat == category {
			out[cat] = paths
		}
	}
	return out, nil
}

// MissingEntries returns every missing import and asset reference of the
// latest run in scan order, without de-duplication.
func (s *Service) MissingEntries() ([]models.MissingEntry, []models.MissingAsset, error) {
	rep, err := s.Report()
	if err != nil {
		return nil, nil, err
	}
	return rep.Entries, rep.Assets, nil
}

// Missing returns the unresolved references of the latest run, optionally
// restricted to one kind.
func (s *Service) Missing(kind string) ([]index.ResultRow, error) {
	if kind != "" && !models.Kind(kind).Valid() {
		return nil, fmt.Errorf("%w: %q", apperr.ErrUnknownKind, kind)
	}
	out, err := s.Latest()
	if err != nil {
		return nil, err
	}
	if idx := s.queryIndex(); idx != nil {
		return idx.Missing(kind)
	}
	return filterRows(out.Results, func(r resolve.Result) bool {
		return r.Missing() && (kind == "" || string(r.Reference.Kind) == kind)
	}, 0), nil
}

// Importers returns every reference whose normalized target equals target.
func (s *Service) Importers(target string) ([]index.ResultRow, error) {
	out, err := s.Latest()
	if err != nil {
		return nil, err
	}
	if idx := s.queryIndex(); idx != nil {
		return idx.Importers(target)
	}
	return filterRows(out.Results, func(r resolve.Result) bool { return r.Target == target }, 0), nil
}

// Search returns references whose target or raw text contains query. The
// match is exact and case-sensitive.
func (s *Service) Search(query string, limit int) ([]index.ResultRow, error) {
	out, err := s.Latest()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = index.DefaultSearchLimit
	}
	if idx := s.queryIndex(); idx != nil {
		return idx.SearchTargets(query, limit)
	}
	return filterRows(out.Results, func(r resolve.Result) bool {
		return strings.Contains(r.Target, query) || strings.Contains(r.Reference.Raw, query)
	}, limit), nil
}

func filterRows(results []resolve.Result, keep func(resolve.Result) bool, limit int) []index.ResultRow {
	var rows []index.ResultRow
	for _, r := range results {
		if keep(r) {
			rows = append(rows, rowOf(r))
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Target != rows[j].Target {
			return rows[i].Target < rows[j].Target
		}
		if rows[i].Source != rows[j].Source {
			return rows[i].Source < rows[j].Source
		}
		return rows[i].Line < rows[j].Line
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

func rowOf(r resolve.Result) index.ResultRow {
	return index.ResultRow{
		Source:   r.Reference.Origin,
		Raw:      r.Reference.Raw,
		Target:   r.Target,
		Kind:     string(r.Reference.Kind),
		Category: string(r.Reference.Category),
		Status:   string(r.Status),
		Line:     r.Reference.Line,
	}
}
