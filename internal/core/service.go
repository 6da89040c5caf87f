package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/gridimport/internal/database"
	"github.com/JonMunkholm/gridimport/internal/formatter"
	"github.com/JonMunkholm/gridimport/internal/grid"
	"github.com/JonMunkholm/gridimport/internal/importer"
	"github.com/JonMunkholm/gridimport/internal/logging"
	"github.com/JonMunkholm/gridimport/internal/metrics"
	"github.com/JonMunkholm/gridimport/internal/reader"
)

// ImportTimeout bounds a single import run.
var ImportTimeout = 10 * time.Minute

// ErrUnknownProfile is returned for a profile name that is not registered.
var ErrUnknownProfile = errors.New("unknown profile")

// Service runs registered import profiles. Each run gets its own reader,
// grid and transaction; the limiter bounds how many run at once.
type Service struct {
	db       *database.DB
	profiles *Registry
	limiter  *ImportLimiter
	metrics  *metrics.Metrics
	log      *slog.Logger

	mu   sync.RWMutex
	runs map[uuid.UUID]*activeRun
}

type activeRun struct {
	info     RunInfo
	importer *importer.Importer
	cancel   context.CancelFunc
}

// RunInfo describes an import in progress.
type RunInfo struct {
	ID      uuid.UUID `json:"id"`
	Profile string    `json:"profile"`
	Source  string    `json:"source"`
	Started time.Time `json:"started"`
	Phase   string    `json:"phase"`
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithDatabase sets the connection used by query sources and database sinks.
func WithDatabase(db *database.DB) ServiceOption {
	return func(s *Service) { s.db = db }
}

// WithLimiter replaces the default limiter.
func WithLimiter(l *ImportLimiter) ServiceOption {
	return func(s *Service) { s.limiter = l }
}

// WithMetrics records every run in m.
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.log = l }
}

// NewService creates a Service over the profiles in reg.
func NewService(reg *Registry, opts ...ServiceOption) *Service {
	s := &Service{
		profiles: reg,
		runs:     make(map[uuid.UUID]*activeRun),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = NewImportLimiter(DefaultMaxConcurrentImports, DefaultMaxWaitTime)
	}
	s.log = logging.OrDefault(s.log)
	return s
}

// Profiles returns every registered profile sorted by name.
func (s *Service) Profiles() []*Profile {
	return s.profiles.All()
}

// Profile looks up a profile by name.
func (s *Service) Profile(name string) (*Profile, error) {
	p, ok := s.profiles.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}
	return p, nil
}

// Limiter exposes the service limiter.
func (s *Service) Limiter() *ImportLimiter { return s.limiter }

// Metrics returns the recorder set by WithMetrics, or nil.
func (s *Service) Metrics() *metrics.Metrics { return s.metrics }

// RunRequest names the profile to run. Source, when set, replaces the
// profile's source file; SourceName labels it in logs.
type RunRequest struct {
	Profile    string
	Source     io.Reader
	SourceName string
}

// RunResult is the outcome of a successful run. Grid is set for grid sinks
// and Database for database sinks.
type RunResult struct {
	ID       uuid.UUID         `json:"id"`
	Profile  string            `json:"profile"`
	Rows     int               `json:"rows"`
	Duration time.Duration     `json:"duration"`
	Grid     *grid.Grid        `json:"-"`
	Database *formatter.Result `json:"database,omitempty"`
}

// Run executes one import synchronously.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	p, err := s.Profile(req.Profile)
	if err != nil {
		return nil, err
	}
	if p.NeedsDatabase() && s.db == nil {
		return nil, fmt.Errorf("profile %q needs a database connection", p.Name)
	}
	if req.Source != nil && !p.AcceptsUpload() {
		return nil, fmt.Errorf("profile %q reads from a query and takes no file", p.Name)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, ImportTimeout)
	defer cancel()

	id := uuid.New()
	source := req.SourceName
	if source == "" {
		source = p.Source.Path
	}
	log := logging.Attach(ctx, s.log).With("import_id", id, "profile", p.Name)

	r, err := s.NewReader(p, req.Source, log)
	if err != nil {
		return nil, err
	}
	imp := importer.New(r, p.Schema(), importer.WithLogger(log))

	s.track(&activeRun{
		info:     RunInfo{ID: id, Profile: p.Name, Source: source, Started: time.Now()},
		importer: imp,
		cancel:   cancel,
	})
	defer s.untrack(id)

	log.Info("import started", "source", source, "sink", p.Sink.Kind)
	start := time.Now()
	s.metrics.ImportStarted()

	res := &RunResult{ID: id, Profile: p.Name}
	switch p.Sink.Kind {
	case SinkDatabase:
		sink := &formatter.Database{
			DB:             s.db,
			Dialect:        s.db.Dialect,
			Table:          p.Sink.Table,
			Query:          p.Sink.Query,
			AlwaysTruncate: p.Sink.Truncate,
			PreEvent:       p.Sink.PreEvent,
			PostEvent:      p.Sink.PostEvent,
			Logger:         log,
		}
		out, err := importer.Import[formatter.Result](ctx, imp, sink)
		if err != nil {
			return nil, s.failed(log, p.Name, start, err)
		}
		res.Database = &out
		res.Rows = int(out.Inserted)
	default:
		g, err := importer.Import[*grid.Grid](ctx, imp, formatter.Grid{})
		if err != nil {
			return nil, s.failed(log, p.Name, start, err)
		}
		res.Grid = g
		res.Rows = g.RowCount()
	}

	res.Duration = time.Since(start)
	s.metrics.ImportFinished(p.Name, metrics.OutcomeSuccess, "", res.Rows, res.Duration)
	log.Info("import finished", "rows", res.Rows, "duration", res.Duration)
	return res, nil
}

func (s *Service) failed(log *slog.Logger, profile string, start time.Time, err error) error {
	msg := MapError(err)
	if errors.Is(err, context.Canceled) {
		s.metrics.ImportFinished(profile, metrics.OutcomeCancelled, "", 0, time.Since(start))
		log.Warn("import cancelled", "error", err)
		return err
	}
	s.metrics.ImportFinished(profile, metrics.OutcomeFailed, msg.Code, 0, time.Since(start))
	log.Error("import failed", "code", msg.Code, "error", err)
	return err
}

// NewReader builds the reader a profile describes. src, when non-nil,
// replaces the profile's source file.
func (s *Service) NewReader(p *Profile, src io.Reader, log *slog.Logger) (reader.Reader, error) {
	spec := p.Source
	switch spec.Kind {
	case SourceDelimited:
		d := &reader.Delimited{
			Path:             spec.Path,
			Source:           src,
			Encoding:         spec.Encoding,
			NoHeader:         spec.NoHeader,
			HeaderSearchRows: spec.HeaderSearchRows,
			FilterColumns:    spec.FilterColumns,
			Logger:           log,
		}
		if spec.Delimiter != "" {
			d.Delimiter = []rune(spec.Delimiter)[0]
		}
		if spec.Comment != "" {
			d.Comment = []rune(spec.Comment)[0]
		}
		return d, nil
	case SourceFixed:
		return &reader.FixedWidth{Path: spec.Path, Source: src, Encoding: spec.Encoding, SkipLines: spec.SkipLines, Logger: log}, nil
	case SourceSpreadsheet:
		return &reader.Spreadsheet{
			Path:     spec.Path,
			Source:   src,
			Sheet:    spec.Sheet,
			Password: spec.Password,
			RowLimit: spec.RowLimit,
			Logger:   log,
		}, nil
	case SourceQuery:
		if s.db == nil {
			return nil, fmt.Errorf("profile %q needs a database connection", p.Name)
		}
		return &reader.Query{DB: s.db, Dialect: s.db.Dialect, Query: spec.Query, Table: spec.Table, Logger: log}, nil
	}
	return nil, fmt.Errorf("unknown source kind %q", spec.Kind)
}

func (s *Service) track(run *activeRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.info.ID] = run
}

func (s *Service) untrack(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, id)
}

// Active lists the imports in progress, oldest first.
func (s *Service) Active() []RunInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RunInfo, 0, len(s.runs))
	for _, run := range s.runs {
		info := run.info
		info.Phase = run.importer.Phase().String()
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Started.Before(out[j].Started)
	})
	return out
}

// Cancel stops a running import. Its transaction, if any, rolls back.
func (s *Service) Cancel(id uuid.UUID) error {
	s.mu.RLock()
	run, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("import %s not found", id)
	}
	run.cancel()
	return nil
}

// WaitForDrain blocks until every running import has finished or ctx ends.
func (s *Service) WaitForDrain(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
