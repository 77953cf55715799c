package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/awardshelf/internal/catalog"
	"github.com/JonMunkholm/awardshelf/internal/logging"
	"github.com/JonMunkholm/awardshelf/internal/metrics"
	"github.com/JonMunkholm/awardshelf/internal/normalize"
	"github.com/JonMunkholm/awardshelf/internal/store"
)

// DefaultImportRetention is how long a finished import stays addressable by id.
const DefaultImportRetention = 5 * time.Minute

// DefaultRecentImports is how many finished results RecentImports keeps.
const DefaultRecentImports = 20

// errDryRun forces the outer transaction of a dry run to roll back.
var errDryRun = errors.New("dry run")

// ServiceConfig tunes a Service. Zero values fall back to defaults.
type ServiceConfig struct {
	MaxConcurrent  int
	MaxWait        time.Duration
	Defaults       ImportOptions
	ReadTTL        time.Duration
	RecentLimit    int
	Retention      time.Duration
	Transliterator normalize.Transliterator
}

// Service is the entry point for validation, imports, the placement read
// path and catalog administration.
type Service struct {
	store      store.Store
	validator  *Validator
	limiter    *ImportLimiter
	norm       *normalize.Normalizer
	defaults   ImportOptions
	placements *placementCache

	mu          sync.RWMutex
	imports     map[string]*activeImport
	recent      []*ImportResult
	recentLimit int
	retention   time.Duration

	now func() time.Time
}

type activeImport struct {
	ID       string
	FileName string
	Options  ImportOptions
	Done     chan struct{}

	progressMu sync.Mutex
	progress   ImportProgress
	listeners  []chan ImportProgress

	result *ImportResult
}

// NewService creates a Service over st.
func NewService(st store.Store, cfg ServiceConfig) *Service {
	recent := cfg.RecentLimit
	if recent <= 0 {
		recent = DefaultRecentImports
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = DefaultImportRetention
	}
	return &Service{
		store:       st,
		validator:   NewValidator(st),
		limiter:     NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		norm:        normalize.New(cfg.Transliterator),
		defaults:    cfg.Defaults.withDefaults(),
		placements:  newPlacementCache(cfg.ReadTTL),
		imports:     make(map[string]*activeImport),
		recentLimit: recent,
		retention:   retention,
		now:         time.Now,
	}
}

// Limiter exposes the import limiter for status reporting and shutdown.
func (s *Service) Limiter() *ImportLimiter {
	return s.limiter
}

// Defaults returns the options applied to fields a caller leaves unset.
func (s *Service) Defaults() ImportOptions {
	return s.defaults
}

// Ping checks that storage answers.
func (s *Service) Ping(ctx context.Context) error {
	_, err := s.store.ListAwardLevels(ctx)
	return err
}

// Categories lists the award categories.
func (s *Service) Categories(ctx context.Context) ([]catalog.Category, error) {
	return s.store.ListCategories(ctx)
}

// Validate checks an upload without mutating anything.
func (s *Service) Validate(ctx context.Context, r io.Reader) (*ValidationReport, error) {
	report, err := s.validator.Validate(ctx, r)
	if err != nil {
		return nil, err
	}
	recordValidation(report)
	return report, nil
}

// Import runs an import synchronously, waiting for a limiter slot.
func (s *Service) Import(ctx context.Context, fileName string, r io.Reader, opts ImportOptions) (*ImportResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	imp := s.register(fileName, s.mergeOptions(opts))
	s.process(ctx, imp, data)
	return imp.result, nil
}

// StartImport begins an asynchronous import and returns its id. It fails
// with ErrTooManyImports instead of queueing when no slot is free.
func (s *Service) StartImport(ctx context.Context, fileName string, data []byte, opts ImportOptions) (string, error) {
	if !s.limiter.TryAcquire() {
		return "", ErrTooManyImports
	}

	imp := s.register(fileName, s.mergeOptions(opts))

	// The run outlives the request but keeps its request id for logging.
	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer s.limiter.Release()
		s.process(runCtx, imp, data)
	}()

	return imp.ID, nil
}

func (s *Service) mergeOptions(opts ImportOptions) ImportOptions {
	if opts.BatchSize <= 0 {
		opts.BatchSize = s.defaults.BatchSize
	}
	if opts.TxMode == "" {
		opts.TxMode = s.defaults.TxMode
	}
	if opts.OnAmbiguous == "" {
		opts.OnAmbiguous = s.defaults.OnAmbiguous
	}
	return opts.withDefaults()
}

func (s *Service) register(fileName string, opts ImportOptions) *activeImport {
	id := uuid.New().String()
	imp := &activeImport{
		ID:       id,
		FileName: fileName,
		Options:  opts,
		Done:     make(chan struct{}),
		progress: ImportProgress{
			ImportID: id,
			FileName: fileName,
			Phase:    PhaseStarting,
		},
	}

	s.mu.Lock()
	s.imports[id] = imp
	s.mu.Unlock()
	return imp
}

func (s *Service) lookup(importID string) (*activeImport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	imp, ok := s.imports[importID]
	return imp, ok
}

// SubscribeProgress returns a channel of progress updates. The current
// snapshot is sent first and the channel is closed when the import ends.
func (s *Service) SubscribeProgress(importID string) (<-chan ImportProgress, error) {
	imp, ok := s.lookup(importID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrImportNotFound, importID)
	}

	ch := make(chan ImportProgress, 10)

	imp.progressMu.Lock()
	defer imp.progressMu.Unlock()
	ch <- imp.progress
	if imp.progress.Done() {
		close(ch)
		return ch, nil
	}
	imp.listeners = append(imp.listeners, ch)
	return ch, nil
}

// GetImportResult returns the result of an import, waiting for it to
// finish. Results of expired imports are served from the recent list.
func (s *Service) GetImportResult(ctx context.Context, importID string) (*ImportResult, error) {
	imp, ok := s.lookup(importID)
	if !ok {
		if r := s.findRecent(importID); r != nil {
			return r, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrImportNotFound, importID)
	}

	select {
	case <-imp.Done:
		return imp.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetImportProgress returns the current progress without blocking.
func (s *Service) GetImportProgress(importID string) (ImportProgress, error) {
	imp, ok := s.lookup(importID)
	if !ok {
		if r := s.findRecent(importID); r != nil {
			return r.finalProgress(), nil
		}
		return ImportProgress{}, fmt.Errorf("%w: %s", ErrImportNotFound, importID)
	}
	return imp.snapshot(), nil
}

// RecentImports returns finished imports, newest first.
func (s *Service) RecentImports() []*ImportResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*ImportResult, len(s.recent))
	for i, r := range s.recent {
		out[len(s.recent)-1-i] = r
	}
	return out
}

func (s *Service) findRecent(importID string) *ImportResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.recent {
		if r.ImportID == importID {
			return r
		}
	}
	return nil
}

func (s *Service) remember(r *ImportResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = append(s.recent, r)
	if len(s.recent) > s.recentLimit {
		s.recent = s.recent[len(s.recent)-s.recentLimit:]
	}
}

// process runs one import to completion and publishes its result.
func (s *Service) process(ctx context.Context, imp *activeImport, data []byte) {
	start := time.Now()
	ctx = logging.WithImportID(ctx, imp.ID)
	logger := logging.WithFields(ctx, "file", imp.FileName)

	result := &ImportResult{
		ImportID:  imp.ID,
		FileName:  imp.FileName,
		Options:   imp.Options,
		StartedAt: start,
	}

	defer func() {
		result.Duration = time.Since(start)
		imp.result = result
		s.remember(result)
		imp.closeListeners()
		close(imp.Done)
		s.cleanup(imp.ID, s.retention)
	}()

	fail := func(err error) {
		result.Error = err.Error()
		imp.update(func(p *ImportProgress) {
			p.Phase = PhaseFailed
			p.Error = result.Error
		})
		logger.Error("import failed", "error", err)
	}

	imp.update(func(p *ImportProgress) { p.Phase = PhaseReading })
	table, err := ReadTable(bytes.NewReader(data))
	if err != nil {
		result.Validation = structuralReport(err)
		fail(errors.New(result.Validation.Errors[0]))
		return
	}

	logger.Debug("upload decoded", "rows", len(table.Rows), "bytes", table.Bytes)
	imp.update(func(p *ImportProgress) {
		p.Phase = PhaseValidating
		p.TotalRows = len(table.Rows)
	})
	report, err := s.validator.ValidateTable(ctx, table)
	if err != nil {
		fail(fmt.Errorf("load reference data: %w", err))
		return
	}
	recordValidation(report)
	result.Validation = report
	result.TotalRows = len(table.Rows)
	if missing := table.Header.Missing(); len(missing) > 0 {
		fail(errors.New(report.Errors[0]))
		return
	}
	if !report.IsValid {
		logger.Warn("importing file with validation problems", "problems", len(report.Errors))
	}

	batches := chunkRows(table.Rows, imp.Options.BatchSize)
	imp.update(func(p *ImportProgress) {
		p.Phase = PhaseProcessing
		p.TotalBatches = len(batches)
	})
	logger.Info("import started",
		"rows", len(table.Rows),
		"batches", len(batches),
		"tx_mode", imp.Options.TxMode,
		"on_ambiguous", imp.Options.OnAmbiguous,
		"dry_run", imp.Options.DryRun,
	)

	resolver := NewResolver(s.norm, imp.Options.OnAmbiguous)
	err = s.withRunner(ctx, imp.Options.DryRun, func(run BatchRunner, cache *EntityCache) error {
		for i, batch := range batches {
			// Stop between batches; a started batch always runs to the end.
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("import stopped after batch %d: %w", i, err)
			}
			batchLogger := logger.With("batch", i+1)
			bp := NewBatchProcessor(resolver, imp.Options, batchLogger)
			br := bp.Process(context.WithoutCancel(ctx), run, cache, batch)

			result.Success += br.Success
			result.Errors += br.Errors
			result.RowErrors = append(result.RowErrors, br.RowErrors...)
			if !br.RolledBack {
				result.Created.add(br.Created)
			}

			imp.update(func(p *ImportProgress) {
				p.Batch = i + 1
				p.ProcessedRows += len(batch)
				p.Success = result.Success
				p.Errors = result.Errors
			})
			batchLogger.Debug("batch finished", "success", br.Success, "errors", br.Errors, "rolled_back", br.RolledBack)
		}
		return nil
	})
	if err != nil {
		fail(err)
		return
	}

	if !imp.Options.DryRun && result.Success > 0 {
		s.placements.invalidate()
		err := s.recordAudit(ctx, s.store, auditParams{
			Action:       catalog.ActionImport,
			Subject:      imp.FileName,
			RowsAffected: int64(result.Success),
			NewValue:     fmt.Sprintf("%d books, %d placements", result.Created.Books, result.Created.Placements),
			ImportID:     imp.ID,
		})
		if err != nil {
			logger.Warn("failed to record import in audit log", "error", err)
		}
	}

	imp.update(func(p *ImportProgress) { p.Phase = PhaseComplete })
	logger.Info("import completed",
		"success", result.Success,
		"errors", result.Errors,
		"books_created", result.Created.Books,
		"placements_created", result.Created.Placements,
		"duration", time.Since(start),
	)
}

// withRunner warms a cache and hands fn the runner each batch commits
// through. A dry run nests every batch in one outer transaction as a
// savepoint and rolls the outer transaction back at the end.
func (s *Service) withRunner(ctx context.Context, dryRun bool, fn func(BatchRunner, *EntityCache) error) error {
	if !dryRun {
		cache, err := WarmCache(ctx, s.store)
		if err != nil {
			return err
		}
		return fn(s.store.WithTx, cache)
	}

	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		cache, err := WarmCache(ctx, tx)
		if err != nil {
			return err
		}
		if err := fn(tx.Savepoint, cache); err != nil {
			return err
		}
		return errDryRun
	})
	if errors.Is(err, errDryRun) {
		return nil
	}
	return err
}

func chunkRows(rows []Row, size int) [][]Row {
	var out [][]Row
	for len(rows) > 0 {
		n := min(size, len(rows))
		out = append(out, rows[:n])
		rows = rows[n:]
	}
	return out
}

func (imp *activeImport) update(fn func(p *ImportProgress)) {
	imp.progressMu.Lock()
	defer imp.progressMu.Unlock()

	fn(&imp.progress)
	for _, ch := range imp.listeners {
		select {
		case ch <- imp.progress:
		default:
			// Listener is slow, skip this update
		}
	}
}

func (imp *activeImport) snapshot() ImportProgress {
	imp.progressMu.Lock()
	defer imp.progressMu.Unlock()
	return imp.progress
}

func (imp *activeImport) closeListeners() {
	imp.progressMu.Lock()
	defer imp.progressMu.Unlock()

	for _, ch := range imp.listeners {
		close(ch)
	}
	imp.listeners = nil
}

// cleanup removes the import from tracking after a delay.
func (s *Service) cleanup(importID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.imports, importID)
		s.mu.Unlock()
	})
}

// finalProgress rebuilds the terminal progress of a finished import.
func (r *ImportResult) finalProgress() ImportProgress {
	p := ImportProgress{
		ImportID:      r.ImportID,
		FileName:      r.FileName,
		Phase:         PhaseComplete,
		TotalRows:     r.TotalRows,
		ProcessedRows: r.Success + r.Errors,
		Success:       r.Success,
		Errors:        r.Errors,
		Error:         r.Error,
	}
	if r.Error != "" {
		p.Phase = PhaseFailed
	}
	return p
}

func recordValidation(report *ValidationReport) {
	metrics.RecordValidation(report.IsValid)
}
