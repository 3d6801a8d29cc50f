package protocol

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/kandyfoma/hk-management-systems-sub000/internal/platform/metrics"
)

// Source supplies a hierarchy and catalog from outside the process.
type Source interface {
	FetchHierarchy(ctx context.Context) ([]Sector, error)
	FetchCatalog(ctx context.Context) ([]ExamCatalogEntry, error)
}

// SnapshotCache persists the last snapshot obtained from a Source.
type SnapshotCache interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, s Snapshot) error
}

// Origin tells where the active snapshot came from.
type Origin string

const (
	OriginBundled Origin = "bundled"
	OriginCache   Origin = "cache"
	OriginRemote  Origin = "remote"
)

// Sync failure reasons.
const (
	ReasonHierarchyFetch = "hierarchy_fetch_failed"
	ReasonCatalogFetch   = "catalog_fetch_failed"
	ReasonEmptyHierarchy = "empty_hierarchy"
	ReasonEmptyCatalog   = "empty_catalog"
	ReasonCancelled      = "cancelled"
	ReasonNoSource       = "no_source"
)

// SyncStatus is the outcome of one Sync call. On failure the engine keeps
// serving its previous snapshot.
type SyncStatus struct {
	OK          bool          `json:"ok"`
	Reason      string        `json:"reason,omitempty"`
	Error       string        `json:"error,omitempty"`
	CacheError  string        `json:"cache_error,omitempty"`
	Counts      Counts        `json:"counts"`
	AttemptedAt time.Time     `json:"attempted_at"`
	Duration    time.Duration `json:"duration"`
}

// Status describes the engine's active snapshot.
type Status struct {
	Origin           Origin      `json:"origin"`
	LoadedFromRemote bool        `json:"loaded_from_remote"`
	LoadedAt         time.Time   `json:"loaded_at"`
	TieBreak         string      `json:"tie_break"`
	Counts           Counts      `json:"counts"`
	LastSync         *SyncStatus `json:"last_sync,omitempty"`
}

// Engine owns the active Index. Readers always see a complete index: a new
// snapshot is indexed off to the side and published with one atomic store.
type Engine struct {
	index    atomic.Pointer[Index]
	tieBreak TieBreak
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	cache    SnapshotCache
	now      func() time.Time

	syncMu sync.Mutex

	mu               sync.RWMutex
	origin           Origin
	loadedFromRemote bool
	loadedAt         time.Time
	lastSync         *SyncStatus
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

func WithLogger(l zerolog.Logger) EngineOption { return func(e *Engine) { e.logger = l } }
func WithMetrics(m *metrics.Metrics) EngineOption { return func(e *Engine) { e.metrics = m } }
func WithSnapshotCache(c SnapshotCache) EngineOption { return func(e *Engine) { e.cache = c } }
func WithClock(now func() time.Time) EngineOption { return func(e *Engine) { e.now = now } }
func WithProtocolTieBreak(t TieBreak) EngineOption { return func(e *Engine) { e.tieBreak = t } }

// NewEngine returns an engine serving initial, normally the bundled default
// snapshot.
func NewEngine(initial Snapshot, opts ...EngineOption) *Engine {
	e := &Engine{
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.load(initial, OriginBundled)
	return e
}

// Index returns the active index.
func (e *Engine) Index() *Index { return e.index.Load() }

// Resolve resolves against the active index.
func (e *Engine) Resolve(positionCode string, visitType VisitType) ProtocolQueryResult {
	res := e.Index().Resolve(positionCode, visitType)
	switch {
	case res.HasProtocol:
		e.metrics.ObserveResolution("protocol")
	case res.Position.Code != "":
		e.metrics.ObserveResolution("no_protocol")
	default:
		e.metrics.ObserveResolution("unknown_position")
	}
	return res
}

// Search searches the active index.
func (e *Engine) Search(query string) []SearchResult {
	return e.Index().Search(query)
}

// Restore replaces the active snapshot with the cached one, if a cache is
// configured and holds a non-empty snapshot.
func (e *Engine) Restore(ctx context.Context) error {
	if e.cache == nil {
		return nil
	}
	s, err := e.cache.Load(ctx)
	if err != nil {
		return fmt.Errorf("load cached snapshot: %w", err)
	}
	if len(s.Sectors) == 0 || len(s.Catalog) == 0 {
		return nil
	}
	e.load(s, OriginCache)
	e.logger.Info().
		Time("fetched_at", s.FetchedAt).
		Int("sectors", len(s.Sectors)).
		Msg("restored cached protocol snapshot")
	return nil
}

// Sync fetches a new hierarchy and catalog from src and rebuilds the index
// when both are non-empty. Failures, cancellation and empty results leave the
// active snapshot untouched and are reported in the returned status.
func (e *Engine) Sync(ctx context.Context, src Source) SyncStatus {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()

	start := e.now()
	status := SyncStatus{AttemptedAt: start}
	finish := func(reason string, err error) SyncStatus {
		status.Reason = reason
		if err != nil {
			status.Error = err.Error()
		}
		status.Duration = e.now().Sub(start)
		status.Counts = e.Index().Counts()
		e.recordSync(status)
		return status
	}

	if src == nil {
		return finish(ReasonNoSource, errors.New("no sync source configured"))
	}

	sectors, err := src.FetchHierarchy(ctx)
	if err != nil {
		return finish(failureReason(ctx, ReasonHierarchyFetch), err)
	}
	catalog, err := src.FetchCatalog(ctx)
	if err != nil {
		return finish(failureReason(ctx, ReasonCatalogFetch), err)
	}
	if err := ctx.Err(); err != nil {
		return finish(ReasonCancelled, err)
	}
	if len(sectors) == 0 {
		return finish(ReasonEmptyHierarchy, nil)
	}
	if len(catalog) == 0 {
		return finish(ReasonEmptyCatalog, nil)
	}

	snap := Snapshot{Sectors: sectors, Catalog: catalog, FetchedAt: start.UTC()}
	e.load(snap, OriginRemote)

	if e.cache != nil {
		if err := e.cache.Save(ctx, snap); err != nil {
			status.CacheError = err.Error()
			e.logger.Warn().Err(err).Msg("failed to persist protocol snapshot")
		}
	}
	status.OK = true
	return finish("", nil)
}

// Status reports the active snapshot's origin and the last sync outcome.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st := Status{
		Origin:           e.origin,
		LoadedFromRemote: e.loadedFromRemote,
		LoadedAt:         e.loadedAt,
		TieBreak:         e.tieBreak.String(),
		Counts:           e.Index().Counts(),
	}
	if e.lastSync != nil {
		last := *e.lastSync
		st.LastSync = &last
	}
	return st
}

func (e *Engine) load(s Snapshot, origin Origin) {
	ix := BuildIndex(s.Sectors, s.Catalog, WithTieBreak(e.tieBreak))
	e.index.Store(ix)

	e.mu.Lock()
	e.origin = origin
	if origin == OriginRemote {
		e.loadedFromRemote = true
	}
	e.loadedAt = e.now()
	e.mu.Unlock()

	c := ix.Counts()
	e.metrics.SetIndexSize("sectors", c.Sectors)
	e.metrics.SetIndexSize("departments", c.Departments)
	e.metrics.SetIndexSize("positions", c.Positions)
	e.metrics.SetIndexSize("exams", c.Exams)
}

func (e *Engine) recordSync(s SyncStatus) {
	e.mu.Lock()
	e.lastSync = &s
	e.mu.Unlock()

	if s.OK {
		e.metrics.ObserveSync("success")
		e.logger.Info().
			Int("sectors", s.Counts.Sectors).
			Int("positions", s.Counts.Positions).
			Int("exams", s.Counts.Exams).
			Dur("duration", s.Duration).
			Msg("protocol hierarchy synced")
		return
	}
	result := "failure"
	if s.Reason == ReasonEmptyHierarchy || s.Reason == ReasonEmptyCatalog {
		result = "empty"
	}
	e.metrics.ObserveSync(result)
	e.logger.Warn().
		Str("reason", s.Reason).
		Str("error", s.Error).
		Msg("protocol sync failed, keeping current snapshot")
}

func failureReason(ctx context.Context, fallback string) string {
	if ctx.Err() != nil {
		return ReasonCancelled
	}
	return fallback
}
