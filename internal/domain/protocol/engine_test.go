package protocol

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kandyfoma/hk-management-systems-sub000/internal/platform/metrics"
)

type fakeSource struct {
	sectors      []Sector
	catalog      []ExamCatalogEntry
	hierarchyErr error
	catalogErr   error
	calls        int
}

func (f *fakeSource) FetchHierarchy(ctx context.Context) ([]Sector, error) {
	f.calls++
	if f.hierarchyErr != nil {
		return nil, f.hierarchyErr
	}
	return f.sectors, nil
}

func (f *fakeSource) FetchCatalog(ctx context.Context) ([]ExamCatalogEntry, error) {
	if f.catalogErr != nil {
		return nil, f.catalogErr
	}
	return f.catalog, nil
}

type fakeCache struct {
	snap    Snapshot
	loadErr error
	saveErr error
	saved   int
}

func (f *fakeCache) Load(ctx context.Context) (Snapshot, error) {
	return f.snap, f.loadErr
}

func (f *fakeCache) Save(ctx context.Context, s Snapshot) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.snap = s
	f.saved++
	return nil
}

func bundledSnapshot() Snapshot {
	return Snapshot{Sectors: testSectors(), Catalog: testCatalog()}
}

func remoteSnapshot() ([]Sector, []ExamCatalogEntry) {
	sectors := []Sector{{
		Code: "BTP",
		Name: "Bâtiment",
		Departments: []Department{{
			Code: "BTP_CHANTIER",
			Name: "Chantier",
			Positions: []Position{{
				Code: "COFFREUR",
				Name: "Coffreur",
				Protocols: []VisitProtocol{{
					VisitType:     VisitPreEmployment,
					RequiredExams: []string{"APTITUDE_HAUTEUR"},
				}},
			}},
		}},
	}}
	catalog := []ExamCatalogEntry{
		{Code: "APTITUDE_HAUTEUR", Label: "Aptitude hauteur", Category: CategoryFitnessSpecific},
	}
	return sectors, catalog
}

func fixedClock() func() time.Time {
	t0 := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time { return t0 }
}

func TestEngine_ServesBundledSnapshot(t *testing.T) {
	e := NewEngine(bundledSnapshot())

	st := e.Status()
	if st.Origin != OriginBundled || st.LoadedFromRemote {
		t.Errorf("expected bundled origin, got %+v", st)
	}
	if !e.Resolve("FOREUR", VisitPreEmployment).HasProtocol {
		t.Error("expected bundled protocol for FOREUR")
	}
}

func TestEngine_SyncSuccess(t *testing.T) {
	m := metrics.New()
	cache := &fakeCache{}
	e := NewEngine(bundledSnapshot(), WithMetrics(m), WithSnapshotCache(cache), WithClock(fixedClock()))

	sectors, catalog := remoteSnapshot()
	status := e.Sync(context.Background(), &fakeSource{sectors: sectors, catalog: catalog})

	if !status.OK {
		t.Fatalf("expected successful sync, got %+v", status)
	}
	if status.Counts.Positions != 1 || status.Counts.Exams != 1 {
		t.Errorf("unexpected counts %+v", status.Counts)
	}
	if e.Resolve("FOREUR", VisitPreEmployment).HasProtocol {
		t.Error("old snapshot still served after sync")
	}
	if !e.Resolve("COFFREUR", VisitPreEmployment).HasProtocol {
		t.Error("new snapshot not served after sync")
	}

	st := e.Status()
	if st.Origin != OriginRemote || !st.LoadedFromRemote {
		t.Errorf("expected remote origin, got %+v", st)
	}
	if st.LastSync == nil || !st.LastSync.OK {
		t.Errorf("expected last sync recorded, got %+v", st.LastSync)
	}

	if cache.saved != 1 {
		t.Fatalf("expected snapshot to be cached once, got %d", cache.saved)
	}
	if !cache.snap.FetchedAt.Equal(fixedClock()()) {
		t.Errorf("expected FetchedAt from clock, got %v", cache.snap.FetchedAt)
	}
	if !strings.Contains(scrape(t, m), `ohs_sync_attempts_total{result="success"} 1`) {
		t.Error("expected a successful sync to be counted")
	}
}

func TestEngine_SyncFailuresKeepSnapshot(t *testing.T) {
	sectors, catalog := remoteSnapshot()
	boom := errors.New("connection refused")

	tests := []struct {
		name   string
		src    Source
		reason string
	}{
		{"nil source", nil, ReasonNoSource},
		{"hierarchy error", &fakeSource{hierarchyErr: boom, catalog: catalog}, ReasonHierarchyFetch},
		{"catalog error", &fakeSource{sectors: sectors, catalogErr: boom}, ReasonCatalogFetch},
		{"empty hierarchy", &fakeSource{catalog: catalog}, ReasonEmptyHierarchy},
		{"empty catalog", &fakeSource{sectors: sectors}, ReasonEmptyCatalog},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := &fakeCache{}
			e := NewEngine(bundledSnapshot(), WithSnapshotCache(cache))
			before := e.Index()

			status := e.Sync(context.Background(), tt.src)
			if status.OK {
				t.Fatal("expected sync to fail")
			}
			if status.Reason != tt.reason {
				t.Errorf("expected reason %q, got %q", tt.reason, status.Reason)
			}
			if e.Index() != before {
				t.Error("index replaced after failed sync")
			}
			if e.Status().LoadedFromRemote {
				t.Error("LoadedFromRemote set after failed sync")
			}
			if cache.saved != 0 {
				t.Error("failed sync was cached")
			}
			if !e.Resolve("FOREUR", VisitPreEmployment).HasProtocol {
				t.Error("bundled snapshot no longer served")
			}
		})
	}
}

func TestEngine_SyncCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewEngine(bundledSnapshot())
	before := e.Index()
	status := e.Sync(ctx, &fakeSource{hierarchyErr: context.Canceled})

	if status.OK || status.Reason != ReasonCancelled {
		t.Errorf("expected cancelled status, got %+v", status)
	}
	if e.Index() != before {
		t.Error("index replaced after cancelled sync")
	}
}

func TestEngine_SyncCancelledAfterFetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sectors, catalog := remoteSnapshot()
	e := NewEngine(bundledSnapshot())
	status := e.Sync(ctx, &fakeSource{sectors: sectors, catalog: catalog})

	if status.OK || status.Reason != ReasonCancelled {
		t.Errorf("expected cancelled status, got %+v", status)
	}
}

func TestEngine_SyncCacheErrorIsReported(t *testing.T) {
	sectors, catalog := remoteSnapshot()
	e := NewEngine(bundledSnapshot(), WithSnapshotCache(&fakeCache{saveErr: errors.New("disk full")}))

	status := e.Sync(context.Background(), &fakeSource{sectors: sectors, catalog: catalog})
	if !status.OK {
		t.Fatal("cache failure must not fail the sync")
	}
	if status.CacheError != "disk full" {
		t.Errorf("expected cache error, got %q", status.CacheError)
	}
}

func TestEngine_Restore(t *testing.T) {
	sectors, catalog := remoteSnapshot()
	cache := &fakeCache{snap: Snapshot{Sectors: sectors, Catalog: catalog}}
	e := NewEngine(bundledSnapshot(), WithSnapshotCache(cache))

	if err := e.Restore(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st := e.Status()
	if st.Origin != OriginCache {
		t.Errorf("expected cache origin, got %s", st.Origin)
	}
	if st.LoadedFromRemote {
		t.Error("restoring from cache must not set LoadedFromRemote")
	}
	if !e.Resolve("COFFREUR", VisitPreEmployment).HasProtocol {
		t.Error("cached snapshot not served")
	}
}

func TestEngine_RestoreEmptyOrFailing(t *testing.T) {
	e := NewEngine(bundledSnapshot(), WithSnapshotCache(&fakeCache{}))
	if err := e.Restore(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Status().Origin != OriginBundled {
		t.Error("empty cache replaced the bundled snapshot")
	}

	e = NewEngine(bundledSnapshot(), WithSnapshotCache(&fakeCache{loadErr: errors.New("corrupt")}))
	if err := e.Restore(context.Background()); err == nil {
		t.Error("expected load error to be returned")
	}
	if e.Status().Origin != OriginBundled {
		t.Error("failed restore replaced the bundled snapshot")
	}

	if err := NewEngine(bundledSnapshot()).Restore(context.Background()); err != nil {
		t.Errorf("restore without cache should be a no-op, got %v", err)
	}
}

func TestEngine_Metrics(t *testing.T) {
	m := metrics.New()
	e := NewEngine(bundledSnapshot(), WithMetrics(m))

	e.Resolve("FOREUR", VisitPreEmployment)
	e.Resolve("FOREUR", VisitNightWork)
	e.Resolve("NOPE", VisitPeriodic)
	e.Sync(context.Background(), &fakeSource{})

	body := scrape(t, m)
	for _, want := range []string{
		`ohs_protocol_resolutions_total{outcome="protocol"} 1`,
		`ohs_protocol_resolutions_total{outcome="no_protocol"} 1`,
		`ohs_protocol_resolutions_total{outcome="unknown_position"} 1`,
		`ohs_sync_attempts_total{result="empty"} 1`,
		`ohs_index_entities{kind="positions"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s in exposition", want)
		}
	}
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics handler returned %d", rec.Code)
	}
	return rec.Body.String()
}

func TestEngine_ConcurrentReadsDuringSync(t *testing.T) {
	sectors, catalog := remoteSnapshot()
	e := NewEngine(bundledSnapshot(), WithProtocolTieBreak(TieBreakLast))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				res := e.Resolve("FOREUR", VisitPreEmployment)
				if res.HasProtocol && len(res.RequiredExams) != 3 {
					t.Errorf("observed partial index: %v", examCodes(res.RequiredExams))
					return
				}
				e.Search("foreur")
			}
		}()
	}
	for i := 0; i < 5; i++ {
		e.Sync(context.Background(), &fakeSource{sectors: sectors, catalog: catalog})
	}
	wg.Wait()

	if e.Status().TieBreak != "last" {
		t.Errorf("expected tie-break last, got %s", e.Status().TieBreak)
	}
}
