package checklist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kandyfoma/hk-management-systems-sub000/internal/domain/protocol"
	"github.com/kandyfoma/hk-management-systems-sub000/internal/platform/metrics"
)

type failingStore struct{ err error }

func (f failingStore) Save(context.Context, string, []byte, time.Duration) error { return f.err }
func (f failingStore) Load(context.Context, string) ([]byte, error) { return nil, f.err }
func (f failingStore) Delete(context.Context, string) error { return f.err }

// swappableResolver stands in for the engine, whose index changes on sync.
type swappableResolver struct{ ix *protocol.Index }

func (r *swappableResolver) Resolve(code string, vt protocol.VisitType) protocol.ProtocolQueryResult {
	return r.ix.Resolve(code, vt)
}

func newTestService() *Service {
	svc := NewService(newTestBuilder(), NewMemoryDraftStore(), time.Hour)
	svc.SetMetrics(metrics.New())
	return svc
}

func foreurRequest() BuildRequest {
	return BuildRequest{
		PatientID:      "patient-1",
		PositionCode:   "FOREUR",
		VisitType:      protocol.VisitPreEmployment,
		CompletedCodes: []string{"RADIO_THORAX"},
	}
}

func TestService_Build_Validation(t *testing.T) {
	svc := newTestService()

	tests := []struct {
		name string
		req  BuildRequest
	}{
		{"missing patient", BuildRequest{PositionCode: "FOREUR", VisitType: protocol.VisitPeriodic}},
		{"missing position", BuildRequest{PatientID: "p", VisitType: protocol.VisitPeriodic}},
		{"missing visit type", BuildRequest{PatientID: "p", PositionCode: "FOREUR"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Build(tt.req); !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestService_DraftLifecycle(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	d, err := svc.StartDraft(ctx, foreurRequest(), "nurse-1")
	if err != nil {
		t.Fatalf("StartDraft: %v", err)
	}
	if _, err := uuid.Parse(d.ID); err != nil {
		t.Errorf("expected uuid draft id, got %q", d.ID)
	}
	if d.CreatedBy != "nurse-1" || d.Checklist.CompletionRate != 33 {
		t.Errorf("unexpected draft %+v", d)
	}

	d, err = svc.UpdateDraftItem(ctx, d.ID, "EXAM_CLINIQUE_COMPLET", ItemChange{Completed: true})
	if err != nil {
		t.Fatalf("UpdateDraftItem: %v", err)
	}
	abnormal := true
	summary := "Pb 480 µg/L"
	d, err = svc.UpdateDraftItem(ctx, d.ID, "PLOMBEMIE", ItemChange{
		Completed:  true,
		ItemUpdate: ItemUpdate{ResultSummary: &summary, IsAbnormal: &abnormal},
	})
	if err != nil {
		t.Fatalf("UpdateDraftItem: %v", err)
	}

	got, err := svc.GetDraft(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDraft: %v", err)
	}
	if got.Checklist.CompletionRate != 100 || !got.Checklist.AllRequiredDone {
		t.Errorf("expected completed checklist, got %d/%v", got.Checklist.CompletionRate, got.Checklist.AllRequiredDone)
	}
	plomb := got.Checklist.Items[2]
	if plomb.ResultSummary != summary || !plomb.IsAbnormal || plomb.CompletedAt == nil {
		t.Errorf("item fields not kept across resume: %+v", plomb)
	}
	if !got.Checklist.GeneratedAt.Equal(testNow) {
		t.Errorf("expected original GeneratedAt, got %v", got.Checklist.GeneratedAt)
	}

	if err := svc.DiscardDraft(ctx, d.ID); err != nil {
		t.Fatalf("DiscardDraft: %v", err)
	}
	if _, err := svc.GetDraft(ctx, d.ID); !errors.Is(err, ErrDraftNotFound) {
		t.Errorf("expected ErrDraftNotFound after discard, got %v", err)
	}
}

func TestService_UpdateUnknownExamIsNoop(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	d, err := svc.StartDraft(ctx, foreurRequest(), "")
	if err != nil {
		t.Fatalf("StartDraft: %v", err)
	}
	updated, err := svc.UpdateDraftItem(ctx, d.ID, "NOT_THERE", ItemChange{Completed: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Checklist.CompletionRate != d.Checklist.CompletionRate {
		t.Errorf("expected unchanged completion, got %d", updated.Checklist.CompletionRate)
	}
}

func TestService_InvalidDraftID(t *testing.T) {
	svc := newTestService()

	if _, err := svc.GetDraft(context.Background(), "not-a-uuid"); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
	if err := svc.DiscardDraft(context.Background(), "../etc"); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestService_StoreFailure(t *testing.T) {
	boom := errors.New("connection reset")
	svc := NewService(newTestBuilder(), failingStore{err: boom}, time.Hour)

	if _, err := svc.StartDraft(context.Background(), foreurRequest(), ""); !errors.Is(err, boom) {
		t.Errorf("expected store error, got %v", err)
	}
	if _, err := svc.GetDraft(context.Background(), uuid.NewString()); !errors.Is(err, boom) {
		t.Errorf("expected store error, got %v", err)
	}
}

func TestService_DraftSurvivesHierarchyChange(t *testing.T) {
	resolver := &swappableResolver{ix: testResolver()}
	svc := NewService(NewBuilder(resolver, func() time.Time { return testNow }), NewMemoryDraftStore(), time.Hour)
	ctx := context.Background()

	d, err := svc.StartDraft(ctx, foreurRequest(), "nurse-1")
	if err != nil {
		t.Fatalf("StartDraft: %v", err)
	}
	summary := "Pb 480 µg/L"
	if _, err := svc.UpdateDraftItem(ctx, d.ID, "PLOMBEMIE", ItemChange{
		Completed:  true,
		ItemUpdate: ItemUpdate{ResultSummary: &summary},
	}); err != nil {
		t.Fatalf("UpdateDraftItem: %v", err)
	}

	resolver.ix = protocol.BuildIndex(nil, nil)

	d, err = svc.UpdateDraftItem(ctx, d.ID, "EXAM_CLINIQUE_COMPLET", ItemChange{Completed: true})
	if err != nil {
		t.Fatalf("UpdateDraftItem after sync: %v", err)
	}
	if len(d.Checklist.Items) != 4 || !d.Checklist.HasProtocol {
		t.Fatalf("expected the stored items to be kept, got %+v", d.Checklist)
	}
	if d.Checklist.CompletionRate != 100 || !d.Checklist.AllRequiredDone {
		t.Errorf("expected 100/done, got %d/%v", d.Checklist.CompletionRate, d.Checklist.AllRequiredDone)
	}

	got, err := svc.GetDraft(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDraft: %v", err)
	}
	if got.Checklist.Items[2].ResultSummary != summary {
		t.Errorf("expected recorded result to survive, got %+v", got.Checklist.Items[2])
	}

	if _, err := svc.RefreshDraft(ctx, d.ID); !errors.Is(err, ErrNoProtocol) {
		t.Errorf("expected ErrNoProtocol, got %v", err)
	}
	got, err = svc.GetDraft(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDraft: %v", err)
	}
	if len(got.Checklist.Items) != 4 {
		t.Errorf("failed refresh must not rewrite the draft, got %d items", len(got.Checklist.Items))
	}
}

func TestService_RefreshDraft(t *testing.T) {
	resolver := &swappableResolver{ix: testResolver()}
	svc := NewService(NewBuilder(resolver, func() time.Time { return testNow }), NewMemoryDraftStore(), time.Hour)
	ctx := context.Background()

	d, err := svc.StartDraft(ctx, foreurRequest(), "")
	if err != nil {
		t.Fatalf("StartDraft: %v", err)
	}

	catalog := []protocol.ExamCatalogEntry{
		{Code: "RADIO_THORAX", Label: "Radiographie thoracique", Category: protocol.CategoryImaging},
		{Code: "AUDIOGRAMME", Label: "Audiogramme", Category: protocol.CategoryFunctional},
	}
	resolver.ix = protocol.BuildIndex([]protocol.Sector{
		{Code: "MINES", Name: "Mines", Departments: []protocol.Department{
			{Code: "MINES_EXTRACTION", Name: "Extraction", Positions: []protocol.Position{
				{Code: "FOREUR", Name: "Foreur", Protocols: []protocol.VisitProtocol{
					{VisitType: protocol.VisitPreEmployment, RequiredExams: []string{"RADIO_THORAX", "AUDIOGRAMME"}},
				}},
			}},
		}},
	}, catalog)

	got, err := svc.RefreshDraft(ctx, d.ID)
	if err != nil {
		t.Fatalf("RefreshDraft: %v", err)
	}
	if len(got.Checklist.Items) != 2 || !got.Checklist.Items[0].IsCompleted {
		t.Errorf("expected refreshed items with RADIO_THORAX done, got %+v", got.Checklist.Items)
	}
	if got.Checklist.CompletionRate != 50 {
		t.Errorf("expected 50, got %d", got.Checklist.CompletionRate)
	}
}
