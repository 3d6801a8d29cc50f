package protocol

import "testing"

func TestDefaultSnapshot(t *testing.T) {
	snap, err := DefaultSnapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Sectors) == 0 || len(snap.Catalog) == 0 {
		t.Fatal("expected a non-empty bundled snapshot")
	}

	r := Validate(snap.Sectors, snap.Catalog)
	if !r.Clean() {
		t.Errorf("bundled snapshot has %d lint issues: %+v", r.IssueCount(), r)
	}
}

func TestDefaultSnapshot_Foreur(t *testing.T) {
	snap, err := DefaultSnapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ix := BuildIndex(snap.Sectors, snap.Catalog)

	res := ix.Resolve("FOREUR", VisitPreEmployment)
	want := []string{"EXAM_CLINIQUE_COMPLET", "RADIO_THORAX", "PLOMBEMIE"}
	if got := examCodes(res.RequiredExams); !equalStrings(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	if res := ix.Resolve("GUICHETIER", VisitExit); !res.HasProtocol || len(res.RequiredExams) != 0 {
		t.Errorf("expected exit protocol without required exams, got %+v", res)
	}
}
