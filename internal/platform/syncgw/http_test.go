package syncgw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newBackend(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case HierarchyPath:
			_, _ = w.Write([]byte(hierarchyJSON))
		case CatalogPath:
			_, _ = w.Write([]byte(`[{"code":"EXAMEN_CLINIQUE","label":"Examen clinique","category":"clinical"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPSource_Fetch(t *testing.T) {
	srv := newBackend(t, http.StatusOK)
	src := NewHTTPSource(HTTPConfig{BaseURL: srv.URL, Token: "secret", Timeout: 2 * time.Second}, zerolog.Nop())

	sectors, err := src.FetchHierarchy(context.Background())
	if err != nil {
		t.Fatalf("FetchHierarchy: %v", err)
	}
	if len(sectors) != 1 || sectors[0].Departments[0].Positions[0].Code != "FOREUR" {
		t.Errorf("unexpected hierarchy %+v", sectors)
	}

	exams, err := src.FetchCatalog(context.Background())
	if err != nil {
		t.Fatalf("FetchCatalog: %v", err)
	}
	if len(exams) != 1 || exams[0].Code != "EXAMEN_CLINIQUE" {
		t.Errorf("unexpected catalog %+v", exams)
	}
}

func TestHTTPSource_ErrorStatus(t *testing.T) {
	srv := newBackend(t, http.StatusInternalServerError)
	src := NewHTTPSource(HTTPConfig{BaseURL: srv.URL, Token: "secret"}, zerolog.Nop())

	if _, err := src.FetchHierarchy(context.Background()); err == nil {
		t.Error("expected error on 500")
	}
}

func TestHTTPSource_Unauthorized(t *testing.T) {
	srv := newBackend(t, http.StatusOK)
	src := NewHTTPSource(HTTPConfig{BaseURL: srv.URL}, zerolog.Nop())

	if _, err := src.FetchCatalog(context.Background()); err == nil {
		t.Error("expected error without token")
	}
}

func TestHTTPSource_Cancelled(t *testing.T) {
	srv := newBackend(t, http.StatusOK)
	src := NewHTTPSource(HTTPConfig{BaseURL: srv.URL, Token: "secret"}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.FetchHierarchy(ctx); err == nil {
		t.Error("expected error for cancelled context")
	}
}
