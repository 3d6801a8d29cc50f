package syncgw

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/kandyfoma/hk-management-systems-sub000/internal/domain/protocol"
)

const (
	HierarchyPath = "/api/v1/occupational-health/hierarchy/"
	CatalogPath   = "/api/v1/occupational-health/exam-catalog/"
)

// HTTPConfig configures the backend API source.
type HTTPConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Retries int
}

// HTTPSource fetches the hierarchy and catalog from the backend REST API.
type HTTPSource struct {
	client *resty.Client
	logger zerolog.Logger
}

var _ protocol.Source = (*HTTPSource)(nil)

func NewHTTPSource(cfg HTTPConfig, logger zerolog.Logger) *HTTPSource {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	return &HTTPSource{client: client, logger: logger}
}

func (s *HTTPSource) FetchHierarchy(ctx context.Context) ([]protocol.Sector, error) {
	body, err := s.get(ctx, HierarchyPath)
	if err != nil {
		return nil, err
	}
	return DecodeHierarchy(body)
}

func (s *HTTPSource) FetchCatalog(ctx context.Context) ([]protocol.ExamCatalogEntry, error) {
	body, err := s.get(ctx, CatalogPath)
	if err != nil {
		return nil, err
	}
	return DecodeCatalog(body)
}

func (s *HTTPSource) get(ctx context.Context, path string) ([]byte, error) {
	resp, err := s.client.R().SetContext(ctx).Get(path)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.IsError() {
		s.logger.Warn().Str("path", path).Int("status", resp.StatusCode()).Msg("sync backend returned an error")
		return nil, fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode())
	}
	s.logger.Debug().Str("path", path).Int("bytes", len(resp.Body())).Dur("elapsed", resp.Time()).Msg("sync backend response")
	return resp.Body(), nil
}
