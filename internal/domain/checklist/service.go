package checklist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kandyfoma/hk-management-systems-sub000/internal/domain/protocol"
	"github.com/kandyfoma/hk-management-systems-sub000/internal/platform/metrics"
)

var (
	// ErrInvalidRequest wraps validation failures of service input.
	ErrInvalidRequest = errors.New("invalid checklist request")
	// ErrNoProtocol is returned when a draft refresh finds no protocol for
	// the draft's position and visit type.
	ErrNoProtocol = errors.New("no protocol for draft position and visit type")
)

type BuildRequest struct {
	PatientID      string             `json:"patient_id"`
	PositionCode   string             `json:"position_code"`
	VisitType      protocol.VisitType `json:"visit_type"`
	CompletedCodes []string           `json:"completed_codes"`
}

func (r BuildRequest) validate() error {
	switch {
	case r.PatientID == "":
		return fmt.Errorf("%w: patient_id is required", ErrInvalidRequest)
	case r.PositionCode == "":
		return fmt.Errorf("%w: position_code is required", ErrInvalidRequest)
	case r.VisitType == "":
		return fmt.Errorf("%w: visit_type is required", ErrInvalidRequest)
	}
	return nil
}

type ItemChange struct {
	Completed bool `json:"completed"`
	ItemUpdate
}

type Service struct {
	builder *Builder
	store   DraftStore
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(builder *Builder, store DraftStore, ttl time.Duration) *Service {
	return &Service{
		builder: builder,
		store:   store,
		ttl:     ttl,
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
}

// SetMetrics attaches optional draft counters.
func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

func (s *Service) SetLogger(l zerolog.Logger) { s.logger = l }

// Build returns a checklist without persisting it.
func (s *Service) Build(req BuildRequest) (Checklist, error) {
	if err := req.validate(); err != nil {
		return Checklist{}, err
	}
	return s.builder.Build(req.PatientID, req.PositionCode, req.VisitType, req.CompletedCodes), nil
}

// StartDraft builds a checklist and stores it under a new draft ID.
func (s *Service) StartDraft(ctx context.Context, req BuildRequest, userID string) (*Draft, error) {
	cl, err := s.Build(req)
	if err != nil {
		return nil, err
	}
	d := &Draft{
		ID:        uuid.New().String(),
		Checklist: cl,
		CreatedBy: userID,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.save(ctx, d); err != nil {
		return nil, err
	}
	s.metrics.ObserveDraft("start")
	s.logger.Debug().
		Str("draft_id", d.ID).
		Str("position", req.PositionCode).
		Str("visit_type", string(req.VisitType)).
		Msg("checklist draft started")
	return d, nil
}

// GetDraft loads a draft as stored. The active protocol is not consulted.
func (s *Service) GetDraft(ctx context.Context, id string) (*Draft, error) {
	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveDraft("get")
	return d, nil
}

// UpdateDraftItem applies one item change and stores the result, refreshing
// the draft's TTL. An exam code not on the checklist leaves it unchanged.
func (s *Service) UpdateDraftItem(ctx context.Context, id, examCode string, change ItemChange) (*Draft, error) {
	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Checklist = s.builder.UpdateItem(d.Checklist, examCode, change.Completed, change.ItemUpdate)
	d.UpdatedAt = s.now().UTC()
	if err := s.save(ctx, d); err != nil {
		return nil, err
	}
	s.metrics.ObserveDraft("update")
	return d, nil
}

// RefreshDraft rebuilds a draft's checklist against the active protocol,
// keeping completion and recorded results of exams that remain on it. The
// draft is left untouched when the protocol no longer exists.
func (s *Service) RefreshDraft(ctx context.Context, id string) (*Draft, error) {
	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	cl, ok := s.builder.Resume(d.Checklist)
	if !ok {
		s.logger.Warn().
			Str("draft_id", d.ID).
			Str("position", d.Checklist.PositionCode).
			Str("visit_type", string(d.Checklist.VisitType)).
			Msg("draft refresh skipped, protocol not found")
		return nil, ErrNoProtocol
	}
	d.Checklist = cl
	d.UpdatedAt = s.now().UTC()
	if err := s.save(ctx, d); err != nil {
		return nil, err
	}
	s.metrics.ObserveDraft("refresh")
	return d, nil
}

func (s *Service) DiscardDraft(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: invalid draft id", ErrInvalidRequest)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.metrics.ObserveDraft("discard")
	return nil
}

func (s *Service) save(ctx context.Context, d *Draft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	return s.store.Save(ctx, d.ID, data, s.ttl)
}

func (s *Service) load(ctx context.Context, id string) (*Draft, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: invalid draft id", ErrInvalidRequest)
	}
	data, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", id, err)
	}
	recompute(&d.Checklist)
	return &d, nil
}
