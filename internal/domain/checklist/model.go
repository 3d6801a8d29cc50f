package checklist

import (
	"time"

	"github.com/kandyfoma/hk-management-systems-sub000/internal/domain/protocol"
)

// Checklist tracks the exams of one consultation. It is a value: UpdateItem
// returns a new Checklist and never touches the protocol hierarchy.
type Checklist struct {
	PatientID       string             `json:"patient_id"`
	VisitType       protocol.VisitType `json:"visit_type"`
	PositionCode    string             `json:"position_code"`
	GeneratedAt     time.Time          `json:"generated_at"`
	Items           []Item             `json:"items"`
	CompletionRate  int                `json:"completion_rate"`
	AllRequiredDone bool               `json:"all_required_done"`
	HasProtocol     bool               `json:"has_protocol"`
}

// Item is one exam on a checklist. IsRequired is fixed when the checklist is
// built; the other fields change as the consultation progresses.
type Item struct {
	Exam          protocol.ExamCatalogEntry `json:"exam"`
	IsRequired    bool                      `json:"is_required"`
	IsCompleted   bool                      `json:"is_completed"`
	CompletedAt   *time.Time                `json:"completed_at,omitempty"`
	ResultSummary string                    `json:"result_summary,omitempty"`
	IsAbnormal    bool                      `json:"is_abnormal"`
	Notes         string                    `json:"notes,omitempty"`
}

// ItemUpdate carries the optional fields of UpdateItem. Nil leaves the
// current value in place.
type ItemUpdate struct {
	ResultSummary *string `json:"result_summary,omitempty"`
	IsAbnormal    *bool   `json:"is_abnormal,omitempty"`
	Notes         *string `json:"notes,omitempty"`
}

// Draft is a checklist persisted between requests of one consultation.
type Draft struct {
	ID        string    `json:"id"`
	Checklist Checklist `json:"checklist"`
	CreatedBy string    `json:"created_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
