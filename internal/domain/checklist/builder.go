package checklist

import (
	"math"
	"time"

	"github.com/kandyfoma/hk-management-systems-sub000/internal/domain/protocol"
)

// Resolver is the part of the protocol engine the builder needs.
type Resolver interface {
	Resolve(positionCode string, visitType protocol.VisitType) protocol.ProtocolQueryResult
}

type Builder struct {
	resolver Resolver
	now      func() time.Time
}

// NewBuilder returns a builder resolving protocols through r. now defaults to
// time.Now when nil.
func NewBuilder(r Resolver, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{resolver: r, now: now}
}

// Build resolves the protocol for the position and visit type and turns it
// into a checklist: required exams first in protocol order, then recommended
// ones. Exams whose code is in completedCodes start out completed. An exam
// listed twice appears once, as required if it is required anywhere.
func (b *Builder) Build(patientID, positionCode string, visitType protocol.VisitType, completedCodes []string) Checklist {
	res := b.resolver.Resolve(positionCode, visitType)

	done := make(map[string]bool, len(completedCodes))
	for _, code := range completedCodes {
		done[code] = true
	}

	cl := Checklist{
		PatientID:    patientID,
		VisitType:    visitType,
		PositionCode: positionCode,
		GeneratedAt:  b.now().UTC(),
		Items:        make([]Item, 0, len(res.RequiredExams)+len(res.RecommendedExams)),
		HasProtocol:  res.HasProtocol,
	}

	seen := make(map[string]bool)
	add := func(exams []protocol.ExamCatalogEntry, required bool) {
		for _, exam := range exams {
			if seen[exam.Code] {
				continue
			}
			seen[exam.Code] = true
			cl.Items = append(cl.Items, Item{
				Exam:        exam,
				IsRequired:  required,
				IsCompleted: done[exam.Code],
			})
		}
	}
	add(res.RequiredExams, true)
	add(res.RecommendedExams, false)

	recompute(&cl)
	return cl
}

// UpdateItem returns a copy of cl with the item for examCode marked completed
// or not and the given fields applied. An unknown exam code returns an
// unchanged copy.
func (b *Builder) UpdateItem(cl Checklist, examCode string, completed bool, upd ItemUpdate) Checklist {
	out := cl
	out.Items = append([]Item(nil), cl.Items...)

	idx := -1
	for i := range out.Items {
		if out.Items[i].Exam.Code == examCode {
			idx = i
			break
		}
	}
	if idx < 0 {
		return out
	}

	item := &out.Items[idx]
	switch {
	case completed && !item.IsCompleted:
		t := b.now().UTC()
		item.CompletedAt = &t
	case !completed:
		item.CompletedAt = nil
	}
	item.IsCompleted = completed
	if upd.ResultSummary != nil {
		item.ResultSummary = *upd.ResultSummary
	}
	if upd.IsAbnormal != nil {
		item.IsAbnormal = *upd.IsAbnormal
	}
	if upd.Notes != nil {
		item.Notes = *upd.Notes
	}

	recompute(&out)
	return out
}

// CompletedCodes lists the exam codes of completed items in checklist order.
func CompletedCodes(cl Checklist) []string {
	codes := []string{}
	for _, item := range cl.Items {
		if item.IsCompleted {
			codes = append(codes, item.Exam.Code)
		}
	}
	return codes
}

// recompute derives CompletionRate and AllRequiredDone from the items. With no
// required items the checklist is complete.
func recompute(cl *Checklist) {
	total, done := 0, 0
	for _, item := range cl.Items {
		if !item.IsRequired {
			continue
		}
		total++
		if item.IsCompleted {
			done++
		}
	}
	if total == 0 {
		cl.CompletionRate = 100
		cl.AllRequiredDone = true
		return
	}
	cl.AllRequiredDone = done == total
	cl.CompletionRate = int(math.Round(100 * float64(done) / float64(total)))
	// 100 is reserved for a fully completed checklist.
	if cl.CompletionRate == 100 && !cl.AllRequiredDone {
		cl.CompletionRate = 99
	}
}

// Resume rebuilds a saved checklist against the current protocol, carrying
// over completion and the recorded per-item fields of exams still on it.
// When the position or visit type no longer resolves to a protocol the saved
// checklist is returned unchanged and ok is false.
func (b *Builder) Resume(saved Checklist) (cl Checklist, ok bool) {
	cl = b.Build(saved.PatientID, saved.PositionCode, saved.VisitType, CompletedCodes(saved))
	if !cl.HasProtocol && saved.HasProtocol {
		return saved, false
	}
	if !saved.GeneratedAt.IsZero() {
		cl.GeneratedAt = saved.GeneratedAt
	}

	prev := make(map[string]Item, len(saved.Items))
	for _, item := range saved.Items {
		prev[item.Exam.Code] = item
	}
	for i := range cl.Items {
		old, found := prev[cl.Items[i].Exam.Code]
		if !found {
			continue
		}
		cl.Items[i].CompletedAt = old.CompletedAt
		cl.Items[i].ResultSummary = old.ResultSummary
		cl.Items[i].IsAbnormal = old.IsAbnormal
		cl.Items[i].Notes = old.Notes
	}
	return cl, true
}
