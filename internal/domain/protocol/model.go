package protocol

import "time"

// ExamCategory classifies an exam in the catalog.
type ExamCategory string

const (
	CategoryClinical        ExamCategory = "clinical"
	CategoryLaboratory      ExamCategory = "laboratory"
	CategoryImaging         ExamCategory = "imaging"
	CategoryFunctional      ExamCategory = "functional"
	CategoryCardiac         ExamCategory = "cardiac"
	CategoryOphthalmologic  ExamCategory = "ophthalmologic"
	CategoryNeurologic      ExamCategory = "neurologic"
	CategoryToxicologic     ExamCategory = "toxicologic"
	CategoryPsychotechnical ExamCategory = "psychotechnical"
	CategoryPsychosocial    ExamCategory = "psychosocial"
	CategoryFitnessSpecific ExamCategory = "fitness_specific"
)

var validCategories = map[ExamCategory]bool{
	CategoryClinical: true, CategoryLaboratory: true, CategoryImaging: true,
	CategoryFunctional: true, CategoryCardiac: true, CategoryOphthalmologic: true,
	CategoryNeurologic: true, CategoryToxicologic: true, CategoryPsychotechnical: true,
	CategoryPsychosocial: true, CategoryFitnessSpecific: true,
}

// Valid reports whether c is one of the known categories.
func (c ExamCategory) Valid() bool { return validCategories[c] }

// VisitType is the category of an occupational medical visit. Values outside
// the known set are carried through unchanged.
type VisitType string

const (
	VisitPreEmployment    VisitType = "pre_employment"
	VisitPeriodic         VisitType = "periodic"
	VisitReturnToWork     VisitType = "return_to_work"
	VisitPostIncident     VisitType = "post_incident"
	VisitFitnessForDuty   VisitType = "fitness_for_duty"
	VisitExit             VisitType = "exit"
	VisitSpecialRequest   VisitType = "special_request"
	VisitNightWork        VisitType = "night_work"
	VisitPregnancyRelated VisitType = "pregnancy_related"
)

// VisitTypeInfo pairs a visit type with its display label.
type VisitTypeInfo struct {
	Type  VisitType `json:"type"`
	Label string    `json:"label"`
}

// KnownVisitTypes lists the visit types in display order.
var KnownVisitTypes = []VisitTypeInfo{
	{VisitPreEmployment, "Visite d'embauche"},
	{VisitPeriodic, "Visite périodique"},
	{VisitReturnToWork, "Visite de reprise"},
	{VisitPostIncident, "Visite post-accident"},
	{VisitFitnessForDuty, "Aptitude au poste"},
	{VisitExit, "Visite de fin de contrat"},
	{VisitSpecialRequest, "Visite à la demande"},
	{VisitNightWork, "Travail de nuit"},
	{VisitPregnancyRelated, "Suivi grossesse"},
}

// Label returns the display label of v, or v itself when unknown.
func (v VisitType) Label() string {
	for _, info := range KnownVisitTypes {
		if info.Type == v {
			return info.Label
		}
	}
	return string(v)
}

// Known reports whether v is part of KnownVisitTypes.
func (v VisitType) Known() bool {
	for _, info := range KnownVisitTypes {
		if info.Type == v {
			return true
		}
	}
	return false
}

// ExamCatalogEntry is a medical exam definition. Mandatory means the exam must
// always be documented; it does not add the exam to any protocol.
type ExamCatalogEntry struct {
	Code               string       `json:"code"`
	Label              string       `json:"label"`
	Category           ExamCategory `json:"category"`
	Description        string       `json:"description,omitempty"`
	RequiresSpecialist bool         `json:"requires_specialist,omitempty"`
	Mandatory          bool         `json:"mandatory,omitempty"`
}

// Sector is the top-level industry grouping and owns its departments.
type Sector struct {
	Code               string       `json:"code"`
	Name               string       `json:"name"`
	IndustryProfileKey string       `json:"industry_profile_key,omitempty"`
	Departments        []Department `json:"departments"`
}

// Department is a work unit inside a sector. Its code is unique across the
// whole hierarchy.
type Department struct {
	Code       string     `json:"code"`
	Name       string     `json:"name"`
	SectorCode string     `json:"sector_code"`
	Positions  []Position `json:"positions"`
}

// Position is a job role; visit protocols attach here.
type Position struct {
	Code             string          `json:"code"`
	Name             string          `json:"name"`
	DepartmentCode   string          `json:"department_code"`
	SectorCode       string          `json:"sector_code"`
	Protocols        []VisitProtocol `json:"protocols"`
	TypicalExposures []string        `json:"typical_exposures,omitempty"`
	RecommendedPPE   []string        `json:"recommended_ppe,omitempty"`
}

// VisitProtocol binds a position and a visit type to ordered exam codes.
// ValidityMonths of 0 means the visit has no periodic re-validity.
type VisitProtocol struct {
	VisitType        VisitType `json:"visit_type"`
	VisitTypeLabel   string    `json:"visit_type_label"`
	RequiredExams    []string  `json:"required_exams"`
	RecommendedExams []string  `json:"recommended_exams,omitempty"`
	RegulatoryNote   string    `json:"regulatory_note,omitempty"`
	ValidityMonths   int       `json:"validity_months"`
}

// NextDueDate returns the date the visit must be repeated, or false when the
// protocol is one-time.
func (p VisitProtocol) NextDueDate(visitDate time.Time) (time.Time, bool) {
	if p.ValidityMonths <= 0 {
		return time.Time{}, false
	}
	return visitDate.AddDate(0, p.ValidityMonths, 0), true
}

// Snapshot is a complete hierarchy plus catalog as delivered by a source.
type Snapshot struct {
	Sectors   []Sector           `json:"sectors"`
	Catalog   []ExamCatalogEntry `json:"catalog"`
	FetchedAt time.Time          `json:"fetched_at,omitempty"`
}

// ProtocolQueryResult is the outcome of resolving a position and visit type.
// An unknown position yields zero-valued Sector, Department and Position.
type ProtocolQueryResult struct {
	Sector              Sector             `json:"sector"`
	Department          Department         `json:"department"`
	Position            Position           `json:"position"`
	Protocol            *VisitProtocol     `json:"protocol"`
	RequiredExams       []ExamCatalogEntry `json:"required_exams"`
	RecommendedExams    []ExamCatalogEntry `json:"recommended_exams"`
	HasProtocol         bool               `json:"has_protocol"`
	AvailableVisitTypes []VisitType        `json:"available_visit_types"`
}

// SearchResult is one ranked hit of a free-text position search.
type SearchResult struct {
	Sector     Sector     `json:"sector"`
	Department Department `json:"department"`
	Position   Position   `json:"position"`
	MatchScore int        `json:"match_score"`
}
