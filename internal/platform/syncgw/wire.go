// Package syncgw adapts remote hierarchy sources (HTTP API, object storage,
// PostgreSQL) to protocol.Source. The backend's camelCase payloads are mapped
// to domain types by the pure functions in this file.
package syncgw

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kandyfoma/hk-management-systems-sub000/internal/domain/protocol"
)

type wireExam struct {
	Code               string `json:"code"`
	Label              string `json:"label"`
	Category           string `json:"category"`
	Description        string `json:"description"`
	RequiresSpecialist bool   `json:"requiresSpecialist"`
	Mandatory          bool   `json:"mandatory"`
}

type wireProtocol struct {
	VisitType        string   `json:"visitType"`
	VisitTypeLabel   string   `json:"visitTypeLabel"`
	RequiredExams    []string `json:"requiredExams"`
	RecommendedExams []string `json:"recommendedExams"`
	RegulatoryNote   string   `json:"regulatoryNote"`
	ValidityMonths   int      `json:"validityMonths"`
}

type wirePosition struct {
	Code             string         `json:"code"`
	Name             string         `json:"name"`
	DepartmentCode   string         `json:"departmentCode"`
	SectorCode       string         `json:"sectorCode"`
	Protocols        []wireProtocol `json:"protocols"`
	TypicalExposures []string       `json:"typicalExposures"`
	RecommendedPPE   []string       `json:"recommendedPPE"`
}

type wireDepartment struct {
	Code       string         `json:"code"`
	Name       string         `json:"name"`
	SectorCode string         `json:"sectorCode"`
	Positions  []wirePosition `json:"positions"`
}

type wireSector struct {
	Code               string           `json:"code"`
	Name               string           `json:"name"`
	IndustryProfileKey string           `json:"industryProfileKey"`
	Departments        []wireDepartment `json:"departments"`
}

type hierarchyEnvelope struct {
	Sectors []wireSector `json:"sectors"`
}

type catalogEnvelope struct {
	Exams []wireExam `json:"exams"`
}

// DecodeHierarchy parses either {"sectors": [...]} or a bare sector array.
func DecodeHierarchy(data []byte) ([]protocol.Sector, error) {
	var sectors []wireSector
	if isArray(data) {
		if err := json.Unmarshal(data, &sectors); err != nil {
			return nil, fmt.Errorf("decode hierarchy: %w", err)
		}
	} else {
		var env hierarchyEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("decode hierarchy: %w", err)
		}
		sectors = env.Sectors
	}
	return mapSectors(sectors), nil
}

// DecodeCatalog parses either {"exams": [...]} or a bare exam array.
func DecodeCatalog(data []byte) ([]protocol.ExamCatalogEntry, error) {
	var exams []wireExam
	if isArray(data) {
		if err := json.Unmarshal(data, &exams); err != nil {
			return nil, fmt.Errorf("decode catalog: %w", err)
		}
	} else {
		var env catalogEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("decode catalog: %w", err)
		}
		exams = env.Exams
	}
	return mapCatalog(exams), nil
}

func isArray(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// mapSectors converts wire sectors to domain sectors. Codes are trimmed,
// visit types normalized and empty back-references filled from the nesting.
func mapSectors(in []wireSector) []protocol.Sector {
	out := make([]protocol.Sector, 0, len(in))
	for _, ws := range in {
		s := protocol.Sector{
			Code:               strings.TrimSpace(ws.Code),
			Name:               ws.Name,
			IndustryProfileKey: ws.IndustryProfileKey,
			Departments:        make([]protocol.Department, 0, len(ws.Departments)),
		}
		for _, wd := range ws.Departments {
			d := protocol.Department{
				Code:       strings.TrimSpace(wd.Code),
				Name:       wd.Name,
				SectorCode: orDefault(wd.SectorCode, s.Code),
				Positions:  make([]protocol.Position, 0, len(wd.Positions)),
			}
			for _, wp := range wd.Positions {
				d.Positions = append(d.Positions, mapPosition(wp, d))
			}
			s.Departments = append(s.Departments, d)
		}
		out = append(out, s)
	}
	return out
}

func mapPosition(wp wirePosition, d protocol.Department) protocol.Position {
	p := protocol.Position{
		Code:             strings.TrimSpace(wp.Code),
		Name:             wp.Name,
		DepartmentCode:   orDefault(wp.DepartmentCode, d.Code),
		SectorCode:       orDefault(wp.SectorCode, d.SectorCode),
		Protocols:        make([]protocol.VisitProtocol, 0, len(wp.Protocols)),
		TypicalExposures: wp.TypicalExposures,
		RecommendedPPE:   wp.RecommendedPPE,
	}
	for _, wvp := range wp.Protocols {
		vt := NormalizeVisitType(wvp.VisitType)
		label := wvp.VisitTypeLabel
		if label == "" {
			label = vt.Label()
		}
		p.Protocols = append(p.Protocols, protocol.VisitProtocol{
			VisitType:        vt,
			VisitTypeLabel:   label,
			RequiredExams:    trimCodes(wvp.RequiredExams),
			RecommendedExams: trimCodes(wvp.RecommendedExams),
			RegulatoryNote:   wvp.RegulatoryNote,
			ValidityMonths:   max(wvp.ValidityMonths, 0),
		})
	}
	return p
}

// mapCatalog converts wire exams to catalog entries.
func mapCatalog(in []wireExam) []protocol.ExamCatalogEntry {
	out := make([]protocol.ExamCatalogEntry, 0, len(in))
	for _, we := range in {
		out = append(out, protocol.ExamCatalogEntry{
			Code:               strings.TrimSpace(we.Code),
			Label:              we.Label,
			Category:           protocol.ExamCategory(normalizeToken(we.Category)),
			Description:        we.Description,
			RequiresSpecialist: we.RequiresSpecialist,
			Mandatory:          we.Mandatory,
		})
	}
	return out
}

// NormalizeVisitType maps "Pre-Employment" or "PRE_EMPLOYMENT" to
// "pre_employment". Unknown values pass through normalized.
func NormalizeVisitType(s string) protocol.VisitType {
	return protocol.VisitType(normalizeToken(s))
}

func normalizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}

func trimCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
