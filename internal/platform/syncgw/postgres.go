package syncgw

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kandyfoma/hk-management-systems-sub000/internal/domain/protocol"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// PostgresSource reads the hierarchy from the oh_* tables created by the
// db migrations.
type PostgresSource struct {
	db queryable
}

var _ protocol.Source = (*PostgresSource)(nil)

// NewPostgresSource accepts a *pgxpool.Pool, a pgx.Tx or a *pgx.Conn.
func NewPostgresSource(db queryable) *PostgresSource {
	return &PostgresSource{db: db}
}

type sectorRow struct {
	Code, Name, IndustryProfileKey string
}

type departmentRow struct {
	Code, Name, SectorCode string
}

type positionRow struct {
	Code, Name, DepartmentCode, SectorCode string
	TypicalExposures, RecommendedPPE       []string
}

type protocolRow struct {
	PositionCode     string
	VisitType        string
	VisitTypeLabel   string
	RequiredExams    []string
	RecommendedExams []string
	RegulatoryNote   string
	ValidityMonths   int
}

func (s *PostgresSource) FetchHierarchy(ctx context.Context) ([]protocol.Sector, error) {
	sectors, err := queryRows(ctx, s.db, `
		SELECT code, name, industry_profile_key
		FROM oh_sector ORDER BY sort_order, code`,
		func(rows pgx.Rows) (sectorRow, error) {
			var r sectorRow
			err := rows.Scan(&r.Code, &r.Name, &r.IndustryProfileKey)
			return r, err
		})
	if err != nil {
		return nil, fmt.Errorf("query sectors: %w", err)
	}

	departments, err := queryRows(ctx, s.db, `
		SELECT code, name, sector_code
		FROM oh_department ORDER BY sort_order, code`,
		func(rows pgx.Rows) (departmentRow, error) {
			var r departmentRow
			err := rows.Scan(&r.Code, &r.Name, &r.SectorCode)
			return r, err
		})
	if err != nil {
		return nil, fmt.Errorf("query departments: %w", err)
	}

	positions, err := queryRows(ctx, s.db, `
		SELECT code, name, department_code, sector_code, typical_exposures, recommended_ppe
		FROM oh_position ORDER BY sort_order, code`,
		func(rows pgx.Rows) (positionRow, error) {
			var r positionRow
			err := rows.Scan(&r.Code, &r.Name, &r.DepartmentCode, &r.SectorCode,
				&r.TypicalExposures, &r.RecommendedPPE)
			return r, err
		})
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}

	protocols, err := queryRows(ctx, s.db, `
		SELECT position_code, visit_type, visit_type_label, required_exams,
			recommended_exams, regulatory_note, validity_months
		FROM oh_visit_protocol ORDER BY position_code, sort_order, id`,
		func(rows pgx.Rows) (protocolRow, error) {
			var r protocolRow
			err := rows.Scan(&r.PositionCode, &r.VisitType, &r.VisitTypeLabel,
				&r.RequiredExams, &r.RecommendedExams, &r.RegulatoryNote, &r.ValidityMonths)
			return r, err
		})
	if err != nil {
		return nil, fmt.Errorf("query visit protocols: %w", err)
	}

	return assembleHierarchy(sectors, departments, positions, protocols), nil
}

func (s *PostgresSource) FetchCatalog(ctx context.Context) ([]protocol.ExamCatalogEntry, error) {
	exams, err := queryRows(ctx, s.db, `
		SELECT code, label, category, description, requires_specialist, mandatory
		FROM oh_exam_catalog ORDER BY code`,
		func(rows pgx.Rows) (wireExam, error) {
			var e wireExam
			err := rows.Scan(&e.Code, &e.Label, &e.Category, &e.Description,
				&e.RequiresSpecialist, &e.Mandatory)
			return e, err
		})
	if err != nil {
		return nil, fmt.Errorf("query exam catalog: %w", err)
	}
	return mapCatalog(exams), nil
}

func queryRows[T any](ctx context.Context, db queryable, sql string, scan func(pgx.Rows) (T, error)) ([]T, error) {
	rows, err := db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// assembleHierarchy nests flat table rows into sectors. Rows whose parent is
// missing are dropped; input order is kept within each parent.
func assembleHierarchy(sectors []sectorRow, departments []departmentRow, positions []positionRow, protocols []protocolRow) []protocol.Sector {
	protocolsByPosition := make(map[string][]wireProtocol)
	for _, r := range protocols {
		protocolsByPosition[r.PositionCode] = append(protocolsByPosition[r.PositionCode], wireProtocol{
			VisitType:        r.VisitType,
			VisitTypeLabel:   r.VisitTypeLabel,
			RequiredExams:    r.RequiredExams,
			RecommendedExams: r.RecommendedExams,
			RegulatoryNote:   r.RegulatoryNote,
			ValidityMonths:   r.ValidityMonths,
		})
	}

	positionsByDepartment := make(map[string][]wirePosition)
	for _, r := range positions {
		positionsByDepartment[r.DepartmentCode] = append(positionsByDepartment[r.DepartmentCode], wirePosition{
			Code:             r.Code,
			Name:             r.Name,
			DepartmentCode:   r.DepartmentCode,
			SectorCode:       r.SectorCode,
			Protocols:        protocolsByPosition[r.Code],
			TypicalExposures: r.TypicalExposures,
			RecommendedPPE:   r.RecommendedPPE,
		})
	}

	departmentsBySector := make(map[string][]wireDepartment)
	for _, r := range departments {
		departmentsBySector[r.SectorCode] = append(departmentsBySector[r.SectorCode], wireDepartment{
			Code:       r.Code,
			Name:       r.Name,
			SectorCode: r.SectorCode,
			Positions:  positionsByDepartment[r.Code],
		})
	}

	wire := make([]wireSector, 0, len(sectors))
	for _, r := range sectors {
		wire = append(wire, wireSector{
			Code:               r.Code,
			Name:               r.Name,
			IndustryProfileKey: r.IndustryProfileKey,
			Departments:        departmentsBySector[r.Code],
		})
	}
	return mapSectors(wire)
}
