package protocol

// DanglingReference is an exam code cited by a protocol but absent from the
// catalog.
type DanglingReference struct {
	PositionCode string    `json:"position_code"`
	VisitType    VisitType `json:"visit_type"`
	ExamCode     string    `json:"exam_code"`
	List         string    `json:"list"` // "required" or "recommended"
}

// DuplicateCode is a code shared by several entities of the same kind.
type DuplicateCode struct {
	Kind  string `json:"kind"` // sector, department, position, exam
	Code  string `json:"code"`
	Count int    `json:"count"`
}

// DuplicateProtocol reports several protocols for one visit type on a position.
type DuplicateProtocol struct {
	PositionCode string    `json:"position_code"`
	VisitType    VisitType `json:"visit_type"`
	Count        int       `json:"count"`
}

// BrokenBackReference is an explicit back-reference code that disagrees with
// the entity's actual parent.
type BrokenBackReference struct {
	Kind     string `json:"kind"`
	Code     string `json:"code"`
	Field    string `json:"field"`
	Declared string `json:"declared"`
	Actual   string `json:"actual"`
}

// Report lists the data-quality issues found by Validate. Resolution
// tolerates all of them; the report exists for tooling.
type Report struct {
	DanglingReferences   []DanglingReference   `json:"dangling_references"`
	DuplicateCodes       []DuplicateCode       `json:"duplicate_codes"`
	DuplicateProtocols   []DuplicateProtocol   `json:"duplicate_protocols"`
	BrokenBackReferences []BrokenBackReference `json:"broken_back_references"`
	UnknownCategories    []string              `json:"unknown_categories"`
}

// Clean reports whether no issue was found.
func (r Report) Clean() bool {
	return len(r.DanglingReferences) == 0 &&
		len(r.DuplicateCodes) == 0 &&
		len(r.DuplicateProtocols) == 0 &&
		len(r.BrokenBackReferences) == 0 &&
		len(r.UnknownCategories) == 0
}

// IssueCount is the total number of findings.
func (r Report) IssueCount() int {
	return len(r.DanglingReferences) + len(r.DuplicateCodes) + len(r.DuplicateProtocols) +
		len(r.BrokenBackReferences) + len(r.UnknownCategories)
}

// Validate walks a hierarchy and catalog and enumerates dangling exam
// references, duplicate codes, duplicate visit-type protocols and
// inconsistent back-references. Findings are in traversal order.
func Validate(sectors []Sector, catalog []ExamCatalogEntry) Report {
	r := Report{
		DanglingReferences:   []DanglingReference{},
		DuplicateCodes:       []DuplicateCode{},
		DuplicateProtocols:   []DuplicateProtocol{},
		BrokenBackReferences: []BrokenBackReference{},
		UnknownCategories:    []string{},
	}

	exams := newCounter("exam")
	for _, e := range catalog {
		exams.add(e.Code)
		if e.Category != "" && !e.Category.Valid() {
			r.UnknownCategories = append(r.UnknownCategories, e.Code)
		}
	}

	sectorCodes := newCounter("sector")
	deptCodes := newCounter("department")
	posCodes := newCounter("position")

	for _, s := range sectors {
		sectorCodes.add(s.Code)
		for _, d := range s.Departments {
			deptCodes.add(d.Code)
			if d.SectorCode != "" && d.SectorCode != s.Code {
				r.BrokenBackReferences = append(r.BrokenBackReferences, BrokenBackReference{
					Kind: "department", Code: d.Code, Field: "sector_code", Declared: d.SectorCode, Actual: s.Code,
				})
			}
			for _, p := range d.Positions {
				posCodes.add(p.Code)
				if p.DepartmentCode != "" && p.DepartmentCode != d.Code {
					r.BrokenBackReferences = append(r.BrokenBackReferences, BrokenBackReference{
						Kind: "position", Code: p.Code, Field: "department_code", Declared: p.DepartmentCode, Actual: d.Code,
					})
				}
				if p.SectorCode != "" && p.SectorCode != s.Code {
					r.BrokenBackReferences = append(r.BrokenBackReferences, BrokenBackReference{
						Kind: "position", Code: p.Code, Field: "sector_code", Declared: p.SectorCode, Actual: s.Code,
					})
				}
				r.checkProtocols(p, exams.seen)
			}
		}
	}

	for _, c := range []*counter{sectorCodes, deptCodes, posCodes, exams} {
		r.DuplicateCodes = append(r.DuplicateCodes, c.duplicates()...)
	}
	return r
}

func (r *Report) checkProtocols(p Position, catalog map[string]int) {
	perType := make(map[VisitType]int)
	var order []VisitType
	for _, vp := range p.Protocols {
		if perType[vp.VisitType] == 0 {
			order = append(order, vp.VisitType)
		}
		perType[vp.VisitType]++
		for _, code := range vp.RequiredExams {
			if catalog[code] == 0 {
				r.DanglingReferences = append(r.DanglingReferences, DanglingReference{
					PositionCode: p.Code, VisitType: vp.VisitType, ExamCode: code, List: "required",
				})
			}
		}
		for _, code := range vp.RecommendedExams {
			if catalog[code] == 0 {
				r.DanglingReferences = append(r.DanglingReferences, DanglingReference{
					PositionCode: p.Code, VisitType: vp.VisitType, ExamCode: code, List: "recommended",
				})
			}
		}
	}
	for _, vt := range order {
		if n := perType[vt]; n > 1 {
			r.DuplicateProtocols = append(r.DuplicateProtocols, DuplicateProtocol{
				PositionCode: p.Code, VisitType: vt, Count: n,
			})
		}
	}
}

type counter struct {
	kind  string
	seen  map[string]int
	order []string
}

func newCounter(kind string) *counter {
	return &counter{kind: kind, seen: make(map[string]int)}
}

func (c *counter) add(code string) {
	if c.seen[code] == 0 {
		c.order = append(c.order, code)
	}
	c.seen[code]++
}

func (c *counter) duplicates() []DuplicateCode {
	var out []DuplicateCode
	for _, code := range c.order {
		if n := c.seen[code]; n > 1 {
			out = append(out, DuplicateCode{Kind: c.kind, Code: code, Count: n})
		}
	}
	return out
}
