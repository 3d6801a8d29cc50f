package protocol

// Index holds code lookups over one hierarchy and catalog snapshot. An Index
// is never modified after BuildIndex returns, so it can be shared between
// goroutines without locking.
type Index struct {
	sectors      []Sector
	catalog      []ExamCatalogEntry
	sectorByCode map[string]*Sector
	deptByCode   map[string]*Department
	posByCode    map[string]*Position
	examByCode   map[string]ExamCatalogEntry
	tieBreak     TieBreak
}

// TieBreak selects which protocol wins when a position has several protocols
// for the same visit type.
type TieBreak int

const (
	// TieBreakFirst picks the first matching protocol in declaration order.
	TieBreakFirst TieBreak = iota
	// TieBreakLast picks the last matching protocol in declaration order.
	TieBreakLast
)

// ParseTieBreak maps "first"/"last" to a TieBreak; anything else is TieBreakFirst.
func ParseTieBreak(s string) TieBreak {
	if s == "last" {
		return TieBreakLast
	}
	return TieBreakFirst
}

func (t TieBreak) String() string {
	if t == TieBreakLast {
		return "last"
	}
	return "first"
}

// IndexOption configures BuildIndex.
type IndexOption func(*Index)

// WithTieBreak sets the duplicate-protocol policy.
func WithTieBreak(t TieBreak) IndexOption {
	return func(ix *Index) { ix.tieBreak = t }
}

// BuildIndex deep-copies sectors and catalog and builds the lookup maps.
// Empty back-reference codes are filled in from the nesting. Duplicate codes
// are resolved last-write-wins.
func BuildIndex(sectors []Sector, catalog []ExamCatalogEntry, opts ...IndexOption) *Index {
	ix := &Index{
		sectors:      copySectors(sectors),
		catalog:      append([]ExamCatalogEntry(nil), catalog...),
		sectorByCode: make(map[string]*Sector),
		deptByCode:   make(map[string]*Department),
		posByCode:    make(map[string]*Position),
		examByCode:   make(map[string]ExamCatalogEntry, len(catalog)),
	}
	for _, opt := range opts {
		opt(ix)
	}

	for i := range ix.sectors {
		s := &ix.sectors[i]
		ix.sectorByCode[s.Code] = s
		for j := range s.Departments {
			d := &s.Departments[j]
			if d.SectorCode == "" {
				d.SectorCode = s.Code
			}
			ix.deptByCode[d.Code] = d
			for k := range d.Positions {
				p := &d.Positions[k]
				if p.DepartmentCode == "" {
					p.DepartmentCode = d.Code
				}
				if p.SectorCode == "" {
					p.SectorCode = d.SectorCode
				}
				ix.posByCode[p.Code] = p
			}
		}
	}
	for _, e := range ix.catalog {
		ix.examByCode[e.Code] = e
	}
	return ix
}

// Sectors returns a copy of the indexed hierarchy.
func (ix *Index) Sectors() []Sector { return copySectors(ix.sectors) }

// Catalog returns a copy of the indexed catalog in its original order.
func (ix *Index) Catalog() []ExamCatalogEntry {
	return append([]ExamCatalogEntry(nil), ix.catalog...)
}

// Snapshot returns the indexed data as a Snapshot.
func (ix *Index) Snapshot() Snapshot {
	return Snapshot{Sectors: ix.Sectors(), Catalog: ix.Catalog()}
}

// Exam looks up a catalog entry by code.
func (ix *Index) Exam(code string) (ExamCatalogEntry, bool) {
	e, ok := ix.examByCode[code]
	return e, ok
}

// ExamsByCategory returns catalog entries of the given category, or all
// entries when category is empty.
func (ix *Index) ExamsByCategory(category ExamCategory) []ExamCatalogEntry {
	out := make([]ExamCatalogEntry, 0, len(ix.catalog))
	for _, e := range ix.catalog {
		if category == "" || e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

// Position looks up a position by code.
func (ix *Index) Position(code string) (Position, bool) {
	p, ok := ix.posByCode[code]
	if !ok {
		return Position{}, false
	}
	return copyPosition(*p), true
}

// Counts reports the number of distinct codes per map.
func (ix *Index) Counts() Counts {
	return Counts{
		Sectors:     len(ix.sectorByCode),
		Departments: len(ix.deptByCode),
		Positions:   len(ix.posByCode),
		Exams:       len(ix.examByCode),
	}
}

// Counts summarizes index sizes.
type Counts struct {
	Sectors     int `json:"sectors"`
	Departments int `json:"departments"`
	Positions   int `json:"positions"`
	Exams       int `json:"exams"`
}

// sectorHeader strips the owned departments so results stay flat.
func sectorHeader(s Sector) Sector {
	s.Departments = nil
	return s
}

func departmentHeader(d Department) Department {
	d.Positions = nil
	return d
}

func copySectors(in []Sector) []Sector {
	if in == nil {
		return nil
	}
	out := make([]Sector, len(in))
	for i, s := range in {
		out[i] = s
		if s.Departments != nil {
			out[i].Departments = make([]Department, len(s.Departments))
			for j, d := range s.Departments {
				out[i].Departments[j] = d
				if d.Positions != nil {
					out[i].Departments[j].Positions = make([]Position, len(d.Positions))
					for k, p := range d.Positions {
						out[i].Departments[j].Positions[k] = copyPosition(p)
					}
				}
			}
		}
	}
	return out
}

func copyPosition(p Position) Position {
	p.TypicalExposures = append([]string(nil), p.TypicalExposures...)
	p.RecommendedPPE = append([]string(nil), p.RecommendedPPE...)
	if p.Protocols != nil {
		protocols := make([]VisitProtocol, len(p.Protocols))
		for i, vp := range p.Protocols {
			protocols[i] = copyProtocol(vp)
		}
		p.Protocols = protocols
	}
	return p
}

func copyProtocol(vp VisitProtocol) VisitProtocol {
	vp.RequiredExams = append([]string(nil), vp.RequiredExams...)
	vp.RecommendedExams = append([]string(nil), vp.RecommendedExams...)
	return vp
}
