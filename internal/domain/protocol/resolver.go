package protocol

// Resolve looks up the protocol of a position for a visit type and expands
// its exam codes through the catalog. It never fails: an unknown position, or
// one whose department or sector cannot be found, yields an empty context
// with HasProtocol false. Exam codes missing from the catalog are dropped.
func (ix *Index) Resolve(positionCode string, visitType VisitType) ProtocolQueryResult {
	result := ProtocolQueryResult{
		RequiredExams:       []ExamCatalogEntry{},
		RecommendedExams:    []ExamCatalogEntry{},
		AvailableVisitTypes: []VisitType{},
	}

	pos, ok := ix.posByCode[positionCode]
	if !ok {
		return result
	}
	dept, ok := ix.deptByCode[pos.DepartmentCode]
	if !ok {
		return result
	}
	sector, ok := ix.sectorByCode[pos.SectorCode]
	if !ok {
		return result
	}

	result.Sector = sectorHeader(*sector)
	result.Department = departmentHeader(*dept)
	result.Position = copyPosition(*pos)
	result.AvailableVisitTypes = availableVisitTypes(pos.Protocols)

	match, found := ix.pickProtocol(pos.Protocols, visitType)
	if !found {
		return result
	}
	vp := copyProtocol(match)
	result.Protocol = &vp
	result.HasProtocol = true
	result.RequiredExams = ix.expand(vp.RequiredExams)
	result.RecommendedExams = ix.expand(vp.RecommendedExams)
	return result
}

func (ix *Index) pickProtocol(protocols []VisitProtocol, vt VisitType) (VisitProtocol, bool) {
	var (
		match VisitProtocol
		found bool
	)
	for _, vp := range protocols {
		if vp.VisitType != vt {
			continue
		}
		match, found = vp, true
		if ix.tieBreak == TieBreakFirst {
			break
		}
	}
	return match, found
}

func (ix *Index) expand(codes []string) []ExamCatalogEntry {
	out := make([]ExamCatalogEntry, 0, len(codes))
	for _, code := range codes {
		if e, ok := ix.examByCode[code]; ok {
			out = append(out, e)
		}
	}
	return out
}

func availableVisitTypes(protocols []VisitProtocol) []VisitType {
	seen := make(map[VisitType]bool, len(protocols))
	out := make([]VisitType, 0, len(protocols))
	for _, vp := range protocols {
		if seen[vp.VisitType] {
			continue
		}
		seen[vp.VisitType] = true
		out = append(out, vp.VisitType)
	}
	return out
}
