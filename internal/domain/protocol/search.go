package protocol

import (
	"sort"
	"strings"
)

const (
	scorePositionName   = 3
	scorePositionCode   = 2
	scoreDepartmentName = 1
	scoreSectorName     = 1
)

// Search scores every position against query with case-insensitive substring
// matching and returns the hits ranked by score. Equal scores keep hierarchy
// order. A blank query matches nothing.
func (ix *Index) Search(query string) []SearchResult {
	q := strings.ToLower(strings.TrimSpace(query))
	results := []SearchResult{}
	if q == "" {
		return results
	}

	for _, s := range ix.sectors {
		sectorHit := contains(s.Name, q)
		for _, d := range s.Departments {
			deptHit := contains(d.Name, q)
			for _, p := range d.Positions {
				score := 0
				if contains(p.Name, q) {
					score += scorePositionName
				}
				if contains(p.Code, q) {
					score += scorePositionCode
				}
				if deptHit {
					score += scoreDepartmentName
				}
				if sectorHit {
					score += scoreSectorName
				}
				if score <= 0 {
					continue
				}
				results = append(results, SearchResult{
					Sector:     sectorHeader(s),
					Department: departmentHeader(d),
					Position:   copyPosition(p),
					MatchScore: score,
				})
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].MatchScore > results[j].MatchScore
	})
	return results
}

func contains(s, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(s), lowerQuery)
}
