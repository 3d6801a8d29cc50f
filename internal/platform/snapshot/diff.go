package snapshot

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/kandyfoma/hk-management-systems-sub000/internal/domain/protocol"
)

// Diff renders the line changes between two snapshots as "-"/"+" prefixed
// lines of their indented JSON. FetchedAt is ignored. An empty result means
// the hierarchy and catalog are identical.
func Diff(before, after protocol.Snapshot) (string, error) {
	a, err := render(before)
	if err != nil {
		return "", err
	}
	b, err := render(after)
	if err != nil {
		return "", err
	}
	if a == b {
		return "", nil
	}

	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var out strings.Builder
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		default:
			continue
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out.WriteString(prefix)
			out.WriteString(strings.TrimSuffix(line, "\n"))
			out.WriteByte('\n')
		}
	}
	return out.String(), nil
}

func render(s protocol.Snapshot) (string, error) {
	data, err := json.MarshalIndent(struct {
		Sectors []protocol.Sector           `json:"sectors"`
		Catalog []protocol.ExamCatalogEntry `json:"catalog"`
	}{s.Sectors, s.Catalog}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return string(data) + "\n", nil
}
