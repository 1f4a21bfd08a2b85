package state

import (
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/docbot-dev/docbot/pkg/models"
)

// ComputeDiff compares two snapshots by run id and reports which scopes
// were added, removed or modified, together with a stats delta, a
// graph-changed flag, and a line-oriented diff of each modified scope's
// summary.
func (s *Store) ComputeDiff(fromID, toID string) (*models.DiffReport, error) {
	from, err := s.LoadSnapshot(fromID)
	if err != nil {
		return nil, err
	}
	to, err := s.LoadSnapshot(toID)
	if err != nil {
		return nil, err
	}

	report := &models.DiffReport{
		FromRun: from.RunID,
		ToRun:   to.RunID,
		StatsDelta: models.StatsDelta{
			Symbols:     to.Stats.Symbols - from.Stats.Symbols,
			EnvVars:     to.Stats.EnvVars - from.Stats.EnvVars,
			Entrypoints: to.Stats.Entrypoints - from.Stats.Entrypoints,
		},
		GraphChanged: from.GraphDigest != to.GraphDigest,
	}

	for scopeID, after := range to.ScopeSummaries {
		before, existed := from.ScopeSummaries[scopeID]
		switch {
		case !existed:
			report.Added = append(report.Added, scopeID)
		case before != after:
			report.Modified = append(report.Modified, models.ScopeModification{
				ScopeID:       scopeID,
				Change:        models.ChangeModified,
				SummaryBefore: before,
				SummaryAfter:  after,
			})
			if report.SummaryDiffs == nil {
				report.SummaryDiffs = make(map[string]string)
			}
			report.SummaryDiffs[scopeID] = summaryDiff(before, after)
		}
	}
	for scopeID := range from.ScopeSummaries {
		if _, stillThere := to.ScopeSummaries[scopeID]; !stillThere {
			report.Removed = append(report.Removed, scopeID)
		}
	}

	sort.Strings(report.Added)
	sort.Strings(report.Removed)
	sort.Slice(report.Modified, func(i, j int) bool {
		return report.Modified[i].ScopeID < report.Modified[j].ScopeID
	})
	return report, nil
}

// summaryDiff renders a compact unified-style diff of two summaries:
// unchanged text indented, deletions prefixed "-", insertions "+".
func summaryDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, true)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		text := strings.TrimRight(d.Text, "\n")
		if text == "" {
			continue
		}
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			writePrefixed(&b, "-", text)
		case diffmatchpatch.DiffInsert:
			writePrefixed(&b, "+", text)
		default:
			writePrefixed(&b, " ", text)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writePrefixed(b *strings.Builder, prefix, text string) {
	for _, line := range strings.Split(text, "\n") {
		b.WriteString(prefix)
		b.WriteString(" ")
		b.WriteString(line)
		b.WriteString("\n")
	}
}
