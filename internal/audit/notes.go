package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/tally/internal/domain"
)

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func createdNote(expected int) string {
	return fmt.Sprintf("created audit with **%d** expected %s.", expected, plural(expected, "asset"))
}

func startedNote() string {
	return "started the audit."
}

func scannedNote(expected bool) string {
	if expected {
		return "scanned expected asset."
	}
	return "scanned unexpected asset."
}

func cancelledNote() string {
	return "cancelled the audit."
}

// completedNote summarizes the final counters, e.g.
// "Audit completed. Found **8/10** expected assets (**80%**), **2** missing, **1** unexpected."
func completedNote(s *domain.AuditSession) string {
	pct := 0
	if s.ExpectedAssetCount > 0 {
		pct = s.FoundAssetCount * 100 / s.ExpectedAssetCount
	}

	return fmt.Sprintf("Audit completed. Found **%d/%d** expected assets (**%d%%**), **%d** missing, **%d** unexpected.",
		s.FoundAssetCount, s.ExpectedAssetCount, pct, s.MissingAssetCount, s.UnexpectedAssetCount)
}

func assetsAddedNote(added, skipped int) string {
	note := fmt.Sprintf("added **%d** %s to audit.", added, plural(added, "asset"))
	if skipped > 0 {
		note += fmt.Sprintf(" (**%d** %s skipped as already in audit)", skipped, plural(skipped, "asset"))
	}
	return note
}

func assetsRemovedNote(removed []*domain.AuditAsset) string {
	if len(removed) == 1 {
		return fmt.Sprintf("removed asset `%s` from audit.", removed[0].AssetID)
	}
	return fmt.Sprintf("removed **%d** assets from audit.", len(removed))
}

func scanRemovedNote(assetID uuid.UUID) string {
	return fmt.Sprintf("removed scanned asset `%s`.", assetID)
}

// dueDateLayout renders dates like "Mar 4, 2026, 02:30 PM".
const dueDateLayout = "Jan 2, 2006, 03:04 PM"

func dueDateNote(from, to *time.Time) string {
	switch {
	case from == nil && to != nil:
		return fmt.Sprintf("set due date to **%s**.", to.UTC().Format(dueDateLayout))
	case from != nil && to == nil:
		return "cleared the due date."
	default:
		return fmt.Sprintf("changed due date from **%s** to **%s**.",
			from.UTC().Format(dueDateLayout), to.UTC().Format(dueDateLayout))
	}
}

func assigneeAddedNote(userID uuid.UUID) string {
	return fmt.Sprintf("added assignee: `%s`.", userID)
}

func assigneeRemovedNote(userID uuid.UUID) string {
	return fmt.Sprintf("removed assignee: `%s`.", userID)
}
