package domain

// FilterType selects a subset of audit assets in the overview.
type FilterType string

const (
	FilterAll        FilterType = "ALL"
	FilterExpected   FilterType = "EXPECTED"
	FilterFound      FilterType = "FOUND"
	FilterMissing    FilterType = "MISSING"
	FilterUnexpected FilterType = "UNEXPECTED"
)

type EmptyState struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type FilterMetadata struct {
	Label      string     `json:"label"`
	EmptyState EmptyState `json:"empty_state"`
}

//nolint:gochecknoglobals // immutable lookup table
var filterMetadata = map[FilterType]FilterMetadata{
	FilterAll: {
		Label: "All Assets",
		EmptyState: EmptyState{
			Title: "No assets in this audit",
			Text:  "This audit has no assets yet. Add assets or start scanning to see them here.",
		},
	},
	FilterExpected: {
		Label: "Expected Assets",
		EmptyState: EmptyState{
			Title: "No expected assets",
			Text:  "There are no expected assets in this audit.",
		},
	},
	FilterFound: {
		Label: "Found Assets",
		EmptyState: EmptyState{
			Title: "No found assets",
			Text:  "No assets have been scanned yet. Start scanning to see found assets here.",
		},
	},
	FilterMissing: {
		Label: "Missing Assets",
		EmptyState: EmptyState{
			Title: "No missing assets",
			Text:  "All expected assets have been found. Great job!",
		},
	},
	FilterUnexpected: {
		Label: "Unexpected Assets",
		EmptyState: EmptyState{
			Title: "No unexpected assets",
			Text:  "No unexpected assets have been scanned during this audit.",
		},
	},
}

// AuditFilterMetadata returns the label and empty-state copy for a filter.
// No filter selected (nil) resolves to EXPECTED, the overview's default tab.
// Unknown values resolve to ALL.
func AuditFilterMetadata(filter *FilterType) FilterMetadata {
	if filter == nil {
		return filterMetadata[FilterExpected]
	}
	if m, ok := filterMetadata[*filter]; ok {
		return m
	}
	return filterMetadata[FilterAll]
}

// ParseFilter turns a query value into a filter pointer; empty means no filter.
func ParseFilter(v string) *FilterType {
	if v == "" {
		return nil
	}
	f := FilterType(v)
	return &f
}

// Matches reports whether an asset with the given label belongs to filter.
// Unknown filters and ALL match everything; EXPECTED matches rows that were
// part of the expected set.
func (f FilterType) Matches(a *AuditAsset, auditCompleted bool) bool {
	switch f {
	case FilterExpected:
		return a.Expected
	case FilterFound:
		return a.Label(auditCompleted) == StatusLabelFound
	case FilterMissing:
		return a.Label(auditCompleted) == StatusLabelMissing
	case FilterUnexpected:
		return a.Label(auditCompleted) == StatusLabelUnexpected
	default:
		return true
	}
}
