package domain

// StatusLabel is the display label of an asset inside an audit.
type StatusLabel string

const (
	StatusLabelExpected   StatusLabel = "Expected"
	StatusLabelFound      StatusLabel = "Found"
	StatusLabelMissing    StatusLabel = "Missing"
	StatusLabelUnexpected StatusLabel = "Unexpected"
)

// AuditStatusLabel derives the display label for one asset. A nil data means
// the asset has no audit row yet. Combinations the scan rules never produce
// fall back like a pending row: Expected while the audit runs, Missing once
// it is completed.
func AuditStatusLabel(data *AuditAssetData, auditCompleted bool) StatusLabel {
	if data != nil {
		switch {
		case data.Expected && data.AuditStatus == AuditAssetStatusFound:
			return StatusLabelFound
		case data.Expected && data.AuditStatus == AuditAssetStatusMissing:
			return StatusLabelMissing
		case !data.Expected && data.AuditStatus == AuditAssetStatusUnexpected:
			return StatusLabelUnexpected
		}
	}

	if auditCompleted {
		return StatusLabelMissing
	}
	return StatusLabelExpected
}

// Label is AuditStatusLabel for a stored row.
func (a *AuditAsset) Label(auditCompleted bool) StatusLabel {
	if a == nil {
		return AuditStatusLabel(nil, auditCompleted)
	}
	return AuditStatusLabel(&a.AuditAssetData, auditCompleted)
}
