package constants

// DocumentStatus is the terminal outcome of one document in a run.
type DocumentStatus string

// Stable values (stored in run history and the diagnostics report).
const (
	DocumentStatusExtracted   DocumentStatus = "EXTRACTED"    // rule-based rows produced records
	DocumentStatusFallbackOK  DocumentStatus = "FALLBACK_OK"  // records came from the LLM fallback
	DocumentStatusEmpty       DocumentStatus = "EMPTY"        // table missing or no usable rows, fallback off
	DocumentStatusUnextracted DocumentStatus = "UNEXTRACTED"  // fallback ran and yielded nothing or failed
	DocumentStatusUndated     DocumentStatus = "UNDATED"      // temporal resolution failed
	DocumentStatusFailed      DocumentStatus = "FAILED"       // read error or panic
)

// Succeeded reports whether the status contributed records to the batch.
func (s DocumentStatus) Succeeded() bool {
	return s == DocumentStatusExtracted || s == DocumentStatusFallbackOK
}

// RecordSource tells which path produced a record.
type RecordSource string

const (
	SourceRules    RecordSource = "rules"
	SourceFallback RecordSource = "llm"
)

// MergeMode selects how a batch is reconciled with the persisted dataset.
type MergeMode string

const (
	MergeModeMerge   MergeMode = "merge"
	MergeModeReplace MergeMode = "replace"
)

// ParseMergeMode returns the mode for s, defaulting to merge for an empty string.
func ParseMergeMode(s string) (MergeMode, bool) {
	switch MergeMode(s) {
	case "", MergeModeMerge:
		return MergeModeMerge, true
	case MergeModeReplace:
		return MergeModeReplace, true
	}
	return "", false
}
