package ingest

// FileResult is the discovery outcome of one path.
type FileResult struct {
	Path         string `json:"path"`
	HashHex      string `json:"sha256,omitempty"`
	Size         int64  `json:"size"`
	Deduplicated bool   `json:"deduplicated,omitempty"` // same bytes as an earlier path in walk order
	DuplicateOf  string `json:"duplicate_of,omitempty"`
	Err          string `json:"error,omitempty"`
}

// DirStats summarizes a discovery walk.
type DirStats struct {
	Scanned      uint32 `json:"scanned"`
	Matched      uint32 `json:"matched"`
	Succeeded    uint32 `json:"succeeded"`
	Deduplicated uint32 `json:"deduplicated"`
	Failed       uint32 `json:"failed"`
}
