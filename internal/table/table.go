package table

import (
	"github.com/joseph-ayodele/surveillance-tracker/internal/entity"
)

// Format is the source syntax of a located table.
type Format string

const (
	FormatPipe Format = "pipe"
	FormatHTML Format = "html"
)

// Table is the located pathogen table: header rows split from data rows and
// the column roles resolved from the header.
type Table struct {
	Format     Format               `json:"format"`
	AnchorLine int                  `json:"anchor_line"` // -1 when found by header fingerprint
	Header     [][]string           `json:"header"`
	Rows       []entity.RawTableRow `json:"rows"`
	Width      int                  `json:"width"`
	Roles      Roles                `json:"roles"`
	HeaderWeek int                  `json:"header_week,omitempty"`
}

// Roles maps the label and rate columns to cell indexes of a full-width row.
type Roles struct {
	Label      int  `json:"label"`
	ILI        int  `json:"ili"`
	SARI       int  `json:"sari"`
	Width      int  `json:"width"`
	FromHeader bool `json:"from_header"`
}
