package rowparse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/surveillance-tracker/internal/utils"
)

// Rate issues. A rate with an issue is null.
const (
	IssueEmpty       = "empty"
	IssueNonNumeric  = "non_numeric"
	IssueOutOfRange  = "out_of_range"
	RepairNoise      = "stripped_noise"
	RepairComma      = "comma_decimal"
	RepairSpaces     = "joined_spaces"
	RepairOCRDigit   = "ocr_digit"
	RepairDots       = "collapsed_dots"
	RepairThousands  = "dropped_thousands_separator"
	SuspectMagnitude = "suspect_x10"
)

var (
	reEdgeNoise     = regexp.MustCompile(`^[^\d.,\-OoIl]+|[^\d.,OoIl]+$`)
	reInnerSpace    = regexp.MustCompile(`(\d)\s+([\d.,])|([.,])\s+(\d)`)
	reCommaDecimal  = regexp.MustCompile(`^-?\d+,\d{1,2}$`)
	reThousands     = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+(\.\d+)?$`)
	reMultiDot      = regexp.MustCompile(`\.{2,}`)
	reOCRConfusable = regexp.MustCompile(`^[\d.OoIl-]+$`)
	reNumber        = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
)

// Rate is one parsed percentage cell.
type Rate struct {
	Value      *float64
	Issue      string
	Repairs    []string
	HasDecimal bool
	// Raw value was outside [0, 100] but /10 would fit and the cell had no decimal point.
	MissingDecimal bool
}

// ParseRate parses a percentage cell. "%" is a unit marker and is removed silently;
// every other fix is listed in Repairs. Values outside [0, 100] are rejected, never rescaled.
func ParseRate(cell string) Rate {
	s := utils.NormalizeCell(cell)
	s = strings.TrimSpace(strings.ReplaceAll(s, "%", ""))
	if s == "" {
		return Rate{Issue: IssueEmpty}
	}
	if utils.IsNullToken(s) {
		return Rate{Issue: IssueEmpty}
	}

	var r Rate
	if cleaned := reEdgeNoise.ReplaceAllString(s, ""); cleaned != s {
		s = cleaned
		r.Repairs = append(r.Repairs, RepairNoise)
	}
	if joined := reInnerSpace.ReplaceAllString(s, "$1$2$3$4"); joined != s {
		s = strings.Join(strings.Fields(joined), "")
		r.Repairs = append(r.Repairs, RepairSpaces)
	}
	if reOCRConfusable.MatchString(s) && strings.ContainsAny(s, "OoIl") && strings.ContainsAny(s, "0123456789") {
		s = strings.NewReplacer("O", "0", "o", "0", "I", "1", "l", "1").Replace(s)
		r.Repairs = append(r.Repairs, RepairOCRDigit)
	}
	if collapsed := reMultiDot.ReplaceAllString(s, "."); collapsed != s {
		s = collapsed
		r.Repairs = append(r.Repairs, RepairDots)
	}
	switch {
	case reCommaDecimal.MatchString(s):
		s = strings.Replace(s, ",", ".", 1)
		r.Repairs = append(r.Repairs, RepairComma)
	case reThousands.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
		r.Repairs = append(r.Repairs, RepairThousands)
	}

	if !reNumber.MatchString(s) {
		r.Issue = IssueNonNumeric
		return r
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.Issue = IssueNonNumeric
		return r
	}
	r.HasDecimal = strings.Contains(s, ".")
	if v < 0 || v > 100 {
		r.Issue = IssueOutOfRange
		r.MissingDecimal = !r.HasDecimal && v > 100 && v/10 <= 100
		return r
	}
	r.Value = &v
	return r
}

// IsNumeric reports whether cell parses as a rate, repaired or not.
func IsNumeric(cell string) bool {
	r := ParseRate(cell)
	return r.Issue == "" || r.Issue == IssueOutOfRange
}

// isNull reports whether cell is empty or a null token.
func isNull(cell string) bool {
	return ParseRate(cell).Issue == IssueEmpty
}
