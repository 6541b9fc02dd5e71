package utils

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)

	nullTokens = map[string]struct{}{
		"-": {}, "--": {}, "—": {}, "–": {}, "/": {}, "*": {},
		"n/a": {}, "na": {}, "null": {}, "none": {}, "无": {}, "未检测": {},
	}
)

// radicals covers the Kangxi Radicals and CJK Radicals Supplement blocks. Layout OCR emits
// these look-alikes (⽉ U+2F49, ⽇ U+2F47) in place of the unified ideographs 月 and 日.
var radicals = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x2E80, Hi: 0x2EFF, Stride: 1},
		{Lo: 0x2F00, Hi: 0x2FDF, Stride: 1},
	},
}

// NormalizeText prepares converted Markdown for pattern matching.
// Radicals are NFKC-folded to ideographs, full-width ASCII is folded to ASCII,
// whitespace runs are collapsed. Line structure is kept; >2 newlines become one blank line.
// Circled and superscript digits are left alone so footnote markers stay recognizable.
func NormalizeText(s string) string {
	if s == "" {
		return s
	}
	s = reCRLF.ReplaceAllString(s, "\n")
	s = foldRadicals(s)
	s = width.Fold.String(s)
	s = strings.NewReplacer("\u00a0", " ", "\u3000", " ").Replace(s)
	s = reTabs.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	return strings.Join(lines, "\n")
}

// NormalizeCell is NormalizeText for a single table cell: also trims both ends.
func NormalizeCell(s string) string {
	return strings.TrimSpace(NormalizeText(s))
}

// IsNullToken reports whether an already normalized cell is a placeholder for a missing value.
func IsNullToken(s string) bool {
	_, ok := nullTokens[strings.ToLower(s)]
	return ok
}

func foldRadicals(s string) string {
	if !strings.ContainsFunc(s, func(r rune) bool { return unicode.Is(radicals, r) }) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.Is(radicals, r) {
			b.WriteString(norm.NFKC.String(string(r)))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
