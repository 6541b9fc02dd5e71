package table

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/joseph-ayodele/surveillance-tracker/internal/utils"
)

var (
	reTableOpen  = regexp.MustCompile(`(?i)<table`)
	reTableClose = regexp.MustCompile(`(?i)</table\s*>`)
)

type spanCell struct {
	text string
	left int
}

// parseHTMLTable reads the first <table> in fragment into a rectangular-ish grid.
// rowspan and colspan are expanded by repeating the cell text.
func parseHTMLTable(fragment string) ([][]string, error) {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("parse html table: %w", err)
	}
	tbl := findFirst(doc, atom.Table)
	if tbl == nil {
		return nil, fmt.Errorf("no <table> element")
	}

	var trs []*html.Node
	collect(tbl, atom.Tr, &trs)

	var grid [][]string
	pending := map[int]spanCell{}
	for _, tr := range trs {
		var row []string
		col := 0
		fill := func() {
			for {
				p, ok := pending[col]
				if !ok {
					return
				}
				row = append(row, p.text)
				p.left--
				if p.left == 0 {
					delete(pending, col)
				} else {
					pending[col] = p
				}
				col++
			}
		}
		for c := tr.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode || (c.DataAtom != atom.Td && c.DataAtom != atom.Th) {
				continue
			}
			fill()
			text := utils.NormalizeCell(textOf(c))
			colspan := spanAttr(c, "colspan")
			rowspan := spanAttr(c, "rowspan")
			for k := 0; k < colspan; k++ {
				row = append(row, text)
				if rowspan > 1 {
					pending[col] = spanCell{text: text, left: rowspan - 1}
				}
				col++
			}
		}
		fill()
		if len(row) > 0 {
			grid = append(grid, row)
		}
	}
	return grid, nil
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

// collect gathers descendants with atom a, not descending into nested tables.
func collect(n *html.Node, a atom.Atom, out *[]*html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if c.DataAtom == a {
			*out = append(*out, c)
			continue
		}
		if c.DataAtom == atom.Table {
			continue
		}
		collect(c, a, out)
	}
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		case n.Type == html.ElementNode && n.DataAtom == atom.Br:
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func spanAttr(n *html.Node, key string) int {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			if v, err := strconv.Atoi(strings.TrimSpace(a.Val)); err == nil && v > 0 && v <= 64 {
				return v
			}
		}
	}
	return 1
}

// htmlFragment returns the text from the first "<table" at or after lines[start] through the
// matching "</table>", and the index of the line that closes it.
func htmlFragment(lines []string, start int) (string, int, bool) {
	if start >= len(lines) {
		return "", 0, false
	}
	loc := reTableOpen.FindStringIndex(lines[start])
	if loc == nil {
		return "", 0, false
	}
	open := loc[0]
	var b strings.Builder
	for i := start; i < len(lines); i++ {
		line := lines[i]
		if i == start {
			line = line[open:]
		}
		b.WriteString(line)
		b.WriteString("\n")
		if reTableClose.MatchString(line) {
			return b.String(), i, true
		}
	}
	// unterminated: the html parser closes open elements itself
	return b.String(), len(lines) - 1, true
}
