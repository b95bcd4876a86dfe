// Package pagesplit slices one continuous rendered SVG document into A4 page
// fragments, and stacks per-page SVGs back into one continuous document.
package pagesplit

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// A4 page dimensions in points.
const (
	PageHeight = 841.89
	PageWidth  = 595.276
)

// pageNoise is the relative float error tolerated when a document height is
// an exact multiple of the page height. It is far below any real overflow.
const pageNoise = 1e-12

const (
	svgNamespace   = "http://www.w3.org/2000/svg"
	xlinkNamespace = "http://www.w3.org/1999/xlink"
)

// document is a parsed SVG: the root element and the raw markup between the
// root's start and end tags.
type document struct {
	root  xml.StartElement
	inner string
}

// Split returns one SVG fragment per printed page of svg. Each fragment
// embeds the entire original drawing and crops its page through the viewBox
// offset. Unparsable input, a root without a usable height, or a document no
// taller than one page is returned unchanged as a single-element list.
func Split(svg string) []string {
	doc, err := parse(svg)
	if err != nil {
		return []string{svg}
	}

	height, ok := parseLength(attr(doc.root, "height"))
	if !ok {
		return []string{svg}
	}

	numPages := pageCount(height)
	if numPages <= 1 {
		return []string{svg}
	}

	open := rootOpenTag(doc.root)
	pages := make([]string, 0, numPages)
	for i := 0; i < numPages; i++ {
		var sb strings.Builder
		sb.Grow(len(doc.inner) + 256)
		fmt.Fprintf(&sb, `%s width="%s" height="%s" viewBox="0 %s %s %s" preserveAspectRatio="xMidYMid meet">`,
			open,
			formatNumber(PageWidth),
			formatNumber(PageHeight),
			formatNumber(float64(i)*PageHeight),
			formatNumber(PageWidth),
			formatNumber(PageHeight),
		)
		sb.WriteString(doc.inner)
		sb.WriteString("</svg>")
		pages = append(pages, sb.String())
	}
	return pages
}

// pageCount is ceil(height/PageHeight), except that a height within float
// noise of an exact multiple counts as that multiple.
func pageCount(height float64) int {
	n := math.Ceil(height / PageHeight)
	if n > 1 && height-(n-1)*PageHeight <= pageNoise*height {
		n--
	}
	return int(n)
}

// PageCount returns how many fragments Split would produce for svg.
func PageCount(svg string) int {
	return len(Split(svg))
}

// DropTrailing discards the last fragment of a multi-page result. The
// continuous document carries a blank overflow page after the last real
// page; a single fragment is always real content and is kept.
func DropTrailing(pages []string) []string {
	if len(pages) <= 1 {
		return pages
	}
	return pages[:len(pages)-1]
}

// parse decodes svg strictly and captures the root element and its inner markup.
func parse(svg string) (*document, error) {
	dec := xml.NewDecoder(strings.NewReader(svg))
	dec.Strict = true

	var (
		doc        *document
		depth      int
		innerStart int64
		innerEnd   int64 = -1
	)

	for {
		before := dec.InputOffset()
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse svg: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if doc == nil {
				doc = &document{root: t.Copy()}
				innerStart = dec.InputOffset()
			}
			depth++
		case xml.EndElement:
			depth--
			if depth == 0 && innerEnd < 0 {
				innerEnd = before
			}
		}
	}

	if doc == nil || innerEnd < innerStart {
		return nil, errors.New("svg has no root element")
	}
	if doc.root.Name.Local != "svg" {
		return nil, fmt.Errorf("root element is <%s>, not <svg>", doc.root.Name.Local)
	}
	doc.inner = svg[innerStart:innerEnd]
	return doc, nil
}

// attr returns the value of an unqualified attribute of el.
func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Space == "" && a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// rootOpenTag returns "<svg" plus the namespace declarations of the original
// root, so prefixed references in the copied inner markup still resolve.
func rootOpenTag(root xml.StartElement) string {
	var sb strings.Builder
	sb.WriteString(`<svg xmlns="` + svgNamespace + `"`)

	hasXlink := false
	for _, a := range root.Attr {
		if a.Name.Space != "xmlns" {
			continue
		}
		if a.Name.Local == "xlink" {
			hasXlink = true
		}
		fmt.Fprintf(&sb, ` xmlns:%s="%s"`, a.Name.Local, escapeAttr(a.Value))
	}
	if !hasXlink {
		sb.WriteString(` xmlns:xlink="` + xlinkNamespace + `"`)
	}
	return sb.String()
}

// parseLength reads the leading number of an SVG length such as "841.89" or
// "841.89pt", ignoring any unit suffix.
func parseLength(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E' {
			end++
			continue
		}
		break
	}
	for end > 0 {
		v, err := strconv.ParseFloat(s[:end], 64)
		if err == nil {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, false
			}
			return v, true
		}
		end--
	}
	return 0, false
}

// formatNumber prints v without float noise past six decimal places.
func formatNumber(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e6)/1e6, 'f', -1, 64)
}

func escapeAttr(s string) string {
	var sb strings.Builder
	_ = xml.EscapeText(&sb, []byte(s))
	return sb.String()
}
