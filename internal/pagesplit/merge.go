package pagesplit

import (
	"fmt"
	"strings"
)

// DefaultTrailer is the blank strip Merge appends below the last page.
// It makes the merged height exceed a whole number of pages, so Split
// yields one trailing overflow fragment that DropTrailing removes.
const DefaultTrailer = 5.0

// Merge stacks per-page SVG documents into one continuous SVG. Page i is
// nested at x=0, y=i*PageHeight, the exact window Split crops for fragment
// i, and trailer points of blank space follow the last page.
func Merge(pages []string, trailer float64) (string, error) {
	if len(pages) == 0 {
		return "", fmt.Errorf("no pages to merge")
	}
	if trailer < 0 {
		return "", fmt.Errorf("trailer must not be negative")
	}
	if len(pages) == 1 && trailer == 0 {
		return pages[0], nil
	}

	type placed struct {
		doc     *document
		width   float64
		height  float64
		viewBox string
	}

	items := make([]placed, 0, len(pages))
	width := PageWidth
	for i, page := range pages {
		doc, err := parse(page)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i+1, err)
		}
		w, okW := parseLength(attr(doc.root, "width"))
		h, okH := parseLength(attr(doc.root, "height"))
		if !okW || !okH {
			return "", fmt.Errorf("page %d: missing width or height", i+1)
		}
		items = append(items, placed{doc: doc, width: w, height: h, viewBox: attr(doc.root, "viewBox")})
		width = max(width, w)
	}

	height := float64(len(items))*PageHeight + trailer

	var sb strings.Builder
	fmt.Fprintf(&sb, `%s width="%s" height="%s" viewBox="0 0 %s %s">`,
		rootOpenTag(items[0].doc.root),
		formatNumber(width), formatNumber(height),
		formatNumber(width), formatNumber(height),
	)
	for i, it := range items {
		fmt.Fprintf(&sb, `<svg x="0" y="%s" width="%s" height="%s"`,
			formatNumber(float64(i)*PageHeight), formatNumber(it.width), formatNumber(it.height))
		if it.viewBox != "" {
			fmt.Fprintf(&sb, ` viewBox="%s"`, escapeAttr(it.viewBox))
		}
		sb.WriteString(">")
		sb.WriteString(it.doc.inner)
		sb.WriteString("</svg>")
	}
	sb.WriteString("</svg>")
	return sb.String(), nil
}
