// Package observability provides logging, metrics and formatted CLI output.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/resume-builder/internal/templates"
	"github.com/jonathan/resume-builder/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// inner is the printable width between the box's side rules.
const inner = boxWidth - 4

func (p *Printer) rule(left, right string) {
	fmt.Fprintf(p.out, "%s%s%s\n", left, strings.Repeat("─", boxWidth-2), right) //nolint:errcheck
}

func (p *Printer) row(text string) {
	if r := []rune(text); len(r) > inner {
		text = string(r[:inner-3]) + "..."
	}
	fmt.Fprintf(p.out, "│ %-*s │\n", inner, text) //nolint:errcheck
}

// printBox frames content under a title. Long lines are cut to fit.
func (p *Printer) printBox(title string, content string) {
	p.rule("┌", "┐")
	p.row(title)
	p.rule("├", "┤")
	for _, line := range strings.Split(content, "\n") {
		p.row(line)
	}
	p.rule("└", "┘")
}

// PrintTemplates outputs the template registry.
func (p *Printer) PrintTemplates(entries []templates.Entry) {
	if len(entries) == 0 {
		return
	}

	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("%-12s → %s\n", e.ID, e.Library))
	}
	p.printBox("TEMPLATES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintResumeSummary outputs what a compile is about to typeset.
func (p *Printer) PrintResumeSummary(data *types.FormattedData, templateID string) {
	if data == nil {
		return
	}

	var sb strings.Builder
	name := strings.TrimSpace(data.PersonalInfo.FirstName + " " + data.PersonalInfo.LastName)
	sb.WriteString(fmt.Sprintf("Name:      %s\n", name))
	sb.WriteString(fmt.Sprintf("Template:  %s\n", templateID))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Education:  %d\n", len(data.Education)))
	sb.WriteString(fmt.Sprintf("Experience: %d\n", len(data.Experience)))
	sb.WriteString(fmt.Sprintf("Projects:   %d\n", len(data.Projects)))

	if len(data.Experience) > 0 {
		sb.WriteString("\nExperience:\n")
		count := min(len(data.Experience), maxItemsToShow)
		for i := 0; i < count; i++ {
			e := data.Experience[i]
			sb.WriteString(fmt.Sprintf("  • %s, %s\n", e.Position, e.Company))
		}
		if len(data.Experience) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(data.Experience)-maxItemsToShow))
		}
	}

	p.printBox("RESUME", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintCompileResult outputs the size and page count of a finished compile.
func (p *Printer) PrintCompileResult(format string, size int, pages int, elapsed time.Duration) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Format:   %s\n", strings.ToUpper(format)))
	sb.WriteString(fmt.Sprintf("Size:     %d bytes\n", size))
	if pages > 0 {
		sb.WriteString(fmt.Sprintf("Pages:    %d\n", pages))
	}
	sb.WriteString(fmt.Sprintf("Duration: %s", elapsed.Round(time.Millisecond)))
	p.printBox("COMPILED", sb.String())
}

// PrintValidation outputs registry validation problems.
func (p *Printer) PrintValidation(problems []string) {
	if len(problems) == 0 {
		p.rule("┌", "┐")
		p.row("✅ ALL TEMPLATE SOURCES PRESENT")
		p.rule("└", "┘")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d problems:\n\n", len(problems)))
	for i, problem := range problems {
		sb.WriteString(fmt.Sprintf("⚠ %s", problem))
		if i < len(problems)-1 {
			sb.WriteString("\n")
		}
	}
	p.printBox("TEMPLATE VALIDATION", sb.String())
}
