package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Printer renders outcomes and reports for the CLI.
type Printer struct {
	JSON   bool
	Writer io.Writer
}

// NewPrinter creates a Printer writing to stdout.
func NewPrinter(jsonMode bool) *Printer {
	return &Printer{JSON: jsonMode, Writer: os.Stdout}
}

var (
	okMark   = color.New(color.FgGreen).SprintFunc()
	warnMark = color.New(color.FgYellow).SprintFunc()
	errMark  = color.New(color.FgRed).SprintFunc()
)

func statusMark(s Status) string {
	switch s {
	case StatusOK, StatusCopied:
		return okMark("✓")
	case StatusError:
		return errMark("✗")
	default:
		return warnMark("!")
	}
}

// PrintOutcome renders a single-file outcome.
func (p *Printer) PrintOutcome(o *Outcome) {
	if p.JSON {
		p.printJSON(outcomeJSON(o))
		return
	}
	p.printOutcomeText(o)
}

// PrintReport renders a directory report followed by a status summary.
func (p *Printer) PrintReport(r *Report) {
	if p.JSON {
		out := struct {
			Root     string         `json:"root"`
			Outcomes []any          `json:"outcomes"`
			Summary  map[Status]int `json:"summary"`
		}{Root: r.Root, Summary: r.Counts()}
		for _, o := range r.Outcomes {
			out.Outcomes = append(out.Outcomes, outcomeJSON(o))
		}
		p.printJSON(out)
		return
	}

	for _, o := range r.Outcomes {
		p.printOutcomeText(o)
	}
	counts := r.Counts()
	parts := make([]string, 0, len(counts))
	for _, s := range []Status{StatusOK, StatusCopied, StatusNoMetadata, StatusUnparseable, StatusUnsupported, StatusProtected, StatusError} {
		if n := counts[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", s, n))
		}
	}
	fmt.Fprintf(p.Writer, "%d file(s): %s\n", r.Len(), strings.Join(parts, " "))
}

// PrintTags renders the tag set of a report.
func (p *Printer) PrintTags(tags []string) {
	if p.JSON {
		p.printJSON(tags)
		return
	}
	for _, t := range tags {
		fmt.Fprintln(p.Writer, t)
	}
}

// PrintMatches renders the files carrying a tag.
func (p *Printer) PrintMatches(tag string, matches []TagMatch) {
	if p.JSON {
		p.printJSON(matches)
		return
	}
	if len(matches) == 0 {
		fmt.Fprintf(p.Writer, "(no file carries %q)\n", tag)
		return
	}
	for _, m := range matches {
		fmt.Fprintf(p.Writer, "%s\n  %-30s %s\n", m.Path, tag+":", m.Value)
	}
}

// PrintFormats renders the handler registry.
func (p *Printer) PrintFormats(infos []FormatInfo) {
	if p.JSON {
		p.printJSON(infos)
		return
	}
	for _, fi := range infos {
		strip := "view"
		if fi.CanStrip {
			strip = "view+strip"
		}
		fmt.Fprintf(p.Writer, "%-8s %-10s %-11s %s\n", fi.Name, fi.Family, strip, strings.Join(fi.Extensions, " "))
		if fi.Notes != "" {
			fmt.Fprintf(p.Writer, "         %s\n", fi.Notes)
		}
	}
}

func (p *Printer) printOutcomeText(o *Outcome) {
	if o.Metadata == nil {
		fmt.Fprintf(p.Writer, "%s %s\n", statusMark(o.Status), o.Message)
		return
	}

	m := o.Metadata
	fmt.Fprintf(p.Writer, "File  : %s\n", m.FilePath)
	fmt.Fprintf(p.Writer, "Format: %s (%s)\n", m.Format, MediaTypeFor(o.Format))
	if len(m.Fields) == 0 {
		fmt.Fprintln(p.Writer, "(no metadata found)")
		fmt.Fprintln(p.Writer)
		return
	}
	fmt.Fprintln(p.Writer)

	// Group by category
	groups := make(map[string][]Field)
	order := []string{}
	seen := map[string]bool{}
	for _, f := range m.Fields {
		if !seen[f.Category] {
			seen[f.Category] = true
			order = append(order, f.Category)
		}
		groups[f.Category] = append(groups[f.Category], f)
	}

	for _, cat := range order {
		if cat != "" {
			fmt.Fprintf(p.Writer, "── %s ──\n", cat)
		}
		for _, f := range groups[cat] {
			fmt.Fprintf(p.Writer, "  %-30s %s\n", f.Key+":", f.Value)
		}
		fmt.Fprintln(p.Writer)
	}
}

func outcomeJSON(o *Outcome) any {
	type jsonOutcome struct {
		*Outcome
		Error string `json:"error,omitempty"`
	}
	out := jsonOutcome{Outcome: o}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	return out
}

func (p *Printer) printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(p.Writer, string(b))
}

// PrintError prints an error to stderr.
func PrintError(msg string) {
	fmt.Fprintln(os.Stderr, errMark("✗")+" Error: "+msg)
}
