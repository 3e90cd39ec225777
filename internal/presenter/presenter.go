// Package presenter writes search results as plain text or JSON.
package presenter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"semsearch/internal/domain"
)

var (
	ruleStyle    = lipgloss.NewStyle().Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// Text renders results the way the scripted demo prints them.
type Text struct {
	w io.Writer
}

// NewText returns a presenter writing to w.
func NewText(w io.Writer) *Text { return &Text{w: w} }

// Banner prints a title framed by rules.
func (p *Text) Banner(title string) {
	rule := strings.Repeat("=", 70)
	fmt.Fprintln(p.w, ruleStyle.Render(rule))
	fmt.Fprintln(p.w, ruleStyle.Render(title))
	fmt.Fprintln(p.w, ruleStyle.Render(rule))
}

// Result prints one search as "N. [Distance: d] text" lines.
func (p *Text) Result(res domain.SearchResult) {
	fmt.Fprintf(p.w, "\nSearching for: '%s'\n", res.Query)
	if res.Empty() {
		fmt.Fprintln(p.w, warningStyle.Render("No results found."))
		return
	}
	fmt.Fprintf(p.w, "\nTop %d similar documents:\n", res.TopK)
	for _, e := range res.Entries {
		fmt.Fprintf(p.w, "%d. [Distance: %.4f] %s\n", e.Rank, e.Distance, e.Text)
	}
}

// Warning prints a non-fatal problem.
func (p *Text) Warning(msg string) {
	fmt.Fprintln(p.w, warningStyle.Render("⚠ "+msg))
}

// JSON writes res as indented JSON.
func JSON(w io.Writer, res domain.SearchResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
