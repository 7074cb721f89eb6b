// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package transform

import (
	"strings"
)

const (
	footnoteLabelChars  = "abcdefghijklmnopqrstuvwxyz0123456789"
	footnoteLabelLength = 5
	footnoteIndent      = "    "
)

// Footnote is a collected \footnote body and the label that replaced it.
type Footnote struct {
	Label string
	Body  string
}

// Definition renders the footnote as a Markdown definition line.
func (f Footnote) Definition() string {
	return "[^" + f.Label + "]: " + f.Body
}

// Definitions joins the definitions of fns, one per line.
func Definitions(fns []Footnote) string {
	defs := make([]string, len(fns))
	for i, f := range fns {
		defs[i] = f.Definition()
	}
	return strings.Join(defs, "\n")
}

// CollectFootnotes replaces every \footnote{...} in text with a [^label]
// reference and appends the footnote to doc. Labels are random and unique
// within the document. Continuation lines of multi-line bodies are
// indented so they stay part of the definition.
func CollectFootnotes(text string, doc *Document) string {
	found := findCommands(text, "footnote")
	if len(found) == 0 {
		return text
	}

	used := make(map[string]bool, len(doc.Footnotes)+len(found))
	for _, f := range doc.Footnotes {
		used[f.Label] = true
	}

	var b strings.Builder
	last := 0
	for _, c := range found {
		label := doc.footnoteLabel()
		for used[label] {
			label = doc.footnoteLabel()
		}
		used[label] = true

		doc.Footnotes = append(doc.Footnotes, Footnote{Label: label, Body: indentContinuation(strings.TrimSpace(c.Arg))})
		b.WriteString(text[last:c.Start])
		b.WriteString("[^" + label + "]")
		last = c.End
	}
	b.WriteString(text[last:])
	return b.String()
}

func (d *Document) footnoteLabel() string {
	buf := make([]byte, footnoteLabelLength)
	for i := range buf {
		buf[i] = footnoteLabelChars[d.rng.IntN(len(footnoteLabelChars))]
	}
	return string(buf)
}

func indentContinuation(body string) string {
	lines := strings.Split(body, "\n")
	for i := 1; i < len(lines); i++ {
		lines[i] = footnoteIndent + lines[i]
	}
	return strings.Join(lines, "\n")
}
