// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package transform

import (
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// PlaceholderPercent stands in for "%s" in rule templates so the sequence
// survives comment stripping. It is expanded last.
const PlaceholderPercent = "PERCENT_S"

// Boundaries that end a problem or solution body.
const (
	solutionsHeading = "# Solutions"
	summaryHeading   = "# Summary"
	sectionCommand   = `\section`
)

var (
	commentPattern = regexp.MustCompile(`(?m)(^|[^\\])%[^\r\n]*`)

	// Quote pairs, in the order they are rewritten.
	doubleQuoteLaTeX = regexp.MustCompile("``(.*?)''")
	doubleQuoteMixed = regexp.MustCompile("``(.*?)\"")
	singleQuote      = regexp.MustCompile("`(.*?)'")

	equationPairPattern = regexp.MustCompile(`\\eqsand\{(.*?)\}\{(.*?)\}`)
)

// commandPatterns caches one compiled pattern per stripped command name.
// The cache is shared by all documents; lru.Cache is safe for concurrent use.
var commandPatterns = mustCommandCache(256)

func mustCommandCache(size int) *lru.Cache[string, *regexp.Regexp] {
	c, err := lru.New[string, *regexp.Regexp](size)
	if err != nil {
		panic(err)
	}
	return c
}

func commandPattern(name string) *regexp.Regexp {
	if re, ok := commandPatterns.Get(name); ok {
		return re
	}
	re := regexp.MustCompile(`\\` + regexp.QuoteMeta(name))
	commandPatterns.Add(name, re)
	return re
}

// StripCommands deletes each \name whose next character is not an ASCII
// letter, so \name{x} and "\name " go while \namefoo stays.
func StripCommands(text string, names []string) string {
	for _, name := range names {
		name = strings.TrimPrefix(strings.TrimSpace(name), `\`)
		if name == "" {
			continue
		}
		locs := commandPattern(name).FindAllStringIndex(text, -1)
		if locs == nil {
			continue
		}
		var b strings.Builder
		last := 0
		for _, loc := range locs {
			if loc[1] < len(text) && isASCIILetter(text[loc[1]]) {
				continue
			}
			b.WriteString(text[last:loc[0]])
			last = loc[1]
		}
		b.WriteString(text[last:])
		text = b.String()
	}
	return text
}

func isASCIILetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// NormalizeQuotes turns LaTeX quote pairs into plain quotes:
// ``x'' and ``x" become "x", `x' becomes 'x'. It repeats until nothing
// changes, so applying it again is a no-op.
func NormalizeQuotes(text string) string {
	for {
		next := doubleQuoteLaTeX.ReplaceAllString(text, `"$1"`)
		next = doubleQuoteMixed.ReplaceAllString(next, `"$1"`)
		next = singleQuote.ReplaceAllString(next, `'$1'`)
		if next == text {
			return next
		}
		text = next
	}
}

// StripComments removes everything from an unescaped % to the end of its
// line, leaving the line break (\n or \r\n) in place. \% is kept.
func StripComments(text string) string {
	return commentPattern.ReplaceAllString(text, "${1}")
}

// PairProblems rewrites \prob{label}{title} and the text up to the next
// problem, \section, "# Solutions" heading or end of text into an exercise
// directive. Problems are assumed to follow each other directly; other
// content between two problems ends up in the first one's body.
func PairProblems(text string) string {
	return pairBlocks(text, "prob", 2, []string{`\prob`, sectionCommand, solutionsHeading},
		func(args []string, body string) string {
			return "\n::::{exercise} " + args[1] + "\n:label: " + args[0] + "\n\n" + body + "\n::::\n"
		})
}

// PairSolutions rewrites \sol{label} and the text up to the next solution,
// \section, "# Summary" heading or end of text into a collapsed solution
// directive linked to the exercise label.
func PairSolutions(text string) string {
	return pairBlocks(text, "sol", 1, []string{`\sol`, sectionCommand, summaryHeading},
		func(args []string, body string) string {
			return "\n::::{solution} " + args[0] + "\n:label: " + args[0] + "-sol\n:class: dropdown\n\n" + body + "\n::::\n"
		})
}

// pairBlocks finds each \name with nargs brace arguments and hands the
// arguments and trimmed body to render. The body runs to the earliest stop
// string or the end of text.
func pairBlocks(text, name string, nargs int, stops []string, render func(args []string, body string) string) string {
	var b strings.Builder
	pos := 0
	for pos < len(text) {
		start, bodyStart, args, ok := nextCommand(text, pos, name, nargs)
		if !ok {
			break
		}
		bodyEnd := len(text)
		for _, stop := range stops {
			if i := strings.Index(text[bodyStart:], stop); i >= 0 && bodyStart+i < bodyEnd {
				bodyEnd = bodyStart + i
			}
		}

		b.WriteString(text[pos:start])
		b.WriteString(render(args, strings.TrimSpace(text[bodyStart:bodyEnd])))
		pos = bodyEnd
	}
	b.WriteString(text[pos:])
	return b.String()
}

// RewriteEquationPairs turns \eqsand{a}{b} into two numbered equation
// references joined by "and".
func RewriteEquationPairs(text string) string {
	return equationPairPattern.ReplaceAllString(text,
		"{numref}`Eq. ("+PlaceholderPercent+") <$1>` and {numref}`Eq. ("+PlaceholderPercent+") <$2>`")
}

// ExpandPlaceholders replaces PlaceholderPercent with "%s".
func ExpandPlaceholders(text string) string {
	return strings.ReplaceAll(text, PlaceholderPercent, "%s")
}
