// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package verify checks converted MyST Markdown for structural problems:
// unreadable front matter, fences that never close, and footnote
// references without a definition. It also counts the directives in a
// document so a conversion can be summarized.
package verify

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// minFenceWidth is the shortest run of backticks or colons that opens a fence.
const minFenceWidth = 3

var footnotePattern = regexp.MustCompile(`\[\^([^\]\s]+)\]`)

// Problem is one structural defect found in a document.
type Problem struct {
	Line    int
	Message string
}

func (p Problem) String() string {
	if p.Line > 0 {
		return fmt.Sprintf("line %d: %s", p.Line, p.Message)
	}
	return p.Message
}

// Report is the result of checking one document.
type Report struct {
	Name        string
	FrontMatter map[string]any

	// Directives counts fenced directives by name ("hint", "figure", ...).
	Directives map[string]int

	// Footnotes is the number of footnote definitions; FootnoteLinks is the
	// number of references the Markdown parser resolved outside code fences.
	Footnotes     int
	FootnoteLinks int

	Problems []Problem
}

// OK reports whether no problems were found.
func (r Report) OK() bool { return len(r.Problems) == 0 }

// DirectiveNames returns the directive names in sorted order.
func (r Report) DirectiveNames() []string {
	names := make([]string, 0, len(r.Directives))
	for n := range r.Directives {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *Report) addf(line int, format string, args ...any) {
	r.Problems = append(r.Problems, Problem{Line: line, Message: fmt.Sprintf(format, args...)})
}

// CheckFile reads path and checks its contents.
func CheckFile(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return Check(path, data), nil
}

// Check inspects a converted document. It never fails; every defect is
// reported as a Problem.
func Check(name string, data []byte) Report {
	r := Report{Name: name, Directives: map[string]int{}}

	body := data
	if bytes.HasPrefix(data, []byte("---")) {
		var fm map[string]any
		rest, err := frontmatter.Parse(bytes.NewReader(data), &fm)
		switch {
		case err != nil:
			r.addf(1, "front matter: %v", err)
		case fm == nil:
			r.addf(1, "front matter is empty")
		default:
			r.FrontMatter = fm
			body = rest
			if title, _ := fm["title"].(string); strings.TrimSpace(title) == "" {
				r.addf(1, "front matter has no title")
			}
		}
	}

	lines := strings.Split(string(data), "\n")
	checkFences(lines, &r)
	checkFootnotes(lines, &r)
	r.FootnoteLinks = countFootnoteLinks(body)
	return r
}

type openFence struct {
	marker byte
	width  int
	line   int
	name   string
}

// checkFences tracks ``` and ::: fences. Inside a backtick fence only its
// closing fence is recognized; colon fences nest.
func checkFences(lines []string, r *Report) {
	var stack []openFence
	for i, line := range lines {
		lineNo := i + 1
		trimmed := strings.TrimLeft(line, " ")
		marker, width := fenceRun(trimmed)

		if n := len(stack); n > 0 && stack[n-1].marker == '`' {
			if marker == '`' && width >= stack[n-1].width && strings.TrimSpace(trimmed[width:]) == "" {
				stack = stack[:n-1]
			}
			continue
		}
		if width == 0 {
			continue
		}

		info := strings.TrimSpace(trimmed[width:])
		if info == "" {
			n := len(stack)
			switch {
			case n > 0 && stack[n-1].marker == marker && width >= stack[n-1].width:
				stack = stack[:n-1]
			case marker == '`':
				stack = append(stack, openFence{marker: marker, width: width, line: lineNo})
			default:
				r.addf(lineNo, "closing %s fence without an open directive", strings.Repeat(string(marker), width))
			}
			continue
		}

		f := openFence{marker: marker, width: width, line: lineNo, name: directiveName(info)}
		if f.name != "" {
			r.Directives[f.name]++
		}
		stack = append(stack, f)
	}

	for _, f := range stack {
		what := "code block"
		if f.name != "" {
			what = "{" + f.name + "} directive"
		}
		r.addf(f.line, "unclosed %s", what)
	}
}

// fenceRun returns the fence character and run length at the start of s,
// or width 0 when s does not start a fence.
func fenceRun(s string) (byte, int) {
	if s == "" || (s[0] != '`' && s[0] != ':') {
		return 0, 0
	}
	c := s[0]
	n := 0
	for n < len(s) && s[n] == c {
		n++
	}
	if n < minFenceWidth {
		return 0, 0
	}
	return c, n
}

// directiveName extracts "hint" from "{hint} title".
func directiveName(info string) string {
	if !strings.HasPrefix(info, "{") {
		return ""
	}
	end := strings.IndexByte(info, '}')
	if end < 0 {
		return ""
	}
	return info[1:end]
}

func checkFootnotes(lines []string, r *Report) {
	defined := map[string]int{}
	type ref struct {
		label string
		line  int
	}
	var refs []ref

	for i, line := range lines {
		for _, loc := range footnotePattern.FindAllStringSubmatchIndex(line, -1) {
			label := line[loc[2]:loc[3]]
			if loc[0] == 0 && loc[1] < len(line) && line[loc[1]] == ':' {
				if first, dup := defined[label]; dup {
					r.addf(i+1, "footnote [^%s] already defined on line %d", label, first)
					continue
				}
				defined[label] = i + 1
				continue
			}
			refs = append(refs, ref{label: label, line: i + 1})
		}
	}
	r.Footnotes = len(defined)

	used := map[string]bool{}
	for _, rf := range refs {
		used[rf.label] = true
		if _, ok := defined[rf.label]; !ok {
			r.addf(rf.line, "footnote [^%s] has no definition", rf.label)
		}
	}
	for label, line := range defined {
		if !used[label] {
			r.addf(line, "footnote [^%s] is never referenced", label)
		}
	}
	sort.SliceStable(r.Problems, func(a, b int) bool { return r.Problems[a].Line < r.Problems[b].Line })
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Footnote))

func countFootnoteLinks(body []byte) int {
	doc := markdown.Parser().Parse(text.NewReader(body))
	n := 0
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && node.Kind() == east.KindFootnoteLink {
			n++
		}
		return ast.WalkContinue, nil
	})
	return n
}
