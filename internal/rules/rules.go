// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rules loads a YAML rule file and compiles its substitutions into
// matchers. A rule whose pattern does not compile is reported and skipped;
// the remaining rules still load.
package rules

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/l2m/pkg/types"
)

var (
	ErrEmptyRuleFile   = errors.New("rule file is empty")
	ErrNoSubstitutions = errors.New("rule file has no substitutions")
)

// Kind selects how a matched payload is rewritten.
type Kind int

const (
	KindUnknown Kind = iota
	KindFrontMatter
	KindInline
	KindFigure
	KindHint
	KindCard
	KindItemize
	KindGeneric
)

var kindNames = map[Kind]string{
	KindUnknown:     "unknown",
	KindFrontMatter: "front-matter",
	KindInline:      "inline",
	KindFigure:      "figure",
	KindHint:        "hint",
	KindCard:        "card",
	KindItemize:     "itemize",
	KindGeneric:     "generic",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Classify returns the single kind a rule emits. Front matter generation
// takes precedence over the directive type; any unrecognized non-empty
// type is a generic labeled block.
func Classify(r types.Rule) Kind {
	if r.GenerateFrontMatter {
		return KindFrontMatter
	}
	switch r.Directive.Type {
	case "":
		return KindUnknown
	case "inline":
		return KindInline
	case "figure":
		return KindFigure
	case "hint":
		return KindHint
	case "card":
		return KindCard
	case "itemize":
		return KindItemize
	default:
		return KindGeneric
	}
}

// payloadGroup names the capture between the markers, so markers written
// as regular expressions may carry groups of their own.
const payloadGroup = "payload"

// Matcher is the compiled form of a rule. Pattern captures the payload
// between the start and end markers in the group at index Payload.
type Matcher struct {
	Rule    types.Rule
	Kind    Kind
	Pattern *regexp.Regexp
	Payload int
}

// Parse decodes a rule file.
func Parse(data []byte) (*types.RuleSet, error) {
	if len(data) == 0 {
		return nil, ErrEmptyRuleFile
	}
	var rs types.RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parsing rule file: %w", err)
	}
	if len(rs.Substitutions) == 0 {
		return nil, ErrNoSubstitutions
	}
	return &rs, nil
}

// LoadFile reads and parses the rule file at path.
func LoadFile(path string) (*types.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rule file: %w", err)
	}
	rs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// Pattern builds the regular expression source for a rule:
// start, optional whitespace, a lazy payload group, optional whitespace, end.
func Pattern(r types.Rule) string {
	start, end := r.Start, r.End
	if r.EscapeMarkers() {
		start = regexp.QuoteMeta(start)
		end = regexp.QuoteMeta(end)
	}
	body := `(?P<` + payloadGroup + `>.*?)`
	if r.DotAll() {
		body = `(?P<` + payloadGroup + `>(?s:.*?))`
	}
	return `(?m)` + start + `\s*` + body + `\s*` + end
}

// Compile turns every rule of rs into a Matcher, in order. Rules that fail
// to compile are reported on diag and left out.
func Compile(rs *types.RuleSet, diag io.Writer) []Matcher {
	matchers := make([]Matcher, 0, len(rs.Substitutions))
	for _, r := range rs.Substitutions {
		src := Pattern(r)
		re, err := regexp.Compile(src)
		if err != nil {
			fmt.Fprintf(diag, "Error compiling regex for rule %q: %v\n", r.DisplayName(), err)
			fmt.Fprintf(diag, "Problematic regex: %s\n", src)
			fmt.Fprintln(diag, "Skipping this rule.")
			continue
		}
		idx := re.SubexpIndex(payloadGroup)
		if idx < 0 {
			fmt.Fprintf(diag, "Rule %q has no payload group, skipping.\n", r.DisplayName())
			continue
		}
		matchers = append(matchers, Matcher{Rule: r, Kind: Classify(r), Pattern: re, Payload: idx})
	}
	return matchers
}
