// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package transform rewrites LaTeX source into MyST Markdown.
//
// Conversion is a fixed sequence of text stages. Compiled rules run first,
// in rule-file order, each over the output of the previous one. The
// post-processors follow: command stripping, quote normalization, comment
// stripping, footnote collection, a second quote pass, problem and solution
// pairing, equation-pair references and placeholder expansion. The output
// is the front matter, the body and the footnote definitions, in that order.
//
// Per-document state (front matter, collected footnotes) lives in a
// Document created for each call, so an Engine can convert many documents
// concurrently.
package transform

import (
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/pdiddy/l2m/internal/dateutil"
	"github.com/pdiddy/l2m/internal/rules"
	"github.com/pdiddy/l2m/pkg/types"
)

// Document carries the side-channel state of one conversion.
type Document struct {
	// FrontMatter is the preamble produced by a front matter rule.
	FrontMatter string

	// Footnotes are collected in the order their markers appear.
	Footnotes []Footnote

	now        time.Time
	dateFormat string
	rng        *rand.Rand
}

// Result is the outcome of converting one document.
type Result struct {
	// Text is the complete output: front matter, body, footnote definitions.
	Text string

	FrontMatter string
	Footnotes   []Footnote
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source used for front matter dates.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRand sets the factory for the per-document random source used for
// footnote labels. The factory is called once per Convert.
func WithRand(newRand func() *rand.Rand) Option {
	return func(e *Engine) { e.newRand = newRand }
}

// Engine applies a compiled rule set and the post-processing pipeline.
type Engine struct {
	matchers      []rules.Matcher
	commands      []string
	stripComments bool
	dateFormat    string

	now     func() time.Time
	newRand func() *rand.Rand
}

// New builds an Engine from compiled matchers and the global settings of
// the rule set they came from.
func New(matchers []rules.Matcher, rs *types.RuleSet, opts ...Option) (*Engine, error) {
	e := &Engine{
		matchers: matchers,
		now:      time.Now,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
	}
	if rs != nil {
		e.commands = rs.RemoveCommands
		e.stripComments = rs.RemoveComments
		e.dateFormat = rs.DateFormat
	}
	if e.dateFormat != "" {
		if _, err := dateutil.Compile(e.dateFormat); err != nil {
			return nil, fmt.Errorf("date_format: %w", err)
		}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Matchers returns the compiled rules in application order.
func (e *Engine) Matchers() []rules.Matcher {
	return e.matchers
}

// Convert runs the full pipeline over raw.
func (e *Engine) Convert(raw string) Result {
	doc := &Document{
		now:        e.now(),
		dateFormat: e.dateFormat,
		rng:        e.newRand(),
	}

	text := raw
	for _, m := range e.matchers {
		text = apply(m, text, doc)
	}

	text = StripCommands(text, e.commands)
	text = NormalizeQuotes(text)
	if e.stripComments {
		text = StripComments(text)
	}
	text = CollectFootnotes(text, doc)
	text = NormalizeQuotes(text)
	text = PairProblems(text)
	text = PairSolutions(text)
	text = finish(text)

	var out strings.Builder
	out.WriteString(doc.FrontMatter)
	out.WriteString(text)
	if len(doc.Footnotes) > 0 {
		out.WriteString("\n\n")
		out.WriteString(finish(NormalizeQuotes(Definitions(doc.Footnotes))))
	}

	return Result{
		Text:        out.String(),
		FrontMatter: doc.FrontMatter,
		Footnotes:   doc.Footnotes,
	}
}

// finish applies the context-free rewrites that must see every other
// stage's output.
func finish(text string) string {
	return ExpandPlaceholders(RewriteEquationPairs(text))
}

// Convert compiles rs and converts raw in one call. Rules that fail to
// compile are skipped silently and an invalid date format falls back to the
// default; use rules.Compile and New to observe either.
func Convert(raw string, rs *types.RuleSet, commandsToStrip []string, stripComments bool) string {
	settings := types.RuleSet{
		RemoveCommands: commandsToStrip,
		RemoveComments: stripComments,
	}
	if rs != nil {
		settings.DateFormat = rs.DateFormat
	}
	var matchers []rules.Matcher
	if rs != nil {
		matchers = rules.Compile(rs, io.Discard)
	}
	e, err := New(matchers, &settings)
	if err != nil {
		settings.DateFormat = ""
		e, _ = New(matchers, &settings)
	}
	return e.Convert(raw).Text
}
