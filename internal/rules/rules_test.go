// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rules

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/l2m/pkg/types"
)

const sampleRules = `
substitutions:
  - name: chapter_title
    start: '\chapter{'
    end: '}'
    directive:
      type: inline
    generate_front_matter: true
  - name: definition
    start: '\begin{definition}'
    end: '\end{definition}'
    flags: [DOTALL]
    extract_label: true
    directive:
      type: prf:definition
      class: dropdown
      nonumber: "true"
  - name: broken
    start: '\\begin\{(broken'
    end: '\\end\{broken\}'
    escape: false
    directive:
      type: note
  - name: eqref
    start: '\eqref{'
    end: '}'
    sanitize: true
    replacement: "{{eq}}` + "`{content}`" + `"
    directive:
      type: inline
remove_commands: [noindent, centering]
remove_comments: true
date_format: DD/MM/YYYY
`

func TestParse(t *testing.T) {
	rs, err := Parse([]byte(sampleRules))
	require.NoError(t, err)

	require.Len(t, rs.Substitutions, 4)
	assert.Equal(t, []string{"noindent", "centering"}, rs.RemoveCommands)
	assert.True(t, rs.RemoveComments)
	assert.Equal(t, "DD/MM/YYYY", rs.DateFormat)

	def := rs.Substitutions[1]
	assert.Equal(t, "prf:definition", def.Directive.Type)
	assert.Equal(t, []types.Attribute{
		{Key: "class", Value: "dropdown"},
		{Key: "nonumber", Value: "true"},
	}, def.Directive.Attributes)
	assert.True(t, def.DotAll())
	assert.True(t, def.EscapeMarkers())
	assert.False(t, rs.Substitutions[2].EscapeMarkers())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
		errMsg  string
	}{
		{name: "empty input", data: "", wantErr: ErrEmptyRuleFile},
		{name: "no substitutions", data: "remove_comments: true\n", wantErr: ErrNoSubstitutions},
		{name: "invalid yaml", data: "substitutions: [\n", errMsg: "parsing rule file"},
		{
			name:   "non-scalar directive attribute",
			data:   "substitutions:\n  - start: a\n    end: b\n    directive:\n      type: x\n      nested: [1, 2]\n",
			errMsg: "must be a scalar",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.errMsg != "" {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "l2m.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRules), 0o644))

	rs, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, rs.Substitutions, 4)

	_, err = LoadFile(filepath.Join(dir, "missing.yml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading rule file")
}

func TestCompileSkipsBrokenRules(t *testing.T) {
	rs, err := Parse([]byte(sampleRules))
	require.NoError(t, err)

	var diag bytes.Buffer
	matchers := Compile(rs, &diag)

	require.Len(t, matchers, 3)
	assert.Equal(t, "chapter_title", matchers[0].Rule.Name)
	assert.Equal(t, "definition", matchers[1].Rule.Name)
	assert.Equal(t, "eqref", matchers[2].Rule.Name)

	assert.Contains(t, diag.String(), `"broken"`)
	assert.Contains(t, diag.String(), "Problematic regex:")
	assert.Contains(t, diag.String(), "Skipping this rule.")
}

func TestCompileMatchesPayload(t *testing.T) {
	tests := []struct {
		name    string
		rule    types.Rule
		input   string
		want    string
		noMatch bool
	}{
		{
			name:  "literal markers trim whitespace",
			rule:  types.Rule{Start: `\emph{`, End: `}`, Directive: types.Directive{Type: "inline"}},
			input: `see \emph{  important } here`,
			want:  "important",
		},
		{
			name:    "payload without DOTALL stays on one line",
			rule:    types.Rule{Start: `\begin{hint}`, End: `\end{hint}`, Directive: types.Directive{Type: "hint"}},
			input:   "\\begin{hint}line one\nline two\\end{hint}",
			noMatch: true,
		},
		{
			name: "DOTALL payload spans lines",
			rule: types.Rule{
				Start: `\begin{hint}`, End: `\end{hint}`,
				Flags:     []string{types.FlagDotAll},
				Directive: types.Directive{Type: "hint"},
			},
			input: "\\begin{hint}\nline one\nline two\n\\end{hint}",
			want:  "line one\nline two",
		},
		{
			name: "regex markers with their own group",
			rule: types.Rule{
				Start: `\\begin\{(remark|note)\}`, End: `\\end\{(remark|note)\}`,
				Escape:    boolPtr(false),
				Flags:     []string{types.FlagDotAll},
				Directive: types.Directive{Type: "note"},
			},
			input: "\\begin{remark} body \\end{remark}",
			want:  "body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var diag bytes.Buffer
			matchers := Compile(&types.RuleSet{Substitutions: []types.Rule{tt.rule}}, &diag)
			require.Len(t, matchers, 1, diag.String())
			m := matchers[0]

			sub := m.Pattern.FindStringSubmatch(tt.input)
			if tt.noMatch {
				assert.Nil(t, sub)
				return
			}
			require.NotNil(t, sub)
			assert.Equal(t, tt.want, sub[m.Payload])
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		rule types.Rule
		want Kind
	}{
		{types.Rule{Directive: types.Directive{Type: "inline"}, GenerateFrontMatter: true}, KindFrontMatter},
		{types.Rule{Directive: types.Directive{Type: "inline"}}, KindInline},
		{types.Rule{Directive: types.Directive{Type: "figure"}}, KindFigure},
		{types.Rule{Directive: types.Directive{Type: "hint"}}, KindHint},
		{types.Rule{Directive: types.Directive{Type: "card"}}, KindCard},
		{types.Rule{Directive: types.Directive{Type: "itemize"}}, KindItemize},
		{types.Rule{Directive: types.Directive{Type: "math"}}, KindGeneric},
		{types.Rule{}, KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.rule))
		})
	}
}

func boolPtr(b bool) *bool { return &b }
