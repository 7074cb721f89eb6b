// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the rule file and conversion records shared by the
// l2m packages.
package types

import (
	"fmt"
	"slices"

	"go.yaml.in/yaml/v3"
)

// FlagDotAll lets a rule's payload span newlines.
const FlagDotAll = "DOTALL"

// RuleSet is the parsed form of a rule file. Substitutions are applied in
// file order; later rules see the output of earlier ones.
type RuleSet struct {
	// Substitutions lists the pattern-to-directive rules in application order.
	Substitutions []Rule `json:"substitutions" yaml:"substitutions"`

	// RemoveCommands names LaTeX commands (without the backslash) deleted
	// after all substitutions ran.
	RemoveCommands []string `json:"remove_commands,omitempty" yaml:"remove_commands,omitempty"`

	// RemoveComments enables stripping of unescaped % comments.
	RemoveComments bool `json:"remove_comments" yaml:"remove_comments"`

	// DateFormat is the front matter date layout in YYYY/MM/DD tokens
	// (default "YYYY-MM-DD").
	DateFormat string `json:"date_format,omitempty" yaml:"date_format,omitempty"`
}

// Rule pairs a start/end marker with a directive emission policy.
type Rule struct {
	Name  string `json:"name" yaml:"name"`
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`

	// Escape quotes the markers as literal text. Nil means true; set it to
	// false to write the markers as regular expressions.
	Escape *bool `json:"escape,omitempty" yaml:"escape,omitempty"`

	// Flags holds match-mode switches; only FlagDotAll is recognized.
	Flags []string `json:"flags,omitempty" yaml:"flags,omitempty"`

	Directive Directive `json:"directive" yaml:"directive"`

	ExtractLabel        bool   `json:"extract_label,omitempty" yaml:"extract_label,omitempty"`
	GenerateFrontMatter bool   `json:"generate_front_matter,omitempty" yaml:"generate_front_matter,omitempty"`
	Replacement         string `json:"replacement,omitempty" yaml:"replacement,omitempty"`
	Delimiter           string `json:"delimiter,omitempty" yaml:"delimiter,omitempty"`
	SplitPrefix         string `json:"split_prefix,omitempty" yaml:"split_prefix,omitempty"`
	Sanitize            bool   `json:"sanitize,omitempty" yaml:"sanitize,omitempty"`
}

// EscapeMarkers reports whether Start and End are literal text.
func (r Rule) EscapeMarkers() bool {
	return r.Escape == nil || *r.Escape
}

// DotAll reports whether the payload may span newlines.
func (r Rule) DotAll() bool {
	return slices.Contains(r.Flags, FlagDotAll)
}

// DisplayName returns the rule name or "unnamed".
func (r Rule) DisplayName() string {
	if r.Name == "" {
		return "unnamed"
	}
	return r.Name
}

// Attribute is one key/value line of a directive, e.g. ":class: dropdown".
type Attribute struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Directive describes the output block a rule emits. Type selects the
// emission policy; Attributes keep the remaining keys in file order.
type Directive struct {
	Type       string      `json:"type"`
	Attributes []Attribute `json:"attributes,omitempty"`
}

// Get returns the value of the named attribute.
func (d Directive) Get(key string) (string, bool) {
	for _, a := range d.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// UnmarshalYAML decodes a mapping such as {type: exercise, class: dropdown}
// while preserving the attribute order of the source file.
func (d *Directive) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: directive must be a mapping", node.Line)
	}
	var out Directive
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: directive attribute %q must be a scalar", val.Line, key.Value)
		}
		if key.Value == "type" {
			out.Type = val.Value
			continue
		}
		out.Attributes = append(out.Attributes, Attribute{Key: key.Value, Value: val.Value})
	}
	*d = out
	return nil
}

// MarshalYAML writes the directive back as a flat mapping.
func (d Directive) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	add := func(k, v string) {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Value: v},
		)
	}
	if d.Type != "" {
		add("type", d.Type)
	}
	for _, a := range d.Attributes {
		add(a.Key, a.Value)
	}
	return node, nil
}
