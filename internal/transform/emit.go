// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package transform

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/l2m/internal/dateutil"
	"github.com/pdiddy/l2m/internal/rules"
)

const (
	// contentField is the payload placeholder in inline replacement templates.
	contentField = "{content}"

	// defaultFigureFolder prefixes image paths when a figure rule names none.
	defaultFigureFolder = "../static/"
)

var (
	labelPattern = regexp.MustCompile(`\\label\{(.*?)\}`)
	itemPattern  = regexp.MustCompile(`\\item\s*`)

	labelSanitizer = strings.NewReplacer("=", "-", ")", "-", "(", "-")
)

// apply replaces every match of m in text with its emitted directive.
func apply(m rules.Matcher, text string, doc *Document) string {
	locs := m.Pattern.FindAllStringSubmatchIndex(text, -1)
	if locs == nil {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, loc := range locs {
		b.WriteString(text[last:loc[0]])
		var payload string
		if start, end := loc[2*m.Payload], loc[2*m.Payload+1]; start >= 0 {
			payload = strings.TrimSpace(text[start:end])
		}
		b.WriteString(emit(m, text[loc[0]:loc[1]], payload, doc))
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

// emit renders one match according to the rule's kind. A kind without a
// policy leaves the match as it was.
func emit(m rules.Matcher, match, payload string, doc *Document) string {
	switch m.Kind {
	case rules.KindFrontMatter:
		doc.FrontMatter = frontMatter(payload, doc)
		return ""
	case rules.KindInline:
		return emitInline(m, payload)
	case rules.KindFigure:
		folder, ok := m.Rule.Directive.Get("folder")
		if !ok {
			folder = defaultFigureFolder
		}
		return emitFigure(payload, folder)
	case rules.KindHint:
		return "\n```{hint}\n:class: dropdown\n" + payload + "\n```\n"
	case rules.KindCard:
		return "\n:::{card}\n" + itemPattern.ReplaceAllString(payload, "") + "\n:::\n"
	case rules.KindItemize:
		return emitItemize(m.Rule.Name, payload)
	case rules.KindGeneric:
		return emitGeneric(m, payload)
	default:
		return match
	}
}

// Sanitize replaces characters that are not allowed in MyST reference
// targets.
func Sanitize(s string) string {
	return labelSanitizer.Replace(s)
}

func emitInline(m rules.Matcher, payload string) string {
	r := m.Rule
	if r.Sanitize {
		payload = Sanitize(payload)
	}
	if r.Delimiter != "" {
		payload = SplitItems(payload, r.Delimiter, r.SplitPrefix)
	}
	tmpl := r.Replacement
	if tmpl == "" {
		tmpl = contentField
	}
	return FillTemplate(tmpl, payload)
}

// SplitItems splits s on delim, trims each item, prefixes every item after
// the first and joins them with ";".
func SplitItems(s, delim, prefix string) string {
	items := strings.Split(s, delim)
	for i, item := range items {
		item = strings.TrimSpace(item)
		if i > 0 {
			item = prefix + item
		}
		items[i] = item
	}
	return strings.Join(items, ";")
}

// FillTemplate substitutes content for {content} in tmpl. Doubled braces
// render as single braces; other fields are copied unchanged.
func FillTemplate(tmpl, content string) string {
	var b strings.Builder
	for i := 0; i < len(tmpl); {
		switch rest := tmpl[i:]; {
		case strings.HasPrefix(rest, "{{"):
			b.WriteByte('{')
			i += 2
		case strings.HasPrefix(rest, "}}"):
			b.WriteByte('}')
			i += 2
		case strings.HasPrefix(rest, contentField):
			b.WriteString(content)
			i += len(contentField)
		default:
			b.WriteByte(tmpl[i])
			i++
		}
	}
	return b.String()
}

func emitItemize(name, payload string) string {
	var items []string
	for _, item := range itemPattern.Split(payload, -1) {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	lettered := name == "alphabold" || strings.HasSuffix(name, "_alphabold")
	var b strings.Builder
	for i, item := range items {
		if lettered {
			fmt.Fprintf(&b, "\n\n**(%s)** %s\n\n", itemLetter(i), item)
		} else {
			fmt.Fprintf(&b, "\n\n* %s\n\n", item)
		}
	}
	return strings.TrimSpace(b.String())
}

// itemLetter returns a, b, ..., z, aa, ab, ... for i = 0, 1, ...
func itemLetter(i int) string {
	var s []byte
	for i >= 0 {
		s = append([]byte{byte('a' + i%26)}, s...)
		i = i/26 - 1
	}
	return string(s)
}

// ExtractLabel returns the first \label{...} target in s and s with every
// label command removed.
func ExtractLabel(s string) (label string, rest string, ok bool) {
	m := labelPattern.FindStringSubmatch(s)
	if m == nil {
		return "", s, false
	}
	return m[1], strings.TrimSpace(labelPattern.ReplaceAllString(s, "")), true
}

func emitGeneric(m rules.Matcher, payload string) string {
	var label string
	var hasLabel bool
	if m.Rule.ExtractLabel {
		label, payload, hasLabel = ExtractLabel(payload)
		label = Sanitize(label)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "```{%s}\n", m.Rule.Directive.Type)
	for _, a := range m.Rule.Directive.Attributes {
		value := a.Value
		if a.Key == "label" && hasLabel {
			value = label
			hasLabel = false
		}
		fmt.Fprintf(&b, ":%s: %s\n", a.Key, value)
	}
	if hasLabel {
		fmt.Fprintf(&b, ":label: %s\n", label)
	}
	b.WriteString(payload)
	b.WriteString("\n```")
	return b.String()
}

func frontMatter(title string, doc *Document) string {
	date, err := dateutil.Format(doc.now, doc.dateFormat)
	if err != nil {
		date, _ = dateutil.Format(doc.now, dateutil.DefaultDateFormat)
	}
	return fmt.Sprintf("---\ntitle: %q\ndate: %s\n---\n\n", title, date)
}
