// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package transform

import (
	"regexp"
	"strings"
)

var includeGraphicsPattern = regexp.MustCompile(`\\includegraphics(?:\[.*?\])?\{(.*?)\}`)

// Figure is the information pulled out of a LaTeX figure environment.
type Figure struct {
	Label   string
	Caption string
	Images  []string
}

// ParseFigure extracts the first label, the first caption (with any label
// inside it removed) and every included image, in order. Missing parts are
// left empty.
func ParseFigure(payload string) Figure {
	var f Figure
	if m := labelPattern.FindStringSubmatch(payload); m != nil {
		f.Label = m[1]
	}
	if caption, ok := firstCommandArg(payload, "caption"); ok {
		f.Caption = strings.TrimSpace(labelPattern.ReplaceAllString(caption, ""))
	}
	for _, m := range includeGraphicsPattern.FindAllStringSubmatch(payload, -1) {
		f.Images = append(f.Images, m[1])
	}
	return f
}

// Render writes the figure as a MyST figure directive. A single image is
// the directive argument; several images are listed as subfigures.
func (f Figure) Render(folder string) string {
	var b strings.Builder
	if len(f.Images) == 1 {
		b.WriteString(":::{figure} " + folder + f.Images[0] + "\n")
		b.WriteString(":label: " + f.Label + "\n:align: center\n\n")
		b.WriteString(f.Caption + "\n:::")
		return b.String()
	}

	b.WriteString(":::{figure}\n")
	b.WriteString(":label: " + f.Label + "\n:align: center\n\n")
	for _, img := range f.Images {
		b.WriteString("![](" + folder + img + ")\n")
	}
	b.WriteString("\n" + f.Caption + "\n:::")
	return b.String()
}

func emitFigure(payload, folder string) string {
	return ParseFigure(payload).Render(folder)
}
