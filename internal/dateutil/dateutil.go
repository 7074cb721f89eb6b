// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dateutil renders the front matter date from the date_format
// setting of a rule file.
//
// A format is a sequence of fields and literal text. Fields are runs of one
// letter: YYYY, YY (year), MMMM, MMM, MM, M (month), DD, D (day of month)
// and dddd, ddd (weekday). Text in square brackets is copied as is, so
// "[Lecture of] dddd, MMMM D" gives "Lecture of Tuesday, March 5". Any other
// character is copied too.
package dateutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDateFormat is wrapped by every format error.
var ErrInvalidDateFormat = errors.New("invalid date format")

// DefaultDateFormat is used when a rule file sets no date_format.
const DefaultDateFormat = "YYYY-MM-DD"

// maxFormatLength bounds date_format values read from rule files.
const maxFormatLength = 64

// field renders one component of a date.
type field func(t time.Time) string

// fields maps a field letter and run length to its renderer.
var fields = map[byte]map[int]field{
	'Y': {
		4: func(t time.Time) string { return fmt.Sprintf("%04d", t.Year()) },
		2: func(t time.Time) string { return fmt.Sprintf("%02d", t.Year()%100) },
	},
	'M': {
		4: func(t time.Time) string { return t.Month().String() },
		3: func(t time.Time) string { return t.Month().String()[:3] },
		2: func(t time.Time) string { return fmt.Sprintf("%02d", int(t.Month())) },
		1: func(t time.Time) string { return strconv.Itoa(int(t.Month())) },
	},
	'D': {
		2: func(t time.Time) string { return fmt.Sprintf("%02d", t.Day()) },
		1: func(t time.Time) string { return strconv.Itoa(t.Day()) },
	},
	'd': {
		4: func(t time.Time) string { return t.Weekday().String() },
		3: func(t time.Time) string { return t.Weekday().String()[:3] },
	},
}

// segment is either literal text or a field.
type segment struct {
	text   string
	render field
}

// Layout is a compiled date format.
type Layout struct {
	segments []segment
}

// Compile parses format into a Layout.
func Compile(format string) (Layout, error) {
	if format == "" {
		return Layout{}, fmt.Errorf("%w: format is empty", ErrInvalidDateFormat)
	}
	if len(format) > maxFormatLength {
		return Layout{}, fmt.Errorf("%w: longer than %d characters", ErrInvalidDateFormat, maxFormatLength)
	}

	var l Layout
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			l.segments = append(l.segments, segment{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(format); {
		c := format[i]
		if c == '[' {
			end := strings.IndexByte(format[i+1:], ']')
			if end < 0 {
				return Layout{}, fmt.Errorf("%w: '[' at offset %d is never closed", ErrInvalidDateFormat, i)
			}
			lit.WriteString(format[i+1 : i+1+end])
			i += end + 2
			continue
		}

		byLen, isField := fields[c]
		if !isField {
			lit.WriteByte(c)
			i++
			continue
		}
		n := 1
		for i+n < len(format) && format[i+n] == c {
			n++
		}
		render, ok := byLen[n]
		if !ok {
			return Layout{}, fmt.Errorf("%w: unsupported field %q", ErrInvalidDateFormat, format[i:i+n])
		}
		flush()
		l.segments = append(l.segments, segment{render: render})
		i += n
	}
	flush()
	return l, nil
}

// Format renders t.
func (l Layout) Format(t time.Time) string {
	var b strings.Builder
	for _, s := range l.segments {
		if s.render != nil {
			b.WriteString(s.render(t))
		} else {
			b.WriteString(s.text)
		}
	}
	return b.String()
}

// Format renders t with format, or with DefaultDateFormat when format is
// empty.
func Format(t time.Time, format string) (string, error) {
	if format == "" {
		format = DefaultDateFormat
	}
	l, err := Compile(format)
	if err != nil {
		return "", err
	}
	return l.Format(t), nil
}
