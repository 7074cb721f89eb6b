// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package transform

import "strings"

// balancedGroup scans the brace group opening at s[open] and returns its
// contents and the index just past the closing brace. Nested groups are
// balanced to any depth; a backslash escapes the following character, so
// \{ and \} do not count. ok is false when the group never closes.
func balancedGroup(s string, open int) (content string, end int, ok bool) {
	if open >= len(s) || s[open] != '{' {
		return "", open, false
	}
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[open+1 : i], i + 1, true
			}
		}
	}
	return "", open, false
}

// commandArg is one occurrence of \name{arg} in a text.
type commandArg struct {
	Start, End int
	Arg        string
}

// findCommands locates every \name{...} with a balanced argument. An
// optional [...] argument between the name and the brace is skipped.
// Occurrences whose brace group never closes are ignored.
func findCommands(s, name string) []commandArg {
	marker := `\` + name
	var found []commandArg
	for pos := 0; pos < len(s); {
		idx := strings.Index(s[pos:], marker)
		if idx < 0 {
			break
		}
		start := pos + idx
		open := start + len(marker)
		if open < len(s) && s[open] == '[' {
			if closeIdx := strings.IndexByte(s[open:], ']'); closeIdx >= 0 {
				open += closeIdx + 1
			}
		}
		arg, end, ok := balancedGroup(s, open)
		if !ok {
			pos = start + len(marker)
			continue
		}
		found = append(found, commandArg{Start: start, End: end, Arg: arg})
		pos = end
	}
	return found
}

// firstCommandArg returns the argument of the first \name{...} in s.
func firstCommandArg(s, name string) (string, bool) {
	found := findCommands(s, name)
	if len(found) == 0 {
		return "", false
	}
	return found[0].Arg, true
}

// nextCommand finds the first \name at or after from that is directly
// followed by nargs balanced brace groups. It returns the start of the
// command, the index past its last argument and the arguments.
func nextCommand(s string, from int, name string, nargs int) (start, end int, args []string, ok bool) {
	marker := `\` + name
	for pos := from; pos < len(s); {
		idx := strings.Index(s[pos:], marker)
		if idx < 0 {
			break
		}
		start = pos + idx
		end = start + len(marker)
		args = make([]string, 0, nargs)
		for len(args) < nargs {
			arg, next, ok := balancedGroup(s, end)
			if !ok {
				break
			}
			args = append(args, arg)
			end = next
		}
		if len(args) == nargs {
			return start, end, args, true
		}
		pos = start + len(marker)
	}
	return 0, 0, nil, false
}
