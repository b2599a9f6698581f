package trace

// classifier.go — Line → Event classification.

import "strings"

// Classify maps one raw trace line to its typed event. It returns (nil, nil)
// for blank lines, comments, and lines matching no declared grammar — those
// are counted by the caller, not rejected. A grammar match with a failed
// field coercion returns a *FieldError.
func Classify(line string, lineNum int) (Event, error) {
	return classify(line, lineNum, func(pattern) bool { return true })
}

// classify tries the declared table in priority order against lines whose
// pattern satisfies want. First structural match wins.
func classify(line string, lineNum int, want func(pattern) bool) (Event, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, nil
	}
	for _, p := range grammar {
		rest, ok := strings.CutPrefix(line, p.tag+"|")
		if !ok {
			continue
		}
		if !want(p) {
			return nil, nil
		}
		r := newFieldReader(p.kind, lineNum, rest)
		ev := p.decode(r, base{LineNum: lineNum})
		if err := r.Err(); err != nil {
			return nil, err
		}
		return ev, nil
	}
	return nil, nil
}

func coreOnly(p pattern) bool   { return p.core }
func detailOnly(p pattern) bool { return !p.core }
