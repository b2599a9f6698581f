package trace

// reader.go — Trace file reading.
//
// Traces are UTF-8 in the normal case, but the engine has been observed to
// emit Latin-1 bytes in file-name fields. Rather than reject those runs the
// reader falls back to a byte-to-rune Latin-1 decode, which cannot fail.

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// ReadLines reads every line of the trace at path. Line endings are
// normalized; returned lines carry no terminator.
func ReadLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trace %s: %w", path, err)
	}
	text := string(data)
	if !utf8.Valid(data) {
		text = decodeLatin1(data)
	}
	lines := strings.Split(text, "\n")
	// A trailing newline produces one empty final element; drop it so line
	// numbers match what editors show.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines, nil
}

func decodeLatin1(data []byte) string {
	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		b.WriteRune(rune(c))
	}
	return b.String()
}
