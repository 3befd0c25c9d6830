package lyricflow

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// CleanLyric lower-cases line, drops every rune that is neither a-z nor
// whitespace (apostrophes included) and collapses whitespace to single spaces.
func CleanLyric(line string) string {
	var b strings.Builder
	b.Grow(len(line))
	for _, r := range strings.ToLower(line) {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeCorpus cleans every line of raw, drops empty lines and removes
// duplicates, keeping the first occurrence of each.
func NormalizeCorpus(raw string) []string {
	return normalizeLines(strings.Split(raw, "\n"))
}

func normalizeLines(lines []string) []string {
	seen := make(map[string]bool, len(lines))
	var out []string
	for _, ln := range lines {
		ln = CleanLyric(ln)
		if ln == "" || seen[ln] {
			continue
		}
		seen[ln] = true
		out = append(out, ln)
	}
	return out
}

// ReadCorpus loads a one-lyric-per-line UTF-8 file and normalizes it
func ReadCorpus(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lyricflow: read corpus: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("lyricflow: read corpus %s: %w", path, err)
	}

	out := normalizeLines(lines)
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s has no usable lines", ErrEmptyCorpus, path)
	}
	return out, nil
}
