// Package patchid computes content identifiers for commit patches: two commits
// introducing the same change get the same identifier regardless of blob ids,
// file modes or blank lines.
package patchid

import (
	"bufio"
	"crypto/sha1" //nolint:gosec // content identity, not security.
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// headerPrefixes are the per-file header lines of a git patch. They carry blob
// ids and modes rather than content, so they are dropped before hashing.
var headerPrefixes = []string{
	"index ",
	"--- ",
	"+++ ",
	"new file mode ",
	"deleted file mode ",
	"old mode ",
	"new mode ",
	"similarity index ",
	"dissimilarity index ",
	"rename from ",
	"rename to ",
	"copy from ",
	"copy to ",
}

// Normalize strips diff headers and blank lines from a patch. Header lines are
// only recognised between a "diff " line and the first hunk of that file, so
// a removed line that happens to start with "-- " survives.
func Normalize(patch string) string {
	var out strings.Builder

	scanner := bufio.NewScanner(strings.NewReader(patch))
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), len(patch)+1)

	inHeader := false

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "diff "):
			inHeader = true

			continue
		case strings.HasPrefix(line, "@@"):
			inHeader = false
		case inHeader && isHeaderLine(line):
			continue
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		out.WriteString(line)
		out.WriteByte('\n')
	}

	return out.String()
}

func isHeaderLine(line string) bool {
	for _, prefix := range headerPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}

	return false
}

// Sum returns the hex SHA-1 of the normalized patch. A patch that is not valid
// UTF-8 cannot be normalized as text and yields the empty string, so any two
// undecodable patches compare equal.
func Sum(patch []byte) string {
	if !utf8.Valid(patch) {
		return ""
	}

	normalized := Normalize(string(patch))
	sum := sha1.Sum([]byte(normalized)) //nolint:gosec // content identity, not security.

	return hex.EncodeToString(sum[:])
}
