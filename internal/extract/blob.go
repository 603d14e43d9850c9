// Package extract locates the embedded data blob inside rendered page
// content and digs normalized posts out of it.
package extract

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode"

	"github.com/feedwatch/feedwatch/internal/feed"
)

// ErrBlobNotFound indicates no script yielded a parseable data object.
// Callers treat it as "no posts discoverable this cycle", not a failure.
var ErrBlobNotFound = errors.New("data blob not found")

// FindBlob returns the embedded JSON data object for a page.
//
// A pre-materialized global from the render step wins outright. Otherwise
// scripts are scanned in document order for the marker token; the object
// literal following the assignment is isolated and parsed. A script where
// the marker appears inside a comment or an unrelated string simply fails
// to parse and scanning continues with later scripts.
func FindBlob(page feed.PageContent, marker string) (any, error) {
	if page.Global != nil {
		return page.Global, nil
	}
	for _, script := range page.Scripts {
		idx := strings.Index(script, marker)
		if idx < 0 {
			continue
		}
		literal, ok := isolateObject(script[idx+len(marker):])
		if !ok {
			continue
		}
		var blob any
		if err := json.Unmarshal([]byte(literal), &blob); err != nil {
			continue
		}
		return blob, nil
	}
	return nil, ErrBlobNotFound
}

// isolateObject extracts the balanced JSON object literal that follows the
// first assignment operator, stopping before any trailing statement
// terminator. Only whitespace may sit between '=' and the opening brace.
func isolateObject(s string) (string, bool) {
	eq := strings.IndexByte(s, '=')
	if eq < 0 {
		return "", false
	}
	rest := s[eq+1:]
	start := strings.IndexByte(rest, '{')
	if start < 0 {
		return "", false
	}
	for _, r := range rest[:start] {
		if !unicode.IsSpace(r) {
			return "", false
		}
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(rest); i++ {
		c := rest[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return rest[start : i+1], true
			}
		}
	}
	return "", false
}
