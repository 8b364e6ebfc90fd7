// Package hash produces stable content fingerprints for duplicate detection.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agenthands/corpus/internal/apperr"
)

// Volatile metadata fields that must not influence the fingerprint. Two
// fetches of the same document differ in these.
var volatileFields = map[string]bool{
	"fetched_at":   true,
	"fetch_time":   true,
	"retrieved_at": true,
	"updated_at":   true,
	"processed_at": true,
}

// Fingerprint hashes the canonical form of a document's text plus its
// structural metadata. The result is independent of whitespace and encoding
// variance and of volatile fetch bookkeeping.
func Fingerprint(text string, metadata map[string]any) (string, error) {
	canonical, err := Canonicalize(text)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(canonical))

	// Fold the structural metadata in a stable key order.
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		if volatileFields[k] || strings.HasPrefix(k, "fetch_") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "\x00%s=%v", k, metadata[k])
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Canonicalize lowercases the text and collapses all whitespace runs to a
// single space. Invalid UTF-8 is a MalformedContent failure, not something to
// paper over.
func Canonicalize(text string) (string, error) {
	if !utf8.ValidString(text) {
		return "", fmt.Errorf("%w: invalid UTF-8", apperr.ErrMalformedContent)
	}
	var b strings.Builder
	b.Grow(len(text))
	space := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String(), nil
}
