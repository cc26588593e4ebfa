package selection

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// connectors are the words meaning "with" / "and" that separate keywords.
var connectors = map[string]bool{
	"con":  true,
	"y":    true,
	"e":    true,
	"with": true,
	"and":  true,
	"&":    true,
	"+":    true,
}

// minTokenLength excludes short tokens ("de", "la", "of") from matching.
const minTokenLength = 3

var tokenSplit = regexp.MustCompile(`[\s,;&+]+`)

// Normalize case-folds s and strips diacritics, so "Fotó" and "FOTO"
// compare equal.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return cases.Fold().String(out)
}

// NormalizeFilename normalizes a file name without its extension.
func NormalizeFilename(name string) string {
	base := filepath.Base(name)
	return Normalize(strings.TrimSuffix(base, filepath.Ext(base)))
}

// Tokenize normalizes a description and splits it on commas, connector
// words and whitespace, keeping tokens longer than two characters.
func Tokenize(description string) []string {
	var tokens []string
	for _, tok := range tokenSplit.Split(Normalize(description), -1) {
		tok = strings.Trim(tok, ".:!?¡¿\"'()[]")
		if connectors[tok] || len([]rune(tok)) < minTokenLength {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}
