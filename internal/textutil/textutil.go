// Package textutil provides the text normalization and similarity
// primitives shared by venue resolution, classification and duplicate
// matching. French listings disagree on accents, articles and
// punctuation; everything is compared in a normalized space.
package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// French articles stripped from the front of venue names when building
// lookup variants ("La Criée" and "Criée" must both resolve).
var frenchArticles = map[string]bool{
	"le": true, "la": true, "les": true, "l": true,
	"un": true, "une": true, "des": true, "du": true, "de": true, "d": true,
}

var (
	punctRe      = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)

	accentStripper = transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
)

// StripAccents removes combining marks: "Criée" -> "Criee".
func StripAccents(s string) string {
	// NFD does not decompose ligatures, replace them up front.
	s = strings.ReplaceAll(s, "œ", "oe")
	s = strings.ReplaceAll(s, "æ", "ae")
	s = strings.ReplaceAll(s, "Œ", "OE")
	s = strings.ReplaceAll(s, "Æ", "AE")

	out, _, err := transform.String(accentStripper, s)
	if err != nil {
		return s
	}
	return out
}

// Normalize lowers, strips accents, replaces punctuation with spaces
// and collapses whitespace. The result is the comparison form used for
// all substring and similarity matching.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = StripAccents(s)
	s = strings.NewReplacer("-", " ", "’", " ", "‘", " ", "'", " ", "`", " ").Replace(s)
	s = punctRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// StripArticles drops leading French articles from normalized text.
func StripArticles(s string) string {
	words := strings.Fields(s)
	for len(words) > 0 && frenchArticles[words[0]] {
		words = words[1:]
	}
	return strings.Join(words, " ")
}

// Slugify converts text to a URL-friendly ASCII slug.
func Slugify(s string) string {
	return strings.ReplaceAll(Normalize(s), " ", "-")
}

// SlugToWords converts a slug back to space-separated words:
// "le-cepac-silo" -> "le cepac silo".
func SlugToWords(slug string) string {
	return strings.ReplaceAll(slug, "-", " ")
}

// Similarity returns a normalized edit-distance ratio in [0,1] over the
// normalized forms of a and b. 1.0 means identical after normalization.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return 1.0
	}
	if na == "" || nb == "" {
		return 0.0
	}
	dist := levenshtein.ComputeDistance(na, nb)
	longest := len([]rune(na))
	if l := len([]rune(nb)); l > longest {
		longest = l
	}
	return 1.0 - float64(dist)/float64(longest)
}
