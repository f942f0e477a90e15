package scraper

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// turkishFold maps the Turkish letters that do not decompose into a
// base letter plus combining mark, so the NFD fold below cannot reach them.
var turkishFold = strings.NewReplacer(
	"ı", "i", "I", "i", "İ", "i",
	"ğ", "g", "Ğ", "g",
	"ş", "s", "Ş", "s",
)

// foldTransform strips combining marks left after NFD decomposition,
// which handles ü, ö, ç, â, î and the rest of the accented range.
var foldTransform = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespace   = regexp.MustCompile(`\s+`)
	multiHyphen  = regexp.MustCompile(`-+`)
	snakeInvalid = regexp.MustCompile(`[^a-z0-9_]`)
)

// FoldDiacritics converts accented and Turkish-specific letters to
// their ASCII equivalents.
func FoldDiacritics(s string) string {
	s = turkishFold.Replace(s)
	folded, _, err := transform.String(foldTransform, s)
	if err != nil {
		return s
	}
	return folded
}

// Slugify lowercases, folds diacritics and reduces the text to a
// hyphen-separated URL segment. Deterministic for identical input.
func Slugify(s string) string {
	s = strings.ToLower(FoldDiacritics(s))
	s = nonSlugChars.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(strings.TrimSpace(s), "-")
	return multiHyphen.ReplaceAllString(s, "-")
}

// SnakeKey normalizes a free-text detail label into a stable map key:
// lowercase, diacritics folded, whitespace to underscores.
func SnakeKey(s string) string {
	s = strings.ToLower(FoldDiacritics(strings.TrimSpace(s)))
	s = whitespace.ReplaceAllString(s, "_")
	return snakeInvalid.ReplaceAllString(s, "")
}

// CleanText trims and collapses internal whitespace runs.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
