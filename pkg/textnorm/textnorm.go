// Package textnorm normalizes clinical free text and compares short medical
// terms (drug names, reaction terms) for approximate equality.
package textnorm

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Dosage unit shorthand and its expansion.
var unitAbbreviations = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`\bmcg\b`), "micrograms"},
	{regexp.MustCompile(`\bmg\b`), "milligrams"},
	{regexp.MustCompile(`\bml\b`), "milliliters"},
	{regexp.MustCompile(`\bg\b`), "grams"},
	{regexp.MustCompile(`\btabs\b`), "tablets"},
	{regexp.MustCompile(`\btab\b`), "tablet"},
	{regexp.MustCompile(`\bcaps\b`), "capsules"},
	{regexp.MustCompile(`\bcap\b`), "capsule"},
}

// dosePattern splits a number glued to its unit ("500mg").
var dosePattern = regexp.MustCompile(`(\d)(mcg|mg|ml|g|tabs|tab|caps|cap)\b`)

// Preprocess prepares free text for entity extraction: NFKC normalization,
// lowercasing, whitespace collapsing and dosage unit expansion.
func Preprocess(text string) string {
	text = strings.ToLower(norm.NFKC.String(text))
	text = strings.Join(strings.Fields(text), " ")
	text = dosePattern.ReplaceAllString(text, "$1 $2")
	for _, abbr := range unitAbbreviations {
		text = abbr.pattern.ReplaceAllString(text, abbr.replacement)
	}
	return text
}

// Canonical returns the canonical form of a term: NFKC normalized, trimmed,
// whitespace collapsed and lowercased. Two terms name the same entity when
// their canonical forms are equal.
func Canonical(term string) string {
	term = norm.NFKC.String(term)
	return strings.ToLower(strings.Join(strings.Fields(term), " "))
}

// UniqueSorted canonicalizes terms, drops empty and duplicate entries and
// returns the rest in ascending order.
func UniqueSorted(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		canonical := Canonical(term)
		if canonical == "" {
			continue
		}
		if _, ok := seen[canonical]; ok {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	sort.Strings(out)
	return out
}
