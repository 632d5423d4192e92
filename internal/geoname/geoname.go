// Package geoname canonicalizes free-text region names so boundary
// features and dataset rows can be compared.
//
// One matching direction is used everywhere: a boundary feature name
// matches a dataset name when the normalized feature name contains the
// normalized dataset name. "City of Toronto Health Unit" therefore
// matches the dataset geography "Toronto", never the reverse.
package geoname

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize trims, lower-cases and collapses internal whitespace.
func Normalize(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// Equal compares two names after normalization.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Contains reports whether the feature name contains the dataset name.
// An empty dataset name never matches.
func Contains(feature, dataset string) bool {
	d := Normalize(dataset)
	if d == "" {
		return false
	}
	return strings.Contains(Normalize(feature), d)
}

// Fold is a looser key than Normalize: accents are stripped and
// punctuation becomes whitespace. It is only used to suggest near misses,
// never to join.
func Fold(name string) string {
	return Normalize(strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, removeAccents(name)))
}

func removeAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Match is the outcome of BestMatch.
type Match struct {
	Index int
	Exact bool
	// Ambiguous is set when more than one distinct candidate was
	// contained in the feature name and none was an exact match.
	Ambiguous bool
}

// BestMatch picks the dataset name matching feature. An exact match wins;
// otherwise the longest contained candidate wins, ties broken by the
// lexically smaller normalized name. Index is -1 when nothing matches.
func BestMatch(feature string, candidates []string) Match {
	f := Normalize(feature)
	type hit struct {
		index int
		norm  string
	}
	var hits []hit
	for i, c := range candidates {
		n := Normalize(c)
		if n == "" {
			continue
		}
		if n == f {
			return Match{Index: i, Exact: true}
		}
		if strings.Contains(f, n) {
			hits = append(hits, hit{index: i, norm: n})
		}
	}
	if len(hits) == 0 {
		return Match{Index: -1}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if len(hits[i].norm) != len(hits[j].norm) {
			return len(hits[i].norm) > len(hits[j].norm)
		}
		return hits[i].norm < hits[j].norm
	})

	distinct := map[string]struct{}{}
	for _, h := range hits {
		distinct[h.norm] = struct{}{}
	}
	return Match{Index: hits[0].index, Ambiguous: len(distinct) > 1}
}
