package geography

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ontario-health/healthmap/internal/geoname"
)

// Pairing is a feature and the names joined to it.
type Pairing struct {
	Feature      string `json:"feature"`
	Demographics string `json:"demographics,omitempty"`
	Dataset      string `json:"dataset,omitempty"`
	Exact        bool   `json:"exact"`
}

// Ambiguity is a feature containing several candidate names.
type Ambiguity struct {
	Feature    string   `json:"feature"`
	Candidates []string `json:"candidates"`
	Chosen     string   `json:"chosen"`
}

// SharedName is a dataset name contained in more than one feature.
type SharedName struct {
	Name     string   `json:"name"`
	Features []string `json:"features"`
}

// Suggestion proposes a feature for an unmatched name based on a
// punctuation-insensitive comparison.
type Suggestion struct {
	Name    string `json:"name"`
	Feature string `json:"feature"`
}

// Report describes how well three name spaces line up: boundary features,
// demographics rows and one condition's dataset geographies.
type Report struct {
	ID                    uuid.UUID    `json:"id"`
	GeneratedAt           time.Time    `json:"generatedAt"`
	Features              int          `json:"features"`
	Matched               []Pairing    `json:"matched"`
	UnmatchedFeatures     []string     `json:"unmatchedFeatures"`
	UnmatchedDemographics []string     `json:"unmatchedDemographics"`
	UnmatchedDataset      []string     `json:"unmatchedDataset"`
	Ambiguous             []Ambiguity  `json:"ambiguous"`
	Shared                []SharedName `json:"shared"`
	Suggestions           []Suggestion `json:"suggestions"`
}

// Reconcile compares feature names with demographics and dataset names
// using the same matching rules as Join.
func Reconcile(features, demographics, dataset []string) *Report {
	r := &Report{
		ID:                    uuid.New(),
		GeneratedAt:           time.Now().UTC(),
		Features:              len(features),
		Matched:               []Pairing{},
		UnmatchedFeatures:     []string{},
		UnmatchedDemographics: []string{},
		UnmatchedDataset:      []string{},
		Ambiguous:             []Ambiguity{},
		Shared:                []SharedName{},
		Suggestions:           []Suggestion{},
	}
	dataset = distinct(dataset)
	demographics = distinct(demographics)

	usedDemo := map[int]bool{}
	usedData := map[int]bool{}
	for _, f := range features {
		demo := geoname.BestMatch(f, demographics)
		data := geoname.BestMatch(f, dataset)
		if demo.Index < 0 && data.Index < 0 {
			r.UnmatchedFeatures = append(r.UnmatchedFeatures, f)
			continue
		}

		p := Pairing{Feature: f, Exact: true}
		if demo.Index >= 0 {
			usedDemo[demo.Index] = true
			p.Demographics = demographics[demo.Index]
			p.Exact = p.Exact && demo.Exact
			if demo.Ambiguous {
				r.Ambiguous = append(r.Ambiguous, ambiguity(f, demographics, p.Demographics))
			}
		} else {
			p.Exact = false
		}
		if data.Index >= 0 {
			usedData[data.Index] = true
			p.Dataset = dataset[data.Index]
			p.Exact = p.Exact && data.Exact
			if data.Ambiguous {
				r.Ambiguous = append(r.Ambiguous, ambiguity(f, dataset, p.Dataset))
			}
		} else {
			p.Exact = false
		}
		r.Matched = append(r.Matched, p)
	}

	for i, name := range demographics {
		if !usedDemo[i] {
			r.UnmatchedDemographics = append(r.UnmatchedDemographics, name)
		}
	}
	for i, name := range dataset {
		if !usedData[i] {
			r.UnmatchedDataset = append(r.UnmatchedDataset, name)
		}
	}

	r.Shared = append(r.Shared, shared(features, demographics)...)
	r.Shared = append(r.Shared, shared(features, dataset)...)
	r.Suggestions = append(r.Suggestions, suggest(features, r.UnmatchedDemographics)...)
	r.Suggestions = append(r.Suggestions, suggest(features, r.UnmatchedDataset)...)
	return r
}

func distinct(names []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, n := range names {
		key := geoname.Normalize(n)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func ambiguity(feature string, candidates []string, chosen string) Ambiguity {
	a := Ambiguity{Feature: feature, Chosen: chosen}
	for _, c := range candidates {
		if geoname.Contains(feature, c) {
			a.Candidates = append(a.Candidates, c)
		}
	}
	return a
}

func shared(features, names []string) []SharedName {
	var out []SharedName
	for _, n := range names {
		var in []string
		for _, f := range features {
			if geoname.Contains(f, n) {
				in = append(in, f)
			}
		}
		if len(in) > 1 {
			out = append(out, SharedName{Name: n, Features: in})
		}
	}
	return out
}

func suggest(features, unmatched []string) []Suggestion {
	var out []Suggestion
	for _, n := range unmatched {
		key := geoname.Fold(n)
		if key == "" {
			continue
		}
		for _, f := range features {
			if strings.Contains(geoname.Fold(f), key) {
				out = append(out, Suggestion{Name: n, Feature: f})
				break
			}
		}
	}
	return out
}
