package geography

import (
	"github.com/ontario-health/healthmap/internal/disease"
	"github.com/ontario-health/healthmap/internal/geoname"
)

// RegionView is everything known about one boundary feature.
type RegionView struct {
	Name         string                  `json:"name"`
	Demographics *GeographyRecord        `json:"demographics"`
	Geography    string                  `json:"geography,omitempty"`
	Records      []disease.DiseaseRecord `json:"records"`
	// Ambiguous is set when the feature name contains more than one
	// dataset or demographics name and the longest was chosen.
	Ambiguous bool `json:"ambiguous,omitempty"`
}

// HasData reports whether any disease record joined to the feature.
func (v RegionView) HasData() bool {
	return len(v.Records) > 0
}

// Joiner matches boundary features to demographics and disease rows.
// Indexes are built once so JoinAll stays linear in the record count.
type Joiner struct {
	geographies []GeographyRecord
	geoNames    []string
	datasets    []string
	byDataset   map[string][]disease.DiseaseRecord
}

// NewJoiner indexes geographies and records for repeated joins.
func NewJoiner(geographies []GeographyRecord, records []disease.DiseaseRecord) *Joiner {
	j := &Joiner{
		geographies: geographies,
		byDataset:   map[string][]disease.DiseaseRecord{},
	}
	for _, g := range geographies {
		j.geoNames = append(j.geoNames, g.Name)
	}
	for _, r := range records {
		key := geoname.Normalize(r.Geography)
		if key == "" {
			continue
		}
		if _, seen := j.byDataset[key]; !seen {
			j.datasets = append(j.datasets, r.Geography)
		}
		j.byDataset[key] = append(j.byDataset[key], r)
	}
	return j
}

// Join builds the view of one feature. A feature matching nothing is a
// valid result with nil demographics and no records.
func (j *Joiner) Join(feature string) RegionView {
	view := RegionView{Name: feature, Records: []disease.DiseaseRecord{}}

	if m := geoname.BestMatch(feature, j.geoNames); m.Index >= 0 {
		g := j.geographies[m.Index]
		view.Demographics = &g
		view.Ambiguous = m.Ambiguous
	}
	if m := geoname.BestMatch(feature, j.datasets); m.Index >= 0 {
		view.Geography = j.datasets[m.Index]
		view.Records = j.byDataset[geoname.Normalize(view.Geography)]
		view.Ambiguous = view.Ambiguous || m.Ambiguous
	}
	return view
}

// Join is a one-off join of a single feature.
func Join(feature string, geographies []GeographyRecord, records []disease.DiseaseRecord) RegionView {
	return NewJoiner(geographies, records).Join(feature)
}

// JoinAll joins every feature of fc in collection order.
func JoinAll(fc *FeatureCollection, property string, geographies []GeographyRecord, records []disease.DiseaseRecord) []RegionView {
	j := NewJoiner(geographies, records)
	views := make([]RegionView, 0, len(fc.Features))
	for _, f := range fc.Features {
		views = append(views, j.Join(f.Name(property)))
	}
	return views
}
