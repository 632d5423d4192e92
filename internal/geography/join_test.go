package geography

import (
	"testing"

	"github.com/ontario-health/healthmap/internal/disease"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinFeatureContainsDatasetName(t *testing.T) {
	geos := ontarioDemographics().records
	records := []disease.DiseaseRecord{
		diseaseRec("  middlesex-london ", 2020, 61.5),
		diseaseRec("Middlesex-London", 2021, 63.0),
		diseaseRec("Ottawa", 2021, 40.1),
	}

	view := Join("Middlesex-London Health Unit", geos, records)

	require.NotNil(t, view.Demographics)
	assert.Equal(t, "Middlesex-London", view.Demographics.Name)
	assert.Len(t, view.Records, 2)
	assert.True(t, view.HasData())
	assert.False(t, view.Ambiguous)
}

func TestJoinNoMatchIsEmpty(t *testing.T) {
	view := Join("Porcupine Health Unit", ontarioDemographics().records, []disease.DiseaseRecord{diseaseRec("Ottawa", 2021, 1)})

	assert.Equal(t, "Porcupine Health Unit", view.Name)
	assert.Nil(t, view.Demographics)
	assert.NotNil(t, view.Records)
	assert.Empty(t, view.Records)
	assert.False(t, view.HasData())
}

func TestJoinPrefersLongestContainedName(t *testing.T) {
	geos := []GeographyRecord{{Name: "London"}, {Name: "Middlesex-London"}}
	records := []disease.DiseaseRecord{diseaseRec("London", 2020, 1), diseaseRec("Middlesex-London", 2020, 2)}

	view := Join("Middlesex-London Health Unit", geos, records)

	assert.Equal(t, "Middlesex-London", view.Demographics.Name)
	assert.Equal(t, "Middlesex-London", view.Geography)
	require.Len(t, view.Records, 1)
	assert.Equal(t, 2.0, *view.Records[0].Rate)
	assert.True(t, view.Ambiguous)
}

func TestJoinExactMatchIsNotAmbiguous(t *testing.T) {
	geos := []GeographyRecord{{Name: "Toronto"}, {Name: "City of Toronto"}}
	view := Join("City of Toronto", geos, nil)

	assert.Equal(t, "City of Toronto", view.Demographics.Name)
	assert.False(t, view.Ambiguous)
}

func TestJoinAll(t *testing.T) {
	records := []disease.DiseaseRecord{diseaseRec("Toronto", 2021, 50), diseaseRec("Ottawa", 2021, 40)}
	views := JoinAll(ontario(), DefaultNameProperty, ontarioDemographics().records, records)

	require.Len(t, views, 3)
	assert.Equal(t, "City of Toronto Health Unit", views[0].Name)
	assert.Len(t, views[0].Records, 1)
	assert.Len(t, views[1].Records, 1)
	assert.Empty(t, views[2].Records)
	assert.NotNil(t, views[2].Demographics)
}
