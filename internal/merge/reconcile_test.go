package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trackless/cred1/internal/model"
)

func TestMapLabel(t *testing.T) {
	tests := []struct {
		source model.Source
		label  string
		want   model.Category
	}{
		{model.SourceOpenSources, "fake news", model.CategoryFake},
		{model.SourceOpenSources, "Fake", model.CategoryFake},
		{model.SourceOpenSources, "fake ", model.CategoryFake},
		{model.SourceOpenSources, "unrealiable", model.CategoryUnreliable},
		{model.SourceOpenSources, "satirical", model.CategorySatire},
		{model.SourceOpenSources, "clickbait", model.CategoryUnreliable},
		{model.SourceOpenSources, "bias", model.CategoryMixed},
		{model.SourceOpenSources, "blog", model.CategoryOther},
		{model.SourceOpenSources, "never seen before", model.CategoryOther},
		{model.SourceIffy, "VL", model.CategoryFake},
		{model.SourceIffy, "L", model.CategoryUnreliable},
		{model.SourceIffy, "M", model.CategoryMixed},
		{model.SourceIffy, "MH", model.CategoryMostlyReliable},
		{model.SourceIffy, "H", model.CategoryReliable},
		{model.SourceIffy, "VH", model.CategoryReliable},
		{model.SourceIffy, "??", model.CategoryOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapLabel(tt.source, tt.label), "%s/%s", tt.source, tt.label)
	}
}

func TestReconcileLeastCredibleWins(t *testing.T) {
	res := Reconcile([]Observation{
		{Source: model.SourceIffy, Label: "M"},
		{Source: model.SourceOpenSources, Label: "fake news"},
	})

	assert.Equal(t, model.CategoryFake, res.Category)
	assert.Equal(t, []model.Category{model.CategoryFake, model.CategoryMixed}, res.CategoriesAll)
	assert.Equal(t, []model.Source{model.SourceOpenSources, model.SourceIffy}, res.Sources)
}

func TestReconcileRealCategoryBeatsOther(t *testing.T) {
	res := Reconcile([]Observation{
		{Source: model.SourceOpenSources, Label: "blog"},
		{Source: model.SourceIffy, Label: "H"},
	})

	assert.Equal(t, model.CategoryReliable, res.Category)
	// "other" sorts last in the observed list
	assert.Equal(t, []model.Category{model.CategoryReliable, model.CategoryOther}, res.CategoriesAll)
}

func TestReconcileAllOther(t *testing.T) {
	res := Reconcile([]Observation{
		{Source: model.SourceOpenSources, Label: "blog"},
	})
	assert.Equal(t, model.CategoryOther, res.Category)
}

func TestReconcileSingleObservationIsIdentity(t *testing.T) {
	res := Reconcile([]Observation{
		{Source: model.SourceIffy, Label: "VL"},
	})
	assert.Equal(t, model.CategoryFake, res.Category)
	assert.Equal(t, []model.Category{model.CategoryFake}, res.CategoriesAll)
	assert.Equal(t, []model.Source{model.SourceIffy}, res.Sources)
}

func TestReconcileDuplicateLabelsCollapse(t *testing.T) {
	res := Reconcile([]Observation{
		{Source: model.SourceOpenSources, Label: "fake news"},
		{Source: model.SourceOpenSources, Label: "fake"},
		{Source: model.SourceOpenSources, Label: "conspiracy"},
	})
	assert.Equal(t, model.CategoryFake, res.Category)
	assert.Equal(t, []model.Category{model.CategoryFake, model.CategoryConspiracy}, res.CategoriesAll)
	assert.Equal(t, []model.Source{model.SourceOpenSources}, res.Sources)
}

func TestReconcileEmpty(t *testing.T) {
	res := Reconcile(nil)
	assert.Equal(t, model.CategoryOther, res.Category)
	assert.Empty(t, res.CategoriesAll)
	assert.Empty(t, res.Sources)
}
