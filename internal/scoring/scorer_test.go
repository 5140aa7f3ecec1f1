package scoring

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firealert/internal/models"
)

func identityModel(t *testing.T, features []string, coef []float64, threshold float64) *Model {
	t.Helper()
	m, err := NewModel(ModelSpec{
		FeatureOrder: features,
		Coefficients: coef,
		Threshold:    threshold,
	})
	require.NoError(t, err)
	return m
}

func TestScoreEndToEndExample(t *testing.T) {
	s := NewScorer(identityModel(t, []string{"a", "b"}, []float64{1, 1}, 0.5))

	d, err := s.ScoreOne(models.FeatureRecord{"a": 0, "b": 0})
	require.NoError(t, err)

	assert.Equal(t, 0.5, d.Probability)
	assert.True(t, d.Alert, "boundary is inclusive")
}

func TestScoreMissingAllFeaturesDefaultsToZero(t *testing.T) {
	m, err := NewModel(ModelSpec{
		FeatureOrder: []string{"a", "b", "c"},
		ImputeValues: map[string]float64{"a": 7, "b": 7, "c": 7},
		Coefficients: []float64{2, -1, 3},
		Intercept:    0.25,
		Threshold:    0.9,
		ImputeMode:   ImputeFixed,
	})
	require.NoError(t, err)

	d, err := NewScorer(m).ScoreOne(models.FeatureRecord{"unrelated": "x"})
	require.NoError(t, err)

	// absent features are 0.0, not the impute value
	assert.InDelta(t, sigmoid(0.25), d.Probability, 1e-15)
	assert.False(t, d.Alert)
}

func TestScorePreservesOrder(t *testing.T) {
	s := NewScorer(identityModel(t, []string{"x"}, []float64{1}, 0.5))

	records := []models.FeatureRecord{
		{"x": -3}, {"x": 2}, {"x": 0}, {"x": 5}, {"x": -1},
	}
	out, err := s.Score(records)
	require.NoError(t, err)
	require.Len(t, out, len(records))

	for i, rec := range records {
		want := sigmoid(float64(rec["x"].(int)))
		assert.InDelta(t, want, out[i].Probability, 1e-15, "index %d", i)
	}
}

func TestScoreEmptyBatch(t *testing.T) {
	s := NewScorer(identityModel(t, []string{"x"}, []float64{1}, 0.5))

	out, err := s.Score(nil)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestScoreThresholdBoundary(t *testing.T) {
	threshold := sigmoid(0.1)
	s := NewScorer(identityModel(t, []string{"x"}, []float64{1}, threshold))

	at, err := s.ScoreOne(models.FeatureRecord{"x": 0.1})
	require.NoError(t, err)
	assert.Equal(t, threshold, at.Probability)
	assert.True(t, at.Alert)

	below, err := s.ScoreOne(models.FeatureRecord{"x": 0.1 - 1e-9})
	require.NoError(t, err)
	assert.Less(t, below.Probability, threshold)
	assert.False(t, below.Alert)
}

func TestScoreDeterministic(t *testing.T) {
	m, err := NewModel(ModelSpec{
		FeatureOrder: []string{"a", "b"},
		Center:       []float64{0.3, 10},
		Spread:       []float64{0.7, 4},
		Coefficients: []float64{1.3, -0.4},
		Intercept:    -0.2,
		Threshold:    0.5,
	})
	require.NoError(t, err)
	s := NewScorer(m)

	batch := []models.FeatureRecord{
		{"a": 0.12, "b": 9.5},
		{"a": "0.9", "b": json.Number("13.25")},
		{"a": 1.7, "b": 2},
	}

	first, err := s.Score(batch)
	require.NoError(t, err)
	second, err := s.Score(batch)
	require.NoError(t, err)

	for i := range first {
		assert.Equal(t, math.Float64bits(first[i].Probability), math.Float64bits(second[i].Probability))
	}
}

func TestScoreStandardizes(t *testing.T) {
	m, err := NewModel(ModelSpec{
		FeatureOrder: []string{"a"},
		Center:       []float64{1},
		Spread:       []float64{2},
		Coefficients: []float64{1},
		Threshold:    0.5,
	})
	require.NoError(t, err)

	d, err := NewScorer(m).ScoreOne(models.FeatureRecord{"a": 5.0})
	require.NoError(t, err)
	assert.InDelta(t, sigmoid(2), d.Probability, 1e-15)
}

func TestScoreZeroSpreadLeavesColumnUnscaled(t *testing.T) {
	m, err := NewModel(ModelSpec{
		FeatureOrder: []string{"a"},
		Center:       []float64{1},
		Spread:       []float64{0},
		Coefficients: []float64{1},
		Threshold:    0.5,
	})
	require.NoError(t, err)

	d, err := NewScorer(m).ScoreOne(models.FeatureRecord{"a": 3.0})
	require.NoError(t, err)
	assert.InDelta(t, sigmoid(2), d.Probability, 1e-15)
}

func TestScoreBatchMedianImputation(t *testing.T) {
	s := NewScorer(identityModel(t, []string{"a"}, []float64{1}, 0.5))

	alone, err := s.ScoreOne(models.FeatureRecord{"a": "n/a"})
	require.NoError(t, err)
	assert.Equal(t, 0.5, alone.Probability, "no usable values falls back to the load-time statistic")

	batch, err := s.Score([]models.FeatureRecord{
		{"a": "n/a"},
		{"a": 4.0},
		{"a": 2.0},
	})
	require.NoError(t, err)
	assert.InDelta(t, sigmoid(3), batch[0].Probability, 1e-15, "median of 4 and 2")
	assert.InDelta(t, sigmoid(4), batch[1].Probability, 1e-15)
	assert.InDelta(t, sigmoid(2), batch[2].Probability, 1e-15)
}

func TestScoreMedianCountsDefaultFilledValues(t *testing.T) {
	s := NewScorer(identityModel(t, []string{"a"}, []float64{1}, 0.5))

	out, err := s.Score([]models.FeatureRecord{
		{"a": nil},
		{},
		{"a": 6.0},
		{"a": 1.0},
	})
	require.NoError(t, err)
	// usable column values: 0 (absent), 6, 1 -> median 1
	assert.InDelta(t, sigmoid(1), out[0].Probability, 1e-15)
	assert.Equal(t, 0.5, out[1].Probability)
}

func TestScoreFixedImputation(t *testing.T) {
	m, err := NewModel(ModelSpec{
		FeatureOrder: []string{"a"},
		ImputeValues: map[string]float64{"a": 1.5},
		Coefficients: []float64{1},
		Threshold:    0.5,
		ImputeMode:   ImputeFixed,
	})
	require.NoError(t, err)
	s := NewScorer(m)

	out, err := s.Score([]models.FeatureRecord{
		{"a": "bad"},
		{"a": 10.0},
	})
	require.NoError(t, err)
	assert.InDelta(t, sigmoid(1.5), out[0].Probability, 1e-15)
}

func TestScoreRejectsNonObjectRecord(t *testing.T) {
	s := NewScorer(identityModel(t, []string{"a"}, []float64{1}, 0.5))

	_, err := s.Score([]models.FeatureRecord{{"a": 1}, nil})
	require.Error(t, err)

	var inputErr *InvalidInputError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, 1, inputErr.Index)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
		ok   bool
	}{
		{"float", 1.25, 1.25, true},
		{"int", 3, 3, true},
		{"json number", json.Number("-2.5"), -2.5, true},
		{"numeric string", " 42 ", 42, true},
		{"exponent string", "1e3", 1000, true},
		{"true", true, 1, true},
		{"false", false, 0, true},
		{"nil", nil, 0, false},
		{"empty string", "", 0, false},
		{"word", "smoke", 0, false},
		{"nan string", "NaN", 0, false},
		{"inf", math.Inf(1), 0, false},
		{"object", map[string]any{"v": 1}, 0, false},
		{"array", []any{1.0}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Coerce(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
