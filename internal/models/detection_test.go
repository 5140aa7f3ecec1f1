package models_test

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firealert/internal/models"
)

func ptr(f float64) *float64 { return &f }

func validDetection() models.Detection {
	return models.Detection{
		JobID:     "job-1",
		Timestamp: ptr(12.5),
		Features:  models.FeatureRecord{"flame_area": 0.3},
		Scores:    map[string]float64{"fire": 0.8, "smoke": 0.2},
	}
}

func TestDetectionValidate(t *testing.T) {
	manyScores := map[string]float64{}
	for i := 0; i <= models.MaxScoreLabels; i++ {
		manyScores[strings.Repeat("s", i+1)] = 0.1
	}

	tests := []struct {
		name    string
		mutate  func(d *models.Detection)
		wantErr error
	}{
		{"valid", func(d *models.Detection) {}, nil},
		{"no timestamp", func(d *models.Detection) { d.Timestamp = nil }, nil},
		{"empty features", func(d *models.Detection) { d.Features = models.FeatureRecord{} }, nil},
		{"empty job", func(d *models.Detection) { d.JobID = "" }, models.ErrEmptyJobID},
		{"long job", func(d *models.Detection) { d.JobID = strings.Repeat("j", models.MaxJobIDLength+1) }, models.ErrJobIDTooLong},
		{"nil features", func(d *models.Detection) { d.Features = nil }, models.ErrMissingFeatures},
		{"negative timestamp", func(d *models.Detection) { d.Timestamp = ptr(-1) }, models.ErrInvalidTimestamp},
		{"nan timestamp", func(d *models.Detection) { d.Timestamp = ptr(math.NaN()) }, models.ErrInvalidTimestamp},
		{"score above one", func(d *models.Detection) { d.Scores["fire"] = 1.01 }, models.ErrScoreOutOfRange},
		{"nan score", func(d *models.Detection) { d.Scores["smoke"] = math.NaN() }, models.ErrScoreOutOfRange},
		{"too many scores", func(d *models.Detection) { d.Scores = manyScores }, models.ErrTooManyScores},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDetection()
			tt.mutate(&d)
			err := d.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestDetectionNormalize(t *testing.T) {
	d := models.Detection{
		JobID:    "  job-9 \n",
		Features: models.FeatureRecord{" Flame ": 1},
		Scores:   map[string]float64{" FIRE ": 0.5, "Smoke": 0.1},
	}
	d.Normalize()

	assert.Equal(t, "job-9", d.JobID)
	assert.Equal(t, map[string]float64{"fire": 0.5, "smoke": 0.1}, d.Scores)
	assert.Contains(t, d.Features, " Flame ", "feature names are not rewritten")
}

func TestFeatureRecordClone(t *testing.T) {
	var nilRecord models.FeatureRecord
	assert.Nil(t, nilRecord.Clone())

	r := models.FeatureRecord{"a": 1.0}
	c := r.Clone()
	c["a"] = 2.0
	c["b"] = 3.0
	assert.Equal(t, models.FeatureRecord{"a": 1.0}, r)
}

func TestNewEnvelope(t *testing.T) {
	d := validDetection()
	env := models.NewEnvelope("env-1", &d, models.SourceKafka)
	require.NotNil(t, env)
	assert.Equal(t, "env-1", env.ID)
	assert.Equal(t, models.SourceKafka, env.Source)
	assert.False(t, env.ReceivedAt.IsZero())

	env = env.WithBatch("batch-1", 3)
	assert.Equal(t, "batch-1", env.BatchID)
	assert.Equal(t, 3, env.BatchIndex)
}
