package storage

import (
	"context"
	"errors"

	"firealert/internal/scoring"
)

// Artifact errors
var (
	ErrArtifactNotFound = errors.New("model artifact not found")
	ErrArtifactCorrupt  = errors.New("model artifact is corrupt")
)

// ModelStore loads the fitted classifier parameters.
type ModelStore interface {
	Load(ctx context.Context) (*Artifact, error)
}

// Artifact is the serialized form of a fitted logistic classifier and its
// scaler. The decision threshold is deployment configuration and lives
// outside the artifact.
type Artifact struct {
	FeatureOrder []string           `json:"feature_order" yaml:"feature_order"`
	ImputeValues map[string]float64 `json:"impute_values,omitempty" yaml:"impute_values,omitempty"`
	Scale        Scale              `json:"scale" yaml:"scale"`
	Coefficients []float64          `json:"coefficients" yaml:"coefficients"`
	Intercept    float64            `json:"intercept" yaml:"intercept"`
}

// Scale holds per-feature standardization parameters.
type Scale struct {
	Center []float64 `json:"center,omitempty" yaml:"center,omitempty"`
	Spread []float64 `json:"spread,omitempty" yaml:"spread,omitempty"`
}

// Model builds an immutable scoring model from the artifact.
func (a *Artifact) Model(threshold float64, mode scoring.ImputeMode) (*scoring.Model, error) {
	return scoring.NewModel(scoring.ModelSpec{
		FeatureOrder: a.FeatureOrder,
		ImputeValues: a.ImputeValues,
		Center:       a.Scale.Center,
		Spread:       a.Scale.Spread,
		Coefficients: a.Coefficients,
		Intercept:    a.Intercept,
		Threshold:    threshold,
		ImputeMode:   mode,
	})
}
