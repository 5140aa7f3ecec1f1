package scoring

import (
	"math"
	"strings"
)

// ImputeMode selects where fallback values for unusable inputs come from.
type ImputeMode string

const (
	// ImputeBatch fills missing values with the column median of the batch
	// being scored. Scoring a record alone or inside a batch can differ.
	ImputeBatch ImputeMode = "batch"

	// ImputeFixed fills missing values with the model's load-time statistics.
	ImputeFixed ImputeMode = "fixed"
)

// ParseImputeMode parses a configuration value. Empty means ImputeBatch.
func ParseImputeMode(s string) (ImputeMode, bool) {
	switch ImputeMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ImputeBatch:
		return ImputeBatch, true
	case ImputeFixed:
		return ImputeFixed, true
	default:
		return "", false
	}
}

// ModelSpec carries the raw parameters of a fitted logistic classifier.
type ModelSpec struct {
	FeatureOrder []string
	ImputeValues map[string]float64

	// Center and Spread standardize raw values. Both empty means identity.
	Center []float64
	Spread []float64

	Coefficients []float64
	Intercept    float64
	Threshold    float64
	ImputeMode   ImputeMode
}

// Model is an immutable decision model. It is safe for concurrent use.
type Model struct {
	features  []string
	impute    []float64
	center    []float64
	spread    []float64
	coef      []float64
	intercept float64
	threshold float64
	mode      ImputeMode
}

// NewModel validates spec and returns a model holding private copies of its
// parameters.
func NewModel(spec ModelSpec) (*Model, error) {
	n := len(spec.FeatureOrder)
	if n == 0 {
		return nil, invalidModel("feature order is empty")
	}

	seen := make(map[string]struct{}, n)
	for i, name := range spec.FeatureOrder {
		if name == "" {
			return nil, invalidModel("feature %d has an empty name", i)
		}
		if _, dup := seen[name]; dup {
			return nil, invalidModel("duplicate feature %q", name)
		}
		seen[name] = struct{}{}
	}

	if len(spec.Coefficients) != n {
		return nil, invalidModel("%d coefficients for %d features", len(spec.Coefficients), n)
	}

	center, spread := spec.Center, spec.Spread
	if len(center) == 0 && len(spread) == 0 {
		center = make([]float64, n)
		spread = make([]float64, n)
		for i := range spread {
			spread[i] = 1
		}
	}
	if len(center) != n || len(spread) != n {
		return nil, invalidModel("scale has %d centers and %d spreads for %d features", len(center), len(spread), n)
	}

	if !finite(spec.Intercept) {
		return nil, invalidModel("intercept is not finite")
	}
	if !finite(spec.Threshold) || spec.Threshold < 0 || spec.Threshold > 1 {
		return nil, invalidModel("threshold %v outside [0, 1]", spec.Threshold)
	}

	mode := spec.ImputeMode
	if mode == "" {
		mode = ImputeBatch
	}
	if mode != ImputeBatch && mode != ImputeFixed {
		return nil, invalidModel("unknown impute mode %q", mode)
	}

	m := &Model{
		features:  append([]string(nil), spec.FeatureOrder...),
		impute:    make([]float64, n),
		center:    make([]float64, n),
		spread:    make([]float64, n),
		coef:      make([]float64, n),
		intercept: spec.Intercept,
		threshold: spec.Threshold,
		mode:      mode,
	}

	for i, name := range m.features {
		if !finite(spec.Coefficients[i]) || !finite(center[i]) || !finite(spread[i]) {
			return nil, invalidModel("non-finite parameter for feature %q", name)
		}
		m.coef[i] = spec.Coefficients[i]
		m.center[i] = center[i]
		// constant columns are left unscaled
		if spread[i] == 0 {
			m.spread[i] = 1
		} else {
			m.spread[i] = spread[i]
		}

		if v, ok := spec.ImputeValues[name]; ok {
			if !finite(v) {
				return nil, invalidModel("impute value for %q is not finite", name)
			}
			m.impute[i] = v
		}
	}

	return m, nil
}

// Features returns the ordered feature names the model expects.
func (m *Model) Features() []string {
	return append([]string(nil), m.features...)
}

// Threshold returns the alert threshold.
func (m *Model) Threshold() float64 { return m.threshold }

// ImputeMode returns the active imputation mode.
func (m *Model) ImputeMode() ImputeMode { return m.mode }

// Len returns the number of features.
func (m *Model) Len() int { return len(m.features) }

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
