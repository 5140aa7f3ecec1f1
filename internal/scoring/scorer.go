package scoring

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"firealert/internal/models"
)

// Decision is the classifier's verdict for one record.
type Decision struct {
	Probability float64
	Alert       bool
}

// Scorer evaluates feature records against a Model.
type Scorer struct {
	model *Model
}

// NewScorer returns a Scorer backed by m.
func NewScorer(m *Model) *Scorer {
	return &Scorer{model: m}
}

// Model returns the underlying model.
func (s *Scorer) Model() *Model { return s.model }

// ScoreOne scores a single record as a batch of one.
func (s *Scorer) ScoreOne(record models.FeatureRecord) (Decision, error) {
	out, err := s.Score([]models.FeatureRecord{record})
	if err != nil {
		return Decision{}, err
	}
	return out[0], nil
}

// Score returns one Decision per record, in input order.
//
// Features absent from a record count as 0.0. Present values that cannot be
// read as numbers are missing and get imputed; in ImputeBatch mode the fill
// value is the median of that column over the usable values in records, so
// the result for a record can depend on the rest of the batch.
func (s *Scorer) Score(records []models.FeatureRecord) ([]Decision, error) {
	if len(records) == 0 {
		return []Decision{}, nil
	}

	m := s.model
	n := len(m.features)

	rows := make([][]float64, len(records))
	missing := make([][]bool, len(records))
	for i, rec := range records {
		if rec == nil {
			return nil, &InvalidInputError{Index: i, Reason: "record is not an object"}
		}

		row := make([]float64, n)
		miss := make([]bool, n)
		for j, name := range m.features {
			raw, ok := rec[name]
			if !ok {
				continue
			}
			v, ok := Coerce(raw)
			if !ok {
				miss[j] = true
				continue
			}
			row[j] = v
		}
		rows[i] = row
		missing[i] = miss
	}

	fill := s.fillValues(rows, missing)

	out := make([]Decision, len(records))
	for i, row := range rows {
		var dot float64
		for j := range row {
			x := row[j]
			if missing[i][j] {
				x = fill[j]
			}
			dot += (x - m.center[j]) / m.spread[j] * m.coef[j]
		}
		p := sigmoid(dot + m.intercept)
		out[i] = Decision{Probability: p, Alert: p >= m.threshold}
	}

	return out, nil
}

// fillValues returns the per-column replacement for missing values.
func (s *Scorer) fillValues(rows [][]float64, missing [][]bool) []float64 {
	m := s.model
	fill := make([]float64, len(m.features))
	copy(fill, m.impute)

	if m.mode == ImputeFixed {
		return fill
	}

	col := make([]float64, 0, len(rows))
	for j := range m.features {
		col = col[:0]
		anyMissing := false
		for i := range rows {
			if missing[i][j] {
				anyMissing = true
				continue
			}
			col = append(col, rows[i][j])
		}
		// a column with no usable value keeps the load-time statistic
		if anyMissing && len(col) > 0 {
			fill[j] = median(col)
		}
	}
	return fill
}

// Coerce converts a raw wire value into a finite float64. It reports false
// for values that must be treated as missing.
func Coerce(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint8:
		f = float64(x)
	case uint16:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case bool:
		if x {
			f = 1
		}
	case json.Number:
		parsed, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if !finite(f) {
		return 0, false
	}
	return f, true
}

// median sorts vals in place.
func median(vals []float64) float64 {
	sort.Float64s(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid]
	}
	return (vals[mid-1] + vals[mid]) / 2
}

func sigmoid(logit float64) float64 {
	return 1.0 / (1.0 + math.Exp(-logit))
}
