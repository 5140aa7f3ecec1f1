package models

import (
	"strings"
)

// FeatureRecord maps feature names to raw values as they arrived on the wire.
// Values may be numbers, numeric strings, or anything else; the scorer decides
// what is usable. A nil FeatureRecord is not a record at all.
type FeatureRecord map[string]any

// Clone returns a shallow copy of the record.
func (r FeatureRecord) Clone() FeatureRecord {
	if r == nil {
		return nil
	}
	out := make(FeatureRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Normalize applies field normalization to a Detection
// - trims JobID
// - lower-cases and trims score labels
// Feature names are left untouched: they must match the model schema exactly.
func (d *Detection) Normalize() {
	d.JobID = strings.TrimSpace(d.JobID)

	if d.Scores != nil {
		normalized := make(map[string]float64, len(d.Scores))
		for k, v := range d.Scores {
			normalized[strings.ToLower(strings.TrimSpace(k))] = v
		}
		d.Scores = normalized
	}
}
