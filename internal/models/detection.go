package models

import (
	"errors"
	"math"
)

// Score labels produced by the video analyzer.
const (
	ScoreFire   = "fire"
	ScoreSmoke  = "smoke"
	ScoreHazard = "hazard"
)

// ScoreLabels lists the labels rendered in emergency notifications, in order.
var ScoreLabels = []string{ScoreFire, ScoreSmoke, ScoreHazard}

// Detection is one analyzed moment of a video job: the feature record handed
// to the classifier plus the analyzer's own sub-scores.
type Detection struct {
	// Job identifier of the analysis run
	JobID string `json:"job_id"`

	// Offset into the video in seconds, if known
	Timestamp *float64 `json:"timestamp,omitempty"`

	// Raw feature record scored by the classifier
	Features FeatureRecord `json:"features"`

	// Optional analyzer sub-scores keyed by label (fire, smoke, hazard)
	Scores map[string]float64 `json:"scores,omitempty"`
}

// Validation errors
var (
	ErrEmptyJobID       = errors.New("job ID cannot be empty")
	ErrJobIDTooLong     = errors.New("job ID exceeds maximum length")
	ErrMissingFeatures  = errors.New("features must be an object")
	ErrInvalidTimestamp = errors.New("timestamp must be a finite, non-negative number")
	ErrScoreOutOfRange  = errors.New("scores must be within [0, 1]")
	ErrTooManyScores    = errors.New("too many score labels")
	ErrTooManyFeatures  = errors.New("too many features")
)

const (
	MaxJobIDLength = 256
	MaxScoreLabels = 16
	MaxFeatureKeys = 4096
)

// Validate checks that the detection carries what the alerting workflow needs.
func (d *Detection) Validate() error {
	if d.JobID == "" {
		return ErrEmptyJobID
	}

	if len(d.JobID) > MaxJobIDLength {
		return ErrJobIDTooLong
	}

	if d.Features == nil {
		return ErrMissingFeatures
	}

	if len(d.Features) > MaxFeatureKeys {
		return ErrTooManyFeatures
	}

	if d.Timestamp != nil {
		ts := *d.Timestamp
		if math.IsNaN(ts) || math.IsInf(ts, 0) || ts < 0 {
			return ErrInvalidTimestamp
		}
	}

	if len(d.Scores) > MaxScoreLabels {
		return ErrTooManyScores
	}

	for _, v := range d.Scores {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return ErrScoreOutOfRange
		}
	}

	return nil
}
