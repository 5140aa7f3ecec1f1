package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"firealert/internal/logger"
	"firealert/internal/metrics"
	"firealert/internal/middleware"
	"firealert/internal/models"
	"firealert/internal/scoring"
)

// Scorer is the inference dependency of the HTTP handlers.
type Scorer interface {
	Score(records []models.FeatureRecord) ([]scoring.Decision, error)
	Model() *scoring.Model
}

// PredictHandler serves the synchronous inference endpoints.
type PredictHandler struct {
	scorer      Scorer
	maxBodySize int64
}

// NewPredictHandler creates a new predict handler
func NewPredictHandler(scorer Scorer, maxBodySize int64) *PredictHandler {
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}
	return &PredictHandler{scorer: scorer, maxBodySize: maxBodySize}
}

// PredictResponse is returned by /predict.
type PredictResponse struct {
	Probability float64 `json:"probability"`
	Alert       int     `json:"alert"`
	Threshold   float64 `json:"threshold"`
}

// BatchResult is one entry of a /predict_batch response.
type BatchResult struct {
	Probability float64 `json:"probability"`
	Alert       int     `json:"alert"`
}

// BatchResponse is returned by /predict_batch.
type BatchResponse struct {
	Results []BatchResult `json:"results"`
}

// MetaResponse describes the schema the model expects.
type MetaResponse struct {
	Features   []string `json:"features"`
	Threshold  float64  `json:"threshold"`
	ImputeMode string   `json:"impute_mode"`
}

// Meta handles GET /meta
func (h *PredictHandler) Meta(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	m := h.scorer.Model()
	writeJSON(w, http.StatusOK, MetaResponse{
		Features:   m.Features(),
		Threshold:  m.Threshold(),
		ImputeMode: string(m.ImputeMode()),
	})
}

// Predict handles POST /predict. The body is {"values": {...}}; a body
// without a "values" key is taken as the record itself.
func (h *PredictHandler) Predict(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSONBody(w, r, h.maxBodySize)
	if !ok {
		return
	}

	raw := json.RawMessage(body)
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err == nil {
		if values, ok := envelope["values"]; ok {
			raw = values
		}
	}

	record, err := scoring.DecodeRecord(raw, 0)
	if err != nil {
		h.writeScoringError(w, r, err)
		return
	}

	decisions, err := h.scorer.Score([]models.FeatureRecord{record})
	if err != nil {
		h.writeScoringError(w, r, err)
		return
	}

	d := decisions[0]
	metrics.ObserveDecision("predict", d.Probability, d.Alert)

	writeJSON(w, http.StatusOK, PredictResponse{
		Probability: d.Probability,
		Alert:       boolToInt(d.Alert),
		Threshold:   h.scorer.Model().Threshold(),
	})
}

// PredictBatch handles POST /predict_batch with body {"records": [...]}.
func (h *PredictHandler) PredictBatch(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSONBody(w, r, h.maxBodySize)
	if !ok {
		return
	}

	var req struct {
		Records json.RawMessage `json:"records"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "expected an object with a records array")
		return
	}

	var raws []json.RawMessage
	if trimmed := bytes.TrimSpace(req.Records); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			h.writeScoringError(w, r, &scoring.InvalidInputError{Index: -1, Reason: "records is not an array"})
			return
		}
	}

	records, err := scoring.DecodeRecords(raws)
	if err != nil {
		h.writeScoringError(w, r, err)
		return
	}

	decisions, err := h.scorer.Score(records)
	if err != nil {
		h.writeScoringError(w, r, err)
		return
	}

	resp := BatchResponse{Results: make([]BatchResult, len(decisions))}
	for i, d := range decisions {
		metrics.ObserveDecision("predict_batch", d.Probability, d.Alert)
		resp.Results[i] = BatchResult{Probability: d.Probability, Alert: boolToInt(d.Alert)}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *PredictHandler) writeScoringError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.WithRequestID(middleware.RequestID(r.Context()))

	if errors.Is(err, scoring.ErrInvalidInput) {
		metrics.ScoringErrorsTotal.WithLabelValues("invalid_input").Inc()
		log.Warn().Err(err).Msg("rejected scoring request")
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	metrics.ScoringErrorsTotal.WithLabelValues("internal").Inc()
	log.Error().Err(err).Msg("scoring failed")
	writeError(w, http.StatusInternalServerError, "scoring failed")
}
