package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"firealert/internal/metrics"
	"firealert/internal/models"
)

// DetectionHandler accepts detections for asynchronous scoring and alerting
type DetectionHandler struct {
	// Channel feeding the alerting workflow
	envelopeChan chan<- *models.Envelope

	// Node identifier used in batch IDs
	nodeID string

	// Batch counter for generating batch IDs
	batchCounter uint64

	// Max body size (default 10MB)
	maxBodySize int64
}

// DetectionConfig holds configuration for the detection handler
type DetectionConfig struct {
	EnvelopeChan chan<- *models.Envelope
	NodeID       string
	MaxBodySize  int64
}

// NewDetectionHandler creates a new detection handler
func NewDetectionHandler(cfg DetectionConfig) *DetectionHandler {
	nodeID := cfg.NodeID
	if nodeID == "" {
		nodeID, _ = os.Hostname()
		if nodeID == "" {
			nodeID = "unknown"
		}
	}

	maxBodySize := cfg.MaxBodySize
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}

	return &DetectionHandler{
		envelopeChan: cfg.EnvelopeChan,
		nodeID:       nodeID,
		maxBodySize:  maxBodySize,
	}
}

// DetectionRequest is the incoming JSON payload (single or batch)
type DetectionRequest struct {
	Detection  *models.Detection  `json:"detection,omitempty"`
	Detections []models.Detection `json:"detections,omitempty"`
}

// DetectionResponse is the response returned to clients
type DetectionResponse struct {
	Success  bool             `json:"success"`
	BatchID  string           `json:"batch_id"`
	Accepted int              `json:"accepted"`
	Rejected int              `json:"rejected"`
	Errors   []DetectionError `json:"errors,omitempty"`
}

// DetectionError describes a rejected detection
type DetectionError struct {
	Index int    `json:"index"`
	JobID string `json:"job_id,omitempty"`
	Error string `json:"error"`
}

// ServeHTTP handles POST /detections
func (h *DetectionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSONBody(w, r, h.maxBodySize)
	if !ok {
		return
	}

	detections, err := parseDetections(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(detections) == 0 {
		writeError(w, http.StatusBadRequest, "no detections provided")
		return
	}

	response := h.enqueue(detections, h.generateBatchID())

	status := http.StatusAccepted
	if response.Rejected > 0 && response.Accepted == 0 {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, response)
}

// parseDetections accepts a wrapped request, a bare array or a single detection
func parseDetections(body []byte) ([]models.Detection, error) {
	var req DetectionRequest
	if err := json.Unmarshal(body, &req); err == nil {
		if len(req.Detections) > 0 {
			return req.Detections, nil
		}
		if req.Detection != nil {
			return []models.Detection{*req.Detection}, nil
		}
	}

	var detections []models.Detection
	if err := json.Unmarshal(body, &detections); err == nil && len(detections) > 0 {
		return detections, nil
	}

	var single models.Detection
	if err := json.Unmarshal(body, &single); err == nil && single.JobID != "" {
		return []models.Detection{single}, nil
	}

	return nil, fmt.Errorf("invalid JSON format: expected detection object or array of detections")
}

// enqueue validates detections and pushes them to the workflow channel
func (h *DetectionHandler) enqueue(inputs []models.Detection, batchID string) DetectionResponse {
	response := DetectionResponse{
		BatchID: batchID,
		Errors:  make([]DetectionError, 0),
	}

	for i := range inputs {
		detection := inputs[i]
		detection.Normalize()

		if err := detection.Validate(); err != nil {
			response.Errors = append(response.Errors, DetectionError{Index: i, JobID: detection.JobID, Error: err.Error()})
			response.Rejected++
			metrics.DetectionsReceivedTotal.WithLabelValues(models.SourceHTTP, "rejected").Inc()
			continue
		}

		envelope := models.NewEnvelope(uuid.NewString(), &detection, models.SourceHTTP).WithBatch(batchID, i)

		select {
		case h.envelopeChan <- envelope:
			response.Accepted++
			metrics.DetectionsReceivedTotal.WithLabelValues(models.SourceHTTP, "accepted").Inc()
		default:
			response.Errors = append(response.Errors, DetectionError{
				Index: i,
				JobID: detection.JobID,
				Error: "internal queue full, try again later",
			})
			response.Rejected++
			metrics.DetectionsReceivedTotal.WithLabelValues(models.SourceHTTP, "rejected").Inc()
		}
	}

	response.Success = response.Rejected == 0
	return response
}

// generateBatchID generates a unique batch ID
func (h *DetectionHandler) generateBatchID() string {
	counter := atomic.AddUint64(&h.batchCounter, 1)
	return fmt.Sprintf("%s-%d-%d", h.nodeID, time.Now().UnixNano(), counter)
}
