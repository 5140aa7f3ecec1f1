package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firealert/internal/handlers"
	"firealert/internal/models"
)

func serveDetections(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/detections", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestDetectionHandler_SingleDetection(t *testing.T) {
	ch := make(chan *models.Envelope, 10)
	h := handlers.NewDetectionHandler(handlers.DetectionConfig{EnvelopeChan: ch, NodeID: "test-node"})

	w := serveDetections(h, `{
		"job_id": "  job-7  ",
		"timestamp": 12.5,
		"features": {"flame_area": 0.4},
		"scores": {"Fire": 0.8}
	}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp handlers.DetectionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Accepted)
	assert.Contains(t, resp.BatchID, "test-node-")

	select {
	case env := <-ch:
		assert.Equal(t, "job-7", env.Detection.JobID)
		assert.Equal(t, 0.8, env.Detection.Scores[models.ScoreFire])
		require.NotNil(t, env.Detection.Timestamp)
		assert.Equal(t, 12.5, *env.Detection.Timestamp)
		assert.Equal(t, models.SourceHTTP, env.Source)
		assert.NotEmpty(t, env.ID)
	case <-time.After(time.Second):
		t.Fatal("no envelope received")
	}
}

func TestDetectionHandler_BatchWithRejections(t *testing.T) {
	ch := make(chan *models.Envelope, 10)
	h := handlers.NewDetectionHandler(handlers.DetectionConfig{EnvelopeChan: ch, NodeID: "n"})

	w := serveDetections(h, `{"detections": [
		{"job_id": "a", "features": {}},
		{"job_id": "", "features": {}},
		{"job_id": "c", "features": {}, "scores": {"smoke": 1.5}},
		{"job_id": "d"}
	]}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp handlers.DetectionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, 1, resp.Accepted)
	assert.Equal(t, 3, resp.Rejected)
	require.Len(t, resp.Errors, 3)
	assert.Equal(t, 1, resp.Errors[0].Index)
	assert.Equal(t, models.ErrScoreOutOfRange.Error(), resp.Errors[1].Error)
	assert.Equal(t, models.ErrMissingFeatures.Error(), resp.Errors[2].Error)
	assert.Len(t, ch, 1)
}

func TestDetectionHandler_QueueFull(t *testing.T) {
	ch := make(chan *models.Envelope)
	h := handlers.NewDetectionHandler(handlers.DetectionConfig{EnvelopeChan: ch, NodeID: "n"})

	w := serveDetections(h, `[{"job_id": "a", "features": {}}]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp handlers.DetectionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Rejected)
	assert.Contains(t, resp.Errors[0].Error, "queue full")
}

func TestDetectionHandler_InvalidBody(t *testing.T) {
	ch := make(chan *models.Envelope, 1)
	h := handlers.NewDetectionHandler(handlers.DetectionConfig{EnvelopeChan: ch, NodeID: "n"})

	for _, body := range []string{`{}`, `[]`, `"x"`, `{"job_id": `} {
		w := serveDetections(h, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}
