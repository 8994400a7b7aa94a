package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/accident.report/internal/config"
	"github.com/banshee-data/accident.report/internal/db"
	"github.com/banshee-data/accident.report/internal/detect"
)

func setupTestServer(t *testing.T) (*Server, *db.DB) {
	t.Helper()
	database, err := db.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.MigrateUp("../../migrations"))

	return NewServer(database, config.EmptyTuningConfig()), database
}

// carBox builds one detection box in input coordinates so that the tracked
// center lands at (cx, cy) with the given width and height 10.
func carBox(cx, cy, width float64) [4]float64 {
	half := width / 2
	return [4]float64{cx - half, -cy - 5, cx + half, -cy + 5}
}

func rawFrame(frameIdx int, boxes ...[4]float64) detect.RawFrame {
	frame := detect.RawFrame{FrameIdx: frameIdx}
	for _, b := range boxes {
		frame.Boxes = append(frame.Boxes, b)
		frame.Confidences = append(frame.Confidences, 0.9)
		frame.Classes = append(frame.Classes, "car")
	}
	return frame
}

// collisionFrames is the two-vehicle approach whose boxes overlap at IoU 0.3
// on the final frame.
func collisionFrames() []detect.RawFrame {
	const gap = 70.0 / 13.0
	frames := make([]detect.RawFrame, 0, 11)
	for i := 0; i <= 10; i++ {
		left := float64(i * 4)
		right := 40 + gap + float64((10-i)*4)
		frames = append(frames, rawFrame(i, carBox(left, 0, 10), carBox(right, 0, 10)))
	}
	return frames
}

func postAnalyze(t *testing.T, mux *http.ServeMux, req AnalyzeRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewReader(body)))
	return w
}

func TestHealth(t *testing.T) {
	server, _ := setupTestServer(t)
	mux := server.ServeMux()

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.NotEmpty(t, resp["version"])
	assert.Contains(t, resp, "uptime_seconds")
}

func TestAnalyzeCollisionEndToEnd(t *testing.T) {
	server, _ := setupTestServer(t)
	mux := server.ServeMux()

	w := postAnalyze(t, mux, AnalyzeRequest{Source: "cam-3.jsonl", Frames: collisionFrames()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.True(t, resp.Report.HasAccident)
	assert.InDelta(t, 0.81, resp.Report.Confidence, 1e-9)
	assert.Equal(t, 11, resp.Report.TotalFrames)
	assert.Equal(t, 2, resp.Summary.TracksCreated)

	// The record is retrievable with the full report intact.
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analyses/"+resp.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var rec db.AnalysisRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, resp.ID, rec.ID)
	assert.Equal(t, "cam-3.jsonl", rec.Source)
	assert.Equal(t, 1, rec.CollisionCount)
	require.NotNil(t, rec.Report)
	assert.InDelta(t, 0.81, rec.Report.Confidence, 1e-9)

	// The positive verdict produced an accident row: 0.81 clears the
	// moderate bar but not the confirmed one.
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/accidents", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var accidents []db.AccidentRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accidents))
	require.Len(t, accidents, 1)
	assert.Equal(t, resp.ID, accidents[0].AnalysisID)
	assert.Equal(t, "moderate", accidents[0].Severity)
	assert.Equal(t, "reported", accidents[0].Status)
}

func TestAnalyzeCleanSequenceStoresNoAccident(t *testing.T) {
	server, _ := setupTestServer(t)
	mux := server.ServeMux()

	frames := make([]detect.RawFrame, 0, 12)
	for i := 0; i < 12; i++ {
		frames = append(frames, rawFrame(i, carBox(float64(i*5), 0, 12)))
	}

	w := postAnalyze(t, mux, AnalyzeRequest{Source: "quiet.jsonl", Frames: frames})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Report.HasAccident)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/accidents", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var accidents []db.AccidentRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accidents))
	assert.Empty(t, accidents)
}

func TestAnalyzeValidation(t *testing.T) {
	server, _ := setupTestServer(t)
	mux := server.ServeMux()

	t.Run("method not allowed", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analyze", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader("{not json")))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("empty frames", func(t *testing.T) {
		w := postAnalyze(t, mux, AnalyzeRequest{Source: "empty.jsonl"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("frames out of order", func(t *testing.T) {
		w := postAnalyze(t, mux, AnalyzeRequest{Frames: []detect.RawFrame{
			rawFrame(3, carBox(0, 0, 10)),
			rawFrame(2, carBox(5, 0, 10)),
		}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestListAnalyses(t *testing.T) {
	server, _ := setupTestServer(t)
	mux := server.ServeMux()

	for i := 0; i < 3; i++ {
		w := postAnalyze(t, mux, AnalyzeRequest{
			Source: fmt.Sprintf("seq-%d.jsonl", i),
			Frames: []detect.RawFrame{rawFrame(0, carBox(0, 0, 10))},
		})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analyses?limit=2", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var records []db.AnalysisRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	assert.Len(t, records, 2)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analyses?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAnalysisNotFound(t *testing.T) {
	server, _ := setupTestServer(t)
	mux := server.ServeMux()

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analyses/no-such-id", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analyses/a/b", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
