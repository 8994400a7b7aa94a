// Package api exposes the analysis engine and its result store over HTTP.
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/accident.report/internal/accident"
	"github.com/banshee-data/accident.report/internal/config"
	"github.com/banshee-data/accident.report/internal/db"
	"github.com/banshee-data/accident.report/internal/detect"
	"github.com/banshee-data/accident.report/internal/httputil"
	"github.com/banshee-data/accident.report/internal/monitoring"
	"github.com/banshee-data/accident.report/internal/version"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxAnalyzeBodyBytes caps an uploaded detection sequence at 32MB.
const maxAnalyzeBodyBytes = 32 << 20

type Server struct {
	db      *db.DB
	tuning  *config.TuningConfig
	started time.Time
}

func NewServer(database *db.DB, tuning *config.TuningConfig) *Server {
	return &Server{
		db:      database,
		tuning:  tuning,
		started: time.Now(),
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	default:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	}
}

// LoggingMiddleware logs method, path, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.health)
	mux.HandleFunc("/api/analyze", s.analyze)
	mux.HandleFunc("/api/analyses", s.listAnalyses)
	mux.HandleFunc("/api/analyses/", s.getAnalysis)
	mux.HandleFunc("/api/accidents", s.listAccidents)
	return mux
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":         "ok",
		"version":        version.String(),
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	})
}

// AnalyzeRequest is one uploaded detection sequence. Frames must be in
// ascending frame order.
type AnalyzeRequest struct {
	Source string            `json:"source"`
	Frames []detect.RawFrame `json:"frames"`
}

// AnalyzeResponse couples the stored record id with the full verdict.
type AnalyzeResponse struct {
	ID      string                `json:"id"`
	Source  string                `json:"source"`
	Report  accident.Report       `json:"report"`
	Summary accident.TrackSummary `json:"summary"`
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req AnalyzeRequest
	body := http.MaxBytesReader(w, r.Body, maxAnalyzeBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if len(req.Frames) == 0 {
		httputil.BadRequest(w, "no frames provided")
		return
	}
	for i := 1; i < len(req.Frames); i++ {
		if req.Frames[i].FrameIdx <= req.Frames[i-1].FrameIdx {
			httputil.BadRequest(w, fmt.Sprintf("frames out of order at index %d", i))
			return
		}
	}

	analyzer := accident.NewAnalyzer(s.tuning)
	for _, frame := range req.Frames {
		analyzer.ProcessFrame(frame)
	}
	report := analyzer.Finalize()
	summary := analyzer.Summary()

	id := uuid.New().String()
	rec := db.NewAnalysisRecord(id, req.Source, report)
	if err := s.db.RecordAnalysis(r.Context(), rec); err != nil {
		monitoring.Logf("failed to store analysis %s: %v", id, err)
		httputil.InternalServerError(w, "failed to store analysis")
		return
	}

	httputil.WriteJSONOK(w, AnalyzeResponse{
		ID:      id,
		Source:  req.Source,
		Report:  report,
		Summary: summary,
	})
}

func (s *Server) listAnalyses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	records, err := s.db.ListAnalyses(r.Context(), limit)
	if err != nil {
		monitoring.Logf("failed to list analyses: %v", err)
		httputil.InternalServerError(w, "failed to list analyses")
		return
	}
	httputil.WriteJSONOK(w, records)
}

func (s *Server) getAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/analyses/")
	if id == "" || strings.Contains(id, "/") {
		httputil.BadRequest(w, "invalid analysis id")
		return
	}

	rec, err := s.db.GetAnalysis(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		httputil.NotFound(w, fmt.Sprintf("analysis %s not found", id))
		return
	}
	if err != nil {
		monitoring.Logf("failed to load analysis %s: %v", id, err)
		httputil.InternalServerError(w, "failed to load analysis")
		return
	}
	httputil.WriteJSONOK(w, rec)
}

func (s *Server) listAccidents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	records, err := s.db.ListAccidents(r.Context(), limit)
	if err != nil {
		monitoring.Logf("failed to list accidents: %v", err)
		httputil.InternalServerError(w, "failed to list accidents")
		return
	}
	httputil.WriteJSONOK(w, records)
}
