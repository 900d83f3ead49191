package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"lectern/internal/hub"
	"lectern/internal/pipeline"
	"lectern/internal/session"
	"lectern/pkg/interfaces"
	"lectern/pkg/types"
)

// Server is the HTTP ingress for the assessment pipeline. It contains no
// business logic; every handler translates between HTTP and the coordinator,
// the result store, and the broadcast hub.
type Server struct {
	coordinator *pipeline.Coordinator
	store       interfaces.ResultStore
	hub         *hub.Hub
	router      *http.ServeMux
}

// NewServer wires the API routes against the pipeline coordinator and its
// collaborators.
func NewServer(coordinator *pipeline.Coordinator, store interfaces.ResultStore, h *hub.Hub) *Server {
	s := &Server{
		coordinator: coordinator,
		store:       store,
		hub:         h,
		router:      http.NewServeMux(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/api/assessments", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleAssessments))))
	s.router.Handle("/api/assessments/", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleAssessmentByID))))
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
}

// ServeHTTP implements http.Handler so the server plugs into net/http directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleAssessments covers the collection endpoints: POST creates a session,
// GET lists completed assessments from the store.
func (s *Server) handleAssessments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createAssessment(w, r)
	case http.MethodGet:
		s.listAssessments(w, r)
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleAssessmentByID routes /api/assessments/{id} and the action
// subresources /start, /data, /complete and /abandon.
func (s *Server) handleAssessmentByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/assessments/")
	parts := strings.Split(path, "/")
	assessmentID := parts[0]
	if assessmentID == "" {
		s.sendError(w, "Assessment ID required", http.StatusBadRequest)
		return
	}

	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.getAssessment(w, r, assessmentID)
	case action == "start" && r.Method == http.MethodPost:
		s.startAssessment(w, r, assessmentID)
	case action == "data" && r.Method == http.MethodPost:
		s.ingestData(w, r, assessmentID)
	case action == "complete" && r.Method == http.MethodPost:
		s.completeAssessment(w, r, assessmentID)
	case action == "abandon" && r.Method == http.MethodPost:
		s.abandonAssessment(w, r, assessmentID)
	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Request/Response types for JSON serialization
type CreateAssessmentRequest struct {
	AssessmentID string `json:"assessment_id,omitempty"`
	Subject      string `json:"subject,omitempty"`
	Institution  string `json:"institution,omitempty"`
	Duration     int    `json:"duration,omitempty"`
}

type CreateAssessmentResponse struct {
	Session types.Session `json:"session"`
}

type AssessmentStatusResponse struct {
	Session       types.Session             `json:"session"`
	Snapshot      *types.AggregatedSnapshot `json:"snapshot,omitempty"`
	ObserverCount int                       `json:"observer_count"`
}

type ListAssessmentsResponse struct {
	Assessments []*types.AssessmentRecord `json:"assessments"`
}

type IngestResponse struct {
	Snapshot *types.AggregatedSnapshot `json:"snapshot"`
}

type HealthResponse struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Database  string         `json:"database"`
	Observers map[string]int `json:"observers"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// createAssessment registers a new session. A missing assessment_id is filled
// with a generated UUID so clients may omit it.
func (s *Server) createAssessment(w http.ResponseWriter, r *http.Request) {
	var req CreateAssessmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.AssessmentID == "" {
		req.AssessmentID = uuid.New().String()
	}

	sess, err := s.coordinator.Create(req.AssessmentID, session.Metadata{
		Subject:     req.Subject,
		Institution: req.Institution,
		Duration:    req.Duration,
	})
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(CreateAssessmentResponse{Session: sess})
}

// getAssessment returns the live state of an active session, or falls back to
// the stored record once the session has been retired.
func (s *Server) getAssessment(w http.ResponseWriter, r *http.Request, assessmentID string) {
	sess, err := s.coordinator.Session(assessmentID)
	if err == nil {
		snap, _ := s.coordinator.Snapshot(assessmentID)
		json.NewEncoder(w).Encode(AssessmentStatusResponse{
			Session:       sess,
			Snapshot:      snap,
			ObserverCount: s.hub.SubscriberCount(assessmentID),
		})
		return
	}
	if !errors.Is(err, session.ErrSessionNotFound) {
		s.sendDomainError(w, err)
		return
	}

	record, err := s.store.GetResult(r.Context(), assessmentID)
	if err != nil {
		s.sendError(w, "Assessment not found", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(record)
}

func (s *Server) startAssessment(w http.ResponseWriter, r *http.Request, assessmentID string) {
	if err := s.coordinator.Start(assessmentID); err != nil {
		s.sendDomainError(w, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "started", "assessment_id": assessmentID})
}

// ingestData accepts one raw input frame for a running session and returns the
// aggregated snapshot after the sample is folded in.
func (s *Server) ingestData(w http.ResponseWriter, r *http.Request, assessmentID string) {
	var raw types.RawInput
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	snap, err := s.coordinator.Ingest(r.Context(), assessmentID, raw)
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	json.NewEncoder(w).Encode(IngestResponse{Snapshot: snap})
}

func (s *Server) completeAssessment(w http.ResponseWriter, r *http.Request, assessmentID string) {
	result, err := s.coordinator.Complete(r.Context(), assessmentID)
	if err != nil {
		s.sendDomainError(w, err)
		return
	}
	json.NewEncoder(w).Encode(result)
}

func (s *Server) abandonAssessment(w http.ResponseWriter, r *http.Request, assessmentID string) {
	if err := s.coordinator.Abandon(assessmentID); err != nil {
		s.sendDomainError(w, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "abandoned", "assessment_id": assessmentID})
}

// listAssessments returns completed assessments from the store, newest first.
func (s *Server) listAssessments(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListAssessments(r.Context())
	if err != nil {
		s.sendError(w, "Failed to list assessments", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*types.AssessmentRecord{}
	}
	json.NewEncoder(w).Encode(ListAssessmentsResponse{Assessments: records})
}

// healthCheck reports store connectivity and observer counts.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "healthy"
	if err := s.store.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Database:  dbStatus,
		Observers: s.hub.Stats(),
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(response)
}

// sendDomainError maps pipeline and session errors onto HTTP status codes.
func (s *Server) sendDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		s.sendError(w, "Assessment not found", http.StatusNotFound)
	case errors.Is(err, session.ErrInvalidSessionID):
		s.sendError(w, "Invalid assessment ID", http.StatusBadRequest)
	case errors.Is(err, session.ErrInvalidTransition):
		s.sendError(w, "Invalid state transition", http.StatusConflict)
	case errors.Is(err, session.ErrSessionNotRunning):
		s.sendError(w, "Assessment is not running", http.StatusConflict)
	case errors.Is(err, pipeline.ErrAnalyzerFailed):
		s.sendError(w, "Failed to analyze input data", http.StatusUnprocessableEntity)
	default:
		s.sendError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

// corsMiddleware allows browser clients from any origin. Deployments that need
// stricter policies terminate CORS at the proxy.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		next.ServeHTTP(w, r)
	})
}
