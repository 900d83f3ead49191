package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"lectern/internal/analyzer"
	"lectern/internal/hub"
	"lectern/internal/pipeline"
	"lectern/internal/session"
	"lectern/pkg/types"
)

// mockStore is an in-memory ResultStore for handler tests.
type mockStore struct {
	mu      sync.Mutex
	records map[string]*types.AssessmentRecord
	fail    bool
}

func newMockStore() *mockStore {
	return &mockStore{records: make(map[string]*types.AssessmentRecord)}
}

func (m *mockStore) Store(_ context.Context, sess *types.Session, result *types.AssessmentResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return fmt.Errorf("store unavailable")
	}
	completed := result.CompletedAt
	m.records[sess.ID] = &types.AssessmentRecord{
		ID:               sess.ID,
		Subject:          sess.Subject,
		Institution:      sess.Institution,
		Duration:         sess.Duration,
		Status:           sess.State,
		CreatedAt:        sess.CreatedAt,
		CompletedAt:      &completed,
		OverallScore:     result.OverallScore,
		Eligibility:      result.Eligibility,
		Recommendations:  result.Recommendations,
		DetailedAnalysis: result.DetailedAnalysis,
	}
	return nil
}

func (m *mockStore) GetResult(_ context.Context, sessionID string) (*types.AssessmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[sessionID]
	if !ok {
		return nil, fmt.Errorf("assessment not found")
	}
	return rec, nil
}

func (m *mockStore) ListAssessments(_ context.Context) ([]*types.AssessmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, fmt.Errorf("store unavailable")
	}
	out := make([]*types.AssessmentRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	return out, nil
}

func (m *mockStore) HealthCheck(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return fmt.Errorf("store unavailable")
	}
	return nil
}

func (m *mockStore) Close() error { return nil }

func newTestServer(t *testing.T) (*Server, *mockStore) {
	t.Helper()

	registry := session.NewRegistry()
	broadcaster := hub.NewHub()
	t.Cleanup(broadcaster.Shutdown)
	store := newMockStore()

	coordinator := pipeline.NewCoordinator(registry, analyzer.NewPassthrough(), broadcaster, store)
	return NewServer(coordinator, store, broadcaster), store
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	} else {
		buf.WriteString("{}")
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestCreateAssessment(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/assessments", CreateAssessmentRequest{
		AssessmentID: "a1",
		Subject:      "chemistry",
		Institution:  "Hill Valley High",
		Duration:     20,
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var resp CreateAssessmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if resp.Session.ID != "a1" || resp.Session.State != types.StateCreated {
		t.Errorf("unexpected session: %+v", resp.Session)
	}
	if resp.Session.Subject != "chemistry" {
		t.Errorf("metadata not recorded: %+v", resp.Session)
	}
}

func TestCreateAssessmentGeneratesID(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/assessments", CreateAssessmentRequest{})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	var resp CreateAssessmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if resp.Session.ID == "" {
		t.Error("expected a generated assessment id")
	}
}

func TestAssessmentLifecycleOverHTTP(t *testing.T) {
	s, _ := newTestServer(t)

	if rec := doJSON(t, s, http.MethodPost, "/api/assessments", CreateAssessmentRequest{AssessmentID: "a1"}); rec.Code != http.StatusCreated {
		t.Fatalf("create: %d", rec.Code)
	}
	if rec := doJSON(t, s, http.MethodPost, "/api/assessments/a1/start", nil); rec.Code != http.StatusOK {
		t.Fatalf("start: %d %s", rec.Code, rec.Body.String())
	}

	data := types.RawInput{
		AudioData:  map[string]float64{"confidence": 60, "audibility": 70, "clarity": 65, "volume": 60},
		VideoFrame: map[string]float64{"engagement_level": 60, "expression_variety": 60},
		Emotion:    "neutral",
	}
	rec := doJSON(t, s, http.MethodPost, "/api/assessments/a1/data", data)
	if rec.Code != http.StatusOK {
		t.Fatalf("data: %d %s", rec.Code, rec.Body.String())
	}
	var ingest IngestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &ingest); err != nil {
		t.Fatalf("bad ingest response: %v", err)
	}
	if ingest.Snapshot == nil || ingest.Snapshot.SampleCount != 1 {
		t.Errorf("snapshot not returned: %+v", ingest.Snapshot)
	}

	// Live status while running.
	rec = doJSON(t, s, http.MethodGet, "/api/assessments/a1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get live: %d", rec.Code)
	}
	var status AssessmentStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("bad status response: %v", err)
	}
	if status.Session.State != types.StateRunning {
		t.Errorf("state = %q, want running", status.Session.State)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/assessments/a1/complete", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete: %d %s", rec.Code, rec.Body.String())
	}
	var result types.AssessmentResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("bad result: %v", err)
	}
	if result.OverallScore != 65.8 {
		t.Errorf("overall score = %v, want 65.8", result.OverallScore)
	}
	if result.Eligibility != types.EligibilityNotEligible {
		t.Errorf("eligibility = %q", result.Eligibility)
	}

	// After completion the session is retired; GET falls back to the store.
	rec = doJSON(t, s, http.MethodGet, "/api/assessments/a1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get stored: %d", rec.Code)
	}
	var record types.AssessmentRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("bad record: %v", err)
	}
	if record.ID != "a1" || record.OverallScore != 65.8 {
		t.Errorf("stored record mismatch: %+v", record)
	}

	// And it shows up in the listing.
	rec = doJSON(t, s, http.MethodGet, "/api/assessments", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	var list ListAssessmentsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("bad list: %v", err)
	}
	if len(list.Assessments) != 1 {
		t.Errorf("got %d assessments, want 1", len(list.Assessments))
	}
}

func TestAbandonAssessment(t *testing.T) {
	s, store := newTestServer(t)

	doJSON(t, s, http.MethodPost, "/api/assessments", CreateAssessmentRequest{AssessmentID: "a1"})
	doJSON(t, s, http.MethodPost, "/api/assessments/a1/start", nil)

	rec := doJSON(t, s, http.MethodPost, "/api/assessments/a1/abandon", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("abandon: %d %s", rec.Code, rec.Body.String())
	}

	store.mu.Lock()
	stored := len(store.records)
	store.mu.Unlock()
	if stored != 0 {
		t.Errorf("abandoned session must not be persisted, found %d records", stored)
	}

	if rec := doJSON(t, s, http.MethodGet, "/api/assessments/a1", nil); rec.Code != http.StatusNotFound {
		t.Errorf("get after abandon: %d, want 404", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	s, _ := newTestServer(t)

	// Unknown session.
	if rec := doJSON(t, s, http.MethodPost, "/api/assessments/ghost/start", nil); rec.Code != http.StatusNotFound {
		t.Errorf("start unknown: %d, want 404", rec.Code)
	}

	doJSON(t, s, http.MethodPost, "/api/assessments", CreateAssessmentRequest{AssessmentID: "a1"})

	// Data before start is a state conflict.
	if rec := doJSON(t, s, http.MethodPost, "/api/assessments/a1/data", types.RawInput{}); rec.Code != http.StatusConflict {
		t.Errorf("data before start: %d, want 409", rec.Code)
	}

	// Complete before start is an invalid transition.
	if rec := doJSON(t, s, http.MethodPost, "/api/assessments/a1/complete", nil); rec.Code != http.StatusConflict {
		t.Errorf("complete before start: %d, want 409", rec.Code)
	}

	// Malformed body.
	req := httptest.NewRequest(http.MethodPost, "/api/assessments", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json: %d, want 400", rec.Code)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	s, _ := newTestServer(t)

	doJSON(t, s, http.MethodPost, "/api/assessments", CreateAssessmentRequest{AssessmentID: "a1"})
	if rec := doJSON(t, s, http.MethodPost, "/api/assessments/a1/start", nil); rec.Code != http.StatusOK {
		t.Fatalf("first start: %d", rec.Code)
	}
	if rec := doJSON(t, s, http.MethodPost, "/api/assessments/a1/start", nil); rec.Code != http.StatusOK {
		t.Errorf("second start: %d, want 200", rec.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	s, store := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}
	var health HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("bad health response: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("status = %q", health.Status)
	}

	store.mu.Lock()
	store.fail = true
	store.mu.Unlock()

	rec = doJSON(t, s, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy status = %d, want 503", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/assessments", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("preflight status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS headers")
	}
}
