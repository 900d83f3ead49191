// Package store persists completed assessment results to SQLite. It is the
// pipeline's persistence collaborator: writes are best-effort from the
// pipeline's point of view and never block broadcast or session cleanup.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"lectern/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS assessments (
	id TEXT PRIMARY KEY,
	subject TEXT,
	institution TEXT,
	duration INTEGER DEFAULT 0,
	status TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	completed_at TIMESTAMP,
	overall_score REAL DEFAULT 0,
	eligibility TEXT DEFAULT 'not-eligible',
	detailed_analysis TEXT
);

CREATE TABLE IF NOT EXISTS recommendations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	assessment_id TEXT NOT NULL,
	category TEXT NOT NULL,
	priority TEXT DEFAULT 'medium',
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	FOREIGN KEY (assessment_id) REFERENCES assessments (id)
);

CREATE INDEX IF NOT EXISTS idx_recommendations_assessment
	ON recommendations (assessment_id);
`

// writeOperation is one queued database write.
type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// Store implements interfaces.ResultStore on SQLite. All writes funnel
// through a single goroutine, which sidesteps SQLite write contention;
// reads go straight to the pooled connection.
type Store struct {
	db           *sql.DB
	timeout      time.Duration
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// Open opens (creating if necessary) the assessment database at path.
func Open(path string, timeout time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(timeout)
	db.SetConnMaxIdleTime(timeout / 3)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &Store{
		db:           db,
		timeout:      timeout,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.writeLoop()

	return s, nil
}

// writeLoop processes all write operations in a single goroutine, retrying
// each failed write once after a short delay.
func (s *Store) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case op := <-s.writeChannel:
			err := op.operation(s.db)
			if err != nil {
				log.Printf("Database write failed, retrying: %v", err)
				time.Sleep(time.Second)
				err = op.operation(s.db)
				if err != nil {
					log.Printf("Database write failed after retry: %v", err)
				}
			}
			op.result <- err

		case <-s.shutdown:
			return
		}
	}
}

// executeWrite queues a write operation and waits for its completion.
func (s *Store) executeWrite(ctx context.Context, operation func(*sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	result := make(chan error, 1)
	op := writeOperation{operation: operation, result: result}

	select {
	case s.writeChannel <- op:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.timeout):
		return fmt.Errorf("write operation timed out")
	case <-s.shutdown:
		return ErrStoreClosed
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Store persists a completed session and its result in one transaction.
// Re-storing the same id replaces the previous row and recommendations.
func (s *Store) Store(ctx context.Context, sess *types.Session, result *types.AssessmentResult) error {
	analysis, err := json.Marshal(result.DetailedAnalysis)
	if err != nil {
		return fmt.Errorf("failed to encode detailed analysis: %w", err)
	}

	return s.executeWrite(ctx, func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.Exec(`
			INSERT OR REPLACE INTO assessments
				(id, subject, institution, duration, status, created_at, completed_at,
				 overall_score, eligibility, detailed_analysis)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, sess.Subject, sess.Institution, sess.Duration, sess.State,
			sess.CreatedAt, result.CompletedAt,
			result.OverallScore, result.Eligibility, string(analysis),
		)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(`DELETE FROM recommendations WHERE assessment_id = ?`, sess.ID); err != nil {
			return err
		}
		for _, rec := range result.Recommendations {
			_, err := tx.Exec(`
				INSERT INTO recommendations (assessment_id, category, priority, title, description)
				VALUES (?, ?, ?, ?, ?)`,
				sess.ID, rec.Category, rec.Priority, rec.Title, rec.Description,
			)
			if err != nil {
				return err
			}
		}

		return tx.Commit()
	})
}

// GetResult retrieves a stored assessment with its recommendations.
func (s *Store) GetResult(ctx context.Context, sessionID string) (*types.AssessmentRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, subject, institution, duration, status, created_at,
		       completed_at, overall_score, eligibility, detailed_analysis
		FROM assessments WHERE id = ?`, sessionID)

	rec, err := scanAssessment(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load assessment: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT category, priority, title, description
		FROM recommendations WHERE assessment_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load recommendations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r types.Recommendation
		if err := rows.Scan(&r.Category, &r.Priority, &r.Title, &r.Description); err != nil {
			return nil, err
		}
		rec.Recommendations = append(rec.Recommendations, r)
	}
	return rec, rows.Err()
}

// ListAssessments returns all stored assessments, newest first, without the
// per-assessment recommendation rows.
func (s *Store) ListAssessments(ctx context.Context) ([]*types.AssessmentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject, institution, duration, status, created_at,
		       completed_at, overall_score, eligibility, detailed_analysis
		FROM assessments ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer rows.Close()

	var records []*types.AssessmentRecord
	for rows.Next() {
		rec, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// HealthCheck verifies database connectivity.
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()
	return s.db.PingContext(ctx)
}

// Close drains pending writes and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)
	s.wg.Wait()
	return s.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAssessment(sc scanner) (*types.AssessmentRecord, error) {
	var rec types.AssessmentRecord
	var completedAt sql.NullTime
	var analysis sql.NullString

	err := sc.Scan(&rec.ID, &rec.Subject, &rec.Institution, &rec.Duration,
		&rec.Status, &rec.CreatedAt, &completedAt,
		&rec.OverallScore, &rec.Eligibility, &analysis)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		rec.CompletedAt = &completedAt.Time
	}
	if analysis.Valid && analysis.String != "" && analysis.String != "null" {
		var snap types.AggregatedSnapshot
		if err := json.Unmarshal([]byte(analysis.String), &snap); err == nil {
			rec.DetailedAnalysis = &snap
		}
	}
	return &rec, nil
}
