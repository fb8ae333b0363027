package supabase

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"footscan-backend/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

// QuizSessionExists is the integrity check against the quiz/checkout
// store: measurement sessions must always hang off a real quiz session.
func (d *DatabaseClient) QuizSessionExists(quizSessionID uuid.UUID) (bool, error) {
	var exists bool
	err := d.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM quiz_sessions WHERE id = $1)
	`, quizSessionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check quiz session: %w", err)
	}
	return exists, nil
}

func (d *DatabaseClient) CreateSession(session *models.MeasurementSession) error {
	err := d.db.QueryRow(`
		INSERT INTO measurement_sessions (id, quiz_session_id, status, sock_thickness)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, session.ID, session.QuizSessionID, session.Status, session.SockThickness).Scan(
		&session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create measurement session: %w", err)
	}
	return nil
}

func (d *DatabaseClient) GetSession(sessionID uuid.UUID) (*models.MeasurementSession, error) {
	var session models.MeasurementSession
	var photo1Raw, photo2Raw, finalRaw []byte
	err := d.db.QueryRow(`
		SELECT id, quiz_session_id, status, sock_thickness, photo1, photo2, final,
		       error_message, created_at, completed_at, updated_at
		FROM measurement_sessions
		WHERE id = $1
	`, sessionID).Scan(
		&session.ID, &session.QuizSessionID, &session.Status, &session.SockThickness,
		&photo1Raw, &photo2Raw, &finalRaw,
		&session.ErrorMessage, &session.CreatedAt, &session.CompletedAt, &session.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get measurement session: %w", err)
	}

	if err := unmarshalJSONB(photo1Raw, &session.Photo1); err != nil {
		return nil, fmt.Errorf("failed to decode photo1: %w", err)
	}
	if err := unmarshalJSONB(photo2Raw, &session.Photo2); err != nil {
		return nil, fmt.Errorf("failed to decode photo2: %w", err)
	}
	if err := unmarshalJSONB(finalRaw, &session.Final); err != nil {
		return nil, fmt.Errorf("failed to decode final result: %w", err)
	}

	return &session, nil
}

func (d *DatabaseClient) ListSessions(quizSessionID uuid.UUID) ([]models.MeasurementSession, error) {
	rows, err := d.db.Query(`
		SELECT id, quiz_session_id, status, sock_thickness, created_at, updated_at
		FROM measurement_sessions
		WHERE quiz_session_id = $1
		ORDER BY created_at DESC
	`, quizSessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list measurement sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.MeasurementSession
	for rows.Next() {
		var session models.MeasurementSession
		err := rows.Scan(
			&session.ID, &session.QuizSessionID, &session.Status,
			&session.SockThickness, &session.CreatedAt, &session.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan measurement session: %w", err)
		}
		sessions = append(sessions, session)
	}

	return sessions, nil
}

// UpdateSession writes back the full mutable state of a session. The
// orchestrator holds the per-session lock for the whole read-modify-write,
// so this is never racing another writer for the same row.
func (d *DatabaseClient) UpdateSession(session *models.MeasurementSession) error {
	photo1JSON, err := marshalJSONB(session.Photo1)
	if err != nil {
		return fmt.Errorf("failed to encode photo1: %w", err)
	}
	photo2JSON, err := marshalJSONB(session.Photo2)
	if err != nil {
		return fmt.Errorf("failed to encode photo2: %w", err)
	}
	finalJSON, err := marshalJSONB(session.Final)
	if err != nil {
		return fmt.Errorf("failed to encode final result: %w", err)
	}

	_, err = d.db.Exec(`
		UPDATE measurement_sessions
		SET status = $1, photo1 = $2, photo2 = $3, final = $4,
		    error_message = $5, completed_at = $6, updated_at = NOW()
		WHERE id = $7
	`, session.Status, photo1JSON, photo2JSON, finalJSON,
		session.ErrorMessage, session.CompletedAt, session.ID)
	if err != nil {
		return fmt.Errorf("failed to update measurement session: %w", err)
	}
	return nil
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}

// marshalJSONB encodes a pointer for a JSONB column, mapping nil to SQL
// NULL. v must be *models.PhotoRecord or *models.ReconciledResult.
func marshalJSONB(v interface{}) (interface{}, error) {
	switch p := v.(type) {
	case *models.PhotoRecord:
		if p == nil {
			return nil, nil
		}
	case *models.ReconciledResult:
		if p == nil {
			return nil, nil
		}
	case nil:
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalJSONB(raw []byte, dst interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
