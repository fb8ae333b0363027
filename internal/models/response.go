package models

import "time"

type CreateSessionResponse struct {
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionResponse struct {
	SessionID     string            `json:"session_id"`
	QuizSessionID string            `json:"quiz_session_id"`
	Status        string            `json:"status"`
	SockThickness string            `json:"sock_thickness"`
	Photo1        *PhotoRecord      `json:"photo1,omitempty"`
	Photo2        *PhotoRecord      `json:"photo2,omitempty"`
	Final         *ReconciledResult `json:"final,omitempty"`
	ErrorMessage  string            `json:"error_message,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
}

type SessionListResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

type SessionSummary struct {
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type AnalyzePhotoResponse struct {
	SessionID      string             `json:"session_id"`
	PhotoNumber    int                `json:"photo_number"`
	Success        bool               `json:"success"`
	Status         string             `json:"status"`
	RetakeRequired bool               `json:"retake_required"`
	RetakeReason   string             `json:"retake_reason,omitempty"`
	Left           *MeasurementResult `json:"left,omitempty"`
	Right          *MeasurementResult `json:"right,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// SessionView builds the read-only projection served to polling clients.
func SessionView(s *MeasurementSession) SessionResponse {
	resp := SessionResponse{
		SessionID:     s.ID.String(),
		QuizSessionID: s.QuizSessionID.String(),
		Status:        string(s.Status),
		SockThickness: string(s.SockThickness),
		Photo1:        s.Photo1,
		Photo2:        s.Photo2,
		Final:         s.Final,
		CreatedAt:     s.CreatedAt,
	}
	if s.ErrorMessage.Valid {
		resp.ErrorMessage = s.ErrorMessage.String
	}
	if s.CompletedAt.Valid {
		t := s.CompletedAt.Time
		resp.CompletedAt = &t
	}
	return resp
}
