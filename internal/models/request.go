package models

type CreateSessionRequest struct {
	// QuizSessionID ties the measurement to an existing quiz/checkout
	// session; creation is rejected when it does not exist.
	QuizSessionID string `json:"quiz_session_id" binding:"required"`
	// SockThickness is one of "thin", "medium" or "thick".
	SockThickness string `json:"sock_thickness" binding:"required"`
}

type AnalyzePhotoRequest struct {
	// ObjectKey is the storage key the client uploaded the raw photo to.
	// The image is deleted from storage as soon as the vision service
	// has consumed it.
	ObjectKey string `json:"object_key" binding:"required"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
