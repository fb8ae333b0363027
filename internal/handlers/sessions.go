package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"footscan-backend/internal/models"
	"footscan-backend/internal/services"
)

type SessionsHandler struct {
	service *services.MeasurementService
}

func NewSessionsHandler(service *services.MeasurementService) *SessionsHandler {
	return &SessionsHandler{
		service: service,
	}
}

func (h *SessionsHandler) CreateSession(c *gin.Context) {
	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Message: err.Error(),
		})
		return
	}

	quizSessionID, err := uuid.Parse(req.QuizSessionID)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid quiz session id"})
		return
	}

	sockThickness, err := models.ParseSockThickness(req.SockThickness)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid sock thickness",
			Message: err.Error(),
		})
		return
	}

	session, err := h.service.CreateSession(quizSessionID, sockThickness)
	if err != nil {
		if errors.Is(err, services.ErrQuizSessionNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "quiz session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to create measurement session",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, models.CreateSessionResponse{
		SessionID: session.ID.String(),
		Status:    string(session.Status),
		CreatedAt: session.CreatedAt,
	})
}

func (h *SessionsHandler) GetSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid session id"})
		return
	}

	session, err := h.service.GetSession(sessionID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSessionNotFound), errors.Is(err, services.ErrQuizSessionNotFound):
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "measurement session not found"})
		default:
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:   "failed to get measurement session",
				Message: err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, models.SessionView(session))
}

func (h *SessionsHandler) ListSessions(c *gin.Context) {
	quizSessionID, err := uuid.Parse(c.Query("quiz_session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid quiz session id"})
		return
	}

	sessions, err := h.service.ListSessions(quizSessionID)
	if err != nil {
		if errors.Is(err, services.ErrQuizSessionNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "quiz session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to list measurement sessions",
			Message: err.Error(),
		})
		return
	}

	summaries := make([]models.SessionSummary, len(sessions))
	for i, s := range sessions {
		summaries[i] = models.SessionSummary{
			SessionID: s.ID.String(),
			Status:    string(s.Status),
			CreatedAt: s.CreatedAt,
		}
	}

	c.JSON(http.StatusOK, models.SessionListResponse{Sessions: summaries})
}
