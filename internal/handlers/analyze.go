package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"footscan-backend/internal/models"
	"footscan-backend/internal/services"
	"footscan-backend/internal/vision"
)

type AnalyzeHandler struct {
	service *services.MeasurementService
}

func NewAnalyzeHandler(service *services.MeasurementService) *AnalyzeHandler {
	return &AnalyzeHandler{
		service: service,
	}
}

// AnalyzePhoto runs the full per-photo pipeline for one uploaded capture.
// Retakes are a success response with retake_required set, never an HTTP
// error; only infrastructure faults surface as errors.
func (h *AnalyzeHandler) AnalyzePhoto(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid session id"})
		return
	}

	photoNumber, err := strconv.Atoi(c.Param("photo_number"))
	if err != nil || (photoNumber != 1 && photoNumber != 2) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "photo number must be 1 or 2"})
		return
	}

	var req models.AnalyzePhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Message: err.Error(),
		})
		return
	}

	outcome, err := h.service.AnalyzePhoto(c.Request.Context(), sessionID, photoNumber, req.ObjectKey)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "measurement session not found"})
		case errors.Is(err, services.ErrSessionClosed):
			c.JSON(http.StatusConflict, models.ErrorResponse{
				Error:   "session closed",
				Message: "this measurement session has already finished and cannot accept more photos",
			})
		case errors.Is(err, services.ErrInvalidPhotoNumber):
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "photo number must be 1 or 2"})
		case errors.Is(err, vision.ErrUnprocessableImage):
			c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{
				Error:   "unprocessable image",
				Message: "the uploaded image cannot be processed; the session has been marked failed",
			})
		default:
			c.JSON(http.StatusBadGateway, models.ErrorResponse{
				Error:   "processing failed",
				Message: err.Error(),
			})
		}
		return
	}

	response := models.AnalyzePhotoResponse{
		SessionID:      outcome.Session.ID.String(),
		PhotoNumber:    photoNumber,
		Success:        true,
		Status:         string(outcome.Session.Status),
		RetakeRequired: outcome.RetakeRequired,
		RetakeReason:   outcome.RetakeReason,
	}
	if photo := outcome.Session.Photo(photoNumber); photo != nil {
		response.Left = photo.Left
		response.Right = photo.Right
	}

	c.JSON(http.StatusOK, response)
}
