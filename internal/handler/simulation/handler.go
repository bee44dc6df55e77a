package simulation

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/oncodose/treatment-api/internal/handler"
	"github.com/oncodose/treatment-api/internal/middleware"
	"github.com/oncodose/treatment-api/internal/service/session"
	apperrors "github.com/oncodose/treatment-api/pkg/errors"
)

type Handler struct {
	sessions *session.Service
}

func NewHandler(sessions *session.Service) *Handler {
	return &Handler{sessions: sessions}
}

type startRequest struct {
	Cycles int `json:"cycles" binding:"required,gt=0"`
}

// Start kicks off an asynchronous run for the patient. 202 either way: if a
// run is already in flight the request joins it instead of spawning another.
func (h *Handler) Start(c *gin.Context) {
	id, err := patientID(c)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondError(c, apperrors.Validation("cycles must be positive"))
		return
	}

	started, err := h.sessions.RunSimulation(c.Request.Context(), middleware.Username(c), id, req.Cycles)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondAccepted(c, gin.H{"started": started})
}

// Status reports the run state for the session's selected patient; other
// patients read as idle until selected again.
func (h *Handler) Status(c *gin.Context) {
	id, err := patientID(c)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	state, err := h.sessions.SimulationStatus(middleware.Username(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondOK(c, state)
}

func patientID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.Validation("invalid patient id")
	}
	return id, nil
}
