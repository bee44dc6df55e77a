package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/oncodose/treatment-api/internal/handler"
	"github.com/oncodose/treatment-api/internal/middleware"
	"github.com/oncodose/treatment-api/internal/model"
	"github.com/oncodose/treatment-api/internal/service/session"
	apperrors "github.com/oncodose/treatment-api/pkg/errors"
)

type Handler struct {
	sessions *session.Service
}

func NewHandler(sessions *session.Service) *Handler {
	return &Handler{sessions: sessions}
}

type loginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	LastName string `json:"last_name"`
	IsAdmin  bool   `json:"is_admin"`
}

// Login authenticates and opens a session. The greeting name is included so
// clients can render "Dr. <LastName>" without another round trip.
func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondError(c, apperrors.Validation("Input fields must not be empty"))
		return
	}

	sess, token, err := h.sessions.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	o := model.Oncologist{FullName: sess.FullName}
	handler.RespondOK(c, loginResponse{
		Token:    token,
		Username: sess.Username,
		FullName: sess.FullName,
		LastName: o.LastName(),
		IsAdmin:  sess.IsAdmin,
	})
}

// Logout closes the session; the passphrase is wiped before anything else.
func (h *Handler) Logout(c *gin.Context) {
	h.sessions.Logout(middleware.Username(c))
	handler.RespondOK(c, gin.H{"logged_out": true})
}
