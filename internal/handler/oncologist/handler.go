package oncologist

import (
	"github.com/gin-gonic/gin"

	"github.com/oncodose/treatment-api/internal/handler"
	"github.com/oncodose/treatment-api/internal/middleware"
	"github.com/oncodose/treatment-api/internal/model"
	"github.com/oncodose/treatment-api/internal/service/oncologist"
	apperrors "github.com/oncodose/treatment-api/pkg/errors"
)

type Handler struct {
	oncologists *oncologist.Service
}

func NewHandler(oncologists *oncologist.Service) *Handler {
	return &Handler{oncologists: oncologists}
}

// Register creates an oncologist account. Open so the first account can be
// created on a fresh install, mirroring the registration form.
func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterOncologistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondError(c, apperrors.Validation("Input fields must not be empty"))
		return
	}

	o, err := h.oncologists.Register(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondCreated(c, o)
}

// Me returns the authenticated oncologist's record.
func (h *Handler) Me(c *gin.Context) {
	o, err := h.oncologists.Get(c.Request.Context(), middleware.Username(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondOK(c, o)
}

// Delete removes an oncologist and, through the schema cascade, every
// patient assigned to them. Admin only.
func (h *Handler) Delete(c *gin.Context) {
	username := c.Param("username")
	if err := h.oncologists.Delete(c.Request.Context(), username); err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondOK(c, gin.H{"deleted": username})
}
