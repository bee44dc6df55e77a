package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/oncodose/treatment-api/pkg/errors"
)

// Response is the uniform envelope for every JSON reply.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

func RespondAccepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, Response{Success: true, Data: data})
}

// RespondError maps the application error taxonomy onto HTTP status codes.
// Decryption failures deliberately come back as 409: the stored record
// exists but this session's passphrase cannot open it.
func RespondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperrors.CodeOf(err) {
	case apperrors.ErrNotFound:
		status = http.StatusNotFound
	case apperrors.ErrValidation:
		status = http.StatusBadRequest
	case apperrors.ErrDuplicateKey:
		status = http.StatusConflict
	case apperrors.ErrDecryption:
		status = http.StatusConflict
	case apperrors.ErrUnauthorized:
		status = http.StatusUnauthorized
	case apperrors.ErrSimulation:
		status = http.StatusBadGateway
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		// Do not leak internals to the client.
		message = "internal error"
	}
	c.AbortWithStatusJSON(status, Response{Success: false, Error: message})
}
