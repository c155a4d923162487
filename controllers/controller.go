package controllers

import (
	"errors"
	"net/http"

	"benemax/models"

	"github.com/gin-gonic/gin"
)

func RespondError(c *gin.Context, msg string, code int) {
	c.JSON(code, gin.H{"error": msg})
}

func RespondSuccess(c *gin.Context, payload any) {
	c.JSON(200, payload)
}

// RespondCoreError mapeia a taxonomia de erros do core para códigos HTTP.
func RespondCoreError(c *gin.Context, err error) {
	var (
		notFound     models.NotFoundError
		conflict     models.ConflictError
		validation   models.ValidationError
		unsupported  models.UnsupportedTypeError
		precondition models.PreconditionError
		transportErr models.TransportError
	)

	switch {
	case errors.As(err, &notFound):
		RespondError(c, err.Error(), http.StatusNotFound)
	case errors.As(err, &conflict):
		RespondError(c, err.Error(), http.StatusConflict)
	case errors.As(err, &validation), errors.As(err, &unsupported):
		RespondError(c, err.Error(), http.StatusBadRequest)
	case errors.As(err, &precondition):
		RespondError(c, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &transportErr):
		RespondError(c, err.Error(), http.StatusBadGateway)
	default:
		RespondError(c, err.Error(), http.StatusInternalServerError)
	}
}
