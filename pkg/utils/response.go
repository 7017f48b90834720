package utils

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/davicafu/hexashop/internal/shared/result"
)

// ErrorResponse define la estructura estándar para las respuestas de error.
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// SendSuccess envía una respuesta exitosa con un payload de datos.
func SendSuccess(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"data": data,
	})
}

// SendError envía una respuesta de error con un formato estandarizado.
func SendError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error": ErrorResponse{
			Message: message,
		},
	})
}

// SendFailure traduce un fallo de negocio a su código HTTP.
func SendFailure(c *gin.Context, failure result.Error) {
	c.JSON(StatusFor(failure), gin.H{
		"error": ErrorResponse{
			Message: failure.Message,
			Code:    failure.Code,
		},
	})
}

// SendResult responde con el valor en un éxito o con el fallo traducido. Un error
// no controlado es siempre un 500 y no expone el detalle.
func SendResult[T any](c *gin.Context, successStatus int, r result.Result[T], err error) {
	if err != nil {
		_ = c.Error(err)
		SendInternalServerError(c, "internal error")
		return
	}
	if r.IsFailure() {
		SendFailure(c, r.Failure())
		return
	}
	if successStatus == http.StatusNoContent {
		c.Status(http.StatusNoContent)
		return
	}
	SendSuccess(c, successStatus, r.Value())
}

// StatusFor sigue la convención "<Entidad>.<Motivo>" de los códigos.
func StatusFor(failure result.Error) int {
	switch {
	case failure.Code == result.CodeValidation:
		return http.StatusBadRequest
	case failure.Code == result.CodeConcurrency, failure.Code == result.CodeKeyReused:
		return http.StatusConflict
	case failure.Code == result.CodeUnavailable:
		return http.StatusServiceUnavailable
	case strings.HasSuffix(failure.Code, ".NotFound"):
		return http.StatusNotFound
	case strings.HasSuffix(failure.Code, ".Duplicated"):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// --- Helpers específicos para errores comunes ---

func SendBadRequest(c *gin.Context, message string) {
	SendError(c, http.StatusBadRequest, message)
}

func SendNotFound(c *gin.Context, message string) {
	SendError(c, http.StatusNotFound, message)
}

func SendInternalServerError(c *gin.Context, message string) {
	SendError(c, http.StatusInternalServerError, message)
}
