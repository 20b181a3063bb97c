package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskmanager/internal/apperr"
)

type errorBody struct {
	Message string              `json:"message"`
	Details []apperr.FieldError `json:"details,omitempty"`
}

// abortWithError hands err to handleErrors and stops the chain.
func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// handleErrors is the only place that turns failures into responses.
func (s *Server) handleErrors(c *gin.Context) {
	c.Next()

	last := c.Errors.Last()
	if last == nil {
		return
	}

	status, body := normalize(last.Err)
	evt := s.logger.Debug()
	if status >= http.StatusInternalServerError {
		evt = s.logger.Error()
	}
	evt.Err(last.Err).
		Str("path", c.Request.URL.Path).
		Int("status", status).
		Msg("request failed")

	if c.Writer.Written() {
		return
	}
	c.JSON(status, gin.H{"error": body})
}

// normalize maps a failure to its status code and public error body.
func normalize(err error) (int, errorBody) {
	e, ok := apperr.As(err)
	if !ok {
		return http.StatusInternalServerError, errorBody{Message: messageOr(err.Error())}
	}

	switch e.Kind {
	case apperr.KindInvalidID:
		return http.StatusBadRequest, errorBody{Message: "Invalid ID format"}
	case apperr.KindSchema:
		return http.StatusUnprocessableEntity, errorBody{Message: "Model validation failed", Details: e.Details}
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity, errorBody{Message: "Validation failed", Details: e.Details}
	case apperr.KindNotFound:
		return http.StatusNotFound, errorBody{Message: messageOr(e.Message, "Not found")}
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable, errorBody{Message: "Database not connected"}
	case apperr.KindRouteNotFound:
		return http.StatusNotFound, errorBody{Message: "Route not found"}
	case apperr.KindInternal:
		status := e.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return status, errorBody{Message: messageOr(e.Message)}
	default:
		return http.StatusInternalServerError, errorBody{Message: messageOr("")}
	}
}

func messageOr(msg string, fallback ...string) string {
	if msg != "" {
		return msg
	}
	if len(fallback) > 0 {
		return fallback[0]
	}
	return "Internal Server Error"
}
