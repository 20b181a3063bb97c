package server

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"

	"taskmanager/internal/apperr"
	"taskmanager/internal/validation"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	valuesKey       = "validated_values"
)

// requestLogger logs one line per request and tags it with a request id.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(requestIDKey, reqID)
		c.Header(requestIDHeader, reqID)

		c.Next()

		status := c.Writer.Status()
		evt := s.logger.Info()
		switch {
		case status >= 500:
			evt = s.logger.Error()
		case status >= 400:
			evt = s.logger.Warn()
		}
		evt.Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("handled request")
	}
}

// securityHeaders sets the conservative response headers browsers honour.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		h.Set("X-DNS-Prefetch-Control", "off")
		c.Next()
	}
}

// requireStore stops every task request while the datastore is unreachable.
func (s *Server) requireStore(c *gin.Context) {
	if !s.ready(c) {
		abortWithError(c, apperr.Unavailable(nil))
		return
	}
	c.Next()
}

// validate runs the rules against the path and body and stores the coerced
// values for the handler.
func (s *Server) validate(rules []validation.Rule) gin.HandlerFunc {
	readsBody := false
	for _, r := range rules {
		if r.In == validation.InBody {
			readsBody = true
			break
		}
	}

	return func(c *gin.Context) {
		in := validation.Input{Params: make(map[string]string, len(c.Params))}
		for _, p := range c.Params {
			in.Params[p.Key] = p.Value
		}

		if readsBody {
			body, err := readBody(c)
			if err != nil {
				abortWithError(c, err)
				return
			}
			in.Body = body
		}

		values, err := validation.Check(rules, in)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(valuesKey, values)
		c.Next()
	}
}

func readBody(c *gin.Context) (map[string]any, error) {
	data, err := c.GetRawData()
	if err != nil {
		return nil, apperr.WithStatus(http.StatusBadRequest, "Unable to read request body", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}

	var body map[string]any
	if err := binding.JSON.BindBody(data, &body); err != nil {
		return nil, apperr.WithStatus(http.StatusBadRequest, "Malformed JSON body", err)
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, nil
}

func validatedValues(c *gin.Context) validation.Values {
	if v, ok := c.Get(valuesKey); ok {
		if values, ok := v.(validation.Values); ok {
			return values
		}
	}
	return validation.Values{}
}
