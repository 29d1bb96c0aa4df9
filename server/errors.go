/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suparena/dataprovider/errors"
	"go.uber.org/zap"
)

// statusFor maps an error onto the HTTP status answered to the UI.
func statusFor(err error) int {
	switch {
	case errors.IsValidationError(err):
		return http.StatusBadRequest
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsAlreadyExists(err), errors.IsConditionFailed(err):
		return http.StatusConflict
	case errors.IsUnsupported(err):
		return http.StatusMethodNotAllowed
	case errors.IsTransport(err):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}
	if code := errors.StatusCode(err); code != 0 {
		body["upstreamStatus"] = code
	}
	if errors.IsAuthFailure(err) {
		// the UI drops its session on this flag
		body["authFailure"] = true
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("resource", c.Param("resource")),
			zap.Error(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}
