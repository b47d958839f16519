// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backend

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// apiError is a failure with a fixed status and client-facing message.
type apiError struct {
	status  int
	message string
	details []string
	extra   gin.H
}

func (e *apiError) Error() string { return e.message }

func badRequest(msg string, details ...string) error {
	return &apiError{status: http.StatusBadRequest, message: msg, details: details}
}

func notFound(msg string) error {
	return &apiError{status: http.StatusNotFound, message: msg}
}

// writeError maps err to a status code and a {"error": ...} body.
// Unexpected errors are logged and answered with a generic 500.
func (s *Server) writeError(c *gin.Context, err error) {
	var ae *apiError
	switch {
	case errors.As(err, &ae):
		body := gin.H{"error": ae.message}
		if len(ae.details) > 0 {
			body["details"] = ae.details
		}
		for k, v := range ae.extra {
			body[k] = v
		}
		c.JSON(ae.status, body)
	case errors.Is(err, ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
	case errors.Is(err, ErrUsernameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "Username already taken"})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found"})
	default:
		s.logger.Error("request error", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
