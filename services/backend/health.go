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
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) timestamp() string {
	return s.clock.Now().UTC().Format(time.RFC3339)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"timestamp":      s.timestamp(),
		"version":        Version,
		"storage":        "memory",
		"uptime_seconds": int64(s.clock.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) handleReady(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready", "timestamp": s.timestamp()})
}

func (s *Server) handleLive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive", "timestamp": s.timestamp()})
}
