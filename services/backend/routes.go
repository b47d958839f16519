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
	"github.com/gin-gonic/gin"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/backend/middleware"
)

// setupRoutes registers every endpoint on r.
//
//	/health /ready /live /metrics          public
//	/api/auth/register /api/auth/login     public
//	/api/auth/refresh                      refresh token
//	everything else under /api             access token
func (s *Server) setupRoutes(r *gin.Engine) {
	r.GET("/health", s.handleHealth)
	r.GET("/ready", s.handleReady)
	r.GET("/live", s.handleLive)
	r.GET("/metrics", gin.WrapH(s.telemetry.Handler()))

	api := r.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/register", s.handleRegister)
		auth.POST("/login", s.handleLogin)
		auth.POST("/refresh", middleware.RequireAuth(s.tokenValidator(RefreshToken)), s.handleRefresh)
	}

	protected := api.Group("", middleware.RequireAuth(s.tokenValidator(AccessToken)))
	{
		protected.POST("/auth/logout", s.handleLogout)
		protected.GET("/auth/validate", s.handleValidate)
		protected.GET("/auth/me", s.handleMe)

		protected.GET("/transactions", s.handleListTransactions)
		protected.POST("/transactions", s.handleCreateTransaction)
		protected.GET("/transactions/:id", s.handleGetTransaction)
		protected.PUT("/transactions/:id", s.handleUpdateTransaction)
		protected.DELETE("/transactions/:id", s.handleDeleteTransaction)

		protected.GET("/budgets", s.handleListBudgets)
		protected.POST("/budgets", s.handleCreateBudget)

		protected.GET("/analytics/summary", s.handleSummary)
		protected.GET("/analytics/trends", s.handleTrends)

		protected.GET("/categories", s.handleCategories)

		protected.GET("/users/profile", s.handleGetProfile)
		protected.PUT("/users/profile", s.handleUpdateProfile)
		protected.POST("/users/avatar", s.handleUploadAvatar)
		protected.GET("/users/avatar", s.handleGetAvatar)
	}
}
