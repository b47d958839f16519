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
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/backend/middleware"
)

const (
	maxAvatarBytes = 2 << 20
	avatarPath     = "/api/users/avatar"
)

var avatarTypes = map[string]bool{"image/png": true, "image/jpeg": true, "image/gif": true}

// =============================================================================
// Profile
// =============================================================================

func (s *Server) handleGetProfile(c *gin.Context) {
	user, err := s.store.UserByID(middleware.GetPrincipal(c).UserID)
	if err != nil {
		s.writeError(c, notFound("User not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": s.viewProfile(user)})
}

// profileRequest fields are optional; a nil field keeps its value.
type profileRequest struct {
	Email     *string `json:"email"`
	Username  *string `json:"username"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Currency  *string `json:"currency"`
}

func (r *profileRequest) check() error {
	trim := func(p *string, name string) error {
		if p == nil {
			return nil
		}
		*p = strings.TrimSpace(*p)
		if *p == "" {
			return badRequest(name + " cannot be empty")
		}
		return nil
	}
	for _, f := range []struct {
		p    *string
		name string
	}{
		{r.Email, "email"},
		{r.Username, "username"},
		{r.FirstName, "first_name"},
		{r.LastName, "last_name"},
		{r.Currency, "currency"},
	} {
		if err := trim(f.p, f.name); err != nil {
			return err
		}
	}
	if r.Email != nil && !validEmail(*r.Email) {
		return badRequest("Invalid email format")
	}
	if r.Currency != nil {
		*r.Currency = strings.ToUpper(*r.Currency)
		if !currencies[*r.Currency] {
			return badRequest("Unsupported currency")
		}
	}
	return nil
}

func (r *profileRequest) apply(u *User) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&u.Email, r.Email)
	set(&u.Username, r.Username)
	set(&u.FirstName, r.FirstName)
	set(&u.LastName, r.LastName)
	set(&u.Currency, r.Currency)
}

func (s *Server) handleUpdateProfile(c *gin.Context) {
	userID := middleware.GetPrincipal(c).UserID

	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, badRequest("Invalid JSON body"))
		return
	}
	if err := req.check(); err != nil {
		s.writeError(c, err)
		return
	}
	user, err := s.store.UpdateProfile(userID, req.apply)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.logger.Info("profile updated", "user_id", userID)
	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"user":    s.viewProfile(user),
	})
}

// viewProfile is viewUser plus the avatar link when one is stored.
func (s *Server) viewProfile(u User) userView {
	v := viewUser(u)
	if _, err := s.store.Avatar(u.ID); err == nil {
		v.AvatarURL = avatarPath
	}
	return v
}

// =============================================================================
// Avatar
// =============================================================================

func (s *Server) handleUploadAvatar(c *gin.Context) {
	userID := middleware.GetPrincipal(c).UserID

	header, err := c.FormFile("avatar")
	if err != nil {
		s.writeError(c, badRequest("No avatar file provided"))
		return
	}
	if header.Size > maxAvatarBytes {
		s.writeError(c, badRequest("Avatar must be at most 2MB"))
		return
	}
	f, err := header.Open()
	if err != nil {
		s.writeError(c, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxAvatarBytes+1))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if len(data) > maxAvatarBytes {
		s.writeError(c, badRequest("Avatar must be at most 2MB"))
		return
	}
	contentType := http.DetectContentType(data)
	if !avatarTypes[contentType] {
		s.writeError(c, badRequest("Invalid file type"))
		return
	}

	if err := s.store.SetAvatar(userID, Avatar{
		ContentType: contentType,
		Data:        data,
		UploadedAt:  s.clock.Now(),
	}); err != nil {
		s.writeError(c, err)
		return
	}
	s.telemetry.RecordCreated(c.Request.Context(), "avatar")
	c.JSON(http.StatusOK, gin.H{
		"message":    "Avatar uploaded successfully",
		"avatar_url": avatarPath,
	})
}

func (s *Server) handleGetAvatar(c *gin.Context) {
	a, err := s.store.Avatar(middleware.GetPrincipal(c).UserID)
	if err != nil {
		s.writeError(c, notFound("No avatar uploaded"))
		return
	}
	c.Data(http.StatusOK, a.ContentType, a.Data)
}

// =============================================================================
// Transaction edits
// =============================================================================

// transactionPatch mirrors transactionRequest with every field optional.
type transactionPatch struct {
	Amount      *decimal.Decimal `json:"amount"`
	Type        *string          `json:"type"`
	Description *string          `json:"description"`
	Date        *string          `json:"date"`
	Category    *string          `json:"category"`
	CategoryID  *string          `json:"category_id"`
	Notes       *string          `json:"notes"`
}

func (s *Server) handleUpdateTransaction(c *gin.Context) {
	userID := middleware.GetPrincipal(c).UserID
	id := c.Param("id")
	if _, err := s.store.Transaction(userID, id); err != nil {
		s.writeError(c, notFound("Transaction not found"))
		return
	}

	var req transactionPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, badRequest("Invalid JSON body"))
		return
	}

	var edits []func(*Transaction)
	if req.Amount != nil {
		if !validAmount(*req.Amount) {
			s.writeError(c, badRequest("Invalid amount"))
			return
		}
		amount := req.Amount.Round(2)
		edits = append(edits, func(t *Transaction) { t.Amount = amount })
	}
	if req.Type != nil {
		typ := *req.Type
		if typ != "income" && typ != "expense" {
			s.writeError(c, badRequest("Invalid transaction type"))
			return
		}
		edits = append(edits, func(t *Transaction) { t.Type = typ })
	}
	if req.Description != nil {
		desc := strings.TrimSpace(*req.Description)
		switch {
		case desc == "":
			s.writeError(c, badRequest("description is required"))
			return
		case len(desc) > maxDescription:
			s.writeError(c, badRequest("Description must be at most 200 characters"))
			return
		}
		edits = append(edits, func(t *Transaction) { t.Description = desc })
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			s.writeError(c, badRequest("Invalid date format (YYYY-MM-DD)"))
			return
		}
		edits = append(edits, func(t *Transaction) { t.Date = date })
	}
	if req.CategoryID != nil || req.Category != nil {
		catID, err := s.resolveCategory(deref(req.CategoryID), deref(req.Category))
		if err != nil {
			s.writeError(c, err)
			return
		}
		edits = append(edits, func(t *Transaction) { t.CategoryID = catID })
	}
	if req.Notes != nil {
		notes := strings.TrimSpace(*req.Notes)
		edits = append(edits, func(t *Transaction) { t.Notes = notes })
	}

	t, err := s.store.UpdateTransaction(userID, id, func(t *Transaction) {
		for _, edit := range edits {
			edit(t)
		}
	})
	if err != nil {
		s.writeError(c, notFound("Transaction not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "Transaction updated successfully",
		"transaction": s.viewTransaction(t),
	})
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
