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
	"cmp"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/backend/middleware"
)

const (
	defaultPerPage   = 20
	maxPerPage       = 100
	maxDescription   = 200
	maxBudgetName    = 100
	topCategoryCount = 5
	defaultTrendSpan = 6
	maxTrendSpan     = 24
	uncategorized    = "Uncategorized"
)

var budgetPeriods = []string{"weekly", "monthly", "quarterly", "yearly"}

var summaryPeriods = []string{"week", "month", "quarter", "year"}

// =============================================================================
// Views
// =============================================================================

type transactionView struct {
	ID           string          `json:"id"`
	Amount       decimal.Decimal `json:"amount"`
	Type         string          `json:"type"`
	Description  string          `json:"description"`
	Date         string          `json:"date"`
	CategoryID   string          `json:"category_id,omitempty"`
	CategoryName string          `json:"category_name,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	CreatedAt    string          `json:"created_at"`
}

func (s *Server) viewTransaction(t Transaction) transactionView {
	v := transactionView{
		ID:          t.ID,
		Amount:      t.Amount,
		Type:        t.Type,
		Description: t.Description,
		Date:        t.Date.Format(time.DateOnly),
		CategoryID:  t.CategoryID,
		Notes:       t.Notes,
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
	}
	if cat, ok := s.store.CategoryByID(t.CategoryID); ok {
		v.CategoryName = cat.Name
	}
	return v
}

type budgetView struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Amount       decimal.Decimal `json:"amount"`
	Spent        decimal.Decimal `json:"spent"`
	Remaining    decimal.Decimal `json:"remaining"`
	Percentage   float64         `json:"percentage"`
	Period       string          `json:"period"`
	StartDate    string          `json:"start_date"`
	EndDate      string          `json:"end_date"`
	CategoryID   string          `json:"category_id,omitempty"`
	CategoryName string          `json:"category_name,omitempty"`
}

// viewBudget computes spending from the expenses inside the budget's
// current period, restricted to its category when it has one.
func (s *Server) viewBudget(b Budget, txns []Transaction, now time.Time) budgetView {
	start, end, _ := periodWindow(b.Period, now)
	spent := decimal.Zero
	for _, t := range txns {
		if t.Type != "expense" || !within(t.Date, start, end) {
			continue
		}
		if b.CategoryID != "" && t.CategoryID != b.CategoryID {
			continue
		}
		spent = spent.Add(t.Amount)
	}

	v := budgetView{
		ID:         b.ID,
		Name:       b.Name,
		Amount:     b.Amount,
		Spent:      spent,
		Remaining:  b.Amount.Sub(spent),
		Period:     b.Period,
		StartDate:  start.Format(time.DateOnly),
		EndDate:    end.Format(time.DateOnly),
		CategoryID: b.CategoryID,
	}
	if b.Amount.IsPositive() {
		v.Percentage = spent.Div(b.Amount).Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64()
	}
	if cat, ok := s.store.CategoryByID(b.CategoryID); ok {
		v.CategoryName = cat.Name
	}
	return v
}

// =============================================================================
// Transactions
// =============================================================================

func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return n
}

func (s *Server) handleListTransactions(c *gin.Context) {
	userID := middleware.GetPrincipal(c).UserID

	page := min(max(queryInt(c, "page", 1), 1), math.MaxInt/maxPerPage)
	perPage := min(max(queryInt(c, "per_page", defaultPerPage), 1), maxPerPage)
	typ := c.Query("type")
	if typ != "" && typ != "income" && typ != "expense" {
		s.writeError(c, badRequest("Invalid transaction type"))
		return
	}

	list, total := s.store.ListTransactions(userID, TransactionFilter{
		Type:    typ,
		Search:  c.Query("search"),
		Page:    page,
		PerPage: perPage,
	})
	views := make([]transactionView, len(list))
	for i, t := range list {
		views[i] = s.viewTransaction(t)
	}
	pages := (total + perPage - 1) / perPage

	c.JSON(http.StatusOK, gin.H{
		"transactions": views,
		"pagination": gin.H{
			"page":     page,
			"per_page": perPage,
			"total":    total,
			"pages":    pages,
			"has_next": page < pages,
			"has_prev": page > 1,
		},
	})
}

type transactionRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
	Category    string          `json:"category"`
	CategoryID  string          `json:"category_id"`
	Notes       string          `json:"notes"`
}

// resolveCategory accepts an ID or a name; both empty means none.
func (s *Server) resolveCategory(id, name string) (string, error) {
	switch {
	case id != "":
		if _, ok := s.store.CategoryByID(id); !ok {
			return "", badRequest("Unknown category")
		}
		return id, nil
	case strings.TrimSpace(name) != "":
		cat, ok := s.store.CategoryByName(name)
		if !ok {
			return "", badRequest("Unknown category: " + strings.TrimSpace(name))
		}
		return cat.ID, nil
	}
	return "", nil
}

func (s *Server) handleCreateTransaction(c *gin.Context) {
	userID := middleware.GetPrincipal(c).UserID

	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, badRequest("Invalid JSON body"))
		return
	}
	req.Description = strings.TrimSpace(req.Description)
	for _, f := range []struct{ name, value string }{
		{"description", req.Description},
		{"date", req.Date},
		{"type", req.Type},
	} {
		if f.value == "" {
			s.writeError(c, badRequest(f.name+" is required"))
			return
		}
	}
	if !validAmount(req.Amount) {
		s.writeError(c, badRequest("Invalid amount"))
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		s.writeError(c, badRequest("Invalid date format (YYYY-MM-DD)"))
		return
	}
	if req.Type != "income" && req.Type != "expense" {
		s.writeError(c, badRequest("Invalid transaction type"))
		return
	}
	if len(req.Description) > maxDescription {
		s.writeError(c, badRequest("Description must be at most 200 characters"))
		return
	}
	catID, err := s.resolveCategory(req.CategoryID, req.Category)
	if err != nil {
		s.writeError(c, err)
		return
	}

	t := s.store.AddTransaction(Transaction{
		UserID:      userID,
		Amount:      req.Amount.Round(2),
		Type:        req.Type,
		Description: req.Description,
		Date:        date,
		CategoryID:  catID,
		Notes:       strings.TrimSpace(req.Notes),
		CreatedAt:   s.clock.Now(),
	})
	s.telemetry.RecordCreated(c.Request.Context(), "transaction")
	c.JSON(http.StatusCreated, gin.H{
		"message":     "Transaction created successfully",
		"transaction": s.viewTransaction(t),
	})
}

func (s *Server) handleGetTransaction(c *gin.Context) {
	t, err := s.store.Transaction(middleware.GetPrincipal(c).UserID, c.Param("id"))
	if err != nil {
		s.writeError(c, notFound("Transaction not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": s.viewTransaction(t)})
}

func (s *Server) handleDeleteTransaction(c *gin.Context) {
	if err := s.store.DeleteTransaction(middleware.GetPrincipal(c).UserID, c.Param("id")); err != nil {
		s.writeError(c, notFound("Transaction not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Transaction deleted"})
}

// =============================================================================
// Budgets
// =============================================================================

func (s *Server) handleListBudgets(c *gin.Context) {
	userID := middleware.GetPrincipal(c).UserID
	txns := s.store.Transactions(userID)
	now := s.clock.Now()

	budgets := s.store.Budgets(userID)
	views := make([]budgetView, len(budgets))
	for i, b := range budgets {
		views[i] = s.viewBudget(b, txns, now)
	}
	c.JSON(http.StatusOK, gin.H{"budgets": views})
}

type budgetRequest struct {
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	Period     string          `json:"period"`
	Category   string          `json:"category"`
	CategoryID string          `json:"category_id"`
}

func (s *Server) handleCreateBudget(c *gin.Context) {
	userID := middleware.GetPrincipal(c).UserID

	var req budgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, badRequest("Invalid JSON body"))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Period == "" {
		req.Period = "monthly"
	}
	switch {
	case req.Name == "":
		s.writeError(c, badRequest("name is required"))
		return
	case len(req.Name) > maxBudgetName:
		s.writeError(c, badRequest("Budget name must be at most 100 characters"))
		return
	case !validAmount(req.Amount):
		s.writeError(c, badRequest("Invalid amount"))
		return
	case !slices.Contains(budgetPeriods, req.Period):
		s.writeError(c, badRequest("Invalid budget period"))
		return
	}
	catID, err := s.resolveCategory(req.CategoryID, req.Category)
	if err != nil {
		s.writeError(c, err)
		return
	}

	now := s.clock.Now()
	b := s.store.AddBudget(Budget{
		UserID:     userID,
		Name:       req.Name,
		Amount:     req.Amount.Round(2),
		Period:     req.Period,
		CategoryID: catID,
		CreatedAt:  now,
	})
	s.telemetry.RecordCreated(c.Request.Context(), "budget")
	c.JSON(http.StatusCreated, gin.H{
		"message": "Budget created successfully",
		"budget":  s.viewBudget(b, s.store.Transactions(userID), now),
	})
}

// =============================================================================
// Analytics
// =============================================================================

type categorySpend struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

func (s *Server) handleSummary(c *gin.Context) {
	userID := middleware.GetPrincipal(c).UserID
	period := c.DefaultQuery("period", "month")
	if !slices.Contains(summaryPeriods, period) {
		s.writeError(c, badRequest("Invalid period"))
		return
	}
	start, end, _ := periodWindow(period, s.clock.Now())

	income, expenses := decimal.Zero, decimal.Zero
	byCategory := make(map[string]decimal.Decimal)
	count := 0
	for _, t := range s.store.Transactions(userID) {
		if !within(t.Date, start, end) {
			continue
		}
		count++
		if t.Type == "income" {
			income = income.Add(t.Amount)
			continue
		}
		expenses = expenses.Add(t.Amount)
		name := uncategorized
		if cat, ok := s.store.CategoryByID(t.CategoryID); ok {
			name = cat.Name
		}
		byCategory[name] = byCategory[name].Add(t.Amount)
	}

	top := make([]categorySpend, 0, len(byCategory))
	for name, amount := range byCategory {
		top = append(top, categorySpend{Category: name, Amount: amount})
	}
	slices.SortFunc(top, func(a, b categorySpend) int {
		if d := b.Amount.Cmp(a.Amount); d != 0 {
			return d
		}
		return cmp.Compare(a.Category, b.Category)
	})
	if len(top) > topCategoryCount {
		top = top[:topCategoryCount]
	}

	c.JSON(http.StatusOK, gin.H{
		"period":            period,
		"start_date":        start.Format(time.DateOnly),
		"end_date":          end.Format(time.DateOnly),
		"total_income":      income,
		"total_expenses":    expenses,
		"net_savings":       income.Sub(expenses),
		"transaction_count": count,
		"top_categories":    top,
	})
}

type trendView struct {
	Month    string          `json:"month"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Net      decimal.Decimal `json:"net"`
}

// handleTrends reports income and expenses per calendar month, oldest
// first, ending with the current month.
func (s *Server) handleTrends(c *gin.Context) {
	userID := middleware.GetPrincipal(c).UserID
	span := min(max(queryInt(c, "months", defaultTrendSpan), 1), maxTrendSpan)

	y, m, _ := s.clock.Now().Date()
	current := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	first := current.AddDate(0, -(span - 1), 0)

	trends := make([]trendView, span)
	for i := range trends {
		trends[i] = trendView{
			Month:    first.AddDate(0, i, 0).Format("2006-01"),
			Income:   decimal.Zero,
			Expenses: decimal.Zero,
		}
	}
	for _, t := range s.store.Transactions(userID) {
		if t.Date.Before(first) {
			continue
		}
		ty, tm, _ := t.Date.Date()
		i := (ty-first.Year())*12 + int(tm) - int(first.Month())
		if i < 0 || i >= span {
			continue
		}
		if t.Type == "income" {
			trends[i].Income = trends[i].Income.Add(t.Amount)
		} else {
			trends[i].Expenses = trends[i].Expenses.Add(t.Amount)
		}
	}
	for i := range trends {
		trends[i].Net = trends[i].Income.Sub(trends[i].Expenses)
	}
	c.JSON(http.StatusOK, gin.H{"trends": trends})
}

// =============================================================================
// Categories
// =============================================================================

func (s *Server) handleCategories(c *gin.Context) {
	cats := s.store.Categories()
	if typ := c.Query("type"); typ != "" {
		cats = slices.DeleteFunc(cats, func(cat Category) bool { return cat.Type != typ })
	}
	c.JSON(http.StatusOK, gin.H{"categories": cats})
}
