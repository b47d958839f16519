// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pages

import "github.com/shopspring/decimal"

// Transaction mirrors the backend's transaction resource.
type Transaction struct {
	ID           string          `json:"id"`
	Amount       decimal.Decimal `json:"amount"`
	Type         string          `json:"type"`
	Description  string          `json:"description"`
	Date         string          `json:"date"`
	CategoryID   string          `json:"category_id,omitempty"`
	CategoryName string          `json:"category_name,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	CreatedAt    string          `json:"created_at,omitempty"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	Total   int  `json:"total"`
	Pages   int  `json:"pages"`
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
}

// TransactionList is the body of GET /api/transactions.
type TransactionList struct {
	Transactions []Transaction `json:"transactions"`
	Pagination   Pagination    `json:"pagination"`
}

// Budget mirrors the backend's budget resource.
type Budget struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Amount       decimal.Decimal `json:"amount"`
	Spent        decimal.Decimal `json:"spent"`
	Remaining    decimal.Decimal `json:"remaining"`
	Percentage   float64         `json:"percentage"`
	Period       string          `json:"period"`
	CategoryID   string          `json:"category_id,omitempty"`
	CategoryName string          `json:"category_name,omitempty"`
}

// CategorySpend is one row of the top-categories breakdown.
type CategorySpend struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// Summary is the body of GET /api/analytics/summary.
type Summary struct {
	Period           string          `json:"period"`
	StartDate        string          `json:"start_date"`
	EndDate          string          `json:"end_date"`
	TotalIncome      decimal.Decimal `json:"total_income"`
	TotalExpenses    decimal.Decimal `json:"total_expenses"`
	NetSavings       decimal.Decimal `json:"net_savings"`
	TransactionCount int             `json:"transaction_count"`
	TopCategories    []CategorySpend `json:"top_categories"`
}

// Trend is one month of GET /api/analytics/trends.
type Trend struct {
	Month    string          `json:"month"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Net      decimal.Decimal `json:"net"`
}
