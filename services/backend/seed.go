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
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Demo account credentials.
const (
	DemoEmail    = "demo@fintrack.dev"
	DemoPassword = "Demo@2468!"
)

type seedTransaction struct {
	daysAgo     int
	amount      string
	typ         string
	description string
	category    string
}

var demoTransactions = []seedTransaction{
	{0, "42.80", "expense", "Groceries at the market", "Food & Dining"},
	{1, "3200.00", "income", "Monthly salary", "Salary"},
	{2, "18.50", "expense", "Cinema tickets", "Entertainment"},
	{3, "65.00", "expense", "Electricity bill", "Bills & Utilities"},
	{5, "12.40", "expense", "Bus pass top-up", "Transportation"},
	{8, "450.00", "income", "Logo design project", "Freelance"},
	{12, "89.99", "expense", "Running shoes", "Shopping"},
	{17, "27.30", "expense", "Pharmacy", "Healthcare"},
	{24, "54.10", "expense", "Dinner with friends", "Food & Dining"},
	{33, "3200.00", "income", "Monthly salary", "Salary"},
	{38, "120.00", "expense", "Internet and phone", "Bills & Utilities"},
	{45, "230.00", "expense", "Weekend train trip", "Travel"},
	{63, "3200.00", "income", "Monthly salary", "Salary"},
	{70, "35.00", "expense", "Online course", "Education"},
}

var demoBudgets = []struct {
	name, amount, period, category string
}{
	{"Food", "400.00", "monthly", "Food & Dining"},
	{"Bills", "250.00", "monthly", "Bills & Utilities"},
	{"Fun money", "60.00", "weekly", "Entertainment"},
}

// SeedDemo creates the demo account with sample transactions and
// budgets relative to clock's current date.
func SeedDemo(store *Store, clock clockwork.Clock, bcryptCost int) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hashing demo password: %w", err)
	}
	now := clock.Now()
	user, err := store.CreateUser(User{
		Email:        DemoEmail,
		Username:     "demo",
		FirstName:    "Demo",
		LastName:     "User",
		Currency:     "USD",
		PasswordHash: hash,
		CreatedAt:    now,
	})
	if err != nil {
		return err
	}

	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	for i, st := range demoTransactions {
		cat, ok := store.CategoryByName(st.category)
		if !ok {
			return fmt.Errorf("demo category %q missing", st.category)
		}
		store.AddTransaction(Transaction{
			UserID:      user.ID,
			Amount:      decimal.RequireFromString(st.amount),
			Type:        st.typ,
			Description: st.description,
			Date:        today.AddDate(0, 0, -st.daysAgo),
			CategoryID:  cat.ID,
			CreatedAt:   now.Add(-time.Duration(len(demoTransactions)-i) * time.Minute),
		})
	}
	for _, sb := range demoBudgets {
		cat, _ := store.CategoryByName(sb.category)
		store.AddBudget(Budget{
			UserID:     user.ID,
			Name:       sb.name,
			Amount:     decimal.RequireFromString(sb.amount),
			Period:     sb.period,
			CategoryID: cat.ID,
			CreatedAt:  now,
		})
	}
	return nil
}
