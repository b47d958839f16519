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

import "github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/shell"

// Entry binds a route pattern to a page factory.
type Entry struct {
	Pattern   string
	Name      string
	Protected bool
	Factory   shell.Factory
}

// Catalog returns the application's pages in registration order.
func Catalog() []Entry {
	return []Entry{
		{Pattern: "/login", Name: "login", Factory: NewLogin},
		{Pattern: "/register", Name: "register", Factory: NewRegister},
		{Pattern: "/dashboard", Name: "dashboard", Protected: true, Factory: NewDashboard},
		{Pattern: "/transactions", Name: "transactions", Protected: true, Factory: NewTransactions},
		{Pattern: "/transactions/:id", Name: "transaction", Protected: true, Factory: NewTransactionDetail},
		{Pattern: "/budgets", Name: "budgets", Protected: true, Factory: NewBudgets},
		{Pattern: "/analytics", Name: "analytics", Protected: true, Factory: NewAnalytics},
		{Pattern: "/profile", Name: "profile", Protected: true, Factory: NewProfile},
	}
}
