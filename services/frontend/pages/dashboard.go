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

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/apiclient"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/shell"
)

// Dashboard shows the monthly summary, recent transactions and budgets.
type Dashboard struct {
	base
}

// NewDashboard is the dashboard page factory.
func NewDashboard(d shell.Deps) shell.Page {
	p := &Dashboard{}
	p.init(d)
	return p
}

// Render loads the three dashboard sections concurrently. A failing
// section shows an error block; when every section fails the page fails.
func (p *Dashboard) Render(ctx context.Context, c shell.Container) error {
	p.attach(c)
	p.show(loading("Dashboard"))

	ctx, done := p.scope(ctx)
	defer done()

	batch := p.deps.API.Batch(ctx, []apiclient.Call{
		{Method: http.MethodGet, Path: "/api/analytics/summary?period=month"},
		{Method: http.MethodGet, Path: "/api/transactions?per_page=5"},
		{Method: http.MethodGet, Path: "/api/budgets"},
	})
	if p.Destroyed() {
		return nil
	}
	if batch.Succeeded == 0 {
		return fmt.Errorf("dashboard unavailable: %s", batch.Results[0].Error)
	}

	cur := p.currency()
	view := shell.View{
		Title: "Dashboard",
		Links: []shell.Link{
			{Label: "All transactions", Href: "/transactions"},
			{Label: "Analytics", Href: "/analytics"},
			{Label: "Profile", Href: "/profile"},
		},
		Actions: []shell.Action{{Key: "refresh", Label: "Refresh", Run: p.guard(func(ctx context.Context, _ shell.Input) error {
			p.reload(ctx)
			return nil
		})}},
	}

	if b, err := summaryBlock(batch.Results[0], cur); err != nil {
		view.Blocks = append(view.Blocks, shell.Block{Kind: shell.BlockError, Title: "Summary unavailable", Text: err.Error()})
	} else {
		view.Blocks = append(view.Blocks, b)
	}

	if b, err := recentBlock(batch.Results[1], cur); err != nil {
		view.Blocks = append(view.Blocks, shell.Block{Kind: shell.BlockError, Title: "Recent transactions unavailable", Text: err.Error()})
	} else {
		view.Blocks = append(view.Blocks, b)
	}

	if b, err := budgetsBlock(batch.Results[2], cur); err != nil {
		view.Blocks = append(view.Blocks, shell.Block{Kind: shell.BlockError, Title: "Budgets unavailable", Text: err.Error()})
	} else {
		view.Blocks = append(view.Blocks, b)
	}

	p.show(view)
	return nil
}

func resultErr(res apiclient.Result) error {
	if res.Success {
		return nil
	}
	if res.Error == "" {
		return errors.New("request failed")
	}
	return errors.New(res.Error)
}

func summaryBlock(res apiclient.Result, cur string) (shell.Block, error) {
	if err := resultErr(res); err != nil {
		return shell.Block{}, err
	}
	var s Summary
	if err := res.Decode(&s); err != nil {
		return shell.Block{}, err
	}
	return shell.Block{
		Kind:  shell.BlockStats,
		Title: "This month",
		Stats: []shell.Stat{
			{Label: "Income", Value: formatMoney(s.TotalIncome, cur)},
			{Label: "Expenses", Value: formatMoney(s.TotalExpenses, cur)},
			{Label: "Net savings", Value: formatMoney(s.NetSavings, cur)},
			{Label: "Transactions", Value: fmt.Sprint(s.TransactionCount)},
		},
	}, nil
}

func recentBlock(res apiclient.Result, cur string) (shell.Block, error) {
	if err := resultErr(res); err != nil {
		return shell.Block{}, err
	}
	var list TransactionList
	if err := res.Decode(&list); err != nil {
		return shell.Block{}, err
	}
	b := shell.Block{Kind: shell.BlockTable, Title: "Recent transactions", Headers: []string{"Date", "Description", "Category", "Amount"}}
	if len(list.Transactions) == 0 {
		b.Kind, b.Text = shell.BlockText, "No transactions yet."
		return b, nil
	}
	for _, t := range list.Transactions {
		b.Rows = append(b.Rows, []string{t.Date, t.Description, t.CategoryName, signedAmount(t, cur)})
	}
	return b, nil
}

func budgetsBlock(res apiclient.Result, cur string) (shell.Block, error) {
	if err := resultErr(res); err != nil {
		return shell.Block{}, err
	}
	var body struct {
		Budgets []Budget `json:"budgets"`
	}
	if err := res.Decode(&body); err != nil {
		return shell.Block{}, err
	}
	b := shell.Block{Kind: shell.BlockTable, Title: "Budgets", Headers: []string{"Budget", "Spent", "Limit", "Used"}}
	if len(body.Budgets) == 0 {
		b.Kind, b.Text = shell.BlockText, "No budgets yet."
		return b, nil
	}
	for _, bud := range body.Budgets {
		b.Rows = append(b.Rows, []string{bud.Name, formatMoney(bud.Spent, cur), formatMoney(bud.Amount, cur), percent(bud.Percentage)})
	}
	return b, nil
}

func signedAmount(t Transaction, cur string) string {
	if t.Type == "expense" {
		return formatMoney(t.Amount.Neg(), cur)
	}
	return formatMoney(t.Amount, cur)
}
