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
	"fmt"
	"net/http"
	"slices"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/apiclient"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/router"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/shell"
)

// Periods are the summary windows the backend understands.
var Periods = []string{"week", "month", "quarter", "year"}

// Analytics shows the period summary, top categories and monthly trends.
type Analytics struct {
	base
}

// NewAnalytics is the analytics page factory.
func NewAnalytics(d shell.Deps) shell.Page {
	p := &Analytics{}
	p.init(d)
	return p
}

func (p *Analytics) period() string {
	if v := p.deps.Match.Query.Get("period"); slices.Contains(Periods, v) {
		return v
	}
	return "month"
}

// Render loads the summary and the trends side by side.
func (p *Analytics) Render(ctx context.Context, c shell.Container) error {
	p.attach(c)
	p.show(loading("Analytics"))

	ctx, done := p.scope(ctx)
	defer done()

	period := p.period()
	batch := p.deps.API.Batch(ctx, []apiclient.Call{
		{Method: http.MethodGet, Path: "/api/analytics/summary?period=" + period},
		{Method: http.MethodGet, Path: "/api/analytics/trends"},
	})
	if p.Destroyed() {
		return nil
	}
	if batch.Succeeded == 0 {
		p.show(shell.View{
			Title:   "Analytics",
			Blocks:  []shell.Block{errorBlock("Analytics unavailable", batch.Results[0])},
			Actions: []shell.Action{retryAction(&p.base)},
		})
		return nil
	}

	cur := p.currency()
	view := shell.View{
		Title: "Analytics (" + period + ")",
		Actions: []shell.Action{{
			Key:    "period",
			Label:  "Change period",
			Fields: []shell.Field{{Name: "period", Label: "Period", Options: Periods, Default: period}},
			Run: p.guard(func(ctx context.Context, in shell.Input) error {
				next := in.Get("period")
				if !slices.Contains(Periods, next) {
					return fmt.Errorf("unknown period %q", next)
				}
				p.navigate(ctx, mergeQuery(p.deps.Match, map[string]string{"period": next}), router.NavigateOptions{})
				return nil
			}),
		}},
	}

	if sum := batch.Results[0]; sum.Success {
		var s Summary
		if err := sum.Decode(&s); err != nil {
			return fmt.Errorf("analytics summary: %w", err)
		}
		block, _ := summaryBlock(sum, cur)
		block.Title = fmt.Sprintf("%s to %s", s.StartDate, s.EndDate)
		view.Blocks = append(view.Blocks, block)

		top := shell.Block{Kind: shell.BlockTable, Title: "Top spending categories", Headers: []string{"Category", "Spent"}}
		for _, cs := range s.TopCategories {
			top.Rows = append(top.Rows, []string{cs.Category, formatMoney(cs.Amount, cur)})
		}
		if len(top.Rows) > 0 {
			view.Blocks = append(view.Blocks, top)
		}
	} else {
		view.Blocks = append(view.Blocks, errorBlock("Summary unavailable", sum))
	}

	if tr := batch.Results[1]; tr.Success {
		var body struct {
			Trends []Trend `json:"trends"`
		}
		if err := tr.Decode(&body); err != nil {
			return fmt.Errorf("analytics trends: %w", err)
		}
		block := shell.Block{Kind: shell.BlockTable, Title: "Monthly trends", Headers: []string{"Month", "Income", "Expenses", "Net"}}
		for _, t := range body.Trends {
			block.Rows = append(block.Rows, []string{t.Month, formatMoney(t.Income, cur), formatMoney(t.Expenses, cur), formatMoney(t.Net, cur)})
		}
		view.Blocks = append(view.Blocks, block)
	} else {
		view.Blocks = append(view.Blocks, errorBlock("Trends unavailable", tr))
	}

	p.show(view)
	return nil
}
