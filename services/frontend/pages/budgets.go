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
	"strings"

	"github.com/shopspring/decimal"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/pkg/validation"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/shell"
)

// BudgetForm is validated before a budget is created.
type BudgetForm struct {
	Name     string `json:"name" validate:"required,max=100"`
	Amount   string `json:"amount" validate:"required,amount"`
	Period   string `json:"period" validate:"required,oneof=weekly monthly yearly"`
	Category string `json:"category" validate:"omitempty,max=50"`
}

type newBudget struct {
	Name     string          `json:"name"`
	Amount   decimal.Decimal `json:"amount"`
	Period   string          `json:"period"`
	Category string          `json:"category,omitempty"`
}

// Budgets lists budgets with their spending and lets the user add one.
type Budgets struct {
	base
	budgets []Budget
	errors  map[string]string
}

// NewBudgets is the budgets page factory.
func NewBudgets(d shell.Deps) shell.Page {
	p := &Budgets{}
	p.init(d)
	return p
}

// Render fetches the budget list.
func (p *Budgets) Render(ctx context.Context, c shell.Container) error {
	p.attach(c)
	p.show(loading("Budgets"))

	ctx, done := p.scope(ctx)
	defer done()

	res := p.deps.API.Get(ctx, "/api/budgets", nil)
	if p.Destroyed() {
		return nil
	}
	if !res.Success {
		p.show(shell.View{
			Title:   "Budgets",
			Blocks:  []shell.Block{errorBlock("Could not load budgets", res)},
			Actions: []shell.Action{retryAction(&p.base)},
		})
		return nil
	}
	var body struct {
		Budgets []Budget `json:"budgets"`
	}
	if err := res.Decode(&body); err != nil {
		return fmt.Errorf("budgets: %w", err)
	}
	p.budgets = body.Budgets
	p.show(p.view())
	return nil
}

func (p *Budgets) view() shell.View {
	cur := p.currency()
	block := shell.Block{Kind: shell.BlockText, Title: "Budgets", Text: "No budgets yet. Add one to start tracking."}
	if len(p.budgets) > 0 {
		block = shell.Block{
			Kind:    shell.BlockTable,
			Title:   "Budgets",
			Headers: []string{"Budget", "Period", "Limit", "Spent", "Remaining", "Used"},
		}
		for _, b := range p.budgets {
			used := percent(b.Percentage)
			if b.Percentage >= 100 {
				used += " over"
			}
			block.Rows = append(block.Rows, []string{
				b.Name, b.Period, formatMoney(b.Amount, cur), formatMoney(b.Spent, cur), formatMoney(b.Remaining, cur), used,
			})
		}
	}
	return shell.View{
		Title:  "Budgets",
		Blocks: []shell.Block{block},
		Actions: []shell.Action{{
			Key:   "add",
			Label: "Add budget",
			Fields: []shell.Field{
				{Name: "name", Label: "Name"},
				{Name: "amount", Label: "Limit"},
				{Name: "period", Label: "Period", Options: []string{"monthly", "weekly", "yearly"}},
				{Name: "category", Label: "Category", Optional: true},
			},
			Run: p.guard(p.add),
		}},
		Errors: p.errors,
	}
}

func (p *Budgets) add(ctx context.Context, in shell.Input) error {
	form := BudgetForm{
		Name:     strings.TrimSpace(in.Get("name")),
		Amount:   strings.TrimSpace(in.Get("amount")),
		Period:   strings.ToLower(strings.TrimSpace(in.Get("period"))),
		Category: strings.TrimSpace(in.Get("category")),
	}
	if form.Period == "" {
		form.Period = "monthly"
	}
	if errs := validation.FieldErrors(validate, form); errs != nil {
		p.errors = errs
		p.show(p.view())
		return nil
	}
	amount, err := validation.ParseAmount(form.Amount)
	if err != nil {
		p.errors = map[string]string{"amount": err.Error()}
		p.show(p.view())
		return nil
	}

	reqCtx, done := p.scope(ctx)
	res := p.deps.API.Post(reqCtx, "/api/budgets", newBudget{
		Name: form.Name, Amount: amount, Period: form.Period, Category: form.Category,
	})
	done()
	if p.Destroyed() {
		return ErrPageClosed
	}
	if !res.Success {
		p.errors = nil
		p.failure("Could not add budget: " + res.Error)
		p.show(p.view())
		return nil
	}
	p.errors = nil
	p.success("Budget " + form.Name + " created")
	p.reload(ctx)
	return nil
}
