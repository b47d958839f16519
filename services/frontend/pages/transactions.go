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
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/pkg/validation"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/router"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/shell"
)

// TransactionsPerPage is the listing page size.
const TransactionsPerPage = 20

// TransactionForm is validated before a transaction is created.
type TransactionForm struct {
	Amount      string `json:"amount" validate:"required,amount"`
	Type        string `json:"type" validate:"required,oneof=income expense"`
	Description string `json:"description" validate:"required,max=200"`
	Date        string `json:"date" validate:"required,isodate"`
	Category    string `json:"category" validate:"omitempty,max=50"`
}

// TransactionEdit is validated before a transaction is updated. Blank
// fields are left unchanged.
type TransactionEdit struct {
	Amount      string `json:"amount" validate:"omitempty,amount"`
	Type        string `json:"type" validate:"omitempty,oneof=income expense"`
	Description string `json:"description" validate:"omitempty,max=200"`
	Date        string `json:"date" validate:"omitempty,isodate"`
	Category    string `json:"category" validate:"omitempty,max=50"`
	Notes       string `json:"notes" validate:"omitempty,max=500"`
}

type newTransaction struct {
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
	Category    string          `json:"category,omitempty"`
}

// =============================================================================
// Transactions
// =============================================================================

// Transactions lists the user's transactions. The page number and the
// type and search filters live in the route query so that back and
// forward restore them.
type Transactions struct {
	base
	list   TransactionList
	errors map[string]string
	draft  shell.Input
}

// NewTransactions is the transaction listing factory.
func NewTransactions(d shell.Deps) shell.Page {
	p := &Transactions{draft: shell.Input{}}
	p.init(d)
	return p
}

// Render fetches the requested page of transactions.
func (p *Transactions) Render(ctx context.Context, c shell.Container) error {
	p.attach(c)
	p.show(loading("Transactions"))

	ctx, done := p.scope(ctx)
	defer done()

	res := p.deps.API.Get(ctx, "/api/transactions", p.query())
	if p.Destroyed() {
		return nil
	}
	if !res.Success {
		p.show(shell.View{
			Title:   "Transactions",
			Blocks:  []shell.Block{errorBlock("Could not load transactions", res)},
			Actions: []shell.Action{retryAction(&p.base)},
		})
		return nil
	}
	if err := res.Decode(&p.list); err != nil {
		return fmt.Errorf("transactions: %w", err)
	}
	p.show(p.view())
	return nil
}

func (p *Transactions) query() url.Values {
	q := url.Values{"per_page": {strconv.Itoa(TransactionsPerPage)}}
	m := p.deps.Match
	if page, err := strconv.Atoi(m.Query.Get("page")); err == nil && page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	if t := m.Query.Get("type"); t == "income" || t == "expense" {
		q.Set("type", t)
	}
	if s := strings.TrimSpace(m.Query.Get("search")); s != "" {
		q.Set("search", s)
	}
	return q
}

func (p *Transactions) view() shell.View {
	cur := p.currency()
	table := shell.Block{
		Kind:    shell.BlockTable,
		Title:   p.caption(),
		Headers: []string{"ID", "Date", "Description", "Category", "Amount"},
	}
	var links []shell.Link
	for _, t := range p.list.Transactions {
		table.Rows = append(table.Rows, []string{t.ID, t.Date, t.Description, t.CategoryName, signedAmount(t, cur)})
		links = append(links, shell.Link{Label: t.Description, Href: "/transactions/" + url.PathEscape(t.ID)})
	}
	if len(p.list.Transactions) == 0 {
		table = shell.Block{Kind: shell.BlockText, Title: p.caption(), Text: "No transactions match."}
	}

	actions := []shell.Action{
		{
			Key:   "add",
			Label: "Add transaction",
			Fields: []shell.Field{
				{Name: "amount", Label: "Amount", Default: p.draft.Get("amount")},
				{Name: "type", Label: "Type", Options: []string{"expense", "income"}, Default: p.draft.Get("type")},
				{Name: "description", Label: "Description", Default: p.draft.Get("description")},
				{Name: "date", Label: "Date (YYYY-MM-DD)", Default: time.Now().Format(time.DateOnly)},
				{Name: "category", Label: "Category", Optional: true, Default: p.draft.Get("category")},
			},
			Run: p.guard(p.add),
		},
		{
			Key:   "filter",
			Label: "Filter",
			Fields: []shell.Field{
				{Name: "type", Label: "Type", Optional: true, Options: []string{"all", "expense", "income"}},
				{Name: "search", Label: "Search", Optional: true, Default: p.deps.Match.Query.Get("search")},
			},
			Run: p.guard(p.filter),
		},
		{
			Key:    "open",
			Label:  "Open transaction",
			Fields: []shell.Field{{Name: "id", Label: "Transaction ID"}},
			Run: p.guard(func(ctx context.Context, in shell.Input) error {
				id := strings.TrimSpace(in.Get("id"))
				if id == "" {
					return errors.New("transaction id is required")
				}
				p.navigate(ctx, "/transactions/"+url.PathEscape(id), router.NavigateOptions{})
				return nil
			}),
		},
	}
	pg := p.list.Pagination
	if pg.HasPrev {
		actions = append(actions, p.pageAction("prev", "Previous page", pg.Page-1))
	}
	if pg.HasNext {
		actions = append(actions, p.pageAction("next", "Next page", pg.Page+1))
	}

	return shell.View{
		Title:   "Transactions",
		Blocks:  []shell.Block{table},
		Links:   links,
		Actions: actions,
		Errors:  p.errors,
	}
}

func (p *Transactions) caption() string {
	pg := p.list.Pagination
	if pg.Pages <= 1 {
		return fmt.Sprintf("%d transactions", pg.Total)
	}
	return fmt.Sprintf("%d transactions, page %d of %d", pg.Total, pg.Page, pg.Pages)
}

func (p *Transactions) pageAction(key, label string, page int) shell.Action {
	return shell.Action{Key: key, Label: label, Run: p.guard(func(ctx context.Context, _ shell.Input) error {
		p.navigate(ctx, mergeQuery(p.deps.Match, map[string]string{"page": strconv.Itoa(page)}), router.NavigateOptions{})
		return nil
	})}
}

func (p *Transactions) filter(ctx context.Context, in shell.Input) error {
	kind := in.Get("type")
	if kind == "all" {
		kind = ""
	}
	p.navigate(ctx, mergeQuery(p.deps.Match, map[string]string{
		"type":   kind,
		"search": strings.TrimSpace(in.Get("search")),
		"page":   "",
	}), router.NavigateOptions{})
	return nil
}

func (p *Transactions) add(ctx context.Context, in shell.Input) error {
	form := TransactionForm{
		Amount:      strings.TrimSpace(in.Get("amount")),
		Type:        strings.ToLower(strings.TrimSpace(in.Get("type"))),
		Description: strings.TrimSpace(in.Get("description")),
		Date:        strings.TrimSpace(in.Get("date")),
		Category:    strings.TrimSpace(in.Get("category")),
	}
	p.draft = shell.Input{"amount": form.Amount, "type": form.Type, "description": form.Description, "category": form.Category}
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
	res := p.deps.API.Post(reqCtx, "/api/transactions", newTransaction{
		Amount:      amount,
		Type:        form.Type,
		Description: form.Description,
		Date:        form.Date,
		Category:    form.Category,
	})
	done()
	if p.Destroyed() {
		return ErrPageClosed
	}
	if !res.Success {
		p.errors = nil
		p.failure("Could not add transaction: " + res.Error)
		p.show(p.view())
		return nil
	}

	p.errors, p.draft = nil, shell.Input{}
	p.success("Transaction added")
	p.reload(ctx)
	return nil
}

// =============================================================================
// Transaction detail
// =============================================================================

// TransactionDetail shows one transaction and offers to edit or delete
// it.
type TransactionDetail struct {
	base
	errors map[string]string
}

// NewTransactionDetail is the factory for /transactions/:id.
func NewTransactionDetail(d shell.Deps) shell.Page {
	p := &TransactionDetail{}
	p.init(d)
	return p
}

// Render fetches the transaction named by the id route parameter.
func (p *TransactionDetail) Render(ctx context.Context, c shell.Container) error {
	p.attach(c)
	p.show(loading("Transaction"))

	id := p.deps.Match.Param("id")
	ctx, done := p.scope(ctx)
	defer done()

	res := p.deps.API.Get(ctx, "/api/transactions/"+url.PathEscape(id), nil)
	if p.Destroyed() {
		return nil
	}
	back := shell.Link{Label: "Back to transactions", Href: "/transactions"}
	switch {
	case res.Status == http.StatusNotFound:
		p.show(shell.View{
			Title:  "Transaction not found",
			Blocks: []shell.Block{{Kind: shell.BlockError, Text: "No transaction with id " + id + "."}},
			Links:  []shell.Link{back},
		})
		return nil
	case !res.Success:
		p.show(shell.View{
			Title:   "Transaction",
			Blocks:  []shell.Block{errorBlock("Could not load transaction", res)},
			Links:   []shell.Link{back},
			Actions: []shell.Action{retryAction(&p.base)},
		})
		return nil
	}

	var body struct {
		Transaction Transaction `json:"transaction"`
	}
	if err := res.Decode(&body); err != nil {
		return fmt.Errorf("transaction %s: %w", id, err)
	}
	p.show(p.view(body.Transaction))
	return nil
}

func (p *TransactionDetail) view(t Transaction) shell.View {
	back := shell.Link{Label: "Back to transactions", Href: "/transactions"}
	stats := []shell.Stat{
		{Label: "Amount", Value: signedAmount(t, p.currency())},
		{Label: "Type", Value: t.Type},
		{Label: "Date", Value: t.Date},
		{Label: "Category", Value: t.CategoryName},
	}
	if t.Notes != "" {
		stats = append(stats, shell.Stat{Label: "Notes", Value: t.Notes})
	}
	return shell.View{
		Title:  t.Description,
		Blocks: []shell.Block{{Kind: shell.BlockStats, Stats: stats}},
		Links:  []shell.Link{back},
		Actions: []shell.Action{
			{
				Key:   "edit",
				Label: "Edit transaction",
				Fields: []shell.Field{
					{Name: "amount", Label: "Amount", Optional: true, Default: t.Amount.StringFixed(2)},
					{Name: "type", Label: "Type", Optional: true, Options: []string{"expense", "income"}, Default: t.Type},
					{Name: "description", Label: "Description", Optional: true, Default: t.Description},
					{Name: "date", Label: "Date (YYYY-MM-DD)", Optional: true, Default: t.Date},
					{Name: "category", Label: "Category", Optional: true, Default: t.CategoryName},
					{Name: "notes", Label: "Notes", Optional: true, Default: t.Notes},
				},
				Run: p.guard(func(ctx context.Context, in shell.Input) error {
					return p.edit(ctx, t, in)
				}),
			},
			{Key: "delete", Label: "Delete transaction", Run: p.guard(func(ctx context.Context, _ shell.Input) error {
				return p.remove(ctx, t.ID)
			})},
			{Key: "back", Label: "Back", Run: p.guard(func(ctx context.Context, _ shell.Input) error {
				if p.deps.Router != nil && !p.deps.Router.Back() {
					p.navigate(ctx, "/transactions", router.NavigateOptions{})
				}
				return nil
			})},
		},
		Errors: p.errors,
	}
}

func (p *TransactionDetail) edit(ctx context.Context, t Transaction, in shell.Input) error {
	form := TransactionEdit{
		Amount:      strings.TrimSpace(in.Get("amount")),
		Type:        strings.ToLower(strings.TrimSpace(in.Get("type"))),
		Description: strings.TrimSpace(in.Get("description")),
		Date:        strings.TrimSpace(in.Get("date")),
		Category:    strings.TrimSpace(in.Get("category")),
		Notes:       strings.TrimSpace(in.Get("notes")),
	}
	if errs := validation.FieldErrors(validate, form); errs != nil {
		p.errors = errs
		p.show(p.view(t))
		return nil
	}
	changes := map[string]any{}
	if form.Amount != "" {
		amount, err := validation.ParseAmount(form.Amount)
		if err != nil {
			p.errors = map[string]string{"amount": err.Error()}
			p.show(p.view(t))
			return nil
		}
		changes["amount"] = amount
	}
	for k, v := range map[string]string{
		"type":        form.Type,
		"description": form.Description,
		"date":        form.Date,
		"category":    form.Category,
		"notes":       form.Notes,
	} {
		if v != "" {
			changes[k] = v
		}
	}
	if len(changes) == 0 {
		p.errors = map[string]string{"description": "nothing to update"}
		p.show(p.view(t))
		return nil
	}

	reqCtx, done := p.scope(ctx)
	res := p.deps.API.Put(reqCtx, "/api/transactions/"+url.PathEscape(t.ID), changes)
	done()
	if p.Destroyed() {
		return ErrPageClosed
	}
	if !res.Success {
		p.errors = nil
		p.failure("Could not update transaction: " + res.Error)
		p.show(p.view(t))
		return nil
	}
	p.errors = nil
	p.success("Transaction updated")
	p.reload(ctx)
	return nil
}

func (p *TransactionDetail) remove(ctx context.Context, id string) error {
	reqCtx, done := p.scope(ctx)
	res := p.deps.API.Delete(reqCtx, "/api/transactions/"+url.PathEscape(id))
	done()
	if p.Destroyed() {
		return ErrPageClosed
	}
	if !res.Success {
		p.failure("Could not delete transaction: " + res.Error)
		return nil
	}
	p.success("Transaction deleted")
	p.navigate(ctx, "/transactions", router.NavigateOptions{Replace: true})
	return nil
}
