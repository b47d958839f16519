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
	"strings"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/pkg/validation"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/router"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/session"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/shell"
)

// DefaultLanding is where a successful sign-in goes when no destination
// was remembered.
const DefaultLanding = "/dashboard"

// LoginForm is validated before any network call.
type LoginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login is the sign-in page.
type Login struct {
	base
	errors map[string]string
	email  string
}

// NewLogin is the login page factory.
func NewLogin(d shell.Deps) shell.Page {
	p := &Login{}
	p.init(d)
	return p
}

// Render shows the sign-in form, or forwards signed-in users.
func (p *Login) Render(ctx context.Context, c shell.Container) error {
	p.attach(c)
	if p.deps.User != nil {
		p.navigate(ctx, DefaultLanding, router.NavigateOptions{Replace: true})
		return nil
	}
	p.show(p.view())
	return nil
}

func (p *Login) view() shell.View {
	return shell.View{
		Title: "Sign in to FinTrack",
		Blocks: []shell.Block{{
			Kind: shell.BlockText,
			Text: "Track your spending, budgets and savings.",
		}},
		Links: []shell.Link{{Label: "Create an account", Href: "/register"}},
		Actions: []shell.Action{{
			Key:   "login",
			Label: "Sign in",
			Fields: []shell.Field{
				{Name: "email", Label: "Email", Default: p.email},
				{Name: "password", Label: "Password", Secret: true},
				{Name: "remember", Label: "Remember me", Optional: true, Options: []string{"no", "yes"}},
			},
			Run: p.guard(p.submit),
		}},
		Errors: p.errors,
	}
}

func (p *Login) submit(ctx context.Context, in shell.Input) error {
	form := LoginForm{Email: strings.TrimSpace(in.Get("email")), Password: in.Get("password")}
	p.email = form.Email

	if errs := validation.FieldErrors(validate, form); errs != nil {
		p.errors = errs
		p.show(p.view())
		return nil
	}

	reqCtx, done := p.scope(ctx)
	defer done()

	user, err := p.deps.Session.Login(reqCtx, session.Credentials{
		Email:    form.Email,
		Password: form.Password,
		Remember: in.Bool("remember"),
	})
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		p.errors = map[string]string{"password": "Invalid email or password"}
		p.show(p.view())
		return nil
	case err != nil:
		p.errors = nil
		p.failure(loginFailure(err))
		p.show(p.view())
		return nil
	}

	p.errors = nil
	p.success("Welcome back, " + user.DisplayName() + "!")
	dest := DefaultLanding
	if p.deps.TakeReturnTo != nil {
		dest = p.deps.TakeReturnTo(DefaultLanding)
	}
	p.navigate(ctx, dest, router.NavigateOptions{Replace: true})
	return nil
}

func loginFailure(err error) string {
	var reqErr *session.RequestError
	if errors.As(err, &reqErr) && reqErr.Message != "" {
		return reqErr.Message
	}
	return "Sign in failed: " + err.Error()
}

// =============================================================================
// Register
// =============================================================================

// RegisterForm is validated before any network call.
type RegisterForm struct {
	Email           string `json:"email" validate:"required,email"`
	Username        string `json:"username" validate:"required,username"`
	FirstName       string `json:"first_name" validate:"required,max=50"`
	LastName        string `json:"last_name" validate:"required,max=50"`
	Password        string `json:"password" validate:"required,strongpw"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	Currency        string `json:"currency" validate:"omitempty,currency"`
}

// Register is the sign-up page.
type Register struct {
	base
	errors map[string]string
	values shell.Input
}

// NewRegister is the register page factory.
func NewRegister(d shell.Deps) shell.Page {
	p := &Register{values: shell.Input{}}
	p.init(d)
	return p
}

// Render shows the sign-up form, or forwards signed-in users.
func (p *Register) Render(ctx context.Context, c shell.Container) error {
	p.attach(c)
	if p.deps.User != nil {
		p.navigate(ctx, DefaultLanding, router.NavigateOptions{Replace: true})
		return nil
	}
	p.show(p.view())
	return nil
}

func (p *Register) view() shell.View {
	return shell.View{
		Title: "Create your account",
		Links: []shell.Link{{Label: "Already have an account? Sign in", Href: "/login"}},
		Actions: []shell.Action{{
			Key:   "register",
			Label: "Create account",
			Fields: []shell.Field{
				{Name: "email", Label: "Email", Default: p.values.Get("email")},
				{Name: "username", Label: "Username", Default: p.values.Get("username")},
				{Name: "first_name", Label: "First name", Default: p.values.Get("first_name")},
				{Name: "last_name", Label: "Last name", Default: p.values.Get("last_name")},
				{Name: "password", Label: "Password", Secret: true},
				{Name: "confirm_password", Label: "Confirm password", Secret: true},
				{Name: "currency", Label: "Currency", Optional: true, Default: "USD"},
			},
			Run: p.guard(p.submit),
		}},
		Errors: p.errors,
	}
}

func (p *Register) submit(ctx context.Context, in shell.Input) error {
	form := RegisterForm{
		Email:           strings.TrimSpace(in.Get("email")),
		Username:        strings.TrimSpace(in.Get("username")),
		FirstName:       strings.TrimSpace(in.Get("first_name")),
		LastName:        strings.TrimSpace(in.Get("last_name")),
		Password:        in.Get("password"),
		ConfirmPassword: in.Get("confirm_password"),
		Currency:        strings.ToUpper(strings.TrimSpace(in.Get("currency"))),
	}
	p.values = shell.Input{
		"email": form.Email, "username": form.Username,
		"first_name": form.FirstName, "last_name": form.LastName,
	}

	if errs := validation.FieldErrors(validate, form); errs != nil {
		p.errors = errs
		p.show(p.view())
		return nil
	}

	reqCtx, done := p.scope(ctx)
	defer done()

	_, err := p.deps.Session.Register(reqCtx, session.Registration{
		Email:     form.Email,
		Username:  form.Username,
		Password:  form.Password,
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Currency:  form.Currency,
	})
	if err != nil {
		p.errors = nil
		p.failure(loginFailure(err))
		p.show(p.view())
		return nil
	}

	p.errors = nil
	if p.deps.Session.User() != nil {
		p.success("Account created. Welcome to FinTrack!")
		p.navigate(ctx, DefaultLanding, router.NavigateOptions{Replace: true})
		return nil
	}
	p.success("Account created. Please sign in.")
	p.navigate(ctx, "/login", router.NavigateOptions{Replace: true})
	return nil
}
