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
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/pkg/validation"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/apiclient"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/session"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/shell"
)

// ProfileForm is validated before a profile update. Blank fields are
// left unchanged.
type ProfileForm struct {
	Email     string `json:"email" validate:"omitempty,email"`
	Username  string `json:"username" validate:"omitempty,username"`
	FirstName string `json:"first_name" validate:"omitempty,max=50"`
	LastName  string `json:"last_name" validate:"omitempty,max=50"`
	Currency  string `json:"currency" validate:"omitempty,currency"`
}

// changes lists the non-blank fields by wire name.
func (f ProfileForm) changes() map[string]string {
	out := map[string]string{}
	for k, v := range map[string]string{
		"email":      f.Email,
		"username":   f.Username,
		"first_name": f.FirstName,
		"last_name":  f.LastName,
		"currency":   f.Currency,
	} {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// Profile shows the signed-in user's account and lets them edit it or
// upload an avatar.
type Profile struct {
	base
	user   session.User
	errors map[string]string
}

// NewProfile is the profile page factory.
func NewProfile(d shell.Deps) shell.Page {
	p := &Profile{}
	p.init(d)
	return p
}

// Render fetches the current profile.
func (p *Profile) Render(ctx context.Context, c shell.Container) error {
	p.attach(c)
	p.show(loading("Profile"))

	ctx, done := p.scope(ctx)
	defer done()

	res := p.deps.API.Get(ctx, "/api/users/profile", nil)
	if p.Destroyed() {
		return nil
	}
	if !res.Success {
		p.show(shell.View{
			Title:   "Profile",
			Blocks:  []shell.Block{errorBlock("Could not load profile", res)},
			Actions: []shell.Action{retryAction(&p.base)},
		})
		return nil
	}
	var body struct {
		User session.User `json:"user"`
	}
	if err := res.Decode(&body); err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	p.user = body.User
	p.show(p.view())
	return nil
}

func (p *Profile) view() shell.View {
	u := p.user
	avatar := "none"
	if u.AvatarURL != "" {
		avatar = u.AvatarURL
	}
	return shell.View{
		Title: "Profile",
		Blocks: []shell.Block{{Kind: shell.BlockStats, Stats: []shell.Stat{
			{Label: "Name", Value: u.DisplayName()},
			{Label: "Email", Value: u.Email},
			{Label: "Username", Value: u.Username},
			{Label: "Currency", Value: u.Currency},
			{Label: "Avatar", Value: avatar},
		}}},
		Links: []shell.Link{{Label: "Back to dashboard", Href: DefaultLanding}},
		Actions: []shell.Action{
			{
				Key:   "save",
				Label: "Save profile",
				Fields: []shell.Field{
					{Name: "first_name", Label: "First name", Optional: true, Default: u.FirstName},
					{Name: "last_name", Label: "Last name", Optional: true, Default: u.LastName},
					{Name: "username", Label: "Username", Optional: true, Default: u.Username},
					{Name: "email", Label: "Email", Optional: true, Default: u.Email},
					{Name: "currency", Label: "Currency", Optional: true, Default: u.Currency},
				},
				Run: p.guard(p.save),
			},
			{
				Key:    "avatar",
				Label:  "Upload avatar",
				Fields: []shell.Field{{Name: "path", Label: "Image file"}},
				Run:    p.guard(p.upload),
			},
		},
		Errors: p.errors,
	}
}

func (p *Profile) save(ctx context.Context, in shell.Input) error {
	form := ProfileForm{
		Email:     strings.TrimSpace(in.Get("email")),
		Username:  strings.TrimSpace(in.Get("username")),
		FirstName: strings.TrimSpace(in.Get("first_name")),
		LastName:  strings.TrimSpace(in.Get("last_name")),
		Currency:  strings.ToUpper(strings.TrimSpace(in.Get("currency"))),
	}
	if errs := validation.FieldErrors(validate, form); errs != nil {
		p.errors = errs
		p.show(p.view())
		return nil
	}
	changes := form.changes()
	if len(changes) == 0 {
		p.errors = map[string]string{"first_name": "nothing to update"}
		p.show(p.view())
		return nil
	}

	reqCtx, done := p.scope(ctx)
	defer done()
	res := p.deps.API.Put(reqCtx, "/api/users/profile", changes)
	if p.Destroyed() {
		return ErrPageClosed
	}
	if !res.Success {
		p.errors = nil
		p.failure("Could not update profile: " + res.Error)
		p.show(p.view())
		return nil
	}
	var body struct {
		User session.User `json:"user"`
	}
	if err := res.Decode(&body); err != nil {
		return fmt.Errorf("profile update: %w", err)
	}
	return p.commit(ctx, body.User, "Profile updated")
}

func (p *Profile) upload(ctx context.Context, in shell.Input) error {
	path := strings.TrimSpace(in.Get("path"))
	if path == "" {
		p.errors = map[string]string{"path": "image file is required"}
		p.show(p.view())
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		p.errors = map[string]string{"path": "cannot read " + filepath.Base(path)}
		p.show(p.view())
		return nil
	}
	body, err := apiclient.NewMultipartBody(nil, apiclient.FilePart{
		Field:    "avatar",
		Filename: filepath.Base(path),
		Content:  bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("avatar: %w", err)
	}

	reqCtx, done := p.scope(ctx)
	defer done()
	res := p.deps.API.Post(reqCtx, "/api/users/avatar", body)
	if p.Destroyed() {
		return ErrPageClosed
	}
	if !res.Success {
		p.errors = nil
		p.failure("Could not upload avatar: " + res.Error)
		p.show(p.view())
		return nil
	}
	var out struct {
		AvatarURL string `json:"avatar_url"`
	}
	if err := res.Decode(&out); err != nil {
		return fmt.Errorf("avatar: %w", err)
	}
	u := p.user
	u.AvatarURL = out.AvatarURL
	return p.commit(ctx, u, "Avatar uploaded")
}

// commit hands u to the session so the navigation bar and the stored
// record follow, then re-renders the page.
func (p *Profile) commit(ctx context.Context, u session.User, msg string) error {
	p.errors = nil
	p.user = u
	if err := p.deps.Session.UpdateProfile(ctx, u); err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	p.success(msg)
	p.reload(ctx)
	return nil
}
