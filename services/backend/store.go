// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package backend is the FinTrack demo HTTP API.
//
// It serves the /api contract the client core talks to: registration and
// login with JWT access and refresh tokens, transactions, budgets,
// analytics and categories. All data lives in process memory; a restart
// forgets everything except the optional seeded demo account.
package backend

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrUserExists is returned when a registration collides with an
	// existing account.
	ErrUserExists = errors.New("user already exists")

	// ErrEmailTaken is an ErrUserExists for a duplicate email.
	ErrEmailTaken = fmt.Errorf("%w: email", ErrUserExists)

	// ErrUsernameTaken is an ErrUserExists for a duplicate username.
	ErrUsernameTaken = fmt.Errorf("%w: username", ErrUserExists)

	// ErrNotFound is returned for unknown or foreign records.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// Records
// =============================================================================

// User is an account.
type User struct {
	ID           string
	Email        string
	Username     string
	FirstName    string
	LastName     string
	Currency     string
	PasswordHash []byte
	CreatedAt    time.Time
	LastLogin    time.Time
	FailedLogins int
	LockedUntil  time.Time
}

// FullName joins the first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Locked reports whether the account refuses logins at now.
func (u User) Locked(now time.Time) bool {
	return now.Before(u.LockedUntil)
}

// Session is one login. Logging out deactivates it, which also
// invalidates every token carrying its ID.
type Session struct {
	ID        string
	UserID    string
	IP        string
	UserAgent string
	CreatedAt time.Time
	Active    bool
}

// Category groups transactions. Categories are shared by all users.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Color string `json:"color"`
}

// Transaction is one income or expense entry.
type Transaction struct {
	ID          string
	UserID      string
	Amount      decimal.Decimal
	Type        string
	Description string
	Date        time.Time
	CategoryID  string
	Notes       string
	CreatedAt   time.Time
}

// Avatar is an uploaded profile image.
type Avatar struct {
	ContentType string
	Data        []byte
	UploadedAt  time.Time
}

// Budget caps spending over a period, optionally for one category.
type Budget struct {
	ID         string
	UserID     string
	Name       string
	Amount     decimal.Decimal
	Period     string
	CategoryID string
	CreatedAt  time.Time
}

// TransactionFilter selects one page of a user's transactions.
type TransactionFilter struct {
	Type    string
	Search  string
	Page    int
	PerPage int
}

// =============================================================================
// Default categories
// =============================================================================

// DefaultCategories returns the categories every store starts with.
func DefaultCategories() []Category {
	defs := []struct{ name, typ, color string }{
		{"Salary", "income", "#28a745"},
		{"Freelance", "income", "#17a2b8"},
		{"Investment", "income", "#6f42c1"},
		{"Other Income", "income", "#20c997"},
		{"Food & Dining", "expense", "#fd7e14"},
		{"Transportation", "expense", "#ffc107"},
		{"Shopping", "expense", "#e83e8c"},
		{"Entertainment", "expense", "#6610f2"},
		{"Bills & Utilities", "expense", "#dc3545"},
		{"Healthcare", "expense", "#e74c3c"},
		{"Education", "expense", "#007bff"},
		{"Travel", "expense", "#20c997"},
		{"Home & Garden", "expense", "#795548"},
		{"Personal Care", "expense", "#ff69b4"},
		{"Gifts & Donations", "expense", "#9c27b0"},
		{"Other Expenses", "expense", "#6c757d"},
	}
	out := make([]Category, len(defs))
	for i, d := range defs {
		out[i] = Category{ID: fmt.Sprintf("cat-%02d", i+1), Name: d.name, Type: d.typ, Color: d.color}
	}
	return out
}

// =============================================================================
// Store
// =============================================================================

// Store holds every record in memory.
//
// # Thread Safety
//
// Safe for concurrent use. Methods return copies; mutating a returned
// record does not change the store.
type Store struct {
	mu           sync.RWMutex
	users        map[string]*User
	byEmail      map[string]string
	byUsername   map[string]string
	sessions     map[string]*Session
	revoked      map[string]time.Time
	categories   []Category
	transactions map[string][]*Transaction
	budgets      map[string][]*Budget
	avatars      map[string]Avatar
}

// NewStore returns an empty store with the default categories.
func NewStore() *Store {
	return &Store{
		users:        make(map[string]*User),
		byEmail:      make(map[string]string),
		byUsername:   make(map[string]string),
		sessions:     make(map[string]*Session),
		revoked:      make(map[string]time.Time),
		categories:   DefaultCategories(),
		transactions: make(map[string][]*Transaction),
		budgets:      make(map[string][]*Budget),
		avatars:      make(map[string]Avatar),
	}
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// ===== Users =====

// CreateUser stores u under a new ID. Email and username are unique
// case-insensitively.
func (s *Store) CreateUser(u User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email, username := normalize(u.Email), normalize(u.Username)
	if _, ok := s.byEmail[email]; ok {
		return User{}, ErrEmailTaken
	}
	if _, ok := s.byUsername[username]; ok {
		return User{}, ErrUsernameTaken
	}

	u.ID = uuid.NewString()
	u.Email = email
	s.users[u.ID] = &u
	s.byEmail[email] = u.ID
	s.byUsername[username] = u.ID
	return u, nil
}

// UserByID returns the user with id.
func (s *Store) UserByID(id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return *u, nil
}

// UserByEmail looks a user up by email, ignoring case.
func (s *Store) UserByEmail(email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[normalize(email)]
	if !ok {
		return User{}, ErrNotFound
	}
	return *s.users[id], nil
}

// UpdateUser applies fn to the stored user under the write lock and
// returns the result.
func (s *Store) UpdateUser(id string, fn func(*User)) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	fn(u)
	return *u, nil
}

// UpdateProfile applies fn to a copy of the user and stores it if the
// email and username are still unique. The email is lowercased.
func (s *Store) UpdateProfile(id string, fn func(*User)) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	next := *cur
	fn(&next)
	next.ID = cur.ID

	email, username := normalize(next.Email), normalize(next.Username)
	if owner, ok := s.byEmail[email]; ok && owner != id {
		return User{}, ErrEmailTaken
	}
	if owner, ok := s.byUsername[username]; ok && owner != id {
		return User{}, ErrUsernameTaken
	}
	delete(s.byEmail, normalize(cur.Email))
	delete(s.byUsername, normalize(cur.Username))
	next.Email = email
	s.byEmail[email] = id
	s.byUsername[username] = id
	*cur = next
	return next, nil
}

// SetAvatar stores userID's avatar, replacing any previous one.
func (s *Store) SetAvatar(userID string, a Avatar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return ErrNotFound
	}
	a.Data = append([]byte(nil), a.Data...)
	s.avatars[userID] = a
	return nil
}

// Avatar returns userID's avatar.
func (s *Store) Avatar(userID string) (Avatar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.avatars[userID]
	if !ok {
		return Avatar{}, ErrNotFound
	}
	a.Data = append([]byte(nil), a.Data...)
	return a, nil
}

// ===== Sessions and revocation =====

// CreateSession records an active session for userID.
func (s *Store) CreateSession(userID, ip, userAgent string, now time.Time) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		IP:        ip,
		UserAgent: userAgent,
		CreatedAt: now,
		Active:    true,
	}
	s.sessions[sess.ID] = sess
	return *sess
}

// SessionActive reports whether id names an active session of userID.
func (s *Store) SessionActive(id, userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return ok && sess.Active && sess.UserID == userID
}

// EndSession deactivates a session. Unknown IDs are ignored.
func (s *Store) EndSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.Active = false
	}
}

// Revoke blacklists a token ID until its expiry.
func (s *Store) Revoke(jti string, expires time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = expires
}

// Revoked reports whether jti was revoked. Entries past their expiry are
// dropped, since the token would be rejected anyway.
func (s *Store) Revoked(jti string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, exp := range s.revoked {
		if !now.Before(exp) {
			delete(s.revoked, id)
		}
	}
	_, ok := s.revoked[jti]
	return ok
}

// ===== Categories =====

// Categories returns all categories, income first.
func (s *Store) Categories() []Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.categories)
}

// CategoryByID returns the category with id.
func (s *Store) CategoryByID(id string) (Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// CategoryByName finds a category by name, ignoring case.
func (s *Store) CategoryByName(name string) (Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.categories {
		if strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			return c, true
		}
	}
	return Category{}, false
}

// ===== Transactions =====

// AddTransaction stores t under a new ID.
func (s *Store) AddTransaction(t Transaction) Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = uuid.NewString()
	s.transactions[t.UserID] = append(s.transactions[t.UserID], &t)
	return t
}

// Transaction returns one of userID's transactions.
func (s *Store) Transaction(userID, id string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.transactions[userID] {
		if t.ID == id {
			return *t, nil
		}
	}
	return Transaction{}, ErrNotFound
}

// UpdateTransaction applies fn to one of userID's transactions. The ID,
// owner and creation time cannot be changed.
func (s *Store) UpdateTransaction(userID, id string, fn func(*Transaction)) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.transactions[userID] {
		if t.ID != id {
			continue
		}
		next := *t
		fn(&next)
		next.ID, next.UserID, next.CreatedAt = t.ID, t.UserID, t.CreatedAt
		*t = next
		return next, nil
	}
	return Transaction{}, ErrNotFound
}

// DeleteTransaction removes one of userID's transactions.
func (s *Store) DeleteTransaction(userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.transactions[userID]
	i := slices.IndexFunc(list, func(t *Transaction) bool { return t.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	s.transactions[userID] = slices.Delete(list, i, i+1)
	return nil
}

// Transactions returns userID's transactions, newest date first, with
// ties broken by creation time.
func (s *Store) Transactions(userID string) []Transaction {
	s.mu.RLock()
	out := make([]Transaction, 0, len(s.transactions[userID]))
	for _, t := range s.transactions[userID] {
		out = append(out, *t)
	}
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b Transaction) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// ListTransactions applies f and returns the requested page plus the
// number of matching transactions.
func (s *Store) ListTransactions(userID string, f TransactionFilter) ([]Transaction, int) {
	all := s.Transactions(userID)
	search := normalize(f.Search)

	matched := all[:0]
	for _, t := range all {
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(t.Description), search) &&
			!strings.Contains(strings.ToLower(t.Notes), search) {
			continue
		}
		matched = append(matched, t)
	}

	total := len(matched)
	if f.PerPage < 1 || f.Page < 1 || f.Page-1 >= (total+f.PerPage-1)/f.PerPage {
		return []Transaction{}, total
	}
	start := (f.Page - 1) * f.PerPage
	end := min(start+f.PerPage, total)
	return matched[start:end], total
}

// ===== Budgets =====

// AddBudget stores b under a new ID.
func (s *Store) AddBudget(b Budget) Budget {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = uuid.NewString()
	s.budgets[b.UserID] = append(s.budgets[b.UserID], &b)
	return b
}

// Budgets returns userID's budgets in creation order.
func (s *Store) Budgets(userID string) []Budget {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Budget, 0, len(s.budgets[userID]))
	for _, b := range s.budgets[userID] {
		out = append(out, *b)
	}
	return out
}
