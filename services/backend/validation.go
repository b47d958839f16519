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
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

var (
	minAmount = decimal.RequireFromString("0.01")
	maxAmount = decimal.NewFromInt(1_000_000)
)

var (
	hasLower   = regexp.MustCompile(`[a-z]`)
	hasUpper   = regexp.MustCompile(`[A-Z]`)
	hasDigit   = regexp.MustCompile(`\d`)
	hasSpecial = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
	seqDigits  = regexp.MustCompile(`012|123|234|345|456|567|678|789|890`)
	seqLetters = regexp.MustCompile(`abc|bcd|cde|def|efg|fgh|ghi|hij|ijk|jkl|klm|lmn|mno|nop|opq|pqr|qrs|rst|stu|tuv|uvw|vwx|wxy|xyz`)
)

var commonPasswords = map[string]bool{
	"password": true, "123456": true, "password123": true, "admin": true, "qwerty": true,
	"letmein": true, "welcome": true, "monkey": true, "1234567890": true,
}

var currencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "CAD": true, "AUD": true, "JPY": true, "CHF": true,
	"CNY": true, "INR": true, "BRL": true, "MXN": true, "KRW": true, "SGD": true, "HKD": true,
	"NZD": true, "SEK": true, "NOK": true, "DKK": true, "PLN": true, "CZK": true, "HUF": true,
	"RUB": true, "ZAR": true, "TRY": true, "ILS": true, "AED": true, "SAR": true,
}

// validEmail checks the address format.
func validEmail(email string) bool {
	return validate.Var(strings.TrimSpace(email), "required,email") == nil
}

// passwordProblems lists every strength rule password breaks.
func passwordProblems(password string) []string {
	if password == "" {
		return []string{"Password is required"}
	}
	var out []string
	if len(password) < 8 {
		out = append(out, "Password must be at least 8 characters long")
	}
	if len(password) > 128 {
		out = append(out, "Password must be less than 128 characters")
	}
	if !hasLower.MatchString(password) {
		out = append(out, "Password must contain at least one lowercase letter")
	}
	if !hasUpper.MatchString(password) {
		out = append(out, "Password must contain at least one uppercase letter")
	}
	if !hasDigit.MatchString(password) {
		out = append(out, "Password must contain at least one number")
	}
	if !hasSpecial.MatchString(password) {
		out = append(out, "Password must contain at least one special character")
	}
	if commonPasswords[strings.ToLower(password)] {
		out = append(out, "Password is too common")
	}
	if seqDigits.MatchString(password) {
		out = append(out, "Password should not contain sequential numbers")
	}
	if seqLetters.MatchString(strings.ToLower(password)) {
		out = append(out, "Password should not contain sequential letters")
	}
	return out
}

// validAmount reports whether d lies in [0.01, 1000000].
func validAmount(d decimal.Decimal) bool {
	return d.GreaterThanOrEqual(minAmount) && d.LessThanOrEqual(maxAmount)
}

// parseDate reads a YYYY-MM-DD date as midnight UTC.
func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return d, nil
}

// =============================================================================
// Periods
// =============================================================================

// periodWindow returns the first and last day of the period containing
// now. Weeks start on Monday. Both the budget spellings (weekly, monthly,
// quarterly, yearly) and the analytics ones (week, month, quarter, year)
// are accepted.
func periodWindow(period string, now time.Time) (start, end time.Time, err error) {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	switch period {
	case "week", "weekly":
		offset := (int(today.Weekday()) + 6) % 7
		start = today.AddDate(0, 0, -offset)
		end = start.AddDate(0, 0, 6)
	case "month", "monthly":
		start = time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, -1)
	case "quarter", "quarterly":
		first := time.Month((int(m)-1)/3*3 + 1)
		start = time.Date(y, first, 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 3, -1)
	case "year", "yearly":
		start = time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
		end = time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC)
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown period %q", period)
	}
	return start, end, nil
}

// within reports whether day lies in [start, end].
func within(day, start, end time.Time) bool {
	return !day.Before(start) && !day.After(end)
}
