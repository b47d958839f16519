// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides the input rules shared by the client forms
// and the backend handlers.
//
// The rules are exposed both as plain functions and as go-playground
// validator tags registered by New:
//
//	email     strict address format
//	strongpw  password strength (see PasswordProblems)
//	username  3-30 chars, letters, digits, underscore; no edge underscore
//	amount    decimal between MinAmount and MaxAmount
//	isodate   YYYY-MM-DD calendar date
//	currency  supported ISO 4217 code
package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`)
	seqDigits       = regexp.MustCompile(`012|123|234|345|456|567|678|789|890`)
	specialChars    = `!@#$%^&*(),.?":{}|<>`
)

// MinAmount and MaxAmount bound monetary amounts.
var (
	MinAmount = decimal.RequireFromString("0.01")
	MaxAmount = decimal.NewFromInt(1_000_000)
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

// ValidEmail reports whether s is a well-formed address.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// ValidUsername reports whether s is an acceptable username.
func ValidUsername(s string) bool {
	return usernamePattern.MatchString(s) && !strings.HasPrefix(s, "_") && !strings.HasSuffix(s, "_")
}

// ValidCurrency reports whether code is a supported currency.
func ValidCurrency(code string) bool {
	return currencies[strings.ToUpper(code)]
}

// PasswordProblems lists every strength rule password breaks; nil means
// the password is acceptable.
func PasswordProblems(password string) []string {
	if password == "" {
		return []string{"Password is required"}
	}

	var problems []string
	if len(password) < 8 {
		problems = append(problems, "Password must be at least 8 characters long")
	}
	if len(password) > 128 {
		problems = append(problems, "Password must be less than 128 characters")
	}
	if !strings.ContainsAny(password, "abcdefghijklmnopqrstuvwxyz") {
		problems = append(problems, "Password must contain at least one lowercase letter")
	}
	if !strings.ContainsAny(password, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		problems = append(problems, "Password must contain at least one uppercase letter")
	}
	if !strings.ContainsAny(password, "0123456789") {
		problems = append(problems, "Password must contain at least one number")
	}
	if !strings.ContainsAny(password, specialChars) {
		problems = append(problems, "Password must contain at least one special character")
	}
	lower := strings.ToLower(password)
	if commonPasswords[lower] {
		problems = append(problems, "Password is too common")
	}
	if seqDigits.MatchString(password) {
		problems = append(problems, "Password should not contain sequential numbers")
	}
	if hasLetterRun(lower) {
		problems = append(problems, "Password should not contain sequential letters")
	}
	return problems
}

func hasLetterRun(s string) bool {
	for i := 0; i+2 < len(s); i++ {
		a, b, c := s[i], s[i+1], s[i+2]
		if a >= 'a' && c <= 'z' && b == a+1 && c == b+1 {
			return true
		}
	}
	return false
}

// ParseAmount parses a monetary amount and checks its range. The result
// is rounded to cents.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %q is not a number", s)
	}
	if d.LessThan(MinAmount) || d.GreaterThan(MaxAmount) {
		return decimal.Zero, fmt.Errorf("amount must be between %s and %s", MinAmount.StringFixed(2), MaxAmount.StringFixed(2))
	}
	return d.Round(2), nil
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD", s)
	}
	return t, nil
}

// =============================================================================
// validator/v10 integration
// =============================================================================

// New returns a validator with the finance tags registered.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	must(v.RegisterValidation("email", func(fl validator.FieldLevel) bool {
		return ValidEmail(fl.Field().String())
	}))
	must(v.RegisterValidation("strongpw", func(fl validator.FieldLevel) bool {
		return PasswordProblems(fl.Field().String()) == nil
	}))
	must(v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return ValidUsername(fl.Field().String())
	}))
	must(v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		_, err := ParseAmount(fl.Field().String())
		return err == nil
	}))
	must(v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := ParseDate(fl.Field().String())
		return err == nil
	}))
	must(v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		return ValidCurrency(fl.Field().String())
	}))
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// FieldErrors validates s and maps each failing field, by its json name,
// to a user-facing message. It returns nil when s is valid.
func FieldErrors(v *validator.Validate, s any) map[string]string {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		out[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	label := humanize(fe.Field())
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "Enter a valid email address"
	case "strongpw":
		if p := PasswordProblems(fe.Value().(string)); len(p) > 0 {
			return p[0]
		}
		return "Password is too weak"
	case "username":
		return "Username must be 3-30 letters, digits or underscores"
	case "amount":
		return fmt.Sprintf("Amount must be between %s and %s", MinAmount.StringFixed(2), MaxAmount.StringFixed(2))
	case "isodate":
		return label + " must be a date in YYYY-MM-DD format"
	case "currency":
		return "Unsupported currency"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "eqfield":
		return label + " does not match"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	default:
		return label + " is invalid"
	}
}

func humanize(field string) string {
	s := strings.ReplaceAll(field, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
