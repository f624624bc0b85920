package domain

import "strings"

// Credentials are submitted to POST /auth/login.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Validate checks the credentials before they are sent.
func (c Credentials) Validate() error {
	return Validate(c)
}

// LoginResult reports the outcome of a login attempt.
type LoginResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	User    *User  `json:"user,omitempty"`
	Error   string `json:"error,omitempty"`
}

const passwordSpecials = "@$!%*?&"

// ValidateEmail reports whether s is a well-formed email address.
func ValidateEmail(s string) bool {
	return ValidateVar("email", s, "required,email") == nil
}

// ValidatePassword reports whether s meets every password requirement:
// at least 8 characters drawn from letters, digits and @$!%*?&, with at
// least one of each class.
func ValidatePassword(s string) bool {
	if len(s) < 8 {
		return false
	}
	var lower, upper, digit, special bool
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		default:
			return false
		}
	}
	return lower && upper && digit && special
}

// PasswordRequirements lists the rules ValidatePassword enforces.
func PasswordRequirements() []string {
	return []string{
		"At least 8 characters long",
		"Contains at least one lowercase letter",
		"Contains at least one uppercase letter",
		"Contains at least one number",
		"Contains at least one special character (@$!%*?&)",
	}
}

// Strength is a coarse password strength bucket.
type Strength string

const (
	StrengthWeak   Strength = "weak"
	StrengthMedium Strength = "medium"
	StrengthStrong Strength = "strong"
)

// PasswordScore is the result of PasswordStrength.
type PasswordScore struct {
	Score    int      `json:"score"`
	Strength Strength `json:"strength"`
	IsValid  bool     `json:"isValid"`
}

// PasswordStrength scores a password from 0 to 6, one point per satisfied
// check: lowercase, uppercase, digit, special, length >= 8, length >= 12.
func PasswordStrength(s string) PasswordScore {
	checks := []bool{
		strings.ContainsFunc(s, func(r rune) bool { return r >= 'a' && r <= 'z' }),
		strings.ContainsFunc(s, func(r rune) bool { return r >= 'A' && r <= 'Z' }),
		strings.ContainsFunc(s, func(r rune) bool { return r >= '0' && r <= '9' }),
		strings.ContainsAny(s, passwordSpecials),
		len(s) >= 8,
		len(s) >= 12,
	}
	score := 0
	for _, ok := range checks {
		if ok {
			score++
		}
	}

	strength := StrengthStrong
	switch {
	case score < 3:
		strength = StrengthWeak
	case score < 5:
		strength = StrengthMedium
	}
	return PasswordScore{Score: score, Strength: strength, IsValid: ValidatePassword(s)}
}
