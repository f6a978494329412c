package auth

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultMinPasswordLen = 8
	DefaultMaxPasswordLen = 72

	// MaxPasswordBytes is the longest input bcrypt will hash.
	MaxPasswordBytes = 72
)

// HashCost is the bcrypt work factor used by HashPassword. Tests lower it.
var HashCost = 12

// Strength is the graded strength of a password, independent of validity.
type Strength string

const (
	StrengthWeak   Strength = "weak"
	StrengthMedium Strength = "medium"
	StrengthStrong Strength = "strong"
)

// PasswordValidationError holds validation error details
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "password validation failed"
	}
	return "invalid password: " + strings.Join(e.Errors, "; ")
}

// PasswordValidation is the outcome of checking a candidate password.
type PasswordValidation struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Strength Strength `json:"strength"`
}

// Err returns a *PasswordValidationError when the password is invalid
func (v PasswordValidation) Err() error {
	if v.Valid {
		return nil
	}
	return &PasswordValidationError{Errors: v.Errors}
}

// PasswordRules are the static composition rules.
type PasswordRules struct {
	MinLength int
	MaxLength int
}

// DefaultPasswordRules is used by ValidatePassword
var DefaultPasswordRules = PasswordRules{
	MinLength: DefaultMinPasswordLen,
	MaxLength: DefaultMaxPasswordLen,
}

// Common weak passwords to reject
var commonPasswords = map[string]bool{
	"password":     true,
	"12345678":     true,
	"qwerty":       true,
	"abc123":       true,
	"password1":    true,
	"password123":  true,
	"password123!": true,
	"123456":       true,
	"admin":        true,
	"letmein":      true,
	"welcome":      true,
	"welcome1!":    true,
	"monkey":       true,
	"dragon":       true,
	"master":       true,
	"123123":       true,
	"passw0rd":     true,
	"p@ssw0rd":     true,
	"p@ssw0rd1":    true,
	"shadow":       true,
	"sunshine":     true,
	"princess":     true,
	"football":     true,
	"trustno1":     true,
	"changeme":     true,
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), HashCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// ValidatePassword checks a candidate against DefaultPasswordRules
func ValidatePassword(password string) PasswordValidation {
	return DefaultPasswordRules.Validate(password)
}

// Validate applies length and character-class rules and grades strength.
// A password can be valid and still graded medium.
func (r PasswordRules) Validate(password string) PasswordValidation {
	errs := make([]string, 0)
	length := utf8.RuneCountInString(password)

	if length < r.MinLength {
		errs = append(errs, fmt.Sprintf("must be at least %d characters", r.MinLength))
	}
	if r.MaxLength > 0 && length > r.MaxLength {
		errs = append(errs, fmt.Sprintf("must be at most %d characters", r.MaxLength))
	}
	if len(password) > MaxPasswordBytes {
		errs = append(errs, fmt.Sprintf("must be at most %d bytes", MaxPasswordBytes))
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, c := range password {
		switch {
		case unicode.IsUpper(c):
			hasUpper = true
		case unicode.IsLower(c):
			hasLower = true
		case unicode.IsDigit(c):
			hasDigit = true
		case unicode.IsPunct(c) || unicode.IsSymbol(c):
			hasSpecial = true
		}
	}

	if !hasUpper {
		errs = append(errs, "must contain at least one uppercase letter")
	}
	if !hasLower {
		errs = append(errs, "must contain at least one lowercase letter")
	}
	if !hasDigit {
		errs = append(errs, "must contain at least one digit")
	}
	if !hasSpecial {
		errs = append(errs, "must contain at least one special character")
	}

	common := commonPasswords[strings.ToLower(password)]
	if common {
		errs = append(errs, "is too common, please choose a more unique password")
	}

	classes := 0
	for _, ok := range []bool{hasUpper, hasLower, hasDigit, hasSpecial} {
		if ok {
			classes++
		}
	}

	return PasswordValidation{
		Valid:    len(errs) == 0,
		Errors:   errs,
		Strength: gradeStrength(length, classes, common),
	}
}

func gradeStrength(length, classes int, common bool) Strength {
	switch {
	case common || length < DefaultMinPasswordLen || classes < 3:
		return StrengthWeak
	case classes == 4 && length >= 12:
		return StrengthStrong
	default:
		return StrengthMedium
	}
}
