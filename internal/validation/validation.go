// Package validation checks request fields before they reach the database.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	emailRegex     = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	visitTimeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
)

// MinPasswordLength is the shortest password accepted
const MinPasswordLength = 8

// MaxApproxAge bounds approximate ages entered by hand
const MaxApproxAge = 130

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// ValidateOptionalEmail accepts an empty value or a valid address
func ValidateOptionalEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return nil
	}
	return ValidateEmail(email)
}

// ValidatePassword checks if a password meets requirements
func ValidatePassword(password string) error {
	if password == "" {
		return ValidationError{Field: "password", Message: "password is required"}
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ValidationError{Field: "password", Message: fmt.Sprintf("password must be at least %d characters", MinPasswordLength)}
	}
	return nil
}

// ValidateName checks if a person's name is valid
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ValidationError{Field: "name", Message: "name is required"}
	}
	if utf8.RuneCountInString(name) < 2 {
		return ValidationError{Field: "name", Message: "name must be at least 2 characters"}
	}
	return nil
}

// ValidateRequired rejects blank values
func ValidateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{Field: field, Message: field + " is required"}
	}
	return nil
}

// ValidateVisitTime accepts an empty value or a 24-hour "HH:MM" time
func ValidateVisitTime(value string) error {
	if value == "" || visitTimeRegex.MatchString(value) {
		return nil
	}
	return ValidationError{Field: "visitTime", Message: "time must use the HH:MM format"}
}

// ValidateDateRange requires end to fall on or after start
func ValidateDateRange(start, end time.Time) error {
	if start.IsZero() {
		return ValidationError{Field: "startDate", Message: "start date is required"}
	}
	if end.IsZero() {
		return ValidationError{Field: "endDate", Message: "end date is required"}
	}
	if end.Before(start) {
		return ValidationError{Field: "endDate", Message: "end date must not be before start date"}
	}
	return nil
}

// ValidateNonNegative rejects negative counts and targets
func ValidateNonNegative(field string, n int) error {
	if n < 0 {
		return ValidationError{Field: field, Message: field + " must not be negative"}
	}
	return nil
}

// ValidateApproxAge checks a hand-entered age
func ValidateApproxAge(age *int) error {
	if age == nil {
		return nil
	}
	if *age < 0 || *age > MaxApproxAge {
		return ValidationError{Field: "approxAge", Message: fmt.Sprintf("age must be between 0 and %d", MaxApproxAge)}
	}
	return nil
}

// ValidateBirthDate rejects birth dates in the future
func ValidateBirthDate(birth *time.Time, now time.Time) error {
	if birth != nil && birth.After(now) {
		return ValidationError{Field: "birthDate", Message: "birth date is in the future"}
	}
	return nil
}

// First returns the first non-nil error
func First(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
