package service

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fitmeta/fitmeta-api/internal/model"
)

const (
	maxNameLength     = 100
	maxEmailLength    = 255
	minPasswordLength = 6
	maxPasswordLength = 100
)

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
// Every lookup and insert goes through it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

func validateName(field, value string) error {
	if value == "" {
		return validationError("%s is required", field)
	}
	if utf8.RuneCountInString(value) > maxNameLength {
		return validationError("%s must be at most %d characters", field, maxNameLength)
	}
	return nil
}

// validateEmail expects a normalised address.
func validateEmail(email string) error {
	if email == "" {
		return validationError("email is required")
	}
	if len(email) > maxEmailLength {
		return validationError("email must be at most %d characters", maxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return validationError("email is not a valid address")
	}
	return nil
}

func validatePassword(field, password string) error {
	n := utf8.RuneCountInString(password)
	if n == 0 {
		return validationError("%s is required", field)
	}
	if n < minPasswordLength || n > maxPasswordLength {
		return validationError("%s must be between %d and %d characters", field, minPasswordLength, maxPasswordLength)
	}
	return nil
}

func validateBirthDate(birth, now time.Time) error {
	if birth.IsZero() {
		return validationError("birth date is required")
	}
	y, m, d := now.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if birth.After(today) {
		return validationError("birth date cannot be in the future")
	}
	return nil
}

func validateRegister(req model.RegisterRequest, now time.Time) error {
	if err := validateName("first name", req.FirstName); err != nil {
		return err
	}
	if err := validateName("last name", req.LastName); err != nil {
		return err
	}
	if err := validateEmail(req.Email); err != nil {
		return err
	}
	if err := validateBirthDate(req.BirthDate.Time, now); err != nil {
		return err
	}
	if err := validatePassword("password", req.Password); err != nil {
		return err
	}
	if !req.Role.Valid() {
		return validationError("role must be one of student, trainer, nutritionist")
	}
	if req.Password != req.ConfirmPassword {
		return ErrPasswordsDoNotMatch
	}
	return nil
}
