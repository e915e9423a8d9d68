// Package validation provides parse-or-reject constructors for user input.
// Values of the types declared here only exist once they have been validated.
package validation

import (
	"errors"
	"regexp"
	"strings"
	"sync"

	"buffonomics/internal/models"

	"github.com/go-playground/validator/v10"
)

const (
	// MinPasswordLength is the shortest accepted registration password.
	MinPasswordLength = 8
	// MaxPasswordLength bounds bcrypt input.
	MaxPasswordLength = 72
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.@+-]+$`)
)

// Email is a trimmed, lowercased, syntactically valid address.
type Email string

// Password is a plaintext password that satisfies the strength rules.
type Password string

// QueryKey is the normalized lookup key of a politician: lowercase and trimmed.
type QueryKey string

// Registration is a validated sign-up request. Username defaults to the email.
type Registration struct {
	Email    Email
	Username string
	Password Password
}

// Credentials is a login attempt with both parts present.
type Credentials struct {
	Identifier string
	Password   string
}

type registrationInput struct {
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,min=8,max=72"`
	Username string `validate:"omitempty,min=3,max=254,username"`
}

type credentialsInput struct {
	Identifier string `validate:"required"`
	Password   string `validate:"required"`
}

// GetValidator returns the shared validator instance.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernameRegex.MatchString(fl.Field().String())
		})
	})
	return validate
}

// ParseEmail trims and lowercases raw and rejects malformed addresses.
func ParseEmail(raw string) (Email, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return "", models.NewMissingError("email")
	}
	if err := GetValidator().Var(value, "email,max=254"); err != nil {
		return "", models.NewValidationError(models.CodeInvalidEmail, "Invalid email address")
	}
	return Email(value), nil
}

// ParsePassword enforces the password length rules.
func ParsePassword(raw string) (Password, error) {
	if raw == "" {
		return "", models.NewMissingError("password")
	}
	if err := GetValidator().Var(raw, "min=8,max=72"); err != nil {
		return "", models.NewValidationError(models.CodeWeakPassword, "Password must be between 8 and 72 characters")
	}
	return Password(raw), nil
}

// ParseQueryKey normalizes a politician name into its lookup key.
func ParseQueryKey(raw string) (QueryKey, error) {
	key := NormalizeQuery(raw)
	if key == "" {
		return "", models.NewMissingError("name")
	}
	return QueryKey(key), nil
}

// NormalizeQuery returns the lowercase, trimmed form of s.
func NormalizeQuery(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ParseRegistration validates a sign-up request. Missing fields are reported before
// malformed ones and email problems before password problems.
func ParseRegistration(email, password, username string) (Registration, error) {
	in := registrationInput{
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Password: password,
		Username: strings.TrimSpace(username),
	}

	if err := GetValidator().Struct(&in); err != nil {
		return Registration{}, translate(err)
	}

	reg := Registration{
		Email:    Email(in.Email),
		Username: in.Username,
		Password: Password(in.Password),
	}
	if reg.Username == "" {
		reg.Username = in.Email
	}
	return reg, nil
}

// ParseCredentials trims the identifier and requires both parts.
func ParseCredentials(identifier, password string) (Credentials, error) {
	in := credentialsInput{
		Identifier: strings.TrimSpace(identifier),
		Password:   password,
	}
	if err := GetValidator().Struct(&in); err != nil {
		return Credentials{}, models.NewValidationError(models.CodeMissing, "Username and password are required")
	}
	return Credentials{Identifier: in.Identifier, Password: in.Password}, nil
}

func translate(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return models.NewInternalError(err)
	}

	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			return models.NewMissingError(strings.ToLower(fe.Field()))
		}
	}

	fe := fieldErrs[0]
	switch fe.Field() {
	case "Email":
		return models.NewValidationError(models.CodeInvalidEmail, "Invalid email address")
	case "Password":
		return models.NewValidationError(models.CodeWeakPassword, "Password must be between 8 and 72 characters")
	default:
		return models.NewValidationError(models.CodeInvalid, "Invalid "+strings.ToLower(fe.Field()))
	}
}
