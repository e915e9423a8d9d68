// Package auth verifies login credentials and hashes passwords.
package auth

import (
	"context"
	"crypto/subtle"
	"strings"

	"buffonomics/internal/middleware"
	"buffonomics/internal/models"
)

// Verifier checks an identifier and password pair.
type Verifier interface {
	Verify(ctx context.Context, identifier, password string) (models.Principal, bool, error)
}

// EnvVerifier checks credentials against a fixed username to password map.
type EnvVerifier struct {
	users map[string]string
}

// ParseUserList parses "user:pass,user2:pass2". Passwords may contain ':'.
// Malformed entries are skipped.
func ParseUserList(raw string) map[string]string {
	users := make(map[string]string)
	for _, chunk := range strings.Split(raw, ",") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		name, pass, found := strings.Cut(chunk, ":")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			continue
		}
		users[name] = pass
	}
	return users
}

// NewEnvVerifier builds a verifier from an AUTH_USERS value. When the list is
// empty and allowDemo is set it falls back to demo:demo.
func NewEnvVerifier(raw string, allowDemo bool) *EnvVerifier {
	users := ParseUserList(raw)
	if len(users) == 0 && allowDemo {
		middleware.Logger.Warn("AUTH_USERS was not configured; using fallback credentials demo:demo")
		users["demo"] = "demo"
	}
	if len(users) > 0 {
		middleware.Logger.Info("environment credential store enabled; not intended for production", "users", len(users))
	}
	return &EnvVerifier{users: users}
}

// Len reports how many credentials are configured.
func (v *EnvVerifier) Len() int {
	return len(v.users)
}

func (v *EnvVerifier) Verify(_ context.Context, identifier, password string) (models.Principal, bool, error) {
	expected, ok := v.users[identifier]
	if !ok || identifier == "" {
		return models.Principal{}, false, nil
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(password)) != 1 {
		return models.Principal{}, false, nil
	}
	return models.Principal{Username: identifier}, true, nil
}

// UserLookup is the read side of the user repository.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// UserVerifier checks credentials against registered users.
type UserVerifier struct {
	users  UserLookup
	hasher *Hasher
}

// NewUserVerifier returns a verifier backed by users.
func NewUserVerifier(users UserLookup, hasher *Hasher) *UserVerifier {
	return &UserVerifier{users: users, hasher: hasher}
}

func (v *UserVerifier) Verify(ctx context.Context, identifier, password string) (models.Principal, bool, error) {
	if identifier == "" || password == "" {
		return models.Principal{}, false, nil
	}

	user, err := v.users.GetByEmail(ctx, strings.ToLower(identifier))
	if err != nil {
		return models.Principal{}, false, err
	}
	if user == nil {
		user, err = v.users.GetByUsername(ctx, identifier)
		if err != nil {
			return models.Principal{}, false, err
		}
	}
	if user == nil {
		return models.Principal{}, false, nil
	}
	if !v.hasher.Compare(user.Password, password) {
		return models.Principal{}, false, nil
	}
	return models.Principal{Username: user.Username, Email: user.Email}, true, nil
}

// ChainVerifier tries each verifier in order; the first success wins.
type ChainVerifier []Verifier

func (c ChainVerifier) Verify(ctx context.Context, identifier, password string) (models.Principal, bool, error) {
	var firstErr error
	for _, v := range c {
		if v == nil {
			continue
		}
		p, ok, err := v.Verify(ctx, identifier, password)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			return p, true, nil
		}
	}
	return models.Principal{}, false, firstErr
}
