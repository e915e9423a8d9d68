package seed

import (
	"context"
	"fmt"
	"log/slog"

	"buffonomics/internal/auth"
	"buffonomics/internal/middleware"
	"buffonomics/internal/repository"
)

// DemoUser is a seeded account with its plaintext password.
type DemoUser struct {
	Email    string
	Password string
}

// Result summarizes one seeding run.
type Result struct {
	Politicians []string
	Users       []DemoUser
}

// Seeder writes factory output into the repositories.
type Seeder struct {
	factory  *Factory
	profiles repository.CongressRepository
	users    repository.UserRepository
	hasher   *auth.Hasher
}

// NewSeeder returns a Seeder. users and hasher may be nil when Options.Users is zero.
func NewSeeder(factory *Factory, profiles repository.CongressRepository, users repository.UserRepository, hasher *auth.Hasher) *Seeder {
	return &Seeder{factory: factory, profiles: profiles, users: users, hasher: hasher}
}

// Run upserts the demo profiles and creates the demo users.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	opts := s.factory.Options()
	res := &Result{}

	for i := 0; i < opts.Politicians; i++ {
		p := s.factory.BuildPolitician()
		stored, err := s.profiles.Upsert(ctx, p.QueryKey, p)
		if err != nil {
			return res, fmt.Errorf("seed politician %q: %w", p.Name, err)
		}
		res.Politicians = append(res.Politicians, stored.QueryKey)
	}

	if opts.Users > 0 {
		if s.users == nil || s.hasher == nil {
			return res, fmt.Errorf("seed users: no user repository configured")
		}
		for i := 0; i < opts.Users; i++ {
			user, password := s.factory.BuildUser()
			hash, err := s.hasher.Hash(password)
			if err != nil {
				return res, err
			}
			user.Password = hash
			if err := s.users.Create(ctx, user); err != nil {
				return res, fmt.Errorf("seed user %q: %w", user.Email, err)
			}
			res.Users = append(res.Users, DemoUser{Email: user.Email, Password: password})
		}
	}

	middleware.Logger.InfoContext(ctx, "Seeded demo data",
		slog.Int("politicians", len(res.Politicians)),
		slog.Int("users", len(res.Users)))
	return res, nil
}
