// Command seed fills the configured database with generated politician profiles.
package main

import (
	"context"
	"flag"
	"log"

	"buffonomics/internal/auth"
	"buffonomics/internal/config"
	"buffonomics/internal/database"
	"buffonomics/internal/repository"
	"buffonomics/internal/seed"
)

func main() {
	politicians := flag.Int("politicians", 12, "Number of politician profiles to create")
	trades := flag.Int("trades", 15, "Trades per politician")
	users := flag.Int("users", 1, "Number of demo users to create")
	seedValue := flag.Int64("seed", 0, "Random seed; 0 picks one at random")
	flag.Parse()

	log.Printf("Target: %d politicians, %d trades each, %d users", *politicians, *trades, *users)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Datastore == config.DatastoreMemory {
		log.Fatalf("Datastore %q is not persistent; nothing to seed", cfg.Datastore)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	factory := seed.NewFactory(seed.Options{
		Politicians: *politicians,
		TradesEach:  *trades,
		Users:       *users,
		Seed:        *seedValue,
	})
	s := seed.NewSeeder(factory,
		repository.NewCongressRepository(db),
		repository.NewUserRepository(db),
		auth.NewHasher(cfg.BcryptCost),
	)

	res, err := s.Run(context.Background())
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d politicians", len(res.Politicians))
	for _, u := range res.Users {
		log.Printf("Demo user %s / %s", u.Email, u.Password)
	}
}
