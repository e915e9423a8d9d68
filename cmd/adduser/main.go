// Command adduser creates a login account in the configured database.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"buffonomics/internal/auth"
	"buffonomics/internal/config"
	"buffonomics/internal/database"
	"buffonomics/internal/models"
	"buffonomics/internal/repository"
	"buffonomics/internal/validation"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	email := fs.String("email", "", "Email address")
	username := fs.String("user", "", "Username (defaults to the email)")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	dbPath := fs.String("db", "", "SQLite database file; overrides the configured datastore")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *email == "" {
		fmt.Fprintln(stdout, "Usage: adduser -email <email> [-user <username>] [-password <password>] [-db <db_path>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: email")
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}

	reg, err := validation.ParseRegistration(*email, password, *username)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(*dbPath)
	if err != nil {
		return err
	}
	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = database.Close(db) }()

	ctx := context.Background()
	users := repository.NewUserRepository(db)

	existing, err := users.GetByEmail(ctx, string(reg.Email))
	if err != nil {
		return err
	}
	if existing == nil {
		existing, err = users.GetByUsername(ctx, reg.Username)
		if err != nil {
			return err
		}
	}
	if existing != nil {
		return fmt.Errorf("user %s already exists", reg.Username)
	}

	hash, err := auth.NewHasher(cfg.BcryptCost).Hash(string(reg.Password))
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{Username: reg.Username, Email: string(reg.Email), Password: hash}
	if err := users.Create(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(stdout, "User %s created successfully with ID %d\n", user.Username, user.ID)
	return nil
}

// loadConfig reads the application config unless dbPath points at a SQLite file.
func loadConfig(dbPath string) (*config.Config, error) {
	if dbPath != "" {
		return &config.Config{Datastore: config.DatastoreSQLite, DBPath: dbPath, BcryptCost: 10}, nil
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Datastore == config.DatastoreMemory {
		return nil, fmt.Errorf("datastore %q does not persist users", cfg.Datastore)
	}
	return cfg, nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	// Non-terminal input, e.g. pipes and tests.
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return strings.TrimRight(scanner.Text(), "\r"), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
