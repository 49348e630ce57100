package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/vncsmyrnk/jessica-auth/internal/adapters/hashing"
	"github.com/vncsmyrnk/jessica-auth/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/jessica-auth/internal/config"
	"github.com/vncsmyrnk/jessica-auth/internal/core/domain"
	"github.com/vncsmyrnk/jessica-auth/internal/core/ports"
	"github.com/vncsmyrnk/jessica-auth/internal/core/services"
	"github.com/vncsmyrnk/jessica-auth/internal/logging"
)

// Creates an account from the command line, typically the first Admin.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	var input ports.RegisterInput
	var role, dbURL string
	flag.StringVar(&input.Username, "username", "", "Username")
	flag.StringVar(&input.Email, "email", "", "Email address")
	flag.StringVar(&input.FirstName, "first-name", "", "First name")
	flag.StringVar(&input.LastName, "last-name", "", "Last name")
	flag.StringVar(&input.Password, "password", os.Getenv("CREATE_USER_PASSWORD"), "Password (defaults to $CREATE_USER_PASSWORD)")
	flag.StringVar(&role, "role", "", "Extra role to grant (Admin or Operator)")
	flag.StringVar(&dbURL, "db-url", config.DatabaseURL(), "Database URL")
	flag.Parse()

	if role != "" && !domain.IsKnownRole(role) {
		fmt.Printf("unknown role %q, expected one of %v\n", role, domain.AllRoles)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := postgres.Open(ctx, dbURL)
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer db.Close()

	workFactor, err := config.WorkFactor()
	if err != nil {
		log.Fatal(err)
	}
	hasher, err := hashing.NewHasher(os.Getenv("HASH_ALGORITHM"), workFactor, hashing.DefaultArgon2Config())
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New("warn", "text")
	users := services.NewUserService(postgres.NewUserRepository(db), hasher, logger)

	user, err := users.Register(ctx, input)
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		fmt.Println(verr.Error())
		os.Exit(2)
	case errors.Is(err, domain.ErrUsernameTaken), errors.Is(err, domain.ErrEmailTaken):
		fmt.Printf("user not created: %v\n", err)
		os.Exit(1)
	case err != nil:
		log.Fatalf("failed to create user: %v", err)
	}

	if role != "" && role != domain.RoleUser {
		if err := users.AssignRole(ctx, user.ID, role); err != nil {
			log.Fatalf("user %s created but granting %s failed: %v", user.Username, role, err)
		}
	}

	fmt.Printf("created user %s id=%s\n", user.Username, user.ID)
}
