package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/vncsmyrnk/jessica-auth/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/jessica-auth/internal/config"
)

// Applies every up migration, or only the one named by the first argument
// (e.g. "create_refresh_tokens_table.down").
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	connStr := config.DatabaseURL()
	if connStr == "" {
		log.Fatal("DATABASE_URL or POSTGRES_HOST must be set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := postgres.Open(ctx, connStr)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if len(os.Args) < 2 {
		if err := postgres.ApplyMigrations(ctx, db); err != nil {
			log.Fatal(err)
		}
		log.Println("All migrations executed successfully.")
		return
	}

	name, err := postgres.ApplyMigration(ctx, db, os.Args[1])
	if err != nil {
		log.Fatalf("Failed to execute migration: %v", err)
	}
	log.Printf("Migration file %s executed successfully.", name)
}
