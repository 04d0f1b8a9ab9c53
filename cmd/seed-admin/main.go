package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/gameroom/backend/internal/apikey"
	"github.com/gameroom/backend/internal/config"
	"github.com/gameroom/backend/internal/database"
	"github.com/gameroom/backend/internal/errs"
	"github.com/gameroom/backend/internal/models"
	"github.com/gameroom/backend/internal/store"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = "admin@localhost"
		log.Printf("Using default admin email: %s", email)
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "change-me-in-production"
		log.Printf("WARNING: Using default admin password. Set ADMIN_PASSWORD env var in production!")
	}

	ctx := context.Background()
	s := store.NewSQL(db)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	key := apikey.New()

	existing, err := s.FindUserByEmail(ctx, email)
	switch {
	case err == nil:
		existing.IsAdmin = true
		existing.PasswordHash = sql.NullString{String: string(hash), Valid: true}
		existing.APIKeyHash = key.Hash()
		if err := s.UpdateUser(ctx, existing); err != nil {
			log.Fatalf("Failed to update admin account: %v", err)
		}
	case errors.Is(err, errs.ErrNoSuchUser):
		u := &models.User{
			Name:         "Admin",
			Email:        sql.NullString{String: email, Valid: true},
			IsAdmin:      true,
			PasswordHash: sql.NullString{String: string(hash), Valid: true},
			APIKeyHash:   key.Hash(),
		}
		if err := s.InsertUser(ctx, u); err != nil {
			log.Fatalf("Failed to create admin account: %v", err)
		}
	default:
		log.Fatalf("Failed to look up admin account: %v", err)
	}

	log.Printf("✓ Admin account created/updated successfully")
	log.Printf("  Email: %s", email)
	log.Printf("  API key: %s", key)
}
