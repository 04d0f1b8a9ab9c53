package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/gameroom/backend/internal/api"
	"github.com/gameroom/backend/internal/config"
	"github.com/gameroom/backend/internal/database"
	"github.com/gameroom/backend/internal/engine"
	"github.com/gameroom/backend/internal/games"
	"github.com/gameroom/backend/internal/migrations"
	"github.com/gameroom/backend/internal/router"
	"github.com/gameroom/backend/internal/store"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations on start if requested
	if os.Getenv("MIGRATE_ON_START") == "true" {
		log.Println("Running DB migrations on startup...")
		if err := migrations.Run(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	types := games.TypeMap{
		"chess": games.Chess(),
	}

	clients := router.NewClientMap()
	eng := engine.New(store.NewSQL(db), types, clients)
	go eng.Run(context.Background())

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	tc := engine.TimeControl{PerMove: cfg.PerMove, SuddenDeath: cfg.SuddenDeath}
	api.SetupRoutes(r, clients, eng, tc)

	log.Printf("Starting gameroom server on %s", cfg.ServerURL)
	if err := r.Run(cfg.ServerURL); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
