// Command migrate creates the unique indexes the API depends on.
package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/mesikahq/clinic-desk/internal/config"
	"github.com/mesikahq/clinic-desk/internal/database"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Mongo.ConnectTimeout)
	defer cancel()

	client, err := database.NewMongoClient(ctx, &database.Config{
		URI:            cfg.Mongo.URI,
		MaxPoolSize:    cfg.Mongo.MaxPoolSize,
		MinPoolSize:    cfg.Mongo.MinPoolSize,
		ConnectTimeout: cfg.Mongo.ConnectTimeout,
	})
	if err != nil {
		log.Fatalf("failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())

	if err := database.EnsureIndexes(ctx, client.Database(cfg.Mongo.Database)); err != nil {
		log.Fatalf("failed to create indexes: %v", err)
	}

	log.Println("indexes are in place")
}
