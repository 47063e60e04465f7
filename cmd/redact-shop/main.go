// redact-shop deletes everything stored for one shop, the same as a shop/redact
// webhook. Use the same DB as the server (.env or DB_* variables).
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/jafarshop/delifast/internal/config"
	"github.com/jafarshop/delifast/internal/repository/postgres"
	"github.com/jafarshop/delifast/internal/service"
	"github.com/jafarshop/delifast/internal/shopify"
)

func main() {
	if len(os.Args) < 3 || os.Args[2] != "--confirm" {
		fmt.Println("Usage: go run cmd/redact-shop/main.go <shop> --confirm")
		os.Exit(1)
	}
	shop := shopify.NormalizeShopDomain(os.Args[1])

	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.Close()

	repos := postgres.NewRepositories(db, logger)
	shops := service.NewShopService(repos, nil, cfg.Shopify.AppURL, logger)

	result, err := shops.HandleShopRedact(context.Background(), shop)
	if err != nil {
		log.Fatalf("Failed to redact shop: %v", err)
	}
	fmt.Printf("Deleted %d shipment(s) and %d webhook event(s) for %s\n", result.Shipments, result.WebhookEvents, shop)
}
