package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/jafarshop/delifast/internal/config"
	"github.com/jafarshop/delifast/internal/delifast"
	"github.com/jafarshop/delifast/internal/repository/postgres"
	"github.com/jafarshop/delifast/internal/service"
	"github.com/jafarshop/delifast/internal/shopify"
)

// replace-shipment-id sets the real Delifast id on an order that was stored with a
// temporary one, then refreshes its status
func main() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: go run cmd/replace-shipment-id/main.go <shop> <order_id> <shipment_id>")
		fmt.Println("Example: go run cmd/replace-shipment-id/main.go demo.myshopify.com 5512345678901 700123")
		os.Exit(1)
	}
	shop := shopify.NormalizeShopDomain(os.Args[1])
	orderID := os.Args[2]
	shipmentID := strings.TrimSpace(os.Args[3])

	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	repos := postgres.NewRepositories(db, logger)
	carrier := delifast.NewClient(cfg.Delifast.BaseURL, cfg.Delifast.APIKey, cfg.Delifast.Timeout, logger)
	workflow := service.NewOrderWorkflow(repos, carrier, service.NewShopifyService(cfg.Shopify, repos.Shop, logger), nil, logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := workflow.ReplaceTemporaryID(ctx, shop, orderID, shipmentID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to replace shipment id: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ Shipment id replaced")
	fmt.Printf("  Shipment ID: %s\n", res.ShipmentID)
	fmt.Printf("  Status:      %s\n", res.Status)
}
