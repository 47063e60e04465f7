package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/jafarshop/delifast/internal/config"
	"github.com/jafarshop/delifast/internal/delifast"
	"github.com/jafarshop/delifast/internal/repository/postgres"
	"github.com/jafarshop/delifast/internal/service"
	"github.com/jafarshop/delifast/internal/shopify"
)

// refresh-shipment pulls the current Delifast status for one order, or runs a
// single temporary-id lookup pass with --lookup
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/refresh-shipment/main.go <shop> <order_id>")
		fmt.Println("       go run cmd/refresh-shipment/main.go --lookup")
		os.Exit(1)
	}

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

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if os.Args[1] == "--lookup" {
		resolved := workflow.RunLookupOnce(ctx, cfg.Lookup)
		fmt.Printf("Lookup pass done, %d temporary id(s) resolved\n", resolved)
		return
	}

	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "order_id is required")
		os.Exit(1)
	}
	shop := shopify.NormalizeShopDomain(os.Args[1])

	res, err := workflow.RefreshStatus(ctx, shop, os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Refresh failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ Status refreshed")
	fmt.Printf("  Shipment ID: %s (temporary: %t)\n", res.ShipmentID, res.IsTemporary)
	fmt.Printf("  Status:      %s\n", res.Status)
	if res.StatusDetails != "" {
		fmt.Printf("  Details:     %s\n", res.StatusDetails)
	}
}
