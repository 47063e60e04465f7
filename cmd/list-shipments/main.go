package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/jafarshop/delifast/internal/config"
	"github.com/jafarshop/delifast/internal/domain"
	"github.com/jafarshop/delifast/internal/repository"
	"github.com/jafarshop/delifast/internal/repository/postgres"
	"github.com/jafarshop/delifast/internal/shopify"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/list-shipments/main.go <shop> [status]")
		fmt.Println("Example: go run cmd/list-shipments/main.go demo.myshopify.com error")
		os.Exit(1)
	}
	shop := shopify.NormalizeShopDomain(os.Args[1])
	filter := repository.ShipmentFilter{Limit: 100}
	if len(os.Args) > 2 {
		filter.Status = domain.ShipmentStatus(os.Args[2])
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

	// Initialize database
	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	repos := postgres.NewRepositories(db, logger)

	shipments, total, err := repos.Shipment.ListByShop(context.Background(), shop, filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list shipments: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Shipments for %s (%d total, showing %d):\n\n", shop, total, len(shipments))
	for _, s := range shipments {
		shipmentID := "-"
		if s.ShipmentID != nil {
			shipmentID = *s.ShipmentID
		}
		details := ""
		if s.StatusDetails != nil {
			details = *s.StatusDetails
		}
		fmt.Printf("Order %s (#%s)\n", s.ShopifyOrderID, s.ShopifyOrderNumber)
		fmt.Printf("  Shipment: %s (temporary: %t)\n", shipmentID, s.IsTemporary())
		fmt.Printf("  Status:   %s %s\n", s.Status, details)
		if s.NextLookupAt != nil {
			fmt.Printf("  Next lookup: %s (attempts: %d)\n", s.NextLookupAt.Format("2006-01-02 15:04:05"), s.LookupAttempts)
		}
		fmt.Printf("  Updated:  %s\n\n", s.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
}
