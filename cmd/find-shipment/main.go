package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/jafarshop/delifast/internal/config"
	"github.com/jafarshop/delifast/internal/domain"
	"github.com/jafarshop/delifast/internal/repository"
	"github.com/jafarshop/delifast/internal/repository/postgres"
	"github.com/jafarshop/delifast/internal/shopify"
	pkgerrors "github.com/jafarshop/delifast/pkg/errors"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: go run cmd/find-shipment/main.go <shop> <order_id|order_number>")
		fmt.Println("Example: go run cmd/find-shipment/main.go demo.myshopify.com \"#1042\"")
		os.Exit(1)
	}
	shop := shopify.NormalizeShopDomain(os.Args[1])
	needle := strings.TrimSpace(os.Args[2])

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
	ctx := context.Background()

	fmt.Printf("🔍 Searching %s for order: %s\n\n", shop, needle)

	// Order id first
	s, err := repos.Shipment.Get(ctx, shop, needle)
	var nf *pkgerrors.ErrNotFound
	if err != nil && !errors.As(err, &nf) {
		fmt.Fprintf(os.Stderr, "Failed to load shipment: %v\n", err)
		os.Exit(1)
	}
	if s == nil {
		s, err = findByOrderNumber(ctx, repos.Shipment, shop, strings.TrimPrefix(needle, "#"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to search shipments: %v\n", err)
			os.Exit(1)
		}
	}
	if s == nil {
		fmt.Println("❌ No shipment found")
		os.Exit(1)
	}

	shipmentID := "-"
	if s.ShipmentID != nil {
		shipmentID = *s.ShipmentID
	}
	fmt.Println("✅ Shipment found!")
	fmt.Printf("  Order ID:     %s\n", s.ShopifyOrderID)
	fmt.Printf("  Order number: %s\n", s.ShopifyOrderNumber)
	fmt.Printf("  Shipment ID:  %s (temporary: %t)\n", shipmentID, s.IsTemporary())
	fmt.Printf("  Status:       %s\n", s.Status)
	if s.StatusDetails != nil {
		fmt.Printf("  Details:      %s\n", *s.StatusDetails)
	}
	if s.SentAt != nil {
		fmt.Printf("  Sent at:      %s\n", s.SentAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("  Created at:   %s\n", s.CreatedAt.Format("2006-01-02 15:04:05"))
}

// findByOrderNumber pages through the shop's shipments looking for the order number
func findByOrderNumber(ctx context.Context, repo repository.ShipmentRepository, shop, number string) (*domain.Shipment, error) {
	const page = 200
	for offset := 0; ; offset += page {
		shipments, total, err := repo.ListByShop(ctx, shop, repository.ShipmentFilter{Limit: page, Offset: offset})
		if err != nil {
			return nil, err
		}
		for _, s := range shipments {
			if s.ShopifyOrderNumber == number {
				return s, nil
			}
		}
		if len(shipments) == 0 || offset+page >= total {
			return nil, nil
		}
	}
}
