package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/jafarshop/delifast/internal/config"
	"github.com/jafarshop/delifast/internal/mapper"
	"github.com/jafarshop/delifast/internal/repository/postgres"
	"github.com/jafarshop/delifast/internal/service"
	"github.com/jafarshop/delifast/internal/shopify"
)

// get-shopify-order fetches an order and prints the Delifast payload it maps to,
// without sending anything
func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: go run cmd/get-shopify-order/main.go <shop> <order_id>")
		fmt.Println("Example: go run cmd/get-shopify-order/main.go demo.myshopify.com 5512345678901")
		os.Exit(1)
	}
	shop := shopify.NormalizeShopDomain(os.Args[1])
	orderID := os.Args[2]

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
	ctx := context.Background()

	fmt.Printf("🔍 Fetching order from Shopify: %s\n\n", orderID)

	order, err := service.NewShopifyService(cfg.Shopify, repos.Shop, logger).GetOrder(ctx, shop, orderID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to fetch order: %v\n", err)
		os.Exit(1)
	}

	settings, stored, err := service.NewSettingsService(repos.StoreSettings, logger).Get(ctx, shop)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load store settings: %v\n", err)
		os.Exit(1)
	}
	if !stored {
		fmt.Println("⚠️  Shop has no saved settings, using defaults")
	}

	result, err := mapper.PrepareOrder(order, settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to map order: %v\n", err)
		os.Exit(1)
	}

	info := mapper.ExtractOrderInfo(order)
	fmt.Printf("Order %s (#%s)\n", order.IDString(), order.OrderNumberString())
	fmt.Printf("  Info:     %+v\n", info)
	fmt.Printf("  Gateway:  %s (financial status: %s)\n", result.Payment.Gateway, result.Payment.FinancialStatus)
	fmt.Printf("  COD: %t  Paid: %t  Fallback: %t\n\n", result.Payment.IsCOD, result.Payment.IsPaid, result.Payment.Fallback)

	payload, err := json.MarshalIndent(result.Order, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode payload: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Delifast payload:")
	fmt.Println(string(payload))
}
