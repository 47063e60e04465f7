package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/jafarshop/delifast/internal/config"
	"github.com/jafarshop/delifast/internal/repository/postgres"
	"github.com/jafarshop/delifast/internal/service"
	"github.com/jafarshop/delifast/internal/shopify"
)

// check-webhooks compares the shop's webhook subscriptions with the topics the
// app needs. With --register the missing ones are created.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/check-webhooks/main.go <shop> [--register]")
		os.Exit(1)
	}
	shop := shopify.NormalizeShopDomain(os.Args[1])
	register := len(os.Args) > 2 && os.Args[2] == "--register"

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
	shopifySvc := service.NewShopifyService(cfg.Shopify, repos.Shop, logger)
	ctx := context.Background()

	fmt.Printf("Checking webhook subscriptions for %s...\n\n", shop)

	subs, err := shopifySvc.ListWebhookSubscriptions(ctx, shop)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to list subscriptions: %v\n", err)
		fmt.Println("Please check:")
		fmt.Println("  1. The shop is installed (POST /v1/shops/:shop/install) or SHOPIFY_SHOP_DOMAIN/SHOPIFY_ACCESS_TOKEN are set")
		fmt.Println("  2. The token has the read_orders and write_orders scopes")
		os.Exit(1)
	}

	registered := make(map[string]string, len(subs))
	for _, s := range subs {
		registered[s.Topic] = s.CallbackURL
	}

	missing := 0
	for _, t := range shopify.AppWebhookTopics {
		want := cfg.Shopify.AppURL + t.Path
		got, ok := registered[t.Topic]
		switch {
		case !ok:
			missing++
			fmt.Printf("❌ %-18s missing\n", t.Topic)
		case !strings.EqualFold(got, want):
			fmt.Printf("⚠️  %-18s %s (expected %s)\n", t.Topic, got, want)
		default:
			fmt.Printf("✅ %-18s %s\n", t.Topic, got)
		}
	}

	if missing == 0 || !register {
		return
	}
	if cfg.Shopify.AppURL == "" {
		fmt.Fprintln(os.Stderr, "SHOPIFY_APP_URL is required to register webhooks")
		os.Exit(1)
	}

	fmt.Println("\nRegistering missing topics...")
	for _, t := range shopify.AppWebhookTopics {
		if _, ok := registered[t.Topic]; ok {
			continue
		}
		if err := shopifySvc.CreateWebhookSubscription(ctx, shop, t.Topic, cfg.Shopify.AppURL+t.Path); err != nil {
			fmt.Fprintf(os.Stderr, "❌ %s: %v\n", t.Topic, err)
			continue
		}
		fmt.Printf("✅ %s registered\n", t.Topic)
	}
}
