package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/jafarshop/delifast/internal/config"
	"github.com/jafarshop/delifast/internal/repository/postgres"
	"github.com/jafarshop/delifast/internal/service"
	"github.com/jafarshop/delifast/internal/shopify"
)

const appScopes = "read_orders,write_orders"

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/oauth-token/main.go <shop-domain> [code]")
		fmt.Println("Example: go run cmd/oauth-token/main.go demo.myshopify.com")
		fmt.Println("\nNote: This requires manual authorization. Follow the steps:")
		fmt.Println("1. Run this script - it will give you an authorization URL")
		fmt.Println("2. Visit the URL in your browser and authorize")
		fmt.Println("3. Copy the 'code' from the redirect URL")
		fmt.Println("4. Run the script again with the code; the token is stored as the shop's install")
		os.Exit(1)
	}

	shop := shopify.NormalizeShopDomain(os.Args[1])

	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.Shopify.APIKey == "" {
		fmt.Fprintln(os.Stderr, "SHOPIFY_API_KEY is required")
		os.Exit(1)
	}

	// Step 2: exchange the code and store the install
	if len(os.Args) >= 3 {
		accessToken, scopes, err := exchangeCodeForToken(shop, cfg.Shopify.APIKey, cfg.Shopify.APISecret, os.Args[2])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to get access token: %v\n", err)
			os.Exit(1)
		}
		if err := saveInstall(cfg, shop, accessToken, scopes); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to store install: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✅ Access token stored for %s (scopes: %s)\n", shop, scopes)
		return
	}

	// Step 1: Generate authorization URL
	authURL := fmt.Sprintf("https://%s/admin/oauth/authorize?client_id=%s&scope=%s&redirect_uri=%s",
		shop, url.QueryEscape(cfg.Shopify.APIKey), appScopes, url.QueryEscape(cfg.Shopify.AppURL+"/auth/callback"))

	fmt.Printf("Step 1: Authorize the app\n\n")
	fmt.Printf("Visit this URL in your browser:\n")
	fmt.Printf("%s\n\n", authURL)
	fmt.Printf("After authorizing, you'll get a code.\n")
	fmt.Printf("Then run:\n")
	fmt.Printf("go run cmd/oauth-token/main.go %s <code>\n", shop)
}

func saveInstall(cfg *config.Config, shop, accessToken, scopes string) error {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	repos := postgres.NewRepositories(db, logger)
	shops := service.NewShopService(repos, service.NewShopifyService(cfg.Shopify, repos.Shop, logger), cfg.Shopify.AppURL, logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := shops.SaveInstall(ctx, shop, accessToken, scopes); err != nil {
		return err
	}
	if cfg.Shopify.AppURL == "" {
		fmt.Println("⚠️  SHOPIFY_APP_URL is not set, skipping webhook registration")
		return nil
	}
	result, err := shops.RegisterWebhooks(ctx, shop)
	if err != nil {
		return fmt.Errorf("token stored but webhook registration failed: %w", err)
	}
	fmt.Printf("Webhooks: %+v\n", *result)
	return nil
}

func exchangeCodeForToken(shopDomain, clientID, clientSecret, code string) (string, string, error) {
	data := url.Values{}
	data.Set("client_id", clientID)
	data.Set("client_secret", clientSecret)
	data.Set("code", code)

	req, err := http.NewRequest("POST", fmt.Sprintf("https://%s/admin/oauth/access_token", shopDomain),
		strings.NewReader(data.Encode()))
	if err != nil {
		return "", "", err
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("failed to get token: %s", string(body))
	}

	var result struct {
		AccessToken string `json:"access_token"`
		Scope       string `json:"scope"`
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return "", "", err
	}

	return result.AccessToken, result.Scope, nil
}
