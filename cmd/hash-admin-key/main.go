package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/jafarshop/delifast/internal/api/middleware"
)

// hash-admin-key prints the ADMIN_API_KEY_HASH value for a key. Without an
// argument a random key is generated.
func main() {
	apiKey := ""
	if len(os.Args) > 1 {
		apiKey = os.Args[1]
	} else {
		buf := make([]byte, 24)
		if _, err := rand.Read(buf); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate key: %v\n", err)
			os.Exit(1)
		}
		apiKey = "dlf_" + hex.EncodeToString(buf)
		fmt.Printf("Generated admin API key (store it, it is not shown again):\n%s\n\n", apiKey)
	}

	hash, err := middleware.HashAPIKey(apiKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Add this to your .env file:\n")
	fmt.Printf("ADMIN_API_KEY_HASH=%s\n", hash)
}
