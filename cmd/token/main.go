package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/Rrens/swift-assistant/internal/config"
	"github.com/Rrens/swift-assistant/internal/security"
)

func main() {
	client := flag.String("client", "swift-widget", "client name embedded in the token")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to auth.access_token_ttl)")
	genKey := flag.Bool("storage-key", false, "print a new storage encryption key instead of a token")
	flag.Parse()

	if *genKey {
		key, err := security.GenerateKey()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(security.EncodeKey(key))
		return
	}

	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if !cfg.Auth.Enabled() {
		fmt.Fprintln(os.Stderr, "auth.jwt_secret (JWT_SECRET) is not set")
		os.Exit(1)
	}

	lifetime := cfg.Auth.AccessTokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	token, err := security.NewJWTManager(cfg.Auth.JWTSecret, lifetime).GenerateAccessToken(*client)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", time.Now().Add(lifetime).Format(time.RFC3339))
}
