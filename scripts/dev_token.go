package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/linesmerrill/event-checkin-api/api"
	"github.com/linesmerrill/event-checkin-api/config"
)

// Quick utility to mint a bearer token for local testing with JWT_SECRET and JWT_ISSUER
// Usage: go run scripts/dev_token.go -user alice -name "Alice" -email alice@example.com
func main() {
	user := flag.String("user", "", "subject of the token")
	name := flag.String("name", "", "display name claim")
	email := flag.String("email", "", "email claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "lifetime of the token")
	flag.Parse()

	if *user == "" {
		fmt.Println("Usage: go run scripts/dev_token.go -user <userId> [-name <name>] [-email <email>] [-ttl 24h]")
		os.Exit(1)
	}

	conf, err := config.New()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if conf.Env == "production" {
		fmt.Println("Refusing to mint tokens with production config")
		os.Exit(1)
	}

	verifier, err := api.NewTokenVerifier(conf.JWTSecret, conf.JWTIssuer)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	now := time.Now()
	token, err := verifier.Sign(api.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   *user,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
		},
		Name:  *name,
		Email: *email,
	})
	if err != nil {
		fmt.Printf("Error signing token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("User: %s\n", *user)
	fmt.Printf("Expires: %s\n", now.Add(*ttl).UTC().Format(time.RFC3339))
	fmt.Printf("\nAuthorization: Bearer %s\n", token)
}
