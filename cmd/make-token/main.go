package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/Sunil-1234/Virtual-call-assistant/pkg/auth"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/env"
)

// Mints an operator token for the protected API. Hand the output to whoever
// needs dashboard access.
func main() {
	operator := flag.String("operator", "", "operator name (required)")
	role := flag.String("role", "operator", "role claim: operator or admin")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	if *operator == "" {
		log.Fatal("usage: make-token -operator <name> [-role admin] [-ttl 24h]")
	}

	cfg, err := env.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	token, expiresAt, err := auth.GenerateToken(*operator, *role, cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, *ttl)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	fmt.Printf("Operator:  %s\n", *operator)
	fmt.Printf("Role:      %s\n", *role)
	fmt.Printf("Expires:   %s\n", expiresAt.Format(time.RFC3339))
	fmt.Printf("\n%s\n", token)
}
