package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/cassiomorais/notifications/internal/infrastructure/config"
	"github.com/cassiomorais/notifications/internal/middleware"
)

// token prints a bearer token for calling the API as the given user.
func main() {
	var (
		userID string
		ttl    time.Duration
	)

	flag.StringVar(&userID, "user", "", "User id to embed in the token")
	flag.DurationVar(&ttl, "ttl", 0, "Token lifetime (default: auth.jwt_expiry)")
	flag.Parse()

	if userID == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Auth.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "auth.jwt_secret is not set")
		os.Exit(1)
	}
	if ttl <= 0 {
		ttl = cfg.Auth.JWTExpiry
	}

	token, err := middleware.IssueToken(cfg.Auth.JWTSecret, userID, ttl, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
