package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/sujalbistaa/postwall/internal/auth"
	"github.com/sujalbistaa/postwall/internal/config"
)

// devtoken mints a bearer token signed with the server's JWT_SECRET, for
// exercising the API locally without an identity provider.
//
// Usage:
//
//	go run ./cmd/devtoken -username alice
//
// Pass the printed token as "Authorization: Bearer <token>".
func main() {
	userID := flag.String("user", "", "user ID placed in the subject claim (random when empty)")
	username := flag.String("username", "", "display name shown next to posts")
	email := flag.String("email", "", "optional email claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *username == "" {
		log.Fatal("-username is required")
	}
	if *userID == "" {
		*userID = uuid.NewString()
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	issuer, err := auth.NewTokenValidator(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		log.Fatalf("Failed to create token issuer: %v", err)
	}

	token, err := issuer.Issue(auth.Identity{UserID: *userID, Username: *username, Email: *email}, *ttl)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Printf("user:    %s\n", *userID)
	fmt.Printf("expires: %s\n", time.Now().Add(*ttl).Format(time.RFC3339))
	fmt.Println(token)
}
