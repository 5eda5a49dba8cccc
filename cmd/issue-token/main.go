// Command issue-token mints credentials for ingestion callers: a signed
// service token for a subject, or the bcrypt hash to configure as
// AUTH_API_KEY_HASH.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/payroll-sync/internal/auth"
	"github.com/spec-kit/payroll-sync/internal/config"
)

func main() {
	subject := flag.String("subject", "", "token subject recorded as the audit actor")
	scopes := flag.String("scopes", auth.ScopeSyncWrite+","+auth.ScopeSyncRead, "comma separated scopes")
	hashKey := flag.String("hash-api-key", "", "print the bcrypt hash of this api key instead of a token")
	flag.Parse()

	if *hashKey != "" {
		hash, err := auth.HashAPIKey(*hashKey, bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("hash api key: %v", err)
		}
		fmt.Println(hash)
		return
	}

	if strings.TrimSpace(*subject) == "" {
		log.Fatal("-subject is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTLMinutes)
	if !tokens.Enabled() {
		log.Fatal("AUTH_JWT_SECRET is not set")
	}

	token, expires, err := tokens.GenerateToken(*subject, splitScopes(*scopes))
	if err != nil {
		log.Fatalf("generate token: %v", err)
	}
	fmt.Println(token)
	log.Printf("expires at %s", expires.Format(time.RFC3339))
}

func splitScopes(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
