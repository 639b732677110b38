package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/noah-isme/autoparts-api/internal/auth"
)

// devtoken mints bearer tokens for local development against JWT_SECRET.
func main() {
	_ = godotenv.Load()

	subject := flag.String("sub", uuid.NewString(), "token subject (user id)")
	roles := flag.String("roles", "", "comma separated roles, e.g. admin")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is required")
		os.Exit(1)
	}
	signer := auth.Signer{
		Secret:   []byte(secret),
		Issuer:   envOrDefault("JWT_ISSUER", "autoparts-api"),
		Audience: envOrDefault("JWT_AUDIENCE", "autoparts-clients"),
		TTL:      *ttl,
	}
	token, err := signer.Sign(*subject, splitRoles(*roles))
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign token:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func splitRoles(value string) []string {
	var out []string
	for _, r := range strings.Split(value, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
