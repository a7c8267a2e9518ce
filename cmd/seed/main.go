// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev user (dev@example.com) already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	allowlistrepo "accessgate/internal/allowlist/repository"
	"accessgate/internal/config"
	"accessgate/internal/db"
	policydomain "accessgate/internal/policy/domain"
	policyrepo "accessgate/internal/policy/repository"
	"accessgate/internal/security"
	settingsdomain "accessgate/internal/settings/domain"
	settingsrepo "accessgate/internal/settings/repository"
	userdomain "accessgate/internal/user/domain"
	userrepo "accessgate/internal/user/repository"
)

// devRegoPolicy mirrors the stored settings; same shape as the embedded
// default in internal/policy/engine.
const devRegoPolicy = `package accessgate.lockdown

default reverify_on_reset = false
default auto_allowlist_after_challenge = true
default allowlist_ttl_days = 0
default max_allowlist_entries = 0

reverify_on_reset if {
	input.settings.reverify_on_reset
}

auto_allowlist_after_challenge = input.settings.auto_allowlist_after_challenge if {
	input.settings.auto_allowlist_after_challenge != null
}

allowlist_ttl_days = input.settings.allowlist_ttl_days if {
	input.settings.allowlist_ttl_days > 0
}

max_allowlist_entries = input.settings.max_allowlist_entries if {
	input.settings.max_allowlist_entries > 0
}
`

const (
	devUserEmail = "dev@example.com"
	devPassword  = "Dev&LocalPassw0rd!"
	devUserID    = "dev-user-001"
	devPolicyID  = "dev-policy-001"
	devIP        = "127.0.0.1"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	users := userrepo.NewPostgresRepository(conn)

	existing, err := users.GetByEmail(ctx, devUserEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (dev@example.com exists). Skipping.")
		os.Exit(0)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()
	if err := users.Create(ctx, &userdomain.User{
		ID:           devUserID,
		Email:        devUserEmail,
		Name:         "Dev User",
		PasswordHash: passwordHash,
		Status:       userdomain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		log.Fatalf("create dev user: %v", err)
	}

	// Allow-list localhost so the dev user gets straight in.
	allowlist := allowlistrepo.NewPostgresRepository(conn)
	if err := allowlist.Add(ctx, devUserID, devIP); err != nil {
		log.Fatalf("allowlist localhost: %v", err)
	}

	settings := settingsrepo.NewPostgresRepository(conn)
	if err := settings.Save(ctx, settingsdomain.Defaults()); err != nil {
		log.Fatalf("save settings: %v", err)
	}

	policies := policyrepo.NewPostgresRepository(conn)
	if err := policies.Create(ctx, &policydomain.Policy{
		ID:        devPolicyID,
		Name:      "default lockdown",
		Rules:     devRegoPolicy,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		log.Fatalf("create policy: %v", err)
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Dev login: %s / %s (from %s)\n", devUserEmail, devPassword, devIP)
}
