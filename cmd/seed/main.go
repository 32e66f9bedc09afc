// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev admin (admin@example.com) already exists.
package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"identity-plane/internal/config"
	"identity-plane/internal/db"
	identitydomain "identity-plane/internal/identity/domain"
	identityrepo "identity-plane/internal/identity/repository"
	"identity-plane/internal/security"
	tenantdomain "identity-plane/internal/tenant/domain"
	tenantrepo "identity-plane/internal/tenant/repository"
	userdomain "identity-plane/internal/user/domain"
	userrepo "identity-plane/internal/user/repository"
)

const (
	devTenantID   = "dev-tenant-001"
	devTenantName = "Dev Tenant"
	adminEmail    = "admin@example.com"
	memberEmail   = "member@example.com"
	devPassword   = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	tenants := tenantrepo.NewPostgresRepository(pool)
	users := userrepo.NewPostgresRepository(pool)
	identities := identityrepo.NewPostgresRepository(pool)
	hasher := security.NewHasher(cfg.Argon2MemoryKiB, cfg.Argon2Iterations, cfg.Argon2Parallelism)

	existing, err := users.GetByEmail(ctx, adminEmail)
	if err != nil {
		log.Fatalf("lookup %s: %v", adminEmail, err)
	}
	if existing != nil {
		log.Printf("seed: %s already exists, nothing to do", adminEmail)
		return
	}

	tenant, err := tenants.GetTenantByID(ctx, devTenantID)
	if err != nil {
		log.Fatalf("lookup tenant: %v", err)
	}
	if tenant == nil {
		t := &tenantdomain.Tenant{
			ID:     devTenantID,
			Name:   devTenantName,
			Status: tenantdomain.TenantStatusActive,
		}
		if err := tenants.CreateTenant(ctx, t); err != nil {
			log.Fatalf("create tenant: %v", err)
		}
		log.Printf("seed: created tenant %s", devTenantID)
	}

	hash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	seedUser(ctx, users, identities, hash, adminEmail, "Dev Admin", []string{"admin"})
	seedUser(ctx, users, identities, hash, memberEmail, "Dev Member", nil)

	log.Printf("seed: done; log in with %s / %s", adminEmail, devPassword)
}

func seedUser(ctx context.Context, users *userrepo.PostgresRepository, identities *identityrepo.PostgresRepository, passwordHash, email, name string, roles []string) {
	u := &userdomain.User{
		ID:       uuid.NewString(),
		TenantID: devTenantID,
		Email:    userdomain.NormalizeEmail(email),
		Name:     name,
		Roles:    roles,
		Status:   userdomain.UserStatusActive,
		MfaState: userdomain.MfaStateNone,
	}
	if err := users.Create(ctx, u); err != nil {
		log.Fatalf("create user %s: %v", email, err)
	}
	id := &identitydomain.Identity{
		ID:           uuid.NewString(),
		UserID:       u.ID,
		Provider:     identitydomain.IdentityProviderLocal,
		ProviderID:   u.Email,
		PasswordHash: passwordHash,
	}
	if err := identities.Create(ctx, id); err != nil {
		log.Fatalf("create identity %s: %v", email, err)
	}
	log.Printf("seed: created user %s", email)
}
