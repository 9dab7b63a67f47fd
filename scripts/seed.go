package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ventaflow/scheduling/internal/adapters/database"
	"github.com/ventaflow/scheduling/internal/domain/entities"
	"github.com/ventaflow/scheduling/internal/infrastructure/clients/postgres"
	"github.com/ventaflow/scheduling/pkg/config"
)

// Seeds a development database with a local-mode tenant, an external-mode
// tenant bound to the mock provider, and a couple of resources with
// weekday working hours.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgClient.Close()

	ctx := context.Background()

	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				external_blocks,
				sync_cursors,
				commitments,
				resources,
				tenants
			RESTART IDENTITY CASCADE
		`)
		if err != nil {
			log.Fatalf("Failed to truncate tables: %v", err)
		}
	}

	tenantRepo := database.NewTenantAdapter(pgClient)
	resourceRepo := database.NewResourceAdapter(pgClient)

	now := time.Now().UTC()

	weekdayHours := []entities.DayHours{
		{Weekday: time.Monday, Open: "09:00", Close: "17:00"},
		{Weekday: time.Tuesday, Open: "09:00", Close: "17:00"},
		{Weekday: time.Wednesday, Open: "09:00", Close: "17:00"},
		{Weekday: time.Thursday, Open: "09:00", Close: "17:00"},
		{Weekday: time.Friday, Open: "09:00", Close: "13:00"},
	}

	tenants := []*entities.Tenant{
		{
			ID:           uuid.New().String(),
			Name:         "Acme Distribution",
			CalendarMode: entities.CalendarModeLocal,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		{
			ID:            uuid.New().String(),
			Name:          "Lagos Wholesale Co",
			CalendarMode:  entities.CalendarModeExternal,
			Provider:      "mock",
			CredentialRef: "tenants/lagos-wholesale/calendar",
			CreatedAt:     now,
			UpdatedAt:     now,
		},
	}

	for _, tenant := range tenants {
		if err := upsertTenant(ctx, pgClient, tenant); err != nil {
			log.Fatalf("Failed to seed tenant %s: %v", tenant.Name, err)
		}
		log.Printf("Seeded tenant %s (%s, %s mode)", tenant.Name, tenant.ID, tenant.CalendarMode)

		for _, name := range []string{"Adaeze Okafor", "Tunde Balogun"} {
			resource := &entities.Resource{
				ID:           uuid.New().String(),
				TenantID:     tenant.ID,
				Name:         name,
				Timezone:     "Africa/Lagos",
				WorkingHours: weekdayHours,
				IsActive:     true,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if tenant.UsesExternalCalendar() {
				resource.CalendarID = "primary"
			}
			if err := insertResource(ctx, pgClient, resource); err != nil {
				log.Fatalf("Failed to seed resource %s: %v", name, err)
			}
			log.Printf("  Seeded resource %s (%s)", name, resource.ID)
		}
	}

	// Repositories are wired for reads too; sanity-check one listing
	seeded, err := resourceRepo.ListByTenant(ctx, tenants[0].ID, true)
	if err != nil {
		log.Fatalf("Failed to verify seeded resources: %v", err)
	}
	_ = tenantRepo
	log.Printf("Seeding complete: %d active resources for %s", len(seeded), tenants[0].Name)
}

func upsertTenant(ctx context.Context, client *postgres.Client, tenant *entities.Tenant) error {
	_, err := client.DB().ExecContext(ctx, `
		INSERT INTO tenants (id, name, calendar_mode, provider, credential_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, tenant.ID, tenant.Name, tenant.CalendarMode, tenant.Provider, tenant.CredentialRef, tenant.CreatedAt, tenant.UpdatedAt)
	return err
}

func insertResource(ctx context.Context, client *postgres.Client, resource *entities.Resource) error {
	hours, err := json.Marshal(resource.WorkingHours)
	if err != nil {
		return err
	}
	_, err = client.DB().ExecContext(ctx, `
		INSERT INTO resources (id, tenant_id, name, timezone, working_hours, calendar_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, resource.ID, resource.TenantID, resource.Name, resource.Timezone, hours, resource.CalendarID, resource.IsActive, resource.CreatedAt, resource.UpdatedAt)
	return err
}
