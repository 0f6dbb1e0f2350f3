package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/carpool/internal/models"
)

// openTestPostgres connects to PG_DSN and applies the schema. Tests using it
// are skipped when no database is configured.
func openTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	ctx := context.Background()
	ps, err := NewPostgresStore(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = ps.Close() })

	script, err := os.ReadFile(filepath.Join("..", "..", "migrations", "001_init.sql"))
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if err := ps.Migrate(ctx, string(script)); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return ps
}

func TestPostgresAdjustSeatsBounds(t *testing.T) {
	ps := openTestPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	driver := models.Soldier{ID: models.NewID(), Name: "Driver", HomeArea: "Haifa", BaseName: "Tel Nof", HasCar: true, CreatedAt: now}
	if err := ps.CreateSoldier(ctx, driver); err != nil {
		t.Fatalf("create soldier: %v", err)
	}
	ride := models.Ride{
		ID: models.NewID(), DriverID: driver.ID, FromArea: "Haifa", ToArea: "Tel Nof",
		DepartureTime: now.Add(time.Hour), SeatsTotal: 3, SeatsAvailable: 3, Tags: []string{}, CreatedAt: now,
	}
	if err := ps.CreateRide(ctx, ride); err != nil {
		t.Fatalf("create ride: %v", err)
	}

	got, err := ps.AdjustSeats(ctx, ride.ID, -2)
	if err != nil || got.SeatsAvailable != 1 {
		t.Fatalf("reserve 2: %v %+v", err, got)
	}
	if _, err := ps.AdjustSeats(ctx, ride.ID, -2); !errors.Is(err, ErrSeatBounds) {
		t.Fatalf("expected ErrSeatBounds on overdraw, got %v", err)
	}
	if _, err := ps.AdjustSeats(ctx, ride.ID, 3); !errors.Is(err, ErrSeatBounds) {
		t.Fatalf("expected ErrSeatBounds above seats_total, got %v", err)
	}
	if _, err := ps.AdjustSeats(ctx, models.NewID(), -1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown ride, got %v", err)
	}

	after, err := ps.GetRide(ctx, ride.ID)
	if err != nil || after.SeatsAvailable != 1 {
		t.Fatalf("refused adjustments must leave the ride unchanged: %v %+v", err, after)
	}
}
