package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/carpool/internal/models"
)

var t0 = time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC)

func seedRide(t *testing.T, s *MemoryStore, from, to string, dep time.Time, total, avail int) models.Ride {
	t.Helper()
	r := models.Ride{
		ID:             models.NewID(),
		DriverID:       models.NewID(),
		FromArea:       from,
		ToArea:         to,
		DepartureTime:  dep,
		SeatsTotal:     total,
		SeatsAvailable: avail,
		Tags:           []string{},
		CreatedAt:      t0,
	}
	if err := s.CreateRide(context.Background(), r); err != nil {
		t.Fatalf("create ride: %v", err)
	}
	return r
}

func TestAdjustSeatsRespectsBounds(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	r := seedRide(t, s, "Haifa", "Tel Nof", t0, 4, 4)

	got, err := s.AdjustSeats(ctx, r.ID, -3)
	if err != nil || got.SeatsAvailable != 1 {
		t.Fatalf("expected 1 seat left, got %d err=%v", got.SeatsAvailable, err)
	}
	if _, err := s.AdjustSeats(ctx, r.ID, -2); !errors.Is(err, ErrSeatBounds) {
		t.Fatalf("expected ErrSeatBounds on overdraw, got %v", err)
	}
	if _, err := s.AdjustSeats(ctx, r.ID, 4); !errors.Is(err, ErrSeatBounds) {
		t.Fatalf("expected ErrSeatBounds above total, got %v", err)
	}
	if _, err := s.AdjustSeats(ctx, models.NewID(), 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	after, _ := s.GetRide(ctx, r.ID)
	if after.SeatsAvailable != 1 {
		t.Fatalf("refused adjustments must not change the ride, got %d", after.SeatsAvailable)
	}
}

func TestAdjustSeatsConcurrentNeverOverdraws(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	r := seedRide(t, s, "a", "b", t0, 8, 8)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.AdjustSeats(ctx, r.ID, -1); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	after, _ := s.GetRide(ctx, r.ID)
	if granted != 8 || after.SeatsAvailable != 0 {
		t.Fatalf("expected 8 grants and 0 seats, got %d grants and %d seats", granted, after.SeatsAvailable)
	}
}

func TestListRidesFiltersAndOrders(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	late := seedRide(t, s, "North Haifa", "Tel Nof", t0.Add(3*time.Hour), 4, 4)
	early := seedRide(t, s, "haifa bay", "Tel Nof", t0.Add(time.Hour), 4, 2)
	seedRide(t, s, "Jerusalem", "Tel Nof", t0.Add(2*time.Hour), 4, 4)
	seedRide(t, s, "Haifa", "Tel Nof", t0.Add(2*time.Hour), 4, 0)

	got, err := s.ListRides(ctx, RideFilter{FromArea: "HAIFA", MinSeatsAvailable: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != early.ID || got[1].ID != late.ID {
		t.Fatalf("unexpected rides %+v", got)
	}

	got, _ = s.ListRides(ctx, RideFilter{DepartFrom: t0.Add(90 * time.Minute), DepartTo: t0.Add(150 * time.Minute)})
	if len(got) != 2 {
		t.Fatalf("expected 2 rides inside window, got %d", len(got))
	}
	got, _ = s.ListRides(ctx, RideFilter{Limit: 1})
	if len(got) != 1 || got[0].ID != early.ID {
		t.Fatalf("limit should keep the earliest departure")
	}
}

func TestListSoldiersNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	yes := true
	older := models.Soldier{ID: models.NewID(), Name: "A", HomeArea: "Haifa", BaseName: "Tel Nof", HasCar: true, CreatedAt: t0}
	newer := models.Soldier{ID: models.NewID(), Name: "B", HomeArea: "South Haifa", BaseName: "Nevatim", HasCar: true, CreatedAt: t0.Add(time.Minute)}
	walker := models.Soldier{ID: models.NewID(), Name: "C", HomeArea: "Haifa", BaseName: "Tel Nof", CreatedAt: t0.Add(2 * time.Minute)}
	for _, so := range []models.Soldier{older, newer, walker} {
		if err := s.CreateSoldier(ctx, so); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	got, _ := s.ListSoldiers(ctx, SoldierFilter{Area: "haifa", HasCar: &yes})
	if len(got) != 2 || got[0].ID != newer.ID || got[1].ID != older.ID {
		t.Fatalf("unexpected order %+v", got)
	}
	got, _ = s.ListSoldiers(ctx, SoldierFilter{Base: "nof"})
	if len(got) != 2 {
		t.Fatalf("expected 2 soldiers at Tel Nof, got %d", len(got))
	}
	if err := s.CreateSoldier(ctx, older); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestRequestStatusUpdateAndFilter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	rideID := models.NewID()
	req := models.RideRequest{ID: models.NewID(), RideID: rideID, PassengerID: models.NewID(), Seats: 1, Status: models.StatusPending, CreatedAt: t0}
	other := models.RideRequest{ID: models.NewID(), RideID: models.NewID(), PassengerID: models.NewID(), Seats: 2, Status: models.StatusPending, CreatedAt: t0}
	_ = s.CreateRequest(ctx, req)
	_ = s.CreateRequest(ctx, other)

	updated, err := s.UpdateRequestStatus(ctx, req.ID, models.StatusAccepted)
	if err != nil || updated.Status != models.StatusAccepted {
		t.Fatalf("update: %v %v", updated.Status, err)
	}
	got, _ := s.ListRequests(ctx, RequestFilter{RideID: rideID, Status: models.StatusAccepted})
	if len(got) != 1 || got[0].ID != req.ID {
		t.Fatalf("unexpected requests %+v", got)
	}
	if _, err := s.UpdateRequestStatus(ctx, models.NewID(), models.StatusRejected); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	s := NewMemoryStore()
	r := seedRide(t, s, "a", "b", t0, 2, 2)
	r.Tags = append(r.Tags, "x")
	got, _ := s.GetRide(context.Background(), r.ID)
	got.Tags = append(got.Tags, "mutated")
	again, _ := s.GetRide(context.Background(), r.ID)
	if len(again.Tags) != 0 {
		t.Fatalf("store state leaked through returned slices: %v", again.Tags)
	}
}
