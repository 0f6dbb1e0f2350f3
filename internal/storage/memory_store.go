package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/example/carpool/internal/models"
)

// MemoryStore is an in-memory implementation of Store.
// It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	soldiers map[string]models.Soldier
	rides    map[string]models.Ride
	requests map[string]models.RideRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		soldiers: make(map[string]models.Soldier),
		rides:    make(map[string]models.Ride),
		requests: make(map[string]models.RideRequest),
	}
}

func (m *MemoryStore) CreateSoldier(ctx context.Context, s models.Soldier) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.soldiers[s.ID]; ok {
		return ErrAlreadyExists
	}
	m.soldiers[s.ID] = cloneSoldier(s)
	return nil
}

func (m *MemoryStore) GetSoldier(ctx context.Context, id string) (models.Soldier, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.soldiers[id]
	if !ok {
		return models.Soldier{}, ErrNotFound
	}
	return cloneSoldier(s), nil
}

func (m *MemoryStore) ListSoldiers(ctx context.Context, f SoldierFilter) ([]models.Soldier, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Soldier, 0, len(m.soldiers))
	for _, s := range m.soldiers {
		if f.Area != "" && !models.ContainsFold(s.HomeArea, f.Area) {
			continue
		}
		if f.Base != "" && !models.ContainsFold(s.BaseName, f.Base) {
			continue
		}
		if f.HasCar != nil && s.HasCar != *f.HasCar {
			continue
		}
		out = append(out, cloneSoldier(s))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return truncate(out, limitOrDefault(f.Limit)), nil
}

func (m *MemoryStore) CreateRide(ctx context.Context, r models.Ride) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rides[r.ID]; ok {
		return ErrAlreadyExists
	}
	m.rides[r.ID] = cloneRide(r)
	return nil
}

func (m *MemoryStore) GetRide(ctx context.Context, id string) (models.Ride, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	if !ok {
		return models.Ride{}, ErrNotFound
	}
	return cloneRide(r), nil
}

func (m *MemoryStore) ListRides(ctx context.Context, f RideFilter) ([]models.Ride, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Ride, 0, len(m.rides))
	for _, r := range m.rides {
		if f.FromArea != "" && !models.ContainsFold(r.FromArea, f.FromArea) {
			continue
		}
		if f.ToArea != "" && !models.ContainsFold(r.ToArea, f.ToArea) {
			continue
		}
		if !f.DepartFrom.IsZero() && r.DepartureTime.Before(f.DepartFrom) {
			continue
		}
		if !f.DepartTo.IsZero() && r.DepartureTime.After(f.DepartTo) {
			continue
		}
		if r.SeatsAvailable < f.MinSeatsAvailable {
			continue
		}
		out = append(out, cloneRide(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DepartureTime.Equal(out[j].DepartureTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].DepartureTime.Before(out[j].DepartureTime)
	})
	return truncate(out, limitOrDefault(f.Limit)), nil
}

func (m *MemoryStore) AdjustSeats(ctx context.Context, rideID string, delta int) (models.Ride, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok {
		return models.Ride{}, ErrNotFound
	}
	next := r.SeatsAvailable + delta
	if next < 0 || next > r.SeatsTotal {
		return models.Ride{}, ErrSeatBounds
	}
	r.SeatsAvailable = next
	m.rides[rideID] = r
	return cloneRide(r), nil
}

func (m *MemoryStore) CreateRequest(ctx context.Context, r models.RideRequest) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[r.ID]; ok {
		return ErrAlreadyExists
	}
	m.requests[r.ID] = cloneRequest(r)
	return nil
}

func (m *MemoryStore) GetRequest(ctx context.Context, id string) (models.RideRequest, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return models.RideRequest{}, ErrNotFound
	}
	return cloneRequest(r), nil
}

func (m *MemoryStore) ListRequests(ctx context.Context, f RequestFilter) ([]models.RideRequest, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.RideRequest, 0, len(m.requests))
	for _, r := range m.requests {
		if f.RideID != "" && r.RideID != f.RideID {
			continue
		}
		if f.PassengerID != "" && r.PassengerID != f.PassengerID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, cloneRequest(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return truncate(out, limitOrDefault(f.Limit)), nil
}

func (m *MemoryStore) UpdateRequestStatus(ctx context.Context, id string, status models.RequestStatus) (models.RideRequest, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return models.RideRequest{}, ErrNotFound
	}
	r.Status = status
	m.requests[id] = r
	return cloneRequest(r), nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (m *MemoryStore) Close() error { return nil }

func truncate[T any](in []T, n int) []T {
	if len(in) > n {
		return in[:n]
	}
	return in
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneSoldier(s models.Soldier) models.Soldier {
	s.Phone = cloneStringPtr(s.Phone)
	return s
}

func cloneRide(r models.Ride) models.Ride {
	r.CarInfo = cloneStringPtr(r.CarInfo)
	r.Notes = cloneStringPtr(r.Notes)
	r.Tags = append([]string{}, r.Tags...)
	return r
}

func cloneRequest(r models.RideRequest) models.RideRequest {
	r.Message = cloneStringPtr(r.Message)
	return r
}
