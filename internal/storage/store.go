package storage

import (
	"context"
	"errors"
	"time"

	"github.com/example/carpool/internal/models"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists indicates a record with the same id is already stored.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrSeatBounds indicates a seat adjustment would move seats_available
	// outside [0, seats_total]. The ride is left unchanged.
	ErrSeatBounds = errors.New("seat adjustment out of bounds")
)

// DefaultListLimit caps list scans when the caller passes no limit.
const DefaultListLimit = 100

// SoldierFilter selects soldiers. Area and Base are case-insensitive
// substring matches; empty means no constraint.
type SoldierFilter struct {
	Area   string
	Base   string
	HasCar *bool
	Limit  int
}

// RideFilter selects rides. Zero times mean unbounded.
type RideFilter struct {
	FromArea          string
	ToArea            string
	DepartFrom        time.Time
	DepartTo          time.Time
	MinSeatsAvailable int
	Limit             int
}

type RequestFilter struct {
	RideID      string
	PassengerID string
	Status      models.RequestStatus
	Limit       int
}

// Store is the persistence collaborator used by the carpool services.
//
// Result ordering expectations:
//   - ListSoldiers and ListRequests: newest first (created_at desc, id desc).
//   - ListRides: departure_time ascending, id ascending.
type Store interface {
	CreateSoldier(ctx context.Context, s models.Soldier) error
	GetSoldier(ctx context.Context, id string) (models.Soldier, error)
	ListSoldiers(ctx context.Context, f SoldierFilter) ([]models.Soldier, error)

	CreateRide(ctx context.Context, r models.Ride) error
	GetRide(ctx context.Context, id string) (models.Ride, error)
	ListRides(ctx context.Context, f RideFilter) ([]models.Ride, error)

	// AdjustSeats atomically adds delta to seats_available, refusing with
	// ErrSeatBounds when the result would leave [0, seats_total].
	AdjustSeats(ctx context.Context, rideID string, delta int) (models.Ride, error)

	CreateRequest(ctx context.Context, r models.RideRequest) error
	GetRequest(ctx context.Context, id string) (models.RideRequest, error)
	ListRequests(ctx context.Context, f RequestFilter) ([]models.RideRequest, error)
	UpdateRequestStatus(ctx context.Context, id string, status models.RequestStatus) (models.RideRequest, error)

	Ping(ctx context.Context) error
	Close() error
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return DefaultListLimit
	}
	return n
}
