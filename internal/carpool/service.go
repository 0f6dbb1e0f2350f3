// Package carpool implements registration and lookup of soldiers, ride
// offers and ride requests. Seat accounting lives in package ledger.
package carpool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/carpool/internal/apperr"
	"github.com/example/carpool/internal/clock"
	"github.com/example/carpool/internal/models"
	"github.com/example/carpool/internal/storage"
)

type Service struct {
	store storage.Store
	clk   clock.Clock
}

func NewService(store storage.Store, clk clock.Clock) *Service {
	return &Service{store: store, clk: clk}
}

func (s *Service) RegisterSoldier(ctx context.Context, in models.SoldierInput) (models.Soldier, error) {
	soldier, err := models.NewSoldier(in, s.clk.Now())
	if err != nil {
		return models.Soldier{}, err
	}
	if err := s.store.CreateSoldier(ctx, soldier); err != nil {
		return models.Soldier{}, fmt.Errorf("create soldier: %w", err)
	}
	return soldier, nil
}

func (s *Service) GetSoldier(ctx context.Context, id string) (models.Soldier, error) {
	if !models.ValidID(id) {
		return models.Soldier{}, apperr.InvalidArgument("Invalid soldier id")
	}
	soldier, err := s.store.GetSoldier(ctx, id)
	if err != nil {
		return models.Soldier{}, notFoundAs(err, "Soldier not found")
	}
	return soldier, nil
}

type SoldierQuery struct {
	Area   string
	Base   string
	HasCar *bool
}

func (s *Service) ListSoldiers(ctx context.Context, q SoldierQuery) ([]models.Soldier, error) {
	return s.store.ListSoldiers(ctx, storage.SoldierFilter{
		Area:   q.Area,
		Base:   q.Base,
		HasCar: q.HasCar,
		Limit:  storage.DefaultListLimit,
	})
}

// CreateRide posts a ride offer. The driver must exist; whether the driver
// is verified or owns a car is not checked.
func (s *Service) CreateRide(ctx context.Context, in models.RideInput) (models.Ride, error) {
	if !models.ValidID(in.DriverID) {
		return models.Ride{}, apperr.InvalidArgument("Invalid driver_id")
	}
	if _, err := s.store.GetSoldier(ctx, in.DriverID); err != nil {
		return models.Ride{}, notFoundAs(err, "Driver not found")
	}
	ride, err := models.NewRide(in, s.clk.Now())
	if err != nil {
		return models.Ride{}, err
	}
	if err := s.store.CreateRide(ctx, ride); err != nil {
		return models.Ride{}, fmt.Errorf("create ride: %w", err)
	}
	return ride, nil
}

func (s *Service) GetRide(ctx context.Context, id string) (models.Ride, error) {
	if !models.ValidID(id) {
		return models.Ride{}, apperr.InvalidArgument("Invalid ride id")
	}
	ride, err := s.store.GetRide(ctx, id)
	if err != nil {
		return models.Ride{}, notFoundAs(err, "Ride not found")
	}
	return ride, nil
}

type RideQuery struct {
	FromArea string
	ToArea   string
	Earliest time.Time
}

func (s *Service) ListRides(ctx context.Context, q RideQuery) ([]models.Ride, error) {
	return s.store.ListRides(ctx, storage.RideFilter{
		FromArea:   q.FromArea,
		ToArea:     q.ToArea,
		DepartFrom: q.Earliest,
		Limit:      storage.DefaultListLimit,
	})
}

func (s *Service) GetRequest(ctx context.Context, id string) (models.RideRequest, error) {
	if !models.ValidID(id) {
		return models.RideRequest{}, apperr.InvalidArgument("Invalid request id")
	}
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return models.RideRequest{}, notFoundAs(err, "Request not found")
	}
	return req, nil
}

type RequestQuery struct {
	RideID      string
	PassengerID string
	Status      string
}

// ListRequests filters ride requests. Malformed ride or passenger ids are
// ignored rather than rejected, so a bad filter widens the result.
func (s *Service) ListRequests(ctx context.Context, q RequestQuery) ([]models.RideRequest, error) {
	f := storage.RequestFilter{
		Status: models.RequestStatus(q.Status),
		Limit:  storage.DefaultListLimit,
	}
	if models.ValidID(q.RideID) {
		f.RideID = q.RideID
	}
	if models.ValidID(q.PassengerID) {
		f.PassengerID = q.PassengerID
	}
	return s.store.ListRequests(ctx, f)
}

func notFoundAs(err error, msg string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound(msg)
	}
	return err
}
