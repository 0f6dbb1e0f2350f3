// Package ledger keeps a ride's seats_available consistent with the ride
// requests currently in the accepted state.
//
// Seats are only reserved when a request is accepted. The seat adjustment
// and the request's status write are two separate store operations, applied
// in that order: a crash between them leaves seats_available adjusted while
// the request still shows its previous status. That gap is accepted and is
// not repaired automatically.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/carpool/internal/apperr"
	"github.com/example/carpool/internal/clock"
	"github.com/example/carpool/internal/events"
	"github.com/example/carpool/internal/models"
	"github.com/example/carpool/internal/observability"
	"github.com/example/carpool/internal/storage"
)

// Store is the subset of storage.Store the ledger needs.
type Store interface {
	GetSoldier(ctx context.Context, id string) (models.Soldier, error)
	GetRide(ctx context.Context, id string) (models.Ride, error)
	AdjustSeats(ctx context.Context, rideID string, delta int) (models.Ride, error)
	CreateRequest(ctx context.Context, r models.RideRequest) error
	GetRequest(ctx context.Context, id string) (models.RideRequest, error)
	UpdateRequestStatus(ctx context.Context, id string, status models.RequestStatus) (models.RideRequest, error)
}

type Service struct {
	store  Store
	events events.Publisher
	clk    clock.Clock
	logger *slog.Logger
}

func NewService(store Store, pub events.Publisher, clk clock.Clock, logger *slog.Logger) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, events: pub, clk: clk, logger: logger}
}

type RequestSeatsInput struct {
	RideID      string  `json:"ride_id"`
	PassengerID string  `json:"passenger_id"`
	Seats       int     `json:"seats"`
	Message     *string `json:"message,omitempty"`
}

// RequestSeats records a pending request to join a ride. The availability
// check is advisory: nothing is reserved until the request is accepted.
func (s *Service) RequestSeats(ctx context.Context, in RequestSeatsInput) (models.RideRequest, error) {
	if !models.ValidID(in.RideID) || !models.ValidID(in.PassengerID) {
		return models.RideRequest{}, apperr.InvalidArgument("Invalid ids")
	}
	ride, err := s.store.GetRide(ctx, in.RideID)
	if err != nil {
		return models.RideRequest{}, notFoundAs(err, "Ride not found")
	}
	if _, err := s.store.GetSoldier(ctx, in.PassengerID); err != nil {
		return models.RideRequest{}, notFoundAs(err, "Passenger not found")
	}
	if err := models.ValidateRequestSeats(in.Seats); err != nil {
		return models.RideRequest{}, err
	}
	if ride.SeatsAvailable < in.Seats {
		return models.RideRequest{}, apperr.InvalidArgument("Not enough seats available")
	}

	req := models.RideRequest{
		ID:          models.NewID(),
		RideID:      in.RideID,
		PassengerID: in.PassengerID,
		Seats:       in.Seats,
		Status:      models.StatusPending,
		Message:     in.Message,
		CreatedAt:   s.clk.Now(),
	}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		return models.RideRequest{}, fmt.Errorf("create ride request: %w", err)
	}
	observability.SeatRequestsTotal.Inc()
	s.publish(ctx, events.RequestEvent{
		Type:        events.TypeRequestCreated,
		RequestID:   req.ID,
		RideID:      req.RideID,
		PassengerID: req.PassengerID,
		Seats:       req.Seats,
		Status:      req.Status,
		OccurredAt:  req.CreatedAt,
	})
	return req, nil
}

// SetStatus moves a request to a new status and applies the seat side
// effect on its ride:
//   - not accepted -> accepted reserves request.Seats
//   - accepted -> rejected/cancelled/pending releases request.Seats
//   - anything else changes only the status
//
// Releasing on accepted -> pending keeps seats_available equal to
// seats_total minus the seats of currently accepted requests; otherwise a
// later re-accept would reserve the same seats twice.
func (s *Service) SetStatus(ctx context.Context, requestID, status string) (models.RideRequest, error) {
	next, err := models.ParseStatus(status)
	if err != nil {
		return models.RideRequest{}, err
	}
	if !models.ValidID(requestID) {
		return models.RideRequest{}, apperr.InvalidArgument("Invalid request id")
	}
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return models.RideRequest{}, notFoundAs(err, "Request not found")
	}
	prev := req.Status

	delta := seatDelta(prev, next, req.Seats)
	switch {
	case delta < 0:
		if err := s.reserve(ctx, req); err != nil {
			return models.RideRequest{}, err
		}
	case delta > 0:
		if err := s.release(ctx, req); err != nil {
			return models.RideRequest{}, err
		}
	}

	updated, err := s.store.UpdateRequestStatus(ctx, req.ID, next)
	if err != nil {
		if delta != 0 {
			s.logger.Error("request status write failed after seat adjustment",
				"request_id", req.ID, "ride_id", req.RideID, "seat_delta", delta, "error", err)
		}
		return models.RideRequest{}, notFoundAs(err, "Request not found")
	}

	observability.StatusTransitions.WithLabelValues(string(prev), string(next)).Inc()
	s.publish(ctx, events.RequestEvent{
		Type:           events.TypeRequestStatusChanged,
		RequestID:      updated.ID,
		RideID:         updated.RideID,
		PassengerID:    updated.PassengerID,
		Seats:          updated.Seats,
		Status:         next,
		PreviousStatus: prev,
		SeatDelta:      delta,
		OccurredAt:     s.clk.Now(),
	})
	return updated, nil
}

// seatDelta is the change to seats_available implied by a transition.
func seatDelta(prev, next models.RequestStatus, seats int) int {
	if prev != models.StatusAccepted && next == models.StatusAccepted {
		return -seats
	}
	if prev == models.StatusAccepted && next != models.StatusAccepted {
		return seats
	}
	return 0
}

func (s *Service) reserve(ctx context.Context, req models.RideRequest) error {
	ride, err := s.store.GetRide(ctx, req.RideID)
	if err != nil {
		return notFoundAs(err, "Ride not found")
	}
	if ride.SeatsAvailable < req.Seats {
		return apperr.InvalidArgument("Not enough seats available")
	}
	if _, err := s.store.AdjustSeats(ctx, req.RideID, -req.Seats); err != nil {
		if errors.Is(err, storage.ErrSeatBounds) {
			// Another accept took the seats between the check and the update.
			observability.SeatConflictsTotal.Inc()
			return apperr.InvalidArgument("Not enough seats available")
		}
		return notFoundAs(err, "Ride not found")
	}
	observability.SeatsReservedTotal.Add(float64(req.Seats))
	return nil
}

func (s *Service) release(ctx context.Context, req models.RideRequest) error {
	if _, err := s.store.AdjustSeats(ctx, req.RideID, req.Seats); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("releasing seats on missing ride", "ride_id", req.RideID, "request_id", req.ID)
			return nil
		}
		return fmt.Errorf("release %d seats on ride %s: %w", req.Seats, req.RideID, err)
	}
	observability.SeatsReleasedTotal.Add(float64(req.Seats))
	return nil
}

func (s *Service) publish(ctx context.Context, ev events.RequestEvent) {
	if err := s.events.Publish(ctx, ev); err != nil {
		observability.EventPublishErrors.Inc()
		s.logger.Warn("event publish failed", "type", ev.Type, "request_id", ev.RequestID, "error", err)
	}
}

func notFoundAs(err error, msg string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound(msg)
	}
	return err
}
