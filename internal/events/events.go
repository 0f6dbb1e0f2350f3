// Package events publishes ride-request lifecycle events. Publishing is
// best-effort from the services' point of view: a failed publish is logged
// and counted but never fails the request that produced it.
package events

import (
	"context"
	"time"

	"github.com/example/carpool/internal/models"
)

const (
	TypeRequestCreated       = "ride_request.created"
	TypeRequestStatusChanged = "ride_request.status_changed"
)

// RequestEvent describes a change to a ride request.
// SeatDelta is the change applied to the ride's seats_available
// (negative when seats were reserved, positive when released).
type RequestEvent struct {
	Type           string               `json:"type"`
	RequestID      string               `json:"request_id"`
	RideID         string               `json:"ride_id"`
	PassengerID    string               `json:"passenger_id"`
	Seats          int                  `json:"seats"`
	Status         models.RequestStatus `json:"status"`
	PreviousStatus models.RequestStatus `json:"previous_status,omitempty"`
	SeatDelta      int                  `json:"seat_delta"`
	OccurredAt     time.Time            `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev RequestEvent) error
	Close() error
}

// Nop discards events. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, RequestEvent) error { return nil }
func (Nop) Close() error                                { return nil }
