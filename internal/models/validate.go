package models

import (
	"math"
	"strings"
	"time"

	"github.com/example/carpool/internal/apperr"
)

type SoldierInput struct {
	Name     string  `json:"name"`
	Phone    *string `json:"phone,omitempty"`
	HomeArea string  `json:"home_area"`
	BaseName string  `json:"base_name"`
	HasCar   bool    `json:"has_car"`
}

type RideInput struct {
	DriverID      string    `json:"driver_id"`
	FromArea      string    `json:"from_area"`
	ToArea        string    `json:"to_area"`
	DepartureTime time.Time `json:"departure_time"`
	SeatsTotal    int       `json:"seats_total"`
	PricePerSeat  float64   `json:"price_per_seat"`
	CarInfo       *string   `json:"car_info,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
}

// NewSoldier validates a registration and builds an unverified soldier.
func NewSoldier(in SoldierInput, now time.Time) (Soldier, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Soldier{}, apperr.InvalidField("name", "must be non-empty")
	}
	home := strings.TrimSpace(in.HomeArea)
	if home == "" {
		return Soldier{}, apperr.InvalidField("home_area", "must be non-empty")
	}
	base := strings.TrimSpace(in.BaseName)
	if base == "" {
		return Soldier{}, apperr.InvalidField("base_name", "must be non-empty")
	}
	return Soldier{
		ID:        NewID(),
		Name:      name,
		Phone:     trimmedOrNil(in.Phone),
		HomeArea:  home,
		BaseName:  base,
		HasCar:    in.HasCar,
		Verified:  false,
		CreatedAt: now,
	}, nil
}

// NewRide validates a ride offer. The driver reference is only checked for
// shape here; existence is the caller's job.
func NewRide(in RideInput, now time.Time) (Ride, error) {
	if !ValidID(in.DriverID) {
		return Ride{}, apperr.InvalidArgument("Invalid driver_id")
	}
	from := strings.TrimSpace(in.FromArea)
	if from == "" {
		return Ride{}, apperr.InvalidField("from_area", "must be non-empty")
	}
	to := strings.TrimSpace(in.ToArea)
	if to == "" {
		return Ride{}, apperr.InvalidField("to_area", "must be non-empty")
	}
	if in.DepartureTime.IsZero() {
		return Ride{}, apperr.InvalidField("departure_time", "is required")
	}
	if in.SeatsTotal < MinRideSeats || in.SeatsTotal > MaxRideSeats {
		return Ride{}, apperr.InvalidField("seats_total", "must be between 1 and 8")
	}
	if in.PricePerSeat < 0 || math.IsNaN(in.PricePerSeat) || math.IsInf(in.PricePerSeat, 0) {
		return Ride{}, apperr.InvalidField("price_per_seat", "must be a non-negative number")
	}
	tags := make([]string, 0, len(in.Tags))
	for _, t := range in.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return Ride{
		ID:             NewID(),
		DriverID:       in.DriverID,
		FromArea:       from,
		ToArea:         to,
		DepartureTime:  in.DepartureTime.UTC(),
		SeatsTotal:     in.SeatsTotal,
		SeatsAvailable: in.SeatsTotal,
		PricePerSeat:   in.PricePerSeat,
		CarInfo:        trimmedOrNil(in.CarInfo),
		Notes:          trimmedOrNil(in.Notes),
		Tags:           tags,
		CreatedAt:      now,
	}, nil
}

// ValidateRequestSeats checks the per-request seat range.
func ValidateRequestSeats(seats int) error {
	if seats < MinRequestSeats {
		return apperr.InvalidArgument("Seats must be >= 1")
	}
	if seats > MaxRequestSeats {
		return apperr.InvalidArgument("Seats must be <= 4")
	}
	return nil
}

func ParseStatus(s string) (RequestStatus, error) {
	switch st := RequestStatus(s); st {
	case StatusPending, StatusAccepted, StatusRejected, StatusCancelled:
		return st, nil
	}
	return "", apperr.InvalidArgument("Invalid status")
}

func trimmedOrNil(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}
