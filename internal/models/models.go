package models

import "time"

type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusAccepted  RequestStatus = "accepted"
	StatusRejected  RequestStatus = "rejected"
	StatusCancelled RequestStatus = "cancelled"
)

const (
	MinRideSeats    = 1
	MaxRideSeats    = 8
	MinRequestSeats = 1
	MaxRequestSeats = 4
)

type Soldier struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Phone     *string   `json:"phone,omitempty" bson:"phone,omitempty"`
	HomeArea  string    `json:"home_area" bson:"home_area"`
	BaseName  string    `json:"base_name" bson:"base_name"`
	HasCar    bool      `json:"has_car" bson:"has_car"`
	Verified  bool      `json:"verified" bson:"verified"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Ride is a driver's posted trip. SeatsAvailable never leaves [0, SeatsTotal].
type Ride struct {
	ID             string    `json:"id" bson:"_id"`
	DriverID       string    `json:"driver_id" bson:"driver_id"`
	FromArea       string    `json:"from_area" bson:"from_area"`
	ToArea         string    `json:"to_area" bson:"to_area"`
	DepartureTime  time.Time `json:"departure_time" bson:"departure_time"`
	SeatsTotal     int       `json:"seats_total" bson:"seats_total"`
	SeatsAvailable int       `json:"seats_available" bson:"seats_available"`
	PricePerSeat   float64   `json:"price_per_seat" bson:"price_per_seat"`
	CarInfo        *string   `json:"car_info,omitempty" bson:"car_info,omitempty"`
	Notes          *string   `json:"notes,omitempty" bson:"notes,omitempty"`
	Tags           []string  `json:"tags" bson:"tags"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}

type RideRequest struct {
	ID          string        `json:"id" bson:"_id"`
	RideID      string        `json:"ride_id" bson:"ride_id"`
	PassengerID string        `json:"passenger_id" bson:"passenger_id"`
	Seats       int           `json:"seats" bson:"seats"`
	Status      RequestStatus `json:"status" bson:"status"`
	Message     *string       `json:"message,omitempty" bson:"message,omitempty"`
	CreatedAt   time.Time     `json:"created_at" bson:"created_at"`
}

// RideSuggestion is a candidate ride together with its match score.
type RideSuggestion struct {
	Ride  Ride    `json:"ride"`
	Score float64 `json:"score"`
}
