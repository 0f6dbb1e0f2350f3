package models

import (
	"testing"
	"time"

	"github.com/example/carpool/internal/apperr"
)

var now = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func TestNewSoldierDefaultsUnverified(t *testing.T) {
	phone := "  "
	s, err := NewSoldier(SoldierInput{Name: " Dana ", Phone: &phone, HomeArea: "Haifa", BaseName: "Tel Nof", HasCar: true}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Verified {
		t.Fatalf("new soldiers must start unverified")
	}
	if s.Name != "Dana" || s.Phone != nil {
		t.Fatalf("expected trimmed name and nil phone, got %q %v", s.Name, s.Phone)
	}
	if !ValidID(s.ID) {
		t.Fatalf("generated id %q is not valid", s.ID)
	}
}

func TestNewSoldierRequiresAreas(t *testing.T) {
	_, err := NewSoldier(SoldierInput{Name: "Dana", BaseName: "Tel Nof"}, now)
	if !apperr.IsInvalidArgument(err) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestNewRideInitialisesAvailability(t *testing.T) {
	r, err := NewRide(RideInput{
		DriverID:      NewID(),
		FromArea:      "Haifa",
		ToArea:        "Tel Nof",
		DepartureTime: now.Add(time.Hour),
		SeatsTotal:    3,
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.SeatsAvailable != 3 {
		t.Fatalf("expected seats_available=3, got %d", r.SeatsAvailable)
	}
	if r.Tags == nil {
		t.Fatalf("tags should default to an empty list")
	}
}

func TestNewRideRejectsBadInput(t *testing.T) {
	base := RideInput{DriverID: NewID(), FromArea: "a", ToArea: "b", DepartureTime: now, SeatsTotal: 2}
	cases := map[string]func(in *RideInput){
		"bad driver":     func(in *RideInput) { in.DriverID = "xyz" },
		"zero seats":     func(in *RideInput) { in.SeatsTotal = 0 },
		"too many seats": func(in *RideInput) { in.SeatsTotal = 9 },
		"negative price": func(in *RideInput) { in.PricePerSeat = -1 },
		"no departure":   func(in *RideInput) { in.DepartureTime = time.Time{} },
		"blank to":       func(in *RideInput) { in.ToArea = " " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := base
			mutate(&in)
			if _, err := NewRide(in, now); !apperr.IsInvalidArgument(err) {
				t.Fatalf("expected invalid argument, got %v", err)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"pending", "accepted", "rejected", "cancelled"} {
		if _, err := ParseStatus(s); err != nil {
			t.Fatalf("status %q should parse: %v", s, err)
		}
	}
	if _, err := ParseStatus("bogus"); !apperr.IsInvalidArgument(err) {
		t.Fatalf("expected invalid argument for bogus status, got %v", err)
	}
}

func TestValidateRequestSeats(t *testing.T) {
	if err := ValidateRequestSeats(0); !apperr.IsInvalidArgument(err) {
		t.Fatalf("0 seats should be rejected")
	}
	if err := ValidateRequestSeats(5); !apperr.IsInvalidArgument(err) {
		t.Fatalf("5 seats should be rejected")
	}
	if err := ValidateRequestSeats(4); err != nil {
		t.Fatalf("4 seats should be accepted: %v", err)
	}
}

func TestAreasOverlap(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"Haifa", "North Haifa", true},
		{"north haifa", "HAIFA", true},
		{"Haifa", "Jerusalem", false},
		{"", "Haifa", false},
		{"Haifa", "", false},
	}
	for _, c := range cases {
		if got := AreasOverlap(c.a, c.b); got != c.want {
			t.Errorf("AreasOverlap(%q,%q)=%v want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestValidID(t *testing.T) {
	if ValidID("not-an-id") {
		t.Fatalf("malformed id accepted")
	}
	if !ValidID("65a1f0c2e4b0a1b2c3d4e5f6") {
		t.Fatalf("well-formed id rejected")
	}
}
