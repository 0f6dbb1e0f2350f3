package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/carpool/internal/apperr"
	"github.com/example/carpool/internal/carpool"
	"github.com/example/carpool/internal/ledger"
	"github.com/example/carpool/internal/models"
)

const defaultWindowHours = 24

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Soldier Carpool API running"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Ping(r.Context()); err != nil {
		s.logger.Warn("store not ready", "error", err)
		http.Error(w, "store not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleCreateSoldier(w http.ResponseWriter, r *http.Request) {
	var in models.SoldierInput
	if !s.decode(w, r, &in) {
		return
	}
	soldier, err := s.Carpool.RegisterSoldier(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, soldier)
}

func (s *Server) handleListSoldiers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := carpool.SoldierQuery{Area: q.Get("area"), Base: q.Get("base")}
	if v := q.Get("has_car"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, r, apperr.InvalidField("has_car", "must be a boolean"))
			return
		}
		query.HasCar = &b
	}
	soldiers, err := s.Carpool.ListSoldiers(r.Context(), query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(soldiers))
}

func (s *Server) handleGetSoldier(w http.ResponseWriter, r *http.Request) {
	soldier, err := s.Carpool.GetSoldier(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, soldier)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	window := defaultWindowHours
	if v := r.URL.Query().Get("window_hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, r, apperr.InvalidField("window_hours", "must be an integer"))
			return
		}
		window = n
	}
	out, err := s.Matcher.SuggestRides(r.Context(), mux.Vars(r)["id"], window)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(out))
}

func (s *Server) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	var in models.RideInput
	if !s.decode(w, r, &in) {
		return
	}
	ride, err := s.Carpool.CreateRide(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ride)
}

func (s *Server) handleListRides(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := carpool.RideQuery{FromArea: q.Get("from_area"), ToArea: q.Get("to_area")}
	if v := q.Get("earliest"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeError(w, r, apperr.InvalidField("earliest", "must be an RFC3339 timestamp"))
			return
		}
		query.Earliest = t
	}
	rides, err := s.Carpool.ListRides(r.Context(), query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(rides))
}

func (s *Server) handleGetRide(w http.ResponseWriter, r *http.Request) {
	ride, err := s.Carpool.GetRide(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	// seats defaults to one when the body omits it
	in := ledger.RequestSeatsInput{Seats: 1}
	if !s.decode(w, r, &in) {
		return
	}
	req, err := s.Ledger.RequestSeats(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	reqs, err := s.Carpool.ListRequests(r.Context(), carpool.RequestQuery{
		RideID:      q.Get("ride_id"),
		PassengerID: q.Get("passenger_id"),
		Status:      q.Get("status"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(reqs))
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.Carpool.GetRequest(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type statusBody struct {
	Status string `json:"status"`
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var body statusBody
	if !s.decode(w, r, &body) {
		return
	}
	req, err := s.Ledger.SetStatus(r.Context(), mux.Vars(r)["id"], body.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
