package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/example/carpool/internal/apperr"
	"github.com/example/carpool/internal/clock"
	"github.com/example/carpool/internal/models"
	"github.com/example/carpool/internal/observability"
	"github.com/example/carpool/internal/storage"
)

const (
	MinWindowHours = 1
	MaxWindowHours = 168

	DefaultCandidateLimit = 200
	DefaultTopN           = 50
)

type Store interface {
	GetSoldier(ctx context.Context, id string) (models.Soldier, error)
	ListRides(ctx context.Context, f storage.RideFilter) ([]models.Ride, error)
}

// Cache stores computed suggestion lists. Implementations must treat a miss
// and a backend failure differently: ok=false with a nil error is a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]models.RideSuggestion, bool, error)
	Set(ctx context.Context, key string, v []models.RideSuggestion) error
}

// Service ranks open rides for a soldier.
type Service struct {
	Store          Store
	Clock          clock.Clock
	Cache          Cache // optional
	CandidateLimit int
	TopN           int
	Logger         *slog.Logger
}

// SuggestRides returns up to TopN rides departing within the next
// windowHours (clamped to [1, 168]) that still have free seats, best first.
func (s *Service) SuggestRides(ctx context.Context, soldierID string, windowHours int) ([]models.RideSuggestion, error) {
	start := time.Now()
	if !models.ValidID(soldierID) {
		return nil, apperr.InvalidArgument("Invalid soldier id")
	}
	window := ClampWindow(windowHours)
	now := s.Clock.Now()

	key := cacheKey(soldierID, window, now)
	if s.Cache != nil {
		cached, ok, err := s.Cache.Get(ctx, key)
		switch {
		case err != nil:
			observability.SuggestCache.WithLabelValues("error").Inc()
			s.logger().Warn("suggestion cache read failed", "soldier_id", soldierID, "error", err)
		case ok:
			observability.SuggestCache.WithLabelValues("hit").Inc()
			return cached, nil
		default:
			observability.SuggestCache.WithLabelValues("miss").Inc()
		}
	}

	soldier, err := s.Store.GetSoldier(ctx, soldierID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("Soldier not found")
		}
		return nil, fmt.Errorf("load soldier: %w", err)
	}

	cands, err := s.Store.ListRides(ctx, storage.RideFilter{
		DepartFrom:        now,
		DepartTo:          now.Add(time.Duration(window) * time.Hour),
		MinSeatsAvailable: 1,
		Limit:             s.candidateLimit(),
	})
	if err != nil {
		return nil, fmt.Errorf("list candidate rides: %w", err)
	}

	out := Rank(soldier, cands, now, s.topN())

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, key, out); err != nil {
			s.logger().Warn("suggestion cache write failed", "soldier_id", soldierID, "error", err)
		}
	}
	observability.SuggestionsTotal.Inc()
	observability.SuggestLatency.Observe(time.Since(start).Seconds())
	return out, nil
}

// Rank scores every candidate and returns the best topN. Ties keep the
// candidate order, so the result is deterministic for a fixed input.
func Rank(soldier models.Soldier, cands []models.Ride, now time.Time, topN int) []models.RideSuggestion {
	out := make([]models.RideSuggestion, 0, len(cands))
	for _, r := range cands {
		out = append(out, models.RideSuggestion{Ride: r, Score: Score(soldier, r, now)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

// Score is the additive match heuristic:
//
//	+5   home area and ride origin contain one another
//	+5   base and ride destination contain one another
//	0..6 departure proximity, 6 at now falling to 0 at 6h
//	0..2 half a point per free seat, capped at 4 seats
//	0..3 price, 3 when free falling to 0 at 30 per seat
//
// The total is rounded to two decimals.
func Score(soldier models.Soldier, ride models.Ride, now time.Time) float64 {
	score := 0.0
	if models.AreasOverlap(soldier.HomeArea, ride.FromArea) {
		score += 5
	}
	if models.AreasOverlap(soldier.BaseName, ride.ToArea) {
		score += 5
	}
	// A missing departure time only forfeits the proximity term.
	if !ride.DepartureTime.IsZero() {
		delta := math.Abs(ride.DepartureTime.Sub(now).Hours())
		score += math.Max(0, 6-math.Min(delta, 6))
	}
	score += float64(min(ride.SeatsAvailable, 4)) * 0.5
	score += math.Max(0, 3-math.Min(ride.PricePerSeat/10, 3))
	return math.Round(score*100) / 100
}

func ClampWindow(hours int) int {
	return max(MinWindowHours, min(hours, MaxWindowHours))
}

// cacheKey buckets now by minute so cached proximity scores are never more
// than a minute stale. Seat counts can still lag by up to the cache TTL.
func cacheKey(soldierID string, window int, now time.Time) string {
	return fmt.Sprintf("suggest:%s:%d:%d", soldierID, window, now.Unix()/60)
}

func (s *Service) candidateLimit() int {
	if s.CandidateLimit <= 0 {
		return DefaultCandidateLimit
	}
	return s.CandidateLimit
}

func (s *Service) topN() int {
	if s.TopN <= 0 {
		return DefaultTopN
	}
	return s.TopN
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
