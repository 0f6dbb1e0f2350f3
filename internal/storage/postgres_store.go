package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/example/carpool/internal/models"
)

// PostgresStore implements Store on PostgreSQL via lib/pq.
// Seat adjustments run as a single conditional UPDATE so concurrent
// accepts cannot overdraw a ride.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// Migrate executes a schema script. Scripts are expected to be idempotent.
func (p *PostgresStore) Migrate(ctx context.Context, script string) error {
	_, err := p.db.ExecContext(ctx, script)
	return err
}

const soldierColumns = `id, name, phone, home_area, base_name, has_car, verified, created_at`

func (p *PostgresStore) CreateSoldier(ctx context.Context, s models.Soldier) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO soldiers(`+soldierColumns+`) VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		s.ID, s.Name, nullString(s.Phone), s.HomeArea, s.BaseName, s.HasCar, s.Verified, s.CreatedAt)
	return mapWriteErr(err)
}

func (p *PostgresStore) GetSoldier(ctx context.Context, id string) (models.Soldier, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+soldierColumns+` FROM soldiers WHERE id = $1`, id)
	s, err := scanSoldier(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Soldier{}, ErrNotFound
	}
	return s, err
}

func (p *PostgresStore) ListSoldiers(ctx context.Context, f SoldierFilter) ([]models.Soldier, error) {
	var w where
	if f.Area != "" {
		w.add("strpos(lower(home_area), lower(%s)) > 0", f.Area)
	}
	if f.Base != "" {
		w.add("strpos(lower(base_name), lower(%s)) > 0", f.Base)
	}
	if f.HasCar != nil {
		w.add("has_car = %s", *f.HasCar)
	}
	q := `SELECT ` + soldierColumns + ` FROM soldiers` + w.sql() +
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT %d`, limitOrDefault(f.Limit))
	rows, err := p.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Soldier
	for rows.Next() {
		s, err := scanSoldier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const rideColumns = `id, driver_id, from_area, to_area, departure_time, seats_total, seats_available, price_per_seat, car_info, notes, tags, created_at`

func (p *PostgresStore) CreateRide(ctx context.Context, r models.Ride) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO rides(`+rideColumns+`) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		r.ID, r.DriverID, r.FromArea, r.ToArea, r.DepartureTime, r.SeatsTotal, r.SeatsAvailable,
		r.PricePerSeat, nullString(r.CarInfo), nullString(r.Notes), pq.Array(nonNilTags(r.Tags)), r.CreatedAt)
	return mapWriteErr(err)
}

func (p *PostgresStore) GetRide(ctx context.Context, id string) (models.Ride, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, id)
	r, err := scanRide(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Ride{}, ErrNotFound
	}
	return r, err
}

func (p *PostgresStore) ListRides(ctx context.Context, f RideFilter) ([]models.Ride, error) {
	var w where
	if f.FromArea != "" {
		w.add("strpos(lower(from_area), lower(%s)) > 0", f.FromArea)
	}
	if f.ToArea != "" {
		w.add("strpos(lower(to_area), lower(%s)) > 0", f.ToArea)
	}
	if !f.DepartFrom.IsZero() {
		w.add("departure_time >= %s", f.DepartFrom)
	}
	if !f.DepartTo.IsZero() {
		w.add("departure_time <= %s", f.DepartTo)
	}
	if f.MinSeatsAvailable > 0 {
		w.add("seats_available >= %s", f.MinSeatsAvailable)
	}
	q := `SELECT ` + rideColumns + ` FROM rides` + w.sql() +
		fmt.Sprintf(` ORDER BY departure_time ASC, id ASC LIMIT %d`, limitOrDefault(f.Limit))
	rows, err := p.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) AdjustSeats(ctx context.Context, rideID string, delta int) (models.Ride, error) {
	row := p.db.QueryRowContext(ctx,
		`UPDATE rides SET seats_available = seats_available + $1
		 WHERE id = $2 AND seats_available + $1 BETWEEN 0 AND seats_total
		 RETURNING `+rideColumns, delta, rideID)
	r, err := scanRide(row)
	if !errors.Is(err, sql.ErrNoRows) {
		return r, err
	}
	// Nothing updated: either the ride is gone or the bound check refused.
	var exists bool
	if err := p.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM rides WHERE id = $1)`, rideID).Scan(&exists); err != nil {
		return models.Ride{}, err
	}
	if !exists {
		return models.Ride{}, ErrNotFound
	}
	return models.Ride{}, ErrSeatBounds
}

const requestColumns = `id, ride_id, passenger_id, seats, status, message, created_at`

func (p *PostgresStore) CreateRequest(ctx context.Context, r models.RideRequest) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO ride_requests(`+requestColumns+`) VALUES($1,$2,$3,$4,$5,$6,$7)`,
		r.ID, r.RideID, r.PassengerID, r.Seats, string(r.Status), nullString(r.Message), r.CreatedAt)
	return mapWriteErr(err)
}

func (p *PostgresStore) GetRequest(ctx context.Context, id string) (models.RideRequest, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM ride_requests WHERE id = $1`, id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RideRequest{}, ErrNotFound
	}
	return r, err
}

func (p *PostgresStore) ListRequests(ctx context.Context, f RequestFilter) ([]models.RideRequest, error) {
	var w where
	if f.RideID != "" {
		w.add("ride_id = %s", f.RideID)
	}
	if f.PassengerID != "" {
		w.add("passenger_id = %s", f.PassengerID)
	}
	if f.Status != "" {
		w.add("status = %s", string(f.Status))
	}
	q := `SELECT ` + requestColumns + ` FROM ride_requests` + w.sql() +
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT %d`, limitOrDefault(f.Limit))
	rows, err := p.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.RideRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) UpdateRequestStatus(ctx context.Context, id string, status models.RequestStatus) (models.RideRequest, error) {
	row := p.db.QueryRowContext(ctx,
		`UPDATE ride_requests SET status = $1 WHERE id = $2 RETURNING `+requestColumns, string(status), id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RideRequest{}, ErrNotFound
	}
	return r, err
}

func (p *PostgresStore) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *PostgresStore) Close() error { return p.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanSoldier(sc scanner) (models.Soldier, error) {
	var (
		s     models.Soldier
		phone sql.NullString
	)
	if err := sc.Scan(&s.ID, &s.Name, &phone, &s.HomeArea, &s.BaseName, &s.HasCar, &s.Verified, &s.CreatedAt); err != nil {
		return models.Soldier{}, err
	}
	s.Phone = stringPtr(phone)
	s.CreatedAt = s.CreatedAt.UTC()
	return s, nil
}

func scanRide(sc scanner) (models.Ride, error) {
	var (
		r             models.Ride
		carInfo, note sql.NullString
		tags          pq.StringArray
	)
	if err := sc.Scan(&r.ID, &r.DriverID, &r.FromArea, &r.ToArea, &r.DepartureTime, &r.SeatsTotal,
		&r.SeatsAvailable, &r.PricePerSeat, &carInfo, &note, &tags, &r.CreatedAt); err != nil {
		return models.Ride{}, err
	}
	r.CarInfo = stringPtr(carInfo)
	r.Notes = stringPtr(note)
	r.Tags = nonNilTags(tags)
	r.DepartureTime = r.DepartureTime.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}

func scanRequest(sc scanner) (models.RideRequest, error) {
	var (
		r       models.RideRequest
		status  string
		message sql.NullString
	)
	if err := sc.Scan(&r.ID, &r.RideID, &r.PassengerID, &r.Seats, &status, &message, &r.CreatedAt); err != nil {
		return models.RideRequest{}, err
	}
	r.Status = models.RequestStatus(status)
	r.Message = stringPtr(message)
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}

// where accumulates AND-ed predicates with positional placeholders.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, fmt.Sprintf("$%d", len(w.args))))
}

func (w *where) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func mapWriteErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrAlreadyExists
	}
	return err
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
