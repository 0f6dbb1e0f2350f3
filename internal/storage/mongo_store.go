package storage

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/carpool/internal/models"
)

const (
	soldierCollection = "soldier"
	rideCollection    = "ride"
	requestCollection = "riderequest"
)

// MongoStore implements Store on MongoDB. Seat adjustments use a single
// FindOneAndUpdate with $inc guarded by an $expr bound check.
type MongoStore struct {
	client   *mongo.Client
	soldiers *mongo.Collection
	rides    *mongo.Collection
	requests *mongo.Collection
}

func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	db := client.Database(database)
	m := &MongoStore{
		client:   client,
		soldiers: db.Collection(soldierCollection),
		rides:    db.Collection(rideCollection),
		requests: db.Collection(requestCollection),
	}
	if err := m.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return m, nil
}

func (m *MongoStore) ensureIndexes(ctx context.Context) error {
	if _, err := m.rides.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "departure_time", Value: 1}, {Key: "_id", Value: 1}},
	}); err != nil {
		return err
	}
	_, err := m.requests.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "ride_id", Value: 1}}},
		{Keys: bson.D{{Key: "passenger_id", Value: 1}}},
	})
	return err
}

func (m *MongoStore) CreateSoldier(ctx context.Context, s models.Soldier) error {
	_, err := m.soldiers.InsertOne(ctx, s)
	return mapMongoWriteErr(err)
}

func (m *MongoStore) GetSoldier(ctx context.Context, id string) (models.Soldier, error) {
	var s models.Soldier
	if err := findByID(ctx, m.soldiers, id, &s); err != nil {
		return models.Soldier{}, err
	}
	s.CreatedAt = s.CreatedAt.UTC()
	return s, nil
}

func (m *MongoStore) ListSoldiers(ctx context.Context, f SoldierFilter) ([]models.Soldier, error) {
	q := bson.M{}
	if f.Area != "" {
		q["home_area"] = containsPattern(f.Area)
	}
	if f.Base != "" {
		q["base_name"] = containsPattern(f.Base)
	}
	if f.HasCar != nil {
		q["has_car"] = *f.HasCar
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limitOrDefault(f.Limit)))
	var out []models.Soldier
	if err := findAll(ctx, m.soldiers, q, opts, &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].CreatedAt = out[i].CreatedAt.UTC()
	}
	return out, nil
}

func (m *MongoStore) CreateRide(ctx context.Context, r models.Ride) error {
	r.Tags = nonNilTags(r.Tags)
	_, err := m.rides.InsertOne(ctx, r)
	return mapMongoWriteErr(err)
}

func (m *MongoStore) GetRide(ctx context.Context, id string) (models.Ride, error) {
	var r models.Ride
	if err := findByID(ctx, m.rides, id, &r); err != nil {
		return models.Ride{}, err
	}
	return normalizeRide(r), nil
}

func (m *MongoStore) ListRides(ctx context.Context, f RideFilter) ([]models.Ride, error) {
	q := bson.M{}
	if f.FromArea != "" {
		q["from_area"] = containsPattern(f.FromArea)
	}
	if f.ToArea != "" {
		q["to_area"] = containsPattern(f.ToArea)
	}
	departure := bson.M{}
	if !f.DepartFrom.IsZero() {
		departure["$gte"] = f.DepartFrom
	}
	if !f.DepartTo.IsZero() {
		departure["$lte"] = f.DepartTo
	}
	if len(departure) > 0 {
		q["departure_time"] = departure
	}
	if f.MinSeatsAvailable > 0 {
		q["seats_available"] = bson.M{"$gte": f.MinSeatsAvailable}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "departure_time", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limitOrDefault(f.Limit)))
	var out []models.Ride
	if err := findAll(ctx, m.rides, q, opts, &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i] = normalizeRide(out[i])
	}
	return out, nil
}

func (m *MongoStore) AdjustSeats(ctx context.Context, rideID string, delta int) (models.Ride, error) {
	next := bson.M{"$add": bson.A{"$seats_available", delta}}
	filter := bson.M{
		"_id": rideID,
		"$expr": bson.M{"$and": bson.A{
			bson.M{"$gte": bson.A{next, 0}},
			bson.M{"$lte": bson.A{next, "$seats_total"}},
		}},
	}
	update := bson.M{"$inc": bson.M{"seats_available": delta}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var r models.Ride
	err := m.rides.FindOneAndUpdate(ctx, filter, update, opts).Decode(&r)
	if err == nil {
		return normalizeRide(r), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.Ride{}, err
	}
	n, err := m.rides.CountDocuments(ctx, bson.M{"_id": rideID})
	if err != nil {
		return models.Ride{}, err
	}
	if n == 0 {
		return models.Ride{}, ErrNotFound
	}
	return models.Ride{}, ErrSeatBounds
}

func (m *MongoStore) CreateRequest(ctx context.Context, r models.RideRequest) error {
	_, err := m.requests.InsertOne(ctx, r)
	return mapMongoWriteErr(err)
}

func (m *MongoStore) GetRequest(ctx context.Context, id string) (models.RideRequest, error) {
	var r models.RideRequest
	if err := findByID(ctx, m.requests, id, &r); err != nil {
		return models.RideRequest{}, err
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}

func (m *MongoStore) ListRequests(ctx context.Context, f RequestFilter) ([]models.RideRequest, error) {
	q := bson.M{}
	if f.RideID != "" {
		q["ride_id"] = f.RideID
	}
	if f.PassengerID != "" {
		q["passenger_id"] = f.PassengerID
	}
	if f.Status != "" {
		q["status"] = f.Status
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limitOrDefault(f.Limit)))
	var out []models.RideRequest
	if err := findAll(ctx, m.requests, q, opts, &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].CreatedAt = out[i].CreatedAt.UTC()
	}
	return out, nil
}

func (m *MongoStore) UpdateRequestStatus(ctx context.Context, id string, status models.RequestStatus) (models.RideRequest, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var r models.RideRequest
	err := m.requests.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": status}}, opts).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.RideRequest{}, ErrNotFound
	}
	if err != nil {
		return models.RideRequest{}, err
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}

func (m *MongoStore) Ping(ctx context.Context) error { return m.client.Ping(ctx, nil) }

func (m *MongoStore) Close() error { return m.client.Disconnect(context.Background()) }

func findByID(ctx context.Context, c *mongo.Collection, id string, out any) error {
	err := c.FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func findAll(ctx context.Context, c *mongo.Collection, q bson.M, opts *options.FindOptions, out any) error {
	cur, err := c.Find(ctx, q, opts)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}

// containsPattern matches needle literally anywhere in the field, ignoring case.
func containsPattern(needle string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(needle), Options: "i"}
}

func normalizeRide(r models.Ride) models.Ride {
	r.Tags = nonNilTags(r.Tags)
	r.DepartureTime = r.DepartureTime.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	return r
}

func mapMongoWriteErr(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return ErrAlreadyExists
	}
	return err
}
