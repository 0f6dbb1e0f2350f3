package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/example/carpool/internal/config"
	"github.com/example/carpool/internal/events"
	"github.com/example/carpool/internal/logging"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_consumed_total",
		Help: "Total ride request events consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_invalid_total",
		Help: "Total invalid messages received",
	})
	redisUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_redis_updates_total",
		Help: "Total successful redis updates",
	})
	redisErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_redis_errors_total",
		Help: "Total redis errors",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, redisUpdates, redisErrors)
}

func main() {
	cfg, err := config.LoadConsumerConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	radapter := &redisAdapter{c: rc}

	// metrics and health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
		})
		logger.Info("metrics/health listening", "addr", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic, GroupID: cfg.KafkaGroup, MinBytes: 10e3, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	logger.Info("consumer listening", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers, "group", cfg.KafkaGroup)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down consumer")
				return
			}
			logger.Warn("kafka read error", "error", err, "backoff", backoff.String())
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		msgsConsumed.Inc()

		var ev events.RequestEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil || ev.RideID == "" {
			msgsInvalid.Inc()
			logger.Warn("invalid message", "error", err, "offset", m.Offset)
			continue
		}

		if err := projectWithRetry(ctx, radapter, ev, 3, 200*time.Millisecond); err != nil {
			if errors.Is(err, errUnknownEvent) {
				msgsInvalid.Inc()
				logger.Warn("skipping event", "error", err, "offset", m.Offset)
				continue
			}
			redisErrors.Inc()
			logger.Error("redis update failed", "ride_id", ev.RideID, "request_id", ev.RequestID, "error", err)
			continue
		}
		redisUpdates.Inc()
	}
}

// RedisUpdater is the subset of redis operations the projection needs.
type RedisUpdater interface {
	HIncrBy(ctx context.Context, key, field string, incr int64) error
}

type redisAdapter struct{ c *redis.Client }

func (r *redisAdapter) HIncrBy(ctx context.Context, key, field string, incr int64) error {
	return r.c.HIncrBy(ctx, key, field, incr).Err()
}

func activityKey(rideID string) string { return "ride:activity:" + rideID }

type counterUpdate struct {
	field string
	incr  int64
}

// activityUpdates maps an event onto the ride activity counters:
// created requests bump "requests", reserved seats bump "accepted_seats"
// and released seats bump "released_seats".
func activityUpdates(ev events.RequestEvent) []counterUpdate {
	switch ev.Type {
	case events.TypeRequestCreated:
		return []counterUpdate{{field: "requests", incr: 1}}
	case events.TypeRequestStatusChanged:
		switch {
		case ev.SeatDelta < 0:
			return []counterUpdate{{field: "accepted_seats", incr: int64(-ev.SeatDelta)}}
		case ev.SeatDelta > 0:
			return []counterUpdate{{field: "released_seats", incr: int64(ev.SeatDelta)}}
		}
	}
	return nil
}

var errUnknownEvent = errors.New("unknown event type")

// projectWithRetry applies an event's counter updates with retry/backoff.
// Updates are not idempotent: a redelivered message is counted twice.
func projectWithRetry(ctx context.Context, rc RedisUpdater, ev events.RequestEvent, attempts int, delay time.Duration) error {
	if ev.Type != events.TypeRequestCreated && ev.Type != events.TypeRequestStatusChanged {
		return fmt.Errorf("%w: %q", errUnknownEvent, ev.Type)
	}
	key := activityKey(ev.RideID)
	for _, u := range activityUpdates(ev) {
		for i := 0; i < attempts; i++ {
			err := rc.HIncrBy(ctx, key, u.field, u.incr)
			if err == nil {
				break
			}
			if i == attempts-1 {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	return nil
}

