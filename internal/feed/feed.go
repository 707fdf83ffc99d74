// Package feed subscribes to the live telemetry stream and drives the
// prediction service with each new car snapshot. The transport pushes
// batches of messages; a bounded recently-seen id set keeps snapshots
// from being scored twice across redeliveries.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"pitwall/internal/service"
	"pitwall/internal/storage"
)

// MetricsInterface defines the metrics the subscriber reports to.
type MetricsInterface interface {
	FeedMessageInc()
	FeedDuplicateInc()
	FeedReconnectInc()
	FeedPublishInc()
	StorageErrorInc()
}

// Config wires the subscriber's collaborators. Store, Publisher and
// Metrics are optional.
type Config struct {
	URL       string
	Ping      time.Duration
	DedupSize int

	Service   *service.Service
	Store     *storage.Store
	Publisher *Client
	Metrics   MetricsInterface
}

// Subscriber consumes the telemetry websocket and feeds the service.
type Subscriber struct {
	cfg  Config
	seen *seenSet
}

// NewSubscriber creates a subscriber. Service is required.
func NewSubscriber(cfg Config) (*Subscriber, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("feed: prediction service is required")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("feed: url is required")
	}
	if cfg.Ping <= 0 {
		cfg.Ping = 15 * time.Second
	}
	if cfg.DedupSize <= 0 {
		cfg.DedupSize = 4096
	}
	return &Subscriber{cfg: cfg, seen: newSeenSet(cfg.DedupSize)}, nil
}

// Run consumes the feed until ctx is cancelled, reconnecting with
// exponential backoff on transport failures.
func (s *Subscriber) Run(ctx context.Context) error {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := s.streamOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				log.Warn().Err(err).Dur("backoff", backoff).Msg("telemetry feed disconnected, reconnecting")
				if s.cfg.Metrics != nil {
					s.cfg.Metrics.FeedReconnectInc()
				}
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return ctx.Err()
				}
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				continue
			}
			backoff = time.Second
		}
	}
}

// message is one car snapshot as delivered by the feed. The scenario
// fields stay in Raw so the service's validator sees exactly what was
// sent.
type message struct {
	ID    string
	CarID string
	Raw   map[string]any
}

func (s *Subscriber) streamOnce(ctx context.Context) error {
	log.Info().Str("url", s.cfg.URL).Msg("connecting to telemetry feed")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	conn.SetReadLimit(512 * 1024)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(s.cfg.Ping)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return fmt.Errorf("ping failed: %w", err)
			}
		default:
			conn.SetReadDeadline(time.Now().Add(30 * time.Second))
			_, payload, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return fmt.Errorf("connection closed: %w", err)
				}
				return fmt.Errorf("read failed: %w", err)
			}
			s.handleBatch(payload)
		}
	}
}

// handleBatch processes one delivery: a JSON array of car snapshots.
func (s *Subscriber) handleBatch(payload []byte) {
	var batch []map[string]any
	if err := json.Unmarshal(payload, &batch); err != nil {
		// Some feeds wrap the batch in an object.
		var wrapper struct {
			Messages []map[string]any `json:"messages"`
		}
		if err := json.Unmarshal(payload, &wrapper); err != nil || wrapper.Messages == nil {
			log.Warn().Msg("unparseable telemetry payload, skipping")
			return
		}
		batch = wrapper.Messages
	}

	for _, raw := range batch {
		s.handleMessage(parseMessage(raw))
	}
}

func parseMessage(raw map[string]any) message {
	m := message{Raw: raw}
	if id, ok := raw["_id"].(string); ok {
		m.ID = id
	}
	if carID, ok := raw["car_id"].(string); ok {
		m.CarID = carID
	}
	return m
}

func (s *Subscriber) handleMessage(m message) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.FeedMessageInc()
	}
	if m.ID != "" && s.seen.Seen(m.ID) {
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.FeedDuplicateInc()
		}
		return
	}

	prediction, err := s.cfg.Service.Predict(m.Raw)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			log.Warn().Str("car_id", m.CarID).Str("reason", verr.Reason).Msg("telemetry rejected by validation")
		} else {
			log.Error().Err(err).Str("car_id", m.CarID).Msg("prediction failed for telemetry message")
		}
		return
	}

	log.Info().
		Str("car_id", m.CarID).
		Str("decision", string(prediction.Decision)).
		Float64("confidence", prediction.Confidence).
		Int("warnings", len(prediction.Warnings)).
		Msg("decision")

	now := time.Now()
	if s.cfg.Store != nil {
		if err := s.cfg.Store.StoreTelemetry(storage.TelemetryRecord{
			CarID:    m.CarID,
			Scenario: prediction.InputEcho,
			Ts:       now,
		}); err != nil {
			log.Warn().Err(err).Msg("failed to store telemetry record")
			if s.cfg.Metrics != nil {
				s.cfg.Metrics.StorageErrorInc()
			}
		}
		if err := s.cfg.Store.StorePrediction(storage.PredictionRecord{
			CarID:      m.CarID,
			Scenario:   prediction.InputEcho,
			Decision:   prediction.Decision,
			Confidence: prediction.Confidence,
			Warnings:   prediction.Warnings,
			Ts:         now,
		}); err != nil {
			log.Warn().Err(err).Msg("failed to store prediction record")
			if s.cfg.Metrics != nil {
				s.cfg.Metrics.StorageErrorInc()
			}
		}
	}

	if s.cfg.Publisher != nil && m.CarID != "" {
		if err := s.cfg.Publisher.PublishDecision(m.CarID, prediction.Decision); err != nil {
			log.Warn().Err(err).Str("car_id", m.CarID).Msg("failed to publish decision upstream")
			return
		}
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.FeedPublishInc()
		}
	}
}
