// Package storage provides persistent storage for the pit-strategy
// service. It uses BoltDB to keep an audit log of received telemetry and
// served decisions, keyed by car and timestamp for efficient time-range
// queries.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"pitwall/internal/strategy"
)

const (
	telemetryBucket   = "telemetry"   // Raw scenarios received from the live feed
	predictionsBucket = "predictions" // Decisions served, with confidence and warnings
)

// TelemetryRecord is one raw scenario snapshot received for a car.
type TelemetryRecord struct {
	CarID    string            `json:"car_id"`
	Scenario strategy.Scenario `json:"scenario"`
	Ts       time.Time         `json:"ts"`
}

// PredictionRecord is one served decision, persisted for audit.
type PredictionRecord struct {
	CarID      string            `json:"car_id"`
	Scenario   strategy.Scenario `json:"scenario"`
	Decision   strategy.Decision `json:"decision"`
	Confidence float64           `json:"confidence"`
	Warnings   []string          `json:"warnings,omitempty"`
	Ts         time.Time         `json:"ts"`
}

// Store provides persistent audit storage using BoltDB.
type Store struct {
	db *bbolt.DB
}

// New opens the database under dataPath and creates the buckets.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "pitwall-data.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(telemetryBucket)); err != nil {
			return fmt.Errorf("create telemetry bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StoreTelemetry persists a received scenario under "carID_timestamp".
func (s *Store) StoreTelemetry(rec TelemetryRecord) error {
	return s.put(telemetryBucket, rec.CarID, rec.Ts, rec)
}

// StorePrediction persists a served decision under "carID_timestamp".
func (s *Store) StorePrediction(rec PredictionRecord) error {
	return s.put(predictionsBucket, rec.CarID, rec.Ts, rec)
}

func (s *Store) put(bucket, carID string, ts time.Time, v any) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))

		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}

		key := fmt.Sprintf("%s_%d", carID, ts.UnixNano())
		return b.Put([]byte(key), data)
	})
}

// GetPredictions retrieves decisions served for a car within a time
// range, inclusive of both ends.
func (s *Store) GetPredictions(carID string, start, end time.Time) ([]PredictionRecord, error) {
	var records []PredictionRecord
	err := s.scanRange(predictionsBucket, carID, start, end, func(data []byte) error {
		var rec PredictionRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		records = append(records, rec)
		return nil
	})
	return records, err
}

// GetTelemetry retrieves raw scenarios received for a car within a time
// range, inclusive of both ends.
func (s *Store) GetTelemetry(carID string, start, end time.Time) ([]TelemetryRecord, error) {
	var records []TelemetryRecord
	err := s.scanRange(telemetryBucket, carID, start, end, func(data []byte) error {
		var rec TelemetryRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		records = append(records, rec)
		return nil
	})
	return records, err
}

// scanRange walks a bucket with a cursor between carID-prefixed start and
// end keys, skipping malformed records.
func (s *Store) scanRange(bucketName, carID string, start, end time.Time, visit func([]byte) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		c := b.Cursor()

		prefix := []byte(carID + "_")
		startKey := []byte(fmt.Sprintf("%s_%d", carID, start.UnixNano()))
		endKey := []byte(fmt.Sprintf("%s_%d", carID, end.UnixNano()))

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			if !bytes.HasPrefix(k, prefix) {
				continue
			}
			if err := visit(v); err != nil {
				continue // Skip malformed records
			}
		}
		return nil
	})
}
