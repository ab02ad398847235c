// Package query implements the read path behind the HTTP API.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"farm_monitor/ingest"
	"farm_monitor/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ValidationError is a caller mistake in a query, reported as a client error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Service answers sensor and reading queries. Each call performs one query
// on a pooled connection.
type Service struct {
	db *gorm.DB
}

// NewService creates a query service over db
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// ListSensors returns every sensor ordered by hardware id
func (s *Service) ListSensors(ctx context.Context) ([]models.Sensor, error) {
	sensors := []models.Sensor{}
	if err := s.db.WithContext(ctx).Order("hardware_id ASC").Find(&sensors).Error; err != nil {
		return nil, fmt.Errorf("failed to list sensors: %w", err)
	}

	for i := range sensors {
		meta := strings.TrimSpace(string(sensors[i].Metadata))
		if meta == "" || meta == "null" {
			sensors[i].Metadata = datatypes.JSON("{}")
		}
	}
	return sensors, nil
}

// ParseWindow validates the inclusive [start, end] bounds of a reading query
func ParseWindow(start, end string) (time.Time, time.Time, error) {
	from := ingest.ParseTimestamp(start)
	if from == nil {
		return time.Time{}, time.Time{}, &ValidationError{Field: "start", Message: fmt.Sprintf("invalid ISO-8601 timestamp %q", start)}
	}
	to := ingest.ParseTimestamp(end)
	if to == nil {
		return time.Time{}, time.Time{}, &ValidationError{Field: "end", Message: fmt.Sprintf("invalid ISO-8601 timestamp %q", end)}
	}
	if from.After(*to) {
		return time.Time{}, time.Time{}, &ValidationError{Field: "start", Message: "start must not be after end"}
	}
	return *from, *to, nil
}

// ListReadings returns the readings of one sensor with start <= ts <= end, oldest first
func (s *Service) ListReadings(ctx context.Context, sensorID int64, start, end time.Time) ([]models.Reading, error) {
	readings := []models.Reading{}
	err := s.db.WithContext(ctx).
		Where("sensor_id = ? AND ts >= ? AND ts <= ?", sensorID, start.UTC(), end.UTC()).
		Order("ts ASC").
		Find(&readings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list readings for sensor %d: %w", sensorID, err)
	}

	// drivers may hand back timestamptz in the session zone
	for i := range readings {
		readings[i].TS = readings[i].TS.UTC()
	}
	return readings, nil
}
