package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/testing-system/testing-service/internal/models"
)

type EventType string

const (
	EventResultComputed EventType = "result.computed"
	EventTestImported   EventType = "test.imported"
)

// Event is the envelope published for every domain event.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`

	Data interface{} `json:"data"`
}

// ResultComputedData is emitted after every scoring pass.
type ResultComputedData struct {
	UserID       uint      `json:"user_id"`
	TestID       uint      `json:"test_id"`
	Score        float64   `json:"score"`
	IsCompleted  bool      `json:"is_completed"`
	RecomputedAt time.Time `json:"recomputed_at"`
}

// TestImportedData is emitted after a batch import commits.
type TestImportedData struct {
	Stats      models.ImportStats `json:"stats"`
	UpdateMode bool               `json:"update_mode"`
}

func newEvent(eventType EventType, data interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    "testing-service",
		Version:   "1.0",
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// NewResultComputedEvent builds the event for a freshly persisted result.
func NewResultComputedEvent(result *models.TestResult) *Event {
	return newEvent(EventResultComputed, ResultComputedData{
		UserID:       result.UserID,
		TestID:       result.TestID,
		Score:        result.Score,
		IsCompleted:  result.IsCompleted,
		RecomputedAt: result.RecomputedAt,
	})
}

// NewTestImportedEvent builds the event for a committed import batch.
func NewTestImportedEvent(stats models.ImportStats, updateMode bool) *Event {
	return newEvent(EventTestImported, TestImportedData{
		Stats:      stats,
		UpdateMode: updateMode,
	})
}
