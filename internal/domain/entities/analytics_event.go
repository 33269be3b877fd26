package entities

import (
	"time"

	"github.com/google/uuid"
)

// AnalyticsEventType represents the type of analytics change
type AnalyticsEventType string

const (
	// AnalyticsEventAttemptRecorded is emitted after an attempt was folded into a user's statistics
	AnalyticsEventAttemptRecorded AnalyticsEventType = "attempt.recorded"

	// AnalyticsEventRestaurantReset is emitted after a restaurant's statistics were wiped
	AnalyticsEventRestaurantReset AnalyticsEventType = "restaurant.reset"
)

// AnalyticsEvent announces a change that invalidates cached analytics views
type AnalyticsEvent struct {
	ID           string             `json:"id"`
	EventType    AnalyticsEventType `json:"event_type"`
	RestaurantID string             `json:"restaurant_id"`
	UserID       string             `json:"user_id,omitempty"`
	AttemptID    string             `json:"attempt_id,omitempty"`
	Timestamp    time.Time          `json:"timestamp"`
}

// NewAnalyticsEvent creates a new analytics event
func NewAnalyticsEvent(eventType AnalyticsEventType, restaurantID string) *AnalyticsEvent {
	return &AnalyticsEvent{
		ID:           uuid.New().String(),
		EventType:    eventType,
		RestaurantID: restaurantID,
		Timestamp:    time.Now(),
	}
}
