package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound marks a lookup of a user or alert that does not exist.
var ErrNotFound = errors.New("not found")

const (
	hazardTitle    = "NASA ALERT: HAZARDOUS OBJECT"
	hazardSeverity = "critical"
)

// HazardEvent is the ephemeral notification pushed to connected clients when
// a scan finds a hazardous object. It is never persisted.
type HazardEvent struct {
	Title     string `json:"title"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Severity  string `json:"severity"`

	// Identify the selected object for downstream keying; not part of the
	// client payload.
	ObjectID   string `json:"-"`
	ObjectName string `json:"-"`
}

// NewHazardEvent builds the notification for a scored hazardous object.
func NewHazardEvent(a Asteroid, at time.Time) HazardEvent {
	approach := a.Approach()
	return HazardEvent{
		Title: hazardTitle,
		Message: fmt.Sprintf("Asteroid %s approaching Earth. Velocity: %s km/s. Distance: %s km.",
			a.Name, approach.VelocityKmS, approach.MissDistanceKm),
		Timestamp:  at.UTC().Format(time.RFC3339),
		Severity:   hazardSeverity,
		ObjectID:   a.ID,
		ObjectName: a.Name,
	}
}

// HazardAlertName is the name of the alert a scan records for an object.
func HazardAlertName(objectName string) string {
	return fmt.Sprintf("NASA: %s Approach", objectName)
}

// Alert is a persisted alert rule owned by a user.
type Alert struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Threshold int       `json:"threshold"`
	Enabled   bool      `json:"enabled"`
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// User is the minimal owner reference alerts hang off.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ChatMessage is a community chat line. Unlike hazard events, chat history
// is persisted and replayed to clients that connect later.
type ChatMessage struct {
	ID        int64     `json:"id"`
	User      string    `json:"user"`
	Text      string    `json:"text"`
	Timestamp string    `json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`
}
