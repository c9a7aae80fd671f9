package models

import "time"

// Push actions the dispatcher routes back into the application.
const (
	ActionStart       = "start"
	ActionRemindLater = "remind_later"
)

// PushPayload is an inbound push event as delivered by the push channel.
type PushPayload struct {
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	WorkoutID string   `json:"workout_id,omitempty"`
	Actions   []string `json:"actions"`
}

// Reminder is a deferred workout prompt, persisted so a "remind later"
// survives a restart.
type Reminder struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	WorkoutID string    `json:"workout_id,omitempty"`
	DueAt     time.Time `json:"due_at"`
	Delivered bool      `json:"delivered"`
	CreatedAt time.Time `json:"created_at"`
}
