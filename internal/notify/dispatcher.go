// Package notify turns inbound push events into user-facing prompts and
// routes the responses ("start now" / "remind later") back into session
// initiation or a deferred, durable reminder.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/claude/repsync/internal/models"
	"github.com/claude/repsync/internal/store"
)

// Starter begins a workout session in response to a prompt action.
type Starter func(ctx context.Context, workoutID string) error

// Prompt is a rendered notification awaiting a user response.
type Prompt struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	WorkoutID  string    `json:"workout_id,omitempty"`
	Actions    []string  `json:"actions"`
	ReceivedAt time.Time `json:"received_at"`
}

const reminderPollInterval = 30 * time.Second

// Dispatcher receives push events and workout reminders and surfaces them
// to the UI as prompts.
type Dispatcher struct {
	store       *store.Store
	start       Starter
	remindDelay time.Duration
	log         *slog.Logger
	now         func() time.Time

	mu      sync.Mutex
	prompts []Prompt
}

// New creates a Dispatcher. remindDelay is how far out "remind later"
// defers the prompt.
func New(st *store.Store, start Starter, remindDelay time.Duration, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:       st,
		start:       start,
		remindDelay: remindDelay,
		log:         log,
		now:         time.Now,
	}
}

// HandlePush renders one inbound push event as a prompt. A malformed
// payload degrades to a generic workout reminder rather than being dropped.
func (d *Dispatcher) HandlePush(ctx context.Context, raw []byte) Prompt {
	var payload models.PushPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Title == "" {
		d.log.Warn("malformed push payload, degrading to generic reminder", "error", err)
		payload = models.PushPayload{
			Title:   "Time to train",
			Body:    "You have a workout waiting.",
			Actions: []string{models.ActionStart, models.ActionRemindLater},
		}
	}
	if len(payload.Actions) == 0 {
		payload.Actions = []string{models.ActionStart, models.ActionRemindLater}
	}

	prompt := Prompt{
		ID:         uuid.NewString(),
		Title:      payload.Title,
		Body:       payload.Body,
		WorkoutID:  payload.WorkoutID,
		Actions:    payload.Actions,
		ReceivedAt: d.now(),
	}

	d.mu.Lock()
	d.prompts = append(d.prompts, prompt)
	d.mu.Unlock()

	d.log.Info("push rendered", "prompt", prompt.ID, "title", prompt.Title)
	return prompt
}

// Prompts returns the prompts awaiting a response.
func (d *Dispatcher) Prompts() []Prompt {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.prompts)
}

// Respond routes a user's answer to a prompt: start begins the session,
// remind_later persists a deferred reminder. Either way the prompt is
// dismissed.
func (d *Dispatcher) Respond(ctx context.Context, promptID, action string) error {
	d.mu.Lock()
	idx := slices.IndexFunc(d.prompts, func(p Prompt) bool { return p.ID == promptID })
	if idx < 0 {
		d.mu.Unlock()
		return fmt.Errorf("prompt %s not found", promptID)
	}
	prompt := d.prompts[idx]
	d.prompts = slices.Delete(d.prompts, idx, idx+1)
	d.mu.Unlock()

	switch action {
	case models.ActionStart:
		if err := d.start(ctx, prompt.WorkoutID); err != nil {
			return fmt.Errorf("starting session from prompt: %w", err)
		}
	case models.ActionRemindLater:
		reminder := models.Reminder{
			ID:        uuid.NewString(),
			Title:     prompt.Title,
			Body:      prompt.Body,
			WorkoutID: prompt.WorkoutID,
			DueAt:     d.now().Add(d.remindDelay),
			CreatedAt: d.now(),
		}
		if err := d.store.AddReminder(ctx, reminder); err != nil {
			return err
		}
		d.log.Info("reminder deferred", "prompt", promptID, "due_at", reminder.DueAt)
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	return nil
}

// Run re-delivers due reminders as prompts until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(reminderPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.deliverDue(ctx)
		}
	}
}

func (d *Dispatcher) deliverDue(ctx context.Context) {
	due, err := d.store.DueReminders(ctx, d.now())
	if err != nil {
		d.log.Error("listing due reminders failed", "error", err)
		return
	}
	for _, r := range due {
		prompt := Prompt{
			ID:         uuid.NewString(),
			Title:      r.Title,
			Body:       r.Body,
			WorkoutID:  r.WorkoutID,
			Actions:    []string{models.ActionStart, models.ActionRemindLater},
			ReceivedAt: d.now(),
		}
		d.mu.Lock()
		d.prompts = append(d.prompts, prompt)
		d.mu.Unlock()

		if err := d.store.MarkReminderDelivered(ctx, r.ID); err != nil {
			d.log.Error("marking reminder delivered failed", "reminder", r.ID, "error", err)
		}
		d.log.Info("reminder delivered", "reminder", r.ID, "prompt", prompt.ID)
	}
}
