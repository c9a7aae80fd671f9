package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/claude/repsync/internal/models"
	"github.com/claude/repsync/internal/store"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *store.Store, *[]string) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	started := &[]string{}
	starter := func(ctx context.Context, workoutID string) error {
		*started = append(*started, workoutID)
		return nil
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(st, starter, 30*time.Minute, log), st, started
}

// TestHandlePush verifies a well-formed push becomes a prompt with its
// payload intact.
func TestHandlePush(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	raw := []byte(`{"title":"Leg day","body":"Time for squats","workout_id":"leg-day","actions":["start","remind_later"]}`)
	prompt := d.HandlePush(context.Background(), raw)

	if prompt.Title != "Leg day" || prompt.WorkoutID != "leg-day" {
		t.Errorf("prompt = %+v, want payload carried over", prompt)
	}
	if got := d.Prompts(); len(got) != 1 || got[0].ID != prompt.ID {
		t.Errorf("prompts = %+v, want the rendered prompt", got)
	}
}

// TestHandlePushMalformed verifies a garbled payload degrades to a generic
// reminder instead of disappearing.
func TestHandlePushMalformed(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	for _, raw := range [][]byte{[]byte(`{{{not json`), []byte(`{"body":"no title"}`)} {
		prompt := d.HandlePush(context.Background(), raw)
		if prompt.Title != "Time to train" {
			t.Errorf("HandlePush(%q) title = %q, want generic reminder", raw, prompt.Title)
		}
		if len(prompt.Actions) != 2 {
			t.Errorf("actions = %v, want start and remind_later", prompt.Actions)
		}
	}
}

// TestRespondStart verifies the start action launches the session and
// dismisses the prompt.
func TestRespondStart(t *testing.T) {
	d, _, started := newTestDispatcher(t)
	ctx := context.Background()

	prompt := d.HandlePush(ctx, []byte(`{"title":"Push day","workout_id":"push-day"}`))
	if err := d.Respond(ctx, prompt.ID, models.ActionStart); err != nil {
		t.Fatalf("respond: %v", err)
	}

	if len(*started) != 1 || (*started)[0] != "push-day" {
		t.Errorf("started = %v, want [push-day]", *started)
	}
	if got := d.Prompts(); len(got) != 0 {
		t.Errorf("prompts = %+v, want dismissed", got)
	}
}

// TestRespondRemindLater verifies the deferred reminder is persisted with
// the configured delay and redelivered once due.
func TestRespondRemindLater(t *testing.T) {
	d, st, _ := newTestDispatcher(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return base }

	prompt := d.HandlePush(ctx, []byte(`{"title":"Pull day","workout_id":"pull-day"}`))
	if err := d.Respond(ctx, prompt.ID, models.ActionRemindLater); err != nil {
		t.Fatalf("respond: %v", err)
	}

	// Not due yet.
	due, err := st.DueReminders(ctx, base.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("due = %+v, want nothing before the delay", due)
	}

	// Past the delay the reminder resurfaces as a prompt.
	d.now = func() time.Time { return base.Add(31 * time.Minute) }
	d.deliverDue(ctx)

	prompts := d.Prompts()
	if len(prompts) != 1 || prompts[0].WorkoutID != "pull-day" {
		t.Fatalf("prompts = %+v, want redelivered reminder", prompts)
	}

	// Redelivery is one-shot.
	d.deliverDue(ctx)
	if got := d.Prompts(); len(got) != 1 {
		t.Errorf("prompts = %d, want no duplicate delivery", len(got))
	}
}

// TestRespondUnknown verifies unknown prompts and actions are rejected.
func TestRespondUnknown(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	ctx := context.Background()

	if err := d.Respond(ctx, "missing", models.ActionStart); err == nil {
		t.Error("responding to unknown prompt succeeded")
	}

	prompt := d.HandlePush(ctx, []byte(`{"title":"Push day"}`))
	if err := d.Respond(ctx, prompt.ID, "snooze-forever"); err == nil {
		t.Error("unknown action accepted")
	}
}
