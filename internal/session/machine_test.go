package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/claude/repsync/internal/models"
	"github.com/claude/repsync/internal/store"
)

// fakeClock lets tests drive the machine's view of time.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeSyncer records submitted sessions.
type fakeSyncer struct {
	queued    bool
	err       error
	submitted []models.CompletedSession
}

func (f *fakeSyncer) SubmitSession(ctx context.Context, s models.CompletedSession) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.submitted = append(f.submitted, s)
	return f.queued, nil
}

func testWorkout() models.Workout {
	return models.Workout{
		ID:   "push-day",
		Name: "Push Day",
		Exercises: []models.Exercise{
			{ID: "bench-press", Name: "Bench Press", TargetSets: 2, TargetReps: 8, RestSeconds: 90},
			{ID: "overhead-press", Name: "Overhead Press", TargetSets: 2, TargetReps: 10, RestSeconds: 60},
		},
	}
}

func newTestMachine(t *testing.T) (*Machine, *store.Store, *fakeClock, *fakeSyncer) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := &fakeClock{t: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)}
	syncer := &fakeSyncer{}
	m := New(st, syncer, 30*time.Second, log)
	m.now = clock.Now
	return m, st, clock, syncer
}

// TestStartRejectsSecondSession verifies only one session runs at a time.
func TestStartRejectsSecondSession(t *testing.T) {
	m, _, _, _ := newTestMachine(t)
	ctx := context.Background()

	if _, err := m.Start(ctx, testWorkout()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := m.Start(ctx, testWorkout()); !errors.Is(err, ErrSessionActive) {
		t.Errorf("second start err = %v, want ErrSessionActive", err)
	}
}

// TestSetProgression walks a full session: sets trigger rest, filling the
// target advances the exercise, and the last exercise readies completion.
func TestSetProgression(t *testing.T) {
	m, _, clock, _ := newTestMachine(t)
	ctx := context.Background()

	if _, err := m.Start(ctx, testWorkout()); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Set 1 of bench: below target, so the machine rests.
	res, err := m.AddSet(ctx, 84, false, 8, 3)
	if err != nil {
		t.Fatalf("add set: %v", err)
	}
	if res.State != StateResting {
		t.Errorf("state = %q, want resting", res.State)
	}
	if res.RestDeadline == nil {
		t.Fatal("rest deadline not set")
	}
	if got := res.RestDeadline.Sub(clock.Now()); got != 90*time.Second {
		t.Errorf("rest deadline = %v from now, want 90s", got)
	}

	// Logging during rest is rejected until the deadline passes.
	if _, err := m.AddSet(ctx, 84, false, 8, 3); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("add set mid-rest err = %v, want ErrInvalidTransition", err)
	}

	clock.Advance(91 * time.Second)

	// Set 2 finishes bench and advances to overhead press.
	res, err = m.AddSet(ctx, 84, false, 8, 3)
	if err != nil {
		t.Fatalf("add set: %v", err)
	}
	if !res.ExerciseCompleted {
		t.Error("ExerciseCompleted = false, want true")
	}
	if res.SessionReady {
		t.Error("SessionReady = true with an exercise left")
	}

	snap, ok := m.Status()
	if !ok {
		t.Fatal("no active session")
	}
	if snap.CurrentExerciseIndex != 1 || snap.CurrentSetNumber != 1 {
		t.Errorf("position = exercise %d set %d, want exercise 1 set 1",
			snap.CurrentExerciseIndex, snap.CurrentSetNumber)
	}

	// Fill overhead press.
	if _, err := m.AddSet(ctx, 40, false, 10, 2); err != nil {
		t.Fatalf("add set: %v", err)
	}
	clock.Advance(61 * time.Second)
	res, err = m.AddSet(ctx, 40, false, 10, 2)
	if err != nil {
		t.Fatalf("add set: %v", err)
	}
	if !res.SessionReady {
		t.Error("SessionReady = false after last exercise")
	}
	if res.State != StateSessionComplete {
		t.Errorf("state = %q, want session_complete", res.State)
	}

	// Nothing more to log once the session is ready.
	if _, err := m.AddSet(ctx, 40, false, 10, 2); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("add set after completion err = %v, want ErrInvalidTransition", err)
	}
}

// TestRestRemaining verifies the countdown derives from the absolute
// deadline and clamps at zero.
func TestRestRemaining(t *testing.T) {
	m, _, clock, _ := newTestMachine(t)
	ctx := context.Background()

	if _, err := m.Start(ctx, testWorkout()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := m.AddSet(ctx, 84, false, 8, 3); err != nil {
		t.Fatalf("add set: %v", err)
	}

	if got := m.RestRemaining(); got != 90*time.Second {
		t.Errorf("remaining = %v, want 90s", got)
	}
	clock.Advance(30 * time.Second)
	if got := m.RestRemaining(); got != 60*time.Second {
		t.Errorf("remaining = %v, want 60s", got)
	}
	clock.Advance(2 * time.Minute)
	if got := m.RestRemaining(); got != 0 {
		t.Errorf("remaining = %v, want 0 after deadline", got)
	}
}

// TestSkipAndExtendRest verifies the two rest controls.
func TestSkipAndExtendRest(t *testing.T) {
	m, _, _, _ := newTestMachine(t)
	ctx := context.Background()

	if err := m.SkipRest(ctx); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("skip without session err = %v, want ErrNoActiveSession", err)
	}

	if _, err := m.Start(ctx, testWorkout()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.SkipRest(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("skip outside rest err = %v, want ErrInvalidTransition", err)
	}

	res, err := m.AddSet(ctx, 84, false, 8, 3)
	if err != nil {
		t.Fatalf("add set: %v", err)
	}

	deadline, err := m.ExtendRest(ctx)
	if err != nil {
		t.Fatalf("extend rest: %v", err)
	}
	if got := deadline.Sub(*res.RestDeadline); got != 30*time.Second {
		t.Errorf("extension = %v, want 30s", got)
	}

	if err := m.SkipRest(ctx); err != nil {
		t.Fatalf("skip rest: %v", err)
	}
	if got := m.RestRemaining(); got != 0 {
		t.Errorf("remaining after skip = %v, want 0", got)
	}
	// Skipping returned the machine to in-progress; logging works again.
	if _, err := m.AddSet(ctx, 84, false, 8, 3); err != nil {
		t.Errorf("add set after skip: %v", err)
	}
}

// TestAddSetPRs verifies a finished exercise surfaces PR events against a
// pre-existing best.
func TestAddSetPRs(t *testing.T) {
	m, st, clock, _ := newTestMachine(t)
	ctx := context.Background()

	if err := st.PutBest(ctx, models.ExerciseBest{
		ExerciseID: "bench-press", WeightKg: 84, Reps: 8, RecordedAt: clock.Now().AddDate(0, 0, -7),
	}); err != nil {
		t.Fatalf("seeding best: %v", err)
	}

	if _, err := m.Start(ctx, testWorkout()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := m.AddSet(ctx, 86, false, 8, 4); err != nil {
		t.Fatalf("add set: %v", err)
	}
	clock.Advance(2 * time.Minute)
	res, err := m.AddSet(ctx, 86, false, 8, 4)
	if err != nil {
		t.Fatalf("add set: %v", err)
	}

	if len(res.PRs) != 1 {
		t.Fatalf("PRs = %d, want 1", len(res.PRs))
	}
	if res.PRs[0].Kind != models.PRWeight || res.PRs[0].WeightKg != 86 {
		t.Errorf("PR = %+v, want 86kg weight PR", res.PRs[0])
	}

	best, err := st.Best(ctx, "bench-press")
	if err != nil {
		t.Fatalf("reading best: %v", err)
	}
	if best.WeightKg != 86 {
		t.Errorf("stored best = %v, want 86", best.WeightKg)
	}
}

// TestNavigation verifies exercise switching resets set state and is
// rejected mid-rest.
func TestNavigation(t *testing.T) {
	m, _, clock, _ := newTestMachine(t)
	ctx := context.Background()

	if _, err := m.Start(ctx, testWorkout()); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := m.PreviousExercise(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("previous at first exercise err = %v, want ErrInvalidTransition", err)
	}

	if _, err := m.AddSet(ctx, 84, false, 8, 3); err != nil {
		t.Fatalf("add set: %v", err)
	}
	if _, err := m.NextExercise(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("navigate mid-rest err = %v, want ErrInvalidTransition", err)
	}

	clock.Advance(2 * time.Minute)
	nav, err := m.NextExercise(ctx)
	if err != nil {
		t.Fatalf("next exercise: %v", err)
	}
	if nav.Exercise.ID != "overhead-press" || nav.ExerciseIndex != 1 {
		t.Errorf("nav = %s at %d, want overhead-press at 1", nav.Exercise.ID, nav.ExerciseIndex)
	}

	snap, _ := m.Status()
	if snap.CurrentSetNumber != 1 || len(snap.CompletedSets) != 0 {
		t.Errorf("set state = number %d, %d completed; want reset", snap.CurrentSetNumber, len(snap.CompletedSets))
	}
}

// TestNavigationDefaults verifies the selected exercise carries defaults
// from its last recorded set.
func TestNavigationDefaults(t *testing.T) {
	m, st, _, _ := newTestMachine(t)
	ctx := context.Background()

	if _, err := st.RecordSets(ctx, "overhead-press", "old-session", []models.SetRecord{
		{SetNumber: 1, WeightKg: 42.5, Reps: 10, CompletedAt: time.Now().AddDate(0, 0, -3)},
	}); err != nil {
		t.Fatalf("seeding history: %v", err)
	}

	if _, err := m.Start(ctx, testWorkout()); err != nil {
		t.Fatalf("start: %v", err)
	}
	nav, err := m.NextExercise(ctx)
	if err != nil {
		t.Fatalf("next exercise: %v", err)
	}
	if nav.DefaultWeightKg != 42.5 || nav.DefaultReps != 10 {
		t.Errorf("defaults = %vkg x %d, want 42.5 x 10", nav.DefaultWeightKg, nav.DefaultReps)
	}
}

// TestCompleteRequiresTargets verifies incomplete sessions need force, and
// force keeps the partial exercise's sets.
func TestCompleteRequiresTargets(t *testing.T) {
	m, st, _, syncer := newTestMachine(t)
	ctx := context.Background()

	if _, err := m.Start(ctx, testWorkout()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := m.AddSet(ctx, 84, false, 8, 3); err != nil {
		t.Fatalf("add set: %v", err)
	}

	if _, err := m.Complete(ctx, false); !errors.Is(err, ErrIncomplete) {
		t.Errorf("complete err = %v, want ErrIncomplete", err)
	}

	res, err := m.Complete(ctx, true)
	if err != nil {
		t.Fatalf("forced complete: %v", err)
	}
	if !res.Session.Forced {
		t.Error("Forced = false on forced completion")
	}
	if len(res.Session.Exercises) != 1 || len(res.Session.Exercises[0].Sets) != 1 {
		t.Errorf("exercises = %+v, want the one partial bench log", res.Session.Exercises)
	}
	if got := res.Session.TotalVolumeKg; got != 84*8 {
		t.Errorf("volume = %v, want %v", got, 84.0*8)
	}
	if len(syncer.submitted) != 1 {
		t.Fatalf("submitted = %d, want 1", len(syncer.submitted))
	}

	// The partial sets made it into history.
	sets, err := st.SetHistory(ctx, "bench-press", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(sets) != 1 {
		t.Errorf("history = %d sets, want 1", len(sets))
	}

	if _, ok := m.Status(); ok {
		t.Error("session still active after completion")
	}
}

// TestCompleteArchivesSyncStatus verifies the archived snapshot reflects
// whether the submission was acknowledged or queued.
func TestCompleteArchivesSyncStatus(t *testing.T) {
	m, st, clock, syncer := newTestMachine(t)
	syncer.queued = true
	ctx := context.Background()

	if _, err := m.Start(ctx, testWorkout()); err != nil {
		t.Fatalf("start: %v", err)
	}
	var sessionID string
	if snap, ok := m.Status(); ok {
		sessionID = snap.SessionID
	}

	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if _, err := m.AddSet(ctx, 50, false, 10, 3); err != nil {
				t.Fatalf("add set: %v", err)
			}
			clock.Advance(2 * time.Minute)
		}
	}

	res, err := m.Complete(ctx, false)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !res.Queued {
		t.Error("Queued = false, want true")
	}

	status, err := st.SessionSyncStatus(ctx, sessionID)
	if err != nil {
		t.Fatalf("sync status: %v", err)
	}
	if status != models.SyncPending {
		t.Errorf("sync status = %q, want pending", status)
	}
}

// TestCompleteSubmitFailureKeepsSession verifies a submission error leaves
// the session active.
func TestCompleteSubmitFailureKeepsSession(t *testing.T) {
	m, _, clock, syncer := newTestMachine(t)
	syncer.err = errors.New("queue write failed")
	ctx := context.Background()

	if _, err := m.Start(ctx, testWorkout()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := m.AddSet(ctx, 84, false, 8, 3); err != nil {
		t.Fatalf("add set: %v", err)
	}
	clock.Advance(2 * time.Minute)

	if _, err := m.Complete(ctx, true); err == nil {
		t.Fatal("complete succeeded despite submit failure")
	}
	if _, ok := m.Status(); !ok {
		t.Error("session gone after failed completion")
	}
}

// TestAbandonConfirmation verifies abandoning needs explicit confirmation
// and then archives the session as abandoned instead of resuming it.
func TestAbandonConfirmation(t *testing.T) {
	m, st, _, _ := newTestMachine(t)
	ctx := context.Background()

	snap, err := m.Start(ctx, testWorkout())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Abandon(ctx, false); !errors.Is(err, ErrConfirmationRequired) {
		t.Errorf("abandon err = %v, want ErrConfirmationRequired", err)
	}
	if err := m.Abandon(ctx, true); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if _, ok := m.Status(); ok {
		t.Error("session still active after abandon")
	}
	if _, err := st.ActiveSnapshot(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("snapshot err = %v, want ErrNotFound", err)
	}
	status, err := st.SessionSyncStatus(ctx, snap.SessionID)
	if err != nil {
		t.Fatalf("sync status: %v", err)
	}
	if status != models.SyncAbandoned {
		t.Errorf("sync status = %q, want abandoned", status)
	}
}

// TestResume verifies a new machine picks up the persisted session,
// including the rest deadline.
func TestResume(t *testing.T) {
	m, st, clock, syncer := newTestMachine(t)
	ctx := context.Background()

	if _, err := m.Start(ctx, testWorkout()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := m.AddSet(ctx, 84, false, 8, 3); err != nil {
		t.Fatalf("add set: %v", err)
	}
	before, _ := m.Status()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m2 := New(st, syncer, 30*time.Second, log)
	m2.now = clock.Now
	if err := m2.Resume(ctx); err != nil {
		t.Fatalf("resume: %v", err)
	}

	after, ok := m2.Status()
	if !ok {
		t.Fatal("no session after resume")
	}
	if after.SessionID != before.SessionID {
		t.Errorf("session = %q, want %q", after.SessionID, before.SessionID)
	}
	if after.RestDeadline == nil || !after.RestDeadline.Equal(*before.RestDeadline) {
		t.Errorf("rest deadline = %v, want %v", after.RestDeadline, before.RestDeadline)
	}
	if len(after.CompletedSets) != 1 {
		t.Errorf("completed sets = %d, want 1", len(after.CompletedSets))
	}
}

// TestAddSetValidation rejects nonsense input and zeroes bodyweight entries.
func TestAddSetValidation(t *testing.T) {
	m, _, _, _ := newTestMachine(t)
	ctx := context.Background()

	if _, err := m.AddSet(ctx, 84, false, 8, 3); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("add set without session err = %v, want ErrNoActiveSession", err)
	}

	if _, err := m.Start(ctx, testWorkout()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := m.AddSet(ctx, 84, false, 0, 3); err == nil {
		t.Error("zero reps accepted")
	}
	if _, err := m.AddSet(ctx, -5, false, 8, 3); err == nil {
		t.Error("negative weight accepted")
	}

	res, err := m.AddSet(ctx, 84, true, 12, 3)
	if err != nil {
		t.Fatalf("bodyweight set: %v", err)
	}
	if res.Set.WeightKg != 0 || !res.Set.IsBodyweight {
		t.Errorf("set = %+v, want bodyweight with zero weight", res.Set)
	}
}
