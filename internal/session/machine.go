// Package session owns the in-progress workout: exercise and set
// progression, rest-interval timing, personal-record detection, and the
// snapshot persistence that lets a session survive a crash or reload.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/claude/repsync/internal/models"
	"github.com/claude/repsync/internal/store"
)

// State names stored in snapshots. ExerciseComplete is transient: the
// machine passes through it inside AddSet and lands on the next stable
// state before persisting.
const (
	StateNotStarted      = "not_started"
	StateInProgress      = "in_progress"
	StateResting         = "resting"
	StateSessionComplete = "session_complete"
	StateAbandoned       = "abandoned"
)

var (
	// ErrInvalidTransition rejects an operation outside its valid states.
	// A UI-contract error: handled locally, no network involvement.
	ErrInvalidTransition = errors.New("session: invalid transition")
	// ErrNoActiveSession means no workout is running on this device.
	ErrNoActiveSession = errors.New("session: no active session")
	// ErrSessionActive rejects starting a second concurrent session.
	ErrSessionActive = errors.New("session: a session is already active")
	// ErrConfirmationRequired guards Abandon against accidental data loss.
	ErrConfirmationRequired = errors.New("session: abandoning requires confirmation")
	// ErrIncomplete rejects completing before every exercise hit its
	// target set count (unless forced).
	ErrIncomplete = errors.New("session: exercises below target set count")
)

// Syncer hands a finished session to the network layer or the mutation
// queue. Satisfied by *queue.Syncer.
type Syncer interface {
	SubmitSession(ctx context.Context, session models.CompletedSession) (queued bool, err error)
}

// Machine is the workout session state machine. One instance owns the one
// active session per device; every successful transition persists a snapshot
// before returning.
type Machine struct {
	store      *store.Store
	syncer     Syncer
	restExtend time.Duration
	log        *slog.Logger
	now        func() time.Time

	mu   sync.Mutex
	snap *models.SessionSnapshot
}

// New creates a Machine with no active session.
func New(st *store.Store, syncer Syncer, restExtend time.Duration, log *slog.Logger) *Machine {
	return &Machine{
		store:      st,
		syncer:     syncer,
		restExtend: restExtend,
		log:        log,
		now:        time.Now,
	}
}

// Resume loads the persisted active session, if any, so a restart picks up
// from the last committed transition. Snapshots from an older schema version
// are discarded by the store.
func (m *Machine) Resume(ctx context.Context) error {
	snap, err := m.store.ActiveSnapshot(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("resuming session: %w", err)
	}

	m.mu.Lock()
	m.snap = snap
	m.mu.Unlock()
	m.log.Info("session resumed", "session", snap.SessionID, "state", snap.State,
		"exercise", snap.CurrentExerciseIndex, "set", snap.CurrentSetNumber)
	return nil
}

// Start begins a session from a workout plan.
func (m *Machine) Start(ctx context.Context, workout models.Workout) (models.SessionSnapshot, error) {
	if len(workout.Exercises) == 0 {
		return models.SessionSnapshot{}, fmt.Errorf("workout %s has no exercises", workout.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap != nil {
		return models.SessionSnapshot{}, ErrSessionActive
	}

	m.snap = &models.SessionSnapshot{
		SchemaVersion:        models.SnapshotSchemaVersion,
		SessionID:            uuid.NewString(),
		WorkoutID:            workout.ID,
		Workout:              workout,
		State:                StateInProgress,
		StartTime:            m.now(),
		CurrentExerciseIndex: 0,
		CurrentSetNumber:     1,
		SyncStatus:           models.SyncLocal,
	}
	if err := m.persistLocked(ctx); err != nil {
		m.snap = nil
		return models.SessionSnapshot{}, err
	}
	m.log.Info("session started", "session", m.snap.SessionID, "workout", workout.ID)
	return *m.snap, nil
}

// Status returns a copy of the current snapshot.
func (m *Machine) Status() (models.SessionSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return models.SessionSnapshot{}, false
	}
	m.advanceRestLocked()
	return *m.snap, true
}

// RestRemaining is the rest countdown, recomputed from the absolute
// deadline so it stays correct across suspension or missed ticks.
func (m *Machine) RestRemaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil || m.snap.RestDeadline == nil {
		return 0
	}
	return max(0, m.snap.RestDeadline.Sub(m.now()))
}

// AddSetResult reports what one logged set caused.
type AddSetResult struct {
	Set               models.SetRecord `json:"set"`
	State             string           `json:"state"`
	RestDeadline      *time.Time       `json:"rest_deadline,omitempty"`
	ExerciseCompleted bool             `json:"exercise_completed"`
	SessionReady      bool             `json:"session_ready"`
	PRs               []models.PREvent `json:"prs,omitempty"`
}

// AddSet logs one completed set. Valid only while an exercise is in
// progress; a rest whose deadline already elapsed counts as in progress.
// Filling the exercise's target set count completes the exercise, runs PR
// detection, and advances to the next exercise (or readies the session for
// completion after the last one). Otherwise the machine moves to resting.
func (m *Machine) AddSet(ctx context.Context, weightKg float64, bodyweight bool, reps, difficulty int) (*AddSetResult, error) {
	if reps <= 0 {
		return nil, fmt.Errorf("reps must be positive, got %d", reps)
	}
	if weightKg < 0 {
		return nil, fmt.Errorf("weight must be non-negative, got %v", weightKg)
	}
	if bodyweight {
		weightKg = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return nil, ErrNoActiveSession
	}
	m.advanceRestLocked()
	if m.snap.State != StateInProgress {
		return nil, fmt.Errorf("%w: cannot add a set while %s", ErrInvalidTransition, m.snap.State)
	}

	exercise := m.snap.Workout.Exercises[m.snap.CurrentExerciseIndex]
	set := models.SetRecord{
		SetNumber:    m.snap.CurrentSetNumber,
		WeightKg:     weightKg,
		IsBodyweight: bodyweight,
		Reps:         reps,
		Difficulty:   difficulty,
		CompletedAt:  m.now(),
	}
	m.snap.CompletedSets = append(m.snap.CompletedSets, set)
	m.snap.CurrentSetNumber++

	result := &AddSetResult{Set: set}

	if len(m.snap.CompletedSets) >= exercise.TargetSets {
		prs, err := m.finishExerciseLocked(ctx, exercise)
		if err != nil {
			return nil, err
		}
		result.ExerciseCompleted = true
		result.PRs = prs

		if m.snap.CurrentExerciseIndex+1 < len(m.snap.Workout.Exercises) {
			m.snap.CurrentExerciseIndex++
			m.snap.CurrentSetNumber = 1
			m.snap.CompletedSets = nil
			m.snap.State = StateInProgress
			m.snap.RestDeadline = nil
		} else {
			m.snap.CompletedSets = nil
			m.snap.State = StateSessionComplete
			m.snap.RestDeadline = nil
			result.SessionReady = true
		}
	} else {
		deadline := m.now().Add(time.Duration(exercise.RestSeconds) * time.Second)
		m.snap.RestDeadline = &deadline
		m.snap.State = StateResting
	}

	if err := m.persistLocked(ctx); err != nil {
		return nil, err
	}
	result.State = m.snap.State
	result.RestDeadline = m.snap.RestDeadline
	return result, nil
}

// finishExerciseLocked runs PR detection against the stored best, records
// the sets into local history, updates the best, and appends the finished
// log. PR detection itself is a pure function over completedSets and the
// historical best.
func (m *Machine) finishExerciseLocked(ctx context.Context, exercise models.Exercise) ([]models.PREvent, error) {
	best, err := m.store.Best(ctx, exercise.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	prs, updated := DetectPRs(exercise.ID, m.snap.CompletedSets, best, m.now())
	if updated != nil {
		if err := m.store.PutBest(ctx, *updated); err != nil {
			return nil, err
		}
	}
	if _, err := m.store.RecordSets(ctx, exercise.ID, m.snap.SessionID, m.snap.CompletedSets); err != nil {
		return nil, err
	}

	m.snap.Finished = append(m.snap.Finished, models.ExerciseLog{
		ExerciseID: exercise.ID,
		Name:       exercise.Name,
		Sets:       m.snap.CompletedSets,
	})
	m.snap.PRCount += len(prs)

	for _, pr := range prs {
		m.log.Info("personal record", "exercise", exercise.ID, "kind", pr.Kind,
			"weight_kg", pr.WeightKg, "reps", pr.Reps)
	}
	return prs, nil
}

// SkipRest cancels the rest countdown and returns to the set in progress.
func (m *Machine) SkipRest(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return ErrNoActiveSession
	}
	m.advanceRestLocked()
	if m.snap.State != StateResting {
		return fmt.Errorf("%w: no rest in progress", ErrInvalidTransition)
	}
	m.snap.State = StateInProgress
	m.snap.RestDeadline = nil
	return m.persistLocked(ctx)
}

// ExtendRest pushes the rest deadline out by the configured increment
// without changing state. Returns the new deadline.
func (m *Machine) ExtendRest(ctx context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return time.Time{}, ErrNoActiveSession
	}
	m.advanceRestLocked()
	if m.snap.State != StateResting || m.snap.RestDeadline == nil {
		return time.Time{}, fmt.Errorf("%w: no rest in progress", ErrInvalidTransition)
	}
	deadline := m.snap.RestDeadline.Add(m.restExtend)
	m.snap.RestDeadline = &deadline
	if err := m.persistLocked(ctx); err != nil {
		return time.Time{}, err
	}
	return deadline, nil
}

// Refresh advances an elapsed rest deadline. Called from a cooperative
// ticker; the countdown itself always derives from the absolute deadline,
// so a missed tick never skews it.
func (m *Machine) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return nil
	}
	if m.advanceRestLocked() {
		return m.persistLocked(ctx)
	}
	return nil
}

// advanceRestLocked moves resting to in-progress once the deadline passes.
func (m *Machine) advanceRestLocked() bool {
	if m.snap.State == StateResting && m.snap.RestDeadline != nil && !m.now().Before(*m.snap.RestDeadline) {
		m.snap.State = StateInProgress
		m.snap.RestDeadline = nil
		return true
	}
	return false
}

// NavResult describes the newly selected exercise with input defaults taken
// from the exercise's last-performed set.
type NavResult struct {
	Exercise          models.Exercise `json:"exercise"`
	ExerciseIndex     int             `json:"exercise_index"`
	DefaultWeightKg   float64         `json:"default_weight_kg"`
	DefaultReps       int             `json:"default_reps"`
	DefaultBodyweight bool            `json:"default_bodyweight"`
}

// NextExercise moves to the following exercise. Rejected mid-rest; cancel
// the rest first. Completed sets for the abandoned exercise are reset.
func (m *Machine) NextExercise(ctx context.Context) (*NavResult, error) {
	return m.navigate(ctx, +1)
}

// PreviousExercise moves back one exercise.
func (m *Machine) PreviousExercise(ctx context.Context) (*NavResult, error) {
	return m.navigate(ctx, -1)
}

func (m *Machine) navigate(ctx context.Context, delta int) (*NavResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return nil, ErrNoActiveSession
	}
	m.advanceRestLocked()
	if m.snap.State == StateResting {
		return nil, fmt.Errorf("%w: cancel the rest before changing exercise", ErrInvalidTransition)
	}
	if m.snap.State != StateInProgress {
		return nil, fmt.Errorf("%w: cannot navigate while %s", ErrInvalidTransition, m.snap.State)
	}

	idx := m.snap.CurrentExerciseIndex + delta
	if idx < 0 || idx >= len(m.snap.Workout.Exercises) {
		return nil, fmt.Errorf("%w: no exercise at position %d", ErrInvalidTransition, idx)
	}

	m.snap.CurrentExerciseIndex = idx
	m.snap.CurrentSetNumber = 1
	m.snap.CompletedSets = nil
	m.snap.RestDeadline = nil
	if err := m.persistLocked(ctx); err != nil {
		return nil, err
	}

	exercise := m.snap.Workout.Exercises[idx]
	result := &NavResult{Exercise: exercise, ExerciseIndex: idx}
	if last, err := m.store.LastPerformed(ctx, exercise.ID); err == nil {
		result.DefaultWeightKg = last.WeightKg
		result.DefaultReps = last.Reps
		result.DefaultBodyweight = last.IsBodyweight
	}
	return result, nil
}

// CompleteResult reports the finished session and whether it reached the
// server or is waiting in the mutation queue.
type CompleteResult struct {
	Session models.CompletedSession `json:"session"`
	Queued  bool                    `json:"queued"`
}

// Complete finishes the session: allowed once every exercise reached its
// target set count, or when forced. Computes session aggregates and hands
// them to the sync layer; on persistence failure the data is queued, the
// session is archived as pending_sync, and nothing is discarded.
func (m *Machine) Complete(ctx context.Context, force bool) (*CompleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return nil, ErrNoActiveSession
	}
	m.advanceRestLocked()

	if m.snap.State != StateSessionComplete {
		if !force {
			return nil, ErrIncomplete
		}
		// Force completion keeps whatever was logged for the current
		// exercise rather than dropping it.
		if len(m.snap.CompletedSets) > 0 {
			exercise := m.snap.Workout.Exercises[m.snap.CurrentExerciseIndex]
			if _, err := m.finishExerciseLocked(ctx, exercise); err != nil {
				return nil, err
			}
			m.snap.CompletedSets = nil
		}
		m.snap.State = StateSessionComplete
		m.snap.RestDeadline = nil
	}

	now := m.now()
	session := models.CompletedSession{
		SessionID:       m.snap.SessionID,
		WorkoutID:       m.snap.WorkoutID,
		StartedAt:       m.snap.StartTime,
		CompletedAt:     now,
		DurationSeconds: int(now.Sub(m.snap.StartTime) / time.Second),
		TotalVolumeKg:   totalVolume(m.snap.Finished),
		PRCount:         m.snap.PRCount,
		Forced:          force,
		Exercises:       m.snap.Finished,
	}

	queued, err := m.syncer.SubmitSession(ctx, session)
	if err != nil {
		// Session stays active and completable; nothing is lost.
		if perr := m.persistLocked(ctx); perr != nil {
			m.log.Error("persisting snapshot after sync failure", "error", perr)
		}
		return nil, fmt.Errorf("submitting session: %w", err)
	}

	status := models.SyncDone
	if queued {
		status = models.SyncPending
	}
	m.snap.SyncStatus = status
	if err := m.persistLocked(ctx); err != nil {
		return nil, err
	}
	if err := m.store.ArchiveSession(ctx, m.snap.SessionID, status); err != nil {
		return nil, fmt.Errorf("archiving session: %w", err)
	}

	m.log.Info("session completed", "session", m.snap.SessionID,
		"volume_kg", session.TotalVolumeKg, "prs", session.PRCount, "queued", queued)
	m.snap = nil
	return &CompleteResult{Session: session, Queued: queued}, nil
}

// Abandon exits the session without syncing anything. Requires explicit
// confirmation. The session is archived as abandoned rather than deleted,
// so it no longer resumes but its record survives.
func (m *Machine) Abandon(ctx context.Context, confirmed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return ErrNoActiveSession
	}
	if !confirmed {
		return ErrConfirmationRequired
	}

	m.snap.SyncStatus = models.SyncAbandoned
	if err := m.persistLocked(ctx); err != nil {
		return err
	}
	if err := m.store.ArchiveSession(ctx, m.snap.SessionID, models.SyncAbandoned); err != nil {
		return fmt.Errorf("archiving session: %w", err)
	}
	m.log.Info("session abandoned", "session", m.snap.SessionID)
	m.snap = nil
	return nil
}

// persistLocked writes the snapshot; persistence is an explicit side effect
// of every transition, not an implicit global.
func (m *Machine) persistLocked(ctx context.Context) error {
	if err := m.store.SaveSnapshot(ctx, *m.snap); err != nil {
		return fmt.Errorf("persisting snapshot: %w", err)
	}
	return nil
}

func totalVolume(logs []models.ExerciseLog) float64 {
	var total float64
	for _, l := range logs {
		for _, set := range l.Sets {
			total += set.Volume()
		}
	}
	return total
}
