package models

import "time"

// Exercise is one planned exercise within a workout.
type Exercise struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Equipment   string `json:"equipment,omitempty"`
	TargetSets  int    `json:"target_sets"`
	TargetReps  int    `json:"target_reps"`
	RestSeconds int    `json:"rest_seconds"`
}

// Workout is the plan a session is started from.
type Workout struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Exercises []Exercise `json:"exercises"`
}

// SetRecord is one logged set. Immutable once appended. A bodyweight set
// carries IsBodyweight=true and WeightKg=0.
type SetRecord struct {
	SetNumber    int       `json:"set_number"`
	WeightKg     float64   `json:"weight_kg"`
	IsBodyweight bool      `json:"is_bodyweight"`
	Reps         int       `json:"reps"`
	Difficulty   int       `json:"difficulty"`
	CompletedAt  time.Time `json:"completed_at"`
}

// Volume is the set's contribution to session volume (weight x reps).
func (s SetRecord) Volume() float64 {
	return s.WeightKg * float64(s.Reps)
}

// ExerciseLog holds the finished sets of one exercise within a session.
type ExerciseLog struct {
	ExerciseID string      `json:"exercise_id"`
	Name       string      `json:"name"`
	Sets       []SetRecord `json:"sets"`
}

// SyncStatus tracks whether a finished session reached the server.
type SyncStatus string

const (
	SyncLocal     SyncStatus = "local"
	SyncPending   SyncStatus = "pending_sync"
	SyncDone      SyncStatus = "synced"
	SyncAbandoned SyncStatus = "abandoned"
)

// SnapshotSchemaVersion is bumped on incompatible snapshot layout changes;
// persisted snapshots with an older version are discarded on resume.
const SnapshotSchemaVersion = 2

// SessionSnapshot is the persisted copy of the in-progress workout state,
// written after every transition so a crash or reload resumes from the last
// committed state.
type SessionSnapshot struct {
	SchemaVersion        int           `json:"schema_version"`
	SessionID            string        `json:"session_id"`
	WorkoutID            string        `json:"workout_id"`
	Workout              Workout       `json:"workout"`
	State                string        `json:"state"`
	StartTime            time.Time     `json:"start_time"`
	CurrentExerciseIndex int           `json:"current_exercise_index"`
	CurrentSetNumber     int           `json:"current_set_number"`
	CompletedSets        []SetRecord   `json:"completed_sets"`
	RestDeadline         *time.Time    `json:"rest_deadline,omitempty"`
	Finished             []ExerciseLog `json:"finished"`
	PRCount              int           `json:"pr_count"`
	SyncStatus           SyncStatus    `json:"sync_status"`
}

// ExerciseBest is the last-known best for an exercise: heaviest weight, and
// the most reps achieved at that weight.
type ExerciseBest struct {
	ExerciseID string    `json:"exercise_id"`
	WeightKg   float64   `json:"weight_kg"`
	Reps       int       `json:"reps"`
	RecordedAt time.Time `json:"recorded_at"`
}

// PRKind distinguishes the two flavors of personal record.
type PRKind string

const (
	// PRWeight means a heavier weight than the previous best.
	PRWeight PRKind = "weight"
	// PRReps means more reps at the previous best weight.
	PRReps PRKind = "reps"
)

// PREvent reports a set that beat the exercise's last-known best.
type PREvent struct {
	ExerciseID string        `json:"exercise_id"`
	Kind       PRKind        `json:"kind"`
	WeightKg   float64       `json:"weight_kg"`
	Reps       int           `json:"reps"`
	Previous   *ExerciseBest `json:"previous,omitempty"`
}

// CompletedSession is the aggregate handed to the server (or the mutation
// queue) when a session finishes.
type CompletedSession struct {
	SessionID       string        `json:"session_id"`
	WorkoutID       string        `json:"workout_id"`
	StartedAt       time.Time     `json:"started_at"`
	CompletedAt     time.Time     `json:"completed_at"`
	DurationSeconds int           `json:"duration_seconds"`
	TotalVolumeKg   float64       `json:"total_volume_kg"`
	PRCount         int           `json:"pr_count"`
	Forced          bool          `json:"forced"`
	Exercises       []ExerciseLog `json:"exercises"`
}
