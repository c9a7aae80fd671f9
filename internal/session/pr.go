package session

import (
	"math"
	"time"

	"github.com/claude/repsync/internal/models"
)

// weightEq compares user-entered weights with a small tolerance so float
// round-trips through JSON and SQLite never split equal weights.
func weightEq(a, b float64) bool { return math.Abs(a-b) < 0.001 }

// DetectPRs compares an exercise's completed sets against its last-known
// best: a heavier weight is a weight PR, more reps at the best weight is a
// reps PR. Pure function; the first time an exercise is ever performed it
// establishes the baseline and emits nothing.
//
// Returns the PR events in set order plus the updated best (nil when there
// were no sets and no prior best).
func DetectPRs(exerciseID string, sets []models.SetRecord, best *models.ExerciseBest, now time.Time) ([]models.PREvent, *models.ExerciseBest) {
	var events []models.PREvent

	cur := best
	for _, set := range sets {
		if cur == nil {
			// Baseline session: track the best set without emitting events.
			cur = &models.ExerciseBest{
				ExerciseID: exerciseID,
				WeightKg:   set.WeightKg,
				Reps:       set.Reps,
				RecordedAt: now,
			}
			continue
		}

		switch {
		case set.WeightKg > cur.WeightKg && !weightEq(set.WeightKg, cur.WeightKg):
			if best != nil {
				prev := *cur
				events = append(events, models.PREvent{
					ExerciseID: exerciseID,
					Kind:       models.PRWeight,
					WeightKg:   set.WeightKg,
					Reps:       set.Reps,
					Previous:   &prev,
				})
			}
			cur = &models.ExerciseBest{ExerciseID: exerciseID, WeightKg: set.WeightKg, Reps: set.Reps, RecordedAt: now}
		case weightEq(set.WeightKg, cur.WeightKg) && set.Reps > cur.Reps:
			if best != nil {
				prev := *cur
				events = append(events, models.PREvent{
					ExerciseID: exerciseID,
					Kind:       models.PRReps,
					WeightKg:   set.WeightKg,
					Reps:       set.Reps,
					Previous:   &prev,
				})
			}
			cur = &models.ExerciseBest{ExerciseID: exerciseID, WeightKg: cur.WeightKg, Reps: set.Reps, RecordedAt: now}
		}
	}

	return events, cur
}
