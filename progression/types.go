/*
Package progression provides the core trainee progression engine.

PURPOSE:
  This package contains the types and pure functions that map a trainee's
  cumulative point balance to a discrete achievement level, compute progress
  toward the next level, and detect level transitions when the balance
  changes. It has no storage, no transport, and no clock - everything here
  is a pure function of its inputs.

KEY CONCEPTS IN THIS FILE (types.go):
  - Trainee: The entity that earns and spends points
  - Level: A named tier defined by an inclusive point range
  - PointEvent: An immutable ledger entry recording a balance change
  - PointSource: Where a balance change came from (check-in, course, ...)

DESIGN PRINCIPLES:
  1. Immutability: The level catalog and point events never change in place
  2. Totality: Every non-negative point value maps to exactly one level
  3. Single write path: Balances only change through the engine's
     point-update operation, never by direct field writes
  4. Auditability: Every balance change is recorded as a PointEvent

USAGE:
  catalog := progression.DefaultCatalog()
  level := catalog.LevelFor(trainee.Points)
  tr := catalog.DetectTransition(90, 100)
  if tr.LeveledUp {
      // notify the trainee
  }

SEE ALSO:
  - catalog.go: Catalog construction and validation
  - resolver.go: Level and progress lookup
  - transition.go: Before/after transition detection
*/
package progression

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TraineeID string
type LevelID string
type EventID string

// =============================================================================
// TRAINEE - The entity that earns and spends points
// =============================================================================

// Trainee is the progression-relevant slice of a trainee record.
// Points is only ever changed through the engine's point-update operation;
// nothing else in the module writes this field.
type Trainee struct {
	ID        TraineeID
	Name      string
	Email     string
	Points    int
	CreatedAt time.Time
}

// =============================================================================
// LEVEL - A named tier defined by an inclusive point range
// =============================================================================

// NoUpperBound marks the terminal level's MaxPoints: any balance at or above
// its MinPoints belongs to it.
const NoUpperBound = -1

// Level is an immutable catalog entry.
// Rank is assigned by the catalog (position in the ordered table) and is the
// value used for ordering comparisons, not MinPoints.
type Level struct {
	ID        LevelID
	Name      string
	Rank      int
	MinPoints int
	MaxPoints int // inclusive; NoUpperBound for the terminal level
	Perks     []string
}

// Bounded reports whether the level has an explicit upper bound.
func (l Level) Bounded() bool { return l.MaxPoints != NoUpperBound }

// Contains reports whether points falls inside the level's range.
func (l Level) Contains(points int) bool {
	if points < l.MinPoints {
		return false
	}
	return !l.Bounded() || points <= l.MaxPoints
}

// Span returns the width of the level's range in points.
// The terminal level has no meaningful span.
func (l Level) Span() int {
	if !l.Bounded() {
		return 0
	}
	return l.MaxPoints - l.MinPoints + 1
}

// =============================================================================
// PROGRESS - Advancement through the current level
// =============================================================================

// Progress describes how far a balance has advanced toward the next level.
// Percent is an integer in [0,100]; PointsToNext is never negative.
// At the terminal level Percent is 100 and PointsToNext is 0.
type Progress struct {
	Percent      int
	PointsToNext int
}

// =============================================================================
// TRANSITION - Result of a point-balance change
// =============================================================================

// Transition reports the effect of a balance change on the computed level.
// LeveledUp is true only for upward boundary crossings: downward crossings
// (penalties, admin rollback) change the level silently.
type Transition struct {
	LeveledUp    bool
	OldLevel     Level
	NewLevel     Level
	PointsGained int // NewPoints - OldPoints; negative for deductions
	OldPoints    int
	NewPoints    int
}

// Changed reports whether the computed level differs, in either direction.
func (t Transition) Changed() bool { return t.OldLevel.ID != t.NewLevel.ID }

// =============================================================================
// POINT EVENT - Immutable ledger entry for a balance change
// =============================================================================

type PointSource string

const (
	SourceRegistration     PointSource = "registration"
	SourceCheckIn          PointSource = "check_in"
	SourceCourseCompletion PointSource = "course_completion"
	SourceRedemption       PointSource = "redemption"
	SourceAdjustment       PointSource = "adjustment"
	SourcePenalty          PointSource = "penalty"
)

// PointEvent records one pass through the point-update operation.
// Events are append-only; corrections are made with a compensating
// adjustment, never by editing history.
type PointEvent struct {
	ID        EventID
	TraineeID TraineeID
	Delta     int // requested delta (pre-clamp)
	OldPoints int
	NewPoints int // post-clamp balance
	Source    PointSource
	Reason    string
	LeveledUp bool
	LevelID   LevelID // computed level after the change
	CreatedAt time.Time
}
