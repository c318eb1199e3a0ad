/*
catalog.go - The ordered achievement-level table

PURPOSE:
  The Catalog is the static, validated table of achievement levels. It is
  built once (from code or from JSON config, see factory/) and injected into
  whatever needs level lookups - never reached for as global state, so tests
  can run against a small three-level ladder.

INVARIANTS (enforced at construction, impossible afterwards):
  1. The catalog is never empty
  2. The first level starts at 0 points
  3. Ranges are contiguous: next.MinPoints == prev.MaxPoints + 1
  4. Only the last level is unbounded
  5. Ranks strictly increase in table order

  Together these guarantee totality: every non-negative integer balance maps
  to exactly one level.

WHY THRESHOLDS, NOT STORED LEVELS:
  A trainee's level is computed from the balance on every lookup rather than
  stored on the trainee. The level can never drift from the balance and no
  migration is needed when the catalog changes. The accepted tradeoff is
  that editing thresholds retroactively changes everyone's level.

SEE ALSO:
  - resolver.go: LevelFor / NextLevelFor / ProgressFor
  - factory/catalog.go: JSON catalog definitions
*/
package progression

import "fmt"

// =============================================================================
// CATALOG
// =============================================================================

// Catalog is an immutable, validated, ordered level table.
// Construct with NewCatalog; the zero value is unusable.
type Catalog struct {
	levels []Level
}

// NewCatalog validates and builds a catalog from the given levels, which
// must already be in ascending order. Ranks are assigned from table order.
func NewCatalog(levels []Level) (*Catalog, error) {
	if len(levels) == 0 {
		return nil, ErrEmptyCatalog
	}

	out := make([]Level, len(levels))
	copy(out, levels)

	if out[0].MinPoints != 0 {
		return nil, fmt.Errorf("%w: first level %q starts at %d", ErrCatalogGap, out[0].ID, out[0].MinPoints)
	}

	for i := range out {
		out[i].Rank = i

		last := i == len(out)-1
		if last {
			if out[i].Bounded() {
				return nil, fmt.Errorf("%w: terminal level %q has upper bound %d", ErrBoundedTerminal, out[i].ID, out[i].MaxPoints)
			}
			continue
		}

		if !out[i].Bounded() {
			return nil, fmt.Errorf("%w: level %q is unbounded but not terminal", ErrUnboundedInterior, out[i].ID)
		}
		if out[i].MaxPoints < out[i].MinPoints {
			return nil, fmt.Errorf("%w: level %q range [%d,%d]", ErrInvalidRange, out[i].ID, out[i].MinPoints, out[i].MaxPoints)
		}
		if out[i+1].MinPoints != out[i].MaxPoints+1 {
			return nil, fmt.Errorf("%w: %q ends at %d but %q starts at %d",
				ErrCatalogGap, out[i].ID, out[i].MaxPoints, out[i+1].ID, out[i+1].MinPoints)
		}
	}

	return &Catalog{levels: out}, nil
}

// MustCatalog is NewCatalog for statically known tables.
func MustCatalog(levels []Level) *Catalog {
	c, err := NewCatalog(levels)
	if err != nil {
		panic(err)
	}
	return c
}

// Levels returns a copy of the ordered level table.
func (c *Catalog) Levels() []Level {
	out := make([]Level, len(c.levels))
	copy(out, c.levels)
	return out
}

// Len returns the number of levels.
func (c *Catalog) Len() int { return len(c.levels) }

// Top returns the terminal (unbounded) level.
func (c *Catalog) Top() Level { return c.levels[len(c.levels)-1] }

// ByID looks up a level by identifier.
func (c *Catalog) ByID(id LevelID) (Level, bool) {
	for _, l := range c.levels {
		if l.ID == id {
			return l, true
		}
	}
	return Level{}, false
}

// =============================================================================
// DEFAULT CATALOG
// =============================================================================

// DefaultCatalog returns the standard seven-level training ladder.
func DefaultCatalog() *Catalog {
	return MustCatalog([]Level{
		{ID: "amateur", Name: "Amateur", MinPoints: 0, MaxPoints: 99,
			Perks: []string{"Access to open training sessions"}},
		{ID: "beginner", Name: "Beginner", MinPoints: 100, MaxPoints: 249,
			Perks: []string{"Personalized attendance card", "Eligible for standard gifts"}},
		{ID: "novice", Name: "Novice", MinPoints: 250, MaxPoints: 499,
			Perks: []string{"Priority course registration", "Eligible for standard gifts"}},
		{ID: "intermediate", Name: "Intermediate", MinPoints: 500, MaxPoints: 999,
			Perks: []string{"Guest pass once per month", "Eligible for premium gifts"}},
		{ID: "advanced", Name: "Advanced", MinPoints: 1000, MaxPoints: 1999,
			Perks: []string{"Free workshop seat each quarter", "Eligible for premium gifts"}},
		{ID: "expert", Name: "Expert", MinPoints: 2000, MaxPoints: 4999,
			Perks: []string{"Instructor shadowing program", "Eligible for all gifts"}},
		{ID: "master", Name: "Master", MinPoints: 5000, MaxPoints: NoUpperBound,
			Perks: []string{"Lifetime recognition plaque", "Eligible for all gifts", "Invited to instructor council"}},
	})
}
