/*
resolver.go - Level and progress lookup

PURPOSE:
  Pure queries over the catalog: which level does a balance sit in, which
  level comes next, and how far along is the trainee toward it. These back
  the profile/card/dashboard views and have no side effects.

TOTALITY:
  LevelFor never fails. Negative input is a caller contract violation and is
  clamped to the first level rather than rejected, matching the permissive
  style of the surrounding system (balances themselves are clamped at zero
  by the point-update operation, so negative input only arises from misuse).

PROGRESS FORMULA:
  percent = round(100 * (points - cur.MinPoints) / (next.MinPoints - cur.MinPoints))
  clamped to [0,100]. At the terminal level progress is pinned to 100/0.

SEE ALSO:
  - transition.go: Uses LevelFor to detect boundary crossings
*/
package progression

import "sort"

// LevelFor returns the unique level whose range contains points.
// Balances above every explicit upper bound resolve to the terminal level;
// negative input clamps to the first level.
func (c *Catalog) LevelFor(points int) Level {
	if points < 0 {
		points = 0
	}

	// First level whose range ends at or after points. The terminal level
	// matches everything, so the search always lands.
	i := sort.Search(len(c.levels), func(i int) bool {
		l := c.levels[i]
		return !l.Bounded() || points <= l.MaxPoints
	})
	return c.levels[i]
}

// NextLevelFor returns the level immediately above the current one by rank,
// or false if the balance is already at the terminal level.
func (c *Catalog) NextLevelFor(points int) (Level, bool) {
	cur := c.LevelFor(points)
	return c.NextAfter(cur)
}

// NextAfter returns the level ranked immediately above l, if any.
func (c *Catalog) NextAfter(l Level) (Level, bool) {
	if l.Rank+1 >= len(c.levels) {
		return Level{}, false
	}
	return c.levels[l.Rank+1], true
}

// ProgressFor computes advancement through the current level's span.
func (c *Catalog) ProgressFor(points int) Progress {
	if points < 0 {
		points = 0
	}

	cur := c.LevelFor(points)
	next, ok := c.NextAfter(cur)
	if !ok {
		return Progress{Percent: 100, PointsToNext: 0}
	}

	span := next.MinPoints - cur.MinPoints
	pct := (100*(points-cur.MinPoints) + span/2) / span // round half up
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	toNext := next.MinPoints - points
	if toNext < 0 {
		toNext = 0
	}

	return Progress{Percent: pct, PointsToNext: toNext}
}
