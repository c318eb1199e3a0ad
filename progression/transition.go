/*
transition.go - Level-boundary crossing detection

PURPOSE:
  Compares a before/after point balance and reports whether a level boundary
  was crossed. This MUST be evaluated at every balance mutation - check-in,
  course completion, redemption debit, manual adjustment, penalty - which is
  why the engine funnels every write through one operation that calls it.

ASYMMETRY (intentional):
  Only upward crossings set LeveledUp. A penalty that drops a trainee below
  a boundary changes the computed level silently - the celebratory UI is
  tied to gains only. Consumers that care about any change can check
  Transition.Changed().

CLAMPING:
  ApplyDelta clamps the resulting balance at zero rather than failing, so
  penalties and debits are total operations. The Transition always reflects
  the clamped balance.
*/
package progression

// DetectTransition compares two balances and reports the level effect.
// LeveledUp is true only when the computed level changed AND the balance
// increased.
func (c *Catalog) DetectTransition(oldPoints, newPoints int) Transition {
	oldLevel := c.LevelFor(oldPoints)
	newLevel := c.LevelFor(newPoints)

	return Transition{
		LeveledUp:    oldLevel.ID != newLevel.ID && newPoints > oldPoints,
		OldLevel:     oldLevel,
		NewLevel:     newLevel,
		PointsGained: newPoints - oldPoints,
		OldPoints:    oldPoints,
		NewPoints:    newPoints,
	}
}

// ApplyDelta computes the clamped new balance for a delta and the resulting
// transition. The balance never goes below zero.
func (c *Catalog) ApplyDelta(current, delta int) (int, Transition) {
	next := current + delta
	if next < 0 {
		next = 0
	}
	return next, c.DetectTransition(current, next)
}
