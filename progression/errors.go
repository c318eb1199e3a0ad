/*
errors.go - Sentinel errors for the progression engine

PURPOSE:
  Catalog construction is the only failable operation in this package; the
  lookup functions are total by design. Errors here are programmer/config
  errors surfaced at startup, not runtime conditions.

USAGE:
  if errors.Is(err, progression.ErrCatalogGap) {
      // the configured ladder has a hole or overlap
  }
*/
package progression

import "errors"

var (
	// ErrEmptyCatalog is returned when a catalog has no levels.
	ErrEmptyCatalog = errors.New("catalog has no levels")

	// ErrCatalogGap is returned when level ranges are not contiguous,
	// including a first level that does not start at 0.
	ErrCatalogGap = errors.New("level ranges are not contiguous")

	// ErrInvalidRange is returned when a level's max is below its min.
	ErrInvalidRange = errors.New("level range is inverted")

	// ErrUnboundedInterior is returned when a non-terminal level has no
	// upper bound.
	ErrUnboundedInterior = errors.New("only the terminal level may be unbounded")

	// ErrBoundedTerminal is returned when the terminal level has an
	// explicit upper bound, which would make the catalog non-total.
	ErrBoundedTerminal = errors.New("terminal level must be unbounded")
)
