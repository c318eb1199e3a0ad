/*
Package factory provides JSON to Go level-catalog conversion.

PURPOSE:
  Converts JSON ladder definitions into a validated progression.Catalog.
  This enables catalog configuration without code changes - program
  administrators can define the level ladder in JSON, and the factory
  builds the proper Go structs with every catalog invariant checked.

WHY JSON?
  - Non-developers can tune the ladder
  - Easy integration with admin UI
  - Version control for ladder definitions

JSON SCHEMA:
  {
    "levels": [
      {"id": "amateur",  "name": "Amateur",  "min_points": 0,   "max_points": 99},
      {"id": "beginner", "name": "Beginner", "min_points": 100, "max_points": 249,
       "perks": ["priority course enrollment"]},
      {"id": "master",   "name": "Master",   "min_points": 5000}
    ]
  }

  The terminal level omits max_points (or sets it null) to mark it
  unbounded. All catalog invariants still apply: the first level starts
  at 0, ranges are contiguous, only the last level may be unbounded.

USAGE:
  catalog, err := factory.ParseCatalog(jsonBytes)
  catalog, err := factory.LoadCatalogFile("./ladder.json")

SEE ALSO:
  - progression/catalog.go: Catalog type and invariant validation
  - progression/types.go: Level definition
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/warp/progression-engine/progression"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// CatalogJSON is the JSON representation of a level catalog.
type CatalogJSON struct {
	Levels []LevelJSON `json:"levels"`
}

// LevelJSON is the JSON representation of a single level. MaxPoints is a
// pointer so the terminal level can omit it to mean "no upper bound".
type LevelJSON struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	MinPoints int      `json:"min_points"`
	MaxPoints *int     `json:"max_points,omitempty"`
	Perks     []string `json:"perks,omitempty"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParseCatalog builds a validated catalog from a JSON ladder definition.
func ParseCatalog(data []byte) (*progression.Catalog, error) {
	var doc CatalogJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid catalog JSON: %w", err)
	}

	levels := make([]progression.Level, 0, len(doc.Levels))
	for i, lj := range doc.Levels {
		if lj.ID == "" {
			return nil, fmt.Errorf("level %d: missing id", i)
		}
		name := lj.Name
		if name == "" {
			name = lj.ID
		}
		max := progression.NoUpperBound
		if lj.MaxPoints != nil {
			max = *lj.MaxPoints
		}
		levels = append(levels, progression.Level{
			ID:        progression.LevelID(lj.ID),
			Name:      name,
			MinPoints: lj.MinPoints,
			MaxPoints: max,
			Perks:     lj.Perks,
		})
	}

	catalog, err := progression.NewCatalog(levels)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return catalog, nil
}

// LoadCatalogFile reads and parses a JSON ladder definition from disk.
func LoadCatalogFile(path string) (*progression.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return ParseCatalog(data)
}
