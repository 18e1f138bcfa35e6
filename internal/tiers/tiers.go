// Package tiers holds the membership tier ordering and the lookup tables that
// map free-form provider strings onto it.
package tiers

import "strings"

// Tier is a canonical membership level name.
type Tier string

const (
	Free       Tier = "FREE"
	Collective Tier = "COLLECTIVE"
	Insider    Tier = "INSIDER"
)

// Level is the rank of a tier in the total order FREE < COLLECTIVE < INSIDER.
type Level int

const (
	LevelFree       Level = 0
	LevelCollective Level = 1
	LevelInsider    Level = 2
)

// DefaultRequired is the tier premium content requires when none is declared.
const DefaultRequired = Collective

// levelByName maps every known provider spelling to its level. Keys are normalized.
var levelByName = map[string]Level{
	"free":                    LevelFree,
	"customer":                LevelFree,
	"none":                    LevelFree,
	"basic":                   LevelFree,
	"collective":              LevelCollective,
	"success+ collective":     LevelCollective,
	"success plus collective": LevelCollective,
	"successplus collective":  LevelCollective,
	"collective monthly":      LevelCollective,
	"collective annual":       LevelCollective,
	"insider":                 LevelInsider,
	"success+ insider":        LevelInsider,
	"success plus insider":    LevelInsider,
	"successplus insider":     LevelInsider,
	"insider monthly":         LevelInsider,
	"insider annual":          LevelInsider,
}

// tierByProduct maps known product names to the tier stored on a subscription.
var tierByProduct = map[string]Tier{
	"success+ insider":               Insider,
	"success+ insider monthly":       Insider,
	"success+ insider annual":        Insider,
	"success+ insider membership":    Insider,
	"success plus insider":           Insider,
	"insider":                        Insider,
	"success+ collective":            Collective,
	"success+ collective monthly":    Collective,
	"success+ collective annual":     Collective,
	"success+ collective membership": Collective,
	"success plus collective":        Collective,
	"collective":                     Collective,
	"free":                           Free,
	"success+ free":                  Free,
}

// Normalize lowercases, trims and collapses inner whitespace.
func Normalize(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

// LevelOf returns the level of any provider string; unknown strings rank FREE.
func LevelOf(raw string) Level {
	if level, ok := levelByName[Normalize(raw)]; ok {
		return level
	}
	return LevelFree
}

// Known reports whether raw is present in the level table.
func Known(raw string) bool {
	_, ok := levelByName[Normalize(raw)]
	return ok
}

// Canonical returns the canonical tier for raw, defaulting to FREE.
func Canonical(raw string) Tier {
	switch LevelOf(raw) {
	case LevelInsider:
		return Insider
	case LevelCollective:
		return Collective
	default:
		return Free
	}
}

// FromProduct returns the tier string to store for a product name. Known
// products map to a canonical tier; unknown products are kept verbatim and
// therefore rank FREE.
func FromProduct(productName string) string {
	if tier, ok := tierByProduct[Normalize(productName)]; ok {
		return string(tier)
	}
	trimmed := strings.TrimSpace(productName)
	if trimmed == "" {
		return string(Free)
	}
	return trimmed
}

// Satisfies reports whether a holder of tier held may access content that
// requires tier required. An empty requirement means DefaultRequired.
func Satisfies(held, required string) bool {
	if strings.TrimSpace(required) == "" {
		required = string(DefaultRequired)
	}
	return LevelOf(held) >= LevelOf(required)
}
