package tiers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelOfTable(t *testing.T) {
	cases := map[string]Level{
		"FREE":                     LevelFree,
		"Customer":                 LevelFree,
		"collective":               LevelCollective,
		"COLLECTIVE":               LevelCollective,
		"  Success+   Collective ": LevelCollective,
		"INSIDER":                  LevelInsider,
		"SUCCESS+ Insider":         LevelInsider,
		"Insider Annual":           LevelInsider,
		"":                         LevelFree,
		"Platinum Elite":           LevelFree,
	}
	for raw, want := range cases {
		t.Run(raw, func(t *testing.T) {
			assert.Equal(t, want, LevelOf(raw))
		})
	}
}

func TestFromProduct(t *testing.T) {
	assert.Equal(t, "INSIDER", FromProduct("SUCCESS+ Insider"))
	assert.Equal(t, "COLLECTIVE", FromProduct("success+ collective"))
	assert.Equal(t, "FREE", FromProduct("   "))

	raw := FromProduct("  Mystery Box ")
	assert.Equal(t, "Mystery Box", raw)
	assert.Equal(t, LevelFree, LevelOf(raw), "unknown products rank free")
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, Insider, Canonical("success plus insider"))
	assert.Equal(t, Collective, Canonical("Collective"))
	assert.Equal(t, Free, Canonical("unknown"))
	assert.True(t, Known("customer"))
	assert.False(t, Known("unknown"))
}

func TestSatisfiesDefaultsToCollective(t *testing.T) {
	assert.True(t, Satisfies("COLLECTIVE", ""))
	assert.False(t, Satisfies("FREE", ""))
	assert.False(t, Satisfies("Customer", "collective"))
}

func TestSatisfiesIsMonotonic(t *testing.T) {
	held := []string{"FREE", "COLLECTIVE", "INSIDER", "Customer", "SUCCESS+ Insider", "garbage"}
	for _, h := range held {
		if Satisfies(h, "insider") {
			assert.True(t, Satisfies(h, "collective"), "holder %q satisfies insider but not collective", h)
		}
		if Satisfies(h, "collective") {
			assert.True(t, Satisfies(h, "free"), "holder %q satisfies collective but not free", h)
		}
	}
}
