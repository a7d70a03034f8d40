package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEligible_Europe(t *testing.T) {
	p := Policy{
		RegionLimit:     true,
		Region:          "Europe",
		SmartFilters:    true,
		ExcludePatterns: []string{"Beta", "Rev B"},
		LatestRevision:  true,
	}

	assert.True(t, p.IsEligible("Super Game (Europe).zip"))
	assert.True(t, p.IsEligible("Super Game (World).zip"))
	assert.False(t, p.IsEligible("Super Game (USA).zip"))
	assert.False(t, p.IsEligible("Super Game (Europe) (Beta).zip"))
	assert.False(t, p.IsEligible("Super Game (Europe) (Rev B).zip"))
	// Beta outside parentheses is part of the title.
	assert.True(t, p.IsEligible("Beta Game (Europe).zip"))
}

func TestIsEligible_Exclusions(t *testing.T) {
	p := Policy{
		RegionLimit:     true,
		Region:          "USA",
		SmartFilters:    true,
		ExcludePatterns: []string{"Rental", "Alt"},
		LatestRevision:  true,
	}

	assert.True(t, p.IsEligible("Game (USA).zip"))
	assert.True(t, p.IsEligible("Game (World).zip"))
	assert.False(t, p.IsEligible("Game (Europe).zip"))
	assert.False(t, p.IsEligible("Game (Japan).zip"))

	for _, tag := range []string{"Beta", "Proto", "Sample", "Demo", "Kiosk", "Unl", "Arcade", "Virtual Console"} {
		assert.False(t, p.IsEligible("Game (USA) ("+tag+").zip"), tag)
	}

	assert.False(t, p.IsEligible("Game (USA) (Rental Version).zip"))
	assert.False(t, p.IsEligible("Game (USA) (Alt Version).zip"))

	assert.False(t, p.IsEligible("Game (Beta) (USA) (Rev 1).zip"))
	assert.False(t, p.IsEligible("Game (Rental) (World) (Rev 2).zip"))
	assert.False(t, p.IsEligible("Game (Europe) (Rev 1) (Demo).zip"))

	assert.True(t, p.IsEligible("Game (Rev 2) (USA).zip"))
	assert.True(t, p.IsEligible("Game with Beta in Title (USA).zip"))
	assert.True(t, p.IsEligible("Alternative Game (USA).zip"))
	assert.True(t, p.IsEligible("Game (World) (Rev 1).zip"))
}

func TestIsEligible_RegionIsExactMatch(t *testing.T) {
	p := Policy{RegionLimit: true, Region: "USA"}

	assert.False(t, p.IsEligible("Game (USA, Europe).zip"))
	assert.False(t, p.IsEligible("Game.zip"))
	assert.True(t, p.IsEligible("Game (En,Fr) (USA).zip"))
}

func TestIsEligible_SmartFilterIsExactMatch(t *testing.T) {
	p := Policy{SmartFilters: true}

	assert.True(t, p.IsEligible("Game (USA) (Beta 2).zip"))
	assert.True(t, p.IsEligible("Game (USA) (Tech Demo).zip"))
	assert.False(t, p.IsEligible("Game (USA) (Promo).zip"))
}

func TestIsEligible_NoPolicyAcceptsAll(t *testing.T) {
	var p Policy
	assert.True(t, p.IsEligible("Game (Japan) (Proto).zip"))
	assert.True(t, p.IsEligible(""))
}

func TestCheck_ReportsFirstFailure(t *testing.T) {
	p := Policy{
		RegionLimit:     true,
		Region:          "USA",
		SmartFilters:    true,
		ExcludePatterns: []string{"Rental"},
	}

	ok, reason := p.Check("Game (Europe) (Rental) (Demo).zip")
	assert.False(t, ok)
	assert.Equal(t, ReasonRegion, reason)

	_, reason = p.Check("Game (USA) (Rental) (Demo).zip")
	assert.Equal(t, ReasonExcluded, reason)

	_, reason = p.Check("Game (USA) (Demo).zip")
	assert.Equal(t, ReasonSmartFilter, reason)

	ok, reason = p.Check("Game (USA).zip")
	assert.True(t, ok)
	assert.Equal(t, ReasonNone, reason)
	assert.Equal(t, "smart-filter", ReasonSmartFilter.String())
}
