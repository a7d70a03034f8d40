package filter

import "strings"

// WorldRegion is accepted by every region limit.
const WorldRegion = "World"

// SmartFilterTags are the tags rejected when smart filters are on.
// Arcade is listed because some console sets carry alternate arcade dumps
// (e.g. The Addams Family for SNES).
var SmartFilterTags = []string{
	"Beta",
	"Alpha",
	"Proto",
	"Virtual Console",
	"Aftermarket",
	"Unl",
	"Sample",
	"Promo",
	"Demo",
	"Kiosk",
	"Arcade",
}

// Reason names the check that rejected a filename.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonRegion
	ReasonExcluded
	ReasonSmartFilter
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "eligible"
	case ReasonRegion:
		return "region"
	case ReasonExcluded:
		return "excluded"
	case ReasonSmartFilter:
		return "smart-filter"
	default:
		return "unknown"
	}
}

// Policy controls which files are candidates and how revisions collapse.
type Policy struct {
	// RegionLimit requires a tag equal to Region or World.
	RegionLimit bool   `json:"region_limit" yaml:"region_limit"`
	Region      string `json:"region" yaml:"region"`
	// SmartFilters rejects files tagged with any of SmartFilterTags.
	SmartFilters bool `json:"smart_filters" yaml:"smart_filters"`
	// ExcludePatterns rejects files with a tag containing any pattern.
	ExcludePatterns []string `json:"exclude_patterns" yaml:"exclude_patterns"`
	// LatestRevision keeps one release per canonical title.
	LatestRevision bool `json:"latest_revision" yaml:"latest_revision"`
}

// IsEligible reports whether filename passes every check of the policy.
func (p Policy) IsEligible(filename string) bool {
	ok, _ := p.Check(filename)
	return ok
}

// Check is IsEligible plus the first failing check. Region is checked first,
// then custom excludes, then smart filters.
func (p Policy) Check(filename string) (bool, Reason) {
	tags := ExtractTags(filename)

	if p.RegionLimit && !hasRegion(tags, p.Region) {
		return false, ReasonRegion
	}

	for _, tag := range tags {
		for _, pattern := range p.ExcludePatterns {
			if strings.Contains(tag, pattern) {
				return false, ReasonExcluded
			}
		}
	}

	if p.SmartFilters {
		for _, tag := range tags {
			for _, kw := range SmartFilterTags {
				if tag == kw {
					return false, ReasonSmartFilter
				}
			}
		}
	}

	return true, ReasonNone
}

func hasRegion(tags []string, region string) bool {
	for _, tag := range tags {
		if tag == region || tag == WorldRegion {
			return true
		}
	}
	return false
}
