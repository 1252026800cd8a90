// Package phone normalizes phone-number strings to E.164 using region
// hints. It wraps github.com/nyaruka/phonenumbers,
// the phone-parsing library surfaced by the retrieved corpus
// (other_examples/52aab437_SSDIGITAL...validation.go.go).
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// InvalidFormat is the sentinel returned for parseable-but-invalid or
// unparseable phone strings.
const InvalidFormat = "InvalidFormat"

// Normalize tries to parse raw against each region hint in order, then
// the configured default region, returning the first valid E.164 result.
// Empty input returns ("", true), the null case.
// Parseable-but-invalid or unparseable input returns (InvalidFormat, false).
func Normalize(raw string, regionHints []string, defaultRegion string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", true
	}

	regions := make([]string, 0, len(regionHints)+1)
	regions = append(regions, regionHints...)
	if defaultRegion != "" {
		regions = append(regions, defaultRegion)
	}
	if len(regions) == 0 {
		regions = []string{"ZZ"}
	}

	for _, region := range regions {
		region = strings.ToUpper(strings.TrimSpace(region))
		if region == "" {
			continue
		}
		parsed, err := phonenumbers.Parse(trimmed, region)
		if err != nil {
			continue
		}
		if !phonenumbers.IsValidNumber(parsed) {
			continue
		}
		return phonenumbers.Format(parsed, phonenumbers.E164), true
	}

	return InvalidFormat, false
}

// IsValidFor reports whether raw parses to a valid number under region.
// The candidate extractor does not call it; it applies its own
// possible-number check instead.
func IsValidFor(raw, region string) bool {
	parsed, err := phonenumbers.Parse(raw, strings.ToUpper(region))
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(parsed)
}

// RegionFromCallingCode returns the most likely region for a number that
// already carries a leading "+<cc>", or "" if none is detected.
func RegionFromCallingCode(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "+") {
		return ""
	}
	parsed, err := phonenumbers.Parse(trimmed, "ZZ")
	if err != nil {
		return ""
	}
	return phonenumbers.GetRegionCodeForNumber(parsed)
}
