package dlna

import "strings"

// deviceProfile captures the buffer-size/format quirks a renderer family
// needs, per SPEC_FULL.md §12's "DLNA device-profile table" elaboration of
// the spec's prose description.
type deviceProfile struct {
	Name            string
	MatchSubstrings []string
	PreferredFormat string // "L16" or "L24"
	MinBufferMs     int
}

var knownProfiles = []deviceProfile{
	{
		Name:            "Sonos",
		MatchSubstrings: []string{"sonos"},
		PreferredFormat: "L16",
		MinBufferMs:     200, // Sonos renderers are intolerant of small chunked writes
	},
	{
		Name:            "GenericHiRes",
		MatchSubstrings: []string{"hi-res", "highres", "l24"},
		PreferredFormat: "L24",
		MinBufferMs:     150,
	},
}

var defaultProfile = deviceProfile{
	Name:            "Generic",
	PreferredFormat: "L16",
	MinBufferMs:     100,
}

// profileFor matches a device's friendly name/manufacturer against the
// known-quirks table, falling back to defaultProfile.
func profileFor(friendlyName, manufacturer string) deviceProfile {
	haystack := strings.ToLower(friendlyName + " " + manufacturer)
	for _, p := range knownProfiles {
		for _, needle := range p.MatchSubstrings {
			if strings.Contains(haystack, needle) {
				return p
			}
		}
	}
	return defaultProfile
}
