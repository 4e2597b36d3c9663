package cities

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// All is the closed set of monitored metro areas. The upstream advisory
// page only publishes price cycles for these five.
var All = []string{
	"sydney",
	"melbourne",
	"brisbane",
	"adelaide",
	"perth",
}

// Normalize lowercases and trims a user-provided city name.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func Valid(name string) bool {
	name = Normalize(name)
	for _, c := range All {
		if c == name {
			return true
		}
	}
	return false
}

// Display capitalizes a city name for emails and tables.
func Display(name string) string {
	name = Normalize(name)
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// Closest returns the supported city nearest to the given name, for
// suggestions on validation errors. ok is false when nothing is close
// enough to be a plausible typo.
func Closest(name string) (string, bool) {
	name = Normalize(name)
	best := ""
	bestDist := -1
	for _, c := range All {
		dist := matchr.DamerauLevenshtein(name, c)
		if bestDist == -1 || dist < bestDist {
			best = c
			bestDist = dist
		}
	}
	if bestDist > 3 {
		return "", false
	}
	return best, true
}
