package entity

import (
	"regexp"
	"strconv"
	"strings"
)

// OwnerLevelLabel is reserved for the mandatory cost-center-owner checkpoint.
// Catalog levels may not use it.
const OwnerLevelLabel = "CC_OWNER"

var levelOrdinalPattern = regexp.MustCompile(`\d+`)

// Level is an approval level with its ordinal resolved at catalog definition time
type Level struct {
	Label   string `json:"label"`
	Ordinal int    `json:"ordinal"`
	Ranked  bool   `json:"ranked"`
}

// OwnerLevel is the sentinel level carried by owner steps
func OwnerLevel() Level {
	return Level{Label: OwnerLevelLabel}
}

// IsOwner reports whether this is the reserved owner sentinel
func (l Level) IsOwner() bool {
	return l.Label == OwnerLevelLabel
}

// ParseLevel extracts the numeric ordinal out of a level label.
// Labels without digits are unranked and sort after every ranked level.
func ParseLevel(label string) Level {
	label = strings.TrimSpace(label)
	lvl := Level{Label: label}
	if m := levelOrdinalPattern.FindString(label); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			lvl.Ordinal = n
			lvl.Ranked = true
		}
	}
	return lvl
}

// CompareLevels orders ranked levels by ordinal, then unranked levels by label.
func CompareLevels(a, b Level) int {
	switch {
	case a.IsOwner() && b.IsOwner():
		return 0
	case a.IsOwner():
		return -1
	case b.IsOwner():
		return 1
	}

	if a.Ranked != b.Ranked {
		if a.Ranked {
			return -1
		}
		return 1
	}
	if a.Ranked && a.Ordinal != b.Ordinal {
		if a.Ordinal < b.Ordinal {
			return -1
		}
		return 1
	}
	return strings.Compare(a.Label, b.Label)
}
