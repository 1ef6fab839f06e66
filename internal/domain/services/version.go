package services

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/blang/semver"
)

var unstableVersion = regexp.MustCompile(`(?i)(alpha|beta|milestone|preview|snapshot|[.-]rc|[.-]cr|[.-]m\d|[.-]ea)`)

// qualifier ranks following Maven's ordering; unknown qualifiers sort after releases
var qualifierRank = map[string]int{
	"alpha":     1,
	"a":         1,
	"beta":      2,
	"b":         2,
	"milestone": 3,
	"m":         3,
	"rc":        4,
	"cr":        4,
	"snapshot":  5,
	"":          6,
	"ga":        6,
	"final":     6,
	"release":   6,
	"sp":        7,
}

// CompareVersions compares two Maven versions and returns -1, 0 or 1.
// Versions that parse as semantic versions are compared with semver rules;
// everything else falls back to Maven's segment ordering.
func CompareVersions(a, b string) int {
	if a == b {
		return 0
	}

	va, errA := semver.ParseTolerant(a)
	vb, errB := semver.ParseTolerant(b)
	if errA == nil && errB == nil && len(va.Pre) == 0 && len(vb.Pre) == 0 {
		return va.Compare(vb)
	}

	return compareSegments(splitVersion(a), splitVersion(b))
}

// IsStableVersion reports whether a version looks like a final release
func IsStableVersion(v string) bool {
	return !unstableVersion.MatchString(v)
}

// LatestVersion returns the highest version of the list, optionally ignoring unstable ones
func LatestVersion(versions []string, stableOnly bool) string {
	latest := ""
	for _, v := range versions {
		if stableOnly && !IsStableVersion(v) {
			continue
		}
		if latest == "" || CompareVersions(v, latest) > 0 {
			latest = v
		}
	}
	return latest
}

type versionSegment struct {
	number    int
	qualifier string
	numeric   bool
}

func splitVersion(v string) []versionSegment {
	v = strings.ToLower(strings.TrimSpace(v))
	fields := strings.FieldsFunc(v, func(r rune) bool {
		return r == '.' || r == '-' || r == '_'
	})

	segments := make([]versionSegment, 0, len(fields))
	for _, f := range fields {
		// split transitions such as "1rc2" into "1", "rc", "2"
		for _, part := range splitDigitBoundaries(f) {
			if n, err := strconv.Atoi(part); err == nil {
				segments = append(segments, versionSegment{number: n, numeric: true})
			} else {
				segments = append(segments, versionSegment{qualifier: part})
			}
		}
	}

	// trailing zeros and release qualifiers do not change ordering
	for len(segments) > 0 {
		last := segments[len(segments)-1]
		if (last.numeric && last.number == 0) || (!last.numeric && qualifierRank[last.qualifier] == 6 && last.qualifier != "") {
			segments = segments[:len(segments)-1]
			continue
		}
		break
	}
	return segments
}

func splitDigitBoundaries(s string) []string {
	var parts []string
	start := 0
	for i := 1; i < len(s); i++ {
		prevDigit := s[i-1] >= '0' && s[i-1] <= '9'
		digit := s[i] >= '0' && s[i] <= '9'
		if prevDigit != digit {
			parts = append(parts, s[start:i])
			start = i
		}
	}
	return append(parts, s[start:])
}

func compareSegments(a, b []versionSegment) int {
	for i := 0; i < len(a) || i < len(b); i++ {
		sa, sb := segmentAt(a, i), segmentAt(b, i)
		if c := compareSegment(sa, sb); c != 0 {
			return c
		}
	}
	return 0
}

// segmentAt pads the shorter version with the release marker
func segmentAt(segments []versionSegment, i int) versionSegment {
	if i < len(segments) {
		return segments[i]
	}
	return versionSegment{}
}

func compareSegment(a, b versionSegment) int {
	switch {
	case a.numeric && b.numeric:
		return compareInts(a.number, b.number)
	case a.numeric:
		// padding counts as zero; a number beats any qualifier
		if b.qualifier == "" {
			return compareInts(a.number, 0)
		}
		return 1
	case b.numeric:
		return -compareSegment(b, a)
	default:
		ra, okA := qualifierRank[a.qualifier]
		rb, okB := qualifierRank[b.qualifier]
		if !okA {
			ra = 6
		}
		if !okB {
			rb = 6
		}
		if ra != rb {
			return compareInts(ra, rb)
		}
		return strings.Compare(a.qualifier, b.qualifier)
	}
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
