// Package version computes enhancement version bumps and records applied
// enhancements into the journal.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a parsed semantic version with an optional pre-release tag.
type Version struct {
	Major int
	Minor int
	Patch int
	Pre   string
}

// Parse parses "MAJOR.MINOR.PATCH" with an optional "-pre" suffix.
func Parse(s string) (Version, error) {
	var v Version
	core := s
	if idx := strings.IndexByte(s, '-'); idx >= 0 {
		core = s[:idx]
		v.Pre = s[idx+1:]
		if v.Pre == "" {
			return Version{}, fmt.Errorf("invalid version %q: empty pre-release", s)
		}
	}

	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("invalid version %q: want MAJOR.MINOR.PATCH", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("invalid version %q: bad component %q", s, p)
		}
		nums[i] = n
	}
	v.Major, v.Minor, v.Patch = nums[0], nums[1], nums[2]
	return v, nil
}

// String renders the version.
func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Pre != "" {
		s += "-" + v.Pre
	}
	return s
}

// Compare returns -1, 0, or 1. A pre-release sorts before the same core
// version; numeric tails in pre-release tags compare numerically (rc2 < rc10).
func Compare(a, b Version) int {
	if c := cmpInt(a.Major, b.Major); c != 0 {
		return c
	}
	if c := cmpInt(a.Minor, b.Minor); c != 0 {
		return c
	}
	if c := cmpInt(a.Patch, b.Patch); c != 0 {
		return c
	}
	switch {
	case a.Pre == b.Pre:
		return 0
	case a.Pre == "":
		return 1
	case b.Pre == "":
		return -1
	}
	return cmpPre(a.Pre, b.Pre)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// cmpPre compares pre-release tags, splitting a shared alphabetic prefix from
// a numeric tail when both have one.
func cmpPre(a, b string) int {
	pa, na, okA := splitPre(a)
	pb, nb, okB := splitPre(b)
	if okA && okB && pa == pb {
		return cmpInt(na, nb)
	}
	return strings.Compare(a, b)
}

func splitPre(s string) (prefix string, n int, ok bool) {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == len(s) {
		return s, 0, false
	}
	n, err := strconv.Atoi(s[i:])
	if err != nil {
		return s, 0, false
	}
	return s[:i], n, true
}
