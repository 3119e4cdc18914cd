// Package tagorder implements the version-aware tag ordering used to decide
// which tags are new. It follows git's "version:refname" sort: runs of digits
// compare numerically, everything else compares byte by byte.
package tagorder

import (
	"sort"
	"strings"
)

// Compare returns -1, 0 or +1 depending on whether a sorts before, equal to or
// after b. Names that are equal as versions (for example "v01" and "v1") fall
// back to byte order, so the ordering is total.
func Compare(a, b string) int {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if isDigit(a[i]) && isDigit(b[j]) {
			si, sj := i, j
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			for j < len(b) && isDigit(b[j]) {
				j++
			}
			if c := compareNumeric(a[si:i], b[sj:j]); c != 0 {
				return c
			}
			continue
		}
		if a[i] != b[j] {
			if a[i] < b[j] {
				return -1
			}
			return 1
		}
		i++
		j++
	}

	ra, rb := len(a)-i, len(b)-j
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	}
	return strings.Compare(a, b)
}

// compareNumeric compares two digit runs by value without parsing, so runs of
// any length are safe.
func compareNumeric(x, y string) int {
	x = strings.TrimLeft(x, "0")
	y = strings.TrimLeft(y, "0")
	if len(x) != len(y) {
		if len(x) < len(y) {
			return -1
		}
		return 1
	}
	return strings.Compare(x, y)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// Sort orders tags ascending in place.
func Sort(tags []string) {
	sort.SliceStable(tags, func(i, j int) bool { return Compare(tags[i], tags[j]) < 0 })
}

// Sorted returns an ascending copy of tags.
func Sorted(tags []string) []string {
	out := append([]string(nil), tags...)
	Sort(out)
	return out
}

// Index returns the position of tag in sorted tags, or -1 when absent.
func Index(sorted []string, tag string) int {
	n := sort.Search(len(sorted), func(i int) bool { return Compare(sorted[i], tag) >= 0 })
	if n < len(sorted) && sorted[n] == tag {
		return n
	}
	return -1
}
