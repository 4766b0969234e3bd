package trending

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var countPattern = regexp.MustCompile(`(?i)(\d[\d,]*(?:\.\d+)?)([kmb]\+|[kmb]\b)?`)

// ParseCount extracts the first count in s, expanding "1.2k", "3k+" or
// "1.5m" by their order of magnitude and truncating toward zero. Anything
// unparseable yields zero; counts too large for an int saturate at
// math.MaxInt.
func ParseCount(s string) int {
	m := countPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0
	}
	switch strings.ToLower(strings.TrimSuffix(m[2], "+")) {
	case "k":
		v *= 1e3
	case "m":
		v *= 1e6
	case "b":
		v *= 1e9
	}
	if v >= math.MaxInt {
		return math.MaxInt
	}
	// 1.2*1000 may come out as 1199.999...
	return int(math.Floor(v + 1e-9))
}
