package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	salaryRangeRe  = regexp.MustCompile(`(?i)\$(\d[\d,]*(?:\.\d+)?)\s*([kK])?\s*(?:-|–|—|to)\s*\$(\d[\d,]*(?:\.\d+)?)\s*([kK])?`)
	salarySingleRe = regexp.MustCompile(`(?i)\$(\d[\d,]*(?:\.\d+)?)([kK])?`)
)

// ExtractSalaryRange detects a dollar salary range in free text. A single
// figure yields min == max. The bool is false when no figure was found.
func ExtractSalaryRange(text string) (int, int, bool) {
	if text == "" {
		return 0, 0, false
	}

	if m := salaryRangeRe.FindStringSubmatch(text); m != nil {
		low := salaryAmount(m[1], m[2])
		high := salaryAmount(m[3], m[4])
		if high < low {
			low, high = high, low
		}
		return low, high, true
	}

	if m := salarySingleRe.FindStringSubmatch(text); m != nil {
		v := salaryAmount(m[1], m[2])
		return v, v, true
	}
	return 0, 0, false
}

func salaryAmount(value, suffix string) int {
	n, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
	if err != nil {
		return 0
	}
	if strings.EqualFold(suffix, "k") {
		n *= 1000
	}
	return int(math.Round(n))
}
