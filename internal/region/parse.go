package region

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// xwininfo prints geometry as indented "Key: value" lines. Every field below
// must be present and numeric; a partial match is a hard parse error rather
// than a silent fallback to a default.
var xwininfoFields = map[string]*regexp.Regexp{
	"left":   regexp.MustCompile(`(?m)^\s*Absolute upper-left X:\s+(-?\d+)\s*$`),
	"top":    regexp.MustCompile(`(?m)^\s*Absolute upper-left Y:\s+(-?\d+)\s*$`),
	"width":  regexp.MustCompile(`(?m)^\s*Width:\s+(\d+)\s*$`),
	"height": regexp.MustCompile(`(?m)^\s*Height:\s+(\d+)\s*$`),
}

// parseXwininfo extracts the absolute window rectangle from xwininfo output.
func parseXwininfo(out []byte) (Region, error) {
	text := string(out)

	values := make(map[string]int, len(xwininfoFields))
	for name, re := range xwininfoFields {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return Region{}, fmt.Errorf("%w: xwininfo output missing %s field", ErrGeometryUnavailable, name)
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			return Region{}, fmt.Errorf("%w: xwininfo %s field %q: %v", ErrGeometryUnavailable, name, m[1], err)
		}
		values[name] = v
	}

	r := Region{
		Left:   values["left"],
		Top:    values["top"],
		Width:  values["width"],
		Height: values["height"],
	}

	// Windows partially above or left of the visible area report a negative
	// origin. The grab must start on-screen, so clamp the origin at zero.
	if r.Left < 0 {
		r.Left = 0
	}
	if r.Top < 0 {
		r.Top = 0
	}

	if err := r.Validate(); err != nil {
		return Region{}, err
	}
	return r, nil
}

// parseSlop parses slop's "-f %x %y %w %h" output: four space-separated
// non-negative integers on a single line.
func parseSlop(out []byte) (Region, error) {
	fields := strings.Fields(strings.TrimSpace(string(out)))
	if len(fields) != 4 {
		return Region{}, fmt.Errorf("%w: expected 4 fields from slop, got %d", ErrGeometryUnavailable, len(fields))
	}

	nums := make([]int, 4)
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return Region{}, fmt.Errorf("%w: slop field %q: %v", ErrGeometryUnavailable, f, err)
		}
		nums[i] = v
	}

	r := Region{Left: nums[0], Top: nums[1], Width: nums[2], Height: nums[3]}
	if err := r.Validate(); err != nil {
		return Region{}, err
	}
	return r, nil
}
