package sqlport

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseVersion reads the leading dotted release number of a server version
// string such as "16.4 (Debian 16.4-1)", "8.4.3-log" or "17beta1".
func ParseVersion(v string) ([]int, error) {
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty version")
	}

	var parts []int
	for _, p := range strings.Split(fields[0], ".") {
		end := 0
		for end < len(p) && p[end] >= '0' && p[end] <= '9' {
			end++
		}
		if end == 0 {
			break
		}
		n, err := strconv.Atoi(p[:end])
		if err != nil {
			return nil, err
		}
		parts = append(parts, n)
		if end < len(p) {
			break
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no version number in %q", v)
	}
	return parts, nil
}

// CompareVersions compares two parsed versions; missing parts count as zero.
func CompareVersions(a, b []int) int {
	for i := 0; i < len(a) || i < len(b); i++ {
		var x, y int
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}

// CheckVersion fails with ErrServerVersion if server is older than minimum.
// An unparsable minimum is ErrInvalidConfig.
func CheckVersion(engine Engine, server, minimum string) error {
	want, err := ParseVersion(minimum)
	if err != nil {
		return fmt.Errorf("minimum server version %q: %w", minimum, ErrInvalidConfig)
	}
	have, err := ParseVersion(server)
	if err != nil {
		return fmt.Errorf("unrecognised %s version %q: %w", engine, server, ErrServerVersion)
	}
	if CompareVersions(have, want) < 0 {
		return fmt.Errorf("%s %s is older than the required %s: %w", engine, server, minimum, ErrServerVersion)
	}
	return nil
}
