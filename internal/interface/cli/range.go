package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// turnRange is a 1-based inclusive selection over turns. Zero values
// mean "unset"; negative indices count from the end, -1 being the last
// turn.
type turnRange struct {
	start int
	end   int
}

// parseRange parses "3", "3:7", ":7", "3:", "-5:" and "-5:-2".
func parseRange(s string) (turnRange, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return turnRange{}, fmt.Errorf("empty range")
	}

	parse := func(part string) (int, error) {
		if part == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(part)
		if err != nil || n == 0 {
			return 0, fmt.Errorf("invalid range index %q", part)
		}
		return n, nil
	}

	if !strings.Contains(s, ":") {
		n, err := parse(s)
		if err != nil {
			return turnRange{}, err
		}
		return turnRange{start: n, end: n}, nil
	}

	parts := strings.SplitN(s, ":", 2)
	start, err := parse(parts[0])
	if err != nil {
		return turnRange{}, err
	}
	end, err := parse(parts[1])
	if err != nil {
		return turnRange{}, err
	}
	return turnRange{start: start, end: end}, nil
}

// indices resolves the range against a turn count, returning 0-based
// half-open bounds. Out-of-range endpoints clamp rather than error; an
// inverted range yields an empty selection.
func (r turnRange) indices(total int) (int, int) {
	if total == 0 {
		return 0, 0
	}

	resolve := func(idx, unset int) int {
		if idx == 0 {
			return unset
		}
		if idx < 0 {
			idx = total + 1 + idx
		}
		if idx < 1 {
			idx = 1
		}
		if idx > total {
			idx = total
		}
		return idx
	}

	start := resolve(r.start, 1)
	end := resolve(r.end, total)
	if start > end {
		return 0, 0
	}
	return start - 1, end
}

// lastN selects the trailing n turns.
func lastN(n, total int) (int, int) {
	if n <= 0 || total == 0 {
		return 0, 0
	}
	if n >= total {
		return 0, total
	}
	return total - n, total
}
