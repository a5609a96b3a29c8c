package tokenmanager

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/nkiryanov/authgate/internal/apperrors"
)

// ParseLifetime parses token lifetime like "30m", "12h", "7d".
// Bare digits are seconds.
func ParseLifetime(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("%w: empty lifetime", apperrors.ErrConfiguration)
	}

	unit := time.Second
	digits := s
	switch s[len(s)-1] {
	case 'm':
		unit, digits = time.Minute, s[:len(s)-1]
	case 'h':
		unit, digits = time.Hour, s[:len(s)-1]
	case 'd':
		unit, digits = 24*time.Hour, s[:len(s)-1]
	}

	n, err := strconv.ParseUint(digits, 10, 32)
	if err != nil || digits == "" || digits[0] == '+' {
		return 0, fmt.Errorf("%w: invalid lifetime %q, want digits with optional m, h or d suffix", apperrors.ErrConfiguration, s)
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: lifetime %q must be positive", apperrors.ErrConfiguration, s)
	}

	if n > uint64(math.MaxInt64/int64(unit)) {
		return 0, fmt.Errorf("%w: lifetime %q is too long", apperrors.ErrConfiguration, s)
	}

	return time.Duration(n) * unit, nil
}
