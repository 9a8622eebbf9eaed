package loader

import (
	"fmt"
	"strings"
)

// DatePolicy selects what a document's publish date falls back to when no
// usable date metadata exists.
type DatePolicy string

const (
	// DatePolicyEpoch falls back to 1970-01-01. Stable across runs, so it is
	// the policy to use whenever an index persists dates.
	DatePolicyEpoch DatePolicy = "epoch"
	// DatePolicyNow falls back to the current day.
	DatePolicyNow DatePolicy = "now"
)

// ParseDatePolicy parses a policy name; empty selects DatePolicyEpoch.
func ParseDatePolicy(s string) (DatePolicy, error) {
	switch DatePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", DatePolicyEpoch:
		return DatePolicyEpoch, nil
	case DatePolicyNow:
		return DatePolicyNow, nil
	}
	return "", fmt.Errorf("loader: unknown date policy %q", s)
}
