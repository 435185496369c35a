package session

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/rosterkeeper/internal/common"
)

const (
	MinPasswordLength = 12
	MinCharClasses    = 3
)

// Reason identifies one unmet password rule.
type Reason string

const (
	ReasonTooShort     Reason = "at least 12 characters required"
	ReasonFewCharClass Reason = "use at least 3 of: lowercase, uppercase, digit, symbol"
)

// PolicyError lists every rule a rejected password failed.
type PolicyError struct {
	Reasons []Reason
}

func (e *PolicyError) Error() string {
	parts := make([]string, len(e.Reasons))
	for i, r := range e.Reasons {
		parts[i] = string(r)
	}
	return fmt.Sprintf("%s: %s", common.ErrPolicyViolation, strings.Join(parts, "; "))
}

func (e *PolicyError) Is(target error) bool {
	return target == common.ErrPolicyViolation
}

// CharClasses counts how many of lowercase, uppercase, digit and symbol
// appear in password. Anything outside ASCII letters and digits is a symbol.
func CharClasses(password []byte) int {
	var lower, upper, digit, symbol bool
	for _, r := range string(password) {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			symbol = true
		}
	}
	n := 0
	for _, ok := range []bool{lower, upper, digit, symbol} {
		if ok {
			n++
		}
	}
	return n
}

// CheckPassword returns nil when password meets the policy, otherwise a
// *PolicyError with every unmet rule.
func CheckPassword(password []byte) error {
	var reasons []Reason
	if utf8.RuneCount(password) < MinPasswordLength {
		reasons = append(reasons, ReasonTooShort)
	}
	if CharClasses(password) < MinCharClasses {
		reasons = append(reasons, ReasonFewCharClass)
	}
	if len(reasons) == 0 {
		return nil
	}
	return &PolicyError{Reasons: reasons}
}
