package recurrence

import (
	"fmt"
	"strings"
)

// Scope selects how far a deletion reaches from a target instance.
type Scope int

const (
	// ScopeSingle removes only the target instance.
	ScopeSingle Scope = iota
	// ScopeAll removes the entity and every instance, past and future.
	ScopeAll
	// ScopeCount removes the target instance and the following occurrences
	// up to a requested total.
	ScopeCount
)

func (s Scope) String() string {
	switch s {
	case ScopeSingle:
		return "single"
	case ScopeAll:
		return "all"
	case ScopeCount:
		return "count"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single", "":
		return ScopeSingle, nil
	case "all":
		return ScopeAll, nil
	case "count":
		return ScopeCount, nil
	default:
		return ScopeSingle, fmt.Errorf("unknown deletion scope %q", s)
	}
}

// safetyMarginDays pads the lookahead horizon for ScopeCount so that rules
// with large intervals still gather enough matches. Under-provisioning the
// horizon silently under-returns, which must never happen; a few extra weeks
// of iteration is cheap.
const safetyMarginDays = 31

// Resolution is the outcome of resolving a deletion scope.
type Resolution struct {
	// EntityWide means the caller must remove the entity itself (and with it
	// every instance) rather than excepting individual dates.
	EntityWide bool
	// Dates are the concrete instance dates the mutation applies to,
	// ascending. Empty for EntityWide resolutions.
	Dates []Date
}

// ResolveDeletion computes which concrete instances a deletion starting at
// target affects. For ScopeCount it returns at most n dates; when the rule
// terminates earlier (Until or Count), it returns however many occurrences
// exist rather than erroring.
func ResolveDeletion(r Rule, anchor, target Date, exceptions DateSet, scope Scope, n int) Resolution {
	switch scope {
	case ScopeAll:
		return Resolution{EntityWide: true}
	case ScopeSingle:
		return Resolution{Dates: []Date{target}}
	}

	if n <= 0 {
		return Resolution{Dates: []Date{}}
	}

	period := r.step()
	if r.Kind == Weekly {
		period *= 7
	}
	horizon := target.AddDays(n*period + safetyMarginDays)

	dates := Expand(r, anchor, target, horizon, exceptions)
	if len(dates) > n {
		dates = dates[:n]
	}
	return Resolution{Dates: dates}
}
