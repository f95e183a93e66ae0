package placement

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-bexpr"
	"github.com/hashicorp/go-set/v3"

	"github.com/ballast-sched/ballast/pkg/types"
)

// attrDatum is the single-field struct every constraint predicate is
// evaluated against: one attribute value at a time, checked for equality or
// set membership via a bexpr expression built from the constraint's
// Values. Keeping the datum to one scalar field sidesteps bexpr's map/slice
// selector semantics entirely, which this fixed, closed set of predicate
// kinds never needs.
type attrDatum struct {
	Value string `bexpr:"Value"`
}

func attributeValues(attrs *types.HostAttributes, name string) []string {
	if attrs == nil {
		return nil
	}
	for _, a := range attrs.Attributes {
		if a.Name == name {
			return a.Values
		}
	}
	return nil
}

// matchesAnyValue reports whether any of values satisfies `Value in
// [allowed...]`, evaluated once per value via go-bexpr.
func matchesAnyValue(values, allowed []string) (bool, error) {
	if len(allowed) == 0 || len(values) == 0 {
		return false, nil
	}
	quoted := make([]string, len(allowed))
	for i, v := range allowed {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	expr := fmt.Sprintf("Value in [%s]", strings.Join(quoted, ", "))
	ev, err := bexpr.CreateEvaluator(expr)
	if err != nil {
		return false, fmt.Errorf("placement: compile constraint expression: %w", err)
	}
	for _, v := range values {
		ok, err := ev.Evaluate(attrDatum{Value: v})
		if err != nil {
			return false, fmt.Errorf("placement: evaluate constraint expression: %w", err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// shareAnyValue reports whether a and b have any element in common,
// consulted per ConstraintLimit candidate host to decide whether it shares
// the limited attribute's value with the host being evaluated.
func shareAnyValue(a, b []string) bool {
	seen := set.From(a)
	for _, v := range b {
		if seen.Contains(v) {
			return true
		}
	}
	return false
}

// satisfiesConstraints reports whether a candidate host satisfies every
// constraint in cs. jobActiveHosts is every other host currently running an
// active task from the same job, consulted only for ConstraintLimit, which
// caps how many same-job tasks may share one attribute value.
func satisfiesConstraints(cs []types.Constraint, host string, attrs *types.HostAttributes, jobActiveHosts []*types.HostAttributes) (bool, error) {
	for _, c := range cs {
		switch c.Kind {
		case types.ConstraintEquals, types.ConstraintValues:
			ok, err := matchesAnyValue(attributeValues(attrs, c.Name), c.Values)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		case types.ConstraintLimit:
			hostValues := attributeValues(attrs, c.Name)
			if len(hostValues) == 0 {
				continue
			}
			count := 0
			for _, other := range jobActiveHosts {
				if other == nil || other.Host == host {
					continue
				}
				if shareAnyValue(hostValues, attributeValues(other, c.Name)) {
					count++
				}
			}
			if count >= c.Limit {
				return false, nil
			}
		}
	}
	return true, nil
}
