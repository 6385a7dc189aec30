// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatewarden Contributors

package perm

// ImplicationRegistry maps a permission key to the child keys it implies.
// The returned map's value is true for sign-preserving implications and
// false for sign-inverting ones. Implementations must be acyclic. A nil
// map means the key implies nothing.
type ImplicationRegistry interface {
	Implications(key string) map[string]bool
}

// ExpandImplications recursively expands each resolved permission into the
// permissions it implies. A granted key sets its sign-preserving children
// true and its sign-inverting children false; a denied key flips both, and
// the flip compounds at each implication level.
func ExpandImplications(resolved map[string]bool, reg ImplicationRegistry) map[string]bool {
	out := make(map[string]bool, len(resolved))
	if reg == nil {
		for key, value := range resolved {
			out[key] = value
		}
		return out
	}
	for key, value := range resolved {
		out[key] = value
		if children := reg.Implications(key); children != nil {
			expandChildren(out, reg, children, !value)
		}
	}
	return out
}

func expandChildren(out map[string]bool, reg ImplicationRegistry, children map[string]bool, invert bool) {
	for child, preserving := range children {
		child = canonical(child)
		value := preserving != invert
		out[child] = value
		if grand := reg.Implications(child); grand != nil {
			expandChildren(out, reg, grand, !value)
		}
	}
}
