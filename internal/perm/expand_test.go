// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatewarden Contributors

package perm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// mapRegistry backs ImplicationRegistry with a static map.
type mapRegistry map[string]map[string]bool

func (m mapRegistry) Implications(key string) map[string]bool { return m[key] }

func TestExpandImplications(t *testing.T) {
	reg := mapRegistry{
		"admin": {
			"build": true,  // sign-preserving
			"spy":   false, // sign-inverting
		},
		"build": {
			"build.place": true,
		},
	}

	t.Run("granted parent", func(t *testing.T) {
		got := ExpandImplications(map[string]bool{"admin": true}, reg)
		assert.True(t, got["admin"])
		assert.True(t, got["build"])
		assert.False(t, got["spy"], "inverting implication flips a grant to a deny")
		assert.True(t, got["build.place"], "expansion recurses")
	})

	t.Run("denied parent flips children", func(t *testing.T) {
		got := ExpandImplications(map[string]bool{"admin": false}, reg)
		assert.False(t, got["admin"])
		assert.False(t, got["build"])
		assert.True(t, got["spy"])
		assert.False(t, got["build.place"])
	})

	t.Run("nil registry copies input", func(t *testing.T) {
		in := map[string]bool{"x": true}
		got := ExpandImplications(in, nil)
		assert.Equal(t, in, got)
	})

	t.Run("key without implications", func(t *testing.T) {
		got := ExpandImplications(map[string]bool{"chat": true}, reg)
		assert.Equal(t, map[string]bool{"chat": true}, got)
	})
}
