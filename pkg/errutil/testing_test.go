// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatewarden Contributors

package errutil_test

import (
	"testing"

	"github.com/samber/oops"

	"github.com/gatewarden/gatewarden/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("INHERITANCE_CYCLE").Errorf("test error")
	// Should not fail
	errutil.AssertErrorCode(t, err, "INHERITANCE_CYCLE")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("group", "staff").Errorf("test error")
	// Should not fail
	errutil.AssertErrorContext(t, err, "group", "staff")
}
