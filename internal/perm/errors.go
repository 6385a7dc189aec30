// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatewarden Contributors

package perm

import (
	"github.com/samber/oops"
)

// Error codes surfaced by the store. These are the only domain errors:
// everything else is a caller-validation concern.
const (
	// CodeMissingGroup means an operation referenced a group that does not
	// exist and required one to exist.
	CodeMissingGroup = "MISSING_GROUP"
	// CodeInheritanceCycle means a requested parent change would make a
	// group (transitively) inherit from itself.
	CodeInheritanceCycle = "INHERITANCE_CYCLE"
	// CodeInvalidArgument means the caller passed structurally invalid
	// input (blank identifier, unsupported metadata type).
	CodeInvalidArgument = "INVALID_ARGUMENT"
)

func missingGroup(name string) error {
	return oops.In("perm").
		Code(CodeMissingGroup).
		With("group", name).
		Errorf("group %q does not exist", name)
}

func cycleError(group, parent string) error {
	return oops.In("perm").
		Code(CodeInheritanceCycle).
		With("group", group).
		With("parent", parent).
		Errorf("setting %q as a parent of %q would create an inheritance cycle", parent, group)
}

func invalidArgument(format string, args ...any) error {
	return oops.In("perm").
		Code(CodeInvalidArgument).
		Errorf(format, args...)
}

func hasCode(err error, code string) bool {
	oopsErr, ok := oops.AsOops(err)
	return ok && oopsErr.Code() == code
}

// IsMissingGroup reports whether err is a MISSING_GROUP error.
func IsMissingGroup(err error) bool { return hasCode(err, CodeMissingGroup) }

// IsCycle reports whether err is an INHERITANCE_CYCLE error.
func IsCycle(err error) bool { return hasCode(err, CodeInheritanceCycle) }

// IsInvalidArgument reports whether err is an INVALID_ARGUMENT error.
func IsInvalidArgument(err error) bool { return hasCode(err, CodeInvalidArgument) }
