// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import "strings"

// StackStatusDeleteComplete is reported for stacks that no longer exist.
const StackStatusDeleteComplete = "DELETE_COMPLETE"

// StackState is a snapshot of one deployed stack.
type StackState struct {
	Name    string
	ID      string
	Status  string
	Reason  string
	Outputs map[string]string
}

// InProgress reports whether the stack is still transitioning.
func (s *StackState) InProgress() bool {
	return strings.HasSuffix(s.Status, "_IN_PROGRESS")
}

// Succeeded reports whether the last operation completed without rollback.
func (s *StackState) Succeeded() bool {
	return strings.HasSuffix(s.Status, "_COMPLETE") && !strings.Contains(s.Status, "ROLLBACK")
}

// Failed reports whether the last operation failed or was rolled back.
func (s *StackState) Failed() bool {
	if s.InProgress() {
		return false
	}
	return strings.HasSuffix(s.Status, "_FAILED") || strings.Contains(s.Status, "ROLLBACK")
}

// Deleted reports whether the stack is gone.
func (s *StackState) Deleted() bool {
	return s.Status == StackStatusDeleteComplete
}
