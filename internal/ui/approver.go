// Package ui asks the user to confirm destructive schema operations.
package ui

import (
	"fmt"

	"github.com/vvka-141/sqlport/pkg/sqlport"
)

// NewApprover returns a ForcedApprover when force is set, and an
// InteractiveApprover when a terminal is attached. Otherwise destructive
// operations cannot be confirmed and an error explains how to force them.
func NewApprover(force, verbose bool) (sqlport.Approver, error) {
	if force {
		return NewForcedApprover(verbose), nil
	}
	if !IsInteractive() {
		return nil, fmt.Errorf("confirmation needs a terminal; pass --force to proceed without one: %w", sqlport.ErrApprovalDenied)
	}
	return NewInteractiveApprover(verbose), nil
}

func banner(action, target string) string {
	return dangerStyle.Render(fmt.Sprintf("DANGER: %s %s", action, target))
}
