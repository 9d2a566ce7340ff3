package sqlport

import "context"

// Approver confirms destructive schema operations such as truncating every
// table or dropping the database.
//
// Implementations:
//   - ForcedApprover: Shows countdown and automatically approves
//   - InteractiveApprover: Prompts user to type the target name for confirmation
type Approver interface {
	// RequestApproval asks for confirmation of action against target.
	// Returns false with a nil error when the user declines.
	RequestApproval(ctx context.Context, action, target string) (bool, error)
}
