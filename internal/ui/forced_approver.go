package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vvka-141/sqlport/pkg/sqlport"
)

// ForcedApprover implements the Approver interface for forced (non-interactive)
// approval. It displays a countdown and automatically approves after the countdown,
// used when the --force flag is provided.
type ForcedApprover struct {
	verbose bool
	output  io.Writer
	sleepFn func(time.Duration)
}

// NewForcedApprover creates a new ForcedApprover writing to stderr.
func NewForcedApprover(verbose bool) sqlport.Approver {
	return &ForcedApprover{verbose: verbose, output: os.Stderr, sleepFn: time.Sleep}
}

// RequestApproval displays a countdown and automatically approves after the countdown.
func (a *ForcedApprover) RequestApproval(ctx context.Context, action, target string) (bool, error) {
	fmt.Fprintln(a.output)
	fmt.Fprintln(a.output, banner(action, target))
	fmt.Fprintln(a.output)

	countdownSeconds := int(sqlport.DefaultForceApprovalCountdown.Seconds())
	for i := countdownSeconds; i > 0; i-- {
		if err := ctx.Err(); err != nil {
			fmt.Fprintln(a.output)
			return false, err
		}
		fmt.Fprintf(a.output, "\r%s", warningStyle.Render(fmt.Sprintf("Proceeding in: %d seconds... (Press Ctrl+C to cancel)", i)))
		a.sleepFn(time.Second)
	}
	if err := ctx.Err(); err != nil {
		fmt.Fprintln(a.output)
		return false, err
	}

	fmt.Fprintf(a.output, "\r%s\n", successStyle.Render(fmt.Sprintf("✓ Proceeding: %s %s", action, target)))
	return true, nil
}

// Verify ForcedApprover implements the Approver interface at compile time
var _ sqlport.Approver = (*ForcedApprover)(nil)
