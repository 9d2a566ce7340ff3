package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vvka-141/sqlport/pkg/sqlport"
)

// InteractiveApprover implements the Approver interface for console-based
// interactive confirmation. It prompts the user to type the target name
// to confirm destructive operations.
type InteractiveApprover struct {
	verbose bool
	input   io.Reader
	output  io.Writer
}

// NewInteractiveApprover creates a new InteractiveApprover on stdin and stderr.
func NewInteractiveApprover(verbose bool) sqlport.Approver {
	return &InteractiveApprover{verbose: verbose, input: os.Stdin, output: os.Stderr}
}

// RequestApproval prompts the user to type target to confirm action.
func (a *InteractiveApprover) RequestApproval(ctx context.Context, action, target string) (bool, error) {
	fmt.Fprintln(a.output)
	fmt.Fprintln(a.output, warningStyle.Render(fmt.Sprintf("WARNING: You are about to %s '%s'", action, target)))
	fmt.Fprintln(a.output, "This will permanently delete data and cannot be undone!")
	fmt.Fprintf(a.output, "\nTo confirm, type '%s' and press Enter: ", target)

	// Read user input with context cancellation support
	inputChan := make(chan string, 1)
	errChan := make(chan error, 1)

	go func() {
		reader := bufio.NewReader(a.input)
		input, err := reader.ReadString('\n')
		if err != nil && input == "" {
			errChan <- err
			return
		}
		inputChan <- strings.TrimSpace(input)
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case err := <-errChan:
		return false, fmt.Errorf("failed to read input: %w", err)
	case input := <-inputChan:
		if input == target {
			fmt.Fprintln(a.output, successStyle.Render("✓ Confirmed. Proceeding..."))
			return true, nil
		}
		fmt.Fprintln(a.output, errorStyle.Render(fmt.Sprintf("✗ Input '%s' does not match '%s'. Operation cancelled.", input, target)))
		if a.verbose {
			fmt.Fprintln(a.output, mutedStyle.Render("Nothing was changed."))
		}
		return false, nil
	}
}

// Verify InteractiveApprover implements the Approver interface at compile time
var _ sqlport.Approver = (*InteractiveApprover)(nil)
