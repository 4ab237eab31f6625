package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	perrors "github.com/matzehuels/pylock/pkg/errors"
)

// Exit codes returned by [ExitCode].
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitInterrupted = 130 // Standard shell convention for SIGINT
)

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case perrors.Is(err, perrors.ErrCodeInvalidInput):
		return ExitUsage
	}
	return ExitFailure
}

// PrintError writes err for the user: the message, its cause and any
// details such as the requirements of an unresolvable lock.
func PrintError(w io.Writer, err error) {
	if perrors.Is(err, perrors.ErrCodeUnresolvable) {
		fmt.Fprintln(w, iconError+" "+StyleWarning.Render("Cannot resolve dependencies"))
	}
	fmt.Fprintln(w, iconError+" "+perrors.UserMessage(err))
}
