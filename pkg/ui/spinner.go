package ui

import (
	"os"
	"strings"

	"github.com/pterm/pterm"
)

// Spinner wraps a pterm spinner with convenience methods.
type Spinner struct {
	spinner *pterm.SpinnerPrinter
	message string
}

// NewSpinner creates and starts a spinner with the given message.
// Spinners are disabled under go test to avoid races with pterm's internal
// goroutines.
func NewSpinner(message string) *Spinner {
	if isTestMode() {
		return &Spinner{message: message}
	}

	s, _ := pterm.DefaultSpinner.
		WithRemoveWhenDone(false).
		Start(message)

	return &Spinner{
		spinner: s,
		message: message,
	}
}

// Success stops the spinner with a success message.
func (s *Spinner) Success(message string) {
	if message == "" {
		message = s.message
	}

	if s.spinner != nil {
		s.spinner.Success(message)
	}
}

// Fail stops the spinner with an error message.
func (s *Spinner) Fail(message string) {
	if message == "" {
		message = s.message
	}

	if s.spinner != nil {
		s.spinner.Fail(message)
	}
}

// isTestMode reports whether we are running under go test.
func isTestMode() bool {
	for _, arg := range os.Args {
		if strings.HasPrefix(arg, "-test.") {
			return true
		}
	}

	return os.Getenv("TORCTL_TEST_MODE") == "true"
}
