// Package ui provides terminal output helpers: status messages, spinners,
// and the verbose-gated log writer.
package ui

import (
	"fmt"

	"github.com/pterm/pterm"
)

var (
	// Color styles.
	successStyle = pterm.NewStyle(pterm.FgGreen)
	errorStyle   = pterm.NewStyle(pterm.FgRed)
	warningStyle = pterm.NewStyle(pterm.FgYellow)
	infoStyle    = pterm.NewStyle(pterm.FgCyan)

	// Symbol styles.
	successSymbol = pterm.Green("✓")
	errorSymbol   = pterm.Red("✗")
	warningSymbol = pterm.Yellow("⚠")
	infoSymbol    = pterm.Cyan("→")

	headerStyle = pterm.NewStyle(pterm.FgCyan, pterm.Bold)
)

// Success prints a success message with green checkmark.
func Success(message string) {
	fmt.Printf("%s %s\n", successSymbol, successStyle.Sprint(message))
}

// Error prints an error message with red X.
func Error(message string) {
	fmt.Printf("%s %s\n", errorSymbol, errorStyle.Sprint(message))
}

// Warning prints a warning message with yellow symbol.
func Warning(message string) {
	fmt.Printf("%s %s\n", warningSymbol, warningStyle.Sprint(message))
}

// Info prints an info message with cyan arrow.
func Info(message string) {
	fmt.Printf("%s %s\n", infoSymbol, infoStyle.Sprint(message))
}

// Header prints a styled section header.
func Header(message string) {
	fmt.Printf("%s\n", headerStyle.Sprint(message))
}

// Blank prints a blank line for spacing.
func Blank() {
	fmt.Println()
}
