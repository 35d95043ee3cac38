// Package ui styles terminal output.
package ui

import "github.com/law-makers/scrape/pkg/models"

// ANSI color and style constants for CLI output
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorDim   = "\033[2m"

	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorWhite  = "\033[97m"
	ColorRed    = "\033[31m"
)

func Bold(s string) string {
	return ColorBold + s + ColorReset
}

func Success(s string) string {
	return ColorGreen + s + ColorReset
}

func Info(s string) string {
	return ColorDim + ColorYellow + s + ColorReset
}

func Error(s string) string {
	return ColorRed + s + ColorReset
}

// State colors a run state: green when done, yellow when aborted, red when
// failed, dim otherwise.
func State(s models.State) string {
	switch s {
	case models.StateDone:
		return Success(string(s))
	case models.StateAborted:
		return ColorYellow + string(s) + ColorReset
	case models.StateFailed:
		return Error(string(s))
	default:
		return ColorDim + string(s) + ColorReset
	}
}
