package logger

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/harrison/runci/internal/models"
)

// colorScheme defines consistent colors for job and step statuses.
// Green: success. Red: failures and timeouts. Yellow: skipped/cancelled.
type colorScheme struct {
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
}

// newColorScheme creates the standard color scheme
func newColorScheme() *colorScheme {
	return &colorScheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
	}
}

// forStatus returns the color used for a given status string
func (s *colorScheme) forStatus(status string) *color.Color {
	switch status {
	case models.StatusSuccess:
		return s.success
	case models.StatusFailed, models.StatusTimedOut:
		return s.fail
	default:
		return s.warn
	}
}

// colorize renders a value through the given color when color output is
// enabled, and plainly otherwise
func (cl *ConsoleLogger) colorize(c *color.Color, value interface{}) string {
	if !cl.colorOutput {
		return fmt.Sprint(value)
	}
	return c.Sprint(value)
}
