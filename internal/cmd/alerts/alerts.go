// Package alerts writes short status lines for CLI commands, such as the
// result of a configuration check or the summary of a run.
package alerts

import (
	"fmt"
	"time"
)

// Level represents the severity of an alert.
type Level int

const (
	// LevelError indicates a failure.
	LevelError Level = iota
	// LevelWarning indicates a potential issue.
	LevelWarning
	// LevelInfo indicates a general message.
	LevelInfo
	// LevelSuccess indicates successful completion of an operation.
	LevelSuccess
)

// String returns the string representation of the alert level.
func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarning:
		return "warning"
	case LevelInfo:
		return "info"
	case LevelSuccess:
		return "success"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}

// Icon returns the marker printed before the message.
func (l Level) Icon() string {
	switch l {
	case LevelError:
		return "✗"
	case LevelWarning:
		return "!"
	case LevelSuccess:
		return "✓"
	default:
		return "-"
	}
}

// Color returns the ANSI color code for the level.
func (l Level) Color() string {
	switch l {
	case LevelError:
		return "\033[31m"
	case LevelWarning:
		return "\033[33m"
	case LevelSuccess:
		return "\033[32m"
	default:
		return "\033[36m"
	}
}

const resetColor = "\033[0m"

// Alert is a single status notification.
type Alert struct {
	Level     Level
	Message   string
	Details   []string
	Timestamp time.Time
	Err       error
}

// New creates an alert with the given level and message.
func New(level Level, message string) *Alert {
	return &Alert{Level: level, Message: message, Timestamp: time.Now()}
}

// NewError creates an error alert.
func NewError(message string) *Alert {
	return New(LevelError, message)
}

// NewWarning creates a warning alert.
func NewWarning(message string) *Alert {
	return New(LevelWarning, message)
}

// NewInfo creates an info alert.
func NewInfo(message string) *Alert {
	return New(LevelInfo, message)
}

// NewSuccess creates a success alert.
func NewSuccess(message string) *Alert {
	return New(LevelSuccess, message)
}

// WithError adds an underlying error to the alert.
func (a *Alert) WithError(err error) *Alert {
	a.Err = err
	return a
}

// WithDetails adds indented detail lines.
func (a *Alert) WithDetails(details ...string) *Alert {
	a.Details = append(a.Details, details...)
	return a
}

// String returns the alert as a single line.
func (a *Alert) String() string {
	message := a.Level.Icon() + " " + a.Message
	if a.Err != nil {
		message += fmt.Sprintf(": %v", a.Err)
	}
	return message
}
