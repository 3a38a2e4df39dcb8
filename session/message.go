// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"encoding/gob"
	"strings"
)

// Level is the severity of a flash message.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelSuccess
	LevelWarning
	LevelError
)

// String returns the lowercase level name
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel returns the level named s, ignoring case.  Unknown names are
// LevelError.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "success":
		return LevelSuccess
	case "warning", "warn":
		return LevelWarning
	default:
		return LevelError
	}
}

// Message is a flash message shown to the user on the next page.
type Message struct {
	Level Level
	Text  string
}

func init() {
	gob.Register(Message{})
}
