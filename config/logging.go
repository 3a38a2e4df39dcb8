// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"sync/atomic"

	"github.com/hashicorp/go-hclog"
)

// LoggerName is the name of the process logger
const LoggerName = "cap-sso"

var (
	processLogger = hclog.New(&hclog.LoggerOptions{
		Name:  LoggerName,
		Level: hclog.Info,
	})

	// enabledLevel is the level restored when logs are re-enabled
	enabledLevel atomic.Int32
	logsEnabled  atomic.Bool
)

func init() {
	enabledLevel.Store(int32(hclog.Info))
	logsEnabled.Store(true)
}

// Logger returns the process wide logger used by the sso packages.  Named
// sub-loggers share its level, so SetLogsEnabled applies to them as well.
func Logger() hclog.Logger { return processLogger }

// SetLogsEnabled turns the process logger on or off.  It's idempotent and
// takes effect immediately for every goroutine.  Toggling while another
// goroutine is emitting a log line is an accepted race: that line may or may
// not be written.
func SetLogsEnabled(enabled bool) {
	logsEnabled.Store(enabled)
	if !enabled {
		processLogger.SetLevel(hclog.Off)
		return
	}
	processLogger.SetLevel(hclog.Level(enabledLevel.Load()))
}

// LogsEnabled reports the current state of the process log switch.
func LogsEnabled() bool { return logsEnabled.Load() }

// SetLogLevel sets the level used while logs are enabled.
func SetLogLevel(l hclog.Level) {
	enabledLevel.Store(int32(l))
	if logsEnabled.Load() {
		processLogger.SetLevel(l)
	}
}
