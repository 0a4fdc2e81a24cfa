// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// Copyright (c) 2019-2022, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package sylog

// messageLevel is the level of a log message, and also doubles as the
// current logger's verbosity threshold: a message is written only when its
// level is <= the logger's configured level.
type messageLevel int

const (
	// FatalLevel messages are printed before the process exits with a
	// non-zero status.
	FatalLevel messageLevel = iota - 4
	// ErrorLevel messages describe a problem that does not by itself
	// terminate the process.
	ErrorLevel
	// WarnLevel messages report a non-fatal anomaly; sylog writes them
	// once, at the time they are logged.
	WarnLevel
	// LogLevel is the default, silent threshold used by child processes
	// that should not write to the terminal directly.
	LogLevel
	// InfoLevel messages are shown by default.
	InfoLevel
	// VerboseLevel messages require at least one -v.
	VerboseLevel
	// DebugLevel messages require -vv (two repeated -v).
	DebugLevel
)

func (l messageLevel) String() string {
	switch l {
	case FatalLevel:
		return "FATAL"
	case ErrorLevel:
		return "ERROR"
	case WarnLevel:
		return "WARNING"
	case LogLevel:
		return "LOG"
	case InfoLevel:
		return "INFO"
	case VerboseLevel:
		return "VERBOSE"
	case DebugLevel:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}
