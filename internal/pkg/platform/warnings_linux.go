// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package platform

import (
	"bytes"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/hpc/charliecloud-sub000/pkg/sylog"
)

// warningsBufferSize bounds the shared region; each warning is a
// null-terminated string, so this is a soft cap on total warning text
// across the process's lifetime, not a count.
const warningsBufferSize = 4096

// Warnings is a fixed-size, anonymous-mmap-backed append-only log of
// non-fatal anomalies. The mapping is MAP_SHARED, so it is shared with
// processes forked after NewWarnings; like every mapping, it does not
// outlive an exec of the process that holds it, so Replay must run before
// that exec. Nothing in the launcher currently creates a Warnings.
type Warnings struct {
	region []byte
	used   int
}

// NewWarnings allocates the shared warnings region.
func NewWarnings() (*Warnings, error) {
	region, err := unix.Mmap(-1, 0, warningsBufferSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("mmap warnings buffer: %w", err)
	}
	return &Warnings{region: region}, nil
}

// Append records a warning, logging it immediately at WARNING level and
// also appending it (null-terminated) to the shared region for replay.
func (w *Warnings) Append(format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)
	sylog.Warningf("%s", msg)

	line := append([]byte(msg), 0)
	if w.used+len(line) > len(w.region) {
		return // buffer full; the live sylog.Warningf above already told the user
	}
	copy(w.region[w.used:], line)
	w.used += len(line)
}

// Replay re-emits every buffered warning, used right before the launcher
// exits or execs the user command.
func (w *Warnings) Replay() {
	for _, msg := range bytes.Split(w.region[:w.used], []byte{0}) {
		if len(msg) == 0 {
			continue
		}
		fmt.Fprintf(os.Stderr, "warning: %s\n", msg)
	}
}

// Close releases the shared mapping.
func (w *Warnings) Close() error {
	return unix.Munmap(w.region)
}
