// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package squashfuse

import (
	"bufio"
	"os"
	"strings"
)

// mountPoints returns the set of mount points for the calling process,
// parsed out of /proc/self/mountinfo. Only the mount-point field (5th,
// space-separated) is needed to detect that squashfuse has completed its
// mount.
func mountPoints() (map[string]bool, error) {
	f, err := os.Open("/proc/self/mountinfo")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	points := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 {
			continue
		}
		points[fields[4]] = true
	}
	return points, scanner.Err()
}
