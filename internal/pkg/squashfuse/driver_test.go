// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package squashfuse

import (
	"os"
	"testing"
)

func TestNewMissingBinary(t *testing.T) {
	oldPath := os.Getenv("PATH")
	os.Setenv("PATH", "/nonexistent")
	defer os.Setenv("PATH", oldPath)

	if _, err := New(); err == nil {
		t.Errorf("expected error when squashfuse is not on PATH")
	}
}

func TestMountPointsParsesMountinfo(t *testing.T) {
	points, err := mountPoints()
	if err != nil {
		t.Fatalf("unexpected error reading /proc/self/mountinfo: %v", err)
	}
	if !points["/"] {
		t.Errorf("expected root mount point to be present, got %v", points)
	}
}
