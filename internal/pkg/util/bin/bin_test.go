// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// Copyright (c) 2019, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package bin

import (
	"os"
	"os/exec"
	"testing"
)

func TestFindOnPath(t *testing.T) {
	truePath, err := exec.LookPath("mount")
	if err != nil {
		t.Skipf("mount not on PATH in test environment: %v", err)
	}

	t.Run("found", func(t *testing.T) {
		gotPath, err := findOnPath("mount")
		if err != nil {
			t.Errorf("unexpected error from findOnPath: %v", err)
		}
		if gotPath != truePath {
			t.Errorf("got %q, expected %q", gotPath, truePath)
		}
	})

	t.Run("missing", func(t *testing.T) {
		oldPath := os.Getenv("PATH")
		os.Setenv("PATH", "/invalid/dir")
		defer os.Setenv("PATH", oldPath)

		if _, err := findOnPath("mount"); err == nil {
			t.Errorf("expected error when PATH has no mount binary")
		}
	})
}

func TestFindBinUnknown(t *testing.T) {
	if _, err := FindBin("not-a-real-binary"); err == nil {
		t.Errorf("expected error for unknown binary name")
	}
}
