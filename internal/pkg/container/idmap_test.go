// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package container

import (
	"os"
	"path/filepath"
	"testing"
)

// writeIDMap itself can't be exercised against the real /proc/self/uid_map
// without actual namespace privileges, but its wire format is independent of
// the target file: write against a plain temp file and check the exact line.
func TestWriteIDMapWritesSingleLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uid_map")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if err := writeIDMap(path, 0, 1000); err != nil {
		t.Fatalf("writeIDMap: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading back: %v", err)
	}
	if want := "0 1000 1\n"; string(got) != want {
		t.Fatalf("wrote %q, want %q", got, want)
	}
}

func TestWriteIDMapInsideNonzero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gid_map")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if err := writeIDMap(path, 1000, 1000); err != nil {
		t.Fatalf("writeIDMap: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading back: %v", err)
	}
	if want := "1000 1000 1\n"; string(got) != want {
		t.Fatalf("wrote %q, want %q", got, want)
	}
}

func TestWriteIDMapMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist")
	if err := writeIDMap(path, 0, 1000); err == nil {
		t.Fatalf("expected error opening a nonexistent map file")
	}
}

// verifyIDMap's uid_map/gid_map read-back goes through
// namespaces.HostUID/HostGID, which only inspect /proc/self/*_map and
// short-circuit entirely when the calling process's current id is nonzero.
// That path needs no fixture here: it's covered by exercising mapIdentity's
// insideUID/insideGID == 0 branch in an actual user namespace, which this
// process is not guaranteed to be running in. What's verified here is the
// non-root branch, which must be a no-op regardless of environment.
func TestVerifyIDMapSkipsNonzeroInsideIDs(t *testing.T) {
	if err := verifyIDMap(1000, 1000, 1000, 1000); err != nil {
		t.Fatalf("verifyIDMap with nonzero inside ids should not touch /proc: %v", err)
	}
}
