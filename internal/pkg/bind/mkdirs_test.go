// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package bind

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMkdirsCreatesNestedPath(t *testing.T) {
	root := t.TempDir()
	tr := NewTracker(root, "")

	if err := tr.Mkdirs("/a/b/c"); err != nil {
		t.Fatalf("Mkdirs: %v", err)
	}
	info, err := os.Stat(filepath.Join(root, "a", "b", "c"))
	if err != nil {
		t.Fatalf("expected directory to exist: %v", err)
	}
	if !info.IsDir() {
		t.Fatalf("a/b/c is not a directory")
	}
}

func TestMkdirsRefusesAbsoluteSymlink(t *testing.T) {
	root := t.TempDir()
	if err := os.Symlink("/etc", filepath.Join(root, "link")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	tr := NewTracker(root, "")
	if err := tr.Mkdirs("/link/sub"); err == nil {
		t.Fatalf("expected error walking through an absolute symlink")
	}
}

func TestMkdirsRefusesUnderBoundPath(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "mnt"), 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}
	tr := NewTracker(root, "")
	canon, err := filepath.EvalSymlinks(filepath.Join(root, "mnt"))
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	tr.bound = append(tr.bound, canon)

	if err := tr.Mkdirs("/mnt/sub"); err == nil {
		t.Fatalf("expected error creating under a recorded bind destination")
	}
}

func TestMkdirsIdempotent(t *testing.T) {
	root := t.TempDir()
	tr := NewTracker(root, "")
	if err := tr.Mkdirs("/x/y"); err != nil {
		t.Fatalf("first Mkdirs: %v", err)
	}
	if err := tr.Mkdirs("/x/y"); err != nil {
		t.Fatalf("second Mkdirs on existing path should succeed: %v", err)
	}
}
