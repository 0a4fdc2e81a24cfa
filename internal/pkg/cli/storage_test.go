// Copyright (c) Contributors to the Apptainer project, established as
//   Apptainer a Series of LF Projects LLC.
//   For website terms of use, trademark policy, privacy policy and other
//   project policies see https://lfprojects.org/policies
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStorageDirFlagWins(t *testing.T) {
	dir, err := StorageDir("/explicit/dir")
	if err != nil {
		t.Fatalf("StorageDir: %v", err)
	}
	if dir != "/explicit/dir" {
		t.Errorf("got %q, want /explicit/dir", dir)
	}
}

func TestStorageDirEnvFallback(t *testing.T) {
	os.Setenv("CH_IMAGE_STORAGE", "/env/dir")
	defer os.Unsetenv("CH_IMAGE_STORAGE")

	dir, err := StorageDir("")
	if err != nil {
		t.Fatalf("StorageDir: %v", err)
	}
	if dir != "/env/dir" {
		t.Errorf("got %q, want /env/dir", dir)
	}
}

func TestStorageDirDefault(t *testing.T) {
	os.Unsetenv("CH_IMAGE_STORAGE")
	os.Setenv("USER", "charlie")

	dir, err := StorageDir("")
	if err != nil {
		t.Fatalf("StorageDir: %v", err)
	}
	want := filepath.Join("/var/tmp", "charlie.ch")
	if dir != want {
		t.Errorf("got %q, want %q", dir, want)
	}
}

func TestStoragePathNameEscapesSlashAndColon(t *testing.T) {
	got := StoragePathName("registry.io/foo:v1")
	want := "registry.io%foo+v1"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
